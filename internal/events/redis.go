package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"clipstream/video-app/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	readBlock     = 5 * time.Second
	claimInterval = time.Minute
	claimMinIdle  = time.Minute
)

// redisBus implements EventBus on Redis Streams. Each topic is a stream;
// each subscription is a consumer group with N worker consumers, so
// in-flight messages are processed concurrently and unordered.
type redisBus struct {
	client  *redis.Client
	workers int
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(ctx context.Context, cfg config.EventsConfig) (EventBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &redisBus{client: client, workers: workers}, nil
}

// Publish appends the message to the topic stream.
func (b *redisBus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":     key,
			"payload": payload,
		},
	}).Err()
}

// Subscribe creates the consumer group (idempotently) and runs worker
// consumers until ctx is cancelled. Stale pending deliveries from dead
// consumers are periodically reclaimed, which is what makes delivery
// at-least-once across process restarts.
func (b *redisBus) Subscribe(ctx context.Context, topic, group string, handler Handler) error {
	err := b.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", group, topic, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		consumer := fmt.Sprintf("%s-%d", group, i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.consumeLoop(ctx, topic, group, consumer, handler)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.claimLoop(ctx, topic, group, handler)
	}()

	wg.Wait()
	return ctx.Err()
}

func (b *redisBus) consumeLoop(ctx context.Context, topic, group, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{topic, ">"},
			Count:    1,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("ERROR: Failed to read from topic %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.dispatch(ctx, topic, group, msg, handler)
			}
		}
	}
}

// claimLoop takes over messages left pending by crashed consumers.
func (b *redisBus) claimLoop(ctx context.Context, topic, group string, handler Handler) {
	ticker := time.NewTicker(claimInterval)
	defer ticker.Stop()
	consumer := group + "-reclaim"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		msgs, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   topic,
			Group:    group,
			Consumer: consumer,
			MinIdle:  claimMinIdle,
			Start:    "0",
			Count:    10,
		}).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("ERROR: Failed to claim pending messages on %s: %v", topic, err)
			continue
		}

		for _, msg := range msgs {
			b.dispatch(ctx, topic, group, msg, handler)
		}
	}
}

func (b *redisBus) dispatch(ctx context.Context, topic, group string, msg redis.XMessage, handler Handler) {
	key, _ := msg.Values["key"].(string)
	payload, _ := msg.Values["payload"].(string)

	if err := handler(ctx, key, []byte(payload)); err != nil {
		log.Printf("ERROR: Handler failed for message %s on topic %s: %v", msg.ID, topic, err)
	}

	if err := b.client.XAck(ctx, topic, group, msg.ID).Err(); err != nil {
		log.Printf("ERROR: Failed to ack message %s on topic %s: %v", msg.ID, topic, err)
	}
}
