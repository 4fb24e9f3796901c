package progress

import (
	"sync"
	"time"
)

// Phase is a named step in the upload/processing state machine.
type Phase string

const (
	PhaseUploading   Phase = "UPLOADING"
	PhaseThumbnail   Phase = "THUMBNAIL"
	PhaseProcessing  Phase = "PROCESSING"
	PhaseTranscoding Phase = "TRANSCODING"
	PhaseCompleted   Phase = "COMPLETED"
	PhaseFailed      Phase = "FAILED"
)

// Terminal reports whether no further phase transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Session is the point-in-time progress snapshot for one upload.
// Sessions live only in memory; a restart loses them and pollers must
// treat a missing session as expired.
type Session struct {
	UploadID      string    `json:"uploadId"`
	FileName      string    `json:"fileName"`
	TotalBytes    int64     `json:"totalBytes"`
	UploadedBytes int64     `json:"uploadedBytes"`
	Percentage    int       `json:"percentage"`
	Phase         Phase     `json:"phase"`
	Message       string    `json:"message"`
	StartedAt     time.Time `json:"startedAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	ResultAssetID string    `json:"resultAssetId,omitempty"`
}

// Options tune session retention. Zero values fall back to the defaults
// used in production.
type Options struct {
	CompletedTTL  time.Duration // retention after Complete
	FailedTTL     time.Duration // retention after Fail
	SweepInterval time.Duration // cadence of the stale-session sweep
	StaleAfter    time.Duration // idle age at which the sweep evicts
	Now           func() time.Time
}

const (
	defaultCompletedTTL  = time.Hour
	defaultFailedTTL     = 30 * time.Minute
	defaultSweepInterval = 30 * time.Minute
	defaultStaleAfter    = 2 * time.Hour
)

// Tracker is a thread-safe in-memory store of upload sessions. The
// ingesting call writes, polling readers read, and a background sweep
// evicts sessions leaked by crashed in-flight uploads.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timers   map[string]*time.Timer
	opts     Options
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTracker creates a Tracker and starts its background sweep.
func NewTracker(opts Options) *Tracker {
	if opts.CompletedTTL <= 0 {
		opts.CompletedTTL = defaultCompletedTTL
	}
	if opts.FailedTTL <= 0 {
		opts.FailedTTL = defaultFailedTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = defaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Tracker{
		sessions: make(map[string]*Session),
		timers:   make(map[string]*time.Timer),
		opts:     opts,
		stop:     make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Create registers a new session in phase UPLOADING.
func (t *Tracker) Create(uploadID, fileName string, totalBytes int64) Session {
	now := t.opts.Now()
	s := &Session{
		UploadID:      uploadID,
		FileName:      fileName,
		TotalBytes:    totalBytes,
		Phase:         PhaseUploading,
		Message:       "Upload started",
		StartedAt:     now,
		LastUpdatedAt: now,
	}
	t.mu.Lock()
	t.sessions[uploadID] = s
	t.mu.Unlock()
	return *s
}

// Get returns a snapshot of the session. The second return is false when
// the session expired or never existed; pollers treat that as terminal.
func (t *Tracker) Get(uploadID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[uploadID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// AdvanceBytes records the cumulative byte count read so far and derives
// the percentage. Called on the upload call stack, so progress is exact,
// not sampled.
func (t *Tracker) AdvanceBytes(uploadID string, uploadedBytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[uploadID]
	if !ok || s.Phase.Terminal() {
		return
	}
	s.UploadedBytes = uploadedBytes
	if s.TotalBytes > 0 {
		s.Percentage = int(uploadedBytes * 100 / s.TotalBytes)
	}
	s.LastUpdatedAt = t.opts.Now()
}

// SetPhase advances the session to a new non-terminal phase.
func (t *Tracker) SetPhase(uploadID string, phase Phase, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[uploadID]
	if !ok || s.Phase.Terminal() {
		return
	}
	s.Phase = phase
	s.Message = message
	s.LastUpdatedAt = t.opts.Now()
}

// Complete marks the session COMPLETED with the resulting asset id and
// schedules eviction after the completed-session retention window.
func (t *Tracker) Complete(uploadID, assetID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[uploadID]
	if !ok {
		return
	}
	s.Phase = PhaseCompleted
	s.Message = "Video upload completed successfully"
	s.Percentage = 100
	s.ResultAssetID = assetID
	s.LastUpdatedAt = t.opts.Now()
	t.scheduleEvictionLocked(uploadID, t.opts.CompletedTTL)
}

// Fail marks the session FAILED with the error message and schedules
// eviction after the failed-session retention window.
func (t *Tracker) Fail(uploadID, errMessage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[uploadID]
	if !ok {
		return
	}
	s.Phase = PhaseFailed
	s.Message = "Upload failed: " + errMessage
	s.LastUpdatedAt = t.opts.Now()
	t.scheduleEvictionLocked(uploadID, t.opts.FailedTTL)
}

// Remove drops the session immediately.
func (t *Tracker) Remove(uploadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(uploadID)
}

// Stop halts the sweep loop and cancels pending eviction timers.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *Tracker) scheduleEvictionLocked(uploadID string, after time.Duration) {
	if prev, ok := t.timers[uploadID]; ok {
		prev.Stop()
	}
	t.timers[uploadID] = time.AfterFunc(after, func() {
		t.Remove(uploadID)
	})
}

func (t *Tracker) removeLocked(uploadID string) {
	delete(t.sessions, uploadID)
	if timer, ok := t.timers[uploadID]; ok {
		timer.Stop()
		delete(t.timers, uploadID)
	}
}

// sweepLoop evicts sessions untouched for longer than StaleAfter. This is
// a safety net for uploads that crashed mid-flight and never reached a
// terminal phase.
func (t *Tracker) sweepLoop() {
	ticker := time.NewTicker(t.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	cutoff := t.opts.Now().Add(-t.opts.StaleAfter)
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.sessions {
		if s.LastUpdatedAt.Before(cutoff) {
			t.removeLocked(id)
		}
	}
}
