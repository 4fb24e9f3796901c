package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscodeLadderExcludesOriginal(t *testing.T) {
	ladder := TranscodeLadder()
	require.Len(t, ladder, 4)
	for _, q := range ladder {
		assert.NotEqual(t, "ORIGINAL", q.Name)
		assert.NotEmpty(t, q.Resolution)
		assert.NotEmpty(t, q.Bitrate)
	}
}

func TestQualityByName(t *testing.T) {
	q, ok := QualityByName("720p")
	require.True(t, ok)
	assert.Equal(t, "1280x720", q.Resolution)
	assert.Equal(t, "3000k", q.Bitrate)

	q, ok = QualityByName("ORIGINAL")
	require.True(t, ok)
	assert.Empty(t, q.Resolution)

	_, ok = QualityByName("4K")
	assert.False(t, ok)
}
