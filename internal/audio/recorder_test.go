package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() RecorderConfig {
	return RecorderConfig{
		SampleRate: 1000,
		FrameSize:  10, // 10ms
		SilenceRMS: 0.1,
		Silence:    30 * time.Millisecond,
		Wait:       50 * time.Millisecond,
		MaxLength:  200 * time.Millisecond,
	}
}

func frame(level float32) []float32 {
	f := make([]float32, 10)
	for i := range f {
		f[i] = level
	}
	return f
}

func TestSegmenterNoSpeech(t *testing.T) {
	seg := newSegmenter(testConfig())

	n := 0
	for !seg.push(frame(0)) {
		n++
	}
	assert.Equal(t, 4, n, "gives up after the wait window")
	assert.Nil(t, seg.utterance())
}

func TestSegmenterStopsAfterPause(t *testing.T) {
	seg := newSegmenter(testConfig())

	assert.False(t, seg.push(frame(0)))
	assert.False(t, seg.push(frame(0.5)))
	assert.False(t, seg.push(frame(0.5)))
	assert.False(t, seg.push(frame(0)))
	assert.False(t, seg.push(frame(0)))
	assert.True(t, seg.push(frame(0)))

	assert.Len(t, seg.utterance(), 50, "leading silence is dropped")
}

func TestSegmenterMaxLength(t *testing.T) {
	seg := newSegmenter(testConfig())

	n := 1
	for !seg.push(frame(0.5)) {
		n++
	}
	assert.Equal(t, 20, n)
	assert.Len(t, seg.utterance(), 200)
}

func TestFrameRMS(t *testing.T) {
	assert.InDelta(t, 0.5, frameRMS(frame(-0.5)), 1e-6)
	assert.Zero(t, frameRMS(nil))
}
