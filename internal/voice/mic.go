package voice

import (
	"context"
	"errors"
	log "log/slog"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultListenTimeout = 10 * time.Second
	transcribeTimeout    = 60 * time.Second
	errorBackoff         = time.Second
)

// whisper marks non-speech as "[BLANK_AUDIO]", "(música)" and the like.
var annotationRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\*[^*]*\*`)

type Recorder interface {
	Record(ctx context.Context) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

type Cue interface {
	Play(ctx context.Context) error
}

// Mic listens on the microphone and transcribes one utterance per call.
type Mic struct {
	rec     Recorder
	stt     Transcriber
	cue     Cue
	timeout time.Duration
}

// NewMic plays cue (may be nil) before each recording and gives up after
// timeout without speech.
func NewMic(rec Recorder, stt Transcriber, cue Cue, timeout time.Duration) *Mic {
	if timeout <= 0 {
		timeout = DefaultListenTimeout
	}
	return &Mic{rec: rec, stt: stt, cue: cue, timeout: timeout}
}

func (m *Mic) Listen(ctx context.Context) (string, bool) {
	if m.cue != nil {
		if err := m.cue.Play(ctx); err != nil && ctx.Err() == nil {
			log.Warn("Failed to play cue", "err", err)
		}
	}

	log.Info("Starting listening")

	recCtx, cancel := context.WithTimeout(ctx, m.timeout)
	pcm, err := m.rec.Record(recCtx)
	cancel()
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			log.Error("Failed to record", "err", err)
			backoff(ctx)
		}
		return "", false
	}
	if len(pcm) == 0 {
		log.Debug("No speech")
		return "", false
	}

	log.Info("Recorded", "samples", len(pcm))

	sttCtx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	text, err := m.stt.Transcribe(sttCtx, pcm)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("Failed to transcribe", "err", err)
		}
		return "", false
	}

	text = Clean(text)
	log.Info("Transcribed", "text", text)
	return text, text != ""
}

// Clean lowercases a transcript and drops non-speech annotations.
func Clean(text string) string {
	text = annotationRe.ReplaceAllString(text, " ")
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func backoff(ctx context.Context) {
	t := time.NewTimer(errorBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
