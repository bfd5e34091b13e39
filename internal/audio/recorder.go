package audio

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

type RecorderConfig struct {
	SampleRate int
	FrameSize  int
	// SilenceRMS is the frame energy below which a frame counts as silence.
	SilenceRMS float64
	// Silence is the trailing pause that ends an utterance.
	Silence time.Duration
	// Wait is how long to wait for speech to start before giving up.
	Wait      time.Duration
	MaxLength time.Duration
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		SampleRate: 16000,
		FrameSize:  320, // 20ms
		SilenceRMS: 0.015,
		Silence:    600 * time.Millisecond,
		Wait:       8 * time.Second,
		MaxLength:  15 * time.Second,
	}
}

type Recorder struct {
	cfg RecorderConfig
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = def.FrameSize
	}
	if cfg.SilenceRMS <= 0 {
		cfg.SilenceRMS = def.SilenceRMS
	}
	if cfg.Silence <= 0 {
		cfg.Silence = def.Silence
	}
	if cfg.Wait <= 0 {
		cfg.Wait = def.Wait
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) SampleRate() int { return r.cfg.SampleRate }

// Record captures one utterance from the default input device: it waits for
// speech, then stops after a trailing pause. A nil slice means nobody spoke.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	buf := make([]float32, r.cfg.FrameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	seg := newSegmenter(r.cfg)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		if seg.push(buf) {
			break
		}
	}

	return seg.utterance(), nil
}

// segmenter is a small energy based voice activity detector over fixed frames.
type segmenter struct {
	threshold float64

	waitFrames    int
	silenceFrames int
	maxFrames     int

	frames   int
	silent   int
	speaking bool
	out      []float32
}

func newSegmenter(cfg RecorderConfig) *segmenter {
	frameDur := time.Duration(cfg.FrameSize) * time.Second / time.Duration(cfg.SampleRate)
	frames := func(d time.Duration) int {
		n := int(d / frameDur)
		if n < 1 {
			n = 1
		}
		return n
	}

	return &segmenter{
		threshold:     cfg.SilenceRMS,
		waitFrames:    frames(cfg.Wait),
		silenceFrames: frames(cfg.Silence),
		maxFrames:     frames(cfg.MaxLength),
	}
}

// push feeds one frame and reports whether recording is over.
func (s *segmenter) push(frame []float32) bool {
	s.frames++

	if frameRMS(frame) > s.threshold {
		s.speaking = true
		s.silent = 0
		s.out = append(s.out, frame...)
	} else if s.speaking {
		s.silent++
		s.out = append(s.out, frame...)
		if s.silent >= s.silenceFrames {
			return true
		}
	} else if s.frames >= s.waitFrames {
		return true
	}

	return s.frames >= s.maxFrames
}

func (s *segmenter) utterance() []float32 {
	if !s.speaking {
		return nil
	}
	return s.out
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
