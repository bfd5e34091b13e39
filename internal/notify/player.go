package notify

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

const playbackRate = beep.SampleRate(44100)

// Player plays mp3 files on the default output device. The speaker is
// initialised once at a fixed rate and every file is resampled to it.
type Player struct {
	mu     sync.Mutex
	inited bool
}

func NewPlayer() *Player {
	return &Player{}
}

func (p *Player) init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inited {
		return nil
	}
	if err := speaker.Init(playbackRate, playbackRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	p.inited = true
	return nil
}

// Play blocks until path has been played or ctx is done.
func (p *Player) Play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	if err := p.init(); err != nil {
		return err
	}

	var s beep.Streamer = streamer
	if format.SampleRate != playbackRate {
		s = beep.Resample(4, format.SampleRate, playbackRate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
