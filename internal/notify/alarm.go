package notify

import (
	"context"
	"fmt"
	log "log/slog"

	"agenda/internal/store"
)

type Sound interface {
	Play(ctx context.Context, path string) error
}

type Volume interface {
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, percent int) error
}

// Alarm sounds an alarm at a raised volume and puts the previous volume back
// afterwards.
type Alarm struct {
	sound  Sound
	volume Volume
	path   string
	level  int
}

// NewAlarm plays path at level percent. A nil volume or a level <= 0 leaves
// the mixer alone.
func NewAlarm(sound Sound, volume Volume, path string, level int) *Alarm {
	return &Alarm{sound: sound, volume: volume, path: path, level: level}
}

func (a *Alarm) Alert(ctx context.Context, alarm store.Alarm) error {
	if a.volume != nil && a.level > 0 {
		prev, err := a.volume.Volume(ctx)
		if err != nil {
			log.Warn("Failed to read volume", "err", err)
		} else if prev != a.level {
			if err := a.volume.SetVolume(ctx, a.level); err != nil {
				log.Warn("Failed to raise volume", "err", err)
			} else {
				defer a.restore(prev)
			}
		}
	}

	if err := a.sound.Play(ctx, a.path); err != nil {
		return fmt.Errorf("alarm %s %s: %w", alarm.Day, alarm.Time, err)
	}
	return nil
}

// restore runs with a fresh context so a cancelled alarm still gives the
// volume back.
func (a *Alarm) restore(prev int) {
	if err := a.volume.SetVolume(context.Background(), prev); err != nil {
		log.Warn("Failed to restore volume", "volume", prev, "err", err)
	}
}

// Cue plays a short sound, used before the microphone opens.
type Cue struct {
	sound Sound
	path  string
}

func NewCue(sound Sound, path string) *Cue {
	return &Cue{sound: sound, path: path}
}

func (c *Cue) Play(ctx context.Context) error {
	if c == nil || c.path == "" {
		return nil
	}
	return c.sound.Play(ctx, c.path)
}
