package audio

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultSink = "@DEFAULT_SINK@"
	maxVolume   = 150
)

var (
	percentRe = regexp.MustCompile(`(\d+)\s*%`)
)

// Mixer reads and sets the volume of the default PulseAudio/PipeWire sink
// through pactl.
type Mixer struct {
	sink string
	run  func(ctx context.Context, args ...string) ([]byte, error)
}

func NewMixer() *Mixer {
	return &Mixer{sink: defaultSink, run: pactl}
}

// Volume returns the current sink volume in percent (first channel).
func (m *Mixer) Volume(ctx context.Context) (int, error) {
	out, err := m.run(ctx, "get-sink-volume", m.sink)
	if err != nil {
		return 0, fmt.Errorf("pactl get-sink-volume: %w", err)
	}
	return parseVolume(string(out))
}

func (m *Mixer) SetVolume(ctx context.Context, percent int) error {
	percent = clampVolume(percent)
	if _, err := m.run(ctx, "set-sink-volume", m.sink, fmt.Sprintf("%d%%", percent)); err != nil {
		return fmt.Errorf("pactl set-sink-volume %d%%: %w", percent, err)
	}
	return nil
}

// parseVolume extracts the first percentage of a line like
// "Volume: front-left: 32768 /  50% / -18.06 dB,   front-right: ...".
func parseVolume(out string) (int, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Volume:") {
			continue
		}
		m := percentRe.FindStringSubmatch(line)
		if len(m) < 2 {
			break
		}
		return strconv.Atoi(m[1])
	}
	return 0, fmt.Errorf("no volume in pactl output %q", strings.TrimSpace(out))
}

func clampVolume(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > maxVolume {
		return maxVolume
	}
	return percent
}

func pactl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pactl", args...).Output()
}
