package audioconv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, path string, rate, frames int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, 0, frames*2)
	for i := 0; i < frames; i++ {
		data = append(data, 16384, 0)
	}

	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestConvertWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nota.wav")
	writeWAV(t, path, 32000, 3200)

	pcm, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, pcm, 1600)
	assert.InDelta(t, 0.25, pcm[800], 1e-4)

	pcm, err = ConvertFileToPCM16k(context.Background(), path, Options{MaxSamples: 100})
	require.NoError(t, err)
	assert.Len(t, pcm, 100)
}

func TestConvertSniffsWithoutExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nota")
	writeWAV(t, path, 16000, 160)

	pcm, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Len(t, pcm, 160)
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode(context.Background(), bytes.NewReader([]byte("hello world")), ".txt", Options{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSniff(t *testing.T) {
	cases := []struct {
		ext   string
		magic string
		want  Format
	}{
		{".WAV", "", FormatWAV},
		{".mp3", "", FormatMP3},
		{".opus", "", FormatOgg},
		{"", "RIFF", FormatWAV},
		{"", "OggS", FormatOgg},
		{"", "ID3\x04", FormatMP3},
		{"", "\xff\xfb\x90\x00", FormatMP3},
		{"", "%PDF", FormatUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, sniff(c.ext, []byte(c.magic)), "%q %q", c.ext, c.magic)
	}
}

func TestDownmixAndResample(t *testing.T) {
	assert.Equal(t, []float32{0.5, 0}, downmixInterleaved([]float32{1, 0, -0.5, 0.5}, 2))

	up := resampleLinear([]float32{0, 1}, 1, 2)
	assert.Equal(t, []float32{0, 0.5, 1, 1}, up)

	same := []float32{1, 2, 3}
	assert.Equal(t, same, resampleLinear(same, 16000, 16000))
}
