package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// TargetRate is the rate every decoder resamples to.
const TargetRate = 16000

type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOgg     Format = "ogg"
	FormatUnknown Format = ""
)

var ErrUnsupported = errors.New("unsupported audio format")

type Options struct {
	MaxSamples int
}

// ConvertFileToPCM16k decodes a wav, mp3 or ogg (vorbis or opus) voice note
// into mono 16 kHz float32 samples.
func ConvertFileToPCM16k(ctx context.Context, path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(ctx, f, filepath.Ext(path), opt)
}

// Decode picks the decoder from the extension ext, falling back to the
// leading magic bytes of r.
func Decode(ctx context.Context, r io.ReadSeeker, ext string, opt Options) ([]float32, error) {
	magic, _ := bufio.NewReader(r).Peek(4)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	format := sniff(ext, magic)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		pcm      []float32
		channels int
		rate     int
		err      error
	)
	switch format {
	case FormatWAV:
		pcm, channels, rate, err = decodeWAV(r)
	case FormatMP3:
		pcm, channels, rate, err = decodeMP3(r)
	case FormatOgg:
		pcm, channels, rate, err = decodeOggVorbis(r)
		if err != nil {
			if _, e2 := r.Seek(0, io.SeekStart); e2 != nil {
				return nil, e2
			}
			var e3 error
			pcm, channels, rate, e3 = decodeOggOpus(r)
			if e3 != nil {
				return nil, fmt.Errorf("cannot decode ogg as vorbis (%v) or opus: %w", err, e3)
			}
			err = nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	return finish(pcm, channels, rate, opt), nil
}

func sniff(ext string, magic []byte) Format {
	switch strings.ToLower(ext) {
	case ".wav":
		return FormatWAV
	case ".mp3":
		return FormatMP3
	case ".ogg", ".oga", ".opus":
		return FormatOgg
	}

	switch {
	case bytes.HasPrefix(magic, []byte("RIFF")):
		return FormatWAV
	case bytes.HasPrefix(magic, []byte("OggS")):
		return FormatOgg
	case bytes.HasPrefix(magic, []byte("ID3")), len(magic) >= 2 && magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

// finish downmixes, resamples to TargetRate and truncates.
func finish(x []float32, channels, rate int, opt Options) []float32 {
	if channels > 1 {
		x = downmixInterleaved(x, channels)
	}
	if rate > 0 && rate != TargetRate {
		x = resampleLinear(x, rate, TargetRate)
	}
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, 0, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, err
	}
	if pb == nil || pb.Data == nil {
		return nil, 0, 0, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}

	ch, sr := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	return intSliceToFloat32(pb.Data, bd), ch, sr, nil
}

// mp3 decodes to 16-bit little-endian stereo.
func decodeMP3(r io.Reader) ([]float32, int, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, 0, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, 0, err
	}
	ints := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw[:len(ints)*2]), binary.LittleEndian, &ints); err != nil {
		return nil, 0, 0, err
	}

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return int16SliceToFloat32(ints), 2, sr, nil
}

func decodeOggVorbis(r io.Reader) ([]float32, int, int, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, 0, 0, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, 0, 0, errors.New("invalid ogg/vorbis stream")
	}
	return pcm, format.Channels, format.SampleRate, nil
}

// opus always decodes at 48 kHz.
func decodeOggOpus(r io.ReadSeeker) ([]float32, int, int, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, 0, 0, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var (
		pcm []float32
		buf = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf) // samples per channel
		if n > 0 {
			pcm = append(pcm, int16SliceToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, err
		}
	}
	return pcm, ch, 48000, nil
}
