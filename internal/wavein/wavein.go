// Package wavein loads WAV files into the 16 kHz mono int16 stream the
// analysis core consumes. It backs the offline replay mode; live input comes
// from the capture package.
package wavein

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/luminode/beatcore/internal/config"
)

// Clip is a fully decoded file, ready to replay in producer-sized blocks.
type Clip struct {
	Samples    []int16
	SampleRate int // always config.SampleRate after Load
	SourceRate int // rate of the file on disk
}

// Load decodes path, downmixes to mono, and resamples to the core's rate.
func Load(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%s: missing format", path)
	}

	srcRate := buf.Format.SampleRate
	mono := monoMix(buf, int(dec.BitDepth)-16)

	out := mono
	if srcRate != config.SampleRate {
		out = resample(mono, srcRate, config.SampleRate)
	}

	return &Clip{Samples: out, SampleRate: config.SampleRate, SourceRate: srcRate}, nil
}

// monoMix averages channels and scales whatever bit depth the file uses up
// or down to int16.
func monoMix(buf *audio.IntBuffer, shift int) []int16 {
	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels

	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int64
		for ch := 0; ch < channels; ch++ {
			sum += int64(buf.Data[i*channels+ch])
		}
		s := sum / int64(channels)
		switch {
		case shift > 0:
			s >>= shift
		case shift < 0:
			s <<= -shift
		}
		mono[i] = int16(clampInt64(s, -32768, 32767))
	}
	return mono
}

// Blocks invokes fn with successive producer-sized blocks until the clip is
// exhausted. The final block may be short.
func (c *Clip) Blocks(size int, fn func(block []int16)) {
	if size <= 0 || size > config.MaxBlockSamples {
		size = config.MaxBlockSamples
	}
	for off := 0; off < len(c.Samples); off += size {
		end := off + size
		if end > len(c.Samples) {
			end = len(c.Samples)
		}
		fn(c.Samples[off:end])
	}
}

// DurationSeconds returns the clip length at the core rate.
func (c *Clip) DurationSeconds() float64 {
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// resample converts between rates by linear interpolation. Beat tracking
// cares about timing, not fidelity, so a polyphase filter would be wasted
// here.
func resample(in []int16, from, to int) []int16 {
	if from == to || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]int16, n)
	ratio := float64(from) / float64(to)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(in[j])*(1-frac) + float64(in[j+1])*frac)
	}
	return out
}

func clampInt64(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
