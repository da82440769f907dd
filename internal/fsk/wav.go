package fsk

import (
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/datatone/tonewire/internal/errors"
)

const (
	wavBitDepth = 16
	wavChannels = 1
)

// WriteWAV saves samples as a 16-bit mono PCM WAV file, creating parent
// directories as needed.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	wrap := func(err error) error {
		return errors.New(err).
			Component("fsk").
			Category(errors.CategoryFileIO).
			FileContext(path, -1).
			Build()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return wrap(err)
		}
	}

	outFile, err := os.Create(path)
	if err != nil {
		return wrap(err)
	}

	enc := wav.NewEncoder(outFile, sampleRate, wavBitDepth, wavChannels, 1)
	buf := &audio.IntBuffer{
		Data:           FloatsToPCM16(samples),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: wavChannels},
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = outFile.Close()
		return wrap(err)
	}
	// Close finalizes the RIFF header; it does not close the file.
	if err := enc.Close(); err != nil {
		_ = outFile.Close()
		return wrap(err)
	}
	if err := outFile.Close(); err != nil {
		return wrap(err)
	}
	return nil
}

// ReadWAV loads a PCM WAV file and returns mono float32 samples plus the
// file's sample rate. 16, 24, and 32 bit depths are accepted; stereo input
// is averaged down to mono.
func ReadWAV(path string) ([]float32, int, error) {
	wrap := func(err error) error {
		return errors.New(err).
			Component("fsk").
			Category(errors.CategoryFileIO).
			FileContext(path, -1).
			Build()
	}

	inFile, err := os.Open(path)
	if err != nil {
		return nil, 0, wrap(err)
	}
	defer inFile.Close()

	dec := wav.NewDecoder(inFile)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, 0, errors.Newf("not a valid WAV file: %s", path).
			Component("fsk").
			Category(errors.CategoryFileIO).
			Build()
	}

	divisor, err := sampleDivisor(int(dec.BitDepth))
	if err != nil {
		return nil, 0, err
	}
	channels := int(dec.NumChans)
	if channels < 1 || channels > 2 {
		return nil, 0, errors.Newf("unsupported channel count %d in %s", channels, path).
			Component("fsk").
			Category(errors.CategoryFileIO).
			Build()
	}

	buf := &audio.IntBuffer{Data: make([]int, 8192)}
	var out []float32
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, 0, wrap(err)
		}
		if n == 0 {
			break
		}
		chunk := buf.Data[:n]
		if channels == 1 {
			for _, v := range chunk {
				out = append(out, float32(v)/divisor)
			}
			continue
		}
		for i := 0; i+1 < len(chunk); i += 2 {
			mixed := (float32(chunk[i]) + float32(chunk[i+1])) / 2
			out = append(out, mixed/divisor)
		}
	}
	return out, int(dec.SampleRate), nil
}

// sampleDivisor returns the normalization divisor for a PCM bit depth.
func sampleDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	default:
		return 0, errors.Newf("unsupported bit depth %d: expected 16, 24, or 32", bitDepth).
			Component("fsk").
			Category(errors.CategoryValidation).
			Build()
	}
}
