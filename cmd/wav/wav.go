package wav

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datatone/tonewire/internal/bundle"
	"github.com/datatone/tonewire/internal/conf"
	"github.com/datatone/tonewire/internal/fsk"
)

// Command creates the wav command with encode and decode subcommands for
// working with signals offline.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wav",
		Short: "Encode payloads to WAV files and decode WAV recordings",
	}

	cmd.AddCommand(encodeCommand(settings))
	cmd.AddCommand(decodeCommand(settings))

	return cmd
}

// encodeCommand renders a payload into a WAV file without touching any
// audio hardware.
func encodeCommand(settings *conf.Settings) *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "encode <output.wav> [message]",
		Short: "Render a message or file into a WAV file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := loadPayload(args[1:], filePath)
			if err != nil {
				return err
			}
			return encode(settings, args[0], payload)
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Encode the contents of a file, preserving its name")

	return cmd
}

// decodeCommand recovers the payload from a WAV recording.
func decodeCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <input.wav>",
		Short: "Decode a WAV recording back into its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decode(settings, args[0])
		},
	}

	cmd.Flags().StringVarP(&settings.Output.Path, "output", "o", viper.GetString("output.path"), "Directory for decoded files")

	return cmd
}

// loadPayload assembles the frame payload from the message arguments or a
// file wrapped in an envelope.
func loadPayload(args []string, filePath string) ([]byte, error) {
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filePath, err)
		}
		packed, err := bundle.Pack(filePath, data)
		if err != nil {
			return nil, err
		}
		if len(packed) > fsk.MaxPayloadSize {
			return nil, fmt.Errorf("file too large for a single frame: %d bytes packed, limit %d", len(packed), fsk.MaxPayloadSize)
		}
		return packed, nil
	}

	message := strings.Join(args, " ")
	if message == "" {
		return nil, fmt.Errorf("nothing to encode: provide a message or --file")
	}
	return []byte(message), nil
}

func encode(settings *conf.Settings, wavPath string, payload []byte) error {
	codec, err := settings.Modem.Codec()
	if err != nil {
		return err
	}

	samples, err := codec.Encode(payload)
	if err != nil {
		return err
	}
	rate := codec.Config().SampleRate
	if err := fsk.WriteWAV(wavPath, samples, rate); err != nil {
		return err
	}

	fmt.Printf("Wrote %s: %d bytes payload, %.2f seconds at %d Hz (%s mode)\n",
		wavPath, len(payload), float64(len(samples))/float64(rate), rate, codec.Mode())
	return nil
}

func decode(settings *conf.Settings, wavPath string) error {
	codec, err := settings.Modem.Codec()
	if err != nil {
		return err
	}

	samples, rate, err := fsk.ReadWAV(wavPath)
	if err != nil {
		return err
	}

	// Recordings made elsewhere may use a different sample rate than the
	// configured mode; redo the demodulator math for the actual rate.
	if rate != codec.Config().SampleRate {
		cfg := codec.Config()
		cfg.SampleRate = rate
		codec, err = fsk.NewCodecWithConfig(cfg)
		if err != nil {
			return fmt.Errorf("recording sample rate %d Hz unusable: %w", rate, err)
		}
	}

	payload, err := codec.Decode(samples)
	if err != nil {
		return err
	}

	hdr, body, isBundle, err := bundle.Unpack(payload)
	if isBundle {
		if err != nil {
			return err
		}
		path, err := saveDecoded(settings.Output.Path, hdr.Name, body)
		if err != nil {
			return err
		}
		fmt.Printf("Decoded file %q (%d bytes) -> %s\n", hdr.Name, len(body), path)
		return nil
	}

	if !utf8.Valid(payload) {
		name := fmt.Sprintf("decoded-%s.bin", time.Now().Format("20060102-150405"))
		path, err := saveDecoded(settings.Output.Path, name, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Decoded %d binary bytes -> %s\n", len(payload), path)
		return nil
	}

	fmt.Printf("Decoded %d bytes:\n", len(payload))
	fmt.Println(string(payload))
	return nil
}

// saveDecoded writes body into dir under name, appending a numeric suffix
// when the name is already taken.
func saveDecoded(dir, name string, body []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	path := filepath.Join(dir, base)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
