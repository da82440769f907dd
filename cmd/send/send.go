package send

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datatone/tonewire/internal/audio"
	"github.com/datatone/tonewire/internal/bundle"
	"github.com/datatone/tonewire/internal/conf"
	"github.com/datatone/tonewire/internal/fsk"
	"github.com/datatone/tonewire/internal/modem"
)

// Command creates the send command for transmitting a payload over audio.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		filePath string
		wavPath  string
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Transmit a message or file over audio",
		Long: `Encode a payload into an FSK signal and play it through the configured
output device. The message is taken from the arguments, from a file with
--file (wrapped in an envelope that preserves the filename), or from stdin
when the message is "-". With --wav the rendered signal is written to a
file instead of played.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := loadPayload(args, filePath)
			if err != nil {
				return err
			}
			if wavPath != "" {
				return renderWAV(settings, payload, wavPath)
			}
			return transmit(settings, payload)
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Send the contents of a file, preserving its name")
	cmd.Flags().StringVar(&wavPath, "wav", "", "Write the rendered signal to a WAV file instead of playing it")

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the send command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Transmitter.ChunkMS, "chunkms", viper.GetInt("transmitter.chunkms"), "Playback chunk size in milliseconds")
	cmd.Flags().IntVar(&settings.Transmitter.LeadInMS, "leadin", viper.GetInt("transmitter.leadinms"), "Lead-in tone duration in milliseconds")
	cmd.Flags().IntVar(&settings.Transmitter.LeadOutMS, "leadout", viper.GetInt("transmitter.leadoutms"), "Lead-out tone duration in milliseconds")
	cmd.Flags().StringVar(&settings.Realtime.Audio.Playback, "device", viper.GetString("realtime.audio.playback"), "Playback device name (empty for system default)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

// loadPayload assembles the frame payload from the message arguments, a
// file, or stdin.
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

	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}

	message := strings.Join(args, " ")
	if message == "" {
		return nil, fmt.Errorf("nothing to send: provide a message, --file, or \"-\" for stdin")
	}
	return []byte(message), nil
}

// transmit plays the payload through the audio device, reporting progress
// on stdout.
func transmit(settings *conf.Settings, payload []byte) error {
	codec, err := settings.Modem.Codec()
	if err != nil {
		return err
	}

	device := audio.NewMalgoDevice(settings.Realtime.Audio.Source, settings.Realtime.Audio.Playback)
	tx, err := modem.NewTransmitter(settings, codec, device, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Transmitting %d bytes (%s mode, about %s)\n",
		len(payload), codec.Mode(), codec.Duration(len(payload)).Round(time.Millisecond))

	start := time.Now()
	err = tx.TransmitData(ctx, payload, func(percent int, _ modem.TxState) {
		fmt.Printf("\r%3d%%", percent)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("Sent %d bytes in %s\n", len(payload), time.Since(start).Round(10*time.Millisecond))
	return nil
}

// renderWAV writes the encoded signal to a WAV file for offline playback.
func renderWAV(settings *conf.Settings, payload []byte, wavPath string) error {
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

	fmt.Printf("Wrote %s: %d samples, %.2f seconds at %d Hz\n",
		wavPath, len(samples), float64(len(samples))/float64(rate), rate)
	return nil
}
