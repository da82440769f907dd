package level

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datatone/tonewire/internal/audio"
	"github.com/datatone/tonewire/internal/conf"
	"github.com/datatone/tonewire/internal/errors"
	"github.com/datatone/tonewire/internal/modem"
)

// meterWidth is the width of the rendered level bar in characters.
const meterWidth = 50

// window is how much audio each meter reading averages over.
const window = 100 * time.Millisecond

// Command creates the level command, a live input level meter for aiming
// and volume adjustment before a transfer.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Show a live input level meter",
		Long: `Continuously measure the RMS level of the capture device and render it
as a meter. Use it to position devices and set volumes so the signal sits
well above the noise floor. Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeter(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the level command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Realtime.Audio.Source, "source", viper.GetString("realtime.audio.source"), "Capture device name (empty for system default)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

func runMeter(settings *conf.Settings) error {
	codec, err := settings.Modem.Codec()
	if err != nil {
		return err
	}

	device := audio.NewMalgoDevice(settings.Realtime.Audio.Source, settings.Realtime.Audio.Playback)
	rx, err := modem.NewReceiver(settings, codec, device, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Input level (threshold %.3f). Press Ctrl+C to stop.\n", settings.Receiver.NoiseThreshold)

	threshold := modem.LevelScale(settings.Receiver.NoiseThreshold)
	for {
		level, err := rx.InputLevel(ctx, window)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.IsCategory(err, errors.CategoryCancellation) {
				fmt.Println()
				return nil
			}
			fmt.Println()
			return err
		}
		fmt.Printf("\r%s rms %.4f ", renderBar(modem.LevelScale(level), threshold), level)
	}
}

// renderBar draws a fixed-width meter with a marker at the noise threshold.
func renderBar(scaled, threshold float64) string {
	filled := int(scaled / 100 * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	mark := int(threshold / 100 * meterWidth)
	if mark >= meterWidth {
		mark = meterWidth - 1
	}

	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < meterWidth; i++ {
		switch {
		case i == mark:
			b.WriteByte('|')
		case i < filled:
			b.WriteByte('#')
		default:
			b.WriteByte(' ')
		}
	}
	b.WriteByte(']')
	return b.String()
}
