package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datatone/tonewire/cmd/devices"
	"github.com/datatone/tonewire/cmd/level"
	"github.com/datatone/tonewire/cmd/listen"
	"github.com/datatone/tonewire/cmd/send"
	"github.com/datatone/tonewire/cmd/wav"
	"github.com/datatone/tonewire/internal/conf"
	"github.com/datatone/tonewire/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tonewire",
		Short: "Acoustic FSK data modem",
		Long:  "Move small binary payloads between devices over sound, using FSK modulation through ordinary speakers and microphones.",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	subcommands := []*cobra.Command{
		send.Command(settings),
		listen.Command(settings),
		wav.Command(settings),
		devices.Command(),
		level.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&settings.Modem.Mode, "mode", "m", viper.GetString("modem.mode"), "Modulation profile: audible, ultrasonic, minimal")
	rootCmd.PersistentFlags().Float64Var(&settings.Modem.Volume, "volume", viper.GetFloat64("modem.volume"), "Tone amplitude between 0.0 and 1.0")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
