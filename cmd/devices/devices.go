package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datatone/tonewire/internal/audio"
)

// Command creates the devices command for listing audio hardware.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available capture and playback devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listDevices()
		},
	}
}

func listDevices() error {
	for _, kind := range []audio.DeviceKind{audio.Capture, audio.Playback} {
		infos, err := audio.Devices(kind)
		if err != nil {
			return fmt.Errorf("listing %s devices: %w", kind, err)
		}

		fmt.Printf("%s devices:\n", kind)
		if len(infos) == 0 {
			fmt.Println("  (none found)")
			continue
		}
		for _, info := range infos {
			marker := " "
			if info.IsDefault {
				marker = "*"
			}
			fmt.Printf("  %s [%d] %s\n", marker, info.Index, info.Name)
		}
	}
	fmt.Println("\n* marks the system default. Pass a device name with --source or --device.")
	return nil
}
