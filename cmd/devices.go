package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/bz888/cognix/internal/speech/mic"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices for speech.device_index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := mic.InputDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No input devices found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tCHANNELS\tRATE\t")
		for _, d := range devices {
			name := d.Name
			if d.Default {
				name += " (default)"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%.0f\t\n", d.Index, name, d.Channels, d.SampleRate)
		}
		return w.Flush()
	},
}
