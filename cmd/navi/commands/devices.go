package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Laudkyle/NaviAudio/pkg/audio/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := portaudio.Inputs()
		if err != nil {
			return err
		}
		return output(devicesView(inputs))
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

type devicesView []portaudio.Input

func (v devicesView) Table() ([]string, [][]string) {
	rows := make([][]string, len(v))
	for i, in := range v {
		def := ""
		if in.Default {
			def = "*"
		}
		rows[i] = []string{
			def,
			in.Name,
			in.HostAPI,
			strconv.Itoa(in.MaxInputChannels),
			strconv.FormatFloat(in.DefaultSampleRate, 'f', 0, 64),
		}
	}
	return []string{"", "NAME", "HOST API", "CHANNELS", "RATE"}, rows
}
