package commands

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Laudkyle/NaviAudio/pkg/classify"
	"github.com/Laudkyle/NaviAudio/pkg/cli"
	"github.com/Laudkyle/NaviAudio/pkg/history"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file.wav>",
	Short: "Classify a recorded WAV file",
	Long: `Classify a recorded WAV file with the configured backend.

The file goes through the same feature extraction as a live recording.
Local backends are waited on until their weights are loaded.

Examples:
  navi classify utterance.wav
  navi classify utterance.wav --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

// classifyView is the output of navi classify.
type classifyView struct {
	ID       string           `json:"id"`
	File     string           `json:"file"`
	Backend  string           `json:"backend"`
	Duration float64          `json:"duration"`
	Result   *classify.Result `json:"result"`
}

func (v classifyView) Table() ([]string, [][]string) {
	var rows [][]string
	for _, f := range v.Result.Fields() {
		rows = append(rows, []string{f.Name, f.Label, cli.FormatConfidence(f.Confidence)})
	}
	return []string{"FIELD", "LABEL", "CONFIDENCE"}, rows
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	log := logger()
	ctx := cmd.Context()

	rec, err := readWAV(args[0])
	if err != nil {
		return err
	}

	backend, err := newBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	hist, closeHist, err := openHistory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeHist()

	res, err := classifyRecording(ctx, backend, rec)
	entry := history.NewEntry(backend.Name(), res, err, rec)
	entry.ID = uuid.NewString()
	entry.At = time.Now()
	if hist != nil {
		recordEntry(ctx, hist, cfg.History.Keep, entry, rec, log)
	}
	if err != nil {
		return err
	}

	return output(classifyView{
		ID:       entry.ID,
		File:     args[0],
		Backend:  backend.Name(),
		Duration: rec.Duration().Seconds(),
		Result:   res,
	})
}
