package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Laudkyle/NaviAudio/pkg/audio/wav"
	"github.com/Laudkyle/NaviAudio/pkg/cli"
	"github.com/Laudkyle/NaviAudio/pkg/history"
)

var (
	historyLimit int
	historyKeep  int
	historyOut   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past classifications",
	Long: `Inspect past classifications.

Every finished record, classify and serve cycle is stored in the history
log, newest first.

Examples:
  navi history list --limit 10
  navi history show <id>
  navi history export <id> -w utterance.wav
  navi history prune --keep 100`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past classifications, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(h *history.Log) error {
			entries, err := h.List(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			return output(historyView(entries))
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one classification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(h *history.Log) error {
			e, err := h.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output(e)
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write the archived recording of a classification as WAV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyOut == "" {
			return errors.New("--wav is required")
		}
		return withHistory(cmd, func(h *history.Log) error {
			e, err := h.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec, err := h.Recording(cmd.Context(), e)
			if err != nil {
				return err
			}
			f, err := os.Create(historyOut)
			if err != nil {
				return err
			}
			if err := wav.Encode(f, rec); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			cli.PrintSuccess("Wrote %s (%s)", historyOut, cli.FormatDuration(rec.Duration()))
			return nil
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one classification and its recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(h *history.Log) error {
			if err := h.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Entry %q deleted\n", args[0])
			return nil
		})
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(h *history.Log) error {
			n, err := h.Prune(cmd.Context(), historyKeep)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d entries\n", n)
			return nil
		})
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of entries (0 for all)")
	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 100, "number of newest entries to keep")
	historyExportCmd.Flags().StringVarP(&historyOut, "wav", "w", "", "output WAV file")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

// withHistory opens the history log for the duration of fn.
func withHistory(cmd *cobra.Command, fn func(*history.Log) error) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	h, closeHist, err := openHistory(cmd.Context(), cfg, logger())
	if err != nil {
		return err
	}
	defer closeHist()
	if h == nil {
		return errors.New("history is disabled in the configuration")
	}
	return fn(h)
}

// historyView is a history listing as command output.
type historyView []history.Entry

func (v historyView) Table() ([]string, [][]string) {
	rows := make([][]string, len(v))
	for i, e := range v {
		rows[i] = []string{
			e.ID,
			e.At.Local().Format(time.DateTime),
			e.Summary(),
			e.Backend,
			cli.FormatDuration(e.Duration),
		}
	}
	return []string{"ID", "AT", "RESULT", "BACKEND", "DURATION"}, rows
}
