package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Laudkyle/NaviAudio/pkg/cli"
	"github.com/Laudkyle/NaviAudio/pkg/session"
)

var (
	recordReplay   string
	recordDuration time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one utterance and classify it",
	Long: `Record one utterance and classify it.

The microphone opens immediately (press) and closes when Enter is
pressed or --duration elapses (release). The recording is then turned
into features and classified by the configured backend.

With --replay, a WAV file is played back in real time in place of the
microphone; without --duration the whole file is recorded.

Examples:
  navi record
  navi record --duration 2s
  navi record --replay utterance.wav --format json`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordReplay, "replay", "", "replay a WAV file instead of the microphone")
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 0, "hold for this long instead of waiting for Enter")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	log := logger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	backend, err := newBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	capt, replayed, err := newCapture(cfg, recordReplay, log)
	if err != nil {
		return err
	}

	hist, closeHist, err := openHistory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeHist()

	ctrl, err := session.New(capt, backend,
		session.WithLogger(log),
		session.WithObserver(func(s session.State) {
			fmt.Fprintln(os.Stderr, cli.RenderState(s))
		}),
	)
	if err != nil {
		return err
	}

	if err := ctrl.Press(ctx); err != nil {
		s := ctrl.State()
		recordState(ctx, hist, cfg.History.Keep, s, log)
		if s.Phase == session.Failed {
			if err := output(stateView{s}); err != nil {
				return err
			}
		}
		return err
	}

	hold := recordDuration
	if hold <= 0 && replayed != nil {
		hold = replayed.Duration()
	}
	if err := waitRelease(ctx, hold); err != nil {
		cli.PrintVerbose(verbose, "releasing early: %v", err)
	}

	s, err := ctrl.Release(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	recordState(ctx, hist, cfg.History.Keep, s, log)
	if err := output(stateView{s}); err != nil {
		return err
	}
	if s.Err != nil {
		return s.Err
	}
	return nil
}

// waitRelease blocks for hold, or until a line is read from stdin when
// hold is zero. It returns early with ctx's error.
func waitRelease(ctx context.Context, hold time.Duration) error {
	if hold > 0 {
		t := time.NewTimer(hold)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fmt.Fprintln(os.Stderr, "Press Enter to stop recording")
	line := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		line <- err
	}()
	select {
	case <-line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stateView is a session state as command output.
type stateView struct {
	session.State
}

func (v stateView) Table() ([]string, [][]string) {
	return []string{"PHASE", "RESULT", "BACKEND", "DURATION"}, [][]string{{
		v.Phase.String(),
		v.Message(),
		v.Backend,
		cli.FormatDuration(v.Recording.Duration()),
	}}
}
