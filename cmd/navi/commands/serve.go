package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Laudkyle/NaviAudio/pkg/cli"
	"github.com/Laudkyle/NaviAudio/pkg/session"
	"github.com/Laudkyle/NaviAudio/pkg/wsui"
)

var (
	serveAddr   string
	serveReplay string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the websocket gesture UI and metrics",
	Long: `Serve the press-and-hold controller over HTTP.

Endpoints:
  /ws       websocket: send {"type":"press"} / {"type":"release"},
            receive {"type":"state", ...} on every transition
  /state    current state as JSON
  /metrics  Prometheus metrics
  /healthz  liveness

Every finished cycle is stored in the history unless it is disabled.

Examples:
  navi serve
  navi serve --addr :8080 --replay utterance.wav`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default serve.addr from config)")
	serveCmd.Flags().StringVar(&serveReplay, "replay", "", "replay a WAV file on every press instead of the microphone")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	log := logger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	capt, _, err := newCapture(cfg, serveReplay, log)
	if err != nil {
		return err
	}

	hist, closeHist, err := openHistory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeHist()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctrl, err := session.New(capt, backend,
		session.WithLogger(log),
		session.WithMetrics(session.NewMetrics(reg)),
	)
	if err != nil {
		return err
	}

	ui := wsui.New(ctrl, wsui.WithLogger(log))
	defer ui.Close()

	recorder := newHistoryRecorder(historyQueue, func(s session.State) {
		recordState(context.WithoutCancel(ctx), hist, cfg.History.Keep, s, log)
	}, log)
	defer recorder.Close()
	defer ctrl.Observe(recorder.Observe)()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(ctrl, ui, reg),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", addr, "backend", backend.Name())
		errc <- srv.ListenAndServe()
	}()
	cli.PrintInfo("Listening on %s (backend %s)", addr, backend.Name())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ui.Close()
	return srv.Shutdown(shutdownCtx)
}

// newServeMux routes the serve endpoints.
func newServeMux(ctrl *session.Controller, ui http.Handler, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", ui)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ctrl.State())
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}
