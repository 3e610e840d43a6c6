package commands

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Laudkyle/NaviAudio/pkg/audio/capture"
	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
	"github.com/Laudkyle/NaviAudio/pkg/session"
)

func TestServeMux(t *testing.T) {
	predict, _ := predictServer(t, http.StatusOK, `{"command":"stop"}`)
	backend := classify.NewRemote(classify.WithBaseURL(predict.URL))
	format := pcm.L16Mono16K
	dev := capture.NewReplayDevice(format, format.SilenceChunk(200*time.Millisecond))
	capt := capture.New(dev, capture.WithFormat(format), capture.WithMicrophone(capture.NewMicrophone()))

	reg := prometheus.NewRegistry()
	ctrl, err := session.New(capt, backend, session.WithMetrics(session.NewMetrics(reg)))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newServeMux(ctrl, http.NotFoundHandler(), reg))
	defer srv.Close()

	get := func(path string) string {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}

	if body := get("/healthz"); body != "ok" {
		t.Fatalf("healthz = %q", body)
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(get("/state")), &state); err != nil {
		t.Fatal(err)
	}
	if state["phase"] != "idle" || state["message"] != session.MessageIdle {
		t.Fatalf("state = %v", state)
	}

	ctx := context.Background()
	if err := ctrl.Press(ctx); err != nil {
		t.Fatal(err)
	}
	s, err := ctrl.Release(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Phase != session.Ready {
		t.Fatalf("phase = %v (%v)", s.Phase, s.Err)
	}

	if err := json.Unmarshal([]byte(get("/state")), &state); err != nil {
		t.Fatal(err)
	}
	if state["phase"] != "ready" {
		t.Fatalf("state = %v", state)
	}

	metrics := get("/metrics")
	for _, name := range []string{"navi_sessions_total", "navi_stage_duration_seconds", "navi_session_active"} {
		if !strings.Contains(metrics, name) {
			t.Errorf("metric %s missing", name)
		}
	}
}

func TestHistoryRecorderDoesNotHoldObservers(t *testing.T) {
	predict, _ := predictServer(t, http.StatusOK, `{"command":"stop"}`)
	backend := classify.NewRemote(classify.WithBaseURL(predict.URL))
	format := pcm.L16Mono16K
	dev := capture.NewReplayDevice(format, format.SilenceChunk(200*time.Millisecond))
	capt := capture.New(dev, capture.WithFormat(format), capture.WithMicrophone(capture.NewMicrophone()))
	ctrl, err := session.New(capt, backend)
	if err != nil {
		t.Fatal(err)
	}

	unblock := make(chan struct{})
	stored := make(chan session.State, 1)
	recorder := newHistoryRecorder(historyQueue, func(s session.State) {
		<-unblock
		stored <- s
	}, slog.New(slog.DiscardHandler))
	defer ctrl.Observe(recorder.Observe)()

	released := make(chan session.State, 1)
	go func() {
		ctx := context.Background()
		if err := ctrl.Press(ctx); err != nil {
			t.Error(err)
		}
		s, _ := ctrl.Release(ctx)
		released <- s
	}()

	var final session.State
	select {
	case final = <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("Release waited on the history writer")
	}
	if !final.Phase.Terminal() {
		t.Fatalf("phase = %v, want terminal", final.Phase)
	}

	close(unblock)
	recorder.Close()
	select {
	case s := <-stored:
		if s.ID != final.ID || s.Phase != final.Phase {
			t.Errorf("stored %v/%v, want %v/%v", s.ID, s.Phase, final.ID, final.Phase)
		}
	default:
		t.Fatal("Close returned before the queued state was stored")
	}
	recorder.Observe(final)
}
