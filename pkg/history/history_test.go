package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
	"github.com/Laudkyle/NaviAudio/pkg/kv"
	"github.com/Laudkyle/NaviAudio/pkg/storage"
)

func clock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func result(t *testing.T, cmd, spk string) *classify.Result {
	t.Helper()
	r, err := classify.NewResult(
		classify.Field{Name: classify.FieldCommand, Label: cmd, Confidence: 0.9},
		classify.Field{Name: classify.FieldSpeaker, Label: spk, Confidence: 0.8},
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	l := New(kv.NewMemory(), WithClock(clock(time.Unix(1700000000, 0))))

	for _, cmd := range []string{"stop", "go", "left"} {
		if _, err := l.Record(ctx, NewEntry("remote", result(t, cmd, "alice"), nil, nil), nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	failed := NewEntry("remote", nil, classify.Errorf(classify.NetworkTimeout, "remote.classify", "deadline"), nil)
	if _, err := l.Record(ctx, failed, nil); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	all, err := l.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	if all[0].Outcome != OutcomeFailed || all[0].Kind != "NetworkTimeout" {
		t.Fatalf("newest = %+v", all[0])
	}
	if got := all[0].Summary(); got != "Failed: NetworkTimeout" {
		t.Fatalf("Summary = %q", got)
	}
	if got := all[1].Summary(); got != "Command: left, Speaker: alice" {
		t.Fatalf("Summary = %q", got)
	}
	if all[3].Fields[0].Label != "stop" {
		t.Fatalf("oldest = %+v", all[3])
	}
	for i := 1; i < len(all); i++ {
		if !all[i-1].At.After(all[i].At) {
			t.Fatalf("entries not newest first: %v then %v", all[i-1].At, all[i].At)
		}
	}

	two, _ := l.List(ctx, 2)
	if len(two) != 2 || two[0].ID != all[0].ID {
		t.Fatalf("List(2) = %+v", two)
	}
}

func TestGetDelete(t *testing.T) {
	ctx := context.Background()
	l := New(kv.NewMemory())
	e, err := l.Record(ctx, NewEntry("local:onnx/cmd", result(t, "stop", "bob"), nil, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.ID == "" || e.At.IsZero() {
		t.Fatalf("Record did not fill ID/At: %+v", e)
	}
	got, err := l.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Backend != "local:onnx/cmd" || !got.At.Equal(e.At) {
		t.Fatalf("Get = %+v", got)
	}
	if err := l.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := l.Get(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete = %v", err)
	}
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewMemory()
	l := New(kv.NewMemory(), WithArchive(fs))

	rec, err := pcm.NewRecording(make([]int, 1600), 16000, 1, 16)
	if err != nil {
		t.Fatal(err)
	}
	e, err := l.Record(ctx, NewEntry("remote", result(t, "go", "alice"), nil, rec), rec)
	if err != nil {
		t.Fatal(err)
	}
	if e.Recording != "recordings/"+e.ID+".wav" {
		t.Fatalf("Recording = %q", e.Recording)
	}
	if e.Duration != 100*time.Millisecond {
		t.Fatalf("Duration = %v", e.Duration)
	}
	back, err := l.Recording(ctx, e)
	if err != nil {
		t.Fatalf("Recording: %v", err)
	}
	if back.Frames() != 1600 || back.SampleRate() != 16000 {
		t.Fatalf("archived = %v", back)
	}

	if err := l.Delete(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if ok, _ := fs.Exists(ctx, e.Recording); ok {
		t.Fatal("archived recording not deleted")
	}
}

func TestArchiveSkipsEmptyRecording(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewMemory()
	l := New(kv.NewMemory(), WithArchive(fs))
	e, err := l.Record(ctx, NewEntry("remote", nil, classify.EmptyRecording, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.Recording != "" || len(fs.Names()) != 0 {
		t.Fatalf("empty recording archived: %+v %v", e, fs.Names())
	}
	if e.Kind != "EmptyRecording" {
		t.Fatalf("Kind = %q", e.Kind)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	l := New(kv.NewMemory(), WithClock(clock(time.Unix(0, 0))))
	for range 5 {
		l.Record(ctx, NewEntry("remote", result(t, "stop", "a"), nil, nil), nil)
	}
	n, err := l.Prune(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("pruned %d, want 3", n)
	}
	left, _ := l.List(ctx, 0)
	if len(left) != 2 {
		t.Fatalf("left %d, want 2", len(left))
	}
}

func TestListSkipsCorrupt(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	store.Set(ctx, kv.Key{"history", "00000000000000000001", "x"}, []byte{0xc1})
	l := New(store)
	l.Record(ctx, NewEntry("remote", result(t, "go", "a"), nil, nil), nil)
	all, err := l.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("len = %d, want 1", len(all))
	}
}
