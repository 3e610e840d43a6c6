// Package history keeps a log of classification outcomes.
//
// Entries are msgpack-encoded in a kv.Store under time-ordered keys, so
// listing newest first is a reverse prefix scan. When an archive
// FileStore is configured, the recording behind each entry is saved as
// recordings/<id>.wav.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/audio/wav"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
	"github.com/Laudkyle/NaviAudio/pkg/kv"
	"github.com/Laudkyle/NaviAudio/pkg/storage"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("history: not found")

// Outcomes.
const (
	OutcomeReady  = "ready"
	OutcomeFailed = "failed"
)

// Entry is one finished classification.
type Entry struct {
	ID        string           `msgpack:"id" json:"id" yaml:"id"`
	At        time.Time        `msgpack:"at" json:"at" yaml:"at"`
	Outcome   string           `msgpack:"outcome" json:"outcome" yaml:"outcome"`
	Fields    []classify.Field `msgpack:"fields,omitempty" json:"fields,omitempty" yaml:"fields,omitempty"`
	Kind      string           `msgpack:"kind,omitempty" json:"kind,omitempty" yaml:"kind,omitempty"`
	Error     string           `msgpack:"error,omitempty" json:"error,omitempty" yaml:"error,omitempty"`
	Backend   string           `msgpack:"backend,omitempty" json:"backend,omitempty" yaml:"backend,omitempty"`
	Duration  time.Duration    `msgpack:"duration" json:"duration" yaml:"duration"`
	Recording string           `msgpack:"recording,omitempty" json:"recording,omitempty" yaml:"recording,omitempty"`
}

// NewEntry builds an entry from a classification outcome. Exactly one of
// res and err is expected to be non-nil.
func NewEntry(backend string, res *classify.Result, err error, rec *pcm.Recording) Entry {
	e := Entry{Backend: backend, Duration: rec.Duration()}
	if err != nil {
		e.Outcome = OutcomeFailed
		e.Error = err.Error()
		if k, ok := classify.KindOf(err); ok {
			e.Kind = k.String()
		}
		return e
	}
	e.Outcome = OutcomeReady
	if res != nil {
		e.Fields = res.Fields()
	}
	return e
}

// Summary is a one-line description of the entry.
func (e Entry) Summary() string {
	if e.Outcome == OutcomeFailed {
		if e.Kind != "" {
			return "Failed: " + e.Kind
		}
		return "Failed"
	}
	res, err := classify.NewResult(e.Fields...)
	if err != nil {
		return "?"
	}
	return res.String()
}

// Option configures a Log.
type Option func(*Log)

// WithArchive saves recordings to fs.
func WithArchive(fs storage.FileStore) Option {
	return func(l *Log) { l.archive = fs }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Log) { l.log = log }
}

// Log is the classification history.
type Log struct {
	store   kv.Store
	archive storage.FileStore
	now     func() time.Time
	log     *slog.Logger
}

// New creates a Log on store.
func New(store kv.Store, opts ...Option) *Log {
	l := &Log{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	return l
}

var (
	entryPrefix = kv.Key{"history"}
	idPrefix    = kv.Key{"history-id"}
)

func entryKey(at time.Time, id string) kv.Key {
	return kv.Key{"history", fmt.Sprintf("%020d", at.UnixNano()), id}
}

func idKey(id string) kv.Key {
	return kv.Key{"history-id", id}
}

// Record stores e, filling ID and At when unset. With an archive and a
// non-empty rec, the recording is saved first and its path noted in the
// entry. An archive failure is logged and does not drop the entry.
func (l *Log) Record(ctx context.Context, e Entry, rec *pcm.Recording) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = l.now()
	}
	if l.archive != nil && rec.Frames() > 0 {
		name := "recordings/" + e.ID + ".wav"
		if err := l.saveRecording(ctx, name, rec); err != nil {
			l.log.Warn("archive recording", "id", e.ID, "error", err)
		} else {
			e.Recording = name
		}
	}

	data, err := msgpack.Marshal(&e)
	if err != nil {
		return e, fmt.Errorf("history: encode: %w", err)
	}
	key := entryKey(e.At, e.ID)
	if err := l.store.Set(ctx, key, data); err != nil {
		return e, fmt.Errorf("history: store: %w", err)
	}
	if err := l.store.Set(ctx, idKey(e.ID), []byte(strconv.FormatInt(e.At.UnixNano(), 10))); err != nil {
		return e, fmt.Errorf("history: index: %w", err)
	}
	return e, nil
}

func (l *Log) saveRecording(ctx context.Context, name string, rec *pcm.Recording) error {
	data, err := wav.EncodeBytes(rec)
	if err != nil {
		return err
	}
	return storage.WriteFile(ctx, l.archive, name, data)
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
// Undecodable entries are skipped.
func (l *Log) List(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	for item, err := range l.store.List(ctx, entryPrefix, kv.ListOptions{Reverse: true}) {
		if err != nil {
			return nil, fmt.Errorf("history: list: %w", err)
		}
		var e Entry
		if err := msgpack.Unmarshal(item.Value, &e); err != nil {
			l.log.Debug("skip history entry", "key", item.Key.String(), "error", err)
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Get returns the entry with the given ID.
func (l *Log) Get(ctx context.Context, id string) (Entry, error) {
	ts, err := l.store.Get(ctx, idKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("history: get: %w", err)
	}
	nanos, err := strconv.ParseInt(string(ts), 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("history: corrupt index for %s: %w", id, err)
	}
	data, err := l.store.Get(ctx, entryKey(time.Unix(0, nanos), id))
	if errors.Is(err, kv.ErrNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("history: get: %w", err)
	}
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("history: decode %s: %w", id, err)
	}
	return e, nil
}

// Recording loads the archived recording of an entry.
func (l *Log) Recording(ctx context.Context, e Entry) (*pcm.Recording, error) {
	if l.archive == nil || e.Recording == "" {
		return nil, fmt.Errorf("history: %s has no archived recording", e.ID)
	}
	data, err := storage.ReadFile(ctx, l.archive, e.Recording)
	if err != nil {
		return nil, err
	}
	return wav.DecodeBytes(data)
}

// Delete removes an entry and its archived recording.
func (l *Log) Delete(ctx context.Context, id string) error {
	e, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	if l.archive != nil && e.Recording != "" {
		if err := l.archive.Delete(ctx, e.Recording); err != nil {
			l.log.Warn("delete archived recording", "id", id, "error", err)
		}
	}
	if err := l.store.Delete(ctx, entryKey(e.At, id)); err != nil {
		return fmt.Errorf("history: delete: %w", err)
	}
	return l.store.Delete(ctx, idKey(id))
}

// Prune keeps the newest keep entries and deletes the rest. It returns the
// number removed.
func (l *Log) Prune(ctx context.Context, keep int) (int, error) {
	all, err := l.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	n := 0
	for _, e := range all[min(keep, len(all)):] {
		if err := l.Delete(ctx, e.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
