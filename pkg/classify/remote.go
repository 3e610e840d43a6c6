package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/audio/wav"
)

const (
	// DefaultRemoteURL is the hosted prediction server.
	DefaultRemoteURL = "https://navi-audio-server.onrender.com"

	// DefaultRemoteTimeout bounds a single prediction request.
	DefaultRemoteTimeout = 10 * time.Second

	// DefaultRemoteWindow is the waveform length the remote contract
	// declares.
	DefaultRemoteWindow = time.Second

	predictPath    = "/predict"
	uploadFilename = "recording.wav"
	maxReplyBytes  = 1 << 20
)

type remoteConfig struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	sampleRate int
	window     time.Duration
	logger     *slog.Logger
}

// RemoteOption configures a Remote backend.
type RemoteOption func(*remoteConfig)

// WithBaseURL sets the server base URL.
func WithBaseURL(url string) RemoteOption {
	return func(c *remoteConfig) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets the HTTP client. Its own Timeout is left untouched;
// the request deadline comes from WithTimeout.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(c *remoteConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the deadline for one prediction request.
func WithTimeout(timeout time.Duration) RemoteOption {
	return func(c *remoteConfig) {
		c.timeout = timeout
	}
}

// WithWaveform sets the sample rate and window of the declared waveform
// contract.
func WithWaveform(sampleRate int, window time.Duration) RemoteOption {
	return func(c *remoteConfig) {
		c.sampleRate = sampleRate
		c.window = window
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RemoteOption {
	return func(c *remoteConfig) {
		c.logger = l
	}
}

// Remote classifies by uploading the recording to a prediction server.
//
// The server receives the original recording as a WAV file, so the
// tensor is only used for its source; Remote still declares a waveform
// contract and enforces it so every backend sees the same input.
type Remote struct {
	cfg   remoteConfig
	shape Shape
	log   *slog.Logger
}

var _ Backend = (*Remote)(nil)

// NewRemote creates a Remote backend.
func NewRemote(opts ...RemoteOption) *Remote {
	cfg := remoteConfig{
		baseURL:    DefaultRemoteURL,
		timeout:    DefaultRemoteTimeout,
		sampleRate: 16000,
		window:     DefaultRemoteWindow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.sampleRate <= 0 {
		cfg.sampleRate = 16000
	}
	if cfg.window <= 0 {
		cfg.window = DefaultRemoteWindow
	}
	n := int(int64(cfg.sampleRate) * int64(cfg.window) / int64(time.Second))
	return &Remote{
		cfg:   cfg,
		shape: Shape{max(n, 1)},
		log:   cfg.logger.With("backend", RemoteName),
	}
}

// RemoteName is the Name of the remote backend.
const RemoteName = "remote"

// Name returns RemoteName.
func (r *Remote) Name() string { return RemoteName }

// BaseURL returns the configured server URL.
func (r *Remote) BaseURL() string { return r.cfg.baseURL }

// InputShape returns [sampleRate*window].
func (r *Remote) InputShape() Shape { return r.shape.Clone() }

// Features declares a peak-normalized waveform at the configured rate.
func (r *Remote) Features() FeatureSpec {
	return FeatureSpec{
		Kind:       FeatureWaveform,
		SampleRate: r.cfg.sampleRate,
		Normalize:  NormalizePeak,
	}
}

// Close releases idle connections.
func (r *Remote) Close() error {
	r.cfg.httpClient.CloseIdleConnections()
	return nil
}

type predictReply struct {
	Command    *string            `json:"command"`
	Speaker    *string            `json:"speaker"`
	Confidence map[string]float64 `json:"confidence"`
}

// Classify uploads the tensor's source recording to POST /predict. It
// makes exactly one attempt.
func (r *Remote) Classify(ctx context.Context, t *Tensor) (*Result, error) {
	if err := CheckShape("remote.classify", t, r.shape); err != nil {
		return nil, err
	}
	body, contentType, err := r.encode(t)
	if err != nil {
		return nil, NewError(InferenceError, "remote.encode", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.baseURL+predictPath, bytes.NewReader(body))
	if err != nil {
		return nil, NewError(BackendUnavailable, "remote.request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.cfg.httpClient.Do(req)
	if err != nil {
		return nil, r.transportError(ctx, "remote.predict", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, r.transportError(ctx, "remote.read", err)
	}
	r.log.Debug("predict", "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Errorf(BackendUnavailable, "remote.predict", "status %d: %s", resp.StatusCode, snippet(reply))
	}
	return parseReply(reply)
}

func (r *Remote) encode(t *Tensor) ([]byte, string, error) {
	rec := t.Source()
	var err error
	switch {
	case rec == nil:
		rec, err = r.waveformRecording(t)
	case rec.BitDepth() == 8:
		rec, err = widen16(rec)
	}
	if err != nil {
		return nil, "", err
	}
	audio, err := wav.EncodeBytes(rec)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, uploadFilename))
	h.Set("Content-Type", "audio/wav")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// widen16 converts signed 8-bit audio to 16-bit at the same rate, layout
// and length.
func widen16(rec *pcm.Recording) (*pcm.Recording, error) {
	samples := rec.Samples()
	for i, v := range samples {
		samples[i] = v << 8
	}
	return pcm.NewRecording(samples, rec.SampleRate(), rec.Channels(), 16)
}

// waveformRecording renders the tensor itself as 16-bit audio for tensors
// built without a usable source.
func (r *Remote) waveformRecording(t *Tensor) (*pcm.Recording, error) {
	data := t.Data()
	samples := make([]int, len(data))
	for i, v := range data {
		s := max(-1, min(1, float64(v)))
		samples[i] = int(math.Round(s * 32767))
	}
	return pcm.NewRecording(samples, r.cfg.sampleRate, 1, 16)
}

func (r *Remote) transportError(ctx context.Context, op string, err error) error {
	var nerr net.Error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &nerr) && nerr.Timeout():
		return NewError(NetworkTimeout, op, err)
	}
	return NewError(BackendUnavailable, op, err)
}

func parseReply(body []byte) (*Result, error) {
	var reply predictReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, NewError(InferenceError, "remote.decode", err)
	}
	if reply.Command == nil || *reply.Command == "" {
		return nil, Errorf(InferenceError, "remote.decode", "response has no command: %s", snippet(body))
	}
	fields := []Field{{
		Name:       FieldCommand,
		Label:      *reply.Command,
		Confidence: confidence(reply.Confidence, FieldCommand),
	}}
	if reply.Speaker != nil {
		fields = append(fields, Field{
			Name:       FieldSpeaker,
			Label:      *reply.Speaker,
			Confidence: confidence(reply.Confidence, FieldSpeaker),
		})
	}
	res, err := NewResult(fields...)
	if err != nil {
		return nil, NewError(InferenceError, "remote.decode", err)
	}
	return res, nil
}

// confidence defaults to 1 when the server reports none for the field.
func confidence(m map[string]float64, field string) float64 {
	if v, ok := m[field]; ok {
		return v
	}
	return 1
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
