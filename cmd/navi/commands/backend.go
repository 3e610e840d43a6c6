package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Laudkyle/NaviAudio/cmd/navi/internal/config"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
	"github.com/Laudkyle/NaviAudio/pkg/history"
	"github.com/Laudkyle/NaviAudio/pkg/kv"
	"github.com/Laudkyle/NaviAudio/pkg/ncnn"
	"github.com/Laudkyle/NaviAudio/pkg/onnx"
	"github.com/Laudkyle/NaviAudio/pkg/storage"
)

// newBackend builds the configured backend. Local backends start loading
// their weights immediately.
func newBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (classify.Backend, error) {
	if cfg.Backend == config.BackendRemote {
		return classify.NewRemote(
			classify.WithBaseURL(cfg.Remote.URL),
			classify.WithTimeout(cfg.Remote.Timeout),
			classify.WithLogger(log),
		), nil
	}

	var rt classify.Runtime
	switch cfg.Backend {
	case config.BackendONNX:
		rt = onnx.Runtime{}
	case config.BackendNCNN:
		rt = ncnn.Runtime{}
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	local, err := classify.NewLocal(ctx, classify.LocalConfig{
		Store:      store,
		Descriptor: cfg.Model.Descriptor,
		Runtime:    rt,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}
	local.Preload()
	return local, nil
}

// waitReady blocks until a local backend has loaded its weights. Remote
// backends are always ready.
func waitReady(ctx context.Context, b classify.Backend) error {
	if w, ok := b.(interface{ Wait(context.Context) error }); ok {
		return w.Wait(ctx)
	}
	return nil
}

// openStore opens the configured file store.
func openStore(ctx context.Context, sc config.StorageConfig) (storage.FileStore, error) {
	switch sc.Kind {
	case config.StorageLocal:
		return storage.NewLocal(sc.Dir)
	case config.StorageS3:
		client, err := newS3Client(ctx, sc)
		if err != nil {
			return nil, err
		}
		return storage.NewS3(client, sc.Bucket, sc.Prefix), nil
	}
	return nil, fmt.Errorf("unknown storage kind %q", sc.Kind)
}

func newS3Client(ctx context.Context, sc config.StorageConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if sc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(sc.Region))
	}
	if sc.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKeyID, sc.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// openHistory opens the history log, or returns nil when history is
// disabled. The returned close function is never nil.
func openHistory(ctx context.Context, cfg *config.Config, log *slog.Logger) (*history.Log, func() error, error) {
	noop := func() error { return nil }
	if cfg.History.Disabled {
		return nil, noop, nil
	}

	var store kv.Store
	if cfg.History.InMemory {
		store = kv.NewMemory()
	} else {
		b, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.History.Dir, Logger: log})
		if err != nil {
			return nil, noop, fmt.Errorf("open history: %w", err)
		}
		store = b
	}

	opts := []history.Option{history.WithLogger(log)}
	if cfg.History.Archive {
		fs, err := openStore(ctx, cfg.Storage)
		if err != nil {
			store.Close()
			return nil, noop, fmt.Errorf("open recording archive: %w", err)
		}
		opts = append(opts, history.WithArchive(fs))
	}
	return history.New(store, opts...), store.Close, nil
}
