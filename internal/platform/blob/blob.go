// Package blob stores visit evidence files and returns stable URLs for them.
package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/pkg/config"
)

type Store interface {
	// Put writes r under key and returns the URL the object is served from.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

func New(cfg *config.Config, log *zap.SugaredLogger) (Store, error) {
	b := cfg.Blob
	switch b.Driver {
	case config.BlobDriverS3:
		s, err := NewS3(context.Background(), b.Bucket, b.Region, b.BaseURL)
		if err != nil {
			return nil, err
		}
		log.Infow("blob store ready", "driver", "s3", "bucket", b.Bucket)
		return s, nil
	case config.BlobDriverMemory:
		return NewMemory(b.BaseURL), nil
	case config.BlobDriverLocal, "":
		s, err := NewLocal(b.LocalDir, b.BaseURL)
		if err != nil {
			return nil, err
		}
		log.Infow("blob store ready", "driver", "local", "dir", b.LocalDir)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", b.Driver)
	}
}

var Module = fx.Options(
	fx.Provide(New),
)

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
