// Package api exposes the HTTP surface: build submission and status
// checking, the CI status callback, and project generation.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"web2desk/services/generator"
	"web2desk/services/orchestrator"
)

// BlobStore is the storage surface the API needs for generated projects.
type BlobStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PublicURL(bucket, key string) string
}

// Config controls runtime behaviour for the API handlers.
type Config struct {
	InstallerBucket string
	CallbackToken   string
	AllowedOrigins  []string
	// Middleware is the telemetry wrapper applied around the whole router.
	Middleware func(http.Handler) http.Handler
}

// API wires dependencies and configuration for the HTTP handlers.
type API struct {
	orch   *orchestrator.Orchestrator
	blobs  BlobStore
	signer *generator.Signer
	config Config
	log    zerolog.Logger
}

func New(orch *orchestrator.Orchestrator, blobs BlobStore, signer *generator.Signer, cfg Config, log zerolog.Logger) (*API, error) {
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.InstallerBucket == "" {
		return nil, errors.New("installer bucket is required")
	}
	return &API{
		orch:   orch,
		blobs:  blobs,
		signer: signer,
		config: cfg,
		log:    log.With().Str("component", "api").Logger(),
	}, nil
}
