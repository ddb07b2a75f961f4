package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the web2desk services.
type Config struct {
	Addr           string   `env:"ADDR,default=:8080"`
	DBDSN          string   `env:"DB_DSN,required"`
	NATSURL        string   `env:"NATS_URL"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`

	// GitHub CI configuration. The builder repo hosts the synthesized
	// workflow files and runs every dispatched build.
	GitHubToken string `env:"GITHUB_PAT"`
	BuilderRepo string `env:"BUILDER_REPO,default=web2desk/builder-templates"`
	BuilderRef  string `env:"BUILDER_REF,default=main"`

	// CallbackBaseURL is the externally reachable base URL of this service;
	// synthesized workflows report terminal status to it.
	CallbackBaseURL string `env:"CALLBACK_BASE_URL"`
	CallbackToken   string `env:"CALLBACK_TOKEN"`

	InstallerBucket string `env:"S3_BUCKET,default=installers"`

	// Strategy selects the orchestration path: "dispatch" runs real CI
	// builds, "simulate" walks the state machine with placeholder
	// artifacts for demo installs.
	Strategy string `env:"BUILD_STRATEGY,default=dispatch"`

	PollInterval     time.Duration `env:"POLL_INTERVAL,default=12s"`
	PropagationGrace time.Duration `env:"WORKFLOW_PROPAGATION_GRACE,default=20s"`
	DispatchTimeout  time.Duration `env:"DISPATCH_TIMEOUT,default=2m"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
