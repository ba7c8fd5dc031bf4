package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/idearoulette/pkg/adapter"
	"github.com/m-mizutani/idearoulette/pkg/policy"
	"github.com/m-mizutani/idearoulette/pkg/repository"
	"github.com/m-mizutani/idearoulette/pkg/service/generator"
	"github.com/m-mizutani/idearoulette/pkg/usecase/session"
	"github.com/m-mizutani/idearoulette/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel string

	// Repository
	project  string
	database string
	local    bool

	// Identity
	userID   string
	userName string

	// Adapters
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string
	geminiModel    string

	bucket          string
	bigQueryDataset string
	policyDir       string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("IDEAROULETTE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.BoolFlag{
			Name:        "local",
			Usage:       "Use the in-memory store instead of Firestore",
			Sources:     cli.EnvVars("IDEAROULETTE_LOCAL"),
			Destination: &cfg.local,
		},
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User identity",
			Sources:     cli.EnvVars("IDEAROULETTE_USER_ID"),
			Destination: &cfg.userID,
		},
		&cli.StringFlag{
			Name:        "user-name",
			Usage:       "Display name of the user",
			Value:       "founder",
			Sources:     cli.EnvVars("IDEAROULETTE_USER_NAME"),
			Destination: &cfg.userName,
		},
	}
}

// geminiFlags returns flags for generation-related configuration
func geminiFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key (uses the Gemini API backend)",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini (uses the Vertex AI backend)",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Generative model name",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset for streaming interaction logs",
			Sources:     cli.EnvVars("IDEAROULETTE_BQ_DATASET"),
			Destination: &cfg.bigQueryDataset,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego policies filtering generated ideas",
			Sources:     cli.EnvVars("IDEAROULETTE_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// storageFlags returns flags for the archive bucket
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "GCS bucket for malformed generation payloads and session exports",
			Sources:     cli.EnvVars("IDEAROULETTE_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// setupLogger installs the default logger per the log-level flag
func (cfg *config) setupLogger() {
	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.local {
		return repository.NewMemory(), nil
	}

	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}

	if cfg.geminiAPIKey != "" {
		return adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, opts...)
	}

	if cfg.geminiProject == "" {
		return nil, goerr.New("either gemini-api-key or gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newGenerator assembles the generation service with its optional extras
func (cfg *config) newGenerator(ctx context.Context) (*generator.Service, error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	var opts []generator.Option

	if cfg.bucket != "" {
		archive, err := cfg.newArchive(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create archive storage")
		}
		opts = append(opts, generator.WithArchive(archive))
	}

	if cfg.policyDir != "" {
		filter, err := policy.Load(ctx, cfg.policyDir)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load idea policy")
		}
		opts = append(opts, generator.WithFilter(filter))
	}

	return generator.New(gemini, opts...), nil
}

// newArchive creates the archive bucket client
func (cfg *config) newArchive(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, goerr.New("bucket is required")
	}
	return adapter.NewStorage(ctx, cfg.bucket)
}

// newRecorder creates the session recorder, wiring the BigQuery sink and the
// session-export archive when configured
func (cfg *config) newRecorder(ctx context.Context, repo repository.Repository) (*session.Recorder, error) {
	var opts []session.RecorderOption

	if cfg.bucket != "" {
		archive, err := cfg.newArchive(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create export archive")
		}
		opts = append(opts, session.WithArchive(archive))
	}

	if cfg.bigQueryDataset != "" {
		if cfg.project == "" {
			return nil, goerr.New("project is required for the BigQuery sink")
		}
		sink, err := adapter.NewBigQuery(ctx, cfg.project, cfg.bigQueryDataset)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create BigQuery sink")
		}
		opts = append(opts, session.WithSink(sink))
	}

	return session.NewRecorder(repo, opts...), nil
}
