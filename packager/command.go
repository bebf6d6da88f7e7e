package packager

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/otterwire/nimbusupdate/internal/logger"
	"github.com/otterwire/nimbusupdate/manifest"
)

// Options are inputs accepted by the packager entry point.
type Options struct {
	// ConfigPath is the optional path to the build settings YAML file.
	ConfigPath string
}

// Run loads build settings, builds the package, and logs the artifacts the
// operator needs to upload.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "nimbus-packager")

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = DefaultBuildConfigFilename
	}

	cfg, err := LoadBuildConfig(configPath)
	if err != nil {
		return fmt.Errorf("load build config: %w", err)
	}

	b, err := New(cfg)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	if err = b.Build(ctx); err != nil {
		return fmt.Errorf("build package: %w", err)
	}

	printNextSteps(ctx, cfg)

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// printNextSteps logs human-readable guidance for uploading the artifacts
// this run produced.
func printNextSteps(ctx context.Context, cfg *BuildConfig) {
	var builder strings.Builder

	names := []string{packageFilename, manifest.FileName}
	sort.Strings(names)

	builder.WriteString("Upload the following files to the configured manifest/package hosting location:\n")

	for i, name := range names {
		if i > 0 {
			builder.WriteString(",\n")
		}

		builder.WriteString(name)
	}

	logger.InfoKV(ctx, builder.String(), "output_folder", cfg.OutputFolder)
}
