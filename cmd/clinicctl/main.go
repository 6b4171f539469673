// Command clinicctl inspects and maintains the clinic store from a shell.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/wolfman30/lumeskin-platform/cmd/mainconfig"
	"github.com/wolfman30/lumeskin-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/lumeskin-platform/internal/config"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	root := newRootCmd(buildFromEnv)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildFromEnv wires the same store the API server uses. The assistant
// pipeline is built too but never started.
func buildFromEnv(ctx context.Context) (*bootstrap.App, error) {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return bootstrap.Build(ctx, cfg, logger, bootstrap.Options{AWS: awsCfg})
}
