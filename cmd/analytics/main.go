// cmd/analytics/main.go
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/rcandelario/instacart-insights/internal/ingest"
	"github.com/rcandelario/instacart-insights/internal/output"
	"github.com/rcandelario/instacart-insights/internal/pipeline"
	"github.com/rcandelario/instacart-insights/pkg/logger"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "analytics",
		Usage: "Run the retail analytics pipeline over an order log",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory containing the input CSV tables",
				EnvVars: []string{"APP_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Usage:   "Directory for the generated output tables",
				EnvVars: []string{"APP_OUTPUT_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Action: runPipeline,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("analytics run failed")
	}
}

func runPipeline(c *cli.Context) error {
	logger.SetLevel(c.String("log-level"))

	cfg := config.Load()
	if dir := c.String("data-dir"); dir != "" {
		cfg.App.DataDir = dir
	}
	if dir := c.String("output-dir"); dir != "" {
		cfg.App.OutputDir = dir
	}

	ds, err := ingest.LoadDir(cfg.App.DataDir)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(cfg)
	result, err := runner.Run(c.Context, ds)
	if err != nil {
		return err
	}

	paths, err := output.NewWriter(cfg.App.OutputDir).WriteAll(result)
	if err != nil {
		return err
	}

	for _, path := range paths {
		logger.Log.Info().Str("path", path).Msg("wrote output table")
	}
	return nil
}
