package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/clinicalner"
	"github.com/poiesic/clinicalner/ingest"
	"github.com/urfave/cli/v2"
)

// loadConfig resolves the configuration file and environment, then applies
// the command-line flags that were set explicitly.
func loadConfig(c *cli.Context) (*clinicalner.Config, error) {
	cfg, err := clinicalner.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("chunk-size") {
		cfg.Ingest.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("hub-dataset") {
		cfg.Ingest.Dataset = c.String("hub-dataset")
	}
	if c.IsSet("batch-size") {
		cfg.Extract.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("report-interval") {
		cfg.Extract.ReportInterval = c.Int("report-interval")
	}
	if c.IsSet("output-dir") {
		cfg.Extract.OutputDir = c.String("output-dir")
	}
	if c.IsSet("model-host") {
		cfg.AI.Host = c.String("model-host")
	}
	if c.IsSet("model") {
		cfg.AI.Model = c.String("model")
	}
	if c.IsSet("threshold") {
		cfg.AI.Threshold = c.Float64("threshold")
	}
	if c.IsSet("input-dir") {
		cfg.Reconcile.InputDir = c.String("input-dir")
	}
	if c.IsSet("load-workers") {
		cfg.Reconcile.LoadWorkers = c.Int("load-workers")
	}
	if c.IsSet("state-dir") {
		cfg.StateDir = c.String("state-dir")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSystem loads the configuration and connects. The returned context is
// cancelled on SIGINT or SIGTERM so long runs can stop cleanly.
func openSystem(c *cli.Context) (context.Context, func(), *clinicalner.System, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	sys, err := clinicalner.NewSystem(ctx, cfg)
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("failed to open system: %w", err)
	}
	cleanup := func() {
		sys.Close()
		stop()
	}
	return ctx, cleanup, sys, nil
}

func ingestCommand(c *cli.Context) error {
	ctx, cleanup, sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()

	var source ingest.RowSource
	if path := c.String("jsonl"); path != "" {
		source = ingest.NewJSONLSource(path)
		fmt.Fprintf(os.Stderr, "Source: %s\n", path)
	} else {
		dataset := sys.Config().Ingest.Dataset
		source = ingest.NewHubSource(dataset, ingest.WithHubToken(c.String("hub-token")))
		fmt.Fprintf(os.Stderr, "Source: %s (dataset server)\n", dataset)
	}

	ingestor, err := sys.NewIngestor()
	if err != nil {
		return err
	}

	report, err := ingestor.Ingest(ctx, source)
	if report != nil {
		printIngestSummary(os.Stdout, report)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func extractCommand(c *cli.Context) error {
	ctx, cleanup, sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := sys.Config()
	if c.Bool("resume") && cfg.StateDir == "" {
		return errors.New("--resume requires --state-dir or state_dir in the configuration")
	}

	proc, err := sys.NewProcessor(os.Stderr, c.Bool("resume"))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Model host: %s\n", cfg.AI.Host)
	fmt.Fprintf(os.Stderr, "Model: %s\n", cfg.AI.Model)
	fmt.Fprintf(os.Stderr, "Output: %s (batch size %d)\n", cfg.Extract.OutputDir, cfg.Extract.BatchSize)

	report, err := proc.Run(ctx)
	if report != nil {
		printExtractSummary(os.Stdout, report)
	}
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	return nil
}

func reconcileCommand(c *cli.Context) error {
	ctx, cleanup, sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := sys.NewReconciler(c.Bool("force"))
	if err != nil {
		return err
	}
	defer rec.Release()

	report, err := rec.Reconcile(ctx, sys.Config().Reconcile.InputDir)
	if report != nil {
		printReconcileSummary(os.Stdout, report)
	}
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	return nil
}

func showCommand(c *cli.Context) error {
	ctx, cleanup, sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()

	searcher, err := sys.NewSearcher()
	if err != nil {
		return err
	}
	notes, err := searcher.Preview(ctx, c.Int("limit"))
	if err != nil {
		return err
	}
	printNotes(os.Stdout, notes, "")
	return nil
}

func findCommand(c *cli.Context) error {
	ctx, cleanup, sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer cleanup()

	searcher, err := sys.NewSearcher()
	if err != nil {
		return err
	}
	label := c.String("label")
	notes, err := searcher.FindByEntity(ctx, label, c.String("term"), c.Int("limit"))
	if err != nil {
		return err
	}
	printNotes(os.Stdout, notes, label)
	return nil
}
