package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"rent-predictor/config"
	"rent-predictor/models"
	"rent-predictor/server"
	"rent-predictor/services"
	"rent-predictor/storage"
	"rent-predictor/utils"
)

const demoFeatures = "50,2000,2,10,1,0,1,0,1"

func (a *app) trainCmd() *commander.Command {
	return &commander.Command{
		Run:       a.command(runTrain),
		UsageLine: "train",
		Short:     "build a new model from the configured data source and save it",
		Long: `
build a new model from the configured data source and save it

	$ ./rent-predictor train

The source is chosen by DATA_SOURCE (csv, xlsx or postgres). An existing
artifact at MODEL_PATH/MODEL_NAME is replaced.
`,
		Flag: *flag.NewFlagSet("train", flag.ExitOnError),
	}
}

func (a *app) predictCmd() *commander.Command {
	var raw string
	cmd := &commander.Command{
		UsageLine: "predict [-features v1,v2,...]",
		Short:     "load (or build) the model and price one apartment",
		Long: `
load (or build) the model and price one apartment

	$ ./rent-predictor predict -features 50,2000,2,10,1,0,1,0,1

Values follow the order ` + strings.Join(services.FeatureNames, ",") + `.
`,
		Flag: *flag.NewFlagSet("predict", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&raw, "features", demoFeatures, "comma-separated feature vector")
	cmd.Run = a.command(func(ctx context.Context, cfg *config.Config, logger *utils.Logger, _ []string) error {
		return runPredict(ctx, cfg, logger, raw)
	})
	return cmd
}

func (a *app) seedCmd() *commander.Command {
	var file, sheet string
	cmd := &commander.Command{
		UsageLine: "seed [-file path] [-sheet name]",
		Short:     "load a CSV or XLSX file into the PostgreSQL rent table",
		Long: `
load a CSV or XLSX file into the PostgreSQL rent table

	$ ./rent-predictor seed -file rent_apartments.xlsx -sheet rent

Without -file the DATA_FILE setting is used, and without -sheet XLSX_SHEET.
`,
		Flag: *flag.NewFlagSet("seed", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&file, "file", "", "CSV or XLSX file to load")
	cmd.Flag.StringVar(&sheet, "sheet", "", "sheet name for XLSX input")
	cmd.Run = a.command(func(ctx context.Context, cfg *config.Config, logger *utils.Logger, _ []string) error {
		if file == "" {
			file = cfg.DataFile
		}
		if sheet == "" {
			sheet = cfg.XLSXSheet
		}
		return runSeed(ctx, cfg, logger, file, sheet)
	})
	return cmd
}

func (a *app) serveCmd() *commander.Command {
	return &commander.Command{
		Run:       a.command(runServe),
		UsageLine: "serve",
		Short:     "load (or build) the model and serve it over HTTP",
		Long: `
load (or build) the model and serve it over HTTP

	$ ./rent-predictor serve

Listens on HTTP_ADDR and exposes /health, /metrics and /predict.
`,
		Flag: *flag.NewFlagSet("serve", flag.ExitOnError),
	}
}

func runTrain(ctx context.Context, cfg *config.Config, logger *utils.Logger, _ []string) error {
	source, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	logger.Info("=== Rent model training starting ===")
	logger.Info("Config: source=%s | model=%s | concurrency=%d",
		cfg.DataSource, filepath.Join(cfg.ModelPath, cfg.ModelName), cfg.MaxConcurrency)

	builder := newBuilder(source, cfg, logger)
	art, err := builder.Build(ctx, modelLocation(cfg))
	if err != nil {
		return err
	}

	services.NewInsightService(logger).Print(os.Stdout, builder.Summary())
	fmt.Printf("  Model %s (%s)\n", art.Name, art.ID)
	fmt.Printf("  Best params : %s\n", art.Params)
	fmt.Printf("  CV R²       : %.4f\n", art.CVScore)
	fmt.Printf("  Test R²     : %.4f\n", art.TestScore)
	fmt.Printf("  Saved to    : %s\n\n", modelLocation(cfg))
	return nil
}

func runPredict(ctx context.Context, cfg *config.Config, logger *utils.Logger, raw string) error {
	features, err := parseFeatures(raw)
	if err != nil {
		return err
	}

	svc, cleanup, err := newModelService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.LoadModel(ctx, cfg.ModelName); err != nil {
		return err
	}
	rent, err := svc.Predict(features)
	if err != nil {
		return err
	}
	logger.Info("Prediction for %v: %.2f", features, rent)
	fmt.Printf("Predicted rent: %.2f\n", rent)
	return nil
}

func runSeed(ctx context.Context, cfg *config.Config, logger *utils.Logger, file, sheet string) error {
	var src storage.ListingSource
	if strings.EqualFold(filepath.Ext(file), ".xlsx") {
		src = storage.NewXLSXSource(file, sheet)
	} else {
		src = storage.NewCSVSource(file)
	}
	defer src.Close()

	listings, err := src.Load(ctx)
	if err != nil {
		return err
	}

	pg, err := storage.NewPostgresSource(ctx, cfg.DSN(), cfg.TableName, retryConfig(cfg, logger))
	if err != nil {
		logger.Error("Make sure PostgreSQL is running and POSTGRES_* is set")
		return err
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	if err := seedListings(ctx, pg, listings); err != nil {
		return err
	}
	logger.Info("Seeded %d listings from %s into table %s", len(listings), file, cfg.TableName)
	return nil
}

func seedListings(ctx context.Context, w storage.ListingWriter, listings []*models.Listing) error {
	if len(listings) == 0 {
		return fmt.Errorf("seed: %w", services.ErrEmptyDataset)
	}
	return w.Write(ctx, listings)
}

func runServe(ctx context.Context, cfg *config.Config, logger *utils.Logger, _ []string) error {
	svc, cleanup, err := newModelService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.LoadModel(ctx, cfg.ModelName); err != nil {
		return err
	}
	router := server.New(svc, logger, server.Options{AllowedOrigins: cfg.CORSAllowedOrigins})
	return server.Run(ctx, cfg.HTTPAddr, router, logger)
}

// newModelService wires the lifecycle manager. The data source is opened
// lazily only when a build is actually needed.
func newModelService(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*services.ModelService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var locker storage.Locker = storage.NopLocker{}
	if cfg.RedisURL != "" {
		rl, err := storage.NewRedisLocker(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rl.Close() })
		locker = rl
	}

	builder := &lazyBuilder{cfg: cfg, logger: logger, open: openSource}
	closers = append(closers, builder.close)

	svc := services.NewModelService(cfg.ModelPath, storage.NewFileArtifactStore(), builder, locker, logger)
	return svc, cleanup, nil
}

// lazyBuilder opens the configured source on first use. It is safe for
// concurrent builds.
type lazyBuilder struct {
	cfg    *config.Config
	logger *utils.Logger
	open   func(context.Context, *config.Config, *utils.Logger) (storage.ListingSource, error)

	mu     sync.Mutex
	source storage.ListingSource
}

func (l *lazyBuilder) listingSource(ctx context.Context) (storage.ListingSource, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.source == nil {
		src, err := l.open(ctx, l.cfg, l.logger)
		if err != nil {
			return nil, err
		}
		l.source = src
	}
	return l.source, nil
}

func (l *lazyBuilder) Build(ctx context.Context, loc storage.Location) (*models.Artifact, error) {
	src, err := l.listingSource(ctx)
	if err != nil {
		return nil, err
	}
	return newBuilder(src, l.cfg, l.logger).Build(ctx, loc)
}

func (l *lazyBuilder) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.source != nil {
		_ = l.source.Close()
		l.source = nil
	}
}

func newBuilder(source storage.ListingSource, cfg *config.Config, logger *utils.Logger) *services.Builder {
	store := storage.NewFileArtifactStore()
	trainer := services.NewTrainer(logger, cfg.MaxConcurrency)
	return services.NewBuilder(source, store, trainer, logger)
}

func openSource(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.ListingSource, error) {
	switch cfg.DataSource {
	case "csv":
		return storage.NewCSVSource(cfg.DataFile), nil
	case "xlsx":
		return storage.NewXLSXSource(cfg.DataFile, cfg.XLSXSheet), nil
	case "postgres":
		return storage.NewPostgresSource(ctx, cfg.DSN(), cfg.TableName, retryConfig(cfg, logger))
	}
	return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
}

func retryConfig(cfg *config.Config, logger *utils.Logger) *utils.RetryConfig {
	return &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger}
}

func modelLocation(cfg *config.Config) storage.Location {
	return storage.Location{Dir: cfg.ModelPath, Name: cfg.ModelName}
}

func parseFeatures(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid feature value %q: %w", p, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("no feature values given")
	}
	return out, nil
}
