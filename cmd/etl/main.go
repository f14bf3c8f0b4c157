package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/textfix/internal/cache"
	"github.com/raaihank/textfix/internal/config"
	"github.com/raaihank/textfix/internal/dataset"
	"github.com/raaihank/textfix/internal/etl"
	"github.com/raaihank/textfix/internal/logger"
	"github.com/raaihank/textfix/internal/store"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Configuration file path")
		inputFile    = flag.String("input", "", "Input spelling dataset (CSV, TSV, Parquet, or JSON lines)")
		outputFile   = flag.String("output", "", "Merge imported pairs into this YAML dataset file")
		category     = flag.String("category", string(dataset.CategorySpelling), "Dataset category to import into")
		toStore      = flag.Bool("store", false, "Insert imported pairs into the database")
		analyze      = flag.Bool("analyze", false, "Print a dataset analysis report")
		exportFile   = flag.String("export", "", "Export validated records (.json, .tsv, .csv, .parquet)")
		splitRatio   = flag.Float64("split", 0, "With --export, write stratified _train and _test files holding this test fraction")
		splitSeed    = flag.Int64("split-seed", etl.DefaultSplitSeed, "Shuffle seed for --split")
		batchSize    = flag.Int("batch-size", 1000, "Batch size for processing")
		maxWordLen   = flag.Int("max-word-length", 100, "Reject words longer than this")
		validateOnly = flag.Bool("validate-only", false, "Only validate data, don't write anything")
		seedDataset  = flag.String("seed", "", "Import a YAML dataset file into the database (\"default\" for the built-in one)")
		clearCache   = flag.Bool("clear-cache", false, "Delete cached corrections from Redis")
		showStats    = flag.Bool("stats", false, "Show database statistics and exit")
	)
	flag.Parse()

	if *inputFile == "" && *seedDataset == "" && !*clearCache && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input spelling.csv --analyze\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input spelling.parquet --output configs/dataset.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input spelling.csv --store --batch-size 500\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input spelling.csv --export corpus.json --split 0.2\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --seed default\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting textfix ETL", zap.String("config", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	services := &services{}
	defer services.cleanup()

	needStore := *showStats || *seedDataset != "" || (*toStore && !*validateOnly)
	if needStore {
		if services.store, err = openStore(cfg, log); err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
	}

	switch {
	case *showStats:
		if err := showDatabaseStats(ctx, services.store); err != nil {
			log.Fatal("Failed to show stats", zap.Error(err))
		}
	case *clearCache:
		if err := clearResultCache(ctx, cfg, log); err != nil {
			log.Fatal("Failed to clear cache", zap.Error(err))
		}
	case *seedDataset != "":
		if err := seed(ctx, services.store, *seedDataset, log); err != nil {
			log.Fatal("Failed to seed database", zap.Error(err))
		}
	default:
		cat, err := dataset.ParseCategory(*category)
		if err != nil {
			log.Fatal("Invalid category", zap.Error(err))
		}
		if *splitRatio != 0 && *exportFile == "" {
			log.Fatal("--split requires --export")
		}

		etlConfig := etl.DefaultConfig()
		etlConfig.BatchSize = *batchSize
		etlConfig.MaxWordLength = *maxWordLen

		job := &importJob{
			input:        *inputFile,
			output:       *outputFile,
			export:       *exportFile,
			splitRatio:   *splitRatio,
			splitSeed:    *splitSeed,
			category:     cat,
			analyze:      *analyze,
			validateOnly: *validateOnly,
			store:        services.store,
		}
		if err := job.run(ctx, etl.NewPipeline(etlConfig, log.Logger), log); err != nil {
			log.Fatal("ETL processing failed", zap.Error(err))
		}
	}

	log.Info("ETL completed successfully")
}

// services holds the connections opened for this run
type services struct {
	store *store.Store
}

func (s *services) cleanup() {
	if s.store != nil {
		s.store.Close()
	}
}

func openStore(cfg *config.Config, log *logger.Logger) (*store.Store, error) {
	log.Info("Connecting to database...")
	return store.NewStore(&store.Config{
		DatabaseURL:     cfg.Store.DatabaseURL,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
	}, log.Logger)
}

// importJob reads one input file and sends the valid records to every
// requested destination
type importJob struct {
	input        string
	output       string
	export       string
	splitRatio   float64
	splitSeed    int64
	category     dataset.Category
	analyze      bool
	validateOnly bool
	store        *store.Store
}

func (j *importJob) run(ctx context.Context, pipeline *etl.Pipeline, log *logger.Logger) error {
	if _, err := os.Stat(j.input); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", j.input)
	}

	log.Info("Processing dataset",
		zap.String("file", j.input),
		zap.String("category", string(j.category)),
		zap.Bool("validate_only", j.validateOnly))

	keep := j.analyze || (!j.validateOnly && (j.output != "" || j.export != ""))

	var records []*etl.SpellingRecord
	var insert etl.BatchHandler
	if j.store != nil && !j.validateOnly {
		insert = etl.StoreHandler(j.store, j.category, "etl:"+filepath.Base(j.input))
	}

	result, err := pipeline.ProcessFile(ctx, j.input, func(ctx context.Context, batch []*etl.SpellingRecord) error {
		if keep {
			records = append(records, batch...)
		}
		if insert != nil {
			return insert(ctx, batch)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipeline processing failed: %w", err)
	}

	log.Info("Dataset processing completed",
		zap.String("file", j.input),
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("invalid", result.Invalid),
		zap.Int64("duplicates", result.Duplicates),
		zap.Int64("failed", result.Failed),
		zap.Duration("total_duration", result.Duration))

	if len(result.Errors) > 0 {
		log.Warn("Processing completed with errors", zap.Strings("errors", result.Errors))
	}

	if j.analyze {
		if err := etl.Analyze(records).WriteReport(os.Stdout); err != nil {
			return err
		}
	}

	if j.validateOnly {
		return nil
	}

	switch {
	case j.export != "" && j.splitRatio != 0:
		split, err := etl.ExportSplit(records, j.export, j.splitRatio, j.splitSeed)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		log.Info("Records exported",
			zap.String("train_file", split.TrainPath),
			zap.Int("train_count", split.Train),
			zap.String("test_file", split.TestPath),
			zap.Int("test_count", split.Test))
	case j.export != "":
		if err := etl.Export(records, j.export); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		log.Info("Records exported", zap.String("file", j.export), zap.Int("count", len(records)))
	}

	if j.output != "" {
		added, err := etl.MergeIntoFile(j.output, j.category, records)
		if err != nil {
			return fmt.Errorf("merge failed: %w", err)
		}
		log.Info("Dataset file updated",
			zap.String("file", j.output),
			zap.Int("added", added),
			zap.Int("skipped", len(records)-added))
	}

	return nil
}

// seed imports a whole YAML dataset into the database
func seed(ctx context.Context, s *store.Store, path string, log *logger.Logger) error {
	d := dataset.Default()
	source := "default"
	if path != "default" {
		var err error
		if d, err = dataset.LoadFile(path); err != nil {
			return err
		}
		source = "file:" + filepath.Base(path)
	}

	result, err := s.ImportDataset(ctx, d, source)
	if err != nil {
		return err
	}

	log.Info("Dataset imported",
		zap.String("source", source),
		zap.String("version", d.Version()),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates", result.Duplicates),
		zap.Duration("duration", result.Duration))
	return nil
}

// showDatabaseStats displays current database statistics
func showDatabaseStats(ctx context.Context, s *store.Store) error {
	stats, err := s.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get database stats: %w", err)
	}

	fmt.Printf("\n=== textfix Database Statistics ===\n")
	fmt.Printf("Total Pairs:        %d\n", stats.TotalPairs)

	categories := make([]string, 0, len(stats.PairsByCategory))
	for c := range stats.PairsByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Printf("  %-17s %d\n", c+":", stats.PairsByCategory[c])
	}

	fmt.Printf("\nCorrections:        %d\n", stats.TotalCorrections)
	if stats.TotalCorrections > 0 {
		fmt.Printf("Changed:            %d (%.1f%%)\n", stats.ChangedCount,
			float64(stats.ChangedCount)/float64(stats.TotalCorrections)*100)
		fmt.Printf("Cache Hits:         %d (%.1f%%)\n", stats.CacheHitCount,
			float64(stats.CacheHitCount)/float64(stats.TotalCorrections)*100)
	}
	fmt.Printf("Avg Duration:       %.2f ms\n", stats.AvgDurationMs)

	return nil
}

// clearResultCache drops every cached correction
func clearResultCache(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	rc, err := cache.NewResultCache(&cache.Config{
		RedisURL:       cfg.Cache.RedisURL,
		MaxConnections: cfg.Cache.MaxConnections,
		MinIdleConns:   cfg.Cache.MinIdleConns,
		DefaultTTL:     cfg.Cache.DefaultTTL,
		KeyPrefix:      cfg.Cache.KeyPrefix,
	}, log.Logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	log.Info("Clearing result cache...")
	return rc.Clear(ctx)
}
