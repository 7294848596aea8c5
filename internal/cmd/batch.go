package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cavegen/internal/config"
	"github.com/MeKo-Tech/cavegen/internal/generator"
	"github.com/MeKo-Tech/cavegen/internal/meshstore"
	"github.com/MeKo-Tech/cavegen/internal/worker"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate many mesh variants into the mesh database",
	Long: `Generate --count variants in parallel. Variant i uses seed --seed+i for the
noise source and, unless --randomize=false, re-rolls the layer offsets from it.
Every variant is stored in the database given by --store.`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("count", 8, "Number of variants to generate")
	batchCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	batchCmd.Flags().String("prefix", "cave", "Variant name prefix (names are prefix-000, prefix-001, ...)")
	batchCmd.Flags().Int64("seed", 1337, "Base seed")
	batchCmd.Flags().Bool("randomize", true, "Re-roll layer offsets per variant")
	batchCmd.Flags().Bool("interpolate", true, "Place vertices by linear interpolation instead of edge midpoints")
	batchCmd.Flags().Bool("progress", true, "Show progress bar during batch generation")
	batchCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some variants fail")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"batch.count", "count"},
		{"batch.workers", "workers"},
		{"batch.prefix", "prefix"},
		{"batch.seed", "seed"},
		{"batch.randomize", "randomize"},
		{"batch.interpolate", "interpolate"},
		{"batch.progress", "progress"},
		{"batch.allow_failures", "allow-failures"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, batchCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	count := viper.GetInt("batch.count")
	workers := viper.GetInt("batch.workers")
	prefix := viper.GetString("batch.prefix")
	randomize := viper.GetBool("batch.randomize")
	showProgress := viper.GetBool("batch.progress")
	allowFailures := viper.GetBool("batch.allow_failures")
	storePath := viper.GetString("store")

	if logger == nil {
		initLogging()
	}

	if count <= 0 {
		return fmt.Errorf("--count must be positive, got %d", count)
	}
	if strings.TrimSpace(prefix) == "" {
		return fmt.Errorf("--prefix must not be empty")
	}
	if storePath == "" {
		return fmt.Errorf("--store is required for batch generation")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	cfg, err := loadConfig("batch")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	baseSeed := cfg.Generation.Seed

	writer, err := meshstore.New(storePath, storeMetadata(cfg))
	if err != nil {
		return err
	}
	defer writer.Close()

	logger.Info("Starting batch generation",
		"count", count,
		"workers", workers,
		"prefix", prefix,
		"base_seed", baseSeed,
		"randomize", randomize,
		"store", storePath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	variants := &worker.Variants{
		Config: cfg,
		Logger: logger,
		Store:  storeVariant(writer),
	}

	tasks := worker.Tasks(prefix, count, baseSeed, randomize)
	progress := worker.NewProgress(len(tasks), "meshes", showProgress)

	pool := worker.New(worker.Config{
		Workers:    workers,
		Generator:  variants,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount, triangles int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Variant generation failed", "name", r.Task.Name, "seed", r.Task.Seed, "error", r.Err)
			continue
		}
		triangles += r.Output.Triangles
		logger.Debug("Variant generated", "name", r.Task.Name, "triangles", r.Output.Triangles, "elapsed", r.Elapsed.String())
	}

	logger.Info(progress.Summary(), "triangles", triangles)

	logger.Info("Flushing mesh database...")
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush mesh database: %w", err)
	}

	if failedCount > 0 {
		if allowFailures {
			logger.Warn("Some variants failed to generate, but continuing due to --allow-failures flag", "failed_count", failedCount)
		} else {
			return fmt.Errorf("%d variants failed to generate", failedCount)
		}
	}

	logger.Info("Batch generation complete", "store", storePath, "meshes", count-failedCount)
	return nil
}

// storeVariant writes each finished variant with the config it was built from.
func storeVariant(w *meshstore.Writer) worker.StoreFunc {
	return func(task worker.Task, res generator.Result, cfg config.Config) error {
		cfgJSON, err := cfg.JSON()
		if err != nil {
			return err
		}
		return w.WriteMesh(task.Name, res.Mesh, res.Dims, cfgJSON)
	}
}
