package cmd

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cavegen/internal/meshstore"
	"github.com/MeKo-Tech/cavegen/internal/preview"
	"github.com/MeKo-Tech/cavegen/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored meshes (optionally generating seed-N meshes on-demand)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Bool("generate-missing", true, "Generate missing seed-N meshes on-demand and keep them in memory")
	serveCmd.Flags().Bool("randomize", true, "Re-roll layer offsets for on-demand meshes")
	serveCmd.Flags().Int("max-concurrent-generations", runtime.NumCPU(), "Max concurrent mesh generations (default: number of CPUs)")
	serveCmd.Flags().Duration("generation-timeout", 2*time.Minute, "Timeout per mesh generation")
	serveCmd.Flags().Int("max-cached-meshes", server.DefaultMaxCachedMeshes, "Max on-demand meshes kept in memory (least recently used are evicted)")
	serveCmd.Flags().Bool("disable-cache", false, "Always regenerate seed-N meshes (nothing is kept in memory)")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served meshes")
	serveCmd.Flags().Int("preview-size", 512, "Preview size in pixels")
	serveCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.generate_missing", "generate-missing")
	mustBind("serve.randomize", "randomize")
	mustBind("serve.max_concurrent_generations", "max-concurrent-generations")
	mustBind("serve.generation_timeout", "generation-timeout")
	mustBind("serve.max_cached_meshes", "max-cached-meshes")
	mustBind("serve.disable_cache", "disable-cache")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.preview_size", "preview-size")
	mustBind("serve.png_compression", "png-compression")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	generateMissing := viper.GetBool("serve.generate_missing")
	randomize := viper.GetBool("serve.randomize")
	maxConc := viper.GetInt("serve.max_concurrent_generations")
	genTimeout := viper.GetDuration("serve.generation_timeout")
	maxCached := viper.GetInt("serve.max_cached_meshes")
	disableCache := viper.GetBool("serve.disable_cache")
	cacheControl := viper.GetString("serve.cache_control")
	previewSize := viper.GetInt("serve.preview_size")
	pngCompression := viper.GetString("serve.png_compression")
	storePath := viper.GetString("store")

	if storePath == "" && !generateMissing {
		return fmt.Errorf("nothing to serve: set --store or enable --generate-missing")
	}

	var fallback server.Store
	if storePath != "" {
		reader, err := meshstore.OpenReader(storePath)
		if err != nil {
			return err
		}
		defer reader.Close()
		fallback = server.ReaderStore{Reader: reader}
	}

	cfg, err := loadConfig("serve")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	od := server.NewOnDemandMeshes(fallback, server.VariantGenerator(cfg, randomize, logger), server.OnDemandConfig{
		MaxConcurrentGenerations: maxConc,
		GenerationTimeout:        genTimeout,
		GenerateMissing:          generateMissing,
		MaxCachedMeshes:          maxCached,
		DisableCache:             disableCache,
	}, logger)

	opts := preview.DefaultOptions()
	opts.Size = previewSize
	meshes, err := server.NewMeshHandler(od, server.MeshConfig{
		CacheControl:   cacheControl,
		PNGCompression: pngCompression,
		Preview:        opts,
	}, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/meshes/", http.StatusFound)
	})

	mux.Handle("/meshes/", server.WithCORS(meshes.Handler()))
	mux.Handle("/status", od.StatusHandler())
	mux.Handle("/status/stream", od.StatusStreamHandler(250*time.Millisecond))

	logger.Info("mesh server listening",
		"addr", addr,
		"store", storePath,
		"generate_missing", generateMissing,
		"max_concurrent_generations", maxConc,
		"max_cached_meshes", maxCached,
		"disable_cache", disableCache,
	)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}
