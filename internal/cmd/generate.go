package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cavegen/internal/config"
	"github.com/MeKo-Tech/cavegen/internal/export"
	"github.com/MeKo-Tech/cavegen/internal/generator"
	"github.com/MeKo-Tech/cavegen/internal/meshstore"
	"github.com/MeKo-Tech/cavegen/internal/preview"
	"github.com/MeKo-Tech/cavegen/internal/voxel"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one mesh",
	Long: `Run one generation pass with the configured layers and write the mesh
as OBJ, a PNG preview and/or into the mesh database.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("name", "cave", "Mesh name (OBJ object name and database key)")
	generateCmd.Flags().Bool("randomize", false, "Re-roll layer offsets from the seed before generating")
	generateCmd.Flags().Int64("seed", 1337, "Seed for the noise source and offset randomization")
	generateCmd.Flags().Bool("interpolate", true, "Place vertices by linear interpolation instead of edge midpoints")
	generateCmd.Flags().String("obj", "", "Write the mesh as Wavefront OBJ to this path")
	generateCmd.Flags().String("preview", "", "Write a top-down PNG preview to this path")
	generateCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	generateCmd.Flags().String("debug-map", "", "Write one OBJ point per solid corner to this path")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"generate.name", "name"},
		{"generate.randomize", "randomize"},
		{"generate.seed", "seed"},
		{"generate.interpolate", "interpolate"},
		{"generate.obj", "obj"},
		{"generate.preview", "preview"},
		{"generate.png_compression", "png-compression"},
		{"generate.debug_map", "debug-map"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, generateCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// loadConfig reads the generation config and applies the command's seed and
// interpolate overrides when they were given explicitly.
func loadConfig(prefix string) (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}
	if viper.IsSet(prefix + ".seed") {
		cfg.Generation.Seed = viper.GetInt64(prefix + ".seed")
	}
	if viper.IsSet(prefix + ".interpolate") {
		cfg.Generation.Interpolate = viper.GetBool(prefix + ".interpolate")
	}
	return cfg, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	name := viper.GetString("generate.name")
	randomize := viper.GetBool("generate.randomize")
	objPath := viper.GetString("generate.obj")
	previewPath := viper.GetString("generate.preview")
	pngCompression := viper.GetString("generate.png_compression")
	debugMap := viper.GetString("generate.debug_map")
	storePath := viper.GetString("store")

	if logger == nil {
		initLogging()
	}

	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("--name must not be empty")
	}
	if objPath == "" && previewPath == "" && storePath == "" && debugMap == "" {
		return fmt.Errorf("nothing to write: set at least one of --obj, --preview, --store or --debug-map")
	}
	level, err := preview.ParseCompression(pngCompression)
	if err != nil {
		return err
	}

	cfg, err := loadConfig("generate")
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Logger = logger

	var sinks generator.MultiMeshSink
	if objPath != "" {
		sinks = append(sinks, &export.ObjSink{Path: objPath, Name: name})
	}
	if previewPath != "" {
		sinks = append(sinks, &preview.FileSink{Path: previewPath, Options: preview.DefaultOptions(), Compression: level})
	}

	var writer *meshstore.Writer
	var stored *meshstore.Sink
	if storePath != "" {
		writer, err = meshstore.New(storePath, storeMetadata(cfg))
		if err != nil {
			return err
		}
		defer writer.Close()
		stored = writer.Sink(name, voxel.Dims{}, "")
		sinks = append(sinks, stored)
	}
	opts.MeshSink = sinks

	var markers *export.MarkerFile
	if debugMap != "" {
		markers = export.NewMarkerFile(debugMap)
		opts.MarkerSink = markers
	}

	c := generator.New(opts)
	if randomize {
		c.RandomizeOffsets()
	}

	if stored != nil {
		// Invalid settings leave zero dims; Generate reports the error after
		// the empty mesh has been stored.
		dims, verr := c.Validate()
		if verr != nil {
			logger.Debug("Storing empty mesh for invalid settings", "name", name, "error", verr)
		}
		stored.Dims = dims
		stored.Config, err = cfg.WithOffsets(c.Layers()).JSON()
		if err != nil {
			return err
		}
	}

	logger.Info("Starting generation",
		"name", name,
		"seed", cfg.Generation.Seed,
		"max_height", cfg.Generation.MaxHeight,
		"resolution", cfg.Generation.Resolution,
		"radius", cfg.Generation.Radius,
		"min_noise_density", cfg.Generation.MinNoiseDensity,
		"interpolate", cfg.Generation.Interpolate,
	)

	res, err := c.Generate()
	if err != nil {
		var cfgErr *voxel.ConfigError
		if errors.As(err, &cfgErr) {
			return fmt.Errorf("invalid generation settings: %w", err)
		}
		return err
	}

	logger.Info("Mesh generated",
		"name", name,
		"dims", fmt.Sprintf("%dx%dx%d", res.Dims.X, res.Dims.Y, res.Dims.Z),
		"active_corners", res.ActiveCorners,
		"vertices", len(res.Mesh.Vertices),
		"triangles", res.Mesh.TriangleCount(),
		"degenerate_edges", res.Stats.Recovered,
	)

	if markers != nil {
		n, err := c.DisplayDebugMap()
		if err != nil {
			return err
		}
		if err := markers.Flush(); err != nil {
			return err
		}
		logger.Info("Debug map written", "path", debugMap, "markers", n)
	}

	if writer != nil {
		if err := writer.Flush(); err != nil {
			return err
		}
		logger.Info("Mesh stored", "store", storePath, "name", name)
	}

	return nil
}

func storeMetadata(cfg config.Config) meshstore.Metadata {
	return meshstore.Metadata{
		Name:        "cavegen",
		Description: "Marching-cubes cave meshes",
		Version:     "1.0",
		Seed:        cfg.Generation.Seed,
		Resolution:  cfg.Generation.Resolution,
		MaxHeight:   cfg.Generation.MaxHeight,
		Radius:      cfg.Generation.Radius,
	}
}
