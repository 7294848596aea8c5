package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/cavegen/internal/export"
	"github.com/MeKo-Tech/cavegen/internal/meshstore"
	"github.com/MeKo-Tech/cavegen/internal/preview"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored mesh as OBJ and/or PNG preview",
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("name", "", "Name of the stored mesh (required)")
	exportCmd.Flags().String("obj", "", "Write the mesh as Wavefront OBJ to this path")
	exportCmd.Flags().String("preview", "", "Write a top-down PNG preview to this path")
	exportCmd.Flags().Int("size", 512, "Preview size in pixels")
	exportCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"export.name", "name"},
		{"export.obj", "obj"},
		{"export.preview", "preview"},
		{"export.size", "size"},
		{"export.png_compression", "png-compression"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, exportCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	name := viper.GetString("export.name")
	objPath := viper.GetString("export.obj")
	previewPath := viper.GetString("export.preview")
	size := viper.GetInt("export.size")
	pngCompression := viper.GetString("export.png_compression")
	storePath := viper.GetString("store")

	if logger == nil {
		initLogging()
	}

	if storePath == "" {
		return fmt.Errorf("--store is required")
	}
	if name == "" {
		return fmt.Errorf("--name is required")
	}
	if objPath == "" && previewPath == "" {
		return fmt.Errorf("nothing to write: set --obj and/or --preview")
	}
	level, err := preview.ParseCompression(pngCompression)
	if err != nil {
		return err
	}

	reader, err := meshstore.OpenReader(storePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	entry, err := reader.ReadMesh(name)
	if err != nil {
		return err
	}

	logger.Info("Exporting mesh",
		"name", entry.Name,
		"vertices", entry.VertexCount,
		"triangles", entry.TriangleCount,
		"created_at", entry.CreatedAt,
	)

	if objPath != "" {
		if err := export.WriteOBJFile(objPath, entry.Mesh, entry.Name); err != nil {
			return err
		}
		logger.Info("OBJ written", "path", objPath)
	}

	if previewPath != "" {
		opts := preview.DefaultOptions()
		opts.Size = size
		sink := &preview.FileSink{Path: previewPath, Options: opts, Compression: level}
		if err := sink.ApplyMesh(entry.Mesh); err != nil {
			return err
		}
		logger.Info("Preview written", "path", previewPath, "size", size)
	}

	return nil
}
