package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/cavegen/internal/config"
	"github.com/MeKo-Tech/cavegen/internal/meshstore"
)

const smallConfig = `
generation:
  max_height: 8
  radius: 6
  resolution: 1
  min_noise_density: 0.5
`

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(smallConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("cavegen %s: %v", strings.Join(args, " "), err)
	}
}

func TestGenerate_WritesAllOutputs(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	objPath := filepath.Join(dir, "cave.obj")
	pngPath := filepath.Join(dir, "cave.png")
	markersPath := filepath.Join(dir, "markers.obj")
	storePath := filepath.Join(dir, "caves.db")

	execute(t, "generate",
		"--config", cfgPath,
		"--name", "test",
		"--seed", "5",
		"--randomize",
		"--obj", objPath,
		"--preview", pngPath,
		"--debug-map", markersPath,
		"--store", storePath,
	)

	obj, err := os.ReadFile(objPath)
	if err != nil {
		t.Fatalf("read obj: %v", err)
	}
	if !strings.Contains(string(obj), "o test\n") {
		t.Errorf("expected object name in obj")
	}
	for _, p := range []string{pngPath, markersPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}

	reader, err := meshstore.OpenReader(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer reader.Close()

	entry, err := reader.ReadMesh("test")
	if err != nil {
		t.Fatalf("read stored mesh: %v", err)
	}
	if entry.Dims.X != 12 || entry.Dims.Y != 8 {
		t.Errorf("unexpected dims %+v", entry.Dims)
	}
	used, err := config.ParseJSON(entry.Config)
	if err != nil {
		t.Fatalf("stored config: %v", err)
	}
	if used.Generation.Seed != 5 || used.Generation.MaxHeight != 8 {
		t.Errorf("unexpected stored generation %+v", used.Generation)
	}
	if used.Layers[0].Offset == config.Default().Layers[0].Offset {
		t.Errorf("expected randomized offsets in stored config")
	}
}

func TestGenerate_InvalidSettingsStoresEmptyMesh(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	bad := strings.Replace(smallConfig, "resolution: 1", "resolution: 0", 1)
	if err := os.WriteFile(cfgPath, []byte(bad), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	storePath := filepath.Join(dir, "bad.db")

	args := []string{"generate",
		"--config", cfgPath,
		"--name", "broken",
		"--randomize=false",
		"--obj=", "--preview=", "--debug-map=",
		"--store", storePath,
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid generation settings") {
		t.Fatalf("expected invalid generation settings error, got %v", err)
	}

	reader, err := meshstore.OpenReader(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer reader.Close()

	entry, err := reader.ReadMesh("broken")
	if err != nil {
		t.Fatalf("read stored mesh: %v", err)
	}
	if entry.TriangleCount != 0 || entry.Dims.X != 0 || entry.Dims.Y != 0 || entry.Dims.Z != 0 {
		t.Errorf("expected an empty mesh with zero dims, got %+v", entry.Info)
	}
}

func TestBatchAndExport(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	storePath := filepath.Join(dir, "batch.db")

	execute(t, "batch",
		"--config", cfgPath,
		"--store", storePath,
		"--count", "3",
		"--workers", "2",
		"--prefix", "v",
		"--progress=false",
	)

	reader, err := meshstore.OpenReader(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	infos, err := reader.List()
	reader.Close()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 || infos[0].Name != "v-000" || infos[2].Name != "v-002" {
		t.Fatalf("unexpected stored variants: %+v", infos)
	}

	objPath := filepath.Join(dir, "v1.obj")
	execute(t, "export",
		"--config", cfgPath,
		"--store", storePath,
		"--name", "v-001",
		"--obj", objPath,
	)

	obj, err := os.ReadFile(objPath)
	if err != nil {
		t.Fatalf("read exported obj: %v", err)
	}
	if !strings.Contains(string(obj), "o v-001\n") {
		t.Errorf("expected exported object name")
	}
}

func TestStoreMetadata(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.Seed = 77

	meta := storeMetadata(cfg)
	if meta.Seed != 77 || meta.Radius != cfg.Generation.Radius {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.ToMap()["format"] != meshstore.Format {
		t.Errorf("expected default format")
	}
}
