package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/cavegen/internal/config"
	"github.com/MeKo-Tech/cavegen/internal/generator"
)

// StoreFunc persists a finished variant. cfg carries the offsets the variant
// was generated with. It is called from worker goroutines.
type StoreFunc func(task Task, res generator.Result, cfg config.Config) error

// Variants generates each task on a private controller built from Config
// with the task's seed.
type Variants struct {
	Config config.Config
	Store  StoreFunc
	Logger *slog.Logger
}

// Generate implements Generator. The pass itself is not interruptible;
// ctx is only checked before it starts.
func (v *Variants) Generate(ctx context.Context, task Task) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	cfg := v.Config
	cfg.Generation.Seed = task.Seed
	opts, err := cfg.Options()
	if err != nil {
		return Output{}, fmt.Errorf("failed to build options for %s: %w", task.Name, err)
	}
	opts.Logger = v.log().With("variant", task.Name)

	c := generator.New(opts)
	if task.Randomize {
		c.RandomizeOffsets()
	}

	res, err := c.Generate()
	if err != nil {
		return Output{}, fmt.Errorf("failed to generate %s: %w", task.Name, err)
	}

	if v.Store != nil {
		if err := v.Store(task, res, cfg.WithOffsets(c.Layers())); err != nil {
			return Output{}, fmt.Errorf("failed to store %s: %w", task.Name, err)
		}
	}

	return Output{Vertices: len(res.Mesh.Vertices), Triangles: res.Mesh.TriangleCount()}, nil
}

// Tasks builds count tasks named prefix-000, prefix-001, ... with seeds baseSeed+i.
func Tasks(prefix string, count int, baseSeed int64, randomize bool) []Task {
	tasks := make([]Task, count)
	for i := range tasks {
		tasks[i] = Task{
			Name:      fmt.Sprintf("%s-%03d", prefix, i),
			Seed:      baseSeed + int64(i),
			Randomize: randomize,
		}
	}
	return tasks
}

func (v *Variants) log() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}
