package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/shapenorm/internal/config"
	"github.com/Faultbox/shapenorm/internal/logger"
	"github.com/Faultbox/shapenorm/pkg/formats"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// ErrMeshTimeout is recorded for a mesh that exceeded BatchOptions.MeshTimeout.
var ErrMeshTimeout = errors.New("mesh processing timed out")

// BatchOptions controls Batch.
type BatchOptions struct {
	Workers      int // 0 = one per CPU
	OutputFormat formats.Format
	SkipExisting bool
	MeshTimeout  time.Duration // 0 = no limit
}

// BatchOptionsFromConfig converts the batch section of the config.
func BatchOptionsFromConfig(c config.BatchConfig) BatchOptions {
	return BatchOptions{
		Workers:      c.Workers,
		OutputFormat: formats.Format(c.OutputFormat),
		SkipExisting: c.SkipExisting,
		MeshTimeout:  c.MeshTimeout,
	}
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Input    string
	Output   string
	Skipped  bool
	Report   Report
	Stats    mesh.Stats // of the written mesh
	Duration time.Duration
	Err      error
}

// BatchResult holds one FileResult per input file, in input order.
type BatchResult struct {
	Files []FileResult
}

// Counts returns how many files were written, skipped and failed.
func (r BatchResult) Counts() (written, skipped, failed int) {
	for _, f := range r.Files {
		switch {
		case f.Err != nil:
			failed++
		case f.Skipped:
			skipped++
		default:
			written++
		}
	}
	return written, skipped, failed
}

// FindMeshFiles returns the supported mesh files under dir in lexical order.
func FindMeshFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && formats.IsMeshFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	return files, nil
}

// OutputPath maps an input file under inDir to its output under outDir,
// keeping the relative path and replacing the extension.
func OutputPath(inDir, outDir, input string, format formats.Format) (string, error) {
	rel, err := filepath.Rel(inDir, input)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + "." + string(format)
	return filepath.Join(outDir, rel), nil
}

// Batch normalizes every mesh file under inDir into outDir using a bounded
// worker pool. A failing mesh is recorded in its FileResult and never stops
// the others. Cancelling ctx stops scheduling; files not started report the
// context error.
func Batch(ctx context.Context, inDir, outDir string, opts Options, bopts BatchOptions) (BatchResult, error) {
	log := logger.Named("batch")

	files, err := FindMeshFiles(inDir)
	if err != nil {
		return BatchResult{}, err
	}

	workers := bopts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log.Info("batch started",
		zap.String("input", inDir),
		zap.String("output", outDir),
		zap.Int("files", len(files)),
		zap.Int("workers", workers),
	)

	results := make([]FileResult, len(files))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, input := range files {
		i := i
		results[i].Input = input
		output, err := OutputPath(inDir, outDir, input, bopts.OutputFormat)
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].Output = output

		if ctx.Err() != nil {
			results[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			processFile(ctx, &results[i], opts, bopts)
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Files: results}
	written, skipped, failed := result.Counts()
	log.Info("batch finished",
		zap.Int("written", written),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return result, ctx.Err()
}

func processFile(ctx context.Context, res *FileResult, opts Options, bopts BatchOptions) {
	log := logger.Named("batch")
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return
	}
	if bopts.SkipExisting {
		if _, err := os.Stat(res.Output); err == nil {
			res.Skipped = true
			log.Debug("output exists, skipping", zap.String("file", res.Input))
			return
		}
	}

	m, err := formats.Load(res.Input)
	if err != nil {
		res.Err = err
		log.Error("loading mesh failed", zap.String("file", res.Input), zap.Error(err))
		return
	}

	out, rep, err := runWithTimeout(ctx, m, opts, bopts.MeshTimeout)
	res.Report = rep
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", res.Input, err)
		log.Error("mesh failed",
			zap.String("file", res.Input),
			zap.String("stage", string(FailedStage(err))),
			zap.Error(err),
		)
		return
	}

	if err := formats.Save(res.Output, out); err != nil {
		res.Err = err
		log.Error("saving mesh failed", zap.String("file", res.Output), zap.Error(err))
		return
	}
	res.Stats = mesh.ComputeStats(filepath.Base(res.Output), out)
	log.Debug("mesh written",
		zap.String("file", res.Output),
		zap.Int("vertices", out.VertexCount()),
		zap.Int("faces", out.FaceCount()),
	)
}

type runResult struct {
	m   *mesh.Mesh
	rep Report
	err error
}

// runWithTimeout runs NormalizeAndRepair, giving up after timeout (0 = no
// limit) or when ctx is done. The core cannot be interrupted, so an
// abandoned run finishes in the background and its result is dropped.
func runWithTimeout(ctx context.Context, m *mesh.Mesh, opts Options, timeout time.Duration) (*mesh.Mesh, Report, error) {
	if timeout <= 0 && ctx.Done() == nil {
		return NormalizeAndRepair(m, opts)
	}

	done := make(chan runResult, 1)
	go func() {
		out, rep, err := NormalizeAndRepair(m, opts)
		done <- runResult{out, rep, err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case r := <-done:
		return r.m, r.rep, r.err
	case <-expired:
		return nil, Report{}, fmt.Errorf("%w after %s", ErrMeshTimeout, timeout)
	case <-ctx.Done():
		return nil, Report{}, ctx.Err()
	}
}
