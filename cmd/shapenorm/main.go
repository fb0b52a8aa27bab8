// shapenorm normalizes and repairs triangle meshes for shape retrieval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/shapenorm/internal/boundary"
	"github.com/Faultbox/shapenorm/internal/config"
	"github.com/Faultbox/shapenorm/internal/logger"
	"github.com/Faultbox/shapenorm/internal/pipeline"
	"github.com/Faultbox/shapenorm/internal/remesh"
	"github.com/Faultbox/shapenorm/pkg/formats"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Sugar.Debugf("Config: %+v", cfg)

	command := args[0]
	args = args[1:]

	code := 0
	switch command {
	case "normalize", "n":
		cmdNormalize(cfg, args)
	case "batch", "b":
		code = cmdBatch(cfg, args)
	case "stats":
		code = cmdStats(args)
	case "check":
		code = cmdCheck(args)
	case "demo":
		cmdDemo(cfg, args)
	case "init-config":
		cmdInitConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		code = 1
	}
	if code != 0 {
		exit(code)
	}
}

func printUsage() {
	fmt.Println(`shapenorm - mesh pose normalization, remeshing and hole filling

Usage:
  shapenorm [flags] <command> [args]

Commands:
  normalize <in> <out>     Normalize and repair one mesh file
  batch <indir> <outdir>   Normalize every mesh file under a directory
  stats <file>...          Print ';'-separated mesh statistics
  check <file>             Report boundary edges and holes
  demo <out>               Repair a holed icosahedron and write it
  init-config [path]       Write the effective config as YAML

Flags:
  -config <path>    Config file (default ./shapenorm.yaml, then user config dir)
  -low, -high <n>   Vertex/face count band
  -cap <n>          Remesh iteration cap
  -accept-partial   Keep meshes that miss the band
  -workers <n>      Batch worker count
  -format <fmt>     Batch output format (off, obj, stl)
  -debug            Debug logging
  -log-file <path>  Also log to a rotating file

Examples:
  shapenorm normalize m100.off out/m100.off
  shapenorm -low 1000 -high 2000 -workers 8 batch benchmark/db out
  shapenorm stats out/*.off > stats.csv`)
}

// exit flushes the logger before ending the process; os.Exit skips the
// deferred Sync in main.
func exit(code int) {
	logger.Sync()
	os.Exit(code)
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	exit(1)
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	opts, err := pipeline.OptionsFromConfig(cfg.Pipeline)
	if err != nil {
		fail("%v", err)
	}
	return opts
}

func cmdNormalize(cfg *config.Config, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: shapenorm normalize <in> <out>")
		exit(1)
	}

	m, err := formats.Load(args[0])
	if err != nil {
		fail("%v", err)
	}

	start := time.Now()
	out, rep, err := pipeline.NormalizeAndRepair(m, pipelineOptions(cfg))
	if err != nil {
		fail("%s: %v", args[0], err)
	}
	if err := formats.Save(args[1], out); err != nil {
		fail("%v", err)
	}

	printReport(args[1], m, out, rep, time.Since(start))
}

func printReport(name string, in, out *mesh.Mesh, rep pipeline.Report, elapsed time.Duration) {
	fmt.Printf("%s\n", name)
	fmt.Printf("  Vertices: %d -> %d\n", in.VertexCount(), out.VertexCount())
	fmt.Printf("  Faces:    %d -> %d\n", in.FaceCount(), out.FaceCount())
	if c := rep.Clean; c.Changed() {
		fmt.Printf("  Cleaned:  %d merged, %d unused vertices, %d faces dropped\n",
			c.MergedVertices, c.UnusedVertices, c.DroppedFaces)
	}
	for i, r := range rep.Remesh {
		fmt.Printf("  Pass %d:   %s -> %s in %d steps\n", i+1, r.Initial, r.Final, r.Steps)
	}
	if rep.NoHolesFound() {
		fmt.Println("  Holes:    none")
	} else {
		fmt.Printf("  Holes:    %d triangles added\n", rep.Added())
	}
	if rep.OutOfBand() {
		fmt.Printf("  Warning:  outside density band (%s)\n", rep.Final)
	}
	fmt.Printf("  Time:     %s\n", elapsed.Round(time.Millisecond))
}

func cmdBatch(cfg *config.Config, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: shapenorm batch <indir> <outdir>")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	res, err := pipeline.Batch(ctx, args[0], args[1], pipelineOptions(cfg), pipeline.BatchOptionsFromConfig(cfg.Batch))
	if err != nil && len(res.Files) == 0 {
		fail("%v", err)
	}

	written, skipped, failed := res.Counts()
	fmt.Printf("Written: %d  Skipped: %d  Failed: %d  (%s)\n",
		written, skipped, failed, time.Since(start).Round(time.Millisecond))
	for _, f := range res.Files {
		if f.Err != nil {
			fmt.Printf("  FAILED %s: %v\n", f.Input, f.Err)
		}
	}
	if err != nil {
		logger.Warn("batch interrupted", zap.Error(err))
		return 1
	}
	return 0
}

func cmdStats(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: shapenorm stats <file>...")
		return 1
	}

	fmt.Println(mesh.StatsHeaders())
	failed := false
	for _, path := range args {
		m, err := formats.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
			continue
		}
		s := mesh.ComputeStats(filepath.Base(path), m)
		s.BoundaryEdges = len(boundary.Build(m).Edges())
		fmt.Println(s)
	}
	if failed {
		return 1
	}
	return 0
}

// cmdCheck returns 2 when the mesh has holes.
func cmdCheck(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: shapenorm check <file>")
		return 1
	}

	m, err := formats.Load(args[0])
	if err != nil {
		fail("%v", err)
	}
	if err := m.Validate(); err != nil {
		fail("%s: %v", args[0], err)
	}

	g := boundary.Build(m)
	fmt.Printf("File:     %s\n", args[0])
	fmt.Printf("Vertices: %d\n", m.VertexCount())
	fmt.Printf("Faces:    %d\n", m.FaceCount())
	if g.Empty() {
		fmt.Println("Boundary: closed")
		return 0
	}

	cycles := boundary.CycleBasis(g)
	fmt.Printf("Boundary: %d edges, %d components, %d holes\n", len(g.Edges()), len(g.Components()), len(cycles))
	for i, c := range cycles {
		fmt.Printf("  hole %d: %d vertices\n", i+1, len(c))
	}

	// Holes that touch at a vertex leave it with more than two boundary
	// neighbors.
	var pinched []int
	for _, n := range g.Nodes() {
		if len(g.Neighbors(n.Index)) > 2 {
			pinched = append(pinched, n.Index)
		}
	}
	if len(pinched) > 0 {
		fmt.Printf("Pinched:  %d boundary vertices shared by holes %v\n", len(pinched), pinched)
	}
	return 2
}

func cmdDemo(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: shapenorm demo <out>")
		exit(1)
	}

	opts := pipelineOptions(cfg)
	opts.Band = remesh.Band{Low: 100, High: 200}

	m := mesh.Icosahedron().WithoutFaces(0)
	start := time.Now()
	out, rep, err := pipeline.NormalizeAndRepair(m, opts)
	if err != nil {
		fail("%v", err)
	}
	if err := formats.Save(args[0], out); err != nil {
		fail("%v", err)
	}
	printReport(args[0], m, out, rep, time.Since(start))
}

func cmdInitConfig(cfg *config.Config, args []string) {
	var err error
	path := filepath.Join(config.ConfigDir(), "shapenorm.yaml")
	if len(args) > 0 {
		path = args[0]
		err = cfg.SaveTo(path)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("Config written to %s\n", path)
}
