package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/shapenorm/internal/boundary"
	"github.com/Faultbox/shapenorm/internal/config"
	"github.com/Faultbox/shapenorm/internal/logger"
	"github.com/Faultbox/shapenorm/internal/pose"
	"github.com/Faultbox/shapenorm/internal/remesh"
	"github.com/Faultbox/shapenorm/pkg/formats"
	"github.com/Faultbox/shapenorm/pkg/math"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

func options(low, high int) Options {
	return Options{
		Band:         remesh.Band{Low: low, High: high},
		IterationCap: 8,
		Anchor:       pose.AnchorBoundingBox,
		Passes:       1,
	}
}

func TestNormalizeAndRepairHoledIcosahedron(t *testing.T) {
	in := mesh.Icosahedron().WithoutFaces(0)
	before := in.Clone()

	out, rep, err := NormalizeAndRepair(in, options(100, 200))
	require.NoError(t, err)

	require.True(t, boundary.Build(out).Empty(), "output still has boundary edges")
	require.GreaterOrEqual(t, out.VertexCount(), 100)
	require.LessOrEqual(t, out.VertexCount(), 200)

	box := out.BoundingBox()
	require.InDelta(t, 0, box.Center().Length(), 1e-9)
	require.InDelta(t, 1, box.Max.Abs().Max(box.Min.Abs()).MaxComponent(), 1e-9)

	require.False(t, rep.NoHolesFound())
	require.Equal(t, 10, rep.Added())
	require.Equal(t, remesh.TooSparse, rep.Remesh[0].Initial)
	require.False(t, rep.Partial)
	// Subdivision overshoots on faces; one pass leaves it there.
	require.Equal(t, remesh.TooDense, rep.Final)
	require.True(t, rep.OutOfBand())
	require.Equal(t, before, in)
}

func TestNormalizeAndRepairCleansBeforePose(t *testing.T) {
	holed := mesh.Icosahedron().WithoutFaces(0)
	withStray := holed.Clone()
	withStray.Vertices = append(withStray.Vertices, math.Vec3{X: 100})

	want, _, err := NormalizeAndRepair(holed, options(100, 200))
	require.NoError(t, err)

	out, rep, err := NormalizeAndRepair(withStray, options(100, 200))
	require.NoError(t, err)
	require.Equal(t, mesh.CleanReport{UnusedVertices: 1}, rep.Clean)
	require.Equal(t, want.VertexCount(), out.VertexCount())
	require.Equal(t, want.FaceCount(), out.FaceCount())

	// The stray point neither shrinks the shape nor survives.
	box, wantBox := out.BoundingBox(), want.BoundingBox()
	for _, p := range [][2]math.Vec3{{box.Min, wantBox.Min}, {box.Max, wantBox.Max}} {
		require.InDelta(t, p[1].X, p[0].X, 1e-9)
		require.InDelta(t, p[1].Y, p[0].Y, 1e-9)
		require.InDelta(t, p[1].Z, p[0].Z, 1e-9)
	}
	require.Equal(t, out.VertexCount(), out.Compact().VertexCount())
}

func TestNormalizeAndRepairWeldsDuplicates(t *testing.T) {
	// Each face of the cube gets its own copy of its corners.
	cube := mesh.Cube()
	soup := &mesh.Mesh{}
	for _, f := range cube.Faces {
		n := len(soup.Vertices)
		soup.Vertices = append(soup.Vertices, cube.Vertices[f[0]], cube.Vertices[f[1]], cube.Vertices[f[2]])
		soup.Faces = append(soup.Faces, mesh.Face{n, n + 1, n + 2})
	}

	out, rep, err := NormalizeAndRepair(soup, options(8, 12))
	require.NoError(t, err)
	require.Equal(t, 36-8, rep.Clean.MergedVertices)
	require.True(t, rep.NoHolesFound())
	require.Equal(t, 8, out.VertexCount())
	require.Equal(t, 12, out.FaceCount())
}

func TestNormalizeAndRepairReportsOutOfBand(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger.Set(zap.New(core))
	defer logger.Set(nil)

	dense := mesh.Icosahedron()
	for i := 0; i < 3; i++ {
		dense = remesh.Subdivide(dense)
	}
	require.Equal(t, 1280, dense.FaceCount())

	out, rep, err := NormalizeAndRepair(dense, options(100, 200))
	require.NoError(t, err)
	require.False(t, rep.Partial)
	require.Equal(t, remesh.TooSparse, rep.Final)
	require.Equal(t, remesh.Classify(out, remesh.Band{Low: 100, High: 200}), rep.Final)
	require.True(t, rep.OutOfBand())
	require.Less(t, out.VertexCount(), 100)

	entries := logs.FilterMessage("mesh outside density band").All()
	require.Len(t, entries, 1)
	require.Equal(t, "TooSparse", entries[0].ContextMap()["state"])
}

func TestNormalizeAndRepairClosedInBand(t *testing.T) {
	opts := options(8, 12)
	opts.Passes = 3

	out, rep, err := NormalizeAndRepair(mesh.Cube(), opts)
	require.NoError(t, err)
	require.True(t, rep.NoHolesFound())
	require.Len(t, rep.Remesh, 1, "a pass with nothing to do ends the loop")
	require.Equal(t, 12, out.FaceCount())
	require.False(t, rep.OutOfBand())
}

func TestNormalizeAndRepairSecondPassDecimates(t *testing.T) {
	opts := options(100, 200)
	opts.Passes = 2
	opts.AcceptPartial = true

	out, rep, err := NormalizeAndRepair(mesh.Icosahedron().WithoutFaces(0), opts)
	require.NoError(t, err)
	require.Len(t, rep.Remesh, 2)
	require.Equal(t, remesh.TooDense, rep.Remesh[1].Initial)
	require.NotEmpty(t, rep.Remesh[1].Ratios)
	require.Less(t, out.FaceCount(), 304)
}

func TestNormalizeAndRepairErrors(t *testing.T) {
	triangle := mesh.New([]math.Vec3{{}, {X: 1}, {Y: 1}}, []mesh.Face{{0, 1, 2}})

	tests := []struct {
		name      string
		m         *mesh.Mesh
		opts      Options
		wantErr   error
		wantStage Stage
	}{
		{
			name:      "invalid index",
			m:         &mesh.Mesh{Vertices: []math.Vec3{{}, {X: 1}, {Y: 1}}, Faces: []mesh.Face{{0, 1, 5}}},
			opts:      options(10, 20),
			wantErr:   mesh.ErrIndexOutOfRange,
			wantStage: StageValidate,
		},
		{
			name:      "every face collapses",
			m:         mesh.New([]math.Vec3{{}, {}, {X: 1}}, []mesh.Face{{0, 1, 2}}),
			opts:      options(10, 20),
			wantErr:   ErrNoFaces,
			wantStage: StageClean,
		},
		{
			name:      "collinear",
			m:         mesh.New([]math.Vec3{{}, {X: 1}, {X: 2}}, []mesh.Face{{0, 1, 2}}),
			opts:      options(10, 20),
			wantErr:   ErrDegenerateGeometry,
			wantStage: StagePose,
		},
		{
			name: "iteration cap",
			m:    triangle,
			opts: func() Options {
				o := options(1000, 2000)
				o.IterationCap = 2
				return o
			}(),
			wantErr:   ErrIterationLimitExceeded,
			wantStage: StageRemesh,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := NormalizeAndRepair(tt.m, tt.opts)
			require.Nil(t, out)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, tt.wantStage, FailedStage(err))
			require.Contains(t, err.Error(), string(tt.wantStage))
		})
	}
}

func TestNormalizeAndRepairAcceptPartial(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger.Set(zap.New(core))
	defer logger.Set(nil)

	opts := options(1000, 2000)
	opts.IterationCap = 2
	opts.AcceptPartial = true

	triangle := mesh.New([]math.Vec3{{}, {X: 1}, {Y: 1}}, []mesh.Face{{0, 1, 2}})
	out, rep, err := NormalizeAndRepair(triangle, opts)
	require.NoError(t, err)
	require.True(t, rep.Partial)
	require.Equal(t, 16+10, out.FaceCount())
	require.True(t, boundary.Build(out).Empty())
	require.Equal(t, 1, logs.FilterMessage("keeping partially remeshed mesh").Len())
}

func TestOptionsFromConfig(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, remesh.Band{Low: 1000, High: 2000}, opts.Band)
	require.Equal(t, 8, opts.IterationCap)
	require.Equal(t, pose.AnchorBoundingBox, opts.Anchor)
	require.Equal(t, 1, opts.Passes)

	c := config.Default().Pipeline
	c.Anchor = "centroid"
	opts, err := OptionsFromConfig(c)
	require.NoError(t, err)
	require.Equal(t, pose.AnchorCentroid, opts.Anchor)

	c.Anchor = "origin"
	_, err = OptionsFromConfig(c)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestFailedStage(t *testing.T) {
	require.Equal(t, Stage(""), FailedStage(errors.New("plain")))
	err := &StageError{Stage: StageHoles, Pass: 1, Err: ErrVertexNotFound}
	require.Equal(t, StageHoles, FailedStage(err))
	require.ErrorIs(t, err, ErrVertexNotFound)
	require.Equal(t, "holes (pass 2): vertex not found", err.Error())
}

// writeDataset creates two good meshes, one degenerate mesh and an
// unrelated file under dir.
func writeDataset(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, formats.Save(filepath.Join(dir, "a.off"), mesh.Icosahedron().WithoutFaces(0)))
	require.NoError(t, formats.Save(filepath.Join(dir, "sub", "b.obj"), mesh.Cube()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.off"),
		[]byte("OFF\n3 1 0\n0 0 0\n1 0 0\n2 0 0\n3 0 1 2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a mesh"), 0644))
}

func TestBatch(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger.Set(zap.New(core))
	defer logger.Set(nil)

	in, out := t.TempDir(), t.TempDir()
	writeDataset(t, in)

	bopts := BatchOptions{Workers: 2, OutputFormat: formats.FormatOFF, SkipExisting: true}
	res, err := Batch(context.Background(), in, out, options(100, 200), bopts)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)

	written, skipped, failed := res.Counts()
	require.Equal(t, 2, written)
	require.Equal(t, 0, skipped)
	require.Equal(t, 1, failed)

	for _, f := range res.Files {
		if strings.HasSuffix(f.Input, "bad.off") {
			require.ErrorIs(t, f.Err, ErrDegenerateGeometry)
			continue
		}
		require.NoError(t, f.Err)
		m, err := formats.Load(f.Output)
		require.NoError(t, err)
		require.True(t, boundary.Build(m).Empty())
		require.Equal(t, m.VertexCount(), f.Stats.VertexCount)
	}
	require.FileExists(t, filepath.Join(out, "sub", "b.off"))

	entries := logs.FilterMessage("mesh failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, filepath.Join(in, "bad.off"), entries[0].ContextMap()["file"])
	require.Equal(t, "pose", entries[0].ContextMap()["stage"])

	// Outputs exist now, so a second run skips them.
	res, err = Batch(context.Background(), in, out, options(100, 200), bopts)
	require.NoError(t, err)
	written, skipped, failed = res.Counts()
	require.Equal(t, 0, written)
	require.Equal(t, 2, skipped)
	require.Equal(t, 1, failed)
}

func TestBatchCancelled(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeDataset(t, in)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Batch(ctx, in, out, options(100, 200), BatchOptions{OutputFormat: formats.FormatOFF})
	require.ErrorIs(t, err, context.Canceled)
	for _, f := range res.Files {
		require.ErrorIs(t, f.Err, context.Canceled)
	}
	_, _, failed := res.Counts()
	require.Equal(t, 3, failed)
}

func TestBatchMissingInput(t *testing.T) {
	_, err := Batch(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir(),
		options(100, 200), BatchOptions{OutputFormat: formats.FormatOFF})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOutputPath(t *testing.T) {
	got, err := OutputPath("/data/in", "/data/out", "/data/in/chairs/m12.off", formats.FormatOBJ)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/data/out", "chairs", "m12.obj"), got)
}

// holdPoseStage installs a logger that blocks every pose stage entry until
// the returned release func is called. onHold runs once, on the first entry.
func holdPoseStage(onHold func()) (*observer.ObservedLogs, func()) {
	gate := make(chan struct{})
	var once sync.Once
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Set(zap.New(core, zap.Hooks(func(e zapcore.Entry) error {
		if e.LoggerName == "pose" {
			once.Do(onHold)
			<-gate
		}
		return nil
	})))
	return logs, func() { close(gate) }
}

// waitAbandoned waits until n abandoned runs have finished in the
// background, so they no longer touch the global logger.
func waitAbandoned(t *testing.T, logs *observer.ObservedLogs, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("mesh normalized").Len() == n
	}, 10*time.Second, 5*time.Millisecond)
	logger.Set(nil)
}

func TestBatchMeshTimeout(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, formats.Save(filepath.Join(in, "a.off"), mesh.Icosahedron().WithoutFaces(0)))
	require.NoError(t, formats.Save(filepath.Join(in, "b.off"), mesh.Cube()))

	logs, release := holdPoseStage(func() {})
	bopts := BatchOptions{Workers: 2, OutputFormat: formats.FormatOFF, MeshTimeout: time.Nanosecond}
	res, err := Batch(context.Background(), in, out, options(100, 200), bopts)
	release()
	waitAbandoned(t, logs, 2)

	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	for _, f := range res.Files {
		require.ErrorIs(t, f.Err, ErrMeshTimeout)
		require.NoFileExists(t, f.Output)
	}
	_, _, failed := res.Counts()
	require.Equal(t, 2, failed)
}

func TestBatchCancelledWhileProcessing(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeDataset(t, in)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first mesh to reach the pose stage cancels the batch and is held
	// there, so the cancellation lands while it is in flight.
	logs, release := holdPoseStage(cancel)
	res, err := Batch(ctx, in, out, options(100, 200), BatchOptions{Workers: 1, OutputFormat: formats.FormatOFF})
	release()
	waitAbandoned(t, logs, 1)

	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, res.Files, 3)
	for _, f := range res.Files {
		require.ErrorIs(t, f.Err, context.Canceled)
		require.NoFileExists(t, f.Output)
	}
	require.True(t, strings.HasSuffix(res.Files[0].Input, "a.off"))
	require.Positive(t, res.Files[0].Duration)
}
