// Package pipeline runs cleaning, pose normalization, remeshing and hole
// filling on one mesh, and on directories of mesh files.
package pipeline

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/shapenorm/internal/config"
	"github.com/Faultbox/shapenorm/internal/holes"
	"github.com/Faultbox/shapenorm/internal/logger"
	"github.com/Faultbox/shapenorm/internal/pose"
	"github.com/Faultbox/shapenorm/internal/remesh"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// Options controls NormalizeAndRepair.
type Options struct {
	Band         remesh.Band
	IterationCap int
	Anchor       pose.Anchor
	// Passes repeats remesh and hole filling; a later pass corrects an
	// overshoot left by an earlier one.
	Passes int
	// AcceptPartial keeps a mesh whose density is still outside the band
	// when the iteration cap is reached.
	AcceptPartial bool
}

// DefaultOptions returns the dataset defaults.
func DefaultOptions() Options {
	opts, _ := OptionsFromConfig(config.Default().Pipeline)
	return opts
}

// OptionsFromConfig converts the pipeline section of the config.
func OptionsFromConfig(c config.PipelineConfig) (Options, error) {
	anchor, err := pose.ParseAnchor(c.Anchor)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	return Options{
		Band:          remesh.Band{Low: c.Band.Low, High: c.Band.High},
		IterationCap:  c.IterationCap,
		Anchor:        anchor,
		Passes:        c.Passes,
		AcceptPartial: c.AcceptPartial,
	}, nil
}

// Report describes one NormalizeAndRepair call.
type Report struct {
	Clean   mesh.CleanReport
	Pose    pose.Transform
	Remesh  []remesh.Report // one per pass
	Holes   []holes.Report  // one per pass
	Partial bool            // last pass missed the band and the mesh was kept
	Final   remesh.State    // density class of the returned mesh
}

// OutOfBand reports whether the returned mesh lies outside the density
// band. This happens without an error after an overshoot that no later
// pass corrected, or with AcceptPartial.
func (r Report) OutOfBand() bool {
	return r.Final != remesh.Accepted
}

// NoHolesFound reports whether no pass had anything to fill.
func (r Report) NoHolesFound() bool {
	for _, h := range r.Holes {
		if !h.NoHolesFound() {
			return false
		}
	}
	return true
}

// Added returns the number of triangles added by hole filling.
func (r Report) Added() int {
	n := 0
	for _, h := range r.Holes {
		n += h.Added
	}
	return n
}

// NormalizeAndRepair welds and cleans m, maps it into the canonical pose,
// drives its density into the band and closes its boundary loops. m is not
// modified.
//
// The first failing stage aborts the call with a *StageError. A missed
// density band is only an error when opts.AcceptPartial is false.
func NormalizeAndRepair(m *mesh.Mesh, opts Options) (*mesh.Mesh, Report, error) {
	log := logger.Named("pipeline")
	var rep Report

	if err := m.Validate(); err != nil {
		return nil, rep, &StageError{Stage: StageValidate, Err: err}
	}

	out, cr := m.Clean()
	rep.Clean = cr
	if out.FaceCount() == 0 {
		return nil, rep, &StageError{Stage: StageClean, Err: mesh.ErrNoFaces}
	}
	if cr.Changed() {
		log.Debug("mesh cleaned",
			zap.Int("merged_vertices", cr.MergedVertices),
			zap.Int("unused_vertices", cr.UnusedVertices),
			zap.Int("dropped_faces", cr.DroppedFaces),
		)
	}

	out, tr, err := pose.Normalize(out, opts.Anchor)
	if err != nil {
		return nil, rep, &StageError{Stage: StagePose, Err: err}
	}
	rep.Pose = tr

	passes := opts.Passes
	if passes < 1 {
		passes = 1
	}
	for pass := 0; pass < passes; pass++ {
		remeshed, rr, err := remesh.Remesh(out, opts.Band, opts.IterationCap)
		rep.Remesh = append(rep.Remesh, rr)
		rep.Partial = false
		if err != nil {
			if !opts.AcceptPartial || !errors.Is(err, remesh.ErrIterationLimitExceeded) {
				return nil, rep, &StageError{Stage: StageRemesh, Pass: pass, Err: err}
			}
			log.Warn("keeping partially remeshed mesh", zap.Int("pass", pass+1), zap.Error(err))
			rep.Partial = true
		}

		filled, hr, err := holes.Fill(remeshed)
		rep.Holes = append(rep.Holes, hr)
		if err != nil {
			return nil, rep, &StageError{Stage: StageHoles, Pass: pass, Err: err}
		}
		out = filled

		if rr.Steps == 0 && hr.NoHolesFound() {
			break
		}
	}

	rep.Final = remesh.Classify(out, opts.Band)
	if rep.OutOfBand() {
		log.Warn("mesh outside density band",
			zap.Stringer("state", rep.Final),
			zap.Int("vertices", out.VertexCount()),
			zap.Int("faces", out.FaceCount()),
			zap.Int("low", opts.Band.Low),
			zap.Int("high", opts.Band.High),
		)
	}

	log.Debug("mesh normalized",
		zap.Int("vertices", out.VertexCount()),
		zap.Int("faces", out.FaceCount()),
		zap.Int("passes", len(rep.Remesh)),
		zap.Int("added", rep.Added()),
		zap.Bool("partial", rep.Partial),
	)
	return out, rep, nil
}
