// Package remesh drives meshes into a target vertex/face-count band by
// global subdivision or decimation.
package remesh

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/shapenorm/internal/logger"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// ErrIterationLimitExceeded is returned when the band is not reached within
// the iteration cap or a step stops making progress.
var ErrIterationLimitExceeded = errors.New("remesh iteration limit exceeded")

// Band is the accepted inclusive range for both vertex and face counts.
type Band struct {
	Low  int
	High int
}

// State is the density classification of a mesh against a band.
type State int

const (
	Accepted State = iota
	TooSparse
	TooDense
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Accepted:
		return "Accepted"
	case TooSparse:
		return "TooSparse"
	case TooDense:
		return "TooDense"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Classify returns the state of m. Sparse takes precedence over dense.
func Classify(m *mesh.Mesh, band Band) State {
	v, f := m.VertexCount(), m.FaceCount()
	if v < band.Low || f < band.Low {
		return TooSparse
	}
	if v > band.High || f > band.High {
		return TooDense
	}
	return Accepted
}

// Report describes one Remesh call.
type Report struct {
	Initial State
	Final   State
	Steps   int
	Ratios  []float64 // reduction ratio of each decimation step
}

// Remesh subdivides a sparse mesh or decimates a dense one until it leaves
// that state, never both in one call. An overshoot (sparse input ending
// dense, or the reverse) is returned as is; a later call corrects it.
//
// When the cap is reached or a step makes no progress, the partially
// adjusted mesh is returned together with ErrIterationLimitExceeded.
func Remesh(m *mesh.Mesh, band Band, iterationCap int) (*mesh.Mesh, Report, error) {
	log := logger.Named("remesh")
	state := Classify(m, band)
	rep := Report{Initial: state, Final: state}

	var step func(*mesh.Mesh) *mesh.Mesh
	switch state {
	case Accepted:
		return m.Clone(), rep, nil
	case TooSparse:
		step = Subdivide
	case TooDense:
		step = func(cur *mesh.Mesh) *mesh.Mesh {
			ratio := ReductionRatio(band.High, cur.FaceCount())
			rep.Ratios = append(rep.Ratios, ratio)
			return Decimate(cur, ratio)
		}
	}

	out := m
	for Classify(out, band) == state {
		if rep.Steps >= iterationCap {
			return detach(m, out), rep, fmt.Errorf("%w: still %s after %d steps (vertices=%d faces=%d band=[%d, %d])",
				ErrIterationLimitExceeded, state, rep.Steps, out.VertexCount(), out.FaceCount(), band.Low, band.High)
		}

		next := step(out)
		if !progressed(state, out, next) {
			return detach(m, out), rep, fmt.Errorf("%w: %s step made no progress (vertices=%d faces=%d)",
				ErrIterationLimitExceeded, state, out.VertexCount(), out.FaceCount())
		}

		rep.Steps++
		log.Debug("remesh step",
			zap.Stringer("state", state),
			zap.Int("step", rep.Steps),
			zap.Int("vertices", next.VertexCount()),
			zap.Int("faces", next.FaceCount()),
		)
		out = next
	}

	rep.Final = Classify(out, band)
	return out, rep, nil
}

// detach keeps callers from receiving their own input buffer.
func detach(in, out *mesh.Mesh) *mesh.Mesh {
	if out == in {
		return in.Clone()
	}
	return out
}

func progressed(state State, before, after *mesh.Mesh) bool {
	if state == TooSparse {
		return after.FaceCount() > before.FaceCount()
	}
	return after.FaceCount() < before.FaceCount() || after.VertexCount() < before.VertexCount()
}
