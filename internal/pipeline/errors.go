package pipeline

import (
	"errors"
	"fmt"

	"github.com/Faultbox/shapenorm/internal/remesh"
	"github.com/Faultbox/shapenorm/pkg/math"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// Error kinds surfaced by NormalizeAndRepair. Match them with errors.Is.
var (
	ErrDegenerateGeometry     = math.ErrDegenerateGeometry
	ErrIterationLimitExceeded = remesh.ErrIterationLimitExceeded
	ErrNoFaces                = mesh.ErrNoFaces
	ErrVertexLookupAmbiguous  = mesh.ErrVertexLookupAmbiguous
	ErrVertexNotFound         = mesh.ErrVertexNotFound
)

// Stage names a pipeline step.
type Stage string

// Pipeline stages in execution order.
const (
	StageValidate Stage = "validate"
	StageClean    Stage = "clean"
	StagePose     Stage = "pose"
	StageRemesh   Stage = "remesh"
	StageHoles    Stage = "holes"
)

// StageError records which stage failed.
type StageError struct {
	Stage Stage
	Pass  int
	Err   error
}

func (e *StageError) Error() string {
	if e.Stage == StageRemesh || e.Stage == StageHoles {
		return fmt.Sprintf("%s (pass %d): %v", e.Stage, e.Pass+1, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err, or "" if err did not come
// from a pipeline stage.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
