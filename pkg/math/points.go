package math

import (
	"errors"
	"fmt"
	gomath "math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Point-set errors.
var (
	ErrEmptyPointSet      = errors.New("empty point set")
	ErrDegenerateGeometry = errors.New("degenerate geometry")
)

// Eigenvalue thresholds below which a covariance is treated as singular.
const (
	DegenerateAbsEpsilon = 1e-18 // largest eigenvalue
	DegenerateRelEpsilon = 1e-12 // second eigenvalue relative to the largest
)

// PrincipalFrame holds the eigen decomposition of a covariance matrix.
type PrincipalFrame struct {
	Values [3]float64 // descending
	Axes   [3]Vec3    // unit axes matching Values; Axes[2] = Axes[0] x Axes[1]
}

// Basis returns the matrix whose columns are the principal axes.
func (f PrincipalFrame) Basis() Mat3 {
	return FromColumns(f.Axes[0], f.Axes[1], f.Axes[2])
}

// Centroid returns the mean position of points.
func Centroid(points []Vec3) (Vec3, error) {
	if len(points) == 0 {
		return Vec3{}, ErrEmptyPointSet
	}
	var sum Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(points))), nil
}

// Covariance returns the 3x3 covariance matrix of points, rows and columns
// being the X, Y and Z axes.
func Covariance(points []Vec3) (Mat3, error) {
	if len(points) < 2 {
		return Mat3{}, fmt.Errorf("covariance of %d points: %w", len(points), ErrDegenerateGeometry)
	}

	data := make([]float64, 0, len(points)*3)
	for _, p := range points {
		data = append(data, p.X, p.Y, p.Z)
	}
	obs := mat.NewDense(len(points), 3, data)

	cov := mat.NewSymDense(3, nil)
	stat.CovarianceMatrix(cov, obs, nil)

	var m Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r*3+c] = cov.At(r, c)
		}
	}
	return m, nil
}

// PrincipalAxes returns the eigenvalues (descending) and eigenvectors of a
// symmetric covariance matrix. The third axis is rebuilt as the cross product
// of the first two so the frame is always right-handed.
func PrincipalAxes(cov Mat3) (PrincipalFrame, error) {
	for _, v := range cov {
		if gomath.IsNaN(v) || gomath.IsInf(v, 0) {
			return PrincipalFrame{}, fmt.Errorf("non-finite covariance: %w", ErrDegenerateGeometry)
		}
	}

	sym := mat.NewSymDense(3, []float64{
		cov[0], cov[1], cov[2],
		cov[1], cov[4], cov[5],
		cov[2], cov[5], cov[8],
	})

	var eigen mat.EigenSym
	if ok := eigen.Factorize(sym, true); !ok {
		return PrincipalFrame{}, fmt.Errorf("eigen decomposition failed: %w", ErrDegenerateGeometry)
	}

	// Eigenvalues are in ascending order.
	vals := eigen.Values(nil)
	var vecs mat.Dense
	eigen.VectorsTo(&vecs)

	var frame PrincipalFrame
	for i := 0; i < 3; i++ {
		col := 2 - i
		frame.Values[i] = vals[col]
		frame.Axes[i] = Vec3{vecs.At(0, col), vecs.At(1, col), vecs.At(2, col)}.Normalize()
	}

	if frame.Values[0] <= DegenerateAbsEpsilon {
		return PrincipalFrame{}, fmt.Errorf("coincident points (largest eigenvalue %g): %w", frame.Values[0], ErrDegenerateGeometry)
	}
	if frame.Values[1] <= DegenerateRelEpsilon*frame.Values[0] {
		return PrincipalFrame{}, fmt.Errorf("collinear points (eigenvalues %g, %g): %w", frame.Values[0], frame.Values[1], ErrDegenerateGeometry)
	}

	frame.Axes[2] = frame.Axes[0].Cross(frame.Axes[1]).Normalize()
	return frame, nil
}
