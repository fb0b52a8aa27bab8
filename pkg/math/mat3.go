package math

// Mat3 is a 3x3 matrix in row-major order.
// Layout: [m0 m1 m2]
//
//	[m3 m4 m5]
//	[m6 m7 m8]
type Mat3 [9]float64

// Diagonal returns a matrix with d on the diagonal.
func Diagonal(d Vec3) Mat3 {
	return Mat3{
		d.X, 0, 0,
		0, d.Y, 0,
		0, 0, d.Z,
	}
}

// FromColumns builds a matrix whose columns are a, b and c.
func FromColumns(a, b, c Vec3) Mat3 {
	return Mat3{
		a.X, b.X, c.X,
		a.Y, b.Y, c.Y,
		a.Z, b.Z, c.Z,
	}
}

// At returns the element at row r, column c.
func (m Mat3) At(r, c int) float64 {
	return m[r*3+c]
}

// Row returns row r.
func (m Mat3) Row(r int) Vec3 {
	return Vec3{m[r*3], m[r*3+1], m[r*3+2]}
}

// Column returns column c.
func (m Mat3) Column(c int) Vec3 {
	return Vec3{m[c], m[3+c], m[6+c]}
}

// MulVec returns m * v with v as a column vector.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{m.Row(0).Dot(v), m.Row(1).Dot(v), m.Row(2).Dot(v)}
}

// MulRow returns v * m with v as a row vector. When the columns of m are
// basis axes this expresses v in that basis.
func (m Mat3) MulRow(v Vec3) Vec3 {
	return Vec3{v.Dot(m.Column(0)), v.Dot(m.Column(1)), v.Dot(m.Column(2))}
}

// Det returns the determinant.
func (m Mat3) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}
