package formats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Faultbox/shapenorm/pkg/math"
	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// ReadOFF parses an Object File Format mesh as used by the Princeton Shape
// Benchmark. Comment and blank lines are skipped, the "OFF" keyword is
// optional and polygons are fan-triangulated. Data after the last face is
// ignored.
func ReadOFF(r io.Reader) (*mesh.Mesh, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		m                     = &mesh.Mesh{}
		headerRead            bool
		numVertices, numFaces int
		readFaces             int
		lineNo                int
	)

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch {
		case !headerRead:
			if fields[0] == "OFF" {
				fields = fields[1:]
				if len(fields) == 0 {
					continue
				}
			}
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: expected 3 counts, got %d", ErrInvalidOFFHeader, lineNo, len(fields))
			}
			counts := make([]int, 3)
			for i, s := range fields {
				n, err := strconv.Atoi(s)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("%w: line %d: bad count %q", ErrInvalidOFFHeader, lineNo, s)
				}
				counts[i] = n
			}
			numVertices, numFaces = counts[0], counts[1]
			m.Vertices = make([]math.Vec3, 0, numVertices)
			m.Faces = make([]mesh.Face, 0, numFaces)
			headerRead = true

		case len(m.Vertices) < numVertices:
			v, err := parseVertex(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			m.Vertices = append(m.Vertices, v)

		case readFaces < numFaces:
			polygon, err := parseOFFFace(fields, numVertices)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			m.Faces = append(m.Faces, triangulate(polygon)...)
			readFaces++
		}

		if headerRead && len(m.Vertices) == numVertices && readFaces == numFaces {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OFF data: %w", err)
	}

	if !headerRead {
		return nil, fmt.Errorf("%w: missing counts", ErrInvalidOFFHeader)
	}
	if len(m.Vertices) != numVertices || readFaces != numFaces {
		return nil, fmt.Errorf("%w: expected %d vertices and %d faces, read %d and %d",
			ErrTruncatedOFFData, numVertices, numFaces, len(m.Vertices), readFaces)
	}
	return m, nil
}

func parseVertex(fields []string) (math.Vec3, error) {
	if len(fields) < 3 {
		return math.Vec3{}, fmt.Errorf("%w: expected 3 coordinates, got %d", ErrInvalidVertex, len(fields))
	}
	var c [3]float64
	for i := range c {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return math.Vec3{}, fmt.Errorf("%w: %q", ErrInvalidVertex, fields[i])
		}
		c[i] = f
	}
	v := math.FromArray(c)
	if !v.IsFinite() {
		return math.Vec3{}, fmt.Errorf("%w: %v", mesh.ErrNonFiniteVertex, v)
	}
	return v, nil
}

func parseOFFFace(fields []string, numVertices int) ([]int, error) {
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad corner count %q", ErrInvalidFace, fields[0])
	}
	if n < 3 {
		return nil, fmt.Errorf("%w: %d corners", ErrInvalidFace, n)
	}
	if len(fields) < n+1 {
		return nil, fmt.Errorf("%w: expected %d indices, got %d", ErrInvalidFace, n, len(fields)-1)
	}

	polygon := make([]int, n)
	for i := range polygon {
		idx, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: bad index %q", ErrInvalidFace, fields[i+1])
		}
		if idx < 0 || idx >= numVertices {
			return nil, fmt.Errorf("%w: index %d (vertices: %d): %w", ErrInvalidFace, idx, numVertices, mesh.ErrIndexOutOfRange)
		}
		polygon[i] = idx
	}
	return polygon, nil
}

// WriteOFF writes m as an OFF file.
func WriteOFF(w io.Writer, m *mesh.Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "OFF\n%d %d 0\n", m.VertexCount(), m.FaceCount())
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "%s %s %s\n", formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
	}
	for _, f := range m.Faces {
		fmt.Fprintf(bw, "3 %d %d %d\n", f[0], f[1], f[2])
	}
	return bw.Flush()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
