package formats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// ReadOBJ parses the geometry of a Wavefront OBJ file. Only "v" and "f"
// statements are used; texture and normal references in faces are ignored,
// negative indices count back from the latest vertex and polygons are
// fan-triangulated.
func ReadOBJ(r io.Reader) (*mesh.Mesh, error) {
	m := &mesh.Mesh{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			v, err := parseVertex(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			m.Vertices = append(m.Vertices, v)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: %w: %d corners", lineNo, ErrInvalidFace, len(fields)-1)
			}
			polygon := make([]int, len(fields)-1)
			for i, arg := range fields[1:] {
				idx, err := objIndex(arg, len(m.Vertices))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				polygon[i] = idx
			}
			m.Faces = append(m.Faces, triangulate(polygon)...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ data: %w", err)
	}
	return m, nil
}

// objIndex converts a 1-based (or negative, relative) OBJ vertex reference
// such as "3", "3/1" or "-1//2" to a 0-based index.
func objIndex(ref string, numVertices int) (int, error) {
	head, _, _ := strings.Cut(ref, "/")
	parsed, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("%w: bad index %q", ErrInvalidFace, ref)
	}
	idx := parsed - 1
	if parsed < 0 {
		idx = numVertices + parsed
	}
	if parsed == 0 || idx < 0 || idx >= numVertices {
		return 0, fmt.Errorf("%w: index %d (vertices: %d): %w", ErrInvalidFace, parsed, numVertices, mesh.ErrIndexOutOfRange)
	}
	return idx, nil
}

// WriteOBJ writes m as an OBJ file.
func WriteOBJ(w io.Writer, m *mesh.Mesh) error {
	bw := bufio.NewWriter(w)
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %s %s %s\n", formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
	}
	for _, f := range m.Faces {
		fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1)
	}
	return bw.Flush()
}
