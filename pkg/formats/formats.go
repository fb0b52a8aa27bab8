// Package formats reads and writes triangle meshes in OFF, OBJ and binary
// STL files.
package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/shapenorm/pkg/mesh"
)

// Format errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported mesh format")
	ErrInvalidOFFHeader  = errors.New("invalid OFF header")
	ErrTruncatedOFFData  = errors.New("truncated OFF data")
	ErrInvalidVertex     = errors.New("invalid vertex")
	ErrInvalidFace       = errors.New("invalid face")
)

// Format identifies a mesh file format.
type Format string

// Supported formats.
const (
	FormatOFF Format = "off"
	FormatOBJ Format = "obj"
	FormatSTL Format = "stl"
)

// FormatOf returns the format implied by the file extension of path.
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch Format(ext) {
	case FormatOFF, FormatOBJ, FormatSTL:
		return Format(ext), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// IsMeshFile reports whether path has a supported extension.
func IsMeshFile(path string) bool {
	_, err := FormatOf(path)
	return err == nil
}

// Load reads a mesh file, choosing the parser by extension.
func Load(path string) (*mesh.Mesh, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == FormatSTL {
		return LoadSTL(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mesh file: %w", err)
	}
	defer f.Close()

	var m *mesh.Mesh
	switch format {
	case FormatOFF:
		m, err = ReadOFF(f)
	case FormatOBJ:
		m, err = ReadOBJ(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path, choosing the writer by extension. Parent
// directories are created as needed.
func Save(path string, m *mesh.Mesh) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if format == FormatSTL {
		return SaveSTL(path, m)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating mesh file: %w", err)
	}
	switch format {
	case FormatOFF:
		err = WriteOFF(f, m)
	case FormatOBJ:
		err = WriteOBJ(f, m)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// triangulate fans a polygon around its first corner.
func triangulate(polygon []int) []mesh.Face {
	faces := make([]mesh.Face, 0, len(polygon)-2)
	for i := 1; i < len(polygon)-1; i++ {
		faces = append(faces, mesh.Face{polygon[0], polygon[i], polygon[i+1]})
	}
	return faces
}
