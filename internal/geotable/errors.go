package geotable

import "github.com/rotisserie/eris"

// Sentinel errors surfaced by the pipeline. Callers match them with eris.Is
// after any number of wrapping layers.
var (
	// ErrFileNotFound indicates the input path does not exist.
	ErrFileNotFound = eris.New("geotable: file not found")

	// ErrUnsupportedFormat indicates the file extension maps to no known
	// reader or writer.
	ErrUnsupportedFormat = eris.New("geotable: unsupported format")

	// ErrInvalidGeometry indicates a degenerate geometry (empty coordinate
	// sequence, unclosed ring) was passed to a geometric operation.
	ErrInvalidGeometry = eris.New("geotable: invalid geometry")

	// ErrCoordSystemMismatch indicates an operation that needs consistent
	// linear units was attempted on a table in a geographic (degree) system,
	// or across tables in different systems. Detected by inspecting unit
	// metadata before the operation executes.
	ErrCoordSystemMismatch = eris.New("geotable: coordinate system mismatch")

	// ErrWriteError indicates serialization to disk failed. The destination
	// file is left untouched.
	ErrWriteError = eris.New("geotable: write failed")
)
