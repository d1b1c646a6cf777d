package reader

import "context"

// Reader abstracts read-only event log access for CLI commands.
type Reader interface {
	// InspectLog summarizes a binlog file, keeping at most limit rows
	// (0 means all).
	InspectLog(path string, limit int) (*InspectLogResponse, error)

	// JoinStats joins the entries selected by src and summarizes them.
	JoinStats(ctx context.Context, src JoinSource) (*JoinStats, error)
}

// defaultReader is the package-level reader instance.
var defaultReader Reader = NewLogReader()

// SetReader replaces the package-level reader. Tests use this to stub
// data access.
func SetReader(r Reader) {
	defaultReader = r
}

// GetReader returns the current package-level reader.
func GetReader() Reader {
	return defaultReader
}
