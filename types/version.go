package types

// Version is the canonical project version.
// The CLI, the event log format and the DSJSON joiner share this version.
const Version = "0.3.0"

// LogFormatVersion is the version stamped on every event log entry.
// Readers reject entries with a different major component.
const LogFormatVersion = "1"
