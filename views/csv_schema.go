package views

// CSVSchema defines the column layout of each session file.

// FileType identifies a session CSV for schema lookups.
type FileType int

const (
	FileShakes FileType = iota
	FileIncidents
)

var fileNames = map[FileType]string{
	FileShakes:    "shakes.csv",
	FileIncidents: "incidents.csv",
}

func (f FileType) String() string {
	if n, ok := fileNames[f]; ok {
		return n
	}
	return "unknown"
}

// SchemaColumns returns the canonical column list for a file. Each list
// matches the row layout the recorder writes for that file.
var SchemaColumns = map[FileType][]string{
	FileShakes: {
		"timestamp_ns", "event_id", "magnitude", "suppressed",
	},
	FileIncidents: {
		"incident_id", "detected_ns", "magnitude", "countdown_ms",
		"action", "resolved_by", "resolved_ns",
	},
}
