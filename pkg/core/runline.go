package core

// RunLine is a single line of captured job output.
type RunLine struct {
	Job      string `json:"job"`
	TsUnixMs int64  `json:"ts_unix_ms"`
	Stream   string `json:"stream"` // "stdout", "stderr", "logfile"
	Line     string `json:"line"`
}
