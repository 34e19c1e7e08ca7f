// Package report renders hashing results as a text table, JSON or YAML.
package report

import (
	"github.com/Sumatoshi-tech/multisum/pkg/session"
)

// SchemaVersion identifies the JSON document layout described by schema.json.
const SchemaVersion = "1"

// Report is the output of one CLI run.
type Report struct {
	SchemaVersion string  `json:"schema_version" yaml:"schema_version"`
	Version       string  `json:"version"        yaml:"version"`
	Entries       []Entry `json:"entries"        yaml:"entries"`
}

// Entry is the outcome for one input.
type Entry struct {
	Label     string   `json:"label"                yaml:"label"`
	Source    string   `json:"source"               yaml:"source"`
	Size      int64    `json:"size"                 yaml:"size"`
	Chunks    int      `json:"chunks"               yaml:"chunks"`
	ElapsedMS float64  `json:"elapsed_ms"           yaml:"elapsed_ms"`
	Digests   []Digest `json:"digests"              yaml:"digests"`
	Error     string   `json:"error,omitempty"      yaml:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
}

// Digest is one algorithm's hex digest.
type Digest struct {
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Hex       string `json:"hex"       yaml:"hex"`
}

// New returns an empty report stamped with the binary version.
func New(version string) *Report {
	return &Report{SchemaVersion: SchemaVersion, Version: version, Entries: []Entry{}}
}

// AddResult appends a completed input.
func (r *Report) AddResult(res session.Result) {
	digests := make([]Digest, 0, len(res.Algorithms))
	for _, d := range res.Ordered() {
		digests = append(digests, Digest{Algorithm: d.Algorithm.String(), Hex: d.Hex})
	}

	r.Entries = append(r.Entries, Entry{
		Label:     res.Label,
		Source:    res.Source,
		Size:      res.TotalSize,
		Chunks:    res.Chunks,
		ElapsedMS: float64(res.Elapsed.Microseconds()) / 1e3,
		Digests:   digests,
	})
}

// AddFailure appends an input that produced no digests.
func (r *Report) AddFailure(label, source string, size int64, kind session.ErrorKind, err error) {
	r.Entries = append(r.Entries, Entry{
		Label:     label,
		Source:    source,
		Size:      size,
		Digests:   []Digest{},
		Error:     err.Error(),
		ErrorKind: kind.String(),
	})
}

// Failed reports whether any entry carries an error.
func (r *Report) Failed() bool {
	for _, e := range r.Entries {
		if e.Error != "" {
			return true
		}
	}

	return false
}
