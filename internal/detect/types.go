package detect

import (
	"time"
)

// Method identifies the evidence source a candidate was observed through.
type Method string

const (
	MethodRegistry       Method = "registry"
	MethodFilesystemScan Method = "filesystem-scan"
	MethodPathLookup     Method = "path-lookup"
	MethodPackageManager Method = "package-manager"
	MethodManualRule     Method = "manual-rule"
)

// Priority returns the fixed tie-break rank of a detection method.
// Higher values win when confidence is equal.
func (m Method) Priority() int {
	switch m {
	case MethodRegistry:
		return 5
	case MethodManualRule:
		return 4
	case MethodPathLookup:
		return 3
	case MethodFilesystemScan:
		return 2
	case MethodPackageManager:
		return 1
	default:
		return 0
	}
}

// Status describes the observed state of an installation.
type Status string

const (
	StatusInstalled    Status = "installed"
	StatusNotInstalled Status = "not-installed"
	StatusOutdated     Status = "outdated"
	StatusCorrupted    Status = "corrupted"
	StatusUnknown      Status = "unknown"
)

// VersionUnknown is the placeholder version for candidates whose version
// could not be determined.
const VersionUnknown = "unknown"

// Candidate is one strategy's observation of a possibly-installed component.
// Candidates are immutable once produced: the coordinator replaces them
// during merging but never mutates one in place.
type Candidate struct {
	Name           string            `json:"name"`
	Version        string            `json:"version"`
	InstallPath    string            `json:"install_path,omitempty"`
	ExecutablePath string            `json:"executable_path,omitempty"`
	Method         Method            `json:"method"`
	Status         Status            `json:"status"`
	Confidence     float64           `json:"confidence"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NewCandidate builds a Candidate with confidence clamped to [0,1] and an
// empty version normalized to "unknown".
func NewCandidate(name, version string, method Method, status Status, confidence float64) Candidate {
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	if version == "" {
		version = VersionUnknown
	}
	return Candidate{
		Name:       name,
		Version:    version,
		Method:     method,
		Status:     status,
		Confidence: confidence,
	}
}

// DetectionResult is the outcome of one coordinator pass.
type DetectionResult struct {
	RunID           string         `json:"run_id"`
	Applications    []Candidate    `json:"applications"`
	SummaryByMethod map[Method]int `json:"detection_summary"`
	Errors          []string       `json:"errors"`
	Warnings        []string       `json:"warnings"`
	TotalDetected   int            `json:"total_detected"`
	Elapsed         time.Duration  `json:"elapsed"`
}
