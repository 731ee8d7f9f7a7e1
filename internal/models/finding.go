package models

import (
	"fmt"
	"sort"
	"sync"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Kind string

const (
	KindUnresolved        Kind = "unresolved_binding"
	KindUnsupported       Kind = "unsupported_position"
	KindAnonymousCapture  Kind = "anonymous_class_capture"
	KindInstrumentFailure Kind = "instrumentation_failure"
	KindMissingSupport    Kind = "missing_support_method"
	KindMissingRetain     Kind = "missing_retain"
	KindMissingRelease    Kind = "missing_release"
	KindMissingExchange   Kind = "missing_field_exchange"
	KindUnwrappedCapture  Kind = "unwrapped_capture"
	KindPlainOwner        Kind = "refcounted_field_in_plain_type"
)

type Finding struct {
	Kind       Kind     `json:"kind"`
	Severity   Severity `json:"severity"`
	Pass       string   `json:"pass,omitempty"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Binding    string   `json:"binding,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func (f Finding) String() string {
	s := fmt.Sprintf("%s:%d:%d: %s", f.File, f.Line, f.Column, f.Message)
	if f.Binding != "" {
		s += " (" + f.Binding + ")"
	}
	return s
}

// PassStat records one run of a pass.
type PassStat struct {
	Stage     string `json:"stage"`
	Pass      string `json:"pass"`
	Iteration int    `json:"iteration"`
	Changed   int    `json:"changed"`
}

type RunResult struct {
	Command            string         `json:"command"`
	Files              []string       `json:"files_processed"`
	FilesChanged       []string       `json:"files_changed"`
	DryRun             bool           `json:"dry_run"`
	Passes             []PassStat     `json:"passes"`
	TotalFindings      int            `json:"total_findings"`
	FindingsBySeverity map[string]int `json:"findings_by_severity"`
	Findings           []Finding      `json:"findings"`
	Duration           string         `json:"duration"`

	mu sync.Mutex
}

func NewRunResult(command string) *RunResult {
	return &RunResult{
		Command:            command,
		Files:              make([]string, 0),
		FilesChanged:       make([]string, 0),
		Findings:           make([]Finding, 0),
		FindingsBySeverity: make(map[string]int),
	}
}

// AddFinding is safe for concurrent use by pass workers.
func (r *RunResult) AddFinding(f Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Findings = append(r.Findings, f)
	r.TotalFindings++
	r.FindingsBySeverity[f.Severity.String()]++
}

func (r *RunResult) AddPass(stat PassStat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Passes = append(r.Passes, stat)
}

// MarkChanged records a persisted (or, in a dry run, pending) file once.
func (r *RunResult) MarkChanged(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.FilesChanged {
		if p == path {
			return
		}
	}
	r.FilesChanged = append(r.FilesChanged, path)
	sort.Strings(r.FilesChanged)
}

// SortFindings orders findings by file and position so reports are stable
// regardless of worker scheduling.
func (r *RunResult) SortFindings() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.Findings, func(i, j int) bool {
		a, b := r.Findings[i], r.Findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Count returns the number of findings with severity at least floor.
func (r *RunResult) Count(floor Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.Findings {
		if f.Severity >= floor {
			n++
		}
	}
	return n
}
