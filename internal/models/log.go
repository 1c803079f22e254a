// Package models defines the core data types shared across logtower components.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity represents the criticality of a log record.
type Severity string

// Known severity levels, ordered from most to least critical.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityError    Severity = "ERROR"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
	SeverityDebug    Severity = "DEBUG"
)

// Severities lists all known severity levels, most critical first.
var Severities = []Severity{
	SeverityCritical,
	SeverityError,
	SeverityWarning,
	SeverityInfo,
	SeverityDebug,
}

// severityRanks maps each severity to its rank. Higher means more critical.
var severityRanks = map[Severity]int{
	SeverityCritical: 5,
	SeverityError:    4,
	SeverityWarning:  3,
	SeverityInfo:     2,
	SeverityDebug:    1,
}

// IsValid reports whether the severity is one of the five known levels.
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Rank returns the numeric rank of the severity. Higher means more critical.
// Unknown severities rank below DEBUG.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// ParseSeverity parses a severity string case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// InferSeverity guesses a severity from the text of a log message.
// Agents that forward raw syslog/journald lines do not always carry an
// explicit level, so the message itself is scanned for common markers.
func InferSeverity(message string) Severity {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "critical"):
		return SeverityCritical
	case strings.Contains(m, "error"), strings.Contains(m, "err"),
		strings.Contains(m, "failed"), strings.Contains(m, "failure"):
		return SeverityError
	case strings.Contains(m, "warn"):
		return SeverityWarning
	case strings.Contains(m, "debug"):
		return SeverityDebug
	default:
		return SeverityInfo
	}
}

// LogRecord represents a single normalized log event from a monitored machine.
// Records are immutable once ingested.
type LogRecord struct {
	MachineID string    `json:"machine_id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"log"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// LogFilter selects log records by conjunction of its non-zero fields.
// The zero value matches every record.
type LogFilter struct {
	MachineID string
	Severity  Severity
	Contains  string
}

// Matches reports whether the record satisfies every set predicate.
func (f LogFilter) Matches(rec *LogRecord) bool {
	if f.MachineID != "" && rec.MachineID != f.MachineID {
		return false
	}
	if f.Severity != "" && rec.Severity != f.Severity {
		return false
	}
	if f.Contains != "" && !strings.Contains(strings.ToLower(rec.Message), strings.ToLower(f.Contains)) {
		return false
	}
	return true
}

// IsZero reports whether the filter has no predicates set.
func (f LogFilter) IsZero() bool {
	return f.MachineID == "" && f.Severity == "" && f.Contains == ""
}
