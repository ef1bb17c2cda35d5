// FILE: logfan/src/internal/core/severity.go
package core

import (
	"fmt"
	"strings"
)

// Severity is the internal nine-level log severity, ordered from least to most urgent.
type Severity uint8

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityNotice
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityAlert
	SeverityEmergency
)

// SeverityCount is the number of defined severities.
const SeverityCount = 9

var severityNames = [SeverityCount]string{
	"Trace", "Debug", "Info", "Notice", "Warning", "Error", "Critical", "Alert", "Emergency",
}

func (s Severity) String() string {
	if s.Valid() {
		return severityNames[s]
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	return s < SeverityCount
}

// Mask returns the bit of s within a SeverityMask.
func (s Severity) Mask() SeverityMask {
	if !s.Valid() {
		return 0
	}
	return 1 << s
}

// ParseSeverity converts a name such as "info", "WARN" or "error" to a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return SeverityTrace, nil
	case "debug":
		return SeverityDebug, nil
	case "info", "informational":
		return SeverityInfo, nil
	case "notice":
		return SeverityNotice, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error", "err":
		return SeverityError, nil
	case "critical", "crit":
		return SeverityCritical, nil
	case "alert":
		return SeverityAlert, nil
	case "emergency", "emerg", "fatal":
		return SeverityEmergency, nil
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// SeverityMask is a set of severities, one bit per level.
type SeverityMask uint32

// AllSeverities accepts every level.
const AllSeverities SeverityMask = 1<<SeverityCount - 1

// MaskFrom returns the mask of all severities at or above min.
func MaskFrom(min Severity) SeverityMask {
	if !min.Valid() {
		return 0
	}
	return AllSeverities &^ (1<<min - 1)
}

// Has reports whether s is in the mask.
func (m SeverityMask) Has(s Severity) bool {
	return m&s.Mask() != 0
}

// String renders the mask as a comma separated list, e.g. "Info,Error".
func (m SeverityMask) String() string {
	var names []string
	for i := Severity(0); i < SeverityCount; i++ {
		if m.Has(i) {
			names = append(names, i.String())
		}
	}
	return strings.Join(names, ",")
}

// ParseSeverityMask parses a comma separated list of severity names.
// An empty string yields an empty mask.
func ParseSeverityMask(text string) (SeverityMask, error) {
	var m SeverityMask
	for _, part := range strings.Split(text, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseSeverity(part)
		if err != nil {
			return 0, err
		}
		m |= s.Mask()
	}
	return m, nil
}
