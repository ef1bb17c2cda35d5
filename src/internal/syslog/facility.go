// FILE: logfan/src/internal/syslog/facility.go
package syslog

import (
	"fmt"
	"strconv"
	"strings"

	"logfan/src/internal/core"
)

// Facility is the RFC 5424 facility code, 0 (kernel) to 23 (local7).
type Facility uint8

const (
	FacilityKernel Facility = iota
	FacilityUser
	FacilityMail
	FacilityDaemon
	FacilityAuth
	FacilitySyslog
	FacilityPrinter
	FacilityNews
	FacilityUUCP
	FacilityClock
	FacilityAuthPriv
	FacilityFTP
	FacilityNTP
	FacilityAudit
	FacilityAlert
	FacilityCron
	FacilityLocal0
	FacilityLocal1
	FacilityLocal2
	FacilityLocal3
	FacilityLocal4
	FacilityLocal5
	FacilityLocal6
	FacilityLocal7
)

var facilityNames = [...]string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "clock", "authpriv", "ftp", "ntp", "audit", "alert", "cron",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

func (f Facility) String() string {
	if int(f) < len(facilityNames) {
		return facilityNames[f]
	}
	return "facility(" + strconv.Itoa(int(f)) + ")"
}

// ParseFacility accepts a facility name ("local0", "daemon") or its number.
func ParseFacility(s string) (Facility, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= len(facilityNames) {
			return 0, fmt.Errorf("facility %d out of range", n)
		}
		return Facility(n), nil
	}
	for i, name := range facilityNames {
		if name == s {
			return Facility(i), nil
		}
	}
	if s == "kernel" {
		return FacilityKernel, nil
	}
	return 0, fmt.Errorf("unknown facility %q", s)
}

// Severity is the RFC 5424 severity, 0 (emergency) to 7 (debug).
type Severity uint8

const (
	SeverityEmergency Severity = iota
	SeverityAlert
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInformational
	SeverityDebug
)

var severityNames = [...]string{
	"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "severity(" + strconv.Itoa(int(s)) + ")"
}

// SeverityFromCore maps the internal nine levels to syslog severities.
// Trace and Debug share the syslog Debug level.
func SeverityFromCore(s core.Severity) Severity {
	switch s {
	case core.SeverityTrace, core.SeverityDebug:
		return SeverityDebug
	case core.SeverityInfo:
		return SeverityInformational
	case core.SeverityNotice:
		return SeverityNotice
	case core.SeverityWarning:
		return SeverityWarning
	case core.SeverityError:
		return SeverityError
	case core.SeverityCritical:
		return SeverityCritical
	case core.SeverityAlert:
		return SeverityAlert
	case core.SeverityEmergency:
		return SeverityEmergency
	}
	return SeverityInformational
}

// ToCore maps a syslog severity back to the internal level.
func (s Severity) ToCore() core.Severity {
	switch s {
	case SeverityEmergency:
		return core.SeverityEmergency
	case SeverityAlert:
		return core.SeverityAlert
	case SeverityCritical:
		return core.SeverityCritical
	case SeverityError:
		return core.SeverityError
	case SeverityWarning:
		return core.SeverityWarning
	case SeverityNotice:
		return core.SeverityNotice
	case SeverityInformational:
		return core.SeverityInfo
	}
	return core.SeverityDebug
}

// Priority returns facility*8 + severity.
func Priority(f Facility, s Severity) int {
	return int(f)*8 + int(s)
}
