// FILE: logfan/src/internal/core/types.go
package core

import (
	"fmt"
	"strings"
)

// LogType is a bitmask of enabled sink families.
type LogType uint32

const (
	LogNothing   LogType = 0
	LogToConsole LogType = 1 << (iota - 1)
	LogToFile
	LogToListen
	LogToSyslog
	LogToList
)

// LogToAll enables every sink family.
const LogToAll = LogToConsole | LogToFile | LogToListen | LogToSyslog | LogToList

var logTypeNames = []struct {
	t    LogType
	name string
}{
	{LogToConsole, "console"},
	{LogToFile, "file"},
	{LogToListen, "listen"},
	{LogToSyslog, "syslog"},
	{LogToList, "list"},
}

// Has reports whether all bits of o are set.
func (t LogType) Has(o LogType) bool {
	return o != 0 && t&o == o
}

func (t LogType) String() string {
	if t == LogNothing {
		return "none"
	}
	var names []string
	for _, n := range logTypeNames {
		if t.Has(n.t) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseLogTypes converts names such as ["console", "file"] to a LogType.
func ParseLogTypes(names []string) (LogType, error) {
	var t LogType
outer:
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || name == "none" {
			continue
		}
		for _, n := range logTypeNames {
			if n.name == name {
				t |= n.t
				continue outer
			}
		}
		return 0, fmt.Errorf("unknown log type %q", name)
	}
	return t, nil
}

// ListenKind selects the transport flavor of a listener.
type ListenKind int

const (
	// ListenServer accepts viewer connections on a local port.
	ListenServer ListenKind = iota
	// ListenProxy connects outward to a remote aggregator.
	ListenProxy
	// ListenConsole writes plain text to the process console.
	ListenConsole
)

func (k ListenKind) String() string {
	switch k {
	case ListenServer:
		return "server"
	case ListenProxy:
		return "proxy"
	case ListenConsole:
		return "console"
	default:
		return fmt.Sprintf("ListenKind(%d)", int(k))
	}
}

// ParseListenKind converts "server", "proxy" or "console" to a ListenKind.
func ParseListenKind(s string) (ListenKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "server":
		return ListenServer, nil
	case "proxy":
		return ListenProxy, nil
	case "console":
		return ListenConsole, nil
	}
	return 0, fmt.Errorf("unknown listen kind %q", s)
}

// DefaultListenAddress is used when a listener config has no address.
const DefaultListenAddress = "127.0.0.1"

// ListenConfig describes one listener instance. Name is the unique registry key.
type ListenConfig struct {
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	Port        int        `json:"port"`
	Kind        ListenKind `json:"kind"`
	ShareName   string     `json:"share_name,omitempty"`
	Description string     `json:"description,omitempty"`
	PreText     string     `json:"pre_text,omitempty"`
}

// HostPort returns the address:port pair for network kinds.
func (c ListenConfig) HostPort() string {
	addr := c.Address
	if addr == "" {
		addr = DefaultListenAddress
	}
	return fmt.Sprintf("%s:%d", addr, c.Port)
}
