// FILE: logfan/src/internal/syslog/message.go
package syslog

import (
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"logfan/src/internal/core"
)

// Version is the only protocol version produced and accepted.
const Version = 1

const nilValue = "-"

var bom = []byte{0xEF, 0xBB, 0xBF}

// Header field limits from RFC 5424 section 6.
const (
	maxHostname = 255
	maxAppName  = 48
	maxProcID   = 128
	maxMsgID    = 32
)

// Message is an RFC 5424 message. Empty header fields are encoded as "-".
type Message struct {
	Facility       Facility
	Severity       Severity
	Index          uint64
	Timestamp      time.Time
	Hostname       string
	AppName        string
	ProcID         string
	MsgID          string
	StructuredData []StructuredData
	Text           string

	current int
}

// NewMessage returns a message with the usual defaults: Local0, informational,
// current time, host name and process id.
func NewMessage(text string) *Message {
	host, _ := os.Hostname()
	return &Message{
		Facility:  FacilityLocal0,
		Severity:  SeverityInformational,
		Timestamp: time.Now(),
		Hostname:  host,
		ProcID:    strconv.Itoa(os.Getpid()),
		Text:      text,
		current:   -1,
	}
}

// Options carries the per-server values used when translating log messages.
type Options struct {
	Facility     Facility
	Hostname     string
	AppName      string
	MsgID        string
	ShowLocation bool
	// OriginIP and Software populate the origin element when set.
	OriginIP string
	Software string
}

// FromLogMessage translates a LogMessage. The index is left for the server to assign.
func FromLogMessage(lm core.LogMessage, opts Options) *Message {
	m := &Message{
		Facility:  opts.Facility,
		Severity:  SeverityFromCore(lm.Severity),
		Timestamp: lm.Time,
		Hostname:  opts.Hostname,
		AppName:   opts.AppName,
		ProcID:    strconv.Itoa(lm.PID),
		MsgID:     opts.MsgID,
		Text:      lm.Text,
		current:   -1,
	}
	if opts.OriginIP != "" || opts.Software != "" {
		sd := m.AddStructuredData(OriginID)
		if opts.OriginIP != "" {
			sd.Set("ip", opts.OriginIP)
		}
		if opts.Software != "" {
			sd.Set("software", opts.Software)
		}
	}
	if opts.ShowLocation && !lm.Location.IsZero() {
		sd := m.AddStructuredData(SourceLocationID)
		if lm.Location.Function != "" {
			sd.Set("Function", lm.Location.Function)
		}
		if lm.Location.File != "" {
			sd.Set("File", lm.Location.File)
		}
		if lm.Location.Line > 0 {
			sd.Set("Line", strconv.Itoa(lm.Location.Line))
		}
		if lm.GoroutineID > 0 {
			sd.Set("Goroutine", strconv.FormatUint(lm.GoroutineID, 10))
		}
	}
	return m
}

// SetHostname stores s, treating the nil value "-" as empty.
func (m *Message) SetHostname(s string) { m.Hostname = orEmpty(s) }

func (m *Message) SetAppName(s string) { m.AppName = orEmpty(s) }

func (m *Message) SetProcID(s string) { m.ProcID = orEmpty(s) }

func (m *Message) SetMsgID(s string) { m.MsgID = orEmpty(s) }

// SetText stores s without a leading byte order mark.
func (m *Message) SetText(s string) {
	m.Text = strings.TrimPrefix(s, string(bom))
}

func orEmpty(s string) string {
	if s == nilValue {
		return ""
	}
	return s
}

// Priority returns the PRI value.
func (m *Message) Priority() int {
	return Priority(m.Facility, m.Severity)
}

// AddStructuredData returns the element with the given identity, creating it
// when absent. A repeated identity merges into the existing element.
func (m *Message) AddStructuredData(identity string) *StructuredData {
	id := sanitizeIdentity(identity)
	if id == "" {
		return &StructuredData{}
	}
	for i := range m.StructuredData {
		if m.StructuredData[i].ID == id {
			m.current = i
			return &m.StructuredData[i]
		}
	}
	m.StructuredData = append(m.StructuredData, StructuredData{ID: id})
	m.current = len(m.StructuredData) - 1
	return &m.StructuredData[m.current]
}

// AppendParameter sets a parameter on the element most recently added with
// AddStructuredData. It is a no-op when there is none.
func (m *Message) AppendParameter(name, value string) {
	if m.current < 0 || m.current >= len(m.StructuredData) {
		if len(m.StructuredData) == 0 {
			return
		}
		m.current = len(m.StructuredData) - 1
	}
	m.StructuredData[m.current].Set(name, value)
}

// Lookup returns the element with the given identity.
func (m *Message) Lookup(identity string) (StructuredData, bool) {
	for _, sd := range m.StructuredData {
		if sd.ID == identity {
			return sd, true
		}
	}
	return StructuredData{}, false
}

// Encode renders the message in RFC 5424 wire form.
func (m *Message) Encode() []byte {
	return m.AppendEncode(make([]byte, 0, 128+len(m.Text)))
}

func (m *Message) String() string {
	return string(m.Encode())
}

// AppendEncode appends the wire form to b.
func (m *Message) AppendEncode(b []byte) []byte {
	b = append(b, '<')
	b = strconv.AppendInt(b, int64(m.Priority()), 10)
	b = append(b, '>')
	b = strconv.AppendInt(b, Version, 10)
	b = append(b, ' ')
	b = appendTimestamp(b, m.Timestamp)
	b = append(b, ' ')
	b = appendField(b, m.Hostname, maxHostname)
	b = append(b, ' ')
	b = appendField(b, m.AppName, maxAppName)
	b = append(b, ' ')
	b = appendField(b, m.ProcID, maxProcID)
	b = append(b, ' ')
	b = appendField(b, m.MsgID, maxMsgID)
	b = append(b, ' ')

	sdCount := 0
	if m.Index > 0 {
		b = append(b, "["+MetaID+" "+MetaSequenceID+"=\""...)
		b = strconv.AppendUint(b, m.Index, 10)
		b = append(b, "\"]"...)
		sdCount++
	}
	for _, sd := range m.StructuredData {
		if sd.ID == "" || sd.ID == MetaID {
			continue
		}
		b = sd.appendTo(b)
		sdCount++
	}
	if sdCount == 0 {
		b = append(b, nilValue...)
	}

	if m.Text != "" {
		b = append(b, ' ')
		if !isASCII(m.Text) && utf8.ValidString(m.Text) {
			b = append(b, bom...)
		}
		b = append(b, m.Text...)
	}
	return b
}

// appendTimestamp writes seconds, milliseconds or microseconds depending on
// the precision the time actually carries.
func appendTimestamp(b []byte, t time.Time) []byte {
	if t.IsZero() {
		return append(b, nilValue...)
	}
	t = t.UTC()
	ns := t.Nanosecond()
	switch {
	case ns == 0:
		return t.AppendFormat(b, "2006-01-02T15:04:05Z07:00")
	case ns%int(time.Millisecond) == 0:
		return t.AppendFormat(b, "2006-01-02T15:04:05.000Z07:00")
	default:
		return t.AppendFormat(b, "2006-01-02T15:04:05.000000Z07:00")
	}
}

func appendField(b []byte, s string, max int) []byte {
	if s == "" || s == nilValue {
		return append(b, nilValue...)
	}
	s = truncatePrintable(s, max)
	if s == "" {
		return append(b, nilValue...)
	}
	return append(b, s...)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
