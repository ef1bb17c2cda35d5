// FILE: logfan/src/internal/syslog/parse.go
package syslog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	gosyslog "github.com/influxdata/go-syslog/v2"
	"github.com/influxdata/go-syslog/v2/octetcounting"
	"github.com/influxdata/go-syslog/v2/rfc5424"
)

// ErrParse wraps every decoding failure.
var ErrParse = errors.New("syslog parse error")

// Parse decodes one RFC 5424 message. The meta sequenceId parameter is
// moved into Index and a leading BOM is removed from the text.
func Parse(data []byte) (*Message, error) {
	parsed, err := rfc5424.NewParser().Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return fromParsed(parsed)
}

// ReadFrames decodes an octet-counted stream ("LEN SP MSG") until r is
// exhausted, calling fn for every message or decoding error.
func ReadFrames(r io.Reader, fn func(*Message, error)) {
	p := octetcounting.NewParser()
	p.WithListener(func(res *gosyslog.Result) {
		if res.Error != nil && res.Message == nil {
			fn(nil, fmt.Errorf("%w: %v", ErrParse, res.Error))
			return
		}
		m, err := fromParsed(res.Message)
		fn(m, err)
	})
	p.Parse(r)
}

// AppendFrame appends the octet-counted framing of m to b.
func AppendFrame(b []byte, m *Message) []byte {
	msg := m.Encode()
	b = strconv.AppendInt(b, int64(len(msg)), 10)
	b = append(b, ' ')
	return append(b, msg...)
}

// SplitFrame extracts one octet-counted frame from the head of buf. It
// returns advance 0 when buf does not yet hold a complete frame.
func SplitFrame(buf []byte) (frame []byte, advance int, err error) {
	sp := bytes.IndexByte(buf, ' ')
	if sp < 0 {
		if len(buf) > 10 {
			return nil, 0, fmt.Errorf("%w: missing frame length", ErrParse)
		}
		return nil, 0, nil
	}
	n, convErr := strconv.Atoi(string(buf[:sp]))
	if convErr != nil || n <= 0 {
		return nil, 0, fmt.Errorf("%w: invalid frame length %q", ErrParse, buf[:sp])
	}
	end := sp + 1 + n
	if len(buf) < end {
		return nil, 0, nil
	}
	return buf[sp+1 : end], end, nil
}

func fromParsed(parsed gosyslog.Message) (*Message, error) {
	if parsed == nil || !parsed.Valid() {
		return nil, fmt.Errorf("%w: invalid message", ErrParse)
	}

	m := &Message{current: -1}
	if f := parsed.Facility(); f != nil {
		m.Facility = Facility(*f)
	}
	if s := parsed.Severity(); s != nil {
		m.Severity = Severity(*s)
	}
	if ts := parsed.Timestamp(); ts != nil {
		m.Timestamp = *ts
	}
	m.SetHostname(deref(parsed.Hostname()))
	m.SetAppName(deref(parsed.Appname()))
	m.SetProcID(deref(parsed.ProcID()))
	m.SetMsgID(deref(parsed.MsgID()))
	m.SetText(deref(parsed.Message()))

	if sdp := parsed.StructuredData(); sdp != nil {
		ids := make([]string, 0, len(*sdp))
		for id := range *sdp {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			params := (*sdp)[id]
			if id == MetaID {
				if seq, ok := params[MetaSequenceID]; ok {
					if n, err := strconv.ParseUint(seq, 10, 64); err == nil {
						m.Index = n
					}
				}
				continue
			}
			names := make([]string, 0, len(params))
			for name := range params {
				names = append(names, name)
			}
			sort.Strings(names)

			sd := StructuredData{ID: id}
			for _, name := range names {
				sd.Params = append(sd.Params, Param{Name: name, Value: params[name]})
			}
			m.StructuredData = append(m.StructuredData, sd)
		}
	}
	return m, nil
}

func deref(s *string) string {
	if s == nil || *s == nilValue {
		return ""
	}
	return *s
}
