// FILE: logfan/src/internal/listen/frame.go
package listen

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"logfan/src/internal/core"
)

// FrameType identifies the body of a listen protocol frame.
type FrameType uint32

const (
	// FrameText carries one log line: int64 ns since 1970, pre text, NUL, text.
	FrameText FrameType = 1
	// FrameLogLevel carries a uint32 severity mask requested by a viewer.
	FrameLogLevel FrameType = 2
	// FrameLogLevelText carries comma separated severity names.
	FrameLogLevelText FrameType = 3
	// FrameHello carries the share name a proxy announces on connect.
	FrameHello FrameType = 4
)

const (
	headerSize = 8
	// MaxFrameBody bounds a single frame body.
	MaxFrameBody = 1 << 20
)

var (
	ErrFrameTooLarge = errors.New("frame body too large")
	ErrBadFrame      = errors.New("malformed frame")
)

func (t FrameType) String() string {
	switch t {
	case FrameText:
		return "text"
	case FrameLogLevel:
		return "log_level"
	case FrameLogLevelText:
		return "log_level_text"
	case FrameHello:
		return "hello"
	default:
		return fmt.Sprintf("FrameType(%d)", uint32(t))
	}
}

// Frame is one decoded message of the listen protocol.
type Frame struct {
	Type FrameType
	Body []byte
}

// TextRecord is the decoded body of a FrameText.
type TextRecord struct {
	Time    time.Time
	PreText string
	Text    string
}

// AppendFrame appends the header and body to b.
func AppendFrame(b []byte, t FrameType, body []byte) []byte {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(t))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(body)))
	b = append(b, hdr[:]...)
	return append(b, body...)
}

// EncodeText builds a complete FrameText.
func EncodeText(ts time.Time, preText, text string) []byte {
	body := make([]byte, 8, 8+len(preText)+1+len(text))
	binary.LittleEndian.PutUint64(body, uint64(ts.UnixNano()))
	body = append(body, preText...)
	body = append(body, 0)
	body = append(body, text...)
	return AppendFrame(make([]byte, 0, headerSize+len(body)), FrameText, body)
}

// DecodeText parses a FrameText body.
func DecodeText(body []byte) (TextRecord, error) {
	if len(body) < 9 {
		return TextRecord{}, fmt.Errorf("%w: text body of %d bytes", ErrBadFrame, len(body))
	}
	ns := int64(binary.LittleEndian.Uint64(body[:8]))
	rest := body[8:]
	nul := bytes.IndexByte(rest, 0)
	if nul < 0 {
		return TextRecord{}, fmt.Errorf("%w: missing pre text terminator", ErrBadFrame)
	}
	rec := TextRecord{PreText: string(rest[:nul]), Text: string(rest[nul+1:])}
	if ns != 0 {
		rec.Time = time.Unix(0, ns)
	}
	return rec, nil
}

// EncodeLogLevel builds a FrameLogLevel.
func EncodeLogLevel(mask core.SeverityMask) []byte {
	var body [4]byte
	binary.LittleEndian.PutUint32(body[:], uint32(mask))
	return AppendFrame(nil, FrameLogLevel, body[:])
}

// DecodeLogLevel parses a FrameLogLevel body.
func DecodeLogLevel(body []byte) (core.SeverityMask, error) {
	if len(body) != 4 {
		return 0, fmt.Errorf("%w: log level body of %d bytes", ErrBadFrame, len(body))
	}
	return core.SeverityMask(binary.LittleEndian.Uint32(body)) & core.AllSeverities, nil
}

// SplitFrame extracts one frame from the head of buf, returning advance 0
// when more data is needed.
func SplitFrame(buf []byte) (Frame, int, error) {
	if len(buf) < headerSize {
		return Frame{}, 0, nil
	}
	t := FrameType(binary.LittleEndian.Uint32(buf[0:4]))
	n := binary.LittleEndian.Uint32(buf[4:8])
	if n > MaxFrameBody {
		return Frame{}, 0, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	end := headerSize + int(n)
	if len(buf) < end {
		return Frame{}, 0, nil
	}
	body := make([]byte, n)
	copy(body, buf[headerSize:end])
	return Frame{Type: t, Body: body}, end, nil
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	t := FrameType(binary.LittleEndian.Uint32(hdr[0:4]))
	n := binary.LittleEndian.Uint32(hdr[4:8])
	if n > MaxFrameBody {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Body: body}, nil
}
