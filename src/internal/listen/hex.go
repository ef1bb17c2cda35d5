// FILE: logfan/src/internal/listen/hex.go
package listen

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// FormatHex renders data as space separated byte pairs, e.g. "0a ff 10".
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(data) * 3)
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(hex.EncodeToString([]byte{c}))
	}
	return b.String()
}

// ParseHex is the inverse of FormatHex. Whitespace between pairs is optional.
func ParseHex(s string) ([]byte, error) {
	clean := strings.Join(strings.Fields(s), "")
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex dump: %w", err)
	}
	return data, nil
}
