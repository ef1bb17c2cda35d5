// FILE: logfan/src/internal/syslog/structured.go
package syslog

import "strings"

// Registered SD-IDs and the private identity used for call site metadata.
const (
	MetaID           = "meta"
	MetaSequenceID   = "sequenceId"
	OriginID         = "origin"
	SourceLocationID = "source_location@37916"
)

const maxIdentityLength = 32

var (
	identityReplacer = strings.NewReplacer("=", "_", "]", "_", `\`, "_", `"`, "_", " ", "_")
	nameReplacer     = strings.NewReplacer("=", "_", " ", "_", "]", "_", "[", "_", `"`, "_", `\`, "/")
	valueReplacer    = strings.NewReplacer("[", "(", "]", ")", `\`, "/", `"`, "'")
)

// Param is one key/value pair of a structured data element.
type Param struct {
	Name  string
	Value string
}

// StructuredData is one SD-ELEMENT: an identity and its ordered parameters.
type StructuredData struct {
	ID     string
	Params []Param
}

// NewStructuredData creates an element, sanitizing the identity.
func NewStructuredData(identity string) StructuredData {
	return StructuredData{ID: sanitizeIdentity(identity)}
}

// Stem returns the identity name without the enterprise number.
func (sd StructuredData) Stem() string {
	stem, _, _ := strings.Cut(sd.ID, "@")
	return stem
}

// EnterpriseID returns the part after '@', empty for registered identities.
func (sd StructuredData) EnterpriseID() string {
	_, id, _ := strings.Cut(sd.ID, "@")
	return id
}

// Set adds a parameter or overwrites an existing one in place.
// Empty names are ignored.
func (sd *StructuredData) Set(name, value string) {
	name = sanitizeName(name)
	if name == "" {
		return
	}
	value = valueReplacer.Replace(value)
	for i := range sd.Params {
		if sd.Params[i].Name == name {
			sd.Params[i].Value = value
			return
		}
	}
	sd.Params = append(sd.Params, Param{Name: name, Value: value})
}

// Get returns the value of a parameter.
func (sd StructuredData) Get(name string) (string, bool) {
	for _, p := range sd.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

func (sd StructuredData) appendTo(b []byte) []byte {
	b = append(b, '[')
	b = append(b, sd.ID...)
	for _, p := range sd.Params {
		b = append(b, ' ')
		b = append(b, p.Name...)
		b = append(b, '=', '"')
		b = append(b, p.Value...)
		b = append(b, '"')
	}
	return append(b, ']')
}

func sanitizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ""
	}
	stem, enterprise, found := strings.Cut(identity, "@")
	stem = identityReplacer.Replace(stem)
	if found {
		enterprise = identityReplacer.Replace(enterprise)
		identity = stem + "@" + enterprise
	} else {
		identity = stem
	}
	return truncatePrintable(identity, maxIdentityLength)
}

func sanitizeName(name string) string {
	return truncatePrintable(nameReplacer.Replace(strings.TrimSpace(name)), maxIdentityLength)
}

// truncatePrintable keeps printable US-ASCII only, which header fields and SD names require.
func truncatePrintable(s string, max int) string {
	var b strings.Builder
	for i := 0; i < len(s) && b.Len() < max; i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('_')
		case c > 32 && c < 127:
			b.WriteByte(c)
		}
	}
	return b.String()
}
