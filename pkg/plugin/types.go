// Package plugin routes typed commands and queries to the connectors that
// drive external control surfaces (OBS Studio, VTube Studio and the local
// "General" surface). A Registry owns exactly one connector per configured
// plugin type; every connector serializes its own requests and reconnects
// lazily after a failure.
package plugin

import (
	"fmt"
	"strings"
)

// Type identifies a kind of control surface. It is the key into the Registry
// and the routing tag carried by every Action and Query.
type Type string

const (
	TypeOBS     Type = "OBS"
	TypeVTS     Type = "VTS"
	TypeGeneral Type = "General"
)

// Types lists every known plugin type in a stable order.
var Types = []Type{TypeOBS, TypeVTS, TypeGeneral}

func (t Type) String() string {
	return string(t)
}

// ParseType accepts the canonical names case-insensitively.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown plugin type %q", s)
}

// FormatBool renders boolean query results. Conditions compare strings
// exactly, so every boolean query must go through here.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
