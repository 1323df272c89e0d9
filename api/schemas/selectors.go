package schemas

import (
	"fmt"
	"strings"
)

// -- Selector Schemas --

// SelectorKind is the closed set of ways a target element can be named.
type SelectorKind string

const (
	SelectorID    SelectorKind = "id"
	SelectorClass SelectorKind = "class"
	SelectorTag   SelectorKind = "tag"
	SelectorText  SelectorKind = "text"
)

// SelectorKinds lists every supported kind in a stable order.
var SelectorKinds = []SelectorKind{SelectorID, SelectorClass, SelectorTag, SelectorText}

// Valid reports whether k is one of the supported kinds.
func (k SelectorKind) Valid() bool {
	switch k {
	case SelectorID, SelectorClass, SelectorTag, SelectorText:
		return true
	}
	return false
}

// ParseSelectorKind normalises a wire value. Unknown kinds are returned as-is
// together with an error so the caller can still report the offending value.
func ParseSelectorKind(s string) (SelectorKind, error) {
	k := SelectorKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return SelectorKind(s), fmt.Errorf("unsupported selector type: %s", s)
	}
	return k, nil
}

// Selector is an immutable (kind, value) pair naming a target element.
type Selector struct {
	Kind  SelectorKind `json:"kind"`
	Value string       `json:"value"`
}

func (s Selector) String() string {
	return fmt.Sprintf("%s=%q", s.Kind, s.Value)
}
