package record

import (
	"strconv"
	"strings"
)

const (
	nullMarker  = "\x00"
	valueMarker = "\x01"
	fieldSep    = "\x1f"
)

// IdentityKey encodes the full fifteen-field tuple. Values are length
// prefixed; NULL and the empty string encode differently.
func IdentityKey(r Raw) string {
	var b strings.Builder
	for i, v := range r.Values() {
		if i > 0 {
			b.WriteString(fieldSep)
		}
		if v == nil {
			b.WriteString(nullMarker)
			continue
		}
		b.WriteString(valueMarker)
		b.WriteString(strconv.Itoa(len(*v)))
		b.WriteByte(':')
		b.WriteString(*v)
	}
	return b.String()
}

// SameIdentity reports strict equality of the identity tuples.
func SameIdentity(a, b Raw) bool {
	av, bv := a.Values(), b.Values()
	for i := range av {
		switch {
		case av[i] == nil && bv[i] == nil:
		case av[i] == nil || bv[i] == nil:
			return false
		case *av[i] != *bv[i]:
			return false
		}
	}
	return true
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
