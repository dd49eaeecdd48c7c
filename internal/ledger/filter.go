package ledger

import (
	"fmt"
	"strings"
)

// Filter formula helpers.  The ledger exposes a small expression
// language over record fields; the engine only needs equality,
// inequality and non-emptiness, combined with AND.

// Eq matches records whose field equals the given value.
func Eq(field, value string) string {
	return fmt.Sprintf("{%s}=%s", field, quote(value))
}

// Ne matches records whose field differs from the given value.
func Ne(field, value string) string {
	return fmt.Sprintf("{%s}!=%s", field, quote(value))
}

// NotEmpty matches records whose field holds a non-empty value.
func NotEmpty(field string) string {
	return fmt.Sprintf("{%s}!=%s", field, quote(""))
}

// Empty matches records whose field is blank or absent.
func Empty(field string) string {
	return fmt.Sprintf("{%s}=%s", field, quote(""))
}

// And combines clauses; a single clause passes through unchanged.
func And(clauses ...string) string {
	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	}
	return "AND(" + strings.Join(clauses, ",") + ")"
}

func quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
