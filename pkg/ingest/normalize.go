package ingest

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var caseFold = cases.Fold()

// Normalize builds a node's upsert key: NFKC normalization, casefold, then
// whitespace collapse, so "Acme  Corp" and "acme corp" upsert to the same
// node.
func Normalize(s string) string {
	folded := caseFold.String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}
