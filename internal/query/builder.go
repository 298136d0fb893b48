// Package query translates three input shapes into graph-store query text:
// a fluent Builder built programmatically, a named Template selected with
// positional parameters, and natural-language Translate matched against a
// fixed phrase catalogue. All three ultimately emit the same structured
// `// semindex-query kind=... param=...` header line the graphstore package
// dispatches on, followed by a human-readable Cypher-like body for the
// subprocess binding to execute verbatim.
package query

import (
	"strconv"
	"strings"

	"github.com/standardbeagle/semindex/internal/graphstore"
)

const headerPrefix = "// semindex-query "

// Builder composes a query clause-by-clause, the highest-precedence input
// shape (programmatic callers bypass both the template table and the
// natural-language matcher entirely).
type Builder struct {
	kind    string
	params  map[string]string
	match   string
	where   string
	ret     string
	orderBy []string
	limit   int
}

// NewBuilder starts an empty query builder.
func NewBuilder() *Builder {
	return &Builder{params: make(map[string]string)}
}

// Kind sets the structured dispatch header MemStore reads; params feed the
// header's key=value fields.
func (b *Builder) Kind(kind string, params map[string]string) *Builder {
	b.kind = kind
	for k, v := range params {
		b.params[k] = v
	}
	return b
}

func (b *Builder) Match(pattern string) *Builder {
	b.match = pattern
	return b
}

func (b *Builder) Where(cond string) *Builder {
	b.where = cond
	return b
}

func (b *Builder) Return(cols string) *Builder {
	b.ret = cols
	return b
}

func (b *Builder) OrderBy(cols ...string) *Builder {
	b.orderBy = cols
	return b
}

func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Build renders the final query text: the structured header (if a kind was
// set) followed by the Cypher-like body.
func (b *Builder) Build() string {
	var body strings.Builder
	if b.match != "" {
		body.WriteString("MATCH ")
		body.WriteString(b.match)
	}
	if b.where != "" {
		body.WriteString(" WHERE ")
		body.WriteString(b.where)
	}
	if b.ret != "" {
		body.WriteString(" RETURN ")
		body.WriteString(b.ret)
	}
	if len(b.orderBy) > 0 {
		body.WriteString(" ORDER BY ")
		body.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		body.WriteString(" LIMIT ")
		body.WriteString(strconv.Itoa(b.limit))
	}

	if b.kind == "" {
		return body.String()
	}
	return renderHeader(b.kind, b.params) + "\n" + body.String()
}

func renderHeader(kind string, params map[string]string) string {
	var h strings.Builder
	h.WriteString(headerPrefix)
	h.WriteString("kind=")
	h.WriteString(kind)
	for _, k := range sortedKeys(params) {
		h.WriteString(" ")
		h.WriteString(k)
		h.WriteString("=")
		h.WriteString(params[k])
	}
	return h.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// Escape delegates to graphstore's literal-escaping rules, shared across
// every query-producing surface per §4.6.
func Escape(s string) string {
	return graphstore.EscapeString(s)
}
