package query

import (
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"
)

// confidenceThreshold is the minimum match confidence before a
// natural-language input is treated as a raw query instead.
const confidenceThreshold = 0.5

// sourceFileSuffixes are the extensions the path-extraction helper prefers
// when a remainder contains more than one whitespace token.
var sourceFileSuffixes = []string{".ts", ".tsx", ".js", ".jsx"}

type pattern struct {
	kind     string
	triggers []string
	extract  extractKind
}

type extractKind int

const (
	extractNone extractKind = iota
	extractSymbol
	extractPath
)

// catalogue implements spec §4.8's pattern table literally: trigger phrases
// in declaration order, matched case-folded.
var catalogue = []pattern{
	{"findCallers", []string{"who calls", "what calls", "callers of", "find callers"}, extractSymbol},
	{"findCallees", []string{"what does", "callees of", "calls what"}, extractSymbol},
	{"findExports", []string{"exports in", "exports from", "show exports", "list exports"}, extractPath},
	{"findImports", []string{"imports in", "imports from", "show imports", "list imports"}, extractPath},
	{"findDependencies", []string{"dependencies of", "deps of"}, extractPath},
	{"findDependents", []string{"dependents of", "who depends on", "who imports", "used by"}, extractPath},
	{"findClasses", []string{"show classes", "list classes", "all classes", "find classes"}, extractNone},
	{"findClassMembers", []string{"members of", "methods in", "properties of", "fields in"}, extractSymbol},
	{"findExtends", []string{"what extends", "extends", "inheritance of", "parent of"}, extractSymbol},
	{"findImplementations", []string{"implementations of", "who implements", "what implements"}, extractSymbol},
	{"findCallGraph", []string{"call graph of", "calls from"}, extractSymbol},
	{"findUnusedExports", []string{"unused exports", "dead exports", "unreferenced exports"}, extractNone},
	{"findSymbolsInFile", []string{"symbols in", "functions in", "code in", "show file"}, extractPath},
}

// Translate matches text against the fixed pattern catalogue and returns
// the rendered query text plus the confidence of the match. When no pattern
// clears confidenceThreshold, the text is escaped and returned verbatim as
// a raw query for the store's own parameter handling.
func Translate(text string) (queryText string, confidence float64) {
	lower := strings.ToLower(strings.TrimSpace(text))

	if kind, trigger, remainder, ok := matchExact(lower, text); ok {
		return buildMatch(kind, trigger, remainder), 1.0
	}

	kind, trigger, score := bestFuzzyMatch(lower)
	if score >= confidenceThreshold {
		_, _, remainder, _ := matchExact(trigger, text)
		if remainder == "" {
			remainder = remainderAfter(lower, text, trigger)
		}
		return buildMatch(kind, trigger, remainder), score
	}

	return Escape(text), score
}

// matchExact implements the literal case-folded prefix/contains rule: the
// first pattern (in catalogue order) whose trigger appears in lower wins.
func matchExact(lower, original string) (kind, trigger, remainder string, ok bool) {
	for _, p := range catalogue {
		for _, t := range p.triggers {
			if idx := strings.Index(lower, t); idx >= 0 {
				rem := remainderAfter(lower, original, t)
				return p.kind, t, rem, true
			}
		}
	}
	return "", "", "", false
}

// remainderAfter returns the text of original following trigger's
// case-folded occurrence in lower, preserving original's casing.
func remainderAfter(lower, original, trigger string) string {
	idx := strings.Index(lower, trigger)
	if idx < 0 {
		return ""
	}
	start := idx + len(trigger)
	if start > len(original) {
		return ""
	}
	return strings.TrimSpace(original[start:])
}

// bestFuzzyMatch scores lower's similarity against every trigger phrase in
// the catalogue using Jaro-Winkler, returning the best-scoring pattern.
// Grounded on internal/semantic/fuzzy_matcher.go's use of go-edlib for the
// same "how close is this to a known phrase" comparison.
func bestFuzzyMatch(lower string) (kind, trigger string, score float64) {
	var best float64
	var bestKind, bestTrigger string
	for _, p := range catalogue {
		for _, t := range p.triggers {
			sim, err := edlib.StringsSimilarity(lower, t, edlib.JaroWinkler)
			if err != nil {
				continue
			}
			if float64(sim) > best {
				best = float64(sim)
				bestKind, bestTrigger = p.kind, t
			}
		}
	}
	return bestKind, bestTrigger, best
}

func buildMatch(kind, trigger, remainder string) string {
	p := findPattern(kind)
	switch p.extract {
	case extractSymbol:
		sym, depth := extractSymbolAndDepth(remainder)
		text, _ := BuildTemplate(kind, sym, depth)
		return text
	case extractPath:
		path := extractPathToken(remainder)
		text, _ := BuildTemplate(kind, path)
		return text
	default:
		text, _ := BuildTemplate(kind)
		return text
	}
}

func findPattern(kind string) pattern {
	for _, p := range catalogue {
		if p.kind == kind {
			return p
		}
	}
	return pattern{}
}

var depthPattern = regexp.MustCompile(`(?i)(?:depth|level)\s+(\d+)|(\d+)\s+levels?`)

// extractSymbolAndDepth pulls the identifier and, for call-graph queries,
// an optional depth out of remainder: "depth N", "level N", or "N levels?".
func extractSymbolAndDepth(remainder string) (symbol, depth string) {
	if m := depthPattern.FindStringSubmatch(remainder); m != nil {
		if m[1] != "" {
			depth = m[1]
		} else {
			depth = m[2]
		}
		remainder = strings.TrimSpace(depthPattern.ReplaceAllString(remainder, ""))
	}
	return firstIdentifier(remainder), depth
}

// extractPathToken prefers a whitespace token carrying a recognized
// source-file suffix, falling back to the first quoted substring or the
// first whitespace token.
func extractPathToken(remainder string) string {
	for _, tok := range strings.Fields(remainder) {
		clean := strings.Trim(tok, `"'`)
		for _, suf := range sourceFileSuffixes {
			if strings.HasSuffix(clean, suf) {
				return clean
			}
		}
	}
	return firstIdentifier(remainder)
}

// firstIdentifier returns the first quoted substring if present, otherwise
// the first whitespace-delimited token.
func firstIdentifier(remainder string) string {
	if q := firstQuoted(remainder); q != "" {
		return q
	}
	fields := strings.Fields(remainder)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], `"'`)
}

func firstQuoted(s string) string {
	for _, q := range []byte{'"', '\''} {
		start := strings.IndexByte(s, q)
		if start < 0 {
			continue
		}
		end := strings.IndexByte(s[start+1:], q)
		if end < 0 {
			continue
		}
		return s[start+1 : start+1+end]
	}
	return ""
}
