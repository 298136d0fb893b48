package query

import (
	"fmt"
	"strings"
)

// templateKind enumerates the catalogue of named query shapes; both the
// Template surface and the natural-language matcher in translate.go build
// against this same table so a given kind always renders identical query
// text regardless of how it was selected.
type templateKind struct {
	name     string
	paramKey string // "" when the template takes no identifier parameter
}

var templates = map[string]templateKind{
	"findCallers":         {name: "findCallers", paramKey: "symbol"},
	"findCallees":         {name: "findCallees", paramKey: "symbol"},
	"findExports":         {name: "findExports", paramKey: "path"},
	"findImports":         {name: "findImports", paramKey: "path"},
	"findDependencies":    {name: "findDependencies", paramKey: "path"},
	"findDependents":      {name: "findDependents", paramKey: "path"},
	"findClasses":         {name: "findClasses", paramKey: ""},
	"findClassMembers":    {name: "findClassMembers", paramKey: "symbol"},
	"findExtends":         {name: "findExtends", paramKey: "symbol"},
	"findImplementations": {name: "findImplementations", paramKey: "symbol"},
	"findCallGraph":       {name: "findCallGraph", paramKey: "symbol"},
	"findUnusedExports":   {name: "findUnusedExports", paramKey: ""},
	"findSymbolsInFile":   {name: "findSymbolsInFile", paramKey: "path"},
}

// templateBody gives every template a readable Cypher-like
// body for the subprocess binding; MemStore ignores this text and dispatches
// on the header alone.
var templateBody = map[string]struct{ match, where, ret string }{
	"findCallers":         {"(a)-[:CALLS]->(b)", "b.name = '%s'", "a.name, a.file, a.line"},
	"findCallees":         {"(a)-[:CALLS]->(b)", "a.name = '%s'", "b.name, b.file, b.line"},
	"findExports":         {"(n:Symbol)", "n.file = '%s' AND n.exported = true", "n.name, n.kind, n.line"},
	"findImports":         {"(n:Import)", "n.sourceFile = '%s'", "n.importedPath, n.specifiers, n.typeOnly"},
	"findDependencies":    {"(n:Import)", "n.sourceFile = '%s'", "n.importedPath, n.specifiers, n.typeOnly"},
	"findDependents":      {"(n:Import)", "n.importedPath = '%s'", "n.sourceFile"},
	"findClasses":         {"(n:Symbol)", "n.kind = 'class'", "n.name, n.file, n.line"},
	"findClassMembers":    {"(a)-[:MEMBER_OF]->(b)", "b.name = '%s'", "a.name, a.file, a.line"},
	"findExtends":         {"(a)-[:EXTENDS]->(b)", "b.name = '%s'", "a.name, a.file, a.line"},
	"findImplementations": {"(a)-[:IMPLEMENTS]->(b)", "b.name = '%s'", "a.name, a.file, a.line"},
	"findCallGraph":       {"(a)-[:CALLS*1..N]->(b)", "a.name = '%s'", "depth, a.name, b.name"},
	"findUnusedExports":   {"(n:Symbol)", "n.exported = true AND NOT ()-[:CALLS]->(n)", "n.name, n.file, n.line"},
	"findSymbolsInFile":   {"(n:Symbol)", "n.file = '%s'", "n.name, n.kind, n.line"},
}

// BuildTemplate renders query text for a named template with positional
// parameters: a symbol/path for templates that need one, plus an optional
// depth for findCallGraph (defaulting to 2).
func BuildTemplate(name string, params ...string) (string, error) {
	kind, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown query template %q", name)
	}

	var param, depth string
	if kind.paramKey != "" {
		if len(params) == 0 {
			return "", fmt.Errorf("template %q requires a %s parameter", name, kind.paramKey)
		}
		param = params[0]
	}
	if name == "findCallGraph" && len(params) > 1 {
		depth = params[1]
	}

	return buildFromKind(kind.name, param, depth), nil
}

// buildFromKind renders the header + body for kind given an already-
// extracted identifier/path (param) and, for findCallGraph, a depth.
func buildFromKind(kind, param, depth string) string {
	headerParams := make(map[string]string)
	if t := templates[kind]; t.paramKey != "" {
		headerParams[t.paramKey] = param
	}
	if kind == "findCallGraph" {
		if depth == "" {
			depth = "2"
		}
		headerParams["depth"] = depth
	}

	b := NewBuilder().Kind(kind, headerParams)

	body := templateBody[kind]
	match := body.match
	where := body.where
	if where != "" && param != "" {
		where = fmt.Sprintf(where, Escape(param))
	}
	if kind == "findCallGraph" {
		match = strings.Replace(match, "N", depth, 1)
	}

	b.Match(match).Where(where).Return(body.ret)
	switch kind {
	case "findCallGraph":
		b.OrderBy("depth", "a.file", "a.line")
	default:
		b.OrderBy(secondaryOrderColumns(kind)...)
	}
	return b.Build()
}

// secondaryOrderColumns implements the tie-break rule: ties on the primary
// ORDER BY key (if any) resolve by source file then line.
func secondaryOrderColumns(kind string) []string {
	switch kind {
	case "findClasses", "findUnusedExports":
		return []string{"n.name", "n.file", "n.line"}
	case "findExports", "findSymbolsInFile":
		return []string{"n.line"}
	default:
		return []string{"a.file", "a.line"}
	}
}
