package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/semindex/internal/types"
)

// walkState holds the per-file, reused-across-calls scratch space for one
// AnalyzeFile invocation. Instances live in Extractor.pool so repeated
// calls don't repay the slice-growth cost every time.
type walkState struct {
	ext *Extractor

	content []byte
	path    string

	symbols       []types.Symbol
	types         []types.Type
	imports       []types.Import
	relationships []types.Relationship

	complexitySum int
}

func newWalkState() *walkState {
	return &walkState{
		symbols:       make([]types.Symbol, 0, 64),
		types:         make([]types.Type, 0, 16),
		imports:       make([]types.Import, 0, 16),
		relationships: make([]types.Relationship, 0, 64),
	}
}

func (w *walkState) reset(ext *Extractor, content []byte, path string) {
	w.ext = ext
	w.content = content
	w.path = path
	w.symbols = w.symbols[:0]
	w.types = w.types[:0]
	w.imports = w.imports[:0]
	w.relationships = w.relationships[:0]
	w.complexitySum = 0
}

func (w *walkState) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walkState) line(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

func (w *walkState) column(n *tree_sitter.Node) int {
	return int(n.StartPosition().Column)
}

// walkProgram walks the top-level statement list of the file, dispatching
// export statements to their declaration, and every other construct to
// walkDeclaration. Top-level only: nested declarations (a function inside
// a function) are not separately extracted, matching the "top-level
// function declaration" rule.
func (w *walkState) walkProgram(root *tree_sitter.Node) {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		w.walkTopLevel(child)
	}
}

func (w *walkState) walkTopLevel(node *tree_sitter.Node) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "export_statement":
		decl := node.ChildByFieldName("declaration")
		if decl == nil {
			// export { a, b } / export default <expr> with no declaration
			// node contributes no symbol in the baseline rule set.
			return
		}
		w.walkDeclaration(decl, true)
	case "import_statement":
		w.extractImport(node)
	default:
		w.walkDeclaration(node, false)
	}
}

func (w *walkState) walkDeclaration(node *tree_sitter.Node, exported bool) {
	switch node.Kind() {
	case "function_declaration", "generator_function_declaration":
		w.extractFunction(node, exported)
	case "class_declaration":
		w.extractClass(node, exported)
	case "interface_declaration":
		w.extractInterface(node, exported)
	case "type_alias_declaration":
		w.extractTypeAlias(node, exported)
	case "enum_declaration":
		w.extractEnum(node, exported)
	case "lexical_declaration", "variable_declaration":
		w.extractVariables(node, exported)
	}
}

// leadingDoc returns the description text of the declaration's preceding
// comment block, if its previous sibling is a comment, else "".
func (w *walkState) leadingDoc(node *tree_sitter.Node) string {
	prev := node.PrevSibling()
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	raw := w.text(prev)
	if !strings.HasPrefix(raw, "/**") && !strings.HasPrefix(raw, "/*") && !strings.HasPrefix(raw, "//") {
		return ""
	}
	return cleanDoc(raw)
}

func cleanDoc(raw string) string {
	raw = strings.TrimPrefix(raw, "/**")
	raw = strings.TrimPrefix(raw, "/*")
	raw = strings.TrimSuffix(raw, "*/")
	raw = strings.TrimPrefix(raw, "//")

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "*")
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, " ")
}

func isAsync(node *tree_sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c.Kind() == "async" {
			return true
		}
	}
	return false
}

func (w *walkState) extractFunction(node *tree_sitter.Node, exported bool) {
	name := "anonymous"
	if n := node.ChildByFieldName("name"); n != nil {
		name = w.text(n)
	}

	sym := types.Symbol{
		ID:         w.ext.nextID(prefixSymbol),
		Name:       name,
		Kind:       types.KindFunction,
		File:       w.path,
		Line:       w.line(node),
		Column:     w.column(node),
		Exported:   exported,
		Async:      isAsync(node),
		Visibility: types.VisibilityPublic,
		Doc:        w.leadingDoc(node),
	}
	w.symbols = append(w.symbols, sym)

	if body := node.ChildByFieldName("body"); body != nil {
		w.extractCalls(body, name)
	}
}

// extractCalls walks fn's body for call-expressions whose callee is a
// bare identifier and emits a CALLS edge from fn to that identifier.
// Method calls (a.b()), computed calls (a[b]()), and anything more
// complex than an identifier callee are not emitted, per the baseline.
func (w *walkState) extractCalls(node *tree_sitter.Node, from string) {
	var visit func(n *tree_sitter.Node)
	visit = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		if n.Kind() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil && fn.Kind() == "identifier" {
				w.relationships = append(w.relationships, types.Relationship{
					Kind: types.RelCalls,
					From: from,
					To:   w.text(fn),
				})
			}
		}
		if countsAsDecisionPoint(n.Kind()) {
			w.complexitySum++
		} else if n.Kind() == "binary_expression" {
			if op := n.ChildByFieldName("operator"); op != nil && (op.Kind() == "&&" || op.Kind() == "||") {
				w.complexitySum++
			}
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(node)
}

// countsAsDecisionPoint reports whether a node kind adds one to a
// function's cyclomatic complexity estimate (the baseline: every
// branch/loop/logical-and-or adds one path). Logical && and || are
// binary_expression nodes and are recognised by operator in extractCalls.
func countsAsDecisionPoint(kind string) bool {
	switch kind {
	case "if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_case", "catch_clause", "ternary_expression":
		return true
	default:
		return false
	}
}

func (w *walkState) extractClass(node *tree_sitter.Node, exported bool) {
	name := "anonymous"
	if n := node.ChildByFieldName("name"); n != nil {
		name = w.text(n)
	}

	sym := types.Symbol{
		ID:         w.ext.nextID(prefixSymbol),
		Name:       name,
		Kind:       types.KindClass,
		File:       w.path,
		Line:       w.line(node),
		Column:     w.column(node),
		Exported:   exported,
		Visibility: types.VisibilityPublic,
		Doc:        w.leadingDoc(node),
	}
	w.symbols = append(w.symbols, sym)

	w.extractHeritage(node, name)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(i)
		switch member.Kind() {
		case "method_definition":
			w.extractMethod(member, name)
		case "public_field_definition", "property_definition":
			w.extractProperty(member, name)
		}
	}
}

// extractHeritage emits EXTENDS/IMPLEMENTS edges from a class_heritage
// node (extends_clause + implements_clause children), matching the
// grammar shape: class Child extends Parent implements A, B {}.
func (w *walkState) extractHeritage(classNode *tree_sitter.Node, className string) {
	for i := uint(0); i < classNode.ChildCount(); i++ {
		heritage := classNode.Child(i)
		if heritage.Kind() != "class_heritage" {
			continue
		}
		for j := uint(0); j < heritage.ChildCount(); j++ {
			hc := heritage.Child(j)
			switch hc.Kind() {
			case "extends_clause":
				for k := uint(0); k < hc.ChildCount(); k++ {
					c := hc.Child(k)
					if c.Kind() == "identifier" || c.Kind() == "type_identifier" {
						w.relationships = append(w.relationships, types.Relationship{
							Kind: types.RelExtends, From: className, To: w.text(c),
						})
					}
				}
			case "implements_clause":
				for k := uint(0); k < hc.ChildCount(); k++ {
					c := hc.Child(k)
					if c.Kind() == "type_identifier" {
						w.relationships = append(w.relationships, types.Relationship{
							Kind: types.RelImplements, From: className, To: w.text(c),
						})
					}
				}
			}
		}
	}
}

func (w *walkState) memberVisibility(node *tree_sitter.Node) types.Visibility {
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c.Kind() == "accessibility_modifier" {
			switch w.text(c) {
			case "private":
				return types.VisibilityPrivate
			case "protected":
				return types.VisibilityProtected
			}
		}
	}
	return types.VisibilityPublic
}

func (w *walkState) extractMethod(node *tree_sitter.Node, className string) {
	name := "anonymous"
	if n := node.ChildByFieldName("name"); n != nil {
		name = w.text(n)
	}

	sym := types.Symbol{
		ID:         w.ext.nextID(prefixSymbol),
		Name:       name,
		Kind:       types.KindMethod,
		File:       w.path,
		Line:       w.line(node),
		Column:     w.column(node),
		Async:      isAsync(node),
		Visibility: w.memberVisibility(node),
		Doc:        w.leadingDoc(node),
	}
	w.symbols = append(w.symbols, sym)

	w.relationships = append(w.relationships, types.Relationship{
		Kind: types.RelMemberOf, From: name, To: className,
	})

	if body := node.ChildByFieldName("body"); body != nil {
		w.extractCalls(body, name)
	}
}

func (w *walkState) extractProperty(node *tree_sitter.Node, className string) {
	name := "anonymous"
	if n := node.ChildByFieldName("name"); n != nil {
		name = w.text(n)
	} else if n := node.ChildByFieldName("property"); n != nil {
		name = w.text(n)
	}

	sym := types.Symbol{
		ID:         w.ext.nextID(prefixSymbol),
		Name:       name,
		Kind:       types.KindProperty,
		File:       w.path,
		Line:       w.line(node),
		Column:     w.column(node),
		Visibility: w.memberVisibility(node),
		Doc:        w.leadingDoc(node),
	}
	w.symbols = append(w.symbols, sym)

	w.relationships = append(w.relationships, types.Relationship{
		Kind: types.RelMemberOf, From: name, To: className,
	})
}

func (w *walkState) extractInterface(node *tree_sitter.Node, exported bool) {
	name := "anonymous"
	if n := node.ChildByFieldName("name"); n != nil {
		name = w.text(n)
	}

	def := truncate(w.text(node), types.MaxDefinitionLength)
	params, generic := typeParams(w, node)

	w.types = append(w.types, types.Type{
		ID:         w.ext.nextID(prefixType),
		Name:       name,
		Kind:       types.KindInterface,
		Definition: def,
		Generic:    generic,
		TypeParams: params,
		File:       w.path,
		Line:       w.line(node),
	})

	sym := types.Symbol{
		ID: w.ext.nextID(prefixSymbol), Name: name, Kind: types.KindInterface,
		File: w.path, Line: w.line(node), Column: w.column(node),
		Exported: exported, Visibility: types.VisibilityPublic, Doc: w.leadingDoc(node),
	}
	w.symbols = append(w.symbols, sym)

	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c.Kind() != "extends_type_clause" {
			continue
		}
		for j := uint(0); j < c.ChildCount(); j++ {
			tc := c.Child(j)
			if tc.Kind() == "type_identifier" {
				w.relationships = append(w.relationships, types.Relationship{
					Kind: types.RelExtends, From: name, To: w.text(tc),
				})
			}
		}
	}
}

func (w *walkState) extractTypeAlias(node *tree_sitter.Node, exported bool) {
	name := "anonymous"
	if n := node.ChildByFieldName("name"); n != nil {
		name = w.text(n)
	}

	rhs := node.ChildByFieldName("value")
	def := w.text(node)
	if rhs != nil {
		def = w.text(rhs)
	}
	def = truncate(def, types.MaxDefinitionLength)

	params, generic := typeParams(w, node)

	w.types = append(w.types, types.Type{
		ID:         w.ext.nextID(prefixType),
		Name:       name,
		Kind:       types.KindTypeAlias,
		Definition: def,
		Generic:    generic,
		TypeParams: params,
		File:       w.path,
		Line:       w.line(node),
	})

	sym := types.Symbol{
		ID: w.ext.nextID(prefixSymbol), Name: name, Kind: types.KindTypeAlias,
		File: w.path, Line: w.line(node), Column: w.column(node),
		Exported: exported, Visibility: types.VisibilityPublic, Doc: w.leadingDoc(node),
	}
	w.symbols = append(w.symbols, sym)
}

func (w *walkState) extractEnum(node *tree_sitter.Node, exported bool) {
	name := "anonymous"
	if n := node.ChildByFieldName("name"); n != nil {
		name = w.text(n)
	}

	sym := types.Symbol{
		ID: w.ext.nextID(prefixSymbol), Name: name, Kind: types.KindEnum,
		File: w.path, Line: w.line(node), Column: w.column(node),
		Exported: exported, Visibility: types.VisibilityPublic, Doc: w.leadingDoc(node),
	}
	w.symbols = append(w.symbols, sym)
}

// extractVariables emits one Symbol per variable_declarator in the
// statement, tagged exported-var when the enclosing statement carries an
// export marker.
func (w *walkState) extractVariables(node *tree_sitter.Node, exported bool) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		decl := node.NamedChild(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		name := "anonymous"
		if n := decl.ChildByFieldName("name"); n != nil {
			name = w.text(n)
		}

		kind := types.KindVariable
		if exported {
			kind = types.KindExportedVar
		}

		w.symbols = append(w.symbols, types.Symbol{
			ID:         w.ext.nextID(prefixSymbol),
			Name:       name,
			Kind:       kind,
			File:       w.path,
			Line:       w.line(decl),
			Column:     w.column(decl),
			Exported:   exported,
			Visibility: types.VisibilityPublic,
			Doc:        w.leadingDoc(node),
		})
	}
}

// extractImport builds one Import entity whose specifiers concatenate,
// in order, the default binding, the namespace pseudo-specifier, and the
// named bindings.
func (w *walkState) extractImport(node *tree_sitter.Node) {
	sourceNode := node.ChildByFieldName("source")
	source := strings.Trim(w.text(sourceNode), `"'`)

	typeOnly := false
	var specifiers []string
	var defaultSpec string
	var namespaceSpec string

	clause := node.ChildByFieldName("import_clause")
	if clause == nil {
		// import_statement's clause is usually an unnamed child in this
		// grammar; fall back to scanning children directly.
		for i := uint(0); i < node.NamedChildCount(); i++ {
			c := node.NamedChild(i)
			if c.Kind() == "import_clause" {
				clause = c
				break
			}
		}
	}

	if clause != nil {
		for i := uint(0); i < clause.NamedChildCount(); i++ {
			c := clause.NamedChild(i)
			switch c.Kind() {
			case "identifier":
				defaultSpec = w.text(c)
			case "namespace_import":
				for j := uint(0); j < c.NamedChildCount(); j++ {
					n := c.NamedChild(j)
					namespaceSpec = "* as " + w.text(n)
				}
			case "named_imports":
				for j := uint(0); j < c.NamedChildCount(); j++ {
					spec := c.NamedChild(j)
					if spec.Kind() == "import_specifier" {
						if n := spec.ChildByFieldName("name"); n != nil {
							specifiers = append(specifiers, w.text(n))
						}
					}
				}
			}
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if node.Child(i).Kind() == "type" {
			typeOnly = true
		}
	}

	ordered := make([]string, 0, len(specifiers)+2)
	if defaultSpec != "" {
		ordered = append(ordered, defaultSpec)
	}
	if namespaceSpec != "" {
		ordered = append(ordered, namespaceSpec)
	}
	ordered = append(ordered, specifiers...)

	w.imports = append(w.imports, types.Import{
		ID:           w.ext.nextID(prefixImport),
		SourceFile:   w.path,
		ImportedPath: source,
		Specifiers:   ordered,
		TypeOnly:     typeOnly,
		Default:      defaultSpec != "",
		Namespace:    namespaceSpec != "",
	})
}

func typeParams(w *walkState, node *tree_sitter.Node) ([]string, bool) {
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c.Kind() != "type_parameters" {
			continue
		}
		var names []string
		for j := uint(0); j < c.NamedChildCount(); j++ {
			tp := c.NamedChild(j)
			if n := tp.ChildByFieldName("name"); n != nil {
				names = append(names, w.text(n))
			} else {
				names = append(names, w.text(tp))
			}
		}
		return names, len(names) > 0
	}
	return nil, false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
