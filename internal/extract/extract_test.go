package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semindex/internal/types"
)

func findSymbol(symbols []types.Symbol, name string, kind types.SymbolKind) *types.Symbol {
	for i := range symbols {
		if symbols[i].Name == name && symbols[i].Kind == kind {
			return &symbols[i]
		}
	}
	return nil
}

func TestAnalyzeFile_TopLevelFunction(t *testing.T) {
	e := New()
	src := `export async function fetchUser(id: string) {
    return db.find(id);
}`
	res, err := e.AnalyzeFile("user.ts", []byte(src))
	require.NoError(t, err)

	sym := findSymbol(res.Symbols, "fetchUser", types.KindFunction)
	require.NotNil(t, sym)
	assert.True(t, sym.Exported)
	assert.True(t, sym.Async)
	assert.Equal(t, types.VisibilityPublic, sym.Visibility)
}

func TestAnalyzeFile_ClassWithMembersAndHeritage(t *testing.T) {
	e := New()
	src := `class Dog extends Animal implements Pet {
    private name: string;
    bark() {
        console.log("woof");
    }
}`
	res, err := e.AnalyzeFile("dog.ts", []byte(src))
	require.NoError(t, err)

	classSym := findSymbol(res.Symbols, "Dog", types.KindClass)
	require.NotNil(t, classSym)

	methodSym := findSymbol(res.Symbols, "bark", types.KindMethod)
	require.NotNil(t, methodSym)

	propSym := findSymbol(res.Symbols, "name", types.KindProperty)
	require.NotNil(t, propSym)
	assert.Equal(t, types.VisibilityPrivate, propSym.Visibility)

	var sawExtends, sawImplements, sawMemberMethod, sawMemberProp bool
	for _, r := range res.Relationships {
		switch {
		case r.Kind == types.RelExtends && r.From == "Dog" && r.To == "Animal":
			sawExtends = true
		case r.Kind == types.RelImplements && r.From == "Dog" && r.To == "Pet":
			sawImplements = true
		case r.Kind == types.RelMemberOf && r.From == "bark" && r.To == "Dog":
			sawMemberMethod = true
		case r.Kind == types.RelMemberOf && r.From == "name" && r.To == "Dog":
			sawMemberProp = true
		}
	}
	assert.True(t, sawExtends)
	assert.True(t, sawImplements)
	assert.True(t, sawMemberMethod)
	assert.True(t, sawMemberProp)
}

func TestAnalyzeFile_InterfaceAndTypeAlias(t *testing.T) {
	e := New()
	src := `export interface Shape {
    area(): number;
}
type Point = { x: number; y: number };
`
	res, err := e.AnalyzeFile("shapes.ts", []byte(src))
	require.NoError(t, err)

	require.Len(t, res.Types, 2)
	var iface, alias *types.Type
	for i := range res.Types {
		switch res.Types[i].Kind {
		case types.KindInterface:
			iface = &res.Types[i]
		case types.KindTypeAlias:
			alias = &res.Types[i]
		}
	}
	require.NotNil(t, iface)
	require.NotNil(t, alias)
	assert.Equal(t, "Shape", iface.Name)
	assert.Equal(t, "Point", alias.Name)
}

func TestAnalyzeFile_GenericTypeParams(t *testing.T) {
	e := New()
	res, err := e.AnalyzeFile("box.ts", []byte(`type Box<T> = { value: T };`))
	require.NoError(t, err)

	require.Len(t, res.Types, 1)
	assert.True(t, res.Types[0].Generic)
	assert.Equal(t, []string{"T"}, res.Types[0].TypeParams)
}

func TestAnalyzeFile_Imports(t *testing.T) {
	e := New()
	src := `import Default, { a, b } from "./mod";
import * as ns from "./other";
`
	res, err := e.AnalyzeFile("imports.ts", []byte(src))
	require.NoError(t, err)
	require.Len(t, res.Imports, 2)

	assert.Equal(t, "./mod", res.Imports[0].ImportedPath)
	assert.True(t, res.Imports[0].Default)
	assert.Contains(t, res.Imports[0].Specifiers, "Default")
	assert.Contains(t, res.Imports[0].Specifiers, "a")
	assert.Contains(t, res.Imports[0].Specifiers, "b")

	assert.Equal(t, "./other", res.Imports[1].ImportedPath)
	assert.True(t, res.Imports[1].Namespace)
}

func TestAnalyzeFile_VariableExportedVsLocal(t *testing.T) {
	e := New()
	src := `export const apiBase = "https://api";
let counter = 0;
`
	res, err := e.AnalyzeFile("vars.ts", []byte(src))
	require.NoError(t, err)

	exported := findSymbol(res.Symbols, "apiBase", types.KindExportedVar)
	require.NotNil(t, exported)

	local := findSymbol(res.Symbols, "counter", types.KindVariable)
	require.NotNil(t, local)
	assert.False(t, local.Exported)
}

func TestAnalyzeFile_CallsOnlyBareIdentifierCallees(t *testing.T) {
	e := New()
	src := `function outer() {
    helper();
    obj.method();
    (obj["computed"])();
}
function helper() {}
`
	res, err := e.AnalyzeFile("calls.ts", []byte(src))
	require.NoError(t, err)

	var calls []string
	for _, r := range res.Relationships {
		if r.Kind == types.RelCalls && r.From == "outer" {
			calls = append(calls, r.To)
		}
	}
	assert.Equal(t, []string{"helper"}, calls)
}

func TestAnalyzeFile_UnsupportedExtension(t *testing.T) {
	e := New()
	_, err := e.AnalyzeFile("main.py", []byte("def f(): pass"))
	require.Error(t, err)
}

func TestAnalyzeFile_JavaScriptFile(t *testing.T) {
	e := New()
	res, err := e.AnalyzeFile("plain.js", []byte(`function greet(name) { return "hi " + name; }`))
	require.NoError(t, err)

	sym := findSymbol(res.Symbols, "greet", types.KindFunction)
	require.NotNil(t, sym)
}

func TestAnalyzeFile_IDsAreUniquePerInstance(t *testing.T) {
	e := New()
	res, err := e.AnalyzeFile("many.ts", []byte(`
function a() {}
function b() {}
function c() {}
`))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, s := range res.Symbols {
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}
}

func TestAnalyzeFile_MetricsCountedLines(t *testing.T) {
	e := New()
	src := "// a comment\nfunction f() {}\n\nconst x = 1;\n"
	res, err := e.AnalyzeFile("m.ts", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Metrics.TotalLines)
	assert.Equal(t, 1, res.Metrics.CommentLines)
	assert.Equal(t, 1, res.Metrics.BlankLines)
	assert.Equal(t, 1, res.Metrics.FunctionCount)
}

func TestAnalyzeFile_EmptyFile(t *testing.T) {
	e := New()
	res, err := e.AnalyzeFile("empty.ts", []byte(""))
	require.NoError(t, err)

	assert.Empty(t, res.Symbols)
	assert.Empty(t, res.Types)
	assert.Empty(t, res.Imports)
	assert.Equal(t, 0, res.Metrics.TotalLines)
	assert.Equal(t, 0, res.Metrics.CodeLines)
	assert.Equal(t, 0, res.Metrics.BlankLines)
}

func TestAnalyzeFile_DocComment(t *testing.T) {
	e := New()
	src := `/** Fetches the active session. */
function getSession() {}
`
	res, err := e.AnalyzeFile("doc.ts", []byte(src))
	require.NoError(t, err)

	sym := findSymbol(res.Symbols, "getSession", types.KindFunction)
	require.NotNil(t, sym)
	assert.Equal(t, "Fetches the active session.", sym.Doc)
}
