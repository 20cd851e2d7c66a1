package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahanfr/nmet/internal/ast"
)

func TestParseSimpleFunction(t *testing.T) {
	src := `func add(a @int, b @int) @int {
		return a + b;
	}`
	f, err := Parse("t.nmt", src)
	require.NoError(t, err)
	require.Len(t, f.Funcs, 1)

	fn := f.Funcs[0]
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Equal(t, "int", fn.Params[0].Type.Name)
	require.Len(t, fn.Body, 1)

	ret, ok := fn.Body[0].(*ast.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, bin.Op)
}

func TestParseArrayTypeAndIndexing(t *testing.T) {
	src := `func main() {
		var xs @[int, 4];
		xs[0] = 7;
	}`
	f, err := Parse("t.nmt", src)
	require.NoError(t, err)
	decl := f.Funcs[0].Body[0].(*ast.VarDecl)
	assert.True(t, decl.Type.IsArray)
	assert.Equal(t, 4, decl.Type.ArrayLen)

	assign := f.Funcs[0].Body[1].(*ast.Assign)
	idx, ok := assign.Target.(*ast.Index)
	require.True(t, ok)
	base, ok := idx.Base.(*ast.Ident)
	require.True(t, ok)
	assert.Equal(t, "xs", base.Name)
}

func TestParseIfElseChain(t *testing.T) {
	src := `func main() {
		if 1 { return 1; } else if 0 { return 2; } else { return 3; }
	}`
	f, err := Parse("t.nmt", src)
	require.NoError(t, err)
	top := f.Funcs[0].Body[0].(*ast.If)
	require.Len(t, top.Else, 1)
	_, ok := top.Else[0].(*ast.If)
	assert.True(t, ok)
}

func TestParseWhileForBreakContinue(t *testing.T) {
	src := `func main() {
		while 1 {
			break;
		}
		for var i @int = 0; i < 10; i = i + 1; {
			continue;
		}
	}`
	f, err := Parse("t.nmt", src)
	require.NoError(t, err)
	require.Len(t, f.Funcs[0].Body, 2)
	_, ok := f.Funcs[0].Body[0].(*ast.While)
	assert.True(t, ok)
	forStmt, ok := f.Funcs[0].Body[1].(*ast.For)
	require.True(t, ok)
	assert.NotNil(t, forStmt.Init)
	assert.NotNil(t, forStmt.Post)
}

func TestParseCallAndPrint(t *testing.T) {
	src := `func main() {
		print "hello";
		helper(1, 2);
	}`
	f, err := Parse("t.nmt", src)
	require.NoError(t, err)
	_, ok := f.Funcs[0].Body[0].(*ast.Print)
	assert.True(t, ok)
	stmt := f.Funcs[0].Body[1].(*ast.ExprStmt)
	call, ok := stmt.X.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "helper", call.Name)
	assert.Len(t, call.Args, 2)
}

func TestParseFieldAccessSurfaceSyntax(t *testing.T) {
	src := `func main() {
		p:x = 1;
	}`
	f, err := Parse("t.nmt", src)
	require.NoError(t, err)
	assign := f.Funcs[0].Body[0].(*ast.Assign)
	field, ok := assign.Target.(*ast.Field)
	require.True(t, ok)
	assert.Equal(t, "x", field.Name)
}

func TestOperatorPrecedence(t *testing.T) {
	src := `func main() {
		return 1 + 2 * 3;
	}`
	f, err := Parse("t.nmt", src)
	require.NoError(t, err)
	ret := f.Funcs[0].Body[0].(*ast.Return)
	bin := ret.Value.(*ast.Binary)
	assert.Equal(t, ast.OpAdd, bin.Op)
	_, leftIsLit := bin.Left.(*ast.IntLit)
	assert.True(t, leftIsLit)
	rightMul, ok := bin.Right.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.OpMul, rightMul.Op)
}

func TestAsmCallLowersToReservedNameCall(t *testing.T) {
	src := `func main() {
		asm("nop");
	}`
	f, err := Parse("t.nmt", src)
	require.NoError(t, err)
	stmt := f.Funcs[0].Body[0].(*ast.ExprStmt)
	call := stmt.X.(*ast.Call)
	assert.Equal(t, "asm", call.Name)
	lit := call.Args[0].(*ast.StringLit)
	assert.Equal(t, "nop", lit.Value)
}

func TestMissingSemicolonIsAParseError(t *testing.T) {
	_, err := Parse("t.nmt", `func main() { return 1 }`)
	assert.Error(t, err)
}

func TestEmptyFileParsesToNoFunctions(t *testing.T) {
	f, err := Parse("t.nmt", "")
	require.NoError(t, err)
	assert.Empty(t, f.Funcs)
}
