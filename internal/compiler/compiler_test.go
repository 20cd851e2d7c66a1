package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahanfr/nmet/internal/config"
	"github.com/mahanfr/nmet/internal/diag"
	"github.com/mahanfr/nmet/internal/elfobj"
	"github.com/mahanfr/nmet/internal/parser"
)

func TestCompileSimpleLibraryFunction(t *testing.T) {
	src := `func add(a @int, b @int) @int {
		return a + b;
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	cfg.AsLibrary = true
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)

	assert.NotEmpty(t, obj.Text)
	assert.Empty(t, obj.EntrySymbol)
	require.Len(t, obj.Funcs, 1)
	assert.Equal(t, "add", obj.Funcs[0].Name)
}

func TestCompileMainEmitsEntrySymbol(t *testing.T) {
	src := `func main() {
		return;
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)
	assert.Equal(t, "_start", obj.EntrySymbol)
}

func TestCompilePrintStringLiteralAddsDataItem(t *testing.T) {
	src := `func main() {
		print "hello\n";
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)
	assert.NotEmpty(t, obj.Data)
	assert.Len(t, obj.LocalData, 1)
}

func TestCompilePrintConstantFoldedExpression(t *testing.T) {
	src := `func main() {
		print 6*7;
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	_, err = c.Compile(f)
	require.NoError(t, err)
}

func TestCompilePrintRuntimeIntegerEmitsPrintCall(t *testing.T) {
	src := `func main() {
		var x @int = 1;
		print x;
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)

	var printFn *elfobj.NamedOffset
	for i := range obj.LocalText {
		if obj.LocalText[i].Name == "print" {
			printFn = &obj.LocalText[i]
		}
	}
	require.NotNil(t, printFn, "expected the print BIF to appear in the local symbol table")
	assert.Empty(t, obj.FFI, "the runtime print path must not fall back to an external call")
}

func TestCompilePrintArrayElementIsRuntimeNotAUserError(t *testing.T) {
	src := `func main() {
		var xs @[int, 2];
		xs[0] = 7;
		print xs[0];
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)
	assert.NotEmpty(t, obj.Text)
}

func TestCompilePrintInsideLoopReusesSinglePrintBif(t *testing.T) {
	src := `func main() {
		var i @int = 0;
		while i < 5 {
			print i;
			i = i + 1;
		}
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)

	printCount := 0
	for _, s := range obj.LocalText {
		if s.Name == "print" {
			printCount++
		}
	}
	assert.Equal(t, 1, printCount, "the BIF is emitted once regardless of how many call sites need it")
}

func TestCompilePrintCallResultIsRuntimeNotAUserError(t *testing.T) {
	src := `func add(a @int, b @int) @int {
		return a + b;
	}
	func main() {
		print add(40, 2);
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)
	require.Len(t, obj.Funcs, 2)
}

func TestCompileMainFallingOffEndZeroesExitCode(t *testing.T) {
	src := `func main() {
		print 42;
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)

	// The last instructions must zero rax ("mov eax, 0", peephole-shrunk
	// from the movabs form) before transferring it into rdi, not leave
	// whatever the preceding write() syscall left behind as the exit
	// code: mov eax,0 / mov rdi,rax / mov eax,60 / syscall.
	want := []byte{
		0xb8, 0x00, 0x00, 0x00, 0x00, // mov eax, 0
		0x48, 0x89, 0xc7, // mov rdi, rax
		0xb8, 0x3c, 0x00, 0x00, 0x00, // mov eax, 60
		0x0f, 0x05, // syscall
	}
	n := len(obj.Text)
	require.GreaterOrEqual(t, n, len(want))
	assert.Equal(t, want, obj.Text[n-len(want):])
}

func TestCompileUndeclaredVariableIsAUserError(t *testing.T) {
	src := `func main() {
		x = 1;
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	_, err = c.Compile(f)
	require.Error(t, err)
}

func TestCompileBreakOutsideLoopIsAUserError(t *testing.T) {
	src := `func main() {
		break;
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	_, err = c.Compile(f)
	require.Error(t, err)
}

func TestCompileTooManyParametersIsAUserError(t *testing.T) {
	src := `func f(a @int, b @int, c @int, d @int, e @int, g @int, h @int) {
		return;
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	_, err = c.Compile(f)
	require.Error(t, err)
}

func TestCompileTooManyCallArgumentsIsAUserError(t *testing.T) {
	src := `func helper() { return; }
	func main() {
		helper(1, 2, 3, 4, 5, 6, 7);
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	_, err = c.Compile(f)
	require.Error(t, err)
}

func TestCompileArrayInitializerIsRejected(t *testing.T) {
	src := `func main() {
		var xs @[int, 2] = 1;
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	_, err = c.Compile(f)
	require.Error(t, err)
}

func TestCompileArrayIndexingRoundTrip(t *testing.T) {
	src := `func main() {
		var xs @[int, 4];
		xs[0] = 7;
		xs[1] = xs[0];
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)
	assert.NotEmpty(t, obj.Text)
}

func TestCompileNestedIndexAssignmentSavesAddressRegisters(t *testing.T) {
	src := `func main() {
		var xs @[int, 4];
		xs[1] = xs[0];
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)

	// The target address is computed into rbx/rcx before the source
	// expression is lowered; since that source expression indexes the
	// same array, it recomputes rbx/rcx itself, so the target's copies
	// must be saved across it (push rbx=0x53, push rcx=0x51) and
	// restored (pop rcx=0x59, pop rbx=0x5b) rather than trusted to
	// survive.
	assert.Contains(t, obj.Text, byte(0x53))
	assert.Contains(t, obj.Text, byte(0x51))
	assert.Contains(t, obj.Text, byte(0x59))
	assert.Contains(t, obj.Text, byte(0x5b))
}

func TestCompileUndefinedCalleeSurfacesAsFFI(t *testing.T) {
	src := `func main() {
		puts("hi");
	}`
	f, err := parser.Parse("t.nmt", src)
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	obj, err := c.Compile(f)
	require.NoError(t, err)
	assert.Contains(t, obj.FFI, "puts")
}

func TestCompileEmptyFileIsAUserError(t *testing.T) {
	f, err := parser.Parse("t.nmt", "")
	require.NoError(t, err)

	cfg := config.Default("t.nmt")
	c := New(cfg, diag.NewReporter(nopWriter{}))
	_, err = c.Compile(f)
	require.Error(t, err)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
