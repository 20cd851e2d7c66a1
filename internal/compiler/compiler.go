// Package compiler bridges a parsed ast.File to the instruction stream
// in internal/codegen, implementing the per-function lowering algorithm:
// emit the function label, reserve a patchable prologue frame-size slot,
// move the first six SysV argument registers into stack slots, lower the
// body with stack-oriented expression codegen, then patch the frame size
// and emit the epilogue (leave/ret, or an exit syscall for "main").
package compiler

import (
	"fmt"
	"strconv"

	"github.com/mahanfr/nmet/internal/ast"
	"github.com/mahanfr/nmet/internal/codegen"
	"github.com/mahanfr/nmet/internal/config"
	"github.com/mahanfr/nmet/internal/diag"
	"github.com/mahanfr/nmet/internal/elfobj"
	"github.com/mahanfr/nmet/internal/encoder"
	"github.com/mahanfr/nmet/internal/operand"
	"github.com/mahanfr/nmet/internal/reg"
)

// varInfo is one local variable's stack slot.
type varInfo struct {
	offset   int32 // rbp-relative, always <= 0
	size     int   // 1 or 8 bytes per scalar element
	isArray  bool
	arrayLen int
}

// loopLabels names the jump targets `break`/`continue` resolve to.
type loopLabels struct {
	continueLabel string
	breakLabel    string
}

// funcCtx carries one function's lowering state. Variables share a
// single flat namespace across the whole function body (no block-level
// shadowing) — a deliberate simplification this subset's programs don't
// need.
type funcCtx struct {
	fn        *ast.FuncDecl
	vars      map[string]varInfo
	frameSize int32
	loops     []loopLabels
}

// Compiler lowers one ast.File into an elfobj.Object.
type Compiler struct {
	cfg           config.Build
	buf           *codegen.Buffer
	reporter      *diag.Reporter
	labelSeq      int
	needsPrintBif bool
}

// New returns a Compiler configured for one build.
func New(cfg config.Build, reporter *diag.Reporter) *Compiler {
	return &Compiler{cfg: cfg, buf: codegen.New(), reporter: reporter}
}

func (c *Compiler) nextLabel(prefix string) string {
	c.labelSeq++
	return fmt.Sprintf("__%s_%d", prefix, c.labelSeq)
}

// Compile lowers every function in file and assembles the finished ELF
// object bytes' source tables (the caller writes them with Object.Write).
func (c *Compiler) Compile(file *ast.File) (*elfobj.Object, error) {
	if len(file.Funcs) == 0 {
		return nil, diag.Diagnostic{Class: diag.User, Message: "source file defines no functions"}
	}
	for _, fn := range file.Funcs {
		if err := c.lowerFunc(fn); err != nil {
			return nil, err
		}
	}
	if c.needsPrintBif {
		c.emitPrintBif()
	}
	c.buf.Peephole()
	if err := c.buf.Relocate(); err != nil {
		return nil, diag.Diagnostic{Class: diag.Internal, Message: err.Error()}
	}

	obj := &elfobj.Object{
		SourceFile: c.cfg.SourcePath,
		Text:       c.buf.TextBytes(),
	}
	if !c.cfg.AsLibrary {
		obj.EntrySymbol = c.cfg.EntrySymbol
	}

	var dataBytes []byte
	for _, d := range c.buf.Data {
		dataBytes = append(dataBytes, d.Bytes...)
		obj.LocalData = append(obj.LocalData, elfobj.NamedOffset{Name: d.Name, Offset: d.ByteOffset})
	}
	obj.Data = dataBytes

	for _, bs := range c.buf.Bss {
		obj.LocalBss = append(obj.LocalBss, elfobj.NamedOffset{Name: bs.Name, Offset: bs.ByteOffset})
	}
	if len(c.buf.Bss) > 0 {
		last := c.buf.Bss[len(c.buf.Bss)-1]
		obj.Bss = last.ByteOffset + last.Size
	}

	funcNames := make(map[string]bool, len(file.Funcs)+1)
	for _, fn := range file.Funcs {
		funcNames[fn.Name] = true
	}
	if obj.EntrySymbol != "" {
		// _start (or whatever EntrySymbol names) is emitted as a global
		// symbol below, not a second local one.
		funcNames[obj.EntrySymbol] = true
	}
	for name, sym := range c.buf.Symbols {
		if sym.Kind == codegen.Ffi {
			obj.FFI = append(obj.FFI, name)
		}
	}
	for _, name := range c.buf.LabelNames() {
		if funcNames[name] {
			continue
		}
		// Compiler-internal labels: loop/if targets, and the print BIF and
		// its own loop label when emitted. Public functions are already
		// covered by obj.Funcs below.
		obj.LocalText = append(obj.LocalText, elfobj.NamedOffset{Name: name, Offset: c.buf.Symbols[name].Offset})
	}
	for i, fn := range file.Funcs {
		start := c.buf.Symbols[fn.Name].Offset
		end := c.buf.TextLen()
		if i+1 < len(file.Funcs) {
			end = c.buf.Symbols[file.Funcs[i+1].Name].Offset
		} else if c.needsPrintBif {
			// The print BIF is appended after every source-level function,
			// so the last one's span stops where "print" begins rather
			// than running to the end of .text.
			end = c.buf.Symbols["print"].Offset
		}
		obj.Funcs = append(obj.Funcs, elfobj.NamedOffset{Name: fn.Name, Offset: start, Size: end - start})
	}
	for _, r := range c.buf.Relocs {
		obj.Relocs = append(obj.Relocs, elfobj.Reloc{
			Offset: r.Offset, Type: r.Type, Addend: r.Addend, SymbolName: r.SymbolName,
		})
	}
	return obj, nil
}

func (c *Compiler) lowerFunc(fn *ast.FuncDecl) error {
	fc := &funcCtx{fn: fn, vars: map[string]varInfo{}}

	c.buf.DefineLabel(fn.Name)
	if fn.Name == "main" && !c.cfg.AsLibrary && c.cfg.EntrySymbol != "" && c.cfg.EntrySymbol != "main" {
		c.buf.DefineLabel(c.cfg.EntrySymbol)
	}

	c.buf.Emit(encoder.PUSH, operand.R(reg.RBP))
	c.buf.Emit(encoder.MOV, operand.R(reg.RBP), operand.R(reg.RSP))
	frameHandle := c.buf.ReserveFrame()

	for i, p := range fn.Params {
		if i >= len(reg.ArgRegs) {
			return diag.Diagnostic{Class: diag.User, Line: fn.Line, Message: fmt.Sprintf("function %q takes more than 6 parameters, which this target's calling convention does not support", fn.Name)}
		}
		size := p.Type.ItemSize()
		fc.frameSize += int32(size)
		off := -fc.frameSize
		fc.vars[p.Name] = varInfo{offset: off, size: size}
		c.storeReg(off, size, reg.ArgRegs[i])
	}

	for _, s := range fn.Body {
		if err := c.lowerStmt(fc, s); err != nil {
			return err
		}
	}
	if !endsInReturn(fn.Body) {
		// Falling off the end of a function body is an implicit "return;":
		// RAX must be set the same way lowerReturn sets it for a bare
		// return, so main exits 0 rather than whatever the last statement
		// happened to leave behind (e.g. a print call's syscall result).
		c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(0))
		c.emitEpilogue(fc)
	}

	c.buf.PatchFrame(frameHandle, nextPow2(fc.frameSize))
	return nil
}

func endsInReturn(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	_, ok := body[len(body)-1].(*ast.Return)
	return ok
}

// nextPow2 returns the smallest power of two >= n, or 0 when n <= 0 (no
// frame reservation needed at all).
func nextPow2(n int32) int32 {
	if n <= 0 {
		return 0
	}
	p := int32(1)
	for p < n {
		p <<= 1
	}
	return p
}

func (c *Compiler) storeReg(offset int32, size int, src reg.Reg) {
	r := reg.Sized(src, sizeFor(size))
	c.buf.Emit(encoder.MOV, operand.MDisp(reg.RBP, offset, size), operand.R(r))
}

func sizeFor(bytes int) reg.Size {
	if bytes == 1 {
		return reg.Size8
	}
	return reg.Size64
}

// emitEpilogue closes out the current function: for "main", an exit(2)
// syscall with RAX as the exit code; for everything else, leave/ret.
func (c *Compiler) emitEpilogue(fc *funcCtx) {
	if fc.fn.Name == "main" {
		c.buf.Emit(encoder.MOV, operand.R(reg.RDI), operand.R(reg.RAX))
		c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(60))
		c.buf.Emit(encoder.SYSCALL)
		return
	}
	c.buf.Emit(encoder.LEAVE)
	c.buf.Emit(encoder.RET)
}

// --- statements ---

func (c *Compiler) lowerStmt(fc *funcCtx, s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.VarDecl:
		return c.lowerVarDecl(fc, s)
	case *ast.Assign:
		return c.lowerAssign(fc, s)
	case *ast.If:
		return c.lowerIf(fc, s)
	case *ast.While:
		return c.lowerWhile(fc, s)
	case *ast.For:
		return c.lowerFor(fc, s)
	case *ast.Return:
		return c.lowerReturn(fc, s)
	case *ast.Break:
		return c.lowerBreak(fc, s)
	case *ast.Continue:
		return c.lowerContinue(fc, s)
	case *ast.Print:
		return c.lowerPrint(fc, s)
	case *ast.ExprStmt:
		return c.lowerExprStmt(fc, s)
	default:
		return diag.Diagnostic{Class: diag.Internal, Line: 0, Message: fmt.Sprintf("unhandled statement node %T", s)}
	}
}

func (c *Compiler) lowerVarDecl(fc *funcCtx, s *ast.VarDecl) error {
	elemSize := s.Type.ItemSize()
	total := elemSize
	if s.Type.IsArray {
		total = elemSize * s.Type.ArrayLen
	}
	fc.frameSize += int32(total)
	off := -fc.frameSize
	fc.vars[s.Name] = varInfo{offset: off, size: elemSize, isArray: s.Type.IsArray, arrayLen: s.Type.ArrayLen}

	if s.Init == nil {
		return nil
	}
	if s.Type.IsArray {
		return diag.Diagnostic{Class: diag.User, Line: s.Line, Message: "array variables cannot have an initializer in this language subset"}
	}
	if err := c.lowerExpr(fc, s.Init); err != nil {
		return err
	}
	c.buf.Emit(encoder.POP, operand.R(reg.RAX))
	c.storeSlot(off, elemSize)
	return nil
}

func (c *Compiler) storeSlot(offset int32, size int) {
	src := reg.Sized(reg.RAX, sizeFor(size))
	c.buf.Emit(encoder.MOV, operand.MDisp(reg.RBP, offset, size), operand.R(src))
}

func (c *Compiler) lowerAssign(fc *funcCtx, s *ast.Assign) error {
	switch t := s.Target.(type) {
	case *ast.Ident:
		v, ok := fc.vars[t.Name]
		if !ok {
			return diag.Diagnostic{Class: diag.User, Line: s.Line, Message: fmt.Sprintf("assignment to undeclared variable %q", t.Name)}
		}
		if err := c.lowerExpr(fc, s.Value); err != nil {
			return err
		}
		c.buf.Emit(encoder.POP, operand.R(reg.RAX))
		c.storeSlot(v.offset, v.size)
		return nil
	case *ast.Index:
		mem, elemSize, err := c.lowerIndexAddress(fc, t)
		if err != nil {
			return err
		}
		// The value expression may itself index an array and clobber
		// RBX/RCX, so the address parts are saved across it rather than
		// trusted to survive.
		c.buf.Emit(encoder.PUSH, operand.R(reg.RBX))
		c.buf.Emit(encoder.PUSH, operand.R(reg.RCX))
		if err := c.lowerExpr(fc, s.Value); err != nil {
			return err
		}
		c.buf.Emit(encoder.POP, operand.R(reg.RAX))
		c.buf.Emit(encoder.POP, operand.R(reg.RCX))
		c.buf.Emit(encoder.POP, operand.R(reg.RBX))
		src := reg.Sized(reg.RAX, sizeFor(elemSize))
		c.buf.Emit(encoder.MOV, mem, operand.R(src))
		return nil
	default:
		return diag.Diagnostic{Class: diag.User, Line: s.Line, Message: "assignment target must be a variable or array index"}
	}
}

func (c *Compiler) lowerIf(fc *funcCtx, s *ast.If) error {
	elseLabel := c.nextLabel("if_else")
	endLabel := c.nextLabel("if_end")

	if err := c.lowerExpr(fc, s.Cond); err != nil {
		return err
	}
	c.buf.Emit(encoder.POP, operand.R(reg.RAX))
	c.buf.Emit(encoder.TEST, operand.R(reg.RAX), operand.R(reg.RAX))
	c.buf.Emit(encoder.JZ, operand.Lbl(elseLabel))

	for _, st := range s.Then {
		if err := c.lowerStmt(fc, st); err != nil {
			return err
		}
	}
	c.buf.Emit(encoder.JMP, operand.Lbl(endLabel))
	c.buf.DefineLabel(elseLabel)
	for _, st := range s.Else {
		if err := c.lowerStmt(fc, st); err != nil {
			return err
		}
	}
	c.buf.DefineLabel(endLabel)
	return nil
}

func (c *Compiler) lowerWhile(fc *funcCtx, s *ast.While) error {
	startLabel := c.nextLabel("while_start")
	endLabel := c.nextLabel("while_end")

	c.buf.DefineLabel(startLabel)
	if err := c.lowerExpr(fc, s.Cond); err != nil {
		return err
	}
	c.buf.Emit(encoder.POP, operand.R(reg.RAX))
	c.buf.Emit(encoder.TEST, operand.R(reg.RAX), operand.R(reg.RAX))
	c.buf.Emit(encoder.JZ, operand.Lbl(endLabel))

	fc.loops = append(fc.loops, loopLabels{continueLabel: startLabel, breakLabel: endLabel})
	for _, st := range s.Body {
		if err := c.lowerStmt(fc, st); err != nil {
			return err
		}
	}
	fc.loops = fc.loops[:len(fc.loops)-1]

	c.buf.Emit(encoder.JMP, operand.Lbl(startLabel))
	c.buf.DefineLabel(endLabel)
	return nil
}

func (c *Compiler) lowerFor(fc *funcCtx, s *ast.For) error {
	if s.Init != nil {
		if err := c.lowerStmt(fc, s.Init); err != nil {
			return err
		}
	}
	startLabel := c.nextLabel("for_start")
	postLabel := c.nextLabel("for_post")
	endLabel := c.nextLabel("for_end")

	c.buf.DefineLabel(startLabel)
	if err := c.lowerExpr(fc, s.Cond); err != nil {
		return err
	}
	c.buf.Emit(encoder.POP, operand.R(reg.RAX))
	c.buf.Emit(encoder.TEST, operand.R(reg.RAX), operand.R(reg.RAX))
	c.buf.Emit(encoder.JZ, operand.Lbl(endLabel))

	fc.loops = append(fc.loops, loopLabels{continueLabel: postLabel, breakLabel: endLabel})
	for _, st := range s.Body {
		if err := c.lowerStmt(fc, st); err != nil {
			return err
		}
	}
	fc.loops = fc.loops[:len(fc.loops)-1]

	c.buf.DefineLabel(postLabel)
	if s.Post != nil {
		if err := c.lowerStmt(fc, s.Post); err != nil {
			return err
		}
	}
	c.buf.Emit(encoder.JMP, operand.Lbl(startLabel))
	c.buf.DefineLabel(endLabel)
	return nil
}

func (c *Compiler) lowerReturn(fc *funcCtx, s *ast.Return) error {
	if s.Value != nil {
		if err := c.lowerExpr(fc, s.Value); err != nil {
			return err
		}
		c.buf.Emit(encoder.POP, operand.R(reg.RAX))
	} else {
		c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(0))
	}
	c.emitEpilogue(fc)
	return nil
}

func (c *Compiler) lowerBreak(fc *funcCtx, s *ast.Break) error {
	if len(fc.loops) == 0 {
		return diag.Diagnostic{Class: diag.User, Line: s.Line, Message: "break used outside of a loop"}
	}
	c.buf.Emit(encoder.JMP, operand.Lbl(fc.loops[len(fc.loops)-1].breakLabel))
	return nil
}

func (c *Compiler) lowerContinue(fc *funcCtx, s *ast.Continue) error {
	if len(fc.loops) == 0 {
		return diag.Diagnostic{Class: diag.User, Line: s.Line, Message: "continue used outside of a loop"}
	}
	c.buf.Emit(encoder.JMP, operand.Lbl(fc.loops[len(fc.loops)-1].continueLabel))
	return nil
}

// lowerPrint supports string literals, constant-foldable integer
// expressions, and arbitrary runtime integer expressions — the last of
// which lowers its value into RDI and calls the print BIF (emitted once
// per object by emitPrintBif) rather than folding at compile time.
func (c *Compiler) lowerPrint(fc *funcCtx, s *ast.Print) error {
	if lit, ok := s.Value.(*ast.StringLit); ok {
		c.emitWriteLiteral(lit.Value)
		return nil
	}
	if v, ok := constFoldInt(s.Value); ok {
		c.emitWriteLiteral(strconv.FormatInt(v, 10) + "\n")
		return nil
	}
	if err := c.lowerExpr(fc, s.Value); err != nil {
		return err
	}
	c.buf.Emit(encoder.POP, operand.R(reg.RDI))
	c.buf.Call("print")
	c.needsPrintBif = true
	return nil
}

// emitPrintBif appends the runtime integer-to-decimal print routine
// exactly once: a 64-byte stack buffer filled back-to-front using the
// reciprocal-multiplication trick for unsigned division by 10 (the
// magic constant approximates 2^67/10), then written out with one
// write(2) syscall. The argument arrives in RDI.
func (c *Compiler) emitPrintBif() {
	const magic = -3689348814741910323 // ceil(2**67 / 10), reinterpreted as signed

	c.buf.DefineLabel("print")
	c.buf.Emit(encoder.PUSH, operand.R(reg.RBP))
	c.buf.Emit(encoder.MOV, operand.R(reg.RBP), operand.R(reg.RSP))
	c.buf.Emit(encoder.SUB, operand.R(reg.RSP), operand.I32(64))
	c.buf.Emit(encoder.MOV, operand.MDisp(reg.RBP, -56, 8), operand.R(reg.RDI))
	c.buf.Emit(encoder.MOV, operand.MDisp(reg.RBP, -8, 8), operand.I32(1))
	c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(32))
	c.buf.Emit(encoder.SUB, operand.R(reg.RAX), operand.MDisp(reg.RBP, -8, 8))
	c.buf.Emit(encoder.MOV, operand.MIndex(reg.RBP, -48, reg.RAX, operand.Scale1, 1), operand.I32(10))

	c.buf.DefineLabel("__print_loop")
	c.buf.Emit(encoder.MOV, operand.R(reg.RCX), operand.MDisp(reg.RBP, -56, 8))
	c.buf.Emit(encoder.MOV, operand.R(reg.RDX), operand.I64(magic))
	c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.R(reg.RCX))
	c.buf.Emit(encoder.MUL, operand.R(reg.RDX))
	c.buf.Emit(encoder.SHR, operand.R(reg.RDX), operand.I32(3))
	c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.R(reg.RDX))
	c.buf.Emit(encoder.SAL, operand.R(reg.RAX), operand.I32(2))
	c.buf.Emit(encoder.ADD, operand.R(reg.RAX), operand.R(reg.RDX))
	c.buf.Emit(encoder.ADD, operand.R(reg.RAX), operand.R(reg.RAX))
	c.buf.Emit(encoder.SUB, operand.R(reg.RCX), operand.R(reg.RAX))
	c.buf.Emit(encoder.MOV, operand.R(reg.RDX), operand.R(reg.RCX))
	c.buf.Emit(encoder.MOV, operand.R(reg.Sized(reg.RAX, reg.Size32)), operand.R(reg.Sized(reg.RDX, reg.Size32)))
	c.buf.Emit(encoder.LEA, operand.R(reg.Sized(reg.RDX, reg.Size32)), operand.MDisp(reg.RAX, 48, 4))
	c.buf.Emit(encoder.MOV, operand.R(reg.Sized(reg.RAX, reg.Size32)), operand.I32(31))
	c.buf.Emit(encoder.SUB, operand.R(reg.RAX), operand.MDisp(reg.RBP, -8, 8))
	c.buf.Emit(encoder.MOV, operand.MIndex(reg.RBP, -48, reg.RAX, operand.Scale1, 1), operand.R(reg.DL))
	c.buf.Emit(encoder.ADD, operand.MDisp(reg.RBP, -8, 8), operand.I32(1))
	c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.MDisp(reg.RBP, -56, 8))
	c.buf.Emit(encoder.MOV, operand.R(reg.RDX), operand.I64(magic))
	c.buf.Emit(encoder.MUL, operand.R(reg.RDX))
	c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.R(reg.RDX))
	c.buf.Emit(encoder.SHR, operand.R(reg.RAX), operand.I32(3))
	c.buf.Emit(encoder.MOV, operand.MDisp(reg.RBP, -56, 8), operand.R(reg.RAX))
	c.buf.Emit(encoder.CMP, operand.MDisp(reg.RBP, -56, 8), operand.I32(0))
	c.buf.Emit(encoder.JNZ, operand.Lbl("__print_loop"))

	c.buf.Emit(encoder.MOV, operand.R(reg.Sized(reg.RAX, reg.Size32)), operand.I32(32))
	c.buf.Emit(encoder.SUB, operand.R(reg.RAX), operand.MDisp(reg.RBP, -8, 8))
	c.buf.Emit(encoder.LEA, operand.R(reg.RDX), operand.MDisp(reg.RBP, -48, 8))
	c.buf.Emit(encoder.ADD, operand.R(reg.RAX), operand.R(reg.RDX))
	c.buf.Emit(encoder.MOV, operand.R(reg.RSI), operand.R(reg.RAX))
	c.buf.Emit(encoder.MOV, operand.R(reg.RBX), operand.MDisp(reg.RBP, -8, 8))
	c.buf.Emit(encoder.MOV, operand.R(reg.RDX), operand.R(reg.RBX))
	c.buf.Emit(encoder.MOV, operand.R(reg.RDI), operand.I64(1))
	c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(1))
	c.buf.Emit(encoder.SYSCALL)
	c.buf.Emit(encoder.LEAVE)
	c.buf.Emit(encoder.RET)
}

func (c *Compiler) emitWriteLiteral(text string) {
	name := c.buf.AddData([]byte(text), "string")
	c.buf.Emit(encoder.MOV, operand.R(reg.Sized(reg.RAX, reg.Size32)), operand.Rel(name))
	c.buf.Emit(encoder.MOV, operand.R(reg.RSI), operand.R(reg.RAX))
	c.buf.Emit(encoder.MOV, operand.R(reg.RDI), operand.I64(1))
	c.buf.Emit(encoder.MOV, operand.R(reg.RDX), operand.I64(int64(len(text))))
	c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(1))
	c.buf.Emit(encoder.SYSCALL)
}

// lowerExprStmt discards the expression's pushed result, except for a
// bare `asm(...)` call which never pushes one.
func (c *Compiler) lowerExprStmt(fc *funcCtx, s *ast.ExprStmt) error {
	if call, ok := s.X.(*ast.Call); ok && call.Name == "asm" {
		return c.lowerAsm(call)
	}
	if err := c.lowerExpr(fc, s.X); err != nil {
		return err
	}
	c.buf.Emit(encoder.ADD, operand.R(reg.RSP), operand.I32(8))
	return nil
}

var asmZeroOperand = map[string]encoder.Mnemonic{
	"nop": encoder.NOP, "syscall": encoder.SYSCALL, "cqo": encoder.CQO,
	"leave": encoder.LEAVE, "ret": encoder.RET,
}

// lowerAsm supports the small set of zero-operand mnemonics this
// compiler's own instruction set already names; it does not implement a
// general inline-assembly parser.
func (c *Compiler) lowerAsm(call *ast.Call) error {
	if len(call.Args) != 1 {
		return diag.Diagnostic{Class: diag.User, Line: call.Line, Message: "asm(...) takes exactly one string literal mnemonic"}
	}
	lit, ok := call.Args[0].(*ast.StringLit)
	if !ok {
		return diag.Diagnostic{Class: diag.User, Line: call.Line, Message: "asm(...) argument must be a string literal"}
	}
	m, ok := asmZeroOperand[lit.Value]
	if !ok {
		return diag.Diagnostic{Class: diag.User, Line: call.Line, Message: fmt.Sprintf("asm(%q): unsupported or non-zero-operand mnemonic", lit.Value)}
	}
	c.buf.Emit(m)
	return nil
}

// --- expressions ---

var cmpCmov = map[ast.CmpOp]encoder.Mnemonic{
	ast.CmpEq: encoder.CMOVE, ast.CmpNe: encoder.CMOVNE, ast.CmpGt: encoder.CMOVG,
	ast.CmpLt: encoder.CMOVL, ast.CmpGe: encoder.CMOVGE, ast.CmpLe: encoder.CMOVLE,
}

// lowerExpr lowers e so that, by the time it returns, exactly one 8-byte
// value has been pushed onto the CPU stack — the stack-oriented
// discipline every expression in this compiler follows.
func (c *Compiler) lowerExpr(fc *funcCtx, e ast.Expr) error {
	switch e := e.(type) {
	case *ast.IntLit:
		c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(e.Value))
		c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
		return nil
	case *ast.BoolLit:
		v := int64(0)
		if e.Value {
			v = 1
		}
		c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(v))
		c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
		return nil
	case *ast.CharLit:
		c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(int64(e.Value)))
		c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
		return nil
	case *ast.StringLit:
		name := c.buf.AddData(append([]byte(e.Value), 0), "string")
		c.buf.Emit(encoder.MOV, operand.R(reg.Sized(reg.RAX, reg.Size32)), operand.Rel(name))
		c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
		return nil
	case *ast.Ident:
		v, ok := fc.vars[e.Name]
		if !ok {
			return diag.Diagnostic{Class: diag.User, Line: e.Line, Message: fmt.Sprintf("undeclared variable %q", e.Name)}
		}
		if v.isArray {
			c.buf.Emit(encoder.LEA, operand.R(reg.RAX), operand.MDisp(reg.RBP, v.offset, 8))
		} else {
			dst := reg.Sized(reg.RAX, sizeFor(v.size))
			c.buf.Emit(encoder.MOV, operand.R(dst), operand.MDisp(reg.RBP, v.offset, v.size))
		}
		c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
		return nil
	case *ast.Index:
		mem, elemSize, err := c.lowerIndexAddress(fc, e)
		if err != nil {
			return err
		}
		dst := reg.Sized(reg.RAX, sizeFor(elemSize))
		c.buf.Emit(encoder.MOV, operand.R(dst), mem)
		c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
		return nil
	case *ast.Field:
		return diag.Diagnostic{Class: diag.User, Line: e.Line, Message: "struct field access requires a struct type declaration, which this language subset does not define"}
	case *ast.Unary:
		return c.lowerUnary(fc, e)
	case *ast.Binary:
		return c.lowerBinary(fc, e)
	case *ast.Compare:
		return c.lowerCompare(fc, e)
	case *ast.Call:
		return c.lowerCall(fc, e)
	default:
		return diag.Diagnostic{Class: diag.Internal, Message: fmt.Sprintf("unhandled expression node %T", e)}
	}
}

func (c *Compiler) lowerUnary(fc *funcCtx, e *ast.Unary) error {
	if err := c.lowerExpr(fc, e.X); err != nil {
		return err
	}
	c.buf.Emit(encoder.POP, operand.R(reg.RAX))
	switch e.Op {
	case "-":
		c.buf.Emit(encoder.NEG, operand.R(reg.RAX))
	case "!":
		// Boolean values are always 0/1: logical not is 1-v. There is no
		// XOR in this instruction set to flip the low bit directly.
		c.buf.Emit(encoder.MOV, operand.R(reg.RCX), operand.I64(1))
		c.buf.Emit(encoder.SUB, operand.R(reg.RCX), operand.R(reg.RAX))
		c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.R(reg.RCX))
	default:
		return diag.Diagnostic{Class: diag.Internal, Line: e.Line, Message: fmt.Sprintf("unhandled unary operator %q", e.Op)}
	}
	c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
	return nil
}

func (c *Compiler) lowerBinary(fc *funcCtx, e *ast.Binary) error {
	if err := c.lowerExpr(fc, e.Left); err != nil {
		return err
	}
	if err := c.lowerExpr(fc, e.Right); err != nil {
		return err
	}
	c.buf.Emit(encoder.POP, operand.R(reg.RBX))
	c.buf.Emit(encoder.POP, operand.R(reg.RAX))
	switch e.Op {
	case ast.OpAdd:
		c.buf.Emit(encoder.ADD, operand.R(reg.RAX), operand.R(reg.RBX))
	case ast.OpSub:
		c.buf.Emit(encoder.SUB, operand.R(reg.RAX), operand.R(reg.RBX))
	case ast.OpMul:
		c.buf.Emit(encoder.IMUL, operand.R(reg.RAX), operand.R(reg.RBX))
	case ast.OpDiv, ast.OpMod:
		c.buf.Emit(encoder.CQO)
		c.buf.Emit(encoder.IDIV, operand.R(reg.RBX))
		if e.Op == ast.OpMod {
			c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.R(reg.RDX))
		}
	case ast.OpBitAnd, ast.OpAnd:
		c.buf.Emit(encoder.AND, operand.R(reg.RAX), operand.R(reg.RBX))
	case ast.OpBitOr, ast.OpOr:
		c.buf.Emit(encoder.OR, operand.R(reg.RAX), operand.R(reg.RBX))
	default:
		return diag.Diagnostic{Class: diag.Internal, Line: e.Line, Message: fmt.Sprintf("unhandled binary operator %q", e.Op)}
	}
	c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
	return nil
}

func (c *Compiler) lowerCompare(fc *funcCtx, e *ast.Compare) error {
	if err := c.lowerExpr(fc, e.Left); err != nil {
		return err
	}
	if err := c.lowerExpr(fc, e.Right); err != nil {
		return err
	}
	c.buf.Emit(encoder.POP, operand.R(reg.RBX))
	c.buf.Emit(encoder.POP, operand.R(reg.RAX))
	c.buf.Emit(encoder.CMP, operand.R(reg.RAX), operand.R(reg.RBX))
	c.buf.Emit(encoder.MOV, operand.R(reg.RCX), operand.I64(1))
	c.buf.Emit(encoder.MOV, operand.R(reg.RAX), operand.I64(0))
	cc, ok := cmpCmov[e.Op]
	if !ok {
		return diag.Diagnostic{Class: diag.Internal, Line: e.Line, Message: fmt.Sprintf("unhandled comparison operator %q", e.Op)}
	}
	c.buf.Emit(cc, operand.R(reg.RAX), operand.R(reg.RCX))
	c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
	return nil
}

func (c *Compiler) lowerCall(fc *funcCtx, e *ast.Call) error {
	if e.Name == "asm" {
		return diag.Diagnostic{Class: diag.User, Line: e.Line, Message: "asm(...) cannot be used as a value"}
	}
	if len(e.Args) > len(reg.ArgRegs) {
		return diag.Diagnostic{Class: diag.User, Line: e.Line, Message: fmt.Sprintf("call to %q passes more than 6 arguments, which this target's calling convention does not support", e.Name)}
	}
	for _, arg := range e.Args {
		if err := c.lowerExpr(fc, arg); err != nil {
			return err
		}
	}
	for i := len(e.Args) - 1; i >= 0; i-- {
		c.buf.Emit(encoder.POP, operand.R(reg.ArgRegs[i]))
	}
	c.buf.Call(e.Name)
	c.buf.Emit(encoder.PUSH, operand.R(reg.RAX))
	return nil
}

// lowerIndexAddress resolves base[idx] to a Mem operand plus the element
// access width, without loading the value. Arrays hold either 1-byte
// (bool/char) or 8-byte (everything else) elements, both valid SIB
// scales, so the index never needs an explicit multiply.
func (c *Compiler) lowerIndexAddress(fc *funcCtx, e *ast.Index) (operand.Operand, int, error) {
	elemSize := 8
	if base, ok := e.Base.(*ast.Ident); ok {
		if v, ok := fc.vars[base.Name]; ok {
			elemSize = v.size
			c.buf.Emit(encoder.LEA, operand.R(reg.RBX), operand.MDisp(reg.RBP, v.offset, 8))
		} else {
			return operand.Operand{}, 0, diag.Diagnostic{Class: diag.User, Line: e.Line, Message: fmt.Sprintf("undeclared variable %q", base.Name)}
		}
	} else {
		if err := c.lowerExpr(fc, e.Base); err != nil {
			return operand.Operand{}, 0, err
		}
		c.buf.Emit(encoder.POP, operand.R(reg.RBX))
	}
	if err := c.lowerExpr(fc, e.Idx); err != nil {
		return operand.Operand{}, 0, err
	}
	c.buf.Emit(encoder.POP, operand.R(reg.RCX))
	scale := operand.Scale1
	if elemSize == 8 {
		scale = operand.Scale8
	}
	return operand.MIndex(reg.RBX, 0, reg.RCX, scale, elemSize), elemSize, nil
}

// constFoldInt evaluates a compile-time-constant integer expression
// (literals plus +,-,*,/,% and unary minus over them), the minimal
// folding lowerPrint needs to support `print 6*7;`-style scenarios
// without a runtime integer-to-string conversion routine.
func constFoldInt(e ast.Expr) (int64, bool) {
	switch e := e.(type) {
	case *ast.IntLit:
		return e.Value, true
	case *ast.Unary:
		if e.Op != "-" {
			return 0, false
		}
		v, ok := constFoldInt(e.X)
		return -v, ok
	case *ast.Binary:
		l, ok := constFoldInt(e.Left)
		if !ok {
			return 0, false
		}
		r, ok := constFoldInt(e.Right)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case ast.OpAdd:
			return l + r, true
		case ast.OpSub:
			return l - r, true
		case ast.OpMul:
			return l * r, true
		case ast.OpDiv:
			if r == 0 {
				return 0, false
			}
			return l / r, true
		case ast.OpMod:
			if r == 0 {
				return 0, false
			}
			return l % r, true
		default:
			return 0, false
		}
	default:
		return 0, false
	}
}
