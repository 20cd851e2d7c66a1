// Package parser implements a recursive-descent parser over
// internal/lexer's token stream, producing the language's minimal AST
// node set. Precedence climbing mirrors the structure of Nmet's
// reference parser, re-expressed idiomatically: every parse method
// returns (node, error) and wraps failures with source position context.
package parser

import (
	"fmt"

	"github.com/mahanfr/nmet/internal/ast"
	"github.com/mahanfr/nmet/internal/lexer"
)

// Parser holds one token of lookahead over a lexer.Lexer.
type Parser struct {
	file string
	lx   *lexer.Lexer
	tok  lexer.Token
}

// Parse lexes and parses an entire Nmet source file.
func Parse(file, src string) (*ast.File, error) {
	p := &Parser{file: file, lx: lexer.New(file, src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p.parseFile()
}

func (p *Parser) next() error {
	t, err := p.lx.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) errf(format string, args ...any) error {
	return fmt.Errorf("%s:%d:%d: %s", p.file, p.tok.Line, p.tok.Col, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(k lexer.Kind, what string) (lexer.Token, error) {
	if p.tok.Kind != k {
		return lexer.Token{}, p.errf("expected %s", what)
	}
	t := p.tok
	if err := p.next(); err != nil {
		return lexer.Token{}, err
	}
	return t, nil
}

func (p *Parser) accept(k lexer.Kind) bool {
	if p.tok.Kind == k {
		p.next()
		return true
	}
	return false
}

func (p *Parser) parseFile() (*ast.File, error) {
	f := &ast.File{}
	for p.tok.Kind != lexer.EOF {
		fn, err := p.parseFuncDecl()
		if err != nil {
			return nil, err
		}
		f.Funcs = append(f.Funcs, fn)
	}
	return f, nil
}

func (p *Parser) parseFuncDecl() (*ast.FuncDecl, error) {
	line := p.tok.Line
	if _, err := p.expect(lexer.KwFunc, "'func'"); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.Ident, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return nil, err
	}
	var params []ast.Param
	for p.tok.Kind != lexer.RParen {
		pn, err := p.expect(lexer.Ident, "parameter name")
		if err != nil {
			return nil, err
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: pn.Text, Type: ty})
		if !p.accept(lexer.Comma) {
			break
		}
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return nil, err
	}
	var ret ast.VariableType
	if p.tok.Kind == lexer.At {
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Name: name.Text, Params: params, Ret: ret, Body: body, Line: line}, nil
}

// parseType parses `@int`, `@bool`, `@string`, `@char`, or `@[elem, N]`.
func (p *Parser) parseType() (ast.VariableType, error) {
	if _, err := p.expect(lexer.At, "'@' type annotation"); err != nil {
		return ast.VariableType{}, err
	}
	if p.accept(lexer.LBracket) {
		elem, err := p.expect(lexer.Ident, "element type")
		if err != nil {
			return ast.VariableType{}, err
		}
		if _, err := p.expect(lexer.Comma, "','"); err != nil {
			return ast.VariableType{}, err
		}
		n, err := p.expect(lexer.Int, "array length")
		if err != nil {
			return ast.VariableType{}, err
		}
		if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
			return ast.VariableType{}, err
		}
		return ast.VariableType{Name: elem.Text, IsArray: true, ArrayLen: int(n.IntVal)}, nil
	}
	name, err := p.expect(lexer.Ident, "type name")
	if err != nil {
		return ast.VariableType{}, err
	}
	return ast.VariableType{Name: name.Text}, nil
}

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(lexer.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for p.tok.Kind != lexer.RBrace {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(lexer.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	line := p.tok.Line
	switch p.tok.Kind {
	case lexer.KwVar:
		return p.parseVarDecl()
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwWhile:
		return p.parseWhile()
	case lexer.KwFor:
		return p.parseFor()
	case lexer.KwReturn:
		p.next()
		if p.tok.Kind == lexer.Semicolon {
			p.next()
			return &ast.Return{Line: line}, nil
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return &ast.Return{Value: v, Line: line}, nil
	case lexer.KwBreak:
		p.next()
		if _, err := p.expect(lexer.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return &ast.Break{Line: line}, nil
	case lexer.KwContinue:
		p.next()
		if _, err := p.expect(lexer.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return &ast.Continue{Line: line}, nil
	case lexer.KwPrint:
		p.next()
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return &ast.Print{Value: v, Line: line}, nil
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	line := p.tok.Line
	p.next() // 'var'
	name, err := p.expect(lexer.Ident, "variable name")
	if err != nil {
		return nil, err
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	var init ast.Expr
	if p.accept(lexer.Assign) {
		init, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return &ast.VarDecl{Name: name.Text, Type: ty, Mutable: true, Init: init, Line: line}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	line := p.tok.Line
	p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var els []ast.Stmt
	if p.accept(lexer.KwElse) {
		if p.tok.Kind == lexer.KwIf {
			s, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			els = []ast.Stmt{s}
		} else {
			els, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.If{Cond: cond, Then: then, Else: els, Line: line}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	line := p.tok.Line
	p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body, Line: line}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	line := p.tok.Line
	p.next()
	init, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Semicolon, "';'"); err != nil {
		return nil, err
	}
	post, err := p.parseExprOrAssignStmt()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.For{Init: init, Cond: cond, Post: post, Body: body, Line: line}, nil
}

// parseExprOrAssignStmt parses either `target = value;` or a bare
// expression statement (a call, or inline asm spelled as a call to the
// reserved name "asm"), consuming the trailing semicolon.
func (p *Parser) parseExprOrAssignStmt() (ast.Stmt, error) {
	line := p.tok.Line
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.accept(lexer.Assign) {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return &ast.Assign{Target: x, Value: v, Line: line}, nil
	}
	if _, err := p.expect(lexer.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{X: x, Line: line}, nil
}

// Expression grammar, lowest to highest precedence:
// || -> && -> comparison -> additive -> multiplicative -> unary -> postfix -> primary

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == lexer.OrOr {
		line := p.tok.Line
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: ast.OpOr, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == lexer.AndAnd {
		line := p.tok.Line
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: ast.OpAnd, Left: left, Right: right, Line: line}
	}
	return left, nil
}

var cmpOps = map[lexer.Kind]ast.CmpOp{
	lexer.Eq: ast.CmpEq, lexer.Ne: ast.CmpNe, lexer.Lt: ast.CmpLt,
	lexer.Le: ast.CmpLe, lexer.Gt: ast.CmpGt, lexer.Ge: ast.CmpGe,
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, ok := cmpOps[p.tok.Kind]; ok {
		line := p.tok.Line
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.Compare{Op: op, Left: left, Right: right, Line: line}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == lexer.Plus || p.tok.Kind == lexer.Minus ||
		p.tok.Kind == lexer.Amp || p.tok.Kind == lexer.Pipe {
		op := binOpFor(p.tok.Kind)
		line := p.tok.Line
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == lexer.Star || p.tok.Kind == lexer.Slash || p.tok.Kind == lexer.Percent {
		op := binOpFor(p.tok.Kind)
		line := p.tok.Line
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func binOpFor(k lexer.Kind) ast.BinOp {
	switch k {
	case lexer.Plus:
		return ast.OpAdd
	case lexer.Minus:
		return ast.OpSub
	case lexer.Star:
		return ast.OpMul
	case lexer.Slash:
		return ast.OpDiv
	case lexer.Percent:
		return ast.OpMod
	case lexer.Amp:
		return ast.OpBitAnd
	case lexer.Pipe:
		return ast.OpBitOr
	default:
		panic("parser: not a binary operator token")
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.tok.Kind == lexer.Minus || p.tok.Kind == lexer.Bang {
		op := p.tok.Text
		line := p.tok.Line
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: op, X: x, Line: line}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.Kind {
		case lexer.LBracket:
			line := p.tok.Line
			p.next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
				return nil, err
			}
			x = &ast.Index{Base: x, Idx: idx, Line: line}
		case lexer.Colon:
			// field access is spelled `base:field` to keep the grammar
			// LL(1) without introducing a dot token; only single-level
			// paths are supported.
			line := p.tok.Line
			p.next()
			name, err := p.expect(lexer.Ident, "field name")
			if err != nil {
				return nil, err
			}
			x = &ast.Field{Base: x, Name: name.Text, Line: line}
		default:
			return x, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.tok
	switch t.Kind {
	case lexer.Int:
		p.next()
		return &ast.IntLit{Value: t.IntVal, Line: t.Line}, nil
	case lexer.Char:
		p.next()
		return &ast.CharLit{Value: byte(t.IntVal), Line: t.Line}, nil
	case lexer.Bool:
		p.next()
		return &ast.BoolLit{Value: t.Text == "true", Line: t.Line}, nil
	case lexer.String:
		p.next()
		return &ast.StringLit{Value: t.Text, Line: t.Line}, nil
	case lexer.KwAsm:
		return p.parseAsmCall()
	case lexer.Ident:
		p.next()
		if p.tok.Kind == lexer.LParen {
			return p.parseCallArgs(t.Text, t.Line)
		}
		return &ast.Ident{Name: t.Text, Line: t.Line}, nil
	case lexer.LParen:
		p.next()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen, "')'"); err != nil {
			return nil, err
		}
		return x, nil
	default:
		return nil, p.errf("unexpected token in expression")
	}
}

func (p *Parser) parseCallArgs(name string, line int) (ast.Expr, error) {
	p.next() // '('
	var args []ast.Expr
	for p.tok.Kind != lexer.RParen {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.accept(lexer.Comma) {
			break
		}
	}
	if _, err := p.expect(lexer.RParen, "')'"); err != nil {
		return nil, err
	}
	return &ast.Call{Name: name, Args: args, Line: line}, nil
}

// parseAsmCall parses `asm("mnemonic", ...)`, represented as a Call to
// the reserved name "asm" (inline asm is a supported statement form
// without specifying its surface syntax in the grammar itself).
func (p *Parser) parseAsmCall() (ast.Expr, error) {
	line := p.tok.Line
	p.next() // 'asm'
	return p.parseCallArgs("asm", line)
}
