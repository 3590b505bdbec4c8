// Package compiler implements a single-pass compiler from Lox source
// text straight to bytecode: there is no intermediate AST. Parsing and
// code generation are interleaved, Pratt-style, the way clox's
// compiler.c does it.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/loxlang/golox/internal/heap"
	"github.com/loxlang/golox/internal/scanner"
	"github.com/loxlang/golox/internal/token"
)

type compileError string

func (e compileError) Error() string { return string(e) }
func errCompile(msg string) error    { return compileError(msg) }

const maxArgCount = 255

// Parser drives the scanner one token of lookahead at a time and holds
// all state for the compiler chain currently under construction. It
// implements heap.RootSource so a VM can register the in-progress
// Parser as a GC root source for the duration of a compile.
type Parser struct {
	scanner *scanner.Scanner
	heap    *heap.Heap

	current  token.Token
	previous token.Token

	compiler      *Compiler
	classCompiler *ClassCompiler

	hadError  bool
	panicMode bool
	errs      []string
}

// NewParser constructs a Parser over source. Compile must be called
// exactly once on the result.
func NewParser(source string, h *heap.Heap) *Parser {
	return &Parser{scanner: scanner.New(source), heap: h}
}

// Compile runs the parser to completion and returns the top-level
// script function, or a non-nil error describing every syntax error
// encountered (parsing continues past the first error via panic-mode
// recovery so a single compile reports as many mistakes as it can).
func (p *Parser) Compile() (*heap.ObjFunction, error) {
	fn := p.heap.NewFunction()
	p.compiler = newCompiler(nil, fn, TypeScript)

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	function := p.endCompiler()

	if p.hadError {
		msg := p.errs[0]
		for _, e := range p.errs[1:] {
			msg += "\n" + e
		}
		return nil, errCompile(msg)
	}
	return function, nil
}

// MarkRoots implements heap.RootSource, marking every ObjFunction
// still under construction along the current compiler chain. Without
// this, a collection triggered by a constant-pool or chunk-buffer
// growth mid-compile could sweep a function that no completed closure
// yet references.
func (p *Parser) MarkRoots(h *heap.Heap) {
	for c := p.compiler; c != nil; c = c.enclosing {
		h.MarkObject(&c.function.Obj)
	}
}

func (p *Parser) currentChunk() *heap.Chunk {
	return &p.compiler.function.Chunk
}

// --- token stream -------------------------------------------------

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scanner.NextToken()
		if p.current.Type != token.Error {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *Parser) consume(t token.Type, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) check(t token.Type) bool { return p.current.Type == t }

func (p *Parser) match(t token.Type) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *Parser) error(msg string)          { p.errorAt(p.previous, msg) }

func (p *Parser) errorAt(t token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	where := ""
	switch t.Type {
	case token.EOF:
		where = " at end"
	case token.Error:
		// lexeme is already the message; no location suffix
	default:
		where = fmt.Sprintf(" at '%s'", t.Lexeme)
	}
	p.errs = append(p.errs, fmt.Sprintf("[line %d] Error%s: %s", t.Line, where, msg))
	p.hadError = true
}

// synchronize discards tokens until it reaches a plausible statement
// boundary, so one syntax error doesn't cascade into a wall of
// spurious follow-on errors.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Type != token.EOF {
		if p.previous.Type == token.Semicolon {
			return
		}
		switch p.current.Type {
		case token.Class, token.Fun, token.Var, token.For,
			token.If, token.While, token.Print, token.Return:
			return
		}
		p.advance()
	}
}

// --- byte emission --------------------------------------------------

func (p *Parser) emitByte(b byte) {
	p.currentChunk().WriteByte(b, p.previous.Line)
}

func (p *Parser) emitBytes(a, b byte) {
	p.emitByte(a)
	p.emitByte(b)
}

func (p *Parser) emitReturn() {
	if p.compiler.fnType == TypeInitializer {
		p.emitBytes(heap.OpGetLocal, 0)
	} else {
		p.emitByte(heap.OpNil)
	}
	p.emitByte(heap.OpReturn)
}

func (p *Parser) makeConstant(v heap.Value) byte {
	idx := p.currentChunk().AddConstant(v)
	if idx > 255 {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (p *Parser) emitConstant(v heap.Value) {
	p.emitBytes(heap.OpConstant, p.makeConstant(v))
}

func (p *Parser) emitJump(op byte) int {
	p.emitByte(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.currentChunk().Code) - 2
}

func (p *Parser) patchJump(offset int) {
	jump := len(p.currentChunk().Code) - offset - 2
	if jump > 0xffff {
		p.error("Too much code to jump over.")
	}
	p.currentChunk().Code[offset] = byte(jump >> 8)
	p.currentChunk().Code[offset+1] = byte(jump)
}

func (p *Parser) emitLoop(loopStart int) {
	p.emitByte(heap.OpLoop)
	offset := len(p.currentChunk().Code) - loopStart + 2
	if offset > 0xffff {
		p.error("Loop body too large.")
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset))
}

func (p *Parser) endCompiler() *heap.ObjFunction {
	p.emitReturn()
	fn := p.compiler.function
	p.compiler = p.compiler.enclosing
	return fn
}

func (p *Parser) beginScope() { p.compiler.scopeDepth++ }

func (p *Parser) endScope() {
	p.compiler.scopeDepth--
	locals := p.compiler.locals
	for len(locals) > 0 && locals[len(locals)-1].Depth > p.compiler.scopeDepth {
		if locals[len(locals)-1].IsCaptured {
			p.emitByte(heap.OpCloseUpvalue)
		} else {
			p.emitByte(heap.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	p.compiler.locals = locals
}

// --- declarations and statements ------------------------------------

func (p *Parser) declaration() {
	switch {
	case p.match(token.Class):
		p.classDeclaration()
	case p.match(token.Fun):
		p.funDeclaration()
	case p.match(token.Var):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) classDeclaration() {
	p.consume(token.Ident, "Expect class name.")
	className := p.previous
	nameConstant := p.identifierConstant(className)
	p.declareVariable()

	p.emitBytes(heap.OpClass, nameConstant)
	p.defineVariable(nameConstant)

	classCompiler := &ClassCompiler{enclosing: p.classCompiler}
	p.classCompiler = classCompiler

	if p.match(token.Less) {
		p.consume(token.Ident, "Expect superclass name.")
		p.variable(false)
		if className.Lexeme == p.previous.Lexeme {
			p.error("A class can't inherit from itself.")
		}

		p.beginScope()
		if err := p.compiler.addLocal("super"); err != nil {
			p.error(err.Error())
		}
		p.defineVariable(0)

		p.namedVariable(className, false)
		p.emitByte(heap.OpInherit)
		classCompiler.hasSuperclass = true
	}

	p.namedVariable(className, false)
	p.consume(token.LeftBrace, "Expect '{' before class body.")
	for !p.check(token.RightBrace) && !p.check(token.EOF) {
		p.method()
	}
	p.consume(token.RightBrace, "Expect '}' after class body.")
	p.emitByte(heap.OpPop)

	if classCompiler.hasSuperclass {
		p.endScope()
	}
	p.classCompiler = p.classCompiler.enclosing
}

func (p *Parser) method() {
	p.consume(token.Ident, "Expect method name.")
	name := p.previous
	constant := p.identifierConstant(name)

	fnType := TypeMethod
	if name.Lexeme == "init" {
		fnType = TypeInitializer
	}
	p.function(fnType)
	p.emitBytes(heap.OpMethod, constant)
}

func (p *Parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	p.compiler.markInitialized()
	p.function(TypeFunction)
	p.defineVariable(global)
}

func (p *Parser) function(fnType FunctionType) {
	fn := p.heap.NewFunction()
	p.compiler = newCompiler(p.compiler, fn, fnType)
	if fnType != TypeScript {
		fn.Name = p.heap.InternString(p.previous.Lexeme)
	}
	p.beginScope()

	p.consume(token.LeftParen, "Expect '(' after function name.")
	if !p.check(token.RightParen) {
		for {
			p.compiler.function.Arity++
			if p.compiler.function.Arity > maxArgCount {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := p.parseVariable("Expect parameter name.")
			p.defineVariable(constant)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "Expect ')' after parameters.")
	p.consume(token.LeftBrace, "Expect '{' before function body.")
	p.block()

	// upvalues must be read off the child compiler before endCompiler
	// pops back to the enclosing frame.
	upvalues := p.compiler.upvalues
	compiled := p.endCompiler()
	idx := p.makeConstant(heap.ObjVal(&compiled.Obj))
	p.emitBytes(heap.OpClosure, idx)
	for _, uv := range upvalues {
		isLocal := byte(0)
		if uv.IsLocal {
			isLocal = 1
		}
		p.emitBytes(isLocal, uv.Index)
	}
}

func (p *Parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")
	if p.match(token.Equal) {
		p.expression()
	} else {
		p.emitByte(heap.OpNil)
	}
	p.consume(token.Semicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

func (p *Parser) statement() {
	switch {
	case p.match(token.Print):
		p.printStatement()
	case p.match(token.For):
		p.forStatement()
	case p.match(token.If):
		p.ifStatement()
	case p.match(token.Return):
		p.returnStatement()
	case p.match(token.While):
		p.whileStatement()
	case p.match(token.LeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(token.Semicolon, "Expect ';' after value.")
	p.emitByte(heap.OpPrint)
}

func (p *Parser) returnStatement() {
	if p.compiler.fnType == TypeScript {
		p.error("Can't return from top-level code.")
	}
	if p.match(token.Semicolon) {
		p.emitReturn()
		return
	}
	if p.compiler.fnType == TypeInitializer {
		p.error("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(token.Semicolon, "Expect ';' after return value.")
	p.emitByte(heap.OpReturn)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.currentChunk().Code)
	p.consume(token.LeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(token.RightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(heap.OpJumpIfFalse)
	p.emitByte(heap.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitByte(heap.OpPop)
}

func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(token.LeftParen, "Expect '(' after 'for'.")
	switch {
	case p.match(token.Semicolon):
		// no initializer
	case p.match(token.Var):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.currentChunk().Code)
	exitJump := -1
	if !p.match(token.Semicolon) {
		p.expression()
		p.consume(token.Semicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(heap.OpJumpIfFalse)
		p.emitByte(heap.OpPop)
	}

	if !p.match(token.RightParen) {
		bodyJump := p.emitJump(heap.OpJump)
		incrementStart := len(p.currentChunk().Code)
		p.expression()
		p.emitByte(heap.OpPop)
		p.consume(token.RightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitByte(heap.OpPop)
	}
	p.endScope()
}

func (p *Parser) ifStatement() {
	p.consume(token.LeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := p.emitJump(heap.OpJumpIfFalse)
	p.emitByte(heap.OpPop)
	p.statement()

	elseJump := p.emitJump(heap.OpJump)
	p.patchJump(thenJump)
	p.emitByte(heap.OpPop)

	if p.match(token.Else) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) block() {
	for !p.check(token.RightBrace) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RightBrace, "Expect '}' after block.")
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(token.Semicolon, "Expect ';' after expression.")
	p.emitByte(heap.OpPop)
}

// --- variables --------------------------------------------------------

func (p *Parser) parseVariable(msg string) byte {
	p.consume(token.Ident, msg)
	p.declareVariable()
	if p.compiler.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous)
}

func (p *Parser) identifierConstant(name token.Token) byte {
	return p.makeConstant(heap.StringVal(p.heap.InternString(name.Lexeme)))
}

func (p *Parser) declareVariable() {
	if p.compiler.scopeDepth == 0 {
		return
	}
	name := p.previous.Lexeme
	for i := len(p.compiler.locals) - 1; i >= 0; i-- {
		l := p.compiler.locals[i]
		if l.Depth != -1 && l.Depth < p.compiler.scopeDepth {
			break
		}
		if l.Name == name {
			p.error("Already a variable with this name in this scope.")
		}
	}
	if err := p.compiler.addLocal(name); err != nil {
		p.error(err.Error())
	}
}

func (p *Parser) defineVariable(global byte) {
	if p.compiler.scopeDepth > 0 {
		p.compiler.markInitialized()
		return
	}
	p.emitBytes(heap.OpDefineGlobal, global)
}

func (p *Parser) argumentList() byte {
	count := 0
	if !p.check(token.RightParen) {
		for {
			p.expression()
			if count == maxArgCount {
				p.error("Can't have more than 255 arguments.")
			}
			count++
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "Expect ')' after arguments.")
	return byte(count)
}

// parseNumberLiteral parses a Number token's lexeme; the
// scanner only ever emits well-formed decimal literals, so a parse
// failure here would indicate a scanner bug, not user input.
func parseNumberLiteral(lexeme string) float64 {
	n, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return 0
	}
	return n
}

