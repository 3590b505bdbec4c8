package compiler

import (
	"github.com/loxlang/golox/internal/heap"
	"github.com/loxlang/golox/internal/token"
)

// Precedence orders binding strength from loosest to tightest, per the
// standard Lox grammar.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.LeftParen:  {prefix: (*Parser).grouping, infix: (*Parser).call, precedence: PrecCall},
		token.Dot:        {infix: (*Parser).dot, precedence: PrecCall},
		token.Minus:      {prefix: (*Parser).unary, infix: (*Parser).binary, precedence: PrecTerm},
		token.Plus:       {infix: (*Parser).binary, precedence: PrecTerm},
		token.Slash:      {infix: (*Parser).binary, precedence: PrecFactor},
		token.Star:       {infix: (*Parser).binary, precedence: PrecFactor},
		token.Bang:       {prefix: (*Parser).unary},
		token.BangEqual:  {infix: (*Parser).binary, precedence: PrecEquality},
		token.EqualEqual: {infix: (*Parser).binary, precedence: PrecEquality},
		token.Greater:      {infix: (*Parser).binary, precedence: PrecComparison},
		token.GreaterEqual: {infix: (*Parser).binary, precedence: PrecComparison},
		token.Less:         {infix: (*Parser).binary, precedence: PrecComparison},
		token.LessEqual:    {infix: (*Parser).binary, precedence: PrecComparison},
		token.Ident:  {prefix: (*Parser).variableExpr},
		token.String: {prefix: (*Parser).stringLiteral},
		token.Number: {prefix: (*Parser).number},
		token.And:    {infix: (*Parser).and_, precedence: PrecAnd},
		token.False:  {prefix: (*Parser).literal},
		token.Nil:    {prefix: (*Parser).literal},
		token.Or:     {infix: (*Parser).or_, precedence: PrecOr},
		token.Super:  {prefix: (*Parser).super_},
		token.This:   {prefix: (*Parser).this_},
		token.True:   {prefix: (*Parser).literal},
	}
}

func getRule(t token.Type) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{}
}

func (p *Parser) expression() {
	p.parsePrecedence(PrecAssignment)
}

func (p *Parser) parsePrecedence(prec Precedence) {
	p.advance()
	prefix := getRule(p.previous.Type).prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	prefix(p, canAssign)

	for prec <= getRule(p.current.Type).precedence {
		p.advance()
		infix := getRule(p.previous.Type).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(token.Equal) {
		p.error("Invalid assignment target.")
	}
}

func (p *Parser) grouping(_ bool) {
	p.expression()
	p.consume(token.RightParen, "Expect ')' after expression.")
}

func (p *Parser) unary(_ bool) {
	opType := p.previous.Type
	p.parsePrecedence(PrecUnary)
	switch opType {
	case token.Bang:
		p.emitByte(heap.OpNot)
	case token.Minus:
		p.emitByte(heap.OpNegate)
	}
}

func (p *Parser) binary(_ bool) {
	opType := p.previous.Type
	rule := getRule(opType)
	p.parsePrecedence(rule.precedence + 1)

	switch opType {
	case token.BangEqual:
		p.emitBytes(heap.OpEqual, heap.OpNot)
	case token.EqualEqual:
		p.emitByte(heap.OpEqual)
	case token.Greater:
		p.emitByte(heap.OpGreater)
	case token.GreaterEqual:
		p.emitBytes(heap.OpLess, heap.OpNot)
	case token.Less:
		p.emitByte(heap.OpLess)
	case token.LessEqual:
		p.emitBytes(heap.OpGreater, heap.OpNot)
	case token.Plus:
		p.emitByte(heap.OpAdd)
	case token.Minus:
		p.emitByte(heap.OpSubtract)
	case token.Star:
		p.emitByte(heap.OpMultiply)
	case token.Slash:
		p.emitByte(heap.OpDivide)
	}
}

func (p *Parser) call(_ bool) {
	argCount := p.argumentList()
	p.emitBytes(heap.OpCall, argCount)
}

func (p *Parser) dot(canAssign bool) {
	p.consume(token.Ident, "Expect property name after '.'.")
	name := p.identifierConstant(p.previous)

	switch {
	case canAssign && p.match(token.Equal):
		p.expression()
		p.emitBytes(heap.OpSetProperty, name)
	case p.match(token.LeftParen):
		argCount := p.argumentList()
		p.emitBytes(heap.OpInvoke, name)
		p.emitByte(argCount)
	default:
		p.emitBytes(heap.OpGetProperty, name)
	}
}

func (p *Parser) literal(_ bool) {
	switch p.previous.Type {
	case token.False:
		p.emitByte(heap.OpFalse)
	case token.Nil:
		p.emitByte(heap.OpNil)
	case token.True:
		p.emitByte(heap.OpTrue)
	}
}

func (p *Parser) number(_ bool) {
	p.emitConstant(heap.NumberVal(parseNumberLiteral(p.previous.Lexeme)))
}

func (p *Parser) stringLiteral(_ bool) {
	// Lexeme includes the surrounding quotes.
	raw := p.previous.Lexeme
	content := raw[1 : len(raw)-1]
	p.emitConstant(heap.StringVal(p.heap.InternString(content)))
}

func (p *Parser) and_(_ bool) {
	endJump := p.emitJump(heap.OpJumpIfFalse)
	p.emitByte(heap.OpPop)
	p.parsePrecedence(PrecAnd)
	p.patchJump(endJump)
}

func (p *Parser) or_(_ bool) {
	elseJump := p.emitJump(heap.OpJumpIfFalse)
	endJump := p.emitJump(heap.OpJump)
	p.patchJump(elseJump)
	p.emitByte(heap.OpPop)
	p.parsePrecedence(PrecOr)
	p.patchJump(endJump)
}

func (p *Parser) variableExpr(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

// variable compiles a read or write of the identifier in p.previous.
// It is called for the superclass name in a class declaration and for
// the `this` keyword in this_; the `this`/`super` tokens that super_
// synthesizes go to namedVariable directly.
func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

func (p *Parser) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp byte
	arg, ok, err := p.compiler.resolveLocal(name.Lexeme)
	if err != nil {
		p.error(err.Error())
		return
	}
	if ok {
		getOp, setOp = heap.OpGetLocal, heap.OpSetLocal
	} else if up, ok, err := p.compiler.resolveUpvalue(name.Lexeme); err != nil {
		p.error(err.Error())
		return
	} else if ok {
		arg, getOp, setOp = up, heap.OpGetUpvalue, heap.OpSetUpvalue
	} else {
		arg = int(p.identifierConstant(name))
		getOp, setOp = heap.OpGetGlobal, heap.OpSetGlobal
	}

	if canAssign && p.match(token.Equal) {
		p.expression()
		p.emitBytes(setOp, byte(arg))
	} else {
		p.emitBytes(getOp, byte(arg))
	}
}

func (p *Parser) this_(_ bool) {
	if p.classCompiler == nil {
		p.error("Can't use 'this' outside of a class.")
		return
	}
	p.variable(false)
}

func (p *Parser) super_(_ bool) {
	switch {
	case p.classCompiler == nil:
		p.error("Can't use 'super' outside of a class.")
	case !p.classCompiler.hasSuperclass:
		p.error("Can't use 'super' in a class with no superclass.")
	}

	p.consume(token.Dot, "Expect '.' after 'super'.")
	p.consume(token.Ident, "Expect superclass method name.")
	name := p.identifierConstant(p.previous)

	p.namedVariable(token.Token{Type: token.Ident, Lexeme: "this"}, false)
	if p.match(token.LeftParen) {
		argCount := p.argumentList()
		p.namedVariable(token.Token{Type: token.Ident, Lexeme: "super"}, false)
		p.emitBytes(heap.OpSuperInvoke, name)
		p.emitByte(argCount)
	} else {
		p.namedVariable(token.Token{Type: token.Ident, Lexeme: "super"}, false)
		p.emitBytes(heap.OpGetSuper, name)
	}
}
