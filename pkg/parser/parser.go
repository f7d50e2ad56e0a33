// Package parser implements Monkey's Pratt (top-down operator-precedence)
// parser: token stream -> positioned AST.
//
// The parser maintains two tokens of lookahead (curToken, peekToken) and
// climbs expressions via a precedence-ordered table of prefix and infix
// parselets, in the style of Pratt's original algorithm. Every error is
// returned immediately, tagged with the position at which it was
// recognized. There is no error-accumulation or recovery; the first
// failure ends parsing.
package parser

import (
	"strconv"

	"github.com/kristofer/monkey/internal/errs"
	"github.com/kristofer/monkey/pkg/ast"
	"github.com/kristofer/monkey/pkg/lexer"
	"github.com/kristofer/monkey/pkg/token"
)

// Precedence levels, lowest to highest.
const (
	_ int = iota
	LOWEST
	EQUALS      // == !=
	LESSGREATER // > < >= <=
	SUM         // + -
	PRODUCT     // * / %
	EXPONENT    // ^
	PREFIX      // -x !x
	CALL        // fn(x)
	INDEX       // arr[x]
)

var precedences = map[token.Type]int{
	token.EQ:       EQUALS,
	token.NOT_EQ:   EQUALS,
	token.LT:       LESSGREATER,
	token.GT:       LESSGREATER,
	token.LTE:      LESSGREATER,
	token.GTE:      LESSGREATER,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.CARET:    EXPONENT,
	token.LPAREN:   CALL,
	token.LBRACKET: INDEX,
}

type (
	prefixParseFn func() (ast.Expression, error)
	infixParseFn  func(ast.Expression) (ast.Expression, error)
)

// Parser converts a token stream into an AST.
type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a Parser over the given Lexer and primes the two-token
// lookahead window.
func New(l *lexer.Lexer) (*Parser, error) {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.LBRACE, p.parseBlockAsExpression)
	p.registerPrefix(token.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(token.HASH_LBRACE, p.parseHashLiteral)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.IF, p.parseIfExpression)
	p.registerPrefix(token.FUNCTION, p.parseFunctionLiteral)
	p.registerPrefix(token.NIL, p.parseNilLiteral)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	for _, t := range []token.Type{
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT, token.CARET,
		token.EQ, token.NOT_EQ, token.LT, token.GT, token.LTE, token.GTE,
	} {
		p.registerInfix(t, p.parseInfixExpression)
	}
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)

	if err := p.nextToken(); err != nil {
		return nil, err
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) { p.prefixParseFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn infixParseFn)   { p.infixParseFns[t] = fn }

func (p *Parser) nextToken() error {
	p.curToken = p.peekToken
	tok, err := p.l.NextToken()
	if err != nil {
		return err
	}
	p.peekToken = tok
	return nil
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) expectPeek(t token.Type) error {
	if p.peekToken.Type != t {
		return errs.New(errs.Parser, p.peekToken.Position,
			"expected %s token, got %s", t, p.peekToken.Type)
	}
	return p.nextToken()
}

// Parse parses a complete program: one statement at a time until EOF.
func Parse(source string) (*ast.Program, error) {
	p, err := New(lexer.New(source))
	if err != nil {
		return nil, err
	}
	return p.ParseProgram()
}

// ParseProgram is the top-level entry point.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	program := &ast.Program{Statements: []ast.Statement{}}

	for p.curToken.Type != token.EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		program.Statements = append(program.Statements, stmt)
		if err := p.nextToken(); err != nil {
			return nil, err
		}
	}

	return program, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.curToken.Type {
	case token.LET:
		return p.parseLetStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	default:
		return p.parseExpressionStatement()
	}
}

// parseLetStatement: "let" Identifier "=" Expression [";"]
func (p *Parser) parseLetStatement() (ast.Statement, error) {
	stmt := &ast.LetStatement{Token: p.curToken}

	if err := p.expectPeek(token.IDENT); err != nil {
		return nil, err
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if err := p.expectPeek(token.ASSIGN); err != nil {
		return nil, err
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	value, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	stmt.Value = value
	if fl, ok := value.(*ast.FunctionLiteral); ok {
		fl.Name = stmt.Name.Value
	}

	if err := p.optionalSemicolon(); err != nil {
		return nil, err
	}

	return stmt, nil
}

// parseReturnStatement: "return" [Expression] [";"]
func (p *Parser) parseReturnStatement() (ast.Statement, error) {
	stmt := &ast.ReturnStatement{Token: p.curToken}

	if p.peekToken.Type == token.SEMICOLON {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return stmt, nil
	}

	if err := p.nextToken(); err != nil {
		return nil, err
	}
	value, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	stmt.ReturnValue = value

	if err := p.optionalSemicolon(); err != nil {
		return nil, err
	}

	return stmt, nil
}

// optionalSemicolon consumes a trailing ";" if present. Unlike
// consumeStatementTerminator, a missing ";" is never an error here: "let"
// and "return" statements make it optional unconditionally.
func (p *Parser) optionalSemicolon() error {
	if p.peekToken.Type == token.SEMICOLON {
		return p.nextToken()
	}
	return nil
}

func (p *Parser) parseExpressionStatement() (ast.Statement, error) {
	stmt := &ast.ExpressionStatement{Token: p.curToken}

	expr, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	stmt.Expression = expr

	if err := p.consumeStatementTerminator(expr); err != nil {
		return nil, err
	}

	return stmt, nil
}

// consumeStatementTerminator enforces the trailing-";" rule: required
// unless expr is an if/function-literal/block expression, or unless peek
// is "}" or EOF (end of block/program).
func (p *Parser) consumeStatementTerminator(expr ast.Expression) error {
	if p.peekToken.Type == token.SEMICOLON {
		return p.nextToken()
	}

	switch expr.(type) {
	case *ast.IfExpression, *ast.FunctionLiteral, *ast.Block:
		return nil
	}
	if p.peekToken.Type == token.RBRACE || p.peekToken.Type == token.EOF {
		return nil
	}

	return errs.New(errs.Parser, p.peekToken.Position,
		"expected ; token, got %s", p.peekToken.Type)
}

// parseExpression is the Pratt climb: run the prefix parselet for the
// current token, then repeatedly fold in infix operators while the peeked
// operator binds tighter than minPrecedence.
func (p *Parser) parseExpression(minPrecedence int) (ast.Expression, error) {
	prefix, ok := p.prefixParseFns[p.curToken.Type]
	if !ok {
		return nil, errs.New(errs.Parser, p.curToken.Position,
			"no prefix parse function found for token: %s", p.curToken.Type)
	}

	left, err := prefix()
	if err != nil {
		return nil, err
	}

	for p.peekToken.Type != token.SEMICOLON && minPrecedence < p.peekPrecedence() {
		infix, ok := p.infixParseFns[p.peekToken.Type]
		if !ok {
			return left, nil
		}

		if err := p.nextToken(); err != nil {
			return nil, err
		}

		left, err = infix(left)
		if err != nil {
			return nil, err
		}
	}

	return left, nil
}

func (p *Parser) parseIdentifier() (ast.Expression, error) {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}, nil
}

func (p *Parser) parseIntegerLiteral() (ast.Expression, error) {
	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		return nil, errs.New(errs.Parser, p.curToken.Position,
			"could not parse %q as integer", p.curToken.Literal)
	}
	return &ast.IntegerLiteral{Token: p.curToken, Value: value}, nil
}

func (p *Parser) parseStringLiteral() (ast.Expression, error) {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}, nil
}

func (p *Parser) parseBoolean() (ast.Expression, error) {
	return &ast.Boolean{Token: p.curToken, Value: p.curToken.Type == token.TRUE}, nil
}

func (p *Parser) parseNilLiteral() (ast.Expression, error) {
	return &ast.NilLiteral{Token: p.curToken}, nil
}

func (p *Parser) parsePrefixExpression() (ast.Expression, error) {
	expr := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	right, err := p.parseExpression(PREFIX)
	if err != nil {
		return nil, err
	}
	expr.Right = right
	return expr, nil
}

func (p *Parser) parseInfixExpression(left ast.Expression) (ast.Expression, error) {
	expr := &ast.InfixExpression{Token: p.curToken, Operator: p.curToken.Literal, Left: left}
	precedence := p.peekPrecedence()
	if pr, ok := precedences[p.curToken.Type]; ok {
		precedence = pr
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	right, err := p.parseExpression(precedence)
	if err != nil {
		return nil, err
	}
	expr.Right = right
	return expr, nil
}

func (p *Parser) parseGroupedExpression() (ast.Expression, error) {
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if err := p.expectPeek(token.RPAREN); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseBlockAsExpression parses a "{ ... }" block; blocks are expressions
// (their value is their last statement's value), so the block prefix
// parselet doubles as the consequence/alternative/body parser.
func (p *Parser) parseBlockAsExpression() (ast.Expression, error) {
	return p.parseBlock()
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	block := &ast.Block{Token: p.curToken, Statements: []ast.Statement{}}

	if err := p.nextToken(); err != nil {
		return nil, err
	}

	for p.curToken.Type != token.RBRACE && p.curToken.Type != token.EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
		if err := p.nextToken(); err != nil {
			return nil, err
		}
	}

	if p.curToken.Type != token.RBRACE {
		return nil, errs.New(errs.Parser, p.curToken.Position,
			"expected } token, got %s", p.curToken.Type)
	}

	return block, nil
}

func (p *Parser) parseIfExpression() (ast.Expression, error) {
	expr := &ast.IfExpression{Token: p.curToken}

	if err := p.nextToken(); err != nil {
		return nil, err
	}
	condition, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	expr.Condition = condition

	if err := p.expectPeek(token.LBRACE); err != nil {
		return nil, err
	}
	consequence, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	expr.Consequence = consequence

	if p.peekToken.Type == token.ELSE {
		if err := p.nextToken(); err != nil {
			return nil, err
		}

		switch p.peekToken.Type {
		case token.LBRACE:
			if err := p.nextToken(); err != nil {
				return nil, err
			}
			alt, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			expr.Alternative = alt
		case token.IF:
			if err := p.nextToken(); err != nil {
				return nil, err
			}
			alt, err := p.parseIfExpression()
			if err != nil {
				return nil, err
			}
			expr.Alternative = alt
		default:
			return nil, errs.New(errs.Parser, p.peekToken.Position,
				"expected { or if token, got %s", p.peekToken.Type)
		}
	}

	return expr, nil
}

func (p *Parser) parseFunctionLiteral() (ast.Expression, error) {
	fl := &ast.FunctionLiteral{Token: p.curToken}

	if err := p.expectPeek(token.LPAREN); err != nil {
		return nil, err
	}

	params, err := p.parseFunctionParameters()
	if err != nil {
		return nil, err
	}
	fl.Parameters = params

	if err := p.expectPeek(token.LBRACE); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fl.Body = body

	return fl, nil
}

func (p *Parser) parseFunctionParameters() ([]*ast.Identifier, error) {
	identifiers := []*ast.Identifier{}

	if p.peekToken.Type == token.RPAREN {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return identifiers, nil
	}

	if err := p.nextToken(); err != nil {
		return nil, err
	}
	if p.curToken.Type != token.IDENT {
		return nil, errs.New(errs.Parser, p.curToken.Position,
			"expected parameter name, got %s", p.curToken.Type)
	}
	identifiers = append(identifiers, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})

	for p.peekToken.Type == token.COMMA {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		if p.curToken.Type != token.IDENT {
			return nil, errs.New(errs.Parser, p.curToken.Position,
				"expected parameter name, got %s", p.curToken.Type)
		}
		identifiers = append(identifiers, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
	}

	if err := p.expectPeek(token.RPAREN); err != nil {
		return nil, err
	}

	return identifiers, nil
}

func (p *Parser) parseCallExpression(fn ast.Expression) (ast.Expression, error) {
	expr := &ast.CallExpression{Token: p.curToken, Function: fn}
	args, err := p.parseExpressionList(token.RPAREN)
	if err != nil {
		return nil, err
	}
	expr.Arguments = args
	return expr, nil
}

func (p *Parser) parseArrayLiteral() (ast.Expression, error) {
	arr := &ast.ArrayLiteral{Token: p.curToken}
	elems, err := p.parseExpressionList(token.RBRACKET)
	if err != nil {
		return nil, err
	}
	arr.Elements = elems
	return arr, nil
}

// parseExpressionList is the shared comma-separated-list helper,
// parameterized by the closing token, used for both call arguments and
// array elements.
func (p *Parser) parseExpressionList(end token.Type) ([]ast.Expression, error) {
	list := []ast.Expression{}

	if p.peekToken.Type == end {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return list, nil
	}

	if err := p.nextToken(); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	list = append(list, expr)

	for p.peekToken.Type == token.COMMA {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		list = append(list, expr)
	}

	if err := p.expectPeek(end); err != nil {
		return nil, err
	}

	return list, nil
}

func (p *Parser) parseIndexExpression(left ast.Expression) (ast.Expression, error) {
	expr := &ast.IndexExpression{Token: p.curToken, Left: left}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	index, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	expr.Index = index
	if err := p.expectPeek(token.RBRACKET); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseHashLiteral: "#{" [key ":" value ("," key ":" value)*] "}" with no
// trailing comma allowed.
func (p *Parser) parseHashLiteral() (ast.Expression, error) {
	hash := &ast.HashLiteral{Token: p.curToken}

	for p.peekToken.Type != token.RBRACE {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		key, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}

		if err := p.expectPeek(token.COLON); err != nil {
			return nil, err
		}

		if err := p.nextToken(); err != nil {
			return nil, err
		}
		value, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}

		hash.Pairs = append(hash.Pairs, ast.HashPair{Key: key, Value: value})

		if p.peekToken.Type != token.RBRACE {
			if err := p.expectPeek(token.COMMA); err != nil {
				return nil, err
			}
			if p.peekToken.Type == token.RBRACE {
				return nil, errs.New(errs.Parser, p.peekToken.Position,
					"trailing comma not allowed in hash literal")
			}
		}
	}

	if err := p.expectPeek(token.RBRACE); err != nil {
		return nil, err
	}

	return hash, nil
}
