package parser

import (
	"fmt"
	"strconv"

	"github.com/albmoriconi/mal/lexer"
)

// ParseError reports a syntactic error at a specific source position. It is
// the concrete realization of spec.md §7's ParseError kind.
type ParseError struct {
	Name string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Name, e.Line, e.Col, e.Msg)
}

// Parser is a recursive-descent parser over a lexer.Lexer token stream,
// with unbounded lookahead via a small pending-token buffer: peekAt fills
// it without disturbing currToken/peekToken, and nextToken drains it
// before pulling fresh tokens from the lexer.
type Parser struct {
	name string
	lex  *lexer.Lexer

	currToken lexer.Item
	peekToken lexer.Item
	pending   []lexer.Item
}

// New creates a parser for input, identified by name in error messages.
func New(name, input string) *Parser {
	p := &Parser{name: name, lex: lexer.New(name, input)}
	p.peekToken = p.lex.NextItem()
	return p
}

// Parse parses the whole program.
func Parse(name, input string) (*Program, error) {
	p := New(name, input)
	return p.Parse()
}

func (p *Parser) nextToken() {
	p.currToken = p.peekToken
	if len(p.pending) > 0 {
		p.peekToken = p.pending[0]
		p.pending = p.pending[1:]
	} else {
		p.peekToken = p.lex.NextItem()
	}
}

// peekAt returns the token n positions beyond peekToken (n=1 is the token
// immediately after peekToken), buffering every token it reads past
// peekToken in pending so a later nextToken() still sees it.
func (p *Parser) peekAt(n int) lexer.Item {
	for len(p.pending) < n {
		p.pending = append(p.pending, p.lex.NextItem())
	}
	return p.pending[n-1]
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Name: p.name, Line: p.currToken.Line, Col: p.currToken.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) skipBlankLines() {
	for p.peekToken.Typ == lexer.ItemNewline || p.peekToken.Typ == lexer.ItemComment {
		p.nextToken()
	}
}

// Parse consumes the whole token stream, returning the parsed Program or
// the first syntax error encountered.
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{}

	p.skipBlankLines()
	for p.peekToken.Typ != lexer.ItemEOF {
		p.nextToken()
		if p.currToken.Typ == lexer.ItemNewline || p.currToken.Typ == lexer.ItemComment {
			continue
		}
		if p.currToken.Typ == lexer.ItemError {
			return nil, &ParseError{Name: p.name, Line: p.currToken.Line, Col: p.currToken.Col, Msg: p.currToken.Val}
		}

		ins, err := p.parseInstruction()
		if err != nil {
			return nil, err
		}
		prog.Instructions = append(prog.Instructions, ins)

		if p.peekToken.Typ != lexer.ItemEOF && p.peekToken.Typ != lexer.ItemNewline && p.peekToken.Typ != lexer.ItemComment {
			p.nextToken()
			return nil, p.errorf("unexpected token %s after instruction", p.currToken)
		}
		p.skipBlankLines()
	}

	return prog, nil
}

// parseInstruction parses an optional label followed by a statement.
// p.currToken is the first token of the instruction on entry.
func (p *Parser) parseInstruction() (Instruction, error) {
	line := p.currToken.Line
	var label *Label

	if p.startsLabel() {
		l, err := p.parseLabel()
		if err != nil {
			return Instruction{}, err
		}
		label = &l
		p.nextToken()
	}

	stmt, err := p.parseStatement()
	if err != nil {
		return Instruction{}, err
	}

	return Instruction{Label: label, Stmt: stmt, Line: line}, nil
}

// startsLabel reports whether the current position begins a label: either
// `NAME :` or `NAME = ADDRESS :`. A bare `NAME = <non-address>` is an
// ordinary assignment statement, not a label, even though its first two
// tokens look the same.
func (p *Parser) startsLabel() bool {
	if p.currToken.Typ != lexer.ItemName {
		return false
	}
	switch p.peekToken.Typ {
	case lexer.ItemColon:
		return true
	case lexer.ItemAssign:
		return p.peekAt(1).Typ == lexer.ItemAddress && p.peekAt(2).Typ == lexer.ItemColon
	default:
		return false
	}
}

// parseLabel parses `NAME (= ADDRESS)? :`. p.currToken is the NAME on
// entry; on return p.currToken is the closing ':'.
func (p *Parser) parseLabel() (Label, error) {
	name := p.currToken.Val
	label := Label{Name: name, Address: -1}

	if p.peekToken.Typ == lexer.ItemAssign {
		p.nextToken() // consume '='
		p.nextToken() // consume ADDRESS
		if p.currToken.Typ != lexer.ItemAddress {
			return Label{}, p.errorf("expected address after '=' in label %q, got %s", name, p.currToken)
		}
		addr, err := strconv.ParseInt(p.currToken.Val[2:], 16, 64)
		if err != nil {
			return Label{}, p.errorf("invalid address %q: %s", p.currToken.Val, err)
		}
		label.Pinned = true
		label.Address = int(addr)
	}

	p.nextToken() // consume ':'
	if p.currToken.Typ != lexer.ItemColon {
		return Label{}, p.errorf("expected ':' after label %q, got %s", name, p.currToken)
	}

	return label, nil
}

// parseStatement parses a statement. p.currToken is the first token of the
// statement on entry (which, for a labelled instruction, is the token
// after the label's ':').
func (p *Parser) parseStatement() (Statement, error) {
	if p.currToken.Typ == lexer.ItemName {
		switch p.currToken.Val {
		case "empty":
			return Statement{Empty: true}, nil
		case "halt":
			return Statement{Halt: true}, nil
		}
	}

	var stmt Statement

	if isControlStart(p.currToken) {
		ctrl, err := p.parseControl()
		if err != nil {
			return Statement{}, err
		}
		stmt.Control = ctrl
		return stmt, nil
	}

	if isMemoryKeyword(p.currToken) {
		mem, err := p.parseMemory()
		if err != nil {
			return Statement{}, err
		}
		stmt.Memory = mem
		if err := p.parseOptionalControlTail(&stmt); err != nil {
			return Statement{}, err
		}
		return stmt, nil
	}

	asg, err := p.parseAssignment()
	if err != nil {
		return Statement{}, err
	}
	stmt.Assignment = asg

	if p.peekToken.Typ == lexer.ItemSemi {
		p.nextToken() // consume ';'
		p.nextToken() // first token of memory or control
		if isControlStart(p.currToken) {
			ctrl, err := p.parseControl()
			if err != nil {
				return Statement{}, err
			}
			stmt.Control = ctrl
			return stmt, nil
		}
		mem, err := p.parseMemory()
		if err != nil {
			return Statement{}, err
		}
		stmt.Memory = mem
		if err := p.parseOptionalControlTail(&stmt); err != nil {
			return Statement{}, err
		}
	}

	return stmt, nil
}

// parseOptionalControlTail consumes a trailing `; control` clause, if any,
// continuing from whatever token parseMemory left current.
func (p *Parser) parseOptionalControlTail(stmt *Statement) error {
	if p.peekToken.Typ != lexer.ItemSemi {
		return nil
	}
	p.nextToken() // consume ';'
	p.nextToken() // first token of control
	ctrl, err := p.parseControl()
	if err != nil {
		return err
	}
	stmt.Control = ctrl
	return nil
}

func isControlStart(tok lexer.Item) bool {
	return tok.Typ == lexer.ItemName && (tok.Val == "goto" || tok.Val == "if")
}

func isMemoryKeyword(tok lexer.Item) bool {
	return tok.Typ == lexer.ItemName && (tok.Val == "rd" || tok.Val == "wr" || tok.Val == "fetch")
}

// parseMemory parses a run of memory keywords, separated by ';', as long as
// each one is itself a memory keyword (so that "rd;fetch" is a single
// memory clause, while "rd;goto foo" stops before the control clause).
// p.currToken is the first memory keyword on entry.
func (p *Parser) parseMemory() (*Memory, error) {
	mem := &Memory{}
	for {
		switch p.currToken.Val {
		case "rd":
			mem.Read = true
		case "wr":
			mem.Write = true
		case "fetch":
			mem.Fetch = true
		default:
			return nil, p.errorf("expected memory keyword, got %s", p.currToken)
		}

		if p.peekToken.Typ != lexer.ItemSemi {
			return mem, nil
		}
		// Only consume the ';' if what follows is another memory keyword;
		// otherwise leave it for the caller's control-tail handling.
		if !isMemoryKeyword(p.peekAt(1)) {
			return mem, nil
		}
		p.nextToken() // consume ';'
		p.nextToken() // move to the next memory keyword
	}
}

// parseControl parses a goto/goto-mbr/if-else control statement.
// p.currToken is "goto" or "if" on entry.
func (p *Parser) parseControl() (*Control, error) {
	switch p.currToken.Val {
	case "goto":
		return p.parseGoto()
	case "if":
		return p.parseIfElse()
	default:
		return nil, p.errorf("expected control statement, got %s", p.currToken)
	}
}

func (p *Parser) parseGoto() (*Control, error) {
	p.nextToken()
	if p.currToken.Typ == lexer.ItemLParen {
		p.nextToken()
		if p.currToken.Typ != lexer.ItemName || p.currToken.Val != "MBR" {
			return nil, p.errorf("expected MBR in goto(...), got %s", p.currToken)
		}
		ctrl := &Control{Kind: ControlGotoMBR}
		if p.peekToken.Typ == lexer.ItemName && p.peekToken.Val == "OR" {
			p.nextToken() // OR
			p.nextToken() // ADDRESS
			if p.currToken.Typ != lexer.ItemAddress {
				return nil, p.errorf("expected address after OR, got %s", p.currToken)
			}
			addr, err := strconv.ParseInt(p.currToken.Val[2:], 16, 64)
			if err != nil {
				return nil, p.errorf("invalid address %q: %s", p.currToken.Val, err)
			}
			ctrl.MBRAddress = int(addr)
			ctrl.MBRHasAddress = true
		}
		p.nextToken()
		if p.currToken.Typ != lexer.ItemRParen {
			return nil, p.errorf("expected ')' to close goto(MBR...), got %s", p.currToken)
		}
		return ctrl, nil
	}

	if p.currToken.Typ != lexer.ItemName {
		return nil, p.errorf("expected label name after goto, got %s", p.currToken)
	}
	return &Control{Kind: ControlGoto, GotoLabel: p.currToken.Val}, nil
}

func (p *Parser) parseIfElse() (*Control, error) {
	p.nextToken()
	if p.currToken.Typ != lexer.ItemLParen {
		return nil, p.errorf("expected '(' after if, got %s", p.currToken)
	}
	p.nextToken()
	if p.currToken.Typ != lexer.ItemName || (p.currToken.Val != "N" && p.currToken.Val != "Z") {
		return nil, p.errorf("expected condition N or Z, got %s", p.currToken)
	}
	cond := p.currToken.Val

	p.nextToken()
	if p.currToken.Typ != lexer.ItemRParen {
		return nil, p.errorf("expected ')' after condition, got %s", p.currToken)
	}

	p.nextToken()
	if p.currToken.Typ != lexer.ItemName || p.currToken.Val != "goto" {
		return nil, p.errorf("expected 'goto' after if condition, got %s", p.currToken)
	}
	p.nextToken()
	if p.currToken.Typ != lexer.ItemName {
		return nil, p.errorf("expected if-target label, got %s", p.currToken)
	}
	ifLabel := p.currToken.Val

	p.nextToken()
	if p.currToken.Typ != lexer.ItemSemi {
		return nil, p.errorf("expected ';' after if target, got %s", p.currToken)
	}
	p.nextToken()
	if p.currToken.Typ != lexer.ItemName || p.currToken.Val != "else" {
		return nil, p.errorf("expected 'else', got %s", p.currToken)
	}
	p.nextToken()
	if p.currToken.Typ != lexer.ItemName || p.currToken.Val != "goto" {
		return nil, p.errorf("expected 'goto' after else, got %s", p.currToken)
	}
	p.nextToken()
	if p.currToken.Typ != lexer.ItemName {
		return nil, p.errorf("expected else-target label, got %s", p.currToken)
	}
	elseLabel := p.currToken.Val

	return &Control{Kind: ControlIfElse, Condition: cond, IfLabel: ifLabel, ElseLabel: elseLabel}, nil
}

var cRegisters = map[string]bool{
	"MAR": true, "MDR": true, "PC": true, "SP": true, "LV": true,
	"CPP": true, "TOS": true, "OPC": true, "H": true,
}

func isDestinationStart(tok lexer.Item) bool {
	if tok.Typ != lexer.ItemName {
		return false
	}
	return cRegisters[tok.Val] || tok.Val == "N" || tok.Val == "Z"
}

// parseAssignment parses `destination = expression`. p.currToken is the
// destination name on entry.
func (p *Parser) parseAssignment() (*Assignment, error) {
	if !isDestinationStart(p.currToken) {
		return nil, p.errorf("expected destination register, N, or Z, got %s", p.currToken)
	}
	dest := p.currToken.Val

	p.nextToken()
	if p.currToken.Typ != lexer.ItemAssign {
		return nil, p.errorf("expected '=' after destination %q, got %s", dest, p.currToken)
	}
	p.nextToken()

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Assignment{Dest: dest, Expr: expr}, nil
}

// parseExpression parses either a chained assignment or a leaf operation,
// optionally wrapped in <<8/>>1. p.currToken is the first token of the
// expression on entry.
func (p *Parser) parseExpression() (*Expression, error) {
	if isDestinationStart(p.currToken) && p.peekToken.Typ == lexer.ItemAssign {
		asg, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &Expression{Assignment: asg}, nil
	}

	op, err := p.parseOperation()
	if err != nil {
		return nil, err
	}

	if p.peekToken.Typ == lexer.ItemShl {
		p.nextToken() // consume '<<'
		p.nextToken() // consume '8'
		if p.currToken.Typ != lexer.ItemNumber || p.currToken.Val != "8" {
			return nil, p.errorf("expected '8' after '<<', got %s", p.currToken)
		}
		op.Shl8 = true
	} else if p.peekToken.Typ == lexer.ItemShr {
		p.nextToken() // consume '>>'
		p.nextToken() // consume '1'
		if p.currToken.Typ != lexer.ItemNumber || p.currToken.Val != "1" {
			return nil, p.errorf("expected '1' after '>>', got %s", p.currToken)
		}
		op.Shr1 = true
	}

	return &Expression{Operation: op}, nil
}

var bRegisters = map[string]bool{
	"MAR": true, "PC": true, "MBRU": true, "MBR": true, "SP": true,
	"LV": true, "CPP": true, "TOS": true, "OPC": true,
}

// parseOperation parses one row of the §4.1 operand-source table.
// p.currToken is the first token of the operation on entry.
func (p *Parser) parseOperation() (*Operation, error) {
	tok := p.currToken

	switch {
	case tok.Typ == lexer.ItemMinus:
		p.nextToken()
		if p.currToken.Typ == lexer.ItemNumber && p.currToken.Val == "1" {
			return &Operation{Kind: OpNegOne}, nil
		}
		if p.currToken.Typ == lexer.ItemName && p.currToken.Val == "H" {
			return &Operation{Kind: OpNegA}, nil
		}
		return nil, p.errorf("expected 'H' or '1' after unary '-', got %s", p.currToken)

	case tok.Typ == lexer.ItemNumber:
		switch tok.Val {
		case "0":
			return &Operation{Kind: OpZero}, nil
		case "1":
			return &Operation{Kind: OpOne}, nil
		default:
			return nil, p.errorf("unexpected numeric literal %q in operation", tok.Val)
		}

	case tok.Typ == lexer.ItemName && tok.Val == "NOT":
		p.nextToken()
		switch {
		case p.currToken.Typ == lexer.ItemName && p.currToken.Val == "H":
			return &Operation{Kind: OpNotA}, nil
		case p.currToken.Typ == lexer.ItemName && bRegisters[p.currToken.Val]:
			return &Operation{Kind: OpNotB, BSource: p.currToken.Val}, nil
		default:
			return nil, p.errorf("expected 'H' or a B-bus register after NOT, got %s", p.currToken)
		}

	case tok.Typ == lexer.ItemName && tok.Val == "H":
		return p.parseOperationFromA()

	case tok.Typ == lexer.ItemName && bRegisters[tok.Val]:
		return p.parseOperationFromB(tok.Val)

	default:
		return nil, p.errorf("unexpected token %s in operation", tok)
	}
}

// parseOperationFromA parses an operation that starts with the A operand
// (the H register). p.currToken is "H" on entry.
func (p *Parser) parseOperationFromA() (*Operation, error) {
	if p.peekToken.Typ == lexer.ItemName && p.peekToken.Val == "AND" {
		p.nextToken() // 'AND'
		p.nextToken() // RHS
		if p.currToken.Typ == lexer.ItemName && bRegisters[p.currToken.Val] {
			return &Operation{Kind: OpAAndB, BSource: p.currToken.Val}, nil
		}
		return nil, p.errorf("expected a B-bus register after 'H AND', got %s", p.currToken)
	}
	if p.peekToken.Typ == lexer.ItemName && p.peekToken.Val == "OR" {
		p.nextToken() // 'OR'
		p.nextToken() // RHS
		if p.currToken.Typ == lexer.ItemName && bRegisters[p.currToken.Val] {
			return &Operation{Kind: OpAOrB, BSource: p.currToken.Val}, nil
		}
		return nil, p.errorf("expected a B-bus register after 'H OR', got %s", p.currToken)
	}
	if p.peekToken.Typ != lexer.ItemPlus {
		return &Operation{Kind: OpA}, nil
	}
	p.nextToken() // consume '+'
	p.nextToken() // consume RHS
	switch {
	case p.currToken.Typ == lexer.ItemNumber && p.currToken.Val == "1":
		if p.peekToken.Typ == lexer.ItemPlus {
			p.nextToken()
			p.nextToken()
		}
		return &Operation{Kind: OpAPlus1}, nil
	case p.currToken.Typ == lexer.ItemName && bRegisters[p.currToken.Val]:
		bsrc := p.currToken.Val
		if p.peekToken.Typ == lexer.ItemPlus {
			p.nextToken() // '+'
			p.nextToken() // '1'
			if p.currToken.Typ != lexer.ItemNumber || p.currToken.Val != "1" {
				return nil, p.errorf("expected '1' after 'H + %s +', got %s", bsrc, p.currToken)
			}
			return &Operation{Kind: OpAPlusBPlus1, BSource: bsrc}, nil
		}
		return &Operation{Kind: OpAPlusB, BSource: bsrc}, nil
	default:
		return nil, p.errorf("unexpected token %s after 'H +'", p.currToken)
	}
}

// parseOperationFromB parses an operation that starts with a bRegister.
// p.currToken is that register name on entry.
func (p *Parser) parseOperationFromB(bsrc string) (*Operation, error) {
	switch p.peekToken.Typ {
	case lexer.ItemPlus:
		p.nextToken() // '+'
		p.nextToken() // RHS
		switch {
		case p.currToken.Typ == lexer.ItemNumber && p.currToken.Val == "1":
			return &Operation{Kind: OpBPlus1, BSource: bsrc}, nil
		case p.currToken.Typ == lexer.ItemName && p.currToken.Val == "H":
			return &Operation{Kind: OpAPlusB, BSource: bsrc}, nil
		default:
			return nil, p.errorf("unexpected token %s after '%s +'", p.currToken, bsrc)
		}
	case lexer.ItemMinus:
		p.nextToken() // '-'
		p.nextToken() // RHS
		switch {
		case p.currToken.Typ == lexer.ItemNumber && p.currToken.Val == "1":
			return &Operation{Kind: OpBMinus1, BSource: bsrc}, nil
		case p.currToken.Typ == lexer.ItemName && p.currToken.Val == "H":
			return &Operation{Kind: OpBMinusA, BSource: bsrc}, nil
		default:
			return nil, p.errorf("unexpected token %s after '%s -'", p.currToken, bsrc)
		}
	case lexer.ItemName:
		if p.peekToken.Val == "AND" {
			p.nextToken() // 'AND'
			p.nextToken() // RHS
			if p.currToken.Typ == lexer.ItemName && p.currToken.Val == "H" {
				return &Operation{Kind: OpAAndB, BSource: bsrc}, nil
			}
			return nil, p.errorf("expected 'H' after '%s AND', got %s", bsrc, p.currToken)
		}
		if p.peekToken.Val == "OR" {
			p.nextToken() // 'OR'
			p.nextToken() // RHS
			if p.currToken.Typ == lexer.ItemName && p.currToken.Val == "H" {
				return &Operation{Kind: OpAOrB, BSource: bsrc}, nil
			}
			return nil, p.errorf("expected 'H' after '%s OR', got %s", bsrc, p.currToken)
		}
		return &Operation{Kind: OpB, BSource: bsrc}, nil
	default:
		return &Operation{Kind: OpB, BSource: bsrc}, nil
	}
}
