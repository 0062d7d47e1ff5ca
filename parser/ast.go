// Package parser turns MAL source text into the parse tree the translator
// walks: a flat, source-ordered list of Instruction nodes, each an
// optional Label plus a Statement. It is a hand-rolled recursive-descent
// parser over the lexer package's token stream.
package parser

// Label is a (possibly pinned) instruction label: `name:` or
// `name = 0xADDR:`.
type Label struct {
	Name    string
	Pinned  bool
	Address int
}

// OperationKind names one row of the ALU/operand-source encoding table of
// spec.md §4.1.
type OperationKind int

const (
	OpNone OperationKind = iota
	OpAAndB
	OpAOrB
	OpNotA
	OpNotB
	OpAPlusB
	OpAPlus1
	OpBPlus1
	OpBMinusA
	OpNegA
	OpBMinus1
	OpAPlusBPlus1
	OpA
	OpB
	OpNegOne
	OpZero
	OpOne
)

// Operation is one ALU/operand-source expression, optionally wrapped in a
// shift, and carrying the concrete B-bus register name used by the A/B
// operand slots that reference it (the aRegister nonterminal is always H;
// the bRegister nonterminal names the concrete source register).
type Operation struct {
	Kind    OperationKind
	BSource string // Concrete bRegister name, when Kind references B.
	Shl8    bool
	Shr1    bool
}

// Expression is either a chained assignment (`dest = dest2 = ...`) or a
// leaf Operation.
type Expression struct {
	Assignment *Assignment
	Operation  *Operation
}

// Assignment is `destination = expression`, where destination is a
// cRegister name or the condition pseudo-registers N/Z.
type Assignment struct {
	Dest string
	Expr *Expression
}

// Memory is the optional word/byte memory access clause of a statement.
type Memory struct {
	Read  bool
	Write bool
	Fetch bool
}

// ControlKind distinguishes the three control-transfer statement shapes of
// spec.md §6.1; ControlNone marks the absence of a control clause.
type ControlKind int

const (
	ControlNone ControlKind = iota
	ControlGoto
	ControlGotoMBR
	ControlIfElse
)

// Control is the optional control-transfer clause of a statement.
type Control struct {
	Kind ControlKind

	GotoLabel string // ControlGoto

	MBRAddress    int  // ControlGotoMBR: the OR'd address, 0 if absent.
	MBRHasAddress bool

	Condition string // ControlIfElse: "N" or "Z"
	IfLabel   string
	ElseLabel string
}

// Statement is the body of one instruction: either `empty`, `halt`, or an
// assignment/memory/control combination per spec.md §6.1's `statement`
// production.
type Statement struct {
	Empty bool
	Halt  bool

	Assignment *Assignment
	Memory     *Memory
	Control    *Control
}

// Instruction is one source-level node: an optional label and its
// statement.
type Instruction struct {
	Label *Label
	Stmt  Statement
	Line  int
}

// Program is the parsed source in order.
type Program struct {
	Instructions []Instruction
}
