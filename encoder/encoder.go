// Package encoder maps a single parsed MAL instruction to its 27-bit
// control field and the metadata (label, target label, halt flag, pinned
// address) the translator needs to place it. Encoding is a pure function
// of the parse subtree: deterministic and idempotent, per spec.md §8
// property 6.
package encoder

import (
	"fmt"

	"github.com/albmoriconi/mal/parser"
	"github.com/albmoriconi/mal/program"
)

// IfElsePair is returned when the encoded statement is an if/else control
// statement, so the caller (the translator) can register the pairing with
// the Program.
type IfElsePair struct {
	If   string
	Else string
}

// Encode maps one parsed instruction to its control-store representation.
// The returned Instruction's Address is set if, and only if, ins.Label is
// pinned; NextAddress is set if, and only if, the statement directly
// encodes it (goto(MBR...)); both are program.Undetermined otherwise.
func Encode(ins parser.Instruction) (program.Instruction, *IfElsePair, error) {
	out := program.NewInstruction()

	if ins.Label != nil {
		out.Label = ins.Label.Name
		if ins.Label.Pinned {
			out.Address = ins.Label.Address
		}
	}

	stmt := ins.Stmt
	switch {
	case stmt.Empty:
		return out, nil, nil
	case stmt.Halt:
		out.IsHalt = true
		return out, nil, nil
	}

	var pair *IfElsePair

	if stmt.Assignment != nil {
		if err := encodeAssignment(&out, stmt.Assignment); err != nil {
			return program.Instruction{}, nil, err
		}
	}

	if stmt.Memory != nil {
		encodeMemory(&out, stmt.Memory)
	}

	if stmt.Control != nil {
		p, err := encodeControl(&out, stmt.Control)
		if err != nil {
			return program.Instruction{}, nil, err
		}
		pair = p
	}

	return out, pair, nil
}

func encodeMemory(out *program.Instruction, mem *parser.Memory) {
	if mem.Read {
		out.Control.Set(program.READ)
	}
	if mem.Write {
		out.Control.Set(program.WRITE)
	}
	if mem.Fetch {
		out.Control.Set(program.FETCH)
	}
}

func encodeControl(out *program.Instruction, ctrl *parser.Control) (*IfElsePair, error) {
	switch ctrl.Kind {
	case parser.ControlGoto:
		out.TargetLabel = ctrl.GotoLabel
		return nil, nil
	case parser.ControlGotoMBR:
		out.Control.Set(program.JMPC)
		addr := 0
		if ctrl.MBRHasAddress {
			addr = ctrl.MBRAddress
		}
		out.NextAddress = addr
		return nil, nil
	case parser.ControlIfElse:
		if err := setCondition(out, ctrl.Condition); err != nil {
			return nil, err
		}
		out.TargetLabel = ctrl.ElseLabel
		return &IfElsePair{If: ctrl.IfLabel, Else: ctrl.ElseLabel}, nil
	default:
		return nil, fmt.Errorf("unknown control statement kind %d", ctrl.Kind)
	}
}

func setCondition(out *program.Instruction, cond string) error {
	switch cond {
	case "N":
		out.Control.Set(program.JAMN)
	case "Z":
		out.Control.Set(program.JAMZ)
	default:
		return fmt.Errorf("unknown condition %q", cond)
	}
	return nil
}

// encodeAssignment walks a (possibly chained) assignment, setting a
// C-bus write-enable bit (or a JAM*/condition bit for the N/Z
// pseudo-destinations) for every destination in the chain, and the
// ALU/operand-source bits for the innermost operation exactly once.
func encodeAssignment(out *program.Instruction, asg *parser.Assignment) error {
	if err := encodeDestination(out, asg.Dest); err != nil {
		return err
	}

	if asg.Expr.Assignment != nil {
		return encodeAssignment(out, asg.Expr.Assignment)
	}
	return encodeOperation(out, asg.Expr.Operation)
}

func encodeDestination(out *program.Instruction, dest string) error {
	switch dest {
	case "N":
		out.Control.Set(program.JAMN)
		return nil
	case "Z":
		out.Control.Set(program.JAMZ)
		return nil
	default:
		return out.Control.SetCRegister(dest)
	}
}

func encodeOperation(out *program.Instruction, op *parser.Operation) error {
	switch op.Kind {
	case parser.OpAAndB:
		out.Control.Set(program.ENA)
		out.Control.Set(program.ENB)
	case parser.OpAOrB:
		out.Control.Set(program.F1)
		out.Control.Set(program.ENA)
		out.Control.Set(program.ENB)
	case parser.OpNotA:
		out.Control.Set(program.F1)
		out.Control.Set(program.ENA)
		out.Control.Set(program.INVA)
	case parser.OpNotB:
		out.Control.Set(program.F0)
		out.Control.Set(program.ENA)
		out.Control.Set(program.ENB)
	case parser.OpAPlusB:
		out.Control.Set(program.F0)
		out.Control.Set(program.F1)
		out.Control.Set(program.ENA)
		out.Control.Set(program.ENB)
	case parser.OpAPlus1:
		out.Control.Set(program.F0)
		out.Control.Set(program.F1)
		out.Control.Set(program.ENA)
		out.Control.Set(program.INC)
	case parser.OpBPlus1:
		out.Control.Set(program.F0)
		out.Control.Set(program.F1)
		out.Control.Set(program.ENB)
		out.Control.Set(program.INC)
	case parser.OpBMinusA:
		out.Control.Set(program.F0)
		out.Control.Set(program.F1)
		out.Control.Set(program.ENA)
		out.Control.Set(program.ENB)
		out.Control.Set(program.INVA)
		out.Control.Set(program.INC)
	case parser.OpNegA:
		out.Control.Set(program.F0)
		out.Control.Set(program.F1)
		out.Control.Set(program.ENA)
		out.Control.Set(program.INVA)
		out.Control.Set(program.INC)
	case parser.OpBMinus1:
		out.Control.Set(program.F0)
		out.Control.Set(program.F1)
		out.Control.Set(program.ENB)
		out.Control.Set(program.INVA)
	case parser.OpAPlusBPlus1:
		out.Control.Set(program.F0)
		out.Control.Set(program.F1)
		out.Control.Set(program.ENA)
		out.Control.Set(program.ENB)
		out.Control.Set(program.INC)
	case parser.OpA:
		out.Control.Set(program.F1)
		out.Control.Set(program.ENA)
	case parser.OpB:
		out.Control.Set(program.F1)
		out.Control.Set(program.ENB)
	case parser.OpNegOne:
		out.Control.Set(program.F0)
		out.Control.Set(program.F1)
		out.Control.Set(program.INVA)
	case parser.OpZero:
		out.Control.Set(program.F1)
	case parser.OpOne:
		out.Control.Set(program.F0)
		out.Control.Set(program.F1)
		out.Control.Set(program.INC)
	default:
		return fmt.Errorf("unknown operation kind %d", op.Kind)
	}

	if op.BSource != "" {
		out.Control.SetBBusSource(op.BSource)
	}
	if op.Shl8 {
		out.Control.Set(program.SLL8)
	}
	if op.Shr1 {
		out.Control.Set(program.SRA1)
	}

	return nil
}
