package ptx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// specialRegisterPrefixes are the names parsed as AddressModeSpecial.
var specialRegisterPrefixes = []string{
	"%tid", "%ntid", "%ctaid", "%nctaid", "%laneid", "%warpid", "%nwarpid", "%smid", "%nsmid", "%gridid", "%clock",
}

// ParseStatement parses a single line of the statement syntax:
//
//	name:                     label
//	.param .u64 name          parameter declaration
//	.shared .u32 name[128]    shared-memory declaration
//	@%p1 add.u32 %r1, %r2, 4; instruction (see ParseInstruction)
func ParseStatement(line string) (Statement, error) {
	line = trimLine(line)
	if line == "" {
		return Statement{}, fmt.Errorf("empty statement")
	}

	if strings.HasSuffix(line, ":") && !strings.ContainsAny(line, " \t") {
		return NewLabelStatement(strings.TrimSuffix(line, ":")), nil
	}

	if strings.HasPrefix(line, ".param") || strings.HasPrefix(line, ".shared") {
		return parseDeclaration(line)
	}

	inst, err := ParseInstruction(line)
	if err != nil {
		return Statement{}, err
	}
	return NewInstructionStatement(inst), nil
}

func parseDeclaration(line string) (Statement, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Statement{}, fmt.Errorf("invalid declaration %q", line)
	}

	var ret Statement
	switch fields[0] {
	case ".param":
		ret.Directive = DirectiveParam
	case ".shared":
		ret.Directive = DirectiveShared
	default:
		return Statement{}, fmt.Errorf("invalid declaration %q", line)
	}

	typ, ok := typesByName[strings.TrimPrefix(fields[1], ".")]
	if !ok {
		return Statement{}, fmt.Errorf("invalid type %q in declaration %q", fields[1], line)
	}
	ret.Type = typ

	name := fields[2]
	if open := strings.IndexByte(name, '['); open >= 0 {
		if !strings.HasSuffix(name, "]") {
			return Statement{}, fmt.Errorf("invalid array declaration %q", line)
		}
		n, err := strconv.Atoi(name[open+1 : len(name)-1])
		if err != nil || n <= 0 {
			return Statement{}, fmt.Errorf("invalid array length in %q", line)
		}
		ret.Elements = n
		name = name[:open]
	}
	ret.Name = name
	return ret, nil
}

// ParseInstruction parses one instruction of the text syntax:
//
//	[@[!]%pN] mnemonic[.modifier]* [operand[, operand]*][;]
//
// Operands fill the slots D, A, B, C in order, except for instructions without a
// destination (call, bar, membar) whose first operand is A.
func ParseInstruction(line string) (Instruction, error) {
	line = trimLine(line)
	var inst Instruction

	if strings.HasPrefix(line, "@") {
		end := strings.IndexAny(line, " \t")
		if end < 0 {
			return inst, fmt.Errorf("missing opcode after guard in %q", line)
		}
		guard, err := parseGuard(line[1:end])
		if err != nil {
			return inst, err
		}
		inst.Operands[OperandGuard] = guard
		line = strings.TrimSpace(line[end:])
	}

	mnemonic, rest := line, ""
	if end := strings.IndexAny(line, " \t"); end >= 0 {
		mnemonic, rest = line[:end], strings.TrimSpace(line[end:])
	}

	var secondType DataType
	parts := strings.Split(mnemonic, ".")
	op, ok := opcodesByMnemonic[parts[0]]
	if !ok {
		return inst, fmt.Errorf("unknown opcode %q", parts[0])
	}
	inst.Opcode = op
	for _, m := range parts[1:] {
		if t, ok := typesByName[m]; ok {
			if inst.Type == TypeInvalid {
				inst.Type = t
			} else {
				secondType = t
			}
			continue
		}
		if c, ok := cmpOpsByName[m]; ok && op == OpcodeSetP {
			inst.Comparison = c
			continue
		}
		if v, ok := voteModesByName[m]; ok && op == OpcodeVote {
			inst.Vote = v
			continue
		}
		if s, ok := addressSpacesByName[m]; ok {
			inst.AddressSpace = s
			continue
		}
		inst.Modifiers = append(inst.Modifiers, m)
	}

	if rest != "" {
		slot := OperandD
		switch op {
		case OpcodeCall, OpcodeBar, OpcodeMembar:
			slot = OperandA
		}
		for _, raw := range strings.Split(rest, ",") {
			if slot == OperandGuard {
				return inst, fmt.Errorf("too many operands in %q", line)
			}
			operand, err := parseOperand(strings.TrimSpace(raw), op)
			if err != nil {
				return inst, fmt.Errorf("%w in %q", err, line)
			}
			inst.Operands[slot] = operand
			slot++
		}
	}

	inst.assignOperandTypes(secondType)
	return inst, nil
}

// assignOperandTypes gives untyped operands the type implied by the instruction.
func (i *Instruction) assignOperandTypes(secondType DataType) {
	for s := OperandD; s < OperandGuard; s++ {
		op := &i.Operands[s]
		if op.Mode == AddressModeInvalid || op.Mode == AddressModeLabel || op.Type != TypeInvalid {
			continue
		}
		op.Type = i.Type
		switch {
		case i.Opcode == OpcodeCvt && s == OperandA && secondType != TypeInvalid:
			op.Type = secondType
		case i.Opcode == OpcodeSetP && s == OperandD,
			i.Opcode == OpcodeSelP && s == OperandC,
			i.Opcode == OpcodeVote && s == OperandA,
			i.Opcode == OpcodeVote && s == OperandD && i.Vote != VoteBallot:
			op.Type = TypePred
		}
	}
}

func parseGuard(s string) (Operand, error) {
	inverted := strings.HasPrefix(s, "!")
	s = strings.TrimPrefix(s, "!")
	if s == "%pt" {
		if inverted {
			return Operand{Condition: PredicateNPT}, nil
		}
		return Operand{Condition: PredicatePT}, nil
	}
	if !strings.HasPrefix(s, "%") {
		return Operand{}, fmt.Errorf("invalid guard predicate %q", s)
	}

	ret := Operand{Mode: AddressModeRegister, Type: TypePred, Condition: PredicatePred}
	if inverted {
		ret.Condition = PredicateInvPred
	}
	if reg, ok := parseRegisterNumber(s, "%p"); ok {
		ret.Reg = reg
	} else {
		ret.Identifier = s
	}
	return ret, nil
}

func parseOperand(s string, op Opcode) (Operand, error) {
	if s == "" {
		return Operand{}, fmt.Errorf("empty operand")
	}

	if strings.HasPrefix(s, "!") {
		ret, err := parseOperand(s[1:], op)
		if err != nil {
			return ret, err
		}
		ret.Type, ret.Condition = TypePred, PredicateInvPred
		return ret, nil
	}

	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return Operand{}, fmt.Errorf("unterminated address %q", s)
		}
		return parseAddress(s[1 : len(s)-1])
	}

	if strings.HasPrefix(s, "%") {
		for _, prefix := range specialRegisterPrefixes {
			if strings.HasPrefix(s, prefix) {
				return Operand{Mode: AddressModeSpecial, Type: TypeU32, Identifier: s}, nil
			}
		}
		if reg, ok := parseRegisterNumber(s, "%p"); ok {
			return Operand{Mode: AddressModeRegister, Type: TypePred, Reg: reg, Condition: PredicatePred}, nil
		}
		if reg, ok := parseRegisterNumber(s, "%r"); ok {
			return NewRegisterOperand(reg, TypeInvalid), nil
		}
		return NewSymbolOperand(s, TypeInvalid), nil
	}

	if imm, typ, ok := parseImmediate(s); ok {
		return NewImmediateOperand(imm, typ), nil
	}

	if op == OpcodeBra || op == OpcodeCall {
		return NewLabelOperand(s), nil
	}
	return Operand{}, fmt.Errorf("invalid operand %q", s)
}

func parseAddress(s string) (Operand, error) {
	base, off := s, int64(0)
	if i := strings.LastIndexAny(s, "+-"); i > 0 {
		v, err := strconv.ParseInt(strings.TrimPrefix(s[i:], "+"), 0, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("invalid offset in [%s]", s)
		}
		base, off = strings.TrimSpace(s[:i]), v
	}
	if base == "" {
		return Operand{}, fmt.Errorf("missing base in [%s]", s)
	}

	if strings.HasPrefix(base, "%") {
		ret := Operand{Mode: AddressModeIndirect, Offset: off}
		if reg, ok := parseRegisterNumber(base, "%r"); ok {
			ret.Reg = reg
		} else {
			ret.Identifier = base
		}
		return ret, nil
	}
	return Operand{Mode: AddressModeAddress, Identifier: base, Offset: off}, nil
}

// parseRegisterNumber parses `%r12` style names into 12.
func parseRegisterNumber(s, prefix string) (RegisterID, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(s[len(prefix):], 10, 32)
	if err != nil {
		return 0, false
	}
	return RegisterID(n), true
}

// parseImmediate accepts decimal / 0x integers, 0fXXXXXXXX and 0dXXXXXXXXXXXXXXXX float bit
// patterns, and decimal floats. typ is TypeInvalid unless the literal fixes the type.
func parseImmediate(s string) (uint64, DataType, bool) {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'f' || s[1] == 'F') {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return v, TypeF32, err == nil
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'd' || s[1] == 'D') {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, TypeF64, err == nil
	}
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return uint64(v), TypeInvalid, true
	}
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return v, TypeInvalid, true
	}
	if strings.ContainsAny(s, ".eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return math.Float64bits(f), TypeF64, true
		}
	}
	return 0, TypeInvalid, false
}

func trimLine(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	return strings.TrimSpace(strings.TrimSuffix(line, ";"))
}
