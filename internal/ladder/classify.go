package ladder

import "strings"

// Instruction is the symbolic form of one element.
type Instruction struct {
	Mnemonic string
	Operands []string
}

// String formats the instruction as "MNEMONIC op1 op2 ...".
func (i Instruction) String() string {
	if len(i.Operands) == 0 {
		return i.Mnemonic
	}
	return i.Mnemonic + " " + strings.Join(i.Operands, " ")
}

// blockMnemonics maps lower-cased block type names to their mnemonic.
var blockMnemonics = map[string]string{
	"ton": "TON",
	"ctu": "CTU",
	"mov": "MOV",
	"pid": "PID",
	"add": "ADD",
	"sub": "SUB",
	"div": "DIV",
	"mul": "MUL",
	"eq":  "EQU",
	"equ": "EQU",
	"gt":  "GRT",
	"grt": "GRT",
	"ge":  "GE",
	"lt":  "LT",
	"le":  "LE",
	"lim": "LIM",
}

// BlockMnemonic resolves a function block type name. Unknown names are
// returned upper-cased.
func BlockMnemonic(typeName string) string {
	if m, ok := blockMnemonics[strings.ToLower(typeName)]; ok {
		return m
	}
	return strings.ToUpper(typeName)
}

// Classify returns the instruction an element renders to. It never fails:
// tags it does not know become their own upper-cased name.
func Classify(e *Element) Instruction {
	switch e.Kind {
	case KindContact:
		if e.Negated {
			return Instruction{Mnemonic: "XIO", Operands: []string{e.Operand}}
		}
		return Instruction{Mnemonic: "XIC", Operands: []string{e.Operand}}
	case KindCoil:
		if e.Negated {
			return Instruction{Mnemonic: "OTU", Operands: []string{e.Operand}}
		}
		return Instruction{Mnemonic: "OTE", Operands: []string{e.Operand}}
	case KindFunctionBlock:
		// A block without typeName still needs a mnemonic.
		if e.BlockType == "" {
			return Instruction{Mnemonic: strings.ToUpper(e.Tag), Operands: e.Parameters}
		}
		return Instruction{Mnemonic: BlockMnemonic(e.BlockType), Operands: e.Parameters}
	default:
		return Instruction{Mnemonic: strings.ToUpper(e.Tag)}
	}
}
