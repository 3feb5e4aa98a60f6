package bytecode

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInconsistent reports a mismatch between the opcode table and the code
// that consumes it. It is never returned for malformed bytecode; it means
// the instruction set itself is broken.
var ErrInconsistent = errors.New("bytecode: internal consistency failure")

// Opcode represents a bytecode instruction tag.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Constants and stack (0x00-0x0F)
	// ========================================================================

	OpConstant     Opcode = 0x00 // Push constant: OpConstant <index:u8>
	OpConstantLong Opcode = 0x01 // Push constant: OpConstantLong <index:u24>
	OpNil          Opcode = 0x02 // Push nil
	OpTrue         Opcode = 0x03 // Push true
	OpFalse        Opcode = 0x04 // Push false
	OpPop          Opcode = 0x05 // Pop top of stack

	// ========================================================================
	// Variables (0x10-0x1F)
	// ========================================================================

	OpGetLocal     Opcode = 0x10 // Push local: OpGetLocal <slot:u8>
	OpSetLocal     Opcode = 0x11 // Store TOS to local: OpSetLocal <slot:u8>
	OpGetGlobal    Opcode = 0x12 // Push global: OpGetGlobal <name:u8>
	OpDefineGlobal Opcode = 0x13 // Pop into new global: OpDefineGlobal <name:u8>
	OpSetGlobal    Opcode = 0x14 // Store TOS to global: OpSetGlobal <name:u8>
	OpGetUpvalue   Opcode = 0x15 // Push upvalue: OpGetUpvalue <index:u8>
	OpSetUpvalue   Opcode = 0x16 // Store TOS to upvalue: OpSetUpvalue <index:u8>

	// ========================================================================
	// Properties (0x20-0x2F)
	// ========================================================================

	OpGetProperty Opcode = 0x20 // Replace instance with field: OpGetProperty <name:u8>
	OpSetProperty Opcode = 0x21 // Store into field: OpSetProperty <name:u8>
	OpGetSuper    Opcode = 0x22 // Bind superclass method: OpGetSuper <name:u8>

	// ========================================================================
	// Comparison, arithmetic and logic (0x30-0x3F)
	// ========================================================================

	OpEqual    Opcode = 0x30 // Pop two, push a == b
	OpGreater  Opcode = 0x31 // Pop two, push a > b
	OpLess     Opcode = 0x32 // Pop two, push a < b
	OpAdd      Opcode = 0x33 // Pop two, push a + b
	OpSubtract Opcode = 0x34 // Pop two, push a - b
	OpMultiply Opcode = 0x35 // Pop two, push a * b
	OpDivide   Opcode = 0x36 // Pop two, push a / b
	OpNot      Opcode = 0x37 // Logical NOT of TOS
	OpNegate   Opcode = 0x38 // Arithmetic negation of TOS

	// ========================================================================
	// Statements (0x40-0x4F)
	// ========================================================================

	OpPrint Opcode = 0x40 // Pop and print

	// ========================================================================
	// Control flow (0x50-0x5F)
	// ========================================================================

	OpJump        Opcode = 0x50 // Forward jump: OpJump <offset:u16>
	OpJumpIfFalse Opcode = 0x51 // Forward jump if TOS falsy: OpJumpIfFalse <offset:u16>
	OpLoop        Opcode = 0x52 // Backward jump: OpLoop <offset:u16>

	// ========================================================================
	// Calls and closures (0x60-0x6F)
	// ========================================================================

	OpCall         Opcode = 0x60 // Call callee below args: OpCall <argc:u8>
	OpInvoke       Opcode = 0x61 // Method call: OpInvoke <name:u8> <argc:u8>
	OpSuperInvoke  Opcode = 0x62 // Super call: OpSuperInvoke <name:u8> <argc:u8>
	OpClosure      Opcode = 0x63 // Wrap function constant: OpClosure <index:u8>
	OpCloseUpvalue Opcode = 0x64 // Hoist TOS local into its upvalue

	// ========================================================================
	// Classes (0x70-0x7F)
	// ========================================================================

	OpClass   Opcode = 0x70 // Push new class: OpClass <name:u8>
	OpInherit Opcode = 0x71 // Copy superclass methods into subclass
	OpMethod  Opcode = 0x72 // Bind closure as method: OpMethod <name:u8>

	// ========================================================================
	// Return (0xF0-0xFF)
	// ========================================================================

	OpReturn Opcode = 0xF0 // Return from the current function
)

// OperandKind describes the encoding of a single operand.
type OperandKind uint8

const (
	OperandByte  OperandKind = iota + 1 // u8
	OperandShort                        // u16, big endian
	OperandJump                         // u16 forward offset from the next instruction
	OperandLoop                         // u16 backward offset from the next instruction
	OperandLong                         // u24, big endian
	OperandArgc                         // u8 argument count
)

// Width returns the number of units the operand occupies.
func (k OperandKind) Width() int {
	switch k {
	case OperandByte, OperandArgc:
		return 1
	case OperandShort, OperandJump, OperandLoop:
		return 2
	case OperandLong:
		return 3
	}
	panic(fmt.Errorf("%w: operand kind %d has no width", ErrInconsistent, k))
}

// Max returns the largest value the operand can encode.
func (k OperandKind) Max() int {
	return 1<<(8*k.Width()) - 1
}

// Append encodes v big-endian into the operand's width and appends it to dst.
// v is truncated to the operand width; callers range-check with Max.
func (k OperandKind) Append(dst []byte, v int) []byte {
	for shift := 8 * (k.Width() - 1); shift >= 0; shift -= 8 {
		dst = append(dst, byte(v>>shift))
	}
	return dst
}

// String returns a human-readable name for the operand kind.
func (k OperandKind) String() string {
	switch k {
	case OperandByte:
		return "byte"
	case OperandShort:
		return "short"
	case OperandJump:
		return "jump"
	case OperandLoop:
		return "loop"
	case OperandLong:
		return "long"
	case OperandArgc:
		return "argc"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}

// OpcodeInfo provides metadata about each opcode for disassembly and validation.
type OpcodeInfo struct {
	Name     string        // Display mnemonic, e.g. OP_RETURN
	Operands []OperandKind // Fixed operand layout following the tag
}

// OperandWidth returns the number of units following the opcode tag.
func (i OpcodeInfo) OperandWidth() int {
	n := 0
	for _, k := range i.Operands {
		n += k.Width()
	}
	return n
}

var (
	noOperands = []OperandKind(nil)
	oneByte    = []OperandKind{OperandByte}
)

// opcodeTable is indexed by tag. Entries with an empty Name are unassigned.
var opcodeTable = [256]OpcodeInfo{
	OpConstant:     {"OP_CONSTANT", oneByte},
	OpConstantLong: {"OP_CONSTANT_LONG", []OperandKind{OperandLong}},
	OpNil:          {"OP_NIL", noOperands},
	OpTrue:         {"OP_TRUE", noOperands},
	OpFalse:        {"OP_FALSE", noOperands},
	OpPop:          {"OP_POP", noOperands},

	OpGetLocal:     {"OP_GET_LOCAL", oneByte},
	OpSetLocal:     {"OP_SET_LOCAL", oneByte},
	OpGetGlobal:    {"OP_GET_GLOBAL", oneByte},
	OpDefineGlobal: {"OP_DEFINE_GLOBAL", oneByte},
	OpSetGlobal:    {"OP_SET_GLOBAL", oneByte},
	OpGetUpvalue:   {"OP_GET_UPVALUE", oneByte},
	OpSetUpvalue:   {"OP_SET_UPVALUE", oneByte},

	OpGetProperty: {"OP_GET_PROPERTY", oneByte},
	OpSetProperty: {"OP_SET_PROPERTY", oneByte},
	OpGetSuper:    {"OP_GET_SUPER", oneByte},

	OpEqual:    {"OP_EQUAL", noOperands},
	OpGreater:  {"OP_GREATER", noOperands},
	OpLess:     {"OP_LESS", noOperands},
	OpAdd:      {"OP_ADD", noOperands},
	OpSubtract: {"OP_SUBTRACT", noOperands},
	OpMultiply: {"OP_MULTIPLY", noOperands},
	OpDivide:   {"OP_DIVIDE", noOperands},
	OpNot:      {"OP_NOT", noOperands},
	OpNegate:   {"OP_NEGATE", noOperands},

	OpPrint: {"OP_PRINT", noOperands},

	OpJump:        {"OP_JUMP", []OperandKind{OperandJump}},
	OpJumpIfFalse: {"OP_JUMP_IF_FALSE", []OperandKind{OperandJump}},
	OpLoop:        {"OP_LOOP", []OperandKind{OperandLoop}},

	OpCall:         {"OP_CALL", []OperandKind{OperandArgc}},
	OpInvoke:       {"OP_INVOKE", []OperandKind{OperandByte, OperandArgc}},
	OpSuperInvoke:  {"OP_SUPER_INVOKE", []OperandKind{OperandByte, OperandArgc}},
	OpClosure:      {"OP_CLOSURE", oneByte},
	OpCloseUpvalue: {"OP_CLOSE_UPVALUE", noOperands},

	OpClass:   {"OP_CLASS", oneByte},
	OpInherit: {"OP_INHERIT", noOperands},
	OpMethod:  {"OP_METHOD", oneByte},

	OpReturn: {"OP_RETURN", noOperands},
}

// Derived at init from opcodeTable.
var (
	definedOpcodes []Opcode
	mnemonics      map[string]Opcode
)

func init() {
	if err := indexOpcodeTable(); err != nil {
		panic(err)
	}
}

// indexOpcodeTable validates the table and builds the lookup indexes.
func indexOpcodeTable() error {
	mnemonics = make(map[string]Opcode)
	definedOpcodes = definedOpcodes[:0]
	for tag := range opcodeTable {
		info := opcodeTable[tag]
		op := Opcode(tag)
		if info.Name == "" {
			if len(info.Operands) != 0 {
				return fmt.Errorf("%w: unnamed opcode 0x%02X has operands", ErrInconsistent, tag)
			}
			continue
		}
		if !strings.HasPrefix(info.Name, "OP_") {
			return fmt.Errorf("%w: opcode 0x%02X name %q lacks OP_ prefix", ErrInconsistent, tag, info.Name)
		}
		if prev, dup := mnemonics[info.Name]; dup {
			return fmt.Errorf("%w: opcodes 0x%02X and 0x%02X share name %q", ErrInconsistent, byte(prev), tag, info.Name)
		}
		for _, k := range info.Operands {
			if k < OperandByte || k > OperandArgc {
				return fmt.Errorf("%w: opcode %s has unknown operand kind %d", ErrInconsistent, info.Name, k)
			}
		}
		mnemonics[info.Name] = op
		definedOpcodes = append(definedOpcodes, op)
	}
	return nil
}

// Info returns metadata for an opcode. The boolean is false for tags that
// are not part of the instruction set.
func Info(op Opcode) (OpcodeInfo, bool) {
	info := opcodeTable[op]
	return info, info.Name != ""
}

// Valid reports whether op is a defined instruction tag.
func (op Opcode) Valid() bool {
	return opcodeTable[op].Name != ""
}

// String returns the display mnemonic of an opcode.
func (op Opcode) String() string {
	if info, ok := Info(op); ok {
		return info.Name
	}
	return fmt.Sprintf("OP_UNKNOWN(0x%02X)", byte(op))
}

// OperandWidth returns the number of operand units for this opcode.
// Unknown opcodes have no operands.
func (op Opcode) OperandWidth() int {
	return opcodeTable[op].OperandWidth()
}

// Width returns the total length of an instruction (1 + operand units).
func (op Opcode) Width() int {
	return 1 + op.OperandWidth()
}

// IsJump reports whether the opcode transfers control within the chunk.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpLoop
}

// Lookup finds an opcode by mnemonic. Matching ignores case and the OP_
// prefix is optional, so "return", "OP_RETURN" and "Return" are equivalent.
func Lookup(mnemonic string) (Opcode, bool) {
	name := strings.ToUpper(strings.TrimSpace(mnemonic))
	if !strings.HasPrefix(name, "OP_") {
		name = "OP_" + name
	}
	op, ok := mnemonics[name]
	return op, ok
}

// AllOpcodes returns every defined opcode in ascending tag order.
func AllOpcodes() []Opcode {
	out := make([]Opcode, len(definedOpcodes))
	copy(out, definedOpcodes)
	return out
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(definedOpcodes)
}
