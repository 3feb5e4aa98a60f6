package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/tliron/commonlog"
)

// Instruction is one decoded instruction. It is produced during a walk and
// owns its Operands slice; it holds no reference into chunk storage.
type Instruction struct {
	Offset    int    // Offset of the opcode tag
	Op        Opcode // Tag as stored, valid or not
	Known     bool   // Op is part of the instruction set
	Operands  []int  // Decoded operand values, in layout order
	Width     int    // Units consumed, including the tag
	Truncated bool   // The chunk ended before all operands were present
}

// Target returns the absolute offset a jump or loop instruction transfers
// control to. The boolean is false for other instructions.
func (in Instruction) Target() (int, bool) {
	if !in.Op.IsJump() || in.Truncated {
		return 0, false
	}
	info, _ := Info(in.Op)
	for i, k := range info.Operands {
		switch k {
		case OperandJump:
			return in.Offset + in.Width + in.Operands[i], true
		case OperandLoop:
			return in.Offset + in.Width - in.Operands[i], true
		}
	}
	return 0, false
}

// String renders the instruction the way it appears in a trace, e.g.
// "0000  OP_RETURN" or "0002  OP_JUMP             4 -> 0009".
func (in Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d  ", in.Offset)

	info, ok := Info(in.Op)
	if !ok {
		sb.WriteString(in.Op.String())
		return sb.String()
	}
	if len(info.Operands) == 0 {
		sb.WriteString(info.Name)
		return sb.String()
	}

	fmt.Fprintf(&sb, "%-16s", info.Name)
	for i, v := range in.Operands {
		switch info.Operands[i] {
		case OperandByte, OperandShort, OperandLong:
			fmt.Fprintf(&sb, " %4d", v)
		case OperandArgc:
			fmt.Fprintf(&sb, " (%d args)", v)
		case OperandJump, OperandLoop:
			target, _ := in.Target()
			fmt.Fprintf(&sb, " %4d -> %04d", v, target)
		default:
			panic(fmt.Errorf("%w: %s operand %d has no rendering", ErrInconsistent, info.Name, i))
		}
	}
	if in.Truncated {
		sb.WriteString(" <truncated>")
	}
	return sb.String()
}

// Line is an instruction tagged with the label of the chunk it came from.
type Line struct {
	Chunk string
	Instruction
}

// Labeled renders the line with its chunk label in front, e.g.
// "[main] 0000  OP_RETURN", for output where lines from several chunks mix.
func (l Line) Labeled() string {
	return "[" + l.Chunk + "] " + l.Instruction.String()
}

// DecodeAt decodes the instruction whose tag is at offset. It panics with
// *IndexError if offset is outside the chunk.
//
// An unknown tag decodes as a single unit with Known false. When the chunk
// ends inside an operand, the operands that fit are decoded, Truncated is
// set and Width covers the rest of the chunk.
func DecodeAt(c *Chunk, offset int) Instruction {
	op := c.ReadOpcode(offset)
	in := Instruction{Offset: offset, Op: op, Width: 1}

	info, ok := Info(op)
	if !ok {
		commonlog.GetLogger("denatural.bytecode").Debugf("unknown opcode 0x%02X at offset %04d", byte(op), offset)
		return in
	}
	in.Known = true

	pos := offset + 1
	for _, kind := range info.Operands {
		w := kind.Width()
		if pos+w > c.count {
			in.Truncated = true
			in.Width = c.count - offset
			return in
		}
		in.Operands = append(in.Operands, decodeOperand(c.code[pos:pos+w], kind))
		pos += w
	}
	in.Width = pos - offset
	return in
}

func decodeOperand(b []byte, kind OperandKind) int {
	switch kind {
	case OperandByte, OperandArgc:
		return int(b[0])
	case OperandShort, OperandJump, OperandLoop:
		return int(binary.BigEndian.Uint16(b))
	case OperandLong:
		return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	}
	panic(fmt.Errorf("%w: operand kind %s has no decoder", ErrInconsistent, kind))
}

// Disassembler walks a chunk and produces its instruction trace.
// It only reads the chunk; each walk reflects the chunk's current contents.
type Disassembler struct {
	chunk *Chunk
	name  string
}

// NewDisassembler constructs a disassembler for c labelled name.
func NewDisassembler(c *Chunk, name string) *Disassembler {
	return &Disassembler{chunk: c, name: name}
}

// Name returns the label attached to every line.
func (d *Disassembler) Name() string {
	return d.name
}

// Instructions returns a lazy walk over code[0:count]. The sequence may be
// ranged over any number of times.
func (d *Disassembler) Instructions() iter.Seq[Instruction] {
	return func(yield func(Instruction) bool) {
		for offset := 0; offset < d.chunk.count; {
			in := DecodeAt(d.chunk, offset)
			if !yield(in) {
				return
			}
			offset += in.Width
		}
	}
}

// Lines is Instructions with each instruction tagged by the chunk label.
func (d *Disassembler) Lines() iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for in := range d.Instructions() {
			if !yield(Line{Chunk: d.name, Instruction: in}) {
				return
			}
		}
	}
}

// DisassembleChunk returns the lazy trace of c labelled name.
func DisassembleChunk(c *Chunk, name string) iter.Seq[Line] {
	return NewDisassembler(c, name).Lines()
}

// DisassembleToLines returns the trace as rendered strings.
func DisassembleToLines(c *Chunk) []string {
	var lines []string
	for in := range NewDisassembler(c, "").Instructions() {
		lines = append(lines, in.String())
	}
	return lines
}

// InstructionCount returns the number of instructions in the chunk.
// Note: This walks all code, so it's O(n).
func InstructionCount(c *Chunk) int {
	n := 0
	for range NewDisassembler(c, "").Instructions() {
		n++
	}
	return n
}

// Fprint writes a "== name ==" header followed by one line per instruction.
func Fprint(w io.Writer, c *Chunk, name string) error {
	if _, err := fmt.Fprintf(w, "== %s ==\n", name); err != nil {
		return err
	}
	for line := range DisassembleChunk(c, name) {
		if _, err := fmt.Fprintln(w, line.String()); err != nil {
			return err
		}
	}
	return nil
}
