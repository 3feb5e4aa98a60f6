// Package asm assembles textual instruction listings into bytecode chunks.
//
// A listing holds one instruction per line:
//
//	; comments run to end of line
//	CONSTANT 1
//	OP_JUMP_IF_FALSE 0x0004
//	invoke 3 2
//	.byte 0xEE        ; raw unit, not checked against the opcode table
//	RETURN
//
// Mnemonics match the disassembler's names, case-insensitively and with the
// OP_ prefix optional. Operands are decimal or 0x-prefixed hexadecimal and
// must fit their encoded width.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/denatural/denatural/pkg/bytecode"
)

var (
	// ErrUnknownMnemonic is returned for a name that is neither an opcode nor a directive.
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
	// ErrOperandCount is returned when an instruction has too few or too many operands.
	ErrOperandCount = errors.New("wrong number of operands")
	// ErrOperandRange is returned when an operand does not fit its encoded width.
	ErrOperandRange = errors.New("operand out of range")
	// ErrOperandSyntax is returned when an operand is not an integer literal.
	ErrOperandSyntax = errors.New("malformed operand")
)

// Error reports an assembly failure at a 1-based source line.
type Error struct {
	Line int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("asm: line %d: %v", e.Line, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Assemble reads a listing from r and appends its units to c. The chunk is
// only written once the whole listing has assembled, so on error c is left
// unchanged.
func Assemble(r io.Reader, c *bytecode.Chunk) error {
	var units []byte
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := sc.Text()
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		var err error
		units, err = appendInstruction(units, fields)
		if err != nil {
			return &Error{Line: lineNo, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("asm: read listing: %w", err)
	}

	for _, u := range units {
		c.Write(u)
	}
	commonlog.GetLogger("denatural.asm").Debugf("assembled %d lines into %d units", lineNo, len(units))
	return nil
}

// AssembleString assembles src into c.
func AssembleString(src string, c *bytecode.Chunk) error {
	return Assemble(strings.NewReader(src), c)
}

// AssembleLines assembles each element of lines as one source line.
func AssembleLines(lines []string, c *bytecode.Chunk) error {
	return AssembleString(strings.Join(lines, "\n"), c)
}

func appendInstruction(dst []byte, fields []string) ([]byte, error) {
	mnemonic, args := fields[0], fields[1:]

	if strings.EqualFold(mnemonic, ".byte") {
		if len(args) == 0 {
			return dst, fmt.Errorf("%w: .byte takes at least 1, got 0", ErrOperandCount)
		}
		for _, a := range args {
			v, err := parseOperand(a, 0xFF)
			if err != nil {
				return dst, err
			}
			dst = append(dst, byte(v))
		}
		return dst, nil
	}

	op, ok := bytecode.Lookup(mnemonic)
	if !ok {
		return dst, fmt.Errorf("%w %q", ErrUnknownMnemonic, mnemonic)
	}
	info, _ := bytecode.Info(op)
	if len(args) != len(info.Operands) {
		return dst, fmt.Errorf("%w: %s takes %d, got %d", ErrOperandCount, info.Name, len(info.Operands), len(args))
	}

	dst = append(dst, byte(op))
	for i, kind := range info.Operands {
		v, err := parseOperand(args[i], kind.Max())
		if err != nil {
			return dst, fmt.Errorf("%s %s operand: %w", info.Name, kind, err)
		}
		dst = kind.Append(dst, v)
	}
	return dst, nil
}

func parseOperand(s string, maxValue int) (int, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrOperandSyntax, s)
	}
	if v < 0 || v > int64(maxValue) {
		return 0, fmt.Errorf("%w: %d not in [0, %d]", ErrOperandRange, v, maxValue)
	}
	return int(v), nil
}
