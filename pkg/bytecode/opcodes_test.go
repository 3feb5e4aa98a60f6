package bytecode

import (
	"errors"
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info, ok := Info(op)
		if !ok || !strings.HasPrefix(info.Name, "OP_") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
		if !op.Valid() {
			t.Errorf("%s.Valid() = false", op)
		}
	}
}

func TestAllOpcodesAscending(t *testing.T) {
	ops := AllOpcodes()
	if len(ops) != OpcodeCount() {
		t.Fatalf("len(AllOpcodes()) = %d, OpcodeCount() = %d", len(ops), OpcodeCount())
	}
	for i := 1; i < len(ops); i++ {
		if ops[i-1] >= ops[i] {
			t.Errorf("AllOpcodes not ascending at %d: %s then %s", i, ops[i-1], ops[i])
		}
	}
	if ops[len(ops)-1] != OpReturn {
		t.Errorf("last opcode = %s, want OP_RETURN", ops[len(ops)-1])
	}
}

func TestAllOpcodesReturnsCopy(t *testing.T) {
	ops := AllOpcodes()
	ops[0] = Opcode(0xEE)
	if AllOpcodes()[0] != OpConstant {
		t.Error("mutating AllOpcodes() result changed the opcode set")
	}
}

func TestUndefinedTagsHaveNoMetadata(t *testing.T) {
	defined := make(map[Opcode]bool)
	for _, op := range AllOpcodes() {
		defined[op] = true
	}
	for tag := 0; tag < 256; tag++ {
		op := Opcode(tag)
		if defined[op] {
			continue
		}
		if _, ok := Info(op); ok {
			t.Errorf("Info(0x%02X) ok for undefined tag", tag)
		}
		if op.Width() != 1 {
			t.Errorf("undefined tag 0x%02X width = %d, want 1", tag, op.Width())
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpConstant, "OP_CONSTANT"},
		{OpConstantLong, "OP_CONSTANT_LONG"},
		{OpNil, "OP_NIL"},
		{OpGetLocal, "OP_GET_LOCAL"},
		{OpAdd, "OP_ADD"},
		{OpJumpIfFalse, "OP_JUMP_IF_FALSE"},
		{OpLoop, "OP_LOOP"},
		{OpInvoke, "OP_INVOKE"},
		{OpCloseUpvalue, "OP_CLOSE_UPVALUE"},
		{OpReturn, "OP_RETURN"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	if got := op.String(); got != "OP_UNKNOWN(0xEE)" {
		t.Errorf("unknown opcode String() = %q, want OP_UNKNOWN(0xEE)", got)
	}
	if op.Valid() {
		t.Error("0xEE should not be valid")
	}
}

func TestOpcodeWidth(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpReturn, 1},
		{OpNil, 1},
		{OpConstant, 2},      // u8 index
		{OpConstantLong, 4},  // u24 index
		{OpGetLocal, 2},      // u8 slot
		{OpJump, 3},          // u16 offset
		{OpLoop, 3},          // u16 offset
		{OpCall, 2},          // u8 argc
		{OpInvoke, 3},        // u8 name + u8 argc
		{OpSuperInvoke, 3},   // u8 name + u8 argc
		{OpCloseUpvalue, 1},  // no operands
		{Opcode(0xEE), 1},    // unknown
	}

	for _, tt := range tests {
		if got := tt.op.Width(); got != tt.want {
			t.Errorf("%s.Width() = %d, want %d", tt.op, got, tt.want)
		}
		if got := tt.op.OperandWidth(); got != tt.want-1 {
			t.Errorf("%s.OperandWidth() = %d, want %d", tt.op, got, tt.want-1)
		}
	}
}

func TestOpcodeIsJump(t *testing.T) {
	for _, op := range AllOpcodes() {
		want := op == OpJump || op == OpJumpIfFalse || op == OpLoop
		if got := op.IsJump(); got != want {
			t.Errorf("%s.IsJump() = %v, want %v", op, got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		in   string
		want Opcode
		ok   bool
	}{
		{"OP_RETURN", OpReturn, true},
		{"return", OpReturn, true},
		{"Return", OpReturn, true},
		{"  op_jump_if_false ", OpJumpIfFalse, true},
		{"constant_long", OpConstantLong, true},
		{"OP_UNKNOWN", 0, false},
		{"", 0, false},
		{"RET", 0, false},
	}

	for _, tt := range tests {
		got, ok := Lookup(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("Lookup(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLookupRoundTripsEveryOpcode(t *testing.T) {
	for _, op := range AllOpcodes() {
		got, ok := Lookup(op.String())
		if !ok || got != op {
			t.Errorf("Lookup(%q) = %s, %v", op.String(), got, ok)
		}
	}
}

func TestOperandKindWidthAndMax(t *testing.T) {
	tests := []struct {
		kind  OperandKind
		width int
		max   int
	}{
		{OperandByte, 1, 0xFF},
		{OperandArgc, 1, 0xFF},
		{OperandShort, 2, 0xFFFF},
		{OperandJump, 2, 0xFFFF},
		{OperandLoop, 2, 0xFFFF},
		{OperandLong, 3, 0xFFFFFF},
	}

	for _, tt := range tests {
		if got := tt.kind.Width(); got != tt.width {
			t.Errorf("%s.Width() = %d, want %d", tt.kind, got, tt.width)
		}
		if got := tt.kind.Max(); got != tt.max {
			t.Errorf("%s.Max() = %d, want %d", tt.kind, got, tt.max)
		}
	}
}

func TestOperandKindAppend(t *testing.T) {
	got := OperandLong.Append(nil, 0x010203)
	if string(got) != "\x01\x02\x03" {
		t.Errorf("OperandLong.Append = % X, want 01 02 03", got)
	}
	got = OperandShort.Append([]byte{0xAA}, 0x1234)
	if string(got) != "\xAA\x12\x34" {
		t.Errorf("OperandShort.Append = % X, want AA 12 34", got)
	}
}

func TestInvalidOperandKindIsInconsistent(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrInconsistent) {
			t.Fatalf("recover() = %v, want ErrInconsistent", r)
		}
	}()
	OperandKind(0).Width()
}

func TestIndexOpcodeTableRejectsDuplicates(t *testing.T) {
	saved := opcodeTable
	t.Cleanup(func() {
		opcodeTable = saved
		if err := indexOpcodeTable(); err != nil {
			t.Fatalf("restoring table: %v", err)
		}
	})

	opcodeTable[0xEE] = OpcodeInfo{Name: "OP_RETURN"}
	err := indexOpcodeTable()
	if !errors.Is(err, ErrInconsistent) {
		t.Fatalf("indexOpcodeTable() = %v, want ErrInconsistent", err)
	}
}

func TestIndexOpcodeTableRejectsBadNames(t *testing.T) {
	saved := opcodeTable
	t.Cleanup(func() {
		opcodeTable = saved
		if err := indexOpcodeTable(); err != nil {
			t.Fatalf("restoring table: %v", err)
		}
	})

	opcodeTable[0xEE] = OpcodeInfo{Name: "HALT"}
	if err := indexOpcodeTable(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("indexOpcodeTable() = %v, want ErrInconsistent", err)
	}

	opcodeTable = saved
	opcodeTable[0xEE] = OpcodeInfo{Name: "OP_HALT", Operands: []OperandKind{OperandKind(42)}}
	if err := indexOpcodeTable(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("indexOpcodeTable() = %v, want ErrInconsistent", err)
	}
}
