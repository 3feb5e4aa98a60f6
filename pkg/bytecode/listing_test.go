package bytecode

import (
	"bytes"
	"encoding/json"
	"testing"
)

func sampleChunk() *Chunk {
	c := NewChunk()
	c.WriteOp(OpConstant, 0)
	c.WriteOp(OpJumpIfFalse, 0x00, 0x01)
	c.WriteOp(OpPrint)
	c.Write(0xEE)
	c.WriteOp(OpReturn)
	return c
}

func TestNewListing(t *testing.T) {
	l := NewListing(sampleChunk(), "sample")

	if l.Chunk != "sample" || l.Count != 8 || l.Capacity != 8 {
		t.Errorf("listing header = %q count=%d capacity=%d", l.Chunk, l.Count, l.Capacity)
	}
	if len(l.Instructions) != 5 {
		t.Fatalf("got %d entries, want 5", len(l.Instructions))
	}

	jump := l.Instructions[1]
	if jump.Mnemonic != "OP_JUMP_IF_FALSE" || jump.Target == nil || *jump.Target != 6 {
		t.Errorf("jump entry = %+v", jump)
	}
	unknown := l.Instructions[3]
	if unknown.Known || unknown.Opcode != 0xEE || unknown.Mnemonic != "OP_UNKNOWN(0xEE)" {
		t.Errorf("unknown entry = %+v", unknown)
	}
	if l.Instructions[0].Target != nil {
		t.Error("constant entry should have no target")
	}
}

func TestListingTextMatchesFprint(t *testing.T) {
	c := sampleChunk()

	var buf bytes.Buffer
	if err := Fprint(&buf, c, "sample"); err != nil {
		t.Fatal(err)
	}
	if got := NewListing(c, "sample").Text(); got != buf.String() {
		t.Errorf("Text() =\n%s\nFprint =\n%s", got, buf.String())
	}
}

func TestListingEmptyChunkJSON(t *testing.T) {
	data, err := json.Marshal(NewListing(NewChunk(), "empty"))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"chunk":"empty","count":0,"capacity":0,"instructions":[]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestListingCBORIsDeterministic(t *testing.T) {
	first, err := NewListing(sampleChunk(), "sample").EncodeCBOR()
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewListing(sampleChunk(), "sample").EncodeCBOR()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("CBOR encodings of identical chunks differ")
	}

	decoded, err := DecodeListingCBOR(first)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Text() != NewListing(sampleChunk(), "sample").Text() {
		t.Errorf("decoded listing renders differently:\n%s", decoded.Text())
	}
	if decoded.Instructions[1].Target == nil || *decoded.Instructions[1].Target != 6 {
		t.Errorf("decoded jump target = %v", decoded.Instructions[1].Target)
	}
}

func TestDecodeListingCBORRejectsGarbage(t *testing.T) {
	if _, err := DecodeListingCBOR([]byte{0xFF, 0x00}); err == nil {
		t.Error("expected error decoding garbage")
	}
}
