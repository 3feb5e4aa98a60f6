package bytecode

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options so the same listing always encodes
// to the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ListingEntry is one instruction of a Listing.
type ListingEntry struct {
	Offset    int    `json:"offset" cbor:"offset"`
	Opcode    byte   `json:"opcode" cbor:"opcode"`
	Mnemonic  string `json:"mnemonic" cbor:"mnemonic"`
	Known     bool   `json:"known" cbor:"known"`
	Operands  []int  `json:"operands,omitempty" cbor:"operands,omitempty"`
	Target    *int   `json:"target,omitempty" cbor:"target,omitempty"`
	Truncated bool   `json:"truncated,omitempty" cbor:"truncated,omitempty"`
	Text      string `json:"text" cbor:"text"`
}

// Listing is a materialized disassembly trace. It describes a chunk for
// tooling and tests; it is not a format chunks can be loaded from.
type Listing struct {
	Chunk        string         `json:"chunk" cbor:"chunk"`
	Count        int            `json:"count" cbor:"count"`
	Capacity     int            `json:"capacity" cbor:"capacity"`
	Instructions []ListingEntry `json:"instructions" cbor:"instructions"`
}

// NewListing walks c and collects its trace.
func NewListing(c *Chunk, name string) *Listing {
	l := &Listing{
		Chunk:        name,
		Count:        c.Count(),
		Capacity:     c.Capacity(),
		Instructions: []ListingEntry{},
	}
	for line := range DisassembleChunk(c, name) {
		entry := ListingEntry{
			Offset:    line.Offset,
			Opcode:    byte(line.Op),
			Mnemonic:  line.Op.String(),
			Known:     line.Known,
			Operands:  line.Operands,
			Truncated: line.Truncated,
			Text:      line.String(),
		}
		if target, ok := line.Target(); ok {
			entry.Target = &target
		}
		l.Instructions = append(l.Instructions, entry)
	}
	return l
}

// Text renders the listing in the same form as Fprint.
func (l *Listing) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", l.Chunk)
	for _, e := range l.Instructions {
		sb.WriteString(e.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// EncodeCBOR serializes the listing to canonical CBOR bytes.
func (l *Listing) EncodeCBOR() ([]byte, error) {
	return cborEncMode.Marshal(l)
}

// DecodeListingCBOR deserializes a listing from CBOR bytes.
func DecodeListingCBOR(data []byte) (*Listing, error) {
	var l Listing
	if err := cbor.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal listing: %w", err)
	}
	return &l, nil
}
