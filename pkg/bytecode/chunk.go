package bytecode

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tliron/commonlog"
)

// MinCapacity is the capacity of a chunk after its first growth.
const MinCapacity = 8

// ErrOutOfBounds is wrapped by IndexError.
var ErrOutOfBounds = errors.New("bytecode: index out of bounds")

// IndexError is the panic value raised when reading outside code[0:count].
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("bytecode: read at index %d out of bounds (count %d)", e.Index, e.Count)
}

func (e *IndexError) Unwrap() error {
	return ErrOutOfBounds
}

// Chunk is an ordered, growable sequence of encoded instruction units.
//
// The chunk owns its storage exclusively: code is never handed out, and
// any write may reallocate it. The zero value is an empty, usable chunk.
// A Chunk is not safe for concurrent use; hand it to a reader only after
// the producer has finished writing.
type Chunk struct {
	code     []byte // physical storage; len(code) is the capacity
	count    int    // units in use
	reallocs int    // growths since the last Init or Free
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	c := &Chunk{}
	c.Init()
	return c
}

// Init resets the chunk to the empty state, dropping any storage.
func (c *Chunk) Init() {
	c.code = nil
	c.count = 0
	c.reallocs = 0
}

// Free releases the chunk's storage. A freed chunk is indistinguishable
// from a freshly initialized one and may be written to again.
func (c *Chunk) Free() {
	c.Init()
}

// Write appends one encoded unit, growing storage when it is full.
func (c *Chunk) Write(unit byte) {
	if c.count == len(c.code) {
		c.grow()
	}
	c.code[c.count] = unit
	c.count++
}

// WriteOp appends an opcode followed by its raw operand units.
// Returns the offset of the opcode.
func (c *Chunk) WriteOp(op Opcode, operands ...byte) int {
	offset := c.count
	c.Write(byte(op))
	for _, b := range operands {
		c.Write(b)
	}
	return offset
}

// WriteShort appends v as two big-endian units.
func (c *Chunk) WriteShort(v uint16) {
	c.Write(byte(v >> 8))
	c.Write(byte(v))
}

// Read returns the unit at index. It panics with *IndexError unless
// 0 <= index < Count().
func (c *Chunk) Read(index int) byte {
	if index < 0 || index >= c.count {
		panic(&IndexError{Index: index, Count: c.count})
	}
	return c.code[index]
}

// ReadOpcode is Read typed as an Opcode.
func (c *Chunk) ReadOpcode(index int) Opcode {
	return Opcode(c.Read(index))
}

// Count returns the number of units in use.
func (c *Chunk) Count() int {
	return c.count
}

// Capacity returns the number of units the chunk can hold without growing.
func (c *Chunk) Capacity() int {
	return len(c.code)
}

// Reallocations returns how many times storage has grown since the last
// Init or Free.
func (c *Chunk) Reallocations() int {
	return c.reallocs
}

// Bytes returns a copy of the units in use.
func (c *Chunk) Bytes() []byte {
	out := make([]byte, c.count)
	copy(out, c.code[:c.count])
	return out
}

// Equal reports whether both chunks hold the same units. Capacity is not
// compared. A nil other equals nothing.
func (c *Chunk) Equal(other *Chunk) bool {
	if other == nil {
		return false
	}
	if c.count != other.count {
		return false
	}
	for i := 0; i < c.count; i++ {
		if c.code[i] != other.code[i] {
			return false
		}
	}
	return true
}

// String mirrors a debug dump of the chunk state.
func (c *Chunk) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Chunk { count: %d, capacity: %d, code: ", c.count, len(c.code))
	if c.code == nil {
		sb.WriteString("None")
	} else {
		sb.WriteString("[")
		for i := 0; i < c.count; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "0x%02X", c.code[i])
		}
		sb.WriteString("]")
	}
	sb.WriteString(" }")
	return sb.String()
}

// GrowCapacity returns the capacity that follows capacity: at least
// MinCapacity, otherwise double.
func GrowCapacity(capacity int) int {
	if capacity > math.MaxInt/2 {
		panic(fmt.Errorf("bytecode: chunk capacity %d cannot grow", capacity))
	}
	return max(MinCapacity, capacity*2)
}

// grow moves the in-use units into fresh storage of the next capacity.
// The old storage is dropped; allocation failure is fatal to the process.
func (c *Chunk) grow() {
	oldCap := len(c.code)
	code := make([]byte, GrowCapacity(oldCap))
	copy(code, c.code[:c.count])
	c.code = code
	c.reallocs++

	commonlog.GetLogger("denatural.bytecode").Debugf("chunk grew from %d to %d units (count %d)", oldCap, len(code), c.count)
}
