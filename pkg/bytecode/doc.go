// Package bytecode holds the in-memory form of compiled denatural programs
// and the tools to inspect it.
//
// # Architecture Overview
//
//   - Opcodes: a closed set of byte-sized instruction tags grouped into
//     ranges by category. Every tag carries a fixed operand layout in the
//     opcode table, so an instruction's width is known from its tag alone.
//
//   - Chunk: a growable buffer of encoded units (opcode tags and their
//     operands). Storage grows geometrically, to max(8, 2*capacity), so a
//     run of N writes reallocates O(log N) times. Chunks are built only by
//     appending; Free returns a chunk to the empty state.
//
//   - Disassembler: a read-only, lazy walk over a chunk that decodes one
//     instruction at a time into a trace line.
//
//   - Listing: a materialized trace that can be rendered as text or
//     encoded as JSON or canonical CBOR for tooling.
//
// A trace printed by Fprint looks like this:
//
//	== main ==
//	0000  OP_CONSTANT         1
//	0002  OP_JUMP_IF_FALSE    4 -> 0009
//	0005  OP_RETURN
//
// # Error Classes
//
// Growth failure is fatal. Reading outside code[0:count] panics with an
// *IndexError. An unknown tag met while disassembling is reported as a one
// unit OP_UNKNOWN line and the walk continues with the next unit. A table
// or decoder mismatch panics with ErrInconsistent.
//
// Nothing in this package is safe for concurrent use. A chunk should be
// handed to readers only after its producer has stopped writing.
package bytecode
