package codegen

import (
	"fmt"

	"github.com/mahanfr/nmet/internal/operand"
)

// Relocate is the relocation pass: it walks the instruction list
// exactly once, in order, maintaining a running byte cursor, finalizing
// every instruction's byte span and emitting RELA entries for
// references that must survive into the linked object.
//
// It must run after Peephole, and exactly once.
func (b *Buffer) Relocate() error {
	cursor := 0
	for i := range b.items {
		it := &b.items[i]
		if it.isLabel {
			continue
		}
		instrLen := len(it.instr.Bytes)

		if target, ok := labelOperand(it); ok {
			sym, ok := b.Symbols[target]
			if !ok {
				return fmt.Errorf("relocate: undefined label %q", target)
			}
			disp := sym.Offset - (cursor + instrLen)
			patchLE32(it.instr.Bytes, it.placeholder, disp)
		} else if target, ok := relaOperand(it); ok {
			sym, ok := b.Symbols[target]
			if !ok {
				return fmt.Errorf("relocate: undefined symbol %q", target)
			}
			switch sym.Kind {
			case TextSec:
				// A CALL to a function that turned out to be defined
				// locally: resolve the same way a Label would, no RELA
				// entry needed.
				disp := sym.Offset - (cursor + instrLen)
				patchLE32(it.instr.Bytes, it.placeholder, disp)
			case DataSec, BssSec:
				// Addend is the item's index within its section, not its
				// byte offset; these coincide only for each section's
				// first item. A second+ .data/.bss item referenced this
				// way would need its ByteOffset here instead.
				b.Relocs = append(b.Relocs, RelaEntry{
					Offset: cursor + it.placeholder, Type: R_X86_64_32S,
					Addend: int64(sym.Index), SymbolName: target, SymbolKind: sym.Kind,
				})
			case Ffi:
				b.Relocs = append(b.Relocs, RelaEntry{
					Offset: cursor + it.placeholder, Type: R_X86_64_PC32,
					Addend: -4, SymbolName: target, SymbolKind: sym.Kind,
				})
			default:
				return fmt.Errorf("relocate: symbol %q has unsupported kind %v for a Rela reference", target, sym.Kind)
			}
		}

		cursor += instrLen
	}
	return nil
}

func labelOperand(it *item) (string, bool) {
	for _, op := range it.instr.Operands {
		if op.Kind == operand.KindLabel {
			return op.Name, true
		}
	}
	return "", false
}

func relaOperand(it *item) (string, bool) {
	for _, op := range it.instr.Operands {
		if op.Kind == operand.KindRela {
			return op.Name, true
		}
	}
	return "", false
}

func patchLE32(bytes []byte, at int, v int) {
	u := uint32(int32(v))
	bytes[at] = byte(u)
	bytes[at+1] = byte(u >> 8)
	bytes[at+2] = byte(u >> 16)
	bytes[at+3] = byte(u >> 24)
}

// TextBytes concatenates the finalized instruction stream. Call only
// after Relocate has returned successfully.
func (b *Buffer) TextBytes() []byte {
	out := make([]byte, 0, b.cursor)
	for _, it := range b.items {
		out = append(out, it.instr.Bytes...)
	}
	return out
}
