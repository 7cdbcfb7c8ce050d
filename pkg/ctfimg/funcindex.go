package ctfimg

import "github.com/tinyctf/ctf/pkg/ctf/wire"

// buildFuncIndex walks the function-info section once, recording the byte
// offset of each entry in turn. The reference format stores one entry per
// non-SHN_UNDEF symbol-table slot (with zero-padding for symbols lacking
// type data); correlating entries back to actual symbol indices requires
// the object's symbol table, which this package does not parse. The index
// built here is therefore positional — FuncIndex[i] is the i-th entry
// found in the section — which is enough for package ctf's FuncInfo/
// FuncArgs to decode an entry once a caller has a symbol index in hand
// from its own symbol-table reader.
func buildFuncIndex(v wire.Version, buf []byte) []int64 {
	if buf == nil {
		return nil
	}
	w := wire.IDWidth(v)

	var index []int64
	off := 0
	for off < len(buf) {
		fi, consumed, err := wire.DecodeFuncInfo(v, buf[off:])
		if err != nil {
			break
		}
		index = append(index, int64(off))
		off += consumed + int(fi.Vlen)*w
	}
	return index
}
