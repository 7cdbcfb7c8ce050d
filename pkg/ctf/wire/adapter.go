package wire

import (
	"encoding/binary"
	"fmt"
)

// Header is the version-neutral rendering of a type record's common prefix:
// a name reference, an info word, and the size-or-type union slot. Which
// interpretation of SizeOrType applies (a byte size or a referenced type id)
// is a function of Kind, decided by the caller.
type Header struct {
	NameRef   uint32
	Kind      Kind
	IsRoot    bool
	Vlen      uint32
	SizeOrType uint64
	LongSize  bool
	Size      uint64 // the long-form size when LongSize is set, else SizeOrType for sized kinds; 0 for reference kinds
	Increment int    // byte offset from the start of the header to variable data
}

func idWidth(v Version) int {
	if v == V1 {
		return 2
	}
	return 4
}

// IDWidth is the on-disk byte width of a type-id field for the version,
// used by callers (such as the opener) that need to walk variable-length
// trailers without decoding them.
func IDWidth(v Version) int {
	return idWidth(v)
}

func infoWidth(v Version) int {
	if v == V1 {
		return 2
	}
	return 4
}

// shortHeaderSize returns the byte length of the common prefix before any
// long-size extension: name ref (4) + info word + size-or-type union.
func shortHeaderSize(v Version) int {
	return 4 + infoWidth(v) + idWidth(v)
}

func readUint(buf []byte, width int) uint64 {
	switch width {
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf))
	default:
		panic("wire: unsupported field width")
	}
}

// DecodeHeader decodes the common type-record prefix at the start of buf.
func DecodeHeader(v Version, buf []byte) (Header, error) {
	short := shortHeaderSize(v)
	if len(buf) < short {
		return Header{}, fmt.Errorf("wire: short type header needs %d bytes, got %d", short, len(buf))
	}

	var h Header
	h.NameRef = binary.LittleEndian.Uint32(buf[0:4])

	off := 4
	info := readUint(buf[off:off+infoWidth(v)], infoWidth(v))
	off += infoWidth(v)

	if v == V1 {
		h.Kind = Kind((info >> 11) & 0x1F)
		h.IsRoot = (info>>10)&0x1 != 0
		h.Vlen = uint32(info & 0x3FF)
	} else {
		h.Kind = Kind((info >> 26) & 0x3F)
		h.IsRoot = (info>>25)&0x1 != 0
		h.Vlen = uint32(info & 0x1FFFFFF)
	}

	h.SizeOrType = readUint(buf[off:off+idWidth(v)], idWidth(v))
	off += idWidth(v)
	h.Increment = off

	if h.SizeOrType == v.LSizeSentinel() {
		if len(buf) < off+8 {
			return Header{}, fmt.Errorf("wire: long type header needs %d more bytes", off+8-len(buf))
		}
		hi := binary.LittleEndian.Uint32(buf[off : off+4])
		lo := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		h.LongSize = true
		h.Size = uint64(hi)<<32 | uint64(lo)
		h.Increment = off + 8
	} else if isSizedKind(h.Kind) {
		h.Size = h.SizeOrType
	}

	return h, nil
}

// isSizedKind reports whether a kind uses the union slot as a byte size
// (true) or as a referenced type id (false).
func isSizedKind(k Kind) bool {
	switch k {
	case KindInteger, KindFloat, KindArray, KindStruct, KindUnion, KindEnum:
		return true
	default:
		return false
	}
}

// Ref returns the type id named by the header's union slot, for kinds where
// that slot holds a reference rather than a size (POINTER, FUNCTION return,
// TYPEDEF/VOLATILE/CONST/RESTRICT referent).
func (h Header) Ref() uint32 {
	return uint32(h.SizeOrType)
}

// IntFloatData is the unpacked integer/float variant word.
type IntFloatData struct {
	Encoding uint8
	Offset   uint8
	Bits     uint16
}

// DecodeIntFloatData unpacks the 32-bit variant word following an
// INTEGER or FLOAT header.
func DecodeIntFloatData(word uint32) IntFloatData {
	return IntFloatData{
		Encoding: uint8(word >> 24),
		Offset:   uint8(word >> 16),
		Bits:     uint16(word),
	}
}

// EncodeIntFloatData packs a variant word, used by synthetic-image test
// fixtures.
func EncodeIntFloatData(d IntFloatData) uint32 {
	return uint32(d.Encoding)<<24 | uint32(d.Offset)<<16 | uint32(d.Bits)
}

// ArrayInfo is the unpacked array descriptor.
type ArrayInfo struct {
	Contents uint32
	Index    uint32
	Nelems   uint32
}

func arrayRecordSize(v Version) int {
	return 2*idWidth(v) + 4
}

// DecodeArray decodes an array descriptor at the start of buf.
func DecodeArray(v Version, buf []byte) (ArrayInfo, error) {
	need := arrayRecordSize(v)
	if len(buf) < need {
		return ArrayInfo{}, fmt.Errorf("wire: array descriptor needs %d bytes, got %d", need, len(buf))
	}
	w := idWidth(v)
	var a ArrayInfo
	a.Contents = uint32(readUint(buf[0:w], w))
	a.Index = uint32(readUint(buf[w:2*w], w))
	a.Nelems = binary.LittleEndian.Uint32(buf[2*w : 2*w+4])
	return a, nil
}

// EnumPair is one {name, value} entry in an enum's trailer.
type EnumPair struct {
	NameRef uint32
	Value   int32
}

const enumPairSize = 8

// DecodeEnumPair decodes one enum trailer entry at the start of buf.
func DecodeEnumPair(buf []byte) (EnumPair, error) {
	if len(buf) < enumPairSize {
		return EnumPair{}, fmt.Errorf("wire: enum pair needs %d bytes, got %d", enumPairSize, len(buf))
	}
	return EnumPair{
		NameRef: binary.LittleEndian.Uint32(buf[0:4]),
		Value:   int32(binary.LittleEndian.Uint32(buf[4:8])),
	}, nil
}

// Member is the unpacked form of one struct/union member record, regardless
// of whether it was stored small or long on disk.
type Member struct {
	NameRef   uint32
	Type      uint32
	BitOffset uint64
}

// memberRecordSize returns the on-disk size of one member record. Long-form
// members widen the bit-offset to two 32-bit halves; v1 additionally pads
// the (2-byte) type field out to a 4-byte boundary before that split so the
// halves stay aligned.
func memberRecordSize(v Version, long bool) int {
	w := idWidth(v)
	if !long {
		return 4 + w + w
	}
	if v == V1 {
		return 4 + w + 2 + 8 // name + type + pad + 64-bit offset
	}
	return 4 + w + 8
}

// DecodeMember decodes one member record at the start of buf. Field order
// differs not just in width but in layout between the short and long forms
// of each version (the long forms reorder fields to improve padding), so
// each of the four shapes is decoded explicitly rather than by a shared
// offset walk.
func DecodeMember(v Version, long bool, buf []byte) (Member, int, error) {
	size := memberRecordSize(v, long)
	if len(buf) < size {
		return Member{}, 0, fmt.Errorf("wire: member record needs %d bytes, got %d", size, len(buf))
	}

	var m Member
	m.NameRef = binary.LittleEndian.Uint32(buf[0:4])

	switch {
	case !long && v == V1: // ctf_member_v1_t: name, type(u16), offset(u16)
		m.Type = uint32(binary.LittleEndian.Uint16(buf[4:6]))
		m.BitOffset = uint64(binary.LittleEndian.Uint16(buf[6:8]))

	case !long && v == V2: // ctf_member_t: name, offset(u32), type(u32)
		m.BitOffset = uint64(binary.LittleEndian.Uint32(buf[4:8]))
		m.Type = binary.LittleEndian.Uint32(buf[8:12])

	case long && v == V1: // ctf_lmember_v1_t: name, type(u16), pad(u16), offsethi, offsetlo
		m.Type = uint32(binary.LittleEndian.Uint16(buf[4:6]))
		hi := binary.LittleEndian.Uint32(buf[8:12])
		lo := binary.LittleEndian.Uint32(buf[12:16])
		m.BitOffset = uint64(hi)<<32 | uint64(lo)

	default: // long && v == V2: ctf_lmember_t: name, offsethi, type, offsetlo
		hi := binary.LittleEndian.Uint32(buf[4:8])
		m.Type = binary.LittleEndian.Uint32(buf[8:12])
		lo := binary.LittleEndian.Uint32(buf[12:16])
		m.BitOffset = uint64(hi)<<32 | uint64(lo)
	}

	return m, size, nil
}

// FuncInfo is the unpacked function-info section entry for one symbol.
type FuncInfo struct {
	Kind    Kind
	Vararg  bool
	Vlen    uint32
	Return  uint32
}

// funcInfoWordWidth matches the header's info-word width for the version,
// since a function-info entry reuses the same kind/vlen packing.
func funcInfoWordWidth(v Version) int {
	return infoWidth(v)
}

// DecodeFuncInfo decodes the {info, return} pair at the start of a
// function-info section entry.
func DecodeFuncInfo(v Version, buf []byte) (FuncInfo, int, error) {
	iw := funcInfoWordWidth(v)
	w := idWidth(v)
	need := iw + w
	if len(buf) < need {
		return FuncInfo{}, 0, fmt.Errorf("wire: func info entry needs %d bytes, got %d", need, len(buf))
	}
	info := readUint(buf[0:iw], iw)
	var fi FuncInfo
	if v == V1 {
		fi.Kind = Kind((info >> 11) & 0x1F)
		fi.Vlen = uint32(info & 0x3FF)
	} else {
		fi.Kind = Kind((info >> 26) & 0x3F)
		fi.Vlen = uint32(info & 0x1FFFFFF)
	}
	fi.Return = uint32(readUint(buf[iw:iw+w], w))
	return fi, need, nil
}

// DecodeFuncArgs decodes up to n argument type ids following a function-info
// entry's {info, return} pair. A trailing zero id marks a vararg sentinel
// and is not counted as an argument.
func DecodeFuncArgs(v Version, buf []byte, n uint32) ([]uint32, bool, error) {
	w := idWidth(v)
	need := int(n) * w
	if len(buf) < need {
		return nil, false, fmt.Errorf("wire: func args need %d bytes, got %d", need, len(buf))
	}
	args := make([]uint32, 0, n)
	vararg := false
	for i := uint32(0); i < n; i++ {
		id := uint32(readUint(buf[int(i)*w:int(i)*w+w], w))
		if i == n-1 && id == 0 {
			vararg = true
			continue
		}
		args = append(args, id)
	}
	return args, vararg, nil
}

// TypeToIndex strips the parent/child bit, returning the plain index used
// to address a type section.
func TypeToIndex(v Version, id int64) int64 {
	if IsChild(v, id) {
		return id - (v.MaxPType() + 1)
	}
	return id
}

// IsChild reports whether id lies in child space for the version.
func IsChild(v Version, id int64) bool {
	return id > v.MaxPType()
}

// IsParent reports whether id lies in parent space for the version.
func IsParent(v Version, id int64) bool {
	return !IsChild(v, id)
}

// ChildID composes a child-space id from a plain index.
func ChildID(v Version, index int64) int64 {
	return index + v.MaxPType() + 1
}

// SplitNameRef splits a 32-bit name reference into its string-table id (0
// internal, 1 external) and byte offset.
func SplitNameRef(ref uint32) (table int, offset uint32) {
	if ref&0x80000000 != 0 {
		table = 1
	}
	return table, ref & 0x7FFFFFFF
}
