// Package ctfimg is the external collaborator that opens a CTF image —
// from a file, a memory map, or an ELF section — decompresses it if
// needed, and hands the decoded sections to package ctf as a ctf.Image.
// None of this is part of the query engine core; it is the plumbing the
// core explicitly leaves to an opener.
package ctfimg

import (
	"encoding/binary"
	"fmt"

	"github.com/tinyctf/ctf/pkg/ctf/wire"
)

const (
	magic = 0xdff2

	versionV1 = 1
	versionV2 = 3 // on-disk version byte for the v2 format

	flagCompress = 0x1

	headerSize = 40

	maxPTypeV1 = 0x7FFF
	maxPTypeV2 = 0x7FFFFFFF
)

// header is the decoded ctf_header_t preamble plus section offset table.
// Every offset is relative to the byte immediately following the header.
type header struct {
	version  int
	compress bool
	parLabel uint32
	parName  uint32
	lblOff   uint32
	objtOff  uint32
	funcOff  uint32
	varOff   uint32
	typeOff  uint32
	strOff   uint32
	strLen   uint32
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("ctfimg: image too short for header: %d bytes", len(buf))
	}
	m := binary.LittleEndian.Uint16(buf[0:2])
	if m != magic {
		return header{}, fmt.Errorf("ctfimg: bad magic 0x%x", m)
	}
	ver := int(buf[2])
	if ver != versionV1 && ver != versionV2 {
		return header{}, fmt.Errorf("ctfimg: unsupported version %d", ver)
	}
	flags := buf[3]

	h := header{
		version:  ver,
		compress: flags&flagCompress != 0,
		parLabel: binary.LittleEndian.Uint32(buf[4:8]),
		parName:  binary.LittleEndian.Uint32(buf[8:12]),
		lblOff:   binary.LittleEndian.Uint32(buf[12:16]),
		objtOff:  binary.LittleEndian.Uint32(buf[16:20]),
		funcOff:  binary.LittleEndian.Uint32(buf[20:24]),
		varOff:   binary.LittleEndian.Uint32(buf[24:28]),
		typeOff:  binary.LittleEndian.Uint32(buf[28:32]),
		strOff:   binary.LittleEndian.Uint32(buf[32:36]),
		strLen:   binary.LittleEndian.Uint32(buf[36:40]),
	}
	return h, nil
}

// wireVersion maps the on-disk header version byte to the adapter's
// Version, which only ever distinguishes the two record layouts.
func (h header) wireVersion() wire.Version {
	if h.version == versionV1 {
		return wire.V1
	}
	return wire.V2
}

// varEntrySize and lblEntrySize are both {uint32, uint32} pairs on disk,
// version-independent.
const (
	varEntrySize = 8
	lblEntrySize = 8
)

func decodeVarSection(buf []byte) []varEntry {
	var out []varEntry
	for off := 0; off+varEntrySize <= len(buf); off += varEntrySize {
		out = append(out, varEntry{
			name: binary.LittleEndian.Uint32(buf[off : off+4]),
			typ:  binary.LittleEndian.Uint32(buf[off+4 : off+8]),
		})
	}
	return out
}

type varEntry struct {
	name uint32
	typ  uint32
}
