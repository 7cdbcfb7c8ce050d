package ctfimg

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"

	"github.com/tinyctf/ctf/pkg/ctf"
	"github.com/tinyctf/ctf/pkg/ctf/wire"
)

// Opened bundles the container produced from a file with the memory
// mapping backing it, so callers can release the mapping when done.
type Opened struct {
	Container *ctf.Container
	mapping   mmap.MMap
}

// Close unmaps the underlying image. It is a no-op if the Opened holds no
// mapping (e.g. one wrapped around a container from OpenELFSection or
// OpenBytes). A compressed image opened by Open keeps its mapping, which
// Close releases.
func (o *Opened) Close() error {
	if o.mapping == nil {
		return nil
	}
	return o.mapping.Unmap()
}

// Open memory-maps path and decodes it as a standalone (parentless) CTF
// image. Host endianness is assumed little-endian, matching every wire
// layout this package decodes; per the reference design's non-goals, a
// big-endian image is rejected rather than byte-swapped.
func Open(path string) (*Opened, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ctfimg: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("ctfimg: mmap %s: %w", path, err)
	}

	// Query access is id-indexed rather than sequential, so advise the
	// kernel accordingly once the mapping is established. This is
	// advisory only; a failure here (e.g. an unsupported platform) does
	// not prevent the image from being used.
	_ = unix.Madvise(m, unix.MADV_RANDOM)

	c, err := decode([]byte(m), nil)
	if err != nil {
		m.Unmap()
		return nil, err
	}
	return &Opened{Container: c, mapping: m}, nil
}

// OpenChild decodes path as a CTF image parented against parent. Types
// whose id falls in parent space are resolved against parent transparently
// by the core; this function only wires the weak parent reference.
func OpenChild(path string, parent *ctf.Container) (*Opened, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ctfimg: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("ctfimg: mmap %s: %w", path, err)
	}

	_ = unix.Madvise(m, unix.MADV_RANDOM)

	c, err := decode([]byte(m), parent)
	if err != nil {
		m.Unmap()
		return nil, err
	}
	return &Opened{Container: c, mapping: m}, nil
}

// OpenBytes decodes an already-resident image, such as one extracted from
// an ELF section by OpenELFSection. It does not own or unmap buf.
func OpenBytes(buf []byte, parent *ctf.Container) (*ctf.Container, error) {
	return decode(buf, parent)
}

func decode(buf []byte, parent *ctf.Container) (*ctf.Container, error) {
	if len(buf) < binary.Size(uint16(0))+2 {
		return nil, fmt.Errorf("ctfimg: image too short")
	}
	// Reject big-endian images outright: the preamble's magic number
	// would decode to 0xf2df instead of 0xdff2 under the wrong byte order,
	// and this package performs no endian conversion (non-goal).
	if binary.BigEndian.Uint16(buf[0:2]) == magic {
		return nil, fmt.Errorf("ctfimg: image is big-endian, host is little-endian")
	}

	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	body := buf[headerSize:]
	if h.compress {
		body, err = inflate(body)
		if err != nil {
			return nil, fmt.Errorf("ctfimg: decompress: %w", err)
		}
	}

	section := func(start, end uint32) []byte {
		if start > end || int(end) > len(body) {
			return nil
		}
		return body[start:end]
	}

	labels := section(h.lblOff, h.objtOff)
	varSection := section(h.varOff, h.typeOff)
	funcSection := section(h.funcOff, h.varOff)
	typeSection := section(h.typeOff, h.strOff)
	strSection := section(h.strOff, h.strOff+h.strLen)
	_ = labels // sliced out but never read; the core has no label query API

	wv := h.wireVersion()

	img := ctf.Image{
		Version:     wv,
		DataModel:   pickDataModel(),
		TypeSection: typeSection,
		StrInternal: strSection,
		IsChild:     h.parName != 0 || h.parLabel != 0,
		Parent:      parent,
	}

	// Variable records name their type by reference into the internal
	// string table; resolve the names now so ctf.Container only ever
	// needs the already-materialized name.
	for _, ve := range decodeVarSection(varSection) {
		img.Variables = append(img.Variables, ctf.VarRecord{
			Name: strptrRaw(strSection, ve.name),
			Type: ve.typ,
		})
	}

	img.FuncInfoSection = funcSection
	img.FuncIndex = buildFuncIndex(wv, funcSection)

	return ctf.NewContainer(img)
}

func inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// strptrRaw resolves a name reference against the internal string table
// directly; used only while building opener-side structures (the variable
// section) before a Container exists to ask.
func strptrRaw(strs []byte, ref uint32) string {
	_, offset := wire.SplitNameRef(ref)
	if strs == nil || uint32(len(strs)) <= offset {
		return "(null)"
	}
	end := offset
	for end < uint32(len(strs)) && strs[end] != 0 {
		end++
	}
	return string(strs[offset:end])
}

// pickDataModel reports the data model of the running process. A real
// opener would instead derive this from the object's own ELF class; this
// package only ever sees standalone or test-constructed images, so it
// defaults to the host model.
func pickDataModel() ctf.DataModel {
	if runtimeIs64Bit {
		return ctf.LP64
	}
	return ctf.ILP32
}

const runtimeIs64Bit = ^uint(0)>>32 != 0
