// Package ctf is the CTF type-graph query engine: given a decoded image
// handed to it by an external opener, it resolves type identifiers,
// computes size and alignment, iterates aggregate members, formats
// declarations, compares types across containers, and visits a type's
// transitive members. It never opens, decompresses, or mutates an image;
// see package ctfimg for that.
package ctf

import (
	"fmt"
	"sync/atomic"

	"github.com/tinyctf/ctf/pkg/ctf/wire"
)

// DataModel records a target architecture's integer and pointer widths in
// bytes, as required by the geometry engine (§4.E).
type DataModel struct {
	IntWidth     int
	PointerWidth int
}

// ILP32 and LP64 are the two data models the reference design names.
var (
	ILP32 = DataModel{IntWidth: 4, PointerWidth: 4}
	LP64  = DataModel{IntWidth: 4, PointerWidth: 8}
)

// VarRecord is one entry in the variable section: a name and the type it
// names, in the order the opener stored them (conventionally ASCII-sorted
// by name in the image).
type VarRecord struct {
	Name string
	Type uint32
}

// Image is the decoded, already memory-resident input the core consumes
// from an external opener: a version discriminator, a data-model
// descriptor, the type and string sections, the variable records, and an
// optional parent container. The core never reads anything else from the
// opener.
type Image struct {
	Version         wire.Version
	DataModel       DataModel
	TypeSection     []byte
	StrInternal     []byte
	StrExternal     []byte
	Variables       []VarRecord
	FuncInfoSection []byte
	FuncIndex       []int64 // byte offset into FuncInfoSection per symbol index, -1 if absent
	// IsChild marks that the image's own header declares a parent (a
	// nonzero parent name/label in the reference design's ctf_header_t),
	// independent of whether Parent below was actually bound. An opener
	// may know a container is a child before it manages to load (or even
	// locate) the named parent; Parent is nil in that case and parent-space
	// queries fail with NOPARENT rather than panicking on a nil pointer.
	IsChild bool
	Parent  *Container
}

var containerSeq uint64

// Container is a handle to a decoded CTF image plus its side indices: the
// type-record section, the string tables, the variable records, a
// precomputed pointer-index side table, and an out-of-band last-error slot.
type Container struct {
	id        uint64
	version   wire.Version
	child     bool
	parent    *Container
	dm        DataModel
	typeSect  []byte
	typeOff   []int // byte offset of type id i's header, index 0 unused
	strInt    []byte
	strExt    []byte
	variables []VarRecord
	funcInfo  []byte
	funcIndex []int64
	ptrtab    []int64 // index by plain type index, value is pointer-to-it type id (0 = none)
	typemax   int64
	errno     Errno
}

// NewContainer decodes img's type section into a queryable Container. It
// walks every record once to index type-id → byte offset and to build the
// pointer-index side table; it performs no other validation beyond what is
// necessary to refuse a corrupt graph safely.
func NewContainer(img Image) (*Container, error) {
	c := &Container{
		id:        atomic.AddUint64(&containerSeq, 1),
		version:   img.Version,
		parent:    img.Parent,
		child:     img.IsChild || img.Parent != nil,
		dm:        img.DataModel,
		typeSect:  img.TypeSection,
		strInt:    img.StrInternal,
		strExt:    img.StrExternal,
		variables: img.Variables,
		funcInfo:  img.FuncInfoSection,
		funcIndex: img.FuncIndex,
	}

	if err := c.index(); err != nil {
		return nil, err
	}
	c.buildPointerIndex()
	return c, nil
}

// index walks the type section once, recording each type id's header byte
// offset in typeOff (1-based; index 0 is unused, id 0 is reserved invalid).
func (c *Container) index() error {
	c.typeOff = append(c.typeOff, -1) // placeholder for id 0

	off := 0
	for off < len(c.typeSect) {
		h, err := wire.DecodeHeader(c.version, c.typeSect[off:])
		if err != nil {
			return fmt.Errorf("ctf: corrupt type section at byte %d: %w", off, err)
		}
		c.typeOff = append(c.typeOff, off)

		body, err := bodySize(c.version, h)
		if err != nil {
			return fmt.Errorf("ctf: corrupt type section at byte %d: %w", off, err)
		}
		off += h.Increment + body
	}
	c.typemax = int64(len(c.typeOff) - 1)
	return nil
}

// buildPointerIndex scans every type once more, recording each POINTER
// record's type id in the slot for its referent's type index. This mirrors how the reference
// design's opener builds the side table once, ahead of any query. It reads
// straight from typeOff (like TypeIter) rather than through headerAt: the
// loop variable here is always a plain index into this container's own
// type section, never an id to be reinterpreted against the parent/child
// space split.
//
// The stored value is the pointer's real type id, composed with this
// container's own child bit (ctf_type_pointer's
// LCTF_INDEX_TO_TYPE(fp, ntype, fp->ctf_flags & LCTF_CHILD)) — a child
// container's own pointer records must be addressed in child space, not as
// a bare parent-space index.
func (c *Container) buildPointerIndex() {
	c.ptrtab = make([]int64, c.typemax+1)
	for idx := int64(1); idx <= c.typemax; idx++ {
		h, err := wire.DecodeHeader(c.version, c.typeSect[c.typeOff[idx]:])
		if err != nil || h.Kind != wire.KindPointer {
			continue
		}
		ref := int64(h.Ref())
		refIdx := wire.TypeToIndex(c.version, ref)
		if refIdx < 0 || refIdx > c.typemax {
			continue
		}
		ptrID := idx
		if c.child {
			ptrID = wire.ChildID(c.version, idx)
		}
		c.ptrtab[refIdx] = ptrID
	}
}

// bodySize returns the byte length of a record's variable-data trailer
// given its decoded header, so the indexer can skip straight to the next
// record without interpreting kind-specific fields.
func bodySize(v wire.Version, h wire.Header) (int, error) {
	w := 2
	if v == wire.V2 {
		w = 4
	}
	switch h.Kind {
	case wire.KindInteger, wire.KindFloat:
		return 4, nil
	case wire.KindPointer, wire.KindForward, wire.KindTypedef,
		wire.KindVolatile, wire.KindConst, wire.KindRestrict, wire.KindUnknown:
		return 0, nil
	case wire.KindArray:
		return 2*w + 4, nil
	case wire.KindFunction:
		n := int(h.Vlen)
		return n * w, nil
	case wire.KindStruct, wire.KindUnion:
		long := h.Size >= v.StructThreshold()
		one := memberSize(v, long)
		return int(h.Vlen) * one, nil
	case wire.KindEnum:
		return int(h.Vlen) * 8, nil
	default:
		return 0, fmt.Errorf("ctf: unknown kind %d", h.Kind)
	}
}

func memberSize(v wire.Version, long bool) int {
	w := 2
	if v == wire.V2 {
		w = 4
	}
	if !long {
		return 4 + w + w
	}
	if v == wire.V1 {
		return 4 + w + 2 + 8 // name + type + pad + 64-bit offset
	}
	return 4 + w + 8
}

// Errno returns the code from the most recent query that failed on this
// container. Every exported query also returns its own error directly;
// this slot exists for parity with the reference design's last_errno and
// for callers that genuinely want the shared-state behavior.
func (c *Container) Errno() Errno {
	return c.errno
}

// TypeIsParent reports whether id addresses parent-space for this
// container's version.
func (c *Container) TypeIsParent(id int64) bool {
	return wire.IsParent(c.version, id)
}

// TypeIsChild reports whether id addresses child-space for this
// container's version.
func (c *Container) TypeIsChild(id int64) bool {
	return wire.IsChild(c.version, id)
}

// MaxType returns the largest type index defined directly in this container
// (not counting a parent's types), which is also the number of its own type
// records. In a child container this is a plain index, not a child-space id.
func (c *Container) MaxType() int64 {
	return c.typemax
}

// Version reports the on-disk format version this container was decoded
// from.
func (c *Container) Version() wire.Version {
	return c.version
}
