// Package wire defines the on-disk CTF record layouts and the version
// adapter that gives the query engine uniform accessors over the v1 and v2
// encodings.
package wire

// Version identifies a CTF on-disk format revision. The two versions differ
// in info-word bit widths, type-id index width, and the small/long member
// record threshold.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

// Kind is the type-record discriminator packed into the info word.
type Kind uint32

const (
	KindUnknown  Kind = 0
	KindInteger  Kind = 1
	KindFloat    Kind = 2
	KindPointer  Kind = 3
	KindArray    Kind = 4
	KindFunction Kind = 5
	KindStruct   Kind = 6
	KindUnion    Kind = 7
	KindEnum     Kind = 8
	KindForward  Kind = 9
	KindTypedef  Kind = 10
	KindVolatile Kind = 11
	KindConst    Kind = 12
	KindRestrict Kind = 13
	KindMax      Kind = 63
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindForward:
		return "forward"
	case KindTypedef:
		return "typedef"
	case KindVolatile:
		return "volatile"
	case KindConst:
		return "const"
	case KindRestrict:
		return "restrict"
	default:
		return "invalid"
	}
}

// Integer encoding flags (CTF_INT_* in the reference implementation).
const (
	IntSigned  = 0x01
	IntChar    = 0x02
	IntBool    = 0x04
	IntVarargs = 0x08
)

// Float encodings (CTF_FP_* in the reference implementation).
const (
	FPSingle   = 1
	FPDouble   = 2
	FPCplx     = 3
	FPDCplx    = 4
	FPLDCplx   = 5
	FPLDouble  = 6
	FPIntrvl   = 7
	FPDIntrvl  = 8
	FPLDIntrvl = 9
	FPImagry   = 10
	FPDImagry  = 11
	FPLDImagry = 12
)

// Per-version limits. MaxPType is the largest type index addressable in
// parent space; ids greater than it are split into child space.
const (
	maxPTypeV1 = 0x7FFF
	maxPTypeV2 = 0x7FFFFFFF

	maxVlenV1 = 1023
	maxVlenV2 = 16777215

	lsizeSentV1 = 0xFFFF
	lsizeSentV2 = 0xFFFFFFFF

	// Long member-form threshold: containing struct/union byte size at or
	// above which member bit-offsets are split into two 32-bit halves.
	structThreshV1 = 8192
	structThreshV2 = 536870912
)

// MaxPType returns the largest parent-space type id for the version.
func (v Version) MaxPType() int64 {
	if v == V1 {
		return maxPTypeV1
	}
	return maxPTypeV2
}

// MaxVlen returns the largest representable vlen for the version.
func (v Version) MaxVlen() uint32 {
	if v == V1 {
		return maxVlenV1
	}
	return maxVlenV2
}

// LSizeSentinel returns the inline-size value that signals the long size
// form (two trailing 32-bit halves carry the real, 64-bit size).
func (v Version) LSizeSentinel() uint64 {
	if v == V1 {
		return lsizeSentV1
	}
	return lsizeSentV2
}

// StructThreshold returns the containing-aggregate byte size at which
// member records switch from small form to long form.
func (v Version) StructThreshold() uint64 {
	if v == V1 {
		return structThreshV1
	}
	return structThreshV2
}

// IsParentID reports whether id falls in parent-space for the version.
func (v Version) IsParentID(id int64) bool {
	return id <= v.MaxPType()
}

// CharEncoding composes the integer variant word's encoding byte for a
// native char, whose signedness is target-dependent.
func CharEncoding(signedChar bool) uint8 {
	enc := uint8(IntChar)
	if signedChar {
		enc |= IntSigned
	}
	return enc
}
