package ctf

import "github.com/tinyctf/ctf/pkg/ctf/wire"

// rawMembers decodes every member record of a STRUCT/UNION header already
// known to belong to owner, in declaration order (record order in the
// image).
func (owner *Container) rawMembers(id int64, h wire.Header) ([]wire.Member, error) {
	body, err := owner.bodyAt(id, h)
	if err != nil {
		return nil, err
	}
	long := h.Size >= owner.version.StructThreshold()

	members := make([]wire.Member, 0, h.Vlen)
	off := 0
	for i := uint32(0); i < h.Vlen; i++ {
		m, n, err := wire.DecodeMember(owner.version, long, body[off:])
		if err != nil {
			return nil, owner.newErr(ECORRUPT, id)
		}
		members = append(members, m)
		off += n
	}
	return members, nil
}

func (owner *Container) arrayInfoAt(id int64, h wire.Header) (wire.ArrayInfo, error) {
	body, err := owner.bodyAt(id, h)
	if err != nil {
		return wire.ArrayInfo{}, err
	}
	a, err := wire.DecodeArray(owner.version, body)
	if err != nil {
		return wire.ArrayInfo{}, owner.newErr(ECORRUPT, id)
	}
	return a, nil
}

func (owner *Container) enumPairsAt(id int64, h wire.Header) ([]wire.EnumPair, error) {
	body, err := owner.bodyAt(id, h)
	if err != nil {
		return nil, err
	}
	pairs := make([]wire.EnumPair, 0, h.Vlen)
	off := 0
	for i := uint32(0); i < h.Vlen; i++ {
		p, err := wire.DecodeEnumPair(body[off:])
		if err != nil {
			return nil, owner.newErr(ECORRUPT, id)
		}
		pairs = append(pairs, p)
		off += 8
	}
	return pairs, nil
}

// sourceOf resolves id and returns its decoded header plus owning
// container, recording any failure on c (the call's originator).
func (c *Container) sourceOf(id int64) (*Container, int64, wire.Header, error) {
	owner, rid, err := c.Resolve(id)
	if err != nil {
		return nil, 0, wire.Header{}, err
	}
	h, _, err := owner.headerAt(rid)
	if err != nil {
		return nil, 0, wire.Header{}, c.newErr(ErrnoOf(err), id)
	}
	return owner, rid, h, nil
}

// TypeKind returns id's own record kind, unresolved: a TYPEDEF stays
// TYPEDEF, it is not stripped down to its base kind.
func (c *Container) TypeKind(id int64) (wire.Kind, error) {
	h, _, err := c.headerAt(id)
	if err != nil {
		return wire.KindUnknown, err
	}
	return h.Kind, nil
}

// MemberIterFunc is the callback shape for MemberIter: returning any
// nonzero value aborts iteration and that value is propagated verbatim.
type MemberIterFunc func(name string, memberType uint32, bitOffset uint64, ctx any) int

// MemberIter resolves id, rejects non-aggregate kinds, and calls fn for
// each member in declaration order.
func (c *Container) MemberIter(id int64, fn MemberIterFunc, ctx any) (int, error) {
	owner, rid, h, err := c.sourceOf(id)
	if err != nil {
		return 0, err
	}
	if h.Kind != wire.KindStruct && h.Kind != wire.KindUnion {
		return 0, c.newErr(ENOTSOU, id)
	}
	members, err := owner.rawMembers(rid, h)
	if err != nil {
		return 0, c.newErr(ErrnoOf(err), id)
	}
	for _, m := range members {
		if rv := fn(owner.strptr(m.NameRef), m.Type, m.BitOffset, ctx); rv != 0 {
			return rv, nil
		}
	}
	return 0, nil
}

// MemberInfo linearly scans id's members for name, returning its type and
// bit offset.
func (c *Container) MemberInfo(id int64, name string) (uint32, uint64, error) {
	owner, rid, h, err := c.sourceOf(id)
	if err != nil {
		return 0, 0, err
	}
	if h.Kind != wire.KindStruct && h.Kind != wire.KindUnion {
		return 0, 0, c.newErr(ENOTSOU, id)
	}
	members, err := owner.rawMembers(rid, h)
	if err != nil {
		return 0, 0, c.newErr(ErrnoOf(err), id)
	}
	for _, m := range members {
		if owner.strptr(m.NameRef) == name {
			return m.Type, m.BitOffset, nil
		}
	}
	return 0, 0, c.newErr(ENOMEMBNAM, id)
}

// EnumIterFunc is the callback shape for EnumIter.
type EnumIterFunc func(name string, value int32, ctx any) int

// EnumIter resolves id, rejects non-ENUM kinds, and calls fn for each
// {name, value} pair in declaration order.
func (c *Container) EnumIter(id int64, fn EnumIterFunc, ctx any) (int, error) {
	owner, rid, h, err := c.sourceOf(id)
	if err != nil {
		return 0, err
	}
	if h.Kind != wire.KindEnum {
		return 0, c.newErr(ENOTENUM, id)
	}
	pairs, err := owner.enumPairsAt(rid, h)
	if err != nil {
		return 0, c.newErr(ErrnoOf(err), id)
	}
	for _, p := range pairs {
		if rv := fn(owner.strptr(p.NameRef), p.Value, ctx); rv != 0 {
			return rv, nil
		}
	}
	return 0, nil
}

// EnumName returns the first enumerator whose value matches, per C
// semantics on duplicate values.
func (c *Container) EnumName(id int64, value int32) (string, error) {
	owner, rid, h, err := c.sourceOf(id)
	if err != nil {
		return "", err
	}
	if h.Kind != wire.KindEnum {
		return "", c.newErr(ENOTENUM, id)
	}
	pairs, err := owner.enumPairsAt(rid, h)
	if err != nil {
		return "", c.newErr(ErrnoOf(err), id)
	}
	for _, p := range pairs {
		if p.Value == value {
			return owner.strptr(p.NameRef), nil
		}
	}
	return "", c.newErr(ENOENUMNAM, id)
}

// EnumValue returns the first enumerator whose name matches, per C
// semantics on duplicate names.
func (c *Container) EnumValue(id int64, name string) (int32, error) {
	owner, rid, h, err := c.sourceOf(id)
	if err != nil {
		return 0, err
	}
	if h.Kind != wire.KindEnum {
		return 0, c.newErr(ENOTENUM, id)
	}
	pairs, err := owner.enumPairsAt(rid, h)
	if err != nil {
		return 0, c.newErr(ErrnoOf(err), id)
	}
	for _, p := range pairs {
		if owner.strptr(p.NameRef) == name {
			return p.Value, nil
		}
	}
	return 0, c.newErr(ENOENUMNAM, id)
}

// ArrayInfo reports an array type's contents type, index type, and declared
// element count. The record does not encode element byte size; callers
// wanting total size should use Size, or multiply Size(contents) themselves.
func (c *Container) ArrayInfo(id int64) (wire.ArrayInfo, error) {
	h, owner, err := c.headerAt(id)
	if err != nil {
		return wire.ArrayInfo{}, err
	}
	if h.Kind != wire.KindArray {
		return wire.ArrayInfo{}, c.newErr(ENOTARRAY, id)
	}
	a, err := owner.arrayInfoAt(id, h)
	if err != nil {
		return wire.ArrayInfo{}, c.newErr(ErrnoOf(err), id)
	}
	return a, nil
}

// TypeEncoding unpacks the integer/float variant word for an INTEGER or
// FLOAT type. This is a raw-kind check, not a resolve-through operation: a
// typedef to an INTEGER is itself a TYPEDEF, not an INTEGER.
func (c *Container) TypeEncoding(id int64) (wire.IntFloatData, error) {
	h, owner, err := c.headerAt(id)
	if err != nil {
		return wire.IntFloatData{}, err
	}
	if h.Kind != wire.KindInteger && h.Kind != wire.KindFloat {
		return wire.IntFloatData{}, c.newErr(ENOTINTFP, id)
	}
	body, err := owner.bodyAt(id, h)
	if err != nil || len(body) < 4 {
		return wire.IntFloatData{}, c.newErr(ECORRUPT, id)
	}
	word := uint32(body[0]) | uint32(body[1])<<8 | uint32(body[2])<<16 | uint32(body[3])<<24
	return wire.DecodeIntFloatData(word), nil
}

// TypeReference returns the immediate referent of a POINTER, TYPEDEF,
// VOLATILE, CONST, or RESTRICT type. This is a raw lookup, not
// resolve-through: resolve strips exactly these kinds, so resolving first
// would make this operation unable to ever observe one of them.
func (c *Container) TypeReference(id int64) (uint32, error) {
	h, _, err := c.headerAt(id)
	if err != nil {
		return 0, err
	}
	switch h.Kind {
	case wire.KindPointer, wire.KindTypedef, wire.KindVolatile, wire.KindConst, wire.KindRestrict:
		return h.Ref(), nil
	default:
		return 0, c.newErr(ENOTREF, id)
	}
}

// TypeIterFunc is the callback shape for VariableIter: a variable's name and
// the id of its type.
type TypeIterFunc func(name string, id uint32, ctx any) int

// TypeIter visits every root-visible type defined directly in c, in
// ascending index order. In a child container the id passed to fn carries
// the child bit, so it addresses the child's own record.
func (c *Container) TypeIter(fn func(id uint32, ctx any) int, ctx any) (int, error) {
	for idx := int64(1); idx <= c.typemax; idx++ {
		h, err := wire.DecodeHeader(c.version, c.typeSect[c.typeOff[idx]:])
		if err != nil {
			return 0, c.newErr(ECORRUPT, idx)
		}
		if !h.IsRoot {
			continue
		}
		tid := idx
		if c.child {
			tid = wire.ChildID(c.version, idx)
		}
		if rv := fn(uint32(tid), ctx); rv != 0 {
			return rv, nil
		}
	}
	return 0, nil
}

// VariableIter visits every variable record. If c is a child with no parent
// bound, it fails with NOPARENT without calling fn.
func (c *Container) VariableIter(fn TypeIterFunc, ctx any) (int, error) {
	if c.child && c.parent == nil {
		return 0, c.newErr(ENOPARENT, 0)
	}
	for _, v := range c.variables {
		if rv := fn(v.Name, v.Type, ctx); rv != 0 {
			return rv, nil
		}
	}
	return 0, nil
}

// FuncInfo decodes the function-info section entry for symIdx.
func (c *Container) FuncInfo(symIdx int) (wire.FuncInfo, error) {
	if symIdx < 0 || symIdx >= len(c.funcIndex) || c.funcIndex[symIdx] < 0 {
		return wire.FuncInfo{}, c.newErr(ENOTYPE, int64(symIdx))
	}
	fi, _, err := wire.DecodeFuncInfo(c.version, c.funcInfo[c.funcIndex[symIdx]:])
	if err != nil {
		return wire.FuncInfo{}, c.newErr(ECORRUPT, int64(symIdx))
	}
	return fi, nil
}

// FuncArgs decodes up to n argument type ids for symIdx, honoring a
// trailing vararg sentinel.
func (c *Container) FuncArgs(symIdx int, n uint32) ([]uint32, bool, error) {
	if symIdx < 0 || symIdx >= len(c.funcIndex) || c.funcIndex[symIdx] < 0 {
		return nil, false, c.newErr(ENOTYPE, int64(symIdx))
	}
	fi, consumed, err := wire.DecodeFuncInfo(c.version, c.funcInfo[c.funcIndex[symIdx]:])
	if err != nil {
		return nil, false, c.newErr(ECORRUPT, int64(symIdx))
	}
	if n > fi.Vlen {
		n = fi.Vlen
	}
	args, vararg, err := wire.DecodeFuncArgs(c.version, c.funcInfo[c.funcIndex[symIdx]+int64(consumed):], n)
	if err != nil {
		return nil, false, c.newErr(ECORRUPT, int64(symIdx))
	}
	return args, vararg, nil
}
