package ctf

import "github.com/tinyctf/ctf/pkg/ctf/wire"

// Size computes the byte size of id, resolving through typedef/cv wrappers
// first so both are transparent to the caller (§4.E).
func (c *Container) Size(id int64) (uint64, error) {
	owner, rid, err := c.Resolve(id)
	if err != nil {
		return 0, err
	}
	h, _, err := owner.headerAt(rid)
	if err != nil {
		return 0, c.newErr(ErrnoOf(err), id)
	}

	switch h.Kind {
	case wire.KindPointer:
		return uint64(owner.dm.PointerWidth), nil
	case wire.KindFunction:
		return 0, nil
	case wire.KindEnum:
		return uint64(owner.dm.IntWidth), nil
	case wire.KindArray:
		if h.Size != 0 {
			return h.Size, nil
		}
		arr, err := owner.arrayInfoAt(rid, h)
		if err != nil {
			return 0, c.newErr(ErrnoOf(err), id)
		}
		elem, err := owner.Size(int64(arr.Contents))
		if err != nil {
			return 0, c.newErr(ErrnoOf(err), id)
		}
		return elem * uint64(arr.Nelems), nil
	default:
		return h.Size, nil
	}
}

// Align computes the byte alignment of id, resolving through typedef/cv
// wrappers first (§4.E). Struct alignment follows the first member, per C
// ABI convention; union alignment is the max over all members.
func (c *Container) Align(id int64) (uint64, error) {
	owner, rid, err := c.Resolve(id)
	if err != nil {
		return 0, err
	}
	h, _, err := owner.headerAt(rid)
	if err != nil {
		return 0, c.newErr(ErrnoOf(err), id)
	}

	switch h.Kind {
	case wire.KindPointer, wire.KindFunction:
		return uint64(owner.dm.PointerWidth), nil
	case wire.KindEnum:
		return uint64(owner.dm.IntWidth), nil
	case wire.KindArray:
		arr, err := owner.arrayInfoAt(rid, h)
		if err != nil {
			return 0, c.newErr(ErrnoOf(err), id)
		}
		return owner.Align(int64(arr.Contents))
	case wire.KindStruct:
		members, err := owner.rawMembers(rid, h)
		if err != nil {
			return 0, c.newErr(ErrnoOf(err), id)
		}
		if len(members) == 0 {
			return 1, nil
		}
		return owner.Align(int64(members[0].Type))
	case wire.KindUnion:
		members, err := owner.rawMembers(rid, h)
		if err != nil {
			return 0, c.newErr(ErrnoOf(err), id)
		}
		var max uint64
		for _, m := range members {
			a, err := owner.Align(int64(m.Type))
			if err != nil {
				return 0, c.newErr(ErrnoOf(err), id)
			}
			if a > max {
				max = a
			}
		}
		return max, nil
	default:
		return h.Size, nil
	}
}
