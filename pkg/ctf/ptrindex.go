package ctf

import "github.com/tinyctf/ctf/pkg/ctf/wire"

// TypePointer answers "pointer-to id" by reading the precomputed side
// table built once at open time. It tries the raw id first; on a miss it
// resolves id and tries again, which is what makes `foo_t *` findable when
// only `struct foo *` was recorded.
func (c *Container) TypePointer(id int64) (uint32, error) {
	if p, ok := c.ptrLookup(id); ok {
		return p, nil
	}

	owner, rid, err := c.Resolve(id)
	if err != nil {
		return 0, err
	}
	if p, ok := owner.ptrLookup(rid); ok {
		return p, nil
	}
	return 0, c.newErr(ENOTYPE, id)
}

// ptrLookup returns the stored entry for id's index, already composed with
// the owning container's own child bit by buildPointerIndex — callers
// return it as the real, directly addressable pointer type id.
func (c *Container) ptrLookup(id int64) (uint32, bool) {
	idx := wire.TypeToIndex(c.version, id)
	if idx < 0 || idx > c.typemax {
		return 0, false
	}
	if idx >= int64(len(c.ptrtab)) {
		return 0, false
	}
	p := c.ptrtab[idx]
	if p == 0 {
		return 0, false
	}
	return uint32(p), true
}
