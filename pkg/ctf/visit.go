package ctf

import "github.com/tinyctf/ctf/pkg/ctf/wire"

// VisitFunc is the callback invoked by TypeVisit for the root type and
// every transitively nested member. name is empty for the root. id is
// always the *original*, unresolved type id — the caller sees typedefs;
// resolution is internal only, used to find member layout.
type VisitFunc func(name string, id uint32, offset uint64, depth int, ctx any) int

// TypeVisit resolves id, invokes fn for it, and if it is a STRUCT/UNION
// recurses depth-first into every member. A nonzero callback return aborts
// the traversal and is propagated unchanged.
func (c *Container) TypeVisit(id int64, fn VisitFunc, ctx any) (int, error) {
	return c.visit("", id, 0, 0, fn, ctx)
}

func (c *Container) visit(name string, id int64, offset uint64, depth int, fn VisitFunc, ctx any) (int, error) {
	if rv := fn(name, uint32(id), offset, depth, ctx); rv != 0 {
		return rv, nil
	}

	owner, rid, h, err := c.sourceOf(id)
	if err != nil {
		return 0, err
	}
	if h.Kind != wire.KindStruct && h.Kind != wire.KindUnion {
		return 0, nil
	}

	members, err := owner.rawMembers(rid, h)
	if err != nil {
		return 0, c.newErr(ErrnoOf(err), id)
	}
	for _, m := range members {
		rv, err := owner.visit(owner.strptr(m.NameRef), int64(m.Type), offset+m.BitOffset, depth+1, fn, ctx)
		if err != nil {
			return 0, err
		}
		if rv != 0 {
			return rv, nil
		}
	}
	return 0, nil
}
