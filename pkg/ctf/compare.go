package ctf

import "github.com/tinyctf/ctf/pkg/ctf/wire"

// effectiveContainer returns the container a comparison should treat id as
// belonging to: its parent, if id lies in parent-space and a parent exists,
// else the container itself.
func effectiveContainer(c *Container, id int64) *Container {
	if c.child && wire.IsParent(c.version, id) && c.parent != nil {
		return c.parent
	}
	return c
}

// TypeCmp is a total order over (container, id) pairs: numeric id is the
// primary key; ties between ids from different containers are broken by
// comparing the containers' (promoted) identity.
func TypeCmp(lc *Container, lid int64, rc *Container, rid int64) int {
	switch {
	case lid < rid:
		return -1
	case lid > rid:
		return 1
	}

	le := effectiveContainer(lc, lid)
	re := effectiveContainer(rc, rid)
	switch {
	case le == re:
		return 0
	case le.id < re.id:
		return -1
	default:
		return 1
	}
}

// TypeCompat reports structural equivalence of two types, possibly across
// containers. Equal (container, id) pairs under TypeCmp are trivially
// compatible; otherwise both sides are resolved and compared by kind.
// STRUCT/UNION compatibility is deliberately structural at the size level
// (equal tag name and byte size), not member-by-member — this permits
// forward-compatible evolutions of a type across compilation units.
func TypeCompat(lc *Container, lid int64, rc *Container, rid int64) (bool, error) {
	if TypeCmp(lc, lid, rc, rid) == 0 {
		return true, nil
	}

	lo, lrid, err := lc.Resolve(lid)
	if err != nil {
		return false, err
	}
	ro, rrid, err := rc.Resolve(rid)
	if err != nil {
		return false, err
	}

	lh, _, err := lo.headerAt(lrid)
	if err != nil {
		return false, lc.newErr(ErrnoOf(err), lid)
	}
	rh, _, err := ro.headerAt(rrid)
	if err != nil {
		return false, rc.newErr(ErrnoOf(err), rid)
	}

	if lh.Kind != rh.Kind {
		return false, nil
	}

	switch lh.Kind {
	case wire.KindInteger, wire.KindFloat:
		le, err := lo.TypeEncoding(lrid)
		if err != nil {
			return false, err
		}
		re, err := ro.TypeEncoding(rrid)
		if err != nil {
			return false, err
		}
		return le == re, nil

	case wire.KindPointer:
		return TypeCompat(lo, int64(lh.Ref()), ro, int64(rh.Ref()))

	case wire.KindArray:
		la, err := lo.arrayInfoAt(lrid, lh)
		if err != nil {
			return false, err
		}
		ra, err := ro.arrayInfoAt(rrid, rh)
		if err != nil {
			return false, err
		}
		if la.Nelems != ra.Nelems {
			return false, nil
		}
		contentsOK, err := TypeCompat(lo, int64(la.Contents), ro, int64(ra.Contents))
		if err != nil || !contentsOK {
			return false, err
		}
		return TypeCompat(lo, int64(la.Index), ro, int64(ra.Index))

	case wire.KindStruct, wire.KindUnion:
		return lo.strptr(lh.NameRef) == ro.strptr(rh.NameRef) && lh.Size == rh.Size, nil

	case wire.KindEnum, wire.KindForward:
		return lo.strptr(lh.NameRef) == ro.strptr(rh.NameRef), nil

	default:
		return false, nil
	}
}
