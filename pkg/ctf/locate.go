package ctf

import "github.com/tinyctf/ctf/pkg/ctf/wire"

// headerAt is the type-record locator (§4.C): it maps a type id to a
// decoded header, rewriting the owning container to the parent when the id
// falls in parent space for a child container. All higher layers receive
// that owning container back and must use it for subsequent accesses (name
// lookups, member records, and so on all read from the *owning* container's
// sections), which is how the switch stays observable to them.
func (c *Container) headerAt(id int64) (wire.Header, *Container, error) {
	if id == 0 {
		return wire.Header{}, nil, c.newErr(EBADID, id)
	}

	if c.child && wire.IsParent(c.version, id) {
		if c.parent == nil {
			return wire.Header{}, nil, c.newErr(EBADID, id)
		}
		h, owner, err := c.parent.headerAt(id)
		if err != nil {
			// Record the failure on the originating container, not the parent.
			return wire.Header{}, nil, c.newErr(ErrnoOf(err), id)
		}
		return h, owner, nil
	}

	idx := wire.TypeToIndex(c.version, id)
	if idx < 1 || idx > c.typemax {
		return wire.Header{}, nil, c.newErr(EBADID, id)
	}

	off := c.typeOff[idx]
	h, err := wire.DecodeHeader(c.version, c.typeSect[off:])
	if err != nil {
		return wire.Header{}, nil, c.newErr(ECORRUPT, id)
	}
	return h, c, nil
}

// bodyAt returns the variable-data trailer bytes following id's header, read
// from the owning container's type section.
func (c *Container) bodyAt(id int64, h wire.Header) ([]byte, error) {
	idx := wire.TypeToIndex(c.version, id)
	off := c.typeOff[idx]
	start := off + h.Increment
	if start > len(c.typeSect) {
		return nil, c.newErr(ECORRUPT, id)
	}
	return c.typeSect[start:], nil
}
