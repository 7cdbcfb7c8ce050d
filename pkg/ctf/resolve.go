package ctf

import "github.com/tinyctf/ctf/pkg/ctf/wire"

func isStrippable(k wire.Kind) bool {
	switch k {
	case wire.KindTypedef, wire.KindVolatile, wire.KindConst, wire.KindRestrict:
		return true
	default:
		return false
	}
}

// Resolve strips typedef/const/volatile/restrict wrappers and returns the
// canonical id of the first record whose kind falls outside that set, plus
// the owning container the caller must use for that id (which may differ
// from c if the chain crossed into a parent).
//
// Cycle detection tracks three anchors — the original id, the previous id,
// and the current id — and reports CORRUPT if the next step would equal any
// of them. This is a bounded, O(chain-length) heuristic rather than a
// general visited-set detector: deeper cycles are tolerated and only break
// when they revisit one of those three anchors, but the image is malformed
// either way.
func (c *Container) Resolve(id int64) (*Container, int64, error) {
	orig := id
	prev := int64(0)
	cur := c

	for {
		h, owner, err := cur.headerAt(id)
		if err != nil {
			return nil, 0, c.newErr(ErrnoOf(err), orig)
		}
		if !isStrippable(h.Kind) {
			return owner, id, nil
		}

		next := int64(h.Ref())
		if next == orig || next == prev || next == id {
			return nil, 0, c.newErr(ECORRUPT, orig)
		}

		prev = id
		id = next
		cur = owner
	}
}
