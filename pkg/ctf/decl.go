package ctf

import (
	"fmt"

	"github.com/tinyctf/ctf/pkg/ctf/wire"
)

// buildDeclarator walks the declarator chain starting at id, returning the
// base type name, the prefix declarator tokens (pointers, applied before
// the hole), and the suffix declarator tokens (array/function brackets,
// applied after). Unlike Resolve, this walk never strips typedef/cv
// wrappers transparently: TYPEDEF is itself a terminal base token (so
// `type_name(foo_t)` prints "foo_t", not its expansion), and cv-qualifiers
// attach their keyword to whatever base they ultimately wrap rather than
// being stripped.
func (c *Container) buildDeclarator(id int64) (base, pre, post string, err error) {
	h, owner, err := c.headerAt(id)
	if err != nil {
		return "", "", "", err
	}

	switch h.Kind {
	case wire.KindPointer:
		refID := int64(h.Ref())
		refHeader, _, err := owner.headerAt(refID)
		if err != nil {
			return "", "", "", owner.newErr(ErrnoOf(err), id)
		}
		base, pre, post, err = owner.buildDeclarator(refID)
		if err != nil {
			return "", "", "", err
		}
		pre = "*" + pre
		if refHeader.Kind == wire.KindArray || refHeader.Kind == wire.KindFunction {
			pre = "(" + pre
			post = ")" + post
		}
		return base, pre, post, nil

	case wire.KindArray:
		arr, err := owner.arrayInfoAt(id, h)
		if err != nil {
			return "", "", "", owner.newErr(ErrnoOf(err), id)
		}
		base, pre, post, err = owner.buildDeclarator(int64(arr.Contents))
		if err != nil {
			return "", "", "", err
		}
		return base, pre, post + fmt.Sprintf("[%d]", arr.Nelems), nil

	case wire.KindFunction:
		base, pre, post, err = owner.buildDeclarator(int64(h.Ref()))
		if err != nil {
			return "", "", "", err
		}
		return base, pre, post + "()", nil

	case wire.KindConst, wire.KindVolatile, wire.KindRestrict:
		base, pre, post, err = owner.buildDeclarator(int64(h.Ref()))
		if err != nil {
			return "", "", "", err
		}
		return base + " " + qualKeyword(h.Kind), pre, post, nil

	case wire.KindStruct:
		return "struct " + owner.strptr(h.NameRef), "", "", nil
	case wire.KindUnion:
		return "union " + owner.strptr(h.NameRef), "", "", nil
	case wire.KindEnum:
		return "enum " + owner.strptr(h.NameRef), "", "", nil
	case wire.KindForward:
		return owner.strptr(h.NameRef), "", "", nil
	case wire.KindInteger, wire.KindFloat, wire.KindTypedef:
		return owner.strptr(h.NameRef), "", "", nil
	default:
		return "", "", "", owner.newErr(ECORRUPT, id)
	}
}

func qualKeyword(k wire.Kind) string {
	switch k {
	case wire.KindConst:
		return "const"
	case wire.KindVolatile:
		return "volatile"
	case wire.KindRestrict:
		return "restrict"
	default:
		return ""
	}
}

func (c *Container) declString(id int64) (string, error) {
	base, pre, post, err := c.buildDeclarator(id)
	if err != nil {
		return "", err
	}
	s := base
	if pre != "" {
		s += " " + pre
	}
	s += post
	return s, nil
}

// TypeLName writes up to len(buf)-1 bytes of id's C-syntactic declaration
// into buf and returns the full length it would have written. If buf is too
// small, NAMELEN is set on the container but the write is not treated as a
// query failure — callers retry with a larger buffer.
func (c *Container) TypeLName(id int64, buf []byte) (int, error) {
	full, err := c.declString(id)
	if err != nil {
		return 0, err
	}
	needed := len(full)

	if len(buf) == 0 {
		if needed > 0 {
			c.errno = ENAMELEN
		}
		return needed, nil
	}

	n := copy(buf[:len(buf)-1], full)
	buf[n] = 0
	if n < needed {
		c.errno = ENAMELEN
	}
	return needed, nil
}

// TypeName is the convenience variant of TypeLName: it returns the written
// slice, or nil iff the buffer was too small.
func (c *Container) TypeName(id int64, buf []byte) ([]byte, error) {
	needed, err := c.TypeLName(id, buf)
	if err != nil {
		return nil, err
	}
	if needed >= len(buf) {
		return nil, nil
	}
	return buf[:needed], nil
}

// TypeNameString is the natural Go rendering of the declaration formatter:
// no caller-supplied buffer, just the declaration string.
func (c *Container) TypeNameString(id int64) (string, error) {
	return c.declString(id)
}
