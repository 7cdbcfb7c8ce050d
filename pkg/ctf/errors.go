package ctf

import "fmt"

// Errno is a domain-defined query error code, the Go rendering of
// last_errno(container) from the reference design.
type Errno int

const (
	errnoNone Errno = iota
	EBADID
	ENOTSOU
	ENOTENUM
	ENOTINTFP
	ENOTARRAY
	ENOTREF
	ENAMELEN
	ENOMEMBNAM
	ENOENUMNAM
	ENOTYPE
	ENOPARENT
	ECORRUPT
)

func (e Errno) String() string {
	switch e {
	case EBADID:
		return "BADID"
	case ENOTSOU:
		return "NOTSOU"
	case ENOTENUM:
		return "NOTENUM"
	case ENOTINTFP:
		return "NOTINTFP"
	case ENOTARRAY:
		return "NOTARRAY"
	case ENOTREF:
		return "NOTREF"
	case ENAMELEN:
		return "NAMELEN"
	case ENOMEMBNAM:
		return "NOMEMBNAM"
	case ENOENUMNAM:
		return "NOENUMNAM"
	case ENOTYPE:
		return "NOTYPE"
	case ENOPARENT:
		return "NOPARENT"
	case ECORRUPT:
		return "CORRUPT"
	default:
		return "none"
	}
}

// QueryError is the error value returned by every exported query. It
// carries the domain error code plus the container and type id the query
// was made against, so callers needing only the code can use ErrnoOf(err)
// without re-reading the container's error slot.
type QueryError struct {
	Code      Errno
	Container *Container
	ID        int64
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("ctf: type %d: %s", e.ID, e.Code)
}

// ErrnoOf extracts the domain error code from err, or errnoNone if err is nil
// or not a *QueryError.
func ErrnoOf(err error) Errno {
	if qe, ok := err.(*QueryError); ok {
		return qe.Code
	}
	return errnoNone
}

// newErr records the error on the originating container (the Container.Errno
// last-error slot) and returns the corresponding *QueryError. Propagation
// policy: every query records its failure on the container that originated
// the call, even if the locator switched to a parent mid-call.
func (c *Container) newErr(code Errno, id int64) error {
	c.errno = code
	return &QueryError{Code: code, Container: c, ID: id}
}
