package ctf

import "github.com/tinyctf/ctf/pkg/ctf/wire"

// corruptString is the domain-defined placeholder returned for an
// out-of-range string offset or a missing external table (§4.B). It never
// fails the enclosing query; upstream validators police the strings
// section.
const corruptString = "(null)"

// strptr resolves a 32-bit name reference to its NUL-terminated string,
// selecting the internal table for table-id 0 and the opener-supplied
// external table for table-id 1.
func (c *Container) strptr(ref uint32) string {
	table, offset := wire.SplitNameRef(ref)

	var data []byte
	if table == 0 {
		data = c.strInt
	} else {
		data = c.strExt
	}
	if data == nil || uint32(len(data)) <= offset {
		return corruptString
	}

	end := offset
	for end < uint32(len(data)) && data[end] != 0 {
		end++
	}
	return string(data[offset:end])
}
