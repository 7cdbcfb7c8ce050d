package ctfimg

import (
	"debug/elf"
	"fmt"

	"github.com/tinyctf/ctf/pkg/ctf"
)

// defaultSectionName is the conventional section name the reference design
// documents CTF data as being stored under in an ELF object.
const defaultSectionName = ".ctf"

// OpenELFSection extracts sectionName (defaultSectionName if empty) from
// the ELF object at path and decodes it as a CTF image, parented against
// parent when parent is non-nil. No
// example repository in the retrieval pack parses ELF containers, so this
// function is the one place this module reaches for the standard
// library's debug/elf rather than a third-party parser.
func OpenELFSection(path, sectionName string, parent *ctf.Container) (*ctf.Container, error) {
	if sectionName == "" {
		sectionName = defaultSectionName
	}

	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ctfimg: open ELF %s: %w", path, err)
	}
	defer f.Close()

	if f.ByteOrder.String() != "LittleEndian" {
		return nil, fmt.Errorf("ctfimg: %s is big-endian, host is little-endian", path)
	}

	sec := f.Section(sectionName)
	if sec == nil {
		return nil, fmt.Errorf("ctfimg: %s has no %s section", path, sectionName)
	}

	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("ctfimg: read %s from %s: %w", sectionName, path, err)
	}

	return OpenBytes(data, parent)
}
