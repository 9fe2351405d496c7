package reference

import (
	"errors"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("replkit.reference")

// ErrNoMetadata is returned when a module has neither an image on disk nor
// any symbols to describe.
var ErrNoMetadata = errors.New("module exposes no metadata")

// InMemoryDisplay is the display name of references built from a metadata
// blob rather than a file.
const InMemoryDisplay = "<in-memory module>"

// Kind identifies what a reference cites.
type Kind uint8

const (
	KindModule Kind = iota + 1
)

func (k Kind) String() string {
	if k == KindModule {
		return "module"
	}
	return "unknown"
}

// Reference is a reusable, toolkit-consumable citation of a module.
type Reference struct {
	FilePath string // empty for in-memory references
	Display  string
	Kind     Kind
	Metadata *Metadata
}

// InMemory reports whether the reference was built from raw metadata.
func (r *Reference) InMemory() bool {
	return r.FilePath == ""
}

// BestReference prefers a file-backed reference when the module's image
// exists on disk and falls back to an in-memory reference otherwise.
func BestReference(m *Module) (*Reference, error) {
	if m.Image != "" {
		if info, err := os.Stat(m.Image); err == nil && !info.IsDir() {
			return FileReference(m.Image)
		}
		log.Debugf("image %s for %s not found, using in-memory metadata", m.Image, m.Path)
	}
	ref := InMemoryReference(m)
	if ref == nil {
		return nil, ErrNoMetadata
	}
	return ref, nil
}

// FileReference builds a reference from a metadata image on disk.
func FileReference(path string) (*Reference, error) {
	md, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	return &Reference{
		FilePath: path,
		Display:  path,
		Kind:     KindModule,
		Metadata: md,
	}, nil
}

// InMemoryReference always builds from the module's raw metadata bytes,
// ignoring any image on disk. Returns nil if there is nothing to extract.
func InMemoryReference(m *Module) *Reference {
	data, ok := RawMetadata(m)
	if !ok {
		return nil
	}
	md, err := UnmarshalMetadata(data)
	if err != nil {
		log.Errorf("metadata for %s does not round-trip: %v", m.Path, err)
		return nil
	}
	return &Reference{
		Display:  InMemoryDisplay,
		Kind:     KindModule,
		Metadata: md,
	}
}
