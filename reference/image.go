package reference

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("reference: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// MarshalMetadata serializes metadata to canonical CBOR bytes.
func MarshalMetadata(md *Metadata) ([]byte, error) {
	return imageEncMode.Marshal(md)
}

// UnmarshalMetadata deserializes metadata from CBOR bytes.
func UnmarshalMetadata(data []byte) (*Metadata, error) {
	var md Metadata
	if err := cbor.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("reference: unmarshal metadata: %w", err)
	}
	if md.Path == "" {
		return nil, fmt.Errorf("reference: metadata has no import path")
	}
	return &md, nil
}

// RawMetadata returns the module's metadata blob, or false if the module
// exposes nothing to describe.
func RawMetadata(m *Module) ([]byte, bool) {
	md := metadataOf(m)
	if md == nil {
		return nil, false
	}
	data, err := MarshalMetadata(md)
	if err != nil {
		return nil, false
	}
	return data, true
}

// WriteImage writes the module's metadata image to path, creating parent
// directories as needed.
func WriteImage(m *Module, path string) error {
	data, ok := RawMetadata(m)
	if !ok {
		return fmt.Errorf("%s: %w", m.Path, ErrNoMetadata)
	}
	return writeImageBytes(path, data)
}

// WriteMetadataImage writes already extracted metadata to path.
func WriteMetadataImage(md *Metadata, path string) error {
	data, err := MarshalMetadata(md)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", md.Path, err)
	}
	return writeImageBytes(path, data)
}

func writeImageBytes(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create image directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write image %s: %w", path, err)
	}
	return nil
}

// ReadImage decodes the metadata image stored at path.
func ReadImage(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read image %s: %w", path, err)
	}
	md, err := UnmarshalMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return md, nil
}

// ImagePath returns the conventional image file for an import path inside
// dir, e.g. dir/example.com/geometry.refimg.
func ImagePath(dir, importPath string) string {
	return filepath.Join(dir, filepath.FromSlash(importPath)+".refimg")
}
