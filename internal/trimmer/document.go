package trimmer

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Document is the in-memory representation of a JSON body read on the
// metadata path. Top-level key order is preserved so a non-metadata body can
// be re-serialized byte-for-byte in shape, and so the versions mapping's
// original key order survives trimming.
type Document struct {
	top *orderedmap.OrderedMap[string, json.RawMessage]
}

// Parse decodes raw JSON bytes into a Document. raw must be a JSON object.
func Parse(raw []byte) (*Document, error) {
	top := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, top); err != nil {
		return nil, err
	}
	return &Document{top: top}, nil
}

// IsMetadata reports whether the document carries both a versions mapping
// and a dist-tags mapping, the precondition for trimming.
func (d *Document) IsMetadata() bool {
	_, hasVersions := d.top.Get("versions")
	_, hasDistTags := d.top.Get("dist-tags")
	return hasVersions && hasDistTags
}

// Marshal serializes the document back to JSON, preserving top-level key
// order.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d.top)
}

// Get returns the raw JSON value for a top-level key.
func (d *Document) Get(key string) (json.RawMessage, bool) {
	return d.top.Get(key)
}

// Equal reports whether two documents serialize identically. Used by tests
// to check the non-metadata passthrough invariant.
func (d *Document) Equal(other *Document) bool {
	a, errA := d.Marshal()
	b, errB := other.Marshal()
	if errA != nil || errB != nil {
		return false
	}
	return string(a) == string(b)
}
