package trimmer

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// versionFields are the per-version keys retained verbatim, excluding the
// nested dist sub-document which is reduced separately.
var versionFields = []string{
	"name",
	"version",
	"dependencies",
	"optionalDependencies",
	"peerDependencies",
	"peerDependenciesMeta",
	"bin",
	"engines",
	"os",
	"cpu",
}

// distFields are the dist sub-document keys retained verbatim.
var distFields = []string{"tarball", "integrity", "shasum"}

// Trim reduces a metadata document to name, dist-tags, and a versions
// mapping whose entries keep only the whitelisted fields. Non-metadata
// documents (missing either versions or dist-tags) are returned unchanged.
// Trim is idempotent: an already-trimmed document's version entries contain
// only whitelisted keys, so filtering them again yields the same bytes.
func Trim(doc *Document) (*Document, error) {
	if !doc.IsMetadata() {
		return doc, nil
	}

	out := orderedmap.New[string, json.RawMessage]()
	if name, ok := doc.Get("name"); ok {
		out.Set("name", name)
	}
	if distTags, ok := doc.Get("dist-tags"); ok {
		out.Set("dist-tags", distTags)
	}

	rawVersions, _ := doc.Get("versions")
	versionsIn := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(rawVersions, versionsIn); err != nil {
		return nil, err
	}

	versionsOut := orderedmap.New[string, json.RawMessage]()
	for pair := versionsIn.Oldest(); pair != nil; pair = pair.Next() {
		trimmed, err := trimVersion(pair.Value)
		if err != nil {
			return nil, err
		}
		versionsOut.Set(pair.Key, trimmed)
	}

	versionsRaw, err := json.Marshal(versionsOut)
	if err != nil {
		return nil, err
	}
	out.Set("versions", versionsRaw)

	return &Document{top: out}, nil
}

func trimVersion(raw json.RawMessage) (json.RawMessage, error) {
	entry := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}

	out := orderedmap.New[string, json.RawMessage]()
	for _, key := range versionFields {
		if v, ok := entry[key]; ok {
			out.Set(key, v)
		}
	}

	if distRaw, ok := entry["dist"]; ok {
		trimmedDist, err := trimDist(distRaw)
		if err != nil {
			return nil, err
		}
		if trimmedDist != nil {
			out.Set("dist", trimmedDist)
		}
	}

	return json.Marshal(out)
}

func trimDist(raw json.RawMessage) (json.RawMessage, error) {
	dist := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &dist); err != nil {
		return nil, err
	}

	out := orderedmap.New[string, json.RawMessage]()
	for _, key := range distFields {
		if v, ok := dist[key]; ok {
			out.Set(key, v)
		}
	}
	if out.Len() == 0 {
		return nil, nil
	}
	return json.Marshal(out)
}
