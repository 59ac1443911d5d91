package trimmer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const fullDocument = `{
  "name": "express",
  "description": "Fast, unopinionated, minimalist web framework",
  "dist-tags": {"latest": "4.18.0"},
  "maintainers": [{"name": "dougwilson", "email": "doug@example.com"}],
  "versions": {
    "4.17.0": {
      "name": "express",
      "version": "4.17.0",
      "dependencies": {"accepts": "~1.3.7"},
      "engines": {"node": ">= 0.10.0"},
      "_npmUser": {"name": "dougwilson"},
      "dist": {
        "tarball": "https://registry.npmjs.org/express/-/express-4.17.0.tgz",
        "shasum": "abc123",
        "integrity": "sha512-xyz",
        "fileCount": 12
      }
    },
    "4.18.0": {
      "name": "express",
      "version": "4.18.0",
      "dependencies": {"accepts": "~1.3.8"},
      "dist": {
        "tarball": "https://registry.npmjs.org/express/-/express-4.18.0.tgz",
        "shasum": "def456",
        "integrity": "sha512-abc"
      }
    }
  }
}`

func parseFixture(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestTrimRetainsWhitelistedVersionFields(t *testing.T) {
	doc := parseFixture(t, fullDocument)

	trimmed, err := Trim(doc)
	require.NoError(t, err)

	out, err := trimmed.Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))

	require.Equal(t, "express", decoded["name"])
	require.NotContains(t, decoded, "description")
	require.NotContains(t, decoded, "maintainers")

	versions := decoded["versions"].(map[string]any)
	v417 := versions["4.17.0"].(map[string]any)
	require.NotContains(t, v417, "_npmUser")
	require.Contains(t, v417, "engines")

	dist := v417["dist"].(map[string]any)
	require.NotContains(t, dist, "fileCount")
	require.Equal(t, "abc123", dist["shasum"])
}

func TestTrimFieldWhitelist(t *testing.T) {
	doc := parseFixture(t, fullDocument)
	trimmed, err := Trim(doc)
	require.NoError(t, err)

	out, err := trimmed.Marshal()
	require.NoError(t, err)

	var decoded struct {
		Versions map[string]map[string]json.RawMessage `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))

	allowedVersionKeys := map[string]bool{
		"name": true, "version": true, "dependencies": true,
		"optionalDependencies": true, "peerDependencies": true,
		"peerDependenciesMeta": true, "bin": true, "engines": true,
		"os": true, "cpu": true, "dist": true,
	}
	allowedDistKeys := map[string]bool{"tarball": true, "integrity": true, "shasum": true}

	for _, entry := range decoded.Versions {
		for key := range entry {
			require.True(t, allowedVersionKeys[key], "unexpected version key %q", key)
		}
		if rawDist, ok := entry["dist"]; ok {
			var dist map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rawDist, &dist))
			for key := range dist {
				require.True(t, allowedDistKeys[key], "unexpected dist key %q", key)
			}
		}
	}
}

func TestTrimPreservesTopLevelAndOrder(t *testing.T) {
	doc := parseFixture(t, fullDocument)
	trimmed, err := Trim(doc)
	require.NoError(t, err)

	name, ok := trimmed.Get("name")
	require.True(t, ok)
	require.JSONEq(t, `"express"`, string(name))

	distTags, ok := trimmed.Get("dist-tags")
	require.True(t, ok)
	require.JSONEq(t, `{"latest":"4.18.0"}`, string(distTags))

	versions, ok := trimmed.Get("versions")
	require.True(t, ok)
	require.True(t, indexOf(t, versions, `"4.17.0"`) < indexOf(t, versions, `"4.18.0"`))
}

func indexOf(t *testing.T, haystack []byte, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == needle {
			return i
		}
	}
	t.Fatalf("substring %q not found", needle)
	return -1
}

func TestTrimIsIdempotent(t *testing.T) {
	doc := parseFixture(t, fullDocument)

	once, err := Trim(doc)
	require.NoError(t, err)
	onceBytes, err := once.Marshal()
	require.NoError(t, err)

	twice, err := Trim(once)
	require.NoError(t, err)
	twiceBytes, err := twice.Marshal()
	require.NoError(t, err)

	require.JSONEq(t, string(onceBytes), string(twiceBytes))
}

func TestTrimPassesThroughNonMetadataDocuments(t *testing.T) {
	doc := parseFixture(t, `{"ok": true, "rev": "1-abc"}`)

	trimmed, err := Trim(doc)
	require.NoError(t, err)
	require.True(t, doc.Equal(trimmed))
}

func TestTrimHandlesMissingDist(t *testing.T) {
	doc := parseFixture(t, `{
		"name": "left-pad",
		"dist-tags": {"latest": "1.0.0"},
		"versions": {
			"1.0.0": {"name": "left-pad", "version": "1.0.0"}
		}
	}`)

	trimmed, err := Trim(doc)
	require.NoError(t, err)

	out, err := trimmed.Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	v := decoded["versions"].(map[string]any)["1.0.0"].(map[string]any)
	require.NotContains(t, v, "dist")
}
