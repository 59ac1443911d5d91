// Package trimmer reduces a full npm-style metadata document to the fields
// needed for dependency resolution: name, dist-tags, and per-version
// dependency/dist information. Non-metadata documents pass through
// unchanged. The package does no I/O; callers own parsing the upstream body
// into a Document and serializing the result.
package trimmer
