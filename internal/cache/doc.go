// Package cache owns the on-disk trimmed-metadata cache and the raw staging
// area used by the strip pipeline. A package name maps to exactly one file
// under the cache root (scoped names percent-encode their slash); writers
// use temp-file-then-rename so readers never observe a torn file. Per-key
// locks serialize concurrent writers so the last writer wins deterministically.
package cache
