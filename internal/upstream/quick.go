package upstream

import "github.com/buger/jsonparser"

// ExtractLatestDependencies pulls the union of dependencies,
// optionalDependencies, and peerDependencies key names out of the version
// pointed to by dist-tags.latest. Used by the prefetcher to discover the
// next BFS frontier without re-decoding the whole document into an ordered
// map.
func ExtractLatestDependencies(raw []byte) []string {
	latest, err := jsonparser.GetString(raw, "dist-tags", "latest")
	if err != nil || latest == "" {
		return nil
	}

	seen := map[string]struct{}{}
	var names []string
	collect := func(field string) {
		_ = jsonparser.ObjectEach(raw, func(key, _ []byte, _ jsonparser.ValueType, _ int) error {
			name := string(key)
			if _, ok := seen[name]; ok {
				return nil
			}
			seen[name] = struct{}{}
			names = append(names, name)
			return nil
		}, "versions", latest, field)
	}

	collect("dependencies")
	collect("optionalDependencies")
	collect("peerDependencies")

	return names
}
