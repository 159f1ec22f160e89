package importer

// Propagate returns the union of a unit's tags and a point's own tags.
// Names compare case-sensitively; the result keeps first-seen order (unit
// tags first) and holds no duplicates, so applying it twice changes nothing.
func Propagate(unitTags, pointTags []string) []string {
	seen := make(map[string]bool, len(unitTags)+len(pointTags))
	out := make([]string, 0, len(unitTags)+len(pointTags))
	for _, list := range [][]string{unitTags, pointTags} {
		for _, tag := range list {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
