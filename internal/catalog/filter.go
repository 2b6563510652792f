package catalog

import "github.com/bmatcuk/doublestar/v4"

// Key returns the glob-matchable key of a document: "{group}/{document}".
// Document ids may contain slashes themselves, so "aws/**" matches every AWS
// document and "aws/ec2/*" only the EC2 versions.
func Key(groupID, documentID string) string {
	return groupID + "/" + documentID
}

// Filter keeps the documents whose key matches an include pattern (all when
// include is empty) and no exclude pattern. Groups left without documents
// are dropped. The input index is not modified.
func Filter(idx Index, include, exclude []string) Index {
	if len(include) == 0 && len(exclude) == 0 {
		return idx
	}

	out := make(Index, 0, len(idx))
	for _, g := range idx {
		var docs []Document
		for _, d := range g.Documents {
			key := Key(g.ID, d.ID)
			if len(include) > 0 && !matchesAny(key, include) {
				continue
			}
			if matchesAny(key, exclude) {
				continue
			}
			docs = append(docs, d)
		}
		if len(docs) == 0 {
			continue
		}
		g.Documents = docs
		out = append(out, g)
	}
	return out
}

func matchesAny(key string, patterns []string) bool {
	for _, p := range patterns {
		if matched, err := doublestar.Match(p, key); err == nil && matched {
			return true
		}
	}
	return false
}
