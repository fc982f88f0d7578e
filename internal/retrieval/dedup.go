package retrieval

import (
	"strings"

	"github.com/matsen/trawl/internal/record"
)

// titleKeyLength is how many characters of a lowercased title identify
// a record when no PMID is available.
const titleKeyLength = 60

// Deduplicate removes records describing the same document, keeping
// the first occurrence. Records match when they share an external
// identifier or when their normalized title prefixes collide. Sources
// are queried in a fixed priority order upstream, so first-seen-wins
// keeps the richer record.
func Deduplicate(records []record.CandidateRecord) []record.CandidateRecord {
	seenID := make(map[string]bool)
	seenTitle := make(map[string]bool)

	unique := make([]record.CandidateRecord, 0, len(records))
	for _, r := range records {
		if r.ExternalID != "" && seenID[r.ExternalID] {
			continue
		}

		key := titleKey(r.Title)
		if key != "" && seenTitle[key] {
			continue
		}

		if r.ExternalID != "" {
			seenID[r.ExternalID] = true
		}
		if key != "" {
			seenTitle[key] = true
		}
		unique = append(unique, r)
	}
	return unique
}

func titleKey(title string) string {
	key := strings.ToLower(strings.TrimSpace(title))
	if len(key) > titleKeyLength {
		key = key[:titleKeyLength]
	}
	return key
}
