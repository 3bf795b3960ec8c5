package retrieval

import (
	"fmt"
	"strings"

	"github.com/poiesic/profmatch/core"
)

// FormatContext renders retrieved records as a numbered block, keeping the
// order the index returned them in. An empty result renders as "".
func FormatContext(result core.RetrievalResult, k int) string {
	if len(result) == 0 {
		return ""
	}

	var b strings.Builder
	if len(result) < k {
		fmt.Fprintf(&b, "Only %d of the %d requested instructors were found.\n", len(result), k)
	}
	for i, hit := range result {
		r := hit.Record
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. Name: %s\n", i+1, r.Name)
		fmt.Fprintf(&b, "   Department: %s\n", r.Department)
		fmt.Fprintf(&b, "   Rating: %s\n", r.RatingRaw)
		for _, review := range r.ReviewSnippets {
			fmt.Fprintf(&b, "   Review: %s\n", review)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
