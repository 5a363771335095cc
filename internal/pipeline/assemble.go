package pipeline

import (
	"fmt"
	"strings"
)

// TruncationMarker is inserted where an overlong item's middle section
// was dropped. It must stay visible downstream so analysis never
// assumes contiguous text.
const TruncationMarker = "[...middle section truncated...]"

// ContentItem is a named piece of text packed into an AI batch.
type ContentItem struct {
	Name    string
	Content string
}

// Assemble packs items into a single prompt body under a hard character
// budget. Each item gets an equal share; an item exceeding its share
// keeps the first 60% and last 40% of the share joined by the
// truncation marker. Openings carry context and endings carry
// resolution, so the middle is what goes.
func Assemble(items []ContentItem, maxTotalChars int) string {
	if len(items) == 0 {
		return ""
	}
	share := maxTotalChars / len(items)

	var b strings.Builder
	for i, item := range items {
		b.WriteString(fmt.Sprintf("\n\n%s\nPAGE %d: %s\n%s\n", delimiter, i+1, item.Name, delimiter))
		b.WriteString(TruncateShare(item.Content, share))
	}
	return b.String()
}

// TruncateShare applies the head/tail policy to a single item.
func TruncateShare(content string, share int) string {
	if len(content) <= share {
		return content
	}
	head := share * 6 / 10
	tail := share * 4 / 10
	return content[:head] + "\n\n" + TruncationMarker + "\n\n" + content[len(content)-tail:]
}

var delimiter = strings.Repeat("=", 80)
