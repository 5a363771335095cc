package analyze

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/chronicleworks/wikichron/internal/storage"
)

// RenderTimelineMarkdown produces the human-readable form of the
// timeline, grouped by year. It is regenerable purely from the
// structured artifact.
func RenderTimelineMarkdown(t Timeline) string {
	var b strings.Builder
	b.WriteString("# Timeline\n\n")
	fmt.Fprintf(&b, "*Generated on %s*\n\n", t.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total Events: %d\n\n", len(t.Events))
	b.WriteString("---\n\n")

	byYear := map[string][]Event{}
	for _, e := range t.Events {
		year := "Unknown"
		if len(e.Date) >= 4 {
			year = e.Date[:4]
		}
		byYear[year] = append(byYear[year], e)
	}

	years := make([]string, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Strings(years)

	for _, year := range years {
		fmt.Fprintf(&b, "## %s\n\n", year)
		for _, e := range byYear[year] {
			date := e.Date
			if date == "" {
				date = "Unknown date"
			}
			category := e.Category
			if category == "" {
				category = "General"
			}
			desc := e.Description
			if desc == "" {
				desc = "No description"
			}
			source := e.Source
			if source == "" {
				source = "Unknown source"
			}

			fmt.Fprintf(&b, "### %s\n", date)
			fmt.Fprintf(&b, "**Category:** %s  \n", category)
			fmt.Fprintf(&b, "**Event:** %s  \n", desc)
			if len(e.People) > 0 {
				fmt.Fprintf(&b, "**People:** %s  \n", strings.Join(e.People, ", "))
			}
			fmt.Fprintf(&b, "**Source:** %s\n\n", source)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeTimelineMarkdown(ctx context.Context, blobs storage.BlobStore, t Timeline) error {
	md := RenderTimelineMarkdown(t)
	if _, err := blobs.Put(ctx, TimelineMarkdownPath, "text/markdown", strings.NewReader(md)); err != nil {
		return fmt.Errorf("write timeline markdown: %w", err)
	}
	return nil
}
