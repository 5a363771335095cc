package analyze

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/wikichron/internal/pipeline"
	"github.com/chronicleworks/wikichron/internal/storage/memory"
)

func putTimeline(t *testing.T, blobs *memory.BlobStore, events ...Event) {
	t.Helper()
	timeline := Timeline{
		TotalEvents: len(events),
		GeneratedAt: time.Now().UTC(),
		Complete:    true,
		Events:      events,
	}
	data, err := json.Marshal(timeline)
	require.NoError(t, err)
	_, err = blobs.Put(context.Background(), TimelinePath, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
}

func newSummaryGenerator(invoker Invoker, blobs *memory.BlobStore) *SummaryGenerator {
	retry := pipeline.NewRetryPolicy(1, 0, pipeline.RetryableService, nil)
	return NewSummaryGenerator(invoker, blobs, retry, "Example Subject", nil)
}

func TestSummaryGeneratesAndWraps(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	putTimeline(t, blobs,
		Event{Date: "1984-02-24", Description: "Born", Category: "Personal Life"},
		Event{Date: "2000-03-17", Description: "Comic drawn", Category: "Internet"},
	)
	invoker := &scriptedInvoker{replies: func(string) (string, error) {
		return "# Unwanted Title\n\nThe story begins in the 1980s.", nil
	}}

	skipped, err := newSummaryGenerator(invoker, blobs).Run(ctx, "https://wiki.example.com/cwcki/Main_Page")
	require.NoError(t, err)
	assert.False(t, skipped)

	data, err := blobs.Get(ctx, SummaryPath)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# Example Subject: A Comprehensive Summary\n\n"))
	assert.Contains(t, text, "The story begins in the 1980s.")
	assert.NotContains(t, text, "Unwanted Title")
	assert.Contains(t, text, "*Source: https://wiki.example.com/cwcki/Main_Page*")

	require.Len(t, invoker.prompts, 1)
	assert.Contains(t, invoker.prompts[0], "Example Subject")
	assert.Contains(t, invoker.prompts[0], `"decade": 1980`)
	assert.Contains(t, invoker.prompts[0], "2 events")
}

func TestSummarySkipsExistingSubstantial(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	existing := strings.Repeat("already written ", 100)
	_, err := blobs.Put(ctx, SummaryPath, "text/markdown", strings.NewReader(existing))
	require.NoError(t, err)

	invoker := &scriptedInvoker{replies: func(string) (string, error) {
		t.Fatal("model must not be invoked when a summary exists")
		return "", nil
	}}
	skipped, err := newSummaryGenerator(invoker, blobs).Run(ctx, "https://example.com")
	require.NoError(t, err)
	assert.True(t, skipped)

	data, err := blobs.Get(ctx, SummaryPath)
	require.NoError(t, err)
	assert.Equal(t, existing, string(data))
}

func TestSummaryRegeneratesStub(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	_, err := blobs.Put(ctx, SummaryPath, "text/markdown", strings.NewReader("# stub\n"))
	require.NoError(t, err)
	putTimeline(t, blobs, Event{Date: "2004", Description: "Something happened"})

	invoker := &scriptedInvoker{replies: func(string) (string, error) {
		return "Full narrative.", nil
	}}
	skipped, err := newSummaryGenerator(invoker, blobs).Run(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, skipped)

	data, err := blobs.Get(ctx, SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Full narrative.")
}

func TestSummaryRequiresTimeline(t *testing.T) {
	invoker := &scriptedInvoker{replies: func(string) (string, error) {
		return "irrelevant", nil
	}}
	_, err := newSummaryGenerator(invoker, memory.NewBlobStore()).Run(context.Background(), "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeline")
}

func TestGroupByDecade(t *testing.T) {
	groups := groupByDecade([]Event{
		{Date: "2004-03-01", Description: "a"},
		{Date: "1987", Description: "b"},
		{Date: "2009", Description: "c"},
		{Date: "circa 2000", Description: "dropped"},
		{Date: "", Description: "dropped too"},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, 1980, groups[0].Decade)
	require.Len(t, groups[0].Events, 1)
	assert.Equal(t, 2000, groups[1].Decade)
	assert.Len(t, groups[1].Events, 2)
}

func TestStripLeadingHeaders(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no header", "Plain text.", "Plain text."},
		{"single header", "# Title\n\nBody", "Body"},
		{"stacked headers", "# Title\n\n## Sub\n\nBody", "Body"},
		{"header only later stays", "Body\n\n## Section\n\nMore", "Body\n\n## Section\n\nMore"},
		{"whitespace padding", "\n\n# Title\n\n\nBody\n", "Body"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, stripLeadingHeaders(c.in))
		})
	}
}
