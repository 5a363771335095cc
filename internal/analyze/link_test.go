package analyze

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/wikichron/internal/media"
	"github.com/chronicleworks/wikichron/internal/storage/memory"
	"github.com/chronicleworks/wikichron/internal/wiki"
)

func putMediaIndex(t *testing.T, blobs *memory.BlobStore, pages ...media.PageMedia) {
	t.Helper()
	index := media.Index{
		TotalPages:  len(pages),
		ExtractedAt: time.Now().UTC(),
		Pages:       pages,
	}
	data, err := json.Marshal(index)
	require.NoError(t, err)
	_, err = blobs.Put(context.Background(), media.IndexPath, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
}

func imageRecord(url, filename string) media.ImageRecord {
	return media.ImageRecord{
		Image:     wiki.Image{URL: url},
		Filename:  filename,
		LocalPath: media.ImagesPrefix + filename,
	}
}

func TestLinkAttachesDedupedMedia(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	putTimeline(t, blobs,
		Event{Date: "2004", Description: "Comic page drawn", Source: "Sonichu"},
		Event{Date: "2005", Description: "Unrelated event", Source: "Nowhere"},
	)
	putMediaIndex(t, blobs, media.PageMedia{
		PageTitle:    "Sonichu",
		PageURL:      "https://wiki.example.com/cwcki/Sonichu",
		SafeFilename: "Sonichu",
		Images: []media.ImageRecord{
			imageRecord("https://cdn.example.com/a.png", "Sonichu_0_abc.png"),
			imageRecord("https://cdn.example.com/a.png", "Sonichu_1_abc.png"),
			imageRecord("https://cdn.example.com/b.png", "Sonichu_2_def.png"),
		},
		Videos: []wiki.Video{
			{Type: "youtube", URL: "https://www.youtube.com/watch?v=x"},
			{Type: "youtube", URL: "https://www.youtube.com/watch?v=x"},
		},
	})

	linked, skipped, err := NewLinker(blobs, newMemCkpts(), 100, nil).Run(ctx)
	require.NoError(t, err)
	assert.False(t, skipped)

	assert.Equal(t, 2, linked.TotalEvents)
	assert.Equal(t, 1, linked.EventsWithMedia)
	require.Len(t, linked.Events, 2)

	first := linked.Events[0]
	require.Len(t, first.Media.Images, 2)
	assert.Equal(t, "Sonichu_0_abc.png", first.Media.Images[0].Filename)
	require.Len(t, first.Media.Videos, 1)

	second := linked.Events[1]
	assert.Empty(t, second.Media.Images)
	assert.Empty(t, second.Media.Videos)

	data, err := blobs.Get(ctx, LinkedTimelinePath)
	require.NoError(t, err)
	var stored LinkedTimeline
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, 2, stored.TotalEvents)
	assert.Equal(t, 1, stored.EventsWithMedia)
}

func TestLinkMatchesSourceBySafeFilename(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	putTimeline(t, blobs,
		Event{Date: "2004", Description: "Event", Source: "Rollin' and Trollin'"},
	)
	putMediaIndex(t, blobs, media.PageMedia{
		PageTitle:    "Rollin' and Trollin'",
		SafeFilename: wiki.SafeFilename("Rollin' and Trollin'"),
		Images:       []media.ImageRecord{imageRecord("https://cdn.example.com/r.png", "r.png")},
	})

	linked, _, err := NewLinker(blobs, newMemCkpts(), 100, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, linked.EventsWithMedia)
}

func TestLinkResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	putTimeline(t, blobs,
		Event{Date: "2004", Description: "First", Source: "Sonichu"},
		Event{Date: "2005", Description: "Second", Source: "Sonichu"},
	)
	putMediaIndex(t, blobs, media.PageMedia{
		PageTitle:    "Sonichu",
		SafeFilename: "Sonichu",
		Images:       []media.ImageRecord{imageRecord("https://cdn.example.com/a.png", "fresh.png")},
	})

	// The checkpointed first event carries media the index no longer
	// has; a resume must keep it rather than recompute it.
	ckpts := newMemCkpts()
	require.NoError(t, ckpts.Save(ctx, LinkCheckpointKey, linkState{
		Version: linkStateVersion,
		Events: []LinkedEvent{{
			Event: Event{Date: "2004", Description: "First", Source: "Sonichu"},
			Media: EventMedia{
				Images: []media.ImageRecord{imageRecord("https://cdn.example.com/old.png", "sentinel.png")},
				Videos: []wiki.Video{},
			},
		}},
	}))

	linked, _, err := NewLinker(blobs, ckpts, 100, nil).Run(ctx)
	require.NoError(t, err)

	require.Len(t, linked.Events, 2)
	require.Len(t, linked.Events[0].Media.Images, 1)
	assert.Equal(t, "sentinel.png", linked.Events[0].Media.Images[0].Filename)
	require.Len(t, linked.Events[1].Media.Images, 1)
	assert.Equal(t, "fresh.png", linked.Events[1].Media.Images[0].Filename)
}

func TestLinkStaleCheckpointStartsFresh(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	putTimeline(t, blobs, Event{Date: "2004", Description: "Only", Source: "Sonichu"})
	putMediaIndex(t, blobs, media.PageMedia{SafeFilename: "Sonichu"})

	ckpts := newMemCkpts()
	require.NoError(t, ckpts.Save(ctx, LinkCheckpointKey, linkState{
		Version: linkStateVersion,
		Events:  make([]LinkedEvent, 5),
	}))

	linked, _, err := NewLinker(blobs, ckpts, 100, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, linked.TotalEvents)
}

func TestLinkCheckpointCadence(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	putTimeline(t, blobs,
		Event{Date: "2004", Description: "a", Source: "Sonichu"},
		Event{Date: "2005", Description: "b", Source: "Sonichu"},
		Event{Date: "2006", Description: "c", Source: "Sonichu"},
	)
	putMediaIndex(t, blobs, media.PageMedia{SafeFilename: "Sonichu"})

	ckpts := newMemCkpts()
	_, _, err := NewLinker(blobs, ckpts, 2, nil).Run(ctx)
	require.NoError(t, err)

	// One save after the second event plus the final save.
	assert.Equal(t, 2, ckpts.saves)
}

func TestLinkRequiresTimeline(t *testing.T) {
	_, _, err := NewLinker(memory.NewBlobStore(), newMemCkpts(), 100, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeline")
}

func TestLinkSkipsWithoutMediaIndex(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobStore()
	putTimeline(t, blobs, Event{Date: "2004", Description: "Only"})

	_, skipped, err := NewLinker(blobs, newMemCkpts(), 100, nil).Run(ctx)
	require.NoError(t, err)
	assert.True(t, skipped)

	putMediaIndex(t, blobs)
	_, skipped, err = NewLinker(blobs, newMemCkpts(), 100, nil).Run(ctx)
	require.NoError(t, err)
	assert.True(t, skipped)

	_, err = blobs.Get(ctx, LinkedTimelinePath)
	require.Error(t, err)
}
