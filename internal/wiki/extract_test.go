package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `
<html>
<head><title>ignored</title></head>
<body>
<h1 class="firstHeading">Sonichu</h1>
<div id="mw-content-text">
  <p>Sonichu is an <a href="/cwcki/Electric_hedgehog_pokemon">electric hedgehog</a>
  drawn by <a href="/cwcki/Chris">Chris</a>. See also
  <a href="/cwcki/Special:RecentChanges">recent changes</a> and
  <a href="/cwcki/Chris">Chris</a> again.</p>
  <figure>
    <img src="/images/sonichu.png" alt="Sonichu cover" title="Issue 0">
    <figcaption>The first issue</figcaption>
  </figure>
  <div class="thumbinner">
    <img src="/images/rosechu.png" alt="Rosechu">
    <div class="thumbcaption">Rosechu, as drawn in 2005</div>
  </div>
  <iframe src="https://www.youtube.com/embed/abc123"></iframe>
  <iframe src="https://maps.example.com/embed"></iframe>
  <video src="/media/clip.mp4" poster="/media/clip.jpg"></video>
  <script>console.log("noise")</script>
</div>
<div id="mw-normal-catlinks">
  <a href="/cwcki/Special:Categories">Categories</a>:
  <a href="/cwcki/Category:Comics">Comics</a>
  <a href="/cwcki/Category:Characters">Characters</a>
</div>
</body>
</html>`

func testSite(t *testing.T) Site {
	t.Helper()
	site, err := NewSite("https://wiki.example.com/cwcki/Main_Page")
	require.NoError(t, err)
	return site
}

func TestParseDocument(t *testing.T) {
	site := testSite(t)
	doc, err := ParseDocument(site, "https://wiki.example.com/cwcki/Sonichu", []byte(articleHTML))
	require.NoError(t, err)

	assert.Equal(t, "Sonichu", doc.Title)
	assert.Equal(t, []string{"Comics", "Characters"}, doc.Categories)
	assert.Equal(t, []string{"electric hedgehog", "Chris"}, doc.Links,
		"link text deduplicated, special pages excluded")

	require.Len(t, doc.Images, 2)
	assert.Equal(t, "https://wiki.example.com/images/sonichu.png", doc.Images[0].URL)
	assert.Equal(t, "Sonichu cover", doc.Images[0].AltText)
	assert.Equal(t, "Issue 0", doc.Images[0].Title)
	assert.Equal(t, "The first issue", doc.Images[0].Caption)
	assert.Equal(t, "Rosechu, as drawn in 2005", doc.Images[1].Caption)

	require.Len(t, doc.Videos, 2)
	assert.Equal(t, "youtube", doc.Videos[0].Type)
	assert.Equal(t, "https://www.youtube.com/embed/abc123", doc.Videos[0].URL)
	assert.Equal(t, "video", doc.Videos[1].Type)
	assert.Equal(t, "https://wiki.example.com/media/clip.mp4", doc.Videos[1].URL)
	assert.Equal(t, "https://wiki.example.com/media/clip.jpg", mustResolve(t, doc.URL, doc.Videos[1].Poster))

	assert.Contains(t, doc.ContentHTML, "electric hedgehog")
}

func mustResolve(t *testing.T, base, href string) string {
	t.Helper()
	got, err := Resolve(base, href)
	require.NoError(t, err)
	return got
}

func TestParseDocumentFallbackHeading(t *testing.T) {
	html := `<html><body><h1>Plain Title</h1><div id="content"><p>text</p></div></body></html>`
	doc, err := ParseDocument(testSite(t), "https://wiki.example.com/cwcki/Plain", []byte(html))
	require.NoError(t, err)
	assert.Equal(t, "Plain Title", doc.Title)
}

func TestContentLinks(t *testing.T) {
	site := testSite(t)
	title, links, err := ContentLinks(site, "https://wiki.example.com/cwcki/Sonichu", []byte(articleHTML))
	require.NoError(t, err)

	assert.Equal(t, "Sonichu", title)
	assert.Equal(t, []string{
		"https://wiki.example.com/cwcki/Electric_hedgehog_pokemon",
		"https://wiki.example.com/cwcki/Chris",
		"https://wiki.example.com/cwcki/Chris",
	}, links, "discovery keeps duplicates, the frontier dedupes against Visited")
}

func TestCleanText(t *testing.T) {
	html := `<div><script>var x = 1;</script><style>p{}</style>
	<p>First   line</p>
	<p>  Second line  </p>
	<p></p></div>`
	got := CleanText(html)
	assert.Equal(t, "First\nline\nSecond line", got)
	assert.NotContains(t, got, "var x")
}

func TestParseDocumentNoContentDiv(t *testing.T) {
	html := `<html><body><h1 class="firstHeading">Orphan</h1></body></html>`
	doc, err := ParseDocument(testSite(t), "https://wiki.example.com/cwcki/Orphan", []byte(html))
	require.NoError(t, err)
	assert.Equal(t, "Orphan", doc.Title)
	assert.Empty(t, doc.Images)
	assert.Empty(t, doc.Links)
}
