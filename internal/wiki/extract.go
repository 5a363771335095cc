package wiki

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Image is one image reference found in article content.
type Image struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text"`
	Title   string `json:"title"`
	Caption string `json:"caption"`
}

// Video is one embedded video reference.
type Video struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	EmbedURL string `json:"embed_url,omitempty"`
	Poster   string `json:"poster,omitempty"`
}

// Document is the structured content of one article page.
type Document struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	ContentHTML string    `json:"html_content"`
	Categories  []string  `json:"categories"`
	Links       []string  `json:"links"`
	Images      []Image   `json:"images"`
	Videos      []Video   `json:"videos"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// ParseDocument extracts the article title, body, categories, outbound
// content links, and media references from rendered MediaWiki HTML.
func ParseDocument(site Site, pageURL string, body []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("parse html for %s: %w", pageURL, err)
	}

	d := Document{URL: pageURL, ScrapedAt: time.Now().UTC()}

	title := doc.Find("h1.firstHeading").First()
	if title.Length() == 0 {
		title = doc.Find("h1").First()
	}
	d.Title = strings.TrimSpace(title.Text())

	content := contentRoot(doc)
	if content.Length() > 0 {
		if html, err := goquery.OuterHtml(content); err == nil {
			d.ContentHTML = html
		}
	}

	doc.Find("div#mw-normal-catlinks a").Each(func(_ int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		if text != "" && text != "Categories" {
			d.Categories = append(d.Categories, text)
		}
	})

	seen := map[string]bool{}
	content.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		resolved, err := Resolve(pageURL, href)
		if err != nil || !site.IsContentURL(resolved) {
			return
		}
		text := strings.TrimSpace(a.Text())
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		d.Links = append(d.Links, text)
	})

	d.Images, d.Videos = extractMedia(content, pageURL)
	return d, nil
}

// ContentLinks returns the normalized content URLs linked from the
// article body, for frontier expansion during discovery.
func ContentLinks(site Site, pageURL string, body []byte) (title string, links []string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("parse html for %s: %w", pageURL, err)
	}

	t := doc.Find("h1.firstHeading").First()
	if t.Length() == 0 {
		t = doc.Find("h1").First()
	}
	title = strings.TrimSpace(t.Text())

	contentRoot(doc).Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		resolved, err := Resolve(pageURL, href)
		if err != nil || !site.IsContentURL(resolved) {
			return
		}
		links = append(links, resolved)
	})
	return title, links, nil
}

func contentRoot(doc *goquery.Document) *goquery.Selection {
	content := doc.Find("div#mw-content-text").First()
	if content.Length() == 0 {
		content = doc.Find("div#bodyContent").First()
	}
	if content.Length() == 0 {
		content = doc.Find("div#content").First()
	}
	return content
}

// ExtractMedia pulls image and video references out of stored article
// HTML, for phases that re-read raw page artifacts.
func ExtractMedia(pageURL, html string) ([]Image, []Video, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html for %s: %w", pageURL, err)
	}
	images, videos := extractMedia(doc.Selection, pageURL)
	return images, videos, nil
}

func extractMedia(content *goquery.Selection, pageURL string) ([]Image, []Video) {
	var images []Image
	var videos []Video

	content.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		resolved, err := Resolve(pageURL, src)
		if err != nil {
			return
		}
		entry := Image{URL: resolved}
		entry.AltText, _ = img.Attr("alt")
		entry.Title, _ = img.Attr("title")

		// A thumbnail's caption lives in the enclosing figure or
		// thumbinner wrapper, not on the img itself.
		parent := img.Closest("figure")
		if parent.Length() == 0 {
			parent = img.Closest("div.thumbinner")
		}
		if parent.Length() > 0 {
			caption := parent.Find("figcaption").First()
			if caption.Length() == 0 {
				caption = parent.Find("div.thumbcaption").First()
			}
			entry.Caption = strings.TrimSpace(caption.Text())
		}
		images = append(images, entry)
	})

	content.Find("iframe").Each(func(_ int, iframe *goquery.Selection) {
		src, _ := iframe.Attr("src")
		if strings.Contains(src, "youtube") || strings.Contains(src, "youtu.be") {
			videos = append(videos, Video{Type: "youtube", URL: src, EmbedURL: src})
		}
	})

	content.Find("video").Each(func(_ int, video *goquery.Selection) {
		src, _ := video.Attr("src")
		if src == "" {
			return
		}
		resolved, err := Resolve(pageURL, src)
		if err != nil {
			return
		}
		poster, _ := video.Attr("poster")
		videos = append(videos, Video{Type: "video", URL: resolved, Poster: poster})
	})

	return images, videos
}

// CleanText strips scripts and styles from article HTML and collapses
// the remaining text into non-empty trimmed lines.
func CleanText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	text := doc.Text()

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		for _, chunk := range strings.Split(strings.TrimSpace(line), "  ") {
			chunk = strings.TrimSpace(chunk)
			if chunk != "" {
				lines = append(lines, chunk)
			}
		}
	}
	return strings.Join(lines, "\n")
}
