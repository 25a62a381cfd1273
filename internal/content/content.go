// Package content reduces fetched HTML pages to the text the extraction
// pipeline works from.
package content

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fieldset/fieldset-api/internal/crawl"
)

// ExtractedContent is the distilled text of one page.
type ExtractedContent struct {
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	Headings        []string  `json:"headings"`
	BodyText        string    `json:"body_text"`
	WordCount       int       `json:"word_count"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// chrome is the markup that never carries page content.
var chrome = []string{"script", "style", "noscript", "svg", "nav", "header", "footer", "iframe"}

// Extract distills a fetched page into its text content. Unparseable HTML
// yields an ExtractedContent with empty text rather than an error; goquery
// tolerates almost anything, so that path is rare.
func Extract(page crawl.FetchedPage) ExtractedContent {
	out := ExtractedContent{URL: page.URL, FetchedAt: page.FetchedAt}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return out
	}

	doc.Find(strings.Join(chrome, ", ")).Remove()

	out.Title = strings.TrimSpace(doc.Find("title").First().Text())
	out.MetaDescription = strings.TrimSpace(doc.Find(`meta[name="description"]`).First().AttrOr("content", ""))

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if h := collapseWhitespace(s.Text()); h != "" {
			out.Headings = append(out.Headings, h)
		}
	})

	out.BodyText = collapseWhitespace(doc.Find("body").Text())
	out.WordCount = len(strings.Fields(out.BodyText))

	return out
}

// collapseWhitespace trims and folds runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
