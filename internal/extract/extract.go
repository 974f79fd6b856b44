// Package extract turns raw page markup into readable article text and
// page metadata. Extraction never fails: each extractor degrades to the
// next fallback, ending at raw text-node concatenation.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Chrome elements that carry no article content.
var boilerplateSelector = "script, style, noscript, template, nav, header, footer, aside, form, iframe, svg, button"

var spaceRun = regexp.MustCompile(`[ \t]+`)

// minArticleRunes is the smallest text length the structured extractors
// will accept before falling through to the next stage.
const minArticleRunes = 120

// Metadata holds page-level fields read from the document head.
type Metadata struct {
	Title       string
	PublishedAt string
}

// Text extracts readable article text from markup. Stages: semantic
// containers, then boilerplate-stripped paragraph harvesting, then the
// concatenation of every text node. Returns "" only when the document
// has no text at all.
func Text(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if text := fromContainers(doc); text != "" {
		return text
	}
	if text := fromParagraphs(doc); text != "" {
		return text
	}
	// Last stage mutates the document; the structured passes are done with it.
	doc.Find("head").Remove()
	doc.Find(boilerplateSelector).Remove()
	return flatten(doc.Text())
}

// fromContainers reads <article> or <main>, the primary extraction pass.
func fromContainers(doc *goquery.Document) string {
	for _, sel := range []string{"article", "main", "[role=main]"} {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		clone := node.Clone()
		clone.Find(boilerplateSelector).Remove()
		text := flatten(clone.Text())
		if len([]rune(text)) >= minArticleRunes {
			return text
		}
	}
	return ""
}

// fromParagraphs is the readability-style pass: strip boilerplate and
// join the remaining paragraph-level blocks.
func fromParagraphs(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	if body.Length() == 0 {
		return ""
	}
	body.Find(boilerplateSelector).Remove()

	var blocks []string
	body.Find("p, li, blockquote, h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		line := flatten(s.Text())
		if line != "" {
			blocks = append(blocks, line)
		}
	})
	text := strings.Join(blocks, "\n")
	if len([]rune(text)) >= minArticleRunes {
		return text
	}
	return ""
}

// Meta reads the title and published date from document metadata.
func Meta(html string) Metadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Metadata{}
	}
	return Metadata{
		Title:       metaTitle(doc),
		PublishedAt: metaPublished(doc),
	}
}

func metaTitle(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[name="twitter:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return flatten(doc.Find("title").First().Text())
}

func metaPublished(doc *goquery.Document) string {
	selectors := []string{
		`meta[property="article:published_time"]`,
		`meta[name="date"]`,
		`meta[itemprop="datePublished"]`,
	}
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// flatten collapses whitespace inside lines and drops empty lines.
func flatten(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
