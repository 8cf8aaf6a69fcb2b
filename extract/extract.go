// Package extract turns raw HTML into clean, single-line article text.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/Flankrr/pvo-limburg/article"
)

// MinArticleWords is the floor below which a readability result is assumed
// to have captured only a caption or teaser rather than the article body.
const MinArticleWords = 40

// Text extracts the main body text from an HTML document. It tries a
// readability-style extraction first and falls back to concatenating every
// paragraph in the raw document. It never fails: malformed input yields an
// empty string.
func Text(html string) string {
	if html == "" {
		return ""
	}
	if text, ok := readableText(html); ok {
		return text
	}
	return allParagraphText(html)
}

// readableText runs the primary strategy: extract the article body with
// go-readability, then collect the paragraph text of that rendering. The
// result only counts when it clears the word floor.
func readableText(html string) (string, bool) {
	art, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(art.Content))
	if err != nil {
		return "", false
	}

	text := paragraphText(doc)
	if len(strings.Fields(text)) > MinArticleWords {
		return text, true
	}
	return "", false
}

// allParagraphText is the fallback: the text of every <p> element in the raw
// document, in document order, joined by single spaces.
func allParagraphText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return paragraphText(doc)
}

func paragraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := article.CollapseWhitespace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

// StripTags returns the whitespace-collapsed plain text of one HTML
// fragment, such as a single formatted paragraph from an API response. A
// fragment that cannot be parsed is collapsed as-is.
func StripTags(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return article.CollapseWhitespace(fragment)
	}
	return article.CollapseWhitespace(doc.Text())
}
