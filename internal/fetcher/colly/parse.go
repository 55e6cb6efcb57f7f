package collyfetcher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
	"github.com/JakeFAU/archive-harvester/internal/extract"
)

const titleSelector = "div.float-left h1"

// Parse turns a document page into a RawDocument. The title is the first
// text node directly under the page heading. Every paragraph containing a
// region label contributes all of its descendant text nodes, in document
// order, to that label's region.
func Parse(id int, url string, body []byte) (crawler.RawDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.RawDocument{}, fmt.Errorf("parse document %d: %w", id, err)
	}

	raw := crawler.RawDocument{
		ID:      id,
		URL:     url,
		Title:   firstOwnText(doc.Find(titleSelector).First()),
		Regions: make(map[string][]string),
	}
	paragraphs := doc.Find("p")
	for _, label := range extract.RegionLabels() {
		var fragments []string
		paragraphs.Each(func(_ int, p *goquery.Selection) {
			if !strings.Contains(p.Text(), label) {
				return
			}
			for _, n := range p.Nodes {
				fragments = appendTextNodes(fragments, n)
			}
		})
		if len(fragments) > 0 {
			raw.Regions[label] = fragments
		}
	}
	return raw, nil
}

func firstOwnText(sel *goquery.Selection) string {
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				return c.Data
			}
		}
	}
	return ""
}

func appendTextNodes(dst []string, n *html.Node) []string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			dst = append(dst, c.Data)
		case html.ElementNode:
			dst = appendTextNodes(dst, c)
		}
	}
	return dst
}
