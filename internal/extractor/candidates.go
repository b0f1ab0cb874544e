// Package extractor turns rendered page markup into priced product records.
// The price disambiguation heuristic lives here: collect currency-marked
// text, throw away delivery thresholds and package sizes, score what is
// left and split it into current price and MRP.
package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PriceCandidate is one currency-marked number found on the page, scored
// for how likely it is to be the product price. Candidates are discarded
// once a product record has been built.
type PriceCandidate struct {
	Value           float64
	IsStrikethrough bool
	Priority        int
	SourceText      string
}

// Plausible product price range; digits outside it are treated as noise
// (pin codes, item counts, phone fragments).
const (
	minPlausiblePrice = 10
	maxPlausiblePrice = 50000
)

var currencyPattern = regexp.MustCompile(`(?:₹|Rs\.?\s?)\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

var fontSizePattern = regexp.MustCompile(`font-size\s*:\s*([0-9.]+)\s*px`)

type rawCandidate struct {
	value        float64
	sourceText   string
	classes      string
	fontSizePx   float64
	inDetail     bool
	struck       bool
	unitAdjacent bool
}

// collectRaw scans every element carrying its own currency-marked text.
// detailSelector, when it matches, marks the product-detail region so its
// candidates can be preferred during scoring.
func collectRaw(pageHTML, detailSelector string) ([]rawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	detailNodes := map[*html.Node]struct{}{}
	if detailSelector != "" {
		doc.Find(detailSelector).Each(func(_ int, s *goquery.Selection) {
			for _, n := range s.Nodes {
				detailNodes[n] = struct{}{}
			}
		})
	}

	var out []rawCandidate
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Nodes[0]
		text := ownText(node)
		if text == "" || !strings.ContainsAny(text, "₹R") {
			return
		}
		matches := currencyPattern.FindAllStringSubmatchIndex(text, -1)
		if len(matches) == 0 {
			return
		}

		window := textWindow(node, text)
		classes := classChain(node)
		size := effectiveFontSize(node)
		struck := isStruck(node)
		detail := insideDetail(node, detailNodes)

		for _, m := range matches {
			digits := text[m[2]:m[3]]
			value, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
			if err != nil {
				continue
			}
			if value < minPlausiblePrice || value >= maxPlausiblePrice {
				continue
			}
			out = append(out, rawCandidate{
				value:        value,
				sourceText:   window,
				classes:      classes,
				fontSizePx:   size,
				inDetail:     detail,
				struck:       struck,
				unitAdjacent: unitAdjacent(text, m[0], m[1]),
			})
		}
	})
	return out, nil
}

// ownText concatenates the element's direct text nodes, skipping children,
// so nested price elements are attributed once.
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// textWindow widens the candidate's context with the parent's direct text,
// which is where qualifiers like "Free delivery on orders above" sit.
func textWindow(n *html.Node, own string) string {
	window := own
	if n.Parent != nil {
		if parentText := ownText(n.Parent); parentText != "" {
			window = parentText + " " + window
		}
		if n.Parent.Parent != nil {
			if grand := ownText(n.Parent.Parent); grand != "" {
				window = grand + " " + window
			}
		}
	}
	return window
}

func classChain(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && len(parts) < 3; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		for _, attr := range cur.Attr {
			if attr.Key == "class" && attr.Val != "" {
				parts = append(parts, attr.Val)
			}
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// effectiveFontSize walks up from the element until an inline font-size
// turns up. Zero means unknown.
func effectiveFontSize(n *html.Node) float64 {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		for _, attr := range cur.Attr {
			if attr.Key != "style" {
				continue
			}
			if m := fontSizePattern.FindStringSubmatch(attr.Val); m != nil {
				size, err := strconv.ParseFloat(m[1], 64)
				if err == nil {
					return size
				}
			}
		}
	}
	return 0
}

// isStruck detects strikethrough rendering: an s/del/strike ancestor or an
// inline line-through declaration.
func isStruck(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		switch cur.Data {
		case "s", "del", "strike":
			return true
		}
		for _, attr := range cur.Attr {
			if attr.Key == "style" && strings.Contains(strings.ToLower(attr.Val), "line-through") {
				return true
			}
		}
	}
	return false
}

func insideDetail(n *html.Node, detailNodes map[*html.Node]struct{}) bool {
	if len(detailNodes) == 0 {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if _, ok := detailNodes[cur]; ok {
			return true
		}
	}
	return false
}
