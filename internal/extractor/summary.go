package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricescout/pricescout/internal/scout"
)

// CardSelectors points the summary parser at the pieces of a product card.
// Empty selectors fall back to text heuristics.
type CardSelectors struct {
	Name         string
	Image        string
	Link         string
	Quantity     string
	DeliveryTime string
	Badge        string
	OutOfStock   string
}

var (
	currencyFragment = regexp.MustCompile(`(?:₹|Rs\.?\s?)\s*[0-9][0-9,]*(?:\.[0-9]+)?`)
	discountFragment = regexp.MustCompile(`(?i)\d+\s*%\s*off`)
	quantityFragment = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:g|gm|gms|kg|kgs|ml|l|ltr|ltrs|pc|pcs|piece|pieces|pack|packs|unit|units|dozen)\b`)
	deliveryFragment = regexp.MustCompile(`(?i)\b\d+\s*(?:min|mins|minutes|hr|hrs|hours)\b`)
	spaceRun         = regexp.MustCompile(`\s+`)
)

var actionLabels = map[string]struct{}{
	"add":          {},
	"add to cart":  {},
	"buy now":      {},
	"notify me":    {},
	"notify":       {},
	"options":      {},
	"out of stock": {},
	"sold out":     {},
}

// ParseCardSummary extracts the price-independent fields from one card's
// markup. Prices never come from cards; the detail page is authoritative.
func ParseCardSummary(baseURL string, sel CardSelectors, cardHTML string) (scout.CardSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cardHTML))
	if err != nil {
		return scout.CardSummary{}, fmt.Errorf("parse card: %w", err)
	}

	summary := scout.CardSummary{}

	name := firstText(doc, sel.Name)
	if name == "" {
		name = doc.Text()
	}
	summary.Name = CleanName(name)
	if summary.Name == "" {
		return scout.CardSummary{}, fmt.Errorf("card has no usable name")
	}

	if img := firstAttr(doc, orDefault(sel.Image, "img"), "src"); img != "" {
		if abs := absoluteURL(baseURL, img); abs != "" {
			summary.ImageURL = &abs
		}
	}
	if href := firstAttr(doc, orDefault(sel.Link, "a"), "href"); href != "" {
		if abs := absoluteURL(baseURL, href); abs != "" {
			summary.ProductURL = &abs
		}
	}

	cardText := doc.Text()
	if qty := firstMatch(doc, sel.Quantity, quantityFragment, cardText); qty != "" {
		summary.Quantity = &qty
	}
	if eta := firstMatch(doc, sel.DeliveryTime, deliveryFragment, cardText); eta != "" {
		summary.DeliveryTime = &eta
	}

	if sel.Badge != "" {
		doc.Find(sel.Badge).Each(func(_ int, s *goquery.Selection) {
			if text := clean(s.Text()); text != "" {
				summary.Badges = append(summary.Badges, text)
			}
		})
	}

	lower := strings.ToLower(cardText)
	summary.IsOutOfStock = strings.Contains(lower, "out of stock") || strings.Contains(lower, "sold out")
	if !summary.IsOutOfStock && sel.OutOfStock != "" {
		summary.IsOutOfStock = doc.Find(sel.OutOfStock).Length() > 0
	}

	return summary, nil
}

// CleanName strips currency fragments, discount-badge text and action
// button labels out of raw card text, keeping the first line that is left.
func CleanName(raw string) string {
	for line := range strings.Lines(raw) {
		line = currencyFragment.ReplaceAllString(line, " ")
		line = discountFragment.ReplaceAllString(line, " ")
		line = clean(line)
		if line == "" {
			continue
		}
		if _, action := actionLabels[strings.ToLower(line)]; action {
			continue
		}
		return line
	}
	return ""
}

func clean(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func firstText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return doc.Find(selector).First().Text()
}

func firstAttr(doc *goquery.Document, selector, attr string) string {
	if selector == "" {
		return ""
	}
	val, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(val)
}

// firstMatch prefers the configured selector text and falls back to a
// pattern scan of the whole card.
func firstMatch(doc *goquery.Document, selector string, pattern *regexp.Regexp, cardText string) string {
	if selector != "" {
		if text := clean(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return clean(pattern.FindString(cardText))
}

func absoluteURL(base, ref string) string {
	parsedRef, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	if parsedRef.IsAbs() {
		return parsedRef.String()
	}
	parsedBase, err := url.Parse(base)
	if err != nil || parsedBase.Scheme == "" {
		return ""
	}
	return parsedBase.ResolveReference(parsedRef).String()
}

func orDefault(selector, fallback string) string {
	if selector == "" {
		return fallback
	}
	return selector
}
