package extractor

import (
	"regexp"
	"sort"
	"strings"
)

// Character window either side of a currency match inspected for weight and
// quantity unit tokens. "500 g ₹45" puts "g" well inside it.
const unitWindow = 12

var unitTokenPattern = regexp.MustCompile(
	`(?i)(?:^|[\s\d])(g|gm|gms|kg|kgs|ml|l|ltr|ltrs|pc|pcs|piece|pieces|pack|packs|unit|units|dozen)(?:$|[\s₹.,])`,
)

// Phrases marking a currency amount as a delivery threshold, minimum-order
// amount or shipping fee rather than a product price.
var deliveryPhrases = []string{
	"free delivery",
	"delivery fee",
	"delivery charge",
	"orders above",
	"order above",
	"minimum order",
	"min order",
	"min. order",
	"shipping",
	"handling",
	"convenience fee",
	"surge",
}

func unitAdjacent(text string, start, end int) bool {
	lo := start - unitWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + unitWindow
	if hi > len(text) {
		hi = len(text)
	}
	return unitTokenPattern.MatchString(text[lo:hi])
}

func deliveryContext(window string) bool {
	lower := strings.ToLower(window)
	for _, phrase := range deliveryPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

var priceClassTokens = []string{"price", "amount", "rate", "selling", "mrp"}

var deliveryClassTokens = []string{"delivery", "shipping", "fee", "eta"}

func hasToken(classes string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(classes, t) {
			return true
		}
	}
	return false
}

func score(raw rawCandidate) int {
	priority := 0
	if raw.inDetail {
		priority += 10
	}
	if hasToken(raw.classes, priceClassTokens) && !hasToken(raw.classes, deliveryClassTokens) {
		priority += 5
	}
	switch {
	case raw.fontSizePx >= 18:
		priority += 3
	case raw.fontSizePx >= 13:
		priority++
	case raw.fontSizePx > 0 && raw.fontSizePx < 10:
		priority -= 2
	}
	return priority
}

// DedupeByValue keeps one candidate per numeric value, the one with the
// highest priority.
func DedupeByValue(candidates []PriceCandidate) []PriceCandidate {
	best := make(map[float64]int, len(candidates))
	order := make([]float64, 0, len(candidates))
	for i, c := range candidates {
		idx, seen := best[c.Value]
		if !seen {
			best[c.Value] = i
			order = append(order, c.Value)
			continue
		}
		if c.Priority > candidates[idx].Priority {
			best[c.Value] = i
		}
	}
	out := make([]PriceCandidate, 0, len(order))
	for _, v := range order {
		out = append(out, candidates[best[v]])
	}
	return out
}

// SelectPrices picks the current price and the MRP from a deduplicated
// candidate set. MRP comes from strikethrough candidates when any exist;
// the price from the rest. With no unstruck candidates the lowest value
// wins as price and, if MRP is still unset, the highest-value remainder is
// promoted to MRP.
func SelectPrices(candidates []PriceCandidate) (price, mrp *float64) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var struck, unstruck []PriceCandidate
	for _, c := range candidates {
		if c.IsStrikethrough {
			struck = append(struck, c)
		} else {
			unstruck = append(unstruck, c)
		}
	}

	if len(struck) > 0 {
		sort.SliceStable(struck, func(i, j int) bool {
			if struck[i].Priority != struck[j].Priority {
				return struck[i].Priority > struck[j].Priority
			}
			return struck[i].Value > struck[j].Value
		})
		mrp = &struck[0].Value
	}

	if len(unstruck) > 0 {
		sort.SliceStable(unstruck, func(i, j int) bool {
			if unstruck[i].Priority != unstruck[j].Priority {
				return unstruck[i].Priority > unstruck[j].Priority
			}
			return unstruck[i].Value < unstruck[j].Value
		})
		price = &unstruck[0].Value
		return price, mrp
	}

	// Everything was struck through. Lowest value becomes the price; the
	// highest-value leftover becomes MRP when none was picked yet.
	all := append([]PriceCandidate(nil), candidates...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Value < all[j].Value })
	price = &all[0].Value
	if mrp == nil && len(all) > 1 {
		mrp = &all[len(all)-1].Value
	}
	return price, mrp
}

// ExtractPrices runs the full disambiguation heuristic against rendered
// page markup. A page with no currency-marked text is a valid outcome
// (unlisted price or out of stock), not an error.
func ExtractPrices(pageHTML, detailSelector string) (price, mrp *float64, err error) {
	raw, err := collectRaw(pageHTML, detailSelector)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}

	// Delivery thresholds and fees are not product prices. A page whose
	// only currency text is a delivery banner has no price at all.
	filtered := make([]rawCandidate, 0, len(raw))
	for _, c := range raw {
		if !deliveryContext(c.sourceText) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil, nil, nil
	}

	// Numbers glued to weight/quantity units are package sizes. Drop them
	// only while a cleaner candidate survives.
	withoutUnits := make([]rawCandidate, 0, len(filtered))
	for _, c := range filtered {
		if !c.unitAdjacent {
			withoutUnits = append(withoutUnits, c)
		}
	}
	if len(withoutUnits) == 0 {
		withoutUnits = filtered
	}

	scored := make([]PriceCandidate, 0, len(withoutUnits))
	for _, c := range withoutUnits {
		scored = append(scored, PriceCandidate{
			Value:           c.value,
			IsStrikethrough: c.struck,
			Priority:        score(c),
			SourceText:      c.sourceText,
		})
	}

	price, mrp = SelectPrices(DedupeByValue(scored))
	return price, mrp, nil
}
