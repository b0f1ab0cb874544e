package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractPricesDetailPage(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<div class="pdp">
			<div class="product-price" style="font-size: 20px">&#8377;199</div>
			<s><span class="mrp-label">&#8377;249</span></s>
		</div>
		<div class="footer">Free delivery on orders above &#8377;99</div>
	</body></html>`

	price, mrp, err := ExtractPrices(page, "div.pdp")
	require.NoError(t, err)
	require.NotNil(t, price)
	require.NotNil(t, mrp)
	require.Equal(t, 199.0, *price)
	require.Equal(t, 249.0, *mrp)
}

func TestExtractPricesDeliveryBannerOnly(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<div class="note">Free delivery on orders above &#8377;99</div>
	</body></html>`

	price, mrp, err := ExtractPrices(page, "")
	require.NoError(t, err)
	require.Nil(t, price)
	require.Nil(t, mrp)
}

func TestExtractPricesNoCurrencyText(t *testing.T) {
	t.Parallel()

	price, mrp, err := ExtractPrices(`<html><body><p>Sold out</p></body></html>`, "")
	require.NoError(t, err)
	require.Nil(t, price)
	require.Nil(t, mrp)
}

func TestExtractPricesRejectsUnitAdjacentAmounts(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<div class="detail">
			<span>500 g &#8377;45</span>
			<span class="price">&#8377;60</span>
		</div>
	</body></html>`

	price, mrp, err := ExtractPrices(page, "div.detail")
	require.NoError(t, err)
	require.NotNil(t, price)
	require.Equal(t, 60.0, *price)
	require.Nil(t, mrp)
}

func TestExtractPricesUnitAdjacentFallback(t *testing.T) {
	t.Parallel()

	// With nothing cleaner on the page the unit-adjacent amount still wins.
	page := `<html><body><span>500 g &#8377;45</span></body></html>`

	price, _, err := ExtractPrices(page, "")
	require.NoError(t, err)
	require.NotNil(t, price)
	require.Equal(t, 45.0, *price)
}

func TestExtractPricesImplausibleValuesIgnored(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<span class="price">&#8377;5</span>
		<span class="pin">&#8377;560034</span>
	</body></html>`

	price, mrp, err := ExtractPrices(page, "")
	require.NoError(t, err)
	require.Nil(t, price)
	require.Nil(t, mrp)
}

func TestExtractPricesRsNotation(t *testing.T) {
	t.Parallel()

	page := `<html><body><div class="price">Rs. 1,249.50</div></body></html>`

	price, _, err := ExtractPrices(page, "")
	require.NoError(t, err)
	require.NotNil(t, price)
	require.Equal(t, 1249.50, *price)
}

func TestExtractPricesDeterministic(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<div class="pdp">
			<div class="price" style="font-size: 18px">&#8377;120</div>
			<del>&#8377;150</del>
			<span>&#8377;120</span>
		</div>
	</body></html>`

	first, firstMRP, err := ExtractPrices(page, "div.pdp")
	require.NoError(t, err)
	second, secondMRP, err := ExtractPrices(page, "div.pdp")
	require.NoError(t, err)
	require.Equal(t, *first, *second)
	require.Equal(t, *firstMRP, *secondMRP)
	require.Equal(t, 120.0, *first)
	require.Equal(t, 150.0, *firstMRP)
}

func TestDedupeByValueKeepsHighestPriority(t *testing.T) {
	t.Parallel()

	in := []PriceCandidate{
		{Value: 199, Priority: 3},
		{Value: 249, Priority: 1},
		{Value: 199, Priority: 15},
	}
	out := DedupeByValue(in)
	require.Len(t, out, 2)
	require.Equal(t, 199.0, out[0].Value)
	require.Equal(t, 15, out[0].Priority)
	require.Equal(t, 249.0, out[1].Value)
}

func TestSelectPricesEmpty(t *testing.T) {
	t.Parallel()

	price, mrp := SelectPrices(nil)
	require.Nil(t, price)
	require.Nil(t, mrp)
}

func TestSelectPricesStruckBecomesMRP(t *testing.T) {
	t.Parallel()

	price, mrp := SelectPrices([]PriceCandidate{
		{Value: 199, Priority: 18},
		{Value: 249, Priority: 15, IsStrikethrough: true},
	})
	require.NotNil(t, price)
	require.NotNil(t, mrp)
	require.Equal(t, 199.0, *price)
	require.Equal(t, 249.0, *mrp)
}

func TestSelectPricesAllStruckFallback(t *testing.T) {
	t.Parallel()

	price, mrp := SelectPrices([]PriceCandidate{
		{Value: 250, Priority: 5, IsStrikethrough: true},
		{Value: 100, Priority: 5, IsStrikethrough: true},
	})
	require.NotNil(t, price)
	require.NotNil(t, mrp)
	require.Equal(t, 100.0, *price)
	require.Equal(t, 250.0, *mrp)
}

func TestSelectPricesPriorityBeatsValue(t *testing.T) {
	t.Parallel()

	// A cheap low-priority candidate (a related-products tile, say) must not
	// displace the detail-region price.
	price, _ := SelectPrices([]PriceCandidate{
		{Value: 35, Priority: 0},
		{Value: 199, Priority: 18},
	})
	require.NotNil(t, price)
	require.Equal(t, 199.0, *price)
}
