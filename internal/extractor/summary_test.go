package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCardSummary(t *testing.T) {
	t.Parallel()

	card := `<div class="card">
		<img src="/img/milk.png"/>
		<a href="/p/amul-taaza-500"></a>
		<div class="name">Amul Taaza Toned Milk</div>
		<span class="qty">500 ml</span>
		<div class="eta">8 mins</div>
		<div class="badge">10% OFF</div>
		<span>&#8377;28</span>
	</div>`

	sel := CardSelectors{
		Name:         ".name",
		Quantity:     ".qty",
		DeliveryTime: ".eta",
		Badge:        ".badge",
	}

	summary, err := ParseCardSummary("https://example.com", sel, card)
	require.NoError(t, err)
	require.Equal(t, "Amul Taaza Toned Milk", summary.Name)
	require.NotNil(t, summary.ImageURL)
	require.Equal(t, "https://example.com/img/milk.png", *summary.ImageURL)
	require.NotNil(t, summary.ProductURL)
	require.Equal(t, "https://example.com/p/amul-taaza-500", *summary.ProductURL)
	require.NotNil(t, summary.Quantity)
	require.Equal(t, "500 ml", *summary.Quantity)
	require.NotNil(t, summary.DeliveryTime)
	require.Equal(t, "8 mins", *summary.DeliveryTime)
	require.Equal(t, []string{"10% OFF"}, summary.Badges)
	require.False(t, summary.IsOutOfStock)
}

func TestParseCardSummaryOutOfStock(t *testing.T) {
	t.Parallel()

	card := `<div class="card">
		<div class="name">Amul Butter</div>
		<p>Sold Out</p>
	</div>`

	summary, err := ParseCardSummary("https://example.com", CardSelectors{Name: ".name"}, card)
	require.NoError(t, err)
	require.True(t, summary.IsOutOfStock)
}

func TestParseCardSummaryNameFallsBackToCardText(t *testing.T) {
	t.Parallel()

	card := `<div>
		&#8377;45
		Britannia Bread
		ADD
	</div>`

	summary, err := ParseCardSummary("https://example.com", CardSelectors{}, card)
	require.NoError(t, err)
	require.Equal(t, "Britannia Bread", summary.Name)
}

func TestParseCardSummaryRejectsNamelessCard(t *testing.T) {
	t.Parallel()

	_, err := ParseCardSummary("https://example.com", CardSelectors{}, `<div>&#8377;45 ADD</div>`)
	require.Error(t, err)
}

func TestCleanName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Amul Milk", "Amul Milk"},
		{"₹45\nAmul Milk\nADD", "Amul Milk"},
		{"12% OFF\nTata Salt 1 kg", "Tata Salt 1 kg"},
		{"ADD", ""},
		{"  ", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CleanName(tc.in), "input %q", tc.in)
	}
}
