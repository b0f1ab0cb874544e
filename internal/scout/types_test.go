package scout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestApplyDiscount(t *testing.T) {
	t.Parallel()

	p := Product{Price: ptr(80), MRP: ptr(100)}
	p.ApplyDiscount()
	require.NotNil(t, p.Discount)
	require.NotNil(t, p.DiscountAmount)
	require.Equal(t, 20.0, *p.Discount)
	require.Equal(t, 20.0, *p.DiscountAmount)
}

func TestApplyDiscountRounds(t *testing.T) {
	t.Parallel()

	p := Product{Price: ptr(199), MRP: ptr(249)}
	p.ApplyDiscount()
	require.NotNil(t, p.Discount)
	require.Equal(t, 20.0, *p.Discount)
	require.Equal(t, 50.0, *p.DiscountAmount)
}

func TestApplyDiscountRequiresBothPrices(t *testing.T) {
	t.Parallel()

	p := Product{Price: ptr(80)}
	p.ApplyDiscount()
	require.Nil(t, p.Discount)

	p = Product{MRP: ptr(100)}
	p.ApplyDiscount()
	require.Nil(t, p.Discount)
}

func TestApplyDiscountClearsWhenInvariantBreaks(t *testing.T) {
	t.Parallel()

	p := Product{Price: ptr(100), MRP: ptr(100), Discount: ptr(5), DiscountAmount: ptr(5)}
	p.ApplyDiscount()
	require.Nil(t, p.Discount)
	require.Nil(t, p.DiscountAmount)

	p = Product{Price: ptr(120), MRP: ptr(100)}
	p.ApplyDiscount()
	require.Nil(t, p.Discount)
}

func TestJobStatusIsTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, JobStatusQueued.IsTerminal())
	require.False(t, JobStatusProcessing.IsTerminal())
	require.True(t, JobStatusCompleted.IsTerminal())
	require.True(t, JobStatusFailed.IsTerminal())
}
