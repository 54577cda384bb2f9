package equitysplit

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pricePtr(s string) *decimal.Decimal {
	d := price(s)
	return &d
}

func enabledCompany() CompanyEquityConfig {
	return CompanyEquityConfig{CompanyID: "1", EquityEnabled: true}
}

func TestCompute_ZeroPercentageAlwaysZero(t *testing.T) {
	amounts := []int64{0, 1, 99, 100000, 123456789}
	companies := []CompanyEquityConfig{
		{EquityEnabled: true},
		{EquityEnabled: false},
		{EquityEnabled: true, FallbackFMVPerShareUSD: pricePtr("1.25")},
	}
	grants := []*UnvestedGrant{nil, {ID: "g1", SharePriceUSD: price("2.50"), UnvestedShares: 0}}

	for _, amount := range amounts {
		for _, company := range companies {
			for _, grant := range grants {
				res, err := Compute(EquityTerms{ContractorID: "c1", UnvestedGrant: grant}, company, amount, 2024)
				require.NoError(t, err)
				assert.Equal(t, Result{}, res)
				assert.True(t, res.IsZero())
			}
		}
	}
}

func TestCompute_EquityDisabledForcesZero(t *testing.T) {
	terms := EquityTerms{ContractorID: "c1", EquityPercentageBps: 2500}

	res, err := Compute(terms, CompanyEquityConfig{EquityEnabled: false}, 100000, 2024)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	terms.UnvestedGrant = &UnvestedGrant{ID: "g1", SharePriceUSD: price("2.50"), UnvestedShares: 1000}
	res, err = Compute(terms, CompanyEquityConfig{EquityEnabled: false}, 100000, 2024)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestCompute_SplitAndShareConversion(t *testing.T) {
	terms := EquityTerms{
		ContractorID:        "c1",
		EquityPercentageBps: 2500,
		UnvestedGrant:       &UnvestedGrant{ID: "g1", SharePriceUSD: price("2.50"), UnvestedShares: 1000},
	}

	res, err := Compute(terms, enabledCompany(), 100000, 2024)
	require.NoError(t, err)
	assert.Equal(t, Result{EquityAmountCents: 25000, EquityOptionsCount: 100, EquityPercentageBps: 2500}, res)
}

func TestCompute_Idempotent(t *testing.T) {
	terms := EquityTerms{
		ContractorID:        "c1",
		EquityPercentageBps: 1750,
		UnvestedGrant:       &UnvestedGrant{ID: "g1", SharePriceUSD: price("0.37"), UnvestedShares: 100000},
	}
	company := enabledCompany()

	first, err := Compute(terms, company, 987654, 2025)
	require.NoError(t, err)
	second, err := Compute(terms, company, 987654, 2025)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(100000), terms.UnvestedGrant.UnvestedShares)
}

func TestCompute_InsufficientUnvestedShares(t *testing.T) {
	terms := EquityTerms{
		ContractorID:        "c42",
		EquityPercentageBps: 2500,
		UnvestedGrant:       &UnvestedGrant{ID: "g1", SharePriceUSD: price("2.50"), UnvestedShares: 50},
	}

	res, err := Compute(terms, enabledCompany(), 100000, 2024)
	require.Error(t, err)
	assert.Equal(t, Result{}, res)
	assert.True(t, errors.Is(err, ErrInsufficientUnvestedShares))

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, ClassCapacity, failure.Class())
	assert.Equal(t, "c42", failure.ContractorID)
	assert.Equal(t, 2024, failure.InvoiceYear)
}

func TestCompute_FallbackPriceWithoutGrantIsInsufficient(t *testing.T) {
	company := enabledCompany()
	company.FallbackFMVPerShareUSD = pricePtr("2.50")

	_, err := Compute(EquityTerms{ContractorID: "c1", EquityPercentageBps: 2500}, company, 100000, 2024)
	assert.ErrorIs(t, err, ErrInsufficientUnvestedShares)
}

func TestCompute_RoundsToZero(t *testing.T) {
	for _, sharePrice := range []string{"0.01", "1.00", "250"} {
		terms := EquityTerms{
			ContractorID:        "c1",
			EquityPercentageBps: 1,
			UnvestedGrant:       &UnvestedGrant{ID: "g1", SharePriceUSD: price(sharePrice), UnvestedShares: 1000},
		}
		res, err := Compute(terms, enabledCompany(), 10, 2024)
		assert.ErrorIs(t, err, ErrEquityRoundsToZero, sharePrice)
		assert.Equal(t, Result{}, res)

		failure, ok := AsFailure(err)
		require.True(t, ok)
		assert.Equal(t, ClassCapacity, failure.Class())
	}
}

func TestCompute_MissingSharePrice(t *testing.T) {
	_, err := Compute(EquityTerms{ContractorID: "c7", EquityPercentageBps: 1000}, enabledCompany(), 5000, 2023)
	require.ErrorIs(t, err, ErrMissingSharePrice)

	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, ClassConfiguration, failure.Class())
	assert.Contains(t, err.Error(), "c7")
	assert.Contains(t, err.Error(), "2023")
}

func TestCompute_InvalidInput(t *testing.T) {
	cases := []struct {
		name    string
		terms   EquityTerms
		company CompanyEquityConfig
		amount  int64
		year    int
	}{
		{name: "negative amount", terms: EquityTerms{EquityPercentageBps: 0}, company: enabledCompany(), amount: -1, year: 2024},
		{name: "percentage above max", terms: EquityTerms{EquityPercentageBps: 10001}, company: enabledCompany(), amount: 100, year: 2024},
		{name: "negative percentage", terms: EquityTerms{EquityPercentageBps: -5}, company: enabledCompany(), amount: 100, year: 2024},
		{name: "missing year", terms: EquityTerms{EquityPercentageBps: 100}, company: enabledCompany(), amount: 100, year: 0},
		{
			name:    "non-positive grant price",
			terms:   EquityTerms{EquityPercentageBps: 100, UnvestedGrant: &UnvestedGrant{ID: "g0", SharePriceUSD: price("0"), UnvestedShares: 10}},
			company: enabledCompany(),
			amount:  100,
			year:    2024,
		},
		{
			name:    "negative unvested shares",
			terms:   EquityTerms{EquityPercentageBps: 100, UnvestedGrant: &UnvestedGrant{ID: "g0", SharePriceUSD: price("1"), UnvestedShares: -1}},
			company: enabledCompany(),
			amount:  100,
			year:    2024,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.terms, tc.company, tc.amount, tc.year)
			require.ErrorIs(t, err, ErrInvalidInput)
			failure, _ := AsFailure(err)
			assert.Equal(t, ClassValidation, failure.Class())
		})
	}
}

func TestCompute_RoundingModes(t *testing.T) {
	terms := EquityTerms{
		ContractorID:        "c1",
		EquityPercentageBps: 5000,
		UnvestedGrant:       &UnvestedGrant{ID: "g1", SharePriceUSD: price("0.01"), UnvestedShares: 10},
	}

	up, err := NewCalculator().Compute(terms, enabledCompany(), 5, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(3), up.EquityAmountCents)
	assert.Equal(t, int64(3), up.EquityOptionsCount)

	bank, err := NewCalculator(WithRounding(RoundHalfEven)).Compute(terms, enabledCompany(), 5, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(2), bank.EquityAmountCents)
	assert.Equal(t, int64(2), bank.EquityOptionsCount)

	assert.Equal(t, RoundHalfUp, NewCalculator(WithRounding("ceil")).Rounding())
}

func TestCompute_OptionsRoundToNearestShare(t *testing.T) {
	// 30000 * 10% = 3000 cents; 3000 / 700 = 4.28 shares.
	terms := EquityTerms{
		ContractorID:        "c1",
		EquityPercentageBps: 1000,
		UnvestedGrant:       &UnvestedGrant{ID: "g1", SharePriceUSD: price("7"), UnvestedShares: 4},
	}

	res, err := Compute(terms, enabledCompany(), 30000, 2024)
	require.NoError(t, err)
	assert.Equal(t, Result{EquityAmountCents: 3000, EquityOptionsCount: 4, EquityPercentageBps: 1000}, res)
}
