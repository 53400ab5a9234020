package liquidity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfcli/pkg/contracts/domain"
)

func TestPremium_WithinThresholdsIsOK(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	snap := testSnapshot(map[domain.Field]float64{
		domain.FieldLastPrice: 100.05,
		domain.FieldIIV:       100.00,
	})

	result, err := analyzer.Premium(snap)
	require.NoError(t, err)

	assert.InEpsilon(t, 0.0005, result.Premium, 1e-9)
	assert.Equal(t, domain.SeverityOK, result.Severity)
	assert.False(t, result.Stale)
	assert.Empty(t, result.Alerts)
}

func TestPremium_DiscountIsNegative(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	snap := testSnapshot(map[domain.Field]float64{
		domain.FieldLastPrice: 98.50,
		domain.FieldIIV:       100.00,
	})

	result, err := analyzer.Premium(snap)
	require.NoError(t, err)

	assert.InEpsilon(t, -0.015, result.Premium, 1e-9)
	assert.Equal(t, domain.SeverityWarning, result.Severity)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, MetricPremiumDiscount, result.Alerts[0].Metric)
	assert.Contains(t, result.Alerts[0].Message, "discount")
	assert.InEpsilon(t, 0.01, result.Alerts[0].Threshold, 1e-12)
}

func TestPremium_LargeDivergenceGradesError(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	snap := testSnapshot(map[domain.Field]float64{
		domain.FieldLastPrice: 103.50,
		domain.FieldIIV:       100.00,
	})

	result, err := analyzer.Premium(snap)
	require.NoError(t, err)

	assert.Equal(t, domain.SeverityError, result.Severity)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, domain.SeverityError, result.Alerts[0].Severity)
	assert.InEpsilon(t, 0.03, result.Alerts[0].Threshold, 1e-12)
	assert.Contains(t, result.Alerts[0].Message, "premium")
}

func TestPremium_StaleInputsDowngradeError(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	snap := testSnapshot(map[domain.Field]float64{
		domain.FieldLastPrice: 103.50,
		domain.FieldIIV:       100.00,
	})
	markStale(snap, domain.FieldIIV)

	result, err := analyzer.Premium(snap)
	require.NoError(t, err)

	assert.True(t, result.Stale)
	assert.Equal(t, domain.SeverityWarning, result.Severity,
		"an error-grade divergence against a frozen IIV reads as warning")
	require.Len(t, result.Alerts, 1)
	assert.Contains(t, result.Alerts[0].Message, "stale")
	assert.InEpsilon(t, 0.03, result.Alerts[0].Threshold, 1e-12,
		"the alert still names the boundary that was crossed")
}

func TestPremium_StaleWarningStaysWarning(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	snap := testSnapshot(map[domain.Field]float64{
		domain.FieldLastPrice: 101.50,
		domain.FieldIIV:       100.00,
	})
	markStale(snap, domain.FieldLastPrice)

	result, err := analyzer.Premium(snap)
	require.NoError(t, err)

	assert.True(t, result.Stale)
	assert.Equal(t, domain.SeverityWarning, result.Severity)
}

func TestPremium_MissingInputsRejected(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	t.Run("no IIV", func(t *testing.T) {
		snap := testSnapshot(map[domain.Field]float64{
			domain.FieldLastPrice: 100.00,
		})

		result, err := analyzer.Premium(snap)

		require.Error(t, err)
		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, string(domain.FieldIIV), verr.Field)
		assert.Nil(t, result)
	})

	t.Run("no last price", func(t *testing.T) {
		snap := testSnapshot(map[domain.Field]float64{
			domain.FieldIIV: 100.00,
		})

		result, err := analyzer.Premium(snap)

		require.Error(t, err)
		var verr ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, string(domain.FieldLastPrice), verr.Field)
		assert.Nil(t, result)
	})

	t.Run("non-positive IIV", func(t *testing.T) {
		snap := testSnapshot(map[domain.Field]float64{
			domain.FieldLastPrice: 100.00,
			domain.FieldIIV:       0,
		})

		result, err := analyzer.Premium(snap)

		require.Error(t, err)
		assert.Nil(t, result)
	})
}
