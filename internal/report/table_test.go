package report

import (
	"bytes"
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/treasury-sim/internal/types"
)

func TestWriteMonthlyTable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMonthlyTable(&buf, []types.MonthSnapshot{
		{Month: 0, Price: 1, RemainingSupply: sdkmath.LegacyNewDec(1_500_000)},
		{Month: 12, Price: 0.95, ExpectedIRR: math.Inf(-1), RedeemedTotal: sdkmath.LegacyNewDec(1_200_000), TotalTVL: 301_500_000},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "1500000")
	assert.Contains(t, out, "0.9500")
	assert.Contains(t, out, "redeem")
	assert.Contains(t, out, "301.5M")
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummary(&buf, types.RunSummary{RunID: "abc", Months: 60, FinalPrice: 0.5, PriceVolatility: 0.25})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "25.00%")
	assert.Contains(t, buf.String(), "abc")
}
