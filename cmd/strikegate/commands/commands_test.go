package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/strikegate/internal/contracts"
)

func TestReadStrikeFromStdin(t *testing.T) {
	validateFile = "-"
	t.Cleanup(func() { validateFile = "" })

	in := strings.NewReader(`{"id":7,"symbol":"XBTUSD","type":"macro_momentum","entry_price":60000,"target_price":63000,"stop_loss":58500,"confidence":0.95,"expected_return":0.05,"position_size":5000}`)
	s, err := readStrike(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), s.ID)
	assert.Equal(t, contracts.StrikeMacroMomentum, s.Type)
	assert.Equal(t, 58500.0, s.StopLoss)
}

func TestReadStrikeRejectsUnknownFields(t *testing.T) {
	validateFile = "-"
	t.Cleanup(func() { validateFile = "" })

	_, err := readStrike(strings.NewReader(`{"symbol":"XBTUSD","leverage":10}`))
	assert.Error(t, err)
}

func TestReadStrikeFromFlags(t *testing.T) {
	saved := validateStrike
	t.Cleanup(func() { validateStrike = saved })

	validateStrike = contracts.Strike{Symbol: "ETHUSD", EntryPrice: 2000, TargetPrice: 2100, StopLoss: 1950}
	validateType = string(contracts.StrikeMacroFlash)

	s, err := readStrike(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, contracts.StrikeMacroFlash, s.Type)
	assert.InDelta(t, 0.05, s.ExpectedReturn, 1e-12)
	assert.NotZero(t, s.ID, "missing id gets a random one")
}

func TestStatsWindow(t *testing.T) {
	now := time.Date(2026, 10, 15, 13, 0, 0, 0, time.UTC)

	from, to, err := statsWindow(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), to)

	auditFrom, auditTo = "2026-10-01", "2026-10-02"
	t.Cleanup(func() { auditFrom, auditTo = "", "" })
	from, to, err = statsWindow(now)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, to.Sub(from))

	auditFrom = "10/01/2026"
	_, _, err = statsWindow(now)
	assert.Error(t, err)
}

func TestInspectLiquidityStaticMarket(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")
	ctx := context.Background()

	svc, err := newService(ctx, serviceOptions{market: marketStatic, logStderr: true})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	svc.seedStatic("XBTUSD", 60000)

	rep, err := inspectLiquidity(ctx, svc, "XBTUSD", 1000)
	require.NoError(t, err)
	assert.True(t, rep.Liquid)
	assert.Equal(t, 1000.0, rep.SafeSize)
	assert.True(t, rep.WarmedSample)
	assert.GreaterOrEqual(t, svc.predictor.HistoryLen("XBTUSD"), svc.policy.Liquidity.Predictor.MinHistoryPoints)

	_, err = inspectLiquidity(ctx, svc, "UNSEEDED", 1000)
	assert.Error(t, err)
}
