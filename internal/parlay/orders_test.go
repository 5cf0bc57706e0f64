package parlay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlayhub/parlayd/internal/domain"
	"github.com/parlayhub/parlayd/internal/parlay"
)

func TestCreateParlay_OrderUsesRequotedPrice(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.50)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1"), 0)
	require.NoError(t, err)

	// el feed no cambió entre quote y build: ambos precios coinciden
	assert.InDelta(t, 0.50, result.Legs[0].PriceUsed, 1e-9)
	assert.InDelta(t, 0.50, result.Orders[0].Price, 1e-9)
}

func TestCreateParlay_OrderExpirationAndNonce(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)
	env.prices.setPrice("m2", 0, 0.5)
	env.prices.setPrice("m3", 0, 0.5)

	before := time.Now()
	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1", "m2", "m3"), 0)
	require.NoError(t, err)

	minExpiration := before.Add(parlay.DefaultConfig().OrderTTL).Unix() - 1
	seen := make(map[int64]bool)
	for _, order := range result.Orders {
		assert.GreaterOrEqual(t, order.Expiration, minExpiration)
		assert.False(t, seen[order.Nonce], "nonces deben ser únicos dentro del build")
		seen[order.Nonce] = true
	}

	// nonces consecutivos a partir de una base común
	assert.Equal(t, result.Orders[0].Nonce+1, result.Orders[1].Nonce)
	assert.Equal(t, result.Orders[0].Nonce+2, result.Orders[2].Nonce)
}

func TestSignAndSubmit_PriceMovedAbortsBuild(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.50)
	env.prices.setPrice("m2", 0, 0.40)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1", "m2"), 300)
	require.NoError(t, err)

	// el segundo leg se mueve 7.5% antes del rebuild, muy por encima del 3%
	env.prices.setPrice("m2", 0, 0.43)

	signer := &fakeSigner{}
	submitRes, err := env.svc.SignAndSubmit(context.Background(), result.Parlay.ID, signer)

	var moved *parlay.PriceMovedError
	require.ErrorAs(t, err, &moved)
	assert.Equal(t, "m2", moved.MarketID)
	assert.InDelta(t, 0.40, moved.OldPrice, 1e-9)
	assert.InDelta(t, 0.43, moved.NewPrice, 1e-9)

	// el build aborta completo: cero órdenes firmadas, nada llegó al venue
	assert.Zero(t, submitRes.Submitted)
	assert.Empty(t, submitRes.Snapshots)
	assert.Zero(t, signer.signed)
	assert.Empty(t, env.venue.submitted)

	// el parlay sigue firmable con precios frescos
	p, err := env.store.GetParlay(context.Background(), result.Parlay.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingSignature, p.Status)
}

func TestSubmitOrders_StoredSlippageExceeded(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.50)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1"), 300)
	require.NoError(t, err)

	// el mercado se mueve más del 3% permitido antes del submit
	env.prices.setPrice("m1", 0, 0.54)

	_, err = env.svc.SubmitOrders(context.Background(), result.Parlay.ID, signAll(result))

	var moved *parlay.MarketMovedError
	require.ErrorAs(t, err, &moved)
	assert.Equal(t, "m1", moved.MarketID)
	assert.InDelta(t, 0.50, moved.OldPrice, 1e-9)
	assert.InDelta(t, 0.54, moved.NewPrice, 1e-9)

	// ninguna orden llegó al venue
	assert.Empty(t, env.venue.submitted)
}

func TestSubmitOrders_SlippageWithinTolerance(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.50)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1"), 300)
	require.NoError(t, err)

	// 0.50 → 0.512 es 2.4%, dentro del 3%
	env.prices.setPrice("m1", 0, 0.512)

	submitRes, err := env.svc.SubmitOrders(context.Background(), result.Parlay.ID, signAll(result))
	require.NoError(t, err)
	assert.Equal(t, 1, submitRes.Submitted)
}

func TestSubmitOrders_SlippageBothDirections(t *testing.T) {
	// El check es simétrico: un precio que baja demasiado también se rechaza.
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.50)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1"), 300)
	require.NoError(t, err)

	env.prices.setPrice("m1", 0, 0.46)

	_, err = env.svc.SubmitOrders(context.Background(), result.Parlay.ID, signAll(result))
	var moved *parlay.MarketMovedError
	require.ErrorAs(t, err, &moved)
}
