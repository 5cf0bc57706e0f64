package parlay_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlayhub/parlayd/internal/domain"
	"github.com/parlayhub/parlayd/internal/parlay"
)

// signAll simula la firma externa de las órdenes de un CreateResult.
func signAll(result parlay.CreateResult) []domain.SignedOrder {
	signed := make([]domain.SignedOrder, len(result.Orders))
	for i, o := range result.Orders {
		signed[i] = domain.SignedOrder{
			UnsignedOrder: o,
			Salt:          "1234",
			MakerAmount:   "50000000",
			TakerAmount:   "100000000",
			Signature:     "0xdeadbeef",
			SignatureType: 0,
		}
	}
	return signed
}

func TestSubmitOrders_ActivatesParlay(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)
	env.prices.setPrice("m2", 0, 0.4)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1", "m2"), 0)
	require.NoError(t, err)

	submitRes, err := env.svc.SubmitOrders(context.Background(), result.Parlay.ID, signAll(result))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, submitRes.Status)
	assert.Equal(t, 2, submitRes.Submitted)
	require.Len(t, submitRes.Snapshots, 2)
	for _, snap := range submitRes.Snapshots {
		assert.Equal(t, domain.OrderStatusPending, snap.Status)
		assert.NotEmpty(t, snap.VenueOrderID)
	}

	// órdenes enviadas en el orden de los legs
	require.Len(t, env.venue.submitted, 2)
	assert.Equal(t, "m1", env.venue.submitted[0].Market)
	assert.Equal(t, "m2", env.venue.submitted[1].Market)

	stored, err := env.store.GetParlay(context.Background(), result.Parlay.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, stored.Status)
}

func TestSubmitOrders_PartialFailure(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)
	env.prices.setPrice("m2", 0, 0.4)
	env.prices.setPrice("m3", 0, 0.25)
	env.venue.failAt = 1 // el segundo leg falla

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1", "m2", "m3"), 0)
	require.NoError(t, err)

	submitRes, err := env.svc.SubmitOrders(context.Background(), result.Parlay.ID, signAll(result))

	var subErr *parlay.SubmissionFailedError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 1, subErr.LegIndex)
	assert.Equal(t, "m2", subErr.MarketID)

	// leg 0 enviado, leg 1 falló, leg 2 nunca se intentó
	assert.Equal(t, domain.StatusFailed, submitRes.Status)
	assert.Equal(t, 1, submitRes.Submitted)
	require.Len(t, submitRes.Snapshots, 2)
	assert.Equal(t, domain.OrderStatusPending, submitRes.Snapshots[0].Status)
	assert.Equal(t, domain.OrderStatusFailed, submitRes.Snapshots[1].Status)
	assert.Len(t, env.venue.submitted, 1)

	stored, err := env.store.GetParlay(context.Background(), result.Parlay.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)

	// el audit trail persiste ambos intentos
	snaps, err := env.store.OrderSnapshots(context.Background(), result.Parlay.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Contains(t, snaps[1].Raw, "venue rejected order")
}

func TestSubmitOrders_WrongState(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1"), 0)
	require.NoError(t, err)

	_, err = env.svc.SubmitOrders(context.Background(), result.Parlay.ID, signAll(result))
	require.NoError(t, err)

	// segundo submit sobre un parlay ya activo
	_, err = env.svc.SubmitOrders(context.Background(), result.Parlay.ID, signAll(result))

	var badState *parlay.InvalidParlayStateError
	require.ErrorAs(t, err, &badState)
	assert.Equal(t, domain.StatusActive, badState.Status)
	assert.Equal(t, domain.StatusPendingSignature, badState.Want)
}

func TestSubmitOrders_OrderCountMismatch(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)
	env.prices.setPrice("m2", 0, 0.4)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1", "m2"), 0)
	require.NoError(t, err)

	_, err = env.svc.SubmitOrders(context.Background(), result.Parlay.ID, signAll(result)[:1])

	var mismatch *parlay.OrderCountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Orders)
	assert.Equal(t, 2, mismatch.Legs)
	assert.Empty(t, env.venue.submitted)
}

func TestSubmitOrders_UnknownParlay(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.SubmitOrders(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrParlayNotFound)
}

func TestSubmitOrders_MissingPriceDataSkipsSlippageCheck(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1"), 0)
	require.NoError(t, err)

	// el feed pierde el mercado entre creación y submit — la ausencia de
	// book no es drift, el submit procede
	env.prices.mu.Lock()
	delete(env.prices.prices, "m1")
	env.prices.mu.Unlock()

	submitRes, err := env.svc.SubmitOrders(context.Background(), result.Parlay.ID, signAll(result))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, submitRes.Status)
}

type fakeSigner struct {
	signed int
}

func (f *fakeSigner) SignOrder(order domain.UnsignedOrder) (domain.SignedOrder, error) {
	f.signed++
	return domain.SignedOrder{
		UnsignedOrder: order,
		Salt:          "42",
		Signature:     "0xsigned",
	}, nil
}

func TestSignAndSubmit(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)
	env.prices.setPrice("m2", 0, 0.4)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1", "m2"), 0)
	require.NoError(t, err)

	signer := &fakeSigner{}
	submitRes, err := env.svc.SignAndSubmit(context.Background(), result.Parlay.ID, signer)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, submitRes.Status)
	assert.Equal(t, 2, signer.signed)
	assert.Len(t, env.venue.submitted, 2)
}
