package order_test

import (
	"context"
	"errors"
	"testing"

	apporder "github.com/Zhima-Mochi/minishop-coordinator/internal/application/order"
	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, repo domain.Repository, id string, lines ...domain.Line) *domain.Order {
	t.Helper()
	o, err := domain.New(id, "jane@example.com", "12 Main St", "", lines)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), o))
	return o
}

func TestCancelOrderUnknownOrderReleasesNothing(t *testing.T) {
	inv := newFakeInventory(map[int64]int{1: 10})
	uc := apporder.NewCancelOrderUseCase(memory.NewOrderRepository(), inv, nil, nil, apporder.PlaceConfig{})

	err := uc.Execute(context.Background(), apporder.CancelOrderInput{OrderID: "missing", ProductID: 1, Units: 2})
	require.ErrorIs(t, err, apporder.ErrNotFound)
	assert.Zero(t, inv.releaseCalls.Load())
	assert.Equal(t, 10, inv.available(1))
}

func TestCancelOrderLineMismatch(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedOrder(t, repo, "o-1",
		domain.Reserved(0, 1, 5, 5),
		domain.Rejected(1, 2, 3, domain.ReasonInsufficientQuantity),
	)
	inv := newFakeInventory(map[int64]int{1: 5, 2: 0})
	uc := apporder.NewCancelOrderUseCase(repo, inv, nil, nil, apporder.PlaceConfig{})

	for _, in := range []apporder.CancelOrderInput{
		{OrderID: "o-1", ProductID: 1, Units: 4},
		{OrderID: "o-1", ProductID: 2, Units: 3},
		{OrderID: "o-1", ProductID: 9, Units: 5},
	} {
		err := uc.Execute(context.Background(), in)
		assert.ErrorIs(t, err, apporder.ErrLineMismatch, "%+v", in)
	}
	assert.Zero(t, inv.releaseCalls.Load())
}

func TestCancelOrderLastReservedLineDeletesOrder(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedOrder(t, repo, "o-1",
		domain.Reserved(0, 1, 5, 5),
		domain.Rejected(1, 2, 3, domain.ReasonInsufficientQuantity),
	)
	inv := newFakeInventory(map[int64]int{1: 5})
	pub := &recordingPublisher{}
	uc := apporder.NewCancelOrderUseCase(repo, inv, pub, nil, apporder.PlaceConfig{})

	require.NoError(t, uc.Execute(context.Background(), apporder.CancelOrderInput{OrderID: "o-1", ProductID: 1, Units: 5}))

	assert.Equal(t, 10, inv.available(1))
	_, err := repo.Get(context.Background(), "o-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.Len(t, pub.events, 1)
	evt, ok := pub.events[0].(domain.OrderCancelledEvent)
	require.True(t, ok)
	assert.True(t, evt.Deleted)
	assert.Equal(t, int64(1), evt.ProductID)
}

func TestCancelOrderKeepsOtherReservedLines(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedOrder(t, repo, "o-1",
		domain.Reserved(0, 1, 5, 5),
		domain.Reserved(1, 2, 2, 8),
	)
	inv := newFakeInventory(map[int64]int{1: 5, 2: 8})
	uc := apporder.NewCancelOrderUseCase(repo, inv, nil, nil, apporder.PlaceConfig{})

	require.NoError(t, uc.Execute(context.Background(), apporder.CancelOrderInput{OrderID: "o-1", ProductID: 2, Units: 2}))

	o, err := repo.Get(context.Background(), "o-1")
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, int64(1), o.Lines[0].ProductID)
	assert.Equal(t, 10, inv.available(2))

	err = uc.Execute(context.Background(), apporder.CancelOrderInput{OrderID: "o-1", ProductID: 2, Units: 2})
	assert.ErrorIs(t, err, apporder.ErrLineMismatch, "a line is released at most once")
	assert.Equal(t, 10, inv.available(2))
}

func TestCancelOrderReleaseFailureLeavesOrder(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedOrder(t, repo, "o-1", domain.Reserved(0, 1, 5, 5))
	inv := newFakeInventory(map[int64]int{1: 5})
	inv.releaseErr = dominv.ErrUnavailable
	uc := apporder.NewCancelOrderUseCase(repo, inv, nil, nil, apporder.PlaceConfig{})

	err := uc.Execute(context.Background(), apporder.CancelOrderInput{OrderID: "o-1", ProductID: 1, Units: 5})
	require.ErrorIs(t, err, apporder.ErrUpstream)

	o, err := repo.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Len(t, o.Lines, 1)
}

func TestCancelOrderRestoresStockWhenStoreWriteFails(t *testing.T) {
	base := memory.NewOrderRepository()
	seedOrder(t, base, "o-1", domain.Reserved(0, 1, 5, 5))
	repo := &faultyRepo{Repository: base, deleteErr: errors.New("connection reset")}
	inv := newFakeInventory(map[int64]int{1: 5})
	uc := apporder.NewCancelOrderUseCase(repo, inv, nil, nil, apporder.PlaceConfig{})

	err := uc.Execute(context.Background(), apporder.CancelOrderInput{OrderID: "o-1", ProductID: 1, Units: 5})
	require.ErrorIs(t, err, apporder.ErrRepository)

	assert.Equal(t, 5, inv.available(1))
	assert.EqualValues(t, 1, inv.reserveCalls.Load())
}

func TestCancelOrderValidation(t *testing.T) {
	inv := newFakeInventory(nil)
	uc := apporder.NewCancelOrderUseCase(memory.NewOrderRepository(), inv, nil, nil, apporder.PlaceConfig{})

	err := uc.Execute(context.Background(), apporder.CancelOrderInput{OrderID: "", ProductID: 0, Units: -1})
	var verr *apporder.ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"id", "productId", "quantity"}, fields)
	assert.Zero(t, inv.releaseCalls.Load())
}
