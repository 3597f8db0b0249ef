package order_test

import (
	"context"
	"testing"

	apporder "github.com/Zhima-Mochi/minishop-coordinator/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/infrastructure/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOrdersEmpty(t *testing.T) {
	uc := apporder.NewListOrdersUseCase(memory.NewOrderRepository(), nil)

	orders, err := uc.Execute(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestListOrdersByCustomer(t *testing.T) {
	repo := memory.NewOrderRepository()
	seedOrder(t, repo, "o-1", domain.Reserved(0, 1, 1, 9))
	seedOrder(t, repo, "o-2", domain.Rejected(0, 2, 1, domain.ReasonProductUnavailable))

	other, err := domain.New("o-3", "other@example.com", "12 Main St", "", []domain.Line{domain.Reserved(0, 1, 1, 8)})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), other))

	uc := apporder.NewListOrdersUseCase(repo, nil)
	orders, err := uc.Execute(context.Background(), "jane@example.com")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	ids := []string{orders[0].ID, orders[1].ID}
	assert.ElementsMatch(t, []string{"o-1", "o-2"}, ids)
}
