package order

import (
	"context"
	"strings"

	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
)

const useCaseOrderList = "order.list_by_customer"

type ListOrdersUseCase struct {
	repo domain.Repository
	obs  instruments
}

func NewListOrdersUseCase(repo domain.Repository, tel observability.Observability) *ListOrdersUseCase {
	return &ListOrdersUseCase{repo: repo, obs: newInstruments(tel)}
}

// Execute returns the customer's orders, oldest first. A customer without orders
// gets an empty slice.
func (uc *ListOrdersUseCase) Execute(ctx context.Context, email string) (_ []*domain.Order, err error) {
	ctx, run := uc.obs.begin(ctx, useCaseOrderList, "ListOrdersByCustomer")
	defer func() { run.end(err) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return []*domain.Order{}, nil
	}

	orders, err := uc.repo.ListByCustomer(ctx, email)
	if err != nil {
		run.fail("REPO_LIST_FAILED")
		return nil, wrapRepositoryError(err)
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	run.note(observability.F("orders", len(orders)))
	return orders, nil
}
