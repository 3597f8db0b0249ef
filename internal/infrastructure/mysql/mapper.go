package mysql

import (
	"sort"

	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
)

func toDomainOrder(m *OrderModel) *domain.Order {
	if m == nil {
		return nil
	}
	o := &domain.Order{
		ID:            m.ID,
		CustomerEmail: m.CustomerEmail,
		Address:       m.Address,
		CreatedAt:     m.CreatedAt.UTC(),
		Lines:         make([]domain.Line, 0, len(m.Lines)),
	}
	if m.IdempotencyKey != nil {
		o.IdempotencyKey = *m.IdempotencyKey
	}

	lines := append([]OrderLineModel(nil), m.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].LineIndex < lines[j].LineIndex })
	for _, l := range lines {
		o.Lines = append(o.Lines, domain.Line{
			Index:             l.LineIndex,
			ProductID:         l.ProductID,
			Units:             l.Units,
			Status:            domain.LineStatus(l.Status),
			Reason:            l.Reason,
			RemainingQuantity: l.RemainingQuantity,
		})
	}
	return o
}

func fromDomainOrder(o *domain.Order) *OrderModel {
	if o == nil {
		return nil
	}
	m := &OrderModel{
		ID:            o.ID,
		CustomerEmail: o.CustomerEmail,
		Address:       o.Address,
		CreatedAt:     o.CreatedAt,
		Lines:         fromDomainLines(o.ID, o.Lines),
	}
	if o.IdempotencyKey != "" {
		key := o.IdempotencyKey
		m.IdempotencyKey = &key
	}
	return m
}

func fromDomainLines(orderID string, lines []domain.Line) []OrderLineModel {
	out := make([]OrderLineModel, 0, len(lines))
	for _, l := range lines {
		out = append(out, OrderLineModel{
			OrderID:           orderID,
			LineIndex:         l.Index,
			ProductID:         l.ProductID,
			Units:             l.Units,
			Status:            string(l.Status),
			Reason:            l.Reason,
			RemainingQuantity: l.RemainingQuantity,
		})
	}
	return out
}
