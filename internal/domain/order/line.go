package order

type LineStatus string

const (
	LineReserved LineStatus = "reserved"
	LineRejected LineStatus = "rejected"
)

const (
	ReasonProductUnavailable   = "product unavailable"
	ReasonInsufficientQuantity = "insufficient quantity"
)

// Line is the outcome of one requested (product, units) pair. Index is the
// position in the original request.
type Line struct {
	Index             int
	ProductID         int64
	Units             int
	Status            LineStatus
	Reason            string
	RemainingQuantity int
}

// Reserved records a successful reservation. remaining is what the inventory
// service reported after the decrement and is informational only.
func Reserved(index int, productID int64, units, remaining int) Line {
	return Line{
		Index:             index,
		ProductID:         productID,
		Units:             units,
		Status:            LineReserved,
		RemainingQuantity: remaining,
	}
}

func Rejected(index int, productID int64, units int, reason string) Line {
	return Line{
		Index:     index,
		ProductID: productID,
		Units:     units,
		Status:    LineRejected,
		Reason:    reason,
	}
}

func (l Line) Terminal() bool {
	return l.Status == LineReserved || l.Status == LineRejected
}
