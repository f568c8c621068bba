package orders

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewEntry builds a history entry with a fresh time-ordered event id.
func NewEntry(orderID int64, status ShippingStatus, kind HistoryKind, note, actor string) HistoryEntry {
	return HistoryEntry{
		OrderID:        orderID,
		EventID:        ulid.Make().String(),
		ShippingStatus: status,
		Kind:           kind,
		Note:           note,
		Actor:          actor,
		CreatedAt:      time.Now().UTC(),
	}
}
