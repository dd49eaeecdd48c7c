package model

// Blocked interval statuses as stored in the ledger.  Archived blocks no
// longer restrict availability; the record is kept for history.
const (
	BlockActive   = "Active"
	BlockArchived = "Archived"
)

// Block is an operator-declared period during which no bookings may be
// created.  A block covers either the whole business day (AllDay) or the
// [StartTime, EndTime) range on its date.  Like bookings, blocks are
// mirrored to the calendar as distinguishably titled busy events and
// joined by the embedded identifier in the event description.
type Block struct {
	RecordID  string `json:"-"`
	BlockID   string `json:"block_id"`
	Date      string `json:"date"`
	AllDay    bool   `json:"all_day"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Status    string `json:"status"`
	EventID   string `json:"-"`
}
