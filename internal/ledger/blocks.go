package ledger

import (
	"context"

	"github.com/serenispa/booking-engine/internal/model"
)

// Field names of the blocked intervals table.
const (
	blockFieldID      = "Block ID"
	blockFieldDate    = "Date"
	blockFieldAllDay  = "All Day"
	blockFieldStart   = "Start Time"
	blockFieldEnd     = "End Time"
	blockFieldReason  = "Reason"
	blockFieldStatus  = "Status"
	blockFieldEventID = "Event ID"
)

// BlockRepo provides typed access to the blocked intervals table.
type BlockRepo struct {
	client *Client
	table  string
}

func NewBlockRepo(client *Client, table string) *BlockRepo {
	return &BlockRepo{client: client, table: table}
}

// CreateBlock persists a new blocked interval.
func (r *BlockRepo) CreateBlock(ctx context.Context, b model.Block) (model.Block, error) {
	fields := map[string]any{
		blockFieldID:     b.BlockID,
		blockFieldDate:   b.Date,
		blockFieldAllDay: b.AllDay,
		blockFieldStart:  b.StartTime,
		blockFieldEnd:    b.EndTime,
		blockFieldReason: b.Reason,
		blockFieldStatus: b.Status,
	}
	if b.EventID != "" {
		fields[blockFieldEventID] = b.EventID
	}
	rec, err := r.client.Create(ctx, r.table, fields)
	if err != nil {
		return model.Block{}, err
	}
	return blockFromRecord(rec), nil
}

// ActiveBlocks returns every block still restricting availability.
func (r *BlockRepo) ActiveBlocks(ctx context.Context) ([]model.Block, error) {
	return r.list(ctx, Eq(blockFieldStatus, model.BlockActive))
}

// ActiveBlocksByDate returns the active blocks for one date.
func (r *BlockRepo) ActiveBlocksByDate(ctx context.Context, date string) ([]model.Block, error) {
	return r.list(ctx, And(Eq(blockFieldDate, date), Eq(blockFieldStatus, model.BlockActive)))
}

// LinkedBlocks returns active blocks with a mirrored calendar event, for
// reconciliation.
func (r *BlockRepo) LinkedBlocks(ctx context.Context) ([]model.Block, error) {
	return r.list(ctx, And(Eq(blockFieldStatus, model.BlockActive), NotEmpty(blockFieldEventID)))
}

// UnlinkedBlocks returns active blocks with no mirrored calendar event,
// the repair set for reconciliation.
func (r *BlockRepo) UnlinkedBlocks(ctx context.Context) ([]model.Block, error) {
	return r.list(ctx, And(Eq(blockFieldStatus, model.BlockActive), Empty(blockFieldEventID)))
}

// BlockByID returns one block by its business identifier.
func (r *BlockRepo) BlockByID(ctx context.Context, blockID string) (model.Block, error) {
	blocks, err := r.list(ctx, Eq(blockFieldID, blockID))
	if err != nil {
		return model.Block{}, err
	}
	if len(blocks) == 0 {
		return model.Block{}, ErrNotFound
	}
	return blocks[0], nil
}

// SetBlockEvent stores the mirrored event identifier.
func (r *BlockRepo) SetBlockEvent(ctx context.Context, recordID, eventID string) error {
	_, err := r.client.Patch(ctx, r.table, recordID, map[string]any{blockFieldEventID: eventID})
	return err
}

// ArchiveBlock retires a block; the record is kept, availability is no
// longer restricted.
func (r *BlockRepo) ArchiveBlock(ctx context.Context, recordID string) error {
	_, err := r.client.Patch(ctx, r.table, recordID, map[string]any{blockFieldStatus: model.BlockArchived})
	return err
}

func (r *BlockRepo) list(ctx context.Context, formula string) ([]model.Block, error) {
	recs, err := r.client.List(ctx, r.table, formula)
	if err != nil {
		return nil, err
	}
	out := make([]model.Block, 0, len(recs))
	for _, rec := range recs {
		out = append(out, blockFromRecord(rec))
	}
	return out, nil
}

func blockFromRecord(rec Record) model.Block {
	allDay, _ := rec.Fields[blockFieldAllDay].(bool)
	return model.Block{
		RecordID:  rec.ID,
		BlockID:   str(rec.Fields, blockFieldID),
		Date:      str(rec.Fields, blockFieldDate),
		AllDay:    allDay,
		StartTime: str(rec.Fields, blockFieldStart),
		EndTime:   str(rec.Fields, blockFieldEnd),
		Reason:    str(rec.Fields, blockFieldReason),
		Status:    str(rec.Fields, blockFieldStatus),
		EventID:   str(rec.Fields, blockFieldEventID),
	}
}
