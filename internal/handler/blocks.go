package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/serenispa/booking-engine/internal/booking"
	"github.com/serenispa/booking-engine/internal/calendar"
	"github.com/serenispa/booking-engine/internal/ledger"
	"github.com/serenispa/booking-engine/internal/model"
)

// BlockCalendar is the slice of the calendar adapter block management
// needs: mirror a new block, remove a mirror on archive.
type BlockCalendar interface {
	InsertEvent(ctx context.Context, ev model.Event) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// BlockHandler serves operator block management behind admin auth.
// Blocks are persisted in the ledger and mirrored to the calendar as
// busy events, exactly like bookings, so blocked intervals disappear
// from availability through the same busy computation.
type BlockHandler struct {
	Blocks *ledger.BlockRepo
	Cal    BlockCalendar
	Hours  booking.Hours
	Loc    *time.Location
}

func NewBlockHandler(blocks *ledger.BlockRepo, cal BlockCalendar, hours booking.Hours, loc *time.Location) *BlockHandler {
	if blocks == nil {
		panic("nil block repo passed to NewBlockHandler")
	}
	return &BlockHandler{Blocks: blocks, Cal: cal, Hours: hours, Loc: loc}
}

type createBlockRequest struct {
	Date      string `json:"date"`
	AllDay    bool   `json:"all_day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

// Create handles POST /v1/admin/blocks.  The ledger write is the
// durability boundary; a calendar mirror failure is logged and left for
// reconciliation.
func (h *BlockHandler) Create(c echo.Context) error {
	var body createBlockRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	start, end, err := h.blockBounds(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	day, _ := time.ParseInLocation(model.DateLayout, body.Date, h.Loc)
	blockID, err := booking.GenerateBlockID(day)
	if err != nil {
		c.Logger().Errorf("blocks: generate id: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create block"})
	}

	blk := model.Block{
		BlockID:   blockID,
		Date:      body.Date,
		AllDay:    body.AllDay,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		Reason:    body.Reason,
		Status:    model.BlockActive,
	}
	ctx := c.Request().Context()
	created, err := h.Blocks.CreateBlock(ctx, blk)
	if err != nil {
		return bookingError(c, err)
	}

	if h.Cal != nil {
		ev, err := h.Cal.InsertEvent(ctx, calendar.EventForBlock(created, start, end))
		if err != nil {
			c.Logger().Errorf("blocks: event insert failed for %s, reconciliation will correct: %v", created.BlockID, err)
		} else if err := h.Blocks.SetBlockEvent(ctx, created.RecordID, ev.ID); err != nil {
			c.Logger().Errorf("blocks: link event for %s: %v", created.BlockID, err)
		} else {
			created.EventID = ev.ID
		}
	}
	return c.JSON(http.StatusCreated, created)
}

// List handles GET /v1/admin/blocks and returns all active blocks.
func (h *BlockHandler) List(c echo.Context) error {
	blocks, err := h.Blocks.ActiveBlocks(c.Request().Context())
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"blocks": blocks})
}

// Delete handles DELETE /v1/admin/blocks/:id.  The block is archived,
// never erased, and its mirrored event is removed.
func (h *BlockHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	blk, err := h.Blocks.BlockByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "block not found"})
		}
		return bookingError(c, err)
	}
	if err := h.Blocks.ArchiveBlock(ctx, blk.RecordID); err != nil {
		return bookingError(c, err)
	}
	if h.Cal != nil && blk.EventID != "" {
		if err := h.Cal.DeleteEvent(ctx, blk.EventID); err != nil {
			c.Logger().Errorf("blocks: event delete failed for %s, reconciliation will correct: %v", blk.BlockID, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// blockBounds validates the request and resolves the concrete busy
// interval: the whole business day for all-day blocks, otherwise the
// given range on the block's date.
func (h *BlockHandler) blockBounds(body createBlockRequest) (start, end time.Time, err error) {
	if body.Date == "" {
		return time.Time{}, time.Time{}, errors.New("date is required")
	}
	if _, perr := time.ParseInLocation(model.DateLayout, body.Date, h.Loc); perr != nil {
		return time.Time{}, time.Time{}, errors.New("invalid date")
	}
	layout := model.DateLayout + " " + model.TimeLayout
	if body.AllDay {
		start, err = time.ParseInLocation(layout, body.Date+" "+h.Hours.Open, h.Loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid date")
		}
		end, err = time.ParseInLocation(layout, body.Date+" "+h.Hours.Close, h.Loc)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid date")
		}
		return start, end, nil
	}
	if body.StartTime == "" || body.EndTime == "" {
		return time.Time{}, time.Time{}, errors.New("start_time and end_time are required unless all_day")
	}
	start, err = time.ParseInLocation(layout, body.Date+" "+body.StartTime, h.Loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start_time")
	}
	end, err = time.ParseInLocation(layout, body.Date+" "+body.EndTime, h.Loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end_time")
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, errors.New("start_time must precede end_time")
	}
	return start, end, nil
}
