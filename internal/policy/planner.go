package policy

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/calbridge"
	"github.com/danielpatrickdp/segment-steward/internal/segment"
	"github.com/danielpatrickdp/segment-steward/internal/store"
	"github.com/google/uuid"
)

// #region calendar

// Calendar is the slice of the calendar bridge the planner needs.
type Calendar interface {
	FreeSlots(ctx context.Context, from, to time.Time, minMinutes int) ([]calbridge.Slot, error)
	CreateEvent(ctx context.Context, title string, start time.Time, minutes int) (string, error)
}

// #endregion calendar

// #region config

// Config holds the planner's booking limits.
type Config struct {
	RecoveryCapPerDay int // recovery blocks bookable per day
	MinBlockMinutes   int // shortest slot worth booking
	MaxBlockMinutes   int // longest follow-up/recovery block
	DayEndHour        int // same-day search horizon (local hour)
}

// DefaultConfig returns the planner defaults.
func DefaultConfig() Config {
	return Config{
		RecoveryCapPerDay: 3,
		MinBlockMinutes:   15,
		MaxBlockMinutes:   60,
		DayEndHour:        21,
	}
}

// #endregion config

// #region booking

// BookingOutcome distinguishes a booked slot from the reportable
// "no slot available" condition.
type BookingOutcome string

const (
	OutcomeBooked BookingOutcome = "booked"
	OutcomeNoSlot BookingOutcome = "no_slot"
)

// Booking is the result of a schedule-more or schedule-recovery attempt.
// A no-slot outcome is a defined result, not an error; infrastructure
// failures come back as errors and leave the segment open for the next tick.
type Booking struct {
	Outcome BookingOutcome
	Target  time.Time // zero unless booked
	BlockID string    // id of the follow-up/recovery segment, if booked
	Reason  string    // "no_slot_today" | "recovery_cap_reached" when no slot
}

// #endregion booking

// #region planner

// Planner performs the side-effecting half of the reschedule/recovery
// policy: slot search, block booking, and segment closure.
type Planner struct {
	store  *store.Store
	cal    Calendar
	config Config
}

// NewPlanner creates a planner over the given store and calendar.
func NewPlanner(st *store.Store, cal Calendar, config Config) *Planner {
	return &Planner{store: st, cal: cal, config: config}
}

// #endregion planner

// #region schedule-more

// ScheduleMore books the next suitable same-day slot for the segment and
// closes it as rescheduled. When nothing fits today, the segment is still
// closed (so the end boundary never refires) with the no-slot reason
// recorded for reporting.
func (p *Planner) ScheduleMore(ctx context.Context, seg segment.Segment, now time.Time, reason string) (Booking, error) {
	slot, ok, err := p.findSlot(ctx, seg, now)
	if err != nil {
		return Booking{}, err
	}
	if !ok {
		if err := p.closeSegment(seg.ID, segment.EndRescheduled, "no_slot_today", nil); err != nil {
			return Booking{}, err
		}
		return Booking{Outcome: OutcomeNoSlot, Reason: "no_slot_today"}, nil
	}

	blockID, err := p.bookBlock(ctx, "fu:", seg.Title+" (follow-up)", seg.Rigidity, slot)
	if err != nil {
		return Booking{}, err
	}
	if err := p.closeSegment(seg.ID, segment.EndRescheduled, reason, &slot.StartAt); err != nil {
		return Booking{}, err
	}

	log.Printf("[POLICY] schedule_more: %s → follow-up %s at %s", seg.ID, blockID, slot.StartAt.Format(time.RFC3339))
	return Booking{Outcome: OutcomeBooked, Target: slot.StartAt, BlockID: blockID}, nil
}

// #endregion schedule-more

// #region schedule-recovery

// ScheduleRecovery books a recovery block today-first and closes the
// segment as missed. The daily cap is checked before any search; at cap the
// outcome is the same reportable no-slot condition. Increments
// day.RecoveryBlocksUsed on success; the caller persists the day state.
func (p *Planner) ScheduleRecovery(ctx context.Context, seg segment.Segment, day *segment.DayState, now time.Time, reason string) (Booking, error) {
	if day.RecoveryBlocksUsed >= p.config.RecoveryCapPerDay {
		if err := p.closeSegment(seg.ID, segment.EndMissed, "recovery_cap_reached", nil); err != nil {
			return Booking{}, err
		}
		return Booking{Outcome: OutcomeNoSlot, Reason: "recovery_cap_reached"}, nil
	}

	slot, ok, err := p.findSlot(ctx, seg, now)
	if err != nil {
		return Booking{}, err
	}
	if !ok {
		if err := p.closeSegment(seg.ID, segment.EndMissed, "no_slot_today", nil); err != nil {
			return Booking{}, err
		}
		return Booking{Outcome: OutcomeNoSlot, Reason: "no_slot_today"}, nil
	}

	blockID, err := p.bookBlock(ctx, "rec:", "Recovery: "+seg.Title, segment.RigidityFirm, slot)
	if err != nil {
		return Booking{}, err
	}
	if err := p.closeSegment(seg.ID, segment.EndMissed, reason, nil); err != nil {
		return Booking{}, err
	}
	day.RecoveryBlocksUsed++

	log.Printf("[POLICY] schedule_recovery: %s → recovery %s at %s (used %d/%d)",
		seg.ID, blockID, slot.StartAt.Format(time.RFC3339), day.RecoveryBlocksUsed, p.config.RecoveryCapPerDay)
	return Booking{Outcome: OutcomeBooked, Target: slot.StartAt, BlockID: blockID}, nil
}

// #endregion schedule-recovery

// #region helpers

func (p *Planner) findSlot(ctx context.Context, seg segment.Segment, now time.Time) (calbridge.Slot, bool, error) {
	minutes := int(seg.Duration().Minutes())
	if minutes < p.config.MinBlockMinutes {
		minutes = p.config.MinBlockMinutes
	}
	if minutes > p.config.MaxBlockMinutes {
		minutes = p.config.MaxBlockMinutes
	}

	horizon := time.Date(now.Year(), now.Month(), now.Day(), p.config.DayEndHour, 0, 0, 0, now.Location())
	if !horizon.After(now) {
		return calbridge.Slot{}, false, nil
	}

	slots, err := p.cal.FreeSlots(ctx, now, horizon, minutes)
	if err != nil {
		return calbridge.Slot{}, false, fmt.Errorf("free slots: %w", err)
	}
	for _, s := range slots {
		if s.Minutes >= minutes && s.StartAt.After(now) {
			s.Minutes = minutes
			return s, true, nil
		}
	}
	return calbridge.Slot{}, false, nil
}

func (p *Planner) bookBlock(ctx context.Context, idPrefix, title string, rig segment.Rigidity, slot calbridge.Slot) (string, error) {
	if _, err := p.cal.CreateEvent(ctx, title, slot.StartAt, slot.Minutes); err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	blockID := idPrefix + uuid.NewString()
	block := segment.Segment{
		ID:       blockID,
		Kind:     segment.KindScheduled,
		Title:    title,
		Rigidity: rig,
		StartAt:  slot.StartAt,
		EndAt:    slot.StartAt.Add(time.Duration(slot.Minutes) * time.Minute),
	}
	if err := p.store.InsertSegment(block); err != nil {
		return "", err
	}
	return blockID, nil
}

func (p *Planner) closeSegment(id string, end segment.EndStatus, reason string, target *time.Time) error {
	patch := store.SegmentPatch{EndStatus: &end, ReasonCode: &reason}
	if target != nil {
		patch.RescheduleTarget = target
	}
	return p.store.UpdateSegment(id, patch)
}

// #endregion helpers
