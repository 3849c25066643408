package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const virtualSeparator = "@"

var ErrInvalidOccurrenceID = errors.New("invalid occurrence id")

// OccurrenceRef identifies something a calendar cell can act on: either a
// stored task or a projected occurrence of a series.
type OccurrenceRef interface {
	ID() string
	occurrenceRef()
}

// RealRef points at a stored task.
type RealRef struct {
	TaskID string
}

// VirtualRef points at the occurrence of series RootID on Date's calendar day.
type VirtualRef struct {
	RootID string
	Date   time.Time
}

func (r RealRef) ID() string { return r.TaskID }

// ID renders root@YYYY-MM-DD. Stored ids never contain '@', so the two
// kinds cannot collide.
func (r VirtualRef) ID() string {
	return r.RootID + virtualSeparator + r.Date.Format(time.DateOnly)
}

func (RealRef) occurrenceRef()    {}
func (VirtualRef) occurrenceRef() {}

// ParseOccurrenceID turns an id produced by RealRef.ID or VirtualRef.ID back
// into its reference. Virtual dates are read as midnight in loc.
func ParseOccurrenceID(id string, loc *time.Location) (OccurrenceRef, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidOccurrenceID)
	}
	i := strings.LastIndex(id, virtualSeparator)
	if i < 0 {
		return RealRef{TaskID: id}, nil
	}
	rootID, day := id[:i], id[i+len(virtualSeparator):]
	if rootID == "" {
		return nil, fmt.Errorf("%w: %q has no series", ErrInvalidOccurrenceID, id)
	}
	date, err := time.ParseInLocation(time.DateOnly, day, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidOccurrenceID, id, err)
	}
	return VirtualRef{RootID: rootID, Date: date}, nil
}
