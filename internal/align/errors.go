package align

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDataGap      = errors.New("perp price series has a gap")
	ErrEmptyOverlap = errors.New("equity and perp series do not overlap")
)

// DataGapError is fatal: the dense perp series is missing an hour inside the range.
type DataGapError struct {
	Time time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("perp price missing at %s", e.Time.UTC().Format(time.RFC3339))
}

func (e *DataGapError) Is(target error) bool {
	return target == ErrDataGap
}

type EmptyOverlapError struct {
	EquityStart time.Time
	EquityEnd   time.Time
	PerpStart   time.Time
	PerpEnd     time.Time
}

func (e *EmptyOverlapError) Error() string {
	return fmt.Sprintf("no overlap between equity [%s, %s] and perp [%s, %s]",
		formatTime(e.EquityStart), formatTime(e.EquityEnd), formatTime(e.PerpStart), formatTime(e.PerpEnd))
}

func (e *EmptyOverlapError) Is(target error) bool {
	return target == ErrEmptyOverlap
}

// DataQualityWarning is a non-fatal caveat returned alongside a usable timeline.
type DataQualityWarning struct {
	Start  time.Time
	End    time.Time
	Hours  int
	Reason string
}

func (w DataQualityWarning) String() string {
	return fmt.Sprintf("%s: %d hours from %s to %s", w.Reason, w.Hours, formatTime(w.Start), formatTime(w.End))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
