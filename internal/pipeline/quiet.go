package pipeline

import (
	"fmt"
	"time"
)

// QuietHours is a daily window [Start, End) of whole hours during which no
// cycle runs. Start == End disables it; Start > End wraps past midnight.
type QuietHours struct {
	Start    int
	End      int
	Location *time.Location
}

// Contains reports whether t falls inside the window.
func (q QuietHours) Contains(t time.Time) bool {
	if q.Start == q.End {
		return false
	}
	if q.Location != nil {
		t = t.In(q.Location)
	}
	h := t.Hour()
	if q.Start < q.End {
		return h >= q.Start && h < q.End
	}
	return h >= q.Start || h < q.End
}

func (q QuietHours) String() string {
	if q.Start == q.End {
		return "disabled"
	}
	return fmt.Sprintf("%02d:00-%02d:00", q.Start, q.End)
}
