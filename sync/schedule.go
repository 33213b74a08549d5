package sync

import (
	"fmt"
	"time"
)

// ScheduleDateFormat is the canonical rendering for schedule dates. Every
// call site must use this format so the same campaign always produces the
// same schedule string.
const ScheduleDateFormat = "2006-01-02"

// UnboundedSchedule is the sentinel rendered for a missing start or end date.
const UnboundedSchedule = "unbounded"

// FormatAdSchedule renders a campaign's optional start/end date pair as the
// canonical ad-schedule string:
//
//	no dates      -> "unbounded"
//	both dates    -> "<start> ~ <end>"
//	start only    -> "<start> ~ unbounded"
//	end only      -> "~ <end>"
func FormatAdSchedule(start, end *time.Time) string {
	switch {
	case start == nil && end == nil:
		return UnboundedSchedule
	case start != nil && end != nil:
		return fmt.Sprintf("%s ~ %s", start.Format(ScheduleDateFormat), end.Format(ScheduleDateFormat))
	case start != nil:
		return fmt.Sprintf("%s ~ %s", start.Format(ScheduleDateFormat), UnboundedSchedule)
	default:
		return fmt.Sprintf("~ %s", end.Format(ScheduleDateFormat))
	}
}
