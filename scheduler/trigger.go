package scheduler

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// Trigger computes when a job should next fire.
type Trigger interface {
	Next(after time.Time) (time.Time, error)
}

type cronTrigger struct {
	expr string
	loc  *time.Location
}

// NewCronTrigger builds a Trigger for a standard 5-field cron expression,
// evaluated in the named timezone. The expression is validated up front so
// a typo fails at startup rather than at first firing.
func NewCronTrigger(expr, timezone string) (Trigger, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &cronTrigger{expr: expr, loc: loc}, nil
}

func (t *cronTrigger) Next(after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(t.expr, after.In(t.loc), false)
}
