// Package scheduler owns the named cron tasks that trigger harvest
// operations on a cadence, independently of manual runs.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "tripharvest/internal/errors"
)

// CronParser abstracts cron-expression validation and next-fire-time
// computation so exact scheduling semantics stay replaceable and tests
// can drive fires without real timers.
type CronParser interface {
	Validate(expr string) error
	Next(expr string, from time.Time) (time.Time, error)
}

// robfigParser is the production CronParser backed by robfig/cron's
// standard five-field parser.
type robfigParser struct {
	parser cron.Parser
}

// NewCronParser creates the default cron parser
func NewCronParser() CronParser {
	return &robfigParser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (p *robfigParser) Validate(expr string) error {
	if _, err := p.parser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidCron, err)
	}
	return nil
}

func (p *robfigParser) Next(expr string, from time.Time) (time.Time, error) {
	schedule, err := p.parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidCron, err)
	}
	return schedule.Next(from), nil
}
