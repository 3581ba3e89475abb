// This file implements the Period Calculator as a strategy registry: each
// period kind owns the rule that rolls a reference instant back to the first
// instant of its window.

package core

import "time"

// PeriodStarter computes the first instant of the window that contains now.
// Implementations are pure; the result keeps now's location.
type PeriodStarter interface {
	Start(now time.Time) time.Time
}

// WeekStart rolls back to the most recent Sunday at 00:00.
type WeekStart struct{}

func (WeekStart) Start(now time.Time) time.Time {
	day := now.AddDate(0, 0, -int(now.Weekday()))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
}

// MonthStart returns the first day of now's month at 00:00.
type MonthStart struct{}

func (MonthStart) Start(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// YearStart returns January 1 of now's year at 00:00.
type YearStart struct{}

func (YearStart) Start(now time.Time) time.Time {
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
}

var periodStarters = map[Period]PeriodStarter{
	Weekly:  WeekStart{},
	Monthly: MonthStart{},
	Yearly:  YearStart{},
}

// PeriodStart maps a period kind and a reference instant to the period's
// start. Unrecognized kinds are treated as monthly.
func PeriodStart(period Period, now time.Time) time.Time {
	starter, ok := periodStarters[period]
	if !ok {
		starter = MonthStart{}
	}
	return starter.Start(now)
}
