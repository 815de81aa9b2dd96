package trigger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule determines when a job should run next.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// intervalSchedule runs at fixed intervals
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

// hourlySchedule runs every hour at the given minute
type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		from.Hour(), s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string {
	return fmt.Sprintf("hourly at :%02d", s.minute)
}

// dailySchedule runs once per day at the given time
type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// Every runs at a fixed interval.
func Every(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// HourlyAt runs every hour at the given minute.
func HourlyAt(minute int) Schedule {
	return hourlySchedule{minute: minute}
}

// DailyAt runs every day at the given time.
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// ParseSchedule reads the textual form produced by Schedule.String:
//
//	every 15m
//	hourly at :05
//	daily at 02:30
func ParseSchedule(s string) (Schedule, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "every "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(s, "every ")))
		if err != nil {
			return nil, errors.Join(ErrInvalidSchedule, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidSchedule)
		}
		return Every(d), nil

	case strings.HasPrefix(s, "hourly at :"):
		m, err := strconv.Atoi(strings.TrimPrefix(s, "hourly at :"))
		if err != nil || m < 0 || m > 59 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
		}
		return HourlyAt(m), nil

	case strings.HasPrefix(s, "daily at "):
		t, err := time.Parse("15:04", strings.TrimPrefix(s, "daily at "))
		if err != nil {
			return nil, errors.Join(ErrInvalidSchedule, err)
		}
		return DailyAt(t.Hour(), t.Minute()), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
}
