package store

import (
	"context"
	"strings"

	"agenda/internal/calendar"
)

// Alarm fires once at Time on Day.
type Alarm struct {
	Day  calendar.Date  `json:"day"`
	Time calendar.Clock `json:"time"`
}

func (a Alarm) Line() string {
	return string(a.Day) + "," + string(a.Time)
}

func decodeAlarm(line string) (Alarm, bool) {
	day, clock, found := strings.Cut(strings.TrimSpace(line), ",")
	if !found {
		return Alarm{}, false
	}
	return Alarm{Day: calendar.Date(day), Time: calendar.Clock(clock)}, true
}

func validClock(c calendar.Clock) bool {
	parsed, ok := calendar.ParseTime(string(c))
	return ok && parsed == c
}

func (s *Store) readAlarms() ([]Alarm, error) {
	lines, err := s.readLines(alarmsKey)
	if err != nil {
		return nil, err
	}
	alarms := make([]Alarm, 0, len(lines))
	for _, line := range lines {
		if a, ok := decodeAlarm(line); ok {
			alarms = append(alarms, a)
		}
	}
	return alarms, nil
}

func containsAlarm(alarms []Alarm, want Alarm) bool {
	for _, a := range alarms {
		if a == want {
			return true
		}
	}
	return false
}

func (s *Store) AlarmExists(ctx context.Context, day calendar.Date, at calendar.Clock) (bool, error) {
	return call(ctx, s, func() (bool, error) {
		alarms, err := s.readAlarms()
		if err != nil {
			return false, err
		}
		return containsAlarm(alarms, Alarm{Day: day, Time: at}), nil
	})
}

// AddAlarm registers (day, at). An identical pair is rejected with ErrDuplicate.
func (s *Store) AddAlarm(ctx context.Context, day calendar.Date, at calendar.Clock) error {
	_, err := call(ctx, s, func() (struct{}, error) {
		if !validDate(day) {
			return struct{}{}, ErrInvalidDate
		}
		if !validClock(at) {
			return struct{}{}, ErrInvalidTime
		}

		alarms, err := s.readAlarms()
		if err != nil {
			return struct{}{}, err
		}
		alarm := Alarm{Day: day, Time: at}
		if containsAlarm(alarms, alarm) {
			return struct{}{}, ErrDuplicate
		}

		lines := make([]string, 0, len(alarms)+1)
		for _, a := range alarms {
			lines = append(lines, a.Line())
		}
		lines = append(lines, alarm.Line())
		return struct{}{}, s.writeLines(alarmsKey, lines)
	})
	return err
}

// ListAlarms returns a copy of the registry in insertion order.
func (s *Store) ListAlarms(ctx context.Context) ([]Alarm, error) {
	return call(ctx, s, func() ([]Alarm, error) {
		return s.readAlarms()
	})
}
