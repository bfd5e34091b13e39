package calendar

import (
	"fmt"
	"time"
)

const (
	dateLayout  = "02012006"
	clockLayout = "15:04"
)

// Date is a calendar day in the canonical DDMMYYYY form.
type Date string

// Clock is a wall-clock minute in the canonical HH:MM form.
type Clock string

func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func ClockOf(t time.Time) Clock {
	return Clock(t.Format(clockLayout))
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", string(d), err)
	}
	return t, nil
}

// sortKey reorders DDMMYYYY as YYYYMMDD so that string order is calendar order.
func (d Date) sortKey() string {
	s := string(d)
	if len(s) != 8 {
		return s
	}
	return s[4:] + s[2:4] + s[:2]
}

func (d Date) After(other Date) bool {
	return d.sortKey() > other.sortKey()
}

func (d Date) Before(other Date) bool {
	return d.sortKey() < other.sortKey()
}

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Spoken renders d for text-to-speech, e.g. "27 de diciembre de 2025".
func (d Date) Spoken() string {
	t, err := d.Time(time.Local)
	if err != nil {
		return string(d)
	}
	return fmt.Sprintf("%d de %s de %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

func (c Clock) String() string { return string(c) }

func (d Date) String() string { return string(d) }
