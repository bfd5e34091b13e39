package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"agenda/internal/calendar"
	"agenda/internal/store"
)

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
)

func printTasks(w io.Writer, date calendar.Date, tasks []store.Task) {
	_, _ = fmt.Fprintln(w, bold.Sprint(date.Spoken()))
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(w, faint.Sprint("  no tasks"))
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	for _, t := range tasks {
		tbl.AddRow(t.Index, t.Text)
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(w, tbl)
}

func printDates(w io.Writer, dates []calendar.Date) {
	if len(dates) == 0 {
		_, _ = fmt.Fprintln(w, faint.Sprint("no tasks"))
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Date"), bold.Sprint("Day"))
	for _, d := range dates {
		tbl.AddRow(string(d), d.Spoken())
	}
	_, _ = fmt.Fprintln(w, tbl)
}

func printToday(w io.Writer, today []string) {
	if len(today) == 0 {
		_, _ = fmt.Fprintln(w, faint.Sprint("nothing for today"))
		return
	}
	for _, text := range today {
		_, _ = fmt.Fprintf(w, "• %s\n", text)
	}
}

func printAlarms(w io.Writer, alarms []store.Alarm) {
	if len(alarms) == 0 {
		_, _ = fmt.Fprintln(w, faint.Sprint("no alarms"))
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Day"), bold.Sprint("Time"))
	for _, a := range alarms {
		tbl.AddRow(a.Day.Spoken(), string(a.Time))
	}
	_, _ = fmt.Fprintln(w, tbl)
}
