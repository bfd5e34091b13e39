package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"agenda/internal/store"
)

func TestPrinters(t *testing.T) {
	color.NoColor = true

	var b bytes.Buffer
	printTasks(&b, "27122025", []store.Task{{Date: "27122025", Index: 1, Text: "comprar pan"}, {Date: "27122025", Index: 10, Text: "x"}})
	assert.Contains(t, b.String(), "27 de diciembre de 2025")
	assert.Contains(t, b.String(), " 1  comprar pan")
	assert.Contains(t, b.String(), "10  x")

	b.Reset()
	printAlarms(&b, []store.Alarm{{Day: "27122025", Time: "07:30"}})
	assert.Contains(t, b.String(), "07:30")

	b.Reset()
	printToday(&b, nil)
	assert.Equal(t, "nothing for today\n", b.String())

	b.Reset()
	printDates(&b, nil)
	assert.Equal(t, "no tasks\n", b.String())
}
