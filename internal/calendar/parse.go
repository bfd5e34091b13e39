package calendar

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics, so "Añadir Décima" becomes "anadir decima".
// Transcribers are inconsistent about accents; every matcher works on folded text.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// ParseDate accepts exactly eight digits (typed or spoken one digit per word)
// forming a real Gregorian date.
func ParseDate(raw string) (Date, bool) {
	digits, ok := spokenDigits(raw)
	if !ok || len(digits) != 8 {
		return "", false
	}
	if _, err := time.Parse(dateLayout, digits); err != nil {
		return "", false
	}
	return Date(digits), true
}

// ParseTime coerces raw into a zero padded HHMM numeral and validates the ranges.
// "930" is 09:30, "2460" is rejected.
func ParseTime(raw string) (Clock, bool) {
	cleaned := strings.NewReplacer(":", " ", ".", " ").Replace(raw)
	digits, ok := spokenDigits(cleaned)
	if !ok {
		return "", false
	}

	digits = strings.TrimLeft(digits, "0")
	if len(digits) > 4 {
		return "", false
	}
	digits = strings.Repeat("0", 4-len(digits)) + digits

	hh, _ := strconv.Atoi(digits[:2])
	mm, _ := strconv.Atoi(digits[2:])
	if hh > 23 || mm > 59 {
		return "", false
	}
	return Clock(digits[:2] + ":" + digits[2:]), true
}

// ParseIndex reads a positive task index from digits or a Spanish number phrase.
func ParseIndex(raw string) (int, bool) {
	var words []string
	for _, w := range strings.Fields(Fold(raw)) {
		if indexFiller[w] {
			continue
		}
		words = append(words, strings.TrimSuffix(w, "."))
	}
	if len(words) == 0 {
		return 0, false
	}

	if len(words) == 1 && isDigits(words[0]) {
		n, err := strconv.Atoi(words[0])
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}

	n, ok := WordsToNumber(words)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

var indexFiller = map[string]bool{
	"el": true, "la": true, "numero": true, "tarea": true, "indice": true,
}

var digitWords = map[string]byte{
	"cero": '0', "uno": '1', "una": '1', "un": '1', "dos": '2', "tres": '3', "cuatro": '4',
	"cinco": '5', "seis": '6', "siete": '7', "ocho": '8', "nueve": '9',
}

// spokenDigits concatenates digit runs and single-digit words ("dos 7 uno 2")
// into one numeral. Any other token makes the input invalid.
func spokenDigits(raw string) (string, bool) {
	fields := strings.Fields(Fold(raw))
	if len(fields) == 0 {
		return "", false
	}

	var b strings.Builder
	for _, f := range fields {
		if isDigits(f) {
			b.WriteString(f)
			continue
		}
		d, ok := digitWords[f]
		if !ok {
			return "", false
		}
		b.WriteByte(d)
	}
	return b.String(), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
