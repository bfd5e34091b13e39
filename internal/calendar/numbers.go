package calendar

// Spanish cardinal words from 0 to 100, already folded (no accents).
var (
	smallNumbers = map[string]int{
		"cero": 0, "un": 1, "uno": 1, "una": 1, "dos": 2, "tres": 3, "cuatro": 4,
		"cinco": 5, "seis": 6, "siete": 7, "ocho": 8, "nueve": 9,
		"diez": 10, "once": 11, "doce": 12, "trece": 13, "catorce": 14, "quince": 15,
		"dieciseis": 16, "diecisiete": 17, "dieciocho": 18, "diecinueve": 19,
		"veinte": 20, "veintiun": 21, "veintiuno": 21, "veintiuna": 21, "veintidos": 22,
		"veintitres": 23, "veinticuatro": 24, "veinticinco": 25, "veintiseis": 26,
		"veintisiete": 27, "veintiocho": 28, "veintinueve": 29,
		"cien": 100,
	}

	tensNumbers = map[string]int{
		"treinta": 30, "cuarenta": 40, "cincuenta": 50, "sesenta": 60,
		"setenta": 70, "ochenta": 80, "noventa": 90,
	}
)

// WordsToNumber converts folded Spanish number words into an integer.
// Accepted shapes: a single word ("doce", "veintitres", "cuarenta") or
// tens joined to a unit with "y" ("treinta y dos").
func WordsToNumber(words []string) (int, bool) {
	switch len(words) {
	case 1:
		if n, ok := smallNumbers[words[0]]; ok {
			return n, true
		}
		if n, ok := tensNumbers[words[0]]; ok {
			return n, true
		}
	case 3:
		tens, ok := tensNumbers[words[0]]
		if !ok || words[1] != "y" {
			return 0, false
		}
		unit, ok := smallNumbers[words[2]]
		if !ok || unit < 1 || unit > 9 {
			return 0, false
		}
		return tens + unit, true
	}
	return 0, false
}
