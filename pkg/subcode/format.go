package subcode

import "strings"

const (
	// Length is the exact length of a subscription code.
	Length = 32

	// MinLetters is the minimum number of ASCII letters in a valid code.
	MinLetters = 16

	// MinDigits is the minimum number of ASCII digits in a valid code.
	MinDigits = 16

	displayGroup = 4
)

// ValidateFormat reports whether code has the shape of an issued code:
// exactly 32 characters with at least 16 ASCII letters and 16 ASCII digits.
func ValidateFormat(code string) bool {
	if len(code) != Length {
		return false
	}
	letters, digits, ok := count(code)
	return ok && letters >= MinLetters && digits >= MinDigits
}

// WellFormed reports whether code is structurally a code: exactly 32 ASCII
// letters or digits. It does not check the letter/digit balance.
func WellFormed(code string) bool {
	if len(code) != Length {
		return false
	}
	_, _, ok := count(code)
	return ok
}

// count tallies letters and digits; ok is false on any other byte.
func count(code string) (letters, digits int, ok bool) {
	for i := 0; i < len(code); i++ {
		switch c := code[i]; {
		case c >= '0' && c <= '9':
			digits++
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			letters++
		default:
			return letters, digits, false
		}
	}
	return letters, digits, true
}

// FormatForDisplay splits a code into dash-separated groups of four for
// printing. Values that are not exactly Length bytes are returned unchanged.
func FormatForDisplay(code string) string {
	if len(code) != Length {
		return code
	}
	var b strings.Builder
	b.Grow(Length + Length/displayGroup - 1)
	for i := 0; i < Length; i += displayGroup {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(code[i : i+displayGroup])
	}
	return b.String()
}

// Normalize prepares typed input for validation: surrounding whitespace is
// trimmed, and the dashes and spaces of the display form are removed.
func Normalize(input string) string {
	input = strings.TrimSpace(input)
	if !strings.ContainsAny(input, "- ") {
		return input
	}
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, input)
}

// Mask hides the middle of a code so it can be written to logs.
func Mask(code string) string {
	if len(code) < 2*displayGroup {
		return "****"
	}
	return code[:displayGroup] + "…" + code[len(code)-displayGroup:]
}
