// Package cpf handles the Brazilian individual taxpayer registry number
// (CPF): normalization to its 11-digit form and check-digit validation.
package cpf

import (
	"errors"
	"strings"
)

var (
	ErrInvalidLength = errors.New("cpf must have 11 digits")
	ErrInvalidDigits = errors.New("cpf check digits do not match")
)

// Normalize strips every non-digit character from the input. It does not
// validate the result; lookups and storage always use the normalized form so
// that "111.444.777-35" and "11144477735" address the same record.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(11)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate normalizes the input and verifies length and both check digits.
// It returns the normalized CPF when valid.
func Validate(raw string) (string, error) {
	digits := Normalize(raw)
	if len(digits) != 11 {
		return "", ErrInvalidLength
	}

	// CPFs made of a single repeated digit pass the mod-11 check but are
	// not issued.
	repeated := true
	for i := 1; i < 11; i++ {
		if digits[i] != digits[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return "", ErrInvalidDigits
	}

	if checkDigit(digits, 9) != int(digits[9]-'0') ||
		checkDigit(digits, 10) != int(digits[10]-'0') {
		return "", ErrInvalidDigits
	}
	return digits, nil
}

// checkDigit computes the mod-11 check digit over the first n digits.
func checkDigit(digits string, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(digits[i]-'0') * (n + 1 - i)
	}
	rest := sum * 10 % 11
	if rest == 10 {
		return 0
	}
	return rest
}

// Format renders a normalized CPF as 000.000.000-00 for display. Inputs that
// are not 11 digits long are returned unchanged.
func Format(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return digits[:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
}
