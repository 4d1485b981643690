package domain

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrValidation = errors.New("checkout form is invalid")

type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldAddress Field = "address"
	FieldCard    Field = "card"
	FieldAgree   Field = "agree"
)

const (
	minAddressLen = 8
	cardLen       = 16
	cardGroupLen  = 4
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	cardRe  = regexp.MustCompile(`^\d{16}$`)
)

// FieldErrors maps every failed field to its message. An empty set means the
// form is valid.
type FieldErrors map[Field]string

func (e FieldErrors) Valid() bool {
	return len(e) == 0
}

func (e FieldErrors) Has(f Field) bool {
	_, ok := e[f]
	return ok
}

// Fields returns the failed fields in a stable order.
func (e FieldErrors) Fields() []Field {
	return slices.Sorted(maps.Keys(e))
}

// A ValidationError carries the field errors of a rejected form.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrValidation, e.Fields.Fields())
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// CheckoutForm holds the order details typed by the user. It is never saved.
type CheckoutForm struct {
	Name    string
	Email   string
	Address string
	Card    string
	Agree   bool
}

// Validate evaluates every rule so the user sees all problems at once.
func Validate(f CheckoutForm) FieldErrors {
	errs := make(FieldErrors)

	if strings.TrimSpace(f.Name) == "" {
		errs[FieldName] = "Name is required"
	}
	if !emailRe.MatchString(f.Email) {
		errs[FieldEmail] = "Valid email required"
	}
	if utf8.RuneCountInString(strings.TrimSpace(f.Address)) < minAddressLen {
		errs[FieldAddress] = "Full address required"
	}
	if !cardRe.MatchString(stripSpace(f.Card)) {
		errs[FieldCard] = "16-digit card required"
	}
	if !f.Agree {
		errs[FieldAgree] = "You must accept terms"
	}

	return errs
}

// NormalizeCardNumber keeps the first 16 digits of the input and groups
// them by four, e.g. "1234 5678 9012 3456".
func NormalizeCardNumber(s string) string {
	digits := cardDigits(s)
	if len(digits) > cardLen {
		digits = digits[:cardLen]
	}

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && i%cardGroupLen == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CardLast4 returns the last four digits of the card number.
func CardLast4(s string) string {
	digits := cardDigits(s)
	if len(digits) <= cardGroupLen {
		return string(digits)
	}
	return string(digits[len(digits)-cardGroupLen:])
}

func cardDigits(s string) []rune {
	digits := make([]rune, 0, cardLen)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	return digits
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
