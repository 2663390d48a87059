package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/and161185/bloomplan/internal/errs"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errs.ErrValidation}, args...)...)
}

// Validate checks structure fields before they are sent anywhere.
// Unknown frequencies are accepted; the schedule falls back to one delivery a year.
func (s Structure) Validate() error {
	if s.Frequency == "" {
		return invalid("empty frequency")
	}
	if s.StartDate.IsZero() {
		return invalid("empty start date")
	}
	if s.Years < 1 {
		return invalid("years must be at least 1, got %d", s.Years)
	}
	if !s.Budget.IsPositive() {
		return invalid("budget must be positive")
	}
	return nil
}

var rePostcode = regexp.MustCompile(`^\d{4}$`)
var rePhone = regexp.MustCompile(`^\+?[0-9 ]{8,15}$`)

// Validate checks the required recipient fields.
func (r Recipient) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("recipient name required")
	}
	if strings.TrimSpace(r.AddressLine) == "" || strings.TrimSpace(r.Suburb) == "" {
		return invalid("recipient address required")
	}
	if !rePostcode.MatchString(r.Postcode) {
		return invalid("bad postcode %q", r.Postcode)
	}
	if r.Phone != "" && !rePhone.MatchString(r.Phone) {
		return invalid("bad phone %q", r.Phone)
	}
	return nil
}
