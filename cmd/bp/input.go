package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/model"
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errs.ErrValidation}, args...)...)
}

func parseDuration(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, invalidf("bad --%s %q", name, s)
	}
	return d, nil
}

// structureFlags are structure overrides; only changed flags apply.
type structureFlags struct {
	frequency string
	start     string
	years     int
	budget    string
}

func (f *structureFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.frequency, "frequency", "", "weekly|fortnightly|monthly|quarterly|bi-annually|annually")
	fl.StringVar(&f.start, "start", "", "first delivery date (YYYY-MM-DD)")
	fl.IntVar(&f.years, "years", 0, "plan length in years")
	fl.StringVar(&f.budget, "budget", "", "budget per delivery")
}

func (f *structureFlags) apply(cmd *cobra.Command, s model.Structure) (model.Structure, error) {
	fl := cmd.Flags()
	kv := map[string]string{}
	if fl.Changed("frequency") {
		kv["frequency"] = f.frequency
	}
	if fl.Changed("start") {
		kv["start"] = f.start
	}
	if fl.Changed("years") {
		kv["years"] = strconv.Itoa(f.years)
	}
	if fl.Changed("budget") {
		kv["budget"] = f.budget
	}
	return applyStructure(s, kv)
}

// parseStructureLine reads "key=value" pairs such as "years=3 budget=45.50".
func parseStructureLine(line string) (map[string]string, error) {
	kv := map[string]string{}
	for _, field := range strings.Fields(line) {
		k, v, ok := strings.Cut(field, "=")
		if !ok || v == "" {
			return nil, invalidf("expected key=value, got %q", field)
		}
		kv[strings.ToLower(k)] = v
	}
	return kv, nil
}

func applyStructure(s model.Structure, kv map[string]string) (model.Structure, error) {
	for k, v := range kv {
		switch k {
		case "frequency", "freq":
			s.Frequency = model.Frequency(strings.ToLower(v))
		case "start", "start_date":
			d, err := model.ParseDate(v)
			if err != nil {
				return s, invalidf("start: %v", err)
			}
			s.StartDate = d
		case "years":
			n, err := strconv.Atoi(v)
			if err != nil {
				return s, invalidf("years: %q is not a number", v)
			}
			s.Years = n
		case "budget":
			b, err := decimal.NewFromString(v)
			if err != nil {
				return s, invalidf("budget: %q is not an amount", v)
			}
			s.Budget = b
		default:
			return s, invalidf("unknown field %q", k)
		}
	}
	return s, nil
}

// recipientFlags are recipient overrides; only changed flags apply.
type recipientFlags struct {
	name, phone, address, suburb, postcode, instructions string
}

func (f *recipientFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "recipient name")
	fl.StringVar(&f.phone, "phone", "", "recipient phone")
	fl.StringVar(&f.address, "address", "", "street address")
	fl.StringVar(&f.suburb, "suburb", "", "suburb")
	fl.StringVar(&f.postcode, "postcode", "", "postcode")
	fl.StringVar(&f.instructions, "instructions", "", "delivery instructions")
}

func (f *recipientFlags) apply(cmd *cobra.Command, r model.Recipient) model.Recipient {
	fl := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	set("name", &r.Name, f.name)
	set("phone", &r.Phone, f.phone)
	set("address", &r.AddressLine, f.address)
	set("suburb", &r.Suburb, f.suburb)
	set("postcode", &r.Postcode, f.postcode)
	set("instructions", &r.Instructions, f.instructions)
	return r
}
