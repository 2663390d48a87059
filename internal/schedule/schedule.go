// Package schedule projects the delivery dates of a recurring plan from its structure.
//
// The projection uses 365-day years and rounds each offset to whole days. It has no
// leap-year or month-boundary awareness; server-side event materialization uses the
// same functions so projected index N always lines up with delivery event N.
package schedule

import (
	"iter"
	"math"
	"slices"
	"time"

	"github.com/and161185/bloomplan/internal/model"
)

const daysPerYear = 365

// DeliveriesPerYear returns how many deliveries a cadence has in one year.
// Unknown cadences fall back to one delivery a year.
func DeliveriesPerYear(f model.Frequency) int {
	switch f {
	case model.Weekly:
		return 52
	case model.Fortnightly:
		return 26
	case model.Monthly:
		return 12
	case model.Quarterly:
		return 4
	case model.BiAnnually:
		return 2
	default:
		return 1
	}
}

// Count returns the total number of deliveries over the plan's lifetime.
func Count(f model.Frequency, years int) int {
	if years <= 0 {
		return 0
	}
	return years * DeliveriesPerYear(f)
}

// OffsetDays returns the day offset from the start date of delivery i in year y.
func OffsetDays(f model.Frequency, y, i int) int {
	per := DeliveriesPerYear(f)
	return int(math.Round(float64(y*daysPerYear) + float64(i)*(float64(daysPerYear)/float64(per))))
}

// Deliveries yields the projected deliveries in index order. The sequence is
// restartable: ranging over it again recomputes the same values.
func Deliveries(f model.Frequency, start time.Time, years int) iter.Seq[model.ProjectedDelivery] {
	start = model.DateOf(start)
	per := DeliveriesPerYear(f)
	return func(yield func(model.ProjectedDelivery) bool) {
		for y := 0; y < years; y++ {
			for i := 0; i < per; i++ {
				d := model.ProjectedDelivery{
					Index: y*per + i,
					Date:  start.AddDate(0, 0, OffsetDays(f, y, i)),
				}
				if !yield(d) {
					return
				}
			}
		}
	}
}

// Project materializes Deliveries into a slice.
func Project(f model.Frequency, start time.Time, years int) []model.ProjectedDelivery {
	out := slices.Collect(Deliveries(f, start, years))
	if out == nil {
		out = []model.ProjectedDelivery{}
	}
	return out
}

// ForStructure projects the deliveries of a plan structure.
func ForStructure(s model.Structure) []model.ProjectedDelivery {
	return Project(s.Frequency, s.StartDate, s.Years)
}

// Equal reports whether two projections agree on count, order and dates.
func Equal(a, b []model.ProjectedDelivery) bool {
	return slices.EqualFunc(a, b, func(x, y model.ProjectedDelivery) bool {
		return x.Index == y.Index && x.Date.Equal(y.Date)
	})
}
