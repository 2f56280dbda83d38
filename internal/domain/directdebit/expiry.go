package directdebit

import (
	"fmt"
	"time"
)

// DefaultUnusedMonthsBeforeExpiry is the inactivity period after which a
// mandate may be expired
const DefaultUnusedMonthsBeforeExpiry = 36

// ExpirySweep expires valid mandates that have not been used for a number
// of months. It is disabled unless explicitly enabled.
type ExpirySweep struct {
	Enabled      bool
	UnusedMonths int
}

// NewExpirySweep creates a disabled sweep with the default period
func NewExpirySweep() ExpirySweep {
	return ExpirySweep{UnusedMonths: DefaultUnusedMonthsBeforeExpiry}
}

// Limit returns the date on or before which signature and last debit must lie
func (s ExpirySweep) Limit(today time.Time) time.Time {
	return DateOf(today).AddDate(0, -s.months(), 0)
}

// Eligible reports whether a mandate would be expired by the sweep
func (s ExpirySweep) Eligible(m *Mandate, today time.Time) bool {
	if m.State != MandateStateValid || m.SignatureDate == nil {
		return false
	}
	limit := s.Limit(today)
	if DateOf(*m.SignatureDate).After(limit) {
		return false
	}
	return m.LastDebitDate == nil || !DateOf(*m.LastDebitDate).After(limit)
}

// Run expires the eligible mandates and returns them. A disabled sweep
// returns nil without touching any mandate.
func (s ExpirySweep) Run(mandates []*Mandate, today time.Time) []*Mandate {
	if !s.Enabled {
		return nil
	}
	var expired []*Mandate
	for _, m := range mandates {
		if s.Eligible(m, today) {
			m.Expire(fmt.Sprintf("unused for %d months", s.months()))
			expired = append(expired, m)
		}
	}
	return expired
}

func (s ExpirySweep) months() int {
	if s.UnusedMonths <= 0 {
		return DefaultUnusedMonthsBeforeExpiry
	}
	return s.UnusedMonths
}
