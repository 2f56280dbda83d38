package directdebit

import "time"

// Minimum lead time, in network days counted inclusively from today, between
// today and the collection date of a direct debit
const (
	RecurringLeadDays = 5
	FirstLeadDays     = 7
)

func isWorkday(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// NetworkDays counts the working days (Monday to Friday) between start and
// end, both included. It returns 0 when end is before start.
func NetworkDays(start, end time.Time) int {
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return 0
	}
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if isWorkday(d) {
			n++
		}
	}
	return n
}

// Workday returns the date that is days working days after start
func Workday(start time.Time, days int) time.Time {
	d := DateOf(start)
	for days > 0 {
		d = d.AddDate(0, 0, 1)
		if isWorkday(d) {
			days--
		}
	}
	return d
}

// DueDate returns the collection date of an invoice debited under a mandate
// with the given sequence. The invoice date is kept when it leaves enough
// lead time, otherwise the date is pushed to the earliest allowed workday.
func DueDate(today, invoiceDate time.Time, seq SequenceType) time.Time {
	lead := FirstLeadDays
	if seq == SequenceRecurring {
		lead = RecurringLeadDays
	}
	if NetworkDays(today, invoiceDate) < lead {
		return Workday(today, lead)
	}
	return DateOf(invoiceDate)
}
