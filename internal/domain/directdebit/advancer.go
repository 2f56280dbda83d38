package directdebit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MandateChange describes what the advancer did to one mandate
type MandateChange struct {
	MandateID    uuid.UUID
	Reference    string
	BilledAs     SequenceCode
	FromState    MandateState
	ToState      MandateState
	FromSequence SequenceType
	ToSequence   SequenceType
	LastDebit    time.Time
}

// AmountSplit separates the amount of an order collected as first debits
// from the rest. One-off and final debits count as recurring.
type AmountSplit struct {
	First     decimal.Decimal
	Recurring decimal.Decimal
	Total     decimal.Decimal
}

// usage is the sequence a mandate was billed under on an order
type usage struct {
	mandate *Mandate
	code    SequenceCode
}

// AdvanceOrder updates the mandates debited by a sent order. Mandates are
// classified by the sequence they were billed under before anything is
// changed: one-off and final mandates expire, first mandates move to
// recurring and are marked migrated. Every used mandate gets date as its
// last debit date. Nothing is changed when a mandate is missing or the
// amounts do not reconcile with the order total.
func AdvanceOrder(order *PaymentOrder, mandates MandateSet, date time.Time) ([]MandateChange, AmountSplit, error) {
	changes, splits, err := AdvanceOrders([]*PaymentOrder{order}, mandates, date)
	if err != nil {
		return nil, AmountSplit{}, err
	}
	return changes, splits[0], nil
}

// AdvanceOrders advances the mandates of all orders of one file. Every
// order is classified before any mandate changes, so a mandate debited by
// two orders of the same file is advanced once. The splits are returned
// in order.
func AdvanceOrders(orders []*PaymentOrder, mandates MandateSet, date time.Time) ([]MandateChange, []AmountSplit, error) {
	return advance(orders, mandates, nil, date)
}

// BilledSequences maps a mandate to the sequence code written for it in a file
type BilledSequences map[uuid.UUID]SequenceCode

// AdvanceFile advances the mandates of a sent file by the sequences written
// in it, so edits made to a mandate after the file was generated do not
// change how the debit is booked. Mandates the file holds no sequence for
// are classified from their current state.
func AdvanceFile(file *SddFile, orders []*PaymentOrder, mandates MandateSet, date time.Time) ([]MandateChange, []AmountSplit, error) {
	return advance(orders, mandates, file.BilledSequences(), date)
}

func advance(orders []*PaymentOrder, mandates MandateSet, billed BilledSequences, date time.Time) ([]MandateChange, []AmountSplit, error) {
	var used []usage
	seen := make(map[uuid.UUID]bool)
	splits := make([]AmountSplit, 0, len(orders))

	for _, order := range orders {
		split := AmountSplit{First: decimal.Zero, Recurring: decimal.Zero, Total: decimal.Zero}
		for i := range order.Lines {
			line := &order.Lines[i]
			m := mandates.Get(line.MandateID)
			if m == nil {
				return nil, nil, MissingMandateError(line.PartnerName, line.InvoiceRef)
			}
			code, ok := billed[m.ID]
			if !ok {
				var err error
				if code, err = billedAs(m); err != nil {
					return nil, nil, err
				}
			}
			if code == CodeFirst {
				split.First = split.First.Add(line.Amount)
			} else {
				split.Recurring = split.Recurring.Add(line.Amount)
			}
			split.Total = split.Total.Add(line.Amount)
			if !seen[m.ID] {
				seen[m.ID] = true
				used = append(used, usage{mandate: m, code: code})
			}
		}

		if !split.Total.Equal(split.First.Add(split.Recurring)) || !split.Total.Equal(order.Total) {
			return nil, nil, AmountReconciliationError(
				"The total of payment order '%s' (%s) does not match the first (%s) and recurring (%s) amounts.",
				order.Reference, order.Total.StringFixedBank(2), split.First.StringFixedBank(2), split.Recurring.StringFixedBank(2))
		}
		splits = append(splits, split)
	}

	day := DateOf(date)
	changes := make([]MandateChange, 0, len(used))
	for _, u := range used {
		changes = append(changes, u.apply(day))
	}
	return changes, splits, nil
}

// billedAs returns the code a mandate is billed under without validating
// migration data again, so that a sent file can always be booked
func billedAs(m *Mandate) (SequenceCode, error) {
	if m.Type == MandateTypeOneOff {
		return CodeOneOff, nil
	}
	switch m.SequenceType {
	case SequenceFirst:
		return CodeFirst, nil
	case SequenceRecurring:
		return CodeRecurring, nil
	case SequenceFinal:
		return CodeFinal, nil
	}
	return "", MandateMigrationError("The recurrent mandate '%s' must have a sequence type.", m.Reference)
}

// apply books one debit on the mandate. The version moves by exactly one
// so the mandate can be saved with an optimistic lock.
func (u usage) apply(day time.Time) MandateChange {
	m := u.mandate
	version := m.Version
	change := MandateChange{
		MandateID:    m.ID,
		Reference:    m.Reference,
		BilledAs:     u.code,
		FromState:    m.State,
		FromSequence: m.SequenceType,
		LastDebit:    day,
	}
	switch u.code {
	case CodeOneOff, CodeFinal:
		m.Expire("last debit sent")
	case CodeFirst:
		from := m.SequenceType
		m.SequenceType = SequenceRecurring
		m.SEPAMigrated = true
		m.ClearPreviousBank()
		m.AddDomainEvent(NewMandateSequenceChangedEvent(m, from))
	}
	m.LastDebitDate = DatePtr(day)
	m.Touch()
	if m.Version == version {
		m.IncrementVersion()
	}

	change.ToState = m.State
	change.ToSequence = m.SequenceType
	return change
}
