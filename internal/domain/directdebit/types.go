// Package directdebit models SEPA Direct Debit collections: mandates,
// payment orders and the pain.008 files generated from them.
package directdebit

import (
	"time"
)

// MandateType tells whether a mandate may be debited once or repeatedly
type MandateType string

const (
	MandateTypeRecurrent MandateType = "recurrent"
	MandateTypeOneOff    MandateType = "oneoff"
)

// IsValid checks if the mandate type is valid
func (t MandateType) IsValid() bool {
	return t == MandateTypeRecurrent || t == MandateTypeOneOff
}

// SequenceType is the position of the next debit in a recurrent series
type SequenceType string

const (
	SequenceFirst     SequenceType = "first"
	SequenceRecurring SequenceType = "recurring"
	SequenceFinal     SequenceType = "final"
)

// IsValid checks if the sequence type is valid
func (s SequenceType) IsValid() bool {
	switch s {
	case SequenceFirst, SequenceRecurring, SequenceFinal:
		return true
	}
	return false
}

// MandateState is the lifecycle state of a mandate
type MandateState string

const (
	MandateStateDraft   MandateState = "draft"
	MandateStateValid   MandateState = "valid"
	MandateStateExpired MandateState = "expired"
	MandateStateCancel  MandateState = "cancel"
)

// SequenceCode is the ISO 20022 SeqTp code of a direct debit transaction
type SequenceCode string

const (
	CodeFirst     SequenceCode = "FRST"
	CodeRecurring SequenceCode = "RCUR"
	CodeFinal     SequenceCode = "FNAL"
	CodeOneOff    SequenceCode = "OOFF"
)

// Priority is the instruction priority of a payment line
type Priority string

const (
	PriorityNormal Priority = "NORM"
	PriorityHigh   Priority = "HIGH"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	return p == PriorityNormal || p == PriorityHigh
}

// DatePreference selects how the requested collection date of a line is chosen
type DatePreference string

const (
	DatePreferenceDue   DatePreference = "due"
	DatePreferenceFixed DatePreference = "fixed"
	DatePreferenceNow   DatePreference = "now"
)

// ChargeBearer identifies who bears the transaction charges
type ChargeBearer string

const (
	ChargeBearerServiceLevel ChargeBearer = "SLEV"
	ChargeBearerShared       ChargeBearer = "SHAR"
	ChargeBearerCreditor     ChargeBearer = "CRED"
	ChargeBearerDebtor       ChargeBearer = "DEBT"
)

// IsValid checks if the charge bearer is one of the ISO codes
func (c ChargeBearer) IsValid() bool {
	switch c {
	case ChargeBearerServiceLevel, ChargeBearerShared, ChargeBearerCreditor, ChargeBearerDebtor:
		return true
	}
	return false
}

// CommunicationType selects free text or structured remittance information
type CommunicationType string

const (
	CommunicationNormal     CommunicationType = "normal"
	CommunicationStructured CommunicationType = "structured"
)

// GroupKey identifies the payment information block a line is emitted
// under. It is comparable and used directly as a map key.
type GroupKey struct {
	RequestedDate time.Time
	Priority      Priority
	Sequence      SequenceCode
}

// DateOf truncates t to its calendar date at UTC midnight so that dates
// compare equal with ==.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DatePtr returns a pointer to the calendar date of t
func DatePtr(t time.Time) *time.Time {
	d := DateOf(t)
	return &d
}

// sameDate reports whether a stored optional date equals d
func sameDate(stored *time.Time, d time.Time) bool {
	return stored != nil && DateOf(*stored).Equal(d)
}
