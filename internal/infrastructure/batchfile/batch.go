// Package batchfile reads self-contained direct debit batches from YAML
// files, with payment lines optionally kept in an XLSX workbook. A batch
// carries its own mandates, so files can be built without a database.
package batchfile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DateLayout is the layout of every date in a batch file
const DateLayout = "2006-01-02"

// Date is a calendar date written as YYYY-MM-DD
type Date struct {
	time.Time
}

// UnmarshalYAML parses the date from a scalar node
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	t, err := parseDate(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Time = t
	return nil
}

// MarshalYAML writes the date in DateLayout
func (d Date) MarshalYAML() (any, error) {
	return d.Format(DateLayout), nil
}

// Ptr returns the date as a pointer, or nil when unset
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	return directdebit.DatePtr(d.Time)
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// File is a batch: the creditor, one payment order and the mandates its
// lines are collected under
type File struct {
	Company  Company   `yaml:"company" validate:"required"`
	Order    Order     `yaml:"order" validate:"required"`
	Mandates []Mandate `yaml:"mandates" validate:"required,min=1,unique=Reference,dive"`
	Lines    []Line    `yaml:"lines,omitempty" validate:"omitempty,dive"`
}

// Company identifies the creditor
type Company struct {
	ID                         string `yaml:"id,omitempty" validate:"omitempty,uuid"`
	Name                       string `yaml:"name" validate:"required,max=140"`
	InitiatingPartyIdentifier  string `yaml:"initiating_party_identifier,omitempty" validate:"max=35"`
	CreditorIdentifier         string `yaml:"creditor_identifier" validate:"required,max=35"`
	OriginalCreditorIdentifier string `yaml:"original_creditor_identifier,omitempty" validate:"max=35"`
	IBAN                       string `yaml:"iban" validate:"required,min=15,max=42"`
	BIC                        string `yaml:"bic,omitempty" validate:"omitempty,min=8,max=11"`
}

// Order holds the payment order header
type Order struct {
	Reference      string `yaml:"reference" validate:"required,max=64"`
	DatePreference string `yaml:"date_preference" validate:"omitempty,oneof=due fixed now"`
	ScheduledDate  *Date  `yaml:"scheduled_date,omitempty"`
	Flavor         string `yaml:"flavor,omitempty"`
	ConvertToASCII *bool  `yaml:"convert_to_ascii,omitempty"`
}

// Mandate is a mandate as known at the time the batch is built
type Mandate struct {
	Reference                     string `yaml:"reference" validate:"required,max=35"`
	PartnerName                   string `yaml:"partner_name" validate:"required,max=200"`
	Type                          string `yaml:"type" validate:"required,oneof=recurrent oneoff"`
	SequenceType                  string `yaml:"sequence_type,omitempty" validate:"omitempty,oneof=first recurring final"`
	State                         string `yaml:"state" validate:"omitempty,oneof=draft valid expired cancel"`
	SignatureDate                 *Date  `yaml:"signature_date,omitempty"`
	LastDebitDate                 *Date  `yaml:"last_debit_date,omitempty"`
	IBAN                          string `yaml:"iban" validate:"required,min=15,max=42"`
	BIC                           string `yaml:"bic,omitempty" validate:"omitempty,min=8,max=11"`
	PreviousIBAN                  string `yaml:"previous_iban,omitempty" validate:"omitempty,min=15,max=42"`
	PreviousBIC                   string `yaml:"previous_bic,omitempty" validate:"omitempty,min=8,max=11"`
	SEPAMigrated                  *bool  `yaml:"sepa_migrated,omitempty"`
	OriginalMandateIdentification string `yaml:"original_mandate_identification,omitempty" validate:"max=35"`
}

// Line is one direct debit. Mandate is the reference of a mandate of the
// same file.
type Line struct {
	Name              string          `yaml:"name" validate:"required,max=35"`
	Amount            decimal.Decimal `yaml:"amount"`
	Currency          string          `yaml:"currency" validate:"omitempty,len=3"`
	Mandate           string          `yaml:"mandate" validate:"required,max=35"`
	Date              *Date           `yaml:"date,omitempty"`
	MaturityDate      *Date           `yaml:"maturity_date,omitempty"`
	Priority          string          `yaml:"priority,omitempty" validate:"omitempty,oneof=NORM HIGH"`
	Communication     string          `yaml:"communication" validate:"required,max=140"`
	CommunicationType string          `yaml:"communication_type,omitempty" validate:"omitempty,oneof=normal structured"`
	StructIssuer      string          `yaml:"struct_issuer,omitempty" validate:"omitempty,oneof=ISO CUR"`
	InvoiceRef        string          `yaml:"invoice_ref,omitempty" validate:"max=64"`
}

// Load reads and validates a batch file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a batch document
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	applyDefaults(&f)
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Marshal encodes the batch back to YAML
func Marshal(f *File) ([]byte, error) {
	return yaml.Marshal(f)
}

func applyDefaults(f *File) {
	if f.Order.DatePreference == "" {
		f.Order.DatePreference = string(directdebit.DatePreferenceDue)
	}
	for i := range f.Mandates {
		m := &f.Mandates[i]
		if m.State == "" {
			m.State = string(directdebit.MandateStateValid)
		}
	}
	for i := range f.Lines {
		if f.Lines[i].Currency == "" {
			f.Lines[i].Currency = "EUR"
		}
	}
}

// CompanyID returns the configured company id, or a fresh one
func (f *File) CompanyID() uuid.UUID {
	if id, err := uuid.Parse(f.Company.ID); err == nil {
		return id
	}
	return uuid.New()
}

// Split keeps the first size lines in f and returns one file per further
// chunk of size lines. Chunks reuse the header and mandates of f and get
// the order reference suffixes -2, -3 and so on.
func (f *File) Split(size int) ([]*File, error) {
	if size <= 0 {
		return nil, fmt.Errorf("split size must be positive")
	}
	if len(f.Lines) <= size {
		return nil, nil
	}
	rest := f.Lines[size:]
	f.Lines = f.Lines[:size:size]

	var chunks []*File
	for start := 0; start < len(rest); start += size {
		end := min(start+size, len(rest))
		chunk := *f
		chunk.Order.Reference = fmt.Sprintf("%s-%d", f.Order.Reference, len(chunks)+2)
		chunk.Lines = append([]Line(nil), rest[start:end]...)
		chunks = append(chunks, &chunk)
	}
	return chunks, nil
}
