package directdebit

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"time"

	"github.com/erp/directdebit/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	paymentMethodDirectDebit = "DD"
	serviceLevelSEPA         = "SEPA"
	localInstrumentCore      = "CORE"
	schemeNameSEPA           = "SEPA"
	sameMandateNewAgent      = "SMNDA"
	notProvided              = "NOTPROVIDED"
	structuredRefCode        = "SCOR"
	maxPaymentInfoIDLength   = 35
)

// Batch is the input of one file: the orders to collect and the mandates
// their lines reference.
type Batch struct {
	Orders   []*PaymentOrder
	Mandates MandateSet
}

// BuildOptions are the export settings chosen for one file
type BuildOptions struct {
	// Flavor overrides the flavor of the first order's payment mode
	Flavor       Flavor
	ChargeBearer ChargeBearer
	BatchBooking bool
	// Today is the fallback collection date. Defaults to the builder clock.
	Today time.Time
	// Now is the creation timestamp of the message. Defaults to the builder clock.
	Now time.Time
}

// LineDateChange records a requested date written back to a payment line
type LineDateChange struct {
	LineID  uuid.UUID
	OrderID uuid.UUID
	From    *time.Time
	To      time.Time
}

// GroupSummary describes one payment information block of the document
type GroupSummary struct {
	Key        GroupKey
	ID         string
	NbOfTxs    int
	ControlSum decimal.Decimal
}

// BuildResult is the output of a successful build
type BuildResult struct {
	File        *SddFile
	Groups      []GroupSummary
	ControlSum  decimal.Decimal
	DateChanges []LineDateChange
}

// PreviousBankResolver finds the account a mandate was debited from before
// it moved to the line's current account
type PreviousBankResolver interface {
	PreviousBank(m *Mandate, line *PaymentLine) (BankAccount, bool)
}

// PreviousBankFunc adapts a function to PreviousBankResolver
type PreviousBankFunc func(m *Mandate, line *PaymentLine) (BankAccount, bool)

// PreviousBank implements PreviousBankResolver
func (f PreviousBankFunc) PreviousBank(m *Mandate, line *PaymentLine) (BankAccount, bool) {
	return f(m, line)
}

// MandatePreviousBank resolves the previous account from the mandate itself
var MandatePreviousBank = PreviousBankFunc(func(m *Mandate, line *PaymentLine) (BankAccount, bool) {
	return m.PreviousBank(debtorAccount(m, line))
})

// SddFileBuilder renders payment orders into a pain.008 document
type SddFileBuilder struct {
	previousBank PreviousBankResolver
	clock        func() time.Time
}

// BuilderOption configures an SddFileBuilder
type BuilderOption func(*SddFileBuilder)

// WithPreviousBankResolver sets how amendment accounts are found
func WithPreviousBankResolver(r PreviousBankResolver) BuilderOption {
	return func(b *SddFileBuilder) {
		b.previousBank = r
	}
}

// WithClock sets the time source used for the creation timestamp
func WithClock(clock func() time.Time) BuilderOption {
	return func(b *SddFileBuilder) {
		b.clock = clock
	}
}

// NewSddFileBuilder creates a builder
func NewSddFileBuilder(opts ...BuilderOption) *SddFileBuilder {
	b := &SddFileBuilder{
		previousBank: MandatePreviousBank,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// plannedLine is a validated line with its resolved grouping data
type plannedLine struct {
	order     *PaymentOrder
	line      *PaymentLine
	mandate   *Mandate
	requested time.Time
}

// plan groups lines by GroupKey in encounter order
type plan struct {
	keys   []GroupKey
	groups map[GroupKey][]plannedLine
	count  int
	billed []SddFileMandate
	seen   map[uuid.UUID]bool
}

func (p *plan) add(key GroupKey, pl plannedLine) {
	if _, ok := p.groups[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.groups[key] = append(p.groups[key], pl)
	p.count++
	if !p.seen[pl.mandate.ID] {
		p.seen[pl.mandate.ID] = true
		p.billed = append(p.billed, SddFileMandate{MandateID: pl.mandate.ID, Sequence: key.Sequence})
	}
}

// Build validates the batch and renders the document. Nothing is mutated
// unless the whole batch is valid. On success the requested dates of the
// lines are corrected in place and reported in the result.
func (b *SddFileBuilder) Build(batch Batch, opts BuildOptions) (*BuildResult, error) {
	if len(batch.Orders) == 0 {
		return nil, MissingFieldError("Payment Orders")
	}
	flavor := opts.Flavor
	if flavor == "" {
		flavor = batch.Orders[0].Mode.Flavor
	}
	if _, ok := flavorProfiles[flavor]; !ok {
		return nil, UnsupportedFlavorError(string(flavor))
	}
	if opts.ChargeBearer == "" {
		opts.ChargeBearer = ChargeBearerServiceLevel
	}
	if !opts.ChargeBearer.IsValid() {
		return nil, MissingFieldError("Charge Bearer")
	}
	now := opts.Now
	if now.IsZero() {
		now = b.clock()
	}
	today := opts.Today
	if today.IsZero() {
		today = now
	}

	p, err := b.plan(batch, today)
	if err != nil {
		return nil, err
	}

	r := renderer{
		flavor:       flavor,
		fields:       fieldPreparer{convertToASCII: batch.Orders[0].Mode.ConvertToASCII},
		opts:         opts,
		first:        batch.Orders[0],
		previousBank: b.previousBank,
	}
	doc, groups, controlSum, err := r.render(p, now)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, o := range batch.Orders {
		if !o.Total.Equal(o.LinesTotal()) {
			return nil, AmountReconciliationError(
				"Total amount (%s) of payment order '%s' does not match the sum of its lines (%s).",
				o.Total.StringFixedBank(2), o.Reference, o.LinesTotal().StringFixedBank(2))
		}
		total = total.Add(o.Total)
	}
	groupTotal := decimal.Zero
	for _, g := range groups {
		groupTotal = groupTotal.Add(g.ControlSum)
	}
	if !groupTotal.Equal(controlSum) || !controlSum.Equal(total) {
		return nil, AmountReconciliationError(
			"Sum of group control sums (%s) does not match the document control sum (%s) and batch total (%s).",
			groupTotal.StringFixedBank(2), controlSum.StringFixedBank(2), total.StringFixedBank(2))
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')

	changes := applyDateChanges(p)
	file := newSddFile(batch.Orders, buf.Bytes(), total, p.count, opts, p.billed)
	file.Flavor = flavor

	return &BuildResult{
		File:        file,
		Groups:      groups,
		ControlSum:  controlSum,
		DateChanges: changes,
	}, nil
}

// plan validates every line and assigns it a group
func (b *SddFileBuilder) plan(batch Batch, today time.Time) (*plan, error) {
	p := &plan{groups: make(map[GroupKey][]plannedLine), seen: make(map[uuid.UUID]bool)}
	for _, order := range batch.Orders {
		for i := range order.Lines {
			line := &order.Lines[i]
			requested := order.RequestedDate(line, today)

			mandate := batch.Mandates.Get(line.MandateID)
			if mandate == nil {
				return nil, MissingMandateError(line.PartnerName, line.InvoiceRef)
			}
			if !mandate.IsUsable() {
				return nil, InvalidMandateError(mandate.Reference, mandate.PartnerName, mandate.State)
			}
			if !line.Debtor.IsZero() && !mandate.BankAccount.SameAccount(line.Debtor) {
				return nil, MandateBankMismatchError(line.Name, line.Debtor.IBAN, mandate.Reference, mandate.BankAccount.IBAN)
			}
			seq, err := mandate.SequenceCode()
			if err != nil {
				return nil, err
			}

			priority := line.Priority
			if priority == "" {
				priority = PriorityNormal
			}
			key := GroupKey{RequestedDate: requested, Priority: priority, Sequence: seq}
			p.add(key, plannedLine{order: order, line: line, mandate: mandate, requested: requested})
		}
	}
	return p, nil
}

// applyDateChanges writes the resolved requested date back to the lines
func applyDateChanges(p *plan) []LineDateChange {
	var changes []LineDateChange
	for _, key := range p.keys {
		for _, pl := range p.groups[key] {
			if sameDate(pl.line.Date, pl.requested) {
				continue
			}
			changes = append(changes, LineDateChange{
				LineID:  pl.line.ID,
				OrderID: pl.order.ID,
				From:    pl.line.Date,
				To:      pl.requested,
			})
			d := pl.requested
			pl.line.Date = &d
		}
	}
	return changes
}

// debtorAccount returns the account a line is debited from
func debtorAccount(m *Mandate, line *PaymentLine) BankAccount {
	if line != nil && !line.Debtor.IsZero() {
		return line.Debtor
	}
	return m.BankAccount
}

// renderer builds the document tree for one file
type renderer struct {
	flavor       Flavor
	fields       fieldPreparer
	opts         BuildOptions
	first        *PaymentOrder
	previousBank PreviousBankResolver
}

func (r renderer) render(p *plan, now time.Time) (*painDocument, []GroupSummary, decimal.Decimal, error) {
	ref := r.first.Reference
	msgID, err := r.fields.prepare("Message Identification", ref+"-"+now.Format("20060102"), 35, true)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	initiator, err := r.initiatingParty()
	if err != nil {
		return nil, nil, decimal.Zero, err
	}

	doc := &painDocument{
		Xmlns:    r.flavor.Namespace(),
		XmlnsXsi: xsiNamespace,
	}

	controlSum := decimal.Zero
	groups := make([]GroupSummary, 0, len(p.keys))
	usedIDs := make(map[string]bool, len(p.keys))
	for _, key := range p.keys {
		lines := p.groups[key]
		info, sum, err := r.paymentInfo(key, lines)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}
		info.ID = uniquePaymentInfoID(info.ID, usedIDs)
		doc.Initn.PaymentInfo = append(doc.Initn.PaymentInfo, *info)
		groups = append(groups, GroupSummary{Key: key, ID: info.ID, NbOfTxs: len(lines), ControlSum: sum})
		controlSum = controlSum.Add(sum)
	}

	doc.Initn.GroupHeader = groupHeader{
		MessageID:       msgID,
		CreationTime:    now.Format("2006-01-02T15:04:05"),
		NbOfTxs:         p.count,
		ControlSum:      controlSum.StringFixedBank(2),
		InitiatingParty: *initiator,
	}
	return doc, groups, controlSum, nil
}

// uniquePaymentInfoID returns id, or id cut to fit a "-<n>" suffix when an
// earlier group of the document already uses it.
func uniquePaymentInfoID(id string, used map[string]bool) string {
	candidate := id
	for n := 2; used[candidate]; n++ {
		suffix := "-" + strconv.Itoa(n)
		candidate = truncate(id, maxPaymentInfoIDLength-len(suffix)) + suffix
	}
	used[candidate] = true
	return candidate
}

func (r renderer) initiatingParty() (*partyIdent, error) {
	name := r.first.Company.Name
	if name == "" {
		name = r.first.Mode.CreditorName
	}
	nm, err := r.fields.prepare("Initiating Party Name", name, r.flavor.NameMaxSize(), true)
	if err != nil {
		return nil, err
	}
	pi := &partyIdent{Name: nm}
	if id := r.first.Company.InitiatingPartyIdentifier; id != "" {
		v, err := r.fields.prepare("Initiating Party Identifier", id, 35, true)
		if err != nil {
			return nil, err
		}
		pi.ID = &organisation{OrgID: otherHolder{Other: genericID{ID: v}}}
	}
	return pi, nil
}

func (r renderer) paymentInfo(key GroupKey, lines []plannedLine) (*paymentInfo, decimal.Decimal, error) {
	date := key.RequestedDate.Format("2006-01-02")
	id, err := r.fields.prepare("Payment Information Identification",
		r.first.Reference+"-"+string(key.Sequence)+"-"+key.RequestedDate.Format("20060102")+"-"+string(key.Priority), maxPaymentInfoIDLength, true)
	if err != nil {
		return nil, decimal.Zero, err
	}

	creditorName, err := r.fields.prepare("Creditor Name", r.first.Mode.CreditorName, r.flavor.NameMaxSize(), true)
	if err != nil {
		return nil, decimal.Zero, err
	}
	creditorIBAN, err := r.iban("Creditor Account", r.first.Mode.CreditorBank.IBAN)
	if err != nil {
		return nil, decimal.Zero, err
	}
	creditorScheme, err := r.schemeID("SEPA Creditor Identifier", r.first.Company.CreditorIdentifier)
	if err != nil {
		return nil, decimal.Zero, err
	}

	batchBooking := "false"
	if r.opts.BatchBooking {
		batchBooking = "true"
	}
	info := &paymentInfo{
		ID:           id,
		Method:       paymentMethodDirectDebit,
		BatchBooking: batchBooking,
		NbOfTxs:      len(lines),
		TypeInfo: paymentTypeInfo{
			InstructionPriority: string(key.Priority),
			ServiceLevel:        code{Code: serviceLevelSEPA},
			LocalInstrument:     code{Code: localInstrumentCore},
			SequenceType:        string(key.Sequence),
		},
		RequestedCollection: date,
		Creditor:            party{Name: creditorName},
		CreditorAccount:     account{ID: ibanID{IBAN: creditorIBAN}},
		CreditorAgent:       r.agent(r.first.Mode.CreditorBank.BIC),
		ChargeBearer:        string(r.opts.ChargeBearer),
		CreditorSchemeID:    *creditorScheme,
	}

	sum := decimal.Zero
	for _, pl := range lines {
		tx, err := r.transaction(key, pl)
		if err != nil {
			return nil, decimal.Zero, err
		}
		info.Transactions = append(info.Transactions, *tx)
		sum = sum.Add(pl.line.Amount)
	}
	info.ControlSum = sum.StringFixedBank(2)
	return info, sum, nil
}

func (r renderer) transaction(key GroupKey, pl plannedLine) (*directDebitTxInf, error) {
	line, m := pl.line, pl.mandate

	e2e, err := r.fields.prepare("End to End Identification", line.Name, 35, true)
	if err != nil {
		return nil, err
	}
	ccy, err := r.fields.prepare("Currency Code", line.Currency, 3, true)
	if err != nil {
		return nil, err
	}
	mandateID, err := r.fields.prepare("Unique Mandate Reference", m.Reference, 35, true)
	if err != nil {
		return nil, err
	}
	if m.SignatureDate == nil {
		return nil, MissingFieldError("Mandate Signature Date")
	}
	debtorName, err := r.fields.prepare("Debtor Name", line.PartnerName, r.flavor.NameMaxSize(), true)
	if err != nil {
		return nil, err
	}
	debtor := debtorAccount(m, line)
	debtorIBAN, err := r.iban("Debtor Account", debtor.IBAN)
	if err != nil {
		return nil, err
	}
	remittance, err := r.remittance(line)
	if err != nil {
		return nil, err
	}

	tx := &directDebitTxInf{
		PaymentID: paymentID{EndToEndID: e2e},
		Amount:    instructedAmount{Currency: ccy, Value: line.Amount.StringFixedBank(2)},
		DirectDebit: directDebitTx{Mandate: mandateRelatedInfo{
			MandateID:     mandateID,
			SignatureDate: m.SignatureDate.Format("2006-01-02"),
		}},
		DebtorAgent: r.agent(debtor.BIC),
		Debtor:      party{Name: debtorName},
		DebtorAcct:  account{ID: ibanID{IBAN: debtorIBAN}},
		Remittance:  *remittance,
	}

	if key.Sequence == CodeFirst && m.NeedsAmendment() {
		if err := r.amend(&tx.DirectDebit.Mandate, m, line); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// amend fills the amendment block of a FRST debit on a moved or not yet
// migrated mandate
func (r renderer) amend(info *mandateRelatedInfo, m *Mandate, line *PaymentLine) error {
	prev, moved := r.previousBank.PreviousBank(m, line)
	if !moved && m.SEPAMigrated {
		return nil
	}
	details := &amendmentDetails{}
	switch {
	case moved && prev.SameBank(debtorAccount(m, line)):
		iban, err := r.iban("Original Debtor Account", prev.IBAN)
		if err != nil {
			return err
		}
		details.OriginalDebtorAccount = &account{ID: ibanID{IBAN: iban}}
	case moved:
		bic, err := r.fields.prepare("Original Debtor Agent", prev.BIC, 11, true)
		if err != nil {
			return err
		}
		a := r.agent(bic)
		a.FinancialInstitution.Other = &otherID{ID: sameMandateNewAgent}
		details.OriginalDebtorAgent = &a
	default:
		orig, err := r.fields.prepare("Original Mandate Identification", m.OriginalMandateIdentification, 35, true)
		if err != nil {
			return err
		}
		scheme, err := r.schemeID("Original Creditor Identifier", r.first.Company.OriginalCreditorIdentifier)
		if err != nil {
			return err
		}
		details.OriginalMandateID = orig
		details.OriginalCreditorSchemeID = scheme
	}
	info.AmendmentIndicator = "true"
	info.AmendmentDetails = details
	return nil
}

func (r renderer) remittance(line *PaymentLine) (*remittanceInfo, error) {
	if line.CommunicationType == CommunicationStructured {
		ref, err := r.fields.prepare("Creditor Structured Reference", line.Communication, 35, true)
		if err != nil {
			return nil, err
		}
		return &remittanceInfo{Structured: &structured{CreditorReference: creditorRefInfo{
			Type: creditorRefType{
				CodeOrProprietary: code{Code: structuredRefCode},
				Issuer:            line.StructIssuer,
			},
			Reference: ref,
		}}}, nil
	}
	text, err := r.fields.prepare("Remittance Unstructured", line.Communication, 140, true)
	if err != nil {
		return nil, err
	}
	return &remittanceInfo{Unstructured: text}, nil
}

// agent renders a financial institution by BIC, or NOTPROVIDED without one
func (r renderer) agent(bic string) agent {
	var fi finInstnID
	switch {
	case bic == "":
		fi.Other = &otherID{ID: notProvided}
	case r.flavor.BICTag() == "BIC":
		fi.BIC = bic
	default:
		fi.BICFI = bic
	}
	return agent{FinancialInstitution: fi}
}

func (r renderer) schemeID(label, identifier string) (*schemeID, error) {
	id, err := r.fields.prepare(label, identifier, 35, true)
	if err != nil {
		return nil, err
	}
	return &schemeID{ID: privateID{Private: otherHolder{Other: genericID{
		ID:         id,
		SchemeName: &schemeName{Proprietary: schemeNameSEPA},
	}}}}, nil
}

func (r renderer) iban(label, value string) (string, error) {
	if value == "" {
		return "", MissingFieldError(label)
	}
	iban, err := valueobject.NewIBAN(value)
	if err != nil {
		return "", InvalidIBANError(label, err)
	}
	return iban.String(), nil
}
