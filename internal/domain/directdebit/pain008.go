package directdebit

import "encoding/xml"

// The structs below mirror the pain.008 CustomerDirectDebitInitiation
// message. Field order follows the schema sequence.

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

type painDocument struct {
	XMLName  xml.Name            `xml:"Document"`
	Xmlns    string              `xml:"xmlns,attr"`
	XmlnsXsi string              `xml:"xmlns:xsi,attr"`
	Initn    customerDirectDebit `xml:"CstmrDrctDbtInitn"`
}

type customerDirectDebit struct {
	GroupHeader groupHeader   `xml:"GrpHdr"`
	PaymentInfo []paymentInfo `xml:"PmtInf"`
}

type groupHeader struct {
	MessageID       string     `xml:"MsgId"`
	CreationTime    string     `xml:"CreDtTm"`
	NbOfTxs         int        `xml:"NbOfTxs"`
	ControlSum      string     `xml:"CtrlSum"`
	InitiatingParty partyIdent `xml:"InitgPty"`
}

type partyIdent struct {
	Name string        `xml:"Nm"`
	ID   *organisation `xml:"Id,omitempty"`
}

type organisation struct {
	OrgID otherHolder `xml:"OrgId"`
}

type otherHolder struct {
	Other genericID `xml:"Othr"`
}

type genericID struct {
	ID         string      `xml:"Id"`
	SchemeName *schemeName `xml:"SchmeNm,omitempty"`
}

type schemeName struct {
	Proprietary string `xml:"Prtry"`
}

type paymentInfo struct {
	ID                  string             `xml:"PmtInfId"`
	Method              string             `xml:"PmtMtd"`
	BatchBooking        string             `xml:"BtchBookg"`
	NbOfTxs             int                `xml:"NbOfTxs"`
	ControlSum          string             `xml:"CtrlSum"`
	TypeInfo            paymentTypeInfo    `xml:"PmtTpInf"`
	RequestedCollection string             `xml:"ReqdColltnDt"`
	Creditor            party              `xml:"Cdtr"`
	CreditorAccount     account            `xml:"CdtrAcct"`
	CreditorAgent       agent              `xml:"CdtrAgt"`
	ChargeBearer        string             `xml:"ChrgBr"`
	CreditorSchemeID    schemeID           `xml:"CdtrSchmeId"`
	Transactions        []directDebitTxInf `xml:"DrctDbtTxInf"`
}

type paymentTypeInfo struct {
	InstructionPriority string `xml:"InstrPrty"`
	ServiceLevel        code   `xml:"SvcLvl"`
	LocalInstrument     code   `xml:"LclInstrm"`
	SequenceType        string `xml:"SeqTp"`
}

type code struct {
	Code string `xml:"Cd"`
}

type party struct {
	Name string `xml:"Nm"`
}

type account struct {
	ID ibanID `xml:"Id"`
}

type ibanID struct {
	IBAN string `xml:"IBAN"`
}

type agent struct {
	FinancialInstitution finInstnID `xml:"FinInstnId"`
}

// finInstnID carries the BIC under the tag of the flavor. Exactly one of
// BIC and BICFI is set.
type finInstnID struct {
	BIC   string   `xml:"BIC,omitempty"`
	BICFI string   `xml:"BICFI,omitempty"`
	Other *otherID `xml:"Othr,omitempty"`
}

type otherID struct {
	ID string `xml:"Id"`
}

type schemeID struct {
	ID privateID `xml:"Id"`
}

type privateID struct {
	Private otherHolder `xml:"PrvtId"`
}

type directDebitTxInf struct {
	PaymentID   paymentID        `xml:"PmtId"`
	Amount      instructedAmount `xml:"InstdAmt"`
	DirectDebit directDebitTx    `xml:"DrctDbtTx"`
	DebtorAgent agent            `xml:"DbtrAgt"`
	Debtor      party            `xml:"Dbtr"`
	DebtorAcct  account          `xml:"DbtrAcct"`
	Remittance  remittanceInfo   `xml:"RmtInf"`
}

type paymentID struct {
	EndToEndID string `xml:"EndToEndId"`
}

type instructedAmount struct {
	Currency string `xml:"Ccy,attr"`
	Value    string `xml:",chardata"`
}

type directDebitTx struct {
	Mandate mandateRelatedInfo `xml:"MndtRltdInf"`
}

type mandateRelatedInfo struct {
	MandateID          string            `xml:"MndtId"`
	SignatureDate      string            `xml:"DtOfSgntr"`
	AmendmentIndicator string            `xml:"AmdmntInd,omitempty"`
	AmendmentDetails   *amendmentDetails `xml:"AmdmntInfDtls,omitempty"`
}

type amendmentDetails struct {
	OriginalMandateID        string    `xml:"OrgnlMndtId,omitempty"`
	OriginalCreditorSchemeID *schemeID `xml:"OrgnlCdtrSchmeId,omitempty"`
	OriginalDebtorAccount    *account  `xml:"OrgnlDbtrAcct,omitempty"`
	OriginalDebtorAgent      *agent    `xml:"OrgnlDbtrAgt,omitempty"`
}

type remittanceInfo struct {
	Unstructured string      `xml:"Ustrd,omitempty"`
	Structured   *structured `xml:"Strd,omitempty"`
}

type structured struct {
	CreditorReference creditorRefInfo `xml:"CdtrRefInf"`
}

type creditorRefInfo struct {
	Type      creditorRefType `xml:"Tp"`
	Reference string          `xml:"Ref"`
}

type creditorRefType struct {
	CodeOrProprietary code   `xml:"CdOrPrtry"`
	Issuer            string `xml:"Issr,omitempty"`
}
