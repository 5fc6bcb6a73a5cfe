package models

// Review projections assemble the user's profile for the pre-activation
// completeness check. Each section exposes the subset of fields mandated
// by the registrar-and-transfer-agent (mfRTA) as explicit typed structs;
// mapping functions supply explicit defaults instead of inline fallbacks.

// RTAField is one named field inside a section's mfRTA subset.
type RTAField struct {
	Key   string
	Value string
}

type AddressSection struct {
	DisplayAddress string
	MFRTA          AddressRTA
}

type AddressRTA struct {
	Line1   string
	City    string
	State   string
	Pincode string
	Country string
}

func (a AddressRTA) Fields() []RTAField {
	return []RTAField{
		{"addressLine1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"pincode", a.Pincode},
		{"country", a.Country},
	}
}

type PersonalSection struct {
	FullName string
	MFRTA    PersonalRTA
}

type PersonalRTA struct {
	Name          string
	DateOfBirth   string
	PanCardNumber string
	Gender        string
	FatherName    string
	MaritalStatus string
}

func (p PersonalRTA) Fields() []RTAField {
	return []RTAField{
		{"name", p.Name},
		{"dateOfBirth", p.DateOfBirth},
		{"panCardNumber", p.PanCardNumber},
		{"gender", p.Gender},
		{"fatherName", p.FatherName},
		{"maritalStatus", p.MaritalStatus},
	}
}

type ProfessionalSection struct {
	Occupation string
	MFRTA      ProfessionalRTA
}

type ProfessionalRTA struct {
	Occupation   string
	IncomeSlab   string
	SourceOfFunds string
}

func (p ProfessionalRTA) Fields() []RTAField {
	return []RTAField{
		{"occupation", p.Occupation},
		{"incomeSlab", p.IncomeSlab},
		{"sourceOfFunds", p.SourceOfFunds},
	}
}

type BankAccountSection struct {
	MaskedAccountNumber string
	MFRTA               BankAccountRTA
}

type BankAccountRTA struct {
	AccountNumber string
	IFSCCode      string
	AccountType   string
	BankName      string
	HolderName    string
}

func (b BankAccountRTA) Fields() []RTAField {
	return []RTAField{
		{"accountNumber", b.AccountNumber},
		{"ifscCode", b.IFSCCode},
		{"accountType", b.AccountType},
		{"bankName", b.BankName},
		{"holderName", b.HolderName},
	}
}

// ReviewProjection is the full pre-activation view of a user.
type ReviewProjection struct {
	Address      AddressSection
	Personal     PersonalSection
	Professional ProfessionalSection
	BankAccount  BankAccountSection
}
