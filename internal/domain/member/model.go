package member

import (
	"errors"
	"strings"
	"time"
)

// Max length constants mirror the member store's column limits.
const (
	MaxNameLength    = 100
	MaxCodeLength    = 50
	MaxPhoneLength   = 20
	MaxEmailLength   = 100
	MaxAddressLength = 200
)

// Departments offered by the gym.
const (
	DepartmentStrength   = "fuerza"
	DepartmentFunctional = "funcional"
	DepartmentCrossfit   = "crossfit"
	DepartmentAerobic    = "aerobico"
	DepartmentSwimming   = "natacion"
)

// Genders accepted by the member store.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "Otro"
)

// Identity document types.
const (
	DocumentDNI      = "DNI"
	DocumentForeign  = "CE"
	DocumentPassport = "Pasaporte"
)

// Membership statuses derived at render time.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Departments lists the department enumeration in display order.
var Departments = []Option{
	{Value: DepartmentStrength, Label: "Fuerza"},
	{Value: DepartmentFunctional, Label: "Funcional"},
	{Value: DepartmentCrossfit, Label: "CrossFit"},
	{Value: DepartmentAerobic, Label: "Aeróbico"},
	{Value: DepartmentSwimming, Label: "Natación"},
}

// Genders lists the gender enumeration in display order.
var Genders = []Option{
	{Value: GenderMale, Label: "Masculino"},
	{Value: GenderFemale, Label: "Femenino"},
	{Value: GenderOther, Label: "Otro"},
}

// DocumentTypes lists the identity document enumeration in display order.
var DocumentTypes = []Option{
	{Value: DocumentDNI, Label: "DNI"},
	{Value: DocumentForeign, Label: "Carnet de Extranjería"},
	{Value: DocumentPassport, Label: "Pasaporte"},
}

// Option is a value/label pair for an enumerated field.
type Option struct {
	Value string
	Label string
}

// Domain errors
var (
	ErrUnknownField = errors.New("unknown member field")
)

// Fields holds the editable part of a member record, keyed on the wire by
// the member store's field names.
type Fields struct {
	FirstName      string `json:"nombre"`
	LastName       string `json:"apellido"`
	Code           string `json:"codigo"`
	Department     string `json:"departamento"`
	Gender         string `json:"genero"`
	BirthDate      string `json:"fecha_nacimiento"`
	StartDate      string `json:"fecha_inicio"`
	EndDate        string `json:"fecha_fin"`
	Phone          string `json:"celular"`
	Email          string `json:"email"`
	Address        string `json:"direccion"`
	DocumentType   string `json:"tipo_documento"`
	DocumentNumber string `json:"numero_documento"`
}

// Member is a gym member profile as returned by the member store.
// INVARIANT: ID is zero only for a draft that has never been persisted.
type Member struct {
	ID int64 `json:"id,omitempty"`
	Fields
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Field names in form order. These are the names accepted by Set and Get.
const (
	FieldFirstName      = "nombre"
	FieldLastName       = "apellido"
	FieldCode           = "codigo"
	FieldDepartment     = "departamento"
	FieldGender         = "genero"
	FieldBirthDate      = "fecha_nacimiento"
	FieldStartDate      = "fecha_inicio"
	FieldEndDate        = "fecha_fin"
	FieldPhone          = "celular"
	FieldEmail          = "email"
	FieldAddress        = "direccion"
	FieldDocumentType   = "tipo_documento"
	FieldDocumentNumber = "numero_documento"
)

// FieldNames lists every editable field in form order.
var FieldNames = []string{
	FieldFirstName, FieldLastName, FieldCode, FieldDepartment, FieldGender,
	FieldBirthDate, FieldStartDate, FieldEndDate, FieldPhone, FieldEmail,
	FieldAddress, FieldDocumentType, FieldDocumentNumber,
}

// RequiredFields lists the fields that must be present before a save.
var RequiredFields = []string{
	FieldFirstName, FieldLastName, FieldStartDate, FieldEndDate, FieldPhone,
	FieldEmail, FieldAddress, FieldDocumentType, FieldDocumentNumber,
}

func (f *Fields) ref(name string) *string {
	switch name {
	case FieldFirstName:
		return &f.FirstName
	case FieldLastName:
		return &f.LastName
	case FieldCode:
		return &f.Code
	case FieldDepartment:
		return &f.Department
	case FieldGender:
		return &f.Gender
	case FieldBirthDate:
		return &f.BirthDate
	case FieldStartDate:
		return &f.StartDate
	case FieldEndDate:
		return &f.EndDate
	case FieldPhone:
		return &f.Phone
	case FieldEmail:
		return &f.Email
	case FieldAddress:
		return &f.Address
	case FieldDocumentType:
		return &f.DocumentType
	case FieldDocumentNumber:
		return &f.DocumentNumber
	}
	return nil
}

// Set assigns a field by its wire name. Date fields are stored as
// YYYY-MM-DD when the value can be read as a date.
// PRE: name is one of FieldNames
// POST: the named field holds value; returns ErrUnknownField otherwise
func (f *Fields) Set(name, value string) error {
	p := f.ref(name)
	if p == nil {
		return ErrUnknownField
	}
	switch name {
	case FieldBirthDate, FieldStartDate, FieldEndDate:
		value = NormalizeDate(value)
	}
	*p = value
	return nil
}

// Get returns a field by its wire name, or "" for unknown names.
func (f Fields) Get(name string) string {
	if p := f.ref(name); p != nil {
		return *p
	}
	return ""
}

// Validate checks required fields and the shape of optional ones.
// PRE: none
// POST: returns nil, or a *ValidationError listing every offending field in form order
func (f Fields) Validate() error {
	verr := &ValidationError{}
	for _, name := range RequiredFields {
		if strings.TrimSpace(f.Get(name)) == "" {
			verr.add(name, "is required")
		}
	}

	checkLen := func(name string, max int) {
		if len(f.Get(name)) > max {
			verr.add(name, "is too long")
		}
	}
	checkLen(FieldFirstName, MaxNameLength)
	checkLen(FieldLastName, MaxNameLength)
	checkLen(FieldCode, MaxCodeLength)
	checkLen(FieldPhone, MaxPhoneLength)
	checkLen(FieldEmail, MaxEmailLength)
	checkLen(FieldAddress, MaxAddressLength)

	if f.Email != "" && !strings.Contains(f.Email, "@") {
		verr.add(FieldEmail, "must be a valid email address")
	}
	if f.Department != "" && !isOption(Departments, f.Department) {
		verr.add(FieldDepartment, "is not a known department")
	}
	if f.Gender != "" && !isOption(Genders, f.Gender) {
		verr.add(FieldGender, "is not a known gender")
	}
	if f.DocumentType != "" && !isOption(DocumentTypes, f.DocumentType) {
		verr.add(FieldDocumentType, "is not a known document type")
	}

	var start, end time.Time
	var startOK, endOK bool
	if f.StartDate != "" {
		if start, startOK = parseCalendarDate(f.StartDate); !startOK {
			verr.add(FieldStartDate, "must be a date (YYYY-MM-DD)")
		}
	}
	if f.EndDate != "" {
		if end, endOK = parseCalendarDate(f.EndDate); !endOK {
			verr.add(FieldEndDate, "must be a date (YYYY-MM-DD)")
		}
	}
	if f.BirthDate != "" {
		if _, ok := parseCalendarDate(f.BirthDate); !ok {
			verr.add(FieldBirthDate, "must be a date (YYYY-MM-DD)")
		}
	}
	if startOK && endOK && end.Before(start) {
		verr.add(FieldEndDate, "must be on or after the start date")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// Normalized returns a copy with every date field reduced to YYYY-MM-DD.
// Values that cannot be read as a date are kept as they are.
func (f Fields) Normalized() Fields {
	f.BirthDate = NormalizeDate(f.BirthDate)
	f.StartDate = NormalizeDate(f.StartDate)
	f.EndDate = NormalizeDate(f.EndDate)
	return f
}

// IsPersisted reports whether the member store has assigned an identifier.
func (m Member) IsPersisted() bool {
	return m.ID != 0
}

// FullName joins first and last name for display.
func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// IsExpired reports whether the membership end date lies before the calendar day of now.
// PRE: now is a valid time
// POST: returns false when the end date cannot be read
// INVARIANT: Member is not mutated
func (m Member) IsExpired(now time.Time) bool {
	end, ok := parseCalendarDate(NormalizeDate(m.EndDate))
	if !ok {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return end.Before(today)
}

// MembershipStatus returns StatusActive or StatusExpired relative to now.
func (m Member) MembershipStatus(now time.Time) string {
	if m.IsExpired(now) {
		return StatusExpired
	}
	return StatusActive
}

// DepartmentLabel returns the display label of the member's department.
func (m Member) DepartmentLabel() string {
	return Label(Departments, m.Department)
}

// Label looks up the display label of value, falling back to the value itself.
func Label(options []Option, value string) string {
	for _, o := range options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

func isOption(options []Option, value string) bool {
	for _, o := range options {
		if o.Value == value {
			return true
		}
	}
	return false
}
