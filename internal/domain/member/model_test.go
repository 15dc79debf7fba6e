package member_test

import (
	"errors"
	"testing"
	"time"

	"gymdesk/internal/domain/member"
)

func validFields() member.Fields {
	return member.Fields{
		FirstName:      "Juan",
		LastName:       "Pérez",
		Code:           "GYM001",
		Department:     member.DepartmentCrossfit,
		StartDate:      "2025-01-01",
		EndDate:        "2025-12-31",
		Phone:          "+57 300 123 4567",
		Email:          "juan.perez@example.com",
		Address:        "Calle 123 #45-67",
		DocumentType:   member.DocumentDNI,
		DocumentNumber: "12345678",
	}
}

// TestFieldsValidate_MissingRequired checks that every required field is reported when blank.
func TestFieldsValidate_MissingRequired(t *testing.T) {
	for _, name := range member.RequiredFields {
		t.Run(name, func(t *testing.T) {
			f := validFields()
			if err := f.Set(name, "  "); err != nil {
				t.Fatalf("Set(%q): %v", name, err)
			}
			err := f.Validate()
			var verr *member.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if !verr.Has(name) {
				t.Errorf("field %q not reported; got %v", name, verr.Fields)
			}
		})
	}
}

// TestFieldsValidate tests validation of optional fields and date rules.
func TestFieldsValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(f *member.Fields)
		wantField string
	}{
		{name: "valid", mutate: func(f *member.Fields) {}},
		{name: "optional fields blank", mutate: func(f *member.Fields) { f.Code, f.Department, f.Gender, f.BirthDate = "", "", "", "" }},
		{name: "unknown department", mutate: func(f *member.Fields) { f.Department = "cardio" }, wantField: member.FieldDepartment},
		{name: "unknown gender", mutate: func(f *member.Fields) { f.Gender = "m" }, wantField: member.FieldGender},
		{name: "unknown document", mutate: func(f *member.Fields) { f.DocumentType = "RUT" }, wantField: member.FieldDocumentType},
		{name: "bad email", mutate: func(f *member.Fields) { f.Email = "juan.example.com" }, wantField: member.FieldEmail},
		{name: "bad start date", mutate: func(f *member.Fields) { f.StartDate = "01/01/2025" }, wantField: member.FieldStartDate},
		{name: "bad birth date", mutate: func(f *member.Fields) { f.BirthDate = "1990-13-01" }, wantField: member.FieldBirthDate},
		{name: "end before start", mutate: func(f *member.Fields) { f.EndDate = "2024-12-31" }, wantField: member.FieldEndDate},
		{name: "end equals start", mutate: func(f *member.Fields) { f.EndDate = f.StartDate }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)
			err := f.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *member.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if !verr.Has(tt.wantField) {
				t.Errorf("expected %q in %v", tt.wantField, verr.Fields)
			}
		})
	}
}

// TestFieldsSet_UnknownField tests that Set rejects names outside the form.
func TestFieldsSet_UnknownField(t *testing.T) {
	var f member.Fields
	if err := f.Set("_id", "3"); !errors.Is(err, member.ErrUnknownField) {
		t.Errorf("got %v, want ErrUnknownField", err)
	}
	if err := f.Set(member.FieldPhone, "555"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Phone != "555" || f.Get(member.FieldPhone) != "555" {
		t.Errorf("phone = %q", f.Phone)
	}
}

// TestFieldsSet_DateTypedAtDesk tests that day/month input is stored as a calendar date.
func TestFieldsSet_DateTypedAtDesk(t *testing.T) {
	var f member.Fields
	f.Set(member.FieldStartDate, "1/2/2025")
	f.Set(member.FieldEndDate, "31/12/2025")
	f.Set(member.FieldBirthDate, "18/04")
	if f.StartDate != "2025-02-01" || f.EndDate != "2025-12-31" {
		t.Errorf("dates = %q %q", f.StartDate, f.EndDate)
	}
	if f.BirthDate != "18/04" {
		t.Errorf("unreadable date rewritten to %q", f.BirthDate)
	}
}

// TestNormalizeDate tests reduction of server date forms to calendar dates.
func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"2025-01-01", "2025-01-01"},
		{"2025-01-13 10:30:00", "2025-01-13"},
		{"2025-01-01T23:30:00Z", "2025-01-01"},
		{"2025-01-01T00:30:00-05:00", "2025-01-01"},
		{" 2025-03-10 ", "2025-03-10"},
		{"2025-1-1", "2025-1-1"},
		{"not a date", "not a date"},
		{"2025-01-01X", "2025-01-01X"},
		{"31/12/2025", "2025-12-31"},
		{"1/2/2025", "2025-02-01"},
		{" 05/03/2024 ", "2024-03-05"},
		{"31/02/2025", "31/02/2025"},
		{"12/2025", "12/2025"},
	}
	for _, tt := range tests {
		if got := member.NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestMemberIsExpired tests the render-time expiry flag.
func TestMemberIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		end  string
		want bool
	}{
		{"2025-06-14", true},
		{"2025-06-15", false},
		{"2025-06-16", false},
		{"2023-06-15T00:00:00Z", true},
		{"", false},
	}
	for _, tt := range tests {
		m := member.Member{Fields: member.Fields{EndDate: tt.end}}
		if got := m.IsExpired(now); got != tt.want {
			t.Errorf("IsExpired(end=%q) = %v, want %v", tt.end, got, tt.want)
		}
	}
	expired := member.Member{Fields: member.Fields{EndDate: "2020-01-01"}}
	if expired.MembershipStatus(now) != member.StatusExpired {
		t.Errorf("status = %q, want expired", expired.MembershipStatus(now))
	}
}

// TestMemberLabels tests enumeration label lookups.
func TestMemberLabels(t *testing.T) {
	m := member.Member{Fields: member.Fields{Department: member.DepartmentSwimming}}
	if m.DepartmentLabel() != "Natación" {
		t.Errorf("label = %q", m.DepartmentLabel())
	}
	if member.Label(member.Genders, "X") != "X" {
		t.Error("unknown value should fall back to itself")
	}
	if (member.Member{}).IsPersisted() {
		t.Error("zero member must not be persisted")
	}
}
