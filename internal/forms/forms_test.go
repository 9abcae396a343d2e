package forms

import (
	"errors"
	"testing"
)

func TestValidate_Valid(t *testing.T) {
	tests := []any{
		ContactForm{Name: "Ada", Email: "ada@example.com", Subject: "Pricing", Message: "Tell me about plans."},
		SignupForm{
			Name:            "Ada",
			Email:           "ada@example.com",
			Password:        "Secret123",
			ConfirmPassword: "Secret123",
			AcceptTerms:     true,
		},
		LoginForm{Email: "ada@example.com", Password: "x"},
		InviteForm{Email: "bob@example.com", Role: "viewer"},
		NewsletterForm{Email: "news@example.com"},
	}

	for _, form := range tests {
		if err := Validate(form); err != nil {
			t.Errorf("%T: unexpected error: %v", form, err)
		}
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	err := Validate(SignupForm{
		Name:            "A",
		Email:           "not-an-email",
		Password:        "Secret123",
		ConfirmPassword: "Secret124",
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}

	fields := verr.FieldMap()
	for _, name := range []string{"name", "email", "confirm_password", "accept_terms"} {
		if len(fields[name]) == 0 {
			t.Errorf("expected error for field %q, got %v", name, fields)
		}
	}
	if _, ok := fields["password"]; ok {
		t.Errorf("password satisfies its rules, got %v", fields["password"])
	}
}

func TestValidate_InviteRole(t *testing.T) {
	err := Validate(InviteForm{Email: "bob@example.com", Role: "owner"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "role" || verr.Fields[0].Rule != "oneof" {
		t.Errorf("unexpected field errors: %+v", verr.Fields)
	}
}

func TestValidate_NonStruct(t *testing.T) {
	err := Validate("plain string")
	if err == nil {
		t.Fatal("expected error")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Error("non-struct input is a programming error, not a field error")
	}
}
