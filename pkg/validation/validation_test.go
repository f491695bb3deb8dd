package validation

import (
	"testing"

	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
)

type contact struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Address struct {
		City string `json:"city" validate:"required"`
	} `json:"address"`
	Items []item `json:"items" validate:"required,min=1,dive"`
}

type item struct {
	Quantity int64 `json:"quantity" validate:"gt=0"`
}

func TestStructReportsEveryField(t *testing.T) {
	err := Struct(&contact{Email: "not-an-email", Items: []item{{Quantity: 0}}})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := typed.Fields()
	want := map[string]string{
		"name":              "is required",
		"email":             "must be a valid email",
		"address.city":      "is required",
		"items[0].quantity": "must be greater than 0",
	}
	for key, msg := range want {
		if fields[key] != msg {
			t.Fatalf("field %s: expected %q got %q (all: %v)", key, msg, fields[key], fields)
		}
	}
}

type mailboxInput struct {
	Email string `json:"email" validate:"required,mailbox"`
}

func TestMailboxRule(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"fatou@ucad", true},
		{"fatou.sow@ucad.edu.sn", true},
		{"x@y.z", true},
		{"fatou-at-ucad", false},
		{"@ucad", false},
		{"fatou@", false},
		{"fatou@@ucad", false},
		{"fa tou@ucad", false},
		{"fatou@ucad.", false},
		{"fatou@.ucad", false},
	}
	for _, tt := range tests {
		err := Struct(&mailboxInput{Email: tt.email})
		if tt.valid && err != nil {
			t.Fatalf("%q: unexpected error %v", tt.email, err)
		}
		if !tt.valid {
			typed := pkgerrors.As(err)
			if typed == nil || typed.Fields()["email"] != "must be a valid email" {
				t.Fatalf("%q: expected email validation error, got %v", tt.email, err)
			}
		}
	}
}

func TestStructAcceptsValidInput(t *testing.T) {
	c := contact{Name: "Awa", Email: "awa@labo.sn", Items: []item{{Quantity: 1}}}
	c.Address.City = "Dakar"
	if err := Struct(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
