package utils

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestProcessValidationErrors_MapsFieldToFailedTag(t *testing.T) {
	type resolveInput struct {
		Note string `validate:"required"`
		Year int    `validate:"min=2000"`
	}
	err := validator.New().Struct(resolveInput{Year: 1990})
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	fields := ProcessValidationErrors(err)
	if fields["Note"] != "required" {
		t.Fatalf("expected Note->required, got %q", fields["Note"])
	}
	if fields["Year"] != "min" {
		t.Fatalf("expected Year->min, got %q", fields["Year"])
	}
}

func TestUniqueSlice_KeepsFirstSeenOrder(t *testing.T) {
	got := UniqueSlice([]string{"A", "B", "A", "C", "B"})
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNilIfEmpty(t *testing.T) {
	if NilIfEmpty("") != nil {
		t.Fatal("expected nil for the empty string")
	}
	got := NilIfEmpty("claimed with the laboratory")
	if got == nil || *got != "claimed with the laboratory" {
		t.Fatalf("expected pointer to the value, got %v", got)
	}
}
