package validate

import (
	"testing"
	"time"
)

func TestCheck_CollectsAllFailures(t *testing.T) {
	w := 600.0
	errs := Check(
		Required("name", ""),
		MaxLen("note", "abcdef", 3),
		RangeFloat("weight", &w, 1, 500),
	)

	if len(errs) != 3 {
		t.Fatalf("expected 3 failing fields, got %d: %v", len(errs), errs)
	}
	if errs["name"][0] != "required" {
		t.Errorf("expected 'required' code for name, got %v", errs["name"])
	}
	if errs["weight"][0] != "outOfRange" {
		t.Errorf("expected 'outOfRange' code for weight, got %v", errs["weight"])
	}
}

func TestCheck_PassingRules(t *testing.T) {
	errs := Check(
		Required("name", "Acme"),
		Email("email", "billing@acme.rs"),
		MaxLen("note", "short", 1000),
	)
	if !errs.Empty() {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestEmail_EmptyIsValid(t *testing.T) {
	if errs := Check(Email("email", "")); !errs.Empty() {
		t.Errorf("empty email should pass, got %v", errs)
	}
	if errs := Check(Email("email", "not-an-email")); errs.Empty() {
		t.Error("malformed email should fail")
	}
}

func TestMaxLen_CountsRunes(t *testing.T) {
	// 4 cyrillic characters, 8 bytes
	if errs := Check(MaxLen("note", "тест", 4)); !errs.Empty() {
		t.Errorf("rune count should be used, got %v", errs)
	}
}

func TestRangeFloat_NilPasses(t *testing.T) {
	if errs := Check(RangeFloat("height", nil, 30, 300)); !errs.Empty() {
		t.Errorf("nil value should pass, got %v", errs)
	}
}

func TestDateAfter(t *testing.T) {
	eff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if errs := Check(DateAfter("expiryDate", &exp, &eff)); !errs.Empty() {
		t.Errorf("later expiry should pass, got %v", errs)
	}
	if errs := Check(DateAfter("expiryDate", &eff, &exp)); errs.Empty() {
		t.Error("expiry before effective should fail")
	}
	if errs := Check(DateAfter("expiryDate", nil, &eff)); !errs.Empty() {
		t.Errorf("nil expiry should pass, got %v", errs)
	}
}

func TestOneOf(t *testing.T) {
	allowed := map[string]bool{"idle": true, "in_progress": true, "failed": true}
	if errs := Check(OneOf("status", "in_progress", allowed)); !errs.Empty() {
		t.Errorf("allowed value should pass, got %v", errs)
	}
	if errs := Check(OneOf("status", "done", allowed)); errs.Empty() {
		t.Error("unknown value should fail")
	}
}
