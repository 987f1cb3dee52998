package validation

import (
	"testing"
)

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"txn_a1b2c3d4e5f6a1b2c3d4e5f6", true},
		{"sub_9f8e7d6c5b4a9f8e7d6c5b4a", true},
		{"usr_seller", true},
		{"lst_flow1", true},

		// Invalid
		{"", false},
		{"txn_", false},          // no suffix
		{"txn_ab", false},        // suffix too short
		{"x_abcdefgh", false},    // prefix too short
		{"TXN_abcdefgh", false},  // uppercase prefix
		{"txn-abcdefgh", false},  // wrong separator
		{"txn_abc def", false},   // whitespace
		{"txn_abc;drop", false},  // punctuation
		{"verylongpfx_abcd", false},
	}

	for _, tc := range tests {
		if got := IsValidID(tc.id); got != tc.valid {
			t.Errorf("IsValidID(%q) = %v, want %v", tc.id, got, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("buyerId", "usr_buyer"),
		ValidAmount("finalPrice", 9000),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("buyerId", ""),
		ValidAmount("finalPrice", -50),
	)
	if len(errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errors))
	}
}

func TestValidAmount(t *testing.T) {
	tests := []struct {
		value int64
		valid bool
	}{
		{1, true},
		{9000, true},
		{1<<40 + 1, true},

		// Invalid
		{0, false},
		{-1, false},
		{-9000, false},
	}

	for _, tc := range tests {
		err := ValidAmount("amount", tc.value)()
		valid := err == nil
		if valid != tc.valid {
			t.Errorf("ValidAmount(%d) valid=%v, want %v", tc.value, valid, tc.valid)
		}
	}
}

func TestMaxLength(t *testing.T) {
	if err := MaxLength("note", "short", 10)(); err != nil {
		t.Errorf("Expected no error for short string, got %v", err)
	}
	if err := MaxLength("note", "this is far too long", 10)(); err == nil {
		t.Error("Expected error for overlong string")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "validation failed" {
		t.Errorf("unexpected message for empty errors: %q", empty.Error())
	}

	errs := ValidationErrors{{Field: "buyerId", Message: "is required"}}
	if errs.Error() != "buyerId: is required" {
		t.Errorf("unexpected message: %q", errs.Error())
	}
}
