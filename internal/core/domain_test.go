package core

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date("2024-02-29"), true},
		{Date("2023-02-29"), false}, // not a leap year
		{Date("2024-1-5"), false},   // not canonical
		{Date(""), false},
		{Date("10/01/2024"), false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d (%q) expected ok, got %v", i, tc.d, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d (%q) expected error", i, tc.d)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in  string
		out Date
		ok  bool
	}{
		{"2024-01-10", "2024-01-10", true},
		{" 2024-01-10 ", "2024-01-10", true},
		{"2024-01-10T00:00:00", "2024-01-10", true},
		{"2024-01-10T23:59:59Z", "2024-01-10", true},
		{"2024-01-10T08:30:00+02:00", "2024-01-10", true},
		{"2024-01-10T08:30:00.123", "2024-01-10", true},
		{"", "", false},
		{"yesterday", "", false},
		{"2024-13-01", "", false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestNewDateNormalizesOverflow(t *testing.T) {
	if got := NewDate(2024, 2, 30); got != "2024-03-01" {
		t.Fatalf("expected 2024-03-01, got %s", got)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Amount:   decimal.RequireFromString("300"),
		Category: "Food",
		Date:     NewDate(2024, 1, 10),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zero := good
	zero.Amount = decimal.Zero
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be allowed, got %v", err)
	}

	accented := good
	accented.Description = strings.Repeat("è", MaxDescriptionLength)
	if err := accented.Validate(); err != nil {
		t.Fatalf("%d multibyte characters should be allowed, got %v", MaxDescriptionLength, err)
	}
	accented.Description += "è"
	if err := accented.Validate(); err != ErrDescriptionTooLong {
		t.Fatalf("expected ErrDescriptionTooLong past %d characters, got %v", MaxDescriptionLength, err)
	}

	bads := []struct {
		e    Expense
		want error
	}{
		{Expense{Amount: decimal.NewFromInt(1), Category: "c"}, ErrInvalidDate},
		{Expense{Amount: decimal.NewFromInt(-1), Category: "c", Date: "2024-01-10"}, ErrInvalidAmount},
		{Expense{Amount: decimal.NewFromInt(1), Category: "  ", Date: "2024-01-10"}, ErrEmptyCategory},
		{Expense{Amount: decimal.NewFromInt(1), Category: "c", Date: "2024-01-10", Description: strings.Repeat("x", 201)}, ErrDescriptionTooLong},
	}
	for i, tc := range bads {
		if err := tc.e.Validate(); err != tc.want {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}
