package domain

import "testing"

func TestValidCardNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{"valid 16 digit visa", "4111111111111111", true},
		{"valid with spaces", "4111 1111 1111 1111", true},
		{"luhn checksum failure", "4111111111111112", false},
		{"too short", "41111111111", false},
		{"too long", "41111111111111111111", false},
		{"non digit characters", "4111-1111-1111-1111", false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidCardNumber(tc.number); got != tc.want {
				t.Fatalf("ValidCardNumber(%q) = %v, want %v", tc.number, got, tc.want)
			}
		})
	}
}

func TestMaskCardNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   string
	}{
		{"16 digits", "4111111111111234", "4111********1234"},
		{"19 digits", "4111111111111112345", "4111***********2345"},
		{"with spaces", "4111 1111 1111 1234", "4111********1234"},
		{"too short to mask", "41111234", "********"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaskCardNumber(tc.number); got != tc.want {
				t.Fatalf("MaskCardNumber(%q) = %q, want %q", tc.number, got, tc.want)
			}
		})
	}
}

func TestCardToResponseMasksNumber(t *testing.T) {
	card := Card{CardNumber: "4111111111111111", CardType: CardTypeDebit, Status: CardStatusActive}
	resp := card.ToResponse()
	if resp.CardNumber != "4111********1111" {
		t.Fatalf("expected masked number, got %q", resp.CardNumber)
	}
}
