package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CardType enumerates the supported card products.
type CardType string

const (
	CardTypeDebit   CardType = "DEBIT"
	CardTypeCredit  CardType = "CREDIT"
	CardTypePrepaid CardType = "PREPAID"
)

// Valid reports whether t is a known card type.
func (t CardType) Valid() bool {
	switch t {
	case CardTypeDebit, CardTypeCredit, CardTypePrepaid:
		return true
	}
	return false
}

// CardStatus enumerates the lifecycle states of a card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusDeleted CardStatus = "DELETED"
)

// Card represents a payment card owned by a user. The full card number is
// persisted but must always be masked before it leaves the service.
type Card struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	CardNumber  string     `json:"-"`
	CardType    CardType   `json:"card_type"`
	Balance     int64      `json:"balance"` // in cents, spendable amount regardless of card type
	CreditLimit *int64     `json:"credit_limit,omitempty"`
	Status      CardStatus `json:"status"`
	IsDefault   bool       `json:"is_default"`
	ExpiryMonth int        `json:"expiry_month"`
	ExpiryYear  int        `json:"expiry_year"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MaskedNumber returns the card number in display form: first four digits,
// asterisks for the middle, last four digits (e.g. "4111********1234").
func (c *Card) MaskedNumber() string {
	return MaskCardNumber(c.CardNumber)
}

// MaskCardNumber masks all but the first and last four digits of a card number.
// Numbers too short to mask are blanked entirely.
func MaskCardNumber(number string) string {
	digits := strings.ReplaceAll(number, " ", "")
	if len(digits) < 12 {
		return strings.Repeat("*", len(digits))
	}
	return digits[:4] + strings.Repeat("*", len(digits)-8) + digits[len(digits)-4:]
}

// ValidCardNumber reports whether the card number passes the Luhn checksum.
func ValidCardNumber(number string) bool {
	digits := strings.ReplaceAll(number, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if d < '0' || d > '9' {
			return false
		}
		n := int(d - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// CreateCardRequest is the DTO for issuing a new card. The CVV is validated
// but never persisted.
type CreateCardRequest struct {
	CardNumber  string   `json:"card_number"`
	CardType    CardType `json:"card_type"`
	CVV         string   `json:"cvv"`
	ExpiryMonth int      `json:"expiry_month"`
	ExpiryYear  int      `json:"expiry_year"`
	CreditLimit *int64   `json:"credit_limit,omitempty"`
	IsDefault   bool     `json:"is_default"`
}

// CardResponse is the API representation of a card with the number masked.
type CardResponse struct {
	ID          uuid.UUID  `json:"id"`
	CardNumber  string     `json:"card_number"`
	CardType    CardType   `json:"card_type"`
	Balance     int64      `json:"balance"`
	CreditLimit *int64     `json:"credit_limit,omitempty"`
	Status      CardStatus `json:"status"`
	IsDefault   bool       `json:"is_default"`
	ExpiryMonth int        `json:"expiry_month"`
	ExpiryYear  int        `json:"expiry_year"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToResponse converts a Card to its masked API representation.
func (c *Card) ToResponse() CardResponse {
	return CardResponse{
		ID:          c.ID,
		CardNumber:  c.MaskedNumber(),
		CardType:    c.CardType,
		Balance:     c.Balance,
		CreditLimit: c.CreditLimit,
		Status:      c.Status,
		IsDefault:   c.IsDefault,
		ExpiryMonth: c.ExpiryMonth,
		ExpiryYear:  c.ExpiryYear,
		CreatedAt:   c.CreatedAt,
	}
}
