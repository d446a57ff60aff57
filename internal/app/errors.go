package app

import "errors"

// Validation and authorization errors surfaced by the service layer. Storage
// errors (not found, insufficient funds) live in the store package; handlers
// map both families to HTTP status codes with errors.Is.
var (
	ErrInvalidAmount               = errors.New("transaction amount must be positive")
	ErrInvalidTransactionType      = errors.New("unknown transaction type")
	ErrInvalidTransactionStructure = errors.New("invalid transaction structure for type")
	ErrNotAccountOwner             = errors.New("account does not belong to the requesting user")
	ErrNotCardOwner                = errors.New("card does not belong to the requesting user")
	ErrTransactionNotCancellable   = errors.New("transaction is not in a cancellable state")

	ErrInvalidCardNumber          = errors.New("card number failed validation")
	ErrInvalidCardType            = errors.New("unknown card type")
	ErrInvalidCardExpiry          = errors.New("card expiry is invalid or in the past")
	ErrInvalidCVV                 = errors.New("cvv must be 3 or 4 digits")
	ErrCardHasPendingTransactions = errors.New("card is referenced by pending transactions")

	ErrInvalidCurrency = errors.New("currency must be a 3-letter code")
)
