package enums

import "fmt"

// TransactionType maps to the transaction_type enum in Postgres.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeDeposit,
	TransactionTypeWithdrawal,
	TransactionTypeTransfer,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
