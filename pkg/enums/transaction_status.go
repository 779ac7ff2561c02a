package enums

import "fmt"

// TransactionStatus tracks the lifecycle of a money movement.
//
// pending -> processing -> completed is the success path; failed is terminal
// for any aborted attempt.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusProcessing,
	TransactionStatusCompleted,
	TransactionStatusFailed,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
