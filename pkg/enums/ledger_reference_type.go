package enums

import "fmt"

// LedgerReferenceType names the detail record a ledger entry points back to.
type LedgerReferenceType string

const (
	LedgerReferenceTypeDeposit    LedgerReferenceType = "deposit"
	LedgerReferenceTypeWithdrawal LedgerReferenceType = "withdrawal"
	LedgerReferenceTypeTransfer   LedgerReferenceType = "transfer"
)

var validLedgerReferenceTypes = []LedgerReferenceType{
	LedgerReferenceTypeDeposit,
	LedgerReferenceTypeWithdrawal,
	LedgerReferenceTypeTransfer,
}

// String implements fmt.Stringer.
func (t LedgerReferenceType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t LedgerReferenceType) IsValid() bool {
	for _, candidate := range validLedgerReferenceTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerReferenceType converts raw input into a LedgerReferenceType.
func ParseLedgerReferenceType(value string) (LedgerReferenceType, error) {
	for _, candidate := range validLedgerReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger reference type %q", value)
}
