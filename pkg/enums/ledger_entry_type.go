package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type enum in Postgres.
type LedgerEntryType string

const (
	LedgerEntryTypeCredit LedgerEntryType = "credit"
	LedgerEntryTypeDebit  LedgerEntryType = "debit"
	LedgerEntryTypeFee    LedgerEntryType = "fee"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeCredit,
	LedgerEntryTypeDebit,
	LedgerEntryTypeFee,
}

// String implements fmt.Stringer.
func (t LedgerEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
