package models

type LedgerType string

const (
	LedgerEarn  LedgerType = "earn"
	LedgerSpend LedgerType = "spend"
)

const MaxLedgerEntries = 120

// LedgerEntry is immutable once appended. Entries are stored most recent
// first, so Ledger[i].BalanceBefore == Ledger[i+1].BalanceAfter.
type LedgerEntry struct {
	ID            string                 `json:"id"`
	TS            int64                  `json:"ts"`
	Title         string                 `json:"title"`
	Delta         int64                  `json:"delta"`
	Type          LedgerType             `json:"type"`
	Meta          map[string]interface{} `json:"meta"`
	BalanceAfter  int64                  `json:"balanceAfter"`
	BalanceBefore int64                  `json:"balanceBefore"`
}
