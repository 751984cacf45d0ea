package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a statement line read from a bank export.
type Transaction struct {
	Date         time.Time
	Amount       decimal.Decimal
	ID           string
	Name         string // Raw transaction description
	MerchantName string // Cleaned merchant name
	AccountID    string
	Hash         string
	Type         string // DEBIT, CHECK, PAYMENT, ATM, ...
	CheckNumber  string
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.MerchantName,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// IsDebit reports whether the transaction is money leaving the account.
func (t *Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// Note returns the text used to classify the transaction.
func (t *Transaction) Note() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Name
}
