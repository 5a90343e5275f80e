package services

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	PrefixRequest   = "REQ"
	PrefixQuotation = "QUO"
	PrefixInvoice   = "INV"
	PrefixPayment   = "PAY"
)

// NextNumber returns the next PREFIX-YYYYMMDD-NNN number for the day of now.
// The sequence continues from the highest suffix already issued that day;
// suffixes grow past three digits, so they are compared as integers.
func NextNumber(tx *gorm.DB, model interface{}, column, prefix string, now time.Time) (string, error) {
	stem := fmt.Sprintf("%s-%s-", prefix, now.Format("20060102"))

	var numbers []string
	err := tx.Model(model).
		Where(column+" LIKE ?", stem+"%").
		Pluck(column, &numbers).Error
	if err != nil {
		return "", fmt.Errorf("failed to read last %s number: %w", prefix, err)
	}

	last := 0
	for _, number := range numbers {
		seq, err := strconv.Atoi(strings.TrimPrefix(number, stem))
		if err != nil {
			return "", fmt.Errorf("malformed %s number %q", prefix, number)
		}
		last = max(last, seq)
	}

	return fmt.Sprintf("%s%03d", stem, last+1), nil
}

// GenerateVANumber builds a virtual account number: bank code, 4-digit invoice id, 6 random digits
func GenerateVANumber(bank string, invoiceID uint) string {
	return fmt.Sprintf("%s%04d%06d", bank, invoiceID%10000, rand.IntN(1000000))
}

// VAValidity is how long a virtual account number stays payable
const VAValidity = 7 * 24 * time.Hour
