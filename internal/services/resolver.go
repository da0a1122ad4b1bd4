package services

import (
	"strings"
	"unicode"

	"gorm.io/gorm"

	"Access-Telegram-bot/internal/db"
)

// Query: разобранный пользовательский идентификатор оплаты (email, телефон или order_id).
type Query struct {
	Raw         string
	Email       string
	Phone       string
	PhoneSuffix string
}

// NormalizePhone оставляет только цифры
func NormalizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseQuery разбирает ввод. Строка с "@" считается только email.
// Иначе ищем по order_id, по телефону целиком и по последним 10 цифрам телефона.
func ParseQuery(raw string) (Query, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Query{}, false
	}
	q := Query{Raw: raw}
	if strings.Contains(raw, "@") {
		q.Email = raw
		return q, true
	}
	q.Phone = NormalizePhone(raw)
	if len(q.Phone) >= 10 {
		q.PhoneSuffix = q.Phone[len(q.Phone)-10:]
	}
	return q, true
}

func (q Query) criteria() db.PaymentCriteria {
	if q.Email != "" {
		return db.PaymentCriteria{Email: q.Email}
	}
	return db.PaymentCriteria{OrderID: q.Raw, Phone: q.Phone, PhoneSuffix: q.PhoneSuffix}
}

// FindAnyPayment: поиск для админа: любой статус, любой used.
func FindAnyPayment(tx *gorm.DB, raw string) (*db.Payment, error) {
	q, ok := ParseQuery(raw)
	if !ok {
		return nil, nil
	}
	return db.FindLatestPayment(tx, q.criteria())
}

// FindClaimablePayment: оплаченная и ещё не использованная оплата.
func FindClaimablePayment(tx *gorm.DB, raw string) (*db.Payment, error) {
	q, ok := ParseQuery(raw)
	if !ok {
		return nil, nil
	}
	c := q.criteria()
	c.Status = db.StatusPaid
	c.Used = boolPtr(false)
	return db.FindLatestPayment(tx, c)
}

// FindUsedPaidPayment нужна только чтобы отличить "не оплачено" от "уже использовано".
func FindUsedPaidPayment(tx *gorm.DB, raw string) (*db.Payment, error) {
	q, ok := ParseQuery(raw)
	if !ok {
		return nil, nil
	}
	c := q.criteria()
	c.Status = db.StatusPaid
	c.Used = boolPtr(true)
	return db.FindLatestPayment(tx, c)
}

// FindPaidPaymentByID возвращает оплату id, только если она оплачена и подходит под запрос.
func FindPaidPaymentByID(tx *gorm.DB, raw string, id uint) (*db.Payment, error) {
	q, ok := ParseQuery(raw)
	if !ok {
		return nil, nil
	}
	c := q.criteria()
	c.ID = id
	c.Status = db.StatusPaid
	return db.FindLatestPayment(tx, c)
}

func boolPtr(v bool) *bool {
	return &v
}
