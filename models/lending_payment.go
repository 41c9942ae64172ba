package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LendingPayment представляет платеж по личному долгу.
// Записи добавляются только в конец журнала и никогда не изменяются.
type LendingPayment struct {
	gorm.Model
	LendingID     uint            `gorm:"not null;index"`
	Lending       Lending         `gorm:"foreignKey:LendingID"`
	PaymentDate   time.Time       `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	PaymentMethod string          `gorm:"size:50"` // cash, bank_transfer, upi и т.д.
}

// TableName возвращает имя таблицы для модели LendingPayment
func (LendingPayment) TableName() string {
	return "lending_payments"
}
