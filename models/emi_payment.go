package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EmiPayment представляет запись в журнале платежей по займу.
// Записи добавляются только в конец журнала и никогда не изменяются.
type EmiPayment struct {
	gorm.Model
	LoanID      uint            `gorm:"not null;index"`
	Loan        Loan            `gorm:"foreignKey:LoanID"`
	PaymentDate time.Time       `gorm:"not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	// Распределение платежа по закрытым взносам графика
	PrincipalAmount decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	InterestAmount  decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	// Остаток основного долга после применения платежа
	OutstandingBalance decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IsPrepayment       bool            `gorm:"not null;default:false"`
	LateFee            decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
}

// TableName возвращает имя таблицы для модели EmiPayment
func (EmiPayment) TableName() string {
	return "emi_payments"
}
