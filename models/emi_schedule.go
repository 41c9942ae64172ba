package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EmiSchedule представляет один плановый взнос в графике платежей займа.
// Инвариант: PrincipalAmount + InterestAmount == EmiAmount для всех строк,
// кроме последней (она поглощает остаток округления).
type EmiSchedule struct {
	gorm.Model
	LoanID            uint            `gorm:"not null;index;uniqueIndex:idx_loan_installment"`
	Loan              Loan            `gorm:"foreignKey:LoanID"`
	InstallmentNumber int             `gorm:"not null;uniqueIndex:idx_loan_installment"`
	DueDate           time.Time       `gorm:"not null"`
	EmiAmount         decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	PrincipalAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	InterestAmount    decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	// Остаток основного долга после оплаты этого взноса
	OutstandingBalance decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IsPaid             bool            `gorm:"not null;default:false"`
	PaymentDate        *time.Time
	// Накопленная фактически внесенная сумма (частичные платежи складываются)
	ActualPaymentAmount decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	LateFee             decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
}

// TableName возвращает имя таблицы для модели EmiSchedule
func (EmiSchedule) TableName() string {
	return "emi_schedules"
}

// RemainingDue возвращает сумму, которую осталось внести по взносу
// с учетом штрафа за просрочку и уже внесенных частичных платежей
func (e *EmiSchedule) RemainingDue() decimal.Decimal {
	remaining := e.EmiAmount.Add(e.LateFee).Sub(e.ActualPaymentAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
