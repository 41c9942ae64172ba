package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LoanStatus представляет статус займа
type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "ACTIVE"    // Активный займ
	LoanStatusClosed    LoanStatus = "CLOSED"    // Полностью погашенный займ
	LoanStatusDefaulted LoanStatus = "DEFAULTED" // Займ с превышенным лимитом просрочек
)

// LoanType представляет тип займа
type LoanType string

const (
	LoanTypePersonal    LoanType = "PERSONAL"
	LoanTypeHome        LoanType = "HOME"
	LoanTypeCar         LoanType = "CAR"
	LoanTypeEducation   LoanType = "EDUCATION"
	LoanTypePurchaseEmi LoanType = "PURCHASE_EMI"
	LoanTypeCreditCard  LoanType = "CREDIT_CARD"
	LoanTypeOther       LoanType = "OTHER"
)

// Loan представляет займ с фиксированным аннуитетным платежом (EMI)
type Loan struct {
	gorm.Model
	UserID            uint            `gorm:"not null;index"`
	User              User            `gorm:"foreignKey:UserID"`
	Type              LoanType        `gorm:"type:varchar(20);not null;default:'PERSONAL'"`
	PrincipalAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	OutstandingAmount decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	InterestRate      float64         `gorm:"not null"` // Годовая ставка в процентах
	EmiAmount         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	TenureMonths      int             `gorm:"not null"`
	StartDate         time.Time       `gorm:"not null"`
	NextDueDate       *time.Time
	PaymentDay        int `gorm:"not null;default:0"` // Желаемый день платежа (1-28), 0 - по дате выдачи
	LastPaymentDate   *time.Time
	// Статус хранится как кэш и пересчитывается при каждой мутации
	Status   LoanStatus    `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	Schedule []EmiSchedule `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE"`
	Payments []EmiPayment  `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE"`
}

// TableName возвращает имя таблицы для модели Loan
func (Loan) TableName() string {
	return "loans"
}
