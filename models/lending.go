package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LendingStatus представляет статус личного долга
type LendingStatus string

const (
	LendingStatusPending LendingStatus = "PENDING" // Платежей еще не было
	LendingStatusPartial LendingStatus = "PARTIAL" // Долг погашен частично
	LendingStatusPaid    LendingStatus = "PAID"    // Долг погашен полностью
	LendingStatusOverdue LendingStatus = "OVERDUE" // Срок возврата прошел, долг не погашен
)

// LendingType представляет направление долга
type LendingType string

const (
	LendingTypeLent     LendingType = "LENT"     // Деньги отданы в долг
	LendingTypeBorrowed LendingType = "BORROWED" // Деньги взяты в долг
)

// Lending представляет личный долг между людьми.
// В отличие от займа у него нет графика платежей: отслеживается только
// совокупный остаток. Инвариант: PendingAmount = Amount - сумма платежей.
type Lending struct {
	gorm.Model
	UserID        uint            `gorm:"not null;index"`
	User          User            `gorm:"foreignKey:UserID"`
	PersonName    string          `gorm:"not null;size:100"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	PendingAmount decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	InterestRate  *float64        // Годовая ставка в процентах, необязательна
	Date          time.Time       `gorm:"not null"`
	DueDate       *time.Time
	Type          LendingType `gorm:"type:varchar(20);not null"`
	// Статус хранится как кэш и пересчитывается при каждой мутации
	Status   LendingStatus    `gorm:"type:varchar(20);not null;default:'PENDING'"`
	Payments []LendingPayment `gorm:"foreignKey:LendingID;constraint:OnDelete:CASCADE"`
}

// TableName возвращает имя таблицы для модели Lending
func (Lending) TableName() string {
	return "lendings"
}
