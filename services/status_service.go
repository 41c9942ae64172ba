package services

import (
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/models"
)

// DefaultGraceCount определяет допустимое число последовательных
// просроченных взносов по умолчанию, после превышения которого займ
// считается дефолтным
const DefaultGraceCount = 3

// startOfDay обрезает время до начала дня: статусы сравнивают даты, а не моменты
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DeriveLoanStatus выводит статус займа из графика платежей и текущей даты.
// Статус не хранится как самостоятельное состояние: хранимая колонка — это
// кэш, который пересчитывается этой функцией при каждой мутации.
func DeriveLoanStatus(loan *models.Loan, schedule []models.EmiSchedule, now time.Time, graceCount int) models.LoanStatus {
	if graceCount <= 0 {
		graceCount = DefaultGraceCount
	}

	// Полностью погашенный займ закрыт независимо от дат
	if !loan.OutstandingAmount.IsPositive() {
		return models.LoanStatusClosed
	}

	// Считаем последовательные неоплаченные взносы с прошедшей датой платежа
	today := startOfDay(now)
	missed := 0
	for i := range schedule {
		if schedule[i].IsPaid {
			continue
		}
		if startOfDay(schedule[i].DueDate).Before(today) {
			missed++
			continue
		}
		break
	}

	if missed > graceCount {
		return models.LoanStatusDefaulted
	}

	return models.LoanStatusActive
}

// DeriveLendingStatus выводит статус личного долга из суммы, остатка,
// срока возврата и текущей даты. Для любых входных данных возвращается
// ровно один статус; PAID всегда побеждает, даже при прошедшем сроке.
func DeriveLendingStatus(lending *models.Lending, now time.Time) models.LendingStatus {
	if !lending.PendingAmount.IsPositive() {
		return models.LendingStatusPaid
	}

	// Просрочка перекрывает PENDING и PARTIAL
	if lending.DueDate != nil && startOfDay(*lending.DueDate).Before(startOfDay(now)) {
		return models.LendingStatusOverdue
	}

	if lending.PendingAmount.LessThan(lending.Amount) {
		return models.LendingStatusPartial
	}

	return models.LendingStatusPending
}
