package services

import (
	"fmt"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OverviewDTO представляет сводку по займам и долгам пользователя
type OverviewDTO struct {
	TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
	TotalMonthlyEmi   decimal.Decimal `json:"total_monthly_emi"`
	ActiveLoans       int             `json:"active_loans"`
	ClosedLoans       int             `json:"closed_loans"`
	DefaultedLoans    int             `json:"defaulted_loans"`
	NextPaymentDate   *time.Time      `json:"next_payment_date,omitempty"`
	NextPaymentAmount decimal.Decimal `json:"next_payment_amount"`
	OverdueLoans      int             `json:"overdue_loans"`
	OverdueLendings   int             `json:"overdue_lendings"`
	OverdueAmount     decimal.Decimal `json:"overdue_amount"`
	LentPending       decimal.Decimal `json:"lent_pending"`
	BorrowedPending   decimal.Decimal `json:"borrowed_pending"`
}

// OverviewService строит сводку по всем займам и долгам пользователя
type OverviewService struct {
	db         *gorm.DB
	graceCount int
}

// NewOverviewService создает новый экземпляр OverviewService
func NewOverviewService(db *gorm.DB, graceCount int) *OverviewService {
	return &OverviewService{
		db:         db,
		graceCount: graceCount,
	}
}

// BuildOverview агрегирует сводку из загруженных займов и долгов.
// Функция чистая и только читает состояние: сводка каждый раз
// пересчитывается из журнала, кэширование не используется.
func BuildOverview(loans []models.Loan, lendings []models.Lending, now time.Time, graceCount int) *OverviewDTO {
	overview := &OverviewDTO{
		TotalOutstanding:  decimal.Zero,
		TotalMonthlyEmi:   decimal.Zero,
		NextPaymentAmount: decimal.Zero,
		OverdueAmount:     decimal.Zero,
		LentPending:       decimal.Zero,
		BorrowedPending:   decimal.Zero,
	}

	today := startOfDay(now)

	for i := range loans {
		loan := &loans[i]
		status := DeriveLoanStatus(loan, loan.Schedule, now, graceCount)

		switch status {
		case models.LoanStatusClosed:
			overview.ClosedLoans++
			continue
		case models.LoanStatusDefaulted:
			overview.DefaultedLoans++
		default:
			overview.ActiveLoans++
		}

		// Суммы задолженности и EMI считаются только по активным займам;
		// дефолтные займы учитываются в просрочке ниже
		if status == models.LoanStatusActive {
			overview.TotalOutstanding = overview.TotalOutstanding.Add(loan.OutstandingAmount)
			overview.TotalMonthlyEmi = overview.TotalMonthlyEmi.Add(loan.EmiAmount)
		}

		hasMissed := false
		for j := range loan.Schedule {
			row := &loan.Schedule[j]
			if row.IsPaid {
				continue
			}

			// Ближайший платеж по всем активным займам пользователя
			if status == models.LoanStatusActive &&
				(overview.NextPaymentDate == nil || row.DueDate.Before(*overview.NextPaymentDate)) {
				dueDate := row.DueDate
				overview.NextPaymentDate = &dueDate
				overview.NextPaymentAmount = row.RemainingDue()
			}

			if startOfDay(row.DueDate).Before(today) {
				hasMissed = true
				overview.OverdueAmount = overview.OverdueAmount.Add(row.RemainingDue())
			}
		}
		if hasMissed {
			overview.OverdueLoans++
		}
	}

	for i := range lendings {
		lending := &lendings[i]
		status := DeriveLendingStatus(lending, now)

		if status == models.LendingStatusOverdue {
			overview.OverdueLendings++
			overview.OverdueAmount = overview.OverdueAmount.Add(lending.PendingAmount)
		}

		if status == models.LendingStatusPaid {
			continue
		}
		switch lending.Type {
		case models.LendingTypeLent:
			overview.LentPending = overview.LentPending.Add(lending.PendingAmount)
		case models.LendingTypeBorrowed:
			overview.BorrowedPending = overview.BorrowedPending.Add(lending.PendingAmount)
		}
	}

	return overview
}

// GetOverview загружает займы и долги пользователя и строит сводку
func (s *OverviewService) GetOverview(userID uint, now time.Time) (*OverviewDTO, error) {
	var loans []models.Loan
	if err := s.db.Where("user_id = ?", userID).
		Preload("Schedule", func(db *gorm.DB) *gorm.DB {
			return db.Order("emi_schedules.installment_number ASC")
		}).
		Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("ошибка при загрузке займов: %w", err)
	}

	var lendings []models.Lending
	if err := s.db.Where("user_id = ?", userID).Find(&lendings).Error; err != nil {
		return nil, fmt.Errorf("ошибка при загрузке долгов: %w", err)
	}

	return BuildOverview(loans, lendings, now, s.graceCount), nil
}
