package services

import (
	"errors"
	"testing"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/models"
	"github.com/shopspring/decimal"
)

// testLoanWithSchedule строит займ с тремя взносами по 1000
// (900 основного долга и 100 процентов в каждом)
func testLoanWithSchedule() (*models.Loan, []models.EmiSchedule) {
	loan := &models.Loan{
		PrincipalAmount:   decimal.NewFromInt(2700),
		OutstandingAmount: decimal.NewFromInt(2700),
		TenureMonths:      3,
		StartDate:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:            models.LoanStatusActive,
	}
	loan.ID = 1

	schedule := make([]models.EmiSchedule, 0, 3)
	for i := 1; i <= 3; i++ {
		schedule = append(schedule, models.EmiSchedule{
			LoanID:              loan.ID,
			InstallmentNumber:   i,
			DueDate:             time.Date(2026, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC),
			EmiAmount:           decimal.NewFromInt(1000),
			PrincipalAmount:     decimal.NewFromInt(900),
			InterestAmount:      decimal.NewFromInt(100),
			OutstandingBalance:  decimal.NewFromInt(2700 - int64(i)*900),
			ActualPaymentAmount: decimal.Zero,
			LateFee:             decimal.Zero,
		})
	}
	return loan, schedule
}

func TestApplyLoanPaymentExact(t *testing.T) {
	loan, schedule := testLoanWithSchedule()
	payDate := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	result, err := ApplyLoanPayment(loan, schedule, LoanPaymentInput{
		Amount:      decimal.NewFromInt(1000),
		PaymentDate: payDate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Первый взнос закрыт, остальные не тронуты
	if !schedule[0].IsPaid {
		t.Error("first installment must be paid")
	}
	if schedule[1].IsPaid || schedule[2].IsPaid {
		t.Error("later installments must stay unpaid")
	}

	// Распределение берется из строки графика
	if !result.LedgerEntry.PrincipalAmount.Equal(decimal.NewFromInt(900)) {
		t.Errorf("ledger principal: got %v want 900", result.LedgerEntry.PrincipalAmount)
	}
	if !result.LedgerEntry.InterestAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("ledger interest: got %v want 100", result.LedgerEntry.InterestAmount)
	}

	// Остаток долга уменьшается только на основную часть
	if !loan.OutstandingAmount.Equal(decimal.NewFromInt(1800)) {
		t.Errorf("outstanding: got %v want 1800", loan.OutstandingAmount)
	}

	// Дата следующего платежа переходит на второй взнос
	if loan.NextDueDate == nil || !loan.NextDueDate.Equal(schedule[1].DueDate) {
		t.Errorf("next due date: got %v want %v", loan.NextDueDate, schedule[1].DueDate)
	}
}

func TestApplyLoanPaymentPartialThenSettle(t *testing.T) {
	loan, schedule := testLoanWithSchedule()
	payDate := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Недоплата накапливается на взносе без отметки об оплате
	if _, err := ApplyLoanPayment(loan, schedule, LoanPaymentInput{
		Amount:      decimal.NewFromInt(400),
		PaymentDate: payDate,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schedule[0].IsPaid {
		t.Error("installment must not be paid after partial payment")
	}
	if !schedule[0].ActualPaymentAmount.Equal(decimal.NewFromInt(400)) {
		t.Errorf("actual payment: got %v want 400", schedule[0].ActualPaymentAmount)
	}
	if !loan.OutstandingAmount.Equal(decimal.NewFromInt(2700)) {
		t.Errorf("outstanding must not change after partial payment: got %v", loan.OutstandingAmount)
	}

	// Доплата остатка закрывает взнос
	if _, err := ApplyLoanPayment(loan, schedule, LoanPaymentInput{
		Amount:      decimal.NewFromInt(600),
		PaymentDate: payDate,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !schedule[0].IsPaid {
		t.Error("installment must be paid after remainder settled")
	}
	if !loan.OutstandingAmount.Equal(decimal.NewFromInt(1800)) {
		t.Errorf("outstanding: got %v want 1800", loan.OutstandingAmount)
	}
}

func TestApplyLoanPaymentRollsForward(t *testing.T) {
	loan, schedule := testLoanWithSchedule()
	payDate := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Переплата переходит на следующий взнос: 2 закрыты, на третьем частичная
	if _, err := ApplyLoanPayment(loan, schedule, LoanPaymentInput{
		Amount:      decimal.NewFromInt(2500),
		PaymentDate: payDate,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !schedule[0].IsPaid || !schedule[1].IsPaid {
		t.Error("first two installments must be paid")
	}
	if schedule[2].IsPaid {
		t.Error("third installment must stay unpaid")
	}
	if !schedule[2].ActualPaymentAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("third installment actual payment: got %v want 500",
			schedule[2].ActualPaymentAmount)
	}
	if !loan.OutstandingAmount.Equal(decimal.NewFromInt(900)) {
		t.Errorf("outstanding: got %v want 900", loan.OutstandingAmount)
	}
}

func TestApplyLoanPaymentLateFee(t *testing.T) {
	loan, schedule := testLoanWithSchedule()
	// Платеж через неделю после срока первого взноса
	payDate := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)

	result, err := ApplyLoanPayment(loan, schedule, LoanPaymentInput{
		Amount:      decimal.NewFromInt(1050),
		PaymentDate: payDate,
		LateFee:     decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Штраф записывается на первый погашаемый взнос
	if !schedule[0].LateFee.Equal(decimal.NewFromInt(50)) {
		t.Errorf("late fee on installment: got %v want 50", schedule[0].LateFee)
	}
	if !schedule[0].IsPaid {
		t.Error("installment must be paid: 1050 covers emi and late fee")
	}
	if !result.LedgerEntry.LateFee.Equal(decimal.NewFromInt(50)) {
		t.Errorf("ledger late fee: got %v want 50", result.LedgerEntry.LateFee)
	}

	// Штраф не уменьшает основной долг
	if !loan.OutstandingAmount.Equal(decimal.NewFromInt(1800)) {
		t.Errorf("outstanding: got %v want 1800", loan.OutstandingAmount)
	}
}

func TestApplyLoanPaymentLateFeeIgnoredOnTime(t *testing.T) {
	loan, schedule := testLoanWithSchedule()
	// Платеж точно в срок: штраф не применяется
	payDate := schedule[0].DueDate

	if _, err := ApplyLoanPayment(loan, schedule, LoanPaymentInput{
		Amount:      decimal.NewFromInt(1000),
		PaymentDate: payDate,
		LateFee:     decimal.NewFromInt(50),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !schedule[0].LateFee.IsZero() {
		t.Errorf("late fee: got %v want 0", schedule[0].LateFee)
	}
	if !schedule[0].IsPaid {
		t.Error("installment must be paid")
	}
}

func TestApplyLoanPaymentOverpaymentRejected(t *testing.T) {
	loan, schedule := testLoanWithSchedule()
	payDate := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Платеж больше всей оставшейся задолженности по графику
	_, err := ApplyLoanPayment(loan, schedule, LoanPaymentInput{
		Amount:      decimal.NewFromInt(5000),
		PaymentDate: payDate,
	})
	if !errors.Is(err, ErrOverpaymentExceedsOutstanding) {
		t.Fatalf("got %v want ErrOverpaymentExceedsOutstanding", err)
	}

	// Отклоненный платеж не оставляет следов
	if !loan.OutstandingAmount.Equal(decimal.NewFromInt(2700)) {
		t.Errorf("outstanding changed after rejected payment: got %v", loan.OutstandingAmount)
	}
	for i := range schedule {
		if schedule[i].IsPaid || !schedule[i].ActualPaymentAmount.IsZero() {
			t.Errorf("installment %d mutated after rejected payment", i+1)
		}
		if !schedule[i].LateFee.IsZero() {
			t.Errorf("installment %d late fee set after rejected payment", i+1)
		}
	}
	if loan.LastPaymentDate != nil {
		t.Error("last payment date set after rejected payment")
	}
}

func TestApplyLoanPaymentInvalidAmount(t *testing.T) {
	loan, schedule := testLoanWithSchedule()

	_, err := ApplyLoanPayment(loan, schedule, LoanPaymentInput{
		Amount:      decimal.Zero,
		PaymentDate: time.Now(),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v want ErrInvalidInput", err)
	}

	_, err = ApplyLoanPayment(loan, schedule, LoanPaymentInput{
		Amount:      decimal.NewFromInt(100),
		PaymentDate: time.Now(),
		LateFee:     decimal.NewFromInt(-10),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v want ErrInvalidInput", err)
	}
}

func TestApplyLendingPayment(t *testing.T) {
	lending := &models.Lending{
		PersonName:    "Петров",
		Amount:        decimal.NewFromInt(5000),
		PendingAmount: decimal.NewFromInt(5000),
		Type:          models.LendingTypeLent,
	}
	lending.ID = 1
	payDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	entry, err := ApplyLendingPayment(lending, LendingPaymentInput{
		Amount:        decimal.NewFromInt(2000),
		PaymentDate:   payDate,
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !lending.PendingAmount.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("pending: got %v want 3000", lending.PendingAmount)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("entry amount: got %v want 2000", entry.Amount)
	}
	if entry.LendingID != lending.ID {
		t.Errorf("entry lending id: got %d want %d", entry.LendingID, lending.ID)
	}

	// Погашение остатка обнуляет долг
	if _, err := ApplyLendingPayment(lending, LendingPaymentInput{
		Amount:      decimal.NewFromInt(3000),
		PaymentDate: payDate,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lending.PendingAmount.IsZero() {
		t.Errorf("pending: got %v want 0", lending.PendingAmount)
	}
}

func TestApplyLendingPaymentOverpaymentRejected(t *testing.T) {
	lending := &models.Lending{
		Amount:        decimal.NewFromInt(1000),
		PendingAmount: decimal.NewFromInt(300),
	}

	// Платеж, уводящий остаток в минус, отклоняется целиком
	_, err := ApplyLendingPayment(lending, LendingPaymentInput{
		Amount:      decimal.NewFromInt(500),
		PaymentDate: time.Now(),
	})
	if !errors.Is(err, ErrOverpaymentExceedsPending) {
		t.Fatalf("got %v want ErrOverpaymentExceedsPending", err)
	}
	if !lending.PendingAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("pending changed after rejected payment: got %v", lending.PendingAmount)
	}
}

func TestApplyLendingPaymentInvalidAmount(t *testing.T) {
	lending := &models.Lending{
		Amount:        decimal.NewFromInt(1000),
		PendingAmount: decimal.NewFromInt(1000),
	}

	_, err := ApplyLendingPayment(lending, LendingPaymentInput{
		Amount:      decimal.NewFromInt(-100),
		PaymentDate: time.Now(),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v want ErrInvalidInput", err)
	}
}
