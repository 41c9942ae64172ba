package services

import (
	"fmt"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/models"
	"github.com/shopspring/decimal"
)

// LoanPaymentInput представляет данные платежа по займу
type LoanPaymentInput struct {
	Amount      decimal.Decimal
	PaymentDate time.Time
	// Штраф за просрочку задается вызывающей стороной; система не
	// рассчитывает его самостоятельно
	LateFee decimal.Decimal
}

// LoanPaymentResult представляет результат применения платежа к графику
type LoanPaymentResult struct {
	// Строки графика, изменившиеся при применении платежа
	UpdatedRows []*models.EmiSchedule
	LedgerEntry models.EmiPayment
}

// LendingPaymentInput представляет данные платежа по личному долгу
type LendingPaymentInput struct {
	Amount        decimal.Decimal
	PaymentDate   time.Time
	PaymentMethod string
}

// ApplyLoanPayment применяет платеж к графику займа. Взносы погашаются
// строго по порядку: переплата переходит на следующий неоплаченный взнос,
// недоплата накапливается на текущем взносе без отметки об оплате.
// Функция изменяет только переданные структуры; сохранение выполняет
// вызывающая сторона в своей транзакции.
func ApplyLoanPayment(loan *models.Loan, schedule []models.EmiSchedule, input LoanPaymentInput) (*LoanPaymentResult, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: сумма платежа должна быть больше 0", ErrInvalidInput)
	}
	if input.LateFee.IsNegative() {
		return nil, fmt.Errorf("%w: штраф не может быть отрицательным", ErrInvalidInput)
	}

	// Находим первый неоплаченный взнос
	firstUnpaid := -1
	for i := range schedule {
		if !schedule[i].IsPaid {
			firstUnpaid = i
			break
		}
	}
	if firstUnpaid < 0 {
		return nil, fmt.Errorf("%w: все взносы уже оплачены", ErrLoanNotActive)
	}

	// Штраф записывается на первый погашаемый взнос, только если платеж
	// действительно просрочен
	lateFee := decimal.Zero
	if input.LateFee.IsPositive() && input.PaymentDate.After(schedule[firstUnpaid].DueDate) {
		lateFee = input.LateFee
	}

	// Платеж не может превышать сумму, оставшуюся к оплате по графику.
	// Излишек оформляется отдельной операцией досрочного погашения
	totalPayable := lateFee
	for i := firstUnpaid; i < len(schedule); i++ {
		totalPayable = totalPayable.Add(schedule[i].RemainingDue())
	}
	if input.Amount.GreaterThan(totalPayable) {
		return nil, ErrOverpaymentExceedsOutstanding
	}

	if lateFee.IsPositive() {
		schedule[firstUnpaid].LateFee = schedule[firstUnpaid].LateFee.Add(lateFee)
	}

	remaining := input.Amount
	principalPaid := decimal.Zero
	interestPaid := decimal.Zero
	var updated []*models.EmiSchedule

	for i := firstUnpaid; i < len(schedule) && remaining.IsPositive(); i++ {
		row := &schedule[i]
		due := row.RemainingDue()
		if due.IsZero() {
			continue
		}

		pay := remaining
		if pay.GreaterThan(due) {
			pay = due
		}
		row.ActualPaymentAmount = row.ActualPaymentAmount.Add(pay)
		remaining = remaining.Sub(pay)

		// Взнос закрыт: распределение берется из строки графика,
		// а не пересчитывается заново
		if row.RemainingDue().IsZero() {
			paymentDate := input.PaymentDate
			row.IsPaid = true
			row.PaymentDate = &paymentDate
			principalPaid = principalPaid.Add(row.PrincipalAmount)
			interestPaid = interestPaid.Add(row.InterestAmount)
			loan.OutstandingAmount = loan.OutstandingAmount.Sub(row.PrincipalAmount)
		}

		updated = append(updated, row)
	}

	// Обновляем дату следующего платежа по первому неоплаченному взносу
	paymentDate := input.PaymentDate
	loan.LastPaymentDate = &paymentDate
	loan.NextDueDate = nil
	for i := range schedule {
		if !schedule[i].IsPaid {
			loan.NextDueDate = &schedule[i].DueDate
			break
		}
	}

	entry := models.EmiPayment{
		LoanID:             loan.ID,
		PaymentDate:        input.PaymentDate,
		Amount:             input.Amount,
		PrincipalAmount:    principalPaid,
		InterestAmount:     interestPaid,
		OutstandingBalance: loan.OutstandingAmount,
		IsPrepayment:       false,
		LateFee:            lateFee,
	}

	return &LoanPaymentResult{
		UpdatedRows: updated,
		LedgerEntry: entry,
	}, nil
}

// ApplyLendingPayment применяет платеж к личному долгу и пересчитывает
// остаток. Платеж, уводящий остаток в минус, отклоняется, а не обрезается:
// молчаливое обрезание скрыло бы ошибку ввода.
func ApplyLendingPayment(lending *models.Lending, input LendingPaymentInput) (*models.LendingPayment, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: сумма платежа должна быть больше 0", ErrInvalidInput)
	}

	newPending := lending.PendingAmount.Sub(input.Amount)
	if newPending.IsNegative() {
		return nil, ErrOverpaymentExceedsPending
	}

	lending.PendingAmount = newPending

	entry := &models.LendingPayment{
		LendingID:     lending.ID,
		PaymentDate:   input.PaymentDate,
		Amount:        input.Amount,
		PaymentMethod: input.PaymentMethod,
	}

	return entry, nil
}
