package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// defaultPrecision определяет точность валюты по умолчанию (2 знака)
const defaultPrecision int32 = 2

// maxScheduleLength ограничивает длину графика при подборе срока,
// чтобы слишком маленький EMI не приводил к бесконечному циклу
const maxScheduleLength = 1200

// AmortizationInput представляет входные данные калькулятора EMI
type AmortizationInput struct {
	Principal         decimal.Decimal `json:"principal"`
	AnnualRatePercent float64         `json:"annual_rate_percent"`
	TenureMonths      int             `json:"tenure_months"`
	Precision         int32           `json:"-"`
}

// AmortizationEntry представляет один месяц в разбивке графика
type AmortizationEntry struct {
	Month     int             `json:"month"`
	Emi       decimal.Decimal `json:"emi"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Balance   decimal.Decimal `json:"balance"`
}

// AmortizationResult представляет результат расчета графика
type AmortizationResult struct {
	Emi           decimal.Decimal     `json:"emi"`
	TotalPayment  decimal.Decimal     `json:"total_payment"`
	TotalInterest decimal.Decimal     `json:"total_interest"`
	Breakdown     []AmortizationEntry `json:"breakdown"`
}

// monthlyRateOf конвертирует годовую ставку в процентах в месячную в долях
func monthlyRateOf(annualRatePercent float64) decimal.Decimal {
	return decimal.NewFromFloat(annualRatePercent).Div(decimal.NewFromInt(12 * 100))
}

// CalculateEmi рассчитывает размер фиксированного аннуитетного платежа.
// При нулевой ставке сумма делится поровну на все месяцы.
// Расчет полностью в decimal, без прохода через float64.
func CalculateEmi(principal decimal.Decimal, annualRatePercent float64, tenureMonths int, precision int32) decimal.Decimal {
	monthlyRate := monthlyRateOf(annualRatePercent)

	if monthlyRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(tenureMonths))).Round(precision)
	}

	// EMI = P * r * (1+r)^n / ((1+r)^n - 1)
	one := decimal.NewFromInt(1)
	factor := one.Add(monthlyRate).Pow(decimal.NewFromInt(int64(tenureMonths)))
	raw := principal.Mul(monthlyRate).Mul(factor).Div(factor.Sub(one))

	return raw.Round(precision)
}

// CalculateAmortization рассчитывает фиксированный платеж и помесячную
// разбивку по стандартной аннуитетной формуле. Функция чистая и
// детерминированная: одинаковый вход всегда дает одинаковый результат.
func CalculateAmortization(input AmortizationInput) (*AmortizationResult, error) {
	if input.Principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: сумма займа должна быть больше 0", ErrInvalidInput)
	}
	if input.TenureMonths <= 0 {
		return nil, fmt.Errorf("%w: срок займа должен быть больше 0 месяцев", ErrInvalidInput)
	}
	if input.AnnualRatePercent < 0 {
		return nil, fmt.Errorf("%w: процентная ставка не может быть отрицательной", ErrInvalidInput)
	}

	precision := input.Precision
	if precision <= 0 {
		precision = defaultPrecision
	}

	emi := CalculateEmi(input.Principal, input.AnnualRatePercent, input.TenureMonths, precision)
	monthlyRate := monthlyRateOf(input.AnnualRatePercent)

	breakdown := make([]AmortizationEntry, 0, input.TenureMonths)
	balance := input.Principal
	totalPayment := decimal.Zero
	totalInterest := decimal.Zero

	for month := 1; month <= input.TenureMonths; month++ {
		// Проценты начисляются на остаток основного долга
		interest := balance.Mul(monthlyRate).Round(precision)
		principal := emi.Sub(interest)
		payment := emi

		// Последний взнос поглощает накопленную ошибку округления,
		// чтобы остаток долга стал ровно нулевым
		if month == input.TenureMonths {
			principal = balance
			payment = principal.Add(interest)
		}

		balance = balance.Sub(principal)

		breakdown = append(breakdown, AmortizationEntry{
			Month:     month,
			Emi:       payment,
			Principal: principal,
			Interest:  interest,
			Balance:   balance,
		})

		totalPayment = totalPayment.Add(payment)
		totalInterest = totalInterest.Add(interest)
	}

	return &AmortizationResult{
		Emi:           emi,
		TotalPayment:  totalPayment,
		TotalInterest: totalInterest,
		Breakdown:     breakdown,
	}, nil
}

// BuildBreakdownWithEmi строит разбивку графика при фиксированном EMI,
// пока остаток долга не достигнет нуля. Используется при досрочном
// погашении в режиме сокращения срока: EMI сохраняется, срок уменьшается.
func BuildBreakdownWithEmi(principal decimal.Decimal, annualRatePercent float64, emi decimal.Decimal, precision int32) ([]AmortizationEntry, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: сумма займа должна быть больше 0", ErrInvalidInput)
	}
	if emi.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: размер платежа должен быть больше 0", ErrInvalidInput)
	}
	if precision <= 0 {
		precision = defaultPrecision
	}

	monthlyRate := monthlyRateOf(annualRatePercent)

	var breakdown []AmortizationEntry
	balance := principal

	for month := 1; balance.IsPositive(); month++ {
		if month > maxScheduleLength {
			return nil, fmt.Errorf("%w: платеж слишком мал для погашения займа", ErrInvalidInput)
		}

		interest := balance.Mul(monthlyRate).Round(precision)
		principalPart := emi.Sub(interest)
		payment := emi

		// Платеж должен уменьшать основной долг, иначе займ не погасится
		if !principalPart.IsPositive() {
			return nil, fmt.Errorf("%w: платеж не покрывает начисленные проценты", ErrInvalidInput)
		}

		// Последний взнос закрывает остаток долга целиком
		if principalPart.GreaterThanOrEqual(balance) {
			principalPart = balance
			payment = principalPart.Add(interest)
		}

		balance = balance.Sub(principalPart)

		breakdown = append(breakdown, AmortizationEntry{
			Month:     month,
			Emi:       payment,
			Principal: principalPart,
			Interest:  interest,
			Balance:   balance,
		})
	}

	return breakdown, nil
}
