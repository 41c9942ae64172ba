package services

import (
	"fmt"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PrepaymentMode представляет режим пересчета графика при досрочном погашении
type PrepaymentMode string

const (
	// PrepaymentModeReduceEmi сохраняет срок займа и уменьшает размер EMI
	PrepaymentModeReduceEmi PrepaymentMode = "reduce_emi"
	// PrepaymentModeReduceTenure сохраняет размер EMI и сокращает срок займа
	PrepaymentModeReduceTenure PrepaymentMode = "reduce_tenure"
)

// ScheduleService генерирует и перестраивает график платежей займа
type ScheduleService struct {
	db        *gorm.DB
	precision int32
}

// NewScheduleService создает новый экземпляр ScheduleService
func NewScheduleService(db *gorm.DB, precision int32) *ScheduleService {
	if precision <= 0 {
		precision = defaultPrecision
	}
	return &ScheduleService{
		db:        db,
		precision: precision,
	}
}

// InstallmentDueDate вычисляет плановую дату взноса с указанным номером.
// Если у займа задан желаемый день платежа (1-28), дата привязывается к нему.
func InstallmentDueDate(startDate time.Time, installmentNumber int, paymentDay int) time.Time {
	dueDate := startDate.AddDate(0, installmentNumber, 0)
	if paymentDay >= 1 && paymentDay <= 28 {
		dueDate = time.Date(dueDate.Year(), dueDate.Month(), paymentDay, 0, 0, 0, 0, dueDate.Location())
	}
	return dueDate
}

// BuildScheduleRows превращает разбивку калькулятора в строки графика платежей.
// Функция чистая: нумерация и даты считаются от startOffset (номер последнего
// существующего взноса; 0 при первичной генерации).
func BuildScheduleRows(loan *models.Loan, breakdown []AmortizationEntry, startOffset int) []models.EmiSchedule {
	rows := make([]models.EmiSchedule, 0, len(breakdown))
	for _, entry := range breakdown {
		number := startOffset + entry.Month
		rows = append(rows, models.EmiSchedule{
			LoanID:              loan.ID,
			InstallmentNumber:   number,
			DueDate:             InstallmentDueDate(loan.StartDate, number, loan.PaymentDay),
			EmiAmount:           entry.Emi,
			PrincipalAmount:     entry.Principal,
			InterestAmount:      entry.Interest,
			OutstandingBalance:  entry.Balance,
			IsPaid:              false,
			ActualPaymentAmount: decimal.Zero,
			LateFee:             decimal.Zero,
		})
	}
	return rows
}

// Generate создает полный график платежей для нового займа и обновляет
// EmiAmount, OutstandingAmount и NextDueDate займа. Вызывается внутри
// транзакции, переданной вызывающей стороной.
func (s *ScheduleService) Generate(tx *gorm.DB, loan *models.Loan) ([]models.EmiSchedule, error) {
	// Повторная генерация запрещена: для пересчета используется RegenerateFrom
	var existing int64
	if err := tx.Model(&models.EmiSchedule{}).Where("loan_id = ?", loan.ID).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("ошибка при проверке графика платежей: %w", err)
	}
	if existing > 0 {
		return nil, ErrScheduleExists
	}

	result, err := CalculateAmortization(AmortizationInput{
		Principal:         loan.PrincipalAmount,
		AnnualRatePercent: loan.InterestRate,
		TenureMonths:      loan.TenureMonths,
		Precision:         s.precision,
	})
	if err != nil {
		return nil, err
	}

	rows := BuildScheduleRows(loan, result.Breakdown, 0)
	for i := range rows {
		if err := tx.Create(&rows[i]).Error; err != nil {
			return nil, fmt.Errorf("ошибка при создании взноса графика: %w", err)
		}
	}

	// Синхронизируем займ с новым графиком
	loan.EmiAmount = result.Emi
	loan.OutstandingAmount = loan.PrincipalAmount
	loan.NextDueDate = &rows[0].DueDate
	if err := tx.Save(loan).Error; err != nil {
		return nil, fmt.Errorf("ошибка при обновлении займа: %w", err)
	}

	return rows, nil
}

// RegenerateFrom перестраивает неоплаченный хвост графика после досрочного
// погашения. Оплаченные взносы неизменяемы и не затрагиваются. Остаток
// основного долга уменьшается на prepaymentAmount, затем хвост графика
// пересчитывается в выбранном режиме.
func (s *ScheduleService) RegenerateFrom(tx *gorm.DB, loan *models.Loan, asOfInstallment int, prepaymentAmount decimal.Decimal, mode PrepaymentMode) ([]models.EmiSchedule, error) {
	var rows []models.EmiSchedule
	if err := tx.Where("loan_id = ?", loan.ID).Order("installment_number ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка при загрузке графика платежей: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrScheduleNotFound
	}

	// Проверяем, что хвост начиная с asOfInstallment не содержит оплаченных
	// или частично оплаченных взносов
	found := false
	for _, row := range rows {
		if row.InstallmentNumber < asOfInstallment {
			continue
		}
		found = true
		if row.IsPaid {
			return nil, fmt.Errorf("%w: взнос %d уже оплачен", ErrInvalidInput, row.InstallmentNumber)
		}
		// Частичный платеж хранится на взносе до полного погашения;
		// пересборка хвоста стерла бы уже внесенную сумму
		if row.ActualPaymentAmount.IsPositive() {
			return nil, fmt.Errorf("%w: взнос %d частично оплачен, сначала внесите остаток по нему", ErrInvalidInput, row.InstallmentNumber)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: взнос %d отсутствует в графике", ErrInvalidInput, asOfInstallment)
	}

	newPrincipal := loan.OutstandingAmount.Sub(prepaymentAmount)
	if newPrincipal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrOverpaymentExceedsOutstanding
	}

	// Пересчитываем хвост графика на остаток долга
	var breakdown []AmortizationEntry
	newEmi := loan.EmiAmount
	switch mode {
	case PrepaymentModeReduceEmi:
		remainingMonths := loan.TenureMonths - asOfInstallment + 1
		result, err := CalculateAmortization(AmortizationInput{
			Principal:         newPrincipal,
			AnnualRatePercent: loan.InterestRate,
			TenureMonths:      remainingMonths,
			Precision:         s.precision,
		})
		if err != nil {
			return nil, err
		}
		breakdown = result.Breakdown
		newEmi = result.Emi
	case PrepaymentModeReduceTenure:
		tail, err := BuildBreakdownWithEmi(newPrincipal, loan.InterestRate, loan.EmiAmount, s.precision)
		if err != nil {
			return nil, err
		}
		breakdown = tail
	default:
		return nil, fmt.Errorf("%w: неизвестный режим досрочного погашения", ErrInvalidInput)
	}

	// Удаляем старый неоплаченный хвост и вставляем новый.
	// Физическое удаление: номера взносов переиспользуются новым хвостом
	if err := tx.Unscoped().Where("loan_id = ? AND installment_number >= ?", loan.ID, asOfInstallment).
		Delete(&models.EmiSchedule{}).Error; err != nil {
		return nil, fmt.Errorf("ошибка при удалении хвоста графика: %w", err)
	}

	newRows := BuildScheduleRows(loan, breakdown, asOfInstallment-1)
	for i := range newRows {
		if err := tx.Create(&newRows[i]).Error; err != nil {
			return nil, fmt.Errorf("ошибка при создании взноса графика: %w", err)
		}
	}

	// Синхронизируем займ с новым графиком
	loan.EmiAmount = newEmi
	loan.OutstandingAmount = newPrincipal
	loan.TenureMonths = asOfInstallment - 1 + len(newRows)
	loan.NextDueDate = &newRows[0].DueDate
	if err := tx.Save(loan).Error; err != nil {
		return nil, fmt.Errorf("ошибка при обновлении займа: %w", err)
	}

	return newRows, nil
}
