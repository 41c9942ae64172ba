package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/config"
	"github.com/Raihan-Sharif/finmate-sub002/models"
	"github.com/Raihan-Sharif/finmate-sub002/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateLoanDTO представляет данные для создания займа
type CreateLoanDTO struct {
	Type              string          `json:"type" validate:"omitempty,oneof=PERSONAL HOME CAR EDUCATION PURCHASE_EMI CREDIT_CARD OTHER"`
	Principal         decimal.Decimal `json:"principal"`
	AnnualRatePercent float64         `json:"annual_rate_percent"`
	// Если true, ставка подбирается по ключевой ставке центрального банка
	SuggestRate  bool      `json:"suggest_rate"`
	TenureMonths int       `json:"tenure_months" validate:"required,gt=0"`
	StartDate    time.Time `json:"start_date"`
	PaymentDay   int       `json:"payment_day" validate:"gte=0,lte=28"`
	UserID       uint      `json:"-" validate:"required"`
}

// PayLoanDTO представляет данные платежа по займу
type PayLoanDTO struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	LateFee     decimal.Decimal `json:"late_fee"`
	UserID      uint            `json:"-" validate:"required"`
}

// PrepayLoanDTO представляет данные досрочного погашения
type PrepayLoanDTO struct {
	Amount decimal.Decimal `json:"amount"`
	Mode   string          `json:"mode" validate:"required,oneof=reduce_emi reduce_tenure"`
	UserID uint            `json:"-" validate:"required"`
}

// EmiScheduleDTO представляет взнос графика в ответе API
type EmiScheduleDTO struct {
	InstallmentNumber   int             `json:"installment_number"`
	DueDate             time.Time       `json:"due_date"`
	EmiAmount           decimal.Decimal `json:"emi_amount"`
	PrincipalAmount     decimal.Decimal `json:"principal_amount"`
	InterestAmount      decimal.Decimal `json:"interest_amount"`
	OutstandingBalance  decimal.Decimal `json:"outstanding_balance"`
	IsPaid              bool            `json:"is_paid"`
	PaymentDate         *time.Time      `json:"payment_date,omitempty"`
	ActualPaymentAmount decimal.Decimal `json:"actual_payment_amount"`
	LateFee             decimal.Decimal `json:"late_fee"`
}

// EmiPaymentDTO представляет запись журнала платежей в ответе API
type EmiPaymentDTO struct {
	ID                 uint            `json:"id"`
	PaymentDate        time.Time       `json:"payment_date"`
	Amount             decimal.Decimal `json:"amount"`
	PrincipalAmount    decimal.Decimal `json:"principal_amount"`
	InterestAmount     decimal.Decimal `json:"interest_amount"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	IsPrepayment       bool            `json:"is_prepayment"`
	LateFee            decimal.Decimal `json:"late_fee"`
}

// LoanResponseDTO представляет ответ с данными займа
type LoanResponseDTO struct {
	ID                uint             `json:"id"`
	Type              string           `json:"type"`
	PrincipalAmount   decimal.Decimal  `json:"principal_amount"`
	OutstandingAmount decimal.Decimal  `json:"outstanding_amount"`
	InterestRate      float64          `json:"interest_rate"`
	EmiAmount         decimal.Decimal  `json:"emi_amount"`
	TenureMonths      int              `json:"tenure_months"`
	StartDate         time.Time        `json:"start_date"`
	NextDueDate       *time.Time       `json:"next_due_date,omitempty"`
	LastPaymentDate   *time.Time       `json:"last_payment_date,omitempty"`
	Status            string           `json:"status"`
	Schedule          []EmiScheduleDTO `json:"schedule,omitempty"`
	Payments          []EmiPaymentDTO  `json:"payments,omitempty"`
}

// LoanPaymentResponseDTO представляет ответ на платеж по займу
type LoanPaymentResponseDTO struct {
	Loan    LoanResponseDTO `json:"loan"`
	Payment EmiPaymentDTO   `json:"payment"`
}

// LoanService предоставляет методы для работы с займами
type LoanService struct {
	db        *gorm.DB
	validator *validator.Validate
	email     *EmailService
	rates     *RateService
	schedule  *ScheduleService
	locks     *utils.KeyedMutex
	grace     int
	precision int32
}

// NewLoanService создает новый экземпляр LoanService
func NewLoanService(db *gorm.DB, cfg *config.Config, email *EmailService, rates *RateService) *LoanService {
	return &LoanService{
		db:        db,
		validator: validator.New(),
		email:     email,
		rates:     rates,
		schedule:  NewScheduleService(db, cfg.Loan.CurrencyPrecision),
		locks:     utils.NewKeyedMutex(),
		grace:     cfg.Loan.GraceCount,
		precision: cfg.Loan.CurrencyPrecision,
	}
}

// validateRequest валидирует DTO и возвращает ошибки валидации
func (s *LoanService) validateRequest(dto interface{}) error {
	if err := s.validator.Struct(dto); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
			case "gt":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше 0")
			case "gte":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не меньше "+e.Param())
			case "lte":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не больше "+e.Param())
			case "oneof":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
			default:
				errorMessages = append(errorMessages, "поле "+e.Field()+" заполнено неверно")
			}
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(errorMessages, "; "))
	}
	return nil
}

// CreateLoanWithSchedule создает займ и генерирует полный график платежей
func (s *LoanService) CreateLoanWithSchedule(dto CreateLoanDTO) (*LoanResponseDTO, error) {
	if err := s.validateRequest(dto); err != nil {
		return nil, err
	}
	if dto.Principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: сумма займа должна быть больше 0", ErrInvalidInput)
	}
	if dto.AnnualRatePercent < 0 {
		return nil, fmt.Errorf("%w: процентная ставка не может быть отрицательной", ErrInvalidInput)
	}

	rate := dto.AnnualRatePercent
	if dto.SuggestRate {
		rate = s.rates.SuggestAnnualRate()
	}

	loanType := models.LoanType(dto.Type)
	if dto.Type == "" {
		loanType = models.LoanTypePersonal
	}

	startDate := dto.StartDate
	if startDate.IsZero() {
		startDate = time.Now()
	}

	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	loan := &models.Loan{
		UserID:            dto.UserID,
		Type:              loanType,
		PrincipalAmount:   dto.Principal,
		OutstandingAmount: dto.Principal,
		InterestRate:      rate,
		TenureMonths:      dto.TenureMonths,
		StartDate:         startDate,
		PaymentDay:        dto.PaymentDay,
		Status:            models.LoanStatusActive,
	}

	if err := tx.Create(loan).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при создании займа")
	}

	// Генерируем график платежей
	rows, err := s.schedule.Generate(tx, loan)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordLoanOperation("create_loan", nil)

	// Отправляем уведомление, ошибка доставки не прерывает операцию
	var user models.User
	if err := s.db.First(&user, dto.UserID).Error; err == nil {
		if err := s.email.SendLoanCreatedNotification(user.Email, loan.PrincipalAmount, loan.TenureMonths, loan.EmiAmount); err != nil {
			utils.LogError("Ошибка при отправке уведомления о займе: %v", err)
		}
	}

	loan.Schedule = rows
	response := s.toLoanResponse(loan, true, false)
	return &response, nil
}

// loadLoanForUpdate загружает займ с графиком внутри транзакции и проверяет владельца
func (s *LoanService) loadLoanForUpdate(tx *gorm.DB, loanID, userID uint) (*models.Loan, error) {
	var loan models.Loan
	if err := tx.Preload("Schedule", func(db *gorm.DB) *gorm.DB {
		return db.Order("emi_schedules.installment_number ASC")
	}).First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.New("ошибка при получении информации о займе")
	}
	if loan.UserID != userID {
		return nil, ErrAccessDenied
	}
	return &loan, nil
}

// RecordPayment применяет платеж к займу: помечает взносы оплаченными,
// добавляет запись в журнал и обновляет остаток задолженности
func (s *LoanService) RecordPayment(loanID uint, dto PayLoanDTO) (*LoanPaymentResponseDTO, error) {
	if err := s.validateRequest(dto); err != nil {
		return nil, err
	}

	// Платеж и пересчет графика по одному займу не должны пересекаться
	s.locks.Lock(loanID)
	defer s.locks.Unlock(loanID)

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	loan, err := s.loadLoanForUpdate(tx, loanID, dto.UserID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if DeriveLoanStatus(loan, loan.Schedule, time.Now(), s.grace) == models.LoanStatusClosed {
		tx.Rollback()
		return nil, ErrLoanNotActive
	}

	paymentDate := dto.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	result, err := ApplyLoanPayment(loan, loan.Schedule, LoanPaymentInput{
		Amount:      dto.Amount,
		PaymentDate: paymentDate,
		LateFee:     dto.LateFee,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Сохраняем изменившиеся взносы графика
	for _, row := range result.UpdatedRows {
		if err := tx.Save(row).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("ошибка при обновлении взноса графика")
		}
	}

	// Добавляем запись в журнал платежей
	entry := result.LedgerEntry
	if err := tx.Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при сохранении платежа")
	}

	// Пересчитываем кэшированный статус из журнала
	loan.Status = DeriveLoanStatus(loan, loan.Schedule, time.Now(), s.grace)
	if err := tx.Save(loan).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при обновлении займа")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordLoanOperation("record_payment", nil)

	// Если займ погашен, отправляем уведомление
	if loan.Status == models.LoanStatusClosed {
		utils.GetMetrics().RecordLoanOperation("close_loan", nil)
		var user models.User
		if err := s.db.First(&user, loan.UserID).Error; err == nil {
			if err := s.email.SendLoanClosedNotification(user.Email, loan.ID); err != nil {
				utils.LogError("Ошибка при отправке уведомления о погашении: %v", err)
			}
		}
	}

	return &LoanPaymentResponseDTO{
		Loan:    s.toLoanResponse(loan, true, false),
		Payment: toEmiPaymentDTO(entry),
	}, nil
}

// Prepay применяет досрочное погашение: уменьшает основной долг и
// перестраивает неоплаченный хвост графика в выбранном режиме
func (s *LoanService) Prepay(loanID uint, dto PrepayLoanDTO) (*LoanPaymentResponseDTO, error) {
	if err := s.validateRequest(dto); err != nil {
		return nil, err
	}
	if dto.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: сумма досрочного погашения должна быть больше 0", ErrInvalidInput)
	}

	s.locks.Lock(loanID)
	defer s.locks.Unlock(loanID)

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	loan, err := s.loadLoanForUpdate(tx, loanID, dto.UserID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if DeriveLoanStatus(loan, loan.Schedule, time.Now(), s.grace) == models.LoanStatusClosed {
		tx.Rollback()
		return nil, ErrLoanNotActive
	}

	// Хвост перестраивается с первого неоплаченного взноса
	asOf := 0
	for i := range loan.Schedule {
		if !loan.Schedule[i].IsPaid {
			asOf = loan.Schedule[i].InstallmentNumber
			break
		}
	}
	if asOf == 0 {
		tx.Rollback()
		return nil, ErrLoanNotActive
	}

	newRows, err := s.schedule.RegenerateFrom(tx, loan, asOf, dto.Amount, PrepaymentMode(dto.Mode))
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Фиксируем досрочное погашение в журнале: вся сумма идет в основной долг
	now := time.Now()
	entry := models.EmiPayment{
		LoanID:             loan.ID,
		PaymentDate:        now,
		Amount:             dto.Amount,
		PrincipalAmount:    dto.Amount,
		InterestAmount:     decimal.Zero,
		OutstandingBalance: loan.OutstandingAmount,
		IsPrepayment:       true,
		LateFee:            decimal.Zero,
	}
	if err := tx.Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при сохранении платежа")
	}

	// Собираем актуальный график: оплаченная голова плюс новый хвост
	merged := make([]models.EmiSchedule, 0, asOf-1+len(newRows))
	for i := range loan.Schedule {
		if loan.Schedule[i].InstallmentNumber < asOf {
			merged = append(merged, loan.Schedule[i])
		}
	}
	merged = append(merged, newRows...)
	loan.Schedule = merged

	loan.LastPaymentDate = &now
	loan.Status = DeriveLoanStatus(loan, loan.Schedule, now, s.grace)
	if err := tx.Save(loan).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при обновлении займа")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordLoanOperation("prepay", nil)
	return &LoanPaymentResponseDTO{
		Loan:    s.toLoanResponse(loan, true, false),
		Payment: toEmiPaymentDTO(entry),
	}, nil
}

// CloseLoan закрывает займ вручную. Полностью погашенный займ помечается
// закрытым; непогашенный мягко удаляется вместе с графиком и журналом.
func (s *LoanService) CloseLoan(loanID, userID uint) error {
	s.locks.Lock(loanID)
	defer s.locks.Unlock(loanID)

	tx := s.db.Begin()
	if tx.Error != nil {
		return errors.New("ошибка при начале транзакции")
	}

	loan, err := s.loadLoanForUpdate(tx, loanID, userID)
	if err != nil {
		tx.Rollback()
		return err
	}

	if !loan.OutstandingAmount.IsPositive() {
		loan.Status = models.LoanStatusClosed
		if err := tx.Save(loan).Error; err != nil {
			tx.Rollback()
			return errors.New("ошибка при обновлении займа")
		}
	} else {
		if err := tx.Delete(loan).Error; err != nil {
			tx.Rollback()
			return errors.New("ошибка при закрытии займа")
		}
	}

	if err := tx.Commit().Error; err != nil {
		return errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordLoanOperation("close_loan", nil)
	return nil
}

// GetLoanByID возвращает займ с графиком и журналом платежей
func (s *LoanService) GetLoanByID(loanID, userID uint) (*LoanResponseDTO, error) {
	var loan models.Loan
	if err := s.db.Preload("Schedule", func(db *gorm.DB) *gorm.DB {
		return db.Order("emi_schedules.installment_number ASC")
	}).Preload("Payments", func(db *gorm.DB) *gorm.DB {
		return db.Order("emi_payments.created_at ASC")
	}).First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.New("ошибка при получении информации о займе")
	}
	if loan.UserID != userID {
		return nil, ErrAccessDenied
	}

	// Статус выводится из журнала при каждом чтении
	loan.Status = DeriveLoanStatus(&loan, loan.Schedule, time.Now(), s.grace)

	response := s.toLoanResponse(&loan, true, true)
	return &response, nil
}

// GetLoansByUserID возвращает все займы пользователя
func (s *LoanService) GetLoansByUserID(userID uint) ([]LoanResponseDTO, error) {
	var loans []models.Loan
	if err := s.db.Where("user_id = ?", userID).
		Preload("Schedule", func(db *gorm.DB) *gorm.DB {
			return db.Order("emi_schedules.installment_number ASC")
		}).
		Find(&loans).Error; err != nil {
		return nil, errors.New("ошибка при получении списка займов")
	}

	responses := make([]LoanResponseDTO, 0, len(loans))
	for i := range loans {
		loans[i].Status = DeriveLoanStatus(&loans[i], loans[i].Schedule, time.Now(), s.grace)
		responses = append(responses, s.toLoanResponse(&loans[i], false, false))
	}
	return responses, nil
}

// toLoanResponse конвертирует модель Loan в DTO
func (s *LoanService) toLoanResponse(loan *models.Loan, withSchedule, withPayments bool) LoanResponseDTO {
	response := LoanResponseDTO{
		ID:                loan.ID,
		Type:              string(loan.Type),
		PrincipalAmount:   loan.PrincipalAmount,
		OutstandingAmount: loan.OutstandingAmount,
		InterestRate:      loan.InterestRate,
		EmiAmount:         loan.EmiAmount,
		TenureMonths:      loan.TenureMonths,
		StartDate:         loan.StartDate,
		NextDueDate:       loan.NextDueDate,
		LastPaymentDate:   loan.LastPaymentDate,
		Status:            string(loan.Status),
	}

	if withSchedule {
		response.Schedule = make([]EmiScheduleDTO, 0, len(loan.Schedule))
		for i := range loan.Schedule {
			response.Schedule = append(response.Schedule, toEmiScheduleDTO(&loan.Schedule[i]))
		}
	}
	if withPayments {
		response.Payments = make([]EmiPaymentDTO, 0, len(loan.Payments))
		for i := range loan.Payments {
			response.Payments = append(response.Payments, toEmiPaymentDTO(loan.Payments[i]))
		}
	}

	return response
}

// toEmiScheduleDTO конвертирует взнос графика в DTO
func toEmiScheduleDTO(row *models.EmiSchedule) EmiScheduleDTO {
	return EmiScheduleDTO{
		InstallmentNumber:   row.InstallmentNumber,
		DueDate:             row.DueDate,
		EmiAmount:           row.EmiAmount,
		PrincipalAmount:     row.PrincipalAmount,
		InterestAmount:      row.InterestAmount,
		OutstandingBalance:  row.OutstandingBalance,
		IsPaid:              row.IsPaid,
		PaymentDate:         row.PaymentDate,
		ActualPaymentAmount: row.ActualPaymentAmount,
		LateFee:             row.LateFee,
	}
}

// toEmiPaymentDTO конвертирует запись журнала в DTO
func toEmiPaymentDTO(entry models.EmiPayment) EmiPaymentDTO {
	return EmiPaymentDTO{
		ID:                 entry.ID,
		PaymentDate:        entry.PaymentDate,
		Amount:             entry.Amount,
		PrincipalAmount:    entry.PrincipalAmount,
		InterestAmount:     entry.InterestAmount,
		OutstandingBalance: entry.OutstandingBalance,
		IsPrepayment:       entry.IsPrepayment,
		LateFee:            entry.LateFee,
	}
}
