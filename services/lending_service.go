package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/models"
	"github.com/Raihan-Sharif/finmate-sub002/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateLendingDTO представляет данные для создания личного долга
type CreateLendingDTO struct {
	PersonName   string          `json:"person_name" validate:"required,min=2,max=100"`
	Amount       decimal.Decimal `json:"amount"`
	InterestRate *float64        `json:"interest_rate,omitempty"`
	Date         time.Time       `json:"date"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Type         string          `json:"type" validate:"required,oneof=LENT BORROWED"`
	UserID       uint            `json:"-" validate:"required"`
}

// PayLendingDTO представляет данные платежа по личному долгу
type PayLendingDTO struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,max=50"`
	UserID        uint            `json:"-" validate:"required"`
}

// LendingPaymentDTO представляет запись журнала платежей по долгу
type LendingPaymentDTO struct {
	ID            uint            `json:"id"`
	PaymentDate   time.Time       `json:"payment_date"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

// LendingResponseDTO представляет ответ с данными личного долга
type LendingResponseDTO struct {
	ID            uint                `json:"id"`
	PersonName    string              `json:"person_name"`
	Amount        decimal.Decimal     `json:"amount"`
	PendingAmount decimal.Decimal     `json:"pending_amount"`
	InterestRate  *float64            `json:"interest_rate,omitempty"`
	Date          time.Time           `json:"date"`
	DueDate       *time.Time          `json:"due_date,omitempty"`
	Type          string              `json:"type"`
	Status        string              `json:"status"`
	Payments      []LendingPaymentDTO `json:"payments,omitempty"`
}

// LendingPaymentResponseDTO представляет ответ на платеж по долгу
type LendingPaymentResponseDTO struct {
	Lending LendingResponseDTO `json:"lending"`
	Payment LendingPaymentDTO  `json:"payment"`
}

// LendingService предоставляет методы для работы с личными долгами
type LendingService struct {
	db        *gorm.DB
	validator *validator.Validate
	locks     *utils.KeyedMutex
}

// NewLendingService создает новый экземпляр LendingService
func NewLendingService(db *gorm.DB) *LendingService {
	return &LendingService{
		db:        db,
		validator: validator.New(),
		locks:     utils.NewKeyedMutex(),
	}
}

// validateRequest валидирует DTO и возвращает ошибки валидации
func (s *LendingService) validateRequest(dto interface{}) error {
	if err := s.validator.Struct(dto); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
			case "min":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно содержать минимум "+e.Param()+" символов")
			case "max":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно содержать максимум "+e.Param()+" символов")
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

// Create создает новый личный долг
func (s *LendingService) Create(dto CreateLendingDTO) (*LendingResponseDTO, error) {
	if err := s.validateRequest(dto); err != nil {
		return nil, err
	}
	if dto.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: сумма долга должна быть больше 0", ErrInvalidInput)
	}

	date := dto.Date
	if date.IsZero() {
		date = time.Now()
	}

	lending := &models.Lending{
		UserID:        dto.UserID,
		PersonName:    dto.PersonName,
		Amount:        dto.Amount,
		PendingAmount: dto.Amount,
		InterestRate:  dto.InterestRate,
		Date:          date,
		DueDate:       dto.DueDate,
		Type:          models.LendingType(dto.Type),
	}
	lending.Status = DeriveLendingStatus(lending, time.Now())

	if err := s.db.Create(lending).Error; err != nil {
		return nil, errors.New("ошибка при создании долга")
	}

	utils.GetMetrics().RecordLoanOperation("create_lending", nil)

	response := toLendingResponse(lending, nil)
	return &response, nil
}

// RecordPayment применяет платеж к личному долгу и пересчитывает остаток
func (s *LendingService) RecordPayment(lendingID uint, dto PayLendingDTO) (*LendingPaymentResponseDTO, error) {
	if err := s.validateRequest(dto); err != nil {
		return nil, err
	}

	// Два платежа по одному долгу не должны пересекаться:
	// остаток пересчитывается по схеме чтение-изменение-запись
	s.locks.Lock(lendingID)
	defer s.locks.Unlock(lendingID)

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	var lending models.Lending
	if err := tx.First(&lending, lendingID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.New("ошибка при получении информации о долге")
	}
	if lending.UserID != dto.UserID {
		tx.Rollback()
		return nil, ErrAccessDenied
	}

	paymentDate := dto.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	entry, err := ApplyLendingPayment(&lending, LendingPaymentInput{
		Amount:        dto.Amount,
		PaymentDate:   paymentDate,
		PaymentMethod: dto.PaymentMethod,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Create(entry).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при сохранении платежа")
	}

	// Пересчитываем кэшированный статус из журнала
	lending.Status = DeriveLendingStatus(&lending, time.Now())
	if err := tx.Save(&lending).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при обновлении долга")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	return &LendingPaymentResponseDTO{
		Lending: toLendingResponse(&lending, nil),
		Payment: toLendingPaymentDTO(entry),
	}, nil
}

// GetLendingsByUserID возвращает все личные долги пользователя
func (s *LendingService) GetLendingsByUserID(userID uint) ([]LendingResponseDTO, error) {
	var lendings []models.Lending
	if err := s.db.Where("user_id = ?", userID).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("lending_payments.payment_date ASC")
		}).
		Find(&lendings).Error; err != nil {
		return nil, errors.New("ошибка при получении списка долгов")
	}

	responses := make([]LendingResponseDTO, 0, len(lendings))
	for i := range lendings {
		// Статус выводится из журнала при каждом чтении
		lendings[i].Status = DeriveLendingStatus(&lendings[i], time.Now())
		responses = append(responses, toLendingResponse(&lendings[i], lendings[i].Payments))
	}
	return responses, nil
}

// toLendingResponse конвертирует модель Lending в DTO
func toLendingResponse(lending *models.Lending, payments []models.LendingPayment) LendingResponseDTO {
	response := LendingResponseDTO{
		ID:            lending.ID,
		PersonName:    lending.PersonName,
		Amount:        lending.Amount,
		PendingAmount: lending.PendingAmount,
		InterestRate:  lending.InterestRate,
		Date:          lending.Date,
		DueDate:       lending.DueDate,
		Type:          string(lending.Type),
		Status:        string(lending.Status),
	}
	for i := range payments {
		response.Payments = append(response.Payments, toLendingPaymentDTO(&payments[i]))
	}
	return response
}

// toLendingPaymentDTO конвертирует платеж по долгу в DTO
func toLendingPaymentDTO(entry *models.LendingPayment) LendingPaymentDTO {
	return LendingPaymentDTO{
		ID:            entry.ID,
		PaymentDate:   entry.PaymentDate,
		Amount:        entry.Amount,
		PaymentMethod: entry.PaymentMethod,
	}
}
