package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Raihan-Sharif/finmate-sub002/config"
	"github.com/Raihan-Sharif/finmate-sub002/database"
	"github.com/Raihan-Sharif/finmate-sub002/services"
	"github.com/gorilla/mux"
)

// LoanController обрабатывает запросы, связанные с займами
type LoanController struct {
	loanService *services.LoanService
	precision   int32
}

// NewLoanController создает новый экземпляр LoanController
func NewLoanController(db *database.Database, cfg *config.Config, email *services.EmailService, rates *services.RateService) *LoanController {
	return &LoanController{
		loanService: services.NewLoanService(db.DB, cfg, email, rates),
		precision:   cfg.Loan.CurrencyPrecision,
	}
}

// writeServiceError сопоставляет ошибки бизнес-логики с HTTP-статусами
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrAccessDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrOverpaymentExceedsOutstanding),
		errors.Is(err, services.ErrOverpaymentExceedsPending):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, services.ErrLoanNotActive),
		errors.Is(err, services.ErrScheduleExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeJSON отправляет JSON-ответ с указанным статусом
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// CalculateAmortization обрабатывает запрос калькулятора EMI.
// Маршрут публичный: расчет не требует аутентификации и не пишет в базу.
func (c *LoanController) CalculateAmortization(w http.ResponseWriter, r *http.Request) {
	var input services.AmortizationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	input.Precision = c.precision

	result, err := services.CalculateAmortization(input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CreateLoan обрабатывает запрос на создание займа
func (c *LoanController) CreateLoan(w http.ResponseWriter, r *http.Request) {
	// Получаем ID пользователя из контекста
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Создаем DTO для запроса
	var dto services.CreateLoanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Устанавливаем ID пользователя
	dto.UserID = userID

	// Создаем займ вместе с графиком платежей
	loan, err := c.loanService.CreateLoanWithSchedule(dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, loan)
}

// GetLoans обрабатывает запрос на получение списка займов пользователя
func (c *LoanController) GetLoans(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	loans, err := c.loanService.GetLoansByUserID(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loans)
}

// GetLoan обрабатывает запрос на получение информации о займе
func (c *LoanController) GetLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	loanID, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := c.loanService.GetLoanByID(loanID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

// PayLoan обрабатывает запрос на платеж по займу
func (c *LoanController) PayLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	loanID, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var dto services.PayLoanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.UserID = userID

	result, err := c.loanService.RecordPayment(loanID, dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PrepayLoan обрабатывает запрос на досрочное погашение займа
func (c *LoanController) PrepayLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	loanID, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var dto services.PrepayLoanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.UserID = userID

	result, err := c.loanService.Prepay(loanID, dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CloseLoan обрабатывает запрос на ручное закрытие займа
func (c *LoanController) CloseLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	loanID, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	if err := c.loanService.CloseLoan(loanID, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// parseIDParam извлекает идентификатор записи из URL
func parseIDParam(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
