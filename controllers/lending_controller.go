package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/Raihan-Sharif/finmate-sub002/database"
	"github.com/Raihan-Sharif/finmate-sub002/services"
)

// LendingController обрабатывает запросы, связанные с личными долгами
type LendingController struct {
	lendingService *services.LendingService
}

// NewLendingController создает новый экземпляр LendingController
func NewLendingController(db *database.Database) *LendingController {
	return &LendingController{
		lendingService: services.NewLendingService(db.DB),
	}
}

// CreateLending обрабатывает запрос на создание личного долга
func (c *LendingController) CreateLending(w http.ResponseWriter, r *http.Request) {
	// Получаем ID пользователя из контекста
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var dto services.CreateLendingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.UserID = userID

	lending, err := c.lendingService.Create(dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, lending)
}

// GetLendings обрабатывает запрос на получение списка долгов пользователя
func (c *LendingController) GetLendings(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	lendings, err := c.lendingService.GetLendingsByUserID(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lendings)
}

// PayLending обрабатывает запрос на платеж по личному долгу
func (c *LendingController) PayLending(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	lendingID, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "Invalid lending ID", http.StatusBadRequest)
		return
	}

	var dto services.PayLendingDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.UserID = userID

	result, err := c.lendingService.RecordPayment(lendingID, dto)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
