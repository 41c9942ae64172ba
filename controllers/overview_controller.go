package controllers

import (
	"net/http"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/config"
	"github.com/Raihan-Sharif/finmate-sub002/database"
	"github.com/Raihan-Sharif/finmate-sub002/services"
	"github.com/Raihan-Sharif/finmate-sub002/utils"
)

// OverviewController обрабатывает запросы сводки и метрик
type OverviewController struct {
	overviewService *services.OverviewService
}

// NewOverviewController создает новый экземпляр OverviewController
func NewOverviewController(db *database.Database, cfg *config.Config) *OverviewController {
	return &OverviewController{
		overviewService: services.NewOverviewService(db.DB, cfg.Loan.GraceCount),
	}
}

// GetOverview обрабатывает запрос сводки по займам и долгам пользователя
func (c *OverviewController) GetOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	overview, err := c.overviewService.GetOverview(userID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, overview)
}

// GetMetrics возвращает снимок метрик приложения
func (c *OverviewController) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, utils.GetMetrics().GetMetricsSnapshot())
}
