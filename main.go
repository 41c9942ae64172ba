package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/Raihan-Sharif/finmate-sub002/config"
	"github.com/Raihan-Sharif/finmate-sub002/controllers"
	"github.com/Raihan-Sharif/finmate-sub002/database"
	"github.com/Raihan-Sharif/finmate-sub002/middleware"
	"github.com/Raihan-Sharif/finmate-sub002/services"
	"github.com/gorilla/mux"
)

// healthHandler отвечает на проверку работоспособности сервиса
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func initReminderScheduler(db *database.Database, cfg *config.Config, emailService *services.EmailService) {
	// Создаем планировщик напоминаний
	scheduler := services.NewReminderSchedulerService(db.DB, emailService, cfg.Loan.GraceCount)

	// Запускаем планировщик
	scheduler.Start()
	log.Println("Планировщик напоминаний запущен")
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем подключение к базе данных
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}

	// Инициализируем сервисы email и ключевой ставки
	emailService := services.NewEmailService(cfg)
	rateService := services.NewRateService(cfg)

	// Запускаем планировщик напоминаний
	initReminderScheduler(db, cfg, emailService)

	// Создаем роутер
	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.RateLimit)

	// Инициализируем контроллеры
	authController := controllers.NewAuthController(db, cfg)
	loanController := controllers.NewLoanController(db, cfg, emailService, rateService)
	lendingController := controllers.NewLendingController(db)
	overviewController := controllers.NewOverviewController(db, cfg)

	// Публичные маршруты
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.HandleFunc("/api/auth/signUp", authController.SignUp).Methods("POST")
	router.HandleFunc("/api/auth/signIn", authController.SignIn).Methods("POST")
	router.HandleFunc("/api/calculator/amortization", loanController.CalculateAmortization).Methods("POST")

	// Защищенные маршруты
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware([]byte(authController.GetJWTKey())))
	protected.Use(middleware.LoggingMiddleware)

	// Маршруты для работы с займами
	protected.HandleFunc("/loans", loanController.CreateLoan).Methods("POST")
	protected.HandleFunc("/loans", loanController.GetLoans).Methods("GET")
	protected.HandleFunc("/loans/{id}", loanController.GetLoan).Methods("GET")
	protected.HandleFunc("/loans/{id}/payments", loanController.PayLoan).Methods("POST")
	protected.HandleFunc("/loans/{id}/prepay", loanController.PrepayLoan).Methods("POST")
	protected.HandleFunc("/loans/{id}/close", loanController.CloseLoan).Methods("POST")

	// Маршруты для работы с личными долгами
	protected.HandleFunc("/lendings", lendingController.CreateLending).Methods("POST")
	protected.HandleFunc("/lendings", lendingController.GetLendings).Methods("GET")
	protected.HandleFunc("/lendings/{id}/payments", lendingController.PayLending).Methods("POST")

	// Сводка и метрики
	protected.HandleFunc("/overview", overviewController.GetOverview).Methods("GET")
	protected.HandleFunc("/metrics", overviewController.GetMetrics).Methods("GET")

	// Запускаем сервер
	port := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Сервер запущен на порту %s", port)
	if err := http.ListenAndServe(port, router); err != nil {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}
