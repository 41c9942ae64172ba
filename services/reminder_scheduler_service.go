package services

import (
	"errors"
	"log"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/models"
	"github.com/Raihan-Sharif/finmate-sub002/utils"
	"gorm.io/gorm"
)

// ReminderSchedulerService периодически обновляет кэшированные статусы
// займов и долгов и рассылает напоминания о просроченных платежах
type ReminderSchedulerService struct {
	db         *gorm.DB
	email      *EmailService
	graceCount int
}

// NewReminderSchedulerService создает новый экземпляр ReminderSchedulerService
func NewReminderSchedulerService(db *gorm.DB, email *EmailService, graceCount int) *ReminderSchedulerService {
	return &ReminderSchedulerService{
		db:         db,
		email:      email,
		graceCount: graceCount,
	}
}

// Start запускает планировщик напоминаний
func (s *ReminderSchedulerService) Start() {
	// Обновляем кэшированные статусы каждый час
	statusTicker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-statusTicker.C:
				if err := s.refreshStatuses(); err != nil {
					log.Printf("Ошибка при обновлении статусов: %v", err)
				}
			}
		}
	}()

	// Рассылаем напоминания о просрочке каждые 24 часа
	reminderTicker := time.NewTicker(24 * time.Hour)
	go func() {
		for {
			select {
			case <-reminderTicker.C:
				if err := s.sendOverdueReminders(); err != nil {
					log.Printf("Ошибка при рассылке напоминаний: %v", err)
				}
			}
		}
	}()
}

// refreshStatuses пересчитывает кэшированные статусы из графиков и журналов.
// Статусы всегда выводятся заново при чтении, кэш нужен только для выборок по статусу
func (s *ReminderSchedulerService) refreshStatuses() error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return errors.New("ошибка при начале транзакции")
	}

	now := time.Now()

	var loans []models.Loan
	if err := tx.Where("status <> ?", models.LoanStatusClosed).
		Preload("Schedule", func(db *gorm.DB) *gorm.DB {
			return db.Order("emi_schedules.installment_number ASC")
		}).
		Find(&loans).Error; err != nil {
		tx.Rollback()
		return errors.New("ошибка при получении списка займов")
	}

	for i := range loans {
		status := DeriveLoanStatus(&loans[i], loans[i].Schedule, now, s.graceCount)
		if status == loans[i].Status {
			continue
		}
		if err := tx.Model(&loans[i]).Update("status", status).Error; err != nil {
			tx.Rollback()
			return errors.New("ошибка при обновлении статуса займа")
		}
	}

	var lendings []models.Lending
	if err := tx.Where("status <> ?", models.LendingStatusPaid).
		Find(&lendings).Error; err != nil {
		tx.Rollback()
		return errors.New("ошибка при получении списка долгов")
	}

	for i := range lendings {
		status := DeriveLendingStatus(&lendings[i], now)
		if status == lendings[i].Status {
			continue
		}
		if err := tx.Model(&lendings[i]).Update("status", status).Error; err != nil {
			tx.Rollback()
			return errors.New("ошибка при обновлении статуса долга")
		}
	}

	if err := tx.Commit().Error; err != nil {
		return errors.New("ошибка при подтверждении транзакции")
	}

	return nil
}

// sendOverdueReminders отправляет напоминания по просроченным платежам
func (s *ReminderSchedulerService) sendOverdueReminders() error {
	now := time.Now()

	var loans []models.Loan
	if err := s.db.Where("status = ?", models.LoanStatusActive).
		Preload("Schedule", func(db *gorm.DB) *gorm.DB {
			return db.Order("emi_schedules.installment_number ASC")
		}).
		Find(&loans).Error; err != nil {
		return errors.New("ошибка при получении списка займов")
	}

	for i := range loans {
		row := firstOverdueInstallment(loans[i].Schedule, now)
		if row == nil {
			continue
		}

		user, err := s.findUser(loans[i].UserID)
		if err != nil {
			log.Printf("Не удалось найти пользователя %d: %v", loans[i].UserID, err)
			continue
		}

		err = s.email.SendOverdueReminder(
			user.Email,
			"Платеж по займу просрочен",
			row.DueDate,
			row.RemainingDue(),
		)
		utils.GetMetrics().RecordLoanOperation("send_reminder", err)
		if err != nil {
			log.Printf("Не удалось отправить напоминание по займу %d: %v", loans[i].ID, err)
		}
	}

	var lendings []models.Lending
	if err := s.db.Where("status = ?", models.LendingStatusOverdue).
		Find(&lendings).Error; err != nil {
		return errors.New("ошибка при получении списка долгов")
	}

	for i := range lendings {
		if lendings[i].DueDate == nil {
			continue
		}

		user, err := s.findUser(lendings[i].UserID)
		if err != nil {
			log.Printf("Не удалось найти пользователя %d: %v", lendings[i].UserID, err)
			continue
		}

		err = s.email.SendOverdueReminder(
			user.Email,
			"Долг "+lendings[i].PersonName+" просрочен",
			*lendings[i].DueDate,
			lendings[i].PendingAmount,
		)
		utils.GetMetrics().RecordLoanOperation("send_reminder", err)
		if err != nil {
			log.Printf("Не удалось отправить напоминание по долгу %d: %v", lendings[i].ID, err)
		}
	}

	return nil
}

// firstOverdueInstallment возвращает первый неоплаченный платеж с
// наступившим сроком, либо nil
func firstOverdueInstallment(schedule []models.EmiSchedule, now time.Time) *models.EmiSchedule {
	today := startOfDay(now)
	for i := range schedule {
		if schedule[i].IsPaid {
			continue
		}
		if startOfDay(schedule[i].DueDate).Before(today) {
			return &schedule[i]
		}
		return nil
	}
	return nil
}

// findUser загружает пользователя по ID
func (s *ReminderSchedulerService) findUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
