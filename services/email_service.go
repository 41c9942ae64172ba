package services

import (
	"fmt"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/config"
	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"
)

// EmailService предоставляет методы для отправки email
type EmailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
	}
}

// SendEmail отправляет email
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %v", err)
	}

	return nil
}

// SendLoanCreatedNotification отправляет уведомление о новом займе
func (s *EmailService) SendLoanCreatedNotification(to string, amount decimal.Decimal, months int, emi decimal.Decimal) error {
	subject := "Уведомление о займе"
	body := fmt.Sprintf(`
		<h2>Уведомление о займе</h2>
		<p>Сумма займа: %s</p>
		<p>Срок займа: %d месяцев</p>
		<p>Ежемесячный платеж (EMI): %s</p>
		<p>Дата: %s</p>
	`, amount.StringFixed(2), months, emi.StringFixed(2), time.Now().Format("02.01.2006 15:04:05"))

	return s.SendEmail(to, subject, body)
}

// SendLoanClosedNotification отправляет уведомление о погашении займа
func (s *EmailService) SendLoanClosedNotification(to string, loanID uint) error {
	subject := "Поздравляем! Ваш займ успешно погашен"
	body := fmt.Sprintf(`
		<h2>Поздравляем!</h2>
		<p>Ваш займ #%d был успешно погашен.</p>
		<p>Спасибо, что пользуетесь FinMate!</p>
	`, loanID)

	return s.SendEmail(to, subject, body)
}

// SendOverdueReminder отправляет напоминание о просроченном платеже
func (s *EmailService) SendOverdueReminder(to string, description string, dueDate time.Time, amount decimal.Decimal) error {
	subject := "Напоминание о просроченном платеже"
	body := fmt.Sprintf(`
		<h2>Напоминание о платеже</h2>
		<p>%s</p>
		<p>Дата платежа: %s</p>
		<p>Сумма к оплате: %s</p>
	`, description, dueDate.Format("02.01.2006"), amount.StringFixed(2))

	return s.SendEmail(to, subject, body)
}
