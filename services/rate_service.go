package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/config"
	"github.com/Raihan-Sharif/finmate-sub002/utils"
	"github.com/beevik/etree"
)

// RateService получает ключевую ставку центрального банка и предлагает
// ставку для новых займов, когда пользователь не указал ее сам
type RateService struct {
	httpClient *http.Client
	margin     float64
	fallback   float64
}

// NewRateService создает новый экземпляр RateService
func NewRateService(cfg *config.Config) *RateService {
	return &RateService{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		margin:   cfg.Loan.RateMargin,
		fallback: cfg.Loan.DefaultAnnualRate,
	}
}

// buildSOAPRequest формирует SOAP-запрос для получения ключевой ставки
// за последние 30 дней
func buildSOAPRequest() string {
	fromDate := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	toDate := time.Now().Format("2006-01-02")
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
        <soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
            <soap12:Body>
                <KeyRate xmlns="http://web.cbr.ru/">
                    <fromDate>%s</fromDate>
                    <ToDate>%s</ToDate>
                </KeyRate>
            </soap12:Body>
        </soap12:Envelope>`, fromDate, toDate)
}

// parseKeyRateResponse парсит XML-ответ и извлекает последнее значение ставки
func parseKeyRateResponse(rawBody []byte) (float64, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return 0, fmt.Errorf("ошибка при разборе XML: %v", err)
	}

	elements := doc.FindElements("//Rate")
	if len(elements) == 0 {
		return 0, errors.New("ставка не найдена в ответе")
	}

	// Последний элемент соответствует самой свежей дате
	text := strings.TrimSpace(elements[len(elements)-1].Text())
	rate, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("ошибка при разборе значения ставки: %v", err)
	}

	return rate, nil
}

// GetCentralBankRate возвращает текущую ключевую ставку центрального банка
func (s *RateService) GetCentralBankRate() (float64, error) {
	req, err := http.NewRequest(
		"POST",
		"https://www.cbr.ru/DailyInfoWebServ/DailyInfo.asmx",
		bytes.NewBufferString(buildSOAPRequest()),
	)
	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/KeyRate")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ошибка при выполнении HTTP-запроса: %v", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("ошибка при чтении ответа: %v", err)
	}

	return parseKeyRateResponse(rawBody)
}

// SuggestAnnualRate возвращает ставку для нового займа: ключевая ставка
// плюс маржа, либо значение из конфигурации, если сервис недоступен
func (s *RateService) SuggestAnnualRate() float64 {
	rate, err := s.GetCentralBankRate()
	if err != nil {
		utils.LogError("Не удалось получить ключевую ставку, используется значение по умолчанию: %v", err)
		return s.fallback
	}
	return rate + s.margin
}
