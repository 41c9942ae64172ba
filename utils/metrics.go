package utils

import (
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики займов
	LoansCreated       int64
	LoansClosed        int64
	PaymentsRecorded   int64
	PrepaymentsApplied int64
	LendingsCreated    int64
	RemindersSent      int64
	LastLoanOperation  time.Time

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics возвращает экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			ErrorTypes: make(map[string]int64),
		}
	})
	return metrics
}

// RecordRequest записывает метрики запроса
func (m *Metrics) RecordRequest(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if failed {
		m.FailedRequests++
	}
}

// RecordLoanOperation записывает метрики операции с займами
func (m *Metrics) RecordLoanOperation(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastLoanOperation = time.Now()

	switch operation {
	case "create_loan":
		m.LoansCreated++
	case "close_loan":
		m.LoansClosed++
	case "record_payment":
		m.PaymentsRecorded++
	case "prepay":
		m.PrepaymentsApplied++
	case "create_lending":
		m.LendingsCreated++
	case "send_reminder":
		m.RemindersSent++
	}

	if err != nil {
		m.recordErrorLocked(err)
	}
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(err)
}

// recordErrorLocked обновляет счетчики ошибок. Вызывается под мьютексом.
func (m *Metrics) recordErrorLocked(err error) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		errorType = err.Error()
	}
	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errorTypes := make(map[string]int64, len(m.ErrorTypes))
	for k, v := range m.ErrorTypes {
		errorTypes[k] = v
	}

	return map[string]interface{}{
		"total_requests":      m.TotalRequests,
		"failed_requests":     m.FailedRequests,
		"average_latency":     m.AverageLatency.String(),
		"loans_created":       m.LoansCreated,
		"loans_closed":        m.LoansClosed,
		"payments_recorded":   m.PaymentsRecorded,
		"prepayments_applied": m.PrepaymentsApplied,
		"lendings_created":    m.LendingsCreated,
		"reminders_sent":      m.RemindersSent,
		"error_count":         m.ErrorCount,
		"last_error_time":     m.LastErrorTime,
		"error_types":         errorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.LoansCreated = 0
	m.LoansClosed = 0
	m.PaymentsRecorded = 0
	m.PrepaymentsApplied = 0
	m.LendingsCreated = 0
	m.RemindersSent = 0
	m.ErrorCount = 0
	m.ErrorTypes = make(map[string]int64)
}
