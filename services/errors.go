package services

import "errors"

// Ошибки бизнес-логики займов и долгов. Все ошибки возвращаются значениями,
// контроллеры сопоставляют их с HTTP-статусами через errors.Is.
var (
	// ErrInvalidInput возвращается при некорректных входных данных калькулятора
	ErrInvalidInput = errors.New("некорректные входные данные")
	// ErrScheduleExists возвращается при попытке повторной генерации графика
	ErrScheduleExists = errors.New("график платежей уже существует")
	// ErrScheduleNotFound возвращается, когда у займа нет графика платежей
	ErrScheduleNotFound = errors.New("график платежей не найден")
	// ErrOverpaymentExceedsOutstanding возвращается, когда платеж превышает
	// остаток задолженности по займу (излишек оформляется через Prepay)
	ErrOverpaymentExceedsOutstanding = errors.New("платеж превышает остаток задолженности")
	// ErrOverpaymentExceedsPending возвращается, когда платеж превышает
	// остаток личного долга
	ErrOverpaymentExceedsPending = errors.New("платеж превышает остаток долга")
	// ErrLoanNotActive возвращается при операции над закрытым займом
	ErrLoanNotActive = errors.New("займ не активен")
	// ErrNotFound возвращается, когда запись не найдена
	ErrNotFound = errors.New("запись не найдена")
	// ErrAccessDenied возвращается при обращении к чужой записи
	ErrAccessDenied = errors.New("доступ запрещен")
)
