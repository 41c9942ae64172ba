package utils

import "sync"

// KeyedMutex обеспечивает взаимное исключение по ключу. Используется для
// блокировки займа на время одной логической операции: платеж и пересчет
// графика по одному займу не должны выполняться одновременно, операции по
// разным займам независимы.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewKeyedMutex создает новый KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[uint]*sync.Mutex),
	}
}

// Lock захватывает блокировку для ключа
func (km *KeyedMutex) Lock(key uint) {
	km.mu.Lock()
	lock, exists := km.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		km.locks[key] = lock
	}
	km.mu.Unlock()

	lock.Lock()
}

// Unlock освобождает блокировку для ключа
func (km *KeyedMutex) Unlock(key uint) {
	km.mu.Lock()
	lock, exists := km.locks[key]
	km.mu.Unlock()

	if exists {
		lock.Unlock()
	}
}
