package notification

import (
	"context"
	"sync"
)

type slotKey struct {
	channel string
	kind    Kind
}

// MemorySlot keeps the slots in process memory behind a mutex.
type MemorySlot struct {
	mu    sync.Mutex
	slots map[slotKey][]byte
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{slots: make(map[slotKey][]byte)}
}

func (m *MemorySlot) Put(_ context.Context, channel string, kind Kind, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slotKey{channel, kind}] = append([]byte(nil), payload...)
	return nil
}

func (m *MemorySlot) Take(_ context.Context, channel string, kind Kind) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := slotKey{channel, kind}
	payload, ok := m.slots[key]
	delete(m.slots, key)
	return payload, ok, nil
}
