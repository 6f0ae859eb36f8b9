package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueNotFound is returned when sending to or receiving from a queue
// that was never provisioned.
var ErrQueueNotFound = errors.New("queue: queue not found")

// MemoryProvisioner provisions in-process queues. Intended for tests and
// local development where no broker is running.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type MemoryProvisioner struct {
	mu     sync.RWMutex
	queues map[string][][]byte
}

// NewMemoryProvisioner creates an empty in-memory provisioner.
func NewMemoryProvisioner() *MemoryProvisioner {
	return &MemoryProvisioner{
		queues: make(map[string][][]byte),
	}
}

// CreateQueue provisions a queue for the device and returns its endpoint.
// Provisioning the same device twice is idempotent and preserves any
// queued messages.
func (p *MemoryProvisioner) CreateQueue(_ context.Context, deviceID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.queues[deviceID]; !ok {
		p.queues[deviceID] = nil
	}

	return fmt.Sprintf("memory://queue/%s", deviceID), nil
}

// Send appends a message to a device's queue.
func (p *MemoryProvisioner) Send(deviceID string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.queues[deviceID]; !ok {
		return ErrQueueNotFound
	}

	msg := make([]byte, len(message))
	copy(msg, message)
	p.queues[deviceID] = append(p.queues[deviceID], msg)
	return nil
}

// Receive removes and returns the oldest message from a device's queue.
// Returns ok=false when the queue exists but is empty.
func (p *MemoryProvisioner) Receive(deviceID string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	messages, exists := p.queues[deviceID]
	if !exists {
		return nil, false, ErrQueueNotFound
	}
	if len(messages) == 0 {
		return nil, false, nil
	}

	head := messages[0]
	p.queues[deviceID] = messages[1:]
	return head, true, nil
}

// QueueCount returns the number of provisioned queues.
func (p *MemoryProvisioner) QueueCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.queues)
}
