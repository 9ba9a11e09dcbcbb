// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avalia/credit-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	payers   map[engine.PayerID]engine.Payer
	invoices map[engine.InvoiceID]engine.Invoice
	byPayer  map[engine.PayerID][]engine.InvoiceID

	locks *engine.LockTable
}

func NewMemory() *Memory {
	return NewMemoryWithLockWait(engine.DefaultLockWait)
}

// NewMemoryWithLockWait bounds WithPayerLock acquisition; timeout tests use
// a short wait.
func NewMemoryWithLockWait(wait time.Duration) *Memory {
	return &Memory{
		payers:   make(map[engine.PayerID]engine.Payer),
		invoices: make(map[engine.InvoiceID]engine.Invoice),
		byPayer:  make(map[engine.PayerID][]engine.InvoiceID),
		locks:    engine.NewLockTable(wait),
	}
}

// =============================================================================
// PAYERS
// =============================================================================

func (m *Memory) CreatePayer(_ context.Context, p engine.Payer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payers[p.ID] = p
	return nil
}

func (m *Memory) GetPayer(_ context.Context, id engine.PayerID) (*engine.Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payers[id]
	if !ok {
		return nil, engine.ErrPayerNotFound
	}
	return &p, nil
}

func (m *Memory) UpdatePayer(_ context.Context, p engine.Payer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payers[p.ID]; !ok {
		return engine.ErrPayerNotFound
	}
	m.payers[p.ID] = p
	return nil
}

func (m *Memory) DeletePayer(_ context.Context, id engine.PayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payers[id]; !ok {
		return engine.ErrPayerNotFound
	}
	if len(m.byPayer[id]) > 0 {
		return engine.ErrPayerHasInvoices
	}
	delete(m.payers, id)
	delete(m.byPayer, id)
	return nil
}

func (m *Memory) ListPayers(_ context.Context) ([]engine.Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.Payer, 0, len(m.payers))
	for _, p := range m.payers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) InsertInvoice(_ context.Context, inv engine.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payers[inv.PayerID]; !ok {
		return engine.ErrPayerNotFound
	}
	m.invoices[inv.ID] = inv
	m.byPayer[inv.PayerID] = append(m.byPayer[inv.PayerID], inv.ID)
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id engine.InvoiceID) (*engine.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil, engine.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (m *Memory) UpdateInvoiceStatus(_ context.Context, id engine.InvoiceID, status engine.StoredStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return engine.ErrInvoiceNotFound
	}
	inv.StoredStatus = status
	m.invoices[id] = inv
	return nil
}

func (m *Memory) InvoicesByPayer(_ context.Context, payerID engine.PayerID) ([]engine.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byPayer[payerID]
	result := make([]engine.Invoice, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.invoices[id])
	}
	return result, nil
}

func (m *Memory) ListInvoices(_ context.Context) ([]engine.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		result = append(result, inv)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// PER-PAYER CRITICAL SECTION
// =============================================================================

// WithPayerLock serializes same-payer sections through the lock table.
// Rollback is simulated by snapshotting the payer's slice of state before
// fn runs and restoring it on error. Other payers stay untouched either way.
func (m *Memory) WithPayerLock(ctx context.Context, payerID engine.PayerID, fn func(engine.Store) error) error {
	release, err := m.locks.Acquire(ctx, payerID)
	if err != nil {
		return err
	}
	defer release()

	snap := m.snapshotPayer(payerID)

	if err := fn(m); err != nil {
		m.restorePayer(payerID, snap)
		return err
	}
	return nil
}

type payerSnapshot struct {
	payer     *engine.Payer
	invoiceID []engine.InvoiceID
	invoices  map[engine.InvoiceID]engine.Invoice
}

func (m *Memory) snapshotPayer(id engine.PayerID) payerSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := payerSnapshot{invoices: make(map[engine.InvoiceID]engine.Invoice)}
	if p, ok := m.payers[id]; ok {
		cp := p
		snap.payer = &cp
	}
	snap.invoiceID = append([]engine.InvoiceID{}, m.byPayer[id]...)
	for _, invID := range snap.invoiceID {
		snap.invoices[invID] = m.invoices[invID]
	}
	return snap
}

func (m *Memory) restorePayer(id engine.PayerID, snap payerSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Drop invoices inserted during the failed section.
	for _, invID := range m.byPayer[id] {
		if _, ok := snap.invoices[invID]; !ok {
			delete(m.invoices, invID)
		}
	}

	if snap.payer != nil {
		m.payers[id] = *snap.payer
	} else {
		delete(m.payers, id)
	}
	m.byPayer[id] = snap.invoiceID
	for invID, inv := range snap.invoices {
		m.invoices[invID] = inv
	}
}
