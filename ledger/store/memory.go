// Package store provides in-memory implementations of the ledger store
// interfaces, used by tests and local development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/alibek517/posledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[ledger.TransactionID]ledger.Transaction
	schedules    map[ledger.TransactionID][]ledger.Obligation
	repayments   []ledger.RepaymentRecord
	repaymentIDs map[string]bool
	defectives   []ledger.DefectiveLogEntry
	employees    map[ledger.ActorID]ledger.Employee
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
		schedules:    make(map[ledger.TransactionID][]ledger.Obligation),
		repaymentIDs: make(map[string]bool),
		employees:    make(map[ledger.ActorID]ledger.Employee),
	}
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// SaveTransaction stores a sale and its schedule (if any).
func (m *Memory) SaveTransaction(_ context.Context, t ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions[t.ID] = t
	if len(t.Schedule) > 0 {
		m.schedules[t.ID] = append([]ledger.Obligation(nil), t.Schedule...)
	}
	return nil
}

func (m *Memory) FetchTransactions(_ context.Context, branch ledger.BranchID, window ledger.Window) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Transaction
	for _, t := range m.transactions {
		if branch != "" && t.BranchID != branch {
			continue
		}
		if !window.Contains(t.CreatedAt) {
			continue
		}
		t.Schedule = append([]ledger.Obligation(nil), m.schedules[t.ID]...)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	t.Schedule = append([]ledger.Obligation(nil), m.schedules[id]...)
	return t, nil
}

func (m *Memory) FetchSchedule(_ context.Context, id ledger.TransactionID) ([]ledger.Obligation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sched := append([]ledger.Obligation(nil), m.schedules[id]...)
	sort.Slice(sched, func(i, j int) bool { return sched[i].Sequence < sched[j].Sequence })
	return sched, nil
}

func (m *Memory) PersistObligation(_ context.Context, ob ledger.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sched := m.schedules[ob.TransactionRef]
	for i := range sched {
		if sched[i].Sequence == ob.Sequence {
			sched[i] = ob
			return nil
		}
	}
	m.schedules[ob.TransactionRef] = append(sched, ob)
	return nil
}

// MarkReturned flips a sale's status. Used by the returns workflow.
func (m *Memory) MarkReturned(_ context.Context, id ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transactions[id]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	t.Status = ledger.StatusReturned
	m.transactions[id] = t
	return nil
}

// =============================================================================
// REPAYMENT STORE (append-only)
// =============================================================================

func (m *Memory) AppendRepayment(_ context.Context, rec ledger.RepaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID != "" && m.repaymentIDs[rec.ID] {
		return ledger.ErrDuplicateRepayment
	}
	m.repayments = append(m.repayments, rec)
	if rec.ID != "" {
		m.repaymentIDs[rec.ID] = true
	}
	return nil
}

func (m *Memory) FetchRepaymentsByTransaction(_ context.Context, id ledger.TransactionID) ([]ledger.RepaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.RepaymentRecord
	for _, r := range m.repayments {
		if r.TransactionRef == id {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

func (m *Memory) FetchRepayments(_ context.Context, branch ledger.BranchID, window ledger.Window) ([]ledger.RepaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.RepaymentRecord
	for _, r := range m.repayments {
		if branch != "" && r.BranchID != branch {
			continue
		}
		if !window.Contains(r.PaidAt) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// =============================================================================
// DEFECTIVE LOG STORE
// =============================================================================

func (m *Memory) AppendDefectiveLog(_ context.Context, entry ledger.DefectiveLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defectives = append(m.defectives, entry)
	return nil
}

func (m *Memory) FetchDefectiveLogs(_ context.Context, branch ledger.BranchID, window ledger.Window) ([]ledger.DefectiveLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.DefectiveLogEntry
	for _, e := range m.defectives {
		if branch != "" && e.BranchID != branch {
			continue
		}
		if !window.Contains(e.CreatedAt) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp ledger.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) ListEmployees(_ context.Context, branch ledger.BranchID) ([]ledger.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Employee
	for _, e := range m.employees {
		if branch != "" && e.BranchID != branch {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Directory(_ context.Context) (ledger.Directory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(ledger.DirectoryMap, len(m.employees))
	for id, e := range m.employees {
		snapshot[id] = e
	}
	return snapshot, nil
}
