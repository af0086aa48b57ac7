/*
seed.go - Demo data loader for local development

Loads a small demo branch behind the -seed flag: two employees plus a
credit sale with a synthesized schedule. Sale payloads run through the
factory so the seed exercises the same ingest path as the API.
*/
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alibek517/posledger/factory"
	"github.com/alibek517/posledger/ledger"
	"github.com/alibek517/posledger/store/sqlite"
)

var demoEmployees = []ledger.Employee{
	{ID: "demo-cashier", DisplayName: "Demo Cashier", Role: ledger.RoleCashier, BranchID: "demo-branch"},
	{ID: "demo-warehouse", DisplayName: "Demo Warehouse", Role: ledger.RoleWarehouse, BranchID: "demo-branch"},
}

var demoSalePayload = []byte(`{
	"id": "demo-sale-1",
	"branchId": "demo-branch",
	"seller": "demo-cashier",
	"paymentType": "credit",
	"principal": 1200000,
	"upfrontPaid": 300000,
	"months": 3,
	"interestRate": 0,
	"createdAt": "` + time.Now().UTC().Format(time.RFC3339) + `"
}`)

func seedDemoData(store *sqlite.Store) error {
	ctx := context.Background()

	for _, emp := range demoEmployees {
		if err := store.SaveEmployee(ctx, emp); err != nil {
			return fmt.Errorf("save employee %s: %w", emp.ID, err)
		}
	}

	// Skip the sale if a previous run already seeded it.
	if _, err := store.GetTransaction(ctx, "demo-sale-1"); err == nil {
		return nil
	}

	t, err := factory.New().ParseTransaction(demoSalePayload)
	if err != nil {
		return fmt.Errorf("parse demo sale: %w", err)
	}
	t.Schedule = ledger.BuildSchedule(t)
	for i := range t.Schedule {
		t.Schedule[i].TransactionRef = t.ID
	}

	if err := store.SaveTransaction(ctx, t); err != nil {
		return fmt.Errorf("save demo sale: %w", err)
	}
	return nil
}
