package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalia/credit-engine/engine"
	"github.com/avalia/credit-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := sqlite.New(path, engine.DefaultLockWait)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPayer(id string, status engine.RiskStatus, quota int64) engine.Payer {
	return engine.Payer{
		ID:            engine.PayerID(id),
		LegalName:     "Acme Distribution SAS",
		ContactEmail:  "credit@acme.example",
		RiskStatus:    status,
		ApprovedQuota: engine.NewMoney(quota),
		CreatedAt:     engine.NewDate(2025, time.January, 1),
	}
}

func testInvoice(id, payerID string, amount int64) engine.Invoice {
	return engine.Invoice{
		ID:               engine.InvoiceID(id),
		Number:           "F-001",
		PayerID:          engine.PayerID(payerID),
		ClientID:         "client-1",
		Amount:           engine.NewMoney(amount),
		IssueDate:        engine.NewDate(2025, time.June, 1),
		DueDate:          engine.NewDate(2025, time.July, 1),
		StoredStatus:     engine.StatusCurrent,
		IsGuaranteed:     true,
		GuaranteedAmount: engine.NewMoney(amount),
		CreatedAt:        engine.NewDate(2025, time.June, 1),
	}
}

// =============================================================================
// PAYERS
// =============================================================================

func TestPayerRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := testPayer("payer-1", engine.RiskApproved, 1_000_000)
	require.NoError(t, s.CreatePayer(ctx, p))

	got, err := s.GetPayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.LegalName, got.LegalName)
	assert.Equal(t, p.ContactEmail, got.ContactEmail)
	assert.Equal(t, engine.RiskApproved, got.RiskStatus)
	assert.True(t, got.ApprovedQuota.Equal(p.ApprovedQuota))
	assert.True(t, got.CreatedAt.Equal(p.CreatedAt))
}

func TestGetPayer_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPayer(context.Background(), "ghost")
	assert.ErrorIs(t, err, engine.ErrPayerNotFound)
}

func TestUpdatePayer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := testPayer("payer-1", engine.RiskPending, 0)
	require.NoError(t, s.CreatePayer(ctx, p))

	p.RiskStatus = engine.RiskApproved
	p.ApprovedQuota = engine.NewMoney(2_500_000)
	require.NoError(t, s.UpdatePayer(ctx, p))

	got, err := s.GetPayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.RiskApproved, got.RiskStatus)
	assert.True(t, got.ApprovedQuota.Equal(engine.NewMoney(2_500_000)))
}

func TestUpdatePayer_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdatePayer(context.Background(), testPayer("ghost", engine.RiskPending, 0))
	assert.ErrorIs(t, err, engine.ErrPayerNotFound)
}

func TestListPayers_OrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testPayer("payer-a", engine.RiskPending, 0)
	b := testPayer("payer-b", engine.RiskPending, 0)
	b.CreatedAt = engine.NewDate(2025, time.February, 1)
	require.NoError(t, s.CreatePayer(ctx, b))
	require.NoError(t, s.CreatePayer(ctx, a))

	payers, err := s.ListPayers(ctx)
	require.NoError(t, err)
	require.Len(t, payers, 2)
	assert.Equal(t, engine.PayerID("payer-a"), payers[0].ID)
	assert.Equal(t, engine.PayerID("payer-b"), payers[1].ID)
}

func TestDeletePayer_BlockedWhileInvoicesExist(t *testing.T) {
	// GIVEN: A payer with one invoice, even a paid one
	// WHEN: Deleting the payer
	// THEN: ErrPayerHasInvoices; the payer row stays

	s := newTestStore(t)
	ctx := context.Background()

	p := testPayer("payer-1", engine.RiskApproved, 1_000_000)
	require.NoError(t, s.CreatePayer(ctx, p))
	require.NoError(t, s.InsertInvoice(ctx, testInvoice("inv-1", "payer-1", 500_000)))
	require.NoError(t, s.UpdateInvoiceStatus(ctx, "inv-1", engine.StatusPaid))

	err := s.DeletePayer(ctx, p.ID)
	assert.ErrorIs(t, err, engine.ErrPayerHasInvoices)

	_, err = s.GetPayer(ctx, p.ID)
	assert.NoError(t, err)
}

func TestDeletePayer_WithoutInvoices(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := testPayer("payer-1", engine.RiskPending, 0)
	require.NoError(t, s.CreatePayer(ctx, p))
	require.NoError(t, s.DeletePayer(ctx, p.ID))

	_, err := s.GetPayer(ctx, p.ID)
	assert.ErrorIs(t, err, engine.ErrPayerNotFound)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestInvoiceRoundtrip_PreservesDecimalAmounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePayer(ctx, testPayer("payer-1", engine.RiskApproved, 2_000_000)))

	inv := testInvoice("inv-1", "payer-1", 0)
	inv.Amount = engine.MustMoney("1234567.89")
	inv.GuaranteedAmount = engine.MustMoney("1234567.89")
	require.NoError(t, s.InsertInvoice(ctx, inv))

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "1234567.89", got.Amount.String())
	assert.Equal(t, "1234567.89", got.GuaranteedAmount.String())
	assert.True(t, got.IsGuaranteed)
	assert.True(t, got.IssueDate.Equal(inv.IssueDate))
	assert.True(t, got.DueDate.Equal(inv.DueDate))
}

func TestGetInvoice_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetInvoice(context.Background(), "ghost")
	assert.ErrorIs(t, err, engine.ErrInvoiceNotFound)
}

func TestUpdateInvoiceStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePayer(ctx, testPayer("payer-1", engine.RiskApproved, 2_000_000)))
	require.NoError(t, s.InsertInvoice(ctx, testInvoice("inv-1", "payer-1", 500_000)))

	require.NoError(t, s.UpdateInvoiceStatus(ctx, "inv-1", engine.StatusPaid))

	got, err := s.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaid, got.StoredStatus)

	err = s.UpdateInvoiceStatus(ctx, "ghost", engine.StatusPaid)
	assert.ErrorIs(t, err, engine.ErrInvoiceNotFound)
}

func TestInvoicesByPayer_FiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePayer(ctx, testPayer("payer-1", engine.RiskApproved, 2_000_000)))
	require.NoError(t, s.CreatePayer(ctx, testPayer("payer-2", engine.RiskApproved, 2_000_000)))
	require.NoError(t, s.InsertInvoice(ctx, testInvoice("inv-1", "payer-1", 100_000)))
	require.NoError(t, s.InsertInvoice(ctx, testInvoice("inv-2", "payer-2", 200_000)))
	require.NoError(t, s.InsertInvoice(ctx, testInvoice("inv-3", "payer-1", 300_000)))

	invoices, err := s.InvoicesByPayer(ctx, "payer-1")
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, engine.InvoiceID("inv-1"), invoices[0].ID)
	assert.Equal(t, engine.InvoiceID("inv-3"), invoices[1].ID)

	all, err := s.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// PER-PAYER CRITICAL SECTION
// =============================================================================

func TestWithPayerLock_CommitsOnNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePayer(ctx, testPayer("payer-1", engine.RiskApproved, 2_000_000)))

	err := s.WithPayerLock(ctx, "payer-1", func(tx engine.Store) error {
		return tx.InsertInvoice(ctx, testInvoice("inv-1", "payer-1", 500_000))
	})
	require.NoError(t, err)

	_, err = s.GetInvoice(ctx, "inv-1")
	assert.NoError(t, err)
}

func TestWithPayerLock_RollsBackOnError(t *testing.T) {
	// GIVEN: A section that writes and then fails
	// WHEN: fn returns an error
	// THEN: The write never becomes visible

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreatePayer(ctx, testPayer("payer-1", engine.RiskApproved, 2_000_000)))

	boom := errors.New("allocation aborted")
	err := s.WithPayerLock(ctx, "payer-1", func(tx engine.Store) error {
		if err := tx.InsertInvoice(ctx, testInvoice("inv-1", "payer-1", 500_000)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetInvoice(ctx, "inv-1")
	assert.ErrorIs(t, err, engine.ErrInvoiceNotFound)
}

func TestWithPayerLock_BoundedWaitTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := sqlite.New(path, 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	require.NoError(t, s.CreatePayer(ctx, testPayer("payer-1", engine.RiskApproved, 2_000_000)))

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.WithPayerLock(ctx, "payer-1", func(engine.Store) error {
			close(holding)
			time.Sleep(300 * time.Millisecond)
			return nil
		})
	}()

	<-holding
	err = s.WithPayerLock(ctx, "payer-1", func(engine.Store) error { return nil })
	<-done

	assert.ErrorIs(t, err, engine.ErrLockTimeout)
	assert.True(t, engine.IsRetryable(err))
}

func TestWithPayerLock_ConcurrentAllocationsNeverOvercommit(t *testing.T) {
	// GIVEN: Quota 1,000,000 and 6 concurrent 300,000 submissions against SQLite
	// WHEN: All run through the submission boundary at once
	// THEN: Granted guarantees sum to exactly the quota

	s := newTestStore(t)
	ctx := context.Background()

	p := testPayer("payer-1", engine.RiskApproved, 1_000_000)
	require.NoError(t, s.CreatePayer(ctx, p))

	today := engine.NewDate(2025, time.June, 15)
	sub := engine.NewSubmitter(s)
	sub.Now = func() engine.Date { return today }

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sub.SubmitInvoice(ctx, engine.SubmitRequest{
				PayerID:        "payer-1",
				ClientID:       "client-1",
				Number:         fmt.Sprintf("F-%03d", i),
				Amount:         engine.NewMoney(300_000),
				IssueDate:      engine.NewDate(2025, time.June, 1),
				DueDate:        engine.NewDate(2025, time.July, 1),
				WantsGuarantee: true,
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}

	invoices, err := s.InvoicesByPayer(ctx, "payer-1")
	require.NoError(t, err)
	require.Len(t, invoices, n)

	granted := engine.OutstandingExposure(invoices, today)
	assert.True(t, granted.Equal(p.ApprovedQuota),
		"granted %s must equal quota %s", granted, p.ApprovedQuota)
}

// =============================================================================
// ERROR PATHS (sqlmock)
// =============================================================================

func TestWithPayerLock_RollsBackWhenReadFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := sqlite.NewWithDB(db, engine.DefaultLockWait)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payers").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	ctx := context.Background()
	err = s.WithPayerLock(ctx, "payer-1", func(tx engine.Store) error {
		_, gerr := tx.GetPayer(ctx, "payer-1")
		return gerr
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithPayerLock_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := sqlite.NewWithDB(db, engine.DefaultLockWait)

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	err = s.WithPayerLock(context.Background(), "payer-1", func(engine.Store) error {
		t.Fatal("section must not run when the transaction cannot start")
		return nil
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
