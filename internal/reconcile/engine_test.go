package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperpot/copperpot/internal/common"
	"github.com/copperpot/copperpot/internal/model"
)

type fakeInvoiceStore struct {
	updateErr error
	invoices  map[string]*model.Invoice
	getCalls  int
}

func (f *fakeInvoiceStore) GetInvoice(_ context.Context, id string) (*model.Invoice, error) {
	f.getCalls++
	inv, ok := f.invoices[id]
	if !ok {
		return nil, common.ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoiceStore) UpdateInvoice(_ context.Context, invoice *model.Invoice) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *invoice
	f.invoices[invoice.ID] = &cp
	return nil
}

type fakeTxnStore struct {
	saveErr  error
	txns     map[string]*model.BankTransaction
	getCalls int
}

func (f *fakeTxnStore) GetTransaction(_ context.Context, id string) (*model.BankTransaction, error) {
	f.getCalls++
	txn, ok := f.txns[id]
	if !ok {
		return nil, common.ErrTxnNotFound
	}
	cp := *txn
	return &cp, nil
}

func (f *fakeTxnStore) SaveTransaction(_ context.Context, txn *model.BankTransaction) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *txn
	f.txns[txn.ID] = &cp
	return nil
}

type fakeMatchStore struct {
	createErr error
	deleteErr error
	matches   map[string]*model.InvoiceMatch
	calls     int
}

func pairKey(invoiceID, transactionID string) string {
	return invoiceID + "|" + transactionID
}

func (f *fakeMatchStore) MatchExists(_ context.Context, invoiceID, transactionID string) (bool, error) {
	f.calls++
	_, ok := f.matches[pairKey(invoiceID, transactionID)]
	return ok, nil
}

func (f *fakeMatchStore) CreateMatch(_ context.Context, match *model.InvoiceMatch) error {
	f.calls++
	if f.createErr != nil {
		return f.createErr
	}
	key := pairKey(match.InvoiceID, match.TransactionID)
	if _, ok := f.matches[key]; ok {
		return common.ErrDuplicateMatch
	}
	cp := *match
	f.matches[key] = &cp
	return nil
}

func (f *fakeMatchStore) GetMatchByPair(_ context.Context, invoiceID, transactionID string) (*model.InvoiceMatch, error) {
	f.calls++
	match, ok := f.matches[pairKey(invoiceID, transactionID)]
	if !ok {
		return nil, common.ErrMatchNotFound
	}
	cp := *match
	return &cp, nil
}

func (f *fakeMatchStore) DeleteMatch(_ context.Context, id string) error {
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for key, match := range f.matches {
		if match.ID == id {
			delete(f.matches, key)
			return nil
		}
	}
	return common.ErrMatchNotFound
}

func (f *fakeMatchStore) GetMatchesByInvoice(_ context.Context, invoiceID string) ([]model.InvoiceMatch, error) {
	var out []model.InvoiceMatch
	for _, match := range f.matches {
		if match.InvoiceID == invoiceID {
			out = append(out, *match)
		}
	}
	return out, nil
}

func (f *fakeMatchStore) GetMatchesByTransaction(_ context.Context, transactionID string) ([]model.InvoiceMatch, error) {
	var out []model.InvoiceMatch
	for _, match := range f.matches {
		if match.TransactionID == transactionID {
			out = append(out, *match)
		}
	}
	return out, nil
}

type failingPublisher struct{ published int }

func (p *failingPublisher) Publish(_ context.Context, _ string, _ any) error {
	p.published++
	return errors.New("broker unavailable")
}
func (p *failingPublisher) Close() error { return nil }

func newFixture() (*Engine, *fakeInvoiceStore, *fakeTxnStore, *fakeMatchStore) {
	invoices := &fakeInvoiceStore{invoices: map[string]*model.Invoice{
		"inv-1": {ID: "inv-1", Status: model.InvoicePending, Total: 120.50},
	}}
	txns := &fakeTxnStore{txns: map[string]*model.BankTransaction{
		"txn-1": {ID: "txn-1", Amount: 120.50, Description: "wire transfer", ReconciliationStatus: model.ReconciliationPending},
	}}
	matches := &fakeMatchStore{matches: make(map[string]*model.InvoiceMatch)}
	return NewEngine(invoices, txns, matches, nil), invoices, txns, matches
}

func TestConfirmManualMatch(t *testing.T) {
	engine, invoices, txns, _ := newFixture()
	ctx := context.Background()

	notes := "paid by wire"
	user := "u1"
	match, err := engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", &notes, &user)
	require.NoError(t, err)

	assert.Equal(t, model.MatchedByUser, match.MatchedBy)
	assert.InDelta(t, 100.0, match.MatchScore, 1e-9)
	assert.Equal(t, model.InvoicePaid, invoices.invoices["inv-1"].Status)
	assert.Equal(t, model.ReconciliationMatched, txns.txns["txn-1"].ReconciliationStatus)
	require.NotNil(t, txns.txns["txn-1"].ReconciledInvoiceID)
	assert.Equal(t, "inv-1", *txns.txns["txn-1"].ReconciledInvoiceID)
}

func TestConfirmManualMatch_DuplicateLeavesStateUntouched(t *testing.T) {
	engine, invoices, txns, _ := newFixture()
	ctx := context.Background()

	_, err := engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", nil, nil)
	require.NoError(t, err)

	// Re-confirming an already-reconciled transaction fails before any
	// mutation, whichever guard fires first.
	_, err = engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", nil, nil)
	require.Error(t, err)
	assert.True(t, common.IsBusinessRule(err), "got: %v", err)

	assert.Equal(t, model.InvoicePaid, invoices.invoices["inv-1"].Status)
	assert.Equal(t, model.ReconciliationMatched, txns.txns["txn-1"].ReconciliationStatus)
}

func TestConfirmManualMatch_DuplicatePair(t *testing.T) {
	engine, _, txns, matches := newFixture()
	ctx := context.Background()

	_, err := engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", nil, nil)
	require.NoError(t, err)

	// Force the transaction back to pending while leaving the match record
	// in place, so the uniqueness check itself is what fires.
	txns.txns["txn-1"].ReconciliationStatus = model.ReconciliationPending
	txns.txns["txn-1"].ReconciledInvoiceID = nil

	_, err = engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", nil, nil)
	assert.ErrorIs(t, err, common.ErrDuplicateMatch)
	assert.Len(t, matches.matches, 1)
}

func TestConfirmManualMatch_CancelledInvoice(t *testing.T) {
	engine, invoices, _, matches := newFixture()
	invoices.invoices["inv-1"].Status = model.InvoiceCancelled

	_, err := engine.ConfirmManualMatch(context.Background(), "inv-1", "txn-1", nil, nil)
	assert.ErrorIs(t, err, common.ErrInvoiceCancelled)
	assert.Empty(t, matches.matches)
}

func TestConfirmManualMatch_AlreadyReconciledTransaction(t *testing.T) {
	engine, _, txns, matches := newFixture()
	other := "inv-9"
	txns.txns["txn-1"].ReconciliationStatus = model.ReconciliationMatched
	txns.txns["txn-1"].ReconciledInvoiceID = &other

	_, err := engine.ConfirmManualMatch(context.Background(), "inv-1", "txn-1", nil, nil)
	assert.ErrorIs(t, err, common.ErrTxnAlreadyReconciled)
	assert.Empty(t, matches.matches)
}

func TestConfirmManualMatch_PaidInvoiceWritesNothing(t *testing.T) {
	engine, invoices, txns, matches := newFixture()
	invoices.invoices["inv-1"].Status = model.InvoicePaid

	_, err := engine.ConfirmManualMatch(context.Background(), "inv-1", "txn-1", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidStatus)

	// An invoice paid through some other transaction must reject the
	// confirmation before any write: no orphan match, transaction untouched.
	assert.Empty(t, matches.matches)
	assert.Equal(t, model.ReconciliationPending, txns.txns["txn-1"].ReconciliationStatus)
}

func TestConfirmManualMatch_IgnoredTransactionWritesNothing(t *testing.T) {
	engine, invoices, txns, matches := newFixture()
	txns.txns["txn-1"].ReconciliationStatus = model.ReconciliationIgnored

	_, err := engine.ConfirmManualMatch(context.Background(), "inv-1", "txn-1", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidStatus)

	assert.Empty(t, matches.matches)
	assert.Equal(t, model.InvoicePending, invoices.invoices["inv-1"].Status,
		"invoice must not be marked paid when the transaction cannot transition")
	assert.Equal(t, model.ReconciliationIgnored, txns.txns["txn-1"].ReconciliationStatus)
}

func TestConfirmManualMatch_MissingInvoice(t *testing.T) {
	engine, _, _, _ := newFixture()

	_, err := engine.ConfirmManualMatch(context.Background(), "inv-404", "txn-1", nil, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestConfirmAutoMatch_ScoreBoundary(t *testing.T) {
	engine, invoices, txns, matches := newFixture()
	ctx := context.Background()

	// 89 must fail before any repository call.
	_, err := engine.ConfirmAutoMatch(ctx, "inv-1", "txn-1", 89)
	assert.ErrorIs(t, err, common.ErrScoreBelowThreshold)
	assert.Equal(t, 0, invoices.getCalls)
	assert.Equal(t, 0, txns.getCalls)
	assert.Equal(t, 0, matches.calls)

	// 90 is inclusive and succeeds.
	match, err := engine.ConfirmAutoMatch(ctx, "inv-1", "txn-1", 90)
	require.NoError(t, err)
	assert.Equal(t, model.MatchedBySystem, match.MatchedBy)
	assert.Nil(t, match.Notes)
	assert.Nil(t, match.MatchedByUserID)
	assert.Equal(t, model.InvoicePaid, invoices.invoices["inv-1"].Status)
}

func TestUnmatch_RoundTrip(t *testing.T) {
	engine, invoices, txns, matches := newFixture()
	ctx := context.Background()

	_, err := engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", nil, nil)
	require.NoError(t, err)

	require.NoError(t, engine.Unmatch(ctx, "inv-1", "txn-1"))
	assert.Equal(t, model.InvoicePending, invoices.invoices["inv-1"].Status)
	assert.Equal(t, model.ReconciliationPending, txns.txns["txn-1"].ReconciliationStatus)
	assert.Nil(t, txns.txns["txn-1"].ReconciledInvoiceID)
	assert.Empty(t, matches.matches)

	// Matching again after an unmatch must succeed: round-trip consistency.
	_, err = engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, invoices.invoices["inv-1"].Status)
	assert.Equal(t, model.ReconciliationMatched, txns.txns["txn-1"].ReconciliationStatus)
}

func TestUnmatch_NoMatch(t *testing.T) {
	engine, _, _, _ := newFixture()
	err := engine.Unmatch(context.Background(), "inv-1", "txn-1")
	assert.ErrorIs(t, err, common.ErrMatchNotFound)
}

func TestUnmatch_TransactionRevertFailureRollsBackInvoice(t *testing.T) {
	engine, invoices, txns, matches := newFixture()
	ctx := context.Background()

	_, err := engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", nil, nil)
	require.NoError(t, err)

	saveErr := errors.New("transaction store unavailable")
	txns.saveErr = saveErr

	err = engine.Unmatch(ctx, "inv-1", "txn-1")
	assert.ErrorIs(t, err, saveErr)

	// The invoice transition was already committed and must be undone.
	assert.Equal(t, model.InvoicePaid, invoices.invoices["inv-1"].Status)
	assert.Equal(t, model.ReconciliationMatched, txns.txns["txn-1"].ReconciliationStatus)
	assert.Len(t, matches.matches, 1, "match record must survive a failed unmatch")
}

func TestUnmatch_DeleteFailureRollsBackBothTransitions(t *testing.T) {
	engine, invoices, txns, matches := newFixture()
	ctx := context.Background()

	_, err := engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", nil, nil)
	require.NoError(t, err)

	deleteErr := errors.New("match store unavailable")
	matches.deleteErr = deleteErr

	err = engine.Unmatch(ctx, "inv-1", "txn-1")
	assert.ErrorIs(t, err, deleteErr)

	assert.Equal(t, model.InvoicePaid, invoices.invoices["inv-1"].Status)
	assert.Equal(t, model.ReconciliationMatched, txns.txns["txn-1"].ReconciliationStatus)
	require.NotNil(t, txns.txns["txn-1"].ReconciledInvoiceID)
	assert.Equal(t, "inv-1", *txns.txns["txn-1"].ReconciledInvoiceID)
	assert.Len(t, matches.matches, 1)
}

func TestConfirm_PublishFailureDoesNotFailOperation(t *testing.T) {
	_, invoices, txns, matches := newFixture()
	pub := &failingPublisher{}
	engine := NewEngine(invoices, txns, matches, pub)

	_, err := engine.ConfirmManualMatch(context.Background(), "inv-1", "txn-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pub.published)
}

func TestUnmatchAllForInvoice(t *testing.T) {
	engine, invoices, txns, _ := newFixture()
	ctx := context.Background()

	invoices.invoices["inv-2"] = &model.Invoice{ID: "inv-2", Status: model.InvoicePending, Total: 10}
	txns.txns["txn-2"] = &model.BankTransaction{ID: "txn-2", ReconciliationStatus: model.ReconciliationPending}

	_, err := engine.ConfirmManualMatch(ctx, "inv-1", "txn-1", nil, nil)
	require.NoError(t, err)

	result, err := engine.UnmatchAllForInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, model.InvoicePending, invoices.invoices["inv-1"].Status)
}

func TestConfirmAutoMatchBatch_BestEffort(t *testing.T) {
	engine, invoices, txns, _ := newFixture()
	ctx := context.Background()

	invoices.invoices["inv-2"] = &model.Invoice{ID: "inv-2", Status: model.InvoicePending, Total: 10}
	txns.txns["txn-2"] = &model.BankTransaction{ID: "txn-2", ReconciliationStatus: model.ReconciliationPending}

	result := engine.ConfirmAutoMatchBatch(ctx, []AutoMatchRequest{
		{InvoiceID: "inv-1", TransactionID: "txn-1", MatchScore: 95},
		{InvoiceID: "inv-404", TransactionID: "txn-2", MatchScore: 95}, // missing invoice
		{InvoiceID: "inv-2", TransactionID: "txn-2", MatchScore: 92},
	})

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "inv-404", result.Errors[0].InvoiceID)
	assert.ErrorIs(t, result.Errors[0].Err, common.ErrNotFound)
}
