// File: internal/usecase/reconcile_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mehran-shabani/Apatie/internal/domain/model"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/adapter"
)

func newTestReconcileUC(t *testing.T) (*reconcileUC, *memPaymentRepo, *memSubscriptionRepo, *mockGateway) {
	t.Helper()
	payments := newMemPaymentRepo()
	subs := newMemSubscriptionRepo()
	gw := &mockGateway{}
	log := zerolog.Nop()
	uc := NewReconcileUseCase(payments, subs, gw, &noopTxManager{}, 30*time.Minute, &log)
	return uc, payments, subs, gw
}

// seedPending stores a pending transaction with the given track id and age.
func seedPending(t *testing.T, payments *memPaymentRepo, trackID int64, age time.Duration) *model.PaymentTransaction {
	t.Helper()
	txn, err := model.NewPaymentTransaction(uuid.NewString(), "user-1",
		GenerateOrderID("AP", "user-1"), model.PurposeSubscription, model.GatewayZibal, 500_000)
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	if err := txn.MarkPending(trackID); err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	txn.CreatedAt = time.Now().Add(-age)
	if err := payments.Save(context.Background(), nil, txn); err != nil {
		t.Fatalf("save: %v", err)
	}
	return txn
}

func TestReconcile_PaidAtProviderGetsVerified(t *testing.T) {
	uc, payments, subs, gw := newTestReconcileUC(t)

	txn := seedPending(t, payments, 5001, 10*time.Minute)
	sub, _ := model.NewSubscription(uuid.NewString(), txn.UserID, nil, model.PlanTypeBusiness, 2)
	txn.Meta["subscription_id"] = sub.ID
	txn.Meta["months"] = 2
	_ = subs.Save(context.Background(), nil, sub)
	_ = payments.Save(context.Background(), nil, txn)

	gw.inquiryFn = func(int64) (*adapter.InquiryResult, error) {
		return &adapter.InquiryResult{ResultCode: 100, Status: adapter.GatewayStatusPaid}, nil
	}
	gw.verifyFn = func(int64) (*adapter.VerifyResult, error) {
		return &adapter.VerifyResult{ResultCode: 100, Status: adapter.GatewayStatusPaid, RefNumber: "ref-1", Success: true}, nil
	}

	sum, err := uc.Run(context.Background(), ReconcileOptions{Lookback: time.Hour})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 1 || sum.Reconciled != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Outcomes[0].Action != ActionVerifiedPaid {
		t.Fatalf("action = %s", sum.Outcomes[0].Action)
	}

	got, _ := payments.FindByID(context.Background(), nil, txn.ID)
	if got.Status != model.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", got.Status)
	}
	activated, _ := subs.FindByID(context.Background(), nil, sub.ID)
	if !activated.IsActive() {
		t.Fatalf("subscription not activated by reconcile")
	}
}

func TestReconcile_CancelledMarkedFailed(t *testing.T) {
	uc, payments, _, gw := newTestReconcileUC(t)
	txn := seedPending(t, payments, 5002, 10*time.Minute)

	gw.inquiryFn = func(int64) (*adapter.InquiryResult, error) {
		return &adapter.InquiryResult{ResultCode: 202, Status: adapter.GatewayStatusCancelled}, nil
	}

	sum, err := uc.Run(context.Background(), ReconcileOptions{Lookback: time.Hour})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Reconciled != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	got, _ := payments.FindByID(context.Background(), nil, txn.ID)
	if got.Status != model.PaymentStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Message != "پرداخت لغو شد" {
		t.Fatalf("message = %q", got.Message)
	}
	if got.ResultCode == nil || *got.ResultCode != 202 {
		t.Fatalf("result code = %v, want 202", got.ResultCode)
	}
	if gw.verifyCalls() != 0 {
		t.Fatal("cancelled payment must not be verified")
	}
}

func TestReconcile_VerifyRejectedLeavesRowPending(t *testing.T) {
	uc, payments, _, gw := newTestReconcileUC(t)
	txn := seedPending(t, payments, 5011, 10*time.Minute)

	gw.inquiryFn = func(int64) (*adapter.InquiryResult, error) {
		return &adapter.InquiryResult{ResultCode: 100, Status: adapter.GatewayStatusPaid}, nil
	}
	gw.verifyFn = func(int64) (*adapter.VerifyResult, error) {
		return &adapter.VerifyResult{ResultCode: 102, Status: adapter.GatewayStatusPending, Message: "یافت نشد"}, nil
	}

	sum, err := uc.Run(context.Background(), ReconcileOptions{Lookback: time.Hour})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 1 || sum.Reconciled != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Outcomes[0].Action != ActionVerifyRejected {
		t.Fatalf("action = %s", sum.Outcomes[0].Action)
	}

	got, _ := payments.FindByID(context.Background(), nil, txn.ID)
	if got.Status != model.PaymentStatusPending {
		t.Fatalf("status = %s, want pending for the next sweep", got.Status)
	}
}

func TestReconcile_StalePendingExpired(t *testing.T) {
	uc, payments, _, gw := newTestReconcileUC(t)
	stale := seedPending(t, payments, 5003, 31*time.Minute)
	fresh := seedPending(t, payments, 5004, 10*time.Minute)

	gw.inquiryFn = func(int64) (*adapter.InquiryResult, error) {
		return &adapter.InquiryResult{ResultCode: 100, Status: adapter.GatewayStatusPending}, nil
	}

	sum, err := uc.Run(context.Background(), ReconcileOptions{Lookback: time.Hour, StaleAfter: 30 * time.Minute})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 2 || sum.Reconciled != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	gotStale, _ := payments.FindByID(context.Background(), nil, stale.ID)
	if gotStale.Status != model.PaymentStatusExpired {
		t.Fatalf("stale status = %s, want expired", gotStale.Status)
	}
	if gotStale.Message != "منقضی شده" {
		t.Fatalf("message = %q", gotStale.Message)
	}
	gotFresh, _ := payments.FindByID(context.Background(), nil, fresh.ID)
	if gotFresh.Status != model.PaymentStatusPending {
		t.Fatalf("fresh status = %s, want pending", gotFresh.Status)
	}
}

func TestReconcile_DryRunWritesNothing(t *testing.T) {
	uc, payments, _, gw := newTestReconcileUC(t)
	txn := seedPending(t, payments, 5005, 45*time.Minute)

	gw.inquiryFn = func(int64) (*adapter.InquiryResult, error) {
		return &adapter.InquiryResult{ResultCode: 100, Status: adapter.GatewayStatusPaid}, nil
	}

	sum, err := uc.Run(context.Background(), ReconcileOptions{Lookback: time.Hour, DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Reconciled != 0 {
		t.Fatalf("dry run reconciled %d", sum.Reconciled)
	}
	if gw.verifyCalls() != 0 {
		t.Fatal("dry run must not verify")
	}

	got, _ := payments.FindByID(context.Background(), nil, txn.ID)
	if got.Status != model.PaymentStatusPending {
		t.Fatalf("status = %s, want pending untouched", got.Status)
	}
}

func TestReconcile_InquiryErrorDoesNotAbortSweep(t *testing.T) {
	uc, payments, _, gw := newTestReconcileUC(t)
	broken := seedPending(t, payments, 5006, 10*time.Minute)
	// created later so it is processed second
	ok := seedPending(t, payments, 5007, 5*time.Minute)

	gw.inquiryFn = func(trackID int64) (*adapter.InquiryResult, error) {
		if trackID == *broken.TrackID {
			return nil, errors.New("gateway timeout")
		}
		return &adapter.InquiryResult{ResultCode: 100, Status: adapter.GatewayStatusCancelled}, nil
	}

	sum, err := uc.Run(context.Background(), ReconcileOptions{Lookback: time.Hour})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 2 || sum.Failed != 1 || sum.Reconciled != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	gotBroken, _ := payments.FindByID(context.Background(), nil, broken.ID)
	if gotBroken.Status != model.PaymentStatusPending {
		t.Fatalf("failed-inquiry transaction must stay pending, got %s", gotBroken.Status)
	}
	gotOK, _ := payments.FindByID(context.Background(), nil, ok.ID)
	if gotOK.Status != model.PaymentStatusFailed {
		t.Fatalf("second transaction not settled, got %s", gotOK.Status)
	}
}

func TestReconcile_SingleTrackIDTargetsOneRow(t *testing.T) {
	uc, payments, _, gw := newTestReconcileUC(t)
	target := seedPending(t, payments, 5008, 10*time.Minute)
	other := seedPending(t, payments, 5009, 10*time.Minute)

	gw.inquiryFn = func(int64) (*adapter.InquiryResult, error) {
		return &adapter.InquiryResult{ResultCode: 100, Status: adapter.GatewayStatusCancelled}, nil
	}

	trackID := *target.TrackID
	sum, err := uc.Run(context.Background(), ReconcileOptions{TrackID: &trackID})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 1 {
		t.Fatalf("total = %d, want 1", sum.Total)
	}

	gotOther, _ := payments.FindByID(context.Background(), nil, other.ID)
	if gotOther.Status != model.PaymentStatusPending {
		t.Fatalf("untargeted transaction changed: %s", gotOther.Status)
	}
}

func TestReconcile_AlreadyPaidCountedAsProcessed(t *testing.T) {
	uc, payments, _, gw := newTestReconcileUC(t)
	txn := seedPending(t, payments, 5010, 10*time.Minute)
	if _, err := txn.MarkPaid(100, "ref-x", ""); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	_ = payments.Save(context.Background(), nil, txn)

	gw.inquiryFn = func(int64) (*adapter.InquiryResult, error) {
		return &adapter.InquiryResult{ResultCode: 100, Status: adapter.GatewayStatusPaid}, nil
	}

	trackID := *txn.TrackID
	sum, err := uc.Run(context.Background(), ReconcileOptions{TrackID: &trackID})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.AlreadyProcessed != 1 || sum.Reconciled != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if gw.verifyCalls() != 0 {
		t.Fatal("terminal transaction must not be re-verified")
	}
}
