//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/usecase"
)

type cancelFixture struct {
	oneTime   *MockOneTimeRepo
	recurring *MockRecurringRepo
	notifier  *MockNotifier
	uc        usecase.CancellationUseCase
	grantID   int64
	recurID   int64
}

func newCancelFixture(t *testing.T) *cancelFixture {
	t.Helper()
	f := &cancelFixture{
		oneTime:   NewMockOneTimeRepo(),
		recurring: NewMockRecurringRepo(),
		notifier:  &MockNotifier{},
	}
	users := NewMockUserRepo()
	_ = users.Save(context.Background(), nil, &model.User{UserID: buyerID, UserName: "buyer"})

	now := time.Now()
	p := &model.PendingPayment{UserID: buyerID, Months: 1, Amount: decimal.NewFromInt(150), InvoiceID: "inv-1"}
	grant, _ := model.NewOneTimeSubscription(p, &model.Product{ID: 1, Name: "Netflix"}, now)
	_, _ = f.oneTime.Create(context.Background(), nil, grant)
	f.grantID = grant.ID

	p2 := &model.PendingPayment{UserID: buyerID, Months: 1, Amount: decimal.NewFromInt(100), InvoiceID: "inv-2"}
	rec, _ := model.NewRecurringSubscription(p2, &model.Product{ID: 2, Name: "Spotify"}, "wallet_42_a", now)
	_, _ = f.recurring.Create(context.Background(), nil, rec)
	f.recurID = rec.ID

	f.uc = usecase.NewCancellationUseCase(f.oneTime, f.recurring, users, newTestNotifications(f.notifier), newTestLogger())
	return f
}

func TestCancellationUseCase_Cancel(t *testing.T) {
	t.Run("should cancel an owned one-time grant and tell the admin", func(t *testing.T) {
		f := newCancelFixture(t)

		err := f.uc.Cancel(context.Background(), f.grantID, buyerID)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.oneTime.All()[0].Status; got != model.SubscriptionStatusCancelled {
			t.Errorf("expected cancelled, got %s", got)
		}
		admin := f.notifier.ToAdmin()
		if len(admin) != 1 || !strings.Contains(admin[0], "Netflix") || !strings.Contains(admin[0], "@buyer") {
			t.Errorf("unexpected admin message: %q", admin)
		}
	})

	t.Run("should deactivate an owned recurring subscription", func(t *testing.T) {
		f := newCancelFixture(t)

		err := f.uc.Cancel(context.Background(), f.recurID, buyerID)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.recurring.All()[0].Status; got != model.SubscriptionStatusInactive {
			t.Errorf("expected inactive, got %s", got)
		}
		if admin := f.notifier.ToAdmin(); len(admin) != 1 || !strings.Contains(admin[0], "Spotify") {
			t.Errorf("unexpected admin message: %q", admin)
		}
	})

	t.Run("should report not found on a second cancel", func(t *testing.T) {
		f := newCancelFixture(t)
		_ = f.uc.Cancel(context.Background(), f.grantID, buyerID)

		err := f.uc.Cancel(context.Background(), f.grantID, buyerID)

		if !errors.Is(err, domain.ErrSubscriptionNotFound) {
			t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
		}
		if got := len(f.notifier.ToAdmin()); got != 1 {
			t.Errorf("expected exactly 1 admin message, got %d", got)
		}
	})

	t.Run("should not cancel someone else's subscription", func(t *testing.T) {
		f := newCancelFixture(t)

		err := f.uc.Cancel(context.Background(), f.grantID, 999)

		if !errors.Is(err, domain.ErrSubscriptionNotFound) {
			t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
		}
		if got := f.oneTime.All()[0].Status; got != model.SubscriptionStatusActive {
			t.Errorf("expected grant to stay active, got %s", got)
		}
	})

	t.Run("should succeed when the admin chat is unreachable", func(t *testing.T) {
		f := newCancelFixture(t)
		f.notifier.Fail = true

		if err := f.uc.Cancel(context.Background(), f.grantID, buyerID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("should reject invalid ids", func(t *testing.T) {
		f := newCancelFixture(t)

		if err := f.uc.Cancel(context.Background(), 0, buyerID); !errors.Is(err, domain.ErrInvalidParams) {
			t.Fatalf("expected ErrInvalidParams, got %v", err)
		}
	})
}
