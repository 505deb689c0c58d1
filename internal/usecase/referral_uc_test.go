//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/usecase"
)

type referralFixture struct {
	users    *MockUserRepo
	settings *MockSettingsRepo
	credits  *MockReferralRepo
	tm       *MockTxManager
	notifier *MockNotifier
	uc       usecase.ReferralUseCase
}

func newReferralFixture(t *testing.T) *referralFixture {
	t.Helper()
	f := &referralFixture{
		users:    NewMockUserRepo(),
		settings: NewMockSettingsRepo(),
		credits:  NewMockReferralRepo(),
		tm:       NewMockTxManager(),
		notifier: &MockNotifier{},
	}
	_ = f.users.Save(context.Background(), nil, &model.User{UserID: partnerID, UserName: "partner"})
	_ = f.users.Save(context.Background(), nil, &model.User{UserID: buyerID, RefID: int64Ptr(partnerID)})
	f.uc = usecase.NewReferralUseCase(f.users, f.settings, f.credits, f.tm, newTestNotifications(f.notifier), newTestLogger())
	return f
}

func TestReferralUseCase_Percent(t *testing.T) {
	cases := []struct {
		name   string
		stored string
		getErr error
		want   string
	}{
		{"unset", "", nil, "20"},
		{"configured", "15", nil, "15"},
		{"fractional", "12.5", nil, "12.5"},
		{"unparsable", "abc", nil, "20"},
		{"lookup failure", "", domain.ErrReadDatabaseRow, "20"},
	}
	for _, tc := range cases {
		t.Run("should resolve "+tc.name+" percent", func(t *testing.T) {
			f := newReferralFixture(t)
			if tc.stored != "" {
				_ = f.settings.Set(context.Background(), nil, usecase.SettingReferralPercent, tc.stored)
			}
			f.settings.GetErr = tc.getErr

			got := f.uc.Percent(context.Background())

			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestReferralUseCase_CreditReferral(t *testing.T) {
	t.Run("should credit balance, audit and notify the partner", func(t *testing.T) {
		// Arrange
		f := newReferralFixture(t)

		// Act
		credit, err := f.uc.CreditReferral(context.Background(), partnerID, buyerID, decimal.NewFromInt(150), "Netflix", model.PaymentTypeOneTime, "inv-1")

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !credit.Equal(decimal.NewFromInt(30)) {
			t.Errorf("expected 30, got %s", credit)
		}
		if !f.users.Balance(partnerID).Equal(decimal.NewFromInt(30)) {
			t.Errorf("expected balance 30, got %s", f.users.Balance(partnerID))
		}
		rows, _ := f.credits.ListByPartner(context.Background(), nil, partnerID, 10)
		if len(rows) != 1 || rows[0].InvoiceID != "inv-1" || !rows[0].Percent.Equal(decimal.NewFromInt(20)) || rows[0].BuyerID != buyerID {
			t.Errorf("unexpected audit rows: %+v", rows)
		}
		msgs := f.notifier.ToUser(partnerID)
		if len(msgs) != 1 || !strings.Contains(msgs[0], "ID: 42, прихований профіль") || !strings.Contains(msgs[0], "30.00 ₴") {
			t.Errorf("unexpected partner message: %q", msgs)
		}
	})

	t.Run("should round to one decimal half away from zero", func(t *testing.T) {
		f := newReferralFixture(t)
		_ = f.settings.Set(context.Background(), nil, usecase.SettingReferralPercent, "15")

		credit, err := f.uc.CreditReferral(context.Background(), partnerID, buyerID, decimal.RequireFromString("99.9"), "X", model.PaymentTypeOneTime, "inv-1")

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 99.9 * 15 / 100 = 14.985
		if !credit.Equal(decimal.RequireFromString("15.0")) {
			t.Errorf("expected 15.0, got %s", credit)
		}
	})

	t.Run("should skip zero credits", func(t *testing.T) {
		f := newReferralFixture(t)
		_ = f.settings.Set(context.Background(), nil, usecase.SettingReferralPercent, "0")

		credit, err := f.uc.CreditReferral(context.Background(), partnerID, buyerID, decimal.NewFromInt(150), "X", model.PaymentTypeOneTime, "inv-1")

		if err != nil || !credit.IsZero() {
			t.Fatalf("got (%s, %v), want zero credit", credit, err)
		}
		if f.credits.Count() != 0 || len(f.notifier.Sent) != 0 {
			t.Error("expected no audit row and no message")
		}
	})

	t.Run("should ignore self referral", func(t *testing.T) {
		f := newReferralFixture(t)

		credit, err := f.uc.CreditReferral(context.Background(), buyerID, buyerID, decimal.NewFromInt(150), "X", model.PaymentTypeOneTime, "inv-1")

		if err != nil || !credit.IsZero() || f.credits.Count() != 0 {
			t.Fatalf("expected a no-op, got (%s, %v)", credit, err)
		}
	})

	t.Run("should credit an invoice only once", func(t *testing.T) {
		f := newReferralFixture(t)
		amount := decimal.NewFromInt(150)
		_, _ = f.uc.CreditReferral(context.Background(), partnerID, buyerID, amount, "X", model.PaymentTypeOneTime, "inv-1")

		credit, err := f.uc.CreditReferral(context.Background(), partnerID, buyerID, amount, "X", model.PaymentTypeOneTime, "inv-1")

		if err != nil || !credit.IsZero() {
			t.Fatalf("got (%s, %v), want zero credit", credit, err)
		}
		if !f.users.Balance(partnerID).Equal(decimal.NewFromInt(30)) {
			t.Errorf("expected balance 30, got %s", f.users.Balance(partnerID))
		}
		if got := len(f.notifier.ToUser(partnerID)); got != 1 {
			t.Errorf("expected 1 partner message, got %d", got)
		}
	})

	t.Run("should surface a failed transaction and stay silent", func(t *testing.T) {
		f := newReferralFixture(t)
		f.users.AddPartnerBalanceFunc = func(ctx context.Context, tx repository.Tx, tgID int64, amount decimal.Decimal) error {
			return domain.ErrUserNotFound
		}

		_, err := f.uc.CreditReferral(context.Background(), partnerID, buyerID, decimal.NewFromInt(150), "X", model.PaymentTypeOneTime, "inv-1")

		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
		if len(f.notifier.Sent) != 0 {
			t.Error("expected no partner message")
		}
	})
}
