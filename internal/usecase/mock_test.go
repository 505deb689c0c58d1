//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/adapter"
	"telegram-storefront/internal/domain/ports/repository"
	"telegram-storefront/internal/infra/i18n"
	"telegram-storefront/internal/usecase"
)

// ---- Pending payments ----

type MockPendingPaymentRepo struct {
	mu        sync.Mutex
	byInvoice map[string]*model.PendingPayment

	SaveFunc                  func(ctx context.Context, tx repository.Tx, p *model.PendingPayment) error
	FindByInvoiceIDFunc       func(ctx context.Context, tx repository.Tx, invoiceID string) (*model.PendingPayment, error)
	MarkSuccessFunc           func(ctx context.Context, tx repository.Tx, invoiceID string) (bool, error)
	MarkTerminalIfPendingFunc func(ctx context.Context, tx repository.Tx, invoiceID string, status model.PaymentStatus) (bool, error)
}

func NewMockPendingPaymentRepo() *MockPendingPaymentRepo {
	return &MockPendingPaymentRepo{byInvoice: map[string]*model.PendingPayment{}}
}

var _ repository.PendingPaymentRepository = (*MockPendingPaymentRepo)(nil)

func (m *MockPendingPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PendingPayment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byInvoice[p.InvoiceID] = &cp
	return nil
}

func (m *MockPendingPaymentRepo) FindByInvoiceID(ctx context.Context, tx repository.Tx, invoiceID string) (*model.PendingPayment, error) {
	if m.FindByInvoiceIDFunc != nil {
		return m.FindByInvoiceIDFunc(ctx, tx, invoiceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byInvoice[invoiceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPendingPaymentRepo) MarkSuccess(ctx context.Context, tx repository.Tx, invoiceID string) (bool, error) {
	if m.MarkSuccessFunc != nil {
		return m.MarkSuccessFunc(ctx, tx, invoiceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byInvoice[invoiceID]
	if !ok || p.Status == model.PaymentStatusSuccess {
		return false, nil
	}
	p.Status = model.PaymentStatusSuccess
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockPendingPaymentRepo) MarkTerminalIfPending(ctx context.Context, tx repository.Tx, invoiceID string, status model.PaymentStatus) (bool, error) {
	if m.MarkTerminalIfPendingFunc != nil {
		return m.MarkTerminalIfPendingFunc(ctx, tx, invoiceID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byInvoice[invoiceID]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (m *MockPendingPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PendingPayment
	for _, p := range m.byInvoice {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPendingPaymentRepo) ListRecent(ctx context.Context, tx repository.Tx, status model.PaymentStatus, limit int) ([]*model.PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PendingPayment
	for _, p := range m.byInvoice {
		if status == "" || p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPendingPaymentRepo) Get(invoiceID string) *model.PendingPayment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byInvoice[invoiceID]
}

func (m *MockPendingPaymentRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byInvoice)
}

// ---- Pending tokenizations ----

type MockTokenizationRepo struct {
	mu      sync.Mutex
	byLocal map[string]*model.PendingTokenization
	Deleted []string

	FindByLocalPaymentIDFunc func(ctx context.Context, tx repository.Tx, localPaymentID string) (*model.PendingTokenization, error)
}

func NewMockTokenizationRepo() *MockTokenizationRepo {
	return &MockTokenizationRepo{byLocal: map[string]*model.PendingTokenization{}}
}

var _ repository.PendingTokenizationRepository = (*MockTokenizationRepo)(nil)

func (m *MockTokenizationRepo) Save(ctx context.Context, tx repository.Tx, t *model.PendingTokenization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.byLocal[t.LocalPaymentID] = &cp
	return nil
}

func (m *MockTokenizationRepo) FindByLocalPaymentID(ctx context.Context, tx repository.Tx, localPaymentID string) (*model.PendingTokenization, error) {
	if m.FindByLocalPaymentIDFunc != nil {
		return m.FindByLocalPaymentIDFunc(ctx, tx, localPaymentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byLocal[localPaymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTokenizationRepo) FindByInvoiceID(ctx context.Context, tx repository.Tx, invoiceID string) (*model.PendingTokenization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byLocal {
		if t.InvoiceID == invoiceID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTokenizationRepo) ListCreatedBetween(ctx context.Context, tx repository.Tx, from, to time.Time, limit int) ([]*model.PendingTokenization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PendingTokenization
	for _, t := range m.byLocal {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTokenizationRepo) Delete(ctx context.Context, tx repository.Tx, localPaymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byLocal, localPaymentID)
	m.Deleted = append(m.Deleted, localPaymentID)
	return nil
}

func (m *MockTokenizationRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byLocal)
}

// ---- Users / catalog / settings ----

type MockUserRepo struct {
	mu    sync.Mutex
	users map[int64]*model.User

	FindByTelegramIDFunc  func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error)
	AddPartnerBalanceFunc func(ctx context.Context, tx repository.Tx, tgID int64, amount decimal.Decimal) error
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{users: map[int64]*model.User{}}
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.UserID] = &cp
	return nil
}

func (m *MockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	if m.FindByTelegramIDFunc != nil {
		return m.FindByTelegramIDFunc(ctx, tx, tgID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) AddPartnerBalance(ctx context.Context, tx repository.Tx, tgID int64, amount decimal.Decimal) error {
	if m.AddPartnerBalanceFunc != nil {
		return m.AddPartnerBalanceFunc(ctx, tx, tgID, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[tgID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PartnerBalance = u.PartnerBalance.Add(amount)
	return nil
}

func (m *MockUserRepo) Balance(tgID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[tgID]; ok {
		return u.PartnerBalance
	}
	return decimal.Zero
}

type MockProductRepo struct {
	mu       sync.Mutex
	products map[int64]*model.Product
}

func NewMockProductRepo() *MockProductRepo {
	return &MockProductRepo{products: map[int64]*model.Product{}}
}

var _ repository.ProductRepository = (*MockProductRepo)(nil)

func (m *MockProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MockProductRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type MockSettingsRepo struct {
	mu     sync.Mutex
	values map[string]string
	GetErr error
}

func NewMockSettingsRepo() *MockSettingsRepo {
	return &MockSettingsRepo{values: map[string]string{}}
}

var _ repository.SettingsRepository = (*MockSettingsRepo)(nil)

func (m *MockSettingsRepo) Get(ctx context.Context, tx repository.Tx, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *MockSettingsRepo) Set(ctx context.Context, tx repository.Tx, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// ---- Subscriptions ----

type MockOneTimeRepo struct {
	mu     sync.Mutex
	items  map[int64]*model.OneTimeSubscription
	nextID int64

	CreateFunc func(ctx context.Context, tx repository.Tx, s *model.OneTimeSubscription) (bool, error)
}

func NewMockOneTimeRepo() *MockOneTimeRepo {
	return &MockOneTimeRepo{items: map[int64]*model.OneTimeSubscription{}}
}

var _ repository.OneTimeSubscriptionRepository = (*MockOneTimeRepo)(nil)

func (m *MockOneTimeRepo) Create(ctx context.Context, tx repository.Tx, s *model.OneTimeSubscription) (bool, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, s)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if s.InvoiceID != "" && it.InvoiceID == s.InvoiceID {
			return false, nil
		}
	}
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.items[s.ID] = &cp
	return true, nil
}

func (m *MockOneTimeRepo) CancelOwned(ctx context.Context, tx repository.Tx, id, userID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok || s.UserID != userID || s.Status == model.SubscriptionStatusCancelled {
		return "", false, nil
	}
	s.Status = model.SubscriptionStatusCancelled
	return s.ProductName, true, nil
}

func (m *MockOneTimeRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.OneTimeSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OneTimeSubscription
	for _, s := range m.items {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockOneTimeRepo) All() []*model.OneTimeSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OneTimeSubscription
	for _, s := range m.items {
		out = append(out, s)
	}
	return out
}

type MockRecurringRepo struct {
	mu     sync.Mutex
	items  map[int64]*model.RecurringSubscription
	nextID int64
}

func NewMockRecurringRepo() *MockRecurringRepo {
	return &MockRecurringRepo{items: map[int64]*model.RecurringSubscription{}}
}

var _ repository.RecurringSubscriptionRepository = (*MockRecurringRepo)(nil)

func (m *MockRecurringRepo) Create(ctx context.Context, tx repository.Tx, s *model.RecurringSubscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if s.InvoiceID != "" && it.InvoiceID == s.InvoiceID {
			return false, nil
		}
	}
	m.nextID++
	s.ID = 1000 + m.nextID
	cp := *s
	m.items[s.ID] = &cp
	return true, nil
}

func (m *MockRecurringRepo) DeactivateOwned(ctx context.Context, tx repository.Tx, id, userID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok || s.UserID != userID || s.Status == model.SubscriptionStatusInactive {
		return "", false, nil
	}
	s.Status = model.SubscriptionStatusInactive
	return s.ProductName, true, nil
}

func (m *MockRecurringRepo) ListByUser(ctx context.Context, tx repository.Tx, userID int64) ([]*model.RecurringSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RecurringSubscription
	for _, s := range m.items {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRecurringRepo) All() []*model.RecurringSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RecurringSubscription
	for _, s := range m.items {
		out = append(out, s)
	}
	return out
}

type MockCardTokenRepo struct {
	mu    sync.Mutex
	cards map[int64]*model.SavedCardToken

	UpsertFunc func(ctx context.Context, tx repository.Tx, c *model.SavedCardToken) error
}

func NewMockCardTokenRepo() *MockCardTokenRepo {
	return &MockCardTokenRepo{cards: map[int64]*model.SavedCardToken{}}
}

var _ repository.CardTokenRepository = (*MockCardTokenRepo)(nil)

func (m *MockCardTokenRepo) Upsert(ctx context.Context, tx repository.Tx, c *model.SavedCardToken) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.cards[c.UserID] = &cp
	return nil
}

func (m *MockCardTokenRepo) FindByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.SavedCardToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ---- Referral credits ----

type MockReferralRepo struct {
	mu      sync.Mutex
	credits []*model.ReferralCredit

	AppendFunc func(ctx context.Context, tx repository.Tx, c *model.ReferralCredit) (bool, error)
}

func NewMockReferralRepo() *MockReferralRepo {
	return &MockReferralRepo{}
}

var _ repository.ReferralCreditRepository = (*MockReferralRepo)(nil)

func (m *MockReferralRepo) Append(ctx context.Context, tx repository.Tx, c *model.ReferralCredit) (bool, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.credits {
		if it.InvoiceID == c.InvoiceID {
			return false, nil
		}
	}
	c.ID = int64(len(m.credits) + 1)
	cp := *c
	m.credits = append(m.credits, &cp)
	return true, nil
}

func (m *MockReferralRepo) ListByPartner(ctx context.Context, tx repository.Tx, partnerID int64, limit int) ([]*model.ReferralCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ReferralCredit
	for _, c := range m.credits {
		if c.PartnerID == partnerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockReferralRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.credits)
}

// ---- Transactions ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set. Like
// pool.Begin, it refuses a cancelled context.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker (implements redis.Locker port) ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
	Taken []string
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockHeld
	}
	tok := uuid.NewString()
	l.held[key] = tok
	l.Taken = append(l.Taken, key)
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

func (l *MockLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// ---- Notifier ----

type SentMessage struct {
	ChatID int64
	Admin  bool
	Text   string
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []SentMessage
	Fail bool
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Send(ctx context.Context, chatID int64, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{ChatID: chatID, Text: text})
	return !m.Fail
}

func (m *MockNotifier) SendAdmin(ctx context.Context, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{Admin: true, Text: text})
	return !m.Fail
}

func (m *MockNotifier) ToUser(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.Sent {
		if !s.Admin && s.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}

func (m *MockNotifier) ToAdmin() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.Sent {
		if s.Admin {
			out = append(out, s.Text)
		}
	}
	return out
}

// ---- Payment processor ----

type MockProcessor struct {
	mu       sync.Mutex
	n        int
	Requests []adapter.InvoiceRequest

	CreateInvoiceFunc func(ctx context.Context, req adapter.InvoiceRequest) (*adapter.Invoice, error)
	InvoiceStatusFunc func(ctx context.Context, invoiceID string) (*adapter.InvoiceStatus, error)
	StatusCalls       int
}

var _ adapter.PaymentProcessor = (*MockProcessor)(nil)

func (m *MockProcessor) Name() string { return "mock" }

func (m *MockProcessor) CreateInvoice(ctx context.Context, req adapter.InvoiceRequest) (*adapter.Invoice, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.n++
	n := m.n
	m.mu.Unlock()
	if m.CreateInvoiceFunc != nil {
		return m.CreateInvoiceFunc(ctx, req)
	}
	id := fmt.Sprintf("inv-%d", n)
	return &adapter.Invoice{InvoiceID: id, PageURL: "https://pay.example/" + id}, nil
}

func (m *MockProcessor) InvoiceStatus(ctx context.Context, invoiceID string) (*adapter.InvoiceStatus, error) {
	m.mu.Lock()
	m.StatusCalls++
	m.mu.Unlock()
	if m.InvoiceStatusFunc != nil {
		return m.InvoiceStatusFunc(ctx, invoiceID)
	}
	return nil, &domain.ProcessorError{Op: "mock.invoice_status", Status: 404, Message: "unknown invoice"}
}

// ---- Event publisher ----

type MockPublisher struct {
	mu     sync.Mutex
	Events []adapter.PaymentSucceededEvent
	Err    error
}

var _ adapter.EventPublisher = (*MockPublisher)(nil)

func (m *MockPublisher) PublishPaymentSucceeded(ctx context.Context, ev adapter.PaymentSucceededEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return m.Err
}

func (m *MockPublisher) Close() {}

// ---- Helpers ----

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// newTestTranslator loads the embedded production catalog so message
// assertions follow the real templates.
func newTestTranslator() *i18n.Translator {
	translator, err := i18n.NewTranslator(i18n.LocalesFS, "uk")
	if err != nil {
		panic(err)
	}
	return translator
}

// newTestNotifications delivers inline, without a worker pool.
func newTestNotifications(n adapter.Notifier) *usecase.Notifications {
	return usecase.NewNotifications(n, nil, newTestTranslator(), newTestLogger())
}

func int64Ptr(v int64) *int64 { return &v }
