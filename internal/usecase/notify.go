package usecase

import (
	"context"
	"html"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-storefront/internal/domain/model"
	"telegram-storefront/internal/domain/ports/adapter"
	"telegram-storefront/internal/infra/i18n"
	"telegram-storefront/internal/infra/metrics"
	"telegram-storefront/internal/infra/worker"
)

// Notification kinds, used as metric labels.
const (
	notifyUserSuccess   = "user_success"
	notifyAdminSale     = "admin_sale"
	notifyPartnerCredit = "partner_credit"
	notifyAdminCancel   = "admin_cancel"
)

const dateLayout = "02.01.2006"

// TaskSubmitter is satisfied by *worker.Pool.
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

// detached runs side effects off the request path. Without a pool the task
// runs inline on a context that outlives the caller's cancellation.
type detached struct {
	tasks TaskSubmitter
	log   *zerolog.Logger
}

func (d detached) run(ctx context.Context, name string, task worker.Task) bool {
	if d.tasks == nil {
		if err := task(context.WithoutCancel(ctx)); err != nil {
			d.log.Warn().Err(err).Str("task", name).Msg("background task failed")
		}
		return true
	}
	if err := d.tasks.Submit(task); err != nil {
		d.log.Warn().Err(err).Str("task", name).Msg("background task dropped")
		return false
	}
	return true
}

// Notifications renders storefront chat messages and delivers them through
// the notifier. Delivery is best effort and never reported to callers.
type Notifications struct {
	notifier adapter.Notifier
	tr       *i18n.Translator
	bg       detached
	log      *zerolog.Logger
}

func NewNotifications(notifier adapter.Notifier, tasks TaskSubmitter, tr *i18n.Translator, logger *zerolog.Logger) *Notifications {
	l := logger.With().Str("component", "notifications").Logger()
	return &Notifications{notifier: notifier, tr: tr, bg: detached{tasks: tasks, log: &l}, log: &l}
}

func (n *Notifications) toUser(ctx context.Context, kind string, chatID int64, text string) {
	n.deliver(ctx, kind, func(ctx context.Context) bool { return n.notifier.Send(ctx, chatID, text) })
}

func (n *Notifications) toAdmin(ctx context.Context, kind, text string) {
	n.deliver(ctx, kind, func(ctx context.Context) bool { return n.notifier.SendAdmin(ctx, text) })
}

func (n *Notifications) deliver(ctx context.Context, kind string, send func(ctx context.Context) bool) {
	if n.notifier == nil {
		return
	}
	ok := n.bg.run(ctx, "notify."+kind, func(ctx context.Context) error {
		if send(ctx) {
			metrics.IncNotification(kind, "sent")
		} else {
			metrics.IncNotification(kind, "failed")
		}
		return nil
	})
	if !ok {
		metrics.IncNotification(kind, "dropped")
	}
}

func (n *Notifications) monthWord(months int) string {
	switch {
	case months == 1:
		return n.tr.T("month_one")
	case months >= 2 && months <= 4:
		return n.tr.T("month_few")
	default:
		return n.tr.T("month_many")
	}
}

func (n *Notifications) userLine(u *model.User) string {
	if u.UserName != "" {
		return n.tr.T("user_line_named", html.EscapeString(u.UserName), u.UserID)
	}
	return n.tr.T("user_line_hidden", u.UserID)
}

// referralLine is empty unless a partner was actually credited.
func (n *Notifications) referralLine(partner *model.User, credit decimal.Decimal) string {
	if partner == nil || !credit.IsPositive() {
		return ""
	}
	amount := credit.StringFixed(2)
	if partner.UserName != "" {
		return n.tr.T("referral_line_named", html.EscapeString(partner.UserName), partner.UserID, amount)
	}
	return n.tr.T("referral_line_hidden", partner.UserID, amount)
}

// sale carries everything the success messages need.
type sale struct {
	payment *model.PendingPayment
	product *model.Product
	buyer   *model.User
	partner *model.User
	credit  decimal.Decimal
	result  *Materialization
}

// paymentSucceeded sends the buyer and the admin chat their success messages.
func (n *Notifications) paymentSucceeded(ctx context.Context, s sale) {
	if n == nil {
		return
	}
	p := s.payment
	product := html.EscapeString(s.product.Name)
	amount := p.Amount.String()
	word := n.monthWord(p.Months)
	buyerLine := n.userLine(s.buyer)
	refLine := n.referralLine(s.partner, s.credit)

	var userText, adminText string
	switch {
	case s.result.OneTime != nil:
		userText = n.tr.T("user_one_time_success", product, p.Months, word, amount)
		adminText = n.tr.T("admin_new_one_time", p.InvoiceID, buyerLine, product, amount, p.Months,
			s.result.OneTime.EndDate.Format(dateLayout), refLine)
	case s.result.Recurring != nil:
		userText = n.tr.T("user_subscription_success", product, p.Months, word, amount, p.Months, word,
			html.EscapeString(s.result.Card.Display()))
		adminText = n.tr.T("admin_new_subscription", p.InvoiceID, buyerLine, product, amount, p.Months, word, refLine)
	default:
		userText = n.tr.T("user_subscription_no_token", product, p.Months, word, amount)
		adminText = n.tr.T("admin_subscription_no_token", p.InvoiceID, buyerLine, product, amount, p.Months, word, refLine)
	}
	n.toUser(ctx, notifyUserSuccess, p.UserID, userText)
	n.toAdmin(ctx, notifyAdminSale, adminText)
}

func (n *Notifications) partnerCredited(ctx context.Context, partnerID int64, buyer *model.User, productName string, amount, credit decimal.Decimal) {
	if n == nil {
		return
	}
	var buyerLine string
	if buyer.UserName != "" {
		buyerLine = n.tr.T("partner_buyer_named", html.EscapeString(buyer.UserName))
	} else {
		buyerLine = n.tr.T("partner_buyer_hidden", buyer.UserID)
	}
	text := n.tr.T("partner_credit", buyerLine, html.EscapeString(productName), amount.String(), credit.StringFixed(2))
	n.toUser(ctx, notifyPartnerCredit, partnerID, text)
}

func (n *Notifications) subscriptionCancelled(ctx context.Context, buyer *model.User, productName string) {
	if n == nil {
		return
	}
	n.toAdmin(ctx, notifyAdminCancel, n.tr.T("admin_subscription_cancelled", n.userLine(buyer), html.EscapeString(productName)))
}
