package push

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/model"
)

// Subscriptions is the subset of the push store the notifier needs.
type Subscriptions interface {
	ListForHousehold(ctx context.Context, householdID, excludeMember int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

type sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Notifier fans household events out to member subscriptions.
type Notifier struct {
	sender  sender
	subs    Subscriptions
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewNotifier creates a notifier. m may be nil.
func NewNotifier(svc *Service, subs Subscriptions, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	n := &Notifier{subs: subs, metrics: m, logger: logger.With("component", "push")}
	if svc != nil && svc.Configured() {
		n.sender = svc
	}
	return n
}

// Announce pushes a pinned announcement to every member of the household
// except its author. Expired subscriptions are removed. It returns the
// number of successful deliveries.
func (n *Notifier) Announce(ctx context.Context, msg *model.Message) int {
	if n == nil || n.sender == nil || msg.Type != model.MessageAnnouncement || !msg.Pinned {
		return 0
	}

	subs, err := n.subs.ListForHousehold(ctx, msg.HouseholdID, msg.AuthorID)
	if err != nil {
		n.logger.Error("list push subscriptions", "household_id", msg.HouseholdID, "error", err)
		return 0
	}

	payload := Payload{
		Title: msg.Title,
		Body:  msg.Content,
		URL:   "/messages",
		Tag:   "announcement",
	}

	sent := 0
	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			sent++
			n.count("sent")
		case errors.Is(err, ErrExpired):
			n.count("expired")
			if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "subscription_id", sub.ID, "error", err)
			}
		default:
			n.count("failed")
			n.logger.Warn("push delivery failed", "subscription_id", sub.ID, "error", err)
		}
	}
	return sent
}

func (n *Notifier) count(outcome string) {
	if n.metrics != nil {
		n.metrics.PushSent.WithLabelValues(outcome).Inc()
	}
}
