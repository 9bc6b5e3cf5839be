package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"peopleflow/contracts/mq"
	"peopleflow/internal/model"
	"peopleflow/pkg/metrics"

	"go.uber.org/zap"
)

// NotificationStore is the persistence surface the Router needs.
type NotificationStore interface {
	Insert(ctx context.Context, n *model.Notification) (int, error)
	MarkRead(ctx context.Context, id int) error
	MarkActed(ctx context.Context, id int) error
	MarkAllRead(ctx context.Context, userID int) (int64, error)
}

// PreferenceStore returns (nil, nil) when a user has no stored row.
type PreferenceStore interface {
	Get(ctx context.Context, userID int) (*model.NotificationPreferences, error)
	Save(ctx context.Context, p *model.NotificationPreferences) error
}

// EventPublisher pushes routed notifications to the transport adapters.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// CreateParams describes one notification to create.
type CreateParams struct {
	UserID   int
	Title    string
	Message  string
	Type     model.NotificationType
	Priority model.Priority
	Metadata map[string]any
	Deadline *time.Time
	Actions  []model.Action
	DeepLink string
}

// BatchOptions tunes BatchCreate.
type BatchOptions struct {
	// CombineSimilar collapses groups of notifications for the same user
	// and category into one digest.
	CombineSimilar bool
	// MaxDelayMinutes is how long the caller may have held the batch
	// before flushing it. Grouping itself does not use it; it bounds the
	// staleness a digest can accumulate upstream.
	MaxDelayMinutes int
}

// Router resolves the effective recipient, picks channels and persists
// notification rows. Delivery is someone else's job.
type Router struct {
	notifications NotificationStore
	preferences   PreferenceStore
	publisher     EventPublisher
	defaults      *model.NotificationPreferences
	logger        *zap.Logger
	now           func() time.Time
}

func NewRouter(
	notifications NotificationStore,
	preferences PreferenceStore,
	publisher EventPublisher,
	defaults *model.NotificationPreferences,
	logger *zap.Logger,
) *Router {
	return &Router{
		notifications: notifications,
		preferences:   preferences,
		publisher:     publisher,
		defaults:      defaults,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateNotification persists one notification for the effective recipient
// and announces it to the transport adapters together with the routed
// channel list. The recipient is re-resolved on every call: vacation state
// can change between two notifications.
func (r *Router) CreateNotification(ctx context.Context, p CreateParams) (int, error) {
	recipient, err := r.EffectiveRecipient(ctx, p.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve recipient for user %d: %w", p.UserID, err)
	}
	if recipient != p.UserID {
		r.logger.Info("Notification delegated",
			zap.Int("from_user_id", p.UserID),
			zap.Int("to_user_id", recipient),
		)
	}

	n := &model.Notification{
		UserID:   recipient,
		Title:    p.Title,
		Message:  p.Message,
		Type:     p.Type,
		Priority: p.Priority,
		Metadata: p.Metadata,
		Deadline: p.Deadline,
		Actions:  p.Actions,
		DeepLink: p.DeepLink,
	}
	id, err := r.notifications.Insert(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notification: %w", err)
	}
	metrics.IncNotificationCreated(string(p.Type), false)

	r.announce(ctx, n)
	return id, nil
}

// announce publishes notification.created with the routed channels. The
// row is the source of truth; a publish failure is logged, not returned.
func (r *Router) announce(ctx context.Context, n *model.Notification) {
	prefs, err := r.preferences.Get(ctx, n.UserID)
	if err != nil {
		r.logger.Warn("Failed to load preferences for channel routing, using defaults",
			zap.Error(err),
			zap.Int("user_id", n.UserID),
		)
		prefs = nil
	}

	channels := ChannelsFor(n.Type, n.Priority, prefs, r.defaults, r.now())
	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = string(ch)
	}

	payload := mq.NotificationCreatedPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           string(n.Type),
		Priority:       string(n.Priority),
		Channels:       names,
		Title:          n.Title,
		Message:        n.Message,
		DeepLink:       n.DeepLink,
		IsDigest:       n.IsDigest,
		CreatedAt:      n.CreatedAt,
	}
	if err := r.publisher.Publish("notification.created", payload); err != nil {
		r.logger.Error("Failed to publish notification.created",
			zap.Error(err),
			zap.Int("notification_id", n.ID),
		)
		return
	}

	r.logger.Info("Published notification.created",
		zap.Int("notification_id", n.ID),
		zap.Int("user_id", n.UserID),
		zap.Strings("channels", names),
	)
}

// BatchCreate creates a batch of notifications. With CombineSimilar set,
// notifications for the same user and category are collapsed into one
// digest; the originals are not persisted. Grouping is deterministic:
// groups are keyed and ordered by (user, type), members keep input order.
// A failed item is logged and skipped; the rest of the batch continues.
func (r *Router) BatchCreate(ctx context.Context, batch []CreateParams, opts BatchOptions) ([]int, error) {
	if !opts.CombineSimilar {
		ids := []int{}
		for _, p := range batch {
			id, err := r.CreateNotification(ctx, p)
			if err != nil {
				r.logger.Error("Failed to create notification in batch",
					zap.Error(err),
					zap.Int("user_id", p.UserID),
				)
				continue
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	type groupKey struct {
		userID int
		typ    model.NotificationType
	}
	groups := map[groupKey][]CreateParams{}
	for _, p := range batch {
		k := groupKey{p.UserID, p.Type}
		groups[k] = append(groups[k], p)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].userID != keys[j].userID {
			return keys[i].userID < keys[j].userID
		}
		return keys[i].typ < keys[j].typ
	})

	ids := []int{}
	for _, k := range keys {
		members := groups[k]
		if len(members) == 1 {
			id, err := r.CreateNotification(ctx, members[0])
			if err != nil {
				r.logger.Error("Failed to create notification in batch",
					zap.Error(err),
					zap.Int("user_id", members[0].UserID),
				)
				continue
			}
			ids = append(ids, id)
			continue
		}

		id, err := r.createDigest(ctx, k.userID, k.typ, members)
		if err != nil {
			r.logger.Error("Failed to create digest notification",
				zap.Error(err),
				zap.Int("user_id", k.userID),
				zap.String("type", string(k.typ)),
			)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// createDigest persists one digest row replacing the individual members.
func (r *Router) createDigest(ctx context.Context, userID int, typ model.NotificationType, members []CreateParams) (int, error) {
	recipient, err := r.EffectiveRecipient(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve recipient for user %d: %w", userID, err)
	}

	titles := make([]string, len(members))
	priority := model.PriorityLow
	for i, m := range members {
		titles[i] = "• " + m.Title
		if priorityRank(m.Priority) > priorityRank(priority) {
			priority = m.Priority
		}
	}

	n := &model.Notification{
		UserID:   recipient,
		Title:    fmt.Sprintf("%d nieuwe %s-meldingen", len(members), typ),
		Message:  strings.Join(titles, "\n"),
		Type:     typ,
		Priority: priority,
		IsDigest: true,
	}
	id, err := r.notifications.Insert(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("failed to insert digest: %w", err)
	}
	metrics.IncNotificationCreated(string(typ), true)

	r.announce(ctx, n)
	return id, nil
}

func priorityRank(p model.Priority) int {
	switch p {
	case model.PriorityCritical:
		return 4
	case model.PriorityUrgent:
		return 3
	case model.PriorityHigh:
		return 2
	case model.PriorityNormal:
		return 1
	default:
		return 0
	}
}

// EffectiveRecipient resolves vacation delegation: a user with vacation
// mode on and a delegate set hands their notifications to the delegate.
// Never cached, by contract.
func (r *Router) EffectiveRecipient(ctx context.Context, userID int) (int, error) {
	prefs, err := r.preferences.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if prefs != nil && prefs.VacationMode && prefs.DelegateUserID != nil {
		return *prefs.DelegateUserID, nil
	}
	return userID, nil
}

// GetPreferences returns the user's effective preferences: the stored row
// or a copy of the defaults when none exists yet.
func (r *Router) GetPreferences(ctx context.Context, userID int) (*model.NotificationPreferences, error) {
	prefs, err := r.preferences.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		p := r.defaults.Clone()
		p.UserID = userID
		return &p, nil
	}
	return prefs, nil
}

// UpdatePreferences merges a partial update into the user's preferences,
// materializing the row from the defaults on first write.
func (r *Router) UpdatePreferences(ctx context.Context, userID int, upd model.PreferencesUpdate) (*model.NotificationPreferences, error) {
	prefs, err := r.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs.Apply(upd)
	if err := r.preferences.Save(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// MarkAsRead marks one notification read. Already-read rows are left
// untouched.
func (r *Router) MarkAsRead(ctx context.Context, id int) error {
	return r.notifications.MarkRead(ctx, id)
}

// MarkAsActed marks one notification acted upon.
func (r *Router) MarkAsActed(ctx context.Context, id int) error {
	return r.notifications.MarkActed(ctx, id)
}

// MarkAllAsRead marks every unread notification of the user and returns
// how many rows changed.
func (r *Router) MarkAllAsRead(ctx context.Context, userID int) (int64, error) {
	return r.notifications.MarkAllRead(ctx, userID)
}
