package escalation

import (
	"context"
	"errors"
	"sort"
	"time"

	"peopleflow/internal/model"
	"peopleflow/internal/service/router"
	"peopleflow/pkg/metrics"

	"go.uber.org/zap"
)

// EntityStore is the narrow read-only view of the CRM/HR record store the
// engine scans: one query per trigger, plus the manager relation and role
// membership for target resolution.
type EntityStore interface {
	OverdueTasks(ctx context.Context, now time.Time) ([]model.Task, error)
	TasksDueWithin(ctx context.Context, from, to time.Time) ([]model.Task, error)
	PendingApprovalsBefore(ctx context.Context, cutoff time.Time) ([]model.Approval, error)
	ActiveCases(ctx context.Context) ([]model.ComplianceCase, error)
	ExpiringContracts(ctx context.Context, cutoff time.Time) ([]model.Employee, error)
	ManagerOf(ctx context.Context, userID int) (int, error)
	ActiveUsersWithRole(ctx context.Context, role string) ([]int, error)
}

// HistoryStore is the append-only escalation ledger.
type HistoryStore interface {
	Insert(ctx context.Context, h *model.EscalationHistory) (int, error)
	LastEscalatedAt(ctx context.Context, ruleID int, entityType model.EntityType, entityID int) (time.Time, bool, error)
	MaxLevel(ctx context.Context, ruleID int, entityType model.EntityType, entityID int) (int, bool, error)
}

// RuleStore lists the active escalation rules.
type RuleStore interface {
	ListActive(ctx context.Context) ([]model.NotificationRule, error)
}

// Notifier is the Router surface the engine submits notifications through.
type Notifier interface {
	CreateNotification(ctx context.Context, p router.CreateParams) (int, error)
}

// Engine walks active rules on every scan, finds entities that crossed a
// rule's threshold and advances them one step along the escalation chain.
type Engine struct {
	entities     EntityStore
	history      HistoryStore
	rules        RuleStore
	notifier     Notifier
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

func NewEngine(
	entities EntityStore,
	history HistoryStore,
	rules RuleStore,
	notifier Notifier,
	storeTimeout time.Duration,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		entities:     entities,
		history:      history,
		rules:        rules,
		notifier:     notifier,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// ProcessEscalations runs one scan and returns how many escalations were
// performed. It never panics and never returns early on a partial
// failure: a failing entity or rule is logged and the rest of the batch
// continues.
func (e *Engine) ProcessEscalations(ctx context.Context) int {
	start := e.now()
	e.logger.Info("Starting escalation scan")

	callCtx, cancel := e.boundStoreCall(ctx)
	rules, err := e.rules.ListActive(callCtx)
	cancel()
	if err != nil {
		e.logger.Error("Failed to list active rules, aborting scan", zap.Error(err))
		metrics.IncEscalationSkipped("store_error")
		return 0
	}

	processed := 0
	for _, rule := range rules {
		processed += e.processRule(ctx, rule)
	}

	metrics.ObserveScanDuration(e.now().Sub(start))
	e.logger.Info("Escalation scan completed",
		zap.Int("rules", len(rules)),
		zap.Int("escalations", processed),
	)
	return processed
}

func (e *Engine) processRule(ctx context.Context, rule model.NotificationRule) int {
	match, err := triggerFor(rule.EntityType, rule.TriggerEvent)
	if err != nil {
		// Configuration error: the pair is skipped, the rule stays active.
		e.logger.Warn("Skipping misconfigured rule",
			zap.Error(err),
			zap.Int("rule_id", rule.ID),
			zap.String("rule", rule.Name),
		)
		metrics.IncEscalationSkipped("config_error")
		return 0
	}

	now := e.now()
	callCtx, cancel := e.boundStoreCall(ctx)
	entities, err := match(callCtx, e.entities, now)
	cancel()
	if err != nil {
		e.logger.Error("Failed to query entities for rule, skipping rule",
			zap.Error(err),
			zap.Int("rule_id", rule.ID),
			zap.String("rule", rule.Name),
		)
		metrics.IncEscalationSkipped("store_error")
		return 0
	}
	if len(entities) == 0 {
		return 0
	}

	// Chain order comes from JSON; positions are authoritative.
	chain := make([]model.EscalationStep, len(rule.Chain))
	copy(chain, rule.Chain)
	sort.Slice(chain, func(i, j int) bool { return chain[i].Position < chain[j].Position })
	rule.Chain = chain

	processed := 0
	for _, entity := range entities {
		if e.processEntity(ctx, rule, entity, now) {
			processed++
		}
	}
	return processed
}

// processEntity applies the throttle and, when due, escalates one entity.
// Returns true when at least one escalation history row was written.
func (e *Engine) processEntity(ctx context.Context, rule model.NotificationRule, entity model.Entity, now time.Time) bool {
	log := e.logger.With(
		zap.Int("rule_id", rule.ID),
		zap.String("entity_type", string(entity.Kind())),
		zap.Int("entity_id", entity.EntityID()),
	)

	// Throttle per (rule, entity): one escalation per delay window.
	callCtx, cancel := e.boundStoreCall(ctx)
	last, escalatedBefore, err := e.history.LastEscalatedAt(callCtx, rule.ID, entity.Kind(), entity.EntityID())
	cancel()
	if err != nil {
		log.Error("Failed to check escalation history, skipping entity", zap.Error(err))
		metrics.IncEscalationSkipped("store_error")
		return false
	}
	if escalatedBefore && now.Sub(last) < time.Duration(rule.DelayHours)*time.Hour {
		metrics.IncEscalationSkipped("throttled")
		return false
	}

	callCtx, cancel = e.boundStoreCall(ctx)
	maxLevel, hasLevel, err := e.history.MaxLevel(callCtx, rule.ID, entity.Kind(), entity.EntityID())
	cancel()
	if err != nil {
		log.Error("Failed to read escalation level, skipping entity", zap.Error(err))
		metrics.IncEscalationSkipped("store_error")
		return false
	}

	nextLevel := 0
	if hasLevel {
		nextLevel = maxLevel + 1
	}
	if nextLevel >= len(rule.Chain) {
		// Chain exhausted: the defined terminal state, not an error.
		metrics.IncEscalationSkipped("terminal")
		return false
	}

	targets, err := e.resolveTargets(ctx, rule.Chain[nextLevel], entity)
	if err != nil {
		log.Error("Failed to resolve escalation targets, skipping entity", zap.Error(err))
		metrics.IncEscalationSkipped("store_error")
		return false
	}
	if len(targets) == 0 {
		log.Warn("Escalation step resolves to nobody, skipping entity",
			zap.Int("level", nextLevel),
			zap.String("role", rule.Chain[nextLevel].Role),
		)
		metrics.IncEscalationSkipped("config_error")
		return false
	}

	escalated := false
	for _, target := range targets {
		if e.escalateTo(ctx, rule, entity, nextLevel, target, log) {
			escalated = true
		}
	}
	if escalated {
		metrics.IncEscalationProcessed(rule.Name, string(entity.Kind()))
	}
	return escalated
}

// escalateTo notifies one target and records the ledger row. The two
// writes are paired: no history row is written unless the notification
// was created.
func (e *Engine) escalateTo(ctx context.Context, rule model.NotificationRule, entity model.Entity, level, target int, log *zap.Logger) bool {
	params := buildNotification(entity, rule, level, target)

	callCtx, cancel := e.boundStoreCall(ctx)
	notificationID, err := e.notifier.CreateNotification(callCtx, params)
	cancel()
	if err != nil {
		log.Error("Failed to create escalation notification", zap.Error(err), zap.Int("target", target))
		metrics.IncEscalationSkipped("store_error")
		return false
	}

	h := &model.EscalationHistory{
		NotificationID: notificationID,
		RuleID:         rule.ID,
		EntityType:     entity.Kind(),
		EntityID:       entity.EntityID(),
		FromUserID:     entity.OwnerID(),
		ToUserID:       target,
		Level:          level,
		Reason:         string(rule.TriggerEvent),
	}
	callCtx, cancel = e.boundStoreCall(ctx)
	_, err = e.history.Insert(callCtx, h)
	cancel()
	if err != nil {
		// The notification exists; a missing ledger row means the entity
		// may escalate again next scan. Acceptable: the reverse (ledger
		// without notification) is not.
		log.Error("Failed to record escalation history", zap.Error(err), zap.Int("notification_id", notificationID))
		return false
	}

	log.Info("Escalated",
		zap.Int("level", level),
		zap.Int("target", target),
		zap.Int("notification_id", notificationID),
	)
	return true
}

// resolveTargets turns a chain step into user ids. A concrete user id
// wins; the role "manager" prefers the entity's own manager relation and
// falls back to all active holders of the role, as any other role does.
func (e *Engine) resolveTargets(ctx context.Context, step model.EscalationStep, entity model.Entity) ([]int, error) {
	if step.UserID != nil {
		return []int{*step.UserID}, nil
	}
	if step.Role == "" {
		return nil, errors.New("escalation step has neither user nor role")
	}

	if step.Role == "manager" {
		if emp, ok := entity.(model.Employee); ok && emp.ManagerID != nil {
			return []int{*emp.ManagerID}, nil
		}
		if owner := entity.OwnerID(); owner != 0 {
			callCtx, cancel := e.boundStoreCall(ctx)
			managerID, err := e.entities.ManagerOf(callCtx, owner)
			cancel()
			if err != nil {
				return nil, err
			}
			if managerID != 0 {
				return []int{managerID}, nil
			}
		}
	}

	callCtx, cancel := e.boundStoreCall(ctx)
	defer cancel()
	return e.entities.ActiveUsersWithRole(callCtx, step.Role)
}

// boundStoreCall derives a context that bounds one store call, so a
// stalled store fails the current entity instead of hanging the scan.
func (e *Engine) boundStoreCall(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.storeTimeout)
}
