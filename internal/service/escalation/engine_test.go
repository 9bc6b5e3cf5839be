package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"peopleflow/internal/model"
	"peopleflow/internal/service/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type fakeEntityStore struct {
	tasks     []model.Task
	approvals []model.Approval
	cases     []model.ComplianceCase
	employees []model.Employee
	managers  map[int]int
	roles     map[string][]int
}

func (s *fakeEntityStore) OverdueTasks(_ context.Context, now time.Time) ([]model.Task, error) {
	out := []model.Task{}
	for _, t := range s.tasks {
		if t.Deadline != nil && t.Deadline.Before(now) && t.Status != "completed" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeEntityStore) TasksDueWithin(_ context.Context, from, to time.Time) ([]model.Task, error) {
	out := []model.Task{}
	for _, t := range s.tasks {
		if t.Deadline != nil && !t.Deadline.Before(from) && !t.Deadline.After(to) && t.Status != "completed" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeEntityStore) PendingApprovalsBefore(_ context.Context, cutoff time.Time) ([]model.Approval, error) {
	out := []model.Approval{}
	for _, a := range s.approvals {
		if a.Status == "pending" && a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeEntityStore) ActiveCases(_ context.Context) ([]model.ComplianceCase, error) {
	out := []model.ComplianceCase{}
	for _, c := range s.cases {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeEntityStore) ExpiringContracts(_ context.Context, cutoff time.Time) ([]model.Employee, error) {
	out := []model.Employee{}
	for _, e := range s.employees {
		if e.Active && e.EndDate != nil && !e.EndDate.After(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeEntityStore) ManagerOf(_ context.Context, userID int) (int, error) {
	return s.managers[userID], nil
}

func (s *fakeEntityStore) ActiveUsersWithRole(_ context.Context, role string) ([]int, error) {
	return s.roles[role], nil
}

type fakeHistoryStore struct {
	rows      []model.EscalationHistory
	nextID    int
	insertErr error
}

func (s *fakeHistoryStore) Insert(_ context.Context, h *model.EscalationHistory) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.nextID++
	h.ID = s.nextID
	if h.CreatedAt.IsZero() {
		h.CreatedAt = testNow
	}
	s.rows = append(s.rows, *h)
	return h.ID, nil
}

func (s *fakeHistoryStore) LastEscalatedAt(_ context.Context, ruleID int, entityType model.EntityType, entityID int) (time.Time, bool, error) {
	var last time.Time
	found := false
	for _, h := range s.rows {
		if h.RuleID == ruleID && h.EntityType == entityType && h.EntityID == entityID && h.CreatedAt.After(last) {
			last = h.CreatedAt
			found = true
		}
	}
	return last, found, nil
}

func (s *fakeHistoryStore) MaxLevel(_ context.Context, ruleID int, entityType model.EntityType, entityID int) (int, bool, error) {
	maxLevel := 0
	found := false
	for _, h := range s.rows {
		if h.RuleID == ruleID && h.EntityType == entityType && h.EntityID == entityID {
			if !found || h.Level > maxLevel {
				maxLevel = h.Level
			}
			found = true
		}
	}
	return maxLevel, found, nil
}

type fakeRuleStore struct {
	rules []model.NotificationRule
}

func (s *fakeRuleStore) ListActive(_ context.Context) ([]model.NotificationRule, error) {
	return s.rules, nil
}

type fakeNotifier struct {
	created []router.CreateParams
	nextID  int
	err     error
}

func (n *fakeNotifier) CreateNotification(_ context.Context, p router.CreateParams) (int, error) {
	if n.err != nil {
		return 0, n.err
	}
	n.nextID++
	n.created = append(n.created, p)
	return n.nextID, nil
}

func intPtr(i int) *int { return &i }

func newTestEngine(entities *fakeEntityStore, history *fakeHistoryStore, rules *fakeRuleStore, notifier *fakeNotifier) *Engine {
	e := NewEngine(entities, history, rules, notifier, time.Second, zap.NewNop())
	e.now = func() time.Time { return testNow }
	return e
}

func overdueTaskRule(chain []model.EscalationStep) model.NotificationRule {
	return model.NotificationRule{
		ID:           1,
		Name:         "taak-te-laat",
		Description:  "taak is over de deadline",
		EntityType:   model.EntityTask,
		TriggerEvent: model.TriggerOverdue,
		DelayHours:   24,
		Chain:        chain,
		Active:       true,
	}
}

func overdueTask(id, assignee int) model.Task {
	deadline := testNow.Add(-2 * time.Hour)
	return model.Task{ID: id, Title: "Rapport afronden", AssigneeID: assignee, Deadline: &deadline, Status: "open"}
}

func TestProcessEscalationsNotifiesFirstChainStep(t *testing.T) {
	entities := &fakeEntityStore{tasks: []model.Task{overdueTask(100, 5)}}
	history := &fakeHistoryStore{}
	notifier := &fakeNotifier{}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		overdueTaskRule([]model.EscalationStep{
			{Position: 0, UserID: intPtr(10)},
			{Position: 1, Role: "manager"},
		}),
	}}

	e := newTestEngine(entities, history, rules, notifier)
	processed := e.ProcessEscalations(context.Background())

	assert.Equal(t, 1, processed)
	require.Len(t, notifier.created, 1)
	assert.Equal(t, 10, notifier.created[0].UserID)
	assert.Equal(t, model.TypeEscalation, notifier.created[0].Type)
	assert.Equal(t, "Escalatie: taak Rapport afronden", notifier.created[0].Title)
	assert.Contains(t, notifier.created[0].Message, "Eerste escalatie")
	assert.Contains(t, notifier.created[0].Message, "Actie vereist.")
	assert.Equal(t, "/tasks/100", notifier.created[0].DeepLink)
	assert.Equal(t, false, notifier.created[0].Metadata["is_critical"])

	require.Len(t, history.rows, 1)
	assert.Equal(t, 0, history.rows[0].Level)
	assert.Equal(t, 5, history.rows[0].FromUserID)
	assert.Equal(t, 10, history.rows[0].ToUserID)
	assert.Equal(t, model.EntityTask, history.rows[0].EntityType)
	assert.Equal(t, 100, history.rows[0].EntityID)
}

func TestProcessEscalationsThrottledWithinDelayWindow(t *testing.T) {
	entities := &fakeEntityStore{tasks: []model.Task{overdueTask(100, 5)}}
	history := &fakeHistoryStore{}
	notifier := &fakeNotifier{}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		overdueTaskRule([]model.EscalationStep{
			{Position: 0, UserID: intPtr(10)},
			{Position: 1, UserID: intPtr(11)},
		}),
	}}

	e := newTestEngine(entities, history, rules, notifier)

	assert.Equal(t, 1, e.ProcessEscalations(context.Background()))
	// Second scan inside the 24h window: the ledger suppresses it.
	assert.Equal(t, 0, e.ProcessEscalations(context.Background()))
	assert.Len(t, history.rows, 1, "no second ledger row for the same rule and entity within delay_hours")
	assert.Len(t, notifier.created, 1)
}

func TestProcessEscalationsAdvancesLevelAfterDelay(t *testing.T) {
	entities := &fakeEntityStore{tasks: []model.Task{overdueTask(100, 5)}}
	history := &fakeHistoryStore{rows: []model.EscalationHistory{
		{ID: 1, RuleID: 1, EntityType: model.EntityTask, EntityID: 100, ToUserID: 10, Level: 0, CreatedAt: testNow.Add(-25 * time.Hour)},
	}, nextID: 1}
	notifier := &fakeNotifier{}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		overdueTaskRule([]model.EscalationStep{
			{Position: 0, UserID: intPtr(10)},
			{Position: 1, UserID: intPtr(11)},
		}),
	}}

	e := newTestEngine(entities, history, rules, notifier)
	processed := e.ProcessEscalations(context.Background())

	assert.Equal(t, 1, processed)
	require.Len(t, notifier.created, 1)
	assert.Equal(t, 11, notifier.created[0].UserID)
	assert.Contains(t, notifier.created[0].Message, "Tweede escalatie")
	require.Len(t, history.rows, 2)
	assert.Equal(t, 1, history.rows[1].Level)
}

func TestEscalationChainTerminal(t *testing.T) {
	entities := &fakeEntityStore{tasks: []model.Task{overdueTask(100, 5)}}
	// Both chain levels already walked, well outside the delay window.
	history := &fakeHistoryStore{rows: []model.EscalationHistory{
		{ID: 1, RuleID: 1, EntityType: model.EntityTask, EntityID: 100, Level: 0, CreatedAt: testNow.Add(-72 * time.Hour)},
		{ID: 2, RuleID: 1, EntityType: model.EntityTask, EntityID: 100, Level: 1, CreatedAt: testNow.Add(-48 * time.Hour)},
	}, nextID: 2}
	notifier := &fakeNotifier{}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		overdueTaskRule([]model.EscalationStep{
			{Position: 0, UserID: intPtr(10)},
			{Position: 1, UserID: intPtr(11)},
		}),
	}}

	e := newTestEngine(entities, history, rules, notifier)
	processed := e.ProcessEscalations(context.Background())

	assert.Equal(t, 0, processed, "an exhausted chain is terminal, not an error")
	assert.Empty(t, notifier.created, "no notification beyond the last chain step")
	assert.Len(t, history.rows, 2, "no ledger writes beyond the last chain step")
}

func TestThrottleIsScopedPerEntity(t *testing.T) {
	entities := &fakeEntityStore{tasks: []model.Task{overdueTask(100, 5), overdueTask(200, 6)}}
	// Task 100 escalated moments ago; task 200 never.
	history := &fakeHistoryStore{rows: []model.EscalationHistory{
		{ID: 1, RuleID: 1, EntityType: model.EntityTask, EntityID: 100, Level: 0, CreatedAt: testNow.Add(-time.Minute)},
	}, nextID: 1}
	notifier := &fakeNotifier{}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		overdueTaskRule([]model.EscalationStep{{Position: 0, UserID: intPtr(10)}}),
	}}

	e := newTestEngine(entities, history, rules, notifier)
	processed := e.ProcessEscalations(context.Background())

	assert.Equal(t, 1, processed, "task 100's recent escalation must not suppress task 200")
	require.Len(t, history.rows, 2)
	assert.Equal(t, 200, history.rows[1].EntityID)
}

func TestManagerRolePrefersManagerRelation(t *testing.T) {
	entities := &fakeEntityStore{
		tasks:    []model.Task{overdueTask(100, 5)},
		managers: map[int]int{5: 7},
		roles:    map[string][]int{"manager": {2, 3}},
	}
	history := &fakeHistoryStore{}
	notifier := &fakeNotifier{}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		overdueTaskRule([]model.EscalationStep{{Position: 0, Role: "manager"}}),
	}}

	e := newTestEngine(entities, history, rules, notifier)
	e.ProcessEscalations(context.Background())

	require.Len(t, notifier.created, 1)
	assert.Equal(t, 7, notifier.created[0].UserID, "the assignee's own manager wins over the role query")
}

func TestManagerRoleFallsBackToRoleHolders(t *testing.T) {
	entities := &fakeEntityStore{
		tasks: []model.Task{overdueTask(100, 5)},
		roles: map[string][]int{"manager": {2, 3}},
	}
	history := &fakeHistoryStore{}
	notifier := &fakeNotifier{}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		overdueTaskRule([]model.EscalationStep{{Position: 0, Role: "manager"}}),
	}}

	e := newTestEngine(entities, history, rules, notifier)
	processed := e.ProcessEscalations(context.Background())

	assert.Equal(t, 1, processed)
	require.Len(t, notifier.created, 2, "every active role holder is notified")
	assert.Len(t, history.rows, 2, "one ledger row per notified target")
	assert.Equal(t, notifier.created[0].UserID, history.rows[0].ToUserID)
}

func TestHistoryOnlyWrittenWhenNotificationSucceeds(t *testing.T) {
	entities := &fakeEntityStore{tasks: []model.Task{overdueTask(100, 5)}}
	history := &fakeHistoryStore{}
	notifier := &fakeNotifier{err: errors.New("store down")}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		overdueTaskRule([]model.EscalationStep{{Position: 0, UserID: intPtr(10)}}),
	}}

	e := newTestEngine(entities, history, rules, notifier)
	processed := e.ProcessEscalations(context.Background())

	assert.Equal(t, 0, processed)
	assert.Empty(t, history.rows, "no ledger row without its notification")
}

func TestMisconfiguredRuleIsSkippedNotFatal(t *testing.T) {
	entities := &fakeEntityStore{tasks: []model.Task{overdueTask(100, 5)}}
	history := &fakeHistoryStore{}
	notifier := &fakeNotifier{}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		{
			ID:           7,
			Name:         "kapot",
			EntityType:   model.EntityEmployee,
			TriggerEvent: model.TriggerOverdue, // no such combination
			DelayHours:   24,
			Chain:        []model.EscalationStep{{Position: 0, UserID: intPtr(10)}},
			Active:       true,
		},
		overdueTaskRule([]model.EscalationStep{{Position: 0, UserID: intPtr(10)}}),
	}}

	e := newTestEngine(entities, history, rules, notifier)
	processed := e.ProcessEscalations(context.Background())

	assert.Equal(t, 1, processed, "the valid rule still runs after the misconfigured one")
	assert.Len(t, notifier.created, 1)
}

func TestCriticalMetadataFromLevelAndEntityType(t *testing.T) {
	startDate := testNow.Add(-35 * 24 * time.Hour)
	entities := &fakeEntityStore{
		cases: []model.ComplianceCase{{ID: 300, Reference: "VZ-2025-017", EmployeeID: 5, HandlerID: 8, StartDate: startDate, Active: true}},
	}
	// Levels 0 and 1 already recorded, outside the delay window.
	history := &fakeHistoryStore{rows: []model.EscalationHistory{
		{ID: 1, RuleID: 2, EntityType: model.EntityCase, EntityID: 300, Level: 0, CreatedAt: testNow.Add(-72 * time.Hour)},
		{ID: 2, RuleID: 2, EntityType: model.EntityCase, EntityID: 300, Level: 1, CreatedAt: testNow.Add(-48 * time.Hour)},
	}, nextID: 2}
	notifier := &fakeNotifier{}
	rules := &fakeRuleStore{rules: []model.NotificationRule{
		{
			ID:           2,
			Name:         "verzuim-checkpoint",
			Description:  "wettelijk controlemoment verzuimdossier",
			EntityType:   model.EntityCase,
			TriggerEvent: model.TriggerDeadlineApproaching,
			DelayHours:   24,
			Chain: []model.EscalationStep{
				{Position: 0, UserID: intPtr(10)},
				{Position: 1, UserID: intPtr(11)},
				{Position: 2, UserID: intPtr(12)},
			},
			Active: true,
		},
	}}

	e := newTestEngine(entities, history, rules, notifier)
	e.ProcessEscalations(context.Background())

	require.Len(t, notifier.created, 1)
	assert.Equal(t, 12, notifier.created[0].UserID)
	assert.Equal(t, true, notifier.created[0].Metadata["is_critical"])
	assert.Equal(t, true, notifier.created[0].Metadata["legal_compliance"])
	assert.Contains(t, notifier.created[0].Message, "Derde escalatie")
	assert.Equal(t, "/case/300", notifier.created[0].DeepLink)
	assert.Equal(t, model.PriorityUrgent, notifier.created[0].Priority)
}
