package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"peopleflow/internal/model"
)

// ErrUnknownTrigger marks a rule whose entity type / trigger event
// combination the engine does not know. The rule pair is skipped; the rule
// itself stays active.
var ErrUnknownTrigger = errors.New("unknown entity type / trigger event combination")

// matcher finds the entities a rule currently applies to.
type matcher func(ctx context.Context, store EntityStore, now time.Time) ([]model.Entity, error)

// triggerFor maps the closed set of (entity type, trigger event) pairs to
// their typed queries. The windows encode business and statutory
// deadlines; do not tune them without the rule owners.
func triggerFor(entityType model.EntityType, event model.TriggerEvent) (matcher, error) {
	switch {
	case entityType == model.EntityTask && event == model.TriggerOverdue:
		return func(ctx context.Context, store EntityStore, now time.Time) ([]model.Entity, error) {
			tasks, err := store.OverdueTasks(ctx, now)
			return taskEntities(tasks), err
		}, nil

	case entityType == model.EntityTask && event == model.TriggerDeadlineApproaching:
		return func(ctx context.Context, store EntityStore, now time.Time) ([]model.Entity, error) {
			tasks, err := store.TasksDueWithin(ctx, now, now.Add(24*time.Hour))
			return taskEntities(tasks), err
		}, nil

	case entityType == model.EntityApproval && event == model.TriggerPending:
		return func(ctx context.Context, store EntityStore, now time.Time) ([]model.Entity, error) {
			approvals, err := store.PendingApprovalsBefore(ctx, now.Add(-48*time.Hour))
			if err != nil {
				return nil, err
			}
			entities := make([]model.Entity, len(approvals))
			for i, a := range approvals {
				entities[i] = a
			}
			return entities, nil
		}, nil

	case entityType == model.EntityCase && event == model.TriggerDeadlineApproaching:
		return func(ctx context.Context, store EntityStore, now time.Time) ([]model.Entity, error) {
			cases, err := store.ActiveCases(ctx)
			if err != nil {
				return nil, err
			}
			entities := []model.Entity{}
			for _, c := range cases {
				if atWeekCheckpoint(c.StartDate, now) {
					entities = append(entities, c)
				}
			}
			return entities, nil
		}, nil

	case entityType == model.EntityEmployee && event == model.TriggerContractExpiring:
		return func(ctx context.Context, store EntityStore, now time.Time) ([]model.Entity, error) {
			employees, err := store.ExpiringContracts(ctx, now.Add(90*24*time.Hour))
			if err != nil {
				return nil, err
			}
			entities := make([]model.Entity, len(employees))
			for i, e := range employees {
				entities[i] = e
			}
			return entities, nil
		}, nil
	}

	return nil, fmt.Errorf("%w: %s/%s", ErrUnknownTrigger, entityType, event)
}

func taskEntities(tasks []model.Task) []model.Entity {
	entities := make([]model.Entity, len(tasks))
	for i, t := range tasks {
		entities[i] = t
	}
	return entities
}

// atWeekCheckpoint reports whether a case hits the week-6 or week-42
// statutory checkpoint today. The boundary is exact: 35 whole days (start
// of week 6) or 287 whole days (start of week 42), never a >= window.
func atWeekCheckpoint(start, now time.Time) bool {
	elapsedDays := int(now.Sub(start).Hours() / 24)
	if elapsedDays < 0 || elapsedDays%7 != 0 {
		return false
	}
	weeks := elapsedDays / 7
	return weeks == 5 || weeks == 41
}
