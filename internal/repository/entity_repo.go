package repository

import (
	"context"
	"errors"
	"time"

	"peopleflow/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// EntityRepository is the narrow read-only view the escalation engine has
// of the CRM/HR record store: the trigger predicates from the rule table,
// the employee manager relation and role membership.
type EntityRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEntityRepository(db *pgxpool.Pool, logger *zap.Logger) *EntityRepository {
	return &EntityRepository{db: db, logger: logger}
}

func (r *EntityRepository) OverdueTasks(ctx context.Context, now time.Time) ([]model.Task, error) {
	query := `
        SELECT id, title, assignee_id, deadline, status
        FROM tasks
        WHERE deadline < $1 AND status != 'completed'
    `
	return r.queryTasks(ctx, query, now)
}

func (r *EntityRepository) TasksDueWithin(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	query := `
        SELECT id, title, assignee_id, deadline, status
        FROM tasks
        WHERE deadline >= $1 AND deadline <= $2 AND status != 'completed'
    `
	return r.queryTasks(ctx, query, from, to)
}

func (r *EntityRepository) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.AssigneeID, &t.Deadline, &t.Status); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// PendingApprovalsBefore returns approvals still pending that were filed
// before the cutoff.
func (r *EntityRepository) PendingApprovalsBefore(ctx context.Context, cutoff time.Time) ([]model.Approval, error) {
	query := `
        SELECT id, subject, requester_id, approver_id, status, created_at
        FROM approvals
        WHERE status = 'pending' AND created_at < $1
    `
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		r.logger.Error("Failed to query pending approvals", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	approvals := []model.Approval{}
	for rows.Next() {
		var a model.Approval
		if err := rows.Scan(&a.ID, &a.Subject, &a.RequesterID, &a.ApproverID, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// ActiveCases returns all running compliance cases. The week-checkpoint
// filter is applied in the engine, not in SQL: the exact-day boundary is
// business logic that must stay testable without a database.
func (r *EntityRepository) ActiveCases(ctx context.Context) ([]model.ComplianceCase, error) {
	query := `
        SELECT id, reference, employee_id, handler_id, start_date, active
        FROM compliance_cases
        WHERE active = TRUE
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query active cases", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	cases := []model.ComplianceCase{}
	for rows.Next() {
		var c model.ComplianceCase
		if err := rows.Scan(&c.ID, &c.Reference, &c.EmployeeID, &c.HandlerID, &c.StartDate, &c.Active); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// ExpiringContracts returns active employees whose contract ends on or
// before the cutoff.
func (r *EntityRepository) ExpiringContracts(ctx context.Context, cutoff time.Time) ([]model.Employee, error) {
	query := `
        SELECT id, name, manager_id, end_date, active
        FROM employees
        WHERE active = TRUE AND end_date IS NOT NULL AND end_date <= $1
    `
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		r.logger.Error("Failed to query expiring contracts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	employees := []model.Employee{}
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.ManagerID, &e.EndDate, &e.Active); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// ManagerOf returns the manager of the given user, or 0 when the user has
// none (or does not exist).
func (r *EntityRepository) ManagerOf(ctx context.Context, userID int) (int, error) {
	query := `SELECT manager_id FROM employees WHERE id = $1`

	var managerID *int
	err := r.db.QueryRow(ctx, query, userID).Scan(&managerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		r.logger.Error("Failed to query manager", zap.Error(err), zap.Int("user_id", userID))
		return 0, err
	}
	if managerID == nil {
		return 0, nil
	}
	return *managerID, nil
}

// ActiveUsersWithRole returns the ids of all active users holding a role.
func (r *EntityRepository) ActiveUsersWithRole(ctx context.Context, role string) ([]int, error) {
	query := `
        SELECT id
        FROM users
        WHERE role = $1 AND active = TRUE
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query, role)
	if err != nil {
		r.logger.Error("Failed to query users by role", zap.Error(err), zap.String("role", role))
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
