package model

import "time"

// EntityType enumerates the record kinds escalation rules can watch.
type EntityType string

const (
	EntityTask     EntityType = "task"
	EntityApproval EntityType = "approval"
	EntityCase     EntityType = "case"
	EntityEmployee EntityType = "employee"
)

// Entity is the minimal view the escalation engine needs of a watched
// record: identity, a human label and the currently responsible user.
type Entity interface {
	Kind() EntityType
	EntityID() int
	Label() string
	// OwnerID is the user currently responsible for the record; it becomes
	// the from-side of an escalation history row.
	OwnerID() int
}

// Task is the escalation view of a task row.
type Task struct {
	ID         int        `json:"id"`
	Title      string     `json:"title"`
	AssigneeID int        `json:"assignee_id"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Status     string     `json:"status"`
}

func (t Task) Kind() EntityType { return EntityTask }
func (t Task) EntityID() int    { return t.ID }
func (t Task) Label() string    { return t.Title }
func (t Task) OwnerID() int     { return t.AssigneeID }

// Approval is the escalation view of a pending approval request.
type Approval struct {
	ID          int       `json:"id"`
	Subject     string    `json:"subject"`
	RequesterID int       `json:"requester_id"`
	ApproverID  int       `json:"approver_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (a Approval) Kind() EntityType { return EntityApproval }
func (a Approval) EntityID() int    { return a.ID }
func (a Approval) Label() string    { return a.Subject }
func (a Approval) OwnerID() int     { return a.ApproverID }

// ComplianceCase is the escalation view of a statutory compliance case.
// Week checkpoints are counted from StartDate.
type ComplianceCase struct {
	ID         int       `json:"id"`
	Reference  string    `json:"reference"`
	EmployeeID int       `json:"employee_id"`
	HandlerID  int       `json:"handler_id"`
	StartDate  time.Time `json:"start_date"`
	Active     bool      `json:"active"`
}

func (c ComplianceCase) Kind() EntityType { return EntityCase }
func (c ComplianceCase) EntityID() int    { return c.ID }
func (c ComplianceCase) Label() string    { return c.Reference }
func (c ComplianceCase) OwnerID() int     { return c.HandlerID }

// Employee is the escalation view of an employment record, used for
// contract-expiry rules.
type Employee struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	ManagerID *int       `json:"manager_id,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Active    bool       `json:"active"`
}

func (e Employee) Kind() EntityType { return EntityEmployee }
func (e Employee) EntityID() int    { return e.ID }
func (e Employee) Label() string    { return e.Name }
func (e Employee) OwnerID() int {
	if e.ManagerID != nil {
		return *e.ManagerID
	}
	return 0
}
