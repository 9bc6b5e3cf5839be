package escalation

import (
	"fmt"

	"peopleflow/internal/model"
	"peopleflow/internal/service/router"
)

// entityLabels are the human labels used in escalation titles.
var entityLabels = map[model.EntityType]string{
	model.EntityTask:     "taak",
	model.EntityApproval: "goedkeuring",
	model.EntityCase:     "verzuimdossier",
	model.EntityEmployee: "contract",
}

// ordinal returns the Dutch ordinal used in escalation messages. Levels
// beyond the second all read "Derde".
func ordinal(level int) string {
	switch level {
	case 0:
		return "Eerste"
	case 1:
		return "Tweede"
	default:
		return "Derde"
	}
}

// buildNotification assembles the notification for one escalation target.
// Title, actions and deep link are fixed per entity type.
func buildNotification(entity model.Entity, rule model.NotificationRule, level, targetID int) router.CreateParams {
	p := router.CreateParams{
		UserID:   targetID,
		Title:    fmt.Sprintf("Escalatie: %s %s", entityLabels[entity.Kind()], entity.Label()),
		Message:  fmt.Sprintf("%s escalatie: %s. Actie vereist.", ordinal(level), rule.Description),
		Type:     model.TypeEscalation,
		Priority: model.PriorityHigh,
		Metadata: map[string]any{
			"is_critical":      level >= 2,
			"legal_compliance": entity.Kind() == model.EntityCase,
			"rule_id":          rule.ID,
			"entity_type":      string(entity.Kind()),
			"entity_id":        entity.EntityID(),
		},
	}
	if level >= 2 {
		p.Priority = model.PriorityUrgent
	}

	switch entity.Kind() {
	case model.EntityTask:
		p.Actions = []model.Action{
			{Label: "Bekijk taak", Kind: model.ActionView, Style: "primary"},
			{Label: "Wijs opnieuw toe", Kind: model.ActionReassign, Style: "secondary"},
		}
		p.DeepLink = fmt.Sprintf("/tasks/%d", entity.EntityID())
	case model.EntityApproval:
		p.Actions = []model.Action{
			{Label: "Goedkeuren", Kind: model.ActionApprove, Style: "primary"},
			{Label: "Afwijzen", Kind: model.ActionReject, Style: "danger"},
		}
		p.DeepLink = "/approvals"
	case model.EntityCase:
		p.Actions = []model.Action{
			{Label: "Bekijk dossier", Kind: model.ActionView, Style: "primary"},
		}
		p.DeepLink = fmt.Sprintf("/case/%d", entity.EntityID())
	case model.EntityEmployee:
		p.Actions = []model.Action{
			{Label: "Verleng contract", Kind: model.ActionExtend, Style: "primary"},
			{Label: "Bekijk medewerker", Kind: model.ActionView, Style: "secondary"},
		}
		p.DeepLink = fmt.Sprintf("/employees/%d", entity.EntityID())
	}
	return p
}
