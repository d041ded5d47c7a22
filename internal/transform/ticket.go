package transform

import "github.com/yourorg/crmbridge/internal/domain"

// Ticket reconciles ticket documents. Tickets carry relationship fields for
// their customer and status; the canonical shape resolves those to scalars the
// table views bind to.
type Ticket struct{}

func (Ticket) SearchField() string { return "title" }

func (Ticket) ToCanonical(doc domain.Document) domain.Record {
	if doc == nil {
		return nil
	}

	status := str(doc["status"])
	if statusRel, ok := subDocument(doc["status_id"]); ok {
		status = firstNonEmpty(str(statusRel["label"]), status)
	}
	if status == "" {
		status = "open"
	}

	clientID := str(doc["customer_id"])
	clientName := ""
	if customerRel, ok := subDocument(doc["customer_id"]); ok {
		clientID = str(customerRel["$id"])
		clientName = str(customerRel["name"])
	}

	title := firstNonEmpty(str(doc["workflow"]), str(doc["title"]))
	if title == "" {
		title = "No Title"
	}

	return domain.Record{
		"_id":           str(doc["$id"]),
		"createdAt":     str(doc["$createdAt"]),
		"updatedAt":     str(doc["$updatedAt"]),
		"title":         title,
		"description":   str(doc["description"]),
		"status":        status,
		"priority":      firstNonEmpty(str(doc["priority"]), "medium"),
		"assignedTo":    list(doc["assignee_ids"]),
		"clientId":      clientID,
		"clientName":    clientName,
		"ticketNumber":  str(doc["$id"]),
		"category":      str(doc["category"]),
		"tags":          list(doc["tags"]),
		"totalHours":    number(doc["total_hours"]),
		"billableHours": number(doc["billable_hours"]),
		"attachments":   list(doc["attachments"]),
	}
}

func (Ticket) ToStoreShape(record domain.Record) map[string]any {
	return map[string]any{
		"workflow":    str(record["title"]),
		"description": str(record["description"]),
		"priority":    str(record["priority"]),
		"category":    str(record["category"]),
	}
}
