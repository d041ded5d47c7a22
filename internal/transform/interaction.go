package transform

import (
	"encoding/json"
	"time"

	"github.com/yourorg/crmbridge/internal/domain"
)

// Interactions have no collection of their own; they piggyback on the primary
// store's taxes entity with their extra fields packed into a JSON sidecar in
// the notes field. The sidecar flag tells interaction rows apart from real
// taxes rows sharing the entity.

type interactionSidecar struct {
	AdditionalNotes string   `json:"additionalNotes"`
	TicketIDs       []string `json:"ticketIds"`
	Date            string   `json:"date"`
	Duration        float64  `json:"duration"`
	IsInteraction   bool     `json:"isInteraction"`
}

// InteractionToHostEntity packs an interaction record into the host entity's
// write shape.
func InteractionToHostEntity(record domain.Record) domain.Record {
	sidecar := interactionSidecar{
		AdditionalNotes: str(record["notes"]),
		TicketIDs:       stringList(record["ticketIds"]),
		Date:            str(record["date"]),
		Duration:        number(record["duration"]),
		IsInteraction:   true,
	}
	if sidecar.Date == "" {
		sidecar.Date = time.Now().UTC().Format(time.RFC3339)
	}
	notes, _ := json.Marshal(sidecar)

	return domain.Record{
		"name":        str(record["subject"]),
		"description": str(record["description"]),
		"value":       firstNonEmpty(str(record["type"]), "call"),
		"client":      str(record["client"]),
		"status":      firstNonEmpty(str(record["interactionStatus"]), "completed"),
		"notes":       string(notes),
	}
}

// InteractionFromHostEntity unpacks a host entity record back into an
// interaction. Rows that were not stored as interactions map to nil.
func InteractionFromHostEntity(record domain.Record) domain.Record {
	if record == nil {
		return nil
	}

	var sidecar interactionSidecar
	if err := json.Unmarshal([]byte(str(record["notes"])), &sidecar); err != nil || !sidecar.IsInteraction {
		return nil
	}

	ticketIDs := sidecar.TicketIDs
	if ticketIDs == nil {
		ticketIDs = []string{}
	}

	return domain.Record{
		"_id":               str(record["_id"]),
		"subject":           str(record["name"]),
		"description":       str(record["description"]),
		"type":              firstNonEmpty(str(record["value"]), "call"),
		"client":            str(record["client"]),
		"interactionStatus": firstNonEmpty(str(record["status"]), "completed"),
		"notes":             sidecar.AdditionalNotes,
		"ticketIds":         ticketIDs,
		"date":              firstNonEmpty(sidecar.Date, str(record["created"])),
		"duration":          sidecar.Duration,
		"created":           str(record["created"]),
		"updated":           str(record["updated"]),
	}
}

// FilterInteractions keeps only the rows of a host entity listing that decode
// as interactions.
func FilterInteractions(records []domain.Record) []domain.Record {
	out := []domain.Record{}
	for _, r := range records {
		if interaction := InteractionFromHostEntity(r); interaction != nil {
			out = append(out, interaction)
		}
	}
	return out
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, str(item))
		}
		return out
	default:
		return []string{}
	}
}
