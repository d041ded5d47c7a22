package transform

import "github.com/yourorg/crmbridge/internal/domain"

// Customer reconciles customer documents. The store embeds related contact
// records under customer_contact_ids; the canonical shape flattens the first
// related contact into the contact/phone/email scalars. The flattened scalars
// are never written back, which is an accepted one-way loss: the store's
// contact sub-documents stay authoritative.
type Customer struct{}

func (Customer) SearchField() string { return "name" }

func (Customer) ToCanonical(doc domain.Document) domain.Record {
	if doc == nil {
		return nil
	}

	contact, phone, email := "", "", ""
	if related := list(doc["customer_contact_ids"]); len(related) > 0 {
		// First related contact wins; no aggregation across the rest.
		if primary, ok := subDocument(related[0]); ok {
			contact = joinName(str(primary["first_name"]), str(primary["last_name"]))
			phone = firstNonEmpty(str(primary["contact_number"]), str(primary["phone"]))
			email = str(primary["email"])
		}
	}

	return domain.Record{
		"_id":       str(doc["$id"]),
		"createdAt": str(doc["$createdAt"]),
		"updatedAt": str(doc["$updatedAt"]),
		"name":      str(doc["name"]),
		"address":   str(doc["address"]),
		"contact":   contact,
		"phone":     phone,
		"email":     email,
		"abn":       str(doc["abn"]),
		"modified":  str(doc["$updatedAt"]),
	}
}

func (Customer) ToStoreShape(record domain.Record) map[string]any {
	return map[string]any{
		"name":    str(record["name"]),
		"address": str(record["address"]),
		"abn":     str(record["abn"]),
	}
}
