package domain

// Document is a raw secondary-store document. Store-managed metadata fields
// carry a "$" prefix ($id, $createdAt, $updatedAt) and are distinct from user
// fields. Relationship fields hold lists of expanded sub-documents.
type Document map[string]any

// Record is the canonical entity shape the frontend consumes regardless of
// backing store. Every canonical field is present, with absent upstream values
// defaulted to an empty string so form binding stays stable.
type Record map[string]any

// Pagination describes a page window over a listing.
type Pagination struct {
	Page  int `json:"page"`
	Count int `json:"count"`
	Pages int `json:"pages"`
}

// Envelope is the uniform result contract every data operation must produce
// before reaching UI state, from either store.
type Envelope struct {
	Success    bool        `json:"success"`
	Result     any         `json:"result"`
	Message    string      `json:"message,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// ListOptions selects a page of a listing, newest-created first.
type ListOptions struct {
	Page  int
	Items int
}

// SearchOptions runs a substring search on the entity's designated field.
type SearchOptions struct {
	Query string
	Items int
}

// FilterOptions selects documents whose Field equals Value.
type FilterOptions struct {
	Field string
	Value string
}

// WriteRequest carries the payload for create and update operations.
type WriteRequest struct {
	ID   string
	Data Record
}

// OK wraps a successful result.
func OK(result any) Envelope {
	return Envelope{Success: true, Result: result}
}

// OKPaged wraps a successful listing with its page window.
func OKPaged(result any, page, total, items int) Envelope {
	pages := 0
	if items > 0 {
		pages = (total + items - 1) / items
	}
	return Envelope{
		Success:    true,
		Result:     result,
		Pagination: &Pagination{Page: page, Count: total, Pages: pages},
	}
}

// Fail wraps a failure with a human-readable message.
func Fail(result any, message string) Envelope {
	return Envelope{Success: false, Result: result, Message: message}
}
