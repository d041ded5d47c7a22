package docstore

import "encoding/json"

// Query is a store-native query primitive, serialized to the JSON wire format
// the document service expects in its queries[] parameter.
type Query string

func newQuery(method, attribute string, values ...any) Query {
	payload := map[string]any{"method": method}
	if attribute != "" {
		payload["attribute"] = attribute
	}
	if len(values) > 0 {
		payload["values"] = values
	}
	b, _ := json.Marshal(payload)
	return Query(b)
}

// Limit caps the number of documents returned.
func Limit(n int) Query { return newQuery("limit", "", n) }

// Offset skips the first n documents of the result.
func Offset(n int) Query { return newQuery("offset", "", n) }

// OrderDesc orders results by attribute, descending.
func OrderDesc(attribute string) Query { return newQuery("orderDesc", attribute) }

// Search matches documents whose attribute contains value.
func Search(attribute, value string) Query { return newQuery("search", attribute, value) }

// Equal matches documents whose attribute equals value.
func Equal(attribute string, value any) Query { return newQuery("equal", attribute, value) }
