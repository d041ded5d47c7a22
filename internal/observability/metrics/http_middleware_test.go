package metrics

import "testing"

func TestRouteLabelCollapsesRecordIDs(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/api/client/read/abc123", "/api/client/read"},
		{"/api/invoice/update/9", "/api/invoice/update"},
		{"/api/ticket/delete/t-42", "/api/ticket/delete"},
		{"/api/client/list", "/api/client/list"},
		{"/api/client/search", "/api/client/search"},
		{"/api/login", "/api/login"},
		{"/healthz", "/healthz"},
		{"/ws/search/client", "/ws/search/client"},
	}
	for _, c := range cases {
		if got := routeLabel(c.path); got != c.want {
			t.Errorf("routeLabel(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}
