package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                    "/",
		"/metrics":                            "/metrics",
		"/v1/session":                         "/v1/session",
		"/v1/companies/invite/ab12cd":         "/v1/companies/invite/:code",
		"/v1/companies/invite/ab12cd/extra":   "/v1/companies/invite/ab12cd/extra",
		"/v1/companies/invite/ab12cd?full=1":  "/v1/companies/invite/:code",
		"/v1/company/logo":                    "/v1/company/logo",
		"/v1/session/login?redirect=/profile": "/v1/session/login",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
