package posting

import "testing"

func TestIsValidStatusURLAcceptsCanonicalForms(t *testing.T) {
	valid := []string{
		"https://x.com/someuser/status/1234567890",
		"https://twitter.com/someuser/status/1234567890",
		"https://x.com/i/web/status/1234567890",
		"https://x.com/someuser/status/1234567890/photo/1",
		"https://x.com/someuser/status/1234567890?s=20",
		"https://www.x.com/someuser/status/1234567890#reply",
	}
	for _, u := range valid {
		if !isValidStatusURL(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}
}

func TestIsValidStatusURLRejectsMalformed(t *testing.T) {
	invalid := []string{
		"https://example.com/someuser/status/1234567890",
		"https://x.com/someuser/status/",
		"ftp://x.com/someuser/status/123",
		"https://x.com/someuser",
		"not a url at all",
	}
	for _, u := range invalid {
		if isValidStatusURL(u) {
			t.Errorf("expected %q to be invalid", u)
		}
	}
}
