package dailyroutine

import "testing"

func TestComputeMixDefaultRatios(t *testing.T) {
	// Pre-cap mix would be thread=2 reply=2 quote=2 tweet=4; reply+quote=4
	// exceeds the hard cap of 3, so one unit is shaved from quote first.
	m := computeMix(10, 0.2, 0.2, 0.2, true)
	if m.thread != 2 || m.reply != 2 || m.quote != 1 || m.tweet != 5 {
		t.Fatalf("got %+v", m)
	}
}

func TestComputeMixReclaimsWithNoTargetURLs(t *testing.T) {
	m := computeMix(10, 0.2, 0.2, 0.2, false)
	if m.reply != 0 || m.quote != 0 {
		t.Fatalf("expected reply/quote reclaimed, got %+v", m)
	}
	if m.thread+m.tweet != 10 {
		t.Fatalf("expected all 10 slots accounted for, got %+v", m)
	}
}

func TestComputeMixShavesQuoteFirstOnHardCap(t *testing.T) {
	// ratios chosen so reply+quote would exceed 3 before the cap.
	m := computeMix(20, 0.1, 0.15, 0.15, true)
	if m.reply+m.quote > 3 {
		t.Fatalf("expected reply+quote capped at 3, got reply=%d quote=%d", m.reply, m.quote)
	}
	// Pre-cap reply=3 quote=3; the excess of 3 comes entirely out of quote.
	if m.reply != 3 || m.quote != 0 {
		t.Fatalf("expected quote shaved before reply (reply=3 quote=0), got reply=%d quote=%d", m.reply, m.quote)
	}
}

func TestComputeMixTotalAlwaysEqualsN(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7, 20} {
		m := computeMix(n, 0.2, 0.2, 0.2, true)
		if m.thread+m.reply+m.quote+m.tweet != n {
			t.Fatalf("n=%d: mix %+v does not sum to n", n, m)
		}
	}
}

func TestNormalizeForHashUsesThreadPartsWhenPresent(t *testing.T) {
	d := draft{content: "ignored", threadParts: []string{"Hello  World", "Second   Part"}}
	got := normalizeForHash(d)
	if got != "hello world second part" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeForHashUsesContentWhenNoThreadParts(t *testing.T) {
	d := draft{content: "Hello   World"}
	got := normalizeForHash(d)
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestStripURLsRemovesHTTPLinks(t *testing.T) {
	got := stripURLs("check this out https://example.com/a?b=1 thanks")
	want := "check this out  thanks"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
