package dailyroutine

import "testing"

func TestDemandsPageFetchMatchesJapaneseKeyword(t *testing.T) {
	if !demandsPageFetch("詳しい比較はこちらのページにあります、興味があればどうぞご覧ください") {
		t.Fatal("expected keyword match to demand a fetch")
	}
}

func TestDemandsPageFetchMatchesShortSnippet(t *testing.T) {
	if !demandsPageFetch("short snippet") {
		t.Fatal("expected snippet under 60 runes to demand a fetch")
	}
}

func TestDemandsPageFetchMatchesEllipsis(t *testing.T) {
	long := "this is a long enough snippet that clears the sixty rune floor but trails off..."
	if !demandsPageFetch(long) {
		t.Fatal("expected ellipsis to demand a fetch")
	}
}

func TestDemandsPageFetchFalseForCompleteSnippet(t *testing.T) {
	long := "this snippet is long, complete, has no ellipsis and no keyword match at all here"
	if demandsPageFetch(long) {
		t.Fatal("expected a complete long snippet not to demand a fetch")
	}
}
