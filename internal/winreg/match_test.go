package winreg

import "testing"

func TestBestExactSubKey(t *testing.T) {
	m := NewMatcher(nil)
	entries := []RawEntry{
		{SubKey: "{GUID-1}", DisplayName: "Something Else"},
		{SubKey: "Git.Git", DisplayName: "Git"},
	}

	got, ok := m.Best("Git.Git", "Git", entries)
	if !ok {
		t.Fatal("no match")
	}
	if got.Entry.SubKey != "Git.Git" || got.Score != scoreExactSubKey {
		t.Errorf("got %q score %d", got.Entry.SubKey, got.Score)
	}
}

func TestBestExactDisplayName(t *testing.T) {
	m := NewMatcher(nil)
	entries := []RawEntry{
		{SubKey: "{GUID-1}", DisplayName: "Mozilla Firefox"},
	}

	got, ok := m.Best("Mozilla.Firefox", "Mozilla Firefox", entries)
	if !ok {
		t.Fatal("no match")
	}
	if got.Score != scoreExactDisplayName {
		t.Errorf("Score = %d, want %d", got.Score, scoreExactDisplayName)
	}
}

func TestBestNormalizedMatch(t *testing.T) {
	m := NewMatcher(nil)

	// "7zip.7zip" tail normalizes to "7zip"; "7 Zip" does too.
	got, ok := m.Best("7zip.7zip", "7-Zip", []RawEntry{
		{SubKey: "{23170F69-40C1-2702}", DisplayName: "7 Zip"},
	})
	if !ok {
		t.Fatal("no match")
	}
	if got.Score != scoreNormalizedDisplay {
		t.Errorf("Score = %d, want %d", got.Score, scoreNormalizedDisplay)
	}
}

func TestBestSubstringMatch(t *testing.T) {
	m := NewMatcher(nil)

	got, ok := m.Best("Vim.Vim", "Vim", []RawEntry{
		{SubKey: "{GUID}", DisplayName: "Vim 9.1 (x64)"},
	})
	if !ok {
		t.Fatal("no match")
	}
	if got.Score != scoreIDInDisplay {
		t.Errorf("Score = %d, want %d", got.Score, scoreIDInDisplay)
	}
}

func TestBestRejectsVersionOnlyID(t *testing.T) {
	m := NewMatcher(nil)
	entries := []RawEntry{{SubKey: "4.7.1", DisplayName: "4.7.1"}}

	for _, id := range []string{"4.7.1", "v2.0", "12", ""} {
		if _, ok := m.Best(id, "", entries); ok {
			t.Errorf("Best(%q) accepted a version-only id", id)
		}
	}
}

func TestBestBelowThreshold(t *testing.T) {
	m := NewMatcher(nil)

	if _, ok := m.Best("Acme.Widget", "Widget", []RawEntry{
		{SubKey: "{GUID}", DisplayName: "Completely Unrelated"},
	}); ok {
		t.Error("unrelated entry accepted")
	}
}

func TestBestLocationBonus(t *testing.T) {
	ex := &Extractor{DirExists: fakeFS(`C:\Program Files\Vim`)}
	m := NewMatcher(ex)

	withLoc, ok := m.Best("Vim.Vim", "Vim", []RawEntry{{
		SubKey:          "{GUID}",
		DisplayName:     "Vim 9.1",
		InstallLocation: `C:\Program Files\Vim`,
	}})
	if !ok {
		t.Fatal("no match")
	}
	if withLoc.Score != scoreIDInDisplay+bonusLocationHasName {
		t.Errorf("Score = %d, want %d", withLoc.Score, scoreIDInDisplay+bonusLocationHasName)
	}
}

func TestBestPrefersHigherScore(t *testing.T) {
	m := NewMatcher(nil)

	got, ok := m.Best("Git.Git", "Git", []RawEntry{
		{SubKey: "{GUID}", DisplayName: "Git LFS"}, // substring tier
		{SubKey: "Git.Git", DisplayName: "Git"},    // exact subkey
	})
	if !ok {
		t.Fatal("no match")
	}
	if got.Entry.SubKey != "Git.Git" {
		t.Errorf("picked %q", got.Entry.SubKey)
	}
}
