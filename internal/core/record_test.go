package core

import (
	"strings"
	"testing"
)

func TestGenerateSearchTokens(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		pkgName  string
		desc     string
		tags     []string
		contains []string
	}{
		{
			name:     "id and name always present lowercased",
			id:       "Microsoft.VisualStudioCode",
			pkgName:  "Visual Studio Code",
			contains: []string{"microsoft.visualstudiocode", "visual studio code", "microsoft", "visualstudiocode", "code"},
		},
		{
			name:     "delimiters split into tokens",
			id:       "neo-cowsay",
			pkgName:  "Neo Cowsay",
			contains: []string{"neo", "cowsay", "neo-cowsay"},
		},
		{
			name:     "tags and description tokenized",
			id:       "vlc",
			pkgName:  "VLC media player",
			desc:     "Cross-platform media player",
			tags:     []string{"video", "Audio"},
			contains: []string{"vlc", "media", "player", "video", "audio", "cross"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSearchTokens(tt.id, tt.pkgName, tt.desc, tt.tags)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("tokens missing %q\ngot: %s", want, got)
				}
			}
			if got != strings.ToLower(got) {
				t.Errorf("tokens not lowercased: %s", got)
			}
		})
	}
}

func TestNormalizeClearsInstalledFields(t *testing.T) {
	r := &PackageRecord{
		PackageID:        "vlc",
		Name:             "VLC",
		Version:          "3.0.20",
		Manager:          ManagerChocolatey,
		IsInstalled:      false,
		InstalledVersion: "3.0.19",
		InstallDate:      "20240101",
		InstallSource:    ManagerChocolatey,
		InstallLocation:  `C:\Program Files\VideoLAN\VLC`,
	}

	r.Normalize()

	if r.InstalledVersion != "" || r.InstallDate != "" || r.InstallSource != "" || r.InstallLocation != "" {
		t.Errorf("installed-state fields not cleared: %+v", r)
	}
	if !strings.Contains(r.SearchTokens, "vlc") {
		t.Errorf("search tokens missing package id: %s", r.SearchTokens)
	}
}

func TestNormalizeKeepsInstalledFields(t *testing.T) {
	r := &PackageRecord{
		PackageID:        "git",
		Name:             "Git",
		Version:          "2.44.0",
		Manager:          ManagerWinGet,
		IsInstalled:      true,
		InstalledVersion: "2.43.0",
		InstallSource:    ManagerWinGet,
	}

	r.Normalize()

	if r.InstalledVersion != "2.43.0" || r.InstallSource != ManagerWinGet {
		t.Errorf("installed-state fields lost: %+v", r)
	}
}

func TestParseManager(t *testing.T) {
	tests := []struct {
		in   string
		want Manager
	}{
		{"winget", ManagerWinGet},
		{"chocolatey", ManagerChocolatey},
		{"scoop", ManagerScoop},
		{"npm", ManagerNPM},
		{"cargo", ManagerCargo},
		{"msstore", ManagerMSStore},
		{"unknown", ManagerUnknown},
		{"", ManagerUnknown},
		{"apt", ManagerUnknown},
	}

	for _, tt := range tests {
		if got := ParseManager(tt.in); got != tt.want {
			t.Errorf("ParseManager(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestManagerBinary(t *testing.T) {
	if bin, err := ManagerChocolatey.Binary(); err != nil || bin != "choco" {
		t.Errorf("ManagerChocolatey.Binary() = %q, %v", bin, err)
	}
	if _, err := ManagerUnknown.Binary(); err == nil {
		t.Error("ManagerUnknown.Binary() should error")
	}
	if _, err := ManagerMSStore.Binary(); err == nil {
		t.Error("ManagerMSStore.Binary() should error")
	}
}
