package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/winpacman/internal/core"
)

func npmSearchBody(names ...string) string {
	type obj struct {
		Package map[string]any `json:"package"`
	}
	objects := make([]obj, 0, len(names))
	for _, n := range names {
		objects = append(objects, obj{Package: map[string]any{
			"name":        n,
			"version":     "1.0.0",
			"description": "desc " + n,
			"keywords":    []string{"cli"},
			"links":       map[string]string{"homepage": "https://example.com/" + n},
		}})
	}
	b, _ := json.Marshal(map[string]any{"objects": objects})
	return string(b)
}

func TestNPMFetchAllDedupesAcrossKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("text") {
		case "react":
			fmt.Fprint(w, npmSearchBody("react", "react-dom"))
		case "vue":
			fmt.Fprint(w, npmSearchBody("vue", "react")) // react repeats
		default:
			fmt.Fprint(w, npmSearchBody())
		}
	}))
	defer srv.Close()

	p := NewNPMProvider(nil)
	p.BaseURL = srv.URL
	p.Keywords = []string{"react", "vue"}

	var ids []string
	err := p.FetchAll(context.Background(), func(r core.PackageRecord) error {
		ids = append(ids, r.PackageID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"react", "react-dom", "vue"}, ids)
}

func TestNPMFetchAllHonorsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, npmSearchBody("a", "b", "c", "d"))
	}))
	defer srv.Close()

	p := NewNPMProvider(nil)
	p.BaseURL = srv.URL
	p.Keywords = []string{"anything"}
	p.Limit = 2

	count := 0
	err := p.FetchAll(context.Background(), func(core.PackageRecord) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNPMFetchOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/express" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{
			"name": "express",
			"description": "Fast web framework",
			"license": "MIT",
			"homepage": "https://expressjs.com",
			"dist-tags": {"latest": "4.19.2"},
			"versions": {"4.19.2": {"keywords": ["web", "framework"]}},
			"author": {"name": "TJ"}
		}`)
	}))
	defer srv.Close()

	p := NewNPMProvider(nil)
	p.BaseURL = srv.URL

	rec, err := p.FetchOne(context.Background(), "express")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "express", rec.PackageID)
	assert.Equal(t, "4.19.2", rec.Version)
	assert.Equal(t, "MIT", rec.License)
	assert.Equal(t, []string{"web", "framework"}, rec.Tags)
	assert.Equal(t, core.ManagerNPM, rec.Manager)

	missing, err := p.FetchOne(context.Background(), "definitely-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNPMLicenseShapes(t *testing.T) {
	assert.Equal(t, "MIT", npmLicenseString(json.RawMessage(`"MIT"`)))
	assert.Equal(t, "BSD-3-Clause", npmLicenseString(json.RawMessage(`{"type": "BSD-3-Clause", "url": "x"}`)))
	assert.Equal(t, "", npmLicenseString(nil))
}
