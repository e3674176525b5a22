// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/TheGreenCedar/CodeStory/services/index/scopetree"
)

func setupTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))
	return router
}

// setupBuiltIndex builds one index through the service and returns the
// router plus the index ID.
func setupBuiltIndex(t *testing.T) (*gin.Engine, *Service, string) {
	t.Helper()
	svc := testService(t, DefaultServiceConfig())
	ci, err := svc.BuildIndex(context.Background(), "/proj", []*scopetree.File{serviceFile(t, 1, false)})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	return setupTestRouter(svc), svc, ci.ID
}

func TestHandleBuild(t *testing.T) {
	svc := testService(t, DefaultServiceConfig())
	router := setupTestRouter(svc)

	body, err := json.Marshal(BuildRequest{
		ProjectRoot: "/proj",
		Files:       []*scopetree.File{serviceFile(t, 1, false)},
	})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest("POST", "/v1/index/build", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp BuildResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.IndexID == "" {
		t.Error("response has no index ID")
	}
	if resp.Stats.Definitions != 3 || resp.Stats.CallSites != 1 {
		t.Errorf("unexpected stats: %+v", resp.Stats)
	}
}

func TestHandleBuild_NoFiles(t *testing.T) {
	svc := testService(t, DefaultServiceConfig())
	router := setupTestRouter(svc)

	for _, body := range []string{
		`{"project_root": "/proj"}`,
		`{"project_root": "/proj", "files": []}`,
	} {
		req, _ := http.NewRequest("POST", "/v1/index/build", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", body, http.StatusBadRequest, w.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Code != "NO_FILES" {
			t.Errorf("%s: expected NO_FILES, got %q", body, resp.Code)
		}
	}
}

func TestHandleDefinition(t *testing.T) {
	router, _, id := setupBuiltIndex(t)

	req, _ := http.NewRequest("GET", "/v1/index/"+id+"/definition?qname=app.svc.Handler.handle", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp struct {
		Definitions []DefinitionInfo `json:"definitions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Definitions) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(resp.Definitions))
	}
	def := resp.Definitions[0]
	if def.Kind != "method" || def.OwnerClass != "app.svc.Handler" || def.Arity != 2 {
		t.Errorf("unexpected definition: %+v", def)
	}

	req, _ = http.NewRequest("GET", "/v1/index/"+id+"/definition?qname=app.svc.missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	req, _ = http.NewRequest("GET", "/v1/index/"+id+"/definition", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandleCallersAndCallees(t *testing.T) {
	router, _, id := setupBuiltIndex(t)

	handleID := scopetree.GenerateID("app/svc.py", 2, "handle")
	logID := scopetree.GenerateID("app/svc.py", 7, "log")

	req, _ := http.NewRequest("GET", "/v1/index/"+id+"/callees?def_id="+handleID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp EdgesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Edges) != 1 || resp.Edges[0].Peer.QualifiedName != "app.svc.log" {
		t.Errorf("unexpected callees: %+v", resp.Edges)
	}
	if resp.Edges[0].Dispatch != "static" || resp.Edges[0].Confidence != "exact" {
		t.Errorf("unexpected edge attributes: %+v", resp.Edges[0])
	}

	req, _ = http.NewRequest("GET", "/v1/index/"+id+"/callers?def_id="+logID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	resp = EdgesResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Edges) != 1 || resp.Edges[0].Peer.QualifiedName != "app.svc.Handler.handle" {
		t.Errorf("unexpected callers: %+v", resp.Edges)
	}

	req, _ = http.NewRequest("GET", "/v1/index/"+id+"/callers", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing def_id: expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandleResolve(t *testing.T) {
	router, _, id := setupBuiltIndex(t)

	req, _ := http.NewRequest("GET", "/v1/index/"+id+"/resolve?file=app/svc.py&line=3&col=0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp ResolveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Site == nil || resp.Site.Callee != "log" {
		t.Fatalf("unexpected site: %+v", resp.Site)
	}
	if len(resp.Targets) != 1 || resp.Targets[0].QualifiedName != "app.svc.log" {
		t.Errorf("unexpected targets: %+v", resp.Targets)
	}

	req, _ = http.NewRequest("GET", "/v1/index/"+id+"/resolve?site_id="+resp.Site.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("lookup by site_id: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var byID ResolveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &byID); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if byID.Site == nil || byID.Site.ID != resp.Site.ID {
		t.Errorf("site_id lookup returned a different site: %+v", byID.Site)
	}

	req, _ = http.NewRequest("GET", "/v1/index/"+id+"/resolve?site_id=no-such-site", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown site_id: expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	req, _ = http.NewRequest("GET", "/v1/index/"+id+"/resolve?file=app/svc.py&line=99&col=0", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandleExport(t *testing.T) {
	router, _, id := setupBuiltIndex(t)

	req, _ := http.NewRequest("GET", "/v1/index/"+id+"/export", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("export should set a download disposition")
	}

	var sg struct {
		SchemaVersion string `json:"schema_version"`
		Definitions   []any  `json:"definitions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sg.SchemaVersion == "" || len(sg.Definitions) != 3 {
		t.Errorf("unexpected export payload: %+v", sg)
	}
}

func TestHandleUnknownIndex(t *testing.T) {
	svc := testService(t, DefaultServiceConfig())
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/index/nope/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandleSnapshotsUnavailable(t *testing.T) {
	router, _, id := setupBuiltIndex(t)

	req, _ := http.NewRequest("POST", "/v1/index/"+id+"/snapshot", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != "SNAPSHOTS_NOT_AVAILABLE" {
		t.Errorf("unexpected code %q", resp.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	svc := testService(t, DefaultServiceConfig())
	router := setupTestRouter(svc)

	for _, path := range []string{"/v1/index/health", "/v1/index/ready"} {
		req, _ := http.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusOK, w.Code)
		}
	}
}
