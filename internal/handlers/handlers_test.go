package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"printvault/internal/database"
	"printvault/internal/ingest"
	"printvault/internal/queue"
	"printvault/internal/thumbnails"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
)

type testServer struct {
	router *mux.Router
	db     *database.Database
	lib    *database.Library
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := database.New(ctx, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	redisSrv := miniredis.RunT(t)
	newLane := func(name string) *queue.Lane {
		lane, err := queue.NewLane(queue.Config{
			Addr:       redisSrv.Addr(),
			Lane:       name,
			RetryDelay: time.Millisecond,
		})
		if err != nil {
			t.Fatalf("new lane %s: %v", name, err)
		}
		t.Cleanup(func() { lane.Close() })
		return lane
	}
	archiveLane := newLane(ingest.ArchiveLane)
	folderLane := newLane(ingest.FolderLane)

	thumbs, err := thumbnails.NewGenerator(filepath.Join(dir, "thumbs"))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	orch, err := ingest.New(db, thumbs, archiveLane, folderLane, filepath.Join(dir, "scratch"))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	root := filepath.Join(dir, "library")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir library root: %v", err)
	}
	lib := &database.Library{
		Name:         "Main",
		RootPath:     root,
		PathTemplate: "{library}/{model}",
	}
	if err := db.CreateLibrary(ctx, lib); err != nil {
		t.Fatalf("create library: %v", err)
	}

	uploadDir := filepath.Join(dir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		t.Fatalf("mkdir upload dir: %v", err)
	}

	h := New(db, orch, archiveLane, folderLane, uploadDir)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	return &testServer{router: router, db: db, lib: lib}
}

func multipartUpload(t *testing.T, fields map[string]string, archive []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if archive != nil {
		fw, err := w.CreateFormFile("archive", "dragon-bust.zip")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(archive); err != nil {
			t.Fatalf("write archive: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, w.FormDataContentType()
}

func zipBytes(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestUploadModel(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{
		"libraryId":       s.lib.ID,
		"metadata.artist": "Jane",
	}, zipBytes(t, map[string][]byte{"dragon.stl": []byte("solid dragon")}))

	req := httptest.NewRequest(http.MethodPost, "/api/models", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp UploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ModelID == "" || resp.JobID == "" {
		t.Fatalf("expected model and job IDs, got %+v", resp)
	}
	if resp.Slug != "dragon-bust" {
		t.Errorf("expected slug dragon-bust from filename, got %q", resp.Slug)
	}

	model, err := s.db.GetModelByID(context.Background(), resp.ModelID)
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	if model.Status != database.StatusProcessing {
		t.Errorf("expected status processing, got %s", model.Status)
	}
}

func TestUploadModelMissingArchive(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{"libraryId": s.lib.ID}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/models", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestUploadModelUnknownLibrary(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{
		"libraryId": "no-such-library",
	}, zipBytes(t, map[string][]byte{"a.stl": []byte("solid a")}))

	req := httptest.NewRequest(http.MethodPost, "/api/models", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetModelNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/models/missing", http.NoBody)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestGetJob(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{
		"libraryId": s.lib.ID,
	}, zipBytes(t, map[string][]byte{"a.stl": []byte("solid a")}))
	req := httptest.NewRequest(http.MethodPost, "/api/models", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload failed: %d %s", w.Code, w.Body.String())
	}
	var up UploadResponse
	if err := json.NewDecoder(w.Body).Decode(&up); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/archive/"+up.JobID, http.NoBody)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var job queue.Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID != up.JobID {
		t.Errorf("expected job %s, got %s", up.JobID, job.ID)
	}
	if job.Status != queue.StatusQueued {
		t.Errorf("expected status queued, got %s", job.Status)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"unknown lane", "/api/jobs/bogus/some-id"},
		{"unknown job", "/api/jobs/archive/some-id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			if w.Code != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", w.Code)
			}
		})
	}
}

func TestImportFolderValidation(t *testing.T) {
	s := newTestServer(t)

	srcDir := t.TempDir()
	tests := []struct {
		name string
		body ingest.FolderJob
		want int
	}{
		{
			name: "unknown strategy",
			body: ingest.FolderJob{SourceDir: srcDir, Pattern: "{model}", Strategy: "teleport", LibraryID: s.lib.ID},
			want: http.StatusBadRequest,
		},
		{
			name: "bad pattern",
			body: ingest.FolderJob{SourceDir: srcDir, Pattern: "{model}/{collection}", Strategy: "copy", LibraryID: s.lib.ID},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown library",
			body: ingest.FolderJob{SourceDir: srcDir, Pattern: "{model}", Strategy: "copy", LibraryID: "nope"},
			want: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			req := httptest.NewRequest(http.MethodPost, "/api/imports/folder", bytes.NewReader(payload))
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestImportFolderAccepted(t *testing.T) {
	s := newTestServer(t)

	srcDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcDir, "Dragon"), 0o755); err != nil {
		t.Fatalf("mkdir source: %v", err)
	}

	payload, err := json.Marshal(ingest.FolderJob{
		SourceDir: srcDir,
		Pattern:   "{model}",
		Strategy:  "copy",
		LibraryID: s.lib.ID,
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/imports/folder", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["jobId"] == "" {
		t.Error("expected a job ID in response")
	}
}

func TestCreateLibrary(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body CreateLibraryRequest
		want int
	}{
		{
			name: "valid",
			body: CreateLibraryRequest{Name: "Minis", RootPath: t.TempDir(), PathTemplate: "{library}/{metadata.artist}/{model}"},
			want: http.StatusCreated,
		},
		{
			name: "invalid template",
			body: CreateLibraryRequest{Name: "Bad", RootPath: t.TempDir(), PathTemplate: "{model}/{library}"},
			want: http.StatusBadRequest,
		},
		{
			name: "missing name",
			body: CreateLibraryRequest{RootPath: t.TempDir(), PathTemplate: "{library}/{model}"},
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			req := httptest.NewRequest(http.MethodPost, "/api/libraries", bytes.NewReader(payload))
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestListLibraries(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/libraries", http.NoBody)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var libs []database.Library
	if err := json.NewDecoder(w.Body).Decode(&libs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(libs) != 1 || libs[0].Name != "Main" {
		t.Errorf("expected the seeded library, got %+v", libs)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != statusHealthy {
		t.Errorf("expected status healthy, got %q", resp.Status)
	}
	if resp.Database != "ok" || resp.Queue != "ok" {
		t.Errorf("expected dependencies ok, got db=%q queue=%q", resp.Database, resp.Queue)
	}
	if !strings.HasPrefix(resp.GoVersion, "go") {
		t.Errorf("unexpected go version %q", resp.GoVersion)
	}
}

func TestReadyCheck(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ready") {
		t.Errorf("expected ready status, got %s", w.Body.String())
	}
}
