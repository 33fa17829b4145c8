package integration

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"tardrop/internal/engine"
	"tardrop/internal/history"
	"tardrop/internal/server"
	"tardrop/internal/store"
)

type env struct {
	srv         *server.Server
	hist        *history.History
	archiveDir  string
	extractDir  string
	symlinkPath string
}

func newEnv(t *testing.T, keepArchives, keepExtracts int) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		archiveDir:  filepath.Join(root, "archives"),
		extractDir:  filepath.Join(root, "extracts"),
		symlinkPath: filepath.Join(root, "current"),
	}
	tempDir := filepath.Join(root, "tmp")
	for _, dir := range []string{e.archiveDir, e.extractDir, tempDir} {
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	hist, err := history.New(filepath.Join(root, "uploads.db"))
	if err != nil {
		t.Fatalf("setup history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })
	e.hist = hist

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(e.archiveDir, tempDir, logger)
	eng := engine.New(st, engine.Options{
		ExtractDir:   e.extractDir,
		SymlinkPath:  e.symlinkPath,
		KeepArchives: keepArchives,
		KeepExtracts: keepExtracts,
		History:      hist,
	}, logger)
	e.srv = server.NewServer(eng, logger, true)
	return e
}

func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{
			Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(content)),
		}); err != nil {
			t.Fatalf("tarball: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("tarball: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tarball: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("tarball: %v", err)
	}
	return buf.Bytes()
}

func (e *env) upload(t *testing.T, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestDeployLifecycle(t *testing.T) {
	e := newEnv(t, 8, 4)

	rec := e.upload(t, tarball(t, map[string]string{
		"index.html": "v1",
		"css/app.css": "body{}",
	}))
	if rec.Code != http.StatusOK || rec.Body.String() != "Success" {
		t.Fatalf("upload = %d %q, want 200 Success", rec.Code, rec.Body.String())
	}

	target, err := filepath.EvalSymlinks(e.symlinkPath)
	if err != nil {
		t.Fatalf("pointer does not resolve: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(target, "index.html"))
	if err != nil || string(data) != "v1" {
		t.Fatalf("deployed content = %q, err = %v", data, err)
	}

	latest, err := e.hist.LatestUpload(context.Background())
	if err != nil || latest == nil {
		t.Fatalf("history lookup: rec=%v err=%v", latest, err)
	}
	if latest.Status != history.StatusSuccess || latest.Release == "" {
		t.Errorf("history record = %+v, want success with release", latest)
	}
}

func TestSequentialDeploysWithRetention(t *testing.T) {
	e := newEnv(t, 1, 1)

	for _, content := range []string{"v1", "v2"} {
		rec := e.upload(t, tarball(t, map[string]string{"index.html": content}))
		if rec.Code != http.StatusOK {
			t.Fatalf("upload(%s) = %d", content, rec.Code)
		}
	}

	for name, dir := range map[string]string{"archive": e.archiveDir, "extract": e.extractDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("read %s dir: %v", name, err)
		}
		if len(entries) != 1 {
			t.Errorf("%s dir has %d entries after retention, want 1", name, len(entries))
		}
	}

	target, err := filepath.EvalSymlinks(e.symlinkPath)
	if err != nil {
		t.Fatalf("pointer does not resolve: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(target, "index.html"))
	if string(data) != "v2" {
		t.Errorf("active release = %q, want v2", data)
	}
}

func TestFailedUploadLeavesServiceIntact(t *testing.T) {
	e := newEnv(t, 0, 0)

	if rec := e.upload(t, tarball(t, map[string]string{"index.html": "v1"})); rec.Code != http.StatusOK {
		t.Fatalf("initial upload = %d", rec.Code)
	}
	before, err := filepath.EvalSymlinks(e.symlinkPath)
	if err != nil {
		t.Fatalf("pointer does not resolve: %v", err)
	}

	if rec := e.upload(t, []byte("garbage that is no tarball")); rec.Code != http.StatusInternalServerError {
		t.Fatalf("corrupt upload = %d, want 500", rec.Code)
	}

	after, err := filepath.EvalSymlinks(e.symlinkPath)
	if err != nil {
		t.Fatalf("pointer broken after failed upload: %v", err)
	}
	if after != before {
		t.Errorf("pointer moved: %q -> %q", before, after)
	}

	// Both outcomes are in history, newest first.
	records, err := e.hist.RecentUploads(context.Background(), 10)
	if err != nil || len(records) != 2 {
		t.Fatalf("history = %d records, err=%v, want 2", len(records), err)
	}
	if records[0].Status != history.StatusFailed || records[1].Status != history.StatusSuccess {
		t.Errorf("history statuses = %q, %q", records[0].Status, records[1].Status)
	}
}

func TestReadRequestsRejected(t *testing.T) {
	e := newEnv(t, 0, 0)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden || rec.Body.String() != "Non-implemented" {
		t.Errorf("GET = %d %q, want 403 Non-implemented", rec.Code, rec.Body.String())
	}
}
