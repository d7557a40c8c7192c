package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/perf"
	"github.com/starford/dagaz/internal/photos"
	"github.com/starford/dagaz/internal/settings"
	"github.com/starford/dagaz/internal/startup"
	"github.com/starford/dagaz/internal/store"
	"github.com/starford/dagaz/internal/testutil"
)

type testEnv struct {
	router http.Handler
	photos *photos.Service
	store  *store.Store
}

// newEnv builds a full stack over a temp data dir. authToken == "" means
// disabled auth mode.
func newEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	dataDir := t.TempDir()
	logger := testutil.Logger(t)

	st := store.New(filepath.Join(dataDir, "journal.db"))
	t.Cleanup(func() { st.Close() })

	entries := journal.NewRepository(st, logger)
	settingsRepo := settings.NewRepository(st, logger)
	monitor := perf.NewMonitor(logger)
	photoSvc := photos.NewService(dataDir, logger)
	startupSvc := startup.NewService(st, settingsRepo, monitor, logger, nil)

	if result := startupSvc.Initialize(context.Background()); !result.Success {
		t.Fatalf("startup failed: %s", result.Error)
	}
	if err := photoSvc.InitDir(); err != nil {
		t.Fatalf("InitDir: %v", err)
	}

	h := NewHandler(entries, settingsRepo, photoSvc, startupSvc, monitor, nil, logger, 100, 0.8)
	return &testEnv{
		router: NewRouter(h, authToken != "", authToken, nil),
		photos: photoSvc,
		store:  st,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func createEntry(t *testing.T, env *testEnv, date string) journal.Entry {
	t.Helper()
	w := env.do(t, http.MethodPost, "/entries", map[string]string{
		"date": date, "mood": "happy", "weather": "sunny", "memo": "hi",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var e journal.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestCreateAndGetEntry(t *testing.T) {
	env := newEnv(t, "")
	created := createEntry(t, env, "2026-01-15")

	w := env.do(t, http.MethodGet, "/entries/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got journal.Entry
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.ID != created.ID || got.Date != "2026-01-15" {
		t.Errorf("got %+v", got)
	}

	w = env.do(t, http.MethodGet, "/entries/date/2026-01-15", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get by date status = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/entries/entry_missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing entry status = %d, want 404", w.Code)
	}
}

func TestCreateDuplicateDate(t *testing.T) {
	env := newEnv(t, "")
	createEntry(t, env, "2026-01-16")

	w := env.do(t, http.MethodPost, "/entries", map[string]string{
		"date": "2026-01-16", "mood": "sad", "weather": "rainy",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] == "" {
		t.Error("conflict body carries no user message")
	}
}

func TestCreateValidation(t *testing.T) {
	env := newEnv(t, "")
	w := env.do(t, http.MethodPost, "/entries", map[string]string{
		"date": "not-a-date", "mood": "happy", "weather": "sunny",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid date status = %d, want 400", w.Code)
	}
}

func TestListAndCount(t *testing.T) {
	env := newEnv(t, "")
	for _, d := range []string{"2026-02-01", "2026-02-02", "2026-02-03"} {
		createEntry(t, env, d)
	}

	w := env.do(t, http.MethodGet, "/entries", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list EntryListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 3 || len(list.Entries) != 3 {
		t.Errorf("list = %d entries, total %d", len(list.Entries), list.Total)
	}
	if list.Entries[0].Date != "2026-02-03" {
		t.Errorf("first entry = %s, want newest", list.Entries[0].Date)
	}

	w = env.do(t, http.MethodGet, "/entries?limit=1&offset=1", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Entries) != 1 || list.Entries[0].Date != "2026-02-02" {
		t.Errorf("paged list = %+v", list.Entries)
	}

	w = env.do(t, http.MethodGet, "/entries/count", nil)
	var count CountResponse
	_ = json.Unmarshal(w.Body.Bytes(), &count)
	if count.Count != 3 {
		t.Errorf("count = %d, want 3", count.Count)
	}
}

func TestEntriesInRange(t *testing.T) {
	env := newEnv(t, "")
	for _, d := range []string{"2026-03-01", "2026-03-15", "2026-04-01"} {
		createEntry(t, env, d)
	}

	w := env.do(t, http.MethodGet, "/entries/range?start=2026-03-01&end=2026-03-31", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("range status = %d", w.Code)
	}
	var list EntryListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 {
		t.Errorf("range total = %d, want 2", list.Total)
	}

	if w := env.do(t, http.MethodGet, "/entries/range?start=2026-03-01", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing end status = %d, want 400", w.Code)
	}
}

func TestUpdateEntry(t *testing.T) {
	env := newEnv(t, "")
	created := createEntry(t, env, "2026-05-05")

	w := env.do(t, http.MethodPatch, "/entries/"+created.ID, map[string]string{"memo": "revised"})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var got journal.Entry
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Memo != "revised" || got.Mood != "happy" {
		t.Errorf("updated entry = %+v", got)
	}

	if w := env.do(t, http.MethodPatch, "/entries/entry_missing", map[string]string{"memo": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodPatch, "/entries/"+created.ID, map[string]string{"mood": "bogus"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid mood = %d, want 400", w.Code)
	}
}

func TestDeleteEntry(t *testing.T) {
	env := newEnv(t, "")
	created := createEntry(t, env, "2026-06-06")

	if w := env.do(t, http.MethodDelete, "/entries/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/entries/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestSettingsRoutes(t *testing.T) {
	env := newEnv(t, "")

	w := env.do(t, http.MethodGet, "/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get settings = %d", w.Code)
	}
	var cfg settings.Settings
	_ = json.Unmarshal(w.Body.Bytes(), &cfg)
	if cfg != settings.Defaults() {
		t.Errorf("fresh settings = %+v", cfg)
	}

	w = env.do(t, http.MethodPatch, "/settings", map[string]any{"theme": "dark", "is_premium": true})
	if w.Code != http.StatusOK {
		t.Fatalf("patch settings = %d, body = %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &cfg)
	if cfg.Theme != settings.ThemeDark || !cfg.IsPremium {
		t.Errorf("patched settings = %+v", cfg)
	}

	w = env.do(t, http.MethodPost, "/settings/reset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset settings = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &cfg)
	if cfg != settings.Defaults() {
		t.Errorf("reset settings = %+v", cfg)
	}
}

func uploadPhoto(t *testing.T, env *testEnv) PhotoUploadResponse {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 0, 255})
		}
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "shot.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PhotoUploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestUploadPhoto(t *testing.T) {
	env := newEnv(t, "")
	resp := uploadPhoto(t, env)

	if filepath.Dir(resp.Path) != env.photos.Dir() {
		t.Errorf("photo saved at %s, want inside %s", resp.Path, env.photos.Dir())
	}
	if resp.OriginalDimensions.Width != 300 || resp.OriginalDimensions.Height != 200 {
		t.Errorf("original dims = %+v", resp.OriginalDimensions)
	}
	if resp.FinalDimensions.Width != 100 || resp.FinalDimensions.Height != 100 {
		t.Errorf("final dims = %+v", resp.FinalDimensions)
	}
	if resp.Performance.Rating == "" {
		t.Error("performance verdict missing")
	}
	if _, err := os.Stat(resp.Path); err != nil {
		t.Errorf("saved photo missing: %v", err)
	}
}

func TestUploadPhotoRejectsJunk(t *testing.T) {
	env := newEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("photo", "junk.png")
	_, _ = part.Write([]byte("not an image"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("junk upload = %d, want 422", w.Code)
	}

	if w := env.do(t, http.MethodPost, "/photos", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d, want 400", w.Code)
	}
}

func TestPhotoMetadataAndDelete(t *testing.T) {
	env := newEnv(t, "")
	resp := uploadPhoto(t, env)
	name := filepath.Base(resp.Path)

	// Metadata accepts bare filenames via path normalization.
	w := env.do(t, http.MethodGet, "/photos/metadata?path="+name, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metadata status = %d", w.Code)
	}
	var meta photos.Metadata
	_ = json.Unmarshal(w.Body.Bytes(), &meta)
	if !meta.Exists || meta.Size == 0 {
		t.Errorf("metadata = %+v", meta)
	}

	if w := env.do(t, http.MethodDelete, "/photos?path="+name, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete photo = %d", w.Code)
	}
	if _, err := os.Stat(resp.Path); !os.IsNotExist(err) {
		t.Error("photo survived delete")
	}
	// Deleting an absent photo stays a no-op.
	if w := env.do(t, http.MethodDelete, "/photos?path="+name, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete absent photo = %d, want 204", w.Code)
	}
}

func TestPhotoStatsAndCleanup(t *testing.T) {
	env := newEnv(t, "")
	resp := uploadPhoto(t, env)

	w := env.do(t, http.MethodGet, "/photos/stats", nil)
	var stats PhotoStatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.DirectorySizeMB <= 0 {
		t.Errorf("stats = %+v", stats)
	}

	// No entry references the uploaded photo, so cleanup removes it.
	if w := env.do(t, http.MethodPost, "/photos/cleanup", nil); w.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d", w.Code)
	}
	if _, err := os.Stat(resp.Path); !os.IsNotExist(err) {
		t.Error("orphan photo survived cleanup")
	}

	// A referenced photo survives.
	resp = uploadPhoto(t, env)
	wCreate := env.do(t, http.MethodPost, "/entries", map[string]string{
		"date": "2026-07-01", "mood": "happy", "weather": "sunny", "photo": resp.Path,
	})
	if wCreate.Code != http.StatusCreated {
		t.Fatalf("create entry = %d", wCreate.Code)
	}
	if w := env.do(t, http.MethodPost, "/photos/cleanup", nil); w.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d", w.Code)
	}
	if _, err := os.Stat(resp.Path); err != nil {
		t.Errorf("referenced photo removed: %v", err)
	}
}

func TestSystemRoutes(t *testing.T) {
	env := newEnv(t, "")

	w := env.do(t, http.MethodGet, "/system/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var status StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if status.State != startup.StateSucceeded || !status.Initialized {
		t.Errorf("status = %+v", status)
	}
	if status.LastResult == nil || !status.LastResult.Success {
		t.Errorf("last result = %+v", status.LastResult)
	}

	w = env.do(t, http.MethodGet, "/system/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}

	// Break the store: health turns 503, recover brings it back.
	env.store.Close()
	if w := env.do(t, http.MethodGet, "/system/health", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("health with closed store = %d, want 503", w.Code)
	}
	w = env.do(t, http.MethodPost, "/system/recover", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recover = %d", w.Code)
	}
	var rec RecoverResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rec)
	if !rec.Recovered {
		t.Error("recover reported failure")
	}
	if w := env.do(t, http.MethodGet, "/system/health", nil); w.Code != http.StatusOK {
		t.Errorf("health after recover = %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newEnv(t, "secret")

	if w := env.do(t, http.MethodGet, "/entries", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/entries", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestRequestsOnUninitializedStore(t *testing.T) {
	env := newEnv(t, "")
	env.store.Close()

	if w := env.do(t, http.MethodGet, "/entries", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("list on closed store = %d, want 503", w.Code)
	}
}
