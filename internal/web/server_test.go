package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/outreach/internal/config"
	"github.com/JonMunkholm/outreach/internal/core"
	"github.com/JonMunkholm/outreach/internal/dispatch"
	"github.com/JonMunkholm/outreach/internal/session"
	"github.com/JonMunkholm/outreach/internal/web/middleware"
)

const sheetHeader = "First Name,Last Name,Phone,Location,Newest Engagement Date,Personal Volunteering Site URL,Mobile,Work Phone\n"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 10 * time.Second
	cfg.Server.MetricsEnabled = true
	cfg.Upload.MaxFileSize = 64 << 10
	cfg.Upload.MaxConcurrent = 2
	cfg.Upload.MaxWaitTime = time.Second
	cfg.Upload.Timeout = 10 * time.Second
	cfg.Upload.TempDir = ""
	cfg.Upload.AllowedExtensions = []string{".csv", ".xlsx", ".xls"}
	cfg.Security.EnableCSP = true
	cfg.Security.ConsentRequired = true
	return cfg
}

type fakeSender struct {
	mu   sync.Mutex
	sent []dispatch.Message
}

func (f *fakeSender) Send(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, dispatch.Message{To: to, Body: body})
	return "SM" + to[len(to)-4:], nil
}

func (f *fakeSender) Status(_ context.Context, id string) (dispatch.MessageStatus, error) {
	if id == "SMbroken" {
		return dispatch.MessageStatus{}, errors.New("twilio status failed: status 404")
	}
	return dispatch.MessageStatus{MessageID: id, Status: "delivered"}, nil
}

type stubUploads struct {
	entries []core.UploadAudit
}

func (s stubUploads) RecentUploads(context.Context, int) ([]core.UploadAudit, error) {
	return s.entries, nil
}

type testEnv struct {
	server   *Server
	sessions *session.MemoryStore
	sender   *fakeSender
}

func newTestEnv(t *testing.T, configure func(*config.Config, *Deps)) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	cfg.Upload.TempDir = t.TempDir()

	env := &testEnv{
		sessions: session.NewMemoryStore(time.Hour),
		sender:   &fakeSender{},
	}
	deps := Deps{
		Processor: &core.Processor{Logger: logger},
		Sessions:  env.sessions,
		SMS:       dispatch.NewBulk(env.sender, dispatch.BulkConfig{RatePerSecond: 1000}, logger, nil),
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "# metrics\n") }),
		Logger:    logger,
	}
	if configure != nil {
		configure(cfg, &deps)
	}
	env.server = NewServer(cfg, deps)
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withConsent(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.ConsentCookie, Value: "1"})
	return req
}

func twoContactSheet() string {
	return sheetHeader +
		"Amy,Pond,,Leeds,2024-03-01,https://volunteer.example.org/amy,07946220153,\n" +
		"Rory,Williams,,Leadworth,N/A,,,\n" +
		"Clara,Oswald,+447700900123,London,2024-02-11,,,\n"
}

func uploadSheet(t *testing.T, env *testEnv) core.UploadResponse {
	t.Helper()
	rec := env.do(uploadRequest(t, "volunteers.csv", twoContactSheet()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp core.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestUpload_Success(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := uploadSheet(t, env)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "447946220153", resp.Results[0].CanonicalPhone)
	assert.Equal(t, "Clara", resp.Results[1].FirstName)
	assert.Len(t, resp.Warnings, 1)
	assert.Len(t, resp.MergeFields, len(core.MergeFields))
	require.NotEmpty(t, resp.UploadID)

	stored, err := env.sessions.Load(context.Background(), resp.UploadID)
	require.NoError(t, err)
	assert.Equal(t, "volunteers.csv", stored.FileName)
	assert.Len(t, stored.Contacts, 2)
}

func TestUpload_ClientErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "unsupported type",
			req:      uploadRequest(t, "contacts.ods", "whatever"),
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE005",
		},
		{
			name:     "no file",
			req:      httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("")),
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE004",
		},
		{
			name:     "too large",
			req:      uploadRequest(t, "big.csv", sheetHeader+strings.Repeat("x", 2<<20)),
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "FILE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.req)
			assert.Equal(t, tt.wantCode, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantErr, body.Code)
			assert.Contains(t, rec.Body.String(), `"warnings":[]`)
		})
	}
}

func TestUpload_LegacyWorkbook(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(uploadRequest(t, "contacts.xls", "not a workbook"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp core.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "FILE003", "xls files reach the workbook parser")
}

func TestUpload_ExtensionNotAllowed(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) {
		cfg.Upload.AllowedExtensions = []string{".csv"}
	})

	rec := env.do(uploadRequest(t, "contacts.xlsx", "whatever"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE005")
}

func TestUpload_NotBoundByRequestTimeout(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) {
		cfg.Server.RequestTimeout = time.Nanosecond
	})

	rec := env.do(uploadRequest(t, "volunteers.csv", twoContactSheet()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUpload_InvalidSheet(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(uploadRequest(t, "contacts.csv", "First Name,Last Name\nAmy,Pond\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp core.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "Missing required columns")
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, env.sessions.Len())
}

func TestUpload_RemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) { cfg.Upload.TempDir = dir })

	env.do(uploadRequest(t, "volunteers.csv", twoContactSheet()))
	env.do(uploadRequest(t, "broken.xlsx", "not a zip"))

	entries, err := osReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_Busy(t *testing.T) {
	limiter := core.NewUploadLimiter(1, 10*time.Millisecond)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	env := newTestEnv(t, func(_ *config.Config, d *Deps) { d.Limiter = limiter })

	rec := env.do(uploadRequest(t, "volunteers.csv", twoContactSheet()))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPL002")
}

func TestGenerateLinks_PostedContacts(t *testing.T) {
	env := newTestEnv(t, nil)

	req := jsonRequest(t, http.MethodPost, "/api/generate_links", map[string]any{
		"message_template": "Hi {first_name}, you are in {location} {foo}",
		"selected_contacts": []core.ExtractedContact{
			{RowIndex: 4, FirstName: "Amy", FullName: "Amy Pond", Location: "Leeds", CanonicalPhone: "447946220153"},
		},
	})
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp generateLinksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Hi Amy, you are in Leeds {foo}", resp.Results[0].RenderedText)
	assert.Equal(t, 4, resp.Results[0].ContactRef)
	assert.True(t, strings.HasPrefix(resp.Results[0].Link, "https://wa.me/447946220153?text=Hi%20Amy"))
}

func TestGenerateLinks_FromUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	up := uploadSheet(t, env)

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/generate_links", map[string]any{
		"upload_id":        up.UploadID,
		"selected":         []int{2},
		"message_template": "Hello {full_name}",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp generateLinksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Hello Clara Oswald", resp.Results[0].RenderedText)
}

func TestGenerateLinks_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/generate_links", map[string]any{"upload_id": "nope"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPL003")

	bad := httptest.NewRequest(http.MethodPost, "/api/generate_links", strings.NewReader("{"))
	rec = env.do(bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQ001")
}

func TestMergeFields(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/merge-fields", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		MergeFields []core.MergeField `json:"merge_fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.MergeFields, resp.MergeFields)
}

func TestSMS_ConsentFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	payload := map[string]any{"recipients": []string{"07946220153"}, "message": "hello"}

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/sms/send", payload))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "SMS004")

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/sms/consent", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.ConsentCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := jsonRequest(t, http.MethodPost, "/api/sms/send", payload)
	req.AddCookie(cookies[0])
	rec = env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSMS_SendRecipients(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(withConsent(jsonRequest(t, http.MethodPost, "/api/sms/send", map[string]any{
		"recipients": []string{"07946220153", "123", "+447700900123"},
		"message":    "Event tonight",
	})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp smsSendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, dispatch.Summary{Sent: 2, Failed: 0}, resp.Summary)
	assert.Equal(t, []string{"123"}, resp.InvalidNumbers)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "****-****-0153", resp.Results[0].To)
	assert.Equal(t, 2, resp.Results[1].ContactRef)

	require.Len(t, env.sender.sent, 2)
	assert.Equal(t, "447946220153", env.sender.sent[0].To)
	assert.Equal(t, "Event tonight", env.sender.sent[0].Body)
}

func TestSMS_SendFromUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	up := uploadSheet(t, env)

	rec := env.do(withConsent(jsonRequest(t, http.MethodPost, "/api/sms/send", map[string]any{
		"upload_id":        up.UploadID,
		"message_template": "Hi {first_name}",
	})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, env.sender.sent, 2)
	assert.Equal(t, "Hi Amy", env.sender.sent[0].Body)
	assert.Equal(t, "Hi Clara", env.sender.sent[1].Body)
}

func TestSMS_SendErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(withConsent(jsonRequest(t, http.MethodPost, "/api/sms/send", map[string]any{
		"recipients": []string{"12"},
		"message":    "hi",
	})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "CON001")
	assert.Contains(t, rec.Body.String(), `"invalid_numbers":["12"]`)

	rec = env.do(withConsent(jsonRequest(t, http.MethodPost, "/api/sms/send", map[string]any{
		"recipients": []string{"07946220153"},
	})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQ002")

	unconfigured := newTestEnv(t, func(_ *config.Config, d *Deps) { d.SMS = nil })
	rec = unconfigured.do(withConsent(jsonRequest(t, http.MethodPost, "/api/sms/send", map[string]any{})))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SMS001")
}

func TestSMS_SendNotBoundByRequestTimeout(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) {
		cfg.Server.RequestTimeout = time.Nanosecond
		cfg.SMS.SendTimeout = time.Minute
	})

	rec := env.do(withConsent(jsonRequest(t, http.MethodPost, "/api/sms/send", map[string]any{
		"recipients": []string{"07946220153", "07700900123", "07700900124"},
		"message":    "Event tonight",
	})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp smsSendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, dispatch.Summary{Sent: 3, Failed: 0}, resp.Summary)
	assert.Len(t, env.sender.sent, 3)
}

func TestSMS_SendOverBudget(t *testing.T) {
	sender := &fakeSender{}
	env := newTestEnv(t, func(cfg *config.Config, d *Deps) {
		cfg.SMS.SendTimeout = time.Second
		d.SMS = dispatch.NewBulk(sender, dispatch.BulkConfig{RatePerSecond: 1}, d.Logger, nil)
	})

	rec := env.do(withConsent(jsonRequest(t, http.MethodPost, "/api/sms/send", map[string]any{
		"recipients": []string{"07946220153", "07700900123", "07700900124"},
		"message":    "Event tonight",
	})))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "SMS007")
	assert.Empty(t, sender.sent, "nothing is sent when the batch cannot finish in time")
}

func TestSMS_SendUKMobileOnly(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) {
		cfg.SMS.UKMobileOnly = true
	})

	rec := env.do(withConsent(jsonRequest(t, http.MethodPost, "/api/sms/send", map[string]any{
		"recipients": []string{"07946220153", "+12015550123", "02079460000"},
		"message":    "hi",
	})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp smsSendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"+12015550123", "02079460000"}, resp.InvalidNumbers)
	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "447946220153", env.sender.sent[0].To)
}

func TestSMS_Status(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) { cfg.Security.ConsentRequired = false })

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/sms/status/SM42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"delivered"`)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/sms/status/SMbroken", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "SMS006")
}

func TestRecentUploads(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/uploads/recent", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":false,"uploads":[]}`, rec.Body.String())

	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	audited := newTestEnv(t, func(_ *config.Config, d *Deps) {
		d.Uploads = stubUploads{entries: []core.UploadAudit{{
			ID: "a1", FileName: "volunteers.csv", Status: core.StatusOK,
			TotalRows: 3, Contacts: 2, Skipped: 1, Warnings: 1,
			Duration: 120 * time.Millisecond, CreatedAt: created,
		}}}
	})

	rec = audited.do(httptest.NewRequest(http.MethodGet, "/api/uploads/recent?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp recentUploadsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Enabled)
	require.Len(t, resp.Uploads, 1)
	assert.Equal(t, "volunteers.csv", resp.Uploads[0].FileName)

	rec = audited.do(httptest.NewRequest(http.MethodGet, "/api/uploads/recent?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "a1,2025-03-01T09:30:00Z,volunteers.csv,ok,3,2,1,1,120,", lines[1])
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"max_concurrent":2`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) {
		cfg.Security.RequireAPIKey = true
		cfg.Security.APIKeys = []string{"secret"}
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/merge-fields", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/merge-fields", nil)
	req.Header.Set(middleware.APIKeyHeader, "wrong")
	assert.Equal(t, http.StatusForbidden, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/merge-fields", nil)
	req.Header.Set(middleware.APIKeyHeader, "secret")
	assert.Equal(t, http.StatusOK, env.do(req).Code)

	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Deps) {
		cfg.Rate.Enabled = true
		cfg.Rate.RequestsPerMinute = 2
		cfg.Rate.UploadLimit = 2
		cfg.Rate.SendLimit = 2
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")
}

func osReadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
