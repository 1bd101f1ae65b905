package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/leadyard/internal/auth"
	"github.com/zulandar/leadyard/internal/lead"
	"github.com/zulandar/leadyard/internal/models"
)

func TestNewRouter_Validation(t *testing.T) {
	v := auth.NewVerifier("s", "")
	tests := []struct {
		name string
		opts StartOpts
		want string
	}{
		{"nil db", StartOpts{Auth: v, MockPayments: true}, "db is required"},
		{"nil auth", StartOpts{DB: newTestEnv(t, nil).db, MockPayments: true}, "auth verifier is required"},
		{"live without gateway", StartOpts{DB: newTestEnv(t, nil).db, Auth: v}, "live payments require"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouter(tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil || !strings.Contains(err.Error(), "db is required") {
		t.Errorf("err = %v, want db is required", err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	l := env.createLead(t, "proj-1")
	env.do(t, http.MethodPost, "/api/leads/"+l.ID+"/lock", "con-a", "", lockHeaders("k1"))
	env.do(t, http.MethodPost, "/api/leads/"+l.ID+"/lock", "con-b", "", lockHeaders("k2"))

	rec := env.do(t, http.MethodGet, "/metrics", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`test_lead_lock_total{outcome="ok"} 1`,
		`test_lead_lock_total{outcome="LEAD_LOCKED"} 1`,
		`test_http_request_duration_seconds_count{method="POST",route="/api/leads/:id/lock",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestLock(t *testing.T) {
	env := newTestEnv(t, nil)
	l := env.createLead(t, "proj-1")
	path := "/api/leads/" + l.ID + "/lock"

	expectError(t, env.do(t, http.MethodPost, path, "", "", lockHeaders("k1")), http.StatusUnauthorized, "UNAUTHORIZED")
	expectError(t, env.do(t, http.MethodPost, path, "con-a", "", nil), http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY")
	expectError(t, env.do(t, http.MethodPost, path, "home-1", "", lockHeaders("k1")), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.do(t, http.MethodPost, path, "ghost", "", lockHeaders("k1")), http.StatusNotFound, "PROFILE_NOT_FOUND")
	expectError(t, env.do(t, http.MethodPost, "/api/leads/nope/lock", "con-a", "", lockHeaders("k1")), http.StatusNotFound, "LEAD_NOT_FOUND")

	rec := env.do(t, http.MethodPost, path, "con-a", "", lockHeaders("k1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("lock status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if tok, _ := body["payment_token"].(string); !strings.HasPrefix(tok, "pit_") {
		t.Errorf("payment_token = %v", body["payment_token"])
	}
	view := body["lead"].(map[string]interface{})
	if view["status"] != models.LeadLocked {
		t.Errorf("status = %v, want LOCKED", view["status"])
	}
	if _, ok := view["homeowner_email"]; ok {
		t.Error("locked lead exposes homeowner_email to the contractor")
	}

	again := decode(t, env.do(t, http.MethodPost, path, "con-a", "", lockHeaders("k1")))
	if again["reentrant"] != true {
		t.Errorf("re-lock reentrant = %v, want true", again["reentrant"])
	}

	expectError(t, env.do(t, http.MethodPost, path, "con-b", "", lockHeaders("k2")), http.StatusConflict, "LEAD_LOCKED")
}

// Contractor A locks, the lock expires, B takes over and buys. A can no
// longer buy.
func TestLockStealThenPurchase(t *testing.T) {
	env := newTestEnv(t, nil)
	l := env.createLead(t, "proj-1")
	base := "/api/leads/" + l.ID

	if rec := env.do(t, http.MethodPost, base+"/lock", "con-a", "", lockHeaders("k1")); rec.Code != http.StatusOK {
		t.Fatalf("A lock: %d %s", rec.Code, rec.Body.String())
	}
	expectError(t, env.do(t, http.MethodPost, base+"/lock", "con-b", "", lockHeaders("k2")), http.StatusConflict, "LEAD_LOCKED")

	env.db.Model(&models.Lead{}).Where("id = ?", l.ID).Update("locked_at", time.Now().Add(-11*time.Minute))

	if rec := env.do(t, http.MethodPost, base+"/lock", "con-b", "", lockHeaders("k2")); rec.Code != http.StatusOK {
		t.Fatalf("B lock: %d %s", rec.Code, rec.Body.String())
	}
	expectError(t, env.do(t, http.MethodPost, base+"/purchase", "con-a", "", nil), http.StatusConflict, "NOT_LOCK_OWNER")

	rec := env.do(t, http.MethodPost, base+"/purchase", "con-b", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("B purchase: %d %s", rec.Code, rec.Body.String())
	}
	view := decode(t, rec)["lead"].(map[string]interface{})
	if view["status"] != models.LeadPurchased || view["contractor_id"] != "con-b" {
		t.Errorf("lead = %v", view)
	}
	if view["homeowner_email"] != "dana@example.com" {
		t.Errorf("buyer view homeowner_email = %v", view["homeowner_email"])
	}

	expectError(t, env.do(t, http.MethodPost, base+"/purchase", "con-b", "", nil), http.StatusConflict, "LEAD_NOT_LOCKED")
}

func TestPurchase_LiveModeRejected(t *testing.T) {
	env := newTestEnv(t, withLivePayments(&fakeSessions{}))
	l := env.createLead(t, "proj-1")

	expectError(t, env.do(t, http.MethodPost, "/api/leads/"+l.ID+"/purchase", "con-a", "", nil), http.StatusConflict, "PAYMENTS_LIVE_MODE")
}

func TestView_AlwaysOK(t *testing.T) {
	env := newTestEnv(t, nil)
	l := env.createLead(t, "proj-1")

	rec := env.do(t, http.MethodPost, "/api/leads/"+l.ID+"/view", "con-a", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["view_count"]; got != float64(1) {
		t.Errorf("view_count = %v, want 1", got)
	}

	// Own views are not counted; anonymous and unknown leads still succeed.
	env.do(t, http.MethodPost, "/api/leads/"+l.ID+"/view", "home-1", "", nil)
	for _, path := range []string{"/api/leads/" + l.ID + "/view", "/api/leads/nope/view"} {
		if rec := env.do(t, http.MethodPost, path, "", "", nil); rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}

	var stored models.Lead
	env.db.First(&stored, "id = ?", l.ID)
	if stored.ViewCount != 2 {
		t.Errorf("ViewCount = %d, want 2", stored.ViewCount)
	}
}

func TestMineAndMarketplace(t *testing.T) {
	env := newTestEnv(t, nil)
	l := env.createLead(t, "proj-1")
	env.createLead(t, "proj-2")

	mine := decode(t, env.do(t, http.MethodGet, "/api/leads/mine", "home-1", "", nil))
	leads := mine["leads"].([]interface{})
	if len(leads) != 2 {
		t.Fatalf("homeowner leads = %d, want 2", len(leads))
	}
	if leads[0].(map[string]interface{})["homeowner_email"] != "dana@example.com" {
		t.Error("homeowner sees own lead scrubbed")
	}

	expectError(t, env.do(t, http.MethodGet, "/api/leads/mine", "", "", nil), http.StatusUnauthorized, "UNAUTHORIZED")
	expectError(t, env.do(t, http.MethodGet, "/api/leads/marketplace", "home-1", "", nil), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.do(t, http.MethodGet, "/api/leads/marketplace?limit=x", "con-a", "", nil), http.StatusBadRequest, "BAD_REQUEST")

	env.do(t, http.MethodPost, "/api/leads/"+l.ID+"/lock", "con-a", "", lockHeaders("k1"))

	market := decode(t, env.do(t, http.MethodGet, "/api/leads/marketplace?city=Austin", "con-b", "", nil))
	if n := len(market["leads"].([]interface{})); n != 1 {
		t.Errorf("marketplace for con-b = %d leads, want 1", n)
	}
	for _, item := range market["leads"].([]interface{}) {
		if _, ok := item.(map[string]interface{})["homeowner_email"]; ok {
			t.Error("marketplace exposes homeowner_email")
		}
	}

	held := decode(t, env.do(t, http.MethodGet, "/api/leads/mine", "con-a", "", nil))
	if n := len(held["leads"].([]interface{})); n != 1 {
		t.Errorf("con-a leads = %d, want 1", n)
	}
}

func TestStatusAndEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	l := env.createLead(t, "proj-1")
	base := "/api/leads/" + l.ID

	env.do(t, http.MethodPost, base+"/lock", "con-a", "", lockHeaders("k1"))
	env.do(t, http.MethodPost, base+"/purchase", "con-a", "", nil)

	expectError(t, env.do(t, http.MethodPost, base+"/status", "con-a", `{}`, nil), http.StatusBadRequest, "BAD_REQUEST")
	expectError(t, env.do(t, http.MethodPost, base+"/status", "con-b", `{"status":"IN_PROGRESS"}`, nil), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.do(t, http.MethodPost, base+"/status", "con-a", `{"status":"AVAILABLE"}`, nil), http.StatusConflict, "INVALID_TRANSITION")

	rec := env.do(t, http.MethodPost, base+"/status", "con-a", `{"status":"IN_PROGRESS"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("advance: %d %s", rec.Code, rec.Body.String())
	}

	expectError(t, env.do(t, http.MethodGet, base+"/events", "con-a", "", nil), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.do(t, http.MethodGet, "/api/leads/nope/events", "admin-1", "", nil), http.StatusNotFound, "LEAD_NOT_FOUND")

	events := decode(t, env.do(t, http.MethodGet, base+"/events", "admin-1", "", nil))["events"].([]interface{})
	var types []string
	for _, e := range events {
		types = append(types, e.(map[string]interface{})["type"].(string))
	}
	want := []string{models.EventLocked, models.EventPurchased, models.EventStatusChanged}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Errorf("event types = %v, want %v", types, want)
	}
	first := events[0].(map[string]interface{})["metadata"].(map[string]interface{})
	if first["idempotency_key"] != "k1" {
		t.Errorf("locked metadata = %v", first)
	}
}

func TestSubmitProject(t *testing.T) {
	env := newTestEnv(t, nil)
	p := models.Project{ID: "proj-9", HomeownerID: "home-1", Title: "Bathroom access", City: "Austin", Status: models.ProjectDraft}
	if err := env.db.Create(&p).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	path := "/api/projects/proj-9/submit"

	expectError(t, env.do(t, http.MethodPost, path, "con-a", `{}`, nil), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.do(t, http.MethodPost, path, "home-2", `{}`, nil), http.StatusForbidden, "FORBIDDEN")
	expectError(t, env.do(t, http.MethodPost, "/api/projects/nope/submit", "home-1", `{}`, nil), http.StatusNotFound, "PROJECT_NOT_FOUND")
	expectError(t, env.do(t, http.MethodPost, path, "home-1", `{"budget_min":500,"budget_max":100}`, nil), http.StatusBadRequest, "BAD_REQUEST")

	rec := env.do(t, http.MethodPost, path, "home-1", `{"urgency":"high","budget_min":1000,"budget_max":3000}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true || body["lead_id"] == "" {
		t.Errorf("body = %v", body)
	}

	var stored models.Project
	env.db.First(&stored, "id = ?", "proj-9")
	if stored.Status != models.ProjectOpenForBids || stored.Urgency != "high" {
		t.Errorf("project = %s/%s", stored.Status, stored.Urgency)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{lead.Errorf(lead.CodeUnauthorized, "x"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{lead.Errorf(lead.CodeProjectNotFound, "x"), http.StatusNotFound, "PROJECT_NOT_FOUND"},
		{lead.Errorf(lead.CodeAlreadyPurchased, "x"), http.StatusConflict, "ALREADY_PURCHASED"},
		{fmt.Errorf("lead: lock x: %w", lead.Errorf(lead.CodeLeadLocked, "x")), http.StatusConflict, "LEAD_LOCKED"},
		{errors.New("lead: lock x: database is locked"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)
		writeError(c, tt.err)
		expectError(t, rec, tt.status, tt.code)
		if tt.code == "INTERNAL" && strings.Contains(rec.Body.String(), "database") {
			t.Error("internal error leaks store detail")
		}
	}
}
