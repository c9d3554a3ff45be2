package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"citizenly/internal/identity"
	"citizenly/internal/jurisdiction"
	"citizenly/internal/registration/service"
	"citizenly/internal/registration/store/profile"
	"citizenly/internal/registration/store/role"
	"citizenly/internal/token"
	"citizenly/pkg/platform/httputil"
	"citizenly/pkg/retry"
)

// Handler tests run the real memory stack end to end; only the wire protocol
// is under test here, the orchestration paths have their own suites.
func newRouter(t *testing.T, idOpts ...identity.MemoryOption) (chi.Router, *token.Issuer) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	profiles := profile.NewMemory()
	svc := service.NewService(
		identity.NewMemory(idOpts...),
		profiles,
		role.NewMemory(),
		service.WithVisibilityPolicy(retry.Policy{
			MaxAttempts:       3,
			InitialDelay:      time.Millisecond,
			BackoffMultiplier: 1,
			MaxDelay:          time.Millisecond,
		}),
		service.WithLogger(logger),
	)
	jur := jurisdiction.New(profiles, nil, time.Minute, logger)
	issuer := token.NewIssuer("test-signing-key", 15*time.Minute)

	r := chi.NewRouter()
	New(svc, jur, issuer, logger).Register(r)
	return r, issuer
}

func postSignup(t *testing.T, router chi.Router, payload map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func adminPayload(email string) map[string]string {
	return map[string]string{
		"email":             email,
		"password":          "Str0ng!pw",
		"first_name":        "Juan",
		"last_name":         "Cruz",
		"role_name":         "barangay_admin",
		"jurisdiction_code": "097332001",
	}
}

func TestSignup_CreatedWithReceipt(t *testing.T) {
	// One lagged lookup exercises the visibility wait through the full stack.
	router, issuer := newRouter(t, identity.WithLagLookups(1))

	rec := postSignup(t, router, adminPayload("admin@example.com"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SignupResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Profile == nil || resp.Profile.ID == uuid.Nil {
		t.Fatal("expected profile with identity-backed id")
	}
	if resp.Profile.Status != "pending_approval" {
		t.Fatalf("expected pending_approval status, got %q", resp.Profile.Status)
	}

	claims, err := issuer.Verify(resp.Receipt)
	if err != nil {
		t.Fatalf("receipt must verify: %v", err)
	}
	if claims.Subject != resp.Profile.ID.String() {
		t.Fatalf("receipt subject %q does not match profile id %q", claims.Subject, resp.Profile.ID)
	}
}

func TestSignup_ValidationErrorListsFields(t *testing.T) {
	router, _ := newRouter(t)

	rec := postSignup(t, router, map[string]string{"email": "not-an-email"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var body httputil.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.ErrorCode != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %q", body.ErrorCode)
	}
	if _, ok := body.Fields["password"]; !ok {
		t.Fatalf("expected password field detail, got %v", body.Fields)
	}
}

func TestSignup_MalformedJSONIsBadRequest(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSignup_SecondAdminInJurisdictionConflicts(t *testing.T) {
	router, _ := newRouter(t)

	if rec := postSignup(t, router, adminPayload("first@example.com")); rec.Code != http.StatusCreated {
		t.Fatalf("first admin should register, got %d: %s", rec.Code, rec.Body.String())
	}

	rec := postSignup(t, router, adminPayload("second@example.com"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var body httputil.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.ErrorCode != "JURISDICTION_ALREADY_ADMINISTERED" {
		t.Fatalf("expected JURISDICTION_ALREADY_ADMINISTERED, got %q", body.ErrorCode)
	}
	if body.Retryable {
		t.Fatal("a lost jurisdiction race is not retryable")
	}
}

func TestSignup_PropagationTimeoutIsRetryable504(t *testing.T) {
	// More lagged lookups than the policy's attempt budget.
	router, _ := newRouter(t, identity.WithLagLookups(100))

	rec := postSignup(t, router, adminPayload("slow@example.com"))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d: %s", rec.Code, rec.Body.String())
	}

	var body httputil.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.ErrorCode != "PROPAGATION_TIMEOUT" {
		t.Fatalf("expected PROPAGATION_TIMEOUT, got %q", body.ErrorCode)
	}
	if !body.Retryable {
		t.Fatal("propagation timeout must advertise retryable")
	}
}

func TestSignup_RetryWithSameInputIsIdempotent(t *testing.T) {
	router, _ := newRouter(t)
	payload := adminPayload("admin@example.com")

	first := postSignup(t, router, payload)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	var firstResp SignupResponse
	if err := json.NewDecoder(first.Body).Decode(&firstResp); err != nil {
		t.Fatalf("decode first response: %v", err)
	}

	second := postSignup(t, router, payload)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected idempotent 201 on retry, got %d: %s", second.Code, second.Body.String())
	}
	var secondResp SignupResponse
	if err := json.NewDecoder(second.Body).Decode(&secondResp); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if secondResp.Profile.ID != firstResp.Profile.ID {
		t.Fatalf("retry must return the original profile, got %s and %s",
			firstResp.Profile.ID, secondResp.Profile.ID)
	}
}

func TestAdminStatus_ReflectsRegistration(t *testing.T) {
	router, _ := newRouter(t)

	get := func() AdminStatusResponse {
		req := httptest.NewRequest(http.MethodGet, "/jurisdictions/097332001/admin-status", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp AdminStatusResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	if resp := get(); resp.HasAdmin {
		t.Fatal("expected no admin before registration")
	}

	if rec := postSignup(t, router, adminPayload("admin@example.com")); rec.Code != http.StatusCreated {
		t.Fatalf("admin should register, got %d", rec.Code)
	}

	if resp := get(); !resp.HasAdmin {
		t.Fatal("expected admin after registration")
	}
}
