package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/life-admin-system/internal/importer"
	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/middleware"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/repository"
	"github.com/mmeshcher/life-admin-system/internal/service"
	"github.com/mmeshcher/life-admin-system/internal/statement"
)

// stubService подменяет только используемые в тесте методы; остальные не вызываются.
type stubService struct {
	Service

	registerUserID int64
	registerErr    error

	authUserID int64
	authErr    error

	policyErr error

	receipt       *model.PremiumReceipt
	receiptErr    error
	gotContractID string
	gotAmount     decimal.Decimal

	cancellationErr error
	claim           *model.Claim

	statement statement.Statement
	gotMonth  time.Time

	importResult *service.ImportResult
	importErr    error
	gotFilename  string
	gotBody      string
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string, role model.Role) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	return s.authUserID, s.authErr
}

func (s *stubService) ListAgents(ctx context.Context) ([]model.Agent, error) {
	return []model.Agent{{ID: 1, Code: "A0001", Name: "Tendai", Surname: "Moyo", Branch: model.BranchHarare}}, nil
}

func (s *stubService) GetPolicy(ctx context.Context, contractID string, month time.Time) (*service.PolicyView, error) {
	s.gotContractID = contractID
	s.gotMonth = month
	if s.policyErr != nil {
		return nil, s.policyErr
	}
	return &service.PolicyView{
		Record: model.PolicyRecord{Policy: model.Policy{ContractID: contractID}},
		Status: lifecycle.StatusActive,
	}, nil
}

func (s *stubService) RecordPayment(ctx context.Context, actorID int64, contractID string, amount decimal.Decimal) (*model.PremiumReceipt, error) {
	s.gotContractID = contractID
	s.gotAmount = amount
	return s.receipt, s.receiptErr
}

func (s *stubService) ResolveCancellation(ctx context.Context, actorID, id int64, approve bool) (*model.CancellationRequest, error) {
	if s.cancellationErr != nil {
		return nil, s.cancellationErr
	}
	return &model.CancellationRequest{ID: id, Status: lifecycle.RequestApproved}, nil
}

func (s *stubService) ResolveClaim(ctx context.Context, actorID, id int64, approve bool, reason string) (*model.Claim, error) {
	return s.claim, nil
}

func (s *stubService) BillingStatement(ctx context.Context, paypointRef string, month time.Time) (statement.Statement, error) {
	s.gotMonth = month
	return s.statement, nil
}

func (s *stubService) ImportPolicies(ctx context.Context, actorID int64, filename string, r io.Reader) (*service.ImportResult, error) {
	s.gotFilename = filename
	body, _ := io.ReadAll(r)
	s.gotBody = string(body)
	return s.importResult, s.importErr
}

const testUserID = 42

func newTestRouter(t *testing.T, svc Service) (http.Handler, string) {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")
	h := NewHandler(svc, logger, auth, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})))

	return h.SetupRouter(), auth.Token(testUserID)
}

func do(t *testing.T, router http.Handler, token, method, target string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Result()
}

func TestRegister_Success(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{registerUserID: 42})

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "secret"})
	res := do(t, router, "", http.MethodPost, "/api/user/register", bytes.NewReader(body), "application/json")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("auth cookie was not set")
	}

	var resp tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != 42 || resp.Token == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRegister_Conflict(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{registerErr: repository.ErrUserExists})

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "secret"})
	res := do(t, router, "", http.MethodPost, "/api/user/register", bytes.NewReader(body), "application/json")
	defer res.Body.Close()

	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestLogin_UnauthorizedOnInvalidCredentials(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{authErr: service.ErrInvalidCredentials})

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "wrong"})
	res := do(t, router, "", http.MethodPost, "/api/user/login", bytes.NewReader(body), "application/json")
	defer res.Body.Close()

	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, token := newTestRouter(t, &stubService{})

	res := do(t, router, "", http.MethodGet, "/api/agents", nil, "")
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}

	res = do(t, router, token, http.MethodGet, "/api/agents", nil, "")
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status with token = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var agents []agentResponse
	if err := json.NewDecoder(res.Body).Decode(&agents); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(agents) != 1 || agents[0].Code != "A0001" {
		t.Fatalf("unexpected agents %+v", agents)
	}
}

func TestRecordPayment(t *testing.T) {
	svc := &stubService{
		receipt: &model.PremiumReceipt{
			Number:        "Rec000001",
			ContractID:    "P00001",
			Amount:        decimal.RequireFromString("12.5"),
			TotalReceived: decimal.RequireFromString("12.5"),
			ReceivedAt:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		},
	}
	router, token := newTestRouter(t, svc)

	res := do(t, router, token, http.MethodPost, "/api/policies/P00001/receipts", strings.NewReader(`{"amount": 12.50}`), "application/json")
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if svc.gotContractID != "P00001" {
		t.Fatalf("contract id = %q, want P00001", svc.gotContractID)
	}
	if !svc.gotAmount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("amount = %s, want 12.5", svc.gotAmount)
	}

	var resp receiptResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Number != "Rec000001" || resp.TotalReceived != "12.50" {
		t.Fatalf("unexpected receipt %+v", resp)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		svc    *stubService
		method string
		target string
		body   string
		want   int
	}{
		{
			name:   "invalid amount",
			svc:    &stubService{receiptErr: &service.InvalidAmountError{Amount: decimal.Zero}},
			method: http.MethodPost,
			target: "/api/policies/P00001/receipts",
			body:   `{"amount": "0"}`,
			want:   http.StatusBadRequest,
		},
		{
			name:   "malformed amount",
			svc:    &stubService{},
			method: http.MethodPost,
			target: "/api/policies/P00001/receipts",
			body:   `{"amount": "ten"}`,
			want:   http.StatusBadRequest,
		},
		{
			name:   "policy not found",
			svc:    &stubService{policyErr: fmt.Errorf("%w: P09999", repository.ErrPolicyNotFound)},
			method: http.MethodGet,
			target: "/api/policies/P09999",
			want:   http.StatusNotFound,
		},
		{
			name:   "bad month",
			svc:    &stubService{},
			method: http.MethodGet,
			target: "/api/policies/P00001?month=2024-13",
			want:   http.StatusBadRequest,
		},
		{
			name:   "operator cannot resolve",
			svc:    &stubService{cancellationErr: fmt.Errorf("%w: manager role required", service.ErrForbidden)},
			method: http.MethodPost,
			target: "/api/cancellations/1/approve",
			want:   http.StatusForbidden,
		},
		{
			name:   "request already resolved",
			svc:    &stubService{cancellationErr: fmt.Errorf("%w: cancellation 1 is APPROVED", service.ErrConflict)},
			method: http.MethodPost,
			target: "/api/cancellations/1/reject",
			want:   http.StatusConflict,
		},
		{
			name:   "unexpected failure",
			svc:    &stubService{cancellationErr: context.DeadlineExceeded},
			method: http.MethodPost,
			target: "/api/cancellations/1/approve",
			want:   http.StatusInternalServerError,
		},
		{
			name:   "non numeric id",
			svc:    &stubService{},
			method: http.MethodPost,
			target: "/api/cancellations/abc/approve",
			want:   http.StatusBadRequest,
		},
		{
			name:   "statement without month",
			svc:    &stubService{},
			method: http.MethodGet,
			target: "/api/statements/billing/ppszesa",
			want:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, token := newTestRouter(t, tt.svc)

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			res := do(t, router, token, tt.method, tt.target, body, "application/json")
			defer res.Body.Close()

			if res.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want)
			}
		})
	}
}

func TestGetPolicyPassesMonth(t *testing.T) {
	svc := &stubService{}
	router, token := newTestRouter(t, svc)

	res := do(t, router, token, http.MethodGet, "/api/policies/P00007?month=2024-04", nil, "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if want := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC); !svc.gotMonth.Equal(want) {
		t.Fatalf("month = %v, want %v", svc.gotMonth, want)
	}

	var resp policyResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ContractID != "P00007" || resp.Status != string(lifecycle.StatusActive) {
		t.Fatalf("unexpected policy %+v", resp)
	}
}

func TestApproveClaimReportsRequisition(t *testing.T) {
	svc := &stubService{claim: &model.Claim{ID: 3, ContractID: "P00001", Status: lifecycle.RequestApproved}}
	router, token := newTestRouter(t, svc)

	res := do(t, router, token, http.MethodPost, "/api/claims/3/approve", nil, "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp claimResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != service.RequisitionSentMessage {
		t.Fatalf("message = %q, want %q", resp.Message, service.RequisitionSentMessage)
	}
}

func TestBillingStatementCSV(t *testing.T) {
	svc := &stubService{
		statement: statement.Statement{
			Kind:    statement.KindBilling,
			Month:   time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
			Subject: "ppszesa",
			Rows: []statement.Row{{
				ContractID:      "P00001",
				ClientName:      "Rudo Chikore",
				Status:          lifecycle.StatusActive,
				ContractPremium: decimal.RequireFromString("1"),
			}},
			TotalPremium: decimal.RequireFromString("1"),
		},
	}
	router, token := newTestRouter(t, svc)

	res := do(t, router, token, http.MethodGet, "/api/statements/billing/ppszesa?month=2024-04&export=csv", nil, "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content-type = %q, want text/csv", ct)
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "billing_ppszesa_2024-04.csv") {
		t.Fatalf("content-disposition = %q", cd)
	}

	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "P00001") || !strings.Contains(string(body), "TOTAL") {
		t.Fatalf("unexpected csv %q", body)
	}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestImportPolicies(t *testing.T) {
	svc := &stubService{importResult: &service.ImportResult{Entity: "policies", Created: 4, Errors: []string{"Row 3: Agent 'X Y' not found"}}}
	router, token := newTestRouter(t, svc)

	body, ct := multipartBody(t, "policies.csv", "header\nrow")
	res := do(t, router, token, http.MethodPost, "/api/imports/policies", body, ct)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.gotFilename != "policies.csv" || svc.gotBody != "header\nrow" {
		t.Fatalf("service got %q / %q", svc.gotFilename, svc.gotBody)
	}

	var resp service.ImportResult
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Created != 4 || len(resp.Errors) != 1 {
		t.Fatalf("unexpected result %+v", resp)
	}
}

func TestImportErrors(t *testing.T) {
	router, token := newTestRouter(t, &stubService{importErr: importer.ErrUnsupportedFormat})

	body, ct := multipartBody(t, "policies.txt", "x")
	res := do(t, router, token, http.MethodPost, "/api/imports/policies", body, ct)
	res.Body.Close()
	if res.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnsupportedMediaType)
	}

	body, ct = multipartBody(t, "things.csv", "x")
	res = do(t, router, token, http.MethodPost, "/api/imports/things", body, ct)
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}

	res = do(t, router, token, http.MethodPost, "/api/imports/policies", strings.NewReader("{}"), "application/json")
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{})

	res := do(t, router, "", http.MethodGet, "/metrics", nil, "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}
