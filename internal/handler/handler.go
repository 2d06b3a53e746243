// Package handler содержит HTTP-обработчики API администрирования полисов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/life-admin-system/internal/importer"
	"github.com/mmeshcher/life-admin-system/internal/middleware"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/money"
	"github.com/mmeshcher/life-admin-system/internal/repository"
	"github.com/mmeshcher/life-admin-system/internal/service"
	"github.com/mmeshcher/life-admin-system/internal/statement"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string, role model.Role) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	CreateAgent(ctx context.Context, in service.NewAgent) (*model.Agent, error)
	ListAgents(ctx context.Context) ([]model.Agent, error)
	GetAgent(ctx context.Context, code string) (*model.Agent, error)
	CreateClient(ctx context.Context, in service.NewClient) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	GetClient(ctx context.Context, code string) (*model.Client, error)
	CreatePaypoint(ctx context.Context, in service.NewPaypoint) (*model.Paypoint, error)
	ListPaypoints(ctx context.Context) ([]model.Paypoint, error)
	GetPaypoint(ctx context.Context, ref string) (*model.Paypoint, error)

	CreatePolicy(ctx context.Context, actorID int64, in service.NewPolicy) (*model.Policy, error)
	GetPolicy(ctx context.Context, contractID string, month time.Time) (*service.PolicyView, error)
	ListPolicies(ctx context.Context, q service.PolicyQuery, month time.Time) ([]service.PolicyView, error)

	RecordPayment(ctx context.Context, actorID int64, contractID string, amount decimal.Decimal) (*model.PremiumReceipt, error)
	ReversePayment(ctx context.Context, actorID int64, receiptNumber string) (*model.PremiumReceipt, decimal.Decimal, error)
	ListReceipts(ctx context.Context, contractID string) ([]model.PremiumReceipt, error)

	RequestCancellation(ctx context.Context, actorID int64, contractID string, effective time.Time) (*model.CancellationRequest, error)
	ResolveCancellation(ctx context.Context, actorID, id int64, approve bool) (*model.CancellationRequest, error)
	ListCancellations(ctx context.Context, filter model.RequestFilter) ([]model.CancellationRequest, error)
	SubmitClaim(ctx context.Context, actorID int64, in service.NewClaim) (*model.Claim, error)
	ResolveClaim(ctx context.Context, actorID, id int64, approve bool, reason string) (*model.Claim, error)
	ListClaims(ctx context.Context, filter model.RequestFilter) ([]model.Claim, error)

	GenerateCommissions(ctx context.Context, month time.Time) (service.CommissionRun, error)
	ListCommissions(ctx context.Context, month time.Time) ([]model.CommissionRecord, error)
	BillingStatement(ctx context.Context, paypointRef string, month time.Time) (statement.Statement, error)
	CommissionStatement(ctx context.Context, agentCode string, month time.Time, save bool) (statement.Statement, error)
	EmailCommissionStatement(ctx context.Context, agentCode string, month time.Time, save bool) (statement.Statement, error)
	StatementPDF(st statement.Statement) ([]byte, error)

	ImportAgents(ctx context.Context, filename string, r io.Reader) (*service.ImportResult, error)
	ImportClients(ctx context.Context, filename string, r io.Reader) (*service.ImportResult, error)
	ImportPaypoints(ctx context.Context, filename string, r io.Reader) (*service.ImportResult, error)
	ImportPolicies(ctx context.Context, actorID int64, filename string, r io.Reader) (*service.ImportResult, error)
	ImportReceipts(ctx context.Context, actorID int64, filename string, r io.Reader) (*service.ImportResult, error)
}

// Handler реализует HTTP-обработчики API администрирования полисов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	corsOrigins    []string
	metrics        http.Handler
}

// Option настраивает обработчик.
type Option func(*Handler)

// WithCORS разрешает кросс-доменные запросы с указанных адресов.
func WithCORS(origins []string) Option {
	return func(h *Handler) { h.corsOrigins = origins }
}

// WithMetricsHandler публикует метрики по адресу /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts ...Option) *Handler {
	h := &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeError переводит ошибку бизнес-логики в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case repository.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrCancellationExists),
		errors.Is(err, repository.ErrNotPending):
		status = http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, importer.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	default:
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Error(w, err.Error(), status)
}

func badRequest(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusBadRequest)
}

func actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return userID, ok
}

// monthParam разбирает параметр month; пустое значение допустимо, если required == false.
func monthParam(r *http.Request, required bool) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("month"))
	if raw == "" {
		if required {
			return time.Time{}, errors.New("month is required (YYYY-MM)")
		}
		return time.Time{}, nil
	}
	return money.ParseMonth(raw)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type tokenResponse struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// Register обрабатывает регистрацию нового сотрудника.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password, model.Role(strings.ToUpper(req.Role)))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	writeJSON(w, http.StatusOK, tokenResponse{UserID: userID, Token: h.authMiddleware.Token(userID)})
}

// Login выполняет аутентификацию сотрудника и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	writeJSON(w, http.StatusOK, tokenResponse{UserID: userID, Token: h.authMiddleware.Token(userID)})
}

type userResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// Me возвращает текущего сотрудника.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:        u.ID,
		Login:     u.Login,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	})
}
