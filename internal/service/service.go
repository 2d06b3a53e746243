// Package service реализует бизнес-логику администрирования полисов.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/life-admin-system/internal/finance"
	"github.com/mmeshcher/life-admin-system/internal/metrics"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/notify"
	"github.com/mmeshcher/life-admin-system/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	CreateAgent(ctx context.Context, a model.Agent) (*model.Agent, error)
	GetAgentByCode(ctx context.Context, code string) (*model.Agent, error)
	GetAgentByID(ctx context.Context, id int64) (*model.Agent, error)
	FindAgentByName(ctx context.Context, name, surname string) (*model.Agent, error)
	AgentExists(ctx context.Context, name, surname string, branch model.Branch) (bool, error)
	ListAgents(ctx context.Context) ([]model.Agent, error)

	CreateClient(ctx context.Context, c model.Client) (*model.Client, error)
	GetClientByCode(ctx context.Context, code string) (*model.Client, error)
	FindClientByName(ctx context.Context, name, surname string) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)

	CreatePaypoint(ctx context.Context, p model.Paypoint) (*model.Paypoint, error)
	GetPaypointByID(ctx context.Context, id int64) (*model.Paypoint, error)
	GetPaypointByCode(ctx context.Context, code string) (*model.Paypoint, error)
	FindPaypointByName(ctx context.Context, name string) (*model.Paypoint, error)
	ListPaypoints(ctx context.Context) ([]model.Paypoint, error)

	CreatePolicy(ctx context.Context, p model.Policy) (*model.Policy, error)
	PolicyExists(ctx context.Context, p model.Policy) (bool, error)
	GetPolicy(ctx context.Context, contractID string) (*model.PolicyRecord, error)
	ListPolicies(ctx context.Context, filter model.PolicyFilter) ([]model.PolicyRecord, error)

	RecordPayment(ctx context.Context, contractID string, amount decimal.Decimal, actorID int64) (*model.PremiumReceipt, error)
	ReversePayment(ctx context.Context, number string) (*model.PremiumReceipt, decimal.Decimal, error)
	ListReceipts(ctx context.Context, contractID string) ([]model.PremiumReceipt, error)

	SaveCancellationRequest(ctx context.Context, req model.CancellationRequest) (*model.CancellationRequest, error)
	GetCancellation(ctx context.Context, id int64) (*model.CancellationRequest, error)
	ListCancellations(ctx context.Context, filter model.RequestFilter) ([]model.CancellationRequest, error)
	ResolveCancellation(ctx context.Context, id int64, res model.Resolution) (*model.CancellationRequest, error)

	CreateClaim(ctx context.Context, c model.Claim) (*model.Claim, error)
	GetClaim(ctx context.Context, id int64) (*model.Claim, error)
	ListClaims(ctx context.Context, filter model.RequestFilter) ([]model.Claim, error)
	ResolveClaim(ctx context.Context, id int64, res model.Resolution) (*model.Claim, error)

	UpsertCommission(ctx context.Context, rec model.CommissionRecord) (bool, error)
	ListCommissions(ctx context.Context, month time.Time) ([]model.CommissionRecord, error)
}

// RequisitionSender передаёт платёжные требования в финансовую систему.
type RequisitionSender interface {
	SendRequisition(ctx context.Context, req finance.Requisition) error
}

// Service содержит бизнес-логику администрирования полисов.
type Service struct {
	repo         Repository
	logger       *zap.Logger
	finance      RequisitionSender
	financeEmail string
	mailer       notify.Mailer
	metrics      *metrics.Metrics
	company      string
	now          func() time.Time
}

// Option настраивает сервис.
type Option func(*Service)

// WithFinance задаёт клиент финансовой системы и адрес финансового отдела для уведомлений.
func WithFinance(sender RequisitionSender, email string) Option {
	return func(s *Service) {
		s.finance = sender
		s.financeEmail = email
	}
}

// WithMailer задаёт отправителя писем.
func WithMailer(m notify.Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithMetrics задаёт счётчики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCompany задаёт название компании для отчётов.
func WithCompany(name string) Option {
	return func(s *Service) { s.company = name }
}

// WithClock задаёт источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:   repo,
		logger: logger,
		mailer: notify.NoOpMailer{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) today() time.Time {
	t := s.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RegisterUser регистрирует нового сотрудника.
func (s *Service) RegisterUser(ctx context.Context, login, password string, role model.Role) (int64, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return 0, invalid("login", "", "is required")
	}
	if len(password) < 6 {
		return 0, invalid("password", "", "must be at least 6 characters")
	}
	if role == "" {
		role = model.RoleOperator
	}
	if role != model.RoleOperator && role != model.RoleManager {
		return 0, invalid("role", string(role), "must be OPERATOR or MANAGER")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, login, hashed, role)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль сотрудника и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

// GetUser возвращает сотрудника по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *Service) requireManager(ctx context.Context, actorID int64) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown user %d", ErrForbidden, actorID)
		}
		return nil, err
	}
	if u.Role != model.RoleManager {
		return nil, fmt.Errorf("%w: manager role required", ErrForbidden)
	}
	return u, nil
}
