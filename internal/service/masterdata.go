package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/money"
	"github.com/mmeshcher/life-admin-system/internal/repository"
	"github.com/mmeshcher/life-admin-system/internal/validation"
)

// NewAgent: данные для регистрации агента.
type NewAgent struct {
	Name        string
	Surname     string
	Branch      model.Branch
	Email       string
	DateJoining time.Time
}

// ParseBranch разбирает название филиала: регистр и пробелы не важны.
func ParseBranch(raw string) (model.Branch, error) {
	b := model.Branch(strings.ToUpper(strings.Join(strings.Fields(raw), "_")))
	if !b.Valid() {
		return "", invalid("branch", raw, "unknown branch")
	}
	return b, nil
}

func (s *Service) validateAgent(in NewAgent) (model.Agent, error) {
	a := model.Agent{
		Name:        strings.TrimSpace(in.Name),
		Surname:     strings.TrimSpace(in.Surname),
		Branch:      in.Branch,
		Email:       strings.TrimSpace(in.Email),
		DateJoining: money.Date(in.DateJoining),
	}
	switch {
	case a.Name == "":
		return a, invalid("name", "", "is required")
	case a.Surname == "":
		return a, invalid("surname", "", "is required")
	case !a.Branch.Valid():
		return a, invalid("branch", string(a.Branch), "unknown branch")
	case in.DateJoining.IsZero():
		return a, invalid("date_joining", "", "is required")
	case a.DateJoining.After(s.today()):
		return a, invalid("date_joining", a.DateJoining.Format(time.DateOnly), "cannot be in the future")
	case a.Email != "" && !validation.IsValidEmail(a.Email):
		return a, invalid("email", a.Email, "invalid email address")
	}
	return a, nil
}

// CreateAgent регистрирует агента.
func (s *Service) CreateAgent(ctx context.Context, in NewAgent) (*model.Agent, error) {
	a, err := s.validateAgent(in)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateAgent(ctx, a)
}

// ListAgents возвращает всех агентов.
func (s *Service) ListAgents(ctx context.Context) ([]model.Agent, error) {
	return s.repo.ListAgents(ctx)
}

// GetAgent возвращает агента по коду.
func (s *Service) GetAgent(ctx context.Context, code string) (*model.Agent, error) {
	return s.repo.GetAgentByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// NewClient: данные для регистрации клиента.
type NewClient struct {
	Name     string
	Surname  string
	IDNumber string
	DOB      time.Time
	Email    string
	Phone    string
	Street   string
	Location string
	City     string
}

func (s *Service) validateClient(in NewClient) (model.Client, error) {
	c := model.Client{
		Name:     strings.TrimSpace(in.Name),
		Surname:  strings.TrimSpace(in.Surname),
		IDNumber: strings.TrimSpace(in.IDNumber),
		DOB:      money.Date(in.DOB),
		Email:    strings.TrimSpace(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		Street:   strings.TrimSpace(in.Street),
		Location: strings.TrimSpace(in.Location),
		City:     strings.TrimSpace(in.City),
	}
	switch {
	case c.Name == "":
		return c, invalid("name", "", "is required")
	case c.Surname == "":
		return c, invalid("surname", "", "is required")
	case !validation.IsValidClientID(c.IDNumber):
		return c, invalid("id_number", c.IDNumber, "must look like 63-123456A12")
	case in.DOB.IsZero():
		return c, invalid("dob", "", "is required")
	case c.DOB.After(s.today()):
		return c, invalid("dob", c.DOB.Format(time.DateOnly), "cannot be in the future")
	case !validation.IsValidEmail(c.Email):
		return c, invalid("email", c.Email, "invalid email address")
	case !validation.IsValidPhone(c.Phone):
		return c, invalid("phone", c.Phone, "must contain 7 to 15 digits")
	}
	return c, nil
}

// CreateClient регистрирует клиента.
func (s *Service) CreateClient(ctx context.Context, in NewClient) (*model.Client, error) {
	c, err := s.validateClient(in)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateClient(ctx, c)
}

// ListClients возвращает всех клиентов.
func (s *Service) ListClients(ctx context.Context) ([]model.Client, error) {
	return s.repo.ListClients(ctx)
}

// GetClient возвращает клиента по коду.
func (s *Service) GetClient(ctx context.Context, code string) (*model.Client, error) {
	return s.repo.GetClientByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// NewPaypoint: данные для регистрации точки удержания.
type NewPaypoint struct {
	Code       string
	Name       string
	DateJoined time.Time
}

func (s *Service) validatePaypoint(in NewPaypoint) (model.Paypoint, error) {
	p := model.Paypoint{
		Code:       validation.NormalizePaypointCode(in.Code),
		Name:       strings.TrimSpace(in.Name),
		DateJoined: money.Date(in.DateJoined),
	}
	switch {
	case !validation.IsValidPaypointCode(p.Code):
		return p, invalid("paypoint_code", in.Code, "must start with pps and contain only letters")
	case p.Name == "":
		return p, invalid("name", "", "is required")
	case in.DateJoined.IsZero():
		return p, invalid("date_joined", "", "is required")
	case p.DateJoined.After(s.today()):
		return p, invalid("date_joined", p.DateJoined.Format(time.DateOnly), "cannot be in the future")
	}
	return p, nil
}

// CreatePaypoint регистрирует точку удержания. Код приводится к нижнему регистру.
func (s *Service) CreatePaypoint(ctx context.Context, in NewPaypoint) (*model.Paypoint, error) {
	p, err := s.validatePaypoint(in)
	if err != nil {
		return nil, err
	}
	return s.repo.CreatePaypoint(ctx, p)
}

// ListPaypoints возвращает все точки удержания.
func (s *Service) ListPaypoints(ctx context.Context) ([]model.Paypoint, error) {
	return s.repo.ListPaypoints(ctx)
}

// GetPaypoint находит точку удержания по идентификатору, коду или названию.
func (s *Service) GetPaypoint(ctx context.Context, ref string) (*model.Paypoint, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, invalid("paypoint", "", "is required")
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.repo.GetPaypointByID(ctx, id)
	}

	if validation.IsValidPaypointCode(ref) {
		p, err := s.repo.GetPaypointByCode(ctx, validation.NormalizePaypointCode(ref))
		if err == nil || !errors.Is(err, repository.ErrPaypointNotFound) {
			return p, err
		}
	}

	p, err := s.repo.FindPaypointByName(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("paypoint %q: %w", ref, err)
	}
	return p, nil
}
