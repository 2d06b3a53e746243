package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/life-admin-system/internal/importer"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/repository"
	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

// ImportResult: итог загрузки файла. Errors содержит сообщения вида "Row N: причина",
// где N это номер строки в файле, заголовок занимает строку 1.
type ImportResult struct {
	Entity  string   `json:"entity"`
	Created int      `json:"created"`
	Errors  []string `json:"errors"`
}

type rowHandler func(ctx context.Context, row importer.Row) error

func (s *Service) runImport(ctx context.Context, entity, filename string, r io.Reader, columns int, handle rowHandler) (*ImportResult, error) {
	rows, err := importer.ReadRows(filename, r)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Entity: entity, Errors: []string{}}
	for _, row := range rows {
		err := ctx.Err()
		if err != nil {
			return nil, err
		}
		switch {
		case row.Err != nil:
			err = importer.ErrMalformedRow
		case len(row.Cells) < columns:
			err = errors.New("Not enough columns")
		default:
			err = handle(ctx, row)
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", row.Line, err))
			continue
		}
		res.Created++
	}

	s.metrics.ImportRows(entity, res.Created, len(res.Errors))
	s.logger.Info("import finished",
		zap.String("entity", entity),
		zap.String("file", filename),
		zap.Int("created", res.Created),
		zap.Int("failed", len(res.Errors)),
	)
	return res, nil
}

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"02/01/2006",
	"01-02-06",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseDate разбирает дату из ячейки таблицы.
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, invalid(field, "", "is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid(field, raw, "invalid date")
}

func splitFullName(raw string) (string, string, bool) {
	parts := strings.Fields(raw)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], strings.Join(parts[1:], " "), true
}

// ImportAgents загружает агентов: name, surname, branch, date joining.
func (s *Service) ImportAgents(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	seen := make(map[string]struct{})

	return s.runImport(ctx, "agents", filename, r, 4, func(ctx context.Context, row importer.Row) error {
		branch, err := ParseBranch(row.Cell(2))
		if err != nil {
			return err
		}
		joined, err := parseDate("date_joining", row.Cell(3))
		if err != nil {
			return err
		}

		in, err := s.validateAgent(NewAgent{Name: row.Cell(0), Surname: row.Cell(1), Branch: branch, DateJoining: joined})
		if err != nil {
			return err
		}

		key := strings.ToLower(in.Name + "|" + in.Surname + "|" + string(in.Branch))
		if _, dup := seen[key]; dup {
			return errors.New("Duplicate agent in file")
		}
		seen[key] = struct{}{}

		exists, err := s.repo.AgentExists(ctx, in.Name, in.Surname, in.Branch)
		if err != nil {
			return err
		}
		if exists {
			return errors.New("Duplicate agent in database")
		}

		_, err = s.repo.CreateAgent(ctx, in)
		return err
	})
}

// ImportClients загружает клиентов: name, surname, id number, dob, email, phone, street, location, city.
func (s *Service) ImportClients(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	seen := make(map[string]struct{})

	return s.runImport(ctx, "clients", filename, r, 9, func(ctx context.Context, row importer.Row) error {
		dob, err := parseDate("dob", row.Cell(3))
		if err != nil {
			return err
		}

		in, err := s.validateClient(NewClient{
			Name:     row.Cell(0),
			Surname:  row.Cell(1),
			IDNumber: row.Cell(2),
			DOB:      dob,
			Email:    row.Cell(4),
			Phone:    row.Cell(5),
			Street:   row.Cell(6),
			Location: row.Cell(7),
			City:     row.Cell(8),
		})
		if err != nil {
			return err
		}

		for _, key := range []string{"id:" + strings.ToLower(in.IDNumber), "email:" + strings.ToLower(in.Email)} {
			if _, dup := seen[key]; dup {
				return errors.New("Duplicate client in file")
			}
		}
		seen["id:"+strings.ToLower(in.IDNumber)] = struct{}{}
		seen["email:"+strings.ToLower(in.Email)] = struct{}{}

		if _, err := s.repo.CreateClient(ctx, in); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errors.New("Duplicate client in database")
			}
			return err
		}
		return nil
	})
}

// ImportPaypoints загружает точки удержания: code, name, date joined.
func (s *Service) ImportPaypoints(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	seen := make(map[string]struct{})

	return s.runImport(ctx, "paypoints", filename, r, 3, func(ctx context.Context, row importer.Row) error {
		joined, err := parseDate("date_joined", row.Cell(2))
		if err != nil {
			return err
		}
		in, err := s.validatePaypoint(NewPaypoint{Code: row.Cell(0), Name: row.Cell(1), DateJoined: joined})
		if err != nil {
			return err
		}

		if _, dup := seen[in.Code]; dup {
			return errors.New("Duplicate paypoint in file")
		}
		seen[in.Code] = struct{}{}

		if _, err := s.repo.CreatePaypoint(ctx, in); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errors.New("Duplicate paypoint in database")
			}
			return err
		}
		return nil
	})
}

// ImportPolicies загружает полисы от имени сотрудника actorID: product, start date,
// proposal sign date, beneficiary name, beneficiary id, agent full name, paypoint name,
// client full name, frequency, cover. Агент, точка удержания и клиент ищутся по имени.
func (s *Service) ImportPolicies(ctx context.Context, actorID int64, filename string, r io.Reader) (*ImportResult, error) {
	seen := make(map[string]struct{})

	return s.runImport(ctx, "policies", filename, r, 10, func(ctx context.Context, row importer.Row) error {
		agentName, agentSurname, ok := splitFullName(row.Cell(5))
		if !ok {
			return errors.New("Agent must have name and surname")
		}
		agent, err := s.repo.FindAgentByName(ctx, agentName, agentSurname)
		if err != nil {
			if errors.Is(err, repository.ErrAgentNotFound) {
				return fmt.Errorf("Agent '%s' not found", row.Cell(5))
			}
			return err
		}

		paypoint, err := s.repo.FindPaypointByName(ctx, row.Cell(6))
		if err != nil {
			if errors.Is(err, repository.ErrPaypointNotFound) {
				return fmt.Errorf("Paypoint '%s' not found", row.Cell(6))
			}
			return err
		}

		clientName, clientSurname, ok := splitFullName(row.Cell(7))
		if !ok {
			return errors.New("Client must have name and surname")
		}
		client, err := s.repo.FindClientByName(ctx, clientName, clientSurname)
		if err != nil {
			if errors.Is(err, repository.ErrClientNotFound) {
				return fmt.Errorf("Client '%s' not found", row.Cell(7))
			}
			return err
		}

		frequency, err := valuation.ParseFrequency(row.Cell(8))
		if err != nil {
			return fmt.Errorf("Invalid frequency '%s'", row.Cell(8))
		}
		cover, err := strconv.Atoi(row.Cell(9))
		if err != nil || !valuation.Cover(cover).Valid() {
			return errors.New("Invalid cover amount")
		}
		product, err := valuation.ParseProduct(row.Cell(0))
		if err != nil {
			return fmt.Errorf("Invalid product '%s'", row.Cell(0))
		}
		start, err := parseDate("start_date", row.Cell(1))
		if err != nil {
			return err
		}
		signed, err := parseDate("proposal_sign_date", row.Cell(2))
		if err != nil {
			return err
		}

		p := model.Policy{
			Product:          product,
			Cover:            valuation.Cover(cover),
			Frequency:        frequency,
			ProposalSignDate: signed,
			StartDate:        start,
			BeneficiaryName:  row.Cell(3),
			BeneficiaryID:    row.Cell(4),
			AgentID:          &agent.ID,
			PaypointID:       paypoint.ID,
			ClientID:         client.ID,
			CreatedBy:        actorID,
		}
		if err := s.preparePolicy(&p); err != nil {
			return err
		}

		key := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d|%s|%d",
			p.Product, p.StartDate.Format(time.DateOnly), p.ProposalSignDate.Format(time.DateOnly),
			p.BeneficiaryID, agent.ID, p.PaypointID, p.ClientID, p.Frequency, p.Cover)
		if _, dup := seen[key]; dup {
			return errors.New("Duplicate policy in file")
		}
		seen[key] = struct{}{}

		exists, err := s.repo.PolicyExists(ctx, p)
		if err != nil {
			return err
		}
		if exists {
			return errors.New("Duplicate policy in database")
		}

		_, err = s.repo.CreatePolicy(ctx, p)
		return err
	})
}

// ImportReceipts проводит поступления от имени сотрудника actorID: contract id, amount.
func (s *Service) ImportReceipts(ctx context.Context, actorID int64, filename string, r io.Reader) (*ImportResult, error) {
	return s.runImport(ctx, "receipts", filename, r, 2, func(ctx context.Context, row importer.Row) error {
		amount, err := decimal.NewFromString(row.Cell(1))
		if err != nil {
			return invalid("amount", row.Cell(1), "not a number")
		}

		_, err = s.RecordPayment(ctx, actorID, row.Cell(0), amount)
		if errors.Is(err, repository.ErrPolicyNotFound) {
			return fmt.Errorf("Policy '%s' not found", row.Cell(0))
		}
		return err
	})
}
