package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/life-admin-system/internal/model"
)

// CreateAgent сохраняет агента и присваивает ему код вида A0001.
func (r *PostgresRepository) CreateAgent(ctx context.Context, a model.Agent) (*model.Agent, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		n, err := nextNumber(ctx, tx, "agents", "agent_no")
		if err != nil {
			return err
		}
		a.Code = model.AgentCode(n)

		return tx.QueryRow(ctx,
			`INSERT INTO agents (agent_no, agent_code, name, surname, branch, email, date_joining)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			n, a.Code, a.Name, a.Surname, string(a.Branch), a.Email, a.DateJoining,
		).Scan(&a.ID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: agent %s", ErrDuplicate, a.FullName())
		}
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &a, nil
}

const agentColumns = `id, agent_code, name, surname, branch, email, date_joining`

func scanAgent(row pgx.Row) (*model.Agent, error) {
	var (
		a      model.Agent
		branch string
	)
	if err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Surname, &branch, &a.Email, &a.DateJoining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	a.Branch = model.Branch(branch)
	return &a, nil
}

// GetAgentByCode возвращает агента по коду.
func (r *PostgresRepository) GetAgentByCode(ctx context.Context, code string) (*model.Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE agent_code = $1`, code))
}

// GetAgentByID возвращает агента по идентификатору.
func (r *PostgresRepository) GetAgentByID(ctx context.Context, id int64) (*model.Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
}

// FindAgentByName ищет агента по имени и фамилии без учёта регистра.
func (r *PostgresRepository) FindAgentByName(ctx context.Context, name, surname string) (*model.Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE lower(name) = lower($1) AND lower(surname) = lower($2)
		 ORDER BY agent_no LIMIT 1`,
		name, surname,
	))
}

// AgentExists сообщает, зарегистрирован ли агент с такими именем, фамилией и филиалом.
func (r *PostgresRepository) AgentExists(ctx context.Context, name, surname string, branch model.Branch) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM agents WHERE lower(name) = lower($1) AND lower(surname) = lower($2) AND branch = $3)`,
		name, surname, string(branch),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("agent exists: %w", err)
	}
	return exists, nil
}

// ListAgents возвращает всех агентов в порядке регистрации.
func (r *PostgresRepository) ListAgents(ctx context.Context) ([]model.Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY agent_no`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var result []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// CreateClient сохраняет клиента и присваивает ему код вида CC00000001.
func (r *PostgresRepository) CreateClient(ctx context.Context, c model.Client) (*model.Client, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		n, err := nextNumber(ctx, tx, "clients", "client_no")
		if err != nil {
			return err
		}
		c.Code = model.ClientCode(n)

		return tx.QueryRow(ctx,
			`INSERT INTO clients (client_no, client_code, name, surname, id_number, dob, email, phone, street, location, city)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
			n, c.Code, c.Name, c.Surname, c.IDNumber, c.DOB, c.Email, c.Phone, c.Street, c.Location, c.City,
		).Scan(&c.ID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: client %s", ErrDuplicate, c.IDNumber)
		}
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &c, nil
}

const clientColumns = `id, client_code, name, surname, id_number, dob, email, phone, street, location, city`

func scanClient(row pgx.Row) (*model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Surname, &c.IDNumber, &c.DOB, &c.Email, &c.Phone, &c.Street, &c.Location, &c.City)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("scan client: %w", err)
	}
	return &c, nil
}

// GetClientByCode возвращает клиента по коду.
func (r *PostgresRepository) GetClientByCode(ctx context.Context, code string) (*model.Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE client_code = $1`, code))
}

// FindClientByName ищет клиента по имени и фамилии без учёта регистра.
func (r *PostgresRepository) FindClientByName(ctx context.Context, name, surname string) (*model.Client, error) {
	return scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE lower(name) = lower($1) AND lower(surname) = lower($2)
		 ORDER BY client_no LIMIT 1`,
		name, surname,
	))
}

// ListClients возвращает всех клиентов в порядке регистрации.
func (r *PostgresRepository) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY client_no`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var result []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// CreatePaypoint сохраняет точку удержания.
func (r *PostgresRepository) CreatePaypoint(ctx context.Context, p model.Paypoint) (*model.Paypoint, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO paypoints (paypoint_code, name, date_joined) VALUES ($1, $2, $3) RETURNING id`,
		p.Code, p.Name, p.DateJoined,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: paypoint %s", ErrDuplicate, p.Code)
		}
		return nil, fmt.Errorf("create paypoint: %w", err)
	}
	return &p, nil
}

const paypointColumns = `id, paypoint_code, name, date_joined`

func scanPaypoint(row pgx.Row) (*model.Paypoint, error) {
	var p model.Paypoint
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.DateJoined); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaypointNotFound
		}
		return nil, fmt.Errorf("scan paypoint: %w", err)
	}
	return &p, nil
}

// GetPaypointByID возвращает точку удержания по идентификатору.
func (r *PostgresRepository) GetPaypointByID(ctx context.Context, id int64) (*model.Paypoint, error) {
	return scanPaypoint(r.pool.QueryRow(ctx, `SELECT `+paypointColumns+` FROM paypoints WHERE id = $1`, id))
}

// GetPaypointByCode возвращает точку удержания по коду.
func (r *PostgresRepository) GetPaypointByCode(ctx context.Context, code string) (*model.Paypoint, error) {
	return scanPaypoint(r.pool.QueryRow(ctx, `SELECT `+paypointColumns+` FROM paypoints WHERE paypoint_code = $1`, code))
}

// FindPaypointByName ищет точку удержания по названию без учёта регистра.
func (r *PostgresRepository) FindPaypointByName(ctx context.Context, name string) (*model.Paypoint, error) {
	return scanPaypoint(r.pool.QueryRow(ctx,
		`SELECT `+paypointColumns+` FROM paypoints WHERE lower(name) = lower($1) ORDER BY id LIMIT 1`, name))
}

// ListPaypoints возвращает все точки удержания.
func (r *PostgresRepository) ListPaypoints(ctx context.Context) ([]model.Paypoint, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paypointColumns+` FROM paypoints ORDER BY paypoint_code`)
	if err != nil {
		return nil, fmt.Errorf("list paypoints: %w", err)
	}
	defer rows.Close()

	var result []model.Paypoint
	for rows.Next() {
		p, err := scanPaypoint(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}
