package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Используется в тестах
// и при запуске без DATABASE_URI. Все операции выполняются под одной блокировкой,
// поэтому проведение поступлений по одному полису сериализовано.
type MemoryRepository struct {
	mu sync.RWMutex

	users         []model.User
	agents        []model.Agent
	clients       []model.Client
	paypoints     []model.Paypoint
	policies      []model.Policy
	receipts      []model.PremiumReceipt
	cancellations []model.CancellationRequest
	claims        []model.Claim
	commissions   []model.CommissionRecord

	nextID int64
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Close ничего не делает.
func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateUser создаёт нового пользователя.
func (m *MemoryRepository) CreateUser(_ context.Context, login string, passwordHash []byte, role model.Role) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Login == login {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
	}
	u := model.User{ID: m.id(), Login: login, PasswordHash: passwordHash, Role: role, CreatedAt: time.Now()}
	m.users = append(m.users, u)
	return u.ID, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (m *MemoryRepository) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Login == login {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// GetUserByID возвращает пользователя по идентификатору.
func (m *MemoryRepository) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// CreateAgent сохраняет агента и присваивает ему код.
func (m *MemoryRepository) CreateAgent(_ context.Context, a model.Agent) (*model.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.agents {
		if strings.EqualFold(existing.Name, a.Name) && strings.EqualFold(existing.Surname, a.Surname) && existing.Branch == a.Branch {
			return nil, fmt.Errorf("%w: agent %s", ErrDuplicate, a.FullName())
		}
	}
	a.ID = m.id()
	a.Code = model.AgentCode(int64(len(m.agents) + 1))
	m.agents = append(m.agents, a)
	return &a, nil
}

func (m *MemoryRepository) findAgent(match func(model.Agent) bool) (*model.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.agents {
		if match(a) {
			return &a, nil
		}
	}
	return nil, ErrAgentNotFound
}

// GetAgentByCode возвращает агента по коду.
func (m *MemoryRepository) GetAgentByCode(_ context.Context, code string) (*model.Agent, error) {
	return m.findAgent(func(a model.Agent) bool { return a.Code == code })
}

// GetAgentByID возвращает агента по идентификатору.
func (m *MemoryRepository) GetAgentByID(_ context.Context, id int64) (*model.Agent, error) {
	return m.findAgent(func(a model.Agent) bool { return a.ID == id })
}

// FindAgentByName ищет агента по имени и фамилии без учёта регистра.
func (m *MemoryRepository) FindAgentByName(_ context.Context, name, surname string) (*model.Agent, error) {
	return m.findAgent(func(a model.Agent) bool {
		return strings.EqualFold(a.Name, name) && strings.EqualFold(a.Surname, surname)
	})
}

// AgentExists сообщает, зарегистрирован ли агент с такими именем, фамилией и филиалом.
func (m *MemoryRepository) AgentExists(_ context.Context, name, surname string, branch model.Branch) (bool, error) {
	_, err := m.findAgent(func(a model.Agent) bool {
		return strings.EqualFold(a.Name, name) && strings.EqualFold(a.Surname, surname) && a.Branch == branch
	})
	return err == nil, nil
}

// ListAgents возвращает всех агентов в порядке регистрации.
func (m *MemoryRepository) ListAgents(_ context.Context) ([]model.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Agent(nil), m.agents...), nil
}

// CreateClient сохраняет клиента и присваивает ему код.
func (m *MemoryRepository) CreateClient(_ context.Context, c model.Client) (*model.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.clients {
		if existing.IDNumber == c.IDNumber || existing.Email == c.Email {
			return nil, fmt.Errorf("%w: client %s", ErrDuplicate, c.IDNumber)
		}
	}
	c.ID = m.id()
	c.Code = model.ClientCode(int64(len(m.clients) + 1))
	m.clients = append(m.clients, c)
	return &c, nil
}

func (m *MemoryRepository) findClient(match func(model.Client) bool) (*model.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.clients {
		if match(c) {
			return &c, nil
		}
	}
	return nil, ErrClientNotFound
}

// GetClientByCode возвращает клиента по коду.
func (m *MemoryRepository) GetClientByCode(_ context.Context, code string) (*model.Client, error) {
	return m.findClient(func(c model.Client) bool { return c.Code == code })
}

// FindClientByName ищет клиента по имени и фамилии без учёта регистра.
func (m *MemoryRepository) FindClientByName(_ context.Context, name, surname string) (*model.Client, error) {
	return m.findClient(func(c model.Client) bool {
		return strings.EqualFold(c.Name, name) && strings.EqualFold(c.Surname, surname)
	})
}

// ListClients возвращает всех клиентов в порядке регистрации.
func (m *MemoryRepository) ListClients(_ context.Context) ([]model.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Client(nil), m.clients...), nil
}

// CreatePaypoint сохраняет точку удержания.
func (m *MemoryRepository) CreatePaypoint(_ context.Context, p model.Paypoint) (*model.Paypoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.paypoints {
		if existing.Code == p.Code {
			return nil, fmt.Errorf("%w: paypoint %s", ErrDuplicate, p.Code)
		}
	}
	p.ID = m.id()
	m.paypoints = append(m.paypoints, p)
	return &p, nil
}

func (m *MemoryRepository) findPaypoint(match func(model.Paypoint) bool) (*model.Paypoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.paypoints {
		if match(p) {
			return &p, nil
		}
	}
	return nil, ErrPaypointNotFound
}

// GetPaypointByID возвращает точку удержания по идентификатору.
func (m *MemoryRepository) GetPaypointByID(_ context.Context, id int64) (*model.Paypoint, error) {
	return m.findPaypoint(func(p model.Paypoint) bool { return p.ID == id })
}

// GetPaypointByCode возвращает точку удержания по коду.
func (m *MemoryRepository) GetPaypointByCode(_ context.Context, code string) (*model.Paypoint, error) {
	return m.findPaypoint(func(p model.Paypoint) bool { return p.Code == code })
}

// FindPaypointByName ищет точку удержания по названию без учёта регистра.
func (m *MemoryRepository) FindPaypointByName(_ context.Context, name string) (*model.Paypoint, error) {
	return m.findPaypoint(func(p model.Paypoint) bool { return strings.EqualFold(p.Name, name) })
}

// ListPaypoints возвращает все точки удержания.
func (m *MemoryRepository) ListPaypoints(_ context.Context) ([]model.Paypoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]model.Paypoint(nil), m.paypoints...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// CreatePolicy сохраняет полис и присваивает ему номер договора.
func (m *MemoryRepository) CreatePolicy(_ context.Context, p model.Policy) (*model.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.id()
	p.ContractID = model.PolicyCode(int64(len(m.policies) + 1))
	p.TotalReceived = decimal.Zero
	p.CreatedAt = time.Now()
	m.policies = append(m.policies, p)
	return &p, nil
}

// PolicyExists сообщает, есть ли полис с теми же условиями, сторонами и датами.
func (m *MemoryRepository) PolicyExists(_ context.Context, p model.Policy) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.policies {
		if e.Product == p.Product && e.StartDate.Equal(p.StartDate) && e.ProposalSignDate.Equal(p.ProposalSignDate) &&
			e.BeneficiaryID == p.BeneficiaryID && sameAgent(e.AgentID, p.AgentID) && e.PaypointID == p.PaypointID &&
			e.ClientID == p.ClientID && e.Frequency == p.Frequency && e.Cover == p.Cover {
			return true, nil
		}
	}
	return false, nil
}

func sameAgent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m *MemoryRepository) policyIndex(match func(model.Policy) bool) int {
	for i, p := range m.policies {
		if match(p) {
			return i
		}
	}
	return -1
}

func (m *MemoryRepository) record(p model.Policy) model.PolicyRecord {
	rec := model.PolicyRecord{Policy: p, Claims: []lifecycle.RequestStatus{}}

	for _, c := range m.clients {
		if c.ID == p.ClientID {
			rec.ClientName = c.FullName()
		}
	}
	for _, pp := range m.paypoints {
		if pp.ID == p.PaypointID {
			rec.PaypointName = pp.Name
		}
	}
	if p.AgentID != nil {
		for _, a := range m.agents {
			if a.ID == *p.AgentID {
				rec.AgentCode = a.Code
				rec.AgentName = a.FullName()
			}
		}
	}
	for _, cl := range m.claims {
		if cl.PolicyID == p.ID {
			rec.Claims = append(rec.Claims, cl.Status)
		}
	}
	for _, cr := range m.cancellations {
		if cr.PolicyID == p.ID {
			rec.Cancellation = cr.Status
		}
	}
	return rec
}

// GetPolicy возвращает полис по номеру договора вместе со связанными данными.
func (m *MemoryRepository) GetPolicy(_ context.Context, contractID string) (*model.PolicyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.policyIndex(func(p model.Policy) bool { return p.ContractID == contractID })
	if i < 0 {
		return nil, ErrPolicyNotFound
	}
	rec := m.record(m.policies[i])
	return &rec, nil
}

// ListPolicies возвращает полисы, подходящие под фильтр, в порядке номеров договоров.
func (m *MemoryRepository) ListPolicies(_ context.Context, filter model.PolicyFilter) ([]model.PolicyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []model.PolicyRecord{}
	for _, p := range m.policies {
		if filter.PaypointID != nil && p.PaypointID != *filter.PaypointID {
			continue
		}
		if filter.AgentID != nil && (p.AgentID == nil || *p.AgentID != *filter.AgentID) {
			continue
		}
		result = append(result, m.record(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ContractID < result[j].ContractID })
	return result, nil
}

func (m *MemoryRepository) sumReceiptsLocked(policyID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range m.receipts {
		if r.PolicyID == policyID {
			sum = sum.Add(r.Amount)
		}
	}
	return sum
}

// nextReceiptSeqLocked возвращает наибольший номер сохранившихся квитанций плюс один.
func (m *MemoryRepository) nextReceiptSeqLocked() int64 {
	var last int64
	for _, r := range m.receipts {
		if n, ok := model.ReceiptSeq(r.Number); ok && n > last {
			last = n
		}
	}
	return last + 1
}

// RecordPayment проводит поступление взноса по полису.
func (m *MemoryRepository) RecordPayment(_ context.Context, contractID string, amount decimal.Decimal, actorID int64) (*model.PremiumReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.policyIndex(func(p model.Policy) bool { return p.ContractID == contractID })
	if i < 0 {
		return nil, ErrPolicyNotFound
	}
	p := &m.policies[i]

	total := m.sumReceiptsLocked(p.ID).Add(amount)
	rc := model.PremiumReceipt{
		ID:            m.id(),
		Number:        model.ReceiptCode(m.nextReceiptSeqLocked()),
		PolicyID:      p.ID,
		ContractID:    p.ContractID,
		Amount:        amount,
		TotalReceived: total,
		ReceivedAt:    time.Now(),
		ReceiptedBy:   actorID,
	}
	m.receipts = append(m.receipts, rc)
	p.TotalReceived = total
	return &rc, nil
}

// ReversePayment удаляет квитанцию и пересчитывает итог по полису.
func (m *MemoryRepository) ReversePayment(_ context.Context, number string) (*model.PremiumReceipt, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, r := range m.receipts {
		if r.Number == number {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrReceiptNotFound, number)
	}
	rc := m.receipts[idx]
	m.receipts = append(m.receipts[:idx], m.receipts[idx+1:]...)

	total := m.sumReceiptsLocked(rc.PolicyID)
	if i := m.policyIndex(func(p model.Policy) bool { return p.ID == rc.PolicyID }); i >= 0 {
		m.policies[i].TotalReceived = total
	}
	return &rc, total, nil
}

// ListReceipts возвращает поступления по полису в порядке проведения.
func (m *MemoryRepository) ListReceipts(_ context.Context, contractID string) ([]model.PremiumReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []model.PremiumReceipt{}
	for _, r := range m.receipts {
		if r.ContractID == contractID {
			result = append(result, r)
		}
	}
	return result, nil
}

// SaveCancellationRequest регистрирует заявку на расторжение или открывает заново отклонённую.
func (m *MemoryRepository) SaveCancellationRequest(_ context.Context, req model.CancellationRequest) (*model.CancellationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.policyIndex(func(p model.Policy) bool { return p.ID == req.PolicyID })
	if i < 0 {
		return nil, ErrPolicyNotFound
	}
	req.ContractID = m.policies[i].ContractID
	req.Status = lifecycle.RequestRequested
	req.ApprovedBy = nil
	req.ApprovedAt = nil

	for j, existing := range m.cancellations {
		if existing.PolicyID != req.PolicyID {
			continue
		}
		if existing.Status != lifecycle.RequestRejected {
			return nil, fmt.Errorf("%w: policy %s", ErrCancellationExists, req.ContractID)
		}
		req.ID = existing.ID
		m.cancellations[j] = req
		return &req, nil
	}

	req.ID = m.id()
	m.cancellations = append(m.cancellations, req)
	return &req, nil
}

// GetCancellation возвращает заявку на расторжение по идентификатору.
func (m *MemoryRepository) GetCancellation(_ context.Context, id int64) (*model.CancellationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.cancellations {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrCancellationNotFound
}

func matchesFilter(status lifecycle.RequestStatus, requestedBy int64, filter model.RequestFilter) bool {
	if filter.Status != lifecycle.RequestNone && status != filter.Status {
		return false
	}
	return filter.RequestedBy == nil || requestedBy == *filter.RequestedBy
}

// ListCancellations возвращает заявки на расторжение по фильтру, новые первыми.
func (m *MemoryRepository) ListCancellations(_ context.Context, filter model.RequestFilter) ([]model.CancellationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []model.CancellationRequest{}
	for i := len(m.cancellations) - 1; i >= 0; i-- {
		c := m.cancellations[i]
		if matchesFilter(c.Status, c.RequestedBy, filter) {
			result = append(result, c)
		}
	}
	return result, nil
}

// ResolveCancellation фиксирует решение по заявке в состоянии REQUESTED.
func (m *MemoryRepository) ResolveCancellation(_ context.Context, id int64, res model.Resolution) (*model.CancellationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.cancellations {
		c := &m.cancellations[i]
		if c.ID != id {
			continue
		}
		if c.Status != lifecycle.RequestRequested {
			return nil, fmt.Errorf("%w: cancellation %d", ErrNotPending, id)
		}
		by, at := res.By, res.At
		c.Status = res.Status
		c.ApprovedBy = &by
		c.ApprovedAt = &at
		out := *c
		return &out, nil
	}
	return nil, ErrCancellationNotFound
}

// CreateClaim регистрирует заявление на выплату в состоянии REQUESTED.
func (m *MemoryRepository) CreateClaim(_ context.Context, c model.Claim) (*model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.policyIndex(func(p model.Policy) bool { return p.ID == c.PolicyID })
	if i < 0 {
		return nil, ErrPolicyNotFound
	}
	c.ID = m.id()
	c.ContractID = m.policies[i].ContractID
	c.Status = lifecycle.RequestRequested
	m.claims = append(m.claims, c)
	return &c, nil
}

// GetClaim возвращает заявление на выплату по идентификатору.
func (m *MemoryRepository) GetClaim(_ context.Context, id int64) (*model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.claims {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrClaimNotFound
}

// ListClaims возвращает заявления на выплату по фильтру, новые первыми.
func (m *MemoryRepository) ListClaims(_ context.Context, filter model.RequestFilter) ([]model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []model.Claim{}
	for i := len(m.claims) - 1; i >= 0; i-- {
		c := m.claims[i]
		if matchesFilter(c.Status, c.RequestedBy, filter) {
			result = append(result, c)
		}
	}
	return result, nil
}

// ResolveClaim фиксирует решение по заявлению в состоянии REQUESTED.
func (m *MemoryRepository) ResolveClaim(_ context.Context, id int64, res model.Resolution) (*model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.claims {
		c := &m.claims[i]
		if c.ID != id {
			continue
		}
		if c.Status != lifecycle.RequestRequested {
			return nil, fmt.Errorf("%w: claim %d", ErrNotPending, id)
		}
		by, at := res.By, res.At
		c.Status = res.Status
		c.ResolvedBy = &by
		c.ResolvedAt = &at
		c.RejectReason = res.Reason
		out := *c
		return &out, nil
	}
	return nil, ErrClaimNotFound
}

// UpsertCommission сохраняет начисление комиссии за месяц.
func (m *MemoryRepository) UpsertCommission(_ context.Context, rec model.CommissionRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.commissions {
		c := &m.commissions[i]
		if c.PolicyID == rec.PolicyID && c.CommissionMonth.Equal(rec.CommissionMonth) {
			c.CommissionDue = rec.CommissionDue
			c.AgentID = rec.AgentID
			return false, nil
		}
	}

	if i := m.policyIndex(func(p model.Policy) bool { return p.ID == rec.PolicyID }); i >= 0 {
		rec.ContractID = m.policies[i].ContractID
	}
	rec.ID = m.id()
	rec.CreatedAt = time.Now()
	m.commissions = append(m.commissions, rec)
	return true, nil
}

// ListCommissions возвращает начисления комиссии за месяц.
func (m *MemoryRepository) ListCommissions(_ context.Context, month time.Time) ([]model.CommissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []model.CommissionRecord{}
	for _, c := range m.commissions {
		if c.CommissionMonth.Equal(month) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ContractID < result[j].ContractID })
	return result, nil
}
