package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/life-admin-system/internal/finance"
	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/notify"
	"github.com/mmeshcher/life-admin-system/internal/repository"
	"github.com/mmeshcher/life-admin-system/internal/statement"
	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

var fixedNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type stubMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

type stubSender struct {
	reqs []finance.Requisition
	err  error
}

func (s *stubSender) SendRequisition(_ context.Context, req finance.Requisition) error {
	s.reqs = append(s.reqs, req)
	return s.err
}

type fixture struct {
	svc      *Service
	repo     *repository.MemoryRepository
	mailer   *stubMailer
	sender   *stubSender
	operator int64
	manager  int64
	agent    *model.Agent
	client   *model.Client
	paypoint *model.Paypoint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		repo:   repository.NewMemoryRepository(),
		mailer: &stubMailer{},
		sender: &stubSender{},
	}
	f.svc = NewService(f.repo, nil,
		WithClock(func() time.Time { return fixedNow }),
		WithMailer(f.mailer),
		WithFinance(f.sender, "finance@example.com"),
		WithCompany("Test Life"),
	)

	var err error
	f.operator, err = f.svc.RegisterUser(ctx, "operator", "secret1", model.RoleOperator)
	require.NoError(t, err)
	f.manager, err = f.svc.RegisterUser(ctx, "manager", "secret2", model.RoleManager)
	require.NoError(t, err)

	f.agent, err = f.svc.CreateAgent(ctx, NewAgent{
		Name: "Tendai", Surname: "Moyo", Branch: model.BranchHarare,
		Email: "tendai@example.com", DateJoining: date(2020, time.January, 1),
	})
	require.NoError(t, err)

	f.client, err = f.svc.CreateClient(ctx, NewClient{
		Name: "Rudo", Surname: "Chikore", IDNumber: "63-123456A12", DOB: date(1980, time.May, 2),
		Email: "rudo@example.com", Phone: "+263771234567", City: "Harare",
	})
	require.NoError(t, err)

	f.paypoint, err = f.svc.CreatePaypoint(ctx, NewPaypoint{Code: "ppsZesa", Name: "ZESA", DateJoined: date(2019, time.March, 1)})
	require.NoError(t, err)
	return f
}

// policy оформляет ежемесячный полис с покрытием 1000, действующий с марта 2024.
func (f *fixture) policy(t *testing.T) *model.Policy {
	t.Helper()
	p, err := f.svc.CreatePolicy(context.Background(), f.operator, NewPolicy{
		Product:          valuation.ProductFuneral,
		Cover:            valuation.CoverStandard,
		Frequency:        valuation.FrequencyMonthly,
		ProposalSignDate: date(2024, time.February, 10),
		StartDate:        date(2024, time.March, 20),
		BeneficiaryName:  "Tariro Chikore",
		BeneficiaryID:    "63-654321B12",
		AgentCode:        f.agent.Code,
		PaypointCode:     f.paypoint.Code,
		ClientCode:       f.client.Code,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) activePolicy(t *testing.T) *model.Policy {
	t.Helper()
	p := f.policy(t)
	_, err := f.svc.RecordPayment(context.Background(), f.operator, p.ContractID, decimal.RequireFromString("3.00"))
	require.NoError(t, err)
	return p
}

func TestRegisterAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.AuthenticateUser(ctx, "operator", "secret1")
	require.NoError(t, err)
	assert.Equal(t, f.operator, id)

	_, err = f.svc.AuthenticateUser(ctx, "operator", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.AuthenticateUser(ctx, "ghost", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.RegisterUser(ctx, "operator", "another", "")
	assert.ErrorIs(t, err, repository.ErrUserExists)

	_, err = f.svc.RegisterUser(ctx, "short", "123", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreatePolicyNormalizesStartDate(t *testing.T) {
	f := newFixture(t)
	p := f.policy(t)

	assert.Equal(t, "P00001", p.ContractID)
	assert.Equal(t, date(2024, time.March, 1), p.StartDate)
	assert.Equal(t, "300", p.ProductCode)

	_, err := f.svc.CreatePolicy(context.Background(), f.operator, NewPolicy{
		Product:          valuation.ProductFuneral,
		Cover:            valuation.CoverStandard,
		Frequency:        valuation.FrequencyMonthly,
		ProposalSignDate: date(2024, time.March, 10),
		StartDate:        date(2024, time.March, 1),
		PaypointCode:     f.paypoint.Code,
		ClientCode:       f.client.Code,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLedgerRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.policy(t)

	view, err := f.svc.GetPolicy(ctx, p.ContractID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusNTU, view.Status)

	r1, err := f.svc.RecordPayment(ctx, f.operator, strings.ToLower(p.ContractID), decimal.RequireFromString("1.004"))
	require.NoError(t, err)
	assert.Equal(t, "1", r1.Amount.String())

	r2, err := f.svc.RecordPayment(ctx, f.operator, p.ContractID, decimal.RequireFromString("2"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3").Equal(r2.TotalReceived))

	view, err = f.svc.GetPolicy(ctx, p.ContractID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusActive, view.Status)
	assert.True(t, view.Standing.Arrears.IsZero())

	_, total, err := f.svc.ReversePayment(ctx, f.manager, r2.Number)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1").Equal(total))

	receipts, err := f.svc.ListReceipts(ctx, p.ContractID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, r1.Number, receipts[0].Number)

	_, _, err = f.svc.ReversePayment(ctx, f.manager, r2.Number)
	assert.ErrorIs(t, err, repository.ErrReceiptNotFound)
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	p := f.policy(t)

	for _, raw := range []string{"0", "-5", "0.004"} {
		_, err := f.svc.RecordPayment(context.Background(), f.operator, p.ContractID, decimal.RequireFromString(raw))
		var amountErr *InvalidAmountError
		if !errors.As(err, &amountErr) {
			t.Fatalf("amount %s: expected InvalidAmountError, got %v", raw, err)
		}
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err := f.svc.RecordPayment(context.Background(), f.operator, "P99999", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, repository.ErrPolicyNotFound)
}

func TestImportPoliciesReportsBadRows(t *testing.T) {
	f := newFixture(t)

	csv := strings.Join([]string{
		"product,start_date,proposal_sign_date,beneficiary_name,beneficiary_id,agent,paypoint,client,frequency,cover",
		"FUNERAL,2024-03-01,2024-02-10,Ben One,63-000001A11,Tendai Moyo,ZESA,Rudo Chikore,monthly,1000",
		"FUNERAL,2024-03-01,2024-02-10,Ben Two,63-000002A11,Nobody Here,ZESA,Rudo Chikore,monthly,1000",
		"AFFINITY,2024-04-01,2024-02-10,Ben Three,63-000003A11,Tendai Moyo,ZESA,Rudo Chikore,Q,500",
		"FUNERAL,2024-05-01,2024-02-10,Ben Four,63-000004A11,Tendai Moyo,zesa,Rudo Chikore,Y,2000",
		"FUNERAL,2024-03-01,2024-02-10,Ben Five,63-000005A11,tendai moyo,ZESA,Rudo Chikore,H,1000",
	}, "\n")

	res, err := f.svc.ImportPolicies(context.Background(), f.operator, "policies.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "Row 3:"), res.Errors[0])
	assert.Contains(t, res.Errors[0], "Agent 'Nobody Here' not found")

	again, err := f.svc.ImportPolicies(context.Background(), f.operator, "policies.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	require.Len(t, again.Errors, 5)
	assert.Equal(t, "Row 2: Duplicate policy in database", again.Errors[0])
}

func TestImportRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ImportAgents(context.Background(), "agents.txt", strings.NewReader("a,b,c,d"))
	assert.Error(t, err)
}

func TestImportAgentsSkipsMalformedRow(t *testing.T) {
	f := newFixture(t)

	agents := "name,surname,branch,date_joining\n" +
		"Carl,One,HARARE,2021-01-01\n" +
		"Carl,Two,HARARE,2021-01-01\n" +
		"Car\"l,Three,HARARE,2021-01-01\n" +
		"Carl,Four,MUTARE,2021-01-01\n" +
		"Carl,Five,BULAWAYO,2021-01-01\n"
	res, err := f.svc.ImportAgents(context.Background(), "agents.csv", strings.NewReader(agents))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)
	assert.Equal(t, []string{"Row 4: malformed row"}, res.Errors)

	list, err := f.svc.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 5)
}

func TestImportAgentsAndReceipts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.policy(t)

	agents := "name,surname,branch,date_joining\n" +
		"Farai,Ncube,Bulawayo,2021-06-01\n" +
		"Farai,Ncube,Bulawayo,2021-06-01\n" +
		"Tendai,Moyo,harare,2020-01-01\n" +
		"Short,Row\n"
	res, err := f.svc.ImportAgents(ctx, "agents.csv", strings.NewReader(agents))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, []string{
		"Row 3: Duplicate agent in file",
		"Row 4: Duplicate agent in database",
		"Row 5: Not enough columns",
	}, res.Errors)

	receipts := "contract_id,amount\n" + p.ContractID + ",2.00\nP04040,1.00\n" + p.ContractID + ",abc\n"
	res, err = f.svc.ImportReceipts(ctx, f.operator, "receipts.csv", strings.NewReader(receipts))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "Row 3: Policy 'P04040' not found", res.Errors[0])
	assert.True(t, strings.HasPrefix(res.Errors[1], "Row 4: amount"))
}

func TestCancellationWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := f.policy(t)
	_, err := f.svc.RequestCancellation(ctx, f.operator, inactive.ContractID, date(2024, time.July, 1))
	assert.ErrorIs(t, err, ErrConflict)

	p := f.activePolicy(t)
	_, err = f.svc.RequestCancellation(ctx, f.operator, p.ContractID, date(2024, time.June, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	req, err := f.svc.RequestCancellation(ctx, f.operator, p.ContractID, date(2024, time.July, 1))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.RequestRequested, req.Status)

	_, err = f.svc.RequestCancellation(ctx, f.operator, p.ContractID, date(2024, time.July, 1))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.ResolveCancellation(ctx, f.operator, req.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	rejected, err := f.svc.ResolveCancellation(ctx, f.manager, req.ID, false)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.RequestRejected, rejected.Status)

	_, err = f.svc.ResolveCancellation(ctx, f.manager, req.ID, true)
	assert.ErrorIs(t, err, ErrConflict)

	reopened, err := f.svc.RequestCancellation(ctx, f.operator, p.ContractID, date(2024, time.August, 1))
	require.NoError(t, err)
	assert.Equal(t, req.ID, reopened.ID)
	assert.Equal(t, lifecycle.RequestRequested, reopened.Status)

	_, err = f.svc.ResolveCancellation(ctx, f.manager, reopened.ID, true)
	require.NoError(t, err)

	view, err := f.svc.GetPolicy(ctx, p.ContractID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCancelled, view.Status)

	pending, err := f.svc.ListCancellations(ctx, model.RequestFilter{Status: lifecycle.RequestRequested})
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.ListCancellations(ctx, model.RequestFilter{Status: "DONE"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClaimWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.activePolicy(t)

	in := NewClaim{
		ContractID:       p.ContractID,
		ClaimantName:     "Tariro Chikore",
		ClaimantIDNumber: "63-654321B12",
		BankName:         "CBZ",
		AccountNumber:    "0012345678",
	}
	_, err := f.svc.SubmitClaim(ctx, f.operator, in)
	assert.ErrorIs(t, err, ErrInvalidInput)

	in.HasDeathCertificate = true
	claim, err := f.svc.SubmitClaim(ctx, f.operator, in)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.RequestRequested, claim.Status)

	_, err = f.svc.SubmitClaim(ctx, f.operator, in)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.ResolveClaim(ctx, f.operator, claim.ID, true, "")
	assert.ErrorIs(t, err, ErrForbidden)

	approved, err := f.svc.ResolveClaim(ctx, f.manager, claim.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.RequestApproved, approved.Status)

	require.Len(t, f.sender.reqs, 1)
	assert.Equal(t, p.ContractID, f.sender.reqs[0].ContractID)
	assert.True(t, decimal.NewFromInt(1000).Equal(f.sender.reqs[0].Amount))

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, []string{"finance@example.com"}, f.mailer.sent[0].To)
	assert.Equal(t, "Payment Requisition - "+p.ContractID, f.mailer.sent[0].Subject)

	_, err = f.svc.ResolveClaim(ctx, f.manager, claim.ID, false, "late")
	assert.ErrorIs(t, err, ErrConflict)

	view, err := f.svc.GetPolicy(ctx, p.ContractID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusDeath, view.Status)
}

func TestClaimApprovalSurvivesFinanceFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.err = errors.New("finance down")
	f.mailer.err = errors.New("smtp down")
	p := f.activePolicy(t)

	claim, err := f.svc.SubmitClaim(ctx, f.operator, NewClaim{
		ContractID: p.ContractID, ClaimantName: "Tariro", AccountNumber: "1", HasBurialOrder: true,
	})
	require.NoError(t, err)

	approved, err := f.svc.ResolveClaim(ctx, f.manager, claim.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.RequestApproved, approved.Status)
}

func TestGenerateCommissionsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activePolicy(t)
	f.policy(t)

	month := date(2024, time.June, 1)
	run, err := f.svc.GenerateCommissions(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 0, run.Updated)
	assert.Equal(t, 1, run.Skipped)

	run, err = f.svc.GenerateCommissions(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Created)
	assert.Equal(t, 1, run.Updated)

	records, err := f.svc.ListCommissions(ctx, month)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0.1", records[0].CommissionDue.String())
}

func TestBillingStatement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	active := f.activePolicy(t)
	f.policy(t)

	st, err := f.svc.BillingStatement(ctx, "ZESA", date(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, statement.KindBilling, st.Kind)
	assert.Equal(t, "ppszesa", st.Subject)
	require.Len(t, st.Rows, 1)
	assert.Equal(t, active.ContractID, st.Rows[0].ContractID)
	assert.Equal(t, lifecycle.StatusActive, st.Rows[0].Status)
	assert.True(t, decimal.NewFromInt(1).Equal(st.TotalPremium))

	st, err = f.svc.BillingStatement(ctx, "ppszesa", date(2024, time.March, 1))
	require.NoError(t, err)
	require.Len(t, st.Rows, 2)
	assert.Equal(t, lifecycle.StatusProposalAccepted, st.Rows[1].Status)
}

func TestEmailCommissionStatement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activePolicy(t)

	st, err := f.svc.EmailCommissionStatement(ctx, f.agent.Code, date(2024, time.June, 1), true)
	require.NoError(t, err)
	assert.Len(t, st.Rows, 1)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, []string{"tendai@example.com"}, msg.To)
	assert.Equal(t, "Commission Statement - "+st.Label(), msg.Subject)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.True(t, strings.HasPrefix(msg.Attachments[0].Filename, "commission_"+f.agent.Code))
	assert.NotEmpty(t, msg.Attachments[0].Data)

	records, err := f.svc.ListCommissions(ctx, date(2024, time.June, 1))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	noEmail, err := f.svc.CreateAgent(ctx, NewAgent{Name: "Kuda", Surname: "Banda", Branch: model.BranchMutare, DateJoining: date(2022, time.May, 1)})
	require.NoError(t, err)
	_, err = f.svc.EmailCommissionStatement(ctx, noEmail.Code, date(2024, time.June, 1), false)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
