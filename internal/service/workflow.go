package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/life-admin-system/internal/finance"
	"github.com/mmeshcher/life-admin-system/internal/lifecycle"
	"github.com/mmeshcher/life-admin-system/internal/model"
	"github.com/mmeshcher/life-admin-system/internal/money"
	"github.com/mmeshcher/life-admin-system/internal/notify"
	"github.com/mmeshcher/life-admin-system/internal/repository"
	"github.com/mmeshcher/life-admin-system/internal/valuation"
)

// RequisitionSentMessage: ответ на одобрение страхового случая.
const RequisitionSentMessage = "Payment requisition sent"

func decision(approve bool) lifecycle.RequestStatus {
	if approve {
		return lifecycle.RequestApproved
	}
	return lifecycle.RequestRejected
}

// RequestCancellation регистрирует заявку на расторжение полиса.
//
// Расторгнуть можно только полис с базовым статусом Active. Отклонённую ранее
// заявку можно подать повторно, ожидающую или одобренную нельзя.
func (s *Service) RequestCancellation(ctx context.Context, actorID int64, contractID string, effective time.Time) (*model.CancellationRequest, error) {
	rec, err := s.loadPolicy(ctx, contractID)
	if err != nil {
		return nil, err
	}

	switch rec.Cancellation {
	case lifecycle.RequestApproved:
		return nil, conflict("policy %s is already cancelled", rec.ContractID)
	case lifecycle.RequestRequested:
		return nil, conflict("policy %s already has a pending cancellation request", rec.ContractID)
	}

	snap, err := valuation.Evaluate(rec.Terms(), s.now())
	if err != nil {
		return nil, err
	}
	if base := lifecycle.Base(snap.Standing(rec.TotalReceived)); base != lifecycle.StatusActive {
		return nil, conflict("only active policies can be cancelled, policy %s is %s", rec.ContractID, base)
	}

	if effective.IsZero() {
		return nil, invalid("effective_date", "", "is required")
	}
	effective = money.Date(effective)
	if effective.Before(s.today()) {
		return nil, invalid("effective_date", effective.Format(time.DateOnly), "cannot be in the past")
	}

	req, err := s.repo.SaveCancellationRequest(ctx, model.CancellationRequest{
		PolicyID:      rec.ID,
		ContractID:    rec.ContractID,
		EffectiveDate: effective,
		RequestedBy:   actorID,
		RequestedAt:   s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrCancellationExists) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	s.logger.Info("cancellation requested",
		zap.String("contract_id", rec.ContractID),
		zap.Int64("request_id", req.ID),
		zap.Int64("actor", actorID),
	)
	return req, nil
}

// ResolveCancellation одобряет или отклоняет заявку на расторжение. Доступно только руководителю.
func (s *Service) ResolveCancellation(ctx context.Context, actorID, id int64, approve bool) (*model.CancellationRequest, error) {
	if _, err := s.requireManager(ctx, actorID); err != nil {
		return nil, err
	}

	current, err := s.repo.GetCancellation(ctx, id)
	if err != nil {
		return nil, err
	}
	target := decision(approve)
	if !lifecycle.CanResolve(current.Status, target) {
		return nil, fmt.Errorf("%w: cancellation %d is %s", ErrConflict, id, current.Status)
	}

	resolved, err := s.repo.ResolveCancellation(ctx, id, model.Resolution{Status: target, By: actorID, At: s.now()})
	if err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	s.metrics.Decision("cancellation", string(target))
	s.logger.Info("cancellation resolved",
		zap.Int64("request_id", id),
		zap.String("contract_id", resolved.ContractID),
		zap.String("status", string(target)),
		zap.Int64("actor", actorID),
	)
	return resolved, nil
}

// ListCancellations возвращает заявки на расторжение по фильтру.
func (s *Service) ListCancellations(ctx context.Context, filter model.RequestFilter) ([]model.CancellationRequest, error) {
	if filter.Status != lifecycle.RequestNone && !filter.Status.Valid() {
		return nil, invalid("status", string(filter.Status), "must be REQUESTED, APPROVED or REJECTED")
	}
	return s.repo.ListCancellations(ctx, filter)
}

// NewClaim: данные заявления на страховую выплату.
type NewClaim struct {
	ContractID          string
	ClaimantName        string
	ClaimantIDNumber    string
	BankName            string
	AccountNumber       string
	HasBurialOrder      bool
	HasDeathCertificate bool
}

// SubmitClaim регистрирует заявление на выплату по действующему полису.
// Нужен хотя бы один документ: разрешение на захоронение или свидетельство о смерти.
func (s *Service) SubmitClaim(ctx context.Context, actorID int64, in NewClaim) (*model.Claim, error) {
	claim := model.Claim{
		ClaimantName:        strings.TrimSpace(in.ClaimantName),
		ClaimantIDNumber:    strings.TrimSpace(in.ClaimantIDNumber),
		BankName:            strings.TrimSpace(in.BankName),
		AccountNumber:       strings.TrimSpace(in.AccountNumber),
		HasBurialOrder:      in.HasBurialOrder,
		HasDeathCertificate: in.HasDeathCertificate,
		RequestedBy:         actorID,
		RequestedAt:         s.now(),
	}
	switch {
	case claim.ClaimantName == "":
		return nil, invalid("claimant_name", "", "is required")
	case claim.AccountNumber == "":
		return nil, invalid("account_number", "", "is required")
	case !claim.HasBurialOrder && !claim.HasDeathCertificate:
		return nil, invalid("documents", "", "burial order or death certificate is required")
	}

	rec, err := s.loadPolicy(ctx, in.ContractID)
	if err != nil {
		return nil, err
	}
	for _, c := range rec.Claims {
		if c.Pending() {
			return nil, conflict("policy %s already has a pending claim", rec.ContractID)
		}
	}

	view, err := evaluate(*rec, s.now())
	if err != nil {
		return nil, err
	}
	if view.Status != lifecycle.StatusActive {
		return nil, conflict("claims require an active policy, policy %s is %s", rec.ContractID, view.Status)
	}

	claim.PolicyID = rec.ID
	claim.ContractID = rec.ContractID
	created, err := s.repo.CreateClaim(ctx, claim)
	if err != nil {
		return nil, err
	}

	s.logger.Info("claim submitted",
		zap.String("contract_id", rec.ContractID),
		zap.Int64("claim_id", created.ID),
		zap.Int64("actor", actorID),
	)
	return created, nil
}

// ResolveClaim одобряет или отклоняет заявление на выплату. Доступно только руководителю.
// При одобрении в финансовую систему отправляется платёжное требование, а финансовому
// отделу уведомление; ошибки отправки не отменяют решения.
func (s *Service) ResolveClaim(ctx context.Context, actorID, id int64, approve bool, reason string) (*model.Claim, error) {
	if _, err := s.requireManager(ctx, actorID); err != nil {
		return nil, err
	}

	current, err := s.repo.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	target := decision(approve)
	if !lifecycle.CanResolve(current.Status, target) {
		return nil, fmt.Errorf("%w: claim %d is %s", ErrConflict, id, current.Status)
	}

	reason = strings.TrimSpace(reason)
	if approve {
		reason = ""
	}

	resolved, err := s.repo.ResolveClaim(ctx, id, model.Resolution{Status: target, By: actorID, At: s.now(), Reason: reason})
	if err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	s.metrics.Decision("claim", string(target))
	s.logger.Info("claim resolved",
		zap.Int64("claim_id", id),
		zap.String("contract_id", resolved.ContractID),
		zap.String("status", string(target)),
		zap.Int64("actor", actorID),
	)

	if approve {
		s.notifyFinance(ctx, resolved)
	}
	return resolved, nil
}

func (s *Service) notifyFinance(ctx context.Context, claim *model.Claim) {
	rec, err := s.repo.GetPolicy(ctx, claim.ContractID)
	if err != nil {
		s.logger.Error("load policy for requisition", zap.Error(err), zap.Int64("claim_id", claim.ID))
		return
	}

	req := finance.Requisition{
		ClaimID:          claim.ID,
		ContractID:       claim.ContractID,
		ClaimantName:     claim.ClaimantName,
		ClaimantIDNumber: claim.ClaimantIDNumber,
		BankName:         claim.BankName,
		AccountNumber:    claim.AccountNumber,
		Amount:           decimal.NewFromInt(int64(rec.Cover)),
		ApprovedAt:       s.now(),
	}
	if claim.ResolvedAt != nil {
		req.ApprovedAt = *claim.ResolvedAt
	}

	if s.finance != nil {
		if err := s.finance.SendRequisition(ctx, req); err != nil {
			s.logger.Error("send payment requisition", zap.Error(err), zap.Int64("claim_id", claim.ID))
		}
	}

	if s.financeEmail == "" {
		return
	}
	msg := notify.Message{
		To:      []string{s.financeEmail},
		Subject: fmt.Sprintf("Payment Requisition - %s", claim.ContractID),
		Body: fmt.Sprintf(
			"Claim %d on policy %s has been approved.\n\nClaimant: %s\nID number: %s\nBank: %s\nAccount: %s\nAmount: %s\n",
			claim.ID, claim.ContractID, claim.ClaimantName, claim.ClaimantIDNumber,
			claim.BankName, claim.AccountNumber, req.Amount.StringFixed(2),
		),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("send finance notification", zap.Error(err), zap.Int64("claim_id", claim.ID))
	}
}

// ListClaims возвращает заявления на выплату по фильтру.
func (s *Service) ListClaims(ctx context.Context, filter model.RequestFilter) ([]model.Claim, error) {
	if filter.Status != lifecycle.RequestNone && !filter.Status.Valid() {
		return nil, invalid("status", string(filter.Status), "must be REQUESTED, APPROVED or REJECTED")
	}
	return s.repo.ListClaims(ctx, filter)
}
