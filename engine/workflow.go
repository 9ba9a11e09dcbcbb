/*
workflow.go - Risk decision state machine

PURPOSE:
  The sole writer of a payer's RiskStatus and ApprovedQuota. A payer is
  created pending with quota zero, gets exactly one decision per study
  cycle, and can only be re-opened by an explicit re-study action. A direct
  rejected->approved (or approved->rejected) flip is not permitted: it must
  pass through pending, forcing a fresh quota decision every time.

TRANSITIONS:
  pending  -> approved   (requires supplied quota > 0)
  pending  -> rejected   (quota forced to 0, even if a stale value exists)
  approved -> pending    (re-study, administrative only)
  rejected -> pending    (re-study, administrative only)

CONCURRENCY:
  RiskService applies decisions inside the same per-payer critical section
  the allocator uses, so a quota reduction cannot race an in-flight
  allocation that read the old, larger quota.

SEE ALSO:
  - submit.go: The other user of the per-payer critical section
*/
package engine

import (
	"context"
	"fmt"
)

// =============================================================================
// DECISION - Administrative input to the state machine
// =============================================================================

type DecisionAction string

const (
	DecisionApprove DecisionAction = "approve"
	DecisionReject  DecisionAction = "reject"
)

// Decision is the opaque administrative input. The engine does not score
// creditworthiness; it only enforces the transition rules.
type Decision struct {
	Action        DecisionAction
	ApprovedQuota Money // required > 0 when approving, ignored when rejecting
}

// =============================================================================
// PURE TRANSITIONS
// =============================================================================

// ApplyDecision mutates p per the state machine. Only pending payers accept
// a decision.
func ApplyDecision(p *Payer, d Decision) error {
	if p.RiskStatus != RiskPending {
		return fmt.Errorf("%w: cannot decide %s payer, re-study first", ErrInvalidTransition, p.RiskStatus)
	}

	switch d.Action {
	case DecisionApprove:
		if !d.ApprovedQuota.IsPositive() {
			return &ValidationError{Field: "approved_quota", Reason: "must be greater than zero to approve"}
		}
		p.RiskStatus = RiskApproved
		p.ApprovedQuota = d.ApprovedQuota
	case DecisionReject:
		p.RiskStatus = RiskRejected
		p.ApprovedQuota = Money{}
	default:
		return &ValidationError{Field: "action", Reason: "must be approve or reject"}
	}
	return nil
}

// Restudy returns a decided payer to pending for a fresh quota decision.
// The stored quota is cleared; a re-approval must supply a new one.
func Restudy(p *Payer) error {
	if p.RiskStatus != RiskApproved && p.RiskStatus != RiskRejected {
		return fmt.Errorf("%w: payer is already %s", ErrInvalidTransition, p.RiskStatus)
	}
	p.RiskStatus = RiskPending
	p.ApprovedQuota = Money{}
	return nil
}

// =============================================================================
// RISK SERVICE - Decisions applied under the per-payer lock
// =============================================================================

// RiskService persists workflow transitions. Writes go through the payer's
// critical section so they serialize with in-flight allocations.
type RiskService struct {
	Store LockingStore
}

func NewRiskService(store LockingStore) *RiskService {
	return &RiskService{Store: store}
}

// Decide applies an approve/reject decision to a pending payer.
func (rs *RiskService) Decide(ctx context.Context, payerID PayerID, d Decision) (Payer, error) {
	return rs.update(ctx, payerID, func(p *Payer) error {
		return ApplyDecision(p, d)
	})
}

// Restudy re-opens a decided payer to pending.
func (rs *RiskService) Restudy(ctx context.Context, payerID PayerID) (Payer, error) {
	return rs.update(ctx, payerID, Restudy)
}

func (rs *RiskService) update(ctx context.Context, payerID PayerID, transition func(*Payer) error) (Payer, error) {
	var updated Payer
	err := rs.Store.WithPayerLock(ctx, payerID, func(s Store) error {
		p, err := s.GetPayer(ctx, payerID)
		if err != nil {
			return err
		}
		if err := transition(p); err != nil {
			return err
		}
		if err := s.UpdatePayer(ctx, *p); err != nil {
			return &PersistenceError{Op: "update payer", Err: err}
		}
		updated = *p
		return nil
	})
	if err != nil {
		return Payer{}, err
	}
	return updated, nil
}
