package manager

import (
	"fmt"

	"github.com/swarmdeck/swarmdeck/core"
)

// ProposePlan stores a proposed plan on the session and asks the user to
// review it via a plan_approval_request message.
func (m *Manager) ProposePlan(sessionID, plan string) (*core.Message, error) {
	h, err := m.handle(sessionID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.session.Plan = plan
	h.mu.Unlock()

	return m.inbox.Write(sessionID, core.ParticipantSystem, core.ParticipantUser, core.PlanApprovalRequestBody{})
}

// ApprovePlan records the user's approval and broadcasts it to every worker
// so they can proceed. The plan text stays on the session.
func (m *Manager) ApprovePlan(sessionID string) error {
	h, err := m.handle(sessionID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	hasPlan := h.session.Plan != ""
	h.mu.Unlock()
	if !hasPlan {
		return fmt.Errorf("session %s has no pending plan: %w", sessionID, core.ErrInvalidState)
	}

	_, err = m.inbox.Broadcast(sessionID, core.ParticipantUser, core.PlanApprovedBody{})
	return err
}

// RejectPlan clears the proposed plan and broadcasts the rejection with the
// user's feedback so workers can revise.
func (m *Manager) RejectPlan(sessionID, feedback string) error {
	h, err := m.handle(sessionID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	hasPlan := h.session.Plan != ""
	h.session.Plan = ""
	h.mu.Unlock()
	if !hasPlan {
		return fmt.Errorf("session %s has no pending plan: %w", sessionID, core.ErrInvalidState)
	}

	_, err = m.inbox.Broadcast(sessionID, core.ParticipantUser, core.PlanRejectedBody{Feedback: feedback})
	return err
}
