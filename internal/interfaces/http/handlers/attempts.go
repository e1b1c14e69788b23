package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hostfold/renewal-engine/internal/application/command"
	"github.com/hostfold/renewal-engine/internal/application/query"
	"github.com/hostfold/renewal-engine/internal/domain/entity"
	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	"github.com/hostfold/renewal-engine/internal/interfaces/http/response"
)

// AttemptsHandler serves the reconciliation and renewal-history endpoints
type AttemptsHandler struct {
	reconciliationQuery *query.ListReconciliationQuery
	attemptsQuery       *query.ListAttemptsQuery
	resolveCmd          *command.ResolveAttemptCommand
}

// NewAttemptsHandler creates a new attempts handler
func NewAttemptsHandler(
	reconciliationQuery *query.ListReconciliationQuery,
	attemptsQuery *query.ListAttemptsQuery,
	resolveCmd *command.ResolveAttemptCommand,
) *AttemptsHandler {
	return &AttemptsHandler{
		reconciliationQuery: reconciliationQuery,
		attemptsQuery:       attemptsQuery,
		resolveCmd:          resolveCmd,
	}
}

// AttemptView is the API representation of a ledger row
type AttemptView struct {
	ID                  string     `json:"id"`
	EntitlementID       string     `json:"entitlement_id"`
	CycleKey            string     `json:"cycle_key"`
	State               string     `json:"state"`
	TransactionID       *string    `json:"transaction_id,omitempty"`
	ConfirmationID      *string    `json:"confirmation_id,omitempty"`
	FailureReason       *string    `json:"failure_reason,omitempty"`
	NeedsReconciliation bool       `json:"needs_reconciliation"`
	ChargedAt           *time.Time `json:"charged_at,omitempty"`
	FailedAt            *time.Time `json:"failed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func toView(a *entity.RenewalAttempt) AttemptView {
	v := AttemptView{
		ID:                  a.ID.String(),
		EntitlementID:       a.EntitlementID.String(),
		CycleKey:            a.CycleKey,
		State:               string(a.State),
		TransactionID:       a.TransactionID,
		ConfirmationID:      a.ConfirmationID,
		NeedsReconciliation: a.NeedsReconciliation,
		ChargedAt:           a.ChargedAt,
		FailedAt:            a.FailedAt,
		CreatedAt:           a.CreatedAt,
	}
	if a.FailureReason != nil {
		reason := string(*a.FailureReason)
		v.FailureReason = &reason
	}
	return v
}

// ListReconciliation handles GET /api/v1/attempts/reconciliation
func (h *AttemptsHandler) ListReconciliation(c *gin.Context) {
	attempts, err := h.reconciliationQuery.Execute(c.Request.Context(), 50)
	if err != nil {
		response.InternalError(c, "failed to list attempts")
		return
	}

	views := make([]AttemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, toView(a))
	}
	response.OK(c, views)
}

// ListByEntitlement handles GET /api/v1/entitlements/:id/attempts
func (h *AttemptsHandler) ListByEntitlement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid entitlement id")
		return
	}

	attempts, err := h.attemptsQuery.Execute(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, "failed to list attempts")
		return
	}

	views := make([]AttemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, toView(a))
	}
	response.OK(c, views)
}

// Resolve handles POST /api/v1/attempts/:id/resolve
func (h *AttemptsHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attempt id")
		return
	}

	attempt, err := h.resolveCmd.Execute(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrAttemptNotFound):
			response.NotFound(c, "attempt not found")
		case errors.Is(err, command.ErrNotReconcilable):
			response.Conflict(c, "attempt is not awaiting reconciliation")
		default:
			response.InternalError(c, "failed to resolve attempt")
		}
		return
	}
	response.OK(c, toView(attempt))
}
