package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hostfold/renewal-engine/internal/domain/entity"
	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	"github.com/hostfold/renewal-engine/internal/domain/repository"
)

const (
	// DefaultLookahead is how far ahead of expiration renewals are opened
	DefaultLookahead = 30 * 24 * time.Hour
	// DefaultScanLimit bounds one scan pass
	DefaultScanLimit = 500
)

// ScannerService finds entitlements due for renewal and opens a pending
// ledger attempt for each cycle that has none.
type ScannerService struct {
	entitlements repository.EntitlementRepository
	ledger       repository.RenewalLedger
	notifier     Notifier
	lookahead    time.Duration
	limit        int
	logger       *zap.Logger
	now          func() time.Time
}

// NewScannerService creates a new eligibility scanner
func NewScannerService(
	entitlements repository.EntitlementRepository,
	ledger repository.RenewalLedger,
	notifier Notifier,
	lookahead time.Duration,
	limit int,
	logger *zap.Logger,
) *ScannerService {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScannerService{
		entitlements: entitlements,
		ledger:       ledger,
		notifier:     notifier,
		lookahead:    lookahead,
		limit:        limit,
		logger:       logger,
		now:          time.Now,
	}
}

// Scan returns the attempts to process: freshly opened pending attempts for
// the current window plus live attempts left behind by earlier runs. A failure
// on one entitlement is logged and skipped; the next scan cycle picks it up
// again.
func (s *ScannerService) Scan(ctx context.Context) ([]*entity.RenewalAttempt, error) {
	cutoff := s.now().Add(s.lookahead)
	due, err := s.entitlements.ListDueForRenewal(ctx, cutoff, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due entitlements: %w", err)
	}

	var pending []*entity.RenewalAttempt
	for _, ent := range due {
		// ListDueForRenewal already filters on auto_renew and payment method;
		// re-check here so a stale row read cannot open an attempt.
		if !ent.IsRenewable() {
			continue
		}

		attempt, err := s.openAttempt(ctx, ent)
		if err != nil {
			s.logger.Error("failed to open renewal attempt",
				zap.String("entitlement_id", ent.ID.String()),
				zap.String("domain", ent.DomainName),
				zap.Error(err),
			)
			continue
		}
		if attempt != nil {
			pending = append(pending, attempt)
		}
	}

	opened := len(pending)
	pending = s.sweepLiveAttempts(ctx, pending)

	s.logger.Info("renewal scan finished",
		zap.Int("due", len(due)),
		zap.Int("opened", opened),
		zap.Int("resumed", len(pending)-opened),
	)
	return pending, nil
}

// sweepLiveAttempts picks up live attempts the due scan cannot reach. Once a
// registrar extension has moved the expiration forward, the entitlement drops
// out of the due window and its cycle key changes; an attempt stranded between
// the extension and the ledger close would otherwise never be driven to
// completed. Sweep failures are logged, not fatal: the due-scan results still
// stand.
func (s *ScannerService) sweepLiveAttempts(ctx context.Context, pending []*entity.RenewalAttempt) []*entity.RenewalAttempt {
	live, err := s.ledger.ListPending(ctx, s.limit)
	if err != nil {
		s.logger.Error("failed to sweep live attempts", zap.Error(err))
		return pending
	}

	seen := make(map[uuid.UUID]bool, len(pending))
	for _, a := range pending {
		seen[a.ID] = true
	}
	for _, a := range live {
		if !seen[a.ID] {
			pending = append(pending, a)
		}
	}
	return pending
}

// openAttempt opens a pending attempt for the entitlement's current cycle.
// Returns nil when a live attempt already exists, or when the existing
// attempt is past pending (another run is already driving it).
func (s *ScannerService) openAttempt(ctx context.Context, ent *entity.Entitlement) (*entity.RenewalAttempt, error) {
	cycleKey := ent.CycleKey()

	existing, err := s.ledger.GetOpenAttempt(ctx, ent.ID, cycleKey)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open attempt: %w", err)
	}
	if existing != nil {
		if existing.State == entity.AttemptStatePending || existing.State == entity.AttemptStateCharged {
			// Resumable: hand it back so the orchestrator can finish it.
			return existing, nil
		}
		return nil, nil
	}

	attempt := entity.NewRenewalAttempt(ent.ID, cycleKey)
	if err := s.ledger.Create(ctx, attempt); err != nil {
		// A concurrent scan won the race for this cycle slot.
		if errors.Is(err, domainerrors.ErrAttemptExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	// Upcoming-charge warning; delivery failure never blocks the renewal.
	_ = s.notifier.Notify(ctx, RenewalEvent{
		EntitlementID: ent.ID,
		AccountID:     ent.AccountID,
		DomainName:    ent.DomainName,
		Outcome:       OutcomeUpcoming,
	})

	return attempt, nil
}
