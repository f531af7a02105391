package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giftshift/giftshift-backend/internal/metrics"
	"github.com/giftshift/giftshift-backend/internal/models"
	repo "github.com/giftshift/giftshift-backend/internal/repository"
)

// SweepParams selects the candidate set. The cron sweep and the recovery
// sweep are the same loop with different parameters; there is exactly one
// reconciliation loop in the codebase.
type SweepParams struct {
	Trigger      string        // metrics label: cron|recovery
	Window       time.Duration // how far back to enumerate candidates
	Limit        int           // per record type
	ReclaimStale bool          // return stuck processing rows to the queue first
	StaleAfter   time.Duration
}

type Summary struct {
	DepositsChecked      int      `json:"deposits_checked"`
	DepositsCompleted    int      `json:"deposits_completed"`
	DepositsFailed       int      `json:"deposits_failed"`
	GiftCardsChecked     int      `json:"gift_cards_checked"`
	GiftCardsCompleted   int      `json:"gift_cards_completed"`
	RedemptionsChecked   int      `json:"redemptions_checked"`
	RedemptionsCompleted int      `json:"redemptions_completed"`
	StillPending         int      `json:"still_pending"`
	Reclaimed            []string `json:"reclaimed,omitempty"`
	Actions              []string `json:"actions,omitempty"`
	Errors               []string `json:"errors"`
}

// Sweeper enumerates non-terminal records and drives each through
// probe -> claim -> apply. One record's failure is recorded in the summary and
// never aborts the rest of the batch; exclusivity lives entirely in the claim,
// so any number of sweeps may run concurrently with user confirms.
type Sweeper struct {
	prober      Prober
	deposits    repo.Deposits
	cards       repo.GiftCards
	redemptions repo.Redemptions
	applier     *SettlementService
}

func NewSweeper(prober Prober, deps repo.Deposits, cards repo.GiftCards, reds repo.Redemptions, applier *SettlementService) *Sweeper {
	return &Sweeper{prober: prober, deposits: deps, cards: cards, redemptions: reds, applier: applier}
}

func (s *Sweeper) Run(ctx context.Context, p SweepParams) Summary {
	metrics.SweepsTotal.WithLabelValues(p.Trigger).Inc()
	sum := Summary{Errors: []string{}}
	since := time.Now().Add(-p.Window)

	if p.ReclaimStale {
		cutoff := time.Now().Add(-p.StaleAfter)
		for _, reclaim := range []struct {
			name string
			fn   func(context.Context, time.Time) ([]string, error)
		}{
			{"deposits", s.deposits.ReclaimStale},
			{"gift_cards", s.cards.ReclaimStale},
			{"redemptions", s.redemptions.ReclaimStale},
		} {
			ids, err := reclaim.fn(ctx, cutoff)
			if err != nil {
				sum.Errors = append(sum.Errors, fmt.Sprintf("reclaim %s: %v", reclaim.name, err))
				continue
			}
			for _, id := range ids {
				sum.Reclaimed = append(sum.Reclaimed, reclaim.name+":"+id)
				sum.Actions = append(sum.Actions, fmt.Sprintf("reclaimed stale %s %s", reclaim.name, id))
			}
		}
	}

	s.sweepDeposits(ctx, since, p.Limit, &sum)
	s.sweepGiftCards(ctx, since, p.Limit, &sum)
	s.sweepRedemptions(ctx, since, p.Limit, &sum)

	slog.Info("sweep finished", "trigger", p.Trigger,
		"deposits_checked", sum.DepositsChecked, "deposits_completed", sum.DepositsCompleted,
		"gift_cards_checked", sum.GiftCardsChecked, "redemptions_checked", sum.RedemptionsChecked,
		"errors", len(sum.Errors))
	return sum
}

func (s *Sweeper) sweepDeposits(ctx context.Context, since time.Time, limit int, sum *Summary) {
	deps, err := s.deposits.ListUnsettled(ctx, since, limit)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("list deposits: %v", err))
		return
	}
	for _, dep := range deps {
		sum.DepositsChecked++
		metrics.SweepRecordsChecked.WithLabelValues("deposit").Inc()

		order, err := s.prober.GetOrder(ctx, dep.OrderID)
		if err != nil {
			// Transient or not, this record stays as-is; record and move on.
			sum.Errors = append(sum.Errors, fmt.Sprintf("deposit %s: probe: %v", dep.ID, err))
			continue
		}
		if order.Status.IsPending() {
			sum.StillPending++
			continue
		}

		locked, err := s.deposits.Claim(ctx, dep.ID, models.DepositPending, models.DepositProcessing)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("deposit %s: claim: %v", dep.ID, err))
			continue
		}
		if !locked {
			sum.Actions = append(sum.Actions, fmt.Sprintf("deposit %s claimed elsewhere, skipped", dep.ID))
			continue
		}

		if err := s.applier.ApplyDeposit(ctx, dep, order); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("deposit %s: apply: %v", dep.ID, err))
			continue
		}
		if order.Status.IsComplete() {
			sum.DepositsCompleted++
			sum.Actions = append(sum.Actions, fmt.Sprintf("deposit %s settled", dep.ID))
		} else {
			sum.DepositsFailed++
			sum.Actions = append(sum.Actions, fmt.Sprintf("deposit %s marked %s", dep.ID, order.Status))
		}
	}
}

func (s *Sweeper) sweepGiftCards(ctx context.Context, since time.Time, limit int, sum *Summary) {
	cards, err := s.cards.ListUnsettled(ctx, since, limit)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("list gift cards: %v", err))
		return
	}
	for _, card := range cards {
		sum.GiftCardsChecked++
		metrics.SweepRecordsChecked.WithLabelValues("gift_card").Inc()

		if card.OrderID == nil {
			continue
		}
		order, err := s.prober.GetOrder(ctx, *card.OrderID)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("gift card %s: probe: %v", card.ID, err))
			continue
		}
		if order.Status.IsPending() {
			sum.StillPending++
			continue
		}

		locked, err := s.cards.Claim(ctx, card.ID, models.CardPending, models.CardProcessing)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("gift card %s: claim: %v", card.ID, err))
			continue
		}
		if !locked {
			sum.Actions = append(sum.Actions, fmt.Sprintf("gift card %s claimed elsewhere, skipped", card.ID))
			continue
		}

		if err := s.applier.ApplyGiftCard(ctx, card, order); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("gift card %s: apply: %v", card.ID, err))
			continue
		}
		if order.Status.IsComplete() {
			sum.GiftCardsCompleted++
			sum.Actions = append(sum.Actions, fmt.Sprintf("gift card %s activated", card.ID))
		} else {
			sum.Actions = append(sum.Actions, fmt.Sprintf("gift card %s cancelled (%s)", card.ID, order.Status))
		}
	}
}

func (s *Sweeper) sweepRedemptions(ctx context.Context, since time.Time, limit int, sum *Summary) {
	reds, err := s.redemptions.ListUnsettled(ctx, since, limit)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("list redemptions: %v", err))
		return
	}
	for _, red := range reds {
		sum.RedemptionsChecked++
		metrics.SweepRecordsChecked.WithLabelValues("redemption").Inc()

		order, err := s.prober.GetOrder(ctx, red.OrderID)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("redemption %s: probe: %v", red.ID, err))
			continue
		}
		if order.Status.IsPending() {
			sum.StillPending++
			continue
		}

		locked, err := s.redemptions.Claim(ctx, red.ID, models.RedemptionQuoted, models.RedemptionProcessing)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("redemption %s: claim: %v", red.ID, err))
			continue
		}
		if !locked {
			sum.Actions = append(sum.Actions, fmt.Sprintf("redemption %s claimed elsewhere, skipped", red.ID))
			continue
		}

		if err := s.applier.ApplyRedemption(ctx, red, order); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("redemption %s: apply: %v", red.ID, err))
			continue
		}
		if order.Status.IsComplete() {
			sum.RedemptionsCompleted++
			sum.Actions = append(sum.Actions, fmt.Sprintf("redemption %s completed", red.ID))
		} else {
			sum.Actions = append(sum.Actions, fmt.Sprintf("redemption %s failed (%s)", red.ID, order.Status))
		}
	}
}
