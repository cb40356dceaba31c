// Package snapshot flattens unified customers into one BI row each: derived
// lifecycle status, latest sub-entity picks, and aggregate counts.
package snapshot

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Builder derives snapshot rows from the unified view.
type Builder struct {
	logger ectologger.Logger
}

func NewBuilder(logger ectologger.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build produces one snapshot row per unified customer. Subscription counts
// come from the caller's aggregate query rather than from the latest-pick
// logic, so a bug in one cannot skew the other.
func (b *Builder) Build(ctx context.Context, customers []models.UnifiedCustomer, stripeCounts map[string]models.SubscriptionCounts) []models.CustomerSnapshot {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Builder.Build")
	defer span.End()

	builtAt := time.Now().UTC()
	snapshots := make([]models.CustomerSnapshot, 0, len(customers))
	for _, c := range customers {
		snap := models.CustomerSnapshot{
			CustomerID:     c.CustomerID,
			Email:          c.Email,
			Name:           c.Name,
			Phone:          c.Phone,
			CustomerStatus: DeriveStatus(c.StripeSubscriptions),
			TierName:       c.TierName,
			BuiltAt:        builtAt,
		}

		if sub := LatestStripeSubscription(c.StripeSubscriptions); sub != nil {
			snap.LatestSubscriptionID = &sub.ID
			snap.LatestSubscriptionStatus = &sub.Status
			snap.LatestSubscriptionAmount = sub.Amount
			snap.LatestSubscriptionPlan = sub.PlanName
			created := sub.Created
			snap.LatestSubscriptionCreated = &created
		}

		if sub := latestAutoCareSubscription(c.AutoCareSubscriptions); sub != nil {
			snap.LatestAutoCareSubscriptionID = &sub.ID
			snap.LatestAutoCareSubscriptionStatus = &sub.Status
			snap.LatestAutoCareSubscriptionTier = sub.TierName
		}

		if sess := latestSession(c.Sessions); sess != nil {
			snap.LatestSessionID = &sess.ID
			snap.LatestSessionType = sess.ServiceType
			occurredAt := sess.OccurredAt
			snap.LatestSessionOccurredAt = &occurredAt
		}

		if v := latestVehicle(c.Vehicles); v != nil {
			snap.LatestVehicleID = &v.ID
			snap.LatestVehicleMake = v.Make
			snap.LatestVehicleModel = v.Model
		}

		counts := stripeCounts[c.CustomerID]
		snap.TotalStripeSubscriptions = counts.Total
		snap.ActiveStripeSubscriptions = counts.Active
		snap.CanceledStripeSubscriptions = counts.Canceled
		snap.PastDueStripeSubscriptions = counts.PastDue
		snap.TotalAutoCareSubscriptions = len(c.AutoCareSubscriptions)
		snap.TotalSessions = len(c.Sessions)
		snap.TotalVehicles = len(c.Vehicles)

		snapshots = append(snapshots, snap)
	}

	b.logger.WithContext(ctx).WithFields(map[string]any{"rows": len(snapshots)}).Info("Built customer snapshot")
	return snapshots
}

// DeriveStatus maps a customer's billing subscriptions to a lifecycle state.
// Any active subscription wins; otherwise the most recent subscription
// decides, past due mapping to Past Due and anything else to Churned.
func DeriveStatus(subs []models.StripeSubscription) models.CustomerStatus {
	if len(subs) == 0 {
		return models.CustomerStatusNoSubscription
	}
	var newest *models.StripeSubscription
	for i := range subs {
		s := &subs[i]
		if s.Status == models.SubscriptionStatusActive {
			return models.CustomerStatusActive
		}
		if newest == nil ||
			s.Created.After(newest.Created) ||
			(s.Created.Equal(newest.Created) && s.ID > newest.ID) {
			newest = s
		}
	}
	if newest.Status == models.SubscriptionStatusPastDue {
		return models.CustomerStatusPastDue
	}
	return models.CustomerStatusChurned
}

// LatestStripeSubscription picks the subscription surfaced as "latest":
// active subscriptions beat inactive ones, then newest creation time, then
// highest id for a stable result.
func LatestStripeSubscription(subs []models.StripeSubscription) *models.StripeSubscription {
	var best *models.StripeSubscription
	for i := range subs {
		s := &subs[i]
		if best == nil || stripeSubLess(best, s) {
			best = s
		}
	}
	return best
}

func stripeSubLess(a, b *models.StripeSubscription) bool {
	aActive := a.Status == models.SubscriptionStatusActive
	bActive := b.Status == models.SubscriptionStatusActive
	if aActive != bActive {
		return bActive
	}
	if !a.Created.Equal(b.Created) {
		return a.Created.Before(b.Created)
	}
	return a.ID < b.ID
}

func latestAutoCareSubscription(subs []models.AutoCareSubscriptionWithTier) *models.AutoCareSubscriptionWithTier {
	var best *models.AutoCareSubscriptionWithTier
	for i := range subs {
		s := &subs[i]
		if best == nil ||
			s.CreatedAt.After(best.CreatedAt) ||
			(s.CreatedAt.Equal(best.CreatedAt) && s.ID > best.ID) {
			best = s
		}
	}
	return best
}

func latestSession(sessions []models.AutoCareSession) *models.AutoCareSession {
	var best *models.AutoCareSession
	for i := range sessions {
		s := &sessions[i]
		if best == nil ||
			s.OccurredAt.After(best.OccurredAt) ||
			(s.OccurredAt.Equal(best.OccurredAt) && s.ID > best.ID) {
			best = s
		}
	}
	return best
}

func latestVehicle(vehicles []models.AutoCareVehicle) *models.AutoCareVehicle {
	var best *models.AutoCareVehicle
	for i := range vehicles {
		v := &vehicles[i]
		if best == nil ||
			v.CreatedAt.After(best.CreatedAt) ||
			(v.CreatedAt.Equal(best.CreatedAt) && v.ID > best.ID) {
			best = v
		}
	}
	return best
}
