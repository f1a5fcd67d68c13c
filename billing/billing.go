// Package billing decides what an owner's subscription allows.
package billing

import (
	"time"

	"github.com/mbolis/leadform/model"
)

// Limits caps usage. Zero means unlimited.
type Limits struct {
	Forms               int `json:"forms"`
	SubmissionsPerMonth int `json:"submissions_per_month"`
}

var (
	FreeLimits    = Limits{Forms: 3, SubmissionsPerMonth: 100}
	PremiumLimits = Limits{}
)

func LimitsFor(tier model.Tier) Limits {
	if tier == model.TierPremium {
		return PremiumLimits
	}
	return FreeLimits
}

// Status is active until paidUntil, in grace for the following grace period
// and expired afterwards or when nothing was ever paid.
func Status(paidUntil *time.Time, now time.Time, grace time.Duration) model.PaymentStatus {
	switch {
	case paidUntil == nil:
		return model.PaymentExpired
	case !now.After(*paidUntil):
		return model.PaymentActive
	case !now.After(paidUntil.Add(grace)):
		return model.PaymentGrace
	default:
		return model.PaymentExpired
	}
}

func EffectiveTier(status model.PaymentStatus) model.Tier {
	if status == model.PaymentActive || status == model.PaymentGrace {
		return model.TierPremium
	}
	return model.TierFree
}

// Extend adds period to the later of paidUntil and now.
func Extend(paidUntil *time.Time, now time.Time, period time.Duration) time.Time {
	from := now
	if paidUntil != nil && paidUntil.After(now) {
		from = *paidUntil
	}
	return from.Add(period)
}

// MonthStart is the first instant of the calendar month (UTC) containing now.
func MonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type Usage struct {
	Forms                int `json:"forms"`
	SubmissionsThisMonth int `json:"submissions_this_month"`
}

// Account is an owner's subscription as seen by the dashboard.
type Account struct {
	model.User
	Tier          model.Tier          `json:"tier"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	GraceUntil    *time.Time          `json:"grace_until,omitempty"`
	Usage         Usage               `json:"usage"`
	Limits        Limits              `json:"limits"`
}

func NewAccount(u model.User, usage Usage, now time.Time, grace time.Duration) Account {
	status := Status(u.PaidUntil, now, grace)
	tier := EffectiveTier(status)
	a := Account{
		User:          u,
		Tier:          tier,
		PaymentStatus: status,
		Usage:         usage,
		Limits:        LimitsFor(tier),
	}
	if u.PaidUntil != nil {
		g := u.PaidUntil.Add(grace)
		a.GraceUntil = &g
	}
	return a
}

// CanCreateForm reports whether one more form fits the plan.
func (a Account) CanCreateForm() bool {
	return a.Limits.Forms == 0 || a.Usage.Forms < a.Limits.Forms
}

// CanReceiveSubmission reports whether one more submission fits this month.
func (a Account) CanReceiveSubmission() bool {
	return a.Limits.SubmissionsPerMonth == 0 || a.Usage.SubmissionsThisMonth < a.Limits.SubmissionsPerMonth
}
