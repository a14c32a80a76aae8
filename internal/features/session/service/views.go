package service

import (
	"math"
	"time"

	"budget-bubble-backend/internal/common/validation"
	currencysvc "budget-bubble-backend/internal/features/currency/service"
	friends "budget-bubble-backend/internal/features/friends/models"
	profile "budget-bubble-backend/internal/features/profile/models"
	"budget-bubble-backend/internal/features/session/models"

	"github.com/shopspring/decimal"
)

// BuildState converts the owner's canonical amounts into their display
// currency and derives pace stats.
func BuildState(p profile.UserProfile, conv *currencysvc.Converter, now time.Time) models.StateView {
	remaining := math.Max(0, p.Goal-p.Saved)
	days := DaysLeft(p.Deadline, now)
	daily := 0.0
	if days > 0 {
		daily = remaining / float64(days)
	}

	return models.StateView{
		Profile:   p,
		Canonical: conv.Canonical(),
		Display: models.DisplayAmounts{
			Currency:     p.Currency,
			Saved:        conv.Display(p.Saved, p.Currency),
			Goal:         conv.Display(p.Goal, p.Currency),
			GoalCurrency: p.GoalCurrency,
			GoalInGoal:   conv.Display(p.Goal, p.GoalCurrency),
		},
		Pace: models.Pace{
			Remaining:   conv.Display(remaining, p.Currency),
			DaysLeft:    days,
			DailyNeeded: conv.Display(daily, p.Currency),
			Progress:    progress(p.Saved, p.Goal),
		},
	}
}

// DaysLeft counts whole days from now until the deadline, truncated toward
// zero. No deadline counts as zero.
func DaysLeft(deadline *string, now time.Time) int {
	if deadline == nil {
		return 0
	}
	d, err := time.Parse(validation.DateLayout, *deadline)
	if err != nil {
		return 0
	}
	return int(d.Sub(now).Hours() / 24)
}

// BuildMembers compares every friend with the owner in the owner's display
// currency.
func BuildMembers(owner profile.UserProfile, members []friends.GroupMember, conv *currencysvc.Converter) models.MembersView {
	view := models.MembersView{
		Currency: owner.Currency,
		Members:  make([]models.MemberView, 0, len(members)),
	}
	ownerProgress := progress(owner.Saved, owner.Goal)

	for _, m := range members {
		mv := models.MemberView{
			ID:        m.ID,
			Username:  m.Username,
			GoalTitle: m.GoalTitle,
			IsGhost:   m.IsGhost,
			Progress:  m.Progress(),
		}

		if m.IsGhost {
			mv.Standing = models.StandingLeading
			if mv.Progress > ownerProgress {
				mv.Standing = models.StandingBehind
			}
			view.Members = append(view.Members, mv)
			continue
		}

		saved := conv.Display(m.Saved, owner.Currency)
		goal := conv.Display(m.Goal, owner.Currency)
		mv.Saved = &saved
		mv.Goal = &goal

		var gap decimal.Decimal
		if m.Saved > owner.Saved {
			mv.Standing = models.StandingBehind
			gap = conv.Display(m.Saved-owner.Saved, owner.Currency)
		} else {
			mv.Standing = models.StandingLeading
			gap = conv.Display(owner.Saved-m.Saved, owner.Currency)
		}
		mv.Gap = &gap

		view.Members = append(view.Members, mv)
	}
	return view
}

func progress(saved, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	return math.Min(100, saved/goal*100)
}
