package service

import (
	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/pkg/api"
)

func toAPIGroup(g *models.Group) api.Group {
	return api.Group{
		ID:          g.ID,
		Name:        g.Name,
		CreatedBy:   g.CreatedBy,
		IsFinalized: g.IsFinalized,
		FinalizedAt: g.FinalizedAt,
		CreatedAt:   g.CreatedAt,
	}
}

func toAPIMembers(members []models.Member) []api.Member {
	out := make([]api.Member, len(members))
	for i, m := range members {
		out[i] = api.Member{UserID: m.UserID, Name: m.Name, Role: string(m.Role)}
	}
	return out
}

func toAPISettlement(s *models.Settlement) api.Settlement {
	return api.Settlement{
		ID:           s.ID,
		GroupID:      s.GroupID,
		FromUserID:   s.FromUserID,
		ToUserID:     s.ToUserID,
		Amount:       s.Amount,
		PaymentMode:  string(s.PaymentMode),
		State:        string(s.State()),
		IsPaid:       s.IsPaid,
		CreatedAt:    s.CreatedAt,
		PaidAt:       s.PaidAt,
		PointsEarned: s.PointsEarned,
	}
}

func toAPISettlements(settlements []*models.Settlement) []api.Settlement {
	out := make([]api.Settlement, len(settlements))
	for i, s := range settlements {
		out[i] = toAPISettlement(s)
	}
	return out
}

func toAPIExpense(e *models.Expense) api.Expense {
	partitions := make([]api.Partition, len(e.Partitions))
	for i, p := range e.Partitions {
		partitions[i] = api.Partition{UserID: p.UserID, Amount: p.Amount}
	}
	return api.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Name:        e.Name,
		PaidBy:      e.PaidBy,
		TotalAmount: e.TotalAmount,
		Category:    e.Category,
		SplitType:   string(e.SplitType),
		Partitions:  partitions,
		CreatedAt:   e.CreatedAt,
	}
}

func toAPIProfile(u *models.User) api.Profile {
	return api.Profile{UserID: u.ID, Name: u.Name, UPI: u.UPI, Points: u.Points}
}
