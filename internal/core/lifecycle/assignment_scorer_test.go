package lifecycle_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScorer(now time.Time) *lifecycle.AssignmentScorer {
	return lifecycle.NewAssignmentScorer(lifecycle.FixedClock{At: now}, lifecycle.DefaultAssignmentWeights())
}

func priority(p domain.TicketPriority) *domain.TicketPriority { return &p }

func TestAssignmentScorer_ScoreTerms(t *testing.T) {
	now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	customerID := uuid.New()

	tests := []struct {
		name      string
		candidate domain.AssignmentCandidate
		criteria  domain.AssignmentCriteria
		want      int
	}{
		{
			name:      "unavailable short-circuits",
			candidate: domain.AssignmentCandidate{IsAvailable: false, Skills: []string{"network"}},
			criteria:  domain.AssignmentCriteria{Category: str("network")},
			want:      0,
		},
		{
			name:      "idle and never assigned",
			candidate: domain.AssignmentCandidate{IsAvailable: true},
			want:      10 + 50 + 15,
		},
		{
			name:      "workload floor at zero",
			candidate: domain.AssignmentCandidate{IsAvailable: true, CurrentWorkload: 12},
			want:      10 + 0 + 15,
		},
		{
			name:      "category match either direction, case-insensitive",
			candidate: domain.AssignmentCandidate{IsAvailable: true, CurrentWorkload: 2, Skills: []string{"Net"}},
			criteria:  domain.AssignmentCriteria{Category: str("networking")},
			want:      10 + 40 + 30 + 15,
		},
		{
			name:      "each matching tag adds",
			candidate: domain.AssignmentCandidate{IsAvailable: true, CurrentWorkload: 10, Skills: []string{"vpn", "Windows Server"}},
			criteria:  domain.AssignmentCriteria{Tags: []string{"VPN", "windows", "printer"}},
			want:      10 + 0 + 20 + 15,
		},
		{
			name:      "senior on high priority",
			candidate: domain.AssignmentCandidate{IsAvailable: true, CurrentWorkload: 10, Role: domain.RoleManager},
			criteria:  domain.AssignmentCriteria{Priority: priority(domain.PriorityHigh)},
			want:      10 + 20 + 15,
		},
		{
			name:      "technician gets no seniority bonus",
			candidate: domain.AssignmentCandidate{IsAvailable: true, CurrentWorkload: 10, Role: domain.RoleTechnician},
			criteria:  domain.AssignmentCriteria{Priority: priority(domain.PriorityCritical)},
			want:      10 + 0 - 30 + 15,
		},
		{
			name:      "critical overload penalty needs more than five",
			candidate: domain.AssignmentCandidate{IsAvailable: true, CurrentWorkload: 5, Role: domain.RoleAdmin},
			criteria:  domain.AssignmentCriteria{Priority: priority(domain.PriorityCritical)},
			want:      10 + 25 + 20 + 15,
		},
		{
			name: "round robin grows with idle time",
			candidate: domain.AssignmentCandidate{
				IsAvailable: true, CurrentWorkload: 10, LastAssignedAt: ptr(now.Add(-7 * time.Hour)),
			},
			want: 10 + 3,
		},
		{
			name: "round robin is capped",
			candidate: domain.AssignmentCandidate{
				IsAvailable: true, CurrentWorkload: 10, LastAssignedAt: ptr(now.Add(-72 * time.Hour)),
			},
			want: 10 + 15,
		},
		{
			name: "customer affinity",
			candidate: domain.AssignmentCandidate{
				IsAvailable: true, CurrentWorkload: 10, LastAssignedAt: ptr(now), HandledCustomer: true,
			},
			criteria: domain.AssignmentCriteria{CustomerID: &customerID},
			want:     10 + 25,
		},
	}

	scorer := newScorer(now)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.candidate.UserID = uuid.New()
			got := scorer.Score([]domain.AssignmentCandidate{tt.candidate}, tt.criteria)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Score)
		})
	}
}

func TestAssignmentScorer_SkillOutweighsWorkload(t *testing.T) {
	now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	idle := domain.AssignmentCandidate{UserID: uuid.New(), Name: "idle", IsAvailable: true, CurrentWorkload: 0}
	skilled := domain.AssignmentCandidate{
		UserID: uuid.New(), Name: "skilled", IsAvailable: true, CurrentWorkload: 1, Skills: []string{"database"},
	}

	ranked := newScorer(now).Score(
		[]domain.AssignmentCandidate{idle, skilled},
		domain.AssignmentCriteria{Category: str("Database")},
	)

	require.Len(t, ranked, 2)
	assert.Equal(t, "skilled", ranked[0].Candidate.Name)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
	assert.Contains(t, ranked[0].Reasons, "category skill: Database")
}

func TestAssignmentScorer_AutoAssign(t *testing.T) {
	now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	scorer := newScorer(now)

	t.Run("empty pool", func(t *testing.T) {
		choice, ok := scorer.AutoAssign(nil, domain.AssignmentCriteria{})
		assert.False(t, ok)
		assert.Nil(t, choice)
	})

	t.Run("nobody available", func(t *testing.T) {
		choice, ok := scorer.AutoAssign([]domain.AssignmentCandidate{
			{UserID: uuid.New()},
			{UserID: uuid.New()},
		}, domain.AssignmentCriteria{})
		assert.False(t, ok)
		assert.Nil(t, choice)
	})

	t.Run("negative top score still assigns", func(t *testing.T) {
		overloaded := domain.AssignmentCandidate{
			UserID:          uuid.New(),
			IsAvailable:     true,
			CurrentWorkload: 12,
			Role:            domain.RoleTechnician,
			LastAssignedAt:  ptr(now),
		}

		choice, ok := scorer.AutoAssign([]domain.AssignmentCandidate{overloaded},
			domain.AssignmentCriteria{Priority: priority(domain.PriorityCritical)})
		require.True(t, ok)
		assert.Equal(t, overloaded.UserID, choice.Candidate.UserID)
		assert.Equal(t, -20, choice.Score)
	})

	t.Run("picks the best", func(t *testing.T) {
		busy := domain.AssignmentCandidate{UserID: uuid.New(), IsAvailable: true, CurrentWorkload: 8}
		free := domain.AssignmentCandidate{UserID: uuid.New(), IsAvailable: true, CurrentWorkload: 1}

		choice, ok := scorer.AutoAssign([]domain.AssignmentCandidate{busy, free}, domain.AssignmentCriteria{})
		require.True(t, ok)
		assert.Equal(t, free.UserID, choice.Candidate.UserID)
	})

	t.Run("ties go to lower workload", func(t *testing.T) {
		// A 5 point category bonus exactly cancels one extra ticket.
		w := lifecycle.DefaultAssignmentWeights()
		w.CategoryMatchBonus = 5
		tied := lifecycle.NewAssignmentScorer(lifecycle.FixedClock{At: now}, w)

		a := domain.AssignmentCandidate{UserID: uuid.New(), IsAvailable: true, CurrentWorkload: 2}
		b := domain.AssignmentCandidate{UserID: uuid.New(), IsAvailable: true, CurrentWorkload: 3, Skills: []string{"mail"}}

		ranked := tied.Score([]domain.AssignmentCandidate{b, a}, domain.AssignmentCriteria{Category: str("mail")})
		require.Len(t, ranked, 2)
		assert.Equal(t, ranked[0].Score, ranked[1].Score)
		assert.Equal(t, a.UserID, ranked[0].Candidate.UserID)
	})
}

func TestAssignmentScorer_GetRecommendations(t *testing.T) {
	now := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	candidates := make([]domain.AssignmentCandidate, 0, 5)
	for i := 0; i < 5; i++ {
		candidates = append(candidates, domain.AssignmentCandidate{
			UserID: uuid.New(), IsAvailable: true, CurrentWorkload: i,
		})
	}

	got := newScorer(now).GetRecommendations(candidates, domain.AssignmentCriteria{}, 3)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
	assert.Equal(t, candidates[0].UserID, got[0].Candidate.UserID)

	all := newScorer(now).GetRecommendations(candidates, domain.AssignmentCriteria{}, 0)
	assert.Len(t, all, 5)
}
