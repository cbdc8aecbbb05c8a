package lifecycle

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

// AssignmentWeights are the scoring terms. Deployments may override them;
// DefaultAssignmentWeights carries the values the desk has always used.
type AssignmentWeights struct {
	AvailabilityBonus         int `yaml:"availability_bonus"`
	WorkloadBase              int `yaml:"workload_base"`
	WorkloadPenaltyPerTicket  int `yaml:"workload_penalty_per_ticket"`
	CategoryMatchBonus        int `yaml:"category_match_bonus"`
	TagMatchBonus             int `yaml:"tag_match_bonus"`
	SeniorPriorityBonus       int `yaml:"senior_priority_bonus"`
	CriticalOverloadPenalty   int `yaml:"critical_overload_penalty"`
	CriticalOverloadThreshold int `yaml:"critical_overload_threshold"`
	RoundRobinCap             int `yaml:"round_robin_cap"`
	RoundRobinHoursPerPoint   int `yaml:"round_robin_hours_per_point"`
	CustomerAffinityBonus     int `yaml:"customer_affinity_bonus"`
}

func DefaultAssignmentWeights() AssignmentWeights {
	return AssignmentWeights{
		AvailabilityBonus:         10,
		WorkloadBase:              50,
		WorkloadPenaltyPerTicket:  5,
		CategoryMatchBonus:        30,
		TagMatchBonus:             10,
		SeniorPriorityBonus:       20,
		CriticalOverloadPenalty:   30,
		CriticalOverloadThreshold: 5,
		RoundRobinCap:             15,
		RoundRobinHoursPerPoint:   2,
		CustomerAffinityBonus:     25,
	}
}

// AssignmentScorer ranks technicians for a ticket.
type AssignmentScorer struct {
	clock   ports.Clock
	weights AssignmentWeights
}

func NewAssignmentScorer(clock ports.Clock, weights AssignmentWeights) *AssignmentScorer {
	if clock == nil {
		clock = SystemClock{}
	}
	if weights.RoundRobinHoursPerPoint <= 0 {
		weights.RoundRobinHoursPerPoint = 1
	}
	return &AssignmentScorer{clock: clock, weights: weights}
}

// Score returns every candidate with its score, best first. Ties go to the
// lower workload, then to the lower user ID so the order is deterministic.
func (s *AssignmentScorer) Score(candidates []domain.AssignmentCandidate, criteria domain.AssignmentCriteria) []domain.ScoredCandidate {
	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, s.scoreOne(c, criteria))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Candidate.CurrentWorkload != b.Candidate.CurrentWorkload {
			return a.Candidate.CurrentWorkload < b.Candidate.CurrentWorkload
		}
		return a.Candidate.UserID.String() < b.Candidate.UserID.String()
	})
	return scored
}

// AutoAssign picks the top candidate. ok is false when the pool is empty or
// the top score is exactly zero; callers fall back to manual assignment.
// A negative top score still assigns.
func (s *AssignmentScorer) AutoAssign(candidates []domain.AssignmentCandidate, criteria domain.AssignmentCriteria) (*domain.ScoredCandidate, bool) {
	ranked := s.Score(candidates, criteria)
	if len(ranked) == 0 || ranked[0].Score == 0 {
		return nil, false
	}
	best := ranked[0]
	return &best, true
}

// GetRecommendations returns the ranking truncated to limit. A limit of
// zero or less returns the full ranking.
func (s *AssignmentScorer) GetRecommendations(candidates []domain.AssignmentCandidate, criteria domain.AssignmentCriteria, limit int) []domain.ScoredCandidate {
	ranked := s.Score(candidates, criteria)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func (s *AssignmentScorer) scoreOne(c domain.AssignmentCandidate, criteria domain.AssignmentCriteria) domain.ScoredCandidate {
	result := domain.ScoredCandidate{Candidate: c}
	if !c.IsAvailable {
		result.Reasons = []string{"unavailable"}
		return result
	}

	w := s.weights
	add := func(points int, reason string) {
		result.Score += points
		result.Reasons = append(result.Reasons, reason)
	}

	add(w.AvailabilityBonus, "available")

	if workload := max(0, w.WorkloadBase-c.CurrentWorkload*w.WorkloadPenaltyPerTicket); workload > 0 {
		add(workload, fmt.Sprintf("workload %d", c.CurrentWorkload))
	}

	if criteria.Category != nil && anySkillMatches(c.Skills, *criteria.Category) {
		add(w.CategoryMatchBonus, "category skill: "+*criteria.Category)
	}

	for _, tag := range criteria.Tags {
		if anySkillMatches(c.Skills, tag) {
			add(w.TagMatchBonus, "tag skill: "+tag)
		}
	}

	if criteria.Priority != nil {
		p := *criteria.Priority
		if (p == domain.PriorityHigh || p == domain.PriorityCritical) && c.Role.IsSenior() {
			add(w.SeniorPriorityBonus, "senior for "+string(p))
		}
		if p == domain.PriorityCritical && c.CurrentWorkload > w.CriticalOverloadThreshold {
			add(-w.CriticalOverloadPenalty, "overloaded for critical")
		}
	}

	if rr := s.roundRobinBonus(c); rr > 0 {
		add(rr, "round robin")
	}

	if criteria.CustomerID != nil && c.HandledCustomer {
		add(w.CustomerAffinityBonus, "customer affinity")
	}

	return result
}

func (s *AssignmentScorer) roundRobinBonus(c domain.AssignmentCandidate) int {
	if c.LastAssignedAt == nil {
		return s.weights.RoundRobinCap
	}
	hours := s.clock.Now().Sub(*c.LastAssignedAt).Hours()
	if hours <= 0 {
		return 0
	}
	points := int(math.Floor(hours / float64(s.weights.RoundRobinHoursPerPoint)))
	return min(s.weights.RoundRobinCap, points)
}

// anySkillMatches is a case-insensitive substring test in either direction.
func anySkillMatches(skills []string, term string) bool {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return false
	}
	for _, skill := range skills {
		sk := strings.ToLower(strings.TrimSpace(skill))
		if sk == "" {
			continue
		}
		if strings.Contains(sk, t) || strings.Contains(t, sk) {
			return true
		}
	}
	return false
}
