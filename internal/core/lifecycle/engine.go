package lifecycle

import "github.com/lorrc/service-desk-lifecycle/internal/core/ports"

// Engine bundles the four rule components behind one clock so the write
// paths see the same "now".
type Engine struct {
	Clock        ports.Clock
	StateMachine *TicketStateMachine
	SLA          *SLACalculator
	Rates        *BillingRateResolver
	Scorer       *AssignmentScorer
}

func NewEngine(clock ports.Clock, hours BusinessHours, weights AssignmentWeights, rates ports.RateRepository) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		Clock:        clock,
		StateMachine: NewTicketStateMachine(clock),
		SLA:          NewSLACalculator(hours),
		Rates:        NewBillingRateResolver(rates),
		Scorer:       NewAssignmentScorer(clock, weights),
	}
}
