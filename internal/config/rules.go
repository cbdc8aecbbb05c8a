package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/lifecycle"
	"gopkg.in/yaml.v3"
)

// Rules are the tunable rule tables read from the SLA rules file.
//
//	sla_policies:
//	  critical: {response_time_hours: 1, resolution_time_hours: 4, business_hours_only: false}
//	assignment:
//	  customer_affinity_bonus: 40
//
// Anything the file leaves out keeps its built-in value.
type Rules struct {
	SLAPolicies domain.SLAPolicies          `yaml:"sla_policies"`
	Assignment  lifecycle.AssignmentWeights `yaml:"assignment"`
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() *Rules {
	return &Rules{
		SLAPolicies: domain.DefaultSLAPolicies(),
		Assignment:  lifecycle.DefaultAssignmentWeights(),
	}
}

// LoadRules reads path over the defaults. An empty path, or one that does
// not exist, yields the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return rules, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

// Validate checks the SLA table and the weights that must stay non-negative.
func (r *Rules) Validate() error {
	if err := r.SLAPolicies.Validate(); err != nil {
		return err
	}
	w := r.Assignment
	if w.RoundRobinCap < 0 || w.RoundRobinHoursPerPoint < 0 || w.CriticalOverloadThreshold < 0 {
		return errors.New("assignment weights: round-robin and overload settings cannot be negative")
	}
	return nil
}

// Weights applies the environment overrides on top of the file weights.
func (r *Rules) Weights(overrides AssignmentConfig) lifecycle.AssignmentWeights {
	w := r.Assignment
	if overrides.RoundRobinCap > 0 {
		w.RoundRobinCap = overrides.RoundRobinCap
	}
	if overrides.RoundRobinHoursPerPoint > 0 {
		w.RoundRobinHoursPerPoint = overrides.RoundRobinHoursPerPoint
	}
	return w
}

// Build turns the configured window into the calculator's business hours.
func (b BusinessHoursConfig) Build() (lifecycle.BusinessHours, error) {
	loc, err := b.Location()
	if err != nil {
		return lifecycle.BusinessHours{}, err
	}
	return lifecycle.BusinessHours{StartHour: b.StartHour, EndHour: b.EndHour, Location: loc}, nil
}
