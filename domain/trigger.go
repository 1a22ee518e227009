package domain

import (
	"errors"
	"fmt"
	"strings"
)

type TriggerKind string

const (
	TriggerPump = TriggerKind("pump")
	TriggerDump = TriggerKind("dump")
)

type Outcome string

const (
	OutcomeYes = Outcome("YES")
	OutcomeNo  = Outcome("NO")
)

var ErrInvalidTrigger = errors.New("invalid trigger")

// Trigger says which price move fires an order and on which outcome side it is watched.
type Trigger struct {
	Kind    TriggerKind `json:"kind" gorm:"column:kind;not null"`
	Outcome Outcome     `json:"outcome" gorm:"column:outcome;not null"`
}

func (trigger Trigger) Validate() error {
	if trigger.Kind != TriggerPump && trigger.Kind != TriggerDump {
		return fmt.Errorf("%w: kind %q", ErrInvalidTrigger, trigger.Kind)
	}
	if trigger.Outcome != OutcomeYes && trigger.Outcome != OutcomeNo {
		return fmt.Errorf("%w: outcome %q", ErrInvalidTrigger, trigger.Outcome)
	}
	return nil
}

func (trigger Trigger) String() string {
	return strings.ToLower(string(trigger.Kind) + "_" + string(trigger.Outcome))
}

// ParseTrigger decodes the flat form used by chat commands, e.g. "pump_yes" or "DUMP-NO".
func ParseTrigger(value string) (Trigger, error) {
	parts := strings.FieldsFunc(strings.TrimSpace(value), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	if len(parts) != 2 {
		return Trigger{}, fmt.Errorf("%w: %q", ErrInvalidTrigger, value)
	}

	trigger := Trigger{
		Kind:    TriggerKind(strings.ToLower(parts[0])),
		Outcome: Outcome(strings.ToUpper(parts[1])),
	}
	if err := trigger.Validate(); err != nil {
		return Trigger{}, err
	}
	return trigger, nil
}

// ValidateThreshold rejects thresholds that could never be evaluated meaningfully.
func ValidateThreshold(thresholdPercent float64) error {
	if !(thresholdPercent > 0) {
		return fmt.Errorf("%w: threshold must be > 0, got %v", ErrInvalidTrigger, thresholdPercent)
	}
	return nil
}
