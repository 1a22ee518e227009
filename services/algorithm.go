package services

import "github.com/legendiguess/pumpdump-trade-bot/domain"

// TriggerFired reports whether a percentage change satisfies the trigger.
// Both boundaries are inclusive. An undefined change never fires.
// thresholdPercent is assumed positive; orders are validated when created.
func TriggerFired(kind domain.TriggerKind, thresholdPercent float64, change float64, ok bool) bool {
	if !ok {
		return false
	}

	switch kind {
	case domain.TriggerPump:
		return change >= thresholdPercent
	case domain.TriggerDump:
		return change <= -thresholdPercent
	default:
		return false
	}
}
