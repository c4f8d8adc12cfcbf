package service

import (
	"fmt"

	"lostfound-rest-api/internal/model"
)

// StateRemoved is the terminal state of a deleted or expired item. It is never stored.
const StateRemoved model.ClaimState = "removed"

// Trigger is an event that moves an item through its lifecycle.
type Trigger string

const (
	TriggerClaim       Trigger = "claim"
	TriggerSweep       Trigger = "sweep"
	TriggerAdminDelete Trigger = "admin_delete"
)

type edge struct {
	from    model.ClaimState
	trigger Trigger
}

// transitions lists every legal edge. Anything else is a conflict.
var transitions = map[edge]model.ClaimState{
	{model.StateUnclaimed, TriggerClaim}:       model.StateClaimed,
	{model.StateUnclaimed, TriggerSweep}:       StateRemoved,
	{model.StateUnclaimed, TriggerAdminDelete}: StateRemoved,
	{model.StateClaimed, TriggerAdminDelete}:   StateRemoved,
}

// Next returns the state reached from `from` on trigger.
func Next(from model.ClaimState, trigger Trigger) (model.ClaimState, error) {
	to, ok := transitions[edge{from, trigger}]
	if !ok {
		if from == model.StateClaimed && trigger == TriggerClaim {
			return "", model.ErrAlreadyClaimed
		}
		return "", fmt.Errorf("%w: %s not allowed from %s", model.ErrConflict, trigger, from)
	}
	return to, nil
}

// CanTransition reports whether some trigger moves an item from `from` to `to`.
func CanTransition(from, to model.ClaimState) bool {
	for e, target := range transitions {
		if e.from == from && target == to {
			return true
		}
	}
	return false
}
