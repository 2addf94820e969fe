package domain

import (
	"errors"
	"fmt"
)

// Phase represents the lifecycle stage of a game.
type Phase string

const (
	// PhaseLobby is the pre-game state where players can join.
	PhaseLobby Phase = "lobby"
	// PhaseBidding is the state where seats bid in order.
	PhaseBidding Phase = "bidding"
	// PhasePlaying is the active trick-play state.
	PhasePlaying Phase = "playing"
	// PhaseFinished is the terminal state after a team reached the win score.
	PhaseFinished Phase = "finished"
)

// Trigger names an event that moves a game between phases.
type Trigger string

const (
	TriggerStart          Trigger = "start"
	TriggerBidsComplete   Trigger = "bids_complete"
	TriggerRoundContinues Trigger = "round_continues"
	TriggerGameWon        Trigger = "game_won"
)

// ErrIllegalTransition is returned for a trigger that is not valid in a phase.
var ErrIllegalTransition = errors.New("illegal phase transition")

var transitions = map[Phase]map[Trigger]Phase{
	PhaseLobby:   {TriggerStart: PhaseBidding},
	PhaseBidding: {TriggerBidsComplete: PhasePlaying},
	PhasePlaying: {TriggerRoundContinues: PhaseBidding, TriggerGameWon: PhaseFinished},
}

// Next returns the phase reached from p on trigger t.
func (p Phase) Next(t Trigger) (Phase, error) {
	if next, ok := transitions[p][t]; ok {
		return next, nil
	}
	return p, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, t, p)
}
