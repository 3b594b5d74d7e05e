package finder

import "fmt"

// Step names a state of the track-finding state machine.
type Step int

const (
	StepInitArray Step = iota
	StepNewTrack
	StepRemoveTrack
	StepInitTrack
	StepInitTrackAddHit
	StepContinuum
	StepContinuumAddHit
	StepExtrapolation
	StepExtrapolationAddHit
	StepConfirmation
	StepFinalizeTrack
	StepNextPhase
	StepEndEvent
	// StepEndOfEvent is terminal: ExecStep does nothing once reached.
	StepEndOfEvent
)

var stepNames = [...]string{
	StepInitArray:           "InitArray",
	StepNewTrack:            "NewTrack",
	StepRemoveTrack:         "RemoveTrack",
	StepInitTrack:           "InitTrack",
	StepInitTrackAddHit:     "InitTrackAddHit",
	StepContinuum:           "Continuum",
	StepContinuumAddHit:     "ContinuumAddHit",
	StepExtrapolation:       "Extrapolation",
	StepExtrapolationAddHit: "ExtrapolationAddHit",
	StepConfirmation:        "Confirmation",
	StepFinalizeTrack:       "FinalizeTrack",
	StepNextPhase:           "NextPhase",
	StepEndEvent:            "EndEvent",
	StepEndOfEvent:          "EndOfEvent",
}

func (s Step) String() string {
	if s >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Direction selects which end of a track grows during extrapolation.
type Direction int

const (
	GrowHead Direction = iota
	GrowTail
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == GrowHead {
		return GrowTail
	}
	return GrowHead
}

func (d Direction) String() string {
	if d == GrowHead {
		return "head"
	}
	return "tail"
}
