package draft

import (
	"fmt"

	"alcyxob/fittrack/internal/domain"
)

type ActionType string

const (
	ActionSetExercises             ActionType = "setExercises"
	ActionSetSelectedExerciseIDs   ActionType = "setSelectedExerciseIds"
	ActionToggleSelectedExerciseID ActionType = "toggleSelectedExerciseId"
	ActionSetSelectedExercise      ActionType = "setSelectedExercise"
	ActionUpdateExerciseSets       ActionType = "updateExerciseSets"
	ActionAddExercises             ActionType = "addExercises"
	ActionRemoveExercise           ActionType = "removeExercise"
	ActionAppendSet                ActionType = "appendSet"
)

// Action is the wire form of one editor transition. Only the fields of its Type are read.
type Action struct {
	Type      ActionType      `json:"type" binding:"required"`
	Exercises []ExerciseDraft `json:"exercises,omitempty"`
	IDs       []string        `json:"ids,omitempty"`
	ID        string          `json:"id,omitempty"`
	Exercise  *ExerciseDraft  `json:"exercise,omitempty"`
	Index     int             `json:"index"`
	Sets      []domain.Set    `json:"sets,omitempty"`
}

// Reduce applies one action to s.
func Reduce(s State, a Action) (State, error) {
	switch a.Type {
	case ActionSetExercises:
		return SetExercises(s, a.Exercises), nil
	case ActionSetSelectedExerciseIDs:
		return SetSelectedExerciseIDs(s, a.IDs), nil
	case ActionToggleSelectedExerciseID:
		if a.ID == "" {
			return s, &domain.ValidationError{Field: "id", Message: "exercise id is required"}
		}
		return ToggleSelectedExerciseID(s, a.ID), nil
	case ActionSetSelectedExercise:
		return SetSelectedExercise(s, a.Exercise), nil
	case ActionUpdateExerciseSets:
		return UpdateExerciseSets(s, a.Index, a.Sets)
	case ActionAddExercises:
		return AddExercises(s, a.Exercises...), nil
	case ActionRemoveExercise:
		return RemoveExercise(s, a.Index)
	case ActionAppendSet:
		return AppendSet(s, a.Index)
	}
	return s, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown action %q", a.Type)}
}

// Refs lists the exercise references an action introduces into the workout.
func (a Action) Refs() []domain.ExerciseRef {
	var refs []domain.ExerciseRef
	for _, ex := range a.Exercises {
		refs = append(refs, ex.Ref)
	}
	if a.Exercise != nil {
		refs = append(refs, a.Exercise.Ref)
	}
	return refs
}
