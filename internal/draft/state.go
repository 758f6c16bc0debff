// Package draft holds the workout being composed before it is saved. Every
// transition is pure: it returns a new State and never modifies its input.
package draft

import (
	"alcyxob/fittrack/internal/domain"
)

// ExerciseDraft is one exercise of the workout under construction.
type ExerciseDraft struct {
	Ref          domain.ExerciseRef  `json:"exercise"`
	Name         string              `json:"name"`
	Capabilities domain.Capabilities `json:"capabilities"`
	Sets         []domain.Set        `json:"sets"`
}

type State struct {
	Exercises           []ExerciseDraft `json:"exercises"`
	SelectedExerciseIDs []string        `json:"selectedExerciseIds"`
	// SelectedExercise is the exercise whose set editor is open, nil when closed.
	SelectedExercise *ExerciseDraft `json:"selectedExercise"`
}

func Empty() State {
	return State{Exercises: []ExerciseDraft{}, SelectedExerciseIDs: []string{}}
}

func (s State) clone() State {
	out := State{
		Exercises:           make([]ExerciseDraft, len(s.Exercises)),
		SelectedExerciseIDs: append([]string{}, s.SelectedExerciseIDs...),
	}
	copy(out.Exercises, s.Exercises)
	if s.SelectedExercise != nil {
		sel := s.SelectedExercise.copy()
		out.SelectedExercise = &sel
	}
	return out
}

func (d ExerciseDraft) copy() ExerciseDraft {
	d.Sets = NormalizeSets(d.Capabilities, d.Sets)
	return d
}

// SetExercises replaces the whole exercise list.
func SetExercises(s State, exercises []ExerciseDraft) State {
	out := s.clone()
	out.Exercises = make([]ExerciseDraft, len(exercises))
	for i, ex := range exercises {
		out.Exercises[i] = ex.copy()
	}
	return out
}

// SetSelectedExerciseIDs replaces the picker selection. Duplicates are dropped.
func SetSelectedExerciseIDs(s State, ids []string) State {
	out := s.clone()
	out.SelectedExerciseIDs = dedupe(ids)
	return out
}

// ToggleSelectedExerciseID adds id to the picker selection, or removes it if present.
func ToggleSelectedExerciseID(s State, id string) State {
	out := s.clone()
	for i, existing := range out.SelectedExerciseIDs {
		if existing == id {
			out.SelectedExerciseIDs = append(out.SelectedExerciseIDs[:i], out.SelectedExerciseIDs[i+1:]...)
			return out
		}
	}
	out.SelectedExerciseIDs = append(out.SelectedExerciseIDs, id)
	return out
}

// SetSelectedExercise opens the set editor for ex; nil closes it.
func SetSelectedExercise(s State, ex *ExerciseDraft) State {
	out := s.clone()
	if ex == nil {
		out.SelectedExercise = nil
		return out
	}
	sel := ex.copy()
	out.SelectedExercise = &sel
	return out
}

// UpdateExerciseSets replaces the sets of the exercise at index. The other exercises are untouched.
func UpdateExerciseSets(s State, index int, sets []domain.Set) (State, error) {
	if index < 0 || index >= len(s.Exercises) {
		return s, domain.ErrIndexOutOfRange
	}
	out := s.clone()
	ex := out.Exercises[index]
	ex.Sets = NormalizeSets(ex.Capabilities, sets)
	out.Exercises[index] = ex

	if out.SelectedExercise != nil && out.SelectedExercise.Ref == ex.Ref {
		sel := ex.copy()
		out.SelectedExercise = &sel
	}
	return out, nil
}

// AddExercises appends the exercises not already in the workout. An exercise
// added without sets starts with one blank set.
func AddExercises(s State, exercises ...ExerciseDraft) State {
	out := s.clone()
	present := make(map[domain.ExerciseRef]bool, len(out.Exercises))
	for _, ex := range out.Exercises {
		present[ex.Ref] = true
	}
	for _, ex := range exercises {
		if ex.Ref.IsZero() || present[ex.Ref] {
			continue
		}
		present[ex.Ref] = true
		ex = ex.copy()
		if len(ex.Sets) == 0 {
			ex.Sets = []domain.Set{BlankSet(ex.Capabilities, 1)}
		}
		out.Exercises = append(out.Exercises, ex)
	}
	return out
}

// RemoveExercise drops the exercise at index and closes its editor if it was open.
func RemoveExercise(s State, index int) (State, error) {
	if index < 0 || index >= len(s.Exercises) {
		return s, domain.ErrIndexOutOfRange
	}
	out := s.clone()
	removed := out.Exercises[index]
	out.Exercises = append(out.Exercises[:index], out.Exercises[index+1:]...)
	if out.SelectedExercise != nil && out.SelectedExercise.Ref == removed.Ref {
		out.SelectedExercise = nil
	}
	return out, nil
}

// AppendSet adds a blank set after the last one of the exercise at index.
func AppendSet(s State, index int) (State, error) {
	if index < 0 || index >= len(s.Exercises) {
		return s, domain.ErrIndexOutOfRange
	}
	ex := s.Exercises[index]
	sets := append(append([]domain.Set{}, ex.Sets...), BlankSet(ex.Capabilities, len(ex.Sets)+1))
	return UpdateExerciseSets(s, index, sets)
}

// BlankSet has zero for every enabled field and nil for the rest.
func BlankSet(caps domain.Capabilities, number int) domain.Set {
	return normalizeSet(caps, domain.Set{SetNumber: number})
}

// NormalizeSets returns a copy of sets numbered from 1 with every field matching caps:
// disabled fields nil, enabled fields present and never negative.
func NormalizeSets(caps domain.Capabilities, sets []domain.Set) []domain.Set {
	out := make([]domain.Set, len(sets))
	for i, set := range sets {
		set.SetNumber = i + 1
		out[i] = normalizeSet(caps, set)
	}
	return out
}

func normalizeSet(caps domain.Capabilities, set domain.Set) domain.Set {
	set.Reps = field(caps.UsesReps, set.Reps)
	set.WeightKg = field(caps.UsesWeight, set.WeightKg)
	set.DurationSec = field(caps.UsesDuration, set.DurationSec)
	set.DistanceM = field(caps.UsesDistance, set.DistanceM)
	return set
}

func field(enabled bool, v *float64) *float64 {
	if !enabled {
		return nil
	}
	var n float64
	if v != nil && *v > 0 {
		n = *v
	}
	return &n
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
