package draft

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/domain"
)

// Saveable returns nil when the workout can be saved: at least one exercise, every
// exercise with at least one set, and every set holding a positive value for each
// field its exercise uses.
func Saveable(s State) error {
	if len(s.Exercises) == 0 {
		return &domain.ValidationError{Field: "exercises", Message: "add at least one exercise"}
	}
	for i, ex := range s.Exercises {
		if len(ex.Sets) == 0 {
			return &domain.ValidationError{
				Field:   fmt.Sprintf("exercises[%d].sets", i),
				Message: fmt.Sprintf("%s has no sets", ex.Name),
			}
		}
		for j, set := range ex.Sets {
			if name := missingField(ex.Capabilities, set); name != "" {
				return &domain.ValidationError{
					Field:   fmt.Sprintf("exercises[%d].sets[%d].%s", i, j, name),
					Message: fmt.Sprintf("set %d of %s needs %s greater than 0", j+1, ex.Name, name),
				}
			}
		}
	}
	return nil
}

func missingField(caps domain.Capabilities, set domain.Set) string {
	checks := []struct {
		enabled bool
		value   *float64
		name    string
	}{
		{caps.UsesReps, set.Reps, "reps"},
		{caps.UsesWeight, set.WeightKg, "weight_kg"},
		{caps.UsesDuration, set.DurationSec, "duration_sec"},
		{caps.UsesDistance, set.DistanceM, "distance_m"},
	}
	for _, c := range checks {
		if c.enabled && (c.value == nil || *c.value <= 0) {
			return c.name
		}
	}
	return ""
}

// ToWorkout converts a saveable draft into the workout to persist.
func ToWorkout(s State, userID primitive.ObjectID, workoutDate time.Time, name, notes string) *domain.Workout {
	w := &domain.Workout{
		UserID:      userID,
		Name:        name,
		Notes:       notes,
		WorkoutDate: domain.DateOnly(workoutDate),
		Exercises:   make([]domain.WorkoutExercise, len(s.Exercises)),
	}
	for i, ex := range s.Exercises {
		w.Exercises[i] = domain.WorkoutExercise{
			Ref:        ex.Ref,
			Name:       ex.Name,
			OrderIndex: i,
			Sets:       NormalizeSets(ex.Capabilities, ex.Sets),
		}
	}
	return w
}
