package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const tempIDPrefix = "temp-"

// Set is one line of a workout exercise. A nil field is not applicable to the exercise,
// a zero field is applicable but not filled in.
type Set struct {
	SetNumber   int      `bson:"setNumber" json:"setNumber"`
	Reps        *float64 `bson:"reps" json:"reps"`
	WeightKg    *float64 `bson:"weightKg" json:"weight_kg"`
	DurationSec *float64 `bson:"durationSec" json:"duration_sec"`
	DistanceM   *float64 `bson:"distanceM" json:"distance_m"`
}

// Volume is reps x weight, 0 when either is not recorded.
func (s Set) Volume() float64 {
	if s.Reps == nil || s.WeightKg == nil {
		return 0
	}
	return *s.Reps * *s.WeightKg
}

// WorkoutExercise joins a workout to the exercise it performed.
type WorkoutExercise struct {
	ID         primitive.ObjectID `json:"id"`
	WorkoutID  primitive.ObjectID `json:"workoutId"`
	Ref        ExerciseRef        `json:"exercise"`
	Name       string             `json:"name"`
	OrderIndex int                `json:"orderIndex"`
	Sets       []Set              `json:"sets"`
}

func (we WorkoutExercise) Volume() float64 {
	var total float64
	for _, s := range we.Sets {
		total += s.Volume()
	}
	return total
}

// Workout represents a single logged session.
type Workout struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Name        string             `bson:"name,omitempty" json:"name,omitempty"`
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	WorkoutDate time.Time          `bson:"workoutDate" json:"workoutDate"` // calendar day, UTC midnight
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`     // audit timestamp
	Exercises   []WorkoutExercise  `bson:"-" json:"exercises"`
}

func (w *Workout) TotalVolume() float64 {
	var total float64
	for _, ex := range w.Exercises {
		total += ex.Volume()
	}
	return total
}

// ExerciseSummary is the per-exercise part of a history row.
type ExerciseSummary struct {
	Name string `json:"name"`
	Sets []Set  `json:"sets"`
}

// WorkoutSummary is the UI facing history row kept in the cache.
// ID is the server hex id, or a temporary id while a save is pending.
type WorkoutSummary struct {
	ID            string            `json:"id"`
	WorkoutDate   time.Time         `json:"workoutDate"`
	CreatedAt     time.Time         `json:"createdAt"`
	Name          string            `json:"name,omitempty"`
	ExerciseCount int               `json:"exerciseCount"`
	SetCount      int               `json:"setCount"`
	TotalVolume   float64           `json:"totalVolume"`
	Exercises     []ExerciseSummary `json:"exercises"`
	Pending       bool              `json:"pending,omitempty"`
}

// Summarize builds the history row for a workout.
func Summarize(w *Workout) WorkoutSummary {
	summary := WorkoutSummary{
		WorkoutDate:   w.WorkoutDate,
		CreatedAt:     w.CreatedAt,
		Name:          w.Name,
		ExerciseCount: len(w.Exercises),
		TotalVolume:   w.TotalVolume(),
		Exercises:     make([]ExerciseSummary, 0, len(w.Exercises)),
	}
	if w.ID != primitive.NilObjectID {
		summary.ID = w.ID.Hex()
	}
	for _, ex := range w.Exercises {
		summary.SetCount += len(ex.Sets)
		summary.Exercises = append(summary.Exercises, ExerciseSummary{Name: ex.Name, Sets: ex.Sets})
	}
	return summary
}

// DailyVolume is the per-user per-day aggregate produced by the store.
type DailyVolume struct {
	Date   string  `bson:"_id" json:"date"` // YYYY-MM-DD
	Volume float64 `bson:"volume" json:"volume"`
}

// NewTempID returns a placeholder identity for an entity the server has not confirmed yet.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// DateOnly truncates t to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
