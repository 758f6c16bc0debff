package draft

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/domain"
)

func f(v float64) *float64 { return &v }

var (
	strength = domain.Capabilities{UsesReps: true, UsesWeight: true}
	cardio   = domain.Capabilities{UsesDuration: true, UsesDistance: true}
)

func benchPress() ExerciseDraft {
	return ExerciseDraft{Ref: domain.Predefined(primitive.NewObjectID()), Name: "Bench Press", Capabilities: strength}
}

func run() ExerciseDraft {
	return ExerciseDraft{Ref: domain.UserDefined(primitive.NewObjectID()), Name: "Run", Capabilities: cardio}
}

func TestUpdateExerciseSets_OutOfRange(t *testing.T) {
	s := AddExercises(Empty(), benchPress())

	for _, idx := range []int{-1, 1, 5} {
		got, err := UpdateExerciseSets(s, idx, []domain.Set{{Reps: f(1)}})
		assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
		assert.Equal(t, s, got)
	}
}

func TestUpdateExerciseSets_ReplacesOnlyTarget(t *testing.T) {
	bench, squat := benchPress(), benchPress()
	squat.Name = "Squat"
	s := AddExercises(Empty(), bench, squat)
	beforeSquat := s.Exercises[1]

	got, err := UpdateExerciseSets(s, 0, []domain.Set{
		{Reps: f(10), WeightKg: f(50)},
		{Reps: f(8), WeightKg: f(55)},
	})
	require.NoError(t, err)

	require.Len(t, got.Exercises[0].Sets, 2)
	assert.Equal(t, 1, got.Exercises[0].Sets[0].SetNumber)
	assert.Equal(t, 2, got.Exercises[0].Sets[1].SetNumber)
	assert.Equal(t, beforeSquat, got.Exercises[1])
	// input state untouched
	assert.Len(t, s.Exercises[0].Sets, 1)
}

func TestNormalizeSets_DisabledFieldsAreNil(t *testing.T) {
	noWeight := domain.Capabilities{UsesReps: true}
	sets := NormalizeSets(noWeight, []domain.Set{
		{SetNumber: 7, Reps: f(-3), WeightKg: f(80), DurationSec: f(30)},
		{Reps: nil, WeightKg: f(1)},
	})

	require.Len(t, sets, 2)
	for i, set := range sets {
		assert.Equal(t, i+1, set.SetNumber)
		assert.Nil(t, set.WeightKg)
		assert.Nil(t, set.DurationSec)
		assert.Nil(t, set.DistanceM)
		require.NotNil(t, set.Reps)
		assert.Equal(t, 0.0, *set.Reps)
	}
}

// Any editor path must keep weight_kg null for an exercise without weight.
func TestEditor_NeverPopulatesDisabledWeight(t *testing.T) {
	ex := run()
	s := AddExercises(Empty(), ex)

	var err error
	s, err = AppendSet(s, 0)
	require.NoError(t, err)
	s, err = UpdateExerciseSets(s, 0, []domain.Set{{WeightKg: f(100), DurationSec: f(600), DistanceM: f(2000)}})
	require.NoError(t, err)
	s = SetExercises(s, []ExerciseDraft{{Ref: ex.Ref, Name: ex.Name, Capabilities: cardio, Sets: []domain.Set{{WeightKg: f(5)}}}})
	s = SetSelectedExercise(s, &ExerciseDraft{Ref: ex.Ref, Capabilities: cardio, Sets: []domain.Set{{WeightKg: f(9)}}})

	for _, exercise := range s.Exercises {
		for _, set := range exercise.Sets {
			assert.Nil(t, set.WeightKg)
		}
	}
	for _, set := range s.SelectedExercise.Sets {
		assert.Nil(t, set.WeightKg)
	}
	w := ToWorkout(s, primitive.NewObjectID(), time.Now(), "", "")
	for _, set := range w.Exercises[0].Sets {
		assert.Nil(t, set.WeightKg)
		assert.Nil(t, set.Reps)
	}
}

func TestSelectedExerciseIDs(t *testing.T) {
	s := SetSelectedExerciseIDs(Empty(), []string{"a", "b", "a", "c", "b"})
	assert.ElementsMatch(t, []string{"a", "b", "c"}, s.SelectedExerciseIDs)

	s = ToggleSelectedExerciseID(s, "b")
	assert.ElementsMatch(t, []string{"a", "c"}, s.SelectedExerciseIDs)
	s = ToggleSelectedExerciseID(s, "d")
	assert.ElementsMatch(t, []string{"a", "c", "d"}, s.SelectedExerciseIDs)
}

func TestSetSelectedExercise_NilCloses(t *testing.T) {
	ex := benchPress()
	s := SetSelectedExercise(Empty(), &ex)
	require.NotNil(t, s.SelectedExercise)
	assert.Equal(t, ex.Ref, s.SelectedExercise.Ref)

	s = SetSelectedExercise(s, nil)
	assert.Nil(t, s.SelectedExercise)
}

func TestAddAndRemoveExercises(t *testing.T) {
	bench, cardioRun := benchPress(), run()
	s := AddExercises(Empty(), bench, cardioRun, bench)
	require.Len(t, s.Exercises, 2)
	require.Len(t, s.Exercises[0].Sets, 1)
	assert.Equal(t, *BlankSet(strength, 1).Reps, *s.Exercises[0].Sets[0].Reps)

	s = SetSelectedExercise(s, &s.Exercises[0])
	s, err := RemoveExercise(s, 0)
	require.NoError(t, err)
	require.Len(t, s.Exercises, 1)
	assert.Equal(t, cardioRun.Ref, s.Exercises[0].Ref)
	assert.Nil(t, s.SelectedExercise)

	_, err = RemoveExercise(s, 3)
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
}

func TestAppendSet_NumbersContiguously(t *testing.T) {
	s := AddExercises(Empty(), benchPress())
	var err error
	for i := 0; i < 3; i++ {
		s, err = AppendSet(s, 0)
		require.NoError(t, err)
	}
	sets := s.Exercises[0].Sets
	require.Len(t, sets, 4)
	for i, set := range sets {
		assert.Equal(t, i+1, set.SetNumber)
	}
}

func TestSaveable(t *testing.T) {
	bench := benchPress()
	cardioRun := run()

	tests := []struct {
		name    string
		state   State
		wantErr bool
	}{
		{name: "empty", state: Empty(), wantErr: true},
		{
			name:    "exercise without sets",
			state:   State{Exercises: []ExerciseDraft{bench}},
			wantErr: true,
		},
		{
			name:    "zero weight",
			state:   State{Exercises: []ExerciseDraft{withSets(bench, domain.Set{Reps: f(10), WeightKg: f(0)})}},
			wantErr: true,
		},
		{
			name:  "strength ok",
			state: State{Exercises: []ExerciseDraft{withSets(bench, domain.Set{Reps: f(10), WeightKg: f(50)})}},
		},
		{
			name:  "duration only exercise is saveable without reps or weight",
			state: State{Exercises: []ExerciseDraft{withSets(cardioRun, domain.Set{DurationSec: f(1200), DistanceM: f(5000)})}},
		},
		{
			name:    "duration only exercise still needs its own fields",
			state:   State{Exercises: []ExerciseDraft{withSets(cardioRun, domain.Set{DurationSec: f(1200)})}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Saveable(tt.state)
			if tt.wantErr {
				var validationErr *domain.ValidationError
				assert.ErrorAs(t, err, &validationErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func withSets(ex ExerciseDraft, sets ...domain.Set) ExerciseDraft {
	ex.Sets = NormalizeSets(ex.Capabilities, sets)
	return ex
}

func TestReduce(t *testing.T) {
	bench := benchPress()
	raw := `{"type":"addExercises","exercises":[{"exercise":{"kind":"predefined","id":"` + bench.Ref.ID().Hex() + `"},"name":"Bench Press","capabilities":{"usesReps":true,"usesWeight":true}}]}`
	var add Action
	require.NoError(t, json.Unmarshal([]byte(raw), &add))

	s, err := Reduce(Empty(), add)
	require.NoError(t, err)
	require.Len(t, s.Exercises, 1)
	assert.Equal(t, bench.Ref, s.Exercises[0].Ref)
	assert.Equal(t, []domain.ExerciseRef{bench.Ref}, add.Refs())

	s, err = Reduce(s, Action{Type: ActionUpdateExerciseSets, Index: 0, Sets: []domain.Set{{Reps: f(10), WeightKg: f(50)}}})
	require.NoError(t, err)
	assert.Equal(t, 500.0, s.Exercises[0].Sets[0].Volume())

	_, err = Reduce(s, Action{Type: ActionUpdateExerciseSets, Index: 4})
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)

	_, err = Reduce(s, Action{Type: "explode"})
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = Reduce(s, Action{Type: ActionToggleSelectedExerciseID})
	assert.ErrorAs(t, err, &validationErr)
}

func TestToWorkout(t *testing.T) {
	user := primitive.NewObjectID()
	s := State{Exercises: []ExerciseDraft{
		withSets(benchPress(), domain.Set{Reps: f(10), WeightKg: f(50)}),
		withSets(run(), domain.Set{DurationSec: f(60), DistanceM: f(200)}),
	}}
	date := time.Date(2024, 5, 3, 18, 30, 0, 0, time.UTC)

	w := ToWorkout(s, user, date, "Push day", "")
	assert.Equal(t, user, w.UserID)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), w.WorkoutDate)
	require.Len(t, w.Exercises, 2)
	assert.Equal(t, 0, w.Exercises[0].OrderIndex)
	assert.Equal(t, 1, w.Exercises[1].OrderIndex)
	assert.Equal(t, 500.0, w.TotalVolume())
}
