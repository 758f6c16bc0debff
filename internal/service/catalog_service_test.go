package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/repository"
)

func names(exercises []domain.Exercise) []string {
	out := make([]string, len(exercises))
	for i, e := range exercises {
		out[i] = e.Name
	}
	return out
}

func TestListExercises_PredefinedPlusOwn(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	list, err := fx.catalog.ListExercises(ctx, fx.userID, repository.ExerciseFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bench Press", "Run"}, names(list))

	created, err := fx.catalog.CreateExercise(ctx, fx.userID, ExerciseInput{
		Name:         "  Cable Fly ",
		Capabilities: domain.Capabilities{UsesReps: true, UsesWeight: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Cable Fly", created.Name)
	assert.Equal(t, domain.UserDefined(created.ID), created.Ref())

	// the create dropped the cached list
	list, err = fx.catalog.ListExercises(ctx, fx.userID, repository.ExerciseFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bench Press", "Cable Fly", "Run"}, names(list))

	cardio, err := fx.catalog.ListExercises(ctx, fx.userID, repository.ExerciseFilter{Category: "cardio"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Run"}, names(cardio))
}

func TestListEquipment_Cached(t *testing.T) {
	fx := newFixture(t)
	fx.store.SeedEquipment(domain.Equipment{Name: "Dumbbell"}, domain.Equipment{Name: "Barbell"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		equipment, err := fx.catalog.ListEquipment(ctx)
		require.NoError(t, err)
		require.Len(t, equipment, 2)
		assert.Equal(t, "Barbell", equipment[0].Name)
	}
	assert.Equal(t, []string{"equipment.List"}, fx.store.Calls()[1:])
}

func TestUpdateAndDeleteExercise_Ownership(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	input := ExerciseInput{Name: "Renamed", Capabilities: domain.Capabilities{UsesReps: true}}

	_, err := fx.catalog.UpdateExercise(ctx, fx.userID, fx.bench.ID, input)
	assert.ErrorIs(t, err, ErrExerciseAccessDenied)
	assert.ErrorIs(t, fx.catalog.DeleteExercise(ctx, fx.userID, fx.bench.ID), ErrExerciseAccessDenied)

	_, err = fx.catalog.UpdateExercise(ctx, fx.userID, fx.other.ID, input)
	assert.ErrorIs(t, err, ErrExerciseNotFound)
	assert.ErrorIs(t, fx.catalog.DeleteExercise(ctx, fx.userID, fx.other.ID), ErrExerciseNotFound)
	assert.ErrorIs(t, fx.catalog.DeleteExercise(ctx, fx.userID, primitive.NewObjectID()), ErrExerciseNotFound)

	mine, err := fx.catalog.CreateExercise(ctx, fx.userID, ExerciseInput{Name: "Plank", Capabilities: domain.Capabilities{UsesDuration: true}})
	require.NoError(t, err)
	updated, err := fx.catalog.UpdateExercise(ctx, fx.userID, mine.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, input.Capabilities, updated.Capabilities)

	require.NoError(t, fx.catalog.DeleteExercise(ctx, fx.userID, mine.ID))
	_, err = fx.catalog.GetExercise(ctx, fx.userID, mine.ID)
	assert.ErrorIs(t, err, ErrExerciseNotFound)
}

func TestCreateExercise_Validation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	var validationErr *domain.ValidationError

	_, err := fx.catalog.CreateExercise(ctx, fx.userID, ExerciseInput{Name: " ", Capabilities: domain.Capabilities{UsesReps: true}})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "name", validationErr.Field)

	_, err = fx.catalog.CreateExercise(ctx, fx.userID, ExerciseInput{Name: "Nothing"})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "capabilities", validationErr.Field)
}
