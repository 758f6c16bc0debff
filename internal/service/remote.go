package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/cache"
	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/repository"
)

// The services talk to the store through these; *remote.Client implements all of them.
type (
	WorkoutStore interface {
		FetchWorkoutsPage(ctx context.Context, userID primitive.ObjectID, pageIndex, pageSize int) ([]domain.WorkoutSummary, error)
		SaveWorkout(ctx context.Context, w *domain.Workout) (*domain.Workout, error)
		DeleteWorkout(ctx context.Context, userID, workoutID primitive.ObjectID) error
		FetchVolumeByDay(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]domain.DailyVolume, error)
	}

	ProfileStore interface {
		GetProfile(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)
		UpdateProfile(ctx context.Context, userID primitive.ObjectID, update domain.ProfileUpdate) (*domain.Profile, error)
	}

	CatalogStore interface {
		ListEquipment(ctx context.Context) ([]domain.Equipment, error)
		ListExercises(ctx context.Context, userID primitive.ObjectID, filter repository.ExerciseFilter) ([]domain.Exercise, error)
		GetExercise(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
		CreateUserExercise(ctx context.Context, exercise *domain.Exercise) (*domain.Exercise, error)
		UpdateUserExercise(ctx context.Context, exercise *domain.Exercise) error
		DeleteUserExercise(ctx context.Context, id, ownerID primitive.ObjectID) error
	}
)

// cache key kinds
const (
	kindWorkouts  = "workouts"
	kindVolume    = "volume"
	kindProfile   = "profile"
	kindDraft     = "draft"
	kindEquipment = "equipment"
	kindExercises = "exercises"

	globalOwner = "global"
)

func workoutsPageKey(userID primitive.ObjectID, pageIndex int) cache.Key {
	return cache.NewKey(kindWorkouts, userID.Hex(), pageIndex, cache.PageSize)
}

func family(kind string, userID primitive.ObjectID) cache.Family {
	return cache.Family{Kind: kind, Owner: userID.Hex()}
}

func parseID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, &domain.ValidationError{Field: field, Message: "invalid id"}
	}
	return id, nil
}
