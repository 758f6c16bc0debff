package repository

import (
	"alcyxob/fittrack/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("already exists")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	ConfirmEmail(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ProfileRepository stores the one-to-one profile of each user, including the
// aggregate counters maintained on every workout save and delete.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)
	Update(ctx context.Context, userID primitive.ObjectID, update domain.ProfileUpdate) (*domain.Profile, error)
	AddAggregates(ctx context.Context, userID primitive.ObjectID, volumeDelta float64, workoutsDelta int) error
}

// EquipmentRepository is read-only reference data.
type EquipmentRepository interface {
	List(ctx context.Context) ([]domain.Equipment, error)
}

// ExerciseFilter narrows an exercise listing. Zero fields match everything.
type ExerciseFilter struct {
	Category      string
	PrimaryMuscle string
	EquipmentID   *primitive.ObjectID
	Search        string
}

// ExerciseRepository holds both the predefined library (no owner) and user-authored exercises.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	// List returns the predefined exercises plus the ones owned by ownerID.
	List(ctx context.Context, ownerID primitive.ObjectID, filter ExerciseFilter) ([]domain.Exercise, error)
	Update(ctx context.Context, exercise *domain.Exercise) error
	Delete(ctx context.Context, id primitive.ObjectID, ownerID primitive.ObjectID) error // Ensure the user owns the exercise
}

// WorkoutRepository persists a workout as three kinds of rows: the workout, its
// exercises and their sets. Each Insert is a separate write.
type WorkoutRepository interface {
	InsertWorkout(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	InsertExercise(ctx context.Context, userID primitive.ObjectID, exercise *domain.WorkoutExercise) (primitive.ObjectID, error)
	InsertSets(ctx context.Context, userID primitive.ObjectID, workoutDate time.Time, exercise *domain.WorkoutExercise) error
	// GetByID returns the workout with exercises and sets, scoped to its owner.
	GetByID(ctx context.Context, userID, id primitive.ObjectID) (*domain.Workout, error)
	// ListByUser returns a page of fully populated workouts, newest workout date first.
	ListByUser(ctx context.Context, userID primitive.ObjectID, offset, limit int) ([]domain.Workout, error)
	// Delete removes the workout and every child row.
	Delete(ctx context.Context, userID, id primitive.ObjectID) error
	// DailyVolume sums reps x weight per workout date from since (inclusive).
	DailyVolume(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]domain.DailyVolume, error)
}
