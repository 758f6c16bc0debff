// Package remote is the data access layer: typed, fail-fast calls against the
// store. Each call runs under the configured timeout and is never retried.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/metrics"
	"alcyxob/fittrack/internal/repository"
)

const DefaultTimeout = 10 * time.Second

type Client struct {
	profiles  repository.ProfileRepository
	exercises repository.ExerciseRepository
	equipment repository.EquipmentRepository
	workouts  repository.WorkoutRepository
	timeout   time.Duration
	metrics   *metrics.Manager
}

func NewClient(
	profiles repository.ProfileRepository,
	exercises repository.ExerciseRepository,
	equipment repository.EquipmentRepository,
	workouts repository.WorkoutRepository,
	timeout time.Duration,
	metricsManager *metrics.Manager,
) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		profiles:  profiles,
		exercises: exercises,
		equipment: equipment,
		workouts:  workouts,
		timeout:   timeout,
		metrics:   metricsManager,
	}
}

// call runs fn under the client timeout and classifies its error.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return classify(op, fn(ctx))
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return fmt.Errorf("%s: %w", op, domain.ErrTimedOut)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return &domain.RemoteError{Op: op, Message: err.Error(), NotFound: true, Err: err}
	}
	return &domain.RemoteError{Op: op, Message: err.Error(), Err: err}
}

// FetchWorkoutsPage returns page pageIndex (from 0) of the user's history, newest first.
func (c *Client) FetchWorkoutsPage(ctx context.Context, userID primitive.ObjectID, pageIndex, pageSize int) ([]domain.WorkoutSummary, error) {
	if pageIndex < 0 || pageSize <= 0 {
		return nil, &domain.ValidationError{Field: "page", Message: "page must not be negative"}
	}
	var workouts []domain.Workout
	err := c.call(ctx, "fetch_workouts", func(ctx context.Context) (err error) {
		workouts, err = c.workouts.ListByUser(ctx, userID, pageIndex*pageSize, pageSize)
		return err
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.WorkoutSummary, len(workouts))
	for i := range workouts {
		summaries[i] = domain.Summarize(&workouts[i])
	}
	return summaries, nil
}

// SaveWorkout writes the workout row, then its exercise rows, then their set rows, then
// the profile aggregates. A failure after the workout row exists deletes what was written
// and returns a *domain.PartialWriteError.
func (c *Client) SaveWorkout(ctx context.Context, w *domain.Workout) (*domain.Workout, error) {
	saved := *w
	saved.Exercises = make([]domain.WorkoutExercise, len(w.Exercises))
	copy(saved.Exercises, w.Exercises)

	err := c.call(ctx, "save_workout", func(ctx context.Context) error {
		_, err := c.workouts.InsertWorkout(ctx, &saved)
		return err
	})
	if err != nil {
		return nil, err
	}

	step, err := c.saveChildren(ctx, &saved)
	if err != nil {
		return nil, c.compensate(ctx, &saved, step, err)
	}

	if c.metrics != nil {
		c.metrics.CounterWorkoutsSaved.Inc()
	}
	return &saved, nil
}

func (c *Client) saveChildren(ctx context.Context, w *domain.Workout) (string, error) {
	for i := range w.Exercises {
		ex := &w.Exercises[i]
		ex.WorkoutID = w.ID
		ex.OrderIndex = i
		err := c.call(ctx, "save_workout_exercise", func(ctx context.Context) error {
			_, err := c.workouts.InsertExercise(ctx, w.UserID, ex)
			return err
		})
		if err != nil {
			return "exercises", err
		}
	}

	for i := range w.Exercises {
		ex := &w.Exercises[i]
		err := c.call(ctx, "save_workout_sets", func(ctx context.Context) error {
			return c.workouts.InsertSets(ctx, w.UserID, w.WorkoutDate, ex)
		})
		if err != nil {
			return "sets", err
		}
	}

	err := c.call(ctx, "update_user_aggregates", func(ctx context.Context) error {
		return c.profiles.AddAggregates(ctx, w.UserID, w.TotalVolume(), 1)
	})
	if err != nil {
		return "aggregates", err
	}
	return "", nil
}

// compensate removes a partially written workout. It runs even if ctx is already done.
func (c *Client) compensate(ctx context.Context, w *domain.Workout, step string, cause error) error {
	partial := &domain.PartialWriteError{Op: "save", WorkoutID: w.ID.Hex(), Step: step, Err: cause}
	partial.CompensationErr = c.call(context.WithoutCancel(ctx), "compensate_workout", func(ctx context.Context) error {
		return c.workouts.Delete(ctx, w.UserID, w.ID)
	})

	if c.metrics != nil {
		c.metrics.CounterWorkoutPartialWrites.Inc()
	}
	if partial.CompensationErr != nil {
		log.Errorf("remote: save workout %s failed at %s, cleanup failed too: %s", partial.WorkoutID, step, partial.CompensationErr)
	} else {
		log.Warnf("remote: save workout %s failed at %s, partial rows removed: %s", partial.WorkoutID, step, cause)
	}
	return partial
}

// DeleteWorkout takes the workout's volume out of the profile aggregates and then removes
// the workout row. If the removal fails the aggregates are restored, so a failed delete
// leaves the store as it was. A failed restore is returned as a *domain.PartialWriteError.
func (c *Client) DeleteWorkout(ctx context.Context, userID, workoutID primitive.ObjectID) error {
	var workout *domain.Workout
	err := c.call(ctx, "get_workout", func(ctx context.Context) (err error) {
		workout, err = c.workouts.GetByID(ctx, userID, workoutID)
		return err
	})
	if err != nil {
		return err
	}

	volume := workout.TotalVolume()
	err = c.call(ctx, "update_user_aggregates", func(ctx context.Context) error {
		return c.profiles.AddAggregates(ctx, userID, -volume, -1)
	})
	if err != nil {
		return err
	}

	err = c.call(ctx, "delete_workout", func(ctx context.Context) error {
		return c.workouts.Delete(ctx, userID, workoutID)
	})
	if err != nil && !domain.IsNotFound(err) && c.workoutGone(ctx, userID, workoutID) {
		// the delete reached the store even though the call failed
		err = nil
	}
	if err != nil {
		return c.restoreAggregates(ctx, workout, volume, err)
	}

	if c.metrics != nil {
		c.metrics.CounterWorkoutsDeleted.Inc()
	}
	return nil
}

func (c *Client) workoutGone(ctx context.Context, userID, workoutID primitive.ObjectID) bool {
	err := c.call(context.WithoutCancel(ctx), "get_workout", func(ctx context.Context) error {
		_, err := c.workouts.GetByID(ctx, userID, workoutID)
		return err
	})
	return domain.IsNotFound(err)
}

// restoreAggregates puts back what DeleteWorkout took out of the profile. It runs even if ctx is already done.
func (c *Client) restoreAggregates(ctx context.Context, w *domain.Workout, volume float64, cause error) error {
	restoreErr := c.call(context.WithoutCancel(ctx), "restore_user_aggregates", func(ctx context.Context) error {
		return c.profiles.AddAggregates(ctx, w.UserID, volume, 1)
	})
	if restoreErr == nil {
		log.Warnf("remote: delete workout %s failed, aggregates restored: %s", w.ID.Hex(), cause)
		return cause
	}

	if c.metrics != nil {
		c.metrics.CounterWorkoutPartialWrites.Inc()
	}
	log.Errorf("remote: delete workout %s failed, restoring aggregates failed too: %s", w.ID.Hex(), restoreErr)
	return &domain.PartialWriteError{Op: "delete", WorkoutID: w.ID.Hex(), Step: "delete", Err: cause, CompensationErr: restoreErr}
}

// FetchVolumeByDay returns one row per day with logged volume, from since up to now.
func (c *Client) FetchVolumeByDay(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]domain.DailyVolume, error) {
	var rows []domain.DailyVolume
	err := c.call(ctx, "fetch_volume", func(ctx context.Context) (err error) {
		rows, err = c.workouts.DailyVolume(ctx, userID, since)
		return err
	})
	return rows, err
}

func (c *Client) GetProfile(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	var profile *domain.Profile
	err := c.call(ctx, "get_profile", func(ctx context.Context) (err error) {
		profile, err = c.profiles.GetByUserID(ctx, userID)
		return err
	})
	return profile, err
}

func (c *Client) UpdateProfile(ctx context.Context, userID primitive.ObjectID, update domain.ProfileUpdate) (*domain.Profile, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	var profile *domain.Profile
	err := c.call(ctx, "update_profile", func(ctx context.Context) (err error) {
		profile, err = c.profiles.Update(ctx, userID, update)
		return err
	})
	return profile, err
}

func (c *Client) ListEquipment(ctx context.Context) ([]domain.Equipment, error) {
	var equipment []domain.Equipment
	err := c.call(ctx, "list_equipment", func(ctx context.Context) (err error) {
		equipment, err = c.equipment.List(ctx)
		return err
	})
	return equipment, err
}

func (c *Client) ListExercises(ctx context.Context, userID primitive.ObjectID, filter repository.ExerciseFilter) ([]domain.Exercise, error) {
	var exercises []domain.Exercise
	err := c.call(ctx, "list_exercises", func(ctx context.Context) (err error) {
		exercises, err = c.exercises.List(ctx, userID, filter)
		return err
	})
	return exercises, err
}

func (c *Client) GetExercise(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	var exercise *domain.Exercise
	err := c.call(ctx, "get_exercise", func(ctx context.Context) (err error) {
		exercise, err = c.exercises.GetByID(ctx, id)
		return err
	})
	return exercise, err
}

func (c *Client) CreateUserExercise(ctx context.Context, exercise *domain.Exercise) (*domain.Exercise, error) {
	err := c.call(ctx, "create_exercise", func(ctx context.Context) error {
		_, err := c.exercises.Create(ctx, exercise)
		return err
	})
	if err != nil {
		return nil, err
	}
	return exercise, nil
}

func (c *Client) UpdateUserExercise(ctx context.Context, exercise *domain.Exercise) error {
	return c.call(ctx, "update_exercise", func(ctx context.Context) error {
		return c.exercises.Update(ctx, exercise)
	})
}

func (c *Client) DeleteUserExercise(ctx context.Context, id, ownerID primitive.ObjectID) error {
	return c.call(ctx, "delete_exercise", func(ctx context.Context) error {
		return c.exercises.Delete(ctx, id, ownerID)
	})
}
