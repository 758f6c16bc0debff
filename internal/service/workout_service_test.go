package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/draft"
	"alcyxob/fittrack/internal/volume"
)

func peekPage(t *testing.T, fx *fixture, page int) []domain.WorkoutSummary {
	t.Helper()
	v, ok := fx.cache.Peek(workoutsPageKey(fx.userID, page))
	require.True(t, ok, "page %d is not cached", page)
	return v.([]domain.WorkoutSummary)
}

func TestSaveWorkout_OptimisticEntryThenServerIDs(t *testing.T) {
	fx := newFixture(t)
	gated := newGatedStore(fx.client)
	fx.useWorkoutStore(gated)
	ctx := context.Background()

	fx.draftWith(t, 10, 50)
	page, err := fx.workouts.ListPage(ctx, fx.userID, 0)
	require.NoError(t, err)
	require.Empty(t, page.Workouts)

	type result struct {
		summary *domain.WorkoutSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := fx.workouts.SaveWorkout(ctx, fx.userID, SaveWorkoutRequest{Name: "Push day"})
		done <- result{s, err}
	}()

	<-gated.entered
	pending := peekPage(t, fx, 0)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Pending)
	assert.True(t, domain.IsTempID(pending[0].ID))
	assert.Equal(t, 500.0, pending[0].TotalVolume)
	assert.Equal(t, "Push day", pending[0].Name)

	// reads during the save serve the optimistic page
	page, err = fx.workouts.ListPage(ctx, fx.userID, 0)
	require.NoError(t, err)
	assert.Equal(t, pending, page.Workouts)

	close(gated.release)
	res := <-done
	require.NoError(t, res.err)
	assert.False(t, domain.IsTempID(res.summary.ID))
	assert.Equal(t, 500.0, res.summary.TotalVolume)

	confirmed := peekPage(t, fx, 0)
	require.Len(t, confirmed, 1)
	assert.False(t, confirmed[0].Pending)
	assert.Equal(t, res.summary.ID, confirmed[0].ID)
	assert.Equal(t, 500.0, confirmed[0].TotalVolume)

	state, err := fx.draft.Get(ctx, fx.userID)
	require.NoError(t, err)
	assert.Empty(t, state.Exercises)
}

func TestSaveWorkout_RollsBackOnFailure(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.saveWorkouts(t, 2, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	before, err := fx.workouts.ListPage(ctx, fx.userID, 0)
	require.NoError(t, err)
	require.Len(t, before.Workouts, 2)

	fx.draftWith(t, 8, 60)
	fx.store.FailOn("workouts.InsertSets", errors.New("disk full"))
	_, err = fx.workouts.SaveWorkout(ctx, fx.userID, SaveWorkoutRequest{})

	var partial *domain.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, before.Workouts, peekPage(t, fx, 0))

	// the draft survives a failed save
	state, err := fx.draft.Get(ctx, fx.userID)
	require.NoError(t, err)
	assert.Len(t, state.Exercises, 1)
}

func TestSaveWorkout_DraftActionsDuringSaveSurvive(t *testing.T) {
	fx := newFixture(t)
	gated := newGatedStore(fx.client)
	fx.useWorkoutStore(gated)
	ctx := context.Background()
	fx.draftWith(t, 10, 50)

	saveDone := make(chan error, 1)
	go func() {
		_, err := fx.workouts.SaveWorkout(ctx, fx.userID, SaveWorkoutRequest{})
		saveDone <- err
	}()
	<-gated.entered

	dispatchDone := make(chan error, 1)
	go func() {
		_, err := fx.draft.Dispatch(ctx, fx.userID, draft.Action{
			Type:      draft.ActionAddExercises,
			Exercises: []draft.ExerciseDraft{{Ref: fx.run.Ref()}},
		})
		dispatchDone <- err
	}()

	select {
	case err := <-dispatchDone:
		t.Fatalf("dispatch finished while the save was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.release)
	require.NoError(t, <-saveDone)
	require.NoError(t, <-dispatchDone)

	page, err := fx.workouts.ListPage(ctx, fx.userID, 0)
	require.NoError(t, err)
	require.Len(t, page.Workouts, 1)
	assert.Equal(t, 1, page.Workouts[0].ExerciseCount)

	state, err := fx.draft.Get(ctx, fx.userID)
	require.NoError(t, err)
	require.Len(t, state.Exercises, 1)
	assert.Equal(t, fx.run.Ref(), state.Exercises[0].Ref)
}

func TestSaveWorkout_ConcurrentSavesWriteOnce(t *testing.T) {
	fx := newFixture(t)
	gated := newGatedStore(fx.client)
	fx.useWorkoutStore(gated)
	ctx := context.Background()
	fx.draftWith(t, 10, 50)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := fx.workouts.SaveWorkout(ctx, fx.userID, SaveWorkoutRequest{})
			results <- err
		}()
	}
	<-gated.entered
	close(gated.release)

	var validationErr *domain.ValidationError
	errs := []error{<-results, <-results}
	var failed int
	for _, err := range errs {
		if err != nil {
			require.ErrorAs(t, err, &validationErr)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, fx.store.WorkoutCount(fx.userID))
}

func TestSaveWorkout_RejectsUnsaveableDraft(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.workouts.SaveWorkout(ctx, fx.userID, SaveWorkoutRequest{})
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = fx.draft.Dispatch(ctx, fx.userID, draft.Action{
		Type:      draft.ActionAddExercises,
		Exercises: []draft.ExerciseDraft{{Ref: fx.bench.Ref()}},
	})
	require.NoError(t, err)
	_, err = fx.workouts.SaveWorkout(ctx, fx.userID, SaveWorkoutRequest{})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "exercises[0].sets[0].reps", validationErr.Field)
	assert.Zero(t, fx.store.WorkoutCount(fx.userID))
}

func TestSaveWorkout_DraftClearFailureIsNotFatal(t *testing.T) {
	fx := newFixture(t)
	fx.draftWith(t, 5, 20)
	fx.drafts.clearErr = errors.New("redis down")

	summary, err := fx.workouts.SaveWorkout(context.Background(), fx.userID, SaveWorkoutRequest{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, summary.TotalVolume)
	assert.Equal(t, 1, fx.store.WorkoutCount(fx.userID))
}

func TestDeleteWorkout_MissingOnServerRollsBackInPlace(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.saveWorkouts(t, 3, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	before, err := fx.workouts.ListPage(ctx, fx.userID, 0)
	require.NoError(t, err)
	require.Len(t, before.Workouts, 3)
	victim := before.Workouts[1]

	// gone on the server, still in the cache
	victimID, err := primitive.ObjectIDFromHex(victim.ID)
	require.NoError(t, err)
	require.NoError(t, fx.store.Workouts().Delete(ctx, fx.userID, victimID))

	gated := newGatedStore(fx.client)
	fx.useWorkoutStore(gated)
	done := make(chan error, 1)
	go func() {
		done <- fx.workouts.DeleteWorkout(ctx, fx.userID, victim.ID)
	}()

	<-gated.entered
	during := peekPage(t, fx, 0)
	require.Len(t, during, 2)
	assert.NotContains(t, during, victim)

	close(gated.release)
	err = <-done
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, before.Workouts, peekPage(t, fx, 0))
}

func TestDeleteWorkout_FailedAggregatesKeepWorkoutEverywhere(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.saveWorkouts(t, 2, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	before, err := fx.workouts.ListPage(ctx, fx.userID, 0)
	require.NoError(t, err)
	require.Len(t, before.Workouts, 2)

	fx.store.FailOn("profiles.AddAggregates", errors.New("aggregates down"))
	err = fx.workouts.DeleteWorkout(ctx, fx.userID, before.Workouts[0].ID)
	require.Error(t, err)
	fx.store.FailOn("profiles.AddAggregates", nil)

	assert.Equal(t, before.Workouts, peekPage(t, fx, 0))
	assert.Equal(t, 2, fx.store.WorkoutCount(fx.userID))
	profile, err := fx.client.GetProfile(ctx, fx.userID)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.TotalWorkouts)
	assert.Equal(t, 1000.0, profile.TotalVolume)

	// a retry succeeds once the store recovers
	require.NoError(t, fx.workouts.DeleteWorkout(ctx, fx.userID, before.Workouts[0].ID))
	profile, err = fx.client.GetProfile(ctx, fx.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.TotalWorkouts)
	assert.Equal(t, 500.0, profile.TotalVolume)
}

func TestDeleteWorkout(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.saveWorkouts(t, 2, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	page, err := fx.workouts.ListPage(ctx, fx.userID, 0)
	require.NoError(t, err)
	require.NoError(t, fx.workouts.DeleteWorkout(ctx, fx.userID, page.Workouts[0].ID))

	after := peekPage(t, fx, 0)
	require.Len(t, after, 1)
	assert.Equal(t, page.Workouts[1].ID, after[0].ID)
	assert.Equal(t, 1, fx.store.WorkoutCount(fx.userID))
}

func TestDeleteWorkout_RejectsPendingAndMalformedIDs(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, fx.workouts.DeleteWorkout(ctx, fx.userID, domain.NewTempID()), ErrWorkoutPending)

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, fx.workouts.DeleteWorkout(ctx, fx.userID, "nope"), &validationErr)
	assert.Empty(t, fx.store.Calls()[1:])
}

func TestHistoryPager(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		total int
		sizes []int
	}{
		{"empty", 0, nil},
		{"short tail", 23, []int{10, 10, 3}},
		{"exact multiple", 20, []int{10, 10}},
		{"single page", 7, []int{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			ctx := context.Background()
			fx.saveWorkouts(t, tt.total, start)

			pager := fx.workouts.History(fx.userID)
			var sizes []int
			for {
				page, err := pager.Next(ctx)
				require.NoError(t, err)
				if page == nil {
					break
				}
				sizes = append(sizes, len(page.Workouts))
			}
			assert.Equal(t, tt.sizes, sizes)
			assert.True(t, pager.Done())

			page, err := pager.Next(ctx)
			require.NoError(t, err)
			assert.Nil(t, page)
		})
	}
}

func TestListPage_NegativeIndex(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.workouts.ListPage(context.Background(), fx.userID, -1)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestVolume(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	today := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	fx.saveWorkouts(t, 2, today.AddDate(0, 0, -1))

	buckets, err := fx.workouts.Volume(ctx, fx.userID, volume.Range7Days, today)
	require.NoError(t, err)
	require.Len(t, buckets, 7)
	assert.Equal(t, 500.0, buckets[5].Volume)
	assert.Equal(t, 500.0, buckets[6].Volume)

	// saving a workout drops the cached series
	fx.saveWorkouts(t, 1, today)
	buckets, err = fx.workouts.Volume(ctx, fx.userID, volume.Range7Days, today)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, buckets[6].Volume)

	_, err = fx.workouts.Volume(ctx, fx.userID, volume.Range("forever"), today)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
