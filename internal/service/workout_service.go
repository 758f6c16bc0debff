package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/cache"
	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/draft"
	"alcyxob/fittrack/internal/volume"
)

var (
	ErrWorkoutPending = errors.New("workout is still being saved")
)

// Page is one page of workout history.
type Page struct {
	Workouts  []domain.WorkoutSummary `json:"workouts"`
	PageIndex int                     `json:"page"`
	IsLast    bool                    `json:"isLast"`
}

type SaveWorkoutRequest struct {
	WorkoutDate time.Time
	Name        string
	Notes       string
}

type WorkoutService interface {
	ListPage(ctx context.Context, userID primitive.ObjectID, pageIndex int) (*Page, error)
	History(userID primitive.ObjectID) *HistoryPager
	// SaveWorkout persists the user's current draft and clears it.
	SaveWorkout(ctx context.Context, userID primitive.ObjectID, req SaveWorkoutRequest) (*domain.WorkoutSummary, error)
	DeleteWorkout(ctx context.Context, userID primitive.ObjectID, workoutID string) error
	Volume(ctx context.Context, userID primitive.ObjectID, r volume.Range, today time.Time) ([]volume.Bucket, error)
}

type workoutService struct {
	store     WorkoutStore
	cache     *cache.Store
	drafts    draft.Store
	formatter volume.Formatter
	now       func() time.Time
}

func NewWorkoutService(store WorkoutStore, cacheStore *cache.Store, drafts draft.Store, formatter volume.Formatter) WorkoutService {
	return &workoutService{
		store:     store,
		cache:     cacheStore,
		drafts:    drafts,
		formatter: formatter,
		now:       time.Now,
	}
}

func (s *workoutService) ListPage(ctx context.Context, userID primitive.ObjectID, pageIndex int) (*Page, error) {
	if pageIndex < 0 {
		return nil, &domain.ValidationError{Field: "page", Message: "page must not be negative"}
	}
	rows, err := cache.Fetch(ctx, s.cache, workoutsPageKey(userID, pageIndex),
		func(ctx context.Context) ([]domain.WorkoutSummary, error) {
			return s.store.FetchWorkoutsPage(ctx, userID, pageIndex, cache.PageSize)
		})
	if err != nil {
		return nil, err
	}
	return &Page{
		Workouts:  rows,
		PageIndex: pageIndex,
		IsLast:    cache.IsLastPage(len(rows), cache.PageSize),
	}, nil
}

func (s *workoutService) History(userID primitive.ObjectID) *HistoryPager {
	return &HistoryPager{svc: s, userID: userID}
}

// SaveWorkout holds the user's draft queue for the whole save, so draft actions sent
// meanwhile apply to the cleared draft and a second save finds nothing to save.
func (s *workoutService) SaveWorkout(ctx context.Context, userID primitive.ObjectID, req SaveWorkoutRequest) (*domain.WorkoutSummary, error) {
	if req.WorkoutDate.IsZero() {
		req.WorkoutDate = s.now()
	}

	var saved *domain.Workout
	err := s.cache.Mutate(ctx, cache.Mutation{
		Family: family(kindDraft, userID),
		Write: func(ctx context.Context) error {
			state, err := s.drafts.Load(ctx, userID.Hex())
			if err != nil {
				return err
			}
			if err := draft.Saveable(state); err != nil {
				return err
			}
			if saved, err = s.saveDraft(ctx, userID, draft.ToWorkout(state, userID, req.WorkoutDate, req.Name, req.Notes)); err != nil {
				return err
			}

			if err := s.drafts.Clear(ctx, userID.Hex()); err != nil {
				log.Warnf("workout service: clear draft of %s after save: %s", userID.Hex(), err)
			}
			s.cache.Invalidate(cache.FamilyMatch(family(kindDraft, userID)))
			return nil
		},
	}, cache.MutateOptions{})
	if err != nil {
		return nil, err
	}

	summary := domain.Summarize(saved)
	return &summary, nil
}

// saveDraft writes the workout with a pending row on the first history page until the store confirms it.
func (s *workoutService) saveDraft(ctx context.Context, userID primitive.ObjectID, workout *domain.Workout) (*domain.Workout, error) {
	pending := domain.Summarize(workout)
	pending.ID = domain.NewTempID()
	pending.CreatedAt = s.now().UTC()
	pending.Pending = true
	firstPage := workoutsPageKey(userID, 0)

	var saved *domain.Workout
	err := s.cache.Mutate(ctx, cache.Mutation{
		Family: family(kindWorkouts, userID),
		Update: func(key cache.Key, current any) (any, bool) {
			rows, ok := current.([]domain.WorkoutSummary)
			if !ok || key != firstPage {
				return nil, false
			}
			next := make([]domain.WorkoutSummary, 0, len(rows)+1)
			next = append(next, pending)
			return append(next, rows...), true
		},
		Write: func(ctx context.Context) (err error) {
			saved, err = s.store.SaveWorkout(ctx, workout)
			return err
		},
	}, cache.MutateOptions{Optimistic: true, Revalidate: true})
	if err != nil {
		return nil, err
	}
	s.invalidateAggregates(userID)
	return saved, nil
}

func (s *workoutService) DeleteWorkout(ctx context.Context, userID primitive.ObjectID, workoutID string) error {
	if domain.IsTempID(workoutID) {
		return ErrWorkoutPending
	}
	id, err := parseID("id", workoutID)
	if err != nil {
		return err
	}

	err = s.cache.Mutate(ctx, cache.Mutation{
		Family: family(kindWorkouts, userID),
		Update: func(key cache.Key, current any) (any, bool) {
			rows, ok := current.([]domain.WorkoutSummary)
			if !ok {
				return nil, false
			}
			for i, row := range rows {
				if row.ID == workoutID {
					next := make([]domain.WorkoutSummary, 0, len(rows)-1)
					next = append(next, rows[:i]...)
					return append(next, rows[i+1:]...), true
				}
			}
			return nil, false
		},
		Write: func(ctx context.Context) error {
			return s.store.DeleteWorkout(ctx, userID, id)
		},
	}, cache.MutateOptions{Optimistic: true, Revalidate: true})
	var partial *domain.PartialWriteError
	if errors.As(err, &partial) {
		// the row is still there but the profile totals are not
		s.invalidateAggregates(userID)
	}
	if err != nil {
		return err
	}

	s.invalidateAggregates(userID)
	return nil
}

// invalidateAggregates drops everything derived from the workout list.
func (s *workoutService) invalidateAggregates(userID primitive.ObjectID) {
	s.cache.Invalidate(cache.FamilyMatch(family(kindProfile, userID)))
	s.cache.Invalidate(cache.FamilyMatch(family(kindVolume, userID)))
}

func (s *workoutService) Volume(ctx context.Context, userID primitive.ObjectID, r volume.Range, today time.Time) ([]volume.Bucket, error) {
	since, err := s.formatter.WindowStart(r, today)
	if err != nil {
		return nil, err
	}
	key := cache.NewKey(kindVolume, userID.Hex(), r, domain.DateOnly(today).Format("2006-01-02"))
	rows, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]domain.DailyVolume, error) {
		return s.store.FetchVolumeByDay(ctx, userID, since)
	})
	if err != nil {
		return nil, err
	}
	return s.formatter.Format(rows, r, today)
}

// HistoryPager walks the workout history one page at a time. It stops after a short
// page, and after a full page when the page behind it turns out to be empty.
type HistoryPager struct {
	svc    *workoutService
	userID primitive.ObjectID
	next   int
	ahead  *Page
	done   bool
}

// Next returns the next page, or nil once the history is exhausted. An empty history has no pages.
func (p *HistoryPager) Next(ctx context.Context) (*Page, error) {
	if p.done {
		return nil, nil
	}
	page := p.ahead
	p.ahead = nil
	if page == nil {
		var err error
		if page, err = p.svc.ListPage(ctx, p.userID, p.next); err != nil {
			return nil, err
		}
	}
	p.next++
	if p.next == 1 && len(page.Workouts) == 0 {
		p.done = true
		return nil, nil
	}
	if page.IsLast {
		p.done = true
		return page, nil
	}

	// a failed look-ahead is retried by the following Next
	if ahead, err := p.svc.ListPage(ctx, p.userID, p.next); err == nil {
		if len(ahead.Workouts) == 0 {
			p.done = true
			page.IsLast = true
		} else {
			p.ahead = ahead
		}
	}
	return page, nil
}

func (p *HistoryPager) Done() bool {
	return p.done
}
