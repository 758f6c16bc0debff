package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/cache"
	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/draft"
)

// DraftService keeps the user's in-progress workout. Actions of one user are applied in order.
type DraftService interface {
	Get(ctx context.Context, userID primitive.ObjectID) (draft.State, error)
	Dispatch(ctx context.Context, userID primitive.ObjectID, action draft.Action) (draft.State, error)
	Discard(ctx context.Context, userID primitive.ObjectID) error
}

type draftService struct {
	drafts  draft.Store
	catalog CatalogStore
	cache   *cache.Store
}

func NewDraftService(drafts draft.Store, catalog CatalogStore, cacheStore *cache.Store) DraftService {
	return &draftService{drafts: drafts, catalog: catalog, cache: cacheStore}
}

func draftKey(userID primitive.ObjectID) cache.Key {
	return cache.NewKey(kindDraft, userID.Hex())
}

func (s *draftService) Get(ctx context.Context, userID primitive.ObjectID) (draft.State, error) {
	return cache.Fetch(ctx, s.cache, draftKey(userID), func(ctx context.Context) (draft.State, error) {
		return s.drafts.Load(ctx, userID.Hex())
	})
}

func (s *draftService) Dispatch(ctx context.Context, userID primitive.ObjectID, action draft.Action) (draft.State, error) {
	if err := s.resolve(ctx, userID, &action); err != nil {
		return draft.State{}, err
	}

	var next draft.State
	err := s.cache.Mutate(ctx, cache.Mutation{
		Family: family(kindDraft, userID),
		Write: func(ctx context.Context) error {
			current, err := s.drafts.Load(ctx, userID.Hex())
			if err != nil {
				return err
			}
			if next, err = draft.Reduce(current, action); err != nil {
				return err
			}
			if err := s.drafts.Save(ctx, userID.Hex(), next); err != nil {
				return err
			}
			s.cache.Set(draftKey(userID), next)
			return nil
		},
	}, cache.MutateOptions{})
	if err != nil {
		return draft.State{}, err
	}
	return next, nil
}

func (s *draftService) Discard(ctx context.Context, userID primitive.ObjectID) error {
	return s.cache.Mutate(ctx, cache.Mutation{
		Family: family(kindDraft, userID),
		Write: func(ctx context.Context) error {
			if err := s.drafts.Clear(ctx, userID.Hex()); err != nil {
				return err
			}
			s.cache.Set(draftKey(userID), draft.Empty())
			return nil
		},
	}, cache.MutateOptions{})
}

// resolve replaces the name and capabilities the client sent for each exercise
// with the catalogue's, and rejects exercises the user cannot see.
func (s *draftService) resolve(ctx context.Context, userID primitive.ObjectID, action *draft.Action) error {
	fill := func(ex *draft.ExerciseDraft) error {
		if ex.Ref.IsZero() {
			return &domain.ValidationError{Field: "exercise", Message: "exercise reference is required"}
		}
		found, err := s.catalog.GetExercise(ctx, ex.Ref.ID())
		if err != nil {
			if domain.IsNotFound(err) {
				return ErrExerciseNotFound
			}
			return err
		}
		if found.Ref() != ex.Ref || !visibleTo(found, userID) {
			return ErrExerciseNotFound
		}
		ex.Name = found.Name
		ex.Capabilities = found.Capabilities
		return nil
	}

	for i := range action.Exercises {
		if err := fill(&action.Exercises[i]); err != nil {
			return err
		}
	}
	if action.Exercise != nil {
		ex := *action.Exercise
		if err := fill(&ex); err != nil {
			return err
		}
		action.Exercise = &ex
	}
	return nil
}

func visibleTo(ex *domain.Exercise, userID primitive.ObjectID) bool {
	return ex.IsPredefined() || *ex.OwnerID == userID
}
