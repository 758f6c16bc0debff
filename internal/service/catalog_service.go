package service

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/cache"
	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/repository"
)

var (
	ErrExerciseNotFound     = errors.New("exercise not found")
	ErrExerciseAccessDenied = errors.New("access denied to modify or delete this exercise")
)

// ExerciseInput is what a user supplies for one of their own exercises.
type ExerciseInput struct {
	Name            string              `json:"name" binding:"required"`
	PrimaryMuscle   string              `json:"primaryMuscle"`
	SecondaryMuscle string              `json:"secondaryMuscle"`
	Category        string              `json:"category"`
	EquipmentID     *primitive.ObjectID `json:"equipmentId"`
	Capabilities    domain.Capabilities `json:"capabilities"`
}

func (in ExerciseInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &domain.ValidationError{Field: "name", Message: "name is required"}
	}
	c := in.Capabilities
	if !c.UsesReps && !c.UsesWeight && !c.UsesDuration && !c.UsesDistance {
		return &domain.ValidationError{Field: "capabilities", Message: "at least one of reps, weight, duration or distance must be tracked"}
	}
	return nil
}

// CatalogService serves equipment and exercises: the predefined catalogue plus each user's own.
type CatalogService interface {
	ListEquipment(ctx context.Context) ([]domain.Equipment, error)
	ListExercises(ctx context.Context, userID primitive.ObjectID, filter repository.ExerciseFilter) ([]domain.Exercise, error)
	GetExercise(ctx context.Context, userID, exerciseID primitive.ObjectID) (*domain.Exercise, error)
	CreateExercise(ctx context.Context, userID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error)
	UpdateExercise(ctx context.Context, userID, exerciseID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error)
	DeleteExercise(ctx context.Context, userID, exerciseID primitive.ObjectID) error
}

type catalogService struct {
	store CatalogStore
	cache *cache.Store
}

func NewCatalogService(store CatalogStore, cacheStore *cache.Store) CatalogService {
	return &catalogService{store: store, cache: cacheStore}
}

func (s *catalogService) ListEquipment(ctx context.Context) ([]domain.Equipment, error) {
	return cache.Fetch(ctx, s.cache, cache.NewKey(kindEquipment, globalOwner), s.store.ListEquipment)
}

func (s *catalogService) ListExercises(ctx context.Context, userID primitive.ObjectID, filter repository.ExerciseFilter) ([]domain.Exercise, error) {
	equipment := ""
	if filter.EquipmentID != nil {
		equipment = filter.EquipmentID.Hex()
	}
	key := cache.NewKey(kindExercises, userID.Hex(), filter.Category, filter.PrimaryMuscle, equipment, filter.Search)
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]domain.Exercise, error) {
		return s.store.ListExercises(ctx, userID, filter)
	})
}

func (s *catalogService) GetExercise(ctx context.Context, userID, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	// another user's exercise is reported as missing
	if !visibleTo(exercise, userID) {
		return nil, ErrExerciseNotFound
	}
	return exercise, nil
}

func (s *catalogService) CreateExercise(ctx context.Context, userID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	owner := userID
	exercise := &domain.Exercise{OwnerID: &owner}
	in.applyTo(exercise)

	created, err := s.store.CreateUserExercise(ctx, exercise)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(cache.FamilyMatch(family(kindExercises, userID)))
	return created, nil
}

func (s *catalogService) UpdateExercise(ctx context.Context, userID, exerciseID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	existing, err := s.owned(ctx, userID, exerciseID)
	if err != nil {
		return nil, err
	}
	in.applyTo(existing)

	if err := s.store.UpdateUserExercise(ctx, existing); err != nil {
		if domain.IsNotFound(err) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	s.cache.Invalidate(cache.FamilyMatch(family(kindExercises, userID)))
	return existing, nil
}

func (s *catalogService) DeleteExercise(ctx context.Context, userID, exerciseID primitive.ObjectID) error {
	if _, err := s.owned(ctx, userID, exerciseID); err != nil {
		return err
	}
	if err := s.store.DeleteUserExercise(ctx, exerciseID, userID); err != nil {
		if domain.IsNotFound(err) {
			return ErrExerciseNotFound
		}
		return err
	}
	s.cache.Invalidate(cache.FamilyMatch(family(kindExercises, userID)))
	return nil
}

// owned loads an exercise the user may change. Predefined exercises are read-only.
func (s *catalogService) owned(ctx context.Context, userID, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := s.GetExercise(ctx, userID, exerciseID)
	if err != nil {
		return nil, err
	}
	if exercise.IsPredefined() {
		return nil, ErrExerciseAccessDenied
	}
	return exercise, nil
}

func (in ExerciseInput) applyTo(e *domain.Exercise) {
	e.Name = strings.TrimSpace(in.Name)
	e.PrimaryMuscle = in.PrimaryMuscle
	e.SecondaryMuscle = in.SecondaryMuscle
	e.Category = in.Category
	e.EquipmentID = in.EquipmentID
	e.Capabilities = in.Capabilities
}
