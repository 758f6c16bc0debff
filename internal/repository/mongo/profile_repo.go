package mongo

import (
	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const profileCollectionName = "profiles"

// mongoProfileRepository implements repository.ProfileRepository.
// Profiles are keyed by the user's ID.
type mongoProfileRepository struct {
	collection *mongo.Collection
}

func NewMongoProfileRepository(db *mongo.Database) repository.ProfileRepository {
	return &mongoProfileRepository{
		collection: db.Collection(profileCollectionName),
	}
}

func (r *mongoProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	if profile.UserID == primitive.NilObjectID {
		return errors.New("profile requires a user ID")
	}
	profile.UpdatedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, profile); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoProfileRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// Update sets only the fields present in update and returns the stored result.
// The aggregate counters are never touched here.
func (r *mongoProfileRepository) Update(ctx context.Context, userID primitive.ObjectID, update domain.ProfileUpdate) (*domain.Profile, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.DisplayName != nil {
		set["displayName"] = *update.DisplayName
	}
	if update.Age != nil {
		set["age"] = *update.Age
	}
	if update.Gender != nil {
		set["gender"] = *update.Gender
	}
	if update.HeightCm != nil {
		set["heightCm"] = *update.HeightCm
	}
	if update.WeightKg != nil {
		set["weightKg"] = *update.WeightKg
	}
	if update.UnitPreference != nil {
		set["unitPreference"] = *update.UnitPreference
	}
	if update.Theme != nil {
		set["theme"] = *update.Theme
	}
	if update.AvatarKey != nil {
		set["avatarKey"] = *update.AvatarKey
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var profile domain.Profile
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// AddAggregates increments the running totals. Negative deltas are used on delete,
// after which the totals are clamped at zero.
func (r *mongoProfileRepository) AddAggregates(ctx context.Context, userID primitive.ObjectID, volumeDelta float64, workoutsDelta int) error {
	update := bson.M{
		"$inc": bson.M{
			"totalVolume":   volumeDelta,
			"totalWorkouts": workoutsDelta,
		},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}

	if volumeDelta < 0 || workoutsDelta < 0 {
		clamp := mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"totalVolume":   bson.M{"$max": bson.A{"$totalVolume", 0}},
				"totalWorkouts": bson.M{"$max": bson.A{"$totalWorkouts", 0}},
			}}},
		}
		if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, clamp); err != nil {
			return err
		}
	}
	return nil
}
