// internal/repository/mongo/workout_repo.go
package mongo

import (
	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	workoutCollectionName         = "workouts"
	workoutExerciseCollectionName = "workout_exercises"
	workoutSetCollectionName      = "workout_sets"
)

// workoutExerciseDoc is the stored form of a domain.WorkoutExercise. Exactly one
// of the two exercise keys is set.
type workoutExerciseDoc struct {
	ID                   primitive.ObjectID  `bson:"_id"`
	WorkoutID            primitive.ObjectID  `bson:"workoutId"`
	UserID               primitive.ObjectID  `bson:"userId"`
	PredefinedExerciseID *primitive.ObjectID `bson:"predefinedExerciseId,omitempty"`
	UserExerciseID       *primitive.ObjectID `bson:"userExerciseId,omitempty"`
	Name                 string              `bson:"name"`
	OrderIndex           int                 `bson:"orderIndex"`
}

// workoutSetDoc carries the owner and workout date so the daily volume
// aggregation runs over one collection.
type workoutSetDoc struct {
	ID                primitive.ObjectID `bson:"_id"`
	WorkoutExerciseID primitive.ObjectID `bson:"workoutExerciseId"`
	WorkoutID         primitive.ObjectID `bson:"workoutId"`
	UserID            primitive.ObjectID `bson:"userId"`
	WorkoutDate       time.Time          `bson:"workoutDate"`
	domain.Set        `bson:",inline"`
}

// mongoWorkoutRepository implements repository.WorkoutRepository
type mongoWorkoutRepository struct {
	workouts  *mongo.Collection
	exercises *mongo.Collection
	sets      *mongo.Collection
}

// NewMongoWorkoutRepository creates a new Workout repository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		workouts:  db.Collection(workoutCollectionName),
		exercises: db.Collection(workoutExerciseCollectionName),
		sets:      db.Collection(workoutSetCollectionName),
	}
}

// InsertWorkout writes the workout row only.
func (r *mongoWorkoutRepository) InsertWorkout(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.UserID == primitive.NilObjectID || workout.WorkoutDate.IsZero() {
		return primitive.NilObjectID, errors.New("workout requires userId and workoutDate")
	}
	workout.ID = primitive.NewObjectID()
	workout.WorkoutDate = domain.DateOnly(workout.WorkoutDate)
	workout.CreatedAt = time.Now().UTC()

	result, err := r.workouts.InsertOne(ctx, workout)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted workout ID")
	}
	return insertedID, nil
}

func (r *mongoWorkoutRepository) InsertExercise(ctx context.Context, userID primitive.ObjectID, exercise *domain.WorkoutExercise) (primitive.ObjectID, error) {
	predefined, user := exercise.Ref.Columns()
	if predefined == nil && user == nil {
		return primitive.NilObjectID, errors.New("workout exercise requires an exercise reference")
	}
	doc := workoutExerciseDoc{
		ID:                   primitive.NewObjectID(),
		WorkoutID:            exercise.WorkoutID,
		UserID:               userID,
		PredefinedExerciseID: predefined,
		UserExerciseID:       user,
		Name:                 exercise.Name,
		OrderIndex:           exercise.OrderIndex,
	}
	if _, err := r.exercises.InsertOne(ctx, doc); err != nil {
		return primitive.NilObjectID, err
	}
	exercise.ID = doc.ID
	return doc.ID, nil
}

// InsertSets writes every set of one workout exercise in a single InsertMany.
func (r *mongoWorkoutRepository) InsertSets(ctx context.Context, userID primitive.ObjectID, workoutDate time.Time, exercise *domain.WorkoutExercise) error {
	if len(exercise.Sets) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(exercise.Sets))
	for _, s := range exercise.Sets {
		docs = append(docs, workoutSetDoc{
			ID:                primitive.NewObjectID(),
			WorkoutExerciseID: exercise.ID,
			WorkoutID:         exercise.WorkoutID,
			UserID:            userID,
			WorkoutDate:       domain.DateOnly(workoutDate),
			Set:               s,
		})
	}
	_, err := r.sets.InsertMany(ctx, docs)
	return err
}

func (r *mongoWorkoutRepository) GetByID(ctx context.Context, userID, id primitive.ObjectID) (*domain.Workout, error) {
	var workout domain.Workout
	err := r.workouts.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&workout)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	list := []domain.Workout{workout}
	if err := r.populate(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListByUser sorts by workout date, then creation time, both descending.
func (r *mongoWorkoutRepository) ListByUser(ctx context.Context, userID primitive.ObjectID, offset, limit int) ([]domain.Workout, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "workoutDate", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.workouts.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	workouts := []domain.Workout{}
	if err = cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	if err := r.populate(ctx, workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// populate attaches exercises and sets to the given workouts with one query per child collection.
func (r *mongoWorkoutRepository) populate(ctx context.Context, workouts []domain.Workout) error {
	if len(workouts) == 0 {
		return nil
	}
	workoutIDs := make([]primitive.ObjectID, len(workouts))
	byWorkout := make(map[primitive.ObjectID]int, len(workouts))
	for i, w := range workouts {
		workoutIDs[i] = w.ID
		byWorkout[w.ID] = i
		workouts[i].Exercises = []domain.WorkoutExercise{}
	}

	exCursor, err := r.exercises.Find(ctx,
		bson.M{"workoutId": bson.M{"$in": workoutIDs}},
		options.Find().SetSort(bson.D{{Key: "orderIndex", Value: 1}}))
	if err != nil {
		return err
	}
	var exDocs []workoutExerciseDoc
	if err := exCursor.All(ctx, &exDocs); err != nil {
		return err
	}

	setCursor, err := r.sets.Find(ctx,
		bson.M{"workoutId": bson.M{"$in": workoutIDs}},
		options.Find().SetSort(bson.D{{Key: "setNumber", Value: 1}}))
	if err != nil {
		return err
	}
	var setDocs []workoutSetDoc
	if err := setCursor.All(ctx, &setDocs); err != nil {
		return err
	}
	setsByExercise := make(map[primitive.ObjectID][]domain.Set)
	for _, s := range setDocs {
		setsByExercise[s.WorkoutExerciseID] = append(setsByExercise[s.WorkoutExerciseID], s.Set)
	}

	for _, d := range exDocs {
		ref, err := domain.RefFromColumns(d.PredefinedExerciseID, d.UserExerciseID)
		if err != nil {
			return fmt.Errorf("workout exercise %s: %w", d.ID.Hex(), err)
		}
		sets := setsByExercise[d.ID]
		if sets == nil {
			sets = []domain.Set{}
		}
		i := byWorkout[d.WorkoutID]
		workouts[i].Exercises = append(workouts[i].Exercises, domain.WorkoutExercise{
			ID:         d.ID,
			WorkoutID:  d.WorkoutID,
			Ref:        ref,
			Name:       d.Name,
			OrderIndex: d.OrderIndex,
			Sets:       sets,
		})
	}
	return nil
}

// Delete removes the workout row first so a half-finished delete never leaves a visible workout.
func (r *mongoWorkoutRepository) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	if id == primitive.NilObjectID || userID == primitive.NilObjectID {
		return errors.New("workout ID and user ID are required for delete")
	}

	result, err := r.workouts.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}

	children := bson.M{"workoutId": id, "userId": userID}
	if _, err := r.sets.DeleteMany(ctx, children); err != nil {
		return err
	}
	if _, err := r.exercises.DeleteMany(ctx, children); err != nil {
		return err
	}
	return nil
}

// DailyVolume groups the user's sets by workout date and sums reps x weight,
// treating missing values as zero.
func (r *mongoWorkoutRepository) DailyVolume(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]domain.DailyVolume, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"userId":      userID,
			"workoutDate": bson.M{"$gte": domain.DateOnly(since)},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$workoutDate"}},
			"volume": bson.M{"$sum": bson.M{"$multiply": bson.A{
				bson.M{"$ifNull": bson.A{"$reps", 0}},
				bson.M{"$ifNull": bson.A{"$weightKg", 0}},
			}}},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := r.sets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rows := []domain.DailyVolume{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// EnsureWorkoutIndexes creates necessary indexes. Call during startup.
func EnsureWorkoutIndexes(ctx context.Context, db *mongo.Database) {
	all := map[*mongo.Collection][]mongo.IndexModel{
		db.Collection(workoutCollectionName): {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "workoutDate", Value: -1}, {Key: "createdAt", Value: -1}}},
		},
		db.Collection(workoutExerciseCollectionName): {
			{Keys: bson.D{{Key: "workoutId", Value: 1}, {Key: "orderIndex", Value: 1}}},
		},
		db.Collection(workoutSetCollectionName): {
			{Keys: bson.D{{Key: "workoutId", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "workoutDate", Value: 1}}},
		},
	}
	for collection, indexes := range all {
		if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
			log.Warnf("failed to create indexes for collection %s: %s", collection.Name(), err)
		}
	}
}
