// Package memory is an in-process implementation of the repository interfaces.
// It backs unit tests and local runs without MongoDB, and can be told to fail or
// hang on any operation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/repository"
)

type Store struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]domain.User
	profiles  map[primitive.ObjectID]domain.Profile
	exercises map[primitive.ObjectID]domain.Exercise
	equipment []domain.Equipment
	workouts  map[primitive.ObjectID]*workoutRow
	seq       int

	failures map[string]error
	passes   map[string]int
	hangs    map[string]bool
	calls    []string
}

type workoutRow struct {
	workout domain.Workout
	seq     int
}

func New() *Store {
	return &Store{
		users:     make(map[primitive.ObjectID]domain.User),
		profiles:  make(map[primitive.ObjectID]domain.Profile),
		exercises: make(map[primitive.ObjectID]domain.Exercise),
		workouts:  make(map[primitive.ObjectID]*workoutRow),
		failures:  make(map[string]error),
		hangs:     make(map[string]bool),
		passes:    make(map[string]int),
	}
}

// FailOn makes every later call of op (e.g. "workouts.InsertSets") return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// FailAfter is FailOn that lets the next n calls of op through first.
func (s *Store) FailAfter(op string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
	s.passes[op] = n
}

// HangOn makes op block until its context is done.
func (s *Store) HangOn(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hangs[op] = true
}

// Calls lists the operations invoked so far, in order.
func (s *Store) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.calls...)
}

func (s *Store) before(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	err := s.failures[op]
	if err != nil && s.passes[op] > 0 {
		s.passes[op]--
		err = nil
	}
	hang := s.hangs[op]
	s.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// SeedEquipment and SeedExercises load reference data.
func (s *Store) SeedEquipment(items ...domain.Equipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range items {
		if e.ID.IsZero() {
			e.ID = primitive.NewObjectID()
		}
		s.equipment = append(s.equipment, e)
	}
}

func (s *Store) SeedExercises(items ...domain.Exercise) []domain.Exercise {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Exercise, 0, len(items))
	for _, e := range items {
		if e.ID.IsZero() {
			e.ID = primitive.NewObjectID()
		}
		s.exercises[e.ID] = e
		out = append(out, e)
	}
	return out
}

// WorkoutCount is the number of workout rows of a user, partial ones included.
func (s *Store) WorkoutCount(userID primitive.ObjectID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.workouts {
		if row.workout.UserID == userID {
			n++
		}
	}
	return n
}

func (s *Store) Users() repository.UserRepository          { return userRepo{s} }
func (s *Store) Profiles() repository.ProfileRepository    { return profileRepo{s} }
func (s *Store) Exercises() repository.ExerciseRepository  { return exerciseRepo{s} }
func (s *Store) Equipment() repository.EquipmentRepository { return equipmentRepo{s} }
func (s *Store) Workouts() repository.WorkoutRepository    { return workoutRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if err := r.s.before(ctx, "users.Create"); err != nil {
		return primitive.NilObjectID, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email := strings.ToLower(user.Email)
	for _, u := range r.s.users {
		if u.Email == email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.Email = email
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := r.s.before(ctx, "users.GetByEmail"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == strings.ToLower(email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	if err := r.s.before(ctx, "users.GetByID"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) ConfirmEmail(ctx context.Context, id primitive.ObjectID) error {
	if err := r.s.before(ctx, "users.ConfirmEmail"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.EmailConfirmed = true
	r.s.users[id] = u
	return nil
}

func (r userRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := r.s.before(ctx, "users.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

type profileRepo struct{ s *Store }

func (r profileRepo) Create(ctx context.Context, profile *domain.Profile) error {
	if err := r.s.before(ctx, "profiles.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[profile.UserID]; ok {
		return repository.ErrDuplicate
	}
	profile.UpdatedAt = time.Now().UTC()
	r.s.profiles[profile.UserID] = *profile
	return nil
}

func (r profileRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	if err := r.s.before(ctx, "profiles.GetByUserID"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r profileRepo) Update(ctx context.Context, userID primitive.ObjectID, update domain.ProfileUpdate) (*domain.Profile, error) {
	if err := r.s.before(ctx, "profiles.Update"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = update.Apply(p)
	p.UpdatedAt = time.Now().UTC()
	r.s.profiles[userID] = p
	return &p, nil
}

func (r profileRepo) AddAggregates(ctx context.Context, userID primitive.ObjectID, volumeDelta float64, workoutsDelta int) error {
	if err := r.s.before(ctx, "profiles.AddAggregates"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	p.TotalVolume = max(p.TotalVolume+volumeDelta, 0)
	p.TotalWorkouts = max(p.TotalWorkouts+workoutsDelta, 0)
	r.s.profiles[userID] = p
	return nil
}

type equipmentRepo struct{ s *Store }

func (r equipmentRepo) List(ctx context.Context) ([]domain.Equipment, error) {
	if err := r.s.before(ctx, "equipment.List"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := append([]domain.Equipment{}, r.s.equipment...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type exerciseRepo struct{ s *Store }

func (r exerciseRepo) Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	if err := r.s.before(ctx, "exercises.Create"); err != nil {
		return primitive.NilObjectID, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	exercise.ID = primitive.NewObjectID()
	exercise.CreatedAt = time.Now().UTC()
	exercise.UpdatedAt = exercise.CreatedAt
	r.s.exercises[exercise.ID] = *exercise
	return exercise.ID, nil
}

func (r exerciseRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	if err := r.s.before(ctx, "exercises.GetByID"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r exerciseRepo) List(ctx context.Context, ownerID primitive.ObjectID, f repository.ExerciseFilter) ([]domain.Exercise, error) {
	if err := r.s.before(ctx, "exercises.List"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Exercise{}
	for _, e := range r.s.exercises {
		if e.OwnerID != nil && *e.OwnerID != ownerID {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.PrimaryMuscle != "" && e.PrimaryMuscle != f.PrimaryMuscle {
			continue
		}
		if f.EquipmentID != nil && (e.EquipmentID == nil || *e.EquipmentID != *f.EquipmentID) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r exerciseRepo) Update(ctx context.Context, exercise *domain.Exercise) error {
	if err := r.s.before(ctx, "exercises.Update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.exercises[exercise.ID]
	if !ok || existing.OwnerID == nil || exercise.OwnerID == nil || *existing.OwnerID != *exercise.OwnerID {
		return repository.ErrNotFound
	}
	exercise.CreatedAt = existing.CreatedAt
	exercise.UpdatedAt = time.Now().UTC()
	r.s.exercises[exercise.ID] = *exercise
	return nil
}

func (r exerciseRepo) Delete(ctx context.Context, id primitive.ObjectID, ownerID primitive.ObjectID) error {
	if err := r.s.before(ctx, "exercises.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.exercises[id]
	if !ok || existing.OwnerID == nil || *existing.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.s.exercises, id)
	return nil
}

type workoutRepo struct{ s *Store }

func (r workoutRepo) InsertWorkout(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if err := r.s.before(ctx, "workouts.InsertWorkout"); err != nil {
		return primitive.NilObjectID, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	workout.ID = primitive.NewObjectID()
	workout.WorkoutDate = domain.DateOnly(workout.WorkoutDate)
	workout.CreatedAt = time.Now().UTC()
	stored := *workout
	stored.Exercises = []domain.WorkoutExercise{}
	r.s.seq++
	r.s.workouts[workout.ID] = &workoutRow{workout: stored, seq: r.s.seq}
	return workout.ID, nil
}

func (r workoutRepo) InsertExercise(ctx context.Context, userID primitive.ObjectID, exercise *domain.WorkoutExercise) (primitive.ObjectID, error) {
	if err := r.s.before(ctx, "workouts.InsertExercise"); err != nil {
		return primitive.NilObjectID, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.workouts[exercise.WorkoutID]
	if !ok || row.workout.UserID != userID {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	exercise.ID = primitive.NewObjectID()
	stored := *exercise
	stored.Sets = []domain.Set{}
	row.workout.Exercises = append(row.workout.Exercises, stored)
	return exercise.ID, nil
}

func (r workoutRepo) InsertSets(ctx context.Context, userID primitive.ObjectID, workoutDate time.Time, exercise *domain.WorkoutExercise) error {
	if err := r.s.before(ctx, "workouts.InsertSets"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.workouts[exercise.WorkoutID]
	if !ok || row.workout.UserID != userID {
		return repository.ErrNotFound
	}
	for i := range row.workout.Exercises {
		if row.workout.Exercises[i].ID == exercise.ID {
			row.workout.Exercises[i].Sets = append(row.workout.Exercises[i].Sets, exercise.Sets...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r workoutRepo) GetByID(ctx context.Context, userID, id primitive.ObjectID) (*domain.Workout, error) {
	if err := r.s.before(ctx, "workouts.GetByID"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.workouts[id]
	if !ok || row.workout.UserID != userID {
		return nil, repository.ErrNotFound
	}
	w := cloneWorkout(row.workout)
	return &w, nil
}

func (r workoutRepo) ListByUser(ctx context.Context, userID primitive.ObjectID, offset, limit int) ([]domain.Workout, error) {
	if err := r.s.before(ctx, "workouts.ListByUser"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []*workoutRow
	for _, row := range r.s.workouts {
		if row.workout.UserID == userID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].workout, rows[j].workout
		if !a.WorkoutDate.Equal(b.WorkoutDate) {
			return a.WorkoutDate.After(b.WorkoutDate)
		}
		return rows[i].seq > rows[j].seq
	})

	out := []domain.Workout{}
	for i := offset; i < len(rows) && i < offset+limit; i++ {
		out = append(out, cloneWorkout(rows[i].workout))
	}
	return out, nil
}

func (r workoutRepo) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	if err := r.s.before(ctx, "workouts.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.workouts[id]
	if !ok || row.workout.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.s.workouts, id)
	return nil
}

func (r workoutRepo) DailyVolume(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]domain.DailyVolume, error) {
	if err := r.s.before(ctx, "workouts.DailyVolume"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	since = domain.DateOnly(since)
	byDay := make(map[string]float64)
	for _, row := range r.s.workouts {
		w := row.workout
		if w.UserID != userID || w.WorkoutDate.Before(since) {
			continue
		}
		byDay[w.WorkoutDate.Format("2006-01-02")] += w.TotalVolume()
	}
	out := make([]domain.DailyVolume, 0, len(byDay))
	for day, v := range byDay {
		out = append(out, domain.DailyVolume{Date: day, Volume: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func cloneWorkout(w domain.Workout) domain.Workout {
	exercises := make([]domain.WorkoutExercise, len(w.Exercises))
	for i, ex := range w.Exercises {
		ex.Sets = append([]domain.Set{}, ex.Sets...)
		exercises[i] = ex
	}
	w.Exercises = exercises
	return w
}
