package domain

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefKind tells which exercise library an ExerciseRef points into.
type RefKind string

const (
	RefPredefined  RefKind = "predefined"
	RefUserDefined RefKind = "user"
)

// ExerciseRef points at exactly one exercise, either predefined or user authored.
// The zero value points at nothing and is rejected wherever a reference is required.
type ExerciseRef struct {
	kind RefKind
	id   primitive.ObjectID
}

func Predefined(id primitive.ObjectID) ExerciseRef {
	return ExerciseRef{kind: RefPredefined, id: id}
}

func UserDefined(id primitive.ObjectID) ExerciseRef {
	return ExerciseRef{kind: RefUserDefined, id: id}
}

func (r ExerciseRef) Kind() RefKind          { return r.kind }
func (r ExerciseRef) ID() primitive.ObjectID { return r.id }

func (r ExerciseRef) IsZero() bool {
	return r.kind == "" || r.id == primitive.NilObjectID
}

// String is stable and used as the key of a draft selection.
func (r ExerciseRef) String() string {
	if r.IsZero() {
		return ""
	}
	return string(r.kind) + ":" + r.id.Hex()
}

// Columns splits the reference into the two exclusive foreign keys stored in a row.
func (r ExerciseRef) Columns() (predefined, user *primitive.ObjectID) {
	id := r.id
	switch r.kind {
	case RefPredefined:
		return &id, nil
	case RefUserDefined:
		return nil, &id
	}
	return nil, nil
}

// RefFromColumns rebuilds a reference from a stored row, enforcing that exactly one key is set.
func RefFromColumns(predefined, user *primitive.ObjectID) (ExerciseRef, error) {
	switch {
	case predefined != nil && user != nil:
		return ExerciseRef{}, fmt.Errorf("exercise reference has both predefined and user keys")
	case predefined != nil:
		return Predefined(*predefined), nil
	case user != nil:
		return UserDefined(*user), nil
	}
	return ExerciseRef{}, fmt.Errorf("exercise reference has neither predefined nor user key")
}

type exerciseRefJSON struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

func (r ExerciseRef) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(exerciseRefJSON{Kind: r.kind, ID: r.id.Hex()})
}

func (r *ExerciseRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ExerciseRef{}
		return nil
	}
	var raw exerciseRefJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(raw.ID)
	if err != nil {
		return &ValidationError{Field: "exercise.id", Message: "invalid exercise id"}
	}
	switch raw.Kind {
	case RefPredefined:
		*r = Predefined(id)
	case RefUserDefined:
		*r = UserDefined(id)
	default:
		return &ValidationError{Field: "exercise.kind", Message: fmt.Sprintf("unknown exercise kind %q", raw.Kind)}
	}
	return nil
}
