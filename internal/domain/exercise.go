// internal/domain/exercise.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Capabilities decide which measurable fields a set of this exercise exposes.
type Capabilities struct {
	UsesReps     bool `bson:"usesReps" json:"usesReps"`
	UsesWeight   bool `bson:"usesWeight" json:"usesWeight"`
	UsesDuration bool `bson:"usesDuration" json:"usesDuration"`
	UsesDistance bool `bson:"usesDistance" json:"usesDistance"`
}

// Exercise represents a single exercise definition in the library.
// Predefined exercises have no owner and are read-only reference data.
type Exercise struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OwnerID         *primitive.ObjectID `bson:"ownerId,omitempty" json:"ownerId,omitempty"` // nil for predefined exercises
	Name            string              `bson:"name" json:"name"`
	PrimaryMuscle   string              `bson:"primaryMuscle,omitempty" json:"primaryMuscle,omitempty"`     // e.g., "Chest", "Legs", "Back"
	SecondaryMuscle string              `bson:"secondaryMuscle,omitempty" json:"secondaryMuscle,omitempty"` // Optional
	Category        string              `bson:"category,omitempty" json:"category,omitempty"`               // e.g., "Strength", "Cardio"
	EquipmentID     *primitive.ObjectID `bson:"equipmentId,omitempty" json:"equipmentId,omitempty"`
	Capabilities    Capabilities        `bson:"capabilities" json:"capabilities"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (e *Exercise) IsPredefined() bool {
	return e.OwnerID == nil
}

// Ref returns the reference a workout uses to point at this exercise.
func (e *Exercise) Ref() ExerciseRef {
	if e.IsPredefined() {
		return Predefined(e.ID)
	}
	return UserDefined(e.ID)
}

// Equipment is immutable reference data (barbell, dumbbell, treadmill...).
type Equipment struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Category string             `bson:"category,omitempty" json:"category,omitempty"`
}
