package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account that can sign in. Email must be confirmed before password sign-in works.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email          string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash   string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	EmailConfirmed bool               `bson:"emailConfirmed" json:"emailConfirmed"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Session is what a successful sign-in, refresh or link verification hands back.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         *User     `json:"user"`
}

// UnitPreference switches the UI between kg/km and lb/mi.
type UnitPreference string

const (
	UnitsMetric   UnitPreference = "metric"
	UnitsImperial UnitPreference = "imperial"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Profile is one-to-one with a user. TotalVolume and TotalWorkouts are maintained by the store.
type Profile struct {
	UserID         primitive.ObjectID `bson:"_id" json:"userId"`
	DisplayName    string             `bson:"displayName" json:"displayName"`
	Age            *int               `bson:"age,omitempty" json:"age,omitempty"`
	Gender         *string            `bson:"gender,omitempty" json:"gender,omitempty"`
	HeightCm       *float64           `bson:"heightCm,omitempty" json:"heightCm,omitempty"`
	WeightKg       *float64           `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	UnitPreference UnitPreference     `bson:"unitPreference" json:"unitPreference"`
	Theme          Theme              `bson:"theme" json:"theme"`
	AvatarKey      string             `bson:"avatarKey,omitempty" json:"-"`
	TotalVolume    float64            `bson:"totalVolume" json:"totalVolume"`
	TotalWorkouts  int                `bson:"totalWorkouts" json:"totalWorkouts"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewProfile returns the profile created alongside a freshly signed-up user.
func NewProfile(userID primitive.ObjectID, displayName string) *Profile {
	return &Profile{
		UserID:         userID,
		DisplayName:    displayName,
		UnitPreference: UnitsMetric,
		Theme:          ThemeSystem,
	}
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName    *string         `json:"displayName"`
	Age            *int            `json:"age"`
	Gender         *string         `json:"gender"`
	HeightCm       *float64        `json:"heightCm"`
	WeightKg       *float64        `json:"weightKg"`
	UnitPreference *UnitPreference `json:"unitPreference"`
	Theme          *Theme          `json:"theme"`
	AvatarKey      *string         `json:"-"`
}

func (u ProfileUpdate) Validate() error {
	if u.DisplayName != nil && *u.DisplayName == "" {
		return &ValidationError{Field: "displayName", Message: "display name cannot be empty"}
	}
	if u.Age != nil && (*u.Age < 0 || *u.Age > 150) {
		return &ValidationError{Field: "age", Message: "age must be between 0 and 150"}
	}
	if u.HeightCm != nil && *u.HeightCm <= 0 {
		return &ValidationError{Field: "heightCm", Message: "height must be positive"}
	}
	if u.WeightKg != nil && *u.WeightKg <= 0 {
		return &ValidationError{Field: "weightKg", Message: "weight must be positive"}
	}
	if u.UnitPreference != nil && *u.UnitPreference != UnitsMetric && *u.UnitPreference != UnitsImperial {
		return &ValidationError{Field: "unitPreference", Message: "unit preference must be metric or imperial"}
	}
	if u.Theme != nil {
		switch *u.Theme {
		case ThemeLight, ThemeDark, ThemeSystem:
		default:
			return &ValidationError{Field: "theme", Message: "theme must be light, dark or system"}
		}
	}
	return nil
}

// Apply returns a copy of p with the update applied.
func (u ProfileUpdate) Apply(p Profile) Profile {
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.Age != nil {
		p.Age = u.Age
	}
	if u.Gender != nil {
		p.Gender = u.Gender
	}
	if u.HeightCm != nil {
		p.HeightCm = u.HeightCm
	}
	if u.WeightKg != nil {
		p.WeightKg = u.WeightKg
	}
	if u.UnitPreference != nil {
		p.UnitPreference = *u.UnitPreference
	}
	if u.Theme != nil {
		p.Theme = *u.Theme
	}
	if u.AvatarKey != nil {
		p.AvatarKey = *u.AvatarKey
	}
	return p
}
