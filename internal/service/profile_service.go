package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/cache"
	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/storage"
)

var (
	ErrStorageUnavailable = errors.New("file storage is not configured")
	ErrUploadURLError     = errors.New("could not generate upload URL")
	ErrUploadNotFound     = errors.New("uploaded file not found")
)

var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ProfileView is a profile as shown to its owner.
type ProfileView struct {
	domain.Profile
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type AvatarUpload struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

type ProfileService interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*ProfileView, error)
	Update(ctx context.Context, userID primitive.ObjectID, update domain.ProfileUpdate) (*ProfileView, error)
	AvatarUploadURL(ctx context.Context, userID primitive.ObjectID, contentType string) (*AvatarUpload, error)
	// ConfirmAvatar points the profile at an object uploaded through AvatarUploadURL.
	ConfirmAvatar(ctx context.Context, userID primitive.ObjectID, objectKey string) (*ProfileView, error)
}

type profileService struct {
	store       ProfileStore
	cache       *cache.Store
	fileStorage storage.FileStorage
}

// NewProfileService builds the service. fileStorage may be nil, which disables avatars.
func NewProfileService(store ProfileStore, cacheStore *cache.Store, fileStorage storage.FileStorage) ProfileService {
	return &profileService{store: store, cache: cacheStore, fileStorage: fileStorage}
}

func profileKey(userID primitive.ObjectID) cache.Key {
	return cache.NewKey(kindProfile, userID.Hex())
}

func (s *profileService) load(ctx context.Context, userID primitive.ObjectID) (domain.Profile, error) {
	return cache.Fetch(ctx, s.cache, profileKey(userID), func(ctx context.Context) (domain.Profile, error) {
		p, err := s.store.GetProfile(ctx, userID)
		if err != nil {
			return domain.Profile{}, err
		}
		return *p, nil
	})
}

func (s *profileService) Get(ctx context.Context, userID primitive.ObjectID) (*ProfileView, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, p), nil
}

func (s *profileService) Update(ctx context.Context, userID primitive.ObjectID, update domain.ProfileUpdate) (*ProfileView, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	var saved domain.Profile
	err := s.cache.Mutate(ctx, cache.Mutation{
		Family: family(kindProfile, userID),
		Update: func(key cache.Key, current any) (any, bool) {
			p, ok := current.(domain.Profile)
			if !ok || key != profileKey(userID) {
				return nil, false
			}
			return update.Apply(p), true
		},
		Write: func(ctx context.Context) error {
			p, err := s.store.UpdateProfile(ctx, userID, update)
			if err != nil {
				return err
			}
			saved = *p
			s.cache.Set(profileKey(userID), saved)
			return nil
		},
	}, cache.MutateOptions{Optimistic: true})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, saved), nil
}

func (s *profileService) AvatarUploadURL(ctx context.Context, userID primitive.ObjectID, contentType string) (*AvatarUpload, error) {
	if s.fileStorage == nil {
		return nil, ErrStorageUnavailable
	}
	ext, ok := avatarExtensions[strings.ToLower(contentType)]
	if !ok {
		return nil, &domain.ValidationError{Field: "contentType", Message: "avatar must be a jpeg, png or webp image"}
	}

	objectKey := path.Join(avatarPrefix(userID), fmt.Sprintf("%s.%s", uuid.NewString(), ext))
	uploadURL, err := s.fileStorage.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		log.Errorf("profile service: presign avatar upload for %s: %s", userID.Hex(), err)
		return nil, ErrUploadURLError
	}
	return &AvatarUpload{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

func (s *profileService) ConfirmAvatar(ctx context.Context, userID primitive.ObjectID, objectKey string) (*ProfileView, error) {
	if s.fileStorage == nil {
		return nil, ErrStorageUnavailable
	}
	if !strings.HasPrefix(objectKey, avatarPrefix(userID)+"/") {
		return nil, &domain.ValidationError{Field: "objectKey", Message: "object key does not belong to this user"}
	}
	exists, err := s.fileStorage.ObjectExists(ctx, objectKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUploadNotFound
	}

	previous, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	view, err := s.Update(ctx, userID, domain.ProfileUpdate{AvatarKey: &objectKey})
	if err != nil {
		return nil, err
	}

	if previous.AvatarKey != "" && previous.AvatarKey != objectKey {
		if err := s.fileStorage.DeleteObject(ctx, previous.AvatarKey); err != nil {
			log.Warnf("profile service: delete old avatar %s: %s", previous.AvatarKey, err)
		}
	}
	return view, nil
}

func (s *profileService) view(ctx context.Context, p domain.Profile) *ProfileView {
	v := &ProfileView{Profile: p}
	if p.AvatarKey == "" || s.fileStorage == nil {
		return v
	}
	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, p.AvatarKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		log.Warnf("profile service: presign avatar of %s: %s", p.UserID.Hex(), err)
		return v
	}
	v.AvatarURL = url
	return v
}

func avatarPrefix(userID primitive.ObjectID) string {
	return path.Join("avatars", userID.Hex())
}
