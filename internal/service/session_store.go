package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultRefreshTTL = 30 * 24 * time.Hour
	sessionKeyPrefix  = "fittrack||session||"
	usedLinkKeyPrefix = "fittrack||used-link||"
)

var ErrSessionNotFound = errors.New("session not found")

// LoginSession is what Redis holds for one signed-in device.
type LoginSession struct {
	UserID    string    `json:"uid"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStore keeps refresh sessions. A refresh token is "<sessionID>.<secret>".
type SessionStore struct {
	redisClient *redis.Client
	ttl         time.Duration
	// ability to inject random string generator func for tokens (for unit testing)
	RandStringFunc func(s int) (string, error)
}

func NewSessionStore(redisClient *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	return &SessionStore{
		redisClient:    redisClient,
		ttl:            ttl,
		RandStringFunc: generateRandomString,
	}
}

// Create starts a session and returns its ID and refresh token.
func (ss *SessionStore) Create(ctx context.Context, userID string, createdAt time.Time) (sessionID, refreshToken string, err error) {
	if sessionID, err = ss.RandStringFunc(18); err != nil {
		return "", "", err
	}
	refreshToken, err = ss.put(ctx, sessionID, userID, createdAt)
	return sessionID, refreshToken, err
}

func (ss *SessionStore) put(ctx context.Context, sessionID, userID string, createdAt time.Time) (string, error) {
	secret, err := ss.RandStringFunc(32)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(LoginSession{UserID: userID, Secret: secret, CreatedAt: createdAt})
	if err != nil {
		return "", err
	}
	if err := ss.redisClient.Set(ctx, sessionKeyPrefix+sessionID, payload, ss.ttl).Err(); err != nil {
		return "", err
	}
	return sessionID + "." + secret, nil
}

// Get returns the live session with the given ID.
func (ss *SessionStore) Get(ctx context.Context, sessionID string) (*LoginSession, error) {
	raw, err := ss.redisClient.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var session LoginSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Rotate checks a refresh token and replaces its secret, so every refresh token works once.
func (ss *SessionStore) Rotate(ctx context.Context, refreshToken string, now time.Time) (sessionID, userID, next string, err error) {
	sessionID, secret, ok := strings.Cut(refreshToken, ".")
	if !ok || sessionID == "" || secret == "" {
		return "", "", "", ErrSessionNotFound
	}
	session, err := ss.Get(ctx, sessionID)
	if err != nil {
		return "", "", "", err
	}
	if subtle.ConstantTimeCompare([]byte(session.Secret), []byte(secret)) != 1 {
		return "", "", "", ErrSessionNotFound
	}
	next, err = ss.put(ctx, sessionID, session.UserID, now)
	return sessionID, session.UserID, next, err
}

func (ss *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return ss.redisClient.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// MarkLinkUsed records a one-time link token ID. It reports false if the ID was already used.
func (ss *SessionStore) MarkLinkUsed(ctx context.Context, linkID string, ttl time.Duration) (bool, error) {
	return ss.redisClient.SetNX(ctx, usedLinkKeyPrefix+linkID, 1, ttl).Result()
}

func generateRandomString(s int) (string, error) {
	b := make([]byte, s)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
