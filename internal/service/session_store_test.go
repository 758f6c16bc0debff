package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randSequence hands out the given strings in order.
func randSequence(values ...string) func(int) (string, error) {
	i := 0
	return func(int) (string, error) {
		if i >= len(values) {
			return "", fmt.Errorf("random sequence exhausted after %d values", len(values))
		}
		v := values[i]
		i++
		return v, nil
	}
}

func sessionPayload(t *testing.T, userID, secret string, createdAt time.Time) []byte {
	t.Helper()
	payload, err := json.Marshal(LoginSession{UserID: userID, Secret: secret, CreatedAt: createdAt})
	require.NoError(t, err)
	return payload
}

func TestSessionStore_CreateGetDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewSessionStore(db, time.Hour)
	store.RandStringFunc = randSequence("sid-1", "secret-1")
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	payload := sessionPayload(t, "u1", "secret-1", now)

	mock.ExpectSet(sessionKeyPrefix+"sid-1", payload, time.Hour).SetVal("OK")
	sessionID, refreshToken, err := store.Create(context.Background(), "u1", now)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", sessionID)
	assert.Equal(t, "sid-1.secret-1", refreshToken)

	mock.ExpectGet(sessionKeyPrefix + "sid-1").SetVal(string(payload))
	session, err := store.Get(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.True(t, now.Equal(session.CreatedAt))

	mock.ExpectDel(sessionKeyPrefix + "sid-1").SetVal(1)
	require.NoError(t, store.Delete(context.Background(), "sid-1"))

	mock.ExpectGet(sessionKeyPrefix + "sid-1").RedisNil()
	_, err = store.Get(context.Background(), "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_Rotate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewSessionStore(db, time.Hour)
	store.RandStringFunc = randSequence("secret-2")
	createdAt := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	now := createdAt.Add(time.Minute)

	mock.ExpectGet(sessionKeyPrefix + "sid-1").SetVal(string(sessionPayload(t, "u1", "secret-1", createdAt)))
	mock.ExpectSet(sessionKeyPrefix+"sid-1", sessionPayload(t, "u1", "secret-2", now), time.Hour).SetVal("OK")

	sessionID, userID, next, err := store.Rotate(context.Background(), "sid-1.secret-1", now)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", sessionID)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "sid-1.secret-2", next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_RotateRejectsStaleSecret(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	store := NewSessionStore(db, time.Hour)

	mock.ExpectGet(sessionKeyPrefix + "sid-1").SetVal(string(sessionPayload(t, "u1", "secret-2", time.Now())))
	_, _, _, err := store.Rotate(context.Background(), "sid-1.secret-1", time.Now())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, _, _, err = store.Rotate(context.Background(), "no-separator", time.Now())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_RedisErrorPassesThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	store := NewSessionStore(db, time.Hour)

	mock.ExpectGet(sessionKeyPrefix + "sid-1").SetErr(errors.New("connection refused"))
	_, err := store.Get(context.Background(), "sid-1")
	assert.EqualError(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_MarkLinkUsed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()
	store := NewSessionStore(db, time.Hour)

	mock.ExpectSetNX(usedLinkKeyPrefix+"jti-1", 1, 15*time.Minute).SetVal(true)
	mock.ExpectSetNX(usedLinkKeyPrefix+"jti-1", 1, 15*time.Minute).SetVal(false)

	fresh, err := store.MarkLinkUsed(context.Background(), "jti-1", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)
	fresh, err = store.MarkLinkUsed(context.Background(), "jti-1", 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}
