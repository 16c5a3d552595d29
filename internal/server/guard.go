package server

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"time"

	"dotchat/internal/proto"
	"dotchat/internal/storage"
)

// sessionValidity is how long a fresh session key stays usable.
const sessionValidity = 24 * time.Hour

// checkSession validates a bearer token and returns the owning user.
// Handlers never touch raw session state; every authenticated command
// goes through here.
func (h *handler) checkSession(ctx context.Context, token int32) (storage.User, error) {
	invalid := func() error {
		return proto.Errorf("Token '%d' is invalid or has expired. Please log-in again.", token)
	}

	sess, err := h.store.SessionByKey(ctx, token)
	if errors.Is(err, storage.ErrSessionNotExist) {
		return storage.User{}, invalid()
	}
	if err != nil {
		return storage.User{}, err
	}
	if sess.ValidUntil < storage.MonoNow() {
		return storage.User{}, invalid()
	}

	return h.store.UserByID(ctx, sess.UserID)
}

// newSessionKey draws random 32-bit keys until one does not collide
// with a live session, persists it with the standard validity and
// returns it. Zero is reserved for "no token" and never handed out.
func (h *handler) newSessionKey(ctx context.Context, userID int32) (int32, error) {
	for {
		key, err := randomKey()
		if err != nil {
			return 0, err
		}
		if key == 0 {
			continue
		}

		existing, err := h.store.SessionByKey(ctx, key)
		if err == nil && existing.ValidUntil >= storage.MonoNow() {
			// live collision, draw again
			continue
		}
		if err != nil && !errors.Is(err, storage.ErrSessionNotExist) {
			return 0, err
		}

		validUntil := storage.MonoNow() + sessionValidity.Nanoseconds()
		if err := h.store.CreateSession(ctx, key, userID, validUntil); err != nil {
			return 0, err
		}
		return key, nil
	}
}

func randomKey() (int32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}
