package library

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ours334/player/internal/models"
	"github.com/ours334/player/internal/shared"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for password hashes, stored as scrypt$<hexsalt>$<hexkey>.
const (
	scryptN       = 16384
	scryptR       = 8
	scryptP       = 1
	scryptSaltLen = 16
	scryptKeyLen  = 64
)

// sessionTokenBytes is the entropy of a raw session token.
const sessionTokenBytes = 32

// HashPassword derives an scrypt hash in the stored format.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is required", shared.ErrInvalidInput)
	}

	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}
	return fmt.Sprintf("scrypt$%s$%s", hex.EncodeToString(salt), hex.EncodeToString(key)), nil
}

// VerifyPassword checks a password against a stored hash in constant time.
// Malformed hashes verify as false, never as an error a caller might leak.
func VerifyPassword(password, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 3 || parts[0] != "scrypt" {
		return false
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[2])
	if err != nil {
		return false
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, len(expected))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, expected) == 1
}

// NewSessionToken returns a fresh raw token and its stored hash.
func NewSessionToken() (raw, hash string, err error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashSessionToken(raw), nil
}

// HashSessionToken maps a raw token to the hash the stores persist.
func HashSessionToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RegisterUser creates an account on the primary backend and mirrors it to
// the secondary by account upsert.
func (l *Library) RegisterUser(ctx context.Context, account, password, role string) (*models.User, error) {
	if models.NormalizeAccount(account) == "" {
		return nil, fmt.Errorf("%w: account is required", shared.ErrInvalidInput)
	}
	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	role = models.NormalizeRole(role)

	var user *models.User
	if l.remotePrimary() {
		user, err = l.remoteCreateUser(ctx, account, passwordHash, role)
		if err != nil {
			return nil, err
		}
		l.enqueueMirror("mirror user to local", func(ctx context.Context) error {
			_, err := l.local.UpsertUserByAccount(user.Account, passwordHash, user.Role)
			return err
		})
		return user, nil
	}

	user, err = l.local.CreateUser(account, passwordHash, role)
	if err != nil {
		return nil, err
	}
	if l.remoteEnabled() {
		l.enqueueMirror("mirror user to remote", func(ctx context.Context) error {
			existing, err := l.remoteUserByAccount(ctx, user.Account)
			if err != nil {
				return err
			}
			if existing != nil {
				return nil
			}
			_, err = l.remoteCreateUser(ctx, user.Account, passwordHash, user.Role)
			return err
		})
	}
	return user, nil
}

// userByAccount reads from the primary backend.
func (l *Library) userByAccount(ctx context.Context, account string) (*models.User, error) {
	if l.remotePrimary() {
		return l.remoteUserByAccount(ctx, account)
	}
	return l.local.UserByAccount(account)
}

// Login verifies credentials and opens a session. It returns the user and
// the raw token the transport layer hands to the client; both stores only
// ever see the hash.
func (l *Library) Login(ctx context.Context, account, password string) (*models.User, string, error) {
	user, err := l.userByAccount(ctx, account)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !user.IsActive || !VerifyPassword(password, user.PasswordHash) {
		// One failure path for a missing account and a wrong password.
		return nil, "", fmt.Errorf("%w: invalid credentials", shared.ErrNotFound)
	}

	raw, hash, err := NewSessionToken()
	if err != nil {
		return nil, "", err
	}
	expiresAt := models.FormatTime(time.Now().Add(l.sessionTTL))

	if l.remotePrimary() {
		if err := l.remoteCreateSession(ctx, user.ID, hash, expiresAt); err != nil {
			return nil, "", err
		}
		l.enqueueMirror("mirror session to local", func(ctx context.Context) error {
			return l.local.CreateSession(user.ID, hash, expiresAt)
		})
	} else {
		if err := l.local.CreateSession(user.ID, hash, expiresAt); err != nil {
			return nil, "", err
		}
		if l.remoteEnabled() {
			l.enqueueMirror("mirror session to remote", func(ctx context.Context) error {
				return l.remoteCreateSession(ctx, user.ID, hash, expiresAt)
			})
		}
	}
	return user, raw, nil
}

// Logout deletes the session behind a raw token on both backends. A blank or
// unknown token is a no-op.
func (l *Library) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := HashSessionToken(rawToken)

	if l.remotePrimary() {
		if err := l.remoteDeleteSession(ctx, hash); err != nil {
			return err
		}
		l.enqueueMirror("mirror session delete to local", func(ctx context.Context) error {
			return l.local.DeleteSession(hash)
		})
		return nil
	}

	if err := l.local.DeleteSession(hash); err != nil {
		return err
	}
	if l.remoteEnabled() {
		l.enqueueMirror("mirror session delete to remote", func(ctx context.Context) error {
			return l.remoteDeleteSession(ctx, hash)
		})
	}
	return nil
}

// ResolveSession maps a raw token to its user, or nil when the session is
// absent, expired or owned by an inactive account.
func (l *Library) ResolveSession(ctx context.Context, rawToken string) (*models.SessionUser, error) {
	if rawToken == "" {
		return nil, nil
	}
	hash := HashSessionToken(rawToken)
	now := models.NowISO()

	if l.remotePrimary() {
		return l.remoteResolveSession(ctx, hash, now)
	}
	return l.local.SessionUserByTokenHash(hash, now)
}
