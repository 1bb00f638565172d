package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/AdityaUmale/note-taking/internal/db"
	"github.com/AdityaUmale/note-taking/internal/errs"
)

// Argon2id parameters (OWASP lighter recommendation: m=19456, t=2, p=1).
// Parameters are embedded in each hash string, so changing them later only
// affects new hashes.
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

const minPasswordLength = 8

// Credentials is the result of a successful register or login: the bearer
// token downstream requests present, and the owner id it resolves to.
type Credentials struct {
	OwnerID   string    `json:"owner_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountService handles registration and login, issuing the bearer
// tokens the rest of the service consumes.
type AccountService struct {
	db     *db.DB
	issuer *TokenIssuer
}

// NewAccountService creates an account service over the shared database.
func NewAccountService(d *db.DB, issuer *TokenIssuer) *AccountService {
	return &AccountService{db: d, issuer: issuer}
}

// Register creates an account and returns freshly issued credentials.
func (s *AccountService) Register(ctx context.Context, email, password string) (*Credentials, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errs.New(errs.InvalidArgument, "a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to hash password", err)
	}

	// Owner id is derived from the email, so re-registration attempts are
	// rejected by either the primary key or the email uniqueness.
	ownerID := ownerIDForEmail(email)
	now := time.Now().UTC()

	_, err = s.db.SQL().ExecContext(ctx,
		`INSERT INTO accounts (user_id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		ownerID, email, passwordHash, now.Unix())
	if err != nil {
		if db.IsUniqueConstraint(err) {
			return nil, errs.New(errs.Conflict, "account already exists")
		}
		return nil, errs.Wrap(errs.Internal, "failed to create account", err)
	}

	return s.issueFor(ownerID)
}

// Login verifies email/password and returns freshly issued credentials.
// Unknown email and wrong password are deliberately indistinguishable.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Credentials, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var (
		ownerID      string
		passwordHash string
	)
	err := s.db.SQL().QueryRowContext(ctx,
		`SELECT user_id, password_hash FROM accounts WHERE email = ?`, email).
		Scan(&ownerID, &passwordHash)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.Unauthenticated, "invalid credentials")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to look up account", err)
	}

	if !VerifyPassword(password, passwordHash) {
		return nil, errs.New(errs.Unauthenticated, "invalid credentials")
	}

	_, _ = s.db.SQL().ExecContext(ctx,
		`UPDATE accounts SET last_login = ? WHERE user_id = ?`, time.Now().UTC().Unix(), ownerID)

	return s.issueFor(ownerID)
}

func (s *AccountService) issueFor(ownerID string) (*Credentials, error) {
	token, expiresAt, err := s.issuer.Issue(ownerID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to issue token", err)
	}
	return &Credentials{OwnerID: ownerID, Token: token, ExpiresAt: expiresAt}, nil
}

func ownerIDForEmail(email string) string {
	return "user-" + uuid.NewSHA1(uuid.NameSpaceDNS, []byte(email)).String()
}

// HashPassword hashes a password using Argon2id.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads, encodedSalt, encodedHash), nil
}

// VerifyPassword checks if a password matches an encoded Argon2id hash.
func VerifyPassword(password, encodedHash string) bool {
	// Format: $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}
	if parts[1] != "argon2id" || parts[2] != "v=19" {
		return false
	}

	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false
	}

	saltBytes, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hashBytes, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	hashLen := len(hashBytes)
	if hashLen <= 0 || hashLen > argon2KeyLen*2 {
		return false
	}

	computed := argon2.IDKey([]byte(password), saltBytes, timeCost, memory, threads, uint32(hashLen))
	return subtle.ConstantTimeCompare(hashBytes, computed) == 1
}
