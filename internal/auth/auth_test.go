package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/AdityaUmale/note-taking/internal/errs"
	"github.com/AdityaUmale/note-taking/internal/testdb"
)

const (
	testSeedHex      = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testOtherSeedHex = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testIssuer       = "http://localhost:8080"
)

var testCounter atomic.Int64

func newTestIssuerVerifier(t interface {
	Fatalf(format string, args ...interface{})
}, ttl time.Duration) (*TokenIssuer, *TokenVerifier) {
	priv, pub, err := KeyPairFromSeed(testSeedHex)
	if err != nil {
		t.Fatalf("KeyPairFromSeed failed: %v", err)
	}
	return NewTokenIssuer(testIssuer, priv, ttl), NewTokenVerifier(testIssuer, pub)
}

func setupAccounts(t interface {
	Fatalf(format string, args ...interface{})
}) (*AccountService, *TokenVerifier) {
	testID := testCounter.Add(1)
	database, err := testdb.NewInMemory(fmt.Sprintf("auth-test-%d", testID))
	if err != nil {
		t.Fatalf("failed to create in-memory database: %v", err)
	}
	issuer, verifier := newTestIssuerVerifier(t, 0)
	return NewAccountService(database, issuer), verifier
}

// =============================================================================
// Token issue / verify
// =============================================================================

func TestIssueVerify_RoundTrip(t *testing.T) {
	issuer, verifier := newTestIssuerVerifier(t, 0)

	token, expiresAt, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if time.Until(expiresAt) < 23*time.Hour {
		t.Fatalf("default TTL should be about a day, got expiry %v", expiresAt)
	}

	ownerID, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ownerID != "user-123" {
		t.Fatalf("owner mismatch: got %q", ownerID)
	}
}

func TestVerify_RejectsExpired(t *testing.T) {
	issuer, verifier := newTestIssuerVerifier(t, time.Nanosecond)

	token, _, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	_, err = verifier.Verify(context.Background(), token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got: %v", err)
	}
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	otherPriv, _, err := KeyPairFromSeed(testOtherSeedHex)
	if err != nil {
		t.Fatalf("KeyPairFromSeed failed: %v", err)
	}
	otherIssuer := NewTokenIssuer(testIssuer, otherPriv, 0)
	_, verifier := newTestIssuerVerifier(t, 0)

	token, _, err := otherIssuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = verifier.Verify(context.Background(), token)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestVerify_RejectsWrongIssuer(t *testing.T) {
	priv, pub, err := KeyPairFromSeed(testSeedHex)
	if err != nil {
		t.Fatalf("KeyPairFromSeed failed: %v", err)
	}
	issuer := NewTokenIssuer("http://evil.example", priv, 0)
	verifier := NewTokenVerifier(testIssuer, pub)

	token, _, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = verifier.Verify(context.Background(), token)
	if !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("expected ErrInvalidIssuer, got: %v", err)
	}
}

func testVerify_RejectsGarbage(t *rapid.T) {
	_, verifier := newTestIssuerVerifier(t, 0)

	garbage := rapid.StringMatching(`[A-Za-z0-9._-]{0,80}`).Draw(t, "garbage")

	_, err := verifier.Verify(context.Background(), garbage)
	if err == nil {
		t.Fatalf("garbage credential %q verified", garbage)
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	rapid.Check(t, testVerify_RejectsGarbage)
}

func TestKeyPairFromSeed_RejectsBadSeeds(t *testing.T) {
	for _, seed := range []string{"", "zz", strings.Repeat("a", 63), strings.Repeat("g", 64)} {
		if _, _, err := KeyPairFromSeed(seed); err == nil {
			t.Fatalf("seed %q should be rejected", seed)
		}
	}
}

// =============================================================================
// Password hashing
// =============================================================================

func testHashVerifyPassword_RoundTrip(t *rapid.T) {
	password := rapid.StringMatching(`[!-~]{8,40}`).Draw(t, "password")

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %q", hash)
	}
	if !VerifyPassword(password, hash) {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword(password+"x", hash) {
		t.Fatalf("wrong password accepted")
	}
}

func TestHashVerifyPassword_RoundTrip(t *testing.T) {
	rapid.Check(t, testHashVerifyPassword_RoundTrip)
}

func TestVerifyPassword_RejectsMalformedHashes(t *testing.T) {
	for _, hash := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=19456,t=2,p=1$notbase64!!$notbase64!!",
		"$bcrypt$v=19$m=19456,t=2,p=1$AAAA$BBBB",
	} {
		if VerifyPassword("password", hash) {
			t.Fatalf("malformed hash accepted: %q", hash)
		}
	}
}

// =============================================================================
// Register / login
// =============================================================================

func TestRegisterLogin_Flow(t *testing.T) {
	accounts, verifier := setupAccounts(t)
	ctx := context.Background()

	creds, err := accounts.Register(ctx, "Alice@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if creds.OwnerID == "" || creds.Token == "" {
		t.Fatalf("incomplete credentials: %+v", creds)
	}

	// The issued token resolves back to the same owner.
	ownerID, err := verifier.Verify(ctx, creds.Token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ownerID != creds.OwnerID {
		t.Fatalf("token subject mismatch: %q vs %q", ownerID, creds.OwnerID)
	}

	// Login is case-insensitive on email and yields the same owner.
	again, err := accounts.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if again.OwnerID != creds.OwnerID {
		t.Fatalf("login owner mismatch: %q vs %q", again.OwnerID, creds.OwnerID)
	}
}

func TestRegister_RejectsDuplicates(t *testing.T) {
	accounts, _ := setupAccounts(t)
	ctx := context.Background()

	if _, err := accounts.Register(ctx, "bob@example.com", "password1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, err := accounts.Register(ctx, "bob@example.com", "password2")
	if !errs.IsCode(err, errs.Conflict) {
		t.Fatalf("expected conflict for duplicate email, got: %v", err)
	}
}

func TestRegister_ValidatesInput(t *testing.T) {
	accounts, _ := setupAccounts(t)
	ctx := context.Background()

	for _, tc := range []struct{ email, password string }{
		{"", "password1"},
		{"not-an-email", "password1"},
		{"short@example.com", "2short"},
	} {
		_, err := accounts.Register(ctx, tc.email, tc.password)
		if !errs.IsCode(err, errs.InvalidArgument) {
			t.Fatalf("Register(%q, %q): expected invalid_argument, got: %v", tc.email, tc.password, err)
		}
	}
}

func TestLogin_UnknownAndWrongAreIndistinguishable(t *testing.T) {
	accounts, _ := setupAccounts(t)
	ctx := context.Background()

	if _, err := accounts.Register(ctx, "carol@example.com", "password1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, errUnknown := accounts.Login(ctx, "nobody@example.com", "password1")
	_, errWrong := accounts.Login(ctx, "carol@example.com", "wrong password")

	if !errs.IsCode(errUnknown, errs.Unauthenticated) || !errs.IsCode(errWrong, errs.Unauthenticated) {
		t.Fatalf("expected unauthenticated for both, got: %v / %v", errUnknown, errWrong)
	}
	if errs.MessageOf(errUnknown) != errs.MessageOf(errWrong) {
		t.Fatalf("failure messages differ: %q vs %q", errs.MessageOf(errUnknown), errs.MessageOf(errWrong))
	}
}
