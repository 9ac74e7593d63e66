package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

var secret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	is := is.New(t)
	tok, err := NewToken(secret, "42", "cesar", time.Hour)
	is.NoErr(err)

	u, err := VerifyToken("Bearer "+tok, secret)
	is.NoErr(err)
	is.Equal(u.UserID, "42")
	is.Equal(u.Username, "cesar")

	u, err = UserFromToken(tok)
	is.NoErr(err)
	is.Equal(u.UserID, "42")
}

func TestVerifyRejectsWrongKeyAndExpiry(t *testing.T) {
	is := is.New(t)
	tok, err := NewToken(secret, "42", "cesar", time.Hour)
	is.NoErr(err)
	_, err = VerifyToken(tok, []byte("other"))
	is.True(errors.Is(err, ErrInvalidToken))

	expired, err := NewToken(secret, "42", "cesar", -time.Hour)
	is.NoErr(err)
	_, err = VerifyToken(expired, secret)
	is.True(errors.Is(err, ErrInvalidToken))

	// The client side doesn't care about the key.
	u, err := UserFromToken(expired)
	is.NoErr(err)
	is.Equal(u.Username, "cesar")
}

func TestUserFromTokenGarbage(t *testing.T) {
	is := is.New(t)
	_, err := UserFromToken("not-a-jwt")
	is.True(errors.Is(err, ErrInvalidToken))
}

func TestContext(t *testing.T) {
	is := is.New(t)
	is.Equal(UserFromContext(context.Background()), nil)
	ctx := StoreUserInContext(context.Background(), "7", "ana")
	is.Equal(UserFromContext(ctx), &AuthedUser{UserID: "7", Username: "ana"})
}
