package httpx

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/oauth"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/leadform/store"
)

const (
	RoleOwner = "owner"

	ClaimRoles  = "roles"
	ClaimUserID = "uid"

	refreshTTL = 30 * 24 * time.Hour
)

var errCannotRefresh = errors.New("could not refresh")

type credentialsVerifier struct {
	db *sql.DB
}

func CredentialsVerifier(db *sql.DB) oauth.CredentialsVerifier {
	return &credentialsVerifier{db}
}

// NewBearerServer issues owner access tokens signed with secret.
func NewBearerServer(db *sql.DB, secret string, ttl time.Duration) *oauth.BearerServer {
	return oauth.NewBearerServer(secret, ttl, CredentialsVerifier(db), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	_, hash, err := store.Credentials(r.Context(), cs.db, username)
	if err != nil {
		return err
	}

	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}
func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return store.StoreToken(context.Background(), cs.db, credential, tokenID, refreshTokenID, store.Now().Add(refreshTTL))
}
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	expiration, err := store.ConsumeToken(context.Background(), cs.db, credential, tokenID, refreshTokenID)
	if err != nil {
		return errors.Wrap(errCannotRefresh, err.Error())
	}

	if expiration.Before(store.Now()) {
		return errCannotRefresh
	}
	return nil
}
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	id, _, err := store.Credentials(r.Context(), cs.db, credential)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		ClaimRoles:  RoleOwner,
		ClaimUserID: strconv.Itoa(id),
	}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}
