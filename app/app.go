package app

import (
	"database/sql"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/oauth"

	"github.com/mbolis/leadform/billing"
	"github.com/mbolis/leadform/config"
	"github.com/mbolis/leadform/integrations"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config

	// APITokens signs the long-lived tokens of the integration API.
	APITokens  *jwtauth.JWTAuth
	Dispatcher *integrations.Dispatcher
	Mailer     integrations.Mailer
	Paystack   *billing.Paystack
}

func NewAPITokens(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}
