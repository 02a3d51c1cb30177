package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/user/market-intel-service/internal/entity"
)

// Tokens without expires_in are treated as living this long.
const defaultTokenLifetime = time.Hour

// OAuthExchanger performs the client-credentials grant for the application token.
type OAuthExchanger struct {
	cfg    clientcredentials.Config
	client *http.Client
	now    func() time.Time
}

func NewOAuthExchanger(tokenURL, clientID, clientSecret, scope string, timeout time.Duration) *OAuthExchanger {
	var scopes []string
	if s := strings.TrimSpace(scope); s != "" {
		scopes = strings.Fields(s)
	}
	return &OAuthExchanger{
		cfg: clientcredentials.Config{
			ClientID:     strings.TrimSpace(clientID),
			ClientSecret: strings.TrimSpace(clientSecret),
			TokenURL:     tokenURL,
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Exchange requests a fresh token. Missing credentials and 4xx rejections are
// entity.ErrUnauthorized; transport failures and 5xx responses are entity.ErrExternalService.
func (e *OAuthExchanger) Exchange(ctx context.Context) (*entity.Token, error) {
	if e.cfg.ClientID == "" || e.cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: marketplace client credentials are not configured", entity.ErrUnauthorized)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)
	tok, err := e.cfg.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil &&
			rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
			return nil, fmt.Errorf("%w: token endpoint rejected credentials (status %d)", entity.ErrUnauthorized, rerr.Response.StatusCode)
		}
		return nil, fmt.Errorf("%w: token exchange: %v", entity.ErrExternalService, err)
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = e.now().Add(defaultTokenLifetime)
	}
	return &entity.Token{Value: tok.AccessToken, Expiry: expiry}, nil
}
