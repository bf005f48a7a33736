package googleauth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
)

var (
	errClientIDRequired     = errors.New("google oauth client id is required")
	errClientSecretRequired = errors.New("google oauth client secret is required")
	errLoggerRequired       = errors.New("google oauth logger is required")
)

// Profile is the subset of the Google userinfo payload the platform needs.
type Profile struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
}

// Verifier exchanges an authorization code for a verified Google profile.
type Verifier interface {
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// Client wraps the Google OAuth code exchange and userinfo lookup.
type Client struct {
	oauth  *oauth2.Config
	logger *logger.Logger

	// extraOpts lets tests point the userinfo service at a local server.
	extraOpts []option.ClientOption
}

// NewClient validates the OAuth credentials and builds the exchange client.
func NewClient(cfg config.GoogleOAuthConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientSecret == "" {
		return nil, errClientSecretRequired
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  strings.TrimSpace(cfg.RedirectURL),
			Endpoint:     google.Endpoint,
			Scopes:       []string{oauth2api.UserinfoEmailScope, oauth2api.UserinfoProfileScope},
		},
		logger: logg,
	}, nil
}

// Exchange trades the authorization code for tokens and fetches the profile.
// Upstream rejections surface as unauthorized with the provider message kept
// in the error detail.
func (c *Client) Exchange(ctx context.Context, code string) (*Profile, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization code is required")
	}

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "google code exchange rejected")
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "google authentication failed")
	}

	opts := append([]option.ClientOption{option.WithTokenSource(c.oauth.TokenSource(ctx, token))}, c.extraOpts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "google userinfo service init")
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "google userinfo lookup failed")
	}
	if strings.TrimSpace(info.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "google profile has no email")
	}

	return &Profile{
		Subject:    info.Id,
		Email:      strings.ToLower(strings.TrimSpace(info.Email)),
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
	}, nil
}
