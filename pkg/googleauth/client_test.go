package googleauth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "googleauth-test", Output: io.Discard})
}

func fakeGoogle(t *testing.T, userinfoBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(userinfoBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fakeClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:  srv.URL + "/auth",
				TokenURL: srv.URL + "/token",
			},
		},
		logger:    testLogger(),
		extraOpts: []option.ClientOption{option.WithEndpoint(srv.URL)},
	}
}

func TestNewClientValidatesCredentials(t *testing.T) {
	if _, err := NewClient(config.GoogleOAuthConfig{ClientSecret: "s"}, testLogger()); err == nil {
		t.Fatal("expected error for missing client id")
	}
	if _, err := NewClient(config.GoogleOAuthConfig{ClientID: "id"}, testLogger()); err == nil {
		t.Fatal("expected error for missing client secret")
	}
	if _, err := NewClient(config.GoogleOAuthConfig{ClientID: "id", ClientSecret: "s"}, nil); err == nil {
		t.Fatal("expected error for missing logger")
	}
}

func TestExchangeRequiresCode(t *testing.T) {
	client := fakeClient(t, fakeGoogle(t, `{}`))

	_, err := client.Exchange(context.Background(), "  ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExchangeReturnsNormalizedProfile(t *testing.T) {
	srv := fakeGoogle(t, `{"id":"sub-123","email":" Jane.Doe@Example.COM ","given_name":"Jane","family_name":"Doe"}`)
	client := fakeClient(t, srv)

	profile, err := client.Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if profile.Subject != "sub-123" {
		t.Fatalf("unexpected subject %q", profile.Subject)
	}
	if profile.Email != "jane.doe@example.com" {
		t.Fatalf("expected lowercased trimmed email, got %q", profile.Email)
	}
	if profile.GivenName != "Jane" || profile.FamilyName != "Doe" {
		t.Fatalf("unexpected names %q %q", profile.GivenName, profile.FamilyName)
	}
}

func TestExchangeRejectsProfileWithoutEmail(t *testing.T) {
	srv := fakeGoogle(t, `{"id":"sub-123","email":""}`)
	client := fakeClient(t, srv)

	_, err := client.Exchange(context.Background(), "auth-code")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}
