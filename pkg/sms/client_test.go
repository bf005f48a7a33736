package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "sms-test", Level: zerolog.Disabled})
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), config.SMSConfig{
		Username: "shopkit",
		APIKey:   "at-key",
		SenderID: "SHOPKIT",
	}, testLogger())
	require.NoError(t, err)
	return client.WithBaseURL(srv.URL)
}

func TestSendSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/version1/messaging", r.URL.Path)
		require.Equal(t, "at-key", r.Header.Get("apiKey"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "shopkit", r.PostForm.Get("username"))
		require.Equal(t, "+254700000001", r.PostForm.Get("to"))
		require.Equal(t, "SHOPKIT", r.PostForm.Get("from"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Recipients":[{"number":"+254700000001","status":"Success","statusCode":101}]}}`))
	}))

	err := client.Send(context.Background(), "+254700000001", "Your order has shipped")
	require.NoError(t, err)
}

func TestSendRecipientRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Recipients":[{"number":"+254700000001","status":"InvalidPhoneNumber","statusCode":403}]}}`))
	}))

	err := client.Send(context.Background(), "+254700000001", "hello")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())
}

func TestSendValidation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not reach the gateway")
	}))

	err := client.Send(context.Background(), "", "hello")
	require.Error(t, err)

	err = client.Send(context.Background(), "+254700000001", " ")
	require.Error(t, err)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(context.Background(), config.SMSConfig{APIKey: "key"}, testLogger())
	require.Error(t, err)

	_, err = NewClient(context.Background(), config.SMSConfig{Username: "u"}, testLogger())
	require.Error(t, err)

	_, err = NewClient(context.Background(), config.SMSConfig{Username: "u", APIKey: "k"}, nil)
	require.Error(t, err)
}
