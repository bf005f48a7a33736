package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwangikariuki/shopkit-backend/api/middleware"
	"github.com/mwangikariuki/shopkit-backend/internal/orders"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
)

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}

func contextUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

func contextActor(r *http.Request) (orders.ActorContext, error) {
	userID, err := contextUserID(r)
	if err != nil {
		return orders.ActorContext{}, err
	}
	return orders.ActorContext{
		UserID:  userID,
		IsStaff: middleware.IsStaffFromContext(r.Context()),
	}, nil
}
