package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/internal/users"
	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/googleauth"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox"
	"github.com/mwangikariuki/shopkit-backend/pkg/security"
)

func setupRegisterTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL DEFAULT '',
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  auth_provider TEXT NOT NULL DEFAULT 'email',
  is_staff INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  phone TEXT,
  address TEXT,
  city TEXT,
  country TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (r *recordingOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func newRegisterFixture(t *testing.T) (RegisterService, *gorm.DB, *recordingOutbox) {
	t.Helper()
	db := setupRegisterTestDB(t)
	sink := &recordingOutbox{}
	svc, err := NewRegisterService(RegisterServiceParams{
		DB:             gormTxRunner{db: db},
		Outbox:         sink,
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
	})
	require.NoError(t, err)
	return svc, db, sink
}

func TestRegisterCreatesUserAndEmitsEvent(t *testing.T) {
	svc, db, sink := newRegisterFixture(t)

	dto, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Wanjiru",
		LastName:  "Kamau",
		Email:     "Wanjiru.Kamau@Example.com",
		Password:  "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "wanjiru.kamau@example.com", dto.Email)
	assert.Equal(t, "Wanjiru", dto.FirstName)

	var stored models.User
	require.NoError(t, db.Where("email = ?", "wanjiru.kamau@example.com").First(&stored).Error)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.Equal(t, enums.AuthProviderEmail, stored.AuthProvider)

	ok, err := security.VerifyPassword("correct horse battery", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, sink.events, 1)
	assert.Equal(t, enums.EventUserRegistered, sink.events[0].EventType)
	assert.Equal(t, enums.AggregateUser, sink.events[0].AggregateType)

	var customers int64
	require.NoError(t, db.Model(&models.Customer{}).Count(&customers).Error)
	assert.Zero(t, customers, "no contact fields, no customer row")
}

func TestRegisterWithContactCreatesCustomerProfile(t *testing.T) {
	svc, db, _ := newRegisterFixture(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Otieno",
		LastName:  "Odhiambo",
		Email:     "otieno@example.com",
		Password:  "correct horse battery",
		Phone:     "+254700111222",
		City:      "Nairobi",
	})
	require.NoError(t, err)

	var customer models.Customer
	require.NoError(t, db.First(&customer).Error)
	require.NotNil(t, customer.Phone)
	assert.Equal(t, "+254700111222", *customer.Phone)
	require.NotNil(t, customer.City)
	assert.Equal(t, "Nairobi", *customer.City)
	assert.Nil(t, customer.Address)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, sink := newRegisterFixture(t)

	req := RegisterRequest{
		FirstName: "Amina",
		LastName:  "Hassan",
		Email:     "amina@example.com",
		Password:  "correct horse battery",
	}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), req)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Len(t, sink.events, 1, "failed registration must not emit")
}

func TestEnsureGoogleUserReusesExistingAccount(t *testing.T) {
	svc, _, sink := newRegisterFixture(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Njeri",
		LastName:  "Mwangi",
		Email:     "njeri@example.com",
		Password:  "correct horse battery",
	})
	require.NoError(t, err)

	resolved, err := svc.EnsureGoogleUser(context.Background(), &googleauth.Profile{
		Email:      "Njeri@Example.com",
		GivenName:  "Njeri",
		FamilyName: "Mwangi",
	})
	require.NoError(t, err)
	assert.Equal(t, "njeri@example.com", resolved.Email)
	assert.Equal(t, enums.AuthProviderEmail, resolved.AuthProvider)
	assert.Len(t, sink.events, 1, "reuse must not emit a second registration")
}

func TestEnsureGoogleUserProvisionsNewAccount(t *testing.T) {
	svc, db, sink := newRegisterFixture(t)

	resolved, err := svc.EnsureGoogleUser(context.Background(), &googleauth.Profile{
		Email:      "baraka@example.com",
		GivenName:  "Baraka",
		FamilyName: "Juma",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AuthProviderGoogle, resolved.AuthProvider)
	assert.Empty(t, resolved.PasswordHash)

	repo := users.NewRepository(db)
	found, err := repo.FindByEmail(context.Background(), "baraka@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Baraka", found.FirstName)

	require.Len(t, sink.events, 1)
	assert.Equal(t, enums.EventUserRegistered, sink.events[0].EventType)
}
