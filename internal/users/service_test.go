package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
)

type stubProfileRepo struct {
	user     *models.User
	customer *models.Customer
	nameSets int
}

func (s *stubProfileRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubProfileRepo) UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName string) error {
	s.nameSets++
	s.user.FirstName = firstName
	s.user.LastName = lastName
	return nil
}

func (s *stubProfileRepo) UpsertCustomer(ctx context.Context, userID uuid.UUID, dto UpdateCustomerDTO) (*models.Customer, error) {
	if s.customer == nil {
		s.customer = &models.Customer{ID: uuid.New(), UserID: userID}
	}
	s.customer.Phone = dto.Phone
	s.customer.Address = dto.Address
	s.customer.City = dto.City
	s.customer.Country = dto.Country
	return s.customer, nil
}

func strPtr(v string) *string { return &v }

func TestGetProfileNotFound(t *testing.T) {
	svc, err := NewService(&stubProfileRepo{})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	_, err = svc.GetProfile(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestUpdateProfileCreatesCustomerOnFirstContactWrite(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "jane@example.com", FirstName: "Jane", LastName: "Doe"}
	repo := &stubProfileRepo{user: user}
	svc, _ := NewService(repo)

	dto, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileRequest{
		Phone: strPtr("+254700000001"),
		City:  strPtr("Nairobi"),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if dto.Customer == nil {
		t.Fatal("expected customer profile created")
	}
	if dto.Customer.Phone == nil || *dto.Customer.Phone != "+254700000001" {
		t.Fatalf("unexpected phone %v", dto.Customer.Phone)
	}
	if repo.nameSets != 0 {
		t.Fatalf("name should not change, got %d updates", repo.nameSets)
	}
}

func TestUpdateProfilePreservesUntouchedContactFields(t *testing.T) {
	user := &models.User{ID: uuid.New(), FirstName: "Jane", LastName: "Doe"}
	user.Customer = &models.Customer{
		ID:     uuid.New(),
		UserID: user.ID,
		Phone:  strPtr("+254700000001"),
		City:   strPtr("Nairobi"),
	}
	repo := &stubProfileRepo{user: user, customer: user.Customer}
	svc, _ := NewService(repo)

	dto, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileRequest{
		Address: strPtr("12 Biashara St"),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if dto.Customer.Phone == nil || *dto.Customer.Phone != "+254700000001" {
		t.Fatalf("phone lost on partial update: %v", dto.Customer.Phone)
	}
	if dto.Customer.Address == nil || *dto.Customer.Address != "12 Biashara St" {
		t.Fatalf("unexpected address %v", dto.Customer.Address)
	}
}

func TestUpdateProfileRejectsEmptyName(t *testing.T) {
	user := &models.User{ID: uuid.New(), FirstName: "Jane", LastName: "Doe"}
	svc, _ := NewService(&stubProfileRepo{user: user})

	_, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileRequest{
		FirstName: strPtr("   "),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestUpdateProfileRenames(t *testing.T) {
	user := &models.User{ID: uuid.New(), FirstName: "Jane", LastName: "Doe"}
	repo := &stubProfileRepo{user: user}
	svc, _ := NewService(repo)

	dto, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileRequest{
		FirstName: strPtr("Janet"),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if dto.FirstName != "Janet" || dto.LastName != "Doe" {
		t.Fatalf("unexpected names %s %s", dto.FirstName, dto.LastName)
	}
	if repo.nameSets != 1 {
		t.Fatalf("expected one name update got %d", repo.nameSets)
	}
}
