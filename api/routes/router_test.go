package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwangikariuki/shopkit-backend/internal/auth"
	"github.com/mwangikariuki/shopkit-backend/internal/cart"
	"github.com/mwangikariuki/shopkit-backend/internal/categories"
	checkoutsvc "github.com/mwangikariuki/shopkit-backend/internal/checkout"
	"github.com/mwangikariuki/shopkit-backend/internal/orders"
	"github.com/mwangikariuki/shopkit-backend/internal/products"
	"github.com/mwangikariuki/shopkit-backend/internal/users"
	pkgAuth "github.com/mwangikariuki/shopkit-backend/pkg/auth"
	"github.com/mwangikariuki/shopkit-backend/pkg/auth/session"
	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/googleauth"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
	"github.com/mwangikariuki/shopkit-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResponse, error) {
	panic("unimplemented")
}

func (stubAuthService) LoginWithGoogle(ctx context.Context, req auth.GoogleLoginRequest) (*auth.AuthResponse, error) {
	panic("unimplemented")
}

func (stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error) {
	panic("unimplemented")
}

func (stubAuthService) Logout(ctx context.Context, accessID string) error {
	return nil
}

type stubRegisterService struct{}

func (stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	panic("unimplemented")
}

func (stubRegisterService) EnsureGoogleUser(ctx context.Context, profile *googleauth.Profile) (*models.User, error) {
	panic("unimplemented")
}

type stubUsersService struct{}

func (stubUsersService) GetProfile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: userID}, nil
}

func (stubUsersService) UpdateProfile(ctx context.Context, userID uuid.UUID, req users.UpdateProfileRequest) (*users.UserDTO, error) {
	return &users.UserDTO{ID: userID}, nil
}

type stubCategoriesService struct{}

func (stubCategoriesService) Create(ctx context.Context, req categories.CreateCategoryRequest) (*categories.CategoryDTO, error) {
	return &categories.CategoryDTO{}, nil
}

func (stubCategoriesService) Get(ctx context.Context, id uuid.UUID) (*categories.CategoryDTO, error) {
	return &categories.CategoryDTO{ID: id}, nil
}

func (stubCategoriesService) Tree(ctx context.Context) ([]categories.CategoryDTO, error) {
	return []categories.CategoryDTO{}, nil
}

func (stubCategoriesService) Update(ctx context.Context, id uuid.UUID, req categories.UpdateCategoryRequest) (*categories.CategoryDTO, error) {
	panic("unimplemented")
}

func (stubCategoriesService) Delete(ctx context.Context, id uuid.UUID) error {
	panic("unimplemented")
}

type stubProductsService struct {
	lastFilters products.ListFilters
}

func (s *stubProductsService) Create(ctx context.Context, req products.CreateProductRequest) (*products.ProductDTO, error) {
	return &products.ProductDTO{Name: req.Name}, nil
}

func (s *stubProductsService) Get(ctx context.Context, id uuid.UUID) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: id}, nil
}

func (s *stubProductsService) List(ctx context.Context, params pagination.Params, filters products.ListFilters) (*products.ProductList, error) {
	s.lastFilters = filters
	return &products.ProductList{Products: []products.ProductDTO{}}, nil
}

func (s *stubProductsService) Update(ctx context.Context, id uuid.UUID, req products.UpdateProductRequest) (*products.ProductDTO, error) {
	panic("unimplemented")
}

func (s *stubProductsService) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

type stubCartService struct{}

func (stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cart.CartDTO, error) {
	return &cart.CartDTO{}, nil
}

func (stubCartService) AddItem(ctx context.Context, userID uuid.UUID, req cart.AddItemRequest) (*cart.CartDTO, error) {
	return &cart.CartDTO{}, nil
}

func (stubCartService) SetQuantity(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, req cart.SetQuantityRequest) (*cart.CartDTO, error) {
	panic("unimplemented")
}

func (stubCartService) RemoveItem(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) (*cart.CartDTO, error) {
	panic("unimplemented")
}

type stubCheckoutService struct{}

func (stubCheckoutService) Checkout(ctx context.Context, userID uuid.UUID, req checkoutsvc.CheckoutRequest) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{}, nil
}

type stubOrdersService struct {
	lastActor orders.ActorContext
}

func (s *stubOrdersService) Create(ctx context.Context, actor orders.ActorContext, req orders.CreateOrderRequest) (*orders.OrderDTO, error) {
	s.lastActor = actor
	return &orders.OrderDTO{}, nil
}

func (s *stubOrdersService) Get(ctx context.Context, actor orders.ActorContext, id uuid.UUID) (*orders.OrderDTO, error) {
	s.lastActor = actor
	return &orders.OrderDTO{ID: id}, nil
}

func (s *stubOrdersService) List(ctx context.Context, actor orders.ActorContext, params pagination.Params) (*orders.OrderList, error) {
	s.lastActor = actor
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, nil
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, actor orders.ActorContext, id uuid.UUID, req orders.UpdateStatusRequest) (*orders.OrderDTO, error) {
	s.lastActor = actor
	return &orders.OrderDTO{ID: id, Status: req.Status}, nil
}

func (s *stubOrdersService) Delete(ctx context.Context, actor orders.ActorContext, id uuid.UUID) error {
	s.lastActor = actor
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func newTestRouter(cfg *config.Config, svcs Services) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, stubPinger{}, nil, nil, nil, stubSessionChecker{}, svcs)
}

func testServices() Services {
	return Services{
		Auth:       stubAuthService{},
		Register:   stubRegisterService{},
		Users:      stubUsersService{},
		Categories: stubCategoriesService{},
		Products:   &stubProductsService{},
		Cart:       stubCartService{},
		Checkout:   stubCheckoutService{},
		Orders:     &stubOrdersService{},
	}
}

func buildToken(t *testing.T, cfg *config.Config, staff bool) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:  uuid.New(),
		Email:   "router@test.dev",
		IsStaff: staff,
		JTI:     session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(testConfig(), testServices())

	for _, target := range []string{"/api/v1/cart/", "/api/v1/user/profile", "/api/v1/orders/"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token got %d", target, resp.Code)
		}
	}
}

func TestProtectedRoutesAcceptToken(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, testServices())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, false))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for cart fetch got %d", resp.Code)
	}
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	router := newTestRouter(testConfig(), testServices())

	for _, target := range []string{"/api/v1/categories", "/api/v1/products"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", target, resp.Code)
		}
	}
}

func TestStaffTokenWidensProductList(t *testing.T) {
	cfg := testConfig()
	svcs := testServices()
	productStub := svcs.Products.(*stubProductsService)
	router := newTestRouter(cfg, svcs)

	anon := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, anon)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for anonymous list got %d", resp.Code)
	}
	if productStub.lastFilters.IncludeUnavailable {
		t.Fatal("anonymous list should exclude unavailable products")
	}

	staff := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	staff.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, true))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, staff)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff list got %d", resp.Code)
	}
	if !productStub.lastFilters.IncludeUnavailable {
		t.Fatal("staff list should include unavailable products")
	}
}

func TestCatalogMutationsRequireStaff(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, testServices())
	body := `{"name":"Ceramic Mug","price":"10.00","stock":5}`

	customer := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, false))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer mutation got %d", resp.Code)
	}

	staff := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	staff.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, true))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, staff)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for staff mutation got %d", resp.Code)
	}
}

func TestOrderStatusRouteOpenToCustomers(t *testing.T) {
	cfg := testConfig()
	svcs := testServices()
	ordersStub := svcs.Orders.(*stubOrdersService)
	router := newTestRouter(cfg, svcs)

	target := "/api/v1/orders/" + uuid.NewString() + "/status"
	req := httptest.NewRequest(http.MethodPatch, target, strings.NewReader(`{"status":"cancelled"}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, false))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for customer status change got %d", resp.Code)
	}
	if ordersStub.lastActor.IsStaff {
		t.Fatal("customer token should not carry staff privileges")
	}
}

func TestGoogleRouteHiddenWhenDisabled(t *testing.T) {
	router := newTestRouter(testConfig(), testServices())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound && resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected google route to be absent got %d", resp.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(testConfig(), testServices())

	for _, target := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", target, resp.Code)
		}
		if got := resp.Header().Get("X-Shopkit-Env"); got != "test" {
			t.Fatalf("%s: expected env header got %q", target, got)
		}
	}
}
