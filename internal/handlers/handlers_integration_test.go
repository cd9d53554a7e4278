package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"pasar/internal/auth"
	"pasar/internal/handlers"
	"pasar/internal/middleware"
	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// codeMailer captures the last verification code so tests can complete the
// register/verify flow.
type codeMailer struct {
	code string
}

func (m *codeMailer) SendVerificationCode(email, code string) error {
	m.code = code
	return nil
}

type testEnv struct {
	app      *fiber.App
	mailer   *codeMailer
	userRepo repositories.UserRepository
	products []models.Product
}

// setupApp sets up a Fiber app for testing with in-memory SQLite and all
// handlers/services wired the way main does it.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}))

	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	authority, err := auth.NewAuthority("test_web_secret", "test_mobile_secret", time.Hour)
	assert.NoError(t, err)

	mailer := &codeMailer{}
	authService := services.NewAuthService(userRepo, authority, mailer)
	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, userRepo, nil) // nil publisher: no broker in tests

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authRequired := middleware.AuthRequired(authService)
	adminOnly := middleware.AdminOnly()

	authHandler.RegisterRoutes(apiV1)
	userHandler.RegisterRoutes(apiV1, authRequired, adminOnly)
	productHandler.RegisterRoutes(apiV1, authRequired, adminOnly)
	orderHandler.RegisterRoutes(apiV1, authRequired, adminOnly)

	// Seed the catalog: prices chosen so one of each crosses the free
	// shipping threshold.
	products := []models.Product{
		{Name: "Test Monitor", Description: "For testing purposes", Price: 60.00, Stock: 5},
		{Name: "Test Webcam", Description: "Another test item", Price: 50.00, Stock: 10},
		{Name: "Test Cable", Description: "Cheap test item", Price: 10.00, Stock: 100},
	}
	for i := range products {
		assert.NoError(t, productRepo.Create(&products[i]))
	}

	return &testEnv{app: app, mailer: mailer, userRepo: userRepo, products: products}
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	assert.NoError(t, err)

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	resp.Body.Close()
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

// registerAndLogin walks a fresh user through register -> verify -> login and
// returns a web-scoped token.
func registerAndLogin(t *testing.T, env *testEnv, username, email string) string {
	t.Helper()

	resp, _ := doJSON(t, env.app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, env.mailer.code)

	resp, verifyBody := doJSON(t, env.app, http.MethodPost, "/api/v1/auth/verify", "", map[string]string{
		"email": email,
		"code":  env.mailer.code,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, verifyBody["token"])

	resp, loginBody := doJSON(t, env.app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := loginBody["token"].(string)
	assert.NotEmpty(t, token)
	return token
}

// createAdmin provisions a verified admin directly in the repository and logs
// them in.
func createAdmin(t *testing.T, env *testEnv) string {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.DefaultCost)
	assert.NoError(t, err)
	assert.NoError(t, env.userRepo.Create(&models.User{
		Username:   "admin",
		Email:      "admin@example.com",
		Password:   string(hashed),
		IsAdmin:    true,
		IsVerified: true,
	}))

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "adminpass",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)
	return token
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	env := setupApp(t)

	resp, _ := doJSON(t, env.app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "budi",
		"email":    "budi@example.com",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Login before verification is rejected.
	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "budi",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "authentication_error", body["code"])

	// Verify with the emailed code, then login works.
	resp, _ = doJSON(t, env.app, http.MethodPost, "/api/v1/auth/verify", "", map[string]string{
		"email": "budi@example.com",
		"code":  env.mailer.code,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "budi",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	// Duplicate registration conflicts.
	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "budi",
		"email":    "other@example.com",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["code"])
}

func TestClientTypeBinding(t *testing.T) {
	env := setupApp(t)

	// Token minted for the mobile channel.
	resp, _ := doJSON(t, env.app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "mobileuser",
		"email":    "mobile@example.com",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/auth/verify", "", map[string]string{
		"email": "mobile@example.com",
		"code":  env.mailer.code,
	}, map[string]string{middleware.HeaderClientType: "mobile"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mobile", body["client_type"])
	mobileToken, _ := body["token"].(string)

	// Works when presented as mobile.
	resp, _ = doJSON(t, env.app, http.MethodGet, "/api/v1/orders/mine", mobileToken, nil,
		map[string]string{middleware.HeaderClientType: "mobile"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Same token presented as web (the default channel) is rejected.
	resp, body = doJSON(t, env.app, http.MethodGet, "/api/v1/orders/mine", mobileToken, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "authentication_error", body["code"])
}

func TestOrderLifecycle(t *testing.T) {
	env := setupApp(t)
	userToken := registerAndLogin(t, env, "pembeli", "pembeli@example.com")
	adminToken := createAdmin(t, env)

	monitor, webcam := env.products[0], env.products[1]

	// Client lies about prices; the catalog wins.
	resp, order := doJSON(t, env.app, http.MethodPost, "/api/v1/orders", userToken, map[string]interface{}{
		"order_items": []map[string]interface{}{
			{"product_id": monitor.ID, "quantity": 1, "price": 0.01},
			{"product_id": webcam.ID, "quantity": 1, "price": 0.01},
		},
		"shipping_address": map[string]string{
			"address": "Jl. Sudirman 1", "city": "Jakarta", "postal_code": "10110", "country": "ID",
		},
		"payment_method": "paypal",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	items := order["items"].([]interface{})
	first := items[0].(map[string]interface{})
	assert.Equal(t, 60.00, first["price"])

	// 60 + 50 = 110 > 100: free shipping, 15% tax.
	assert.Equal(t, 110.00, order["items_price"])
	assert.Equal(t, 0.00, order["shipping_price"])
	assert.Equal(t, 16.50, order["tax_price"])
	assert.Equal(t, 126.50, order["total_price"])
	assert.Equal(t, false, order["is_paid"])
	assert.Equal(t, false, order["is_delivered"])

	orderID := order["id"].(string)
	trackingID := order["tracking_id"].(string)
	assert.Len(t, trackingID, 12)

	// Owner sees it in their list and by id.
	resp, _ = doJSON(t, env.app, http.MethodGet, "/api/v1/orders/mine", userToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, env.app, http.MethodGet, "/api/v1/orders/"+orderID, userToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Public tracking lookup needs no token and returns a summary: status,
	// prices, timestamps and the owner's public fields, never the shipping
	// address or payment details.
	resp, tracked := doJSON(t, env.app, http.MethodGet, "/api/v1/orders/track/"+trackingID, "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	trackedOrder := tracked["order"].(map[string]interface{})
	assert.Equal(t, trackingID, trackedOrder["tracking_id"])
	assert.Equal(t, 126.50, trackedOrder["total_price"])
	assert.Equal(t, false, trackedOrder["is_paid"])
	assert.NotContains(t, trackedOrder, "shipping_address")
	assert.NotContains(t, trackedOrder, "payment_result")
	assert.NotContains(t, trackedOrder, "payment_method")
	assert.NotContains(t, trackedOrder, "id")
	owner := tracked["owner"].(map[string]interface{})
	assert.Equal(t, "pembeli", owner["username"])
	assert.Equal(t, "pembeli@example.com", owner["email"])
	assert.NotContains(t, owner, "password")

	// Pay the order.
	resp, paid := doJSON(t, env.app, http.MethodPut, "/api/v1/orders/"+orderID+"/pay", userToken, map[string]string{
		"transaction_id": "pp-1", "status": "COMPLETED", "email": "pembeli@example.com",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, paid["is_paid"])
	assert.NotEmpty(t, paid["paid_at"])

	// Paying again is a conflict.
	resp, body := doJSON(t, env.app, http.MethodPut, "/api/v1/orders/"+orderID+"/pay", userToken, map[string]string{
		"transaction_id": "pp-2", "status": "COMPLETED",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", body["code"])

	// Non-admin cannot mark delivered, and the order stays undelivered.
	resp, body = doJSON(t, env.app, http.MethodPut, "/api/v1/orders/"+orderID+"/deliver", userToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "authorization_error", body["code"])

	resp, current := doJSON(t, env.app, http.MethodGet, "/api/v1/orders/"+orderID, userToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, current["is_delivered"])

	// Admin can.
	resp, delivered := doJSON(t, env.app, http.MethodPut, "/api/v1/orders/"+orderID+"/deliver", adminToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, delivered["is_delivered"])

	// Admin deletes the order.
	resp, _ = doJSON(t, env.app, http.MethodDelete, "/api/v1/orders/"+orderID, adminToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, env.app, http.MethodGet, "/api/v1/orders/"+orderID, adminToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrderCreationRejections(t *testing.T) {
	env := setupApp(t)
	userToken := registerAndLogin(t, env, "penolak", "penolak@example.com")

	// Empty item list.
	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/orders", userToken, map[string]interface{}{
		"order_items":    []map[string]interface{}{},
		"payment_method": "paypal",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["code"])

	// Unresolvable product id fails the whole order.
	resp, body = doJSON(t, env.app, http.MethodPost, "/api/v1/orders", userToken, map[string]interface{}{
		"order_items": []map[string]interface{}{
			{"product_id": env.products[0].ID, "quantity": 1},
			{"product_id": "00000000-0000-0000-0000-000000000000", "quantity": 1},
		},
		"payment_method": "paypal",
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])

	// Nothing was persisted.
	resp, _ = doJSON(t, env.app, http.MethodGet, "/api/v1/orders/mine", userToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOrderOwnershipIsolation(t *testing.T) {
	env := setupApp(t)
	ownerToken := registerAndLogin(t, env, "pemilik", "pemilik@example.com")
	strangerToken := registerAndLogin(t, env, "oranglain", "oranglain@example.com")

	resp, order := doJSON(t, env.app, http.MethodPost, "/api/v1/orders", ownerToken, map[string]interface{}{
		"order_items": []map[string]interface{}{
			{"product_id": env.products[2].ID, "quantity": 2},
		},
		"payment_method": "cod",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Below the free-shipping threshold: 2*10=20, flat 10 shipping, 3 tax.
	assert.Equal(t, 20.00, order["items_price"])
	assert.Equal(t, 10.00, order["shipping_price"])
	assert.Equal(t, 3.00, order["tax_price"])
	assert.Equal(t, 33.00, order["total_price"])

	orderID := order["id"].(string)
	resp, body := doJSON(t, env.app, http.MethodGet, "/api/v1/orders/"+orderID, strangerToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "authorization_error", body["code"])
}

func TestUserProfileAndModeration(t *testing.T) {
	env := setupApp(t)
	userToken := registerAndLogin(t, env, "warga", "warga@example.com")
	adminToken := createAdmin(t, env)

	// Profile view for the authenticated user.
	resp, profile := doJSON(t, env.app, http.MethodGet, "/api/v1/users/me", userToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "warga", profile["username"])
	assert.NotContains(t, profile, "password")
	userID := profile["id"].(string)

	resp, adminProfile := doJSON(t, env.app, http.MethodGet, "/api/v1/users/me", adminToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	adminID := adminProfile["id"].(string)

	// Moderation is admin-only.
	resp, body := doJSON(t, env.app, http.MethodPut, "/api/v1/users/"+userID+"/block", userToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "authorization_error", body["code"])

	// Admin accounts cannot be deleted.
	resp, body = doJSON(t, env.app, http.MethodDelete, "/api/v1/users/"+adminID, adminToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "authorization_error", body["code"])

	// Blocking cuts off the user's still-valid token on the next request.
	resp, _ = doJSON(t, env.app, http.MethodPut, "/api/v1/users/"+userID+"/block", adminToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, env.app, http.MethodGet, "/api/v1/users/me", userToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "authorization_error", body["code"])

	// Deleting the user makes their token fail authentication entirely.
	resp, _ = doJSON(t, env.app, http.MethodDelete, "/api/v1/users/"+userID, adminToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, env.app, http.MethodGet, "/api/v1/users/me", userToken, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "authentication_error", body["code"])
}

func TestProductMutationRequiresAdmin(t *testing.T) {
	env := setupApp(t)
	userToken := registerAndLogin(t, env, "biasa", "biasa@example.com")
	adminToken := createAdmin(t, env)

	newProduct := map[string]interface{}{
		"name": "Admin Special", "description": "Only admins create these", "price": 99.99, "stock": 3,
	}

	resp, body := doJSON(t, env.app, http.MethodPost, "/api/v1/products", userToken, newProduct, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "authorization_error", body["code"])

	resp, created := doJSON(t, env.app, http.MethodPost, "/api/v1/products", adminToken, newProduct, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, created["id"])
}
