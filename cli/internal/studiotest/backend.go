// Package studiotest runs an in-memory studio backend for tests. It speaks the
// same envelope protocol as the real API, issues signed access tokens and
// rotates refresh tokens, so clients can be exercised end to end.
package studiotest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/common/middleware"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

const secret = "studiotest-secret"

type account struct {
	profile      models.UserProfile
	passwordHash []byte
}

type refreshSession struct {
	email     string
	expiresAt time.Time
}

// Backend is a running fake API. URL is the API root, ending in /api.
type Backend struct {
	URL string

	srv      *httptest.Server
	tokenGen *tokens.TokenGenerator

	mu          sync.Mutex
	accessTTL   time.Duration
	accounts    map[string]*account
	sessions    map[string]refreshSession
	revoked     map[string]bool
	hits        map[string]int
	categories  []models.Category
	products    []models.Product
	classes     []models.Session
	bookings    []models.Booking
	orders      map[string]models.Order
	verified    map[string]string
	nextID      int64
	minPassword int
	unavailable bool
}

// New starts a Backend that is shut down when t finishes.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		tokenGen:    tokens.NewTokenGenerator(secret),
		accessTTL:   15 * time.Minute,
		accounts:    make(map[string]*account),
		sessions:    make(map[string]refreshSession),
		revoked:     make(map[string]bool),
		hits:        make(map[string]int),
		orders:      make(map[string]models.Order),
		verified:    make(map[string]string),
		minPassword: 6,
	}
	b.srv = httptest.NewServer(b.routes())
	b.URL = b.srv.URL + "/api"
	t.Cleanup(b.srv.Close)
	return b
}

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", b.login)
	mux.HandleFunc("POST /api/auth/register", b.register)
	mux.HandleFunc("GET /api/auth/validate", b.validate)
	mux.HandleFunc("POST /api/auth/refresh", b.refresh)
	mux.HandleFunc("GET /api/users", b.requireRole(tokens.RoleAdmin, b.listUsers))

	mux.HandleFunc("GET /api/categories", b.listCategories)
	mux.HandleFunc("POST /api/categories", b.requireRole(tokens.RoleAdmin, b.createCategory))
	mux.HandleFunc("GET /api/categories/{id}", b.getCategory)
	mux.HandleFunc("PUT /api/categories/{id}", b.requireRole(tokens.RoleAdmin, b.updateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", b.requireRole(tokens.RoleAdmin, b.deleteCategory))

	mux.HandleFunc("GET /api/products", b.listProducts)
	mux.HandleFunc("GET /api/products/{id}", b.getProduct)
	mux.HandleFunc("GET /api/products/category/{id}", b.productsByCategory)
	mux.HandleFunc("POST /api/products", b.requireRole(tokens.RoleAdmin, b.createProduct))
	mux.HandleFunc("PUT /api/products/{id}", b.requireRole(tokens.RoleAdmin, b.updateProduct))
	mux.HandleFunc("DELETE /api/products/{id}", b.requireRole(tokens.RoleAdmin, b.deleteProduct))

	mux.HandleFunc("GET /api/sessions", b.listClasses)
	mux.HandleFunc("GET /api/sessions/upcoming", b.upcomingClasses)
	mux.HandleFunc("GET /api/sessions/{id}", b.getClass)
	mux.HandleFunc("POST /api/sessions/{id}/book", b.requireRole(tokens.RoleAny, b.bookClass))
	mux.HandleFunc("POST /api/sessions", b.requireRole(tokens.RoleAdmin, b.createClass))
	mux.HandleFunc("PUT /api/sessions/{id}", b.requireRole(tokens.RoleAdmin, b.updateClass))
	mux.HandleFunc("DELETE /api/sessions/{id}", b.requireRole(tokens.RoleAdmin, b.deleteClass))

	mux.HandleFunc("GET /api/bookings/user", b.requireRole(tokens.RoleAny, b.userBookings))
	mux.HandleFunc("GET /api/bookings", b.requireRole(tokens.RoleAdmin, b.allBookings))
	mux.HandleFunc("PATCH /api/bookings/{id}/status", b.requireRole(tokens.RoleAdmin, b.updateBookingStatus))

	mux.HandleFunc("POST /api/payments/create-order", b.requireRole(tokens.RoleAny, b.createOrder))
	mux.HandleFunc("POST /api/payments/verify", b.requireRole(tokens.RoleAny, b.verifyPayment))

	return middleware.RequestID(b.count(mux))
}

// count records every request by "METHOD /path" with the /api prefix removed.
func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api")
		b.mu.Lock()
		b.hits[key]++
		down := b.unavailable
		b.mu.Unlock()
		if down {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Hits returns how many times route ("POST /auth/refresh") was called.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// SetAccessTTL changes the lifetime of access tokens issued from now on.
func (b *Backend) SetAccessTTL(ttl time.Duration) {
	b.mu.Lock()
	b.accessTTL = ttl
	b.mu.Unlock()
}

// SetUnavailable makes every endpoint answer 503.
func (b *Backend) SetUnavailable(down bool) {
	b.mu.Lock()
	b.unavailable = down
	b.mu.Unlock()
}

// RevokeAccess makes the backend reject token from now on.
func (b *Backend) RevokeAccess(token string) {
	b.mu.Lock()
	b.revoked[token] = true
	b.mu.Unlock()
}

// RevokeRefreshTokens ends every refresh session.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	b.sessions = make(map[string]refreshSession)
	b.mu.Unlock()
}

// IssueAccessToken signs a token for email with the given lifetime, as if the
// backend had issued it earlier.
func (b *Backend) IssueAccessToken(email, role string, ttl time.Duration) string {
	tok, err := b.tokenGen.WithTTL(ttl).GenerateAccessToken(email, role)
	if err != nil {
		panic(err)
	}
	return tok
}

// IssueRefreshToken opens a refresh session for email.
func (b *Backend) IssueRefreshToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.newRefreshLocked(email)
}

// AddUser registers an account directly and returns its profile.
func (b *Backend) AddUser(name, email, password, role string) models.UserProfile {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	acct := &account{
		profile:      models.UserProfile{ID: b.nextID, Name: name, Email: email, Role: role},
		passwordHash: hash,
	}
	b.accounts[email] = acct
	return acct.profile
}

// AddCategory stores a category and returns it with its id.
func (b *Backend) AddCategory(c models.Category) models.Category {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	c.ID = b.nextID
	b.categories = append(b.categories, c)
	return c
}

// AddProduct stores a product and returns it with its id.
func (b *Backend) AddProduct(p models.Product) models.Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	p.ID = b.nextID
	b.products = append(b.products, p)
	return p
}

// AddClass stores a class and returns it with its id.
func (b *Backend) AddClass(s models.Session) models.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s.ID = b.nextID
	if s.Status == "" {
		s.Status = models.SessionScheduled
	}
	b.classes = append(b.classes, s)
	return s
}

// Bookings returns a copy of every booking.
func (b *Backend) Bookings() []models.Booking {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Booking(nil), b.bookings...)
}

// VerifiedPayment returns the payment id verified for orderID, if any.
func (b *Backend) VerifiedPayment(orderID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.verified[orderID]
	return id, ok
}
