package studiotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/phoenixfitness/phoenix-stack/common/httputil"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteFailure(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// ============================================================================
// Catalog
// ============================================================================

func (b *Backend) listCategories(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	httputil.WriteSuccess(w, http.StatusOK, append([]models.Category{}, b.categories...))
}

func (b *Backend) createCategory(w http.ResponseWriter, r *http.Request) {
	var req models.CategoryRequest
	if !decode(w, r, &req) {
		return
	}
	c := b.AddCategory(models.Category{Name: req.Name, Description: req.Description})
	httputil.WriteSuccess(w, http.StatusCreated, c)
}

func (b *Backend) getCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.categories {
		if ok && c.ID == id {
			httputil.WriteSuccess(w, http.StatusOK, c)
			return
		}
	}
	httputil.WriteFailure(w, http.StatusNotFound, "Category not found")
}

func (b *Backend) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	var req models.CategoryRequest
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.categories {
		c := &b.categories[i]
		if ok && c.ID == id {
			c.Name = req.Name
			c.Description = req.Description
			httputil.WriteSuccess(w, http.StatusOK, *c)
			return
		}
	}
	httputil.WriteFailure(w, http.StatusNotFound, "Category not found")
}

func (b *Backend) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.categories {
		if ok && c.ID == id {
			b.categories = append(b.categories[:i], b.categories[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	httputil.WriteFailure(w, http.StatusNotFound, "Category not found")
}

func (b *Backend) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	category, _ := strconv.ParseInt(q.Get("category"), 10, 64)

	b.mu.Lock()
	defer b.mu.Unlock()
	out := []models.Product{}
	for _, p := range b.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if category > 0 && (p.Category == nil || p.Category.ID != category) {
			continue
		}
		out = append(out, p)
	}
	httputil.WriteSuccess(w, http.StatusOK, out)
}

func (b *Backend) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.products {
		if ok && p.ID == id {
			httputil.WriteSuccess(w, http.StatusOK, p)
			return
		}
	}
	httputil.WriteFailure(w, http.StatusNotFound, "Product not found")
}

func (b *Backend) productsByCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []models.Product{}
	for _, p := range b.products {
		if p.Category != nil && p.Category.ID == id {
			out = append(out, p)
		}
	}
	httputil.WriteSuccess(w, http.StatusOK, out)
}

// applyProductLocked copies req onto p. b.mu must be held.
func (b *Backend) applyProductLocked(p *models.Product, req models.ProductRequest) {
	p.Name = req.Name
	p.Description = req.Description
	p.Price = req.Price
	p.OriginalPrice = req.OriginalPrice
	p.Stock = req.Stock
	p.ImageURL = req.ImageURL
	p.Brand = req.Brand
	p.Category = nil
	for _, c := range b.categories {
		if c.ID == req.CategoryID {
			cat := c
			p.Category = &cat
		}
	}
}

func (b *Backend) createProduct(w http.ResponseWriter, r *http.Request) {
	var req models.ProductRequest
	if !decode(w, r, &req) {
		return
	}
	var p models.Product
	b.mu.Lock()
	b.applyProductLocked(&p, req)
	b.mu.Unlock()
	httputil.WriteSuccess(w, http.StatusCreated, b.AddProduct(p))
}

func (b *Backend) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	var req models.ProductRequest
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.products {
		p := &b.products[i]
		if ok && p.ID == id {
			b.applyProductLocked(p, req)
			httputil.WriteSuccess(w, http.StatusOK, *p)
			return
		}
	}
	httputil.WriteFailure(w, http.StatusNotFound, "Product not found")
}

func (b *Backend) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.products {
		if ok && p.ID == id {
			b.products = append(b.products[:i], b.products[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	httputil.WriteFailure(w, http.StatusNotFound, "Product not found")
}

// ============================================================================
// Classes and bookings
// ============================================================================

func (b *Backend) listClasses(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	httputil.WriteSuccess(w, http.StatusOK, append([]models.Session{}, b.classes...))
}

func (b *Backend) upcomingClasses(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []models.Session{}
	for _, s := range b.classes {
		if s.Status == models.SessionScheduled && s.ScheduledDate.After(now) {
			out = append(out, s)
		}
	}
	httputil.WriteSuccess(w, http.StatusOK, out)
}

func (b *Backend) classLocked(id int64) (int, bool) {
	for i, s := range b.classes {
		if s.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (b *Backend) getClass(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.classLocked(id)
	if !ok {
		httputil.WriteFailure(w, http.StatusNotFound, "Session not found")
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, b.classes[i])
}

func (b *Backend) bookClass(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var req models.BookingRequest
	if !decode(w, r, &req) {
		return
	}
	acct := accountFrom(r)

	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.classLocked(id)
	if !ok {
		httputil.WriteFailure(w, http.StatusNotFound, "Session not found")
		return
	}
	cls := &b.classes[i]
	if cls.SpotsLeft() == 0 {
		httputil.WriteFailure(w, http.StatusBadRequest, "Session is full")
		return
	}
	cls.CurrentParticipants++

	status := models.BookingPending
	if req.OrderID != "" {
		status = models.BookingConfirmed
	}
	b.nextID++
	profile := acct.profile
	booked := *cls
	booking := models.Booking{
		ID:            b.nextID,
		User:          &profile,
		Session:       &booked,
		Status:        status,
		Amount:        cls.Price,
		Notes:         req.Notes,
		PaymentID:     req.PaymentID,
		OrderID:       req.OrderID,
		PaymentMethod: req.PaymentMethod,
		MeetLink:      cls.MeetLink,
		CreatedAt:     models.Timestamp{Time: time.Now().UTC().Truncate(time.Second)},
	}
	b.bookings = append(b.bookings, booking)
	httputil.WriteSuccess(w, http.StatusCreated, booking)
}

func (b *Backend) createClass(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if !decode(w, r, &req) {
		return
	}
	cls := b.AddClass(models.Session{
		Title:           req.Title,
		Description:     req.Description,
		InstructorName:  req.InstructorName,
		ScheduledDate:   req.ScheduledDate,
		Duration:        req.Duration,
		MaxParticipants: req.MaxParticipants,
		Price:           req.Price,
		ImageURL:        req.ImageURL,
		MeetLink:        req.MeetLink,
	})
	httputil.WriteSuccess(w, http.StatusCreated, cls)
}

func (b *Backend) updateClass(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var req models.SessionRequest
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.classLocked(id)
	if !ok {
		httputil.WriteFailure(w, http.StatusNotFound, "Session not found")
		return
	}
	cls := &b.classes[i]
	if req.MaxParticipants < cls.CurrentParticipants {
		httputil.WriteFailure(w, http.StatusBadRequest, "Max participants is below current bookings")
		return
	}
	cls.Title = req.Title
	cls.Description = req.Description
	cls.InstructorName = req.InstructorName
	cls.ScheduledDate = req.ScheduledDate
	cls.Duration = req.Duration
	cls.MaxParticipants = req.MaxParticipants
	cls.Price = req.Price
	cls.ImageURL = req.ImageURL
	cls.MeetLink = req.MeetLink
	httputil.WriteSuccess(w, http.StatusOK, *cls)
}

func (b *Backend) deleteClass(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.classLocked(id)
	if !ok {
		httputil.WriteFailure(w, http.StatusNotFound, "Session not found")
		return
	}
	b.classes = append(b.classes[:i], b.classes[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) userBookings(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []models.Booking{}
	for _, bk := range b.bookings {
		if bk.User != nil && bk.User.Email == acct.profile.Email {
			out = append(out, bk)
		}
	}
	httputil.WriteSuccess(w, http.StatusOK, out)
}

func (b *Backend) allBookings(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	httputil.WriteSuccess(w, http.StatusOK, append([]models.Booking{}, b.bookings...))
}

func (b *Backend) updateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var req models.StatusUpdate
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.bookings {
		bk := &b.bookings[i]
		if bk.ID != id {
			continue
		}
		if !bk.Status.CanTransition(req.Status) {
			httputil.WriteFailure(w, http.StatusBadRequest,
				fmt.Sprintf("Cannot change booking from %s to %s", bk.Status, req.Status))
			return
		}
		bk.Status = req.Status
		httputil.WriteSuccess(w, http.StatusOK, *bk)
		return
	}
	httputil.WriteFailure(w, http.StatusNotFound, "Booking not found")
}

// ============================================================================
// Payments
// ============================================================================

func (b *Backend) createOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		httputil.WriteFailure(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	order := models.Order{
		OrderID:  fmt.Sprintf("order_%d", b.nextID),
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "created",
		KeyID:    "rzp_test_key",
	}
	b.orders[order.OrderID] = order
	httputil.WriteSuccess(w, http.StatusOK, order)
}

func (b *Backend) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	_, ok := b.orders[req.OrderID]
	if ok {
		b.verified[req.OrderID] = req.PaymentID
	}
	b.mu.Unlock()
	if !ok {
		httputil.WriteFailure(w, http.StatusBadRequest, "Unknown order")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Payment verified",
	})
}
