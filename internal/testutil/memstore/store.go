// Package memstore is an in-memory ordertx.Runner for service tests.
// Transactions are serialized by one mutex and roll back by discarding a copy.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/ports/ordertx"
)

type state struct {
	seq        int64
	users      map[int64]domain.User
	products   map[int64]domain.Product
	orders     map[int64]domain.Order
	payments   map[int64]domain.Payment // by order id
	refs       map[string]int64         // merchant ref -> order id, superseded refs included
	deliveries map[int64]domain.DeliveryOrder
	tracks     []domain.TrackPoint
	waybills   map[int64]domain.Waybill // by order id
	activity   []domain.ActivityEntry
}

func newState() *state {
	return &state{
		users:      map[int64]domain.User{},
		products:   map[int64]domain.Product{},
		orders:     map[int64]domain.Order{},
		payments:   map[int64]domain.Payment{},
		refs:       map[string]int64{},
		deliveries: map[int64]domain.DeliveryOrder{},
		waybills:   map[int64]domain.Waybill{},
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:        s.seq,
		users:      make(map[int64]domain.User, len(s.users)),
		products:   make(map[int64]domain.Product, len(s.products)),
		orders:     make(map[int64]domain.Order, len(s.orders)),
		payments:   make(map[int64]domain.Payment, len(s.payments)),
		refs:       make(map[string]int64, len(s.refs)),
		deliveries: make(map[int64]domain.DeliveryOrder, len(s.deliveries)),
		tracks:     append([]domain.TrackPoint(nil), s.tracks...),
		waybills:   make(map[int64]domain.Waybill, len(s.waybills)),
		activity:   append([]domain.ActivityEntry(nil), s.activity...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.refs {
		c.refs[k] = v
	}
	for k, v := range s.deliveries {
		c.deliveries[k] = v
	}
	for k, v := range s.waybills {
		c.waybills[k] = v
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store is the in-memory runner.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	// Fail, when set, is consulted before every repository call; a non-nil error aborts it.
	Fail func(op string) error
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

var _ ordertx.Runner = (*Store)(nil)

// WithTx runs fn on a private copy and publishes it only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx ordertx.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&repo{s: s, st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// View runs fn on the committed state.
func (s *Store) View(ctx context.Context, fn func(q ordertx.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&repo{s: s, st: s.st})
}

// AddUser seeds a user and returns its id.
func (s *Store) AddUser(u domain.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.st.next()
	}
	if u.Role == domain.RoleDriver && u.Availability == "" {
		u.Availability = domain.AvailabilityAvailable
	}
	s.st.users[u.ID] = u
	return u.ID
}

// AddProduct seeds a product and returns its id.
func (s *Store) AddProduct(p domain.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.st.next()
	}
	s.st.products[p.ID] = p
	return p.ID
}

// SetProductPrice changes the catalogue price.
func (s *Store) SetProductPrice(id, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.st.products[id]
	p.Price = price
	s.st.products[id] = p
}

// Product returns the committed product.
func (s *Store) Product(id int64) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[id]
}

// User returns the committed user.
func (s *Store) User(id int64) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.users[id]
}

// Order returns the committed order.
func (s *Store) Order(id int64) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.orders[id]
}

// PutOrder seeds or overwrites an order as is.
func (s *Store) PutOrder(o domain.Order) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.st.next()
	}
	if o.Code == "" {
		o.Code = fmt.Sprintf("ORD-SEED-%d", o.ID)
	}
	s.st.orders[o.ID] = o
	return o.ID
}

// Payment returns the committed payment of an order.
func (s *Store) Payment(orderID int64) (domain.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payments[orderID]
	return p, ok
}

// PutPayment seeds or overwrites a payment.
func (s *Store) PutPayment(p domain.Payment) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.st.next()
	}
	s.st.payments[p.OrderID] = p
	if p.MerchantRef != "" {
		s.st.refs[p.MerchantRef] = p.OrderID
	}
	return p.ID
}

// Delivery returns the committed delivery order.
func (s *Store) Delivery(id int64) domain.DeliveryOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deliveries[id]
}

// Tracks returns committed track points.
func (s *Store) Tracks() []domain.TrackPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TrackPoint(nil), s.st.tracks...)
}

// Activity returns committed audit entries.
func (s *Store) Activity() []domain.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ActivityEntry(nil), s.st.activity...)
}

type repo struct {
	s  *Store
	st *state
}

var _ ordertx.Repository = (*repo)(nil)

func (r *repo) fail(op string) error {
	if r.s.Fail == nil {
		return nil
	}
	return r.s.Fail(op)
}

func (r *repo) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if err := r.fail("GetProduct"); err != nil {
		return nil, err
	}
	p, ok := r.st.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) GetProductForUpdate(_ context.Context, id int64) (*domain.Product, error) {
	if err := r.fail("GetProductForUpdate"); err != nil {
		return nil, err
	}
	p, ok := r.st.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListProducts(_ context.Context, q ordertx.ProductQuery) ([]domain.Product, error) {
	if err := r.fail("ListProducts"); err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))
	var out []domain.Product
	for _, p := range r.st.products {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.InStock && p.Stock <= 0 {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *repo) AddProductStock(_ context.Context, id int64, delta int) error {
	if err := r.fail("AddProductStock"); err != nil {
		return err
	}
	p, ok := r.st.products[id]
	if !ok {
		return fmt.Errorf("product %d not found", id)
	}
	if p.Stock+delta < 0 {
		return fmt.Errorf("product %d: stock check violated", id)
	}
	p.Stock += delta
	r.st.products[id] = p
	return nil
}

func (r *repo) InsertOrder(_ context.Context, o *domain.Order) error {
	if err := r.fail("InsertOrder"); err != nil {
		return err
	}
	for _, existing := range r.st.orders {
		if existing.Code == o.Code {
			return ordertx.ErrDuplicateCode
		}
	}
	o.ID = r.st.next()
	o.CreatedAt = r.s.now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = r.st.next()
		o.Items[i].OrderID = o.ID
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	r.st.orders[o.ID] = cp
	return nil
}

func (r *repo) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	if err := r.fail("GetOrder"); err != nil {
		return nil, err
	}
	o, ok := r.st.orders[id]
	if !ok {
		return nil, nil
	}
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o, nil
}

func (r *repo) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	if err := r.fail("GetOrderForUpdate"); err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, id)
}

func (r *repo) ListOrders(_ context.Context, q ordertx.OrderQuery) ([]domain.Order, error) {
	if err := r.fail("ListOrders"); err != nil {
		return nil, err
	}
	var out []domain.Order
	for _, o := range r.st.orders {
		if q.UserID > 0 && o.UserID != q.UserID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if q.DriverID > 0 {
			matched := false
			for _, d := range r.st.deliveries {
				if d.OrderID == o.ID && d.DriverID == q.DriverID {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *repo) UpdateOrderStatus(_ context.Context, c ordertx.OrderStatusChange) error {
	if err := r.fail("UpdateOrderStatus"); err != nil {
		return err
	}
	o, ok := r.st.orders[c.ID]
	if !ok {
		return fmt.Errorf("order %d not found", c.ID)
	}
	o.Status = c.Status
	if c.CancelledAt != nil {
		o.CancelledAt = c.CancelledAt
	}
	if c.ArrivedAt != nil {
		o.ArrivedAt = c.ArrivedAt
	}
	o.UpdatedAt = r.s.now()
	r.st.orders[c.ID] = o
	return nil
}

func (r *repo) GetPaymentByOrder(_ context.Context, orderID int64) (*domain.Payment, error) {
	if err := r.fail("GetPaymentByOrder"); err != nil {
		return nil, err
	}
	p, ok := r.st.payments[orderID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) GetPaymentByOrderForUpdate(ctx context.Context, orderID int64) (*domain.Payment, error) {
	return r.GetPaymentByOrder(ctx, orderID)
}

func (r *repo) GetPaymentByMerchantRef(_ context.Context, merchantRef string) (*domain.Payment, error) {
	if err := r.fail("GetPaymentByMerchantRef"); err != nil {
		return nil, err
	}
	return r.paymentByRef(merchantRef), nil
}

func (r *repo) GetPaymentByMerchantRefForUpdate(_ context.Context, merchantRef string) (*domain.Payment, error) {
	if err := r.fail("GetPaymentByMerchantRefForUpdate"); err != nil {
		return nil, err
	}
	return r.paymentByRef(merchantRef), nil
}

func (r *repo) paymentByRef(merchantRef string) *domain.Payment {
	orderID, ok := r.st.refs[merchantRef]
	if !ok {
		return nil
	}
	p, ok := r.st.payments[orderID]
	if !ok {
		return nil
	}
	return &p
}

func (r *repo) UpsertPayment(_ context.Context, p *domain.Payment) error {
	if err := r.fail("UpsertPayment"); err != nil {
		return err
	}
	if existing, ok := r.st.payments[p.OrderID]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = r.st.next()
		p.CreatedAt = r.s.now()
	}
	r.st.payments[p.OrderID] = *p
	if _, ok := r.st.refs[p.MerchantRef]; !ok {
		r.st.refs[p.MerchantRef] = p.OrderID
	}
	return nil
}

func (r *repo) UpdatePaymentStatus(_ context.Context, id int64, status domain.PaymentStatus, at time.Time) error {
	if err := r.fail("UpdatePaymentStatus"); err != nil {
		return err
	}
	for orderID, p := range r.st.payments {
		if p.ID != id {
			continue
		}
		p.Status = status
		switch status {
		case domain.PaymentPaid:
			p.PaidAt = &at
		case domain.PaymentRefunded:
			p.RefundedAt = &at
		}
		r.st.payments[orderID] = p
		return nil
	}
	return fmt.Errorf("payment %d not found", id)
}

func (r *repo) GetUser(_ context.Context, id int64) (*domain.User, error) {
	if err := r.fail("GetUser"); err != nil {
		return nil, err
	}
	u, ok := r.st.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	return r.GetUser(ctx, id)
}

func (r *repo) UpdateAvailability(_ context.Context, id int64, a domain.Availability) error {
	if err := r.fail("UpdateAvailability"); err != nil {
		return err
	}
	u, ok := r.st.users[id]
	if !ok || u.Role != domain.RoleDriver {
		return fmt.Errorf("driver %d not found", id)
	}
	u.Availability = a
	r.st.users[id] = u
	return nil
}

func (r *repo) UpdatePushToken(_ context.Context, id int64, token string) error {
	if err := r.fail("UpdatePushToken"); err != nil {
		return err
	}
	u, ok := r.st.users[id]
	if !ok {
		return fmt.Errorf("user %d not found", id)
	}
	u.PushToken = token
	r.st.users[id] = u
	return nil
}

func (r *repo) ListDrivers(_ context.Context, onlyAvailable bool) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.st.users {
		if u.Role != domain.RoleDriver {
			continue
		}
		if onlyAvailable && u.Availability != domain.AvailabilityAvailable {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repo) ListAdminIDs(_ context.Context) ([]int64, error) {
	var ids []int64
	for _, u := range r.st.users {
		if u.Role == domain.RoleAdmin {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *repo) UpsertDelivery(_ context.Context, d *domain.DeliveryOrder) error {
	if err := r.fail("UpsertDelivery"); err != nil {
		return err
	}
	for id, existing := range r.st.deliveries {
		if existing.OrderID == d.OrderID {
			d.ID = id
			break
		}
	}
	if d.ID == 0 {
		d.ID = r.st.next()
	}
	d.CompletedAt = nil
	d.UpdatedAt = r.s.now()
	r.st.deliveries[d.ID] = *d
	return nil
}

func (r *repo) GetDelivery(_ context.Context, id int64) (*domain.DeliveryOrder, error) {
	if err := r.fail("GetDelivery"); err != nil {
		return nil, err
	}
	d, ok := r.st.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *repo) GetDeliveryForUpdate(ctx context.Context, id int64) (*domain.DeliveryOrder, error) {
	return r.GetDelivery(ctx, id)
}

func (r *repo) GetDeliveryByOrder(_ context.Context, orderID int64) (*domain.DeliveryOrder, error) {
	for _, d := range r.st.deliveries {
		if d.OrderID == orderID {
			return &d, nil
		}
	}
	return nil, nil
}

func (r *repo) UpdateDeliveryStatus(_ context.Context, id int64, status domain.DeliveryStatus, completedAt *time.Time) error {
	if err := r.fail("UpdateDeliveryStatus"); err != nil {
		return err
	}
	d, ok := r.st.deliveries[id]
	if !ok {
		return fmt.Errorf("delivery %d not found", id)
	}
	d.Status = status
	if completedAt != nil {
		d.CompletedAt = completedAt
	}
	d.UpdatedAt = r.s.now()
	r.st.deliveries[id] = d
	return nil
}

func (r *repo) UpdateDeliveryEstimate(_ context.Context, id int64, est domain.Estimate) error {
	if err := r.fail("UpdateDeliveryEstimate"); err != nil {
		return err
	}
	d, ok := r.st.deliveries[id]
	if !ok {
		return fmt.Errorf("delivery %d not found", id)
	}
	km, mins := est.DistanceKm, est.DurationMin
	d.DistanceKm, d.EstimatedMinutes = &km, &mins
	r.st.deliveries[id] = d
	return nil
}

func (r *repo) ListDeliveriesByDriver(_ context.Context, driverID int64) ([]domain.DeliveryOrder, error) {
	var out []domain.DeliveryOrder
	for _, d := range r.st.deliveries {
		if d.DriverID == driverID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *repo) InsertTrackPoint(_ context.Context, p *domain.TrackPoint) error {
	if err := r.fail("InsertTrackPoint"); err != nil {
		return err
	}
	p.ID = r.st.next()
	if p.RecordedAt.IsZero() {
		p.RecordedAt = r.s.now()
	}
	r.st.tracks = append(r.st.tracks, *p)
	return nil
}

func (r *repo) LatestTrackPoint(_ context.Context, deliveryID int64) (*domain.TrackPoint, error) {
	if err := r.fail("LatestTrackPoint"); err != nil {
		return nil, err
	}
	var latest *domain.TrackPoint
	for i := range r.st.tracks {
		p := r.st.tracks[i]
		if p.DeliveryID != deliveryID {
			continue
		}
		if latest == nil || p.RecordedAt.After(latest.RecordedAt) ||
			(p.RecordedAt.Equal(latest.RecordedAt) && p.ID > latest.ID) {
			latest = &p
		}
	}
	return latest, nil
}

func (r *repo) ListTrackPoints(_ context.Context, deliveryID int64, limit int) ([]domain.TrackPoint, error) {
	var out []domain.TrackPoint
	for _, p := range r.st.tracks {
		if p.DeliveryID == deliveryID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *repo) UpsertWaybill(_ context.Context, w *domain.Waybill) error {
	if err := r.fail("UpsertWaybill"); err != nil {
		return err
	}
	if existing, ok := r.st.waybills[w.OrderID]; ok {
		existing.DriverID = w.DriverID
		if w.Notes != "" {
			existing.Notes = w.Notes
		}
		r.st.waybills[w.OrderID] = existing
		*w = existing
		return nil
	}
	w.ID = r.st.next()
	w.IssuedAt = r.s.now()
	r.st.waybills[w.OrderID] = *w
	return nil
}

func (r *repo) GetWaybillByOrder(_ context.Context, orderID int64) (*domain.Waybill, error) {
	w, ok := r.st.waybills[orderID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *repo) AppendActivity(_ context.Context, e *domain.ActivityEntry) error {
	if err := r.fail("AppendActivity"); err != nil {
		return err
	}
	e.ID = r.st.next()
	e.CreatedAt = r.s.now()
	r.st.activity = append(r.st.activity, *e)
	return nil
}
