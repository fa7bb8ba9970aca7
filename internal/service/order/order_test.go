package order_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/notify"
	"palmshell-dispatch/internal/service/order"
	"palmshell-dispatch/internal/service/payment"
	"palmshell-dispatch/internal/testutil/memstore"
	"palmshell-dispatch/internal/testutil/testlog"
)

type sent struct {
	userID int64
	n      notify.Notification
}

type recordingNotes struct {
	users  []sent
	admins []notify.Notification
}

func (r *recordingNotes) User(_ context.Context, userID int64, n notify.Notification) {
	r.users = append(r.users, sent{userID: userID, n: n})
}

func (r *recordingNotes) Admins(_ context.Context, n notify.Notification) {
	r.admins = append(r.admins, n)
}

type stubRefunder struct {
	fn    func(context.Context, int64) (domain.Payment, error)
	calls int
}

func (s *stubRefunder) Refund(ctx context.Context, orderID int64) (domain.Payment, error) {
	s.calls++
	if s.fn == nil {
		return domain.Payment{Status: domain.PaymentRefunded}, nil
	}
	return s.fn(ctx, orderID)
}

type fixture struct {
	store    *memstore.Store
	notes    *recordingNotes
	refunder *stubRefunder
	rec      *testlog.Recorder
	created  prometheus.Counter
	svc      *order.Service

	mitra, other, admin, driver domain.Actor
	shell, kernel               int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	policy, err := authz.NewPolicy()
	require.NoError(t, err)

	f := &fixture{
		store:    memstore.New(),
		notes:    &recordingNotes{},
		refunder: &stubRefunder{},
		rec:      testlog.New(),
		created:  prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_created_total"}),
	}
	f.mitra = domain.Actor{ID: f.store.AddUser(domain.User{Name: "Mitra", Role: domain.RoleMitra}), Role: domain.RoleMitra}
	f.other = domain.Actor{ID: f.store.AddUser(domain.User{Name: "Other", Role: domain.RoleMitra}), Role: domain.RoleMitra}
	f.admin = domain.Actor{ID: f.store.AddUser(domain.User{Name: "Admin", Role: domain.RoleAdmin}), Role: domain.RoleAdmin}
	f.driver = domain.Actor{ID: f.store.AddUser(domain.User{Name: "Budi", Role: domain.RoleDriver}), Role: domain.RoleDriver}
	f.shell = f.store.AddProduct(domain.Product{Name: "Cangkang Sawit", Price: 100000, Stock: 10})
	f.kernel = f.store.AddProduct(domain.Product{Name: "Cangkang Halus", Price: 50000, Stock: 5})

	f.svc = order.NewService(order.Deps{
		Repo:     f.store,
		Policy:   policy,
		Refunder: f.refunder,
		Notify:   f.notes,
		Logger:   f.rec.Logger(),
		Created:  f.created,
	})
	return f
}

func (f *fixture) input() domain.CreateOrderInput {
	return domain.CreateOrderInput{
		Items: []domain.OrderLineInput{
			{ProductID: f.shell, Quantity: 2},
			{ProductID: f.kernel, Quantity: 1},
		},
		Destination: domain.Destination{Location: domain.Location{Lat: 0.5071, Lng: 101.4478}, Address: "Jl. Sudirman, Pekanbaru"},
	}
}

func (f *fixture) create(t *testing.T) domain.Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), f.mitra, f.input())
	require.NoError(t, err)
	return o
}

func TestCreate_TotalsAndReservesStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.create(t)

	require.Equal(t, int64(250000), o.Total)
	require.Equal(t, domain.OrderPending, o.Status)
	require.Regexp(t, `^ORD-[0-9A-F]{12}$`, o.Code)
	require.Len(t, o.Items, 2)
	require.Equal(t, 8, f.store.Product(f.shell).Stock)
	require.Equal(t, 4, f.store.Product(f.kernel).Stock)
	require.Equal(t, float64(1), promtest.ToFloat64(f.created))

	require.Len(t, f.notes.admins, 1)
	require.Equal(t, notify.KindOrderCreated, f.notes.admins[0].Kind)
	require.Len(t, f.rec.Events("order_created"), 1)

	activity := f.store.Activity()
	require.Len(t, activity, 1)
	require.Equal(t, domain.ActionOrderCreated, activity[0].Action)
	require.Equal(t, o.ID, activity[0].OrderID)
}

func TestCreate_WithPaymentMethodWaitsForPayment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := f.input()
	in.PaymentMethod = "BRIVA"

	o, err := f.svc.Create(context.Background(), f.mitra, in)
	require.NoError(t, err)
	require.Equal(t, domain.OrderPendingPayment, o.Status)
}

func TestCreate_PriceSnapshotSurvivesPriceChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.create(t)
	f.store.SetProductPrice(f.shell, 175000)

	got, err := f.svc.Get(context.Background(), f.mitra, o.ID)
	require.NoError(t, err)
	require.Equal(t, int64(250000), got.Total)

	var sum int64
	for _, it := range got.Items {
		require.Equal(t, it.Price*int64(it.Quantity), it.Subtotal)
		if it.ProductID == f.shell {
			require.Equal(t, int64(100000), it.Price)
		}
		sum += it.Subtotal
	}
	require.Equal(t, got.Total, sum)
}

func TestCreate_OutOfStockReservesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := f.input()
	in.Items[1].Quantity = 6

	_, err := f.svc.Create(context.Background(), f.mitra, in)
	require.ErrorIs(t, err, apperr.ErrOutOfStock)

	var se *apperr.StockError
	require.True(t, errors.As(err, &se))
	require.Equal(t, f.kernel, se.ProductID)
	require.Equal(t, 5, se.Available)

	require.Equal(t, 10, f.store.Product(f.shell).Stock)
	require.Equal(t, 5, f.store.Product(f.kernel).Stock)
	require.Empty(t, f.store.Activity())
	require.Equal(t, float64(0), promtest.ToFloat64(f.created))
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.mitra, domain.CreateOrderInput{Destination: f.input().Destination})
	require.ErrorIs(t, err, apperr.ErrInvalidItems)

	in := f.input()
	in.Items[0].Quantity = 0
	_, err = f.svc.Create(ctx, f.mitra, in)
	require.ErrorIs(t, err, apperr.ErrInvalidItems)

	in = f.input()
	in.Items = append(in.Items, domain.OrderLineInput{ProductID: 999, Quantity: 1})
	_, err = f.svc.Create(ctx, f.mitra, in)
	require.ErrorIs(t, err, apperr.ErrInvalidItems)
	require.Equal(t, 10, f.store.Product(f.shell).Stock)

	in = f.input()
	in.Destination.Lat = 91
	_, err = f.svc.Create(ctx, f.mitra, in)
	require.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = f.svc.Create(ctx, f.driver, f.input())
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Create(ctx, f.admin, f.input())
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCreate_MergesRepeatedLines(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := f.input()
	in.Items = append(in.Items, domain.OrderLineInput{ProductID: f.shell, Quantity: 3})

	o, err := f.svc.Create(context.Background(), f.mitra, in)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	require.Equal(t, int64(550000), o.Total)
	require.Equal(t, 5, f.store.Product(f.shell).Stock)
}

func TestCreate_RetriesCodeCollision(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	collisions := 1
	f.store.Fail = func(op string) error {
		if op == "InsertOrder" && collisions > 0 {
			collisions--
			return fmt.Errorf("insert: %w", ordertx.ErrDuplicateCode)
		}
		return nil
	}

	o := f.create(t)
	require.NotZero(t, o.ID)
	require.Equal(t, 8, f.store.Product(f.shell).Stock)
}

func TestGet_Access(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.create(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, f.admin, o.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.other, o.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Get(ctx, f.driver, o.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, f.store.WithTx(ctx, func(tx ordertx.Repository) error {
		return tx.UpsertDelivery(ctx, &domain.DeliveryOrder{OrderID: o.ID, DriverID: f.driver.ID, Status: domain.DeliveryAssigned})
	}))
	_, err = f.svc.Get(ctx, f.driver, o.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.mitra, 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestList_ScopedByRole(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	mine := f.create(t)
	in := f.input()
	in.Items = in.Items[:1]
	_, err := f.svc.Create(ctx, f.other, in)
	require.NoError(t, err)

	got, err := f.svc.List(ctx, f.mitra, domain.ListOrdersFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, mine.ID, got[0].ID)

	all, err := f.svc.List(ctx, f.admin, domain.ListOrdersFilter{Status: domain.OrderPending})
	require.NoError(t, err)
	require.Len(t, all, 2)

	assigned, err := f.svc.List(ctx, f.driver, domain.ListOrdersFilter{})
	require.NoError(t, err)
	require.Empty(t, assigned)

	_, err = f.svc.List(ctx, f.admin, domain.ListOrdersFilter{Status: "shipped"})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestApprove(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.create(t)
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, f.mitra, o.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := f.svc.Approve(ctx, f.admin, o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderConfirmed, got.Status)
	require.Equal(t, domain.OrderConfirmed, f.store.Order(o.ID).Status)
	require.Len(t, f.notes.users, 1)
	require.Equal(t, f.mitra.ID, f.notes.users[0].userID)
	require.Equal(t, "Order Approved", f.notes.users[0].n.Title)

	_, err = f.svc.Approve(ctx, f.admin, o.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.Approve(ctx, f.admin, 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancel_ReleasesStockOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.create(t)
	ctx := context.Background()

	res, err := f.svc.Cancel(ctx, f.mitra, o.ID, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, res.Order.Status)
	require.NotNil(t, res.Order.CancelledAt)
	require.Equal(t, domain.RefundNone, res.RefundStatus)
	require.Equal(t, 10, f.store.Product(f.shell).Stock)
	require.Equal(t, 5, f.store.Product(f.kernel).Stock)

	again, err := f.svc.Cancel(ctx, f.admin, o.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, again.Order.Status)
	require.Equal(t, 10, f.store.Product(f.shell).Stock)
	require.Equal(t, 5, f.store.Product(f.kernel).Stock)
	require.Zero(t, f.refunder.calls)
}

func TestCancel_Guards(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)

	_, err := f.svc.Cancel(ctx, f.other, o.ID, "")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Cancel(ctx, f.driver, o.ID, "")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	for _, st := range []domain.OrderStatus{domain.OrderOnDelivery, domain.OrderCompleted} {
		id := f.store.PutOrder(domain.Order{UserID: f.mitra.ID, Status: st})
		_, err := f.svc.Cancel(ctx, f.mitra, id, "")
		require.ErrorIs(t, err, apperr.ErrInvalidState, st)
		require.Equal(t, st, f.store.Order(id).Status)
	}

	_, err = f.svc.Cancel(ctx, f.mitra, 999, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancel_RollsBackOnStoreFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.create(t)
	f.store.Fail = func(op string) error {
		if op == "UpdateOrderStatus" {
			return errors.New("connection reset")
		}
		return nil
	}

	_, err := f.svc.Cancel(context.Background(), f.mitra, o.ID, "")
	require.Error(t, err)
	require.Equal(t, 8, f.store.Product(f.shell).Stock)
	require.Equal(t, domain.OrderPending, f.store.Order(o.ID).Status)
}

func TestCancel_PaidOrderIsRefunded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.create(t)
	f.store.PutPayment(domain.Payment{OrderID: o.ID, MerchantRef: "PAY-1", Amount: o.Total, Status: domain.PaymentPaid})

	ctrl := gomock.NewController(t)
	refunder := NewMockRefunder(ctrl)
	refunder.EXPECT().Refund(gomock.Any(), o.ID).Return(domain.Payment{Status: domain.PaymentRefunded}, nil)

	policy, err := authz.NewPolicy()
	require.NoError(t, err)
	svc := order.NewService(order.Deps{Repo: f.store, Policy: policy, Refunder: refunder, Notify: f.notes})

	res, err := svc.Cancel(context.Background(), f.mitra, o.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.RefundSucceeded, res.RefundStatus)
}

func TestCancel_RefundFailureStillCancels(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.create(t)
	f.store.PutPayment(domain.Payment{OrderID: o.ID, MerchantRef: "PAY-1", Amount: o.Total, Status: domain.PaymentPaid})
	f.refunder.fn = func(context.Context, int64) (domain.Payment, error) {
		return domain.Payment{}, apperr.Gateway("request refund", errors.New("provider down"))
	}

	res, err := f.svc.Cancel(context.Background(), f.mitra, o.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, res.Order.Status)
	require.Equal(t, domain.RefundFailed, res.RefundStatus)
	require.Contains(t, res.RefundError, "provider down")

	p, _ := f.store.Payment(o.ID)
	require.Equal(t, domain.PaymentPaid, p.Status)
	require.Equal(t, domain.OrderCancelled, f.store.Order(o.ID).Status)
	require.Len(t, f.rec.Events("refund_failed"), 1)
	require.Len(t, f.notes.admins, 2)
	require.Equal(t, notify.KindRefundFailed, f.notes.admins[1].Kind)
}

func TestCancel_FreesDriverOfActiveDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t)

	var deliveryID int64
	require.NoError(t, f.store.WithTx(ctx, func(tx ordertx.Repository) error {
		d := &domain.DeliveryOrder{OrderID: o.ID, DriverID: f.driver.ID, Status: domain.DeliveryAssigned}
		if err := tx.UpsertDelivery(ctx, d); err != nil {
			return err
		}
		deliveryID = d.ID
		return tx.UpdateAvailability(ctx, f.driver.ID, domain.AvailabilityBusy)
	}))

	_, err := f.svc.Cancel(ctx, f.admin, o.ID, "duplicate")
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryCancelled, f.store.Delivery(deliveryID).Status)
	require.Equal(t, domain.AvailabilityAvailable, f.store.User(f.driver.ID).Availability)
}

// Pending order with a paid payment, cancelled by its mitra, refunded through the provider.
func TestCancel_PaidPendingOrderEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	policy, err := authz.NewPolicy()
	require.NoError(t, err)

	refunds := 0
	pay := payment.NewService(payment.Deps{
		Repo:    f.store,
		Gateway: refundingGateway{calls: &refunds},
		Policy:  policy,
	})
	svc := order.NewService(order.Deps{Repo: f.store, Policy: policy, Refunder: pay, Notify: f.notes})

	o := f.create(t)
	f.store.PutPayment(domain.Payment{OrderID: o.ID, MerchantRef: "PAY-1", Amount: o.Total, Status: domain.PaymentPaid})

	res, err := svc.Cancel(context.Background(), f.mitra, o.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.RefundSucceeded, res.RefundStatus)
	require.Equal(t, 1, refunds)

	require.Equal(t, domain.OrderCancelled, f.store.Order(o.ID).Status)
	require.Equal(t, 10, f.store.Product(f.shell).Stock)
	require.Equal(t, 5, f.store.Product(f.kernel).Stock)

	p, _ := f.store.Payment(o.ID)
	require.Equal(t, domain.PaymentRefunded, p.Status)
	require.NotNil(t, p.RefundedAt)
}

type refundingGateway struct {
	calls *int
}

func (refundingGateway) CreateIntent(context.Context, payment.IntentRequest) (payment.Intent, error) {
	return payment.Intent{}, errors.New("not used")
}

func (refundingGateway) VerifyCallback(string, []byte) bool { return false }

func (g refundingGateway) RequestRefund(context.Context, domain.Payment) (payment.RefundResult, error) {
	*g.calls++
	return payment.RefundResult{Success: true}, nil
}

func TestPolicyDenialStopsEarly(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	pol := NewMockAuthorizer(ctrl)
	pol.EXPECT().Require(gomock.Any(), authz.ResOrder, authz.ActApprove).Return(apperr.ErrForbidden)

	store := memstore.New()
	store.Fail = func(op string) error {
		t.Fatalf("store must not be touched, got %s", op)
		return nil
	}
	svc := order.NewService(order.Deps{Repo: store, Policy: pol})

	_, err := svc.Approve(context.Background(), domain.Actor{ID: 1, Role: domain.RoleAdmin}, 1)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}
