package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/http/handlers"
)

type stubOrderService struct {
	createFn  func(ctx context.Context, a domain.Actor, in domain.CreateOrderInput) (domain.Order, error)
	getFn     func(ctx context.Context, a domain.Actor, id int64) (domain.Order, error)
	listFn    func(ctx context.Context, a domain.Actor, f domain.ListOrdersFilter) ([]domain.Order, error)
	approveFn func(ctx context.Context, a domain.Actor, id int64) (domain.Order, error)
	cancelFn  func(ctx context.Context, a domain.Actor, id int64, reason string) (domain.CancelResult, error)
}

func (s *stubOrderService) Create(ctx context.Context, a domain.Actor, in domain.CreateOrderInput) (domain.Order, error) {
	return s.createFn(ctx, a, in)
}

func (s *stubOrderService) Get(ctx context.Context, a domain.Actor, id int64) (domain.Order, error) {
	return s.getFn(ctx, a, id)
}

func (s *stubOrderService) List(ctx context.Context, a domain.Actor, f domain.ListOrdersFilter) ([]domain.Order, error) {
	return s.listFn(ctx, a, f)
}

func (s *stubOrderService) Approve(ctx context.Context, a domain.Actor, id int64) (domain.Order, error) {
	return s.approveFn(ctx, a, id)
}

func (s *stubOrderService) Cancel(ctx context.Context, a domain.Actor, id int64, reason string) (domain.CancelResult, error) {
	return s.cancelFn(ctx, a, id, reason)
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:     7,
		UserID: mitra.ID,
		Code:   "ORD-0123456789AB",
		Items: []domain.OrderItem{
			domain.NewOrderItem(1, "Cangkang Grade A", 100000, 2),
		},
		Total:       200000,
		Destination: domain.Destination{Location: domain.Location{Lat: -6.2, Lng: 106.8}, Address: "Jl. Sudirman 1"},
		Status:      domain.OrderOnDelivery,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestOrderHandler_Create_OK(t *testing.T) {
	t.Parallel()

	svc := &stubOrderService{
		createFn: func(ctx context.Context, a domain.Actor, in domain.CreateOrderInput) (domain.Order, error) {
			require.Equal(t, mitra, a)
			require.Equal(t, []domain.OrderLineInput{{ProductID: 1, Quantity: 2}}, in.Items)
			require.Equal(t, -6.2, in.Destination.Lat)
			require.Equal(t, 106.8, in.Destination.Lng)
			require.Equal(t, "Jl. Sudirman 1", in.Destination.Address)
			require.Equal(t, "BRIVA", in.PaymentMethod)
			return sampleOrder(), nil
		},
	}
	h := handlers.NewOrderHandler(testLogger(), svc)

	body := `{"items":[{"product_id":1,"quantity":2}],"destination":{"lat":-6.2,"lng":106.8,"address":"Jl. Sudirman 1"},"payment_method":"BRIVA"}`
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(http.MethodPost, "/orders", body, &mitra, nil))

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "/orders/7", rr.Header().Get("Location"))

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, "ORD-0123456789AB", resp["code"])
	require.Equal(t, "on_delivery", resp["status"])
	require.Equal(t, "on_the_way", resp["status_display"])
	require.Equal(t, float64(200000), resp["total"])
}

func TestOrderHandler_Create_Validation(t *testing.T) {
	t.Parallel()

	svc := &stubOrderService{
		createFn: func(ctx context.Context, a domain.Actor, in domain.CreateOrderInput) (domain.Order, error) {
			require.FailNow(t, "service must not be called")
			return domain.Order{}, nil
		},
	}
	h := handlers.NewOrderHandler(testLogger(), svc)

	cases := map[string]string{
		"malformed":     `{"items":`,
		"unknown field": `{"items":[],"destination":{"lat":1,"lng":1,"address":"x"},"tip":1}`,
		"trailing":      `{"items":[],"destination":{"lat":1,"lng":1,"address":"x"}} {}`,
		"no lat":        `{"items":[{"product_id":1,"quantity":1}],"destination":{"lng":1,"address":"x"}}`,
		"no address":    `{"items":[{"product_id":1,"quantity":1}],"destination":{"lat":1,"lng":1}}`,
		"empty":         ``,
	}
	for name, body := range cases {
		rr := httptest.NewRecorder()
		h.Create(rr, newRequest(http.MethodPost, "/orders", body, &mitra, nil))
		require.Equal(t, http.StatusBadRequest, rr.Code, name)
		require.Equal(t, "invalid_input", decodeError(t, rr).Kind, name)
	}
}

func TestOrderHandler_Create_OutOfStock(t *testing.T) {
	t.Parallel()

	svc := &stubOrderService{
		createFn: func(ctx context.Context, a domain.Actor, in domain.CreateOrderInput) (domain.Order, error) {
			return domain.Order{}, &apperr.StockError{ProductID: 1, Name: "Cangkang Grade A", Requested: 5, Available: 2}
		},
	}
	h := handlers.NewOrderHandler(testLogger(), svc)

	body := `{"items":[{"product_id":1,"quantity":5}],"destination":{"lat":0,"lng":0,"address":"x"}}`
	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(http.MethodPost, "/orders", body, &mitra, nil))

	require.Equal(t, http.StatusConflict, rr.Code)
	e := decodeError(t, rr)
	require.Equal(t, "out_of_stock", e.Kind)
	require.Equal(t, float64(2), e.Details["available"])
	require.Equal(t, float64(5), e.Details["requested"])
}

func TestOrderHandler_Create_EmptyItemsReachService(t *testing.T) {
	t.Parallel()

	svc := &stubOrderService{
		createFn: func(ctx context.Context, a domain.Actor, in domain.CreateOrderInput) (domain.Order, error) {
			require.Empty(t, in.Items)
			return domain.Order{}, &apperr.ItemError{Reason: "no items"}
		},
	}
	h := handlers.NewOrderHandler(testLogger(), svc)

	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(http.MethodPost, "/orders", `{"items":[],"destination":{"lat":0,"lng":0,"address":"x"}}`, &mitra, nil))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_items", decodeError(t, rr).Kind)
}

func TestOrderHandler_NoActor(t *testing.T) {
	t.Parallel()

	h := handlers.NewOrderHandler(testLogger(), &stubOrderService{})
	rr := httptest.NewRecorder()
	h.Get(rr, newRequest(http.MethodGet, "/orders/1", "", nil, id("1")))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOrderHandler_Get(t *testing.T) {
	t.Parallel()

	svc := &stubOrderService{
		getFn: func(ctx context.Context, a domain.Actor, oid int64) (domain.Order, error) {
			switch oid {
			case 7:
				return sampleOrder(), nil
			case 8:
				return domain.Order{}, apperr.ErrForbidden
			default:
				return domain.Order{}, apperr.ErrNotFound
			}
		},
	}
	h := handlers.NewOrderHandler(testLogger(), svc)

	cases := []struct {
		id   string
		code int
	}{
		{"7", http.StatusOK},
		{"8", http.StatusForbidden},
		{"9", http.StatusNotFound},
		{"abc", http.StatusBadRequest},
		{"-1", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		h.Get(rr, newRequest(http.MethodGet, "/orders/"+tc.id, "", &mitra, id(tc.id)))
		require.Equal(t, tc.code, rr.Code, tc.id)
	}
}

func TestOrderHandler_List(t *testing.T) {
	t.Parallel()

	svc := &stubOrderService{
		listFn: func(ctx context.Context, a domain.Actor, f domain.ListOrdersFilter) ([]domain.Order, error) {
			require.Equal(t, admin, a)
			require.Equal(t, domain.ListOrdersFilter{Status: domain.OrderPending, Limit: 5, Offset: 10}, f)
			return []domain.Order{sampleOrder()}, nil
		},
	}
	h := handlers.NewOrderHandler(testLogger(), svc)

	rr := httptest.NewRecorder()
	h.List(rr, newRequest(http.MethodGet, "/orders?status=pending&limit=5&offset=10", "", &admin, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp []map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp, 1)

	rr = httptest.NewRecorder()
	h.List(rr, newRequest(http.MethodGet, "/orders?limit=-1", "", &admin, nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHandler_Approve(t *testing.T) {
	t.Parallel()

	svc := &stubOrderService{
		approveFn: func(ctx context.Context, a domain.Actor, oid int64) (domain.Order, error) {
			if !a.IsAdmin() {
				return domain.Order{}, apperr.ErrForbidden
			}
			o := sampleOrder()
			o.Status = domain.OrderConfirmed
			return o, nil
		},
	}
	h := handlers.NewOrderHandler(testLogger(), svc)

	rr := httptest.NewRecorder()
	h.Approve(rr, newRequest(http.MethodPost, "/admin/orders/7/approve", "", &admin, id("7")))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Approve(rr, newRequest(http.MethodPost, "/admin/orders/7/approve", "", &mitra, id("7")))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestOrderHandler_Cancel(t *testing.T) {
	t.Parallel()

	var reasons []string
	svc := &stubOrderService{
		cancelFn: func(ctx context.Context, a domain.Actor, oid int64, reason string) (domain.CancelResult, error) {
			reasons = append(reasons, reason)
			o := sampleOrder()
			o.Status = domain.OrderCancelled
			return domain.CancelResult{Order: o, RefundStatus: domain.RefundFailed, RefundError: "gateway error"}, nil
		},
	}
	h := handlers.NewOrderHandler(testLogger(), svc)

	rr := httptest.NewRecorder()
	h.Cancel(rr, newRequest(http.MethodPost, "/orders/7/cancel", `{"reason":"salah alamat"}`, &mitra, id("7")))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
		RefundStatus string `json:"refund_status"`
		RefundError  string `json:"refund_error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, "cancelled", resp.Order.Status)
	require.Equal(t, "failed", resp.RefundStatus)
	require.Equal(t, "gateway error", resp.RefundError)

	// body is optional
	rr = httptest.NewRecorder()
	h.Cancel(rr, newRequest(http.MethodPost, "/orders/7/cancel", "", &mitra, id("7")))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"salah alamat", ""}, reasons)
}

func TestOrderHandler_Cancel_InvalidState(t *testing.T) {
	t.Parallel()

	svc := &stubOrderService{
		cancelFn: func(ctx context.Context, a domain.Actor, oid int64, reason string) (domain.CancelResult, error) {
			return domain.CancelResult{}, apperr.ErrInvalidState
		},
	}
	h := handlers.NewOrderHandler(testLogger(), svc)

	rr := httptest.NewRecorder()
	h.Cancel(rr, newRequest(http.MethodPost, "/orders/7/cancel", "", &mitra, id("7")))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "invalid_state", decodeError(t, rr).Kind)
}
