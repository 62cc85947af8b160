package service

import (
	"context"
	"math/rand"
	"regexp"
	"sync"
	"testing"
	"time"

	"freshmarket/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory OrderStore. BeginOrderTx holds the store mutex
// for the lifetime of the transaction, which models the serialization the
// real store gets from row locks: concurrent placements on the same store
// run one after the other.
type fakeStore struct {
	mu        sync.Mutex
	customers map[int64]*models.Customer
	products  map[int64]*models.Product
	orders    map[int64]*models.Order
	lines     map[int64][]models.OrderLine
	nextOrder int64
	nextLine  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: make(map[int64]*models.Customer),
		products:  make(map[int64]*models.Product),
		orders:    make(map[int64]*models.Order),
		lines:     make(map[int64][]models.OrderLine),
	}
}

type fakeTx struct {
	store        *fakeStore
	stagedOrder  *models.Order
	stagedLines  []models.OrderLine
	stagedStocks map[int64]int
	done         bool
}

func (s *fakeStore) BeginOrderTx(ctx context.Context) (OrderTx, error) {
	s.mu.Lock()
	return &fakeTx{store: s, stagedStocks: make(map[int64]int)}, nil
}

func (t *fakeTx) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	customer, ok := t.store.customers[id]
	if !ok {
		return nil, nil
	}
	cp := *customer
	return &cp, nil
}

func (t *fakeTx) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	product, ok := t.store.products[id]
	if !ok {
		return nil, nil
	}
	cp := *product
	return &cp, nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, order *models.Order) error {
	t.store.nextOrder++
	order.ID = t.store.nextOrder
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	t.stagedOrder = &cp
	return nil
}

func (t *fakeTx) InsertOrderLine(ctx context.Context, line *models.OrderLine) error {
	t.store.nextLine++
	line.ID = t.store.nextLine
	t.stagedLines = append(t.stagedLines, *line)
	return nil
}

func (t *fakeTx) UpdateProductStock(ctx context.Context, productID int64, stock int) error {
	t.stagedStocks[productID] = stock
	return nil
}

func (t *fakeTx) Commit() error {
	if t.stagedOrder != nil {
		t.store.orders[t.stagedOrder.ID] = t.stagedOrder
		t.store.lines[t.stagedOrder.ID] = t.stagedLines
	}
	for productID, stock := range t.stagedStocks {
		t.store.products[productID].Stock = stock
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (s *fakeStore) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, nil
	}
	cp := *customer
	return &cp, nil
}

func (s *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (s *fakeStore) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderLine(nil), s.lines[orderID]...), nil
}

func (s *fakeStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, order := range s.orders {
		if filter.CustomerID != 0 && order.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

func (s *fakeStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.orders[orderID]; ok {
		order.Status = status
	}
	return nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu        sync.Mutex
	placed    []*models.OrderPlacedEvent
	confirmed []*models.OrderConfirmedEvent
}

func (p *fakePublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, event)
	return nil
}

func (p *fakePublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, event)
	return nil
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func newTestService(store *fakeStore, publisher *fakePublisher) *OrderService {
	fixedNow := func() time.Time {
		return time.Date(2026, 1, 6, 21, 3, 3, 0, time.UTC)
	}
	gen := NewOrderNumberGenerator(fixedNow, rand.New(rand.NewSource(1)))
	return NewOrderService(store, publisher, gen, 5*time.Second)
}

func seedCustomer(store *fakeStore, id int64, discount int) {
	store.customers[id] = &models.Customer{ID: id, Name: "customer", DiscountPercentage: discount}
}

func seedProduct(store *fakeStore, id int64, name string, stock int, retailPrice string) {
	store.products[id] = &models.Product{
		ID:          id,
		Name:        name,
		Stock:       stock,
		RetailPrice: dec(retailPrice),
		Status:      models.ProductStatusActive,
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	svc := newTestService(store, publisher)

	seedCustomer(store, 5, 20)
	seedProduct(store, 1, "tomatoes", 100, "4.5")

	detail, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 5,
		Items:      []OrderItemRequest{{ProductID: 1, Quantity: 10}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, detail.Order.Status)
	assert.Equal(t, 20, detail.Order.AppliedDiscount)
	assert.True(t, detail.Order.TotalAmount.Equal(dec("36.00")),
		"expected 36.00, got %s", detail.Order.TotalAmount)

	assert.Equal(t, 90, store.products[1].Stock)

	require.Len(t, detail.Lines, 1)
	assert.Equal(t, 10, detail.Lines[0].Quantity)
	assert.True(t, detail.Lines[0].PriceSnapshot.Equal(dec("4.5")))

	assert.Regexp(t, regexp.MustCompile(`^20260106210303-C005-\d{4}$`), detail.Order.OrderNo)

	require.Len(t, publisher.placed, 1)
	assert.Equal(t, detail.Order.ID, publisher.placed[0].OrderID)
	assert.True(t, publisher.placed[0].TotalAmount.Equal(dec("36.00")))
}

func TestPlaceOrderInsufficientStockLeavesEverythingUntouched(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{})

	seedCustomer(store, 1, 0)
	seedProduct(store, 1, "apples", 50, "8.0")
	seedProduct(store, 2, "pears", 10, "3.0")

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 1,
		Items: []OrderItemRequest{
			{ProductID: 1, Quantity: 5},
			{ProductID: 2, Quantity: 20},
		},
	})
	require.Error(t, err)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(2), stockErr.ProductID)
	assert.Equal(t, "pears", stockErr.Name)
	assert.Equal(t, 10, stockErr.Available)
	assert.Equal(t, 20, stockErr.Requested)

	assert.Equal(t, 50, store.products[1].Stock)
	assert.Equal(t, 10, store.products[2].Stock)
	assert.Empty(t, store.orders)
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{})

	seedCustomer(store, 1, 0)
	seedProduct(store, 1, "apples", 50, "8.0")

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 1,
		Items: []OrderItemRequest{
			{ProductID: 1, Quantity: 5},
			{ProductID: 99, Quantity: 1},
		},
	})

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "product", notFound.Entity)
	assert.Equal(t, int64(99), notFound.ID)

	assert.Equal(t, 50, store.products[1].Stock)
	assert.Empty(t, store.orders)
}

func TestPlaceOrderUnknownCustomer(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{})

	seedProduct(store, 1, "apples", 50, "8.0")

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 42,
		Items:      []OrderItemRequest{{ProductID: 1, Quantity: 1}},
	})

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "customer", notFound.Entity)
}

func TestPlaceOrderInvalidRequest(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{})
	seedCustomer(store, 1, 0)

	cases := []struct {
		name string
		req  *PlaceOrderRequest
	}{
		{"empty items", &PlaceOrderRequest{CustomerID: 1, Items: nil}},
		{"zero quantity", &PlaceOrderRequest{CustomerID: 1, Items: []OrderItemRequest{{ProductID: 1, Quantity: 0}}}},
		{"negative quantity", &PlaceOrderRequest{CustomerID: 1, Items: []OrderItemRequest{{ProductID: 1, Quantity: -3}}}},
		{"missing customer id", &PlaceOrderRequest{Items: []OrderItemRequest{{ProductID: 1, Quantity: 1}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(context.Background(), tc.req)
			var invalid *InvalidRequestError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestPlaceOrderSnapshotsSurviveLaterChanges(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{})

	seedCustomer(store, 1, 10)
	seedProduct(store, 1, "apples", 50, "2.5")

	detail, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 1,
		Items:      []OrderItemRequest{{ProductID: 1, Quantity: 4}},
	})
	require.NoError(t, err)

	// Later catalog and directory changes must not touch the committed order.
	store.products[1].RetailPrice = dec("9.99")
	store.customers[1].DiscountPercentage = 50

	reloaded, err := svc.GetOrder(context.Background(), detail.Order.ID)
	require.NoError(t, err)

	assert.Equal(t, 10, reloaded.Order.AppliedDiscount)
	assert.True(t, reloaded.Order.TotalAmount.Equal(dec("9.00")),
		"expected 9.00, got %s", reloaded.Order.TotalAmount)
	require.Len(t, reloaded.Lines, 1)
	assert.True(t, reloaded.Lines[0].PriceSnapshot.Equal(dec("2.5")))
}

// slowTxStore wraps fakeStore with a transaction whose product lookups stall
// until the placement deadline fires, modeling a storage layer that cannot
// answer within the configured timeout.
type slowTxStore struct {
	*fakeStore
}

func (s *slowTxStore) BeginOrderTx(ctx context.Context) (OrderTx, error) {
	tx, err := s.fakeStore.BeginOrderTx(ctx)
	if err != nil {
		return nil, err
	}
	return &slowTx{fakeTx: tx.(*fakeTx)}, nil
}

type slowTx struct {
	*fakeTx
}

func (t *slowTx) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPlaceOrderTimeoutRollsBackEverything(t *testing.T) {
	store := newFakeStore()
	seedCustomer(store, 1, 0)
	seedProduct(store, 1, "apples", 50, "8.0")

	gen := NewOrderNumberGenerator(nil, nil)
	svc := NewOrderService(&slowTxStore{fakeStore: store}, &fakePublisher{}, gen, 20*time.Millisecond)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 1,
		Items:      []OrderItemRequest{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 50, store.products[1].Stock)
	assert.Empty(t, store.orders)
	assert.Empty(t, store.lines)
}

func TestPlaceOrderClampsOutOfRangeDiscount(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{})

	// A discount above 100 can only come from directory rows predating the
	// schema check; it must never push the total below zero.
	seedCustomer(store, 1, 150)
	seedProduct(store, 1, "apples", 10, "2.0")

	detail, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 1,
		Items:      []OrderItemRequest{{ProductID: 1, Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, 100, detail.Order.AppliedDiscount)
	assert.True(t, detail.Order.TotalAmount.Equal(dec("0")),
		"expected 0, got %s", detail.Order.TotalAmount)
}

func TestPlaceOrderConcurrentLastUnits(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{})

	seedCustomer(store, 1, 0)
	seedCustomer(store, 2, 0)
	seedProduct(store, 1, "melons", 5, "6.0")

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, customerID := range []int64{1, 2} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
				CustomerID: id,
				Items:      []OrderItemRequest{{ProductID: 1, Quantity: 5}},
			})
			results <- err
		}(customerID)
	}
	wg.Wait()
	close(results)

	var successes, stockFailures int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		stockFailures++
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, stockFailures)
	assert.Equal(t, 0, store.products[1].Stock)
	assert.Len(t, store.orders, 1)
}

func TestPlaceOrderDuplicateProductLines(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakePublisher{})

	seedCustomer(store, 1, 0)
	seedProduct(store, 1, "apples", 10, "2.0")

	// Two lines on the same product must be covered by stock together.
	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 1,
		Items: []OrderItemRequest{
			{ProductID: 1, Quantity: 6},
			{ProductID: 1, Quantity: 6},
		},
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 12, stockErr.Requested)
	assert.Equal(t, 10, store.products[1].Stock)

	detail, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 1,
		Items: []OrderItemRequest{
			{ProductID: 1, Quantity: 6},
			{ProductID: 1, Quantity: 4},
		},
	})
	require.NoError(t, err)
	require.Len(t, detail.Lines, 2)
	assert.Equal(t, 0, store.products[1].Stock)
	assert.True(t, detail.Order.TotalAmount.Equal(dec("20.00")))
}

func TestConfirmOrder(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	svc := newTestService(store, publisher)

	seedCustomer(store, 1, 0)
	seedProduct(store, 1, "apples", 10, "2.0")

	detail, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		CustomerID: 1,
		Items:      []OrderItemRequest{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)

	confirmed, err := svc.ConfirmOrder(context.Background(), detail.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, confirmed.Status)

	// Confirming again is a no-op state assignment.
	confirmed, err = svc.ConfirmOrder(context.Background(), detail.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, confirmed.Status)

	assert.Len(t, publisher.confirmed, 2)

	_, err = svc.ConfirmOrder(context.Background(), 999)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestApplyDiscount(t *testing.T) {
	cases := []struct {
		subtotal string
		discount int
		want     string
	}{
		{"45", 20, "36"},
		{"100", 0, "100"},
		{"100", 100, "0"},
		{"10.01", 33, "6.71"},
		{"0.01", 50, "0.01"},
		{"33.33", 10, "30"},
	}

	for _, tc := range cases {
		got := applyDiscount(dec(tc.subtotal), tc.discount)
		assert.True(t, got.Equal(dec(tc.want)),
			"subtotal=%s discount=%d: expected %s, got %s", tc.subtotal, tc.discount, tc.want, got)
	}
}
