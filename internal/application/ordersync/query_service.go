package ordersync

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/domain/catalog"
	"github.com/fbsamples/cp-reference/internal/domain/order"
	"github.com/fbsamples/cp-reference/internal/domain/shared"
)

// QueryService builds the read views of orders
type QueryService struct {
	orders    order.OrderRepository
	customers order.CustomerRepository
	products  catalog.ProductLookup
	logger    *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(orders order.OrderRepository, customers order.CustomerRepository, products catalog.ProductLookup, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		orders:    orders,
		customers: customers,
		products:  products,
		logger:    logger,
	}
}

// ListStoreOrders returns the views of a store's orders, newest first
func (s *QueryService) ListStoreOrders(ctx context.Context, storeID uuid.UUID) ([]OrderResponse, error) {
	orders, err := s.orders.ListByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	var productIDs []string
	for i := range orders {
		productIDs = append(productIDs, itemProductIDs(&orders[i])...)
	}
	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	customers := make(map[uuid.UUID]*order.Customer)
	views := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		c, ok := customers[o.CustomerID]
		if !ok {
			c, err = s.findCustomer(ctx, o)
			if err != nil {
				return nil, err
			}
			customers[o.CustomerID] = c
		}
		views = append(views, ToOrderResponse(o, c, products))
	}
	return views, nil
}

// GetOrder returns the view of one order
func (s *QueryService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	products, err := s.products.FindByIDs(ctx, itemProductIDs(o))
	if err != nil {
		return nil, err
	}
	c, err := s.findCustomer(ctx, o)
	if err != nil {
		return nil, err
	}
	view := ToOrderResponse(o, c, products)
	return &view, nil
}

// findCustomer returns nil for a customer that no longer exists
func (s *QueryService) findCustomer(ctx context.Context, o *order.Order) (*order.Customer, error) {
	c, err := s.customers.FindByID(ctx, o.CustomerID)
	if errors.Is(err, shared.ErrNotFound) {
		s.logger.Warn("Order customer not found",
			zap.String("order_id", o.ID.String()),
			zap.String("customer_id", o.CustomerID.String()),
		)
		return nil, nil
	}
	return c, err
}

func itemProductIDs(o *order.Order) []string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if item.ProductID != nil {
			ids = append(ids, *item.ProductID)
		}
	}
	return ids
}
