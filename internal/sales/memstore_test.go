package sales

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gym-backend/internal/models"
)

type memState struct {
	mu       sync.Mutex
	products map[uint]*models.Product
	sales    map[uint]models.Sale
	nextSale uint

	// beforeAdjust runs inside AdjustStock before the write is applied.
	beforeAdjust func(st *memState, productID uint, location string)
}

// memStore is an in-memory Store. Transactions are serialized and roll back
// by restoring a snapshot.
type memStore struct {
	st   *memState
	inTx bool
}

func newMemStore(products ...*models.Product) *memStore {
	st := &memState{
		products: make(map[uint]*models.Product),
		sales:    make(map[uint]models.Sale),
		nextSale: 1,
	}
	for _, p := range products {
		st.products[p.ID] = cloneProduct(p)
	}
	return &memStore{st: st}
}

func (m *memStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.st.mu.Lock()
	return m.st.mu.Unlock
}

func (m *memStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	products := make(map[uint]*models.Product, len(m.st.products))
	for id, p := range m.st.products {
		products[id] = cloneProduct(p)
	}
	sales := make(map[uint]models.Sale, len(m.st.sales))
	for id, s := range m.st.sales {
		sales[id] = s
	}
	next := m.st.nextSale

	if err := fn(&memStore{st: m.st, inTx: true}); err != nil {
		m.st.products, m.st.sales, m.st.nextSale = products, sales, next
		return err
	}
	return nil
}

func (m *memStore) FindProduct(_ context.Context, id uint, _ bool) (*models.Product, error) {
	defer m.lock()()
	p, ok := m.st.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d %w", id, ErrNotFound)
	}
	return cloneProduct(p), nil
}

func (m *memStore) ProductsByID(_ context.Context, ids []uint) (map[uint]models.Product, error) {
	defer m.lock()()
	out := make(map[uint]models.Product)
	for _, id := range ids {
		if p, ok := m.st.products[id]; ok {
			out[id] = *cloneProduct(p)
		}
	}
	return out, nil
}

func (m *memStore) FindSale(_ context.Context, id uint) (*models.Sale, error) {
	defer m.lock()()
	s, ok := m.st.sales[id]
	if !ok {
		return nil, fmt.Errorf("sale %d %w", id, ErrNotFound)
	}
	return &s, nil
}

func (m *memStore) CreateSale(_ context.Context, sale *models.Sale) error {
	defer m.lock()()
	sale.ID = m.st.nextSale
	m.st.nextSale++
	m.st.sales[sale.ID] = *sale
	return nil
}

func (m *memStore) UpdateSale(_ context.Context, sale *models.Sale) error {
	defer m.lock()()
	if _, ok := m.st.sales[sale.ID]; !ok {
		return fmt.Errorf("sale %d %w", sale.ID, ErrNotFound)
	}
	m.st.sales[sale.ID] = *sale
	return nil
}

func (m *memStore) DeleteSale(_ context.Context, id uint) error {
	defer m.lock()()
	if _, ok := m.st.sales[id]; !ok {
		return fmt.Errorf("sale %d %w", id, ErrNotFound)
	}
	delete(m.st.sales, id)
	return nil
}

func (m *memStore) ListSales(_ context.Context, f ListFilter) ([]models.Sale, error) {
	defer m.lock()()
	var out []models.Sale
	for _, s := range m.st.sales {
		if f.Location != "" && s.Location != f.Location {
			continue
		}
		if !f.From.IsZero() && s.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && s.Date.After(f.To) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) AdjustStock(_ context.Context, productID uint, location string, delta int) (int, error) {
	defer m.lock()()
	if m.st.beforeAdjust != nil {
		m.st.beforeAdjust(m.st, productID, location)
	}
	p, ok := m.st.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %d %w", productID, ErrNotFound)
	}
	for i := range p.Stock {
		if p.Stock[i].Location != location {
			continue
		}
		if p.Stock[i].Quantity+delta < 0 {
			return 0, fmt.Errorf("%w at %q: requested %d", ErrInsufficientStock, location, -delta)
		}
		p.Stock[i].Quantity += delta
		return p.Stock[i].Quantity, nil
	}
	if delta < 0 {
		return 0, fmt.Errorf("%w at %q: requested %d", ErrInsufficientStock, location, -delta)
	}
	p.Stock = append(p.Stock, models.ProductStock{
		ID:        uint(len(p.Stock) + 1000),
		ProductID: productID,
		Location:  location,
		Quantity:  delta,
		Position:  len(p.Stock),
	})
	return delta, nil
}

// levels returns location -> quantity for assertions.
func (m *memStore) levels(productID uint) map[string]int {
	defer m.lock()()
	out := map[string]int{}
	p, ok := m.st.products[productID]
	if !ok {
		return out
	}
	for _, s := range p.Stock {
		out[s.Location] = s.Quantity
	}
	return out
}

func (m *memStore) removeProduct(id uint) {
	defer m.lock()()
	delete(m.st.products, id)
}

func (m *memStore) saleCount() int {
	defer m.lock()()
	return len(m.st.sales)
}

func cloneProduct(p *models.Product) *models.Product {
	cp := *p
	cp.Stock = append([]models.ProductStock(nil), p.Stock...)
	return &cp
}
