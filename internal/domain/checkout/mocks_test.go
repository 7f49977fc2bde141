package checkout

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

// --- Mock implementations ---

// memState is an in-memory ledger and catalog. Methods do not lock; memStore
// serializes transactions.
type memState struct {
	items  map[int64]catalog.Item
	orders map[int64]*order.Order
	events []order.Event
	nextID int64

	catalogReads int
	ledgerReads  int
}

func (m *memState) clone() *memState {
	c := &memState{
		items:        make(map[int64]catalog.Item, len(m.items)),
		orders:       make(map[int64]*order.Order, len(m.orders)),
		events:       slices.Clone(m.events),
		nextID:       m.nextID,
		catalogReads: m.catalogReads,
		ledgerReads:  m.ledgerReads,
	}
	for k, v := range m.items {
		c.items[k] = v
	}
	for k, v := range m.orders {
		cp := *v
		cp.Lines = slices.Clone(v.Lines)
		c.orders[k] = &cp
	}
	return c
}

func (m *memState) GetByIDs(_ context.Context, ids []int64) ([]catalog.Item, error) {
	m.catalogReads++
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memState) CreatePending(_ context.Context, no order.NewOrder) (*order.Order, error) {
	m.nextID++
	o := &order.Order{
		ID:       m.nextID,
		Number:   fmt.Sprintf("20260101000000-%06d", m.nextID),
		Contact:  no.Contact,
		Currency: no.Currency,
		Total:    no.Total,
		Status:   order.StatusPending,
	}
	m.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

func (m *memState) get(id int64) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *memState) AttachLines(_ context.Context, id int64, lines []order.Line) error {
	o, err := m.get(id)
	if err != nil {
		return err
	}
	o.Lines = append(o.Lines, lines...)
	return nil
}

func (m *memState) SetExternalRef(_ context.Context, id int64, ref string) error {
	o, err := m.get(id)
	if err != nil {
		return err
	}
	o.ExternalRef = ref
	return nil
}

func (m *memState) RecordCapture(_ context.Context, id int64, captureRef, raw string) (bool, error) {
	o, err := m.get(id)
	if err != nil {
		return false, err
	}
	if o.CaptureRef != "" {
		return false, nil
	}
	o.CaptureRef = captureRef
	o.CaptureStatus = raw
	o.Status = order.StatusPaid
	return true, nil
}

func (m *memState) SetStatus(_ context.Context, id int64, from, to order.Status) (bool, error) {
	o, err := m.get(id)
	if err != nil {
		return false, err
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *memState) find(match func(o *order.Order) bool) (*order.Order, error) {
	m.ledgerReads++
	for _, o := range m.orders {
		if match(o) {
			cp := *o
			cp.Lines = slices.Clone(o.Lines)
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memState) FindByNumberAndEmail(_ context.Context, number, email string) (*order.Order, error) {
	return m.find(func(o *order.Order) bool {
		return o.Number == number && strings.EqualFold(o.Contact.Email, email)
	})
}

func (m *memState) FindByExternalRef(_ context.Context, ref string) (*order.Order, error) {
	return m.find(func(o *order.Order) bool { return o.ExternalRef == ref })
}

func (m *memState) FindByNumber(_ context.Context, number string) (*order.Order, error) {
	return m.find(func(o *order.Order) bool { return o.Number == number })
}

func (m *memState) List(_ context.Context) ([]order.Order, error) {
	out := make([]order.Order, 0, len(m.orders))
	for id := m.nextID; id > 0; id-- {
		if o, ok := m.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memState) CountByStatus(_ context.Context) (order.Stats, error) {
	var st order.Stats
	for _, o := range m.orders {
		st.Add(o.Status, 1)
	}
	return st, nil
}

func (m *memState) AppendEvent(_ context.Context, e order.Event) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memState) ReserveStock(_ context.Context, lines []order.Line) error {
	for _, l := range lines {
		it := m.items[l.CommodityID]
		if it.Stock < l.Quantity {
			return &order.OutOfStockError{CommodityID: l.CommodityID}
		}
		it.Stock -= l.Quantity
		m.items[l.CommodityID] = it
	}
	return nil
}

func (m *memState) ReleaseStock(_ context.Context, id int64) error {
	o, err := m.get(id)
	if err != nil {
		return err
	}
	for _, l := range o.Lines {
		it := m.items[l.CommodityID]
		it.Stock += l.Quantity
		m.items[l.CommodityID] = it
	}
	return nil
}

type memStore struct {
	*memState
	mu sync.Mutex
}

func newMemStore(items ...catalog.Item) *memStore {
	st := &memState{
		items:  make(map[int64]catalog.Item),
		orders: make(map[int64]*order.Order),
	}
	for _, it := range items {
		st.items[it.ID] = it
	}
	return &memStore{memState: st}
}

// WithinTx runs fn against a copy of the state and keeps it only when fn
// succeeds.
func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.memState.clone()
	if err := fn(ctx, work); err != nil {
		return err
	}
	*s.memState = *work
	return nil
}

type mockGateway struct {
	mu           sync.Mutex
	intent       *payment.Intent
	intentErr    error
	capture      *payment.Capture
	captureErr   error
	intentCalls  int
	captureCalls int
	lastIntent   payment.IntentRequest
}

func (m *mockGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intentCalls++
	m.lastIntent = req
	if m.intentErr != nil {
		return nil, m.intentErr
	}
	if m.intent != nil {
		return m.intent, nil
	}
	return &payment.Intent{
		ExternalID:  fmt.Sprintf("PAY-%d", m.intentCalls),
		ApprovalURL: fmt.Sprintf("https://paypal.test/checkoutnow?token=PAY-%d", m.intentCalls),
	}, nil
}

func (m *mockGateway) Capture(_ context.Context, externalID string) (*payment.Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureCalls++
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	if m.capture != nil {
		return m.capture, nil
	}
	return &payment.Capture{CaptureID: "CAP-" + externalID, Status: "COMPLETED"}, nil
}

type mockCache struct {
	data    map[string]order.Order
	getErr  error
	deletes []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]order.Order)}
}

func (c *mockCache) Get(_ context.Context, number string) (*order.Order, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	o, ok := c.data[number]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (c *mockCache) Set(_ context.Context, o *order.Order) error {
	c.data[o.Number] = *o
	return nil
}

func (c *mockCache) Delete(_ context.Context, number string) error {
	c.deletes = append(c.deletes, number)
	delete(c.data, number)
	return nil
}
