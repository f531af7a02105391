package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/giftshift/giftshift-backend/internal/exchange"
	"github.com/giftshift/giftshift-backend/internal/models"
	"github.com/giftshift/giftshift-backend/internal/money"
	"github.com/google/uuid"
)

var errFakeNotFound = errors.New("fake: not found")

// fakeBalances honors the same contract as the postgres repo: mutations are
// conditional writes that report whether they matched, all under one mutex so
// each call is atomic while interleavings between calls stay adversarial.
type fakeBalances struct {
	mu   sync.Mutex
	rows map[string]models.Balance

	// failCompareAndAdd forces the optimistic first attempt to miss.
	failCompareAndAdd int
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{rows: map[string]models.Balance{}}
}

func (f *fakeBalances) Get(_ context.Context, userID string) (models.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[userID]
	if !ok {
		return models.Balance{}, errFakeNotFound
	}
	return b, nil
}

func (f *fakeBalances) GetOrCreate(_ context.Context, userID string) (models.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.rows[userID]; ok {
		return b, nil
	}
	b := models.Balance{UserID: userID, UpdatedAt: time.Now()}
	f.rows[userID] = b
	return b, nil
}

func (f *fakeBalances) CompareAndAdd(_ context.Context, userID string, observed, delta, depositedDelta money.Cents) (models.Balance, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCompareAndAdd > 0 {
		f.failCompareAndAdd--
		return models.Balance{}, false, nil
	}
	b, ok := f.rows[userID]
	if !ok || b.Balance != observed {
		return models.Balance{}, false, nil
	}
	b.Balance += delta
	b.TotalDeposited += depositedDelta
	b.UpdatedAt = time.Now()
	f.rows[userID] = b
	return b, true, nil
}

func (f *fakeBalances) Add(_ context.Context, userID string, delta, depositedDelta money.Cents) (models.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[userID]
	if !ok {
		return models.Balance{}, errFakeNotFound
	}
	b.Balance += delta
	b.TotalDeposited += depositedDelta
	b.UpdatedAt = time.Now()
	f.rows[userID] = b
	return b, nil
}

func (f *fakeBalances) CompareAndDeduct(_ context.Context, userID string, observed, amount money.Cents) (models.Balance, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[userID]
	if !ok || b.Balance != observed || b.Balance < amount {
		return models.Balance{}, false, nil
	}
	b.Balance -= amount
	b.TotalSpent += amount
	b.UpdatedAt = time.Now()
	f.rows[userID] = b
	return b, true, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
}

func (f *fakeLedger) Append(_ context.Context, e models.LedgerEntry) (models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeLedger) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetByReference(_ context.Context, referenceID string) (models.LedgerEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ReferenceID != nil && *e.ReferenceID == referenceID && e.Kind.DepositLike() {
			return e, true, nil
		}
	}
	return models.LedgerEntry{}, false, nil
}

func (f *fakeLedger) byUser(userID string) []models.LedgerEntry {
	out, _ := f.ListByUser(context.Background(), userID, 0, 0)
	return out
}

type fakeDeposits struct {
	mu   sync.Mutex
	rows map[string]models.Deposit
}

func newFakeDeposits() *fakeDeposits { return &fakeDeposits{rows: map[string]models.Deposit{}} }

func (f *fakeDeposits) put(d models.Deposit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[d.ID] = d
}

func (f *fakeDeposits) Create(_ context.Context, d models.Deposit) (models.Deposit, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	f.put(d)
	return d, nil
}

func (f *fakeDeposits) GetByID(_ context.Context, id string) (models.Deposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return models.Deposit{}, errFakeNotFound
	}
	return d, nil
}

func (f *fakeDeposits) GetByOrderID(_ context.Context, orderID string) (models.Deposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.rows {
		if d.OrderID == orderID {
			return d, nil
		}
	}
	return models.Deposit{}, errFakeNotFound
}

func (f *fakeDeposits) ListUnsettled(_ context.Context, since time.Time, limit int) ([]models.Deposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Deposit
	for _, d := range f.rows {
		if (d.Status == models.DepositPending || d.Status == models.DepositProcessing) && !d.CreatedAt.Before(since) {
			out = append(out, d)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeDeposits) Claim(_ context.Context, id string, from, to models.DepositStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.UpdatedAt = time.Now()
	f.rows[id] = d
	return true, nil
}

func (f *fakeDeposits) MarkCompleted(_ context.Context, id string, settled money.Cents, settleHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok || d.Status != models.DepositProcessing {
		return false, nil
	}
	now := time.Now()
	d.Status = models.DepositCompleted
	d.SettledAmount = &settled
	if settleHash != "" {
		d.SettleHash = &settleHash
	}
	d.CompletedAt = &now
	d.UpdatedAt = now
	f.rows[id] = d
	return true, nil
}

func (f *fakeDeposits) MarkFailed(_ context.Context, id string, status models.DepositStatus, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok || d.Status != models.DepositProcessing {
		return false, nil
	}
	d.Status = status
	d.FailReason = &reason
	d.UpdatedAt = time.Now()
	f.rows[id] = d
	return true, nil
}

func (f *fakeDeposits) ReclaimStale(_ context.Context, cutoff time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, d := range f.rows {
		if d.Status == models.DepositProcessing && d.UpdatedAt.Before(cutoff) {
			d.Status = models.DepositPending
			d.UpdatedAt = time.Now()
			f.rows[id] = d
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeGiftCards struct {
	mu   sync.Mutex
	rows map[string]models.GiftCard
}

func newFakeGiftCards() *fakeGiftCards { return &fakeGiftCards{rows: map[string]models.GiftCard{}} }

func (f *fakeGiftCards) Create(_ context.Context, c models.GiftCard) (models.GiftCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.rows[c.ID] = c
	return c, nil
}

func (f *fakeGiftCards) GetByID(_ context.Context, id string) (models.GiftCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return models.GiftCard{}, errFakeNotFound
	}
	return c, nil
}

func (f *fakeGiftCards) GetByCode(_ context.Context, code string) (models.GiftCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.Code == code {
			return c, nil
		}
	}
	return models.GiftCard{}, errFakeNotFound
}

func (f *fakeGiftCards) GetByOrderID(_ context.Context, orderID string) (models.GiftCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.OrderID != nil && *c.OrderID == orderID {
			return c, nil
		}
	}
	return models.GiftCard{}, errFakeNotFound
}

func (f *fakeGiftCards) ListUnsettled(_ context.Context, since time.Time, limit int) ([]models.GiftCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GiftCard
	for _, c := range f.rows {
		if c.Status == models.CardPending && c.OrderID != nil && !c.CreatedAt.Before(since) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeGiftCards) Claim(_ context.Context, id string, from, to models.GiftCardStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	f.rows[id] = c
	return true, nil
}

func (f *fakeGiftCards) Activate(_ context.Context, id, paymentProof string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.Status != models.CardProcessing {
		return false, nil
	}
	c.Status = models.CardActive
	if paymentProof != "" {
		c.PaymentProof = &paymentProof
	}
	c.UpdatedAt = time.Now()
	f.rows[id] = c
	return true, nil
}

func (f *fakeGiftCards) MarkFailed(_ context.Context, id string, status models.GiftCardStatus, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.Status != models.CardProcessing {
		return false, nil
	}
	c.Status = status
	c.FailReason = &reason
	c.UpdatedAt = time.Now()
	f.rows[id] = c
	return true, nil
}

func (f *fakeGiftCards) MarkRedeemed(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.Status != models.CardActive {
		return false, nil
	}
	c.Status = models.CardRedeemed
	c.UpdatedAt = time.Now()
	f.rows[id] = c
	return true, nil
}

func (f *fakeGiftCards) ReclaimStale(_ context.Context, cutoff time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, c := range f.rows {
		if c.Status == models.CardProcessing && c.UpdatedAt.Before(cutoff) {
			c.Status = models.CardPending
			c.UpdatedAt = time.Now()
			f.rows[id] = c
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeRedemptions struct {
	mu   sync.Mutex
	rows map[string]models.Redemption
}

func newFakeRedemptions() *fakeRedemptions {
	return &fakeRedemptions{rows: map[string]models.Redemption{}}
}

func (f *fakeRedemptions) Create(_ context.Context, m models.Redemption) (models.Redemption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = models.RedemptionQuoted
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	f.rows[m.ID] = m
	return m, nil
}

func (f *fakeRedemptions) GetByID(_ context.Context, id string) (models.Redemption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return models.Redemption{}, errFakeNotFound
	}
	return m, nil
}

func (f *fakeRedemptions) ListUnsettled(_ context.Context, since time.Time, limit int) ([]models.Redemption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Redemption
	for _, m := range f.rows {
		if (m.Status == models.RedemptionQuoted || m.Status == models.RedemptionProcessing) && !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRedemptions) ListByStatus(_ context.Context, status models.RedemptionStatus, limit int) ([]models.Redemption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Redemption
	for _, m := range f.rows {
		if m.Status == status {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRedemptions) Claim(_ context.Context, id string, from, to models.RedemptionStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	m.UpdatedAt = time.Now()
	f.rows[id] = m
	return true, nil
}

func (f *fakeRedemptions) MarkCompleted(_ context.Context, id, settledAmount, settleHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok || m.Status != models.RedemptionProcessing {
		return false, nil
	}
	m.Status = models.RedemptionCompleted
	m.SettledAmount = &settledAmount
	if settleHash != "" {
		m.SettleHash = &settleHash
	}
	m.UpdatedAt = time.Now()
	f.rows[id] = m
	return true, nil
}

func (f *fakeRedemptions) MarkFailed(_ context.Context, id, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok || m.Status != models.RedemptionProcessing {
		return false, nil
	}
	m.Status = models.RedemptionFailed
	m.FailReason = &reason
	m.UpdatedAt = time.Now()
	f.rows[id] = m
	return true, nil
}

func (f *fakeRedemptions) ReclaimStale(_ context.Context, cutoff time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, m := range f.rows {
		if m.Status == models.RedemptionProcessing && m.UpdatedAt.Before(cutoff) {
			m.Status = models.RedemptionQuoted
			m.UpdatedAt = time.Now()
			f.rows[id] = m
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeTransactions struct {
	mu   sync.Mutex
	rows map[string]models.Transaction // keyed (order_id|purpose)
}

func newFakeTransactions() *fakeTransactions {
	return &fakeTransactions{rows: map[string]models.Transaction{}}
}

func (f *fakeTransactions) UpsertByOrder(_ context.Context, t models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[t.OrderID+"|"+string(t.Purpose)] = t
	return nil
}

func (f *fakeTransactions) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for _, t := range f.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeAuditLogs struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (f *fakeAuditLogs) Create(_ context.Context, l models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return nil
}

// fakeProber serves canned orders and can be armed to fail per order id.
type fakeProber struct {
	mu     sync.Mutex
	orders map[string]exchange.Order
	errs   map[string]error
	calls  int
}

func newFakeProber() *fakeProber {
	return &fakeProber{orders: map[string]exchange.Order{}, errs: map[string]error{}}
}

func (f *fakeProber) set(o exchange.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
}

func (f *fakeProber) fail(orderID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[orderID] = err
}

func (f *fakeProber) GetOrder(_ context.Context, id string) (exchange.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[id]; ok {
		return exchange.Order{}, err
	}
	o, ok := f.orders[id]
	if !ok {
		return exchange.Order{}, exchange.ErrOrderNotFound
	}
	return o, nil
}

type fakeUsers struct {
	mu   sync.Mutex
	rows map[string]models.User // keyed by email
}

func newFakeUsers() *fakeUsers { return &fakeUsers{rows: map[string]models.User{}} }

func (f *fakeUsers) Create(_ context.Context, username, email, passwordHash, role string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[email]; ok {
		return models.User{}, errors.New("fake: email taken")
	}
	u := models.User{
		ID: uuid.NewString(), Username: username, Email: email,
		PasswordHash: passwordHash, Role: role, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.rows[email] = u
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, errFakeNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[email]
	if !ok {
		return models.User{}, errFakeNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.rows {
		out = append(out, u)
	}
	return out, nil
}

// fakeOrderCreator hands back a canned order for every CreateOrder call.
type fakeOrderCreator struct {
	mu      sync.Mutex
	next    exchange.Order
	err     error
	created []exchange.CreateOrderRequest
}

func (f *fakeOrderCreator) CreateOrder(_ context.Context, req exchange.CreateOrderRequest) (exchange.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return exchange.Order{}, f.err
	}
	f.created = append(f.created, req)
	o := f.next
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return o, nil
}

func (f *fakeOrderCreator) ListCoins(context.Context) ([]exchange.Coin, error) {
	return []exchange.Coin{{Coin: "BTC", Name: "Bitcoin", Networks: []string{"bitcoin"}}}, nil
}
