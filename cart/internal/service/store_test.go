package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/storefront/cart/pkg/request"
	"github.com/Alturino/storefront/cart/pkg/response"
	"github.com/Alturino/storefront/internal/alert"
	inErrors "github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/session"
)

type fakeProduct struct {
	name  string
	price decimal.Decimal
	stock int32
}

// fakeBackend keeps lines in memory. Inserts never merge so a lost
// serialization shows up as a duplicate line.
type fakeBackend struct {
	mu        sync.Mutex
	lines     []repository.CartItem
	products  map[uuid.UUID]fakeProduct
	readDelay time.Duration
	afterRead func()

	findErr   error
	insertErr error
	updateErr error
	deleteErr error
	clearErr  error

	reads   int
	inserts int
	updates int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{products: map[uuid.UUID]fakeProduct{}}
}

func (f *fakeBackend) addProduct(price int64, stock int32) uuid.UUID {
	id := uuid.New()
	f.mu.Lock()
	f.products[id] = fakeProduct{name: "product " + id.String()[:8], price: decimal.NewFromInt(price), stock: stock}
	f.mu.Unlock()
	return id
}

func (f *fakeBackend) FindCartLinesByUserId(c context.Context, userID uuid.UUID) ([]repository.FindCartLinesByUserIdRow, error) {
	if f.readDelay > 0 {
		time.Sleep(f.readDelay)
	}
	var afterRead func()
	defer func() {
		if afterRead != nil {
			afterRead()
		}
	}()
	f.mu.Lock()
	defer f.mu.Unlock()
	afterRead, f.afterRead = f.afterRead, nil
	f.reads++
	if f.findErr != nil {
		return nil, f.findErr
	}
	rows := []repository.FindCartLinesByUserIdRow{}
	for _, l := range f.lines {
		if l.UserID != userID {
			continue
		}
		row := repository.FindCartLinesByUserIdRow{
			ID:        l.ID,
			UserID:    l.UserID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Size:      l.Size,
			Color:     l.Color,
		}
		if p, ok := f.products[l.ProductID]; ok {
			row.ProductName = pgtype.Text{String: p.name, Valid: true}
			row.ProductPrice = repository.NumericFromDecimal(p.price)
			row.ProductStock = pgtype.Int4{Int32: p.stock, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (f *fakeBackend) InsertCartLine(c context.Context, arg repository.InsertCartLineParams) (repository.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return repository.CartItem{}, f.insertErr
	}
	item := repository.CartItem{
		ID:        uuid.New(),
		UserID:    arg.UserID,
		ProductID: arg.ProductID,
		Quantity:  arg.Quantity,
		Size:      arg.Size,
		Color:     arg.Color,
	}
	f.lines = append(f.lines, item)
	return item, nil
}

func (f *fakeBackend) UpdateCartLineQuantity(c context.Context, arg repository.UpdateCartLineQuantityParams) (repository.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return repository.CartItem{}, f.updateErr
	}
	for i, l := range f.lines {
		if l.ID == arg.ID && l.UserID == arg.UserID {
			f.lines[i].Quantity = arg.Quantity
			return f.lines[i], nil
		}
	}
	return repository.CartItem{}, pgx.ErrNoRows
}

func (f *fakeBackend) DeleteCartLine(c context.Context, arg repository.DeleteCartLineParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	for i, l := range f.lines {
		if l.ID == arg.ID && l.UserID == arg.UserID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeBackend) DeleteCartLinesByUserId(c context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return 0, f.clearErr
	}
	kept := []repository.CartItem{}
	var deleted int64
	for _, l := range f.lines {
		if l.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	f.lines = kept
	return deleted, nil
}

func (f *fakeBackend) DeductCartLines(c context.Context, arg repository.DeductCartLinesParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return 0, f.clearErr
	}
	var deleted int64
	for i, id := range arg.IDs {
		for j, l := range f.lines {
			if l.ID != id || l.UserID != arg.UserID {
				continue
			}
			if l.Quantity > arg.Quantities[i] {
				f.lines[j].Quantity -= arg.Quantities[i]
			} else {
				f.lines = append(f.lines[:j], f.lines[j+1:]...)
				deleted++
			}
			break
		}
	}
	return deleted, nil
}

// stallNextRead holds the next read after it has taken its rows, until
// resume is closed. stalled is closed once the rows are taken.
func (f *fakeBackend) stallNextRead(stalled chan<- struct{}, resume <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterRead = func() {
		close(stalled)
		<-resume
	}
}

func (f *fakeBackend) calls() (reads int, inserts int, updates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.inserts, f.updates
}

type fixture struct {
	backend *fakeBackend
	service *CartService
	session *session.Context
	alerts  *alert.Buffer
	store   *Store
	userID  uuid.UUID
}

func newFixture(t *testing.T, signedIn bool) fixture {
	t.Helper()
	backend := newFakeBackend()
	svc := NewCartService(backend, nil)
	sess := session.New(nil)
	alerts := alert.NewBuffer()
	store := svc.NewStore(sess, alerts)
	t.Cleanup(store.Close)

	f := fixture{backend: backend, service: svc, session: sess, alerts: alerts, store: store, userID: uuid.New()}
	if signedIn {
		sess.SignIn(context.Background(), session.Identity{
			UserID:    f.userID,
			Token:     "token",
			ExpiresAt: time.Now().Add(time.Hour),
		})
	}
	return f
}

func lastAlert(t *testing.T, buf *alert.Buffer) alert.Event {
	t.Helper()
	event, ok := buf.Last()
	require.True(t, ok, "expected feedback event")
	return event
}

func TestAddItem(t *testing.T) {
	type testCase struct {
		name          string
		adds          func(p1 uuid.UUID) []request.AddItem
		expectedLines int
		expectedItems int64
		expectedAlert alert.Event
	}

	tests := []testCase{
		{
			name: "given new product should insert line with default quantity",
			adds: func(p1 uuid.UUID) []request.AddItem {
				return []request.AddItem{{ProductID: p1}}
			},
			expectedLines: 1,
			expectedItems: 1,
			expectedAlert: alert.Success(MsgItemAdded),
		},
		{
			name: "given same variant twice should merge quantity",
			adds: func(p1 uuid.UUID) []request.AddItem {
				return []request.AddItem{
					{ProductID: p1, Quantity: 2, Size: "M", Color: "red"},
					{ProductID: p1, Quantity: 3, Size: "M", Color: "red"},
				}
			},
			expectedLines: 1,
			expectedItems: 5,
			expectedAlert: alert.Success(MsgItemIncreased),
		},
		{
			name: "given different size or color should keep separate lines",
			adds: func(p1 uuid.UUID) []request.AddItem {
				return []request.AddItem{
					{ProductID: p1, Quantity: 1, Size: "M", Color: "red"},
					{ProductID: p1, Quantity: 1, Size: "L", Color: "red"},
					{ProductID: p1, Quantity: 1, Size: "M", Color: "blue"},
				}
			},
			expectedLines: 3,
			expectedItems: 3,
			expectedAlert: alert.Success(MsgItemAdded),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			p1 := f.backend.addProduct(10000, 10)
			c := context.Background()

			for _, req := range tt.adds(p1) {
				require.NoError(t, f.store.AddItem(c, req))
			}

			snapshot := f.store.Snapshot()
			assert.Len(t, snapshot.Lines, tt.expectedLines)
			assert.Equal(t, tt.expectedItems, snapshot.TotalItems())
			assert.Equal(t, tt.expectedAlert, lastAlert(t, f.alerts))
		})
	}
}

func TestAddThenMergeEndToEnd(t *testing.T) {
	f := newFixture(t, true)
	p1 := f.backend.addProduct(10000, 10)
	c := context.Background()

	require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1, Quantity: 2}))
	snapshot := f.store.Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalItems())
	assert.True(t, decimal.NewFromInt(20000).Equal(snapshot.TotalPrice()))

	require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1, Quantity: 1}))
	snapshot = f.store.Snapshot()
	require.Len(t, snapshot.Lines, 1)
	assert.Equal(t, int32(3), snapshot.Lines[0].Quantity)
	assert.Equal(t, int64(3), snapshot.TotalItems())
	assert.True(t, decimal.NewFromInt(30000).Equal(snapshot.TotalPrice()))
	assert.False(t, snapshot.Loading)
}

func TestAddItemWithoutIdentity(t *testing.T) {
	f := newFixture(t, false)
	p1 := f.backend.addProduct(10000, 10)

	err := f.store.AddItem(context.Background(), request.AddItem{ProductID: p1})
	assert.NoError(t, err, "unauthenticated add is surfaced as feedback only")
	assert.Equal(t, alert.Error(MsgSignInToAdd), lastAlert(t, f.alerts))

	reads, inserts, updates := f.backend.calls()
	assert.Zero(t, reads+inserts+updates, "no persistence call without identity")
	assert.True(t, f.store.Snapshot().IsEmpty())
}

func TestAddItemFailure(t *testing.T) {
	f := newFixture(t, true)
	p1 := f.backend.addProduct(10000, 10)
	c := context.Background()

	f.backend.insertErr = errors.New("connection reset")
	err := f.store.AddItem(c, request.AddItem{ProductID: p1})
	assert.Error(t, err)
	assert.Equal(t, alert.Error(MsgAddFailed), lastAlert(t, f.alerts))

	f.backend.insertErr = nil
	require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1}))

	f.backend.updateErr = errors.New("connection reset")
	err = f.store.AddItem(c, request.AddItem{ProductID: p1})
	assert.Error(t, err)
	assert.Equal(t, alert.Error(MsgIncreaseFailed), lastAlert(t, f.alerts))
	assert.Equal(t, int64(1), f.store.Snapshot().TotalItems(), "failed write keeps the last good snapshot")
}

func TestAddItemQuantityBound(t *testing.T) {
	f := newFixture(t, true)
	p1 := f.backend.addProduct(10000, 10)
	c := context.Background()

	err := f.store.AddItem(c, request.AddItem{ProductID: p1, Quantity: request.MaxQuantity + 1})
	assert.ErrorIs(t, err, inErrors.ErrInvalidQuantity)
	_, inserts, _ := f.backend.calls()
	assert.Zero(t, inserts)

	require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1, Quantity: request.MaxQuantity}))
	err = f.store.AddItem(c, request.AddItem{ProductID: p1, Quantity: request.MaxQuantity})
	assert.ErrorIs(t, err, inErrors.ErrInvalidQuantity, "merge would pass the bound")
	assert.Equal(t, alert.Error(MsgInvalidQuantity), lastAlert(t, f.alerts))
	_, _, updates := f.backend.calls()
	assert.Zero(t, updates)
	assert.Equal(t, int64(request.MaxQuantity), f.store.Snapshot().TotalItems())
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	f := newFixture(t, true)
	p1 := f.backend.addProduct(10000, 100)
	f.backend.readDelay = 5 * time.Millisecond

	other := f.service.NewStore(f.session, alert.Discard)
	defer other.Close()

	c := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		store := f.store
		if i%2 == 1 {
			store = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.AddItem(c, request.AddItem{ProductID: p1, Quantity: 1, Size: "M"}))
		}()
	}
	wg.Wait()

	snapshot, err := f.store.Load(c)
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 1, "double add must not create duplicate lines")
	assert.Equal(t, int32(10), snapshot.Lines[0].Quantity)
	assert.Zero(t, f.service.queue.len(), "idle lanes are released")
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture(t, true)
	p1 := f.backend.addProduct(10000, 10)
	c := context.Background()
	require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1, Quantity: 2}))
	lineID := f.store.Snapshot().Lines[0].ID

	t.Run("given quantity out of range should reject without persistence call", func(t *testing.T) {
		_, _, updatesBefore := f.backend.calls()
		for _, q := range []int32{0, -3, request.MaxQuantity + 1} {
			err := f.store.UpdateQuantity(c, lineID, q)
			assert.ErrorIs(t, err, inErrors.ErrInvalidQuantity)
			assert.Equal(t, alert.Error(MsgInvalidQuantity), lastAlert(t, f.alerts))
		}
		_, _, updatesAfter := f.backend.calls()
		assert.Equal(t, updatesBefore, updatesAfter)
		assert.Equal(t, int32(2), f.store.Snapshot().Lines[0].Quantity)
	})

	t.Run("given valid quantity should set it and reload", func(t *testing.T) {
		require.NoError(t, f.store.UpdateQuantity(c, lineID, 7))
		assert.Equal(t, int32(7), f.store.Snapshot().Lines[0].Quantity)
		assert.Equal(t, alert.Success(MsgQuantityUpdated), lastAlert(t, f.alerts))
	})

	t.Run("given unknown line should fail", func(t *testing.T) {
		err := f.store.UpdateQuantity(c, uuid.New(), 1)
		assert.ErrorIs(t, err, inErrors.ErrCartLineNotFound)
		assert.Equal(t, alert.Error(MsgIncreaseFailed), lastAlert(t, f.alerts))
	})
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t, true)
	p1 := f.backend.addProduct(10000, 10)
	p2 := f.backend.addProduct(5000, 10)
	c := context.Background()
	require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1}))
	require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p2}))

	line, ok := f.store.Snapshot().Find(p1, "", "")
	require.True(t, ok)
	require.NoError(t, f.store.RemoveItem(c, line.ID))
	assert.Equal(t, alert.Success(MsgItemRemoved), lastAlert(t, f.alerts))

	snapshot := f.store.Snapshot()
	require.Len(t, snapshot.Lines, 1)
	assert.Equal(t, p2, snapshot.Lines[0].ProductID)

	err := f.store.RemoveItem(c, line.ID)
	assert.ErrorIs(t, err, inErrors.ErrCartLineNotFound)
	assert.Equal(t, alert.Error(MsgRemoveFailed), lastAlert(t, f.alerts))

	f.backend.deleteErr = errors.New("connection reset")
	assert.Error(t, f.store.RemoveItem(c, snapshot.Lines[0].ID))
}

func TestClear(t *testing.T) {
	f := newFixture(t, true)
	p1 := f.backend.addProduct(10000, 10)
	c := context.Background()
	require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1, Quantity: 3}))

	readsBefore, _, _ := f.backend.calls()
	require.NoError(t, f.store.Clear(c))
	readsAfter, _, _ := f.backend.calls()
	assert.Equal(t, readsBefore, readsAfter, "clear does not read back")
	assert.True(t, f.store.Snapshot().IsEmpty())
	assert.Zero(t, f.store.Snapshot().TotalItems())

	require.NoError(t, f.store.Clear(c), "clearing an empty cart succeeds")
	assert.True(t, f.store.Snapshot().IsEmpty())

	f.backend.clearErr = errors.New("connection reset")
	assert.Error(t, f.store.Clear(c))

	anonymous := newFixture(t, false)
	assert.NoError(t, anonymous.store.Clear(c))
}

func TestLoad(t *testing.T) {
	t.Run("given no identity should return empty snapshot", func(t *testing.T) {
		f := newFixture(t, false)
		snapshot, err := f.store.Load(context.Background())
		require.NoError(t, err)
		assert.True(t, snapshot.IsEmpty())
		assert.False(t, snapshot.Loading)
	})

	t.Run("given line of deleted product should keep line and exclude it from price", func(t *testing.T) {
		f := newFixture(t, true)
		p1 := f.backend.addProduct(10000, 10)
		c := context.Background()
		require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1, Quantity: 2}))
		require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: uuid.New(), Quantity: 4}))

		snapshot, err := f.store.Load(c)
		require.NoError(t, err)
		assert.Len(t, snapshot.Lines, 2)
		assert.Equal(t, int64(6), snapshot.TotalItems())
		assert.True(t, decimal.NewFromInt(20000).Equal(snapshot.TotalPrice()))
		assert.Equal(t, snapshot.TotalItems(), snapshot.TotalItems())
	})

	t.Run("given sign out should reset snapshot through observer", func(t *testing.T) {
		f := newFixture(t, true)
		p1 := f.backend.addProduct(10000, 10)
		c := context.Background()
		require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1}))
		require.False(t, f.store.Snapshot().IsEmpty())

		f.session.SignOut(c)
		assert.True(t, f.store.Snapshot().IsEmpty())

		f.session.SignIn(c, session.Identity{UserID: f.userID, ExpiresAt: time.Now().Add(time.Hour)})
		assert.Len(t, f.store.Snapshot().Lines, 1, "sign in reloads the cart")
	})

	t.Run("given persistence failure should keep previous snapshot", func(t *testing.T) {
		f := newFixture(t, true)
		p1 := f.backend.addProduct(10000, 10)
		c := context.Background()
		require.NoError(t, f.store.AddItem(c, request.AddItem{ProductID: p1}))

		f.backend.findErr = errors.New("connection reset")
		snapshot, err := f.store.Load(c)
		assert.Error(t, err)
		assert.Len(t, snapshot.Lines, 1)
	})
}

func TestExpiredCredential(t *testing.T) {
	t.Run("given expired identity should sign out before reading", func(t *testing.T) {
		f := newFixture(t, false)
		f.session.SignIn(context.Background(), session.Identity{
			UserID:    f.userID,
			ExpiresAt: time.Now().Add(-time.Minute),
		})

		_, ok := f.session.Identity()
		assert.False(t, ok, "observer load forced the sign out")
		reads, _, _ := f.backend.calls()
		assert.Zero(t, reads)
	})

	t.Run("given backend expired jwt error should sign out", func(t *testing.T) {
		f := newFixture(t, true)
		p1 := f.backend.addProduct(10000, 10)
		f.backend.findErr = errors.New("JWT expired")

		err := f.store.AddItem(context.Background(), request.AddItem{ProductID: p1})
		assert.Error(t, err)
		assert.True(t, inErrors.IsExpiredCredential(err))

		_, ok := f.session.Identity()
		assert.False(t, ok)
		assert.True(t, f.store.Snapshot().IsEmpty())
	})
}

type fakeSummaryCache struct {
	mu        sync.Mutex
	summaries map[uuid.UUID]response.Summary
	setErr    error
}

func (f *fakeSummaryCache) Set(c context.Context, userID uuid.UUID, summary response.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.summaries[userID] = summary
	return nil
}

func (f *fakeSummaryCache) Get(c context.Context, userID uuid.UUID) (response.Summary, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[userID]
	return s, ok, nil
}

func (f *fakeSummaryCache) Delete(c context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.summaries, userID)
	return nil
}

func TestSummaryMirror(t *testing.T) {
	backend := newFakeBackend()
	cache := &fakeSummaryCache{summaries: map[uuid.UUID]response.Summary{}}
	svc := NewCartService(backend, cache)
	sess := session.New(nil)
	store := svc.NewStore(sess, alert.Discard)
	defer store.Close()

	c := context.Background()
	userID := uuid.New()
	sess.SignIn(c, session.Identity{UserID: userID, ExpiresAt: time.Now().Add(time.Hour)})

	p1 := backend.addProduct(10000, 10)
	require.NoError(t, store.AddItem(c, request.AddItem{ProductID: p1, Quantity: 3}))

	summary, err := svc.Summary(c, sess)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalItems)
	assert.True(t, decimal.NewFromInt(30000).Equal(summary.TotalPrice))

	require.NoError(t, store.Clear(c))
	_, found, _ := cache.Get(c, userID)
	assert.False(t, found, "clear drops the mirror")

	summary, err = svc.Summary(c, sess)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalItems)

	cache.setErr = errors.New("redis down")
	assert.NoError(t, store.AddItem(c, request.AddItem{ProductID: p1}), "mirror failures are not fatal")
}

func signedInStore(t *testing.T, svc *CartService, userID uuid.UUID) *Store {
	t.Helper()
	sess := session.New(nil)
	sess.SignIn(context.Background(), session.Identity{UserID: userID, ExpiresAt: time.Now().Add(time.Hour)})
	store := svc.NewStore(sess, alert.Discard)
	t.Cleanup(store.Close)
	return store
}

func TestLoadStartedBeforeWriteSkipsMirror(t *testing.T) {
	tests := []struct {
		name          string
		write         func(c context.Context, writer *Store, p1 uuid.UUID) error
		expectedFound bool
		expectedItems int64
	}{
		{
			name:          "given clear should leave no mirror",
			write:         func(c context.Context, writer *Store, _ uuid.UUID) error { return writer.Clear(c) },
			expectedFound: false,
		},
		{
			name: "given add should keep mirror of the write",
			write: func(c context.Context, writer *Store, p1 uuid.UUID) error {
				return writer.AddItem(c, request.AddItem{ProductID: p1, Quantity: 1})
			},
			expectedFound: true,
			expectedItems: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			cache := &fakeSummaryCache{summaries: map[uuid.UUID]response.Summary{}}
			svc := NewCartService(backend, cache)
			c := context.Background()
			userID := uuid.New()
			writer := signedInStore(t, svc, userID)
			reader := signedInStore(t, svc, userID)

			p1 := backend.addProduct(10000, 10)
			require.NoError(t, writer.AddItem(c, request.AddItem{ProductID: p1, Quantity: 3}))

			stalled := make(chan struct{})
			resume := make(chan struct{})
			backend.stallNextRead(stalled, resume)

			done := make(chan error, 1)
			go func() {
				_, err := reader.Load(c)
				done <- err
			}()
			<-stalled
			require.NoError(t, tt.write(c, writer, p1))
			close(resume)
			require.NoError(t, <-done)

			summary, found, err := cache.Get(c, userID)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedFound, found)
			assert.Equal(t, tt.expectedItems, summary.TotalItems)

			_, err = reader.Load(c)
			require.NoError(t, err)
			summary, found, err = cache.Get(c, userID)
			require.NoError(t, err)
			assert.True(t, found, "a load after the write mirrors again")
			assert.Equal(t, tt.expectedItems, summary.TotalItems)
			assert.Zero(t, svc.queue.len())
		})
	}
}

func TestClearOrdered(t *testing.T) {
	backend := newFakeBackend()
	svc := NewCartService(backend, nil)
	c := context.Background()
	userID := uuid.New()
	checkout := signedInStore(t, svc, userID)
	other := signedInStore(t, svc, userID)

	p1 := backend.addProduct(10000, 10)
	p2 := backend.addProduct(5000, 10)
	require.NoError(t, checkout.AddItem(c, request.AddItem{ProductID: p1, Quantity: 1}))
	ordered, err := checkout.Load(c)
	require.NoError(t, err)

	require.NoError(t, other.AddItem(c, request.AddItem{ProductID: p2, Quantity: 1}))
	require.NoError(t, other.AddItem(c, request.AddItem{ProductID: p1, Quantity: 2}))

	require.NoError(t, checkout.ClearOrdered(c, ordered.Lines))

	lines := checkout.Snapshot().Lines
	require.Len(t, lines, 2, "lines added after the checkout read survive")
	p1Line, found := checkout.Snapshot().Find(p1, "", "")
	require.True(t, found)
	assert.Equal(t, int32(2), p1Line.Quantity, "quantity added after the checkout read survives")
	p2Line, found := checkout.Snapshot().Find(p2, "", "")
	require.True(t, found)
	assert.Equal(t, int32(1), p2Line.Quantity)

	require.NoError(t, checkout.ClearOrdered(c, checkout.Snapshot().Lines))
	assert.True(t, checkout.Snapshot().IsEmpty())

	anonymous := svc.NewStore(session.New(nil), alert.Discard)
	defer anonymous.Close()
	assert.NoError(t, anonymous.ClearOrdered(c, ordered.Lines))
}
