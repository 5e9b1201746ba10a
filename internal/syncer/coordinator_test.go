package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnugroho/possync/internal/connectivity"
	"github.com/dnugroho/possync/internal/db"
	"github.com/dnugroho/possync/internal/models"
	"github.com/dnugroho/possync/internal/oplog"
)

// fakeRemote is a controllable in-memory remote store.
type fakeRemote struct {
	mu sync.Mutex

	users    []*models.User
	products []*models.Product
	items    map[string]*models.InventoryItem

	pingErr     error
	usersErr    error
	productsErr error
	itemsErr    error
	saveErr     error

	// writeOrder records the order of push writes as "table:id".
	writeOrder []string

	quantityWrites []float64
	activities     []*models.ActivityLog

	// blockPing, when set, is received from before Ping returns.
	blockPing chan struct{}
	// blockPull, when set, makes GetAllUsers wait for ctx cancellation.
	blockPull bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{items: make(map[string]*models.InventoryItem)}
}

func (f *fakeRemote) record(entry string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeOrder = append(f.writeOrder, entry)
}

func (f *fakeRemote) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	if f.blockPull {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeRemote) GetAllProducts(ctx context.Context) ([]*models.Product, error) {
	if f.productsErr != nil {
		return nil, f.productsErr
	}
	return f.products, nil
}

func (f *fakeRemote) GetAllInventoryItems(ctx context.Context) ([]*models.InventoryItem, error) {
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]*models.InventoryItem, 0, len(f.items))
	for _, item := range f.items {
		copied := *item
		items = append(items, &copied)
	}
	return items, nil
}

func (f *fakeRemote) GetInventoryItemByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *item
	return &copied, nil
}

func (f *fakeRemote) SaveUser(ctx context.Context, u *models.User) error {
	f.record("users:" + u.ID)
	return f.saveErr
}

func (f *fakeRemote) SaveProduct(ctx context.Context, p *models.Product) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.record("products:" + p.ID)
	return nil
}

func (f *fakeRemote) SaveInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	copied := *item
	f.items[item.ID] = &copied
	f.mu.Unlock()
	f.record("inventory_items:" + item.ID)
	return nil
}

func (f *fakeRemote) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	f.record("transactions:" + txn.ID)
	return f.saveErr
}

func (f *fakeRemote) UpdateInventoryQuantity(ctx context.Context, id string, absoluteQuantity float64) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	if item, ok := f.items[id]; ok {
		item.CurrentQuantity = absoluteQuantity
	} else {
		f.items[id] = &models.InventoryItem{ID: id, CurrentQuantity: absoluteQuantity}
	}
	f.quantityWrites = append(f.quantityWrites, absoluteQuantity)
	f.mu.Unlock()
	f.record("inventory_items:" + id)
	return nil
}

func (f *fakeRemote) AppendActivity(ctx context.Context, entry *models.ActivityLog) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	f.activities = append(f.activities, entry)
	f.mu.Unlock()
	f.record("activity_log:" + entry.ID)
	return nil
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	if f.blockPing != nil {
		<-f.blockPing
	}
	return f.pingErr
}

type fixture struct {
	store   *db.Store
	log     *oplog.Log
	remote  *fakeRemote
	monitor *connectivity.Monitor
	coord   *Coordinator
}

func setup(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Init())

	store := db.NewStore(database)
	log := oplog.New(database, zerolog.Nop())
	rc := newFakeRemote()
	monitor := connectivity.NewMonitor(nil, time.Minute, zerolog.Nop())
	monitor.SetConnected(true)

	coord := New(store, log, rc, monitor, Config{CycleTimeout: 5 * time.Second}, zerolog.Nop())

	return &fixture{store: store, log: log, remote: rc, monitor: monitor, coord: coord}
}

func enqueueInventoryUpdate(t *testing.T, f *fixture, id string, qty float64) *models.PendingOperation {
	t.Helper()
	payload, err := json.Marshal(&models.InventoryItem{ID: id, Name: id, CurrentQuantity: qty})
	require.NoError(t, err)
	op, err := f.log.Enqueue(models.OpUpdate, models.TableInventoryItems, payload)
	require.NoError(t, err)
	return op
}

func TestSyncNoNetwork(t *testing.T) {
	f := setup(t)
	f.monitor.SetConnected(false)

	enqueueInventoryUpdate(t, f, "item-1", 3)

	result, err := f.coord.Sync(context.Background())
	assert.ErrorIs(t, err, ErrNoNetwork)
	assert.Equal(t, StatusNoNetwork, result.Status)

	// The log must be untouched
	n, err := f.log.CountPending()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.remote.writeOrder)
}

func TestSyncRemoteUnreachable(t *testing.T) {
	f := setup(t)
	f.remote.pingErr = errors.New("connection refused")

	result, err := f.coord.Sync(context.Background())
	assert.ErrorIs(t, err, ErrRemoteUnreachable)
	assert.Equal(t, StatusRemoteUnreachable, result.Status)
	assert.Empty(t, f.remote.writeOrder)
}

func TestSingleFlightGuard(t *testing.T) {
	f := setup(t)
	f.remote.blockPing = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.coord.Sync(context.Background())
	}()

	// Wait until the first cycle is inside Ping
	require.Eventually(t, func() bool { return f.coord.running.Load() },
		2*time.Second, 10*time.Millisecond)

	result, err := f.coord.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Nil(t, result)

	close(f.remote.blockPing)
	<-done
}

func TestPullRefreshesMirror(t *testing.T) {
	f := setup(t)
	f.remote.users = []*models.User{{ID: "u1", Username: "ani", Role: "cashier", IsActive: true}}
	f.remote.products = []*models.Product{{ID: "p1", SKU: "KOPI-01", Name: "Kopi Susu", Price: 18000}}
	f.remote.items["item-1"] = &models.InventoryItem{ID: "item-1", Name: "Milk", CurrentQuantity: 40}

	result, err := f.coord.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Pulled)

	u, err := f.store.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "ani", u.Username)

	p, err := f.store.GetProductBySKU("KOPI-01")
	require.NoError(t, err)
	assert.Equal(t, "Kopi Susu", p.Name)

	item, err := f.store.GetInventoryItem("item-1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, item.CurrentQuantity)
}

func TestPartialPullResilience(t *testing.T) {
	f := setup(t)
	f.remote.users = []*models.User{{ID: "u1", Username: "ani"}}
	f.remote.productsErr = errors.New("products endpoint down")
	f.remote.items["item-1"] = &models.InventoryItem{ID: "item-1", Name: "Milk", CurrentQuantity: 5}

	result, err := f.coord.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Equal(t, 1, result.PullErrors)
	assert.Equal(t, 2, result.Pulled)

	// Users and inventory were still mirrored despite the product failure
	_, err = f.store.GetUser("u1")
	assert.NoError(t, err)
	_, err = f.store.GetInventoryItem("item-1")
	assert.NoError(t, err)
}

func TestPushAppliesAbsoluteQuantity(t *testing.T) {
	f := setup(t)
	f.remote.items["item-42"] = &models.InventoryItem{ID: "item-42", CurrentQuantity: 12}

	enqueueInventoryUpdate(t, f, "item-42", 7)

	result, err := f.coord.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)

	// Remote quantity is overwritten with the queued absolute value,
	// not decremented by a delta
	assert.Equal(t, 7.0, f.remote.items["item-42"].CurrentQuantity)

	n, err := f.log.CountPending()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPushFIFOOrder(t *testing.T) {
	f := setup(t)

	payload := func(v interface{}) json.RawMessage {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return data
	}

	_, err := f.log.Enqueue(models.OpUpdate, models.TableInventoryItems,
		payload(&models.InventoryItem{ID: "i1", CurrentQuantity: 1}))
	require.NoError(t, err)
	_, err = f.log.Enqueue(models.OpUpdate, models.TableProducts,
		payload(&models.Product{ID: "p1", SKU: "S1", Name: "A"}))
	require.NoError(t, err)
	_, err = f.log.Enqueue(models.OpInsert, models.TableActivityLog,
		payload(&models.ActivityLog{ID: "a1", Action: "adjust"}))
	require.NoError(t, err)

	result, err := f.coord.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Synced)

	assert.Equal(t, []string{"inventory_items:i1", "products:p1", "activity_log:a1"},
		f.remote.writeOrder)
}

func TestIdempotentReplay(t *testing.T) {
	f := setup(t)
	f.remote.items["item-42"] = &models.InventoryItem{ID: "item-42", CurrentQuantity: 12}

	// First apply
	enqueueInventoryUpdate(t, f, "item-42", 7)
	_, err := f.coord.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7.0, f.remote.items["item-42"].CurrentQuantity)

	// Simulate a replay of the same operation (cycle interrupted between
	// remote apply and MarkSynced): applying the same absolute value again
	// must produce the same end state.
	enqueueInventoryUpdate(t, f, "item-42", 7)
	_, err = f.coord.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7.0, f.remote.items["item-42"].CurrentQuantity)
	assert.Equal(t, []float64{7, 7}, f.remote.quantityWrites)
}

func TestPushFailureDoesNotBlockQueue(t *testing.T) {
	f := setup(t)

	// Corrupt payload first in line; a valid operation behind it
	_, err := f.log.Enqueue(models.OpUpdate, models.TableInventoryItems,
		json.RawMessage(`{invalid-json`))
	require.NoError(t, err)

	data, err := json.Marshal(&models.Product{ID: "p1", SKU: "S1", Name: "B"})
	require.NoError(t, err)
	_, err = f.log.Enqueue(models.OpUpdate, models.TableProducts, data)
	require.NoError(t, err)

	result, err := f.coord.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Synced)

	// The corrupt entry stays pending for manual inspection
	assert.Equal(t, 1, result.RemainingPending)
}

func TestNotSyncableStaysPending(t *testing.T) {
	f := setup(t)

	data, err := json.Marshal(&models.Transaction{ID: "t1", ReceiptNo: "R-1"})
	require.NoError(t, err)
	_, err = f.log.Enqueue(models.OpInsert, models.TableTransactions, data)
	require.NoError(t, err)

	result, err := f.coord.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotSyncable)
	assert.Zero(t, result.Synced)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, result.RemainingPending)

	// Still pending on the next cycle; never silently dropped
	result, err = f.coord.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotSyncable)
}

func TestProgressSignals(t *testing.T) {
	f := setup(t)
	enqueueInventoryUpdate(t, f, "item-1", 4)

	var updates []StatusUpdate
	f.coord.OnStatus = func(u StatusUpdate) { updates = append(updates, u) }

	_, err := f.coord.Sync(context.Background())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(updates), 3)
	assert.Equal(t, 0.0, updates[0].Progress)
	assert.Equal(t, 100.0, updates[len(updates)-1].Progress)
}

func TestCycleTimeout(t *testing.T) {
	f := setup(t)
	f.remote.blockPull = true
	f.coord.cfg.CycleTimeout = 100 * time.Millisecond

	enqueueInventoryUpdate(t, f, "item-1", 4)

	result, err := f.coord.Sync(context.Background())
	assert.ErrorIs(t, err, ErrCycleTimeout)
	assert.Equal(t, StatusTimedOut, result.Status)

	// Nothing was marked synced
	n, err := f.log.CountPending()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunTriggersOnReconnectEdge(t *testing.T) {
	f := setup(t)
	f.monitor.SetConnected(false)
	f.remote.items["item-42"] = &models.InventoryItem{ID: "item-42", CurrentQuantity: 12}

	enqueueInventoryUpdate(t, f, "item-42", 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.coord.Run(ctx)
	defer f.coord.Stop()

	// Offline: nothing happens
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.remote.writeOrder)

	// Reconnect edge triggers a cycle
	f.monitor.SetConnected(true)

	require.Eventually(t, func() bool {
		f.remote.mu.Lock()
		defer f.remote.mu.Unlock()
		return f.remote.items["item-42"].CurrentQuantity == 3
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		n, err := f.log.CountPending()
		return err == nil && n == 0
	}, 3*time.Second, 20*time.Millisecond)
}
