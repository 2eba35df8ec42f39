package preorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/config"
	"ms-preorder/internal/events"
	"ms-preorder/internal/models"
	"ms-preorder/internal/preorder/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ---------------- MOCKS ----------------

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Save(ctx context.Context, rec *models.PreOrder) error {
	args := m.Called(ctx, rec)
	if args.Error(0) == nil && rec.ID == 0 {
		rec.ID = 1
		rec.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockRecordStore) GetByID(ctx context.Context, id int64) (*models.PreOrder, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*models.PreOrder); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRecordStore) GetByHash(ctx context.Context, hash string) (*models.PreOrder, error) {
	args := m.Called(ctx, hash)
	if r, ok := args.Get(0).(*models.PreOrder); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRecordStore) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordStore) List(ctx context.Context, q db.ListQuery) ([]models.PreOrder, int, error) {
	args := m.Called(ctx, q)
	recs, _ := args.Get(0).([]models.PreOrder)
	return recs, args.Int(1), args.Error(2)
}

type MockCustomerStore struct {
	mock.Mock
}

func (m *MockCustomerStore) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	args := m.Called(ctx, id)
	if c, ok := args.Get(0).(*models.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerStore) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	args := m.Called(ctx, email)
	if c, ok := args.Get(0).(*models.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerStore) SaveCustomer(ctx context.Context, c *models.Customer) error {
	args := m.Called(ctx, c)
	if args.Error(0) == nil && c.ID == 0 {
		c.ID = 77
	}
	return args.Error(0)
}

func (m *MockCustomerStore) FindCustomerIDsByEmail(ctx context.Context, email string, like bool) ([]int64, error) {
	args := m.Called(ctx, email, like)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *MockCustomerStore) CustomerEmails(ctx context.Context, ids []int64) (map[int64]string, error) {
	args := m.Called(ctx, ids)
	emails, _ := args.Get(0).(map[int64]string)
	return emails, args.Error(1)
}

type MockCloner struct {
	mock.Mock
}

func (m *MockCloner) Clone(ctx context.Context, src *models.Cart) (*models.Cart, error) {
	args := m.Called(ctx, src)
	if c, ok := args.Get(0).(*models.Cart); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockInstaller struct {
	mock.Mock
}

func (m *MockInstaller) Install(ctx context.Context, sessionID string, cart *models.Cart) ([]string, error) {
	args := m.Called(ctx, sessionID, cart)
	warnings, _ := args.Get(0).([]string)
	return warnings, args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, cart *models.Cart, hash, tracking string) error {
	return m.Called(ctx, cart, hash, tracking).Error(0)
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.events = append(p.events, e)
}

type recordingMetrics struct {
	outcomes []string
}

func (r *recordingMetrics) ObserveResume(outcome string, _ time.Time) {
	r.outcomes = append(r.outcomes, outcome)
}

type fixture struct {
	svc       *PreOrderService
	records   *MockRecordStore
	carts     *MockCartStore
	customers *MockCustomerStore
	cloner    *MockCloner
	installer *MockInstaller
	mailer    *MockMailer
	stores    *config.StoreConfig
	pub       *recordingPublisher
	metrics   *recordingMetrics
}

func newFixture() *fixture {
	f := &fixture{
		records:   &MockRecordStore{},
		carts:     &MockCartStore{},
		customers: &MockCustomerStore{},
		cloner:    &MockCloner{},
		installer: &MockInstaller{},
		mailer:    &MockMailer{},
		stores:    config.NewStoreConfig(config.DefaultStore()),
		pub:       &recordingPublisher{},
		metrics:   &recordingMetrics{},
	}
	f.svc = NewPreOrderService(Deps{
		Records: f.records, Carts: f.carts, Customers: f.customers,
		Cloner: f.cloner, Installer: f.installer, Mailer: f.mailer,
		Stores: f.stores, Events: f.pub, Metrics: f.metrics,
		NewHash: func() (string, error) { return "fixed-hash", nil },
	})
	return f
}

// ---------------- CREATE ----------------

func TestCreateForCart_SavesAndSends(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	store := config.DefaultStore()
	store.TrackingEnabled = true
	store.AdminTracking = []config.AdminTracking{{Admin: "alice", Tracking: "AFF-ALICE"}}
	f.stores.Set(1, store)

	cart := &models.Cart{ID: 42, StoreID: 1, CustomerID: int64p(7), CustomerEmail: "jane@example.com"}
	f.carts.On("GetCart", ctx, int64(42)).Return(cart, nil)
	f.records.On("Save", ctx, mock.MatchedBy(func(r *models.PreOrder) bool {
		return r.Hash == "fixed-hash" && r.QuoteID == 42 && r.Admin == "alice" && r.Tracking == "AFF-ALICE" && *r.CustomerID == 7
	})).Return(nil)
	f.mailer.On("Send", ctx, cart, "fixed-hash", "AFF-ALICE").Return(nil)

	rec, err := f.svc.CreateForCart(ctx, "alice", models.CreatePreOrderRequest{QuoteID: 42})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	f.carts.AssertNotCalled(t, "SaveCart", mock.Anything, mock.Anything)
	f.mailer.AssertExpectations(t)

	require.Len(t, f.pub.events, 1)
	created := f.pub.events[0].(events.PreOrderCreated)
	assert.True(t, created.Emailed)
	assert.Equal(t, "fixed-hash", created.Hash)
}

func TestCreateForCart_DefaultsAdminAndStoresNote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cart := &models.Cart{ID: 42, StoreID: 1, CustomerEmail: "jane@example.com"}
	f.carts.On("GetCart", ctx, int64(42)).Return(cart, nil)
	f.carts.On("SaveCart", ctx, cart).Return(nil)
	f.records.On("Save", ctx, mock.MatchedBy(func(r *models.PreOrder) bool {
		return r.Admin == models.AdminSystem && r.Tracking == "" && r.CustomerID == nil
	})).Return(nil)
	f.mailer.On("Send", ctx, cart, "fixed-hash", "").Return(nil)

	_, err := f.svc.CreateForCart(ctx, "", models.CreatePreOrderRequest{QuoteID: 42, Note: " please confirm ", Notify: true})
	require.NoError(t, err)
	assert.Equal(t, "please confirm", cart.CustomerNote)
	assert.True(t, cart.CustomerNoteNotify)
}

func TestCreateForCart_ForcedAccountCreation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	store := config.DefaultStore()
	store.ForceAccountCreation = true
	f.stores.Set(1, store)

	cart := &models.Cart{ID: 42, StoreID: 1, CustomerEmail: "new@example.com", CustomerIsGuest: true}
	cart.SetAddress(&models.CartAddress{AddressType: models.AddressTypeShipping, Firstname: "Nia", Lastname: "Long"})
	f.carts.On("GetCart", ctx, int64(42)).Return(cart, nil)
	f.customers.On("GetCustomerByEmail", ctx, "new@example.com").Return(nil, apperr.NotFound("customer", "new@example.com"))
	f.customers.On("SaveCustomer", ctx, mock.MatchedBy(func(c *models.Customer) bool {
		return c.Email == "new@example.com" && c.Firstname == "Nia" && c.Lastname == "Long" && c.StoreID == 1
	})).Return(nil)
	f.carts.On("SaveCart", ctx, cart).Return(nil)
	f.records.On("Save", ctx, mock.Anything).Return(nil)
	f.mailer.On("Send", ctx, cart, "fixed-hash", "").Return(nil)

	rec, err := f.svc.CreateForCart(ctx, "bob", models.CreatePreOrderRequest{QuoteID: 42})
	require.NoError(t, err)
	require.NotNil(t, cart.CustomerID)
	assert.Equal(t, int64(77), *cart.CustomerID)
	assert.False(t, cart.CustomerIsGuest)
	require.NotNil(t, rec.CustomerID)
	assert.Equal(t, int64(77), *rec.CustomerID)
}

func TestCreateForCart_ForcedAccountReusesExisting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	store := config.DefaultStore()
	store.ForceAccountCreation = true
	f.stores.Set(1, store)

	cart := &models.Cart{ID: 42, StoreID: 1, CustomerEmail: "jane@example.com", CustomerIsGuest: true}
	f.carts.On("GetCart", ctx, int64(42)).Return(cart, nil)
	f.customers.On("GetCustomerByEmail", ctx, "jane@example.com").Return(&models.Customer{ID: 7, GroupID: 3}, nil)
	f.carts.On("SaveCart", ctx, cart).Return(nil)
	f.records.On("Save", ctx, mock.Anything).Return(nil)
	f.mailer.On("Send", ctx, cart, "fixed-hash", "").Return(nil)

	_, err := f.svc.CreateForCart(ctx, "bob", models.CreatePreOrderRequest{QuoteID: 42})
	require.NoError(t, err)
	assert.Equal(t, int64(7), *cart.CustomerID)
	assert.Equal(t, int64(3), cart.CustomerGroupID)
	f.customers.AssertNotCalled(t, "SaveCustomer", mock.Anything, mock.Anything)
}

func TestCreateForCart_EmailFailureKeepsRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cart := &models.Cart{ID: 42, StoreID: 1}
	f.carts.On("GetCart", ctx, int64(42)).Return(cart, nil)
	f.records.On("Save", ctx, mock.Anything).Return(nil)
	f.mailer.On("Send", ctx, cart, "fixed-hash", "").Return(apperr.Validation("customer_email", "missing"))

	rec, err := f.svc.CreateForCart(ctx, "alice", models.CreatePreOrderRequest{QuoteID: 42})
	require.NotNil(t, rec)
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.False(t, f.pub.events[0].(events.PreOrderCreated).Emailed)
}

func TestCreateForCart_Failures(t *testing.T) {
	t.Run("missing quote id", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.CreateForCart(context.Background(), "alice", models.CreatePreOrderRequest{})
		var verr *apperr.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("unknown quote", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		f.carts.On("GetCart", ctx, int64(9)).Return(nil, apperr.NotFound("quote", 9))
		_, err := f.svc.CreateForCart(ctx, "alice", models.CreatePreOrderRequest{QuoteID: 9})
		assert.True(t, apperr.IsNotFoundEntity(err, "quote"))
		f.records.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("disabled store", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		store := config.DefaultStore()
		store.Enabled = false
		f.stores.Set(1, store)
		f.carts.On("GetCart", ctx, int64(42)).Return(&models.Cart{ID: 42, StoreID: 1}, nil)
		_, err := f.svc.CreateForCart(ctx, "alice", models.CreatePreOrderRequest{QuoteID: 42})
		var verr *apperr.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("hash failure", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		f.svc.newHash = func() (string, error) { return "", errors.New("entropy exhausted") }
		f.carts.On("GetCart", ctx, int64(42)).Return(&models.Cart{ID: 42, StoreID: 1}, nil)
		_, err := f.svc.CreateForCart(ctx, "alice", models.CreatePreOrderRequest{QuoteID: 42})
		assert.ErrorContains(t, err, "entropy exhausted")
		f.records.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestCreateGuest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.carts.On("GetCart", ctx, int64(42)).Return(&models.Cart{ID: 42}, nil)
	f.records.On("Save", ctx, mock.MatchedBy(func(r *models.PreOrder) bool {
		return r.Hash == "fixed-hash" && r.Admin == models.AdminGuestAPI && r.Tracking == ""
	})).Return(nil).Once()
	f.records.On("Save", ctx, mock.MatchedBy(func(r *models.PreOrder) bool {
		return r.Hash == "given_hash-1" && r.Admin == "partner" && r.Tracking == "T"
	})).Return(nil).Once()

	rec, err := f.svc.CreateGuest(ctx, models.PreOrderInput{QuoteID: 42})
	require.NoError(t, err)
	assert.Equal(t, "fixed-hash", rec.Hash)

	rec, err = f.svc.CreateGuest(ctx, models.PreOrderInput{QuoteID: 42, Hash: "given_hash-1", Admin: "partner", Tracking: "T"})
	require.NoError(t, err)
	assert.Equal(t, "given_hash-1", rec.Hash)
	f.records.AssertExpectations(t)
}

func TestCreateGuest_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.carts.On("GetCart", ctx, int64(42)).Return(&models.Cart{ID: 42}, nil)
	f.carts.On("GetCart", ctx, int64(9)).Return(nil, apperr.NotFound("quote", 9))

	_, err := f.svc.CreateGuest(ctx, models.PreOrderInput{})
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.CreateGuest(ctx, models.PreOrderInput{QuoteID: 9})
	assert.True(t, apperr.IsNotFoundEntity(err, "quote"))

	_, err = f.svc.CreateGuest(ctx, models.PreOrderInput{QuoteID: 42, Hash: "not/url+safe="})
	assert.ErrorAs(t, err, &verr)
	f.records.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// ---------------- UPDATE / LIST ----------------

func TestUpdate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	existing := &models.PreOrder{ID: 5, QuoteID: 42, Hash: "h", Admin: "alice"}
	f.records.On("GetByID", ctx, int64(5)).Return(existing, nil)
	f.carts.On("GetCart", ctx, int64(43)).Return(&models.Cart{ID: 43}, nil)
	f.records.On("Save", ctx, existing).Return(nil)

	got, err := f.svc.Update(ctx, 5, models.PreOrderInput{QuoteID: 43, Admin: "bob", Tracking: "T2"})
	require.NoError(t, err)
	assert.Equal(t, int64(43), got.QuoteID)
	assert.Equal(t, "bob", got.Admin)
	assert.Equal(t, "h", got.Hash)

	_, err = f.svc.Update(ctx, 5, models.PreOrderInput{QuoteID: 43, Hash: "other"})
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdate_KeepsAdminWhenOmitted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	existing := &models.PreOrder{ID: 5, QuoteID: 42, Hash: "h", Admin: "alice", Tracking: "T1"}
	f.records.On("GetByID", ctx, int64(5)).Return(existing, nil)
	f.records.On("Save", ctx, existing).Return(nil)

	got, err := f.svc.Update(ctx, 5, models.PreOrderInput{QuoteID: 42, Tracking: "T2"})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Admin)
	assert.Equal(t, "T2", got.Tracking)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.records.On("GetByID", ctx, int64(5)).Return(nil, apperr.NotFound("pre-order", 5))

	_, err := f.svc.Update(ctx, 5, models.PreOrderInput{QuoteID: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestList_EnrichesEmails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	recs := []models.PreOrder{
		{ID: 3, CustomerID: int64p(7), Hash: "a"},
		{ID: 2, Hash: "b"},
		{ID: 1, CustomerID: int64p(8), Hash: "c"},
	}
	f.customers.On("FindCustomerIDsByEmail", ctx, "example.com", true).Return([]int64{7, 8}, nil)
	f.records.On("List", ctx, db.ListQuery{CustomerIDs: []int64{7, 8}}).Return(recs, 3, nil)
	f.customers.On("CustomerEmails", ctx, []int64{7, 8}).Return(map[int64]string{7: "jane@example.com"}, nil)

	page, err := f.svc.List(ctx, ListFilter{Email: "example.com", EmailLike: true})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, db.DefaultPage, page.Page)
	assert.Equal(t, db.DefaultPageSize, page.PageSize)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "jane@example.com", page.Items[0].CustomerEmail)
	assert.Equal(t, EmailGuest, page.Items[1].CustomerEmail)
	assert.Equal(t, EmailUnresolvable, page.Items[2].CustomerEmail)
}

// ---------------- RESUME ----------------

func TestResume_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	src := &models.Cart{ID: 42}
	clone := &models.Cart{IsActive: true}
	f.records.On("GetByHash", mock.Anything, "abc123").Return(&models.PreOrder{ID: 1, QuoteID: 42, Hash: "abc123"}, nil)
	f.carts.On("GetCart", mock.Anything, int64(42)).Return(src, nil)
	f.cloner.On("Clone", mock.Anything, src).Return(clone, nil)
	f.installer.On("Install", mock.Anything, "sess", clone).Return(nil, nil).Run(func(args mock.Arguments) {
		args.Get(2).(*models.Cart).ID = 43
	})

	res, err := f.svc.Resume(ctx, "sess", "abc123", "")
	require.NoError(t, err)
	assert.Same(t, clone, res.Cart)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, models.FlashMessage{Type: models.MessageSuccess, Text: MsgResumed}, res.Messages[0])
	assert.Equal(t, []string{"ok"}, f.metrics.outcomes)

	require.Len(t, f.pub.events, 1)
	resumed := f.pub.events[0].(events.PreOrderResumed)
	assert.Equal(t, int64(42), resumed.SourceQuoteID)
	assert.Equal(t, int64(43), resumed.CartID)
}

func TestResume_WarningsAreShownWithSuccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	src := &models.Cart{ID: 42}
	clone := &models.Cart{}
	f.records.On("GetByHash", mock.Anything, "abc123").Return(&models.PreOrder{QuoteID: 42}, nil)
	f.carts.On("GetCart", mock.Anything, int64(42)).Return(src, nil)
	f.cloner.On("Clone", mock.Anything, src).Return(clone, nil)
	f.installer.On("Install", mock.Anything, "sess", clone).Return([]string{"could not deactivate previous cart 5"}, nil)

	res, err := f.svc.Resume(ctx, "sess", "abc123", "")
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, models.MessageWarning, res.Messages[0].Type)
	assert.Equal(t, models.MessageSuccess, res.Messages[1].Type)
}

func TestResume_UnknownHashLeavesSessionAlone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.records.On("GetByHash", mock.Anything, "nope").Return(nil, apperr.NotFound("pre-order", "nope"))

	res, err := f.svc.Resume(ctx, "sess", "nope", "")
	assert.True(t, apperr.IsNotFoundEntity(err, "pre-order"))
	require.Len(t, res.Messages, 1)
	assert.Equal(t, models.FlashMessage{Type: models.MessageError, Text: MsgNotFound}, res.Messages[0])
	f.cloner.AssertNotCalled(t, "Clone", mock.Anything, mock.Anything)
	f.installer.AssertNotCalled(t, "Install", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []string{"not_found"}, f.metrics.outcomes)
	assert.Empty(t, f.pub.events)
}

func TestResume_PurgedQuoteIsDistinguishable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.records.On("GetByHash", mock.Anything, "abc").Return(&models.PreOrder{QuoteID: 42}, nil)
	f.carts.On("GetCart", mock.Anything, int64(42)).Return(nil, apperr.NotFound("quote", 42))

	res, err := f.svc.Resume(ctx, "sess", "abc", "")
	assert.True(t, apperr.IsNotFoundEntity(err, "quote"))
	assert.Equal(t, MsgNotFound, res.Messages[0].Text)
}

func TestResume_CloneFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	src := &models.Cart{ID: 42}
	f.records.On("GetByHash", mock.Anything, "abc").Return(&models.PreOrder{QuoteID: 42}, nil)
	f.carts.On("GetCart", mock.Anything, int64(42)).Return(src, nil)
	f.cloner.On("Clone", mock.Anything, src).Return(nil, &apperr.CloneStageError{Stage: apperr.StageItems, Err: errors.New(`could not copy item "Mug"`)})

	res, err := f.svc.Resume(ctx, "sess", "abc", "")
	require.Error(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, models.MessageError, res.Messages[0].Type)
	assert.Contains(t, res.Messages[0].Text, `could not copy item "Mug"`)
	assert.Same(t, src, res.Source)
	assert.Nil(t, res.Cart)
	f.installer.AssertNotCalled(t, "Install", mock.Anything, mock.Anything, mock.Anything)
}

func TestResume_SessionFailureReportsWarningsAndError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	src := &models.Cart{ID: 42}
	clone := &models.Cart{}
	f.records.On("GetByHash", mock.Anything, "abc").Return(&models.PreOrder{QuoteID: 42}, nil)
	f.carts.On("GetCart", mock.Anything, int64(42)).Return(src, nil)
	f.cloner.On("Clone", mock.Anything, src).Return(clone, nil)
	warnings := []string{"could not deactivate previous cart 5"}
	f.installer.On("Install", mock.Anything, "sess", clone).Return(warnings, &apperr.SessionSetupError{Warnings: warnings, Err: errors.New("customer 9 not found")})

	res, err := f.svc.Resume(ctx, "sess", "abc", "")
	require.Error(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, warnings[0], res.Messages[0].Text)
	assert.Contains(t, res.Messages[1].Text, "customer 9 not found")
	assert.Nil(t, res.Cart)
	assert.Equal(t, []string{"session_error"}, f.metrics.outcomes)
}

func TestGetQuoteByHash(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.records.On("GetByHash", mock.Anything, "abc").Return(&models.PreOrder{QuoteID: 42}, nil)
	f.carts.On("GetCart", mock.Anything, int64(42)).Return(&models.Cart{ID: 42}, nil)

	cart, err := f.svc.GetQuoteByHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), cart.ID)

	_, err = f.svc.GetQuoteByHash(ctx, "")
	assert.True(t, apperr.IsNotFoundEntity(err, "pre-order"))
}
