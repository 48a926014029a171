package handler

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockDB satisfies repository.Database by handing out whichever mocks a test
// plugs in. Repos a test doesn't touch can stay nil.
type mockDB struct {
	driver   repository.DriverRepository
	activity repository.ActivityRepository
	merchant repository.MerchantRepository
	perk     repository.PerkRepository
	charger  repository.ChargerRepository
	wallet   repository.WalletRepository
	nova     repository.NovaRepository
	intent   repository.IntentRepository
	arrival  repository.ArrivalRepository
	billing  repository.BillingRepository
	outbox   repository.OutboxRepository

	// tx is handed out by BeginTx so tests can assert the same transaction
	// reaches every repository call.
	tx *sqlx.Tx
}

func (m *mockDB) Driver() repository.DriverRepository     { return m.driver }
func (m *mockDB) Activity() repository.ActivityRepository { return m.activity }
func (m *mockDB) Merchant() repository.MerchantRepository { return m.merchant }
func (m *mockDB) Perk() repository.PerkRepository         { return m.perk }
func (m *mockDB) Charger() repository.ChargerRepository   { return m.charger }
func (m *mockDB) Wallet() repository.WalletRepository     { return m.wallet }
func (m *mockDB) Nova() repository.NovaRepository         { return m.nova }
func (m *mockDB) Intent() repository.IntentRepository     { return m.intent }
func (m *mockDB) Arrival() repository.ArrivalRepository   { return m.arrival }
func (m *mockDB) Billing() repository.BillingRepository   { return m.billing }
func (m *mockDB) Outbox() repository.OutboxRepository     { return m.outbox }
func (m *mockDB) Close() error                            { return nil }

func (m *mockDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	if m.tx != nil {
		return m.tx, nil
	}
	return nil, errors.New("transactions are not supported in tests")
}

// stubDriver backs newStubTx with a connection that never reaches a server.
// Commit and Rollback are no-ops; statements are not supported.
type stubDriver struct{}

func (stubDriver) Open(name string) (sqldriver.Conn, error) { return &stubConn{}, nil }

type stubConn struct{}

func (*stubConn) Prepare(query string) (sqldriver.Stmt, error) {
	return nil, errors.New("statements are not supported")
}
func (*stubConn) Close() error                 { return nil }
func (*stubConn) Begin() (sqldriver.Tx, error) { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

var registerStubDriver = sync.OnceFunc(func() {
	sql.Register("handlerteststub", stubDriver{})
})

// newStubTx returns a real transaction handle tests can thread through
// repository expectations.
func newStubTx(t *testing.T) *sqlx.Tx {
	t.Helper()

	registerStubDriver()

	db, err := sqlx.Open("handlerteststub", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tx, err := db.Beginx()
	require.NoError(t, err)

	return tx
}

// MockDriverRepo implements DriverRepository but only mocks the needed methods.
type MockDriverRepo struct {
	mock.Mock
}

func (m *MockDriverRepo) CheckIfPhoneNumberExist(phoneNumber string) (bool, error) {
	return false, nil
}

func (m *MockDriverRepo) Insert(driver *models.Driver, tx *sqlx.Tx) (string, error) {
	return "", nil
}

func (m *MockDriverRepo) GetOne(id string) (*models.Driver, bool, error) {
	return nil, false, nil
}

func (m *MockDriverRepo) GetByEmail(email string) (*models.Driver, bool, error) {
	args := m.Called(email)
	return args.Get(0).(*models.Driver), args.Bool(1), args.Error(2)
}

func (m *MockDriverRepo) Verify(id string, tx *sqlx.Tx) error {
	return nil
}

func (m *MockDriverRepo) UpdatePassword(id, password string) error {
	return nil
}

func (m *MockDriverRepo) UpdateVehicle(id, plateNumber, vin string) error {
	return nil
}

func (m *MockDriverRepo) Lock(id string) error {
	return nil
}

type MockActivityRepo struct {
	mock.Mock
}

func (m *MockActivityRepo) CountConsecutiveFailedLoginAttempts(driverID, actionDesc string) int {
	return 0
}

func (m *MockActivityRepo) Insert(log *models.ActivityLog) (*models.ActivityLog, error) {
	args := m.Called(log)
	return args.Get(0).(*models.ActivityLog), args.Error(1)
}

type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) Insert(wallet *models.Wallet, tx *sqlx.Tx) (string, error) {
	return "", nil
}

func (m *MockWalletRepo) GetOne(id string) (*models.Wallet, bool, error) {
	return nil, false, nil
}

func (m *MockWalletRepo) GetByDriverId(driverID string) (*models.Wallet, bool, error) {
	args := m.Called(driverID)
	return args.Get(0).(*models.Wallet), args.Bool(1), args.Error(2)
}

func (m *MockWalletRepo) Lock(id string) error {
	return nil
}

type MockNovaRepo struct {
	mock.Mock
}

func (m *MockNovaRepo) Grant(walletID string, amountCents int64, reference, idempotencyKey string) (*models.NovaTransaction, bool, error) {
	args := m.Called(walletID, amountCents, reference, idempotencyKey)
	return args.Get(0).(*models.NovaTransaction), args.Bool(1), args.Error(2)
}

func (m *MockNovaRepo) Redeem(walletID string, amountCents int64, reference, idempotencyKey string) (*models.NovaTransaction, bool, error) {
	args := m.Called(walletID, amountCents, reference, idempotencyKey)
	txn, _ := args.Get(0).(*models.NovaTransaction)
	return txn, args.Bool(1), args.Error(2)
}

func (m *MockNovaRepo) FindByIdempotencyKey(walletID, idempotencyKey string) (*models.NovaTransaction, bool, error) {
	return nil, false, nil
}

func (m *MockNovaRepo) ListByWallet(walletID string, limit, offset int) ([]models.NovaTransaction, error) {
	return nil, nil
}

func (m *MockNovaRepo) LedgerSum(walletID string) (int64, error) {
	return 0, nil
}

type MockPerkRepo struct {
	mock.Mock
}

func (m *MockPerkRepo) Insert(perk *models.Perk) (string, error) {
	return "", nil
}

func (m *MockPerkRepo) GetOne(id string) (*models.Perk, bool, error) {
	args := m.Called(id)
	perk, _ := args.Get(0).(*models.Perk)
	return perk, args.Bool(1), args.Error(2)
}

func (m *MockPerkRepo) ListByMerchant(merchantID string, activeOnly bool) ([]models.Perk, error) {
	return nil, nil
}

func (m *MockPerkRepo) ListActiveByMerchantIDs(merchantIDs []string) ([]models.Perk, error) {
	return nil, nil
}

func (m *MockPerkRepo) SetStatus(id, status string) error {
	return nil
}

type MockArrivalRepo struct {
	mock.Mock
}

func (m *MockArrivalRepo) Insert(session *models.ArrivalSession) (string, error) {
	args := m.Called(session)
	return args.String(0), args.Error(1)
}

func (m *MockArrivalRepo) GetOne(id string) (*models.ArrivalSession, bool, error) {
	args := m.Called(id)
	session, _ := args.Get(0).(*models.ArrivalSession)
	return session, args.Bool(1), args.Error(2)
}

func (m *MockArrivalRepo) FindByReplyCode(code string) (*models.ArrivalSession, bool, error) {
	args := m.Called(code)
	session, _ := args.Get(0).(*models.ArrivalSession)
	return session, args.Bool(1), args.Error(2)
}

func (m *MockArrivalRepo) HasActive(driverID string) (bool, error) {
	args := m.Called(driverID)
	return args.Bool(0), args.Error(1)
}

func (m *MockArrivalRepo) MarkArrived(id, tier string) (*models.ArrivalSession, error) {
	args := m.Called(id, tier)
	session, _ := args.Get(0).(*models.ArrivalSession)
	return session, args.Error(1)
}

func (m *MockArrivalRepo) MarkNotified(id string) (*models.ArrivalSession, error) {
	return nil, nil
}

func (m *MockArrivalRepo) Complete(id string, billable bool) (*models.ArrivalSession, error) {
	args := m.Called(id, billable)
	session, _ := args.Get(0).(*models.ArrivalSession)
	return session, args.Error(1)
}

func (m *MockArrivalRepo) Cancel(id string) (*models.ArrivalSession, error) {
	args := m.Called(id)
	session, _ := args.Get(0).(*models.ArrivalSession)
	return session, args.Error(1)
}

func (m *MockArrivalRepo) AccrueDwell(id string, seconds int, at time.Time) error {
	args := m.Called(id, seconds, at)
	return args.Error(0)
}

func (m *MockArrivalRepo) ExpireStale(now time.Time) (int64, error) {
	return 0, nil
}

type MockMerchantRepo struct {
	mock.Mock
}

func (m *MockMerchantRepo) Insert(merchant *models.Merchant, tx *sqlx.Tx) (string, error) {
	args := m.Called(merchant, tx)
	return args.String(0), args.Error(1)
}

func (m *MockMerchantRepo) GetOne(id string) (*models.Merchant, bool, error) {
	args := m.Called(id)
	merchant, _ := args.Get(0).(*models.Merchant)
	return merchant, args.Bool(1), args.Error(2)
}

func (m *MockMerchantRepo) List(limit, offset int) ([]models.Merchant, error) {
	return nil, nil
}

func (m *MockMerchantRepo) Update(merchant *models.Merchant) error {
	return nil
}

func (m *MockMerchantRepo) UpdateLogo(id, logoURL string) error {
	return nil
}

func (m *MockMerchantRepo) Nearby(lat, lng, radiusM float64) ([]models.Merchant, error) {
	return nil, nil
}

type MockChargerRepo struct {
	mock.Mock
}

func (m *MockChargerRepo) Upsert(charger *models.Charger, tx *sqlx.Tx) (string, error) {
	return "", nil
}

func (m *MockChargerRepo) GetOne(id string) (*models.Charger, bool, error) {
	args := m.Called(id)
	charger, _ := args.Get(0).(*models.Charger)
	return charger, args.Bool(1), args.Error(2)
}

func (m *MockChargerRepo) Nearby(lat, lng, radiusM float64) ([]models.Charger, error) {
	return nil, nil
}

func (m *MockChargerRepo) Count() (int, error) {
	return 0, nil
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Insert(topic string, payload []byte, tx *sqlx.Tx) (string, error) {
	args := m.Called(topic, payload, tx)
	return args.String(0), args.Error(1)
}

func (m *MockOutboxRepo) ClaimPending(limit int, now time.Time) ([]models.OutboxEvent, error) {
	return nil, nil
}

func (m *MockOutboxRepo) MarkDelivered(id string) error {
	return nil
}

func (m *MockOutboxRepo) MarkFailed(id, lastError string, nextAttempt time.Time, final bool) error {
	return nil
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(recipient string, data any, patterns ...string) error {
	args := m.Called(recipient, data, patterns)
	return args.Error(0)
}
