package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/assets"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
)

const defaultTimeout = 3 * time.Second

// Database interface defines available repositories
type Database interface {
	Driver() DriverRepository
	Activity() ActivityRepository
	Merchant() MerchantRepository
	Perk() PerkRepository
	Charger() ChargerRepository
	Wallet() WalletRepository
	Nova() NovaRepository
	Intent() IntentRepository
	Arrival() ArrivalRepository
	Billing() BillingRepository
	Outbox() OutboxRepository

	Close() error
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// DatabaseImpl implements the Database interface
type DatabaseImpl struct {
	db           *sqlx.DB
	driverRepo   DriverRepository
	activityRepo ActivityRepository
	merchantRepo MerchantRepository
	perkRepo     PerkRepository
	chargerRepo  ChargerRepository
	walletRepo   WalletRepository
	novaRepo     NovaRepository
	intentRepo   IntentRepository
	arrivalRepo  ArrivalRepository
	billingRepo  BillingRepository
	outboxRepo   OutboxRepository

	mu sync.Mutex
}

// New initializes a database connection and runs migrations if enabled
func New(dsn string, automigrate bool) (Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", "postgres://"+dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	// Run migrations if enabled
	if automigrate {
		iofsDriver, err := iofs.New(assets.EmbeddedFiles, "migrations")
		if err != nil {
			return nil, err
		}

		migrator, err := migrate.NewWithSourceInstance("iofs", iofsDriver, "postgres://"+dsn)
		if err != nil {
			return nil, err
		}

		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, err
		}
	}

	return &DatabaseImpl{db: db}, nil
}

func (d *DatabaseImpl) Close() error {
	return d.db.Close()
}

func (d *DatabaseImpl) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	tx, err := d.db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (d *DatabaseImpl) Driver() DriverRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.driverRepo == nil {
		d.driverRepo = NewDriverRepository(d.db)
	}
	return d.driverRepo
}

func (d *DatabaseImpl) Activity() ActivityRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.activityRepo == nil {
		d.activityRepo = NewActivityRepository(d.db)
	}
	return d.activityRepo
}

func (d *DatabaseImpl) Merchant() MerchantRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.merchantRepo == nil {
		d.merchantRepo = NewMerchantRepository(d.db)
	}
	return d.merchantRepo
}

func (d *DatabaseImpl) Perk() PerkRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.perkRepo == nil {
		d.perkRepo = NewPerkRepository(d.db)
	}
	return d.perkRepo
}

func (d *DatabaseImpl) Charger() ChargerRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.chargerRepo == nil {
		d.chargerRepo = NewChargerRepository(d.db)
	}
	return d.chargerRepo
}

func (d *DatabaseImpl) Wallet() WalletRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.walletRepo == nil {
		d.walletRepo = NewWalletRepository(d.db)
	}
	return d.walletRepo
}

func (d *DatabaseImpl) Nova() NovaRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.novaRepo == nil {
		d.novaRepo = NewNovaRepository(d.db)
	}
	return d.novaRepo
}

func (d *DatabaseImpl) Intent() IntentRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.intentRepo == nil {
		d.intentRepo = NewIntentRepository(d.db)
	}
	return d.intentRepo
}

func (d *DatabaseImpl) Arrival() ArrivalRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.arrivalRepo == nil {
		d.arrivalRepo = NewArrivalRepository(d.db)
	}
	return d.arrivalRepo
}

func (d *DatabaseImpl) Billing() BillingRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.billingRepo == nil {
		d.billingRepo = NewBillingRepository(d.db)
	}
	return d.billingRepo
}

func (d *DatabaseImpl) Outbox() OutboxRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.outboxRepo == nil {
		d.outboxRepo = NewOutboxRepository(d.db)
	}
	return d.outboxRepo
}
