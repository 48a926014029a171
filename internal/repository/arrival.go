package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	// ArrivalPendingStatus is the initial state: the driver announced they
	// are heading to the merchant but no qualifying fix has come in yet.
	ArrivalPendingStatus = "pending"

	// ArrivalArrivedStatus means the dual-zone geofence check passed.
	ArrivalArrivedStatus = "arrived"

	// ArrivalMerchantNotifiedStatus means the merchant has been texted the
	// reply code and we're waiting for the confirmation.
	ArrivalMerchantNotifiedStatus = "merchant_notified"

	// ArrivalCompletedStatus is a confirmed, billable visit.
	ArrivalCompletedStatus = "completed"

	// ArrivalCompletedUnbillableStatus is a confirmed visit that missed the
	// dwell or tier bar; the driver gets closure but the merchant isn't
	// charged and no reward is granted.
	ArrivalCompletedUnbillableStatus = "completed_unbillable"

	ArrivalCanceledStatus = "canceled"
	ArrivalExpiredStatus  = "expired"
)

// ErrInvalidTransition is returned when a status change is requested that the
// lifecycle does not allow, e.g. completing a session that was never verified.
var ErrInvalidTransition = errors.New("invalid arrival session transition")

// allowedTransitions is the whole lifecycle. Anything not listed here is
// rejected inside the transition's row lock, so racing workers can't push a
// session backwards.
var allowedTransitions = map[string][]string{
	ArrivalPendingStatus:          {ArrivalArrivedStatus, ArrivalCanceledStatus, ArrivalExpiredStatus},
	ArrivalArrivedStatus:          {ArrivalMerchantNotifiedStatus, ArrivalCanceledStatus, ArrivalExpiredStatus},
	ArrivalMerchantNotifiedStatus: {ArrivalCompletedStatus, ArrivalCompletedUnbillableStatus, ArrivalCanceledStatus, ArrivalExpiredStatus},
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ArrivalRepository interface {
	Insert(session *models.ArrivalSession) (string, error)
	GetOne(id string) (*models.ArrivalSession, bool, error)
	FindByReplyCode(code string) (*models.ArrivalSession, bool, error)
	HasActive(driverID string) (bool, error)
	MarkArrived(id, tier string) (*models.ArrivalSession, error)
	MarkNotified(id string) (*models.ArrivalSession, error)
	Complete(id string, billable bool) (*models.ArrivalSession, error)
	Cancel(id string) (*models.ArrivalSession, error)
	AccrueDwell(id string, seconds int, at time.Time) error
	ExpireStale(now time.Time) (int64, error)
}

type ArrivalRepositoryImpl struct {
	db *sqlx.DB
}

func NewArrivalRepository(db *sqlx.DB) ArrivalRepository {
	return &ArrivalRepositoryImpl{db: db}
}

func (repo *ArrivalRepositoryImpl) Insert(session *models.ArrivalSession) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO arrival_sessions (driver_id, merchant_id, charger_id, perk_id, intent_id, reply_code, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := repo.db.GetContext(ctx, &id, query,
		session.DriverID,
		session.MerchantID,
		session.ChargerID,
		session.PerkID,
		session.IntentID,
		session.ReplyCode,
		session.ExpiresAt,
	)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (repo *ArrivalRepositoryImpl) GetOne(id string) (*models.ArrivalSession, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var session models.ArrivalSession

	query := `SELECT * FROM arrival_sessions WHERE id = $1`

	err := repo.db.GetContext(ctx, &session, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &session, true, nil
}

func (repo *ArrivalRepositoryImpl) FindByReplyCode(code string) (*models.ArrivalSession, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var session models.ArrivalSession

	query := `SELECT * FROM arrival_sessions WHERE reply_code = $1`

	err := repo.db.GetContext(ctx, &session, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &session, true, nil
}

// HasActive reports whether the driver already has a session in flight.
// One physical driver can only be arriving at one place at a time.
func (repo *ArrivalRepositoryImpl) HasActive(driverID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var exists bool

	query := `
		SELECT EXISTS(
			SELECT 1 FROM arrival_sessions
			WHERE driver_id = $1 AND status IN ($2, $3, $4)
		)`

	err := repo.db.GetContext(ctx, &exists, query, driverID,
		ArrivalPendingStatus, ArrivalArrivedStatus, ArrivalMerchantNotifiedStatus)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (repo *ArrivalRepositoryImpl) MarkArrived(id, tier string) (*models.ArrivalSession, error) {
	return repo.transition(id, ArrivalArrivedStatus,
		`confidence_tier = $3, verified_at = NOW()`, tier)
}

func (repo *ArrivalRepositoryImpl) MarkNotified(id string) (*models.ArrivalSession, error) {
	return repo.transition(id, ArrivalMerchantNotifiedStatus, `notified_at = NOW()`)
}

func (repo *ArrivalRepositoryImpl) Complete(id string, billable bool) (*models.ArrivalSession, error) {
	to := ArrivalCompletedStatus
	if !billable {
		to = ArrivalCompletedUnbillableStatus
	}
	return repo.transition(id, to, `completed_at = NOW()`)
}

func (repo *ArrivalRepositoryImpl) Cancel(id string) (*models.ArrivalSession, error) {
	return repo.transition(id, ArrivalCanceledStatus, ``)
}

// transition moves a session to a new status under a row lock, checking the
// move against allowedTransitions. extraSet may reference $3 onward for
// status-specific columns.
func (repo *ArrivalRepositoryImpl) transition(id, to, extraSet string, extraArgs ...any) (*models.ArrivalSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer tx.Rollback()

	var session models.ArrivalSession

	query := `SELECT * FROM arrival_sessions WHERE id = $1 FOR UPDATE`

	err = tx.GetContext(ctx, &session, query, id)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(session.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.Status, to)
	}

	set := `status = $2`
	if extraSet != "" {
		set += ", " + extraSet
	}

	args := append([]any{id, to}, extraArgs...)

	query = `UPDATE arrival_sessions SET ` + set + ` WHERE id = $1`

	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &session, `SELECT * FROM arrival_sessions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// AccrueDwell adds verified in-zone seconds and stamps the ping time.
func (repo *ArrivalRepositoryImpl) AccrueDwell(id string, seconds int, at time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE arrival_sessions
		SET dwell_seconds = dwell_seconds + $1, last_ping_at = $2
		WHERE id = $3`

	_, err := repo.db.ExecContext(ctx, query, seconds, at, id)
	return err
}

// ExpireStale sweeps open sessions past their deadline. It bypasses the
// per-row transition helper on purpose: the set-based update only touches
// states whose expiry is legal, so one statement is enough.
func (repo *ArrivalRepositoryImpl) ExpireStale(now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE arrival_sessions
		SET status = $1
		WHERE status IN ($2, $3, $4) AND expires_at < $5`

	result, err := repo.db.ExecContext(ctx, query,
		ArrivalExpiredStatus,
		ArrivalPendingStatus, ArrivalArrivedStatus, ArrivalMerchantNotifiedStatus,
		now,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
