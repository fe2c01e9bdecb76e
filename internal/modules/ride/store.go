// README: Ride store interface and the PostgreSQL implementation.
package ride

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridewire/internal/types"
)

// Transition is one compare-and-swap status change. The update applies only
// while the ride is still at (From, FromVersion); a lost race reports no rows.
// When Outbox is set the row commits in the same transaction as the status.
type Transition struct {
	ID          types.ID
	From        Status
	FromVersion int
	To          Status
	DriverID    *types.ID
	Fare        *types.Money
	Outbox      *OutboxEvent
}

// OutboxEvent is a durable event awaiting delivery to the bus.
type OutboxEvent struct {
	ID      string
	Topic   string
	Payload []byte
}

type Store interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	ActiveFor(ctx context.Context, userID types.ID) (*Ride, error)
	ApplyTransition(ctx context.Context, t Transition) (bool, error)
	SetCurrentLocation(ctx context.Context, id types.ID, pt types.Point) (bool, error)
}

// OutboxStore is the relay's view of pending durable events.
type OutboxStore interface {
	PendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id string) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const rideColumns = `id, customer_id, driver_id, status, status_version,
	       pickup_lat, pickup_lng, pickup_address,
	       dropoff_lat, dropoff_lng, dropoff_address,
	       current_lat, current_lng, fare_amount, fare_currency, created_at`

func (s *PGStore) Create(ctx context.Context, r *Ride) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, customer_id, driver_id, status, status_version,
			pickup_lat, pickup_lng, pickup_address,
			dropoff_lat, dropoff_lng, dropoff_address,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(r.ID),
		string(r.CustomerID),
		idPtr(r.DriverID),
		string(r.Status),
		r.StatusVersion,
		r.Pickup.Point.Lat, r.Pickup.Point.Lng, r.Pickup.Address,
		r.Dropoff.Point.Lat, r.Dropoff.Point.Lng, r.Dropoff.Address,
		r.CreatedAt,
	)
	if isActiveUniqueViolation(err) {
		return ErrActiveRide
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id))
	return scanRide(row)
}

func (s *PGStore) ActiveFor(ctx context.Context, userID types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE (customer_id = $1 OR driver_id = $1)
		  AND status IN ('MATCHING', 'ASSIGNED', 'PICKUP', 'IN_PROGRESS')
		LIMIT 1`, string(userID))
	return scanRide(row)
}

func (s *PGStore) ApplyTransition(ctx context.Context, t Transition) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    fare_amount = COALESCE(fare_amount, $3),
		    fare_currency = COALESCE(fare_currency, $4)
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(t.To),
		idPtr(t.DriverID),
		fareAmountPtr(t.Fare),
		fareCurrencyPtr(t.Fare),
		string(t.ID),
		string(t.From),
		t.FromVersion,
	)
	if isActiveUniqueViolation(err) {
		return false, ErrActiveRide
	}
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if t.Outbox != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO ride_outbox (id, topic, payload) VALUES ($1, $2, $3)`,
			t.Outbox.ID, t.Outbox.Topic, t.Outbox.Payload,
		)
		if err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func (s *PGStore) SetCurrentLocation(ctx context.Context, id types.ID, pt types.Point) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET current_lat = $1, current_lng = $2
		WHERE id = $3 AND status IN ('ASSIGNED', 'PICKUP', 'IN_PROGRESS')`,
		pt.Lat, pt.Lng, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) PendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, topic, payload
		FROM ride_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) MarkOutboxSent(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE ride_outbox SET sent_at = NOW() WHERE id = $1`, id)
	return err
}

func scanRide(row pgx.Row) (*Ride, error) {
	var (
		r                      Ride
		driverID, fareCur      *string
		currentLat, currentLng *float64
		fareAmount             *int64
	)
	err := row.Scan(
		&r.ID, &r.CustomerID, &driverID, &r.Status, &r.StatusVersion,
		&r.Pickup.Point.Lat, &r.Pickup.Point.Lng, &r.Pickup.Address,
		&r.Dropoff.Point.Lat, &r.Dropoff.Point.Lng, &r.Dropoff.Address,
		&currentLat, &currentLng, &fareAmount, &fareCur, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		d := types.ID(*driverID)
		r.DriverID = &d
	}
	if currentLat != nil && currentLng != nil {
		r.Current = &types.Point{Lat: *currentLat, Lng: *currentLng}
	}
	if fareAmount != nil {
		m := types.Money{Amount: *fareAmount}
		if fareCur != nil {
			m.Currency = *fareCur
		}
		r.Fare = &m
	}
	return &r, nil
}

func isActiveUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func fareAmountPtr(v *types.Money) *int64 {
	if v == nil {
		return nil
	}
	n := v.Amount
	return &n
}

func fareCurrencyPtr(v *types.Money) *string {
	if v == nil {
		return nil
	}
	c := v.Currency
	return &c
}
