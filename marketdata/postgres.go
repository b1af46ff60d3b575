package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/risk"
	"github.com/meenmo/bondrisk/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS bond_instruments (
	contract_id       TEXT PRIMARY KEY,
	bond_type         TEXT NOT NULL,
	security_desc     TEXT NOT NULL DEFAULT '',
	issue_date        DATE NOT NULL,
	maturity_date     DATE NOT NULL,
	par_value         DOUBLE PRECISION,
	coupon_rate       DOUBLE PRECISION NOT NULL DEFAULT 0,
	spread            DOUBLE PRECISION NOT NULL DEFAULT 0,
	reference_rate    TEXT NOT NULL DEFAULT '',
	payment_frequency INTEGER,
	quantity          DOUBLE PRECISION NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS curve_points (
	curve_date DATE NOT NULL,
	tenor      DOUBLE PRECISION NOT NULL,
	rate       DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (curve_date, tenor)
);
CREATE TABLE IF NOT EXISTS bond_cashflows (
	contract_id     TEXT NOT NULL,
	pay_date        DATE NOT NULL,
	coupon_cents    BIGINT NOT NULL,
	principal_cents BIGINT NOT NULL,
	PRIMARY KEY (contract_id, pay_date)
);
CREATE TABLE IF NOT EXISTS risk_metrics (
	valuation_date    DATE NOT NULL,
	contract_id       TEXT NOT NULL,
	price             DOUBLE PRECISION NOT NULL,
	price_pct         DOUBLE PRECISION NOT NULL,
	macaulay_duration DOUBLE PRECISION NOT NULL,
	modified_duration DOUBLE PRECISION NOT NULL,
	convexity         DOUBLE PRECISION NOT NULL,
	dv01              DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (valuation_date, contract_id)
);`

// Store persists instruments, curves, schedules and metrics in Postgres.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore wraps an open handle. logger may be nil.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}
	return NewStore(db, logger), nil
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("Migrate: %w", err)
	}
	return nil
}

// SaveInstruments upserts records by contract id. Omitted par values and frequencies are
// stored as NULL so Build applies the same defaults after a reload.
func (s *Store) SaveInstruments(ctx context.Context, recs []InstrumentRecord) error {
	const query = `
		INSERT INTO bond_instruments (
			contract_id, bond_type, security_desc, issue_date, maturity_date, par_value,
			coupon_rate, spread, reference_rate, payment_frequency, quantity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (contract_id) DO UPDATE SET
			bond_type = EXCLUDED.bond_type,
			security_desc = EXCLUDED.security_desc,
			issue_date = EXCLUDED.issue_date,
			maturity_date = EXCLUDED.maturity_date,
			par_value = EXCLUDED.par_value,
			coupon_rate = EXCLUDED.coupon_rate,
			spread = EXCLUDED.spread,
			reference_rate = EXCLUDED.reference_rate,
			payment_frequency = EXCLUDED.payment_frequency,
			quantity = EXCLUDED.quantity`

	return s.inTx(ctx, "SaveInstruments", func(tx *sql.Tx) error {
		for _, r := range recs {
			kind, err := r.Kind()
			if err != nil {
				return err
			}
			issue, err := utils.ParseDate(r.IssueDate)
			if err != nil {
				return err
			}
			maturity, err := utils.ParseDate(r.MaturityDate)
			if err != nil {
				return err
			}
			qty := r.Quantity
			if qty == 0 {
				qty = 1
			}
			if _, err := tx.ExecContext(ctx, query,
				r.ContractID, string(kind), r.SecurityDesc, issue, maturity, r.ParValue,
				r.CouponRate, r.Spread, r.ReferenceRate, r.PaymentFrequency, qty,
			); err != nil {
				return fmt.Errorf("%s: %w", r.ContractID, err)
			}
		}
		return nil
	})
}

// LoadInstruments returns the stored instruments ordered by contract id, restricted to
// ids when any are given.
func (s *Store) LoadInstruments(ctx context.Context, ids ...string) ([]InstrumentRecord, error) {
	query := `
		SELECT contract_id, bond_type, security_desc, issue_date, maturity_date, par_value,
			coupon_rate, spread, reference_rate, payment_frequency, quantity
		FROM bond_instruments`
	var args []any
	if len(ids) > 0 {
		query += ` WHERE contract_id = ANY($1)`
		args = append(args, pq.Array(ids))
	}
	query += ` ORDER BY contract_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("LoadInstruments: %w", err)
	}
	defer rows.Close()

	var out []InstrumentRecord
	for rows.Next() {
		var (
			r               InstrumentRecord
			issue, maturity time.Time
		)
		if err := rows.Scan(&r.ContractID, &r.Type, &r.SecurityDesc, &issue, &maturity, &r.ParValue,
			&r.CouponRate, &r.Spread, &r.ReferenceRate, &r.PaymentFrequency, &r.Quantity); err != nil {
			return nil, fmt.Errorf("LoadInstruments: scan: %w", err)
		}
		r.IssueDate = issue.Format(utils.DateLayout)
		r.MaturityDate = maturity.Format(utils.DateLayout)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LoadInstruments: %w", err)
	}
	s.logger.Debug("instruments loaded", zap.Int("count", len(out)))
	return out, nil
}

// SaveCurve replaces the points stored for date.
func (s *Store) SaveCurve(ctx context.Context, date time.Time, points []curve.Point) error {
	return s.inTx(ctx, "SaveCurve", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM curve_points WHERE curve_date = $1`, date); err != nil {
			return err
		}
		for _, p := range points {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO curve_points (curve_date, tenor, rate) VALUES ($1, $2, $3)`,
				date, p.Tenor, p.Rate,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadCurve returns the latest curve dated on or before date, with its as-of date.
// Tenors are year fractions from the as-of date and are returned unchanged: a caller
// valuing on a later date gets a sticky-tenor curve (the same rate at the same time to
// maturity), not one rolled down to the new date.
func (s *Store) LoadCurve(ctx context.Context, date time.Time) (time.Time, []curve.Point, error) {
	const query = `
		SELECT curve_date, tenor, rate
		FROM curve_points
		WHERE curve_date = (SELECT MAX(curve_date) FROM curve_points WHERE curve_date <= $1)
		ORDER BY tenor`

	rows, err := s.db.QueryContext(ctx, query, date)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("LoadCurve: %w", err)
	}
	defer rows.Close()

	var (
		asOf   time.Time
		points []curve.Point
	)
	for rows.Next() {
		var p curve.Point
		if err := rows.Scan(&asOf, &p.Tenor, &p.Rate); err != nil {
			return time.Time{}, nil, fmt.Errorf("LoadCurve: scan: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return time.Time{}, nil, fmt.Errorf("LoadCurve: %w", err)
	}
	if len(points) == 0 {
		return time.Time{}, nil, fmt.Errorf("LoadCurve: no curve on or before %s: %w",
			date.Format(utils.DateLayout), sql.ErrNoRows)
	}
	return utils.Truncate(asOf), points, nil
}

// SaveCashflows replaces the stored schedule of id. Amounts are kept in cents.
func (s *Store) SaveCashflows(ctx context.Context, id string, cfs []bond.Cashflow) error {
	return s.inTx(ctx, "SaveCashflows", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bond_cashflows WHERE contract_id = $1`, id); err != nil {
			return err
		}
		for _, c := range ScheduleCents(cfs) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO bond_cashflows (contract_id, pay_date, coupon_cents, principal_cents) VALUES ($1, $2, $3, $4)`,
				id, c.Date, c.CouponCents, c.PrincipalCents,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadCashflows returns the stored schedule of id in date order.
func (s *Store) LoadCashflows(ctx context.Context, id string) ([]bond.Cashflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pay_date, coupon_cents, principal_cents FROM bond_cashflows WHERE contract_id = $1 ORDER BY pay_date`, id)
	if err != nil {
		return nil, fmt.Errorf("LoadCashflows: %w", err)
	}
	defer rows.Close()

	var cents []CashflowCents
	for rows.Next() {
		var c CashflowCents
		if err := rows.Scan(&c.Date, &c.CouponCents, &c.PrincipalCents); err != nil {
			return nil, fmt.Errorf("LoadCashflows: scan: %w", err)
		}
		c.Date = utils.Truncate(c.Date)
		cents = append(cents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LoadCashflows: %w", err)
	}
	return ScheduleFromCents(cents), nil
}

// SaveMetrics upserts the metrics of id at valuation.
func (s *Store) SaveMetrics(ctx context.Context, valuation time.Time, id string, m risk.Metrics) error {
	const query = `
		INSERT INTO risk_metrics (
			valuation_date, contract_id, price, price_pct, macaulay_duration,
			modified_duration, convexity, dv01
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (valuation_date, contract_id) DO UPDATE SET
			price = EXCLUDED.price,
			price_pct = EXCLUDED.price_pct,
			macaulay_duration = EXCLUDED.macaulay_duration,
			modified_duration = EXCLUDED.modified_duration,
			convexity = EXCLUDED.convexity,
			dv01 = EXCLUDED.dv01`

	if _, err := s.db.ExecContext(ctx, query,
		valuation, id, m.Price, m.PricePct, m.MacaulayDuration, m.ModifiedDuration, m.Convexity, m.DV01,
	); err != nil {
		return fmt.Errorf("SaveMetrics: %s: %w", id, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
