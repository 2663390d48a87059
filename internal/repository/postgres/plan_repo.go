package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PlanRepo implements PlanRepository using PostgreSQL.
type PlanRepo struct{ db *DB }

// NewPlanRepo constructs a plan repository.
func NewPlanRepo(db *DB) *PlanRepo { return &PlanRepo{db: db} }

const planCols = `id, user_id, status, frequency, start_date, years, budget::text, recipient, draft_card_messages, created_at, updated_at`

const eventCols = `id, plan_id, idx, delivery_date, message`

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (*model.Plan, error) {
	var (
		p                 model.Plan
		status, freq, bud string
		recipient, drafts []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &status, &freq, &p.Structure.StartDate, &p.Structure.Years,
		&bud, &recipient, &drafts, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p.Status = model.PlanStatus(status)
	p.Structure.Frequency = model.Frequency(freq)
	p.Structure.StartDate = model.DateOf(p.Structure.StartDate)
	if p.Structure.Budget, err = decimal.NewFromString(bud); err != nil {
		return nil, fmt.Errorf("plan %s budget: %w", p.ID, err)
	}
	if len(recipient) > 0 {
		if err := json.Unmarshal(recipient, &p.Recipient); err != nil {
			return nil, fmt.Errorf("plan %s recipient: %w", p.ID, err)
		}
	}
	p.DraftCardMessages = map[string]string{}
	if len(drafts) > 0 {
		if err := json.Unmarshal(drafts, &p.DraftCardMessages); err != nil {
			return nil, fmt.Errorf("plan %s drafts: %w", p.ID, err)
		}
	}
	return &p, nil
}

func scanEvent(row scanner) (model.DeliveryEvent, error) {
	var e model.DeliveryEvent
	if err := row.Scan(&e.ID, &e.PlanID, &e.Index, &e.DeliveryDate, &e.Message); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DeliveryEvent{}, errs.ErrNotFound
		}
		return model.DeliveryEvent{}, err
	}
	e.DeliveryDate = model.DateOf(e.DeliveryDate)
	return e, nil
}

func encodeDrafts(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

// Create inserts a draft plan and fills its timestamps.
func (r *PlanRepo) Create(ctx context.Context, p *model.Plan) error {
	recipient, err := json.Marshal(p.Recipient)
	if err != nil {
		return err
	}
	drafts, err := encodeDrafts(p.DraftCardMessages)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO plans (id, user_id, status, frequency, start_date, years, budget, recipient, draft_card_messages)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)
RETURNING created_at, updated_at`
	s := p.Structure
	err = r.db.Pool.QueryRow(ctx, q, p.ID, p.UserID, string(p.Status), string(s.Frequency), s.StartDate, s.Years,
		s.Budget.StringFixed(2), recipient, drafts).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// List returns the user's plans, newest first, without events.
func (r *PlanRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Plan, error) {
	q := `SELECT ` + planCols + ` FROM plans WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PlanRepo) events(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, planID uuid.UUID) ([]model.DeliveryEvent, error) {
	rows, err := q.Query(ctx, `SELECT `+eventCols+` FROM delivery_events WHERE plan_id=$1 ORDER BY idx`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DeliveryEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns one plan with its events.
func (r *PlanRepo) Get(ctx context.Context, userID, planID uuid.UUID) (*model.Plan, error) {
	q := `SELECT ` + planCols + ` FROM plans WHERE id=$1 AND user_id=$2`
	p, err := scanPlan(r.db.Pool.QueryRow(ctx, q, planID, userID))
	if err != nil {
		return nil, err
	}
	if p.Events, err = r.events(ctx, r.db.Pool, planID); err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies a partial update; absent fields keep their stored values.
func (r *PlanRepo) Update(ctx context.Context, userID, planID uuid.UUID, patch model.PlanPatch) (*model.Plan, error) {
	var (
		freq      *string
		start     *time.Time
		years     *int
		budget    *string
		recipient []byte
		drafts    []byte
		err       error
	)
	if patch.Frequency != nil {
		f := string(*patch.Frequency)
		freq = &f
	}
	if patch.StartDate != nil {
		d := model.DateOf(*patch.StartDate)
		start = &d
	}
	years = patch.Years
	if patch.Budget != nil {
		b := patch.Budget.StringFixed(2)
		budget = &b
	}
	if patch.Recipient != nil {
		if recipient, err = json.Marshal(*patch.Recipient); err != nil {
			return nil, err
		}
	}
	if patch.DraftCardMessages != nil {
		if drafts, err = encodeDrafts(patch.DraftCardMessages); err != nil {
			return nil, err
		}
	}
	draftOnly := patch.TouchesStructure() || patch.DraftCardMessages != nil

	q := `
UPDATE plans SET
  frequency = COALESCE($3, frequency),
  start_date = COALESCE($4, start_date),
  years = COALESCE($5, years),
  budget = COALESCE($6::numeric, budget),
  recipient = COALESCE($7, recipient),
  draft_card_messages = COALESCE($8, draft_card_messages),
  updated_at = now()
WHERE id = $1 AND user_id = $2 AND ($9::bool = false OR status = 'draft')
RETURNING ` + planCols
	p, err := scanPlan(r.db.Pool.QueryRow(ctx, q, planID, userID, freq, start, years, budget, recipient, drafts, draftOnly))
	if errors.Is(err, errs.ErrNotFound) && draftOnly {
		// tell a missing plan from an active one
		if _, gerr := r.status(ctx, r.db.Pool, userID, planID, false); gerr == nil {
			return nil, errs.ErrPlanActive
		}
	}
	if err != nil {
		return nil, err
	}
	if p.Events, err = r.events(ctx, r.db.Pool, planID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PlanRepo) status(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, userID, planID uuid.UUID, lock bool) (model.PlanStatus, error) {
	sql := `SELECT status FROM plans WHERE id=$1 AND user_id=$2`
	if lock {
		sql += ` FOR UPDATE`
	}
	var st string
	if err := q.QueryRow(ctx, sql, planID, userID).Scan(&st); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return model.PlanStatus(st), nil
}

// Activate stores the materialized events and flips the plan to active.
func (r *PlanRepo) Activate(ctx context.Context, userID, planID uuid.UUID, events []model.DeliveryEvent) (*model.Plan, error) {
	var p *model.Plan
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		st, err := r.status(ctx, tx, userID, planID, true)
		if err != nil {
			return err
		}
		if st != model.StatusDraft {
			return errs.ErrPlanActive
		}

		rows := make([][]any, 0, len(events))
		for _, e := range events {
			rows = append(rows, []any{e.ID, planID, e.Index, e.DeliveryDate, e.Message})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"delivery_events"},
			[]string{"id", "plan_id", "idx", "delivery_date", "message"}, pgx.CopyFromRows(rows)); err != nil {
			return err
		}

		q := `UPDATE plans SET status = 'active', updated_at = now() WHERE id = $1 AND user_id = $2 RETURNING ` + planCols
		p, err = scanPlan(tx.QueryRow(ctx, q, planID, userID))
		return err
	})
	if err != nil {
		return nil, err
	}
	p.Events = events
	return p, nil
}

// UpdateEventMessage sets the message of an event owned by the user.
func (r *PlanRepo) UpdateEventMessage(ctx context.Context, userID, eventID uuid.UUID, message string) (model.DeliveryEvent, error) {
	const q = `
UPDATE delivery_events e SET message = $3
FROM plans p
WHERE e.id = $1 AND e.plan_id = p.id AND p.user_id = $2
RETURNING e.id, e.plan_id, e.idx, e.delivery_date, e.message`
	return scanEvent(r.db.Pool.QueryRow(ctx, q, eventID, userID, message))
}
