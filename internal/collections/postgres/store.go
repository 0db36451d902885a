// Package postgres is the lib/pq backed collections store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"dca-workers/internal/collections"
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/models"
)

// maxInsertRows keeps a multi-row insert well under the 65535 bind parameter limit.
const maxInsertRows = 1000

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store implements collections.Store over a database/sql pool.
type Store struct {
	db   *sql.DB
	read *repo
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, read: &repo{q: db}}
}

func (s *Store) ListCases(ctx context.Context, f collections.CaseFilter) ([]models.Case, error) {
	return s.read.ListCases(ctx, f)
}

func (s *Store) GetCase(ctx context.Context, id int64) (*models.Case, error) {
	return s.read.GetCase(ctx, id)
}

func (s *Store) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	return s.read.ListAgencies(ctx)
}

func (s *Store) GetAgency(ctx context.Context, id int64) (*models.Agency, error) {
	return s.read.GetAgency(ctx, id)
}

func (s *Store) RecentAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return s.read.RecentAudit(ctx, limit)
}

// InTx runs fn in a read-committed transaction. Conditional updates and
// SELECT ... FOR UPDATE provide the per-case isolation the engine relies on.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repo collections.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return apperr.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &repo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.NewDatabaseError("commit", err)
	}
	return nil
}

type repo struct {
	q queryer
}

const caseColumns = `id, customer_name, amount_due, days_overdue, status, risk_label, assigned_agency_id, created_at`

func scanCase(sc interface{ Scan(...interface{}) error }) (models.Case, error) {
	var (
		cs     models.Case
		risk   sql.NullString
		agency sql.NullInt64
	)
	err := sc.Scan(&cs.ID, &cs.CustomerName, &cs.AmountDue, &cs.DaysOverdue, &cs.Status, &risk, &agency, &cs.CreatedAt)
	if err != nil {
		return cs, err
	}
	if risk.Valid {
		label := models.RiskLabel(risk.String)
		cs.RiskLabel = &label
	}
	if agency.Valid {
		id := agency.Int64
		cs.AssignedAgencyID = &id
	}
	return cs, nil
}

func (r *repo) ListCases(ctx context.Context, f collections.CaseFilter) ([]models.Case, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Risk != "" {
		args = append(args, string(f.Risk))
		where = append(where, fmt.Sprintf("risk_label = $%d", len(args)))
	}
	if f.AgencyID != 0 {
		args = append(args, f.AgencyID)
		where = append(where, fmt.Sprintf("assigned_agency_id = $%d", len(args)))
	}

	query := "SELECT " + caseColumns + " FROM cases"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewDatabaseError("list cases", err)
	}
	defer rows.Close()

	cases := []models.Case{}
	for rows.Next() {
		cs, err := scanCase(rows)
		if err != nil {
			return nil, apperr.NewDatabaseError("scan case", err)
		}
		cases = append(cases, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewDatabaseError("list cases", err)
	}
	return cases, nil
}

func (r *repo) GetCase(ctx context.Context, id int64) (*models.Case, error) {
	return r.getCase(ctx, id, "")
}

func (r *repo) LockCase(ctx context.Context, id int64) (*models.Case, error) {
	return r.getCase(ctx, id, " FOR UPDATE")
}

func (r *repo) getCase(ctx context.Context, id int64, suffix string) (*models.Case, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+caseColumns+" FROM cases WHERE id = $1"+suffix, id)
	cs, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFoundError("case", id)
	}
	if err != nil {
		return nil, apperr.NewDatabaseError("get case", err)
	}
	return &cs, nil
}

const agencyColumns = `id, username, COALESCE(email, ''), COALESCE(phone, ''), high_risk_eligible`

func (r *repo) queryAgencies(ctx context.Context, query string, args ...interface{}) ([]models.Agency, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewDatabaseError("list agencies", err)
	}
	defer rows.Close()

	agencies := []models.Agency{}
	for rows.Next() {
		var a models.Agency
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.HighRiskEligible); err != nil {
			return nil, apperr.NewDatabaseError("scan agency", err)
		}
		agencies = append(agencies, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewDatabaseError("list agencies", err)
	}
	return agencies, nil
}

func (r *repo) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	return r.queryAgencies(ctx, "SELECT "+agencyColumns+" FROM users WHERE role = 'agency' ORDER BY id")
}

func (r *repo) EligibleAgencies(ctx context.Context) ([]models.Agency, error) {
	return r.queryAgencies(ctx, "SELECT "+agencyColumns+" FROM users WHERE role = 'agency' AND high_risk_eligible ORDER BY id")
}

func (r *repo) GetAgency(ctx context.Context, id int64) (*models.Agency, error) {
	var a models.Agency
	err := r.q.QueryRowContext(ctx,
		"SELECT "+agencyColumns+" FROM users WHERE role = 'agency' AND id = $1", id,
	).Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.HighRiskEligible)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFoundError("agency", id)
	}
	if err != nil {
		return nil, apperr.NewDatabaseError("get agency", err)
	}
	return &a, nil
}

func (r *repo) RecentAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT a.id, a.case_id, a.user_id, COALESCE(u.username, ''), a.action_type, a.description, a.timestamp
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.timestamp DESC, a.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.NewDatabaseError("recent audit", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var (
			e      models.AuditEntry
			caseID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &caseID, &e.ActorID, &e.ActorName, &e.ActionType, &e.Description, &e.Timestamp); err != nil {
			return nil, apperr.NewDatabaseError("scan audit entry", err)
		}
		if caseID.Valid {
			id := caseID.Int64
			e.CaseID = &id
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewDatabaseError("recent audit", err)
	}
	return entries, nil
}

// InsertCases writes rows with multi-row INSERTs and returns ids in row order.
func (r *repo) InsertCases(ctx context.Context, rows []models.NewCase) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for start := 0; start < len(rows); start += maxInsertRows {
		end := start + maxInsertRows
		if end > len(rows) {
			end = len(rows)
		}
		chunk, err := r.insertChunk(ctx, rows[start:end])
		if err != nil {
			return nil, err
		}
		ids = append(ids, chunk...)
	}
	return ids, nil
}

func (r *repo) insertChunk(ctx context.Context, rows []models.NewCase) ([]int64, error) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO cases (customer_name, amount_due, days_overdue, status) VALUES ")
	args := make([]interface{}, 0, len(rows)*3)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&sb, "($%d, $%d, $%d, 'New')", n+1, n+2, n+3)
		args = append(args, row.CustomerName, row.AmountDue, row.DaysOverdue)
	}
	sb.WriteString(" RETURNING id")

	res, err := r.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperr.NewDatabaseError("insert cases", err)
	}
	defer res.Close()

	ids := make([]int64, 0, len(rows))
	for res.Next() {
		var id int64
		if err := res.Scan(&id); err != nil {
			return nil, apperr.NewDatabaseError("insert cases", err)
		}
		ids = append(ids, id)
	}
	if err := res.Err(); err != nil {
		return nil, apperr.NewDatabaseError("insert cases", err)
	}
	if len(ids) != len(rows) {
		return nil, apperr.NewDatabaseError("insert cases", fmt.Errorf("inserted %d of %d rows", len(ids), len(rows)))
	}
	return ids, nil
}

func (r *repo) execAffected(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperr.NewDatabaseError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.NewDatabaseError(op, err)
	}
	return n, nil
}

func (r *repo) SetRiskLabel(ctx context.Context, caseID int64, label models.RiskLabel) (bool, error) {
	n, err := r.execAffected(ctx, "set risk label",
		`UPDATE cases SET risk_label = $1 WHERE id = $2 AND status = 'New'`, string(label), caseID)
	return n > 0, err
}

func (r *repo) AssignIfNew(ctx context.Context, caseID, agencyID int64) (bool, error) {
	n, err := r.execAffected(ctx, "assign case",
		`UPDATE cases SET assigned_agency_id = $1, status = 'Assigned' WHERE id = $2 AND status = 'New'`, agencyID, caseID)
	return n > 0, err
}

func (r *repo) Assign(ctx context.Context, caseID, agencyID int64) error {
	n, err := r.execAffected(ctx, "assign case",
		`UPDATE cases SET assigned_agency_id = $1, status = 'Assigned' WHERE id = $2`, agencyID, caseID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NewNotFoundError("case", caseID)
	}
	return nil
}

func (r *repo) UpdateStatus(ctx context.Context, caseID int64, status models.CaseStatus) error {
	n, err := r.execAffected(ctx, "update status",
		`UPDATE cases SET status = $1 WHERE id = $2`, string(status), caseID)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NewNotFoundError("case", caseID)
	}
	return nil
}

func (r *repo) ResetEligibility(ctx context.Context) error {
	_, err := r.execAffected(ctx, "reset eligibility",
		`UPDATE users SET high_risk_eligible = FALSE WHERE role = 'agency'`)
	return err
}

func (r *repo) SetEligible(ctx context.Context, agencyIDs []int64) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx,
		`UPDATE users SET high_risk_eligible = TRUE WHERE role = 'agency' AND id = ANY($1) RETURNING id`,
		pq.Array(agencyIDs))
	if err != nil {
		return nil, apperr.NewDatabaseError("set eligibility", err)
	}
	defer rows.Close()

	found := make([]int64, 0, len(agencyIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.NewDatabaseError("set eligibility", err)
		}
		found = append(found, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewDatabaseError("set eligibility", err)
	}
	return found, nil
}

func (r *repo) InsertAgency(ctx context.Context, a models.Agency) (int64, error) {
	var id int64
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO users (username, role, email, phone, high_risk_eligible)
		VALUES ($1, 'agency', NULLIF($2, ''), NULLIF($3, ''), FALSE)
		RETURNING id`, a.Name, a.Email, a.Phone).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, apperr.NewValidationError("name", fmt.Sprintf("agency %q already exists", a.Name))
		}
		return 0, apperr.NewDatabaseError("insert agency", err)
	}
	return id, nil
}

func (r *repo) AppendAudit(ctx context.Context, e models.AuditEntry) (int64, error) {
	var caseID sql.NullInt64
	if e.CaseID != nil {
		caseID = sql.NullInt64{Int64: *e.CaseID, Valid: true}
	}

	var id int64
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO audit_logs (case_id, user_id, action_type, description, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, caseID, e.ActorID, string(e.ActionType), e.Description, e.Timestamp).Scan(&id)
	if err != nil {
		return 0, apperr.NewDatabaseError("append audit", err)
	}
	return id, nil
}

var _ collections.Store = (*Store)(nil)
