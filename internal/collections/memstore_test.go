package collections

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/models"
)

// memState is everything the fake store holds. InTx works on a deep copy and
// swaps it in only when fn succeeds.
type memState struct {
	cases    map[int64]models.Case
	agencies map[int64]models.Agency
	audit    []models.AuditEntry
	nextCase int64
	nextAgcy int64
	nextLog  int64
}

func (s *memState) clone() *memState {
	c := &memState{
		cases:    make(map[int64]models.Case, len(s.cases)),
		agencies: make(map[int64]models.Agency, len(s.agencies)),
		audit:    append([]models.AuditEntry(nil), s.audit...),
		nextCase: s.nextCase,
		nextAgcy: s.nextAgcy,
		nextLog:  s.nextLog,
	}
	for id, cs := range s.cases {
		c.cases[id] = copyCase(cs)
	}
	for id, a := range s.agencies {
		c.agencies[id] = a
	}
	return c
}

func copyCase(cs models.Case) models.Case {
	if cs.RiskLabel != nil {
		l := *cs.RiskLabel
		cs.RiskLabel = &l
	}
	if cs.AssignedAgencyID != nil {
		id := *cs.AssignedAgencyID
		cs.AssignedAgencyID = &id
	}
	return cs
}

type memStore struct {
	state *memState

	failAudit error
	commits   int

	// claimedElsewhere maps a case id to the agency a concurrent allocator
	// assigns it to just before this store's conditional update runs.
	claimedElsewhere map[int64]int64
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		cases:    map[int64]models.Case{},
		agencies: map[int64]models.Agency{},
		nextCase: 100,
		nextAgcy: 1,
	}}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	tx := &memRepo{state: m.state.clone(), failAudit: m.failAudit, claimedElsewhere: m.claimedElsewhere}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	m.commits++
	return nil
}

func (m *memStore) ListCases(ctx context.Context, f CaseFilter) ([]models.Case, error) {
	return (&memRepo{state: m.state}).ListCases(ctx, f)
}

func (m *memStore) GetCase(ctx context.Context, id int64) (*models.Case, error) {
	return (&memRepo{state: m.state}).GetCase(ctx, id)
}

func (m *memStore) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	return (&memRepo{state: m.state}).ListAgencies(ctx)
}

func (m *memStore) GetAgency(ctx context.Context, id int64) (*models.Agency, error) {
	return (&memRepo{state: m.state}).GetAgency(ctx, id)
}

func (m *memStore) RecentAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	return (&memRepo{state: m.state}).RecentAudit(ctx, limit)
}

// seedCase inserts a case directly, bypassing the import path.
func (m *memStore) seedCase(id int64, status models.CaseStatus, risk models.RiskLabel, agencyID int64) {
	cs := models.Case{
		ID:           id,
		CustomerName: "customer",
		Status:       status,
		DaysOverdue:  30,
		CreatedAt:    time.Now(),
	}
	if risk != "" {
		r := risk
		cs.RiskLabel = &r
	}
	if agencyID != 0 {
		a := agencyID
		cs.AssignedAgencyID = &a
	}
	m.state.cases[id] = cs
	if id >= m.state.nextCase {
		m.state.nextCase = id + 1
	}
}

func (m *memStore) seedAgency(id int64, name string, eligible bool) {
	m.state.agencies[id] = models.Agency{ID: id, Name: name, HighRiskEligible: eligible}
	if id >= m.state.nextAgcy {
		m.state.nextAgcy = id + 1
	}
}

func (m *memStore) caseByID(id int64) models.Case {
	return m.state.cases[id]
}

func (m *memStore) auditEntries() []models.AuditEntry {
	return m.state.audit
}

type memRepo struct {
	state            *memState
	failAudit        error
	claimedElsewhere map[int64]int64
}

func (r *memRepo) ListCases(_ context.Context, f CaseFilter) ([]models.Case, error) {
	var out []models.Case
	for _, cs := range r.state.cases {
		if f.Status != "" && cs.Status != f.Status {
			continue
		}
		if f.Risk != "" && (cs.RiskLabel == nil || *cs.RiskLabel != f.Risk) {
			continue
		}
		if f.AgencyID != 0 && !cs.OwnedBy(f.AgencyID) {
			continue
		}
		out = append(out, copyCase(cs))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) GetCase(_ context.Context, id int64) (*models.Case, error) {
	cs, ok := r.state.cases[id]
	if !ok {
		return nil, apperr.NewNotFoundError("case", id)
	}
	c := copyCase(cs)
	return &c, nil
}

func (r *memRepo) ListAgencies(_ context.Context) ([]models.Agency, error) {
	out := make([]models.Agency, 0, len(r.state.agencies))
	for _, a := range r.state.agencies {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) GetAgency(_ context.Context, id int64) (*models.Agency, error) {
	a, ok := r.state.agencies[id]
	if !ok {
		return nil, apperr.NewNotFoundError("agency", id)
	}
	return &a, nil
}

func (r *memRepo) RecentAudit(_ context.Context, limit int) ([]models.AuditEntry, error) {
	out := make([]models.AuditEntry, 0, limit)
	for i := len(r.state.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.state.audit[i]
		if a, ok := r.state.agencies[e.ActorID]; ok {
			e.ActorName = a.Name
		} else {
			e.ActorName = "admin"
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memRepo) InsertCases(_ context.Context, rows []models.NewCase) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id := r.state.nextCase
		r.state.nextCase++
		r.state.cases[id] = models.Case{
			ID:           id,
			CustomerName: row.CustomerName,
			AmountDue:    row.AmountDue,
			DaysOverdue:  row.DaysOverdue,
			Status:       models.StatusNew,
			CreatedAt:    time.Now(),
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memRepo) SetRiskLabel(_ context.Context, id int64, label models.RiskLabel) (bool, error) {
	cs, ok := r.state.cases[id]
	if !ok || cs.Status != models.StatusNew {
		return false, nil
	}
	l := label
	cs.RiskLabel = &l
	r.state.cases[id] = cs
	return true, nil
}

func (r *memRepo) EligibleAgencies(ctx context.Context) ([]models.Agency, error) {
	all, _ := r.ListAgencies(ctx)
	var out []models.Agency
	for _, a := range all {
		if a.HighRiskEligible {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) AssignIfNew(_ context.Context, caseID, agencyID int64) (bool, error) {
	if other, ok := r.claimedElsewhere[caseID]; ok {
		cs := r.state.cases[caseID]
		cs.AssignedAgencyID = &other
		cs.Status = models.StatusAssigned
		r.state.cases[caseID] = cs
	}
	cs, ok := r.state.cases[caseID]
	if !ok || cs.Status != models.StatusNew {
		return false, nil
	}
	a := agencyID
	cs.AssignedAgencyID = &a
	cs.Status = models.StatusAssigned
	r.state.cases[caseID] = cs
	return true, nil
}

func (r *memRepo) Assign(_ context.Context, caseID, agencyID int64) error {
	cs, ok := r.state.cases[caseID]
	if !ok {
		return apperr.NewNotFoundError("case", caseID)
	}
	a := agencyID
	cs.AssignedAgencyID = &a
	cs.Status = models.StatusAssigned
	r.state.cases[caseID] = cs
	return nil
}

func (r *memRepo) LockCase(ctx context.Context, id int64) (*models.Case, error) {
	return r.GetCase(ctx, id)
}

func (r *memRepo) UpdateStatus(_ context.Context, id int64, status models.CaseStatus) error {
	cs, ok := r.state.cases[id]
	if !ok {
		return apperr.NewNotFoundError("case", id)
	}
	cs.Status = status
	r.state.cases[id] = cs
	return nil
}

func (r *memRepo) ResetEligibility(_ context.Context) error {
	for id, a := range r.state.agencies {
		a.HighRiskEligible = false
		r.state.agencies[id] = a
	}
	return nil
}

func (r *memRepo) SetEligible(_ context.Context, ids []int64) ([]int64, error) {
	var found []int64
	for _, id := range ids {
		a, ok := r.state.agencies[id]
		if !ok {
			continue
		}
		a.HighRiskEligible = true
		r.state.agencies[id] = a
		found = append(found, id)
	}
	return found, nil
}

func (r *memRepo) InsertAgency(_ context.Context, a models.Agency) (int64, error) {
	a.ID = r.state.nextAgcy
	r.state.nextAgcy++
	r.state.agencies[a.ID] = a
	return a.ID, nil
}

func (r *memRepo) AppendAudit(_ context.Context, e models.AuditEntry) (int64, error) {
	if r.failAudit != nil {
		return 0, r.failAudit
	}
	r.state.nextLog++
	e.ID = r.state.nextLog
	r.state.audit = append(r.state.audit, e)
	return e.ID, nil
}

var errAuditDown = errors.New("audit table unavailable")

// stepClock advances one second per call.
func stepClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

var (
	admin   = models.Actor{ID: 1, Role: models.RoleAdmin}
	agencyA = models.Actor{ID: 10, Role: models.RoleAgency}
	agencyB = models.Actor{ID: 11, Role: models.RoleAgency}
)
