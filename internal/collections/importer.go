package collections

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/models"
)

const (
	ColumnCustomerName = "customer_name"
	ColumnAmountDue    = "amount_due"
	ColumnDaysOverdue  = "days_overdue"
)

// RequiredColumns are the only columns an import row is checked for.
var RequiredColumns = []string{ColumnCustomerName, ColumnAmountDue, ColumnDaysOverdue}

// Row is one decoded import row keyed by column name.
type Row map[string]string

type ImportFailure struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	BatchID   string         `json:"batchId"`
	Source    string         `json:"source"`
	Committed int            `json:"committed"`
	CaseIDs   []int64        `json:"caseIds"`
	Failure   *ImportFailure `json:"failure,omitempty"`
}

// Importer turns decoded rows into New, unscored cases.
type Importer struct {
	store   Store
	audit   *AuditLog
	maxRows int
	logger  logger.Logger
}

// NewImporter builds an importer. maxRows <= 0 means unlimited.
func NewImporter(store Store, audit *AuditLog, maxRows int, log logger.Logger) *Importer {
	return &Importer{
		store:   store,
		audit:   audit,
		maxRows: maxRows,
		logger:  log.WithFields(map[string]interface{}{"component": "importer"}),
	}
}

// Import validates rows in order and stops at the first malformed one. The valid
// prefix is inserted in a single transaction together with its BULK_UPLOAD entry,
// and the returned result says exactly how many rows committed. When a row was
// rejected the result is returned alongside a VALIDATION_FAILED error.
func (im *Importer) Import(ctx context.Context, actor models.Actor, source string, rows []Row) (*ImportResult, error) {
	if err := Authorize(actor, ActionImportCases); err != nil {
		return nil, err
	}
	if im.maxRows > 0 && len(rows) > im.maxRows {
		return nil, apperr.NewValidationError("rows", fmt.Sprintf("%d rows exceeds the limit of %d", len(rows), im.maxRows))
	}

	result := &ImportResult{
		BatchID: uuid.New().String(),
		Source:  source,
		CaseIDs: []int64{},
	}

	valid := make([]models.NewCase, 0, len(rows))
	var rowErr *apperr.StandardError
	for i, row := range rows {
		nc, failure := ParseRow(row)
		if failure != nil {
			failure.Row = i + 1
			result.Failure = failure
			rowErr = apperr.NewRowValidationError(failure.Row, failure.Column, failure.Reason)
			metrics.ImportRowsRejected.Inc()
			break
		}
		valid = append(valid, nc)
	}

	if len(valid) > 0 {
		err := im.store.InTx(ctx, func(ctx context.Context, repo Repository) error {
			ids, err := repo.InsertCases(ctx, valid)
			if err != nil {
				return err
			}
			desc := fmt.Sprintf("Uploaded %d cases via %s", len(ids), sourceName(source))
			if f := result.Failure; f != nil {
				desc += fmt.Sprintf("; stopped at row %d (%s: %s)", f.Row, f.Column, f.Reason)
			}
			if _, err := im.audit.Record(ctx, repo, nil, actor.ID, models.ActionBulkUpload, desc); err != nil {
				return err
			}
			result.CaseIDs = ids
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.Committed = len(result.CaseIDs)
		metrics.CasesImported.Add(float64(result.Committed))
	}

	fields := map[string]interface{}{
		"batchId":   result.BatchID,
		"source":    source,
		"committed": result.Committed,
	}
	if rowErr != nil {
		fields["failedRow"] = result.Failure.Row
		im.logger.Warn("import stopped at malformed row", fields)
		return result, rowErr
	}
	im.logger.Info("import finished", fields)
	return result, nil
}

// ParseRow checks column presence and converts one row. The returned failure has
// no row number set.
func ParseRow(row Row) (models.NewCase, *ImportFailure) {
	for _, col := range RequiredColumns {
		if _, ok := row[col]; !ok {
			return models.NewCase{}, &ImportFailure{Column: col, Reason: "missing column"}
		}
	}

	name := strings.TrimSpace(row[ColumnCustomerName])
	if name == "" {
		return models.NewCase{}, &ImportFailure{Column: ColumnCustomerName, Reason: "empty value"}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(row[ColumnAmountDue]))
	if err != nil {
		return models.NewCase{}, &ImportFailure{Column: ColumnAmountDue, Reason: "not a number"}
	}
	if !amount.IsPositive() {
		return models.NewCase{}, &ImportFailure{Column: ColumnAmountDue, Reason: "must be positive"}
	}

	days, err := strconv.Atoi(strings.TrimSpace(row[ColumnDaysOverdue]))
	if err != nil {
		return models.NewCase{}, &ImportFailure{Column: ColumnDaysOverdue, Reason: "not an integer"}
	}
	if days < 0 {
		return models.NewCase{}, &ImportFailure{Column: ColumnDaysOverdue, Reason: "must not be negative"}
	}

	return models.NewCase{CustomerName: name, AmountDue: amount, DaysOverdue: days}, nil
}

func sourceName(source string) string {
	if source == "" {
		return "upload"
	}
	return source
}
