// Package search maintains the Elasticsearch read model of collection cases.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/shopspring/decimal"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/models"
)

const caseMapping = `{
  "mappings": {
    "properties": {
      "id":                 {"type": "long"},
      "customer_name":      {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "amount_due":         {"type": "scaled_float", "scaling_factor": 100},
      "days_overdue":       {"type": "integer"},
      "status":             {"type": "keyword"},
      "risk_label":         {"type": "keyword"},
      "assigned_agency_id": {"type": "long"},
      "created_at":         {"type": "date"}
    }
  }
}`

// CaseDoc is the indexed form of a case.
type CaseDoc struct {
	ID               int64           `json:"id"`
	CustomerName     string          `json:"customer_name"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	DaysOverdue      int             `json:"days_overdue"`
	Status           string          `json:"status"`
	RiskLabel        string          `json:"risk_label,omitempty"`
	AssignedAgencyID *int64          `json:"assigned_agency_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func DocFromCase(cs models.Case) CaseDoc {
	doc := CaseDoc{
		ID:               cs.ID,
		CustomerName:     cs.CustomerName,
		AmountDue:        cs.AmountDue,
		DaysOverdue:      cs.DaysOverdue,
		Status:           string(cs.Status),
		AssignedAgencyID: cs.AssignedAgencyID,
		CreatedAt:        cs.CreatedAt,
	}
	if cs.RiskLabel != nil {
		doc.RiskLabel = string(*cs.RiskLabel)
	}
	return doc
}

// Query is a case search. Empty fields do not filter.
type Query struct {
	Text     string
	Status   string
	Risk     string
	AgencyID int64
	From     int
	Size     int
}

type Result struct {
	Total int64     `json:"total"`
	Cases []CaseDoc `json:"cases"`
	Took  int       `json:"took"`
}

type CaseIndex struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
}

func NewCaseIndex(client *elasticsearch.Client, index string, pageSize int) *CaseIndex {
	if index == "" {
		index = "cases"
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &CaseIndex{client: client, index: index, pageSize: pageSize}
}

func (ci *CaseIndex) Index() string {
	return ci.index
}

func (ci *CaseIndex) Client() *elasticsearch.Client {
	return ci.client
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (ci *CaseIndex) EnsureIndex(ctx context.Context) error {
	res, err := ci.client.Indices.Exists([]string{ci.index}, ci.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return apperr.NewIndexFailedError(err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = ci.client.Indices.Create(ci.index,
		ci.client.Indices.Create.WithContext(ctx),
		ci.client.Indices.Create.WithBody(strings.NewReader(caseMapping)),
	)
	if err != nil {
		return apperr.NewIndexFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(readBody(res), "resource_already_exists_exception") {
		return apperr.NewIndexFailedError(fmt.Errorf("create index %s: %s", ci.index, res.Status()))
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// IndexCases upserts cases by id with one bulk request and returns how many
// documents Elasticsearch accepted.
func (ci *CaseIndex) IndexCases(ctx context.Context, cases []models.Case) (int, error) {
	if len(cases) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, cs := range cases {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": ci.index, "_id": strconv.FormatInt(cs.ID, 10)},
		}
		if err := enc.Encode(meta); err != nil {
			return 0, apperr.NewIndexFailedError(err)
		}
		if err := enc.Encode(DocFromCase(cs)); err != nil {
			return 0, apperr.NewIndexFailedError(err)
		}
	}

	res, err := ci.client.Bulk(&buf,
		ci.client.Bulk.WithContext(ctx),
		ci.client.Bulk.WithIndex(ci.index),
	)
	if err != nil {
		return 0, apperr.NewIndexFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, apperr.NewIndexFailedError(fmt.Errorf("bulk: %s", res.Status()))
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return 0, apperr.NewIndexFailedError(fmt.Errorf("decode bulk response: %w", err))
	}

	indexed := 0
	var firstErr string
	for _, item := range br.Items {
		for _, op := range item {
			if op.Error == nil && op.Status < 300 {
				indexed++
			} else if firstErr == "" && op.Error != nil {
				firstErr = op.Error.Type + ": " + op.Error.Reason
			}
		}
	}
	if br.Errors && indexed == 0 {
		return 0, apperr.NewIndexFailedError(fmt.Errorf("bulk rejected every document: %s", firstErr))
	}
	return indexed, nil
}

func (ci *CaseIndex) buildQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if text := strings.TrimSpace(q.Text); text != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				"customer_name": map[string]interface{}{"query": text, "fuzziness": "AUTO"},
			},
		})
	}
	if q.Status != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"status": q.Status}})
	}
	if q.Risk != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"risk_label": q.Risk}})
	}
	if q.AgencyID != 0 {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"assigned_agency_id": q.AgencyID}})
	}

	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must, "filter": filter},
		},
		"sort": []interface{}{"_score", map[string]interface{}{"id": "asc"}},
	}
}

type searchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source CaseDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (ci *CaseIndex) Search(ctx context.Context, q Query) (*Result, error) {
	size := q.Size
	if size <= 0 || size > 100 {
		size = ci.pageSize
	}
	from := q.From
	if from < 0 {
		from = 0
	}

	body, err := json.Marshal(ci.buildQuery(q))
	if err != nil {
		return nil, apperr.NewSearchFailedError(err)
	}

	req := esapi.SearchRequest{
		Index:          []string{ci.index},
		Body:           bytes.NewReader(body),
		From:           &from,
		Size:           &size,
		TrackTotalHits: true,
	}
	res, err := req.Do(ctx, ci.client)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.NewTimeoutError("elasticsearch", err)
		}
		return nil, apperr.NewSearchFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperr.NewSearchFailedError(fmt.Errorf("search %s: %s", ci.index, res.Status()))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, apperr.NewSearchFailedError(fmt.Errorf("decode search response: %w", err))
	}

	result := &Result{Total: sr.Hits.Total.Value, Took: sr.Took, Cases: make([]CaseDoc, 0, len(sr.Hits.Hits))}
	for _, hit := range sr.Hits.Hits {
		result.Cases = append(result.Cases, hit.Source)
	}
	return result, nil
}

func readBody(res *esapi.Response) string {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return string(b)
}
