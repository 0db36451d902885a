//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dca-workers/internal/collections"
	"dca-workers/internal/collections/postgres"
	"dca-workers/internal/collections/risk"
	"dca-workers/internal/common/config"
	"dca-workers/internal/common/database"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/search"
	"dca-workers/internal/models"

	oa "dca-workers/internal/workers/agencies/onboard-agency"
	aac "dca-workers/internal/workers/allocation/auto-allocate-cases"
	sae "dca-workers/internal/workers/allocation/set-agency-eligibility"
	cc "dca-workers/internal/workers/cases/classify-cases"
	ic "dca-workers/internal/workers/cases/import-cases"
	ucs "dca-workers/internal/workers/cases/update-case-status"
	bd "dca-workers/internal/workers/reporting/build-dashboard"
	sc "dca-workers/internal/workers/reporting/search-cases"
	sci "dca-workers/internal/workers/reporting/sync-case-index"
)

// The suite needs the docker compose services on localhost:
// postgres:5432, elasticsearch:9200 and zeebe:26500.

const overdueCSV = `customer_name,amount_due,days_overdue
Ada Lovelace,1250.00,120
Charles Babbage,980.50,95
Grace Hopper,4300.00,210
Alan Turing,75.25,61
`

type env struct {
	cfg   *config.Config
	db    *sql.DB
	store *postgres.Store
	index *search.CaseIndex
	admin models.Actor
	log   logger.Logger
}

func TestMain(m *testing.M) {
	if os.Getenv("DCA_E2E") == "" {
		fmt.Println("DCA_E2E not set, skipping e2e suite")
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func setup(t *testing.T) *env {
	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Elasticsearch.URL = "http://localhost:9200"
	cfg.Search.CaseIndex = "cases-e2e"

	ctx := context.Background()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	t.Cleanup(func() { pg.Close() })

	require.NoError(t, postgres.EnsureSchema(ctx, pg.DB))
	_, err = pg.DB.ExecContext(ctx, `TRUNCATE audit_logs, cases RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	_, err = pg.DB.ExecContext(ctx, `DELETE FROM users WHERE role = 'agency'`)
	require.NoError(t, err)

	var adminID int64
	require.NoError(t, pg.DB.QueryRowContext(ctx, `SELECT id FROM users WHERE username = 'admin'`).Scan(&adminID))

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err)
	require.NoError(t, es.Ping(ctx), "Elasticsearch ping failed")
	index := search.NewCaseIndex(es.Client, cfg.Search.CaseIndex, 20)
	require.NoError(t, index.EnsureIndex(ctx))

	return &env{
		cfg:   cfg,
		db:    pg.DB,
		store: postgres.NewStore(pg.DB),
		index: index,
		admin: models.Actor{ID: adminID, Role: models.RoleAdmin},
		log:   logger.NewTestLogger(t),
	}
}

func TestZeebeTopology(t *testing.T) {
	client, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         "localhost:26500",
		UsePlaintextConnection: true,
	})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = client.NewTopologyCommand().Send(ctx)
	assert.NoError(t, err, "Zeebe topology request failed")
}

// TestCollectionDay runs one day of collections through the workers in process order.
func TestCollectionDay(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	wcfg := config.WorkerConfig{}

	audit := collections.NewAuditLog()

	// Onboard two agencies and make both high-risk eligible.
	onboard := oa.NewHandler(oa.LoadConfig(wcfg), collections.NewAgencies(e.store, audit, e.log), e.log)
	var agencyIDs []int64
	for _, name := range []string{"Acme Recovery", "Northwind Collections"} {
		out, err := onboard.Execute(ctx, &oa.Input{Actor: e.admin, Name: name, Email: "ops@example.com"})
		require.NoError(t, err)
		agencyIDs = append(agencyIDs, out.Agency.ID)
	}

	allocator := collections.NewAllocator(e.store, audit, e.log)
	eligibility := sae.NewHandler(sae.LoadConfig(wcfg), allocator, e.log)
	elig, err := eligibility.Execute(ctx, &sae.Input{Actor: e.admin, AgencyIDs: agencyIDs})
	require.NoError(t, err)
	assert.ElementsMatch(t, agencyIDs, elig.EligibleAgencyIDs)

	// Import the overdue accounts.
	importer := ic.NewHandler(ic.LoadConfig(wcfg), collections.NewImporter(e.store, audit, 0, e.log), e.log)
	imported, err := importer.Execute(ctx, &ic.Input{Actor: e.admin, FileName: "overdue.csv", CSV: overdueCSV})
	require.NoError(t, err)
	assert.False(t, imported.Failed)
	assert.Equal(t, 4, imported.Committed)

	// Classify with a model that rates everyone unlikely to pay.
	model := risk.NewFileModel(risk.Coefficients{Version: "e2e", Intercept: -6})
	classifier := cc.NewHandler(cc.LoadConfig(wcfg),
		collections.NewClassifier(e.store, audit, model, time.Second, e.log), e.log)
	classified, err := classifier.Execute(ctx, &cc.Input{Actor: e.admin})
	require.NoError(t, err)
	assert.True(t, classified.ModelAvailable)
	assert.Equal(t, 4, classified.Labels[string(models.RiskHigh)])

	// Deal the high-risk cases round robin.
	allocate := aac.NewHandler(aac.LoadConfig(wcfg), allocator, e.log)
	allocated, err := allocate.Execute(ctx, &aac.Input{Actor: e.admin})
	require.NoError(t, err)
	assert.Equal(t, 4, allocated.Assigned)
	assert.Equal(t, 2, allocated.AgenciesUsed)
	require.Len(t, allocated.Batches, 2)
	assert.Len(t, allocated.Batches[0].CaseIDs, 2)

	// The first agency works its first case to Paid.
	agency := models.Actor{ID: allocated.Batches[0].AgencyID, Role: models.RoleAgency}
	caseID := allocated.Batches[0].CaseIDs[0]
	status := ucs.NewHandler(ucs.LoadConfig(wcfg), collections.NewLifecycle(e.store, audit, e.log), e.log)
	for _, next := range []models.CaseStatus{models.StatusInProgress, models.StatusContacted, models.StatusPaid} {
		out, err := status.Execute(ctx, &ucs.Input{Actor: agency, CaseID: caseID, Status: string(next)})
		require.NoError(t, err)
		assert.True(t, out.Applied, "transition to %s", next)
	}

	// The other agency cannot touch it.
	other := models.Actor{ID: allocated.Batches[1].AgencyID, Role: models.RoleAgency}
	out, err := status.Execute(ctx, &ucs.Input{Actor: other, CaseID: caseID, Status: string(models.StatusRejected)})
	require.NoError(t, err)
	assert.False(t, out.Applied)

	// Dashboards.
	dashboards := bd.NewHandler(bd.LoadConfig(wcfg), collections.NewDashboards(e.store, audit, 10, e.log), e.log)
	agencyView, err := dashboards.Execute(ctx, &bd.Input{Actor: agency})
	require.NoError(t, err)
	assert.Equal(t, models.AgencyCounters{Pending: 1, Completed: 1}, agencyView.Agency.Counters)

	adminView, err := dashboards.Execute(ctx, &bd.Input{Actor: e.admin})
	require.NoError(t, err)
	assert.Len(t, adminView.Admin.Cases, 4)
	assert.NotEmpty(t, adminView.Admin.RecentAudit)

	// Index and search.
	sync := sci.NewHandler(sci.LoadConfig(wcfg), e.store, e.index, e.log)
	synced, err := sync.Execute(ctx, &sci.Input{Actor: e.admin})
	require.NoError(t, err)
	assert.Equal(t, 4, synced.Indexed)

	_, err = e.index.Client().Indices.Refresh(e.index.Client().Indices.Refresh.WithIndex(e.index.Index()))
	require.NoError(t, err)

	searcher := sc.NewHandler(sc.LoadConfig(wcfg), e.index, e.log)
	found, err := searcher.Execute(ctx, &sc.Input{Actor: agency, Status: string(models.StatusPaid)})
	require.NoError(t, err)
	require.Equal(t, int64(1), found.Total)
	assert.Equal(t, caseID, found.Cases[0].ID)
}
