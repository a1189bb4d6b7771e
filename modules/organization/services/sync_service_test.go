package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/modules/organization/infrastructure/registry"
	"github.com/iota-uz/orgsync/pkg/composables"
)

const misplacedNodeError = "Error processing Amsterdam: root organization type cannot have a parent: Gemeente"

func TestSyncService_SyncsExport(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	svc := NewSyncService(repo, nil)
	doc := readExport(t)

	res, err := svc.Sync(ctx, SyncOptions{Document: doc})
	require.NoError(t, err)
	require.Equal(t, SyncResult{Created: 8}, res)

	bzk, err := repo.FindByTOOI(ctx, tooiBZK)
	require.NoError(t, err)
	require.Equal(t, "Ministerie van Binnenlandse Zaken en Koninkrijksrelaties", bzk.Label)
	require.Equal(t, []string{"BZK"}, bzk.Abbreviations)

	fin, err := repo.FindByTOOI(ctx, tooiFIN)
	require.NoError(t, err)
	require.Equal(t, "Ministerie van Financiën", fin.Label)

	bd, err := repo.FindByNameAndParent(ctx, "Belastingdienst", &fin.ID)
	require.NoError(t, err)
	require.Equal(t, orgunit.TypeAgentschap, bd.Type)
	require.Equal(t, []string{"BD"}, bd.Abbreviations)

	amsterdam, err := repo.FindByTOOI(ctx, "https://identifier.overheid.nl/tooi/id/gemeente/gm0363")
	require.NoError(t, err)
	require.Equal(t, orgunit.TypeGemeente, amsterdam.Type)
	require.Equal(t, "Amsterdam", amsterdam.Name)

	unnamed, err := repo.FindByNameAndParent(ctx, "", nil)
	require.NoError(t, err)
	require.Equal(t, orgunit.TypeOrganisatieonderdeel, unnamed.Type)
	require.Equal(t, "99", unnamed.SystemID)

	res, err = svc.Sync(ctx, SyncOptions{Document: doc})
	require.NoError(t, err)
	require.Equal(t, SyncResult{Unchanged: 8}, res)
	require.Equal(t, 8, repo.Len())
}

func TestSyncService_ReportsMisplacedNodes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	svc := NewSyncService(repo, nil)
	doc := readFixture(t, "export_misplaced.xml")

	res, err := svc.Sync(ctx, SyncOptions{Document: doc})
	require.NoError(t, err)
	require.Equal(t, SyncResult{Created: 2, Errors: []string{misplacedNodeError}}, res)
	require.Equal(t, 2, repo.Len())

	partial := syncRuns.WithLabelValues("dry_run", "partial")
	before := testutil.ToFloat64(partial)
	res, err = svc.Sync(ctx, SyncOptions{Document: doc, DryRun: true})
	require.NoError(t, err)
	require.Equal(t, SyncResult{Unchanged: 2, Errors: []string{misplacedNodeError}}, res)
	require.Equal(t, before+1, testutil.ToFloat64(partial))
}

func TestSyncService_DryRun(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	svc := NewSyncService(repo, nil)

	ok := syncRuns.WithLabelValues("dry_run", "ok")
	before := testutil.ToFloat64(ok)

	res, err := svc.Sync(ctx, SyncOptions{Document: readExport(t), DryRun: true})
	require.NoError(t, err)
	require.Equal(t, SyncResult{Created: 8}, res)
	require.Zero(t, repo.Len())
	require.Equal(t, before+1, testutil.ToFloat64(ok))
}

func TestSyncService_FilterTypes(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	res, err := NewSyncService(repo, nil).Sync(ctx, SyncOptions{Document: readExport(t), FilterTypes: []string{"ministerie"}})
	require.NoError(t, err)
	require.Equal(t, SyncResult{Created: 6}, res)
}

func TestSyncService_FetchesWhenNoDocument(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	fetcher := &stubFetcher{data: readExport(t)}

	res, err := NewSyncService(repo, fetcher).Sync(ctx, SyncOptions{})
	require.NoError(t, err)
	require.Equal(t, 8, res.Created)
	require.Equal(t, 1, fetcher.calls)

	data, err := NewSyncService(repo, fetcher).LoadDocument(ctx, []byte("<given/>"))
	require.NoError(t, err)
	require.Equal(t, "<given/>", string(data))
	require.Equal(t, 1, fetcher.calls)
}

func TestSyncService_FatalErrors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	_, err := NewSyncService(repo, nil).Sync(ctx, SyncOptions{})
	require.ErrorIs(t, err, ErrNoDocumentSource)

	fetchErr := &registry.FetchError{URL: registry.DefaultURL, StatusCode: 503}
	_, err = NewSyncService(repo, &stubFetcher{err: fetchErr}).Sync(ctx, SyncOptions{})
	var ferr *registry.FetchError
	require.True(t, errors.As(err, &ferr))
	require.Equal(t, 503, ferr.StatusCode)

	_, err = NewSyncService(repo, nil).Sync(ctx, SyncOptions{Document: []byte("<p:overheidsorganisaties><broken")})
	var perr *registry.ParseError
	require.True(t, errors.As(err, &perr))
	require.Zero(t, repo.Len())
}

func TestSyncService_LogsSummary(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	ctx := composables.WithLogger(context.Background(), logrus.NewEntry(logger))

	_, err := NewSyncService(newTestRepo(), nil).Sync(ctx, SyncOptions{Document: readFixture(t, "export_misplaced.xml")})
	require.NoError(t, err)

	last := hook.LastEntry()
	require.NotNil(t, last)
	require.Equal(t, "organization sync finished", last.Message)
	require.Equal(t, 2, last.Data["created"])
	require.Equal(t, 1, last.Data["errors"])

	var sawError bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "failed to reconcile registry node" {
			sawError = true
		}
	}
	require.True(t, sawError)
}

type stubFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *stubFetcher) Fetch(context.Context) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

func readExport(t *testing.T) []byte {
	t.Helper()
	return readFixture(t, "export_small.xml")
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "infrastructure", "registry", "testdata", name))
	require.NoError(t, err)
	return data
}
