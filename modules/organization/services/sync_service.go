package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/modules/organization/infrastructure/registry"
)

var ErrNoDocumentSource = errors.New("no registry document given and no fetcher configured")

type SyncOptions struct {
	// Document is the raw export; when empty it is fetched.
	Document []byte
	// FilterTypes restricts the roots to those whose primary registry type matches.
	FilterTypes []string
	DryRun      bool
	InferTypes  bool
}

// SyncService drives a full run: load, parse, reconcile every root.
// It does not open transactions; callers that want an all-or-nothing apply wrap
// Sync in composables.InTx.
type SyncService struct {
	repo    orgunit.Repository
	fetcher registry.Fetcher
}

func NewSyncService(repo orgunit.Repository, fetcher registry.Fetcher) *SyncService {
	return &SyncService{repo: repo, fetcher: fetcher}
}

// LoadDocument returns doc when given, otherwise downloads the export.
func (s *SyncService) LoadDocument(ctx context.Context, doc []byte) ([]byte, error) {
	if len(doc) > 0 {
		return doc, nil
	}
	if s.fetcher == nil {
		return nil, ErrNoDocumentSource
	}
	return s.fetcher.Fetch(ctx)
}

// Sync returns the aggregated result. Fetch, parse and context errors are fatal;
// everything else is reported per node in SyncResult.Errors.
func (s *SyncService) Sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	start := time.Now()
	result, err := s.sync(ctx, opts)
	recordRun(opts.DryRun, result, err, time.Since(start))

	fields := logrus.Fields{
		"mode":      runMode(opts.DryRun),
		"created":   result.Created,
		"updated":   result.Updated,
		"unchanged": result.Unchanged,
		"errors":    len(result.Errors),
		"elapsed":   time.Since(start).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		logWithFields(ctx, logrus.ErrorLevel, "organization sync aborted", fields)
		return result, err
	}
	logWithFields(ctx, logrus.InfoLevel, "organization sync finished", fields)
	return result, nil
}

func (s *SyncService) sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	data, err := s.LoadDocument(ctx, opts.Document)
	if err != nil {
		return SyncResult{}, err
	}
	nodes, err := registry.Parse(data, opts.FilterTypes...)
	if err != nil {
		return SyncResult{}, err
	}
	logWithFields(ctx, logrus.InfoLevel, "parsed registry document", logrus.Fields{
		"roots":   len(nodes),
		"nodes":   registry.CountAll(nodes),
		"filter":  opts.FilterTypes,
		"dry_run": opts.DryRun,
	})

	reconciler := NewReconciler(s.repo, ReconcileOptions{InferTypes: opts.InferTypes})
	var result SyncResult
	for _, node := range nodes {
		res, err := reconciler.Reconcile(ctx, node, nil, opts.DryRun)
		result = result.Add(res)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}
