// Package orchestrator ties the pipeline together: detection paths feed
// admitted mints into concurrent metadata fan-out, reconciliation, and
// notification.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"bagwatch/internal/detection"
	"bagwatch/internal/domain"
	"bagwatch/internal/metadata"
	"bagwatch/internal/notify"
	"bagwatch/internal/observability"
)

// Defaults for per-adapter fetch behavior.
const (
	DefaultAdapterTimeout   = 10 * time.Second
	DefaultAdapterRetries   = 2
	DefaultRateLimitBackoff = 5 * time.Second
)

// Runner drives the launch pipeline.
type Runner struct {
	detectors []detection.Detector
	asset     metadata.Source
	uriDoc    metadata.Source
	feeSplit  metadata.Source
	notifier  notify.Notifier
	seen      *detection.SeenSet

	adapterTimeout   time.Duration
	adapterRetries   uint64
	rateLimitBackoff time.Duration

	logger *logrus.Entry
	wg     sync.WaitGroup
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Detectors []detection.Detector

	// Metadata adapters. Each is optional; a nil slot contributes an
	// absent partial to reconciliation.
	AssetSource    metadata.Source
	URIDocSource   metadata.Source
	FeeSplitSource metadata.Source

	Notifier notify.Notifier
	Seen     *detection.SeenSet

	AdapterTimeout   time.Duration
	AdapterRetries   uint64
	RateLimitBackoff time.Duration
}

// NewRunner creates a pipeline runner.
func NewRunner(opts RunnerOptions) *Runner {
	adapterTimeout := opts.AdapterTimeout
	if adapterTimeout == 0 {
		adapterTimeout = DefaultAdapterTimeout
	}
	adapterRetries := opts.AdapterRetries
	if adapterRetries == 0 {
		adapterRetries = DefaultAdapterRetries
	}
	rateLimitBackoff := opts.RateLimitBackoff
	if rateLimitBackoff == 0 {
		rateLimitBackoff = DefaultRateLimitBackoff
	}
	seen := opts.Seen
	if seen == nil {
		seen = detection.NewSeenSet()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier()
	}

	return &Runner{
		detectors:        opts.Detectors,
		asset:            opts.AssetSource,
		uriDoc:           opts.URIDocSource,
		feeSplit:         opts.FeeSplitSource,
		notifier:         notifier,
		seen:             seen,
		adapterTimeout:   adapterTimeout,
		adapterRetries:   adapterRetries,
		rateLimitBackoff: rateLimitBackoff,
		logger:           logrus.WithField("component", "orchestrator"),
	}
}

// Run starts every detection path and processes admitted mints until the
// context is canceled. Detector failures are logged and the remaining paths
// keep running; Run returns once all paths have stopped and in-flight
// pipelines have drained.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.detectors) == 0 {
		return fmt.Errorf("no detection paths configured")
	}

	mints := make(chan domain.Mint)

	var detectorWG sync.WaitGroup
	for _, d := range r.detectors {
		detectorWG.Add(1)
		go func(d detection.Detector) {
			defer detectorWG.Done()
			if err := d.Run(ctx, mints); err != nil && ctx.Err() == nil {
				r.logger.WithError(err).WithField("detector", d.Name()).Error("detection path stopped")
			}
		}(d)
	}
	go func() {
		detectorWG.Wait()
		close(mints)
	}()

	for mint := range mints {
		if !r.seen.Admit(mint) {
			observability.RecordDuplicateMint()
			continue
		}
		r.wg.Add(1)
		go func(mint domain.Mint) {
			defer r.wg.Done()
			r.process(ctx, mint)
		}(mint)
	}

	r.wg.Wait()
	return ctx.Err()
}

// process runs the metadata fan-out and notification for one admitted mint.
// Adapters run concurrently; a failed adapter contributes an absent partial
// rather than blocking the announcement.
func (r *Runner) process(ctx context.Context, mint domain.Mint) {
	log := r.logger.WithField("mint", mint)
	log.Info("processing launch")

	var parts metadata.Parts
	var wg sync.WaitGroup
	for _, slot := range []struct {
		src  metadata.Source
		dest **domain.PartialMetadataRecord
	}{
		{r.asset, &parts.Asset},
		{r.uriDoc, &parts.URIDoc},
		{r.feeSplit, &parts.FeeSplit},
	} {
		if slot.src == nil {
			continue
		}
		wg.Add(1)
		go func(src metadata.Source, dest **domain.PartialMetadataRecord) {
			defer wg.Done()
			*dest = r.fetchPartial(ctx, src, mint)
		}(slot.src, slot.dest)
	}
	wg.Wait()

	rec := metadata.Reconcile(parts)
	rec.Mint = mint
	observability.RecordReconciliation(rec.Empty())
	if rec.Empty() {
		log.Warn("every metadata source came up empty")
	}

	err := r.notifier.Notify(ctx, mint, rec)
	observability.RecordNotification(err)
	if err != nil {
		log.WithError(err).Error("notification failed")
		return
	}
	log.WithFields(logrus.Fields{"name": rec.Name, "split": rec.IsSplit()}).Info("launch announced")
}

// fetchPartial fetches one adapter's partial with per-attempt timeout and
// bounded retries. Terminal failures yield nil so reconciliation treats the
// source as absent.
func (r *Runner) fetchPartial(ctx context.Context, src metadata.Source, mint domain.Mint) *domain.PartialMetadataRecord {
	var rec *domain.PartialMetadataRecord
	started := time.Now()

	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.adapterTimeout)
		defer cancel()

		got, err := src.Fetch(attemptCtx, mint)
		if err != nil {
			if !metadata.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		rec = got
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.retryPolicy(), r.adapterRetries), ctx)
	err := backoff.Retry(op, policy)
	observability.RecordAdapterFetch(src.Name(), time.Since(started).Seconds())
	if err != nil {
		observability.RecordAdapterFailure(src.Name(), metadata.FailureKind(err))
		r.logger.WithError(err).WithFields(logrus.Fields{
			"mint":   mint,
			"source": src.Name(),
		}).Warn("metadata source failed")
		return nil
	}
	return rec
}

// retryPolicy spaces retries far enough apart that a rate-limited provider
// gets room to recover.
func (r *Runner) retryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = r.rateLimitBackoff
	return policy
}
