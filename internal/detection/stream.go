package detection

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"bagwatch/internal/domain"
	"bagwatch/internal/observability"
	"bagwatch/internal/solana"
)

// Detector is one detection path. Run blocks until the context is canceled
// or the path fails unrecoverably, emitting candidate mints on out.
type Detector interface {
	Name() string
	Run(ctx context.Context, out chan<- domain.Mint) error
}

// StreamDetector is the low-latency path: a WebSocket logs subscription
// filtered to the launchpad authority. Reconnects and resubscription are
// the WS client's job; this detector only consumes notifications.
type StreamDetector struct {
	ws        solana.WSClient
	rpc       solana.RPCClient
	extractor *Extractor
	authority string
	attempts  uint64
	log       *logrus.Entry
}

// NewStreamDetector creates the subscription-based detection path.
func NewStreamDetector(ws solana.WSClient, rpc solana.RPCClient, authority string) *StreamDetector {
	if authority == "" {
		authority = DefaultUpdateAuthority
	}
	return &StreamDetector{
		ws:        ws,
		rpc:       rpc,
		extractor: NewExtractor(authority),
		authority: authority,
		attempts:  defaultLookupAttempts,
		log:       logrus.WithField("detector", "stream"),
	}
}

// Name implements Detector.
func (d *StreamDetector) Name() string { return "stream" }

// Run implements Detector.
func (d *StreamDetector) Run(ctx context.Context, out chan<- domain.Mint) error {
	notifs, err := d.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{d.authority}})
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	d.log.WithField("authority", d.authority).Info("logs subscription active")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-notifs:
			if !ok {
				return fmt.Errorf("logs subscription closed")
			}
			d.handle(ctx, notif, out)
		}
	}
}

func (d *StreamDetector) handle(ctx context.Context, notif solana.LogNotification, out chan<- domain.Mint) {
	observability.RecordEventSeen(d.Name())
	if notif.Err != nil {
		return
	}
	// The notification carries logs already; use them to skip the
	// transaction fetch for the many non-launch mentions.
	if len(notif.Logs) > 0 && !d.extractor.isLaunch(notif.Logs, []string{d.authority}) {
		return
	}

	tx, err := lookupTransaction(ctx, d.rpc, notif.Signature, d.attempts)
	if err != nil {
		d.log.WithError(err).WithField("signature", notif.Signature).Warn("transaction lookup failed")
		return
	}
	if tx == nil {
		d.log.WithField("signature", notif.Signature).Warn("transaction never appeared, skipping")
		return
	}

	mint, ok := d.extractor.Extract(eventFromTransaction(tx))
	if !ok {
		return
	}
	d.log.WithFields(logrus.Fields{"mint": mint, "signature": notif.Signature}).Info("launch detected")
	observability.RecordLaunchDetected(d.Name())

	select {
	case out <- mint:
	case <-ctx.Done():
	}
}

// eventFromTransaction projects a fetched transaction into the shape the
// extractor inspects.
func eventFromTransaction(tx *solana.Transaction) *domain.RawChainEvent {
	ev := &domain.RawChainEvent{
		Signature: tx.Signature,
		Slot:      tx.Slot,
	}
	if tx.Meta != nil {
		ev.Logs = tx.Meta.LogMessages
		ev.Err = tx.Meta.Err
	}
	if tx.Message != nil {
		ev.AccountKeys = tx.Message.AccountKeys
	}
	return ev
}
