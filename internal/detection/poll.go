package detection

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bagwatch/internal/domain"
	"bagwatch/internal/observability"
	"bagwatch/internal/solana"
)

// Poll path defaults.
const (
	DefaultPollInterval   = 30 * time.Second
	DefaultSignatureLimit = 3
)

// PollDetector is the safety-net path: it periodically asks for the most
// recent signatures touching the authority and processes the ones it has
// not seen. It catches launches the subscription missed during reconnects.
type PollDetector struct {
	rpc       solana.RPCClient
	extractor *Extractor
	authority string
	interval  time.Duration
	limit     int
	attempts  uint64
	log       *logrus.Entry

	lastSeen string
}

// PollOption configures PollDetector.
type PollOption func(*PollDetector)

// WithPollInterval overrides the polling cadence.
func WithPollInterval(d time.Duration) PollOption {
	return func(p *PollDetector) { p.interval = d }
}

// WithSignatureLimit overrides how many recent signatures each poll fetches.
func WithSignatureLimit(n int) PollOption {
	return func(p *PollDetector) { p.limit = n }
}

// NewPollDetector creates the polling detection path.
func NewPollDetector(rpc solana.RPCClient, authority string, opts ...PollOption) *PollDetector {
	if authority == "" {
		authority = DefaultUpdateAuthority
	}
	p := &PollDetector{
		rpc:       rpc,
		extractor: NewExtractor(authority),
		authority: authority,
		interval:  DefaultPollInterval,
		limit:     DefaultSignatureLimit,
		attempts:  defaultLookupAttempts,
		log:       logrus.WithField("detector", "poll"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Detector.
func (p *PollDetector) Name() string { return "poll" }

// Run implements Detector.
func (p *PollDetector) Run(ctx context.Context, out chan<- domain.Mint) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx, out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx, out)
		}
	}
}

// poll processes signatures newer than the last poll, oldest first so
// downstream sees launches in chain order.
func (p *PollDetector) poll(ctx context.Context, out chan<- domain.Mint) {
	sigs, err := p.rpc.GetSignaturesForAddress(ctx, p.authority, p.limit)
	if err != nil {
		p.log.WithError(err).Warn("signature poll failed")
		return
	}
	if len(sigs) == 0 {
		return
	}

	fresh := make([]solana.SignatureInfo, 0, len(sigs))
	for _, info := range sigs {
		if info.Signature == p.lastSeen {
			break
		}
		fresh = append(fresh, info)
	}
	p.lastSeen = sigs[0].Signature

	for i := len(fresh) - 1; i >= 0; i-- {
		p.process(ctx, fresh[i], out)
	}
}

func (p *PollDetector) process(ctx context.Context, info solana.SignatureInfo, out chan<- domain.Mint) {
	observability.RecordEventSeen(p.Name())
	if info.Err != nil {
		return
	}

	tx, err := lookupTransaction(ctx, p.rpc, info.Signature, p.attempts)
	if err != nil {
		p.log.WithError(err).WithField("signature", info.Signature).Warn("transaction lookup failed")
		return
	}
	if tx == nil {
		return
	}

	mint, ok := p.extractor.Extract(eventFromTransaction(tx))
	if !ok {
		return
	}
	p.log.WithFields(logrus.Fields{"mint": mint, "signature": info.Signature}).Info("launch detected")
	observability.RecordLaunchDetected(p.Name())

	select {
	case out <- mint:
	case <-ctx.Done():
	}
}
