package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bagwatch/internal/detection"
	"bagwatch/internal/domain"
	"bagwatch/internal/metadata"
	"bagwatch/internal/solana"
)

type stubWS struct {
	notifs chan solana.LogNotification
}

func (s *stubWS) SubscribeLogs(ctx context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	return s.notifs, nil
}

func (s *stubWS) Close() error { return nil }

type stubRPC struct {
	tx *solana.Transaction
}

func (s *stubRPC) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	if s.tx != nil && s.tx.Signature == signature {
		return s.tx, nil
	}
	return nil, nil
}

func (s *stubRPC) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error) {
	return nil, nil
}

func (s *stubRPC) GetAsset(ctx context.Context, mint string) (*solana.Asset, error) {
	return nil, nil
}

// End to end: one logs notification flows through extraction, the dedup
// gate, and the adapter fan-out into a fee-split announcement.
func TestPipelineEndToEnd(t *testing.T) {
	creationLogs := []string{
		"Program metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s invoke [1]",
		"Program log: Instruction: CreateMetadataAccountV3",
	}
	ws := &stubWS{notifs: make(chan solana.LogNotification, 2)}
	rpc := &stubRPC{tx: &solana.Transaction{
		Signature: "sig-e2e",
		Slot:      2000,
		Meta:      &solana.TransactionMeta{LogMessages: creationLogs},
		Message: &solana.TransactionMessage{
			AccountKeys: []string{
				detection.MetadataProgramID,
				detection.DefaultUpdateAuthority,
				string(orchMint),
			},
		},
	}}

	notifier := newCaptureNotifier()
	runner := NewRunner(RunnerOptions{
		Detectors: []detection.Detector{
			detection.NewStreamDetector(ws, rpc, detection.DefaultUpdateAuthority),
		},
		AssetSource: &stubSource{name: "asset", rec: &domain.PartialMetadataRecord{
			Name:   domain.StrPtr("Bag Coin"),
			Symbol: domain.StrPtr("BAG"),
		}},
		URIDocSource: &stubSource{name: "uridoc", err: metadata.ErrNotIndexed},
		FeeSplitSource: &stubSource{name: "feesplit", rec: &domain.PartialMetadataRecord{
			CreatorHandle:  domain.StrPtr("alice"),
			FeeHandle:      domain.StrPtr("bob"),
			RoyaltyPercent: domain.FloatPtr(5),
		}},
		Notifier: notifier,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	// Duplicate notifications for the same launch: one announcement.
	notif := solana.LogNotification{Signature: "sig-e2e", Slot: 2000, Logs: creationLogs}
	ws.notifs <- notif
	ws.notifs <- notif

	require.Eventually(t, func() bool {
		return notifier.count() == 1
	}, 5*time.Second, 20*time.Millisecond)

	rec := notifier.get(orchMint)
	require.NotNil(t, rec)
	assert.Equal(t, orchMint, rec.Mint)
	assert.Equal(t, "Bag Coin", rec.Name)
	assert.True(t, rec.IsSplit())
	assert.Equal(t, 5.0, *rec.RoyaltyPercent)

	cancel()
	<-done
	assert.Equal(t, 1, notifier.count())
}
