package detection

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"bagwatch/internal/solana"
)

// defaultLookupAttempts bounds transaction fetch retries. Notified
// signatures can lag the RPC node's view briefly, so a miss is retried.
const defaultLookupAttempts = 3

var errTxPending = errors.New("transaction not available yet")

// lookupTransaction fetches a transaction with bounded exponential retries.
// Returns nil without error when the transaction never became available.
func lookupTransaction(ctx context.Context, rpc solana.RPCClient, signature string, attempts uint64) (*solana.Transaction, error) {
	var tx *solana.Transaction
	op := func() error {
		t, err := rpc.GetTransaction(ctx, signature)
		if err != nil {
			return err
		}
		if t == nil {
			return errTxPending
		}
		tx = t
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), attempts), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, errTxPending) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	return tx, nil
}
