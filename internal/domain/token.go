package domain

// Mint uniquely identifies a token on Solana (base58 public key).
// Equality is exact string match.
type Mint string

// RawChainEvent is one observed transaction notification, from either the
// streaming subscription or the polling loop. Constructed per event and
// discarded after mint extraction.
type RawChainEvent struct {
	Signature   string
	Slot        int64
	Logs        []string
	AccountKeys []string
	Err         interface{} // non-nil means the transaction failed
}

// Failed reports whether the transaction was reported as failed.
func (e *RawChainEvent) Failed() bool {
	return e.Err != nil
}
