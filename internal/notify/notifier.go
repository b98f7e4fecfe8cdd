// Package notify formats and delivers launch announcements. Delivery
// backends are pluggable behind Notifier; the caption format is shared.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"bagwatch/internal/domain"
	"bagwatch/internal/normalize"
)

// Notifier delivers a launch announcement for a reconciled token.
type Notifier interface {
	Notify(ctx context.Context, mint domain.Mint, rec *domain.TokenDisplayRecord) error
}

// LogNotifier writes announcements to the structured log. It is the default
// backend and doubles as a dry-run sink in front of a real channel.
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logrus.WithField("component", "notify")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, mint domain.Mint, rec *domain.TokenDisplayRecord) error {
	n.log.WithFields(logrus.Fields{
		"mint":    mint,
		"name":    rec.Name,
		"symbol":  rec.Symbol,
		"split":   rec.IsSplit(),
		"caption": BuildCaption(mint, rec),
	}).Info("launch announcement")
	return nil
}

// BuildCaption renders the announcement text for a token, escaped for
// MarkdownV2 delivery. Social lines depend on what reconciliation found:
// a fee split gets separate creator and fee-recipient lines, a single
// party gets one Twitter line, a lone creator gets a creator line.
func BuildCaption(mint domain.Mint, rec *domain.TokenDisplayRecord) string {
	var b strings.Builder

	b.WriteString("🚀 New Coin Launched on Bags!\n\n")
	fmt.Fprintf(&b, "Name: %s\n", rec.Name)
	fmt.Fprintf(&b, "Ticker: %s\n", rec.Symbol)
	fmt.Fprintf(&b, "Mint: %s\n", mint)
	fmt.Fprintf(&b, "Solscan: https://solscan.io/token/%s\n", mint)

	creator := deref(rec.CreatorHandle)
	fee := deref(rec.FeeHandle)
	switch {
	case rec.IsSplit():
		fmt.Fprintf(&b, "Creator: @%s\n", creator)
		fmt.Fprintf(&b, "Fee Recipient: @%s\n", fee)
	case creator != "" && fee != "":
		fmt.Fprintf(&b, "Twitter: @%s\n", creator)
	case creator != "":
		fmt.Fprintf(&b, "Creator: @%s\n", creator)
	}

	if rec.RoyaltyPercent != nil {
		fmt.Fprintf(&b, "Royalty: %s%%\n", strconv.FormatFloat(*rec.RoyaltyPercent, 'f', -1, 64))
	}
	fmt.Fprintf(&b, "Website: https://bags.fm/%s", mint)

	return normalize.EscapeMessage(b.String())
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
