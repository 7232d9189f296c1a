package loader

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/portfolio-core/internal/fetch"
	"github.com/jonathan/portfolio-core/internal/persistence"
	"github.com/jonathan/portfolio-core/internal/portfolio"
	"github.com/jonathan/portfolio-core/internal/schemas"
)

// SnapshotTier reads the durable snapshot written by a previous session.
type SnapshotTier struct {
	Port persistence.Port
}

// Name implements Tier.
func (t *SnapshotTier) Name() string { return TierSnapshot }

// Load requires both the document and its timestamp to be present.
func (t *SnapshotTier) Load(ctx context.Context) (*Outcome, error) {
	raw, ok, err := t.Port.Get(ctx, persistence.KeySnapshot)
	if err != nil {
		return nil, &UnavailableError{Tier: TierSnapshot, Message: "failed to read snapshot", Cause: err}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, &UnavailableError{Tier: TierSnapshot, Message: "no stored snapshot"}
	}

	stamp, ok, err := t.Port.Get(ctx, persistence.KeyLastUpdated)
	if err != nil {
		return nil, &UnavailableError{Tier: TierSnapshot, Message: "failed to read timestamp", Cause: err}
	}
	if !ok {
		return nil, &UnavailableError{Tier: TierSnapshot, Message: "no stored timestamp"}
	}
	lastUpdated, err := strconv.ParseInt(strings.TrimSpace(stamp), 10, 64)
	if err != nil {
		return nil, &UnavailableError{Tier: TierSnapshot, Message: "invalid timestamp", Cause: err}
	}

	doc, err := portfolio.DecodeBytes([]byte(raw))
	if err != nil {
		return nil, &UnavailableError{Tier: TierSnapshot, Message: "invalid snapshot", Cause: err}
	}

	return &Outcome{Document: doc, LastUpdated: lastUpdated}, nil
}

// ManifestTier fetches a published portfolio manifest.
type ManifestTier struct {
	URL     string
	Options *fetch.Options
	// ValidateSchema rejects documents that fail the portfolio schema.
	ValidateSchema bool
	Now            func() time.Time
}

// Name implements Tier.
func (t *ManifestTier) Name() string { return TierManifest }

// Load fetches and decodes the manifest and stamps it with the current
// time. Any JSON object is accepted unless ValidateSchema is set.
func (t *ManifestTier) Load(ctx context.Context) (*Outcome, error) {
	if t.URL == "" {
		return nil, &UnavailableError{Tier: TierManifest, Message: "no manifest URL configured"}
	}

	result, err := fetch.URL(ctx, t.URL, t.Options)
	if err != nil {
		return nil, &UnavailableError{Tier: TierManifest, Message: "fetch failed", Cause: err}
	}

	doc, err := portfolio.DecodeBytes(result.Body)
	if err != nil {
		return nil, &UnavailableError{Tier: TierManifest, Message: "invalid manifest", Cause: err}
	}

	if t.ValidateSchema {
		if err := schemas.ValidateDocument(result.Body); err != nil {
			return nil, &UnavailableError{Tier: TierManifest, Message: "manifest failed schema validation", Cause: err}
		}
	}

	now := t.Now
	if now == nil {
		now = time.Now
	}
	return &Outcome{Document: doc, LastUpdated: now().UnixMilli()}, nil
}

// Standard builds the snapshot → manifest → default chain. The manifest tier
// is omitted when manifestURL is empty.
func Standard(port persistence.Port, manifestURL string, fetchOpts *fetch.Options, opts ...Option) *Loader {
	tiers := []Tier{&SnapshotTier{Port: port}}
	l := New(nil, opts...)
	if manifestURL != "" {
		tiers = append(tiers, &ManifestTier{URL: manifestURL, Options: fetchOpts, ValidateSchema: l.validateManifest, Now: l.now})
	}
	l.tiers = tiers
	return l
}
