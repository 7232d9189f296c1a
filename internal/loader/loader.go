// Package loader resolves the initial portfolio document from an ordered
// list of sources. The first tier that produces a document wins; a failing
// tier is logged and skipped, and the compiled-in default always succeeds.
package loader

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/portfolio-core/internal/portfolio"
)

// Tier names.
const (
	TierSnapshot = "snapshot"
	TierManifest = "manifest"
	TierDefault  = "default"
)

// Outcome is what a tier produces when it is available.
type Outcome struct {
	Document    portfolio.Document
	LastUpdated int64
}

// Tier is one candidate source in the fallthrough chain.
type Tier interface {
	Name() string
	Load(ctx context.Context) (*Outcome, error)
}

// UnavailableError reports why a tier did not produce a document.
type UnavailableError struct {
	Tier    string
	Message string
	Cause   error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s tier unavailable: %s: %v", e.Tier, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s tier unavailable: %s", e.Tier, e.Message)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Result is the document chosen by the loader.
type Result struct {
	Document    portfolio.Document
	LastUpdated int64
	Tier        string
	// Skipped holds the failures of the tiers tried before the winner.
	Skipped []error
}

// Loader evaluates tiers in order.
type Loader struct {
	tiers            []Tier
	now              func() time.Time
	verbose          bool
	validateManifest bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithClock overrides the time source used for the default tier.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithVerbose enables per-tier logging.
func WithVerbose(verbose bool) Option {
	return func(l *Loader) { l.verbose = verbose }
}

// WithValidateManifest makes Standard reject manifests that fail schema
// validation. By default any manifest that decodes to an object is accepted.
func WithValidateManifest(validate bool) Option {
	return func(l *Loader) { l.validateManifest = validate }
}

// New creates a loader over the given tiers. The default tier is always
// evaluated last, whether or not it is listed.
func New(tiers []Tier, opts ...Option) *Loader {
	l := &Loader{
		tiers: append([]Tier(nil), tiers...),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tiers returns the names of the configured tiers in evaluation order.
func (l *Loader) Tiers() []string {
	names := make([]string, 0, len(l.tiers)+1)
	for _, t := range l.tiers {
		names = append(names, t.Name())
	}
	return append(names, TierDefault)
}

// Load never fails: when every configured tier is unavailable it returns
// the compiled-in default document.
func (l *Loader) Load(ctx context.Context) Result {
	var skipped []error

	for _, tier := range l.tiers {
		if ctx.Err() != nil {
			skipped = append(skipped, &UnavailableError{Tier: tier.Name(), Message: "load cancelled", Cause: ctx.Err()})
			break
		}

		outcome, err := tier.Load(ctx)
		if err == nil && outcome != nil && outcome.Document != nil {
			if l.verbose {
				log.Printf("[LOADER] Loaded portfolio from %s tier", tier.Name())
			}
			return Result{
				Document:    outcome.Document,
				LastUpdated: outcome.LastUpdated,
				Tier:        tier.Name(),
				Skipped:     skipped,
			}
		}

		if err == nil {
			err = &UnavailableError{Tier: tier.Name(), Message: "no document"}
		}
		skipped = append(skipped, err)
		if l.verbose {
			log.Printf("[LOADER] %v", err)
		}
	}

	if l.verbose {
		log.Printf("[LOADER] Using compiled-in default portfolio")
	}
	return Result{
		Document:    portfolio.Default(),
		LastUpdated: l.now().UnixMilli(),
		Tier:        TierDefault,
		Skipped:     skipped,
	}
}
