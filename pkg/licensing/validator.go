package licensing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultGracePeriod is how long a previously-confirmed
	// entitlement may be trusted without re-contacting the store.
	DefaultGracePeriod = 7 * 24 * time.Hour

	// DefaultDebounceInterval collapses overlapping validation
	// triggers (app start racing a manual re-check) into one network
	// call for the same account.
	DefaultDebounceInterval = 10 * time.Second

	// Free-tier daily limits. Business configuration, not a contract;
	// override via Options.
	DefaultDictationLimitSeconds = 300
	DefaultSynthesisLimitChars   = 1000
)

// Options configures a Validator. Zero values take the defaults above.
type Options struct {
	GracePeriod           time.Duration
	DebounceInterval      time.Duration
	DictationLimitSeconds int
	SynthesisLimitChars   int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Validator makes the application's "is Pro" decisions. It queries the
// remote store when it can, and degrades to the cached grace-period
// decision when it cannot. Safe for concurrent use from the app's
// trigger points.
type Validator struct {
	store Store
	disk  *StateStore

	mu          sync.Mutex
	state       State
	lastChecked map[string]time.Time
	opts        Options
}

// NewValidator creates a validator backed by store, loading local state
// from disk. A nil disk keeps state in memory only.
func NewValidator(store Store, disk *StateStore, opts Options) (*Validator, error) {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.DebounceInterval <= 0 {
		opts.DebounceInterval = DefaultDebounceInterval
	}
	if opts.DictationLimitSeconds <= 0 {
		opts.DictationLimitSeconds = DefaultDictationLimitSeconds
	}
	if opts.SynthesisLimitChars <= 0 {
		opts.SynthesisLimitChars = DefaultSynthesisLimitChars
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	v := &Validator{
		store:       store,
		disk:        disk,
		lastChecked: make(map[string]time.Time),
		opts:        opts,
	}

	if disk != nil {
		loaded, err := disk.Load()
		if err != nil {
			return nil, err
		}
		v.state = *loaded
	} else {
		v.state = State{IsPro: false, LastResetDate: opts.Now().Format("2006-01-02")}
	}

	return v, nil
}

// ValidateLicense checks the email's entitlement against the store and
// updates the cached local decision.
//
// A false result with a nil error means "checked and denied". A store
// or network failure is returned as an error wrapping
// ErrStoreUnavailable and leaves the cached state untouched; callers
// should then fall back to IsLicenseValid instead of hard-denying.
func (v *Validator) ValidateLicense(ctx context.Context, email string) (bool, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return false, fmt.Errorf("email is required")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.opts.Now()

	// Overlapping triggers are idempotent but wasteful; return the
	// cached decision instead of another round trip. The cached state
	// only answers for the email it was written for: a validation of a
	// different account in between invalidates the shortcut.
	if checked, ok := v.lastChecked[normalized]; ok && now.Sub(checked) < v.opts.DebounceInterval && !now.Before(checked) && v.state.UserEmail == normalized {
		return v.state.IsPro, nil
	}

	record, err := v.store.GetRecord(ctx, normalized)
	if err != nil {
		return false, fmt.Errorf("license validation: %w", err)
	}

	if record == nil {
		// First sync of a new email: make the account known to the
		// store as a free record.
		if _, err := v.store.CreateFreeRecord(ctx, normalized); err != nil {
			return false, fmt.Errorf("license validation: %w", err)
		}
		v.markFreeLocked(normalized, now)
		return false, nil
	}

	if record.IsPro && !record.Expired(now) {
		v.markProLocked(normalized, record.LicenseKey, now)
		return true, nil
	}

	// Either a free record, or Pro with a lapsed expiry. Expiry is a
	// normal false result and the remote record is left untouched:
	// remote truth is only changed by the webhook or an explicit
	// cancellation flow.
	v.markFreeLocked(normalized, now)
	return false, nil
}

// ValidateFallbackLicense re-associates an entitlement with email using
// a license or subscription identifier the user supplied directly,
// e.g. after moving to a new email address.
func (v *Validator) ValidateFallbackLicense(ctx context.Context, email, key string) (bool, error) {
	normalized := normalizeEmail(email)
	trimmed := strings.TrimSpace(key)
	if normalized == "" || trimmed == "" {
		return false, fmt.Errorf("email and license key are required")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.opts.Now()

	// Cheap path: the record at this email already carries the key.
	record, err := v.store.GetRecord(ctx, normalized)
	if err != nil {
		return false, fmt.Errorf("fallback validation: %w", err)
	}
	if record != nil && record.HasIdentifier(trimmed) {
		if record.Expired(now) {
			v.markFreeLocked(normalized, now)
			return false, nil
		}
		// Auto-heal the record in case is_pro was lost.
		if _, err := v.store.AttachIdentifier(ctx, normalized, trimmed); err != nil {
			return false, fmt.Errorf("fallback validation: %w", err)
		}
		v.markProLocked(normalized, trimmed, now)
		return true, nil
	}

	// Broader search: the entitlement may live under a different email.
	match, err := v.store.FindByIdentifier(ctx, trimmed)
	if err != nil {
		return false, fmt.Errorf("fallback validation: %w", err)
	}
	if match == nil || match.Expired(now) {
		return false, nil
	}

	if _, err := v.store.AttachIdentifier(ctx, normalized, trimmed); err != nil {
		return false, fmt.Errorf("fallback validation: %w", err)
	}
	v.markProLocked(normalized, trimmed, now)
	return true, nil
}

// IsLicenseValid is the pure local check, usable with no network at
// all. True while the cached Pro decision is inside the grace window.
func (v *Validator) IsLicenseValid() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.isLicenseValidLocked(v.opts.Now())
}

func (v *Validator) isLicenseValidLocked(now time.Time) bool {
	if !v.state.IsPro {
		return false
	}
	if v.state.LastVerifiedAt == nil {
		// Legacy Pro state that predates verification stamps.
		return true
	}
	if now.Before(*v.state.LastVerifiedAt) {
		// Clock drift guard: a clock behind the last verification
		// means someone rolled it back to stretch the grace window.
		return false
	}
	return now.Sub(*v.state.LastVerifiedAt) <= v.opts.GracePeriod
}

// State returns a copy of the current local state, for UI display.
func (v *Validator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Validator) markProLocked(email, key string, now time.Time) {
	v.state.IsPro = true
	v.state.UserEmail = email
	if key != "" {
		v.state.LicenseKey = key
	}
	verified := now
	v.state.LastVerifiedAt = &verified
	v.lastChecked[email] = now
	v.persistLocked()
}

func (v *Validator) markFreeLocked(email string, now time.Time) {
	v.state.IsPro = false
	v.state.UserEmail = email
	// The cached license key survives as proof for a later fallback
	// attempt.
	v.lastChecked[email] = now
	v.persistLocked()
}

// persistLocked writes the state to disk. Best-effort: the in-memory
// state stays authoritative for this process either way.
func (v *Validator) persistLocked() {
	if v.disk == nil {
		return
	}
	state := v.state
	_ = v.disk.Save(&state)
	v.state.ID = 1
}
