package licensing

// Usage quota tracking for the free tier. Counters accumulate since
// the last calendar-day reset (local time, not a rolling 24h window)
// and are exempt entirely for accounts whose license is valid.

// RolloverIfNewDay zeroes both counters when the calendar day has
// changed since the last reset. Must be called before reading the
// counters for a gating decision; it never resets mid-day.
func (v *Validator) RolloverIfNewDay() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rolloverLocked()
}

func (v *Validator) rolloverLocked() {
	today := v.opts.Now().Format("2006-01-02")
	if v.state.LastResetDate == today {
		return
	}
	v.state.DictationSeconds = 0
	v.state.TTSCharacters = 0
	v.state.LastResetDate = today
	v.persistLocked()
}

// RecordDictationSeconds adds n seconds of dictation to today's usage.
func (v *Validator) RecordDictationSeconds(n int) {
	if n <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rolloverLocked()
	v.state.DictationSeconds += n
	v.persistLocked()
}

// RecordSynthesisChars adds n synthesized characters to today's usage.
func (v *Validator) RecordSynthesisChars(n int) {
	if n <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rolloverLocked()
	v.state.TTSCharacters += n
	v.persistLocked()
}

// DictationAllowed reports whether more dictation is allowed today.
// Pro accounts are never limited.
func (v *Validator) DictationAllowed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rolloverLocked()
	if v.isLicenseValidLocked(v.opts.Now()) {
		return true
	}
	return v.state.DictationSeconds < v.opts.DictationLimitSeconds
}

// SynthesisAllowed reports whether more speech synthesis is allowed
// today. Pro accounts are never limited.
func (v *Validator) SynthesisAllowed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rolloverLocked()
	if v.isLicenseValidLocked(v.opts.Now()) {
		return true
	}
	return v.state.TTSCharacters < v.opts.SynthesisLimitChars
}

// DailyUsage is a snapshot of today's free-tier consumption.
type DailyUsage struct {
	DictationSeconds int    `json:"dictation_seconds"`
	TTSCharacters    int    `json:"tts_characters"`
	LastResetDate    string `json:"last_reset_date"`
}

// Usage returns today's usage counters, rolling over first so the
// snapshot never reports a previous day's totals.
func (v *Validator) Usage() DailyUsage {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rolloverLocked()
	return DailyUsage{
		DictationSeconds: v.state.DictationSeconds,
		TTSCharacters:    v.state.TTSCharacters,
		LastResetDate:    v.state.LastResetDate,
	}
}
