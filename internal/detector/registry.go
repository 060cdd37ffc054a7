package detector

import (
	scanerr "disruptiq/internal/errors"
	"disruptiq/internal/language"
	"disruptiq/internal/signal"
)

// Setting toggles one detector. Nil fields keep the detector's defaults.
type Setting struct {
	Enabled  *bool
	Severity *signal.Severity
}

// Settings maps detector id to its setting.
type Settings map[string]Setting

// Registry holds every detector, in registration order.
// It is populated at startup and read-only afterwards.
type Registry struct {
	detectors []Detector
	byID      map[string]Detector
	settings  Settings
}

// NewRegistry creates an empty registry bound to settings.
func NewRegistry(settings Settings) *Registry {
	if settings == nil {
		settings = Settings{}
	}
	return &Registry{
		byID:     make(map[string]Detector),
		settings: settings,
	}
}

// Register adds d. A repeated id is a packaging bug and fails fast.
func (r *Registry) Register(d Detector) error {
	if _, exists := r.byID[d.ID()]; exists {
		return scanerr.NewDuplicateDetectorError(d.ID())
	}
	r.byID[d.ID()] = d
	r.detectors = append(r.detectors, d)
	return nil
}

// MustRegister registers every detector or panics.
func (r *Registry) MustRegister(ds ...Detector) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Enabled reports whether the detector is switched on. Unknown ids are off.
func (r *Registry) Enabled(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	if s, ok := r.settings[id]; ok && s.Enabled != nil {
		return *s.Enabled
	}
	return true
}

// Resolve returns every enabled detector applicable to lang, in registration
// order and without duplicates.
func (r *Registry) Resolve(lang language.Language) []Detector {
	var out []Detector
	seen := make(map[string]bool)
	for _, d := range r.detectors {
		if seen[d.ID()] || !r.Enabled(d.ID()) || !Supports(d, lang) {
			continue
		}
		seen[d.ID()] = true
		out = append(out, d)
	}
	return out
}

// Override returns the configured severity for a detector id.
func (r *Registry) Override(id string) (signal.Severity, bool) {
	if s, ok := r.settings[id]; ok && s.Severity != nil {
		return *s.Severity, true
	}
	return "", false
}

// Get looks a detector up by id.
func (r *Registry) Get(id string) (Detector, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Detectors lists every registered detector, enabled or not.
func (r *Registry) Detectors() []Detector {
	return append([]Detector(nil), r.detectors...)
}

// EnabledIDs lists the ids of enabled detectors in registration order.
func (r *Registry) EnabledIDs() []string {
	var ids []string
	for _, d := range r.detectors {
		if r.Enabled(d.ID()) {
			ids = append(ids, d.ID())
		}
	}
	return ids
}
