// Package detect computes whether an interruption or a denial warning is
// currently shown, straight from the live document.
package detect

import (
	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/dom"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/player"
	"github.com/llehouerou/adspeed/internal/signature"
)

// Result is one detection. It is recomputed on every call and never cached.
type Result struct {
	InterruptionPresent bool
	MediaAvailable      bool
	WarningPresent      bool
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (r Result) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("interruption", r.InterruptionPresent).
		Bool("media", r.MediaAvailable).
		Bool("warning", r.WarningPresent)
}

// HandleSource resolves the current player handle.
type HandleSource interface {
	Handle() (player.Handle, bool)
}

// Transitioner is the part of the state machine a forced resync drives.
type Transitioner interface {
	Active() bool
	ForceStart()
	ForceEnd()
}

// Detector inspects the document for interruption and warning signatures.
type Detector struct {
	doc     dom.Document
	handles HandleSource
	sigs    *signature.Store
	log     zerolog.Logger
}

// New creates a detector.
func New(doc dom.Document, handles HandleSource, sigs *signature.Store) *Detector {
	return &Detector{doc: doc, handles: handles, sigs: sigs, log: log.WithComponent("detector")}
}

// Detect inspects the live document. Without a resolved media element every
// field is false.
func (d *Detector) Detect() Result {
	h, ok := d.handles.Handle()
	if !ok || !h.Media.Valid() {
		return Result{}
	}
	sigs := d.sigs.Current()

	var r Result
	r.MediaAvailable = d.connected(h.Media)
	if r.MediaAvailable {
		r.InterruptionPresent = d.exists(sigs.MarkerSelector()) || d.exists(sigs.IndicatorSelector())
	}
	r.WarningPresent = d.exists(sigs.Warning)
	return r
}

// Validate reports whether active agrees with a fresh detection. Mismatches
// in both directions are logged.
func (d *Detector) Validate(active bool) bool {
	r := d.Detect()
	if r.InterruptionPresent == active {
		return true
	}
	if active {
		d.log.Warn().Object(log.FieldDetection, r).Msg("state says interruption active but none detected")
	} else {
		d.log.Warn().Object(log.FieldDetection, r).Msg("interruption detected but state is idle")
	}
	return false
}

// ForceSync re-detects and drives t to match the document.
func (d *Detector) ForceSync(t Transitioner) {
	r := d.Detect()
	switch {
	case r.InterruptionPresent && !t.Active():
		d.log.Info().Msg("force starting interruption")
		t.ForceStart()
	case !r.InterruptionPresent && t.Active():
		d.log.Info().Msg("force ending interruption")
		t.ForceEnd()
	}
}

func (d *Detector) exists(selector string) bool {
	if selector == "" {
		return false
	}
	ok, err := d.doc.Exists(selector)
	if err != nil {
		d.log.Debug().Err(err).Str("selector", selector).Msg("signature lookup failed")
		return false
	}
	return ok
}

func (d *Detector) connected(el dom.Element) bool {
	ok, err := d.doc.Connected(el)
	if err != nil {
		d.log.Debug().Err(err).Msg("media connectivity check failed")
		return false
	}
	return ok
}
