package player

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/dom"
	"github.com/llehouerou/adspeed/internal/log"
)

// Accepted playback rate bounds and the rate reported when no media is known.
const (
	MinRate     = 0.1
	MaxRate     = 100.0
	NeutralRate = 1.0
)

// MediaSource resolves the current media element.
type MediaSource interface {
	Media() (dom.Element, error)
}

// Velocity applies playback rates to the located media element.
type Velocity struct {
	doc   dom.Document
	media MediaSource
	log   zerolog.Logger
}

// NewVelocity creates a velocity controller reading the media element from media.
func NewVelocity(doc dom.Document, media MediaSource) *Velocity {
	return &Velocity{doc: doc, media: media, log: log.WithComponent("velocity")}
}

// ValidRate reports whether rate is a finite number within [MinRate, MaxRate].
func ValidRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate >= MinRate && rate <= MaxRate
}

// Set applies rate and reports whether the media element accepted it.
func (v *Velocity) Set(rate float64) bool {
	el, err := v.media.Media()
	if err != nil {
		return false
	}
	if !ValidRate(rate) {
		v.log.Error().Float64(log.FieldRate, rate).Msg("invalid playback rate, must be between 0.1 and 100")
		return false
	}
	if err := v.doc.SetPlaybackRate(el, rate); err != nil {
		v.log.Debug().Err(err).Float64(log.FieldRate, rate).Msg("playback rate rejected")
		return false
	}
	return true
}

// Get returns the live playback rate, or NeutralRate when it cannot be read.
func (v *Velocity) Get() float64 {
	el, err := v.media.Media()
	if err != nil {
		return NeutralRate
	}
	rate, err := v.doc.PlaybackRate(el)
	if err != nil {
		v.log.Debug().Err(err).Msg("playback rate unreadable")
		return NeutralRate
	}
	return rate
}
