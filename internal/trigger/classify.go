package trigger

import (
	"slices"
	"strings"

	"github.com/llehouerou/adspeed/internal/dom"
	"github.com/llehouerou/adspeed/internal/signature"
)

// Relevance says which concerns a mutation batch touches.
type Relevance struct {
	Media        bool
	Interruption bool
	Warning      bool
	Dismiss      bool
}

// Any reports whether the batch touched anything at all.
func (r Relevance) Any() bool {
	return r.Media || r.Interruption || r.Warning || r.Dismiss
}

// Probes lists the selectors a batch must be snapshotted against for
// Classify to work with sigs.
func Probes(sigs signature.Set) []string {
	return []string{sigs.Media, sigs.MarkerSelector(), sigs.WarningProbe(), sigs.Dismiss}
}

// Classify inspects a batch observed with Probes(sigs).
func Classify(batch []dom.Mutation, sigs signature.Set) Relevance {
	var r Relevance
	marker := sigs.MarkerSelector()
	warning := sigs.WarningProbe()

	for _, m := range batch {
		switch m.Kind {
		case dom.ChildList:
			for _, n := range m.Added {
				r.Media = r.Media || n.Contains(sigs.Media)
				r.Interruption = r.Interruption || carriesMarker(n, sigs.MarkerClasses, marker)
				r.Warning = r.Warning || n.Contains(warning)
				r.Dismiss = r.Dismiss || n.Contains(sigs.Dismiss)
			}
			for _, n := range m.Removed {
				r.Media = r.Media || n.Contains(sigs.Media)
				r.Interruption = r.Interruption || carriesMarker(n, sigs.MarkerClasses, marker)
			}
		case dom.Attributes:
			if m.Attribute == "class" && markerToggled(m, sigs.MarkerClasses) {
				r.Interruption = true
			}
		}
	}
	return r
}

func carriesMarker(n dom.Node, classes []string, selector string) bool {
	if !n.Element {
		return false
	}
	for _, c := range classes {
		if n.HasClass(c) {
			return true
		}
	}
	return n.Contains(selector)
}

// markerToggled reports whether a class change added or removed a marker
// class. Without the previous value, a marker on the target counts.
func markerToggled(m dom.Mutation, classes []string) bool {
	if m.OldValue == "" {
		return carriesMarker(m.Target, classes, "")
	}
	old := strings.Fields(m.OldValue)
	for _, c := range classes {
		if m.Target.HasClass(c) != slices.Contains(old, c) {
			return true
		}
	}
	return false
}
