package calendar

import "github.com/samber/mo"

// DateList is a flat list of dates shared by every track
type DateList []string

// TrackedDateList holds dates per track
type TrackedDateList map[Track][]string

// Document is a decoded date document: Left for a flat list, Right for a tracked one
type Document = mo.Either[DateList, TrackedDateList]

// NewDateList builds a flat document
func NewDateList(dates ...string) Document {
	return mo.Left[DateList, TrackedDateList](DateList(dates))
}

// NewTrackedDateList builds a track-keyed document
func NewTrackedDateList(tracks TrackedDateList) Document {
	return mo.Right[DateList, TrackedDateList](tracks)
}

// ShapeOf returns the shape of the document
func ShapeOf(doc Document) Shape {
	if doc.IsRight() {
		return ShapeTracked
	}
	return ShapeFlat
}

// DatesForTrack returns the dates of doc that apply to track: every entry of
// a flat list, or only the track's own entries of a tracked list.
func DatesForTrack(doc Document, track Track) []string {
	if list, ok := doc.Left(); ok {
		return list
	}
	tracked, _ := doc.Right()
	return tracked[track]
}

// DateSet is a set of YYYY-MM-DD strings
type DateSet map[string]struct{}

// Add inserts every date into the set
func (s DateSet) Add(dates ...string) {
	for _, d := range dates {
		s[d] = struct{}{}
	}
}

// Has reports whether date is in the set
func (s DateSet) Has(date string) bool {
	_, ok := s[date]
	return ok
}
