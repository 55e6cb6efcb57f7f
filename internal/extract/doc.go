// Package extract turns the ordered text fragments of an archive page into
// typed fields. Everything here is pure: no I/O, no clock, no randomness.
//
// Two modes exist. Single-label extraction (Label) keeps the text after the
// last occurrence of a field label. Dual-section extraction (Sections) runs
// a small state machine over the fragments of the description paragraph and
// splits it into content and notes at two literal boundary markers.
//
// Matching is literal and case-sensitive; fragments are never reordered.
package extract
