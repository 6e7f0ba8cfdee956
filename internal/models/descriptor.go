// Package models defines the domain types exchanged with the catalog
// service and the pipeline error taxonomy.
package models

import (
	"errors"
)

// MediaKind identifies which catalog entity a descriptor points at.
// The wire values match the catalog's media_type field.
type MediaKind string

const (
	// KindMovie marks a descriptor attached to a movie.
	KindMovie MediaKind = "movie"
	// KindEpisode marks a descriptor attached to a series episode.
	KindEpisode MediaKind = "tv"
)

// Valid reports whether the kind is one of the known wire values.
func (k MediaKind) Valid() bool {
	return k == KindMovie || k == KindEpisode
}

// MediaDescriptor identifies one transcodable unit as issued by the
// catalog. Exactly one catalog foreign key is referenced: ItemID holds
// the movie uid when Kind is movie, the episode uid when Kind is tv.
// Descriptors are created and edited only by the catalog; the pipeline
// treats them as read-only.
type MediaDescriptor struct {
	// ID is the descriptor's own catalog uid (meta_uid on the wire).
	ID string `json:"meta_uid"`

	// Kind selects the movie or episode branch of the catalog.
	Kind MediaKind `json:"media_type"`

	// ItemID is the movie or episode uid, depending on Kind.
	ItemID string `json:"uid"`

	// SourceURL is the remote (or local) media stream to transcode.
	SourceURL string `json:"video_source"`

	// AudioLang is the catalog's voice-track code for the source audio.
	// "20" denotes an English track; anything else is Russian.
	AudioLang string `json:"video_lang"`

	// SubtitleURL optionally points at a WebVTT subtitle file.
	SubtitleURL string `json:"sub,omitempty"`

	// SubtitleLang is the subtitle language code, set when SubtitleURL is.
	SubtitleLang string `json:"sub_lang,omitempty"`

	// Filename is the unique on-disk artifact stem for this descriptor.
	Filename string `json:"filename"`

	// Title is the human-readable title embedded in the output container.
	// For episodes the catalog pre-renders the
	// "<series> <season> сезон <episode> серия - <name>" form.
	Title string `json:"title"`
}

// Validation errors for catalog payloads.
var (
	ErrDescriptorID    = errors.New("descriptor uid is required")
	ErrDescriptorKind  = errors.New("media_type must be 'movie' or 'tv'")
	ErrDescriptorItem  = errors.New("descriptor must reference exactly one movie or episode")
	ErrSourceRequired  = errors.New("video_source is required")
	ErrFilenameInvalid = errors.New("filename does not match the generated-name contract")
)

// Validate checks the invariants the pipeline relies on.
func (d *MediaDescriptor) Validate() error {
	if d.ID == "" {
		return ErrDescriptorID
	}
	if !d.Kind.Valid() {
		return ErrDescriptorKind
	}
	if d.ItemID == "" {
		return ErrDescriptorItem
	}
	if d.SourceURL == "" {
		return ErrSourceRequired
	}
	if !ValidFilename(d.Filename) {
		return ErrFilenameInvalid
	}
	return nil
}

// HasSubtitles reports whether a subtitle track was requested for this
// descriptor.
func (d *MediaDescriptor) HasSubtitles() bool {
	return d.SubtitleURL != ""
}

// NormalizedAudioLang maps the catalog voice code onto the ISO 639-2 tag
// embedded in the output's audio stream metadata.
func (d *MediaDescriptor) NormalizedAudioLang() string {
	if d.AudioLang == "20" {
		return "eng"
	}
	return "rus"
}

// DownloadRecord is the catalog's row for one in-flight or completed
// transcode. The pipeline never caches these across calls; each mutation
// goes through the catalog contract.
type DownloadRecord struct {
	// ID is the record uid returned by the catalog.
	ID string `json:"uid"`

	// UserID owns the download.
	UserID string `json:"user_uid"`

	// RuntimeSeconds is the probed container duration.
	RuntimeSeconds float64 `json:"runtime"`

	// Complete is set exactly once, by the finalize step.
	Complete bool `json:"stage"`
}
