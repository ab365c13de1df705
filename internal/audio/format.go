package audio

import (
	"errors"
	"mime"
	"strings"
)

// Format describes the container/codec chunks are encoded to
type Format struct {
	// MimeType is the content type of the concatenated chunks
	MimeType string

	// Encoding is the recognition service's name for raw encodings.
	// Empty for self-describing containers.
	Encoding string

	// Extension is used when the recording is offered as a file
	Extension string

	// Raw is true when chunks carry headerless samples
	Raw bool
}

var (
	FormatWebMOpus = Format{MimeType: "audio/webm;codecs=opus", Extension: "webm"}
	FormatOggOpus  = Format{MimeType: "audio/ogg;codecs=opus", Extension: "ogg"}
	FormatMulaw    = Format{MimeType: "audio/mulaw", Encoding: "mulaw", Extension: "wav", Raw: true}
	FormatLinear16 = Format{MimeType: "audio/l16", Encoding: "linear16", Extension: "wav", Raw: true}
)

// PreferredFormats returns the encoder's format preference, best first
func PreferredFormats() []Format {
	return []Format{FormatWebMOpus, FormatOggOpus, FormatMulaw, FormatLinear16}
}

// SelectFormat picks the first preferred format the source can be encoded to.
// A compressed source in a container outside the preference list is passed
// through in its own container.
func SelectFormat(src Source) (Format, error) {
	for _, f := range PreferredFormats() {
		if src.Supports(f) {
			return f, nil
		}
	}

	if !src.IsPCM() && strings.HasPrefix(baseMimeType(src.MimeType), "audio/") {
		return Format{MimeType: src.MimeType, Extension: extensionFor(src.MimeType)}, nil
	}
	return Format{}, ErrNoSupportedFormat
}

// IsPCMMimeType reports whether a capture mime type denotes raw 16-bit PCM
func IsPCMMimeType(mimeType string) bool {
	switch baseMimeType(mimeType) {
	case "", "audio/l16", "audio/pcm", "audio/raw":
		return true
	}
	return false
}

// sameContainer compares mime types ignoring parameters other than codecs
func sameContainer(a, b string) bool {
	if baseMimeType(a) != baseMimeType(b) {
		return false
	}
	ca, cb := codecs(a), codecs(b)
	return ca == "" || cb == "" || ca == cb
}

// parseMimeType returns the lowercased media type and codecs parameter.
// A malformed parameter list still yields the media type.
func parseMimeType(mimeType string) (base, codecs string) {
	base, params, err := mime.ParseMediaType(mimeType)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return "", ""
	}
	return base, strings.ToLower(params["codecs"])
}

func baseMimeType(mimeType string) string {
	base, _ := parseMimeType(mimeType)
	return base
}

func codecs(mimeType string) string {
	_, c := parseMimeType(mimeType)
	return c
}

func extensionFor(mimeType string) string {
	switch baseMimeType(mimeType) {
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4", "audio/aac":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	}
	return "bin"
}
