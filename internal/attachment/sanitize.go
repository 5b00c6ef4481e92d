package attachment

import (
	"path"
	"regexp"
	"strings"
)

const (
	// MaxNameLength bounds a sanitized name, extension included.
	MaxNameLength = 120

	maxExtLength = 16
	emptyStem    = "attachment"
)

var unsafeRuns = regexp.MustCompile(`[^A-Za-z0-9]+`)

// collapse replaces every run of characters outside [A-Za-z0-9] with a
// single underscore and trims underscores from both ends.
func collapse(s string) string {
	return strings.Trim(unsafeRuns.ReplaceAllString(s, "_"), "_")
}

// SanitizeName derives the storage name of an attachment from the id of
// the message that carried it and the filename it declared. The result is
// deterministic, at most MaxNameLength bytes, made only of ASCII letters,
// digits and underscores, and keeps the original extension after a dot.
func SanitizeName(messageID, filename string) string {
	filename = strings.TrimSpace(filename)

	ext := path.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	cleanExt := collapse(strings.TrimPrefix(ext, "."))
	if len(cleanExt) > maxExtLength {
		cleanExt = strings.TrimRight(cleanExt[:maxExtLength], "_")
	}

	cleanStem := collapse(stem)
	if cleanStem == "" {
		cleanStem = emptyStem
	}

	name := cleanStem
	if id := collapse(messageID); id != "" {
		name = id + "_" + cleanStem
	}

	budget := MaxNameLength
	if cleanExt != "" {
		budget -= len(cleanExt) + 1
	}
	if len(name) > budget {
		name = strings.TrimRight(name[:budget], "_")
	}

	if cleanExt == "" {
		return name
	}
	return name + "." + cleanExt
}
