package transcript

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/fatgrid/insights/internal/fathom"
)

// maxTitleRunes bounds the sanitized title portion of archive filenames.
const maxTitleRunes = 50

// FormatArchive renders a meeting transcript into the archive file
// format: a metadata header, a ruler, then one timestamped line per
// spoken turn.
func FormatArchive(m fathom.Meeting, entries []fathom.Entry) string {
	invitees := make([]string, len(m.CalendarInvitees))
	for i, inv := range m.CalendarInvitees {
		invitees[i] = inv.Email
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MEETING: %s\n", m.DisplayTitle())
	fmt.Fprintf(&b, "DATE: %s\n", m.CreatedAt)
	fmt.Fprintf(&b, "RECORDING_ID: %d\n", m.RecordingID)
	fmt.Fprintf(&b, "URL: %s\n", m.URL)
	fmt.Fprintf(&b, "INVITEES: %s\n", strings.Join(invitees, ", "))
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n\n")

	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Timestamp, e.Speaker.DisplayName, e.Text)
	}

	return b.String()
}

// ArchiveFileName builds the filename for a transcript:
// <date>_<recording id>_<sanitized title>.txt.
func ArchiveFileName(recordingID int64, title, date string) string {
	datePart, _, _ := strings.Cut(date, "T")
	return fmt.Sprintf("%s_%d_%s.txt", datePart, recordingID, sanitizeTitle(title))
}

// sanitizeTitle keeps letters, digits, spaces, dashes and underscores,
// replaces everything else with underscores, and truncates to
// maxTitleRunes runes.
func sanitizeTitle(title string) string {
	runes := []rune(title)
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) > maxTitleRunes {
		out = out[:maxTitleRunes]
	}
	return strings.TrimSpace(string(out))
}
