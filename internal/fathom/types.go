package fathom

// Meeting is a single meeting as returned by the meetings endpoint.
type Meeting struct {
	Title            string     `json:"title"`
	MeetingTitle     string     `json:"meeting_title"`
	RecordingID      int64      `json:"recording_id"`
	URL              string     `json:"url"`
	CreatedAt        string     `json:"created_at"`
	CalendarInvitees []Invitee  `json:"calendar_invitees"`
	Transcript       []Entry    `json:"transcript,omitempty"`
	Summary          *Summary   `json:"summary,omitempty"`
	RecordedBy       *TeamsUser `json:"recorded_by,omitempty"`
}

// DisplayTitle returns the meeting title, preferring the calendar title
// over the recording title.
func (m Meeting) DisplayTitle() string {
	if m.MeetingTitle != "" {
		return m.MeetingTitle
	}
	if m.Title != "" {
		return m.Title
	}
	return "Untitled"
}

// Invitee is a calendar invitee on a meeting.
type Invitee struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsExternal bool   `json:"is_external"`
}

// TeamsUser identifies the user who recorded a meeting.
type TeamsUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Team  string `json:"team"`
}

// Entry is one spoken segment of a transcript.
type Entry struct {
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
}

// Speaker identifies who spoke a transcript entry.
type Speaker struct {
	DisplayName          string `json:"display_name"`
	MatchedCalendarEmail string `json:"matched_calendar_invitee_email"`
}

// Summary is an AI-generated meeting summary.
type Summary struct {
	TemplateName      string `json:"template_name"`
	MarkdownFormatted string `json:"markdown_formatted"`
}

// meetingsResponse is a single page of the meetings listing.
type meetingsResponse struct {
	Items      []Meeting `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// transcriptResponse wraps the transcript endpoint payload.
type transcriptResponse struct {
	Transcript []Entry `json:"transcript"`
}

// summaryResponse wraps the summary endpoint payload.
type summaryResponse struct {
	Summary *Summary `json:"summary"`
}

// Team is a Fathom team.
type Team struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// teamsResponse wraps the teams listing payload.
type teamsResponse struct {
	Items      []Team `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// TeamMember is one member of a team.
type TeamMember struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// teamMembersResponse wraps the team members listing payload.
type teamMembersResponse struct {
	Items      []TeamMember `json:"items"`
	NextCursor string       `json:"next_cursor"`
}

// Webhook is a registered webhook subscription.
type Webhook struct {
	ID             string   `json:"id"`
	DestinationURL string   `json:"destination_url"`
	TriggeredFor   []string `json:"triggered_for"`
	CreatedAt      string   `json:"created_at"`
}

// WebhookOptions configures a webhook subscription. TriggeredFor values
// are recording scopes such as "my_recordings" or
// "shared_team_recordings"; at least one include flag must be set.
type WebhookOptions struct {
	DestinationURL     string
	TriggeredFor       []string
	IncludeTranscript  bool
	IncludeSummary     bool
	IncludeActionItems bool
	IncludeCRMMatches  bool
}

// ListOptions filters the meetings listing. Zero values are omitted from
// the request.
type ListOptions struct {
	IncludeTranscript  bool
	IncludeSummary     bool
	CreatedAfter       string // ISO 8601, e.g. "2025-01-01T00:00:00Z"
	CreatedBefore      string // ISO 8601
	RecordedBy         []string
	Teams              []string
	InviteeDomains     []string
	InviteeDomainsType string // "all", "only_internal", or "one_or_more_external"
}
