package core

import (
	"net/url"
	"strings"
)

// DefaultChatLinkBase is the click-to-chat endpoint used when none is configured.
const DefaultChatLinkBase = "https://wa.me/"

// Composer renders per-contact messages and click-to-chat links.
type Composer struct {
	// LinkBase is the deeplink prefix; the canonical phone is appended to it.
	LinkBase string
}

// NewComposer returns a Composer for linkBase, falling back to DefaultChatLinkBase.
func NewComposer(linkBase string) Composer {
	if strings.TrimSpace(linkBase) == "" {
		linkBase = DefaultChatLinkBase
	}
	if !strings.HasSuffix(linkBase, "/") {
		linkBase += "/"
	}
	return Composer{LinkBase: linkBase}
}

// Compose renders tmpl for contact. An empty template yields DefaultMessage.
func (c Composer) Compose(contact ExtractedContact, tmpl string) ComposedMessage {
	text := DefaultMessage(contact)
	if tmpl != "" {
		text = RenderTemplate(contact, tmpl)
	}
	return ComposedMessage{
		ContactRef:   contact.RowIndex,
		Name:         contact.FullName,
		RenderedText: text,
		Link:         c.Link(contact.CanonicalPhone, text),
	}
}

// Link builds the deeplink for phone with text pre-filled.
func (c Composer) Link(phone, text string) string {
	phone = strings.TrimPrefix(strings.TrimPrefix(phone, "+"), "00")
	return c.LinkBase + phone + "?text=" + escapeText(text)
}

// RenderTemplate substitutes merge fields literally. Unknown tokens stay verbatim.
func RenderTemplate(contact ExtractedContact, tmpl string) string {
	return mergeReplacer(contact).Replace(tmpl)
}

func mergeReplacer(contact ExtractedContact) *strings.Replacer {
	volunteerURL := ""
	if contact.VolunteerURL != nil {
		volunteerURL = *contact.VolunteerURL
	}
	return strings.NewReplacer(
		"{first_name}", contact.FirstName,
		"{last_name}", contact.LastName,
		"{full_name}", contact.FullName,
		"{location}", contact.Location,
		"{engagement_date}", contact.EngagementDate,
		"{volunteer_url}", volunteerURL,
	)
}

// DefaultMessage writes a multi-paragraph greeting from the contact's details.
// Optional sentences appear only when their field carries a real value.
func DefaultMessage(contact ExtractedContact) string {
	parts := make([]string, 0, 7)

	if contact.FirstName != "" {
		parts = append(parts, "Hi "+contact.FirstName+",")
	} else {
		parts = append(parts, "Hi,")
	}

	parts = append(parts, "I hope this message finds you well.")

	if present(contact.Location, defaultLocation) {
		parts = append(parts, "I noticed you're in "+contact.Location+".")
	}
	if present(contact.EngagementDate, defaultDate) {
		parts = append(parts, "Your last engagement was on "+contact.EngagementDate+".")
	}
	if contact.VolunteerURL != nil && *contact.VolunteerURL != "" {
		parts = append(parts, "You can check your volunteering details here: "+*contact.VolunteerURL)
	}

	parts = append(parts, "Best regards,", "[Your Name]")
	return strings.Join(parts, "\n\n")
}

// present reports whether v is neither empty nor the extraction default.
func present(v, def string) bool {
	return v != "" && v != def
}

// escapeText percent-encodes text for a query value, spaces as %20.
func escapeText(text string) string {
	return strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
