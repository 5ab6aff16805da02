package email

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// mdRenderer is a goldmark instance configured for email-safe HTML output.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

const activationBody = `# Welkom bij het trainersportaal

Hallo %s,

Je aanvraag is goedgekeurd. Stel je wachtwoord in via onderstaande link
om je account te activeren:

[Wachtwoord instellen](%s)

De link blijft 72 uur geldig. Vragen? Antwoord gewoon op deze mail.
`

// ActivationRequest builds the approval/activation email for a member.
// The body is authored in markdown and rendered to HTML.
// PRE: to and activationURL are non-empty
// POST: Returns a ready-to-send request
func ActivationRequest(to, name, activationURL string) (SendRequest, error) {
	if strings.TrimSpace(name) == "" {
		name = "coach"
	}
	md := fmt.Sprintf(activationBody, name, activationURL)

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return SendRequest{}, fmt.Errorf("failed to render activation email: %w", err)
	}

	return SendRequest{
		To:      []string{to},
		Subject: "Je account is goedgekeurd: stel je wachtwoord in",
		HTML:    buf.String(),
	}, nil
}
