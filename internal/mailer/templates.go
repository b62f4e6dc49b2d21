package mailer

import (
	"fmt"
	"html"
	"strings"
)

// NewScreeningMessage tells a patient that a doctor requested a pre-visit
// screening. portalURL points at the patient dashboard.
func NewScreeningMessage(to, patientName, doctorName, portalURL string) Message {
	return Message{
		To:      to,
		ToName:  patientName,
		Subject: "New pre-visit screening available",
		Text: fmt.Sprintf("Hello %s,\n\nDr. %s asked you to fill in a pre-visit screening form.\n"+
			"You can open it in your patient portal:\n\n%s\n", patientName, doctorName, portalURL),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>Dr. <strong>%s</strong> asked you to fill in a pre-visit screening form.</p>"+
			`<p><a href="%s">Open the patient portal</a></p>`,
			html.EscapeString(patientName), html.EscapeString(doctorName), html.EscapeString(portalURL)),
	}
}

// PasswordResetMessage carries the single-use reset link.
func PasswordResetMessage(to, name, resetURL string) Message {
	return Message{
		To:      to,
		ToName:  name,
		Subject: "Password reset - Triagify",
		Text: "You are receiving this email because a password reset was requested for your account.\n\n" +
			"Open the following link to choose a new password:\n\n" + resetURL + "\n\n" +
			"If you did not request this, ignore this email and your password will stay unchanged.\n",
		HTML: `<p>You are receiving this email because a password reset was requested for your account.</p>` +
			fmt.Sprintf(`<p><a href="%s">Choose a new password</a></p>`, html.EscapeString(resetURL)) +
			`<p>If you did not request this, ignore this email and your password will stay unchanged.</p>`,
	}
}

// ResetURL joins the frontend base URL and the raw reset token.
func ResetURL(frontend, token string) string {
	return strings.TrimRight(frontend, "/") + "/reset-password?token=" + token
}

// PortalURL is the patient dashboard under the frontend base URL.
func PortalURL(frontend string) string {
	return strings.TrimRight(frontend, "/") + "/patient-dashboard"
}
