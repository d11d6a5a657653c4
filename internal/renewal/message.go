package renewal

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ladtc/ladtc/internal/membership"
)

const reminderSubject = "Renouvellement de votre adhésion"

// Message is a rendered reminder e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Composer renders reminder e-mails in French.
type Composer struct {
	printer *message.Printer
	baseURL string
}

// NewComposer builds a Composer linking members to baseURL.
func NewComposer(baseURL string) Composer {
	return Composer{
		printer: message.NewPrinter(language.French),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Compose renders the reminder for m as observed at now.
func (c Composer) Compose(m membership.Membership, now time.Time) Message {
	p := c.printer
	if p == nil {
		p = message.NewPrinter(language.French)
	}
	name := strings.TrimSpace(m.Holder.Name)
	if name == "" {
		name = "membre"
	}
	var body strings.Builder
	body.WriteString(p.Sprintf("Bonjour %s,\n\n", name))
	if m.RenewalDate != nil {
		days := int(m.RenewalDate.Sub(now).Hours() / 24)
		body.WriteString(p.Sprintf("Votre adhésion arrive à échéance le %s (dans %d jours).\n",
			m.RenewalDate.UTC().Format("02/01/2006"), days))
	}
	if m.AmountPaid > 0 {
		body.WriteString(p.Sprintf("Montant de la dernière cotisation : %.2f €.\n", m.AmountPaid))
	}
	body.WriteString("\nPensez à renouveler votre cotisation pour continuer à profiter du club.\n")
	if c.baseURL != "" {
		body.WriteString(p.Sprintf("Votre espace membre : %s/members\n", c.baseURL))
	}
	body.WriteString("\nSportivement,\nLe bureau")
	return Message{To: m.Holder.Email, Subject: reminderSubject, Body: body.String()}
}
