package generator

import (
	"fmt"
	"strings"

	"outreach/internal/contact"
)

// fallbackOpeners are used when generation is unavailable or failed.
var fallbackOpeners = []string{
	"I came across %s and was impressed by your work in the industry.",
	"I've been following %s's growth and wanted to reach out.",
	"I noticed %s is doing interesting things in your space.",
}

var subjectTemplates = []string{
	"AI opportunities for %s",
	"Quick question about %s's AI strategy",
	"Helping %s with AI automation",
}

const valueProps = `I run an AI consultancy that helps companies like yours:
• Build custom AI solutions tailored to your specific workflows
• Reduce operational costs through intelligent automation
• Gain competitive advantage with cutting-edge ML capabilities

We've helped companies achieve 40%+ efficiency gains in their core processes.`

const closing = `Would you be open to a 15-minute call to explore if there's a fit?

Best regards,
[Your Name]
[Your Company]`

// TemplateManager assembles complete messages from static parts and an
// opener.
type TemplateManager struct{}

// FallbackOpener returns a static opener. variation selects among the
// templates, wrapping around.
func (TemplateManager) FallbackOpener(c contact.Contact, variation int) string {
	tmpl := fallbackOpeners[variation%len(fallbackOpeners)]
	return fmt.Sprintf(tmpl, c.Company)
}

// Subject returns a subject line. variation selects among the templates,
// wrapping around.
func (TemplateManager) Subject(c contact.Contact, variation int) string {
	tmpl := subjectTemplates[variation%len(subjectTemplates)]
	return fmt.Sprintf(tmpl, c.Company)
}

// Assemble builds the full subject and body around an opener.
func (t TemplateManager) Assemble(c contact.Contact, opener string) (subject, body string) {
	subject = t.Subject(c, 0)

	parts := []string{
		fmt.Sprintf("Hi %s,", c.FirstName),
		"",
		opener,
		"",
		valueProps,
		"",
		closing,
	}
	return subject, strings.Join(parts, "\n")
}
