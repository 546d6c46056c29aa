package scrape

import (
	"regexp"
	"strings"

	"github.com/go-go-golems/deskhand/pkg/conversation"
)

var emailPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+`)

const (
	phoneLabel = "Celular"
	ownerLabel = "Proprietário do Contato"
)

// PanelText is the text of the parent element of each CRM panel label.
type PanelText struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Owner string `json:"owner"`
}

// ParseDetails extracts client details from the panel texts. Fields that
// cannot be read stay empty.
func ParseDetails(p PanelText) conversation.ClientDetails {
	return conversation.ClientDetails{
		Email: emailPattern.FindString(p.Email),
		Phone: stripLabel(p.Phone, phoneLabel),
		Owner: stripLabel(p.Owner, ownerLabel),
	}
}

func stripLabel(text, label string) string {
	return strings.TrimSpace(strings.Replace(text, label, "", 1))
}
