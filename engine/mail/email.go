package mail

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyLength bounds the normalized body, matching the inbound contract.
const MaxBodyLength = 20000

// Email is the normalized inbound message handed to the triage pipeline.
type Email struct {
	Sender  string `json:"sender_email" validate:"required,email"`
	Subject string `json:"subject"      validate:"required,max=200"`
	Body    string `json:"body"         validate:"required,max=20000"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize strips control characters, trims whitespace, and caps the body so
// validation and downstream matching see a bounded, printable payload.
func (e Email) Normalize() Email {
	e.Sender = strings.TrimSpace(e.Sender)
	e.Subject = sanitize(e.Subject)
	e.Body = sanitize(e.Body)
	if body := []rune(e.Body); len(body) > MaxBodyLength {
		e.Body = string(body[:MaxBodyLength])
	}
	return e
}

func (e Email) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("mail: invalid email: %w", err)
	}
	return nil
}

// Text returns the lowercase subject+body used by every keyword heuristic.
func (e Email) Text() string {
	return strings.ToLower(e.Subject + " " + e.Body)
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
