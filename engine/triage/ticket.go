package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
	"github.com/mailroom/mailroom/engine/store"
)

// ticket logs the email as an open ticket. Creation is not idempotent; the
// insert is schema-discovered so it survives externally managed drift.
func (s *Service) ticket(ctx context.Context, st *State) (*flow.Result[Update], error) {
	email := st.Email
	category := "Other"
	switch st.Route {
	case "sales":
		category = "Sales"
	case "support":
		category = "Support"
	}
	t := &store.Ticket{
		ID:            uuid.NewString(),
		Number:        "TCK-" + strings.ToUpper(uuid.NewString()[:8]),
		CustomerEmail: email.Sender,
		EmailSubject:  email.Subject,
		EmailContent:  email.Body,
		Category:      category,
		Status:        "OPEN",
		Priority:      "MEDIUM",
	}
	fields, err := s.store.InsertTicket(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("triage: insert ticket: %w", err)
	}
	logged := len(fields) > 0
	conf := 0.4
	var evidence []string
	if logged {
		conf = 0.85
		evidence = []string{fmt.Sprintf("Inserted ticket with fields: %v", fields)}
	}
	return &flow.Result[Update]{
		Update: Update{
			TicketLogged:   boolp(logged),
			TicketEvidence: evidence,
		},
		Input:      core.Input{"route": st.Route},
		Output:     core.Output{"ticket_logged": logged, "ticket_number": t.Number},
		Confidence: conf,
		Evidence:   evidence,
	}, nil
}
