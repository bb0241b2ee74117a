package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mailroom/mailroom/engine/mail"
	"github.com/spf13/cobra"
)

// TriageCmd runs one email through the pipeline and prints the outcome as
// JSON: the final state plus the ordered audit trail.
func TriageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Triage one inbound email",
		Long: `Triage one inbound email and print the outcome as JSON.

The email is read from --from/--subject/--body flags, or as a JSON object
{"sender_email", "subject", "body"} on stdin when --stdin is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			email, err := readEmail(cmd)
			if err != nil {
				return err
			}
			cfg := configFromContext(ctx)
			svc, db, err := openService(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			outcome, err := svc.RunTriage(ctx, email)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(outcome)
		},
	}
	cmd.Flags().String("from", "", "sender email address")
	cmd.Flags().String("subject", "", "email subject")
	cmd.Flags().String("body", "", "email body")
	cmd.Flags().Bool("stdin", false, "read the email as JSON from stdin")
	return cmd
}

func readEmail(cmd *cobra.Command) (mail.Email, error) {
	var email mail.Email
	if useStdin, _ := cmd.Flags().GetBool("stdin"); useStdin {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return email, fmt.Errorf("read stdin: %w", err)
		}
		if err := json.Unmarshal(raw, &email); err != nil {
			return email, fmt.Errorf("decode email JSON: %w", err)
		}
		return email, nil
	}
	email.Sender, _ = cmd.Flags().GetString("from")
	email.Subject, _ = cmd.Flags().GetString("subject")
	email.Body, _ = cmd.Flags().GetString("body")
	return email, nil
}
