package triage

import (
	"encoding/json"
	"fmt"

	"github.com/mailroom/mailroom/engine/mail"
)

func classifyPrompt(e mail.Email) string {
	return fmt.Sprintf(`You are a classification agent for customer emails.

Return JSON with:
- category: one of ["Sales Type","Support Type","Other"]
- confidence: 0..1
- rationale: short

Email:
From: %s
Subject: %s
Body: %s
`, e.Sender, e.Subject, e.Body)
}

func intentPrompt(domain string, allowed []string, e mail.Email, kbContext []string) string {
	allowedJSON, _ := json.Marshal(allowed)
	kbJSON, _ := json.MarshalIndent(kbContext, "", "  ")
	return fmt.Sprintf(`You are the %s intent identification agent.

You MUST use the provided Knowledge Base findings to refine intent classification.
Return JSON with:
- intent: one of %s
- confidence: 0..1
- rationale: short, explicitly referencing KB if relevant

Email:
Subject: %s
Body: %s

Knowledge Base findings (top chunks):
%s
`, domain, allowedJSON, e.Subject, e.Body, kbJSON)
}

func refundExtractPrompt(e mail.Email) string {
	return fmt.Sprintf(`You are the best refund request email ANALYSIS agent.

You MUST analyse the provided email body and subject to identify customer's email id, Purchase Order Number, Article DOI and Reason for Refund
Return JSON with:
- customerEmailId: identified customer email id
- purchaseOrderNumber: identified Purchase Order Number
- articleDoi: identified Article DOI
- refundReason: identified Reason for Refund
- confidence: 0..1
- rationale: short and explicit reason to support your choice
In case you are not able to find out any of the above mentioned information fill the respective JSON field with text unidentified.

Email:
Subject: %s
Body: %s
`, e.Subject, e.Body)
}

func clarifyingDraft(subject string) string {
	return fmt.Sprintf(`Subject: Re: %s

Hi,

Thanks for reaching out. To recommend the best-fit options, could you share:
1) Target use case / key requirements (top 3)
2) Expected users / seats
3) Desired contract duration
4) Budget range (if any)
5) Must-have integrations / compliance needs

Once I have this, I will propose the most suitable product(s) with pricing and bundling options.

Regards,
Sales Team
`, subject)
}

func authFailureDraft(subject string) string {
	return fmt.Sprintf(`Subject: Re: %s

Hi,

For security, we couldn't validate your account with the email address used. Please reply with:
- Registered email / customer ID
- Company name
- Last invoice / order number (if available)

Once verified, we will proceed with your support request.

Regards,
Support Team
`, subject)
}

func genericSupportDraft(subject string) string {
	return fmt.Sprintf(`Subject: Re: %s

Hi,

Thanks for contacting support. To help quickly, please share:
- Product name
- Steps to reproduce / exact error message
- Screenshot (if available)
- Your environment (OS/browser/app version)

Regards,
Support Team
`, subject)
}
