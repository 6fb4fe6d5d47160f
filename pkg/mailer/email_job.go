package mailer

// EmailJob is a rendered email ready to hand to Mailgun.
type EmailJob struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Text     string `json:"text,omitempty"`
	HTML     string `json:"html,omitempty"`
	Template string `json:"template,omitempty"` // post_replied, post_liked
}
