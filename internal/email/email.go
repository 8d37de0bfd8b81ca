// Package email is the mail-sending collaborator of the auth flows. The
// flows treat it as fire-and-forget: a failed send is logged, never
// surfaced to the client, and never rolls back the write that triggered
// it. Messages travel over RabbitMQ so delivery survives a crash of the
// API process.
package email

// Message kinds understood by the consumer.
const (
	KindVerification  = "verification"
	KindPasswordReset = "password-reset"
	KindWelcome       = "welcome"
)

// Message is the payload published to the email.send queue. Token is set
// for verification/reset mail, Name for welcome mail.
type Message struct {
	Kind  string `json:"kind"`
	To    string `json:"to"`
	Token string `json:"token,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Sender is what the auth handlers depend on. The production
// implementation publishes to RabbitMQ; tests substitute a recorder.
type Sender interface {
	SendVerification(to, token string) error
	SendPasswordReset(to, token string) error
	SendWelcome(to, firstName string) error
}
