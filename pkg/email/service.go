package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/jordanlanch/partnerdb/pkg/models"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message is a plain text email
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Body    string
}

// Sender delivers a message
type Sender interface {
	Send(ctx context.Context, fromEmail, fromName string, msg Message) error
}

// SendGridSender delivers through the SendGrid API
type SendGridSender struct {
	client *sendgrid.Client
	log    logger.Logger
}

// NewSendGridSender creates a sender for apiKey
func NewSendGridSender(apiKey string, log logger.Logger) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), log: log}
}

func (s *SendGridSender) Send(ctx context.Context, fromEmail, fromName string, msg Message) error {
	from := mail.NewEmail(fromName, fromEmail)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	response, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	s.log.Info("email sent", "to", msg.ToEmail, "status", response.StatusCode)
	return nil
}

// ConsoleSender only logs messages. Used when no API key is configured.
type ConsoleSender struct {
	log logger.Logger
}

// NewConsoleSender creates a logging sender
func NewConsoleSender(log logger.Logger) *ConsoleSender {
	return &ConsoleSender{log: log}
}

func (s *ConsoleSender) Send(_ context.Context, fromEmail, _ string, msg Message) error {
	s.log.Info("email not sent (console mode)",
		"to", msg.ToEmail,
		"from", fromEmail,
		"subject", msg.Subject,
	)
	return nil
}

// Service builds the registration and partnership notifications
type Service struct {
	fromEmail  string
	fromName   string
	adminEmail string
	sender     Sender
	printer    *message.Printer
}

// NewService creates a notification service. With an empty sendGridAPIKey
// messages are logged instead of sent.
func NewService(fromEmail, fromName, adminEmail, sendGridAPIKey string, log logger.Logger) *Service {
	var sender Sender
	if sendGridAPIKey != "" {
		log.Info("email service initialized with SendGrid")
		sender = NewSendGridSender(sendGridAPIKey, log)
	} else {
		log.Warn("email service in console-only mode, set SENDGRID_API_KEY to send emails")
		sender = NewConsoleSender(log)
	}
	return NewServiceWithSender(fromEmail, fromName, adminEmail, sender)
}

// NewServiceWithSender creates a notification service over any sender
func NewServiceWithSender(fromEmail, fromName, adminEmail string, sender Sender) *Service {
	return &Service{
		fromEmail:  fromEmail,
		fromName:   fromName,
		adminEmail: adminEmail,
		sender:     sender,
		printer:    message.NewPrinter(language.French),
	}
}

// FormatAmount renders an amount in dinars with French digit grouping
func (s *Service) FormatAmount(amount decimal.Decimal) string {
	return s.printer.Sprintf("%d DA", amount.Round(0).IntPart())
}

// SendStudentRegistration confirms the registration to the student
func (s *Service) SendStudentRegistration(ctx context.Context, student *models.Student) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", student.FullName)
	b.WriteString("Votre inscription a bien été enregistrée.\n")
	if student.Program != nil {
		fmt.Fprintf(&b, "Programme : %s\n", student.Program.Name)
	}
	fmt.Fprintf(&b, "Code partenaire : %s\n\n", student.ReferralCode)
	b.WriteString("Nous vous contacterons prochainement pour confirmer votre inscription.\n")

	return s.sender.Send(ctx, s.fromEmail, s.fromName, Message{
		ToEmail: student.Email,
		ToName:  student.FullName,
		Subject: "Inscription réussie",
		Body:    b.String(),
	})
}

// SendPartnerNotification tells the partner a student used their code
func (s *Service) SendPartnerNotification(ctx context.Context, student *models.Student, partner *models.Partner) error {
	if partner == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", partner.Name)
	fmt.Fprintf(&b, "%s vient de s'inscrire avec votre code %s.\n", student.FullName, student.ReferralCode)
	fmt.Fprintf(&b, "Commission après confirmation : %s\n", s.FormatAmount(partner.CommissionPerStudent))

	return s.sender.Send(ctx, s.fromEmail, s.fromName, Message{
		ToEmail: partner.Email,
		ToName:  partner.Name,
		Subject: fmt.Sprintf("Nouvelle inscription via votre code %s", student.ReferralCode),
		Body:    b.String(),
	})
}

// SendAdminNotification reports a new registration to the operators
func (s *Service) SendAdminNotification(ctx context.Context, student *models.Student, partner *models.Partner) error {
	if partner == nil || s.adminEmail == "" {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Étudiant : %s <%s>\n", student.FullName, student.Email)
	if student.Phone != "" {
		fmt.Fprintf(&b, "Téléphone : %s\n", student.Phone)
	}
	fmt.Fprintf(&b, "Partenaire : %s (%s)\n", partner.Name, partner.PartnerCode())
	fmt.Fprintf(&b, "Code utilisé : %s\n", student.ReferralCode)

	return s.sender.Send(ctx, s.fromEmail, s.fromName, Message{
		ToEmail: s.adminEmail,
		Subject: fmt.Sprintf("Nouvelle inscription: %s chez %s", student.FullName, partner.Name),
		Body:    b.String(),
	})
}

// SendPartnershipRequest forwards a partnership application to the operators
func (s *Service) SendPartnershipRequest(ctx context.Context, req *models.PartnershipRequest) error {
	if s.adminEmail == "" {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Commerce : %s (%s)\n", req.BusinessName, req.BusinessType)
	fmt.Fprintf(&b, "Email : %s\nTéléphone : %s\nAdresse : %s\n\n", req.Email, req.Phone, req.Address)
	b.WriteString(req.Message)

	return s.sender.Send(ctx, s.fromEmail, s.fromName, Message{
		ToEmail: s.adminEmail,
		Subject: fmt.Sprintf("Demande de partenariat: %s", req.BusinessName),
		Body:    b.String(),
	})
}
