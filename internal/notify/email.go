package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/repository"
)

type emailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailNotifier emails opted-in parents about badges, milestones and level ups via Amazon SES
type EmailNotifier struct {
	client     emailSender
	contacts   *repository.ContactRepository
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	log        *logger.Logger
}

// NewEmailNotifier creates an SES-backed notifier. With an empty fromEmail the
// notifier is disabled and Notify does nothing.
func NewEmailNotifier(ctx context.Context, contacts *repository.ContactRepository, awsRegion, fromEmail, fromName, appBaseURL string, log *logger.Logger) (*EmailNotifier, error) {
	if fromEmail == "" {
		log.Info("email notifications disabled: SES_FROM_EMAIL not configured")
		return &EmailNotifier{enabled: false, log: log}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("email notifications enabled", "from", fromEmail, "region", awsRegion)
	return &EmailNotifier{
		client:     sesv2.NewFromConfig(cfg),
		contacts:   contacts,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		log:        log,
	}, nil
}

// IsEnabled returns whether emails will be sent
func (n *EmailNotifier) IsEnabled() bool {
	return n.enabled
}

func (n *EmailNotifier) Notify(ctx context.Context, childID string, events []models.Event) error {
	if !n.enabled {
		return nil
	}

	var notable []models.Event
	for _, e := range events {
		if Notable(e) {
			notable = append(notable, e)
		}
	}
	if len(notable) == 0 {
		return nil
	}

	contact, err := n.contacts.Get(ctx, childID)
	if err != nil {
		return err
	}
	if contact == nil || !contact.EmailOptIn || contact.Email == "" {
		n.log.Debug("no opted-in parent contact, skipping email", "child_id", childID)
		return nil
	}

	subject, htmlBody, textBody := n.render(contact, notable)
	return n.sendEmail(ctx, contact.Email, subject, htmlBody, textBody)
}

func (n *EmailNotifier) render(contact *models.ParentContact, events []models.Event) (string, string, string) {
	name := contact.Name
	if name == "" {
		name = "there"
	}

	subject := "Your child has a new achievement on LearnQuest"
	if len(events) > 1 {
		subject = fmt.Sprintf("Your child has %d new achievements on LearnQuest", len(events))
	}

	var items, lines strings.Builder
	for _, e := range events {
		title, message := Describe(e)
		fmt.Fprintf(&items, "\t\t\t\t<li><strong>%s</strong> %s</li>\n", html.EscapeString(title), html.EscapeString(message))
		fmt.Fprintf(&lines, "- %s %s\n", title, message)
	}

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #f5a623; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>Great progress!</h1>
		</div>
		<div class="content">
			<p>Hi %s,</p>
			<p>Here is what your child achieved today:</p>
			<ul>
%s			</ul>
			<p><a href="%s">See their progress</a></p>
		</div>
		<div class="footer">
			<p>You are receiving this because you opted in to achievement emails. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, html.EscapeString(name), items.String(), html.EscapeString(n.appBaseURL))

	textBody := fmt.Sprintf(`Hi %s,

Here is what your child achieved today:
%s
See their progress: %s

---
You are receiving this because you opted in to achievement emails. Please do not reply.
`, name, lines.String(), n.appBaseURL)

	return subject, htmlBody, textBody
}

// sendEmail sends an email using Amazon SES
func (n *EmailNotifier) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := n.fromEmail
	if n.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", n.fromName, n.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send achievement email: %w", err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	n.log.Info("achievement email sent", "to_email", toEmail, "subject", subject, "message_id", messageID)
	return nil
}
