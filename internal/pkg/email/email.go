package email

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/applysmartuk/statement_server/config"
)

const brandName = "NHS Supporting Information Generator"

// Message 待发送邮件，HTML 与纯文本两个版本
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender 邮件投递通道
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

type Service struct {
	sender   Sender
	markdown goldmark.Markdown
}

// NewService 根据配置选择 SMTP 或 Brevo
func NewService(cfg *config.EmailConfig) *Service {
	var sender Sender
	switch cfg.Provider {
	case "brevo":
		sender = NewBrevoSender(cfg)
	default:
		sender = NewSMTPSender(cfg)
	}
	return NewServiceWithSender(sender)
}

func NewServiceWithSender(sender Sender) *Service {
	return &Service{
		sender: sender,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// SendStatement 发送生成好的 Supporting Information
func (s *Service) SendStatement(ctx context.Context, to, name, role, trust, statement string) error {
	subject := fmt.Sprintf("Your Supporting Information: %s at %s", role, trust)
	body := fmt.Sprintf("Dear %s,\n\n"+
		"Thank you for using the %s. "+
		"Below is your tailored statement for your application as **%s** at **%s**.\n\n"+
		"---\n\n"+
		"%s\n\n"+
		"---\n\n"+
		"Please review and customise the statement as needed before including it in your application.\n\n"+
		"Best of luck!\n\n"+
		"The %s",
		name, brandName, role, trust, statement, brandName)

	return s.sendMarkdown(ctx, to, subject, body)
}

// SendInsufficientCredits 余额不足时发送购买链接
func (s *Service) SendInsufficientCredits(ctx context.Context, to, name, checkoutURL string) error {
	subject := "Purchase credits to generate your Supporting Information"
	body := fmt.Sprintf("Dear %s,\n\n"+
		"We received your submission, but your account does not have any credits left.\n\n"+
		"To generate your Supporting Information statement, please purchase a credit package or subscribe for unlimited access:\n\n"+
		"[Choose a package](%s)\n\n"+
		"Once your payment is complete, submit the form again and we will generate your statement straight away.\n\n"+
		"The %s",
		name, checkoutURL, brandName)

	return s.sendMarkdown(ctx, to, subject, body)
}

// RenderHTML Markdown 转带样式的 HTML 文档
func (s *Service) RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	var doc strings.Builder
	doc.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; color: #333; }
        h1, h2, h3 { color: #003087; }
        hr { border: none; border-top: 1px solid #ddd; margin: 24px 0; }
    </style>
</head>
<body>
`)
	doc.Write(buf.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.String(), nil
}

func (s *Service) sendMarkdown(ctx context.Context, to, subject, body string) error {
	htmlBody, err := s.RenderHTML(body)
	if err != nil {
		return err
	}

	return s.sender.Send(ctx, &Message{
		To:      to,
		Subject: subject,
		HTML:    htmlBody,
		Text:    body,
	})
}
