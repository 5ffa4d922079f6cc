// Package mailtemplates provides predefined email templates for billing
// notifications such as payment receipts, payment failures and subscription
// cancellations, along with utilities for rendering email content.
package mailtemplates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"strings"
	texttemplate "text/template"

	root "github.com/hatchpay/billing-backend"
	"github.com/hatchpay/billing-backend/notifications"
)

// AvailableTemplates is a map that stores the template key and the path of
// the email template inside the embedded assets filesystem.
var AvailableTemplates map[TemplateFile]string

// TemplateFile represents an email template key. Every email template should
// have a key that identifies it, which is the filename without the extension.
type TemplateFile string

// MailTemplate struct represents an email template. It includes the file key
// and the notification placeholder to be sent. The file key is the filename
// of the template without the extension. The notification placeholder includes
// the plain body template to be used as a fallback for email clients that do
// not support HTML, and the mail subject.
type MailTemplate struct {
	File        TemplateFile
	Placeholder notifications.Notification
}

// Load reads the email templates from the embedded assets filesystem and
// fills AvailableTemplates with the template key and path of each one.
func Load() error {
	htmlFiles := make(map[TemplateFile]string)
	if err := fs.WalkDir(root.Assets, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			return nil
		}
		key := strings.TrimSuffix(entry.Name(), ".html")
		htmlFiles[TemplateFile(key)] = path
		return nil
	}); err != nil {
		return err
	}
	AvailableTemplates = htmlFiles
	return nil
}

// ExecTemplate checks if the template file exists in the available mail
// templates and if it does, it executes the template with the data provided.
// If it doesn't exist, it returns an error. If the plain body placeholder is
// not empty, it executes the plain text template with the data provided. It
// returns the notification with the subject, body and plain body filled with
// the data provided.
func (mt MailTemplate) ExecTemplate(data any) (*notifications.Notification, error) {
	path, ok := AvailableTemplates[mt.File]
	if !ok {
		return nil, fmt.Errorf("template not found")
	}
	n := &notifications.Notification{
		Subject:   mt.Placeholder.Subject,
		PlainBody: mt.Placeholder.PlainBody,
	}
	tmpl, err := htmltemplate.ParseFS(root.Assets, path)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return nil, err
	}
	n.Body = buf.String()
	if n.Subject != "" {
		tmpl, err := texttemplate.New("subject").Parse(n.Subject)
		if err != nil {
			return nil, err
		}
		buf := new(bytes.Buffer)
		if err := tmpl.Execute(buf, data); err != nil {
			return nil, err
		}
		n.Subject = buf.String()
	}
	if n.PlainBody != "" {
		tmpl, err := texttemplate.New("plain").Parse(n.PlainBody)
		if err != nil {
			return nil, err
		}
		buf := new(bytes.Buffer)
		if err := tmpl.Execute(buf, data); err != nil {
			return nil, err
		}
		n.PlainBody = buf.String()
	}
	return n, nil
}
