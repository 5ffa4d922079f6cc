// Package notifications defines the notification types and the interface
// that every notification backend (email, SMS) must implement.
package notifications

import "context"

// Notification represents a notification to be sent. The Body is the HTML
// version of the message and PlainBody the plain text fallback.
type Notification struct {
	ToName    string
	ToAddress string
	ToNumber  string
	ReplyTo   string
	Subject   string
	Body      string
	PlainBody string
}

// NotificationService is the interface implemented by every notification
// backend. Init receives a backend specific configuration struct.
type NotificationService interface {
	Init(conf any) error
	SendNotification(context.Context, *Notification) error
}
