package mailtemplates

import "github.com/hatchpay/billing-backend/notifications"

// PaymentReceivedNotification is the notification to be sent when a payment
// for a subscription succeeds.
var PaymentReceivedNotification = MailTemplate{
	File: "payment_received",
	Placeholder: notifications.Notification{
		Subject: "Payment received for {{.PlanName}}",
		PlainBody: `Hello {{.Name}},

We have received your payment for the {{.PlanName}} subscription.

No further action is needed.`,
	},
}

// PaymentFailedNotification is the notification to be sent when a payment
// attempt for a subscription fails but retries remain.
var PaymentFailedNotification = MailTemplate{
	File: "payment_failed",
	Placeholder: notifications.Notification{
		Subject: "Payment failed for {{.PlanName}}",
		PlainBody: `Hello {{.Name}},

A payment attempt for your {{.PlanName}} subscription has failed.

We will retry the charge. Attempts remaining before cancellation: {{.AttemptsLeft}}.

Please review your payment details to avoid losing access.`,
	},
}

// SubscriptionCancelledNotification is the notification to be sent when a
// subscription is cancelled after exhausting the payment attempts or by an
// explicit request.
var SubscriptionCancelledNotification = MailTemplate{
	File: "subscription_cancelled",
	Placeholder: notifications.Notification{
		Subject: "Your {{.PlanName}} subscription has been cancelled",
		PlainBody: `Hello {{.Name}},

Your {{.PlanName}} subscription has been cancelled.

You can subscribe again at any time after updating your payment details.`,
	},
}

// WelcomeNotification is the notification to be sent when a new account is
// registered.
var WelcomeNotification = MailTemplate{
	File: "welcome",
	Placeholder: notifications.Notification{
		Subject: "Welcome {{.Name}}",
		PlainBody: `Hello {{.Name}},

Your account has been created. You can now set up your payment details and
subscribe to a plan.`,
	},
}
