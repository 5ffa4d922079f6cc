package main

import (
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hatchpay/billing-backend/api"
	"github.com/hatchpay/billing-backend/db"
	"github.com/hatchpay/billing-backend/log"
	"github.com/hatchpay/billing-backend/notifications/mailtemplates"
	"github.com/hatchpay/billing-backend/notifications/smtp"
	"github.com/hatchpay/billing-backend/notifications/twilio"
	"github.com/hatchpay/billing-backend/stripe"
)

func main() {
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.StringP("secret", "s", "", "API secret")
	flag.String("mongo-url", "", "The URL of the MongoDB server")
	flag.String("mongo-db", "billing-backend", "The name of the MongoDB database")
	flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.String("log-output", "stdout", "log output (stdout, stderr or filepath)")
	flag.String("webhook-base", api.DefaultWebhookBase, "base path of the payment webhook endpoints")
	// billing flags
	flag.Bool("stripe-live", false, "use the live payment keys instead of the test ones")
	flag.String("stripe-test-secret-key", "", "payment provider test secret key")
	flag.String("stripe-test-publish-key", "", "payment provider test publishable key")
	flag.String("stripe-live-secret-key", "", "payment provider live secret key")
	flag.String("stripe-live-publish-key", "", "payment provider live publishable key")
	flag.String("stripe-active-status", stripe.DefaultActiveStatus, "status value marking a subscription in good standing")
	flag.Int("stripe-failure-attempts", stripe.DefaultFailureAttempts, "failed payments tolerated before a subscription is cancelled")
	flag.Bool("stripe-cancel-on-setup", true, "cancel existing subscriptions when a new one is set up")
	flag.Bool("stripe-clear-on-setup", false, "clear existing subscription records when a new one is set up")
	flag.Bool("stripe-custom-js", false, "front ends use custom payment forms instead of the provider checkout")
	flag.StringSlice("stripe-plans", []string{}, "subscription plans as key:name:priceID entries")
	// email flags
	flag.String("email-from-address", "", "email address to send notifications from")
	flag.String("email-from-name", "Billing", "name to send notification emails as")
	flag.String("smtp-server", "", "SMTP server")
	flag.Int("smtp-port", 587, "SMTP port")
	flag.String("smtp-username", "", "SMTP username")
	flag.String("smtp-password", "", "SMTP password")
	// sms flags
	flag.String("twilio-account-sid", "", "Twilio account SID")
	flag.String("twilio-auth-token", "", "Twilio auth token")
	flag.String("twilio-from-number", "", "Twilio number to send SMS warnings from")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("BILLING")
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	// read the configuration
	log.Init(viper.GetString("log-level"), viper.GetString("log-output"))
	host := viper.GetString("host")
	port := viper.GetInt("port")
	secret := viper.GetString("secret")
	if secret == "" {
		log.Fatalf("secret is required")
	}
	mongoURL := viper.GetString("mongo-url")
	mongoDB := viper.GetString("mongo-db")
	// initialize the MongoDB database
	database, err := db.New(mongoURL, mongoDB)
	if err != nil {
		log.Fatalf("could not create the MongoDB database: %v", err)
	}
	defer database.Close()
	// load the notification templates
	if err := mailtemplates.Load(); err != nil {
		log.Fatalf("could not load email templates: %v", err)
	}
	// create the billing service
	billingConf := stripe.NewConfig()
	billingConf.Live = viper.GetBool("stripe-live")
	billingConf.TestSecretKey = viper.GetString("stripe-test-secret-key")
	billingConf.TestPublishKey = viper.GetString("stripe-test-publish-key")
	billingConf.LiveSecretKey = viper.GetString("stripe-live-secret-key")
	billingConf.LivePublishKey = viper.GetString("stripe-live-publish-key")
	billingConf.ActiveStatus = viper.GetString("stripe-active-status")
	billingConf.FailureAttempts = viper.GetInt("stripe-failure-attempts")
	billingConf.CancelSubscriptionsOnSetup = viper.GetBool("stripe-cancel-on-setup")
	billingConf.ClearSubscriptionsOnSetup = viper.GetBool("stripe-clear-on-setup")
	billingConf.UseCustomJS = viper.GetBool("stripe-custom-js")
	billingConf.SendEmailsAs = viper.GetString("email-from-address")
	billingConf.Plans, err = stripe.ParsePlans(viper.GetStringSlice("stripe-plans"))
	if err != nil {
		log.Fatalf("could not parse subscription plans: %v", err)
	}
	billing, err := stripe.NewService(billingConf, database)
	if err != nil {
		log.Fatalf("could not create the billing service: %v", err)
	}
	// create the email service if the SMTP server is configured
	var mailService *smtp.Email
	if smtpServer := viper.GetString("smtp-server"); smtpServer != "" {
		mailService = new(smtp.Email)
		if err := mailService.Init(&smtp.Config{
			FromName:     viper.GetString("email-from-name"),
			FromAddress:  viper.GetString("email-from-address"),
			SMTPServer:   smtpServer,
			SMTPPort:     viper.GetInt("smtp-port"),
			SMTPUsername: viper.GetString("smtp-username"),
			SMTPPassword: viper.GetString("smtp-password"),
		}); err != nil {
			log.Fatalf("could not create the email service: %v", err)
		}
		billing.SetMailService(mailService)
		log.Infow("email service created", "from", viper.GetString("email-from-address"))
	}
	// create the SMS service if Twilio is configured
	if accountSid := viper.GetString("twilio-account-sid"); accountSid != "" {
		smsService := new(twilio.SMS)
		if err := smsService.Init(&twilio.Config{
			AccountSid: accountSid,
			AuthToken:  viper.GetString("twilio-auth-token"),
			FromNumber: viper.GetString("twilio-from-number"),
		}); err != nil {
			log.Fatalf("could not create the SMS service: %v", err)
		}
		billing.SetSMSService(smsService)
		log.Infow("SMS service created", "from", viper.GetString("twilio-from-number"))
	}
	// create the local API server
	apiConf := &api.Config{
		Host:        host,
		Port:        port,
		Secret:      secret,
		DB:          database,
		Billing:     billing,
		WebhookBase: viper.GetString("webhook-base"),
	}
	if mailService != nil {
		apiConf.MailService = mailService
	}
	api.New(apiConf).Start()
	// wait forever, as the server is running in a goroutine
	log.Infow("server started", "host", host, "port", port)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
