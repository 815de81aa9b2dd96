// Package email sends transactional e-mail for the metering service.
//
// Usage warnings are rendered by pkg/notify and delivered through a Sender:
// Postmark in deployed environments, DevSender (files on disk) elsewhere.
//
//	sender, err := email.NewSender(cfg)
//	if err != nil {
//	    return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "billing@acme.test",
//	    Subject:  "You have used 85% of your storage",
//	    BodyHTML: body,
//	    Tag:      "usage_warning",
//	})
//
// Errors: ErrInvalidParams for bad input, ErrFailedToSendEmail for delivery
// failures, ErrInvalidConfig from the constructors.
package email
