package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/bivex/subscription-renewals/internal/infrastructure/mailer"
)

const defaultLocale = "en"

type message struct {
	subject *template.Template
	body    *template.Template
}

var catalogs = map[string]map[Kind]message{
	"en": {
		KindRenewalReminder: mustMessage(
			"Your subscription renews in {{.DaysUntilRenewal}} days",
			`Hello {{.Name}},

Your subscription{{with .SubscriptionCode}} {{.}}{{end}} will renew automatically in {{.DaysUntilRenewal}} days{{with .NextBillingDate}} on {{.Format "2006-01-02"}}{{end}}.
The amount of {{money .Amount}} {{.Currency}} will be charged to your saved payment method.
`),
		KindRenewalSucceeded: mustMessage(
			"Your subscription has been renewed",
			`Hello {{.Name}},

Your subscription{{with .SubscriptionCode}} {{.}}{{end}} has been renewed. We charged {{money .Amount}} {{.Currency}}.
{{with .NextBillingDate}}Your next billing date is {{.Format "2006-01-02"}}.
{{end}}`),
		KindPaymentFailed: mustMessage(
			"We could not renew your subscription",
			`Hello {{.Name}},

We could not charge your saved payment method for subscription{{with .SubscriptionCode}} {{.}}{{end}}.
Reason: {{.Reason}}
Please update your payment method to keep your access.
`),
	},
	"ar": {
		KindRenewalReminder: mustMessage(
			"سيتم تجديد اشتراكك خلال {{.DaysUntilRenewal}} أيام",
			`مرحباً {{.Name}}،

سيتم تجديد اشتراكك{{with .SubscriptionCode}} {{.}}{{end}} تلقائياً خلال {{.DaysUntilRenewal}} أيام{{with .NextBillingDate}} بتاريخ {{.Format "2006-01-02"}}{{end}}.
سيتم خصم مبلغ {{money .Amount}} {{.Currency}} من وسيلة الدفع المحفوظة.
`),
		KindRenewalSucceeded: mustMessage(
			"تم تجديد اشتراكك",
			`مرحباً {{.Name}}،

تم تجديد اشتراكك{{with .SubscriptionCode}} {{.}}{{end}} بنجاح. تم خصم {{money .Amount}} {{.Currency}}.
{{with .NextBillingDate}}موعد الفوترة القادم هو {{.Format "2006-01-02"}}.
{{end}}`),
		KindPaymentFailed: mustMessage(
			"تعذر تجديد اشتراكك",
			`مرحباً {{.Name}}،

تعذر خصم المبلغ من وسيلة الدفع المحفوظة لاشتراكك{{with .SubscriptionCode}} {{.}}{{end}}.
السبب: {{.Reason}}
يرجى تحديث وسيلة الدفع للحفاظ على اشتراكك.
`),
	},
}

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}

func mustMessage(subject, body string) message {
	return message{
		subject: template.Must(template.New("subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New("body").Funcs(funcs).Parse(body)),
	}
}

// Renderer turns a Notification into an email in the subscriber's language
type Renderer struct{}

// NewRenderer creates a renderer over the built-in catalogs
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render picks the catalog for n.Locale, falling back to English
func (r *Renderer) Render(n Notification) (mailer.Email, error) {
	msg, ok := catalogFor(n.Locale)[n.Kind]
	if !ok {
		return mailer.Email{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	var subject, body bytes.Buffer
	if err := msg.subject.Execute(&subject, n); err != nil {
		return mailer.Email{}, fmt.Errorf("render subject: %w", err)
	}
	if err := msg.body.Execute(&body, n); err != nil {
		return mailer.Email{}, fmt.Errorf("render body: %w", err)
	}

	return mailer.Email{
		To:       n.Email,
		Subject:  subject.String(),
		TextBody: body.String(),
	}, nil
}

// catalogFor matches "ar", "ar-SA" and "ar_EG" to the Arabic catalog
func catalogFor(locale string) map[Kind]message {
	lang := strings.ToLower(locale)
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[defaultLocale]
}
