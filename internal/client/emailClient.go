package client

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/go-resty/resty/v2"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/config"
)

var ErrEmailNotConfigured = errors.New("email service not configured")

type PaymentSuccessEmail struct {
	To              string
	OrderID         string
	Amount          string
	Currency        string
	PersonalPageURL string
}

type EmailClient interface {
	SendPaymentSuccess(ctx context.Context, msg PaymentSuccessEmail) error
}

type emailClientImpl struct {
	httpClient *resty.Client
	apiURL     string
	apiKey     string
	from       string
}

func NewEmailClient(emailCfg *config.Email) EmailClient {
	return &emailClientImpl{
		httpClient: resty.New().SetTimeout(emailCfg.Timeout),
		apiURL:     emailCfg.APIURL,
		apiKey:     emailCfg.APIKey,
		from:       emailCfg.From,
	}
}

func (c *emailClientImpl) SendPaymentSuccess(ctx context.Context, msg PaymentSuccessEmail) error {
	if c.apiKey == "" {
		return ErrEmailNotConfigured
	}
	if msg.To == "" {
		return fmt.Errorf("send payment success email: missing recipient")
	}

	body := map[string]interface{}{
		"from":    c.from,
		"to":      []string{msg.To},
		"subject": "Ödemeniz alındı - Gizli Mesaj",
		"html": fmt.Sprintf(
			`<p>Siparişiniz (%s) için %s %s tutarındaki ödemeniz alındı.</p><p>Sayfanız hazır: <a href="%s">%s</a></p>`,
			html.EscapeString(msg.OrderID),
			html.EscapeString(msg.Amount),
			html.EscapeString(msg.Currency),
			html.EscapeString(msg.PersonalPageURL),
			html.EscapeString(msg.PersonalPageURL),
		),
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(body).
		Post(c.apiURL)
	if err != nil {
		return fmt.Errorf("email api request: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("email api error %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}
