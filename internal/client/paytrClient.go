package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/config"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/signature"
)

type PaytrClient interface {
	// QueryStatus asks the provider for the current status of an order. It never
	// touches the order store; failures are retryable.
	QueryStatus(ctx context.Context, orderID string) (*model.StatusResult, error)
	// GetPaymentToken opens an iFrame payment session for an order.
	GetPaymentToken(ctx context.Context, req *model.PaymentTokenRequest) (*model.PaymentToken, error)
}

type paytrClientImpl struct {
	httpClient   *resty.Client
	statusURL    string
	merchantID   string
	merchantKey  string
	merchantSalt string
	timeout      time.Duration
	checkout     config.Paytr
}

func NewPaytrClient(paytrCfg *config.Paytr) PaytrClient {
	timeout := paytrCfg.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &paytrClientImpl{
		httpClient:   resty.New().SetTimeout(timeout),
		statusURL:    paytrCfg.StatusURL,
		merchantID:   paytrCfg.MerchantID,
		merchantKey:  paytrCfg.MerchantKey,
		merchantSalt: paytrCfg.MerchantSalt,
		timeout:      timeout,
		checkout:     *paytrCfg,
	}
}

func (c *paytrClientImpl) QueryStatus(ctx context.Context, orderID string) (*model.StatusResult, error) {
	if orderID == "" {
		return nil, fmt.Errorf("query status: %w", apperr.ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token := signature.StatusQueryToken(c.merchantID, orderID, c.merchantKey, c.merchantSalt)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"merchant_id":  c.merchantID,
			"merchant_oid": orderID,
			"paytr_token":  token,
		}).
		Post(c.statusURL)
	if err != nil {
		return nil, fmt.Errorf("paytr status request: %w: %w", apperr.ErrProviderUnavailable, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf(
			"paytr status query failed: status=%d body=%s: %w",
			resp.StatusCode(),
			resp.String(),
			apperr.ErrProviderUnavailable,
		)
	}

	var res model.PaytrStatusResponse
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		return nil, fmt.Errorf("decode paytr status response: %w: %w", apperr.ErrProviderUnavailable, err)
	}
	if res.Status == "" {
		return nil, fmt.Errorf("paytr status response without status: %w", apperr.ErrProviderUnavailable)
	}

	return &model.StatusResult{
		Status:   res.Status,
		Settled:  res.Status == model.ProviderStatusSuccess,
		Amount:   res.PaymentAmount,
		Currency: res.Currency,
		Raw:      json.RawMessage(resp.Body()),
	}, nil
}

func (c *paytrClientImpl) GetPaymentToken(ctx context.Context, req *model.PaymentTokenRequest) (*model.PaymentToken, error) {
	if req == nil || req.MerchantOID == "" || req.Email == "" || !req.Amount.IsPositive() || len(req.Basket) == 0 {
		return nil, fmt.Errorf("payment token request: %w", apperr.ErrInvalidRequest)
	}

	basket, err := encodeBasket(req.Basket)
	if err != nil {
		return nil, fmt.Errorf("encode basket: %w", err)
	}

	cfg := c.checkout
	// payment_amount is sent in kuruş
	paymentAmount := req.Amount.Shift(2).Round(0).String()
	noInstallment := strconv.Itoa(cfg.NoInstallment)
	maxInstallment := strconv.Itoa(cfg.MaxInstallment)
	testMode := flag(cfg.TestMode)

	token := signature.PaymentHash(
		c.merchantID, req.UserIP, req.MerchantOID, req.Email, paymentAmount, basket,
		noInstallment, maxInstallment, cfg.Currency, testMode,
		c.merchantKey, c.merchantSalt,
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"merchant_id":       c.merchantID,
			"merchant_key":      c.merchantKey,
			"merchant_salt":     c.merchantSalt,
			"email":             req.Email,
			"payment_amount":    paymentAmount,
			"merchant_oid":      req.MerchantOID,
			"user_name":         req.UserName,
			"user_address":      req.UserAddress,
			"user_phone":        req.UserPhone,
			"merchant_ok_url":   withOrderID(cfg.OkURL, req.MerchantOID),
			"merchant_fail_url": withOrderID(cfg.FailURL, req.MerchantOID),
			"user_basket":       basket,
			"user_ip":           req.UserIP,
			"timeout_limit":     strconv.Itoa(cfg.TimeoutLimit),
			"debug_on":          flag(cfg.DebugOn),
			"test_mode":         testMode,
			"lang":              cfg.Lang,
			"no_installment":    noInstallment,
			"max_installment":   maxInstallment,
			"currency":          cfg.Currency,
			"paytr_token":       token,
		}).
		Post(cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("paytr token request: %w: %w", apperr.ErrProviderUnavailable, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf(
			"paytr token request failed: status=%d body=%s: %w",
			resp.StatusCode(),
			resp.String(),
			apperr.ErrProviderUnavailable,
		)
	}

	var res model.PaytrTokenResponse
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		return nil, fmt.Errorf("decode paytr token response: %w: %w", apperr.ErrProviderUnavailable, err)
	}
	if res.Status != model.ProviderStatusSuccess || res.Token == "" {
		return nil, fmt.Errorf("paytr refused payment token: %s: %w", res.Reason, apperr.ErrProviderUnavailable)
	}

	return &model.PaymentToken{
		Token:     res.Token,
		IframeURL: strings.TrimRight(cfg.IframeURL, "/") + "/" + url.PathEscape(res.Token),
	}, nil
}

// encodeBasket renders base64(JSON [[name, price, quantity], ...]).
func encodeBasket(items []model.BasketItem) (string, error) {
	rows := make([][]interface{}, 0, len(items))
	for _, item := range items {
		rows = append(rows, []interface{}{item.Name, item.Price.StringFixed(2), item.Quantity})
	}

	b, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func withOrderID(rawURL, orderID string) string {
	u, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		return rawURL
	}
	q := u.Query()
	q.Set("merchant_oid", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
