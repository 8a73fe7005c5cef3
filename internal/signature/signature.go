// Package signature implements the provider's keyed token scheme.
//
// A token is base64(HMAC-SHA256(secretKey, f1 + f2 + ... + salt)), fields joined
// with no separator in the order the provider documents. The same primitive
// authenticates inbound notifications and signs outbound status queries.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
)

func sign(secretKey string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(strings.Join(parts, "")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ComputeToken signs fields followed by salt.
func ComputeToken(fields []string, secretKey, salt string) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, fields...)
	parts = append(parts, salt)
	return sign(secretKey, parts...)
}

// Verify recomputes the token over fields and compares it in constant time.
// Every field must be non-empty: with no separator, an empty field lets its
// neighbours shift without changing the signed string.
func Verify(received string, fields []string, secretKey, salt string) error {
	if received == "" || len(fields) == 0 {
		return fmt.Errorf("missing token or fields: %w", apperr.ErrInvalidRequest)
	}
	for i, f := range fields {
		if f == "" {
			return fmt.Errorf("signed field %d is empty: %w", i, apperr.ErrInvalidRequest)
		}
	}
	if secretKey == "" {
		return fmt.Errorf("merchant key not configured: %w", apperr.ErrInvalidRequest)
	}

	return compare(received, ComputeToken(fields, secretKey, salt))
}

// Valid is Verify as a predicate.
func Valid(received string, fields []string, secretKey, salt string) bool {
	return Verify(received, fields, secretKey, salt) == nil
}

func compare(received, expected string) error {
	if !hmac.Equal([]byte(received), []byte(expected)) {
		return apperr.ErrAuthenticationFailed
	}
	return nil
}

// StatusQueryToken builds the paytr_token for a status query:
// merchant_id + merchant_oid + merchant_salt.
func StatusQueryToken(merchantID, orderID, secretKey, salt string) string {
	return ComputeToken([]string{merchantID, orderID}, secretKey, salt)
}

// WebhookFields is the field order covered by the generic webhook token.
func WebhookFields(merchantID, orderID, status, paymentID string) []string {
	return []string{merchantID, orderID, status, paymentID}
}

// VerifyWebhook checks a generic webhook token. payment_id is optional and
// signs as an empty string; the other fields are required.
func VerifyWebhook(received, merchantID, orderID, status, paymentID, secretKey, salt string) error {
	if received == "" || merchantID == "" || orderID == "" || status == "" {
		return fmt.Errorf("missing webhook token fields: %w", apperr.ErrInvalidRequest)
	}
	if secretKey == "" {
		return fmt.Errorf("merchant key not configured: %w", apperr.ErrInvalidRequest)
	}

	return compare(received, ComputeToken(WebhookFields(merchantID, orderID, status, paymentID), secretKey, salt))
}

// CallbackHash follows the iFrame callback scheme, where the salt sits between
// the order id and the status: merchant_oid + merchant_salt + status + total_amount.
func CallbackHash(orderID, status, totalAmount, secretKey, salt string) string {
	return sign(secretKey, orderID, salt, status, totalAmount)
}

// PaymentHash signs an iFrame get-token request: merchant_id + user_ip +
// merchant_oid + email + payment_amount + user_basket + no_installment +
// max_installment + currency + test_mode + merchant_salt.
func PaymentHash(
	merchantID, userIP, orderID, email, paymentAmount, userBasket,
	noInstallment, maxInstallment, currency, testMode, secretKey, salt string,
) string {
	return ComputeToken([]string{
		merchantID, userIP, orderID, email, paymentAmount, userBasket,
		noInstallment, maxInstallment, currency, testMode,
	}, secretKey, salt)
}

func VerifyCallback(received, orderID, status, totalAmount, secretKey, salt string) error {
	if received == "" || orderID == "" || status == "" {
		return fmt.Errorf("missing callback hash fields: %w", apperr.ErrInvalidRequest)
	}
	if secretKey == "" {
		return fmt.Errorf("merchant key not configured: %w", apperr.ErrInvalidRequest)
	}

	return compare(received, CallbackHash(orderID, status, totalAmount, secretKey, salt))
}
