package utils

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// GeneratePaymentQR encode la référence de reçu dans un QR, retourné en data
// URI pour insertion directe dans l'email de confirmation.
func GeneratePaymentQR(orderNumber, paymentID string, amount float64, currency string) (string, error) {
	payload := fmt.Sprintf("ORVIA|%s|%s|%s%.2f", orderNumber, paymentID, currency, amount)

	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
