package utils

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"orvia_back_end/internal/models"

	"github.com/wneessen/go-mail"
)

func SendConfirmationEmail(to, subject, htmlBody string) error {
	msg := mail.NewMsg()

	if err := msg.From(os.Getenv("SMTP_FROM")); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	port := 587
	if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && p > 0 {
		port = p
	}

	client, err := mail.NewClient(os.Getenv("SMTP_HOST"),
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(os.Getenv("SMTP_USERNAME")),
		mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail à", to)
	return client.DialAndSend(msg)
}

// GenerateOrderConfirmationHTML génère le HTML de confirmation après paiement
func GenerateOrderConfirmationHTML(order models.Order, items []models.OrderItem, payment models.Payment, qrBase64 string) string {
	itemsHTML := ""
	for _, item := range items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td style="padding: 10px; border: 1px solid #ddd;">%s</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%d</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%.2f %s</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%.2f %s</td>
			</tr>`, item.Name, item.Quantity, item.UnitPrice, order.Currency,
			item.UnitPrice*float64(item.Quantity), order.Currency)
	}

	qrHTML := ""
	if qrBase64 != "" {
		qrHTML = fmt.Sprintf(`<p style="text-align: center;"><img src="%s" alt="Reçu" width="160" height="160"/></p>`, qrBase64)
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Paiement confirmé</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Paiement confirmé ✅</h2>
		<p>Bonjour,</p>
		<p>Votre paiement pour la commande <strong>%s</strong> a bien été reçu.</p>

		<h3>Détails de la commande</h3>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Produit</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Prix unitaire</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total payé :</td>
					<td style="padding: 10px; font-weight: bold;">%.2f %s</td>
				</tr>
			</tfoot>
		</table>

		<p style="color: #555;">Référence de paiement : %s (%s)</p>
		%s

		<p style="margin-top: 30px; color: #555;">
			Cordialement,<br>
			<strong>L'équipe Orvia</strong>
		</p>
	</div>
</body>
</html>`, order.OrderNumber, itemsHTML, payment.Amount, order.Currency,
		payment.PaymentID, payment.Provider, qrHTML)
}

// EmailNotifier envoie la confirmation de commande après un paiement réussi.
// Best-effort : un échec SMTP est loggé, jamais remonté à la réconciliation.
type EmailNotifier struct{}

func NewEmailNotifier() *EmailNotifier {
	return &EmailNotifier{}
}

func (n *EmailNotifier) OrderPaid(order models.Order, items []models.OrderItem, payment models.Payment) {
	go func() {
		qrBase64, err := GeneratePaymentQR(order.OrderNumber, payment.PaymentID, payment.Amount, order.Currency)
		if err != nil {
			log.Printf("⚠️ Génération QR reçu échouée pour %s: %v", order.OrderNumber, err)
			qrBase64 = ""
		}

		html := GenerateOrderConfirmationHTML(order, items, payment, qrBase64)
		subject := fmt.Sprintf("Paiement confirmé : commande %s", order.OrderNumber)
		if err := SendConfirmationEmail(payment.CustomerEmail, subject, html); err != nil {
			log.Printf("⚠️ Email de confirmation non envoyé pour %s: %v", order.OrderNumber, err)
			return
		}
		log.Printf("✅ Email de confirmation envoyé pour %s", order.OrderNumber)
	}()
}
