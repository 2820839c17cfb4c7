// Package message renders the promotional text sent to dispatch channels.
package message

import (
	"fmt"
	"strings"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/models"
)

// FormatOffer renders the fixed promotional template for one offer. The field
// order (title, current price, original price, discount, link) is stable so
// messages are byte-identical across channels and runs.
func FormatOffer(offer models.Offer, link string) string {
	if link == "" {
		link = offer.Permalink
	}

	var b strings.Builder
	b.WriteString("ISSO AQUI EM MUITO LUGAR TÁ BEM MAIS CARO 👀\n\n")
	fmt.Fprintf(&b, "✅ %s\n\n", strings.TrimSpace(offer.Title))
	fmt.Fprintf(&b, "🔥 POR %s (de %s)\n", FormatBRL(offer.Price), FormatBRL(offer.OriginalPrice))
	fmt.Fprintf(&b, "💸 Desconto de %.0f%% OFF\n\n", offer.DiscountPct)
	fmt.Fprintf(&b, "🔗 %s", link)
	return b.String()
}

// FormatBRL renders a price in the pt-BR convention: "R$ 1.234,56". Two
// decimal places always, comma as the decimal separator, dots grouping
// thousands. Every message variant uses this one formatter so the locale
// convention cannot drift.
func FormatBRL(v float64) string {
	s := fmt.Sprintf("%.2f", v)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, decPart, _ := strings.Cut(s, ".")

	var grouped strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("R$ %s%s,%s", sign, grouped.String(), decPart)
}
