package notify

import (
	"fmt"
	"strings"

	"feedwatch/internal/model"
)

// Format renders a notification as a Telegram message.
func Format(n model.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n\n", n.Sender)
	b.WriteString(n.Subject)
	if n.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(n.Body)
	}
	return b.String()
}
