package utils

import (
	"strings"

	"github.com/google/uuid"
)

// Record identifier prefixes.
const (
	OrderPrefix        = "ORD-"
	ImportPrefix       = "IMP-"
	PaymentPrefix      = "PAY-"
	LeadPrefix         = "LEAD-"
	LinkPrefix         = "AFF-"
	ConversationPrefix = "CONV-"
	MessagePrefix      = "MSG-"
)

// GenerateID returns prefix followed by the 32 upper-case hex digits of a random UUID.
func GenerateID(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return prefix + id
}
