package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// GenerateKey builds a deterministic key from all parts.
func GenerateKey(parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// UpdateKey identifies a Telegram update. Update IDs are unique per bot;
// when one is missing the chat and message IDs are hashed instead.
func UpdateKey(updateID int, chatID int64, messageID int) string {
	if updateID > 0 {
		return "update:" + strconv.Itoa(updateID)
	}
	if messageID == 0 {
		return ""
	}
	return "msg:" + GenerateKey(chatID, messageID)
}
