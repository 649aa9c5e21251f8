// Package decoder turns captured mobile-payment notification payloads into
// structured transaction facts.
//
// The payload transform is a repeating-key XOR against the device key
// material, optionally wrapped in base64. This is reversible obfuscation
// applied by the capture side, NOT cryptographically secure encryption; it is
// reimplemented here byte-for-byte for compatibility and must not be
// presented as a security boundary.
package decoder

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"paynotify-system/internal/domain"
)

// DefaultFreshnessWindow is how far the capture timestamp may drift from the
// server clock before the payload is rejected outright.
const DefaultFreshnessWindow = 5 * time.Minute

var (
	// Device fingerprints are 16-32 chars from the alphanumeric alphabet.
	keyMaterialPattern = regexp.MustCompile(`^[A-Za-z0-9]{16,32}$`)

	// "R$ 1.234,56" style currency-prefixed amounts.
	amountPattern = regexp.MustCompile(`R\$\s*([0-9]+(?:\.[0-9]{3})*(?:,[0-9]{1,2})?)`)

	// Numeric security code following a "código"/"code" marker.
	codePattern = regexp.MustCompile(`(?i)(?:c[oó]digo|code)(?:\s+de\s+seguran[cç]a)?\s*:?\s*([0-9]{4,12})`)

	// Three consecutive name tokens preceding the payment verb phrase.
	senderPattern = regexp.MustCompile(`([\p{L}]+(?:\s+[\p{L}]+){2})\s+enviou\b`)
)

type Decoder struct {
	freshnessWindow time.Duration
	now             func() time.Time
}

func New(freshnessWindow time.Duration) *Decoder {
	if freshnessWindow <= 0 {
		freshnessWindow = DefaultFreshnessWindow
	}
	return &Decoder{
		freshnessWindow: freshnessWindow,
		now:             time.Now,
	}
}

// Decode extracts transaction facts from a raw notification payload. It has
// no side effects; the caller owns audit persistence around it.
func (d *Decoder) Decode(rawPayload []byte, keyMaterial string, observedAtMillis int64) (*domain.TransactionFacts, error) {
	if len(rawPayload) == 0 {
		return nil, domain.NewDecodeError(domain.EmptyPayload)
	}

	// Cheap rejection before any decode work.
	observed := time.UnixMilli(observedAtMillis)
	drift := d.now().Sub(observed)
	if drift < 0 {
		drift = -drift
	}
	if drift > d.freshnessWindow {
		return nil, domain.NewDecodeError(domain.StaleTimestamp)
	}

	if !keyMaterialPattern.MatchString(keyMaterial) {
		return nil, domain.NewDecodeError(domain.InvalidKeyMaterial)
	}

	payload := rawPayload
	if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(rawPayload))); err == nil {
		payload = decoded
	}

	text := extractMessageText(ApplyKeyTransform(payload, keyMaterial))
	return extractFacts(text)
}

// ApplyKeyTransform runs the repeating-key XOR over data. The transform is
// its own inverse, so the capture side and this side share it.
func ApplyKeyTransform(data []byte, keyMaterial string) []byte {
	key := []byte(keyMaterial)
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// extractMessageText pulls the human-readable message out of the transformed
// payload: a JSON "text" field, then "fullText", else the payload itself.
func extractMessageText(payload []byte) string {
	var fields struct {
		Text     string `json:"text"`
		FullText string `json:"fullText"`
	}
	if err := json.Unmarshal(payload, &fields); err == nil {
		if fields.Text != "" {
			return fields.Text
		}
		if fields.FullText != "" {
			return fields.FullText
		}
	}
	return string(payload)
}

func extractFacts(text string) (*domain.TransactionFacts, error) {
	amount, ok := extractAmount(text)
	if !ok || amount <= 0 {
		return nil, &domain.DecodeError{Kind: domain.IncompleteExtraction, Field: "amount"}
	}

	codeMatch := codePattern.FindStringSubmatch(text)
	if codeMatch == nil {
		return nil, &domain.DecodeError{Kind: domain.IncompleteExtraction, Field: "security_code"}
	}
	code := codeMatch[1]

	senderMatch := senderPattern.FindStringSubmatch(text)
	if senderMatch == nil {
		return nil, &domain.DecodeError{Kind: domain.IncompleteExtraction, Field: "sender_name"}
	}

	return &domain.TransactionFacts{
		Amount:       amount,
		SenderName:   senderMatch[1],
		SecurityCode: code,
		ExternalCode: "EXT-" + code,
	}, nil
}

func extractAmount(text string) (float64, bool) {
	match := amountPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}

	// "1.234,56" -> "1234.56"
	normalized := strings.ReplaceAll(match[1], ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	amount, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}
