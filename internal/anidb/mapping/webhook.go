// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// # Jellyfin Webhook

// JellyfinPayload is the subset of a Jellyfin playback webhook used to
// discover AniDB ids.
type JellyfinPayload struct {
	Event       string            `json:"event"`
	ItemID      string            `json:"item_id"`
	ItemName    string            `json:"item_name"`
	ItemType    string            `json:"item_type"`
	SeriesName  *string           `json:"series_name"`
	ProviderIDs map[string]string `json:"provider_ids"`
	Metadata    map[string]any    `json:"metadata"`
}

// WebhookResult is the body returned to Jellyfin.
type WebhookResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	AnidbID *int     `json:"anidb_id,omitempty"`
	MalID   *int     `json:"mal_id,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

var (
	providerKeys = []string{"anidb", "AniDB"}
	metadataKeys = []string{"anidb_id", "AniDBId", "anidb", "AniDB"}

	// bracketID matches names such as "Cowboy Bebop [23]".
	bracketID = regexp.MustCompile(`\[(\d+)\]`)
)

const signaturePrefix = "sha256="

// VerifySignature checks an "sha256=<hex>" HMAC of body. An empty secret
// disables verification.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" {
		return true
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	given, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(given, mac.Sum(nil))
}

// Sign returns the signature header value for body. Used by tests and tooling.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

/*
ExtractAnidbID finds the AniDB id in a webhook payload.

Provider ids are checked first, then metadata, then a "[12345]" pattern in
the series or item name. Values that are not positive integers are skipped.

Returns:
  - int: The id
  - bool: False when nothing usable was found
*/
func ExtractAnidbID(payload *JellyfinPayload) (int, bool) {
	for _, key := range providerKeys {
		if raw, ok := payload.ProviderIDs[key]; ok {
			if id, ok := positiveInt(raw); ok {
				return id, true
			}
		}
	}

	for _, key := range metadataKeys {
		if raw, ok := payload.Metadata[key]; ok {
			if id, ok := positiveInt(raw); ok {
				return id, true
			}
		}
	}

	if match := bracketID.FindStringSubmatch(payload.DisplayName()); match != nil {
		if id, ok := positiveInt(match[1]); ok {
			return id, true
		}
	}

	return 0, false
}

// DisplayName prefers the series name over the item name.
func (payload *JellyfinPayload) DisplayName() string {
	if payload.SeriesName != nil && strings.TrimSpace(*payload.SeriesName) != "" {
		return *payload.SeriesName
	}
	return payload.ItemName
}

func positiveInt(raw any) (int, bool) {
	var (
		id  int
		err error
	)

	switch value := raw.(type) {
	case string:
		id, err = strconv.Atoi(strings.TrimSpace(value))
	case float64:
		if value != float64(int(value)) {
			return 0, false
		}
		id = int(value)
	case json.Number:
		id, err = strconv.Atoi(value.String())
	case int:
		id = value
	default:
		return 0, false
	}

	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
