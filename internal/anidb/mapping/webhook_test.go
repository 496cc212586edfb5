// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/anisync/internal/anidb/mapping"
	"github.com/taibuivan/anisync/pkg/pointer"
)

/*
TestExtractAnidbID walks the lookup order: provider ids, metadata, then the name.
*/
func TestExtractAnidbID(t *testing.T) {
	tests := []struct {
		name    string
		payload mapping.JellyfinPayload
		want    int
		ok      bool
	}{
		{
			name:    "provider_lowercase",
			payload: mapping.JellyfinPayload{ProviderIDs: map[string]string{"anidb": "23"}},
			want:    23, ok: true,
		},
		{
			name:    "provider_capitalised",
			payload: mapping.JellyfinPayload{ProviderIDs: map[string]string{"AniDB": " 69 "}},
			want:    69, ok: true,
		},
		{
			name: "provider_wins_over_metadata",
			payload: mapping.JellyfinPayload{
				ProviderIDs: map[string]string{"anidb": "1"},
				Metadata:    map[string]any{"anidb_id": float64(2)},
			},
			want: 1, ok: true,
		},
		{
			name: "invalid_provider_falls_through",
			payload: mapping.JellyfinPayload{
				ProviderIDs: map[string]string{"anidb": "abc"},
				Metadata:    map[string]any{"AniDBId": "42"},
			},
			want: 42, ok: true,
		},
		{
			name:    "metadata_number",
			payload: mapping.JellyfinPayload{Metadata: map[string]any{"anidb_id": float64(4563)}},
			want:    4563, ok: true,
		},
		{
			name:    "metadata_fractional_rejected",
			payload: mapping.JellyfinPayload{Metadata: map[string]any{"anidb_id": 1.5}},
			ok:      false,
		},
		{
			name:    "series_name_bracket",
			payload: mapping.JellyfinPayload{ItemName: "Episode 1", SeriesName: pointer.To("Cowboy Bebop [23]")},
			want:    23, ok: true,
		},
		{
			name:    "item_name_bracket",
			payload: mapping.JellyfinPayload{ItemName: "Trigun [72]"},
			want:    72, ok: true,
		},
		{
			name:    "tvdb_only_ignored",
			payload: mapping.JellyfinPayload{ItemName: "Trigun", ProviderIDs: map[string]string{"Tvdb": "70350"}},
			ok:      false,
		},
		{
			name:    "zero_rejected",
			payload: mapping.JellyfinPayload{ProviderIDs: map[string]string{"anidb": "0"}},
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mapping.ExtractAnidbID(&tt.payload)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

/*
TestExtractAnidbID_JSONNumber handles payloads decoded with UseNumber.
*/
func TestExtractAnidbID_JSONNumber(t *testing.T) {
	payload := mapping.JellyfinPayload{Metadata: map[string]any{"anidb": json.Number("101")}}

	got, ok := mapping.ExtractAnidbID(&payload)
	require.True(t, ok)
	assert.Equal(t, 101, got)
}

/*
TestVerifySignature checks the HMAC header round trip and rejections.
*/
func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"PlaybackStart"}`)
	secret := "s3cret"
	header := mapping.Sign(body, secret)

	assert.True(t, mapping.VerifySignature(body, header, secret))
	assert.True(t, mapping.VerifySignature(body, "", ""), "empty secret disables verification")
	assert.False(t, mapping.VerifySignature(body, "", secret))
	assert.False(t, mapping.VerifySignature(body, "sha1=abcd", secret))
	assert.False(t, mapping.VerifySignature(body, "sha256=zz", secret))
	assert.False(t, mapping.VerifySignature([]byte(`{}`), header, secret))
	assert.False(t, mapping.VerifySignature(body, header, "other"))
}
