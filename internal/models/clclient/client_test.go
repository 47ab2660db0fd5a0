package clclient

import (
	"littlefolio/internal/models/clagent"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"xff premier", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, "1.2.3.4"},
		{"xff espaces", map[string]string{"X-Forwarded-For": "  9.9.9.9 ,1.1.1.1"}, "9.9.9.9"},
		{"xff avant real-ip", map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "8.8.8.8"}, "1.2.3.4"},
		{"real-ip", map[string]string{"X-Real-IP": "8.8.8.8"}, "8.8.8.8"},
		{"xff vide", map[string]string{"X-Forwarded-For": " , 5.6.7.8", "X-Real-IP": "8.8.4.4"}, "8.8.4.4"},
		{"aucun", nil, LoopbackIP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/track/page", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, Extract(req).IP)
		})
	}
}

func TestExtractReferrer(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, Extract(req).Referrer)

	req.Header.Set("Referrer", "https://b.example")
	require.NotNil(t, Extract(req).Referrer)
	assert.Equal(t, "https://b.example", *Extract(req).Referrer)

	req.Header.Set("Referer", "https://a.example")
	assert.Equal(t, "https://a.example", *Extract(req).Referrer)

	req.Header.Set("Referer", "https://a.example/"+strings.Repeat("x", 600))
	assert.Equal(t, MaxReferrerLength, utf8.RuneCountInString(*Extract(req).Referrer))
}

func TestExtractUserAgent(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("User-Agent", "Googlebot/2.1 "+strings.Repeat("é", 600))

	info := Extract(req)
	assert.True(t, info.IsBot)
	assert.Equal(t, clagent.DeviceBot, info.Device)
	assert.Equal(t, MaxUserAgentLength, utf8.RuneCountInString(info.UserAgent))
	assert.True(t, utf8.ValidString(info.UserAgent))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "éé", Truncate("ééé", 2))
	assert.Equal(t, 200, utf8.RuneCountInString(Truncate(strings.Repeat("t", 250), 200)))
}
