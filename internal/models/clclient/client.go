package clclient

import (
	"littlefolio/internal/models/clagent"
	"net/http"
	"strings"
)

const (
	LoopbackIP         = "127.0.0.1"
	MaxUserAgentLength = 500
	MaxReferrerLength  = 500
)

// Info regroupe ce que l'on déduit des en-têtes d'une requête entrante
type Info struct {
	IP        string
	UserAgent string
	Referrer  *string
	Device    string
	Browser   string
	OS        string
	IsBot     bool
}

// Extract ne fait aucun accès réseau ni base
func Extract(r *http.Request) Info {
	ua := r.Header.Get("User-Agent")
	agent := clagent.Classify(ua)

	return Info{
		IP:        ClientIP(r.Header),
		UserAgent: Truncate(ua, MaxUserAgentLength),
		Referrer:  referrer(r.Header),
		Device:    agent.Device,
		Browser:   agent.Browser,
		OS:        agent.OS,
		IsBot:     agent.IsBot,
	}
}

// ClientIP: x-forwarded-for (première entrée), puis x-real-ip, sinon loopback
func ClientIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return ip
	}

	return LoopbackIP
}

func referrer(h http.Header) *string {
	for _, name := range []string{"Referer", "Referrer"} {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			ref := Truncate(v, MaxReferrerLength)
			return &ref
		}
	}
	return nil
}

// Truncate coupe sur les runes pour ne pas casser l'UTF-8
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
