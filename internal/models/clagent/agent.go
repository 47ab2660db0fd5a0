package clagent

import "strings"

const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"

	BrowserEdge    = "Edge"
	BrowserOpera   = "Opera"
	BrowserChrome  = "Chrome"
	BrowserFirefox = "Firefox"
	BrowserSafari  = "Safari"
	BrowserIE      = "Internet Explorer"
	BrowserOther   = "Other"

	OSWindows = "Windows"
	OSMacOS   = "macOS"
	OSLinux   = "Linux"
	OSAndroid = "Android"
	OSIOS     = "iOS"
	OSUnknown = "Unknown"
)

// Agent est le résultat de la classification d'un user agent
type Agent struct {
	Device   string `json:"device"`
	Browser  string `json:"browser"`
	OS       string `json:"os"`
	IsMobile bool   `json:"isMobile"`
	IsTablet bool   `json:"isTablet"`
	IsBot    bool   `json:"isBot"`
}

var botPatterns = []string{
	"bot", "crawler", "spider", "scraper", "slurp",
	"wget", "curl", "python-requests", "python-urllib", "aiohttp",
	"go-http-client", "axios", "node-fetch", "okhttp", "java/",
	"libwww-perl", "httpclient", "guzzle", "postman", "insomnia",
	"headless", "lighthouse", "pagespeed", "prerender", "pingdom",
	"facebookexternalhit", "yandex", "baiduspider",
}

var tabletPatterns = []string{"ipad", "tablet", "kindle", "silk", "playbook"}

var mobilePatterns = []string{
	"mobile", "iphone", "ipod", "android", "blackberry",
	"opera mini", "windows phone", "iemobile",
}

// Classify ne renvoie jamais d'erreur, une chaîne inconnue donne Desktop/Other/Unknown
func Classify(userAgent string) Agent {
	ua := strings.ToLower(userAgent)

	agent := Agent{
		Device:  DeviceDesktop,
		Browser: detectBrowser(ua),
		OS:      detectOS(ua),
	}

	switch {
	case IsBot(ua):
		agent.Device = DeviceBot
		agent.IsBot = true
	case isTablet(ua):
		agent.Device = DeviceTablet
		agent.IsTablet = true
	case containsAny(ua, mobilePatterns):
		agent.Device = DeviceMobile
		agent.IsMobile = true
	}

	return agent
}

// IsBot teste uniquement les signatures de robots et de clients HTTP
func IsBot(userAgent string) bool {
	return containsAny(strings.ToLower(userAgent), botPatterns)
}

// un android sans "mobile" est une tablette
func isTablet(ua string) bool {
	if containsAny(ua, tabletPatterns) {
		return true
	}
	return strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")
}

func detectBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "edg"):
		return BrowserEdge
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return BrowserOpera
	case strings.Contains(ua, "chrome") || strings.Contains(ua, "crios"):
		return BrowserChrome
	case strings.Contains(ua, "firefox") || strings.Contains(ua, "fxios"):
		return BrowserFirefox
	case strings.Contains(ua, "safari"):
		return BrowserSafari
	case strings.Contains(ua, "msie") || strings.Contains(ua, "trident"):
		return BrowserIE
	default:
		return BrowserOther
	}
}

func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return OSWindows
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ipod"):
		return OSIOS
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return OSMacOS
	case strings.Contains(ua, "android"):
		return OSAndroid
	case strings.Contains(ua, "linux") || strings.Contains(ua, "x11"):
		return OSLinux
	default:
		return OSUnknown
	}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
