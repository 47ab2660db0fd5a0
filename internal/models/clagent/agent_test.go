package clagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaEdgeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91"
	uaOperaLinux    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 OPR/105.0.0.0"
	uaFirefoxLinux  = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaSafariMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"
	uaSafariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"
	uaIPad          = "Mozilla/5.0 (iPad; CPU OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"
	uaAndroidPhone  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	uaAndroidTab    = "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaIE11          = "Mozilla/5.0 (Windows NT 10.0; Trident/7.0; rv:11.0) like Gecko"
	uaGooglebot     = "Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X Build/MMB29P) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		device  string
		browser string
		os      string
	}{
		{"chrome windows", uaChromeWindows, DeviceDesktop, BrowserChrome, OSWindows},
		{"edge avant chrome", uaEdgeWindows, DeviceDesktop, BrowserEdge, OSWindows},
		{"opera avant chrome", uaOperaLinux, DeviceDesktop, BrowserOpera, OSLinux},
		{"firefox linux", uaFirefoxLinux, DeviceDesktop, BrowserFirefox, OSLinux},
		{"safari mac", uaSafariMac, DeviceDesktop, BrowserSafari, OSMacOS},
		{"iphone", uaSafariIPhone, DeviceMobile, BrowserSafari, OSIOS},
		{"ipad", uaIPad, DeviceTablet, BrowserSafari, OSIOS},
		{"android mobile", uaAndroidPhone, DeviceMobile, BrowserChrome, OSAndroid},
		{"android tablette", uaAndroidTab, DeviceTablet, BrowserChrome, OSAndroid},
		{"internet explorer", uaIE11, DeviceDesktop, BrowserIE, OSWindows},
		{"googlebot mobile", uaGooglebot, DeviceBot, BrowserChrome, OSAndroid},
		{"curl", "curl/8.4.0", DeviceBot, BrowserOther, OSUnknown},
		{"go client", "Go-http-client/1.1", DeviceBot, BrowserOther, OSUnknown},
		{"python", "python-requests/2.31.0", DeviceBot, BrowserOther, OSUnknown},
		{"inconnu", "quelque chose", DeviceDesktop, BrowserOther, OSUnknown},
		{"vide", "", DeviceDesktop, BrowserOther, OSUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := Classify(tt.ua)
			assert.Equal(t, tt.device, agent.Device)
			assert.Equal(t, tt.browser, agent.Browser)
			assert.Equal(t, tt.os, agent.OS)
			assert.Equal(t, tt.device == DeviceBot, agent.IsBot)
			assert.Equal(t, tt.device == DeviceMobile, agent.IsMobile)
			assert.Equal(t, tt.device == DeviceTablet, agent.IsTablet)
		})
	}
}

func TestBotOverridesMobile(t *testing.T) {
	for _, ua := range []string{
		uaGooglebot,
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile (compatible; bingbot/2.0)",
		"Mozilla/5.0 (iPad) AhrefsBot/7.0",
		"Mozilla/5.0 (Linux; Android 10) Mobile Spider",
		"Wget/1.21.4",
		"SomeScraper/1.0 (Android; Mobile)",
	} {
		agent := Classify(ua)
		assert.Equal(t, DeviceBot, agent.Device, ua)
		assert.True(t, agent.IsBot, ua)
		assert.False(t, agent.IsMobile, ua)
		assert.False(t, agent.IsTablet, ua)
	}
}

func TestChromeNeverSafari(t *testing.T) {
	agent := Classify("Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko) Chrome/1.0 Safari/537.36")
	assert.Equal(t, BrowserChrome, agent.Browser)
}

func TestCaseInsensitive(t *testing.T) {
	assert.True(t, IsBot("MyCRAWLER/1.0"))
	assert.Equal(t, BrowserFirefox, Classify("FIREFOX/100").Browser)
	assert.False(t, IsBot(uaChromeWindows))
}
