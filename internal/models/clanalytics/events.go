package clanalytics

import (
	"fmt"
	"net/url"
	"regexp"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

const (
	KindClick    = "click"
	KindDownload = "download"
	KindOutbound = "outbound"
	KindScroll   = "scroll"
	KindContact  = "contact"
	KindTheme    = "theme"
	KindCustom   = "custom"

	MaxPayloadKeys     = 20
	MaxPayloadKeyLen   = 64
	MaxPayloadValueLen = 500
	MaxPayloadBytes    = 4096
	MaxEventNameLen    = 64
)

var reEventName = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// champs obligatoires et contrôles propres à chaque type connu
var kindRules = map[string]func(payload map[string]any) error{
	KindClick:   func(map[string]any) error { return nil },
	KindContact: func(map[string]any) error { return nil },
	KindDownload: func(p map[string]any) error {
		return requireString(p, "file")
	},
	KindOutbound: func(p map[string]any) error {
		if err := requireString(p, "url"); err != nil {
			return err
		}
		u, err := url.Parse(p["url"].(string))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: url doit être une adresse http(s) absolue", ErrInvalidPayload)
		}
		return nil
	},
	KindScroll: func(p map[string]any) error {
		depth, ok := toFloat(p["depth"])
		if !ok || depth < 0 || depth > 100 {
			return fmt.Errorf("%w: depth doit être un nombre entre 0 et 100", ErrInvalidPayload)
		}
		return nil
	},
	KindTheme: func(p map[string]any) error {
		return requireString(p, "theme")
	},
}

// Event est un événement validé prêt à être enregistré
type Event struct {
	Kind    string
	Name    string
	Payload map[string]any
}

// ParseEvent classe le nom dans un type connu, sinon custom, et borne la charge utile
func ParseEvent(name string, payload map[string]any) (Event, error) {
	if name == "" || utf8.RuneCountInString(name) > MaxEventNameLen || !reEventName.MatchString(name) {
		return Event{}, fmt.Errorf("%w: nom d'événement invalide", ErrInvalidPayload)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	if err := checkPayloadBounds(payload); err != nil {
		return Event{}, err
	}

	kind := KindCustom
	if rule, ok := kindRules[name]; ok {
		kind = name
		if err := rule(payload); err != nil {
			return Event{}, err
		}
	}

	return Event{Kind: kind, Name: name, Payload: payload}, nil
}

func checkPayloadBounds(payload map[string]any) error {
	if len(payload) > MaxPayloadKeys {
		return fmt.Errorf("%w: %d clés maximum", ErrInvalidPayload, MaxPayloadKeys)
	}

	for k, v := range payload {
		if k == "" || utf8.RuneCountInString(k) > MaxPayloadKeyLen {
			return fmt.Errorf("%w: clé invalide", ErrInvalidPayload)
		}
		switch val := v.(type) {
		case nil, bool:
		case string:
			if utf8.RuneCountInString(val) > MaxPayloadValueLen {
				return fmt.Errorf("%w: valeur trop longue pour %s", ErrInvalidPayload, k)
			}
		default:
			if _, ok := toFloat(v); !ok {
				return fmt.Errorf("%w: seules les valeurs simples sont acceptées (%s)", ErrInvalidPayload, k)
			}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(data) > MaxPayloadBytes {
		return fmt.Errorf("%w: %d octets maximum", ErrInvalidPayload, MaxPayloadBytes)
	}
	return nil
}

func requireString(p map[string]any, key string) error {
	s, ok := p[key].(string)
	if !ok || s == "" {
		return fmt.Errorf("%w: %s est obligatoire", ErrInvalidPayload, key)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
