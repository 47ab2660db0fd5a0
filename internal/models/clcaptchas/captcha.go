package clcaptchas

import (
	"errors"
	"littlefolio/internal/models/clredis"
	"strings"
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissing = errors.New("CAPTCHA manquant")
	ErrInvalid = errors.New("CAPTCHA incorrect")
)

const expiration = 10 * time.Minute

type Captchas struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// Challenge est la réponse de GET /api/captcha
type Challenge struct {
	ID     string `json:"captchaId"`
	Image  string `json:"image"`
	Answer string `json:"answer,omitempty"`
}

// New utilise redis quand il est configuré, sinon la mémoire du processus
func New(redis *clredis.Client) *Captchas {
	var store base64Captcha.Store = base64Captcha.DefaultMemStore
	if redis.Enabled() {
		store = redis.CaptchaStore(expiration)
	}

	driver := base64Captcha.NewDriverMath(
		80,  // hauteur
		240, // largeur
		6,   // bruit
		base64Captcha.OptionShowHollowLine,
		nil,
		nil,
		nil,
	)

	return &Captchas{store: store, driver: driver}
}

// Generate renvoie la réponse en clair hors production pour faciliter les tests
func (c *Captchas) Generate(production bool) (*Challenge, error) {
	id, b64s, answer, err := base64Captcha.NewCaptcha(c.driver, c.store).Generate()
	if err != nil {
		return nil, errors.New("erreur lors de la génération du CAPTCHA")
	}

	ch := &Challenge{ID: id, Image: b64s}
	if !production {
		log.Debug().Str("id", id).Str("answer", answer).Msg("CAPTCHA généré")
		ch.Answer = answer
	}
	return ch, nil
}

// Verify consomme le captcha, une réponse ne sert qu'une fois
func (c *Captchas) Verify(id, answer string) error {
	id = strings.TrimSpace(id)
	answer = strings.TrimSpace(answer)
	if id == "" || answer == "" {
		return ErrMissing
	}
	if !c.store.Verify(id, answer, true) {
		return ErrInvalid
	}
	return nil
}
