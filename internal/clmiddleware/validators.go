package clmiddleware

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var reSlug = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// RegisterValidators ajoute les tags de binding pagepath et slug
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("pagepath", validatePagePath); err != nil {
		return err
	}
	return v.RegisterValidation("slug", validateSlug)
}

// chemin relatif au site: commence par "/", sans espace ni caractère de contrôle
func validatePagePath(fl validator.FieldLevel) bool {
	page := fl.Field().String()
	if !strings.HasPrefix(page, "/") || strings.HasPrefix(page, "//") {
		return false
	}
	return !strings.ContainsFunc(page, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}

func validateSlug(fl validator.FieldLevel) bool {
	return reSlug.MatchString(fl.Field().String())
}
