// Package i18n holds the user-facing strings of the API in Brazilian
// Portuguese and English.
package i18n

import (
	"golang.org/x/text/language"

	"github.com/lox/downforce/internal/game"
)

// Locale identifies a message catalog.
type Locale string

const (
	PortugueseBR Locale = "pt-BR"
	English      Locale = "en"
)

// Default is used when nothing in Accept-Language matches.
const Default = PortugueseBR

// Locales lists the supported locales, default first.
var Locales = []Locale{PortugueseBR, English}

var matcher = language.NewMatcher([]language.Tag{
	language.BrazilianPortuguese,
	language.English,
})

// Match picks the best supported locale for an Accept-Language header.
func Match(acceptLanguage string) Locale {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Default
	}
	return Locales[idx]
}

// Parse returns the locale named by s, matched leniently.
func Parse(s string) (Locale, bool) {
	tag, err := language.Parse(s)
	if err != nil {
		return "", false
	}
	_, idx, confidence := matcher.Match(tag)
	if confidence == language.No {
		return "", false
	}
	return Locales[idx], true
}

// T returns the message for key, falling back to the default locale and
// then to the key itself.
func T(loc Locale, key Key) string {
	if msg, ok := catalogs[loc][key]; ok {
		return msg
	}
	if msg, ok := catalogs[Default][key]; ok {
		return msg
	}
	return string(key)
}

// PhaseName returns the display name of p.
func PhaseName(loc Locale, p game.Phase) string {
	return T(loc, Key("phase."+string(p)))
}

// CarName returns the display name of c.
func CarName(loc Locale, c game.Car) string {
	return T(loc, Key("car."+string(c)))
}
