// Package summary renders a DayView as a short sentence in English or Danish.
package summary

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// Language is a supported output language.
type Language string

const (
	// English is the default language.
	English Language = "en"
	// Danish is the only other supported language.
	Danish Language = "da"
)

var hundred = decimal.NewFromInt(100)

// ParseLanguage returns Danish for "da" and English for anything else.
func ParseLanguage(s string) Language {
	if strings.EqualFold(strings.TrimSpace(s), string(Danish)) {
		return Danish
	}
	return English
}

// NoData returns the text used when there is no price for the requested day.
func NoData(l Language) string {
	if l == Danish {
		return "Der blev ikke fundet priser for den dato"
	}
	return "No prices were found for that date"
}

// FuelName returns the display name of a fuel type.
func FuelName(l Language, fuelType models.FuelType) string {
	switch fuelType {
	case models.FuelTypeOctane100:
		if l == Danish {
			return "Oktan 100"
		}
		return "Octane 100"
	case models.FuelTypeDiesel:
		return "Diesel"
	default:
		if l == Danish {
			return "Blyfri oktan 95"
		}
		return "Unleaed octane 95"
	}
}

// Text describes today's price and how yesterday and tomorrow compare.
// A view without a price for today yields the no-data text.
func Text(l Language, view *models.DayView, fuelType models.FuelType) string {
	if view == nil || view.Today == nil {
		return NoData(l)
	}
	if l == Danish {
		return danish(view, fuelType)
	}
	return english(view, fuelType)
}

func english(view *models.DayView, fuelType models.FuelType) string {
	today := view.Today.Price
	var b strings.Builder
	fmt.Fprintf(&b, "Today, the price of %s is %s kroner.", FuelName(English, fuelType), today)
	if r := view.Yesterday; hasPrice(r) {
		fmt.Fprintf(&b, " Yesterday the price was %s: %s kroner.", diff(English, today, r.Price), r.Price)
	}
	if r := view.Tomorrow; hasPrice(r) {
		fmt.Fprintf(&b, " Tomorrow the price will be %s: %s kroner.", diff(English, today, r.Price), r.Price)
	}
	return b.String()
}

func danish(view *models.DayView, fuelType models.FuelType) string {
	today := view.Today.Price
	kr, ore := KronerAndOre(today)
	var b strings.Builder
	fmt.Fprintf(&b, "%s koster %s kroner og %s ører i dag.", FuelName(Danish, fuelType), kr, ore)
	if r := view.Yesterday; hasPrice(r) {
		kr, ore := KronerAndOre(r.Price)
		fmt.Fprintf(&b, " I går var prisen %s: %s kroner og %s ører.", diff(Danish, today, r.Price), kr, ore)
	}
	if r := view.Tomorrow; hasPrice(r) {
		kr, ore := KronerAndOre(r.Price)
		fmt.Fprintf(&b, " I morgen vil prisen være %s: %s kroner og %s ører.", diff(Danish, today, r.Price), kr, ore)
	}
	return b.String()
}

func hasPrice(r *models.PriceRecord) bool {
	return r != nil && r.Price.IsPositive()
}

// diff describes other relative to today.
func diff(l Language, today, other decimal.Decimal) string {
	switch c := other.Cmp(today); {
	case c > 0 && l == Danish:
		return "højere"
	case c > 0:
		return "higher"
	case c < 0 && l == Danish:
		return "lavere"
	case c < 0:
		return "lower"
	case l == Danish:
		return "den samme"
	default:
		return "the same"
	}
}

// KronerAndOre splits a price into whole kroner and whole øre. 13.09 becomes
// ("13", "9") and 13.9 becomes ("13", "90"). Fractions of an øre are dropped.
func KronerAndOre(price decimal.Decimal) (kroner, ore string) {
	whole := price.Truncate(0)
	return whole.String(), price.Sub(whole).Mul(hundred).Truncate(0).String()
}
