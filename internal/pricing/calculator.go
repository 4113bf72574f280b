package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/quickride/quickride/pkg/clock"
	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/config"
)

// Vehicle classes with published fare rates.
const (
	ClassCar  = "car"
	ClassMoto = "moto"
)

// Calculator computes trip fares from distance and duration. The clock is
// injected so the night window can be tested at any hour.
type Calculator struct {
	cfg config.FareConfig
	clk clock.Clock
	loc *time.Location
}

// NewCalculator creates a fare calculator.
func NewCalculator(cfg config.FareConfig, clk clock.Clock) *Calculator {
	return &Calculator{
		cfg: cfg,
		clk: clk,
		loc: cfg.Location(),
	}
}

// Quote returns the fare for the given trip in minor currency units.
func (c *Calculator) Quote(distanceMeters, durationSeconds int, class string) (int64, error) {
	rates, err := c.rates(class)
	if err != nil {
		return 0, err
	}
	if distanceMeters < 0 || durationSeconds < 0 {
		return 0, common.NewValidationError("distance and duration must be non-negative")
	}

	surcharge := 1.0
	if c.IsNightWindow(c.clk.Now()) {
		surcharge = c.cfg.NightSurcharge
	}

	km := float64(distanceMeters) / 1000.0
	minutes := float64(durationSeconds) / 60.0
	price := (rates.Base + km*rates.PerKm + minutes*rates.PerMinute) * surcharge

	return int64(math.Round(price)), nil
}

// QuoteAll returns fares for every vehicle class at once, so a single
// request shows the passenger all options.
func (c *Calculator) QuoteAll(distanceMeters, durationSeconds int) (map[string]int64, error) {
	quotes := make(map[string]int64, 2)
	for _, class := range []string{ClassCar, ClassMoto} {
		fare, err := c.Quote(distanceMeters, durationSeconds, class)
		if err != nil {
			return nil, err
		}
		quotes[class] = fare
	}
	return quotes, nil
}

// IsNightWindow reports whether t falls in the surcharge window
// [NightStartHour, NightEndHour) of the reference timezone. The window
// wraps midnight when the start hour is later than the end hour.
func (c *Calculator) IsNightWindow(t time.Time) bool {
	hour := t.In(c.loc).Hour()
	start, end := c.cfg.NightStartHour, c.cfg.NightEndHour
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// ValidClass reports whether the class has published rates.
func ValidClass(class string) bool {
	return class == ClassCar || class == ClassMoto
}

func (c *Calculator) rates(class string) (config.ClassRates, error) {
	switch class {
	case ClassCar:
		return c.cfg.Car, nil
	case ClassMoto:
		return c.cfg.Moto, nil
	default:
		return config.ClassRates{}, common.NewValidationError(fmt.Sprintf("unknown vehicle class %q", class))
	}
}
