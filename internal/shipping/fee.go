// Package shipping computes delivery fees from the distance between the
// warehouse and the delivery address.
package shipping

import (
	"fmt"
	"math"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
)

const earthRadiusKm = 6371.0

// Coordinate is a point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `koanf:"latitude"`
	Longitude float64 `koanf:"longitude"`
}

// Rates are the fee inputs. Money values are minor currency units.
type Rates struct {
	Warehouse         Coordinate
	PerKm             int64
	PrioritySurcharge int64
}

// DefaultRates ships from Manila at 10.00 per km with a 150.00 priority surcharge.
func DefaultRates() Rates {
	return Rates{
		Warehouse:         Coordinate{Latitude: 14.5995, Longitude: 120.9842},
		PerKm:             1000,
		PrioritySurcharge: 15000,
	}
}

// FeeCalculator is pure: the same destination and method always give the same fee.
type FeeCalculator struct {
	rates Rates
}

func NewFeeCalculator(rates Rates) *FeeCalculator {
	return &FeeCalculator{rates: rates}
}

// ComputeFee returns the shipping fee for delivering to dest by method.
func (c *FeeCalculator) ComputeFee(dest Coordinate, method orders.DeliveryMethod) (int64, error) {
	switch method {
	case orders.DeliveryPickup:
		return 0, nil
	case orders.DeliveryStandard, orders.DeliveryPriority:
	default:
		return 0, fmt.Errorf("unknown delivery method %q", method)
	}
	if !validCoordinate(dest) {
		return 0, fmt.Errorf("invalid coordinate %.6f,%.6f", dest.Latitude, dest.Longitude)
	}
	fee := int64(math.Round(DistanceKm(c.rates.Warehouse, dest) * float64(c.rates.PerKm)))
	if method == orders.DeliveryPriority {
		fee += c.rates.PrioritySurcharge
	}
	return fee, nil
}

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func validCoordinate(c Coordinate) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}
