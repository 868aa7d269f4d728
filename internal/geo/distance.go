package geo

import (
	"fmt"
	"math"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

const earthRadiusKm = 6371.0

// Distance returns the great-circle distance between two points in kilometers.
func Distance(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DeliveryTier describes the courier terms for a customer at a given distance
// from the nearest pizzeria.
type DeliveryTier struct {
	// Deliverable is false beyond the 20 km service radius.
	Deliverable bool
	// PriceMinor is the courier fee in minor currency units.
	PriceMinor int
	// Message is the user-facing explanation of the terms.
	Message string
}

// TierFor maps a distance in kilometers to the courier terms.
func TierFor(distanceKm float64) DeliveryTier {
	switch {
	case distanceKm <= 0.5:
		return DeliveryTier{
			Deliverable: true,
			Message: fmt.Sprintf(
				"Может, заберете пиццу из нашей пиццерии неподалеку? Она всего в %d метрах от вас! А можем и бесплатно доставить, нам не сложно.",
				int(distanceKm*1000)),
		}
	case distanceKm <= 5:
		return DeliveryTier{
			Deliverable: true,
			PriceMinor:  10000,
			Message:     "Похоже, придется ехать до вас на самокате. Доставка будет стоить 100 рублей. Доставляем или самовывоз?",
		}
	case distanceKm <= 20:
		return DeliveryTier{
			Deliverable: true,
			PriceMinor:  30000,
			Message:     "Вы довольно далеко от нас, доставка будет стоить 300 рублей. Доставляем или самовывоз?",
		}
	default:
		return DeliveryTier{
			Message: fmt.Sprintf(
				"Простите, но так далеко мы пиццу не доставим. Ближайшая пиццерия аж в %.1f километрах от вас! Будете заказывать самовывоз?",
				distanceKm),
		}
	}
}

// Pizzeria is a delivery origin loaded from the addresses flow.
type Pizzeria struct {
	Address           string
	Alias             string
	Point             Point
	DeliverymanChatID string
}

// Nearest returns the pizzeria closest to the customer and the distance to it
// in kilometers. Ties keep the earlier entry. ok is false for an empty slice.
func Nearest(pizzerias []Pizzeria, customer Point) (nearest Pizzeria, distanceKm float64, ok bool) {
	best := math.Inf(1)
	for _, p := range pizzerias {
		if d := Distance(p.Point, customer); d < best {
			best = d
			nearest = p
			ok = true
		}
	}
	return nearest, best, ok
}
