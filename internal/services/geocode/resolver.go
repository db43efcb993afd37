package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/DenizBir/KargoGate/internal/cache"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/metrics"
	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	citiesKey       = "mng:cities"
	districtsKeyFmt = "mng:districts:%d"
	geoKeyFmt       = "mng:geo:%s|%s"

	DefaultTTL = 24 * time.Hour
)

// stripMarks decomposes and drops combining diacritical marks, so that
// "İstanbul", "ISTANBUL" and "istanbul " all normalize identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize is the canonical form for city/district matching: trim,
// strip diacritics, uppercase. Matching is exact on this form — no fuzzy
// fallback, misspelled names fail loudly.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	return strings.ToUpper(s)
}

// Resolver maps human-readable city/district names to MNG numeric codes,
// backed by the shared byte cache. Reference data and resolved pairs both
// live for ttl; concurrent refreshes race harmlessly, last write wins.
type Resolver struct {
	carrier carrier.Client
	cache   cache.BytesCache
	ttl     time.Duration
}

func New(c carrier.Client, bc cache.BytesCache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{carrier: c, cache: bc, ttl: ttl}
}

type codePair struct {
	CityCode     int `json:"city_code"`
	DistrictCode int `json:"district_code"`
}

// Resolve returns the carrier codes for a (city, district) name pair.
// Unknown names yield a not-found error before any shipment is attempted.
func (r *Resolver) Resolve(ctx context.Context, cityName, districtName string) (int, int, error) {
	normCity := Normalize(cityName)
	normDistrict := Normalize(districtName)
	if normCity == "" || normDistrict == "" {
		return 0, 0, errs.Validation("city and district names are required")
	}

	key := fmt.Sprintf(geoKeyFmt, normCity, normDistrict)
	if b, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		var p codePair
		if json.Unmarshal(b, &p) == nil {
			metrics.GeoCacheHits.WithLabelValues("cache").Inc()
			return p.CityCode, p.DistrictCode, nil
		}
	}

	cities, err := r.Cities(ctx)
	if err != nil {
		return 0, 0, err
	}
	var city *carrier.City
	for i := range cities {
		if Normalize(cities[i].Name) == normCity {
			city = &cities[i]
			break
		}
	}
	if city == nil {
		return 0, 0, errs.NotFound("city not found: %s", cityName)
	}

	districts, err := r.districts(ctx, city.Code)
	if err != nil {
		return 0, 0, err
	}
	var district *carrier.District
	for i := range districts {
		if Normalize(districts[i].Name) == normDistrict {
			district = &districts[i]
			break
		}
	}
	if district == nil {
		return 0, 0, errs.NotFound("district not found: %s (%s)", districtName, cityName)
	}

	b, _ := json.Marshal(codePair{CityCode: city.Code, DistrictCode: district.Code})
	_ = r.cache.Set(ctx, key, b, r.ttl)

	metrics.GeoCacheHits.WithLabelValues("carrier").Inc()
	return city.Code, district.Code, nil
}

// Cities returns the full carrier city list, cached under a single
// shared entry.
func (r *Resolver) Cities(ctx context.Context) ([]carrier.City, error) {
	if b, ok, err := r.cache.Get(ctx, citiesKey); err == nil && ok {
		var cities []carrier.City
		if json.Unmarshal(b, &cities) == nil {
			return cities, nil
		}
	}

	cities, err := r.carrier.GetCities(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get cities")
	}

	b, _ := json.Marshal(cities)
	_ = r.cache.Set(ctx, citiesKey, b, r.ttl)
	return cities, nil
}

// Districts returns the district list for a known city code; unknown
// codes are rejected against the city list first.
func (r *Resolver) Districts(ctx context.Context, cityCode int) ([]carrier.District, error) {
	cities, err := r.Cities(ctx)
	if err != nil {
		return nil, err
	}
	known := false
	for _, c := range cities {
		if c.Code == cityCode {
			known = true
			break
		}
	}
	if !known {
		return nil, errs.NotFound("city not found: %d", cityCode)
	}
	return r.districts(ctx, cityCode)
}

func (r *Resolver) districts(ctx context.Context, cityCode int) ([]carrier.District, error) {
	key := fmt.Sprintf(districtsKeyFmt, cityCode)
	if b, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		var districts []carrier.District
		if json.Unmarshal(b, &districts) == nil {
			return districts, nil
		}
	}

	districts, err := r.carrier.GetDistricts(ctx, cityCode)
	if err != nil {
		return nil, errors.Wrap(err, "get districts")
	}

	b, _ := json.Marshal(districts)
	_ = r.cache.Set(ctx, key, b, r.ttl)
	return districts, nil
}
