package weather

import (
	"strings"
	"time"

	"github.com/i474232898/weather-s3-ingest/internal/common"
)

// Object keys have the fixed layout YYYY/MM/DD/<normalized-city>_<HHMMSS>.json.
// Ingestion writes it; the catalog and analytics parse it back. Changing it
// orphans every stored object.
const (
	keyDateLayout = "2006/01/02"
	keyTimeLayout = "150405"
	keyExt        = ".json"
)

// NormalizeCity trims, replaces spaces with underscores and lowercases.
// "New York" -> "new_york".
func NormalizeCity(city string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(city), " ", "_"))
}

// UniqueCities drops empty names and every city whose normalized form was
// already seen, keeping the first spelling and the input order. It returns
// the kept cities and the dropped duplicates.
func UniqueCities(cities []string) (kept, dropped []string) {
	seen := make(map[string]bool, len(cities))
	for _, c := range cities {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		n := NormalizeCity(c)
		if seen[n] {
			dropped = append(dropped, c)
			continue
		}
		seen[n] = true
		kept = append(kept, c)
	}
	return kept, dropped
}

// BuildKey returns the storage key for city observed at ts (converted to UTC).
func BuildKey(city string, ts time.Time) string {
	ts = ts.UTC()
	return ts.Format(keyDateLayout) + "/" + NormalizeCity(city) + "_" + ts.Format(keyTimeLayout) + keyExt
}

// DatePrefix returns the YYYY/MM/DD/ listing prefix for day.
func DatePrefix(day time.Time) string {
	return day.UTC().Format(keyDateLayout) + "/"
}

// CityFromKey extracts the normalized city fragment of a key's filename.
// "2026/02/18/new_york_140509.json" -> "new_york".
func CityFromKey(key string) (string, bool) {
	name := key
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, keyExt)

	i := strings.LastIndex(name, "_")
	if i <= 0 {
		return "", false
	}
	return name[:i], true
}

// KeyFilter selects stored objects by day and/or city. The day becomes the
// listing prefix; the city is matched against each listed filename because a
// city fragment is not a path prefix when no day is given, and a prefix like
// "new_york_" would also match "new_york_city_...".
type KeyFilter struct {
	Date *time.Time
	City string
}

// ParseFilter builds a KeyFilter from an optional YYYY-MM-DD date and an
// optional city name.
func ParseFilter(date, city string) (KeyFilter, error) {
	f := KeyFilter{City: strings.TrimSpace(city)}
	if date != "" {
		d, err := common.ParseDate(date)
		if err != nil {
			return KeyFilter{}, err
		}
		f.Date = &d
	}
	return f, nil
}

// ListPrefix is the prefix handed to the object store.
func (f KeyFilter) ListPrefix() string {
	if f.Date == nil {
		return ""
	}
	return DatePrefix(*f.Date)
}

// Match reports whether key belongs to the filter's city. It always matches
// when no city is set.
func (f KeyFilter) Match(key string) bool {
	if f.City == "" {
		return true
	}
	city, ok := CityFromKey(key)
	return ok && city == NormalizeCity(f.City)
}

// PrefixFor returns the combined key fragment for an optional date and city:
// "", "YYYY/MM/DD/", "<city>_" or "YYYY/MM/DD/<city>_". It is the narrowest
// string every matching key starts with (city-only fragments match at the
// filename level, not the start of the key). Listing uses
// KeyFilter.ListPrefix plus KeyFilter.Match instead.
func PrefixFor(date, city string) (string, error) {
	f, err := ParseFilter(date, city)
	if err != nil {
		return "", err
	}
	prefix := f.ListPrefix()
	if f.City != "" {
		prefix += NormalizeCity(f.City) + "_"
	}
	return prefix, nil
}
