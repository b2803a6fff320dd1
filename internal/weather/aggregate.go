package weather

import (
	"encoding/json"
	"math"
)

// CityStats folds temperature observations. The fold is commutative and
// associative, so processing order does not change the result.
type CityStats struct {
	Count   int
	TempSum float64
	TempMin *float64
	TempMax *float64
}

// Add folds one temperature into the stats.
func (s *CityStats) Add(tempC float64) {
	s.Count++
	s.TempSum += tempC
	if s.TempMin == nil || tempC < *s.TempMin {
		v := tempC
		s.TempMin = &v
	}
	if s.TempMax == nil || tempC > *s.TempMax {
		v := tempC
		s.TempMax = &v
	}
}

// Merge folds other into s.
func (s *CityStats) Merge(other CityStats) {
	s.Count += other.Count
	s.TempSum += other.TempSum
	if other.TempMin != nil && (s.TempMin == nil || *other.TempMin < *s.TempMin) {
		v := *other.TempMin
		s.TempMin = &v
	}
	if other.TempMax != nil && (s.TempMax == nil || *other.TempMax > *s.TempMax) {
		v := *other.TempMax
		s.TempMax = &v
	}
}

// Avg is TempSum/Count, NaN when Count is zero.
func (s CityStats) Avg() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.TempSum / float64(s.Count)
}

// avgPtr is Avg as a pointer, nil when Count is zero.
func (s CityStats) avgPtr() *float64 {
	if s.Count == 0 {
		return nil
	}
	v := s.Avg()
	return &v
}

// MarshalJSON renders count and min/avg/max; empty stats render nulls.
func (s CityStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count    int      `json:"count"`
		MinTempC *float64 `json:"min_temp_c"`
		AvgTempC *float64 `json:"avg_temp_c"`
		MaxTempC *float64 `json:"max_temp_c"`
	}{
		Count:    s.Count,
		MinTempC: s.TempMin,
		AvgTempC: s.avgPtr(),
		MaxTempC: s.TempMax,
	})
}
