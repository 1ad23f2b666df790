package types

import (
	"bytes"
	"math"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// PriceHistoryResponse is a prices-history payload. Upstreams send either
// {"history":[{"t":..,"p":..}]} or a bare array of samples, with t in unix
// seconds and p as a number or numeric string.
type PriceHistoryResponse struct {
	History []HistorySample `json:"history"`
}

// HistorySample is one raw prices-history sample.
type HistorySample struct {
	T optFloat `json:"t"`
	P optFloat `json:"p"`
}

// optFloat is a flexFloat that remembers whether a value was present.
type optFloat struct {
	v  float64
	ok bool
}

func (o *optFloat) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*o = optFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*o = optFloat{}
		return nil
	}
	*o = optFloat{v: v, ok: true}
	return nil
}

// UnmarshalJSON accepts both the object and the bare array shape.
func (r *PriceHistoryResponse) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &r.History)
	}

	var obj struct {
		History []HistorySample `json:"history"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.History = obj.History
	return nil
}

// Points returns the valid samples as price points ordered by time. Samples
// with a non-positive or non-finite timestamp or an invalid price are dropped.
func (r *PriceHistoryResponse) Points() []PricePoint {
	points := make([]PricePoint, 0, len(r.History))
	for _, s := range r.History {
		if !s.T.ok || !s.P.ok {
			continue
		}
		ts, price := s.T.v, s.P.v
		if ts <= 0 || math.IsNaN(ts) || math.IsInf(ts, 0) || !ValidPrice(price) {
			continue
		}
		sec, frac := math.Modf(ts)
		points = append(points, PricePoint{
			Timestamp: time.Unix(int64(sec), int64(frac*1e9)).UTC(),
			Price:     price,
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points
}
