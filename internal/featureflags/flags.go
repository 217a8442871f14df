// Package featureflags switches optional surfaces of the app on and off.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags understood by the server.
const (
	// SeedRoutes exposes GET /cars/seed and GET /api/cars/seed.
	SeedRoutes = "seed_routes"
	// CarFeed exposes the websocket feed at /api/ws/cars.
	CarFeed = "car_feed"
)

// Defaults is the flag list used when FEATURE_FLAGS is unset.
const Defaults = SeedRoutes + "=on," + CarFeed + "=on"

// Set holds flags parsed from a list like "seed_routes=off,car_feed=25%".
type Set struct {
	values map[string]string
}

// Parse reads a comma-separated name=value list. Malformed pairs are skipped.
func Parse(raw string) *Set {
	values := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		name, value = normalize(name), normalize(value)
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return &Set{values: values}
}

// Enabled reports whether name is on for userID. Values are on/off style
// booleans or a percentage, which buckets signed-in users deterministically
// and is always off for anonymous visitors.
func (s *Set) Enabled(name string, userID uint) bool {
	if s == nil {
		return false
	}
	value, ok := s.values[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	switch {
	case err != nil || pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < pct
}

// Names lists the configured flags in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
