// Command genevents seeds a store directory with a sample event set: an
// areal flood warning proposal, a river gauge warning, and a hydrologic
// statement. With -config-dir it also writes a minimal base configuration
// overlay. The fixtures drive demos and manual pipeline runs.
//
// Usage:
//
//	go run ./cmd/genevents -data-dir ./tmp/data -config-dir ./tmp/config -site KTBW
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/hazard-services/internal/domain"
	"github.com/couchcryptid/hazard-services/internal/observability"
	"github.com/couchcryptid/hazard-services/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "", "directory to write store files into")
	configDir := flag.String("config-dir", "", "optional: also write a base configuration overlay here")
	site := flag.String("site", "KTBW", "four-character office id")
	mode := flag.String("mode", "practice", "store namespace to seed")
	flag.Parse()

	if *dataDir == "" || len(*site) != 4 {
		flag.Usage()
		return fmt.Errorf("data-dir and a four-character site are required")
	}

	if *configDir != "" {
		if err := seedConfig(*configDir, *site); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := store.NewEventStore(
		filepath.Join(*dataDir, fmt.Sprintf("events.%s.json", *mode)),
		logger, observability.NewMetricsForTesting())

	now := domain.Now()
	fixtures := []*domain.Event{
		{
			SiteID:       *site,
			Phenomenon:   "FA",
			Significance: "W",
			Status:       domain.StatusProposed,
			StartTime:    now,
			EndTime:      now + (6 * time.Hour).Milliseconds(),
			GeoType:      domain.GeoTypeArea,
			Geometry: &domain.Geometry{
				Kind:  domain.GeometryPolygon,
				Rings: []domain.Ring{{{-82.7, 27.9}, {-82.7, 28.2}, {-82.3, 28.2}, {-82.7, 27.9}}},
			},
			Attributes: domain.AttrMap{
				domain.AttrUGCs:           []string{"FLC017", "FLC053"},
				domain.AttrImmediateCause: "ER",
				domain.AttrFloodSeverity:  "0",
			},
		},
		{
			SiteID:       *site,
			Phenomenon:   "FL",
			Significance: "W",
			Status:       domain.StatusProposed,
			StartTime:    now,
			EndTime:      now + (27 * time.Hour).Milliseconds(),
			GeoType:      domain.GeoTypePoint,
			PointID:      "KSCM6",
			Attributes: domain.AttrMap{
				domain.AttrStreamName:     "Cedar River",
				domain.AttrImmediateCause: "ER",
				domain.AttrFloodSeverity:  "1",
				domain.AttrRiseAbove:      now,
				domain.AttrCrest:          now + (12 * time.Hour).Milliseconds(),
				domain.AttrFallBelow:      now + (27 * time.Hour).Milliseconds(),
				domain.AttrFloodRecord:    "NO",
			},
		},
		{
			SiteID:       *site,
			Phenomenon:   "HY",
			Significance: "S",
			Status:       domain.StatusProposed,
			StartTime:    now,
			EndTime:      now + (24 * time.Hour).Milliseconds(),
			GeoType:      domain.GeoTypePoint,
			PointID:      "CEDI4",
			Attributes: domain.AttrMap{
				domain.AttrStreamName: "Cedar River",
			},
		},
	}

	for _, ev := range fixtures {
		created, err := events.CreateEvent(ev)
		if err != nil {
			return fmt.Errorf("seed %s.%s: %w", ev.Phenomenon, ev.Significance, err)
		}
		fmt.Printf("created %s %s (%s)\n", created.HazardType(), created.EventID, *mode)
	}
	return nil
}

// seedConfig writes the base level of the configuration overlay tree with
// enough tables for the seeded hazard types to resolve.
func seedConfig(root, site string) error {
	tables := map[string]any{
		"settings": map[string]any{
			"default_duration_hours":   6,
			"purge_window_minutes":     30,
			"single_segment_areal_flw": true,
			"default_time_zone":        "America/New_York",
			"map_center":               map[string]float64{"lon": -82.5, "lat": 28.0},
		},
		"hazard_types": map[string]any{
			"FA.W": map[string]any{
				"headline":               "FLOOD WARNING",
				"pils":                   []string{"FLW", "FLS"},
				"default_duration_hours": 6,
				"immediate_causes":       []string{"ER", "IC", "MC"},
				"eas_activation":         true,
			},
			"FL.W": map[string]any{
				"headline":               "FLOOD WARNING",
				"pils":                   []string{"FLW", "FLS"},
				"default_duration_hours": 24,
				"point_based":            true,
				"immediate_causes":       []string{"ER", "SM", "DM"},
				"eas_activation":         true,
			},
			"HY.S": map[string]any{
				"headline":    "HYDROLOGIC STATEMENT",
				"pils":        []string{"FLS"},
				"point_based": true,
			},
		},
		"site_info": map[string]any{
			"site_id":   site,
			"full_name": "NWS Demo Office",
			"city":      "Ruskin",
			"state":     "FL",
			"wmo_node":  "WGUS52",
		},
		"area_dictionary": map[string]any{
			"FLC017": map[string]string{"name": "Citrus", "state": "FL", "time_zone": "America/New_York"},
			"FLC053": map[string]string{"name": "Hernando", "state": "FL", "time_zone": "America/New_York"},
		},
		"ctas": map[string]any{
			"turnAround": "Turn around, don't drown when encountering flooded roads.",
		},
	}

	for name, table := range tables {
		data, err := yaml.Marshal(table)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		path := filepath.Join(root, "base", name+".yaml")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		fmt.Printf("wrote %s\n", path)
	}
	return nil
}
