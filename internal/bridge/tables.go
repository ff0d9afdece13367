package bridge

import (
	"fmt"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// Settings are the session-wide knobs read from settings.yaml.
type Settings struct {
	DefaultDurationHours  int    `koanf:"default_duration_hours"`
	PurgeWindowMinutes    int    `koanf:"purge_window_minutes"`
	SingleSegmentArealFLW bool   `koanf:"single_segment_areal_flw"`
	DefaultTimeZone       string `koanf:"default_time_zone"`
	MapCenter             struct {
		Lon float64 `koanf:"lon"`
		Lat float64 `koanf:"lat"`
	} `koanf:"map_center"`
}

// HazardType is one row of the hazard-type table, keyed by
// phen.sig or phen.sig.subType.
type HazardType struct {
	Headline        string   `koanf:"headline"`
	PILs            []string `koanf:"pils"`
	DefaultDuration int      `koanf:"default_duration_hours"`
	PointBased      bool     `koanf:"point_based"`
	ImmediateCauses []string `koanf:"immediate_causes"`
	EASActivation   bool     `koanf:"eas_activation"`
}

// AreaEntry names one UGC zone or county.
type AreaEntry struct {
	Name        string `koanf:"name"`
	State       string `koanf:"state"`
	TimeZone    string `koanf:"time_zone"`
	PartOfState string `koanf:"part_of_state"`
}

// SiteInfo identifies the issuing office.
type SiteInfo struct {
	SiteID      string   `koanf:"site_id"`
	FullName    string   `koanf:"full_name"`
	City        string   `koanf:"city"`
	State       string   `koanf:"state"`
	WMONode     string   `koanf:"wmo_node"`
	BackupSites []string `koanf:"backup_sites"`
}

// Settings returns the overlay-resolved session settings.
func (b *Bridge) Settings() (Settings, error) {
	b.mu.Lock()
	if b.settings != nil {
		s := *b.settings
		b.mu.Unlock()
		return s, nil
	}
	b.mu.Unlock()

	k, err := b.resolve("settings")
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	b.mu.Lock()
	b.settings = &s
	b.mu.Unlock()
	return s, nil
}

// HazardTypes returns the full hazard-type table keyed by hazard type.
func (b *Bridge) HazardTypes() (map[string]HazardType, error) {
	b.mu.Lock()
	if b.hazardTypes != nil {
		out := b.hazardTypes
		b.mu.Unlock()
		return out, nil
	}
	b.mu.Unlock()

	k, err := b.resolve("hazard_types")
	if err != nil {
		return nil, err
	}
	table := make(map[string]HazardType)
	if err := k.Unmarshal("", &table); err != nil {
		return nil, fmt.Errorf("parse hazard types: %w", err)
	}

	b.mu.Lock()
	b.hazardTypes = table
	b.mu.Unlock()
	return table, nil
}

// Metadata returns the hazard-type row for (phen, sig, subType). A missing
// subtyped entry falls back to the plain phen.sig row.
func (b *Bridge) Metadata(phen, sig, subType string) (HazardType, error) {
	table, err := b.HazardTypes()
	if err != nil {
		return HazardType{}, err
	}
	if subType != "" {
		if ht, ok := table[phen+"."+sig+"."+subType]; ok {
			return ht, nil
		}
	}
	if ht, ok := table[phen+"."+sig]; ok {
		return ht, nil
	}
	return HazardType{}, fmt.Errorf("%w: no hazard type entry for %s.%s (subtype %q)",
		domain.ErrConfigMissing, phen, sig, subType)
}

// ProductParts returns the configured part-name sequences by product id.
func (b *Bridge) ProductParts() (map[string][]string, error) {
	b.mu.Lock()
	if b.productParts != nil {
		out := b.productParts
		b.mu.Unlock()
		return out, nil
	}
	b.mu.Unlock()

	k, err := b.resolve("product_parts")
	if err != nil {
		return nil, err
	}
	table := make(map[string][]string)
	if err := k.Unmarshal("", &table); err != nil {
		return nil, fmt.Errorf("parse product parts: %w", err)
	}

	b.mu.Lock()
	b.productParts = table
	b.mu.Unlock()
	return table, nil
}

// AreaDictionary returns zone metadata keyed by UGC code.
func (b *Bridge) AreaDictionary() (map[string]AreaEntry, error) {
	b.mu.Lock()
	if b.areas != nil {
		out := b.areas
		b.mu.Unlock()
		return out, nil
	}
	b.mu.Unlock()

	k, err := b.resolve("area_dictionary")
	if err != nil {
		return nil, err
	}
	areas := make(map[string]AreaEntry)
	if err := k.Unmarshal("", &areas); err != nil {
		return nil, fmt.Errorf("parse area dictionary: %w", err)
	}

	b.mu.Lock()
	b.areas = areas
	b.mu.Unlock()
	return areas, nil
}

// CityLocation returns the [lon, lat] of a named city, if configured.
func (b *Bridge) CityLocation(name string) (domain.Coord, bool, error) {
	b.mu.Lock()
	cities := b.cities
	b.mu.Unlock()

	if cities == nil {
		k, err := b.resolve("city_locations")
		if err != nil {
			return domain.Coord{}, false, err
		}
		raw := make(map[string][]float64)
		if err := k.Unmarshal("", &raw); err != nil {
			return domain.Coord{}, false, fmt.Errorf("parse city locations: %w", err)
		}
		cities = make(map[string]domain.Coord, len(raw))
		for city, ll := range raw {
			if len(ll) == 2 {
				cities[city] = domain.Coord{ll[0], ll[1]}
			}
		}
		b.mu.Lock()
		b.cities = cities
		b.mu.Unlock()
	}

	coord, ok := cities[name]
	return coord, ok, nil
}

// SiteInfo returns the issuing-office identity.
func (b *Bridge) SiteInfo() (SiteInfo, error) {
	b.mu.Lock()
	if b.siteInfo != nil {
		s := *b.siteInfo
		b.mu.Unlock()
		return s, nil
	}
	b.mu.Unlock()

	k, err := b.resolve("site_info")
	if err != nil {
		return SiteInfo{}, err
	}
	var s SiteInfo
	if err := k.Unmarshal("", &s); err != nil {
		return SiteInfo{}, fmt.Errorf("parse site info: %w", err)
	}

	b.mu.Lock()
	b.siteInfo = &s
	b.mu.Unlock()
	return s, nil
}

// CallsToAction returns the call-to-action text table keyed by cta id.
func (b *Bridge) CallsToAction() (map[string]string, error) {
	b.mu.Lock()
	if b.ctas != nil {
		out := b.ctas
		b.mu.Unlock()
		return out, nil
	}
	b.mu.Unlock()

	k, err := b.resolve("ctas")
	if err != nil {
		return nil, err
	}
	ctas := make(map[string]string)
	if err := k.Unmarshal("", &ctas); err != nil {
		return nil, fmt.Errorf("parse call-to-action table: %w", err)
	}

	b.mu.Lock()
	b.ctas = ctas
	b.mu.Unlock()
	return ctas, nil
}
