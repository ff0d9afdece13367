// Package bridge is the unified read facade the rest of the system goes
// through for localization config, hazard metadata, and store handles.
// Config lookups resolve through a fixed overlay chain of levels; the
// deepest level that defines a key wins. Parsed results are cached per
// process until Flush.
package bridge

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/couchcryptid/hazard-services/internal/domain"
	"github.com/couchcryptid/hazard-services/internal/observability"
	"github.com/couchcryptid/hazard-services/internal/store"
)

// The overlay chain, shallowest first. Site, user, and workstation levels
// are parameterized by the bridge's identity; loading order means deeper
// files override shallower ones key by key.
var levels = []string{"base", "configured", "site", "user", "workstation"}

// Options identifies the session the bridge serves.
type Options struct {
	ConfigRoot  string // root of the overlay tree
	DataRoot    string // directory holding store files
	SiteID      string // e.g. KTBW
	User        string
	Workstation string
	Mode        domain.Mode
}

// Bridge resolves overlay config and hands out store handles. Safe for
// concurrent readers; Flush may run concurrently with lookups.
type Bridge struct {
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics

	events *store.EventStore
	vtec   map[domain.Mode]*store.VTECStore

	mu     sync.Mutex
	koanfs map[string]*koanf.Koanf // merged overlays, by config name

	// Parsed lookup results. All invalidate together on Flush.
	settings     *Settings
	hazardTypes  map[string]HazardType
	productParts map[string][]string
	areas        map[string]AreaEntry
	cities       map[string]domain.Coord
	siteInfo     *SiteInfo
	ctas         map[string]string
}

func New(opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Bridge, error) {
	if opts.ConfigRoot == "" || opts.DataRoot == "" {
		return nil, fmt.Errorf("%w: config and data roots are required", domain.ErrConfigMissing)
	}
	if opts.Mode == "" {
		opts.Mode = domain.ModeOperational
	}

	b := &Bridge{
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		koanfs:  make(map[string]*koanf.Koanf),
		vtec:    make(map[domain.Mode]*store.VTECStore),
	}
	b.events = store.NewEventStore(
		filepath.Join(opts.DataRoot, fmt.Sprintf("events.%s.json", opts.Mode)),
		logger, metrics)
	for _, mode := range []domain.Mode{domain.ModeOperational, domain.ModePractice, domain.ModeTest} {
		b.vtec[mode] = store.NewVTECStore(opts.DataRoot, mode, logger, metrics)
	}
	return b, nil
}

// Events returns the session's event store.
func (b *Bridge) Events() *store.EventStore { return b.events }

// VTEC returns the VTEC store for the given namespace. An unknown mode maps
// to the session's own namespace.
func (b *Bridge) VTEC(mode domain.Mode) *store.VTECStore {
	if s, ok := b.vtec[mode]; ok {
		return s
	}
	return b.vtec[b.opts.Mode]
}

// Mode returns the namespace this session writes into.
func (b *Bridge) Mode() domain.Mode { return b.opts.Mode }

// Flush drops every cached config and typed lookup. The next lookup
// re-reads the overlay files. All caches invalidate together so a lookup
// never mixes pre- and post-edit levels.
func (b *Bridge) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.koanfs = make(map[string]*koanf.Koanf)
	b.settings = nil
	b.hazardTypes = nil
	b.productParts = nil
	b.areas = nil
	b.cities = nil
	b.siteInfo = nil
	b.ctas = nil
	b.logger.Debug("bridge caches flushed")
}

// resolve loads the named config through the overlay chain, caching the
// merged result.
func (b *Bridge) resolve(name string) (*koanf.Koanf, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if k, ok := b.koanfs[name]; ok {
		return k, nil
	}

	// Hazard-type keys contain dots (FF.W.BurnScar), so the key delimiter
	// must be something that never appears in a config key.
	k := koanf.New("/")
	found := false
	for _, level := range levels {
		path := b.levelPath(level, name)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s level of %s: %w", level, name, err)
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("%w: no %s.yaml at any overlay level under %s",
			domain.ErrConfigMissing, name, b.opts.ConfigRoot)
	}

	b.koanfs[name] = k
	return k, nil
}

func (b *Bridge) levelPath(level, name string) string {
	switch level {
	case "base", "configured":
		return filepath.Join(b.opts.ConfigRoot, level, name+".yaml")
	case "site":
		if b.opts.SiteID == "" {
			return ""
		}
		return filepath.Join(b.opts.ConfigRoot, "site", b.opts.SiteID, name+".yaml")
	case "user":
		if b.opts.User == "" {
			return ""
		}
		return filepath.Join(b.opts.ConfigRoot, "user", b.opts.User, name+".yaml")
	case "workstation":
		if b.opts.Workstation == "" {
			return ""
		}
		return filepath.Join(b.opts.ConfigRoot, "workstation", b.opts.Workstation, name+".yaml")
	}
	return ""
}

