// Command validate performs offline integrity checks on a session's store
// files and overlay configuration: event invariants, VTEC action-history
// consistency, orphaned records, etn collisions, and hazard-type coverage.
//
// Usage:
//
//	go run ./cmd/validate -data-dir /var/lib/hazard-services \
//	  -config-dir /etc/hazard-services -site KTBW
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/hazard-services/internal/bridge"
	"github.com/couchcryptid/hazard-services/internal/domain"
	"github.com/couchcryptid/hazard-services/internal/observability"
	"github.com/couchcryptid/hazard-services/internal/store"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "directory containing store files")
	configDir := flag.String("config-dir", "", "root of the overlay config tree (optional)")
	site := flag.String("site", "", "four-character office id")
	mode := flag.String("mode", "operational", "store namespace to validate")
	flag.Parse()

	if *dataDir == "" || len(*site) != 4 {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	events := store.NewEventStore(
		filepath.Join(*dataDir, fmt.Sprintf("events.%s.json", *mode)),
		logger, metrics)
	vtecStore := store.NewVTECStore(*dataDir, domain.Mode(*mode), logger, metrics)

	phases := []*phase{
		checkEvents(events),
		checkVTEC(vtecStore, events, *site),
	}
	if *configDir != "" {
		phases = append(phases, checkConfig(*configDir, *site, events, logger, metrics))
	}

	failed := false
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed = true
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if failed {
		os.Exit(1)
	}
}

// checkEvents validates every stored event version and the status order
// within each history (newer versions must not regress past terminal
// states).
func checkEvents(events *store.EventStore) *phase {
	p := &phase{name: "event store"}

	byID, err := events.GetByFilter(store.Filter{})
	if err != nil {
		p.errorf("read event store: %v", err)
		return p
	}

	for id, head := range byID {
		if err := head.Validate(); err != nil {
			p.errorf("event %s: %v", id, err)
		}
		history, err := events.GetByEventID(id)
		if err != nil {
			p.errorf("event %s history: %v", id, err)
			continue
		}
		// Histories are latest-first; walking backwards replays the
		// transitions in time order.
		for i := len(history) - 1; i > 0; i-- {
			older, newer := history[i], history[i-1]
			if older.Status.Terminal() && older.Status != newer.Status {
				p.errorf("event %s: transition %s -> %s after terminal status",
					id, older.Status, newer.Status)
			}
		}
	}
	return p
}

// checkVTEC verifies record histories: no actions after a terminal action,
// no duplicate NEW per key, every record's event exists, and actions belong
// to the expected office.
func checkVTEC(vtecStore *store.VTECStore, events *store.EventStore, site string) *phase {
	p := &phase{name: "vtec store"}

	all, err := vtecStore.AllRecords()
	if err != nil {
		p.errorf("read vtec store: %v", err)
		return p
	}
	byID, err := events.GetByFilter(store.Filter{})
	if err != nil {
		p.errorf("read event store: %v", err)
		return p
	}

	for key, versions := range all {
		news := 0
		for i := len(versions) - 1; i >= 0; i-- {
			r := versions[i]
			if r.Office != site {
				p.errorf("record %s: office %s does not match site %s", key, r.Office, site)
			}
			if r.Action == domain.ActionNew {
				news++
			}
			if i > 0 && r.Action.Terminal() {
				p.errorf("record %s: action %s after terminal %s",
					key, versions[i-1].Action, r.Action)
			}
			if r.EventID != "" {
				if _, ok := byID[r.EventID]; !ok {
					p.errorf("record %s: orphaned, event %s not in store", key, r.EventID)
				}
			}
		}
		if news > 1 {
			p.errorf("record %s: %d NEW actions on one etn", key, news)
		}
	}
	return p
}

// checkConfig verifies the overlay tree loads and that every stored hazard
// type has a metadata row.
func checkConfig(configDir, site string, events *store.EventStore, logger *slog.Logger, metrics *observability.Metrics) *phase {
	p := &phase{name: "overlay config"}

	b, err := bridge.New(bridge.Options{
		ConfigRoot: configDir,
		DataRoot:   os.TempDir(),
		SiteID:     site,
	}, logger, metrics)
	if err != nil {
		p.errorf("open bridge: %v", err)
		return p
	}

	if _, err := b.Settings(); err != nil {
		p.errorf("settings: %v", err)
	}
	if _, err := b.HazardTypes(); err != nil {
		p.errorf("hazard types: %v", err)
		return p
	}

	byID, err := events.GetByFilter(store.Filter{})
	if err != nil {
		p.errorf("read event store: %v", err)
		return p
	}
	for id, ev := range byID {
		if _, err := b.Metadata(ev.Phenomenon, ev.Significance, ev.SubType); err != nil {
			p.errorf("event %s: %v", id, err)
		}
	}
	return p
}
