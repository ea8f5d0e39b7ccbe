package advisor

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	pluginName      = "dbbench:advisor"
	startedAtKey    = "dbbench:advisor:started_at"
	defaultConnName = "default"
)

// Plugin is a gorm plugin that records every executed statement into a
// Collector.
type Plugin struct {
	collector  Collector
	connection string
	now        func() time.Time
}

// NewPlugin creates a plugin recording into collector under the given
// connection name.
func NewPlugin(collector Collector, connection string) *Plugin {
	if connection == "" {
		connection = defaultConnName
	}

	return &Plugin{
		collector:  collector,
		connection: connection,
		now:        time.Now,
	}
}

// Ensure interface compliance.
var _ gorm.Plugin = (*Plugin)(nil)

// Name implements gorm.Plugin.
func (p *Plugin) Name() string {
	return pluginName
}

// Initialize implements gorm.Plugin.
func (p *Plugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	err := errors.Join(
		cb.Query().Before("gorm:query").Register(hookName("before", "query"), p.before),
		cb.Query().After("gorm:query").Register(hookName("after", "query"), p.after),
		cb.Row().Before("gorm:row").Register(hookName("before", "row"), p.before),
		cb.Row().After("gorm:row").Register(hookName("after", "row"), p.after),
		cb.Raw().Before("gorm:raw").Register(hookName("before", "raw"), p.before),
		cb.Raw().After("gorm:raw").Register(hookName("after", "raw"), p.after),
		cb.Create().Before("gorm:create").Register(hookName("before", "create"), p.before),
		cb.Create().After("gorm:create").Register(hookName("after", "create"), p.after),
		cb.Update().Before("gorm:update").Register(hookName("before", "update"), p.before),
		cb.Update().After("gorm:update").Register(hookName("after", "update"), p.after),
		cb.Delete().Before("gorm:delete").Register(hookName("before", "delete"), p.before),
		cb.Delete().After("gorm:delete").Register(hookName("after", "delete"), p.after),
	)
	if err != nil {
		return fmt.Errorf("registering callbacks: %w", err)
	}

	return nil
}

func hookName(phase, op string) string {
	return fmt.Sprintf("%s:%s_%s", pluginName, phase, op)
}

func (p *Plugin) before(db *gorm.DB) {
	if !p.collector.IsActive() {
		return
	}

	db.InstanceSet(startedAtKey, p.now())
}

func (p *Plugin) after(db *gorm.DB) {
	if db.Statement == nil || !p.collector.IsActive() {
		return
	}

	v, ok := db.InstanceGet(startedAtKey)
	if !ok {
		return
	}

	startedAt, ok := v.(time.Time)
	if !ok {
		return
	}

	sql := db.Statement.SQL.String()
	if sql == "" {
		return
	}

	event := QueryEvent{
		SQL:        sql,
		Bindings:   db.Statement.Vars,
		TimeMS:     float64(p.now().Sub(startedAt).Microseconds()) / 1000,
		Connection: p.connection,
	}

	if site, ok := CallSiteFromContext(db.Statement.Context); ok {
		event.CallSite = site
	} else {
		event.Backtrace = CaptureFrames(1)
	}

	p.collector.Record(event)
}
