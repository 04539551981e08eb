// Package dashboard renders the appliance's full screen page: one iframe per
// configured widget, laid out on a 1000x1000 unit grid scaled to the screen.
package dashboard

import (
	_ "embed"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
	"github.com/samber/oops"
)

var log = logger.GetHypefuseLogger()

const (
	SystemScope   = "system"
	DashboardBase = "dashboard"
	WidgetsScope  = "widgets"

	// GridUnits is the number of layout units spanning each screen axis.
	GridUnits = 1000
)

var (
	//go:embed dashboard_script.js
	reloadScript string

	//go:embed dashboard.html.tmpl
	pageSource string

	page = template.Must(template.New("dashboard").Parse(pageSource))
)

type Viewport struct {
	Width  int
	Height int
}

// ToPixels scales a point given in grid units.
func (v Viewport) ToPixels(x, y int64) (int, int) {
	return int(x * int64(v.Width) / GridUnits), int(y * int64(v.Height) / GridUnits)
}

// Widget is a placed bundle view, already scaled to pixels.
type Widget struct {
	Name   string
	UUID   string
	URL    string
	X      int
	Y      int
	Width  int
	Height int
}

// Source is the iframe location: the explicit URL or the bundle's index.
func (w Widget) Source() string {
	if w.URL != "" {
		return w.URL
	}
	return "/bundle/" + w.UUID + "/"
}

type Dashboard struct {
	defaults     config.DashboardConfig
	viewport     Viewport
	widgets      []Widget
	reload       bool
	pollInterval time.Duration
}

func New(cfg config.DashboardConfig) *Dashboard {
	return &Dashboard{
		defaults:     cfg,
		viewport:     Viewport{Width: cfg.ScreenWidth, Height: cfg.ScreenHeight},
		pollInterval: cfg.PollInterval,
	}
}

// Init reads the screen size from system/dashboard and the widget layout from
// every base of the widgets scope. Invalid widgets are logged and skipped. A
// page reload is requested so displays pick up the new layout.
func (d *Dashboard) Init(reg *configuration.Registry) {
	d.viewport = d.loadViewport(reg)
	d.widgets = nil
	for _, base := range reg.BasesOfBundle(WidgetsScope) {
		w, err := d.loadWidget(base)
		if err != nil {
			log.WithFields(logger.Fields{
				"at":   "(Dashboard).Init",
				"path": base.Path(),
			}).WithError(err).Error("invalid_widget_configuration")
			continue
		}
		d.widgets = append(d.widgets, w)
	}
	d.reload = true
	log.WithFields(logger.Fields{
		"at":      "(Dashboard).Init",
		"width":   d.viewport.Width,
		"height":  d.viewport.Height,
		"widgets": len(d.widgets),
	}).Info("dashboard_initialized")
}

func (d *Dashboard) loadViewport(reg *configuration.Registry) Viewport {
	fallback := Viewport{Width: d.defaults.ScreenWidth, Height: d.defaults.ScreenHeight}
	base, ok := reg.BaseOfBundle(SystemScope, DashboardBase)
	if !ok {
		log.WithField("at", "(Dashboard).loadViewport").Warn("dashboard_base_missing_using_defaults")
		return fallback
	}
	if err := configuration.DashboardSchema.Validate(base); err != nil {
		log.WithField("at", "(Dashboard).loadViewport").WithError(err).Warn("dashboard_base_invalid_using_defaults")
		return fallback
	}
	w, _ := base.GetInt64("screen_width")
	h, _ := base.GetInt64("screen_height")
	if w < 1 || h < 1 {
		log.WithFields(logger.Fields{
			"at":     "(Dashboard).loadViewport",
			"width":  w,
			"height": h,
		}).Warn("dashboard_screen_size_not_positive_using_defaults")
		return fallback
	}
	return Viewport{Width: int(w), Height: int(h)}
}

func (d *Dashboard) loadWidget(base *configuration.Base) (Widget, error) {
	if err := configuration.WidgetSchema.Validate(base); err != nil {
		return Widget{}, err
	}
	uuid, _ := base.GetString("uuid")
	if err := configuration.ValidateName(uuid); err != nil {
		return Widget{}, oops.Wrapf(err, "widget uuid")
	}
	url, _ := base.GetString("url")
	px, _ := base.GetInt64("position_x")
	py, _ := base.GetInt64("position_y")
	sw, _ := base.GetInt64("width")
	sh, _ := base.GetInt64("height")

	w := Widget{Name: filepath.Base(base.Path()), UUID: uuid, URL: url}
	w.X, w.Y = d.viewport.ToPixels(px, py)
	w.Width, w.Height = d.viewport.ToPixels(sw, sh)
	return w, nil
}

func (d *Dashboard) Viewport() Viewport { return d.viewport }

// Widgets returns a copy of the current layout.
func (d *Dashboard) Widgets() []Widget {
	out := make([]Widget, len(d.widgets))
	copy(out, d.widgets)
	return out
}

func (d *Dashboard) ReloadRequested() bool { return d.reload }

func (d *Dashboard) SetReloadRequested(reload bool) { d.reload = reload }

// Render produces the dashboard page and clears the pending reload request.
func (d *Dashboard) Render() (string, error) {
	var sb strings.Builder
	err := page.Execute(&sb, struct {
		Viewport   Viewport
		Widgets    []Widget
		PollMillis int64
		Script     template.JS
	}{
		Viewport:   d.viewport,
		Widgets:    d.widgets,
		PollMillis: d.pollInterval.Milliseconds(),
		Script:     template.JS(reloadScript),
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to render dashboard")
	}
	d.reload = false
	return sb.String(), nil
}
