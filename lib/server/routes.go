package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/Lorinet/Hypefuse/lib/bundle"
	"github.com/Lorinet/Hypefuse/lib/config"
	"github.com/Lorinet/Hypefuse/lib/configuration"
	"github.com/Lorinet/Hypefuse/lib/server/httpproto"
	"github.com/Lorinet/Hypefuse/lib/system"
	"github.com/Lorinet/Hypefuse/lib/util/logger"
)

// handlerFunc serves one route. rest holds the path segments after the
// route name.
type handlerFunc func(req *httpproto.Request, rest []string) (*httpproto.Response, error)

// Router dispatches requests on the first path segment. Handlers touching
// the system hold its lock only while they run; the response is written
// after it is released.
type Router struct {
	sys    *system.System
	cfg    config.ServerConfig
	routes map[string]handlerFunc
}

func NewRouter(cfg config.ServerConfig, sys *system.System) *Router {
	r := &Router{sys: sys, cfg: cfg}
	r.routes = map[string]handlerFunc{
		"":                         r.serveRoot,
		"bundle":                   r.serveBundle,
		"config_get":               r.serveConfigGet,
		"config_set":               r.serveConfigSet,
		"config_create_base":       r.serveConfigCreateBase,
		"config_delete_base":       r.serveConfigDeleteBase,
		"config_all":               r.serveConfigAll,
		"dashboard":                r.serveDashboard,
		"reload_dashboard":         r.serveReloadDashboard,
		"trigger_reload_system":    r.serveTriggerReloadSystem,
		"trigger_reload_dashboard": r.serveTriggerReloadDashboard,
		"favicon.ico":              r.serveFavicon,
	}
	return r
}

// Dispatch produces the response for req or an error carrying its kind.
func (r *Router) Dispatch(req *httpproto.Request) (*httpproto.Response, error) {
	segments := req.Segments()
	handler, ok := r.routes[segments[0]]
	if !ok {
		return nil, httpproto.BadRequest("invalid request type: %s", segments[0])
	}
	resp, err := handler(req, segments[1:])
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

// classify attaches an error kind to failures from the domain packages.
func classify(err error) error {
	var he *httpproto.HTTPError
	if errors.As(err, &he) {
		return err
	}
	switch {
	case errors.Is(err, configuration.ErrBaseNotFound),
		errors.Is(err, configuration.ErrKeyNotFound),
		errors.Is(err, configuration.ErrBaseFileMissing),
		errors.Is(err, bundle.ErrFileNotFound):
		return httpproto.Wrap(httpproto.KindNotFound, err, "not found")
	case errors.Is(err, configuration.ErrInvalidName),
		errors.Is(err, configuration.ErrBaseExists),
		errors.Is(err, configuration.ErrUnsupportedValue),
		errors.Is(err, bundle.ErrPathEscapes):
		return httpproto.Wrap(httpproto.KindBadRequest, err, "rejected")
	default:
		return httpproto.ServerError(err)
	}
}

func (r *Router) serveRoot(*httpproto.Request, []string) (*httpproto.Response, error) {
	return httpproto.RedirectTo(r.cfg.RedirectTarget), nil
}

func (r *Router) serveFavicon(*httpproto.Request, []string) (*httpproto.Response, error) {
	return httpproto.OK(httpproto.ContentTypeIcon, nil), nil
}

func (r *Router) serveBundle(req *httpproto.Request, rest []string) (*httpproto.Response, error) {
	if len(rest) == 0 || rest[0] == "" {
		return nil, httpproto.BadRequest("missing bundle uuid")
	}
	uuid := rest[0]
	rel := strings.Join(rest[1:], "/")

	var b bundle.Bundle
	err := r.sys.Do(func(st *system.State) error {
		found, ok := st.Bundles.Get(uuid)
		if !ok {
			return httpproto.NotFound("bundle not found: %s", uuid)
		}
		b = *found
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Bundle files are not part of the guarded state.
	path, data, err := b.ReadFile(rel, r.cfg.IndexFile)
	if err != nil {
		return nil, err
	}
	return httpproto.OK(httpproto.ContentTypeFor(path), data), nil
}

func (r *Router) serveConfigGet(req *httpproto.Request, _ []string) (*httpproto.Response, error) {
	p, err := decodeParams[keyParams](req)
	if err != nil {
		return nil, err
	}
	if err := checkNames(req.Route, p.base()); err != nil {
		return nil, err
	}

	var body []byte
	err = r.sys.Do(func(st *system.State) error {
		base, ok := st.Registry.BaseOfBundle(p.UUID, p.Base)
		if !ok {
			return httpproto.NotFound("invalid configuration base: %s", p.Base)
		}
		data, ok := base.GetJSON(p.Key)
		if !ok {
			return httpproto.NotFound("invalid configuration key: %s", p.Key)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return httpproto.OK(httpproto.ContentTypeJSON, body), nil
}

func (r *Router) serveConfigSet(req *httpproto.Request, _ []string) (*httpproto.Response, error) {
	p, err := decodeParams[setParams](req)
	if err != nil {
		return nil, err
	}
	if err := checkNames(req.Route, p.base()); err != nil {
		return nil, err
	}
	value, err := configuration.ParseJSONValue(p.Value)
	if err != nil {
		return nil, httpproto.Wrap(httpproto.KindBadRequest,
			&ParamError{Invalid: []string{"value"}, Err: err}, "bad parameters for %s", req.Route)
	}

	err = r.sys.Do(func(st *system.State) error {
		base, ok := st.Registry.BaseOfBundle(p.UUID, p.Base)
		if !ok {
			return httpproto.NotFound("invalid configuration base: %s", p.Base)
		}
		if err := base.Set(p.Key, value); err != nil {
			return err
		}
		log.WithFields(logger.Fields{
			"at":   "(Router).serveConfigSet",
			"uuid": p.UUID,
			"base": p.Base,
			"key":  p.Key,
		}).Debug("configuration_value_set")
		return st.AfterChange(p.UUID)
	})
	if err != nil {
		return nil, err
	}
	return httpproto.Empty(), nil
}

func (r *Router) serveConfigCreateBase(req *httpproto.Request, _ []string) (*httpproto.Response, error) {
	p, err := decodeParams[baseParams](req)
	if err != nil {
		return nil, err
	}
	if err := checkNames(req.Route, p); err != nil {
		return nil, err
	}
	err = r.sys.Do(func(st *system.State) error {
		_, err := st.Registry.CreateBaseOfBundle(p.UUID, p.Base)
		return err
	})
	if err != nil {
		return nil, err
	}
	return httpproto.Empty(), nil
}

func (r *Router) serveConfigDeleteBase(req *httpproto.Request, _ []string) (*httpproto.Response, error) {
	p, err := decodeParams[baseParams](req)
	if err != nil {
		return nil, err
	}
	if err := checkNames(req.Route, p); err != nil {
		return nil, err
	}
	err = r.sys.Do(func(st *system.State) error {
		if err := st.Registry.DeleteBaseOfBundle(p.UUID, p.Base); err != nil {
			return err
		}
		return st.AfterChange(p.UUID)
	})
	if err != nil {
		return nil, err
	}
	return httpproto.Empty(), nil
}

func (r *Router) serveConfigAll(*httpproto.Request, []string) (*httpproto.Response, error) {
	var body []byte
	err := r.sys.Do(func(st *system.State) error {
		data, err := st.Registry.JSON()
		body = data
		return err
	})
	if err != nil {
		return nil, err
	}
	return httpproto.OK(httpproto.ContentTypeJSON, body), nil
}

func (r *Router) serveDashboard(*httpproto.Request, []string) (*httpproto.Response, error) {
	var page string
	err := r.sys.Do(func(st *system.State) error {
		html, err := st.Dashboard.Render()
		page = html
		return err
	})
	if err != nil {
		return nil, err
	}
	return httpproto.OK(httpproto.ContentTypeHTML, []byte(page)), nil
}

func (r *Router) serveReloadDashboard(*httpproto.Request, []string) (*httpproto.Response, error) {
	var pending bool
	_ = r.sys.Do(func(st *system.State) error {
		pending = st.Dashboard.ReloadRequested()
		return nil
	})
	return httpproto.OK(httpproto.ContentTypeJSON, []byte(strconv.FormatBool(pending))), nil
}

func (r *Router) serveTriggerReloadSystem(*httpproto.Request, []string) (*httpproto.Response, error) {
	if err := r.sys.Init(); err != nil {
		return nil, err
	}
	return httpproto.Empty(), nil
}

func (r *Router) serveTriggerReloadDashboard(*httpproto.Request, []string) (*httpproto.Response, error) {
	_ = r.sys.Do(func(st *system.State) error {
		st.Dashboard.SetReloadRequested(true)
		return nil
	})
	return httpproto.Empty(), nil
}
