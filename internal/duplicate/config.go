package duplicate

import (
	"strings"
	"time"

	"atelier/internal/model"

	"go.uber.org/zap"
)

// Config is everything a Controller needs to know about one resource.
type Config struct {
	Resource string
	Routes   Routes

	OnSuccess   func(id int64)
	OnError     func(model.FieldErrors)
	OnUndoError func(error)
	OnChange    func(Snapshot)

	Navigator Navigator
	Logger    *zap.Logger
	// Timeout bounds each remote call; zero disables the bound.
	Timeout time.Duration
}

type Option func(*builder)

type builder struct {
	table       RouteTable
	onSuccess   func(int64)
	onError     func(model.FieldErrors)
	onUndoError func(error)
	onChange    func(Snapshot)
	nav         Navigator
	logger      *zap.Logger
	timeout     time.Duration
}

func WithOnSuccess(fn func(id int64)) Option {
	return func(b *builder) { b.onSuccess = fn }
}

func WithOnError(fn func(model.FieldErrors)) Option {
	return func(b *builder) { b.onError = fn }
}

func WithOnUndoError(fn func(error)) Option {
	return func(b *builder) { b.onUndoError = fn }
}

// WithOnChange registers a listener for every state change. Snapshots arrive
// in transition order; one overtaken by a newer snapshot is dropped. The
// listener may read the controller but must not drive it.
func WithOnChange(fn func(Snapshot)) Option {
	return func(b *builder) { b.onChange = fn }
}

func WithNavigator(n Navigator) Option {
	return func(b *builder) { b.nav = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *builder) { b.logger = l }
}

func WithTimeout(d time.Duration) Option {
	return func(b *builder) { b.timeout = d }
}

// WithRoutes replaces the conventional route table.
func WithRoutes(t RouteTable) Option {
	return func(b *builder) { b.table = t }
}

// NewConfig derives the workflow config for resource. Unset callbacks fall
// back to: success reloads the current view, errors are logged, undo errors
// are logged as warnings.
func NewConfig(resource string, opts ...Option) (Config, error) {
	resource = strings.TrimSpace(resource)
	b := builder{}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	if b.table == nil {
		b.table = ConventionalRoutes()
	}
	r, err := b.table.Lookup(resource)
	if err != nil {
		return Config{}, err
	}
	if b.nav == nil {
		b.nav = NopNavigator{}
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	logger := b.logger.With(zap.String("resource", resource))

	cfg := Config{
		Resource:    resource,
		Routes:      r,
		OnSuccess:   b.onSuccess,
		OnError:     b.onError,
		OnUndoError: b.onUndoError,
		OnChange:    b.onChange,
		Navigator:   b.nav,
		Logger:      logger,
		Timeout:     b.timeout,
	}
	if cfg.OnSuccess == nil {
		nav := b.nav
		cfg.OnSuccess = func(int64) { nav.Reload() }
	}
	if cfg.OnError == nil {
		cfg.OnError = func(errs model.FieldErrors) {
			logger.Error("duplicate failed", zap.Any("errors", map[string]string(errs)))
		}
	}
	if cfg.OnUndoError == nil {
		cfg.OnUndoError = func(err error) {
			logger.Warn("undo delete failed; the copy may still exist", zap.Error(err))
		}
	}
	return cfg, nil
}

// DuplicateEndpoint is the remote duplicate target for source record id.
func (c Config) DuplicateEndpoint(id int64) Endpoint { return c.Routes.Duplicate(id) }

// EditLocation is where "edit the copy" navigates to.
func (c Config) EditLocation(id int64) Location { return c.Routes.Edit(id) }
