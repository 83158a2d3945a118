package sight

import (
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"

	"github.com/aretw0/sight/internal/invariant"
	"github.com/aretw0/sight/internal/logging"
	"github.com/aretw0/sight/pkg/adapters/file"
	"github.com/aretw0/sight/pkg/app"
	"github.com/aretw0/sight/pkg/appconfig"
	"github.com/aretw0/sight/pkg/ports"
	"github.com/aretw0/sight/pkg/services"
)

// Launcher is the high-level entry point of the library. It loads configurations by id,
// parses them and runs them in a shared app.Context.
type Launcher struct {
	loader ports.ConfigLoader
	ctx    *app.Context
	fields map[string]string
	hooks  app.Hooks
	logger *slog.Logger
	Name   string
}

// Option defines a functional option for configuring the Launcher.
type Option func(*Launcher)

// WithLoader injects a custom ConfigLoader, bypassing the default directory loader.
func WithLoader(l ports.ConfigLoader) Option {
	return func(e *Launcher) {
		e.loader = l
	}
}

// WithContext runs the configurations in an existing context instead of a fresh one.
func WithContext(actx *app.Context) Option {
	return func(e *Launcher) {
		e.ctx = actx
	}
}

// WithFields sets the template fields substituted in every loaded configuration.
func WithFields(fields map[string]string) Option {
	return func(e *Launcher) {
		e.fields = maps.Clone(fields)
	}
}

// WithLifecycleHooks registers observability hooks on every launched manager.
func WithLifecycleHooks(hooks app.Hooks) Option {
	return func(e *Launcher) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the launcher.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Launcher) {
		e.logger = logger
	}
}

// New initializes a Launcher reading configurations from dir.
// If WithLoader option is provided, dir can be empty and is only used as a name.
// Without WithContext, a fresh context knowing the stock services is created.
func New(dir string, opts ...Option) (*Launcher, error) {
	l := &Launcher{}
	for _, opt := range opts {
		opt(l)
	}

	if l.loader == nil {
		if dir == "" {
			return nil, fmt.Errorf("dir is required when no custom loader is provided")
		}
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		l.Name = filepath.Base(absPath)
		l.loader = file.NewLoader(absPath)
	} else if dir != "" {
		l.Name = filepath.Base(dir)
	}

	if l.logger == nil {
		l.logger = logging.NewNop()
	}
	if l.Name != "" {
		l.logger = l.logger.With("project", l.Name)
	}

	if l.ctx == nil {
		l.ctx = app.NewContext(app.WithContextLogger(l.logger))
		services.Register(l.ctx.ServiceTypes)
	}
	return l, nil
}

// Context returns the context shared by the launched configurations.
func (l *Launcher) Context() *app.Context { return l.ctx }

// Loader returns the underlying ConfigLoader.
func (l *Launcher) Loader() ports.ConfigLoader { return l.loader }

// Load reads and parses the configuration id.
func (l *Launcher) Load(id string) (*appconfig.Config, error) {
	raw, err := l.loader.GetConfig(id)
	if err != nil {
		return nil, err
	}
	return appconfig.Parse(id, raw, l.fields)
}

// Manager loads id and builds its manager without creating anything.
func (l *Launcher) Manager(id string, opts ...app.Option) (*app.Manager, error) {
	cfg, err := l.Load(id)
	if err != nil {
		return nil, err
	}
	opts = append([]app.Option{app.WithLogger(l.logger), app.WithHooks(l.hooks)}, opts...)
	return app.NewManager(l.ctx, cfg, opts...), nil
}

// Launch loads id, then creates, starts and updates it. A configuration the manager rejects
// is reported as an error and the returned manager is destroyed.
func (l *Launcher) Launch(id string, opts ...app.Option) (m *app.Manager, err error) {
	m, err = l.Manager(id, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			v, ok := r.(*invariant.Violation)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("launch %s: %w", id, v)
			if m.State() != app.StateDestroyed {
				m.StopAndDestroy()
			}
		}
	}()
	m.Launch()
	l.logger.Info("configuration launched", "config", id, "manager", m.ID())
	return m, nil
}

// Close stops the workers of the context. Launched managers must be destroyed first.
func (l *Launcher) Close() {
	l.ctx.Close()
}
