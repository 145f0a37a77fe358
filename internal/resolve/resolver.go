package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"k8s.io/utils/clock"

	"github.com/systmms/rolecreds/internal/config"
	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/internal/metrics"
	"github.com/systmms/rolecreds/internal/providers"
	"github.com/systmms/rolecreds/pkg/credentials"
	"github.com/systmms/rolecreds/pkg/rotation"
)

// ErrNoSource is returned by Select when no source is configured or every
// configured source failed to build.
var ErrNoSource = errors.New("no credentials source available")

// DefaultDevDurationSeconds is the dev role session length.
const DefaultDevDurationSeconds = 3600

// Options configures a Resolver. Only Config is required.
type Options struct {
	// Config is consulted for the recognized keys.
	Config config.Source

	// Fetch retrieves endpoint documents. Defaults to an HTTPFetcher built
	// from Config.
	Fetch providers.FetchFunc

	// DevInvoker assumes the dev role. Defaults to the AWS CLI.
	DevInvoker providers.InvokeFunc

	// EnableDevSource turns on the dev role source in builds without the
	// rolecredsdebug tag.
	EnableDevSource bool

	LeadTime     time.Duration
	FetchTimeout time.Duration
	Clock        clock.Clock
	Logger       *logging.Logger
	Metrics      *metrics.RotationMetrics

	// NewStatic builds the static provider. Defaults to
	// credentials.NewStaticProvider.
	NewStatic func(credentials.Credentials) (credentials.Provider, error)

	// DevDurationSeconds defaults to DefaultDevDurationSeconds.
	DevDurationSeconds int32

	// OnRotate and OnRotationFailure are passed to every rotation engine
	// the resolver builds. OnRotationFailure receives the engine's source.
	OnRotate          func(credentials.Snapshot)
	OnRotationFailure func(source string, err error)
}

// source is one entry of the selection chain.
type source struct {
	name    string
	keys    []string
	enabled bool
	applies func() bool
	build   func(ctx context.Context) (credentials.Provider, error)
}

// Resolver selects one credentials provider from configuration.
type Resolver struct {
	cfg         config.Source
	fetch       providers.FetchFunc
	fetchCloser io.Closer
	invoke      providers.InvokeFunc
	logger      *logging.Logger
	metrics     *metrics.RotationMetrics
	newStatic   func(credentials.Credentials) (credentials.Provider, error)
	engine      rotation.Config
	onFailure   func(source string, err error)
	devDuration int32
	sources     []source
}

// New creates a resolver.
func New(opts Options) *Resolver {
	if opts.Config == nil {
		opts.Config = config.Map{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(false, false)
	}

	r := &Resolver{
		cfg:         opts.Config,
		fetch:       opts.Fetch,
		invoke:      opts.DevInvoker,
		logger:      opts.Logger.Named("resolve"),
		metrics:     opts.Metrics,
		newStatic:   opts.NewStatic,
		devDuration: opts.DevDurationSeconds,
		engine: rotation.Config{
			Clock:        opts.Clock,
			LeadTime:     opts.LeadTime,
			FetchTimeout: opts.FetchTimeout,
			Logger:       opts.Logger,
			Metrics:      opts.Metrics,
			OnRotate:     opts.OnRotate,
		},
		onFailure: opts.OnRotationFailure,
	}
	if r.fetch == nil {
		fetcher := providers.NewHTTPFetcher(opts.Config)
		r.fetch = fetcher.Fetch
		r.fetchCloser = fetcher
	}
	if r.invoke == nil {
		r.invoke = providers.NewCLIInvoker(nil, opts.Logger).Invoke
	}
	if r.newStatic == nil {
		r.newStatic = func(creds credentials.Credentials) (credentials.Provider, error) {
			return credentials.NewStaticProvider(creds)
		}
	}
	if r.devDuration == 0 {
		r.devDuration = DefaultDevDurationSeconds
	}

	r.sources = []source{
		{
			name:    providers.SourceEndpoint,
			keys:    []string{config.KeyRelativeURI},
			enabled: true,
			build:   r.buildEndpoint,
		},
		{
			name:    providers.SourceStatic,
			keys:    []string{config.KeyAccessKeyID, config.KeySecretAccessKey},
			enabled: true,
			build:   r.buildStatic,
		},
		{
			name:    providers.SourceDevRole,
			keys:    []string{config.KeyDevRoleARN},
			enabled: devSourceEnabled || opts.EnableDevSource,
			build:   r.buildDevRole,
		},
	}
	for i := range r.sources {
		s := &r.sources[i]
		s.applies = func() bool { return s.enabled && config.Has(r.cfg, s.keys...) }
	}
	return r
}

// Selection is the provider chosen by Select.
type Selection struct {
	Provider credentials.Provider
	Source   string
}

// Resolve returns the first source that is configured and builds, or false
// if there is none. Later sources are never evaluated once one succeeds.
func (r *Resolver) Resolve(ctx context.Context) (credentials.Provider, bool) {
	sel, err := r.Select(ctx)
	if err != nil {
		return nil, false
	}
	return sel.Provider, true
}

// Select is Resolve with the reasons sources were passed over. The error
// wraps ErrNoSource and every build failure.
func (r *Resolver) Select(ctx context.Context) (Selection, error) {
	var errs *multierror.Error

	for _, s := range r.sources {
		if !s.applies() {
			r.logger.Debug("Skipping %s credentials: not configured", s.name)
			continue
		}

		p, err := s.build(ctx)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.name, err))
			r.metrics.RecordFallthrough(s.name)
			r.logger.Info("Falling through from %s credentials", s.name)
			continue
		}

		r.metrics.RecordSelection(s.name)
		r.logger.Debug("Selected %s credentials", s.name)
		return Selection{Provider: p, Source: s.name}, nil
	}

	if err := errs.ErrorOrNil(); err != nil {
		r.logger.Debug("No credentials source selected: %v", err)
		return Selection{}, fmt.Errorf("%w: %w", ErrNoSource, err)
	}
	return Selection{}, ErrNoSource
}

// PlannedSource describes how a source would be treated by Select.
type PlannedSource struct {
	Name    string
	Keys    []string
	Enabled bool
	Applies bool
}

// Plan reports each source in priority order without building any.
func (r *Resolver) Plan() []PlannedSource {
	plan := make([]PlannedSource, 0, len(r.sources))
	for _, s := range r.sources {
		plan = append(plan, PlannedSource{
			Name:    s.name,
			Keys:    s.keys,
			Enabled: s.enabled,
			Applies: s.applies(),
		})
	}
	return plan
}

func (r *Resolver) engineConfig(label string, retriever credentials.Retriever) rotation.Config {
	cfg := r.engine
	cfg.Label = label
	cfg.Retriever = retriever
	if r.onFailure != nil {
		cfg.OnFailure = func(err error) { r.onFailure(label, err) }
	}
	return cfg
}

func (r *Resolver) buildEndpoint(ctx context.Context) (credentials.Provider, error) {
	path, _ := config.Value(r.cfg, config.KeyRelativeURI)

	retriever := providers.NewEndpointRetriever(r.fetch, path)
	retriever.Closer = r.fetchCloser

	engine, err := rotation.New(r.engineConfig(providers.SourceEndpoint, retriever))
	if err != nil {
		return nil, err
	}
	if err := engine.Start(ctx); err != nil {
		engine.Stop()
		return nil, explainTimeout(err, providers.SourceEndpoint)
	}
	return engine, nil
}

func (r *Resolver) buildStatic(context.Context) (credentials.Provider, error) {
	keyID, _ := config.Value(r.cfg, config.KeyAccessKeyID)
	secret, _ := config.Value(r.cfg, config.KeySecretAccessKey)
	token, _ := config.Value(r.cfg, config.KeySessionToken)

	return r.newStatic(credentials.Credentials{
		AccessKeyID:     keyID,
		SecretAccessKey: secret,
		SessionToken:    token,
	})
}

// buildDevRole invokes the dev fallback once and hands the result to an
// engine that re-invokes it if the credentials expire.
func (r *Resolver) buildDevRole(ctx context.Context) (credentials.Provider, error) {
	roleARN, _ := config.Value(r.cfg, config.KeyDevRoleARN)

	retriever := &providers.DevRoleRetriever{
		Invoke:          r.invoke,
		RoleARN:         roleARN,
		DurationSeconds: r.devDuration,
	}

	timeout := r.engine.FetchTimeout
	if timeout == 0 {
		timeout = rotation.DefaultFetchTimeout
	}
	invokeCtx, cancel := context.WithTimeout(ctx, timeout)
	snapshot, err := retriever.Retrieve(invokeCtx)
	cancel()
	if err != nil {
		r.logger.Error("Dev role credentials failed: %v", err)
		return nil, explainTimeout(err, providers.SourceDevRole)
	}

	engine, err := rotation.New(r.engineConfig(providers.SourceDevRole, retriever))
	if err != nil {
		return nil, err
	}
	engine.StartWith(snapshot)
	r.logger.Warn("Using dev role credentials for %s", roleARN)
	return engine, nil
}

// DevSourceCompiledIn reports whether the binary was built with the
// rolecredsdebug tag.
func DevSourceCompiledIn() bool {
	return devSourceEnabled
}
