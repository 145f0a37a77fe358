package commands

import (
	"context"
	"time"

	"github.com/spf13/pflag"

	"github.com/systmms/rolecreds/internal/config"
	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/internal/metrics"
	"github.com/systmms/rolecreds/internal/notify"
	"github.com/systmms/rolecreds/internal/providers"
	"github.com/systmms/rolecreds/internal/resolve"
	"github.com/systmms/rolecreds/pkg/credentials"
	"github.com/systmms/rolecreds/pkg/exec"
)

// sourceFlags are the flags shared by every command that resolves
// credentials.
type sourceFlags struct {
	devInvoker      string
	enableDevSource bool
}

func (f *sourceFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.devInvoker, "dev-invoker", "", "Dev role invoker: cli or sdk (default from config)")
	flags.BoolVar(&f.enableDevSource, "enable-dev-source", false, "Allow the dev role source in this build")
}

// newResolver builds a resolver from the loaded settings. Rotation events
// are sent to events when it is non-nil.
func newResolver(ctx context.Context, cfg *config.Config, flags sourceFlags, m *metrics.RotationMetrics, events *notify.Manager) (*resolve.Resolver, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.DefaultSettings()
	}

	invoker := settings.DevInvoker
	if flags.devInvoker != "" {
		invoker = flags.devInvoker
	}

	opts := resolve.Options{
		Config:             cfg.Source(),
		EnableDevSource:    flags.enableDevSource,
		LeadTime:           settings.LeadTime,
		FetchTimeout:       settings.FetchTimeout,
		Logger:             cfg.Logger,
		Metrics:            m,
		DevDurationSeconds: settings.DevDurationSeconds,
	}
	if events != nil {
		opts.OnRotate = func(s credentials.Snapshot) {
			events.Send(notify.SnapshotEvent(notify.EventRotated, s, time.Now()))
		}
		opts.OnRotationFailure = func(source string, err error) {
			events.Send(notify.FailureEvent(source, err, time.Now()))
		}
	}

	switch invoker {
	case config.DevInvokerCLI, "":
		cli := providers.NewCLIInvoker(exec.DefaultExecutor(), cfg.Logger)
		cli.Profile = settings.Profile
		cli.Region = settings.Region
		opts.DevInvoker = cli.Invoke
	case config.DevInvokerSDK:
		// The SDK config is loaded on first use; invocations are sequential.
		var sdk *providers.STSInvoker
		opts.DevInvoker = func(ctx context.Context, roleARN string, durationSeconds int32) ([]byte, error) {
			if sdk == nil {
				invoker, err := providers.NewSTSInvoker(ctx, settings.Region, settings.Profile, cfg.Logger)
				if err != nil {
					return nil, err
				}
				sdk = invoker
			}
			return sdk.Invoke(ctx, roleARN, durationSeconds)
		}
	default:
		return nil, dserrors.ConfigError{
			Key:        "dev-invoker",
			Value:      invoker,
			Message:    "unknown dev invoker",
			Suggestion: "Use 'cli' or 'sdk'",
		}
	}

	return resolve.New(opts), nil
}

// newNotifier returns a started manager for the configured webhooks, or nil
// when there are none.
func newNotifier(ctx context.Context, cfg *config.Config, m *metrics.RotationMetrics) (*notify.Manager, error) {
	if cfg.Settings == nil || len(cfg.Settings.Notifications.Webhooks) == 0 {
		return nil, nil
	}

	manager := notify.NewManager(cfg.Settings.Notifications.QueueSize, cfg.Logger, m)
	for _, c := range cfg.Settings.Notifications.Webhooks {
		w, err := notify.NewWebhook(c)
		if err != nil {
			return nil, dserrors.ConfigError{Key: "notifications.webhooks", Value: c.Name, Message: err.Error()}
		}
		manager.Register(w)
	}
	manager.Start(ctx)
	return manager, nil
}

// noSourceError explains a failed selection.
func noSourceError(err error) error {
	return dserrors.UserError{
		Message:    "No credentials source available",
		Details:    err.Error(),
		Suggestion: suggestionFor(err),
		Err:        err,
	}
}

func suggestionFor(err error) string {
	if s := dserrors.Suggestion(err); s != "" {
		return s
	}
	return "Set AWS_CONTAINER_CREDENTIALS_RELATIVE_URI, or AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY. Run 'rolecreds resolve --plan' to inspect"
}
