package cmd

import (
	"context"

	"github.com/grovetools/appshelf/cli"
	"github.com/grovetools/appshelf/config"
	"github.com/grovetools/appshelf/errors"
	"github.com/grovetools/appshelf/pkg/catalog"
	"github.com/grovetools/appshelf/pkg/daemon"
	"github.com/grovetools/appshelf/pkg/identity"
	"github.com/grovetools/appshelf/pkg/paths"
	"github.com/grovetools/appshelf/state"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runtime is everything a command needs to talk to the catalog.
type runtime struct {
	opts     cli.CommandOptions
	cfg      *config.Config
	logger   *logrus.Entry
	client   daemon.Client
	provider *identity.LocalProvider
	session  *catalog.Session
}

// openSession loads the configuration, connects to the store and starts a
// catalog session on the --path navigation path.
func openSession(cmd *cobra.Command) (*runtime, error) {
	opts := cli.GetOptions(cmd)
	logger := cli.GetLogger(cmd)

	cfg, err := config.LoadOrDefault(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	client, err := daemon.New(cfg)
	if err != nil {
		return nil, err
	}
	logger.WithField("daemon", client.IsRunning()).Debug("Store client ready")

	var st *state.File
	if cfg.PersistIdentity() {
		st = state.Open(paths.StateFilePath())
	}
	provider := identity.NewLocalProvider(identity.Options{
		State:       st,
		TokenSecret: cfg.Identity.TokenSecret,
	})

	session := catalog.NewSession(catalog.Options{
		Tenant: cfg.Tenant,
		Credentials: catalog.Credentials{
			Username: cfg.Admin.Username,
			Password: cfg.Admin.Password,
		},
		Path:     opts.Path,
		Token:    cfg.Identity.Token,
		Provider: provider,
		Store:    client,
		Logger:   logger,
	})
	session.Start(cmd.Context())

	return &runtime{
		opts:     opts,
		cfg:      cfg,
		logger:   logger,
		client:   client,
		provider: provider,
		session:  session,
	}, nil
}

func (r *runtime) Close() {
	r.session.Close()
	if err := r.provider.Close(); err != nil {
		r.logger.WithError(err).Debug("Failed to close identity provider")
	}
	if err := r.client.Close(); err != nil {
		r.logger.WithError(err).Debug("Failed to close store client")
	}
}

// timeout returns a context bounded by --timeout.
func (r *runtime) timeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.opts.Timeout)
}

// awaitCatalog waits for the identity and the first catalog snapshot.
func (r *runtime) awaitCatalog(ctx context.Context) (catalog.View, error) {
	ctx, cancel := r.timeout(ctx)
	defer cancel()
	v, err := r.session.Await(ctx, func(v catalog.View) bool {
		return v.ProviderErr != nil || (v.Identity.Ready && !v.Loading)
	})
	if err != nil {
		return v, signInOr(v, err)
	}
	if v.ProviderErr != nil {
		return v, v.ProviderErr
	}
	return v, v.CatalogErr
}

// awaitIdentity waits until the session has a user id.
func (r *runtime) awaitIdentity(ctx context.Context) (catalog.View, error) {
	ctx, cancel := r.timeout(ctx)
	defer cancel()
	v, err := r.session.Await(ctx, func(v catalog.View) bool {
		return v.ProviderErr != nil || v.Identity.Ready
	})
	if err != nil {
		return v, signInOr(v, err)
	}
	return v, v.ProviderErr
}

// awaitMessages waits for the first messages snapshot. Admin mode only.
func (r *runtime) awaitMessages(ctx context.Context) (catalog.View, error) {
	ctx, cancel := r.timeout(ctx)
	defer cancel()
	v, err := r.session.Await(ctx, func(v catalog.View) bool {
		return v.ProviderErr != nil || v.MessagesLoaded || v.MessagesErr != nil
	})
	if err != nil {
		return v, signInOr(v, err)
	}
	if v.ProviderErr != nil {
		return v, v.ProviderErr
	}
	return v, v.MessagesErr
}

// signInOr explains a timed-out wait by the sign-in failure when there was one.
func signInOr(v catalog.View, err error) error {
	if !v.Identity.Ready && v.SignInErr != nil {
		return errors.ProviderFailed("sign in", v.SignInErr)
	}
	return err
}
