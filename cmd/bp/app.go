package main

import (
	"context"
	"fmt"
	"io"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/bloomplan/internal/client"
	"github.com/and161185/bloomplan/internal/config"
	"github.com/and161185/bloomplan/internal/errs"
	"github.com/and161185/bloomplan/internal/logging"
	"github.com/and161185/bloomplan/internal/model"
	"github.com/and161185/bloomplan/internal/plandraft"
	"github.com/and161185/bloomplan/internal/session"
)

// API is what the commands need from the plan service.
type API interface {
	plandraft.PlanAPI
	session.Remote
	Ping(ctx context.Context) error
	Register(ctx context.Context, username, password string) (uuid.UUID, error)
	CreatePlan(ctx context.Context, s model.Structure, r model.Recipient) (*model.Plan, error)
	ListPlans(ctx context.Context) ([]model.Plan, error)
	ActivatePlan(ctx context.Context, id uuid.UUID) (*model.Plan, error)
	Close() error
}

var _ API = (*client.Client)(nil)

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg  config.ClientConfig
	log  *zap.Logger
	sess *session.Service
	api  API

	dial    func(cfg config.ClientConfig, token client.TokenSource, log *zap.Logger) (API, error)
	closers []func()
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, log: zap.NewNop(), dial: dialClient}
}

func dialClient(cfg config.ClientConfig, token client.TokenSource, log *zap.Logger) (API, error) {
	return client.New(client.Options{
		Addr:      cfg.Addr,
		CACert:    cfg.CACert,
		Insecure:  cfg.Insecure,
		Plaintext: cfg.Plaintext,
		Token:     token,
		Logger:    log.Named("client"),
	})
}

type rootFlags struct {
	configFile  string
	envFile     string
	addr        string
	caCert      string
	insecure    bool
	plaintext   bool
	keyring     bool
	debug       bool
	quietPeriod string
	timeout     string
}

// setup loads configuration and wires logger, session and client.
func (a *app) setup(cmd *cobra.Command, f *rootFlags) error {
	cfg, err := config.LoadClient(f.configFile, f.envFile)
	if err != nil {
		return err
	}
	fl := cmd.Flags()
	if fl.Changed("addr") {
		cfg.Addr = f.addr
	}
	if fl.Changed("cacert") {
		cfg.CACert = f.caCert
	}
	if fl.Changed("insecure") {
		cfg.Insecure = f.insecure
	}
	if fl.Changed("plaintext") {
		cfg.Plaintext = f.plaintext
	}
	if fl.Changed("keyring") {
		cfg.Keyring = f.keyring
	}
	if fl.Changed("debug") {
		cfg.Debug = f.debug
	}
	if fl.Changed("quiet-period") {
		if cfg.QuietPeriod, err = parseDuration("quiet-period", f.quietPeriod); err != nil {
			return err
		}
	}
	if fl.Changed("timeout") {
		if cfg.Timeout, err = parseDuration("timeout", f.timeout); err != nil {
			return err
		}
	}
	a.cfg = cfg

	log, closeLog, err := logging.New(logging.Config{Debug: cfg.Debug, Dir: cfg.Dir})
	if err != nil {
		return err
	}
	a.log = log
	a.closers = append(a.closers, closeLog)

	var store session.Store = session.NewFileStore(cfg.Dir)
	if cfg.Keyring {
		if session.KeyringAvailable() {
			store = session.NewKeyringStore("")
		} else {
			log.Warn("os keyring unavailable, using token file")
		}
	}
	a.sess = session.New(nil, store, log.Named("session"))

	api, err := a.dial(cfg, a.sess.Token, log)
	if err != nil {
		return err
	}
	a.api = api
	a.sess.SetRemote(api)
	a.closers = append(a.closers, func() { _ = api.Close() })

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	a.closers = append(a.closers, cancel)
	cmd.SetContext(ctx)
	return nil
}

func (a *app) teardown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// requireLogin restores the stored session or fails when there is none.
func (a *app) requireLogin(ctx context.Context) (model.Profile, error) {
	p, ok, err := a.sess.Init(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: not logged in, run bp login", errs.ErrUnauthorized)
	}
	return p, nil
}

// openPlan logs in and loads planID into a new controller.
func (a *app) openPlan(ctx context.Context, planID string, opts ...plandraft.Option) (*plandraft.Controller, error) {
	id, err := parsePlanID(planID)
	if err != nil {
		return nil, err
	}
	if _, err := a.requireLogin(ctx); err != nil {
		return nil, err
	}
	opts = append([]plandraft.Option{plandraft.WithQuietPeriod(a.cfg.QuietPeriod)}, opts...)
	c := plandraft.New(ctx, a.api, a.log.Named("plandraft"), opts...)
	if err := c.Load(ctx, id); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func parsePlanID(s string) (uuid.UUID, error) {
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad plan id %q", errs.ErrValidation, s)
	}
	return id, nil
}

func newRootCmd(a *app) *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "bp",
		Short:         "Plan recurring flower deliveries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, f)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "YAML profile (default <config dir>/config.yaml)")
	pf.StringVar(&f.envFile, "env-file", ".env", "dotenv file")
	pf.StringVar(&f.addr, "addr", "", "server addr")
	pf.StringVar(&f.caCert, "cacert", "", "CA cert (PEM)")
	pf.BoolVar(&f.insecure, "insecure", false, "skip cert verify (dev)")
	pf.BoolVar(&f.plaintext, "plaintext", false, "no TLS (dev)")
	pf.BoolVar(&f.keyring, "keyring", false, "keep the session in the OS keyring")
	pf.BoolVar(&f.debug, "debug", false, "log debug output to stderr")
	pf.StringVar(&f.quietPeriod, "quiet-period", "", "price estimate debounce, e.g. 400ms")
	pf.StringVar(&f.timeout, "timeout", "", "command deadline, e.g. 30s")

	root.AddCommand(
		newVersionCmd(a),
		newPingCmd(a),
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newPlanCmd(a),
	)
	return root
}
