package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Masterminds/semver"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"iwtui/cache"
	"iwtui/goiwd"
)

const (
	debugLogFile   = "iwtui-debug.log"
	minimumVersion = "1.0"
	appVersion     = "0.1.0"
	checkTimeout   = 5 * time.Second
)

var (
	flagBinary   string
	flagTimeout  time.Duration
	flagSettle   time.Duration
	flagLogFile  string
	flagLogLevel string
	flagNoCache  bool
	flagFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "iwtui",
	Short: "Terminal UI and CLI for iwd wireless networks",
	Long: `iwtui manages wireless devices and networks through iwd's iwctl utility.
Run without arguments for the interactive interface, or use one of the
subcommands for scripted use.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagBinary, "iwctl", goiwd.DefaultBinary, "iwctl binary to invoke")
	flags.DurationVar(&flagTimeout, "timeout", goiwd.DefaultCommandTimeout, "upper bound for a single iwctl invocation")
	flags.DurationVar(&flagSettle, "settle", goiwd.DefaultSettleDelay, "wait between triggering a change and reading it back")
	flags.StringVar(&flagLogFile, "log-file", "", "write logs to this file (TUI default: "+debugLogFile+")")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&flagFormat, "format", "table", "output format for subcommands (table, json)")
	rootCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "do not read or write the network snapshot cache")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(knownCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger. Without a file it writes to w.
func newLogger(path string, w io.Writer) (*logrus.Logger, func(), error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})

	level, err := logrus.ParseLevel(flagLogLevel)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid --log-level %q", flagLogLevel)
	}
	logger.SetLevel(level)

	if path == "" {
		logger.SetOutput(w)
		return logger, func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not open log file %s", path)
	}
	logger.SetOutput(f)
	return logger, func() { f.Close() }, nil
}

func newService(logger logrus.FieldLogger, onStatus func(goiwd.ConnectionState)) *goiwd.Service {
	return goiwd.New(goiwd.Config{
		Binary:         flagBinary,
		CommandTimeout: flagTimeout,
		SettleDelay:    flagSettle,
		Logger:         logger.WithField("system", "iwd"),
		OnStatus:       onStatus,
	})
}

// checkIwctlAvailable fails when iwctl cannot be run and warns when it is older than supported.
func checkIwctlAvailable(svc *goiwd.Service, log logrus.FieldLogger) error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	version, out := svc.Version(ctx)
	if !out.OK {
		if out.Failure == goiwd.ExecutionFailure {
			return out.Err()
		}
		log.Warnf("Could not determine iwctl version: %s", out.Message)
		return nil
	}

	constraint, err := semver.NewConstraint(">= " + minimumVersion)
	if err != nil {
		return errors.Wrap(err, "invalid minimum version constraint")
	}
	if !constraint.Check(version) {
		log.Warnf("iwctl %s is older than the supported minimum %s", version, minimumVersion)
		fmt.Fprintf(os.Stderr, "Warning: iwctl %s is older than %s, some commands may fail\n", version, minimumVersion)
	}
	log.Infof("Using %s", out.Message)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	logPath := flagLogFile
	if logPath == "" {
		logPath = debugLogFile
	}
	logger, closeLog, err := newLogger(logPath, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logger.WithField("system", "tui")

	var program *tea.Program
	svc := newService(logger, func(state goiwd.ConnectionState) {
		log.Infof("Status: %s", state)
		if program != nil {
			program.Send(statusChangedMsg{state: state})
		}
	})
	if err := checkIwctlAvailable(svc, log); err != nil {
		fmt.Fprintln(os.Stderr, "This application requires iwd to function.")
		return err
	}

	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "Warning: not running as root, some operations may require elevated privileges.")
		time.Sleep(2 * time.Second)
	}

	var snapshots *cache.Cache
	if !flagNoCache {
		snapshots, err = cache.Open(cache.DefaultPath())
		if err != nil {
			log.Warnf("Snapshot cache disabled: %v", err)
		} else {
			defer snapshots.Close()
		}
	}

	program = tea.NewProgram(initialModel(svc, snapshots, log), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return errors.Wrap(err, "error running application")
	}
	return nil
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Application crashed: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
