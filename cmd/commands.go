package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"iwtui/goiwd"
)

var (
	connectDevice        string
	connectPasswordStdin bool
	statusDetails        bool
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List wireless devices",
	Args:  cobra.NoArgs,
	RunE: withService(func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error {
		if out := svc.RefreshDevices(ctx); !out.OK {
			return out.Err()
		}
		return printDevices(cmd.OutOrStdout(), svc.Devices())
	}),
}

var scanCmd = &cobra.Command{
	Use:   "scan [device]",
	Short: "Scan for networks and list them",
	Long:  `Scan for networks on the given device, or on the first station device when none is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: withService(func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error {
		if out := svc.RefreshDevices(ctx); !out.OK {
			return out.Err()
		}
		if out := svc.Scan(ctx, optionalArg(args)); !out.OK {
			return out.Err()
		}
		return printNetworks(cmd.OutOrStdout(), svc.Networks())
	}),
}

var connectCmd = &cobra.Command{
	Use:   "connect <ssid>",
	Short: "Connect to a network and verify the connection",
	Args:  cobra.ExactArgs(1),
	RunE: withService(func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error {
		var password *string
		if connectPasswordStdin {
			pw, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			password = &pw
		}

		if out := svc.RefreshDevices(ctx); !out.OK {
			return out.Err()
		}
		return report(cmd.OutOrStdout(), svc.Connect(ctx, connectDevice, args[0], password))
	}),
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect [device]",
	Short: "Disconnect a device",
	Long:  `Disconnect the given device, or the device currently connected when none is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: withService(func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error {
		if out := svc.RefreshDevices(ctx); !out.OK {
			return out.Err()
		}
		device := optionalArg(args)
		if device == "" {
			status := svc.Status()
			if status.Phase != goiwd.PhaseConnected {
				return errors.New("not connected to any network")
			}
			device = status.Device
		}
		return report(cmd.OutOrStdout(), svc.Disconnect(ctx, device))
	}),
}

var powerCmd = &cobra.Command{
	Use:       "power <device> on|off",
	Short:     "Switch a device's radio on or off",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"on", "off"},
	RunE: withService(func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error {
		on, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		if out := svc.RefreshDevices(ctx); !out.OK {
			return out.Err()
		}
		if err := report(cmd.OutOrStdout(), svc.SetPower(ctx, args[0], on)); err != nil {
			return err
		}
		if out := svc.RefreshDevices(ctx); !out.OK {
			return out.Err()
		}
		return nil
	}),
}

var knownCmd = &cobra.Command{
	Use:   "known",
	Short: "List known networks",
	Args:  cobra.NoArgs,
	RunE: withService(func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error {
		if out := svc.RefreshKnownNetworks(ctx); !out.OK {
			return out.Err()
		}
		return printKnownNetworks(cmd.OutOrStdout(), svc.KnownNetworks())
	}),
}

var forgetCmd = &cobra.Command{
	Use:   "forget <ssid>",
	Short: "Remove a known network and its stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE: withService(func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error {
		if out := svc.RefreshKnownNetworks(ctx); !out.OK {
			return out.Err()
		}
		return report(cmd.OutOrStdout(), svc.Forget(ctx, args[0]))
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current connection state",
	Args:  cobra.NoArgs,
	RunE: withService(func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error {
		if out := svc.RefreshDevices(ctx); !out.OK {
			return out.Err()
		}
		status := svc.Status()

		var info *goiwd.LinkInfo
		if statusDetails && status.Phase == goiwd.PhaseConnected {
			var err error
			if info, err = goiwd.GetLinkInfo(status.Device); err != nil {
				return err
			}
		}
		return printStatus(cmd.OutOrStdout(), status, info)
	}),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: withService(func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "iwtui %s\n", appVersion)
		version, out := svc.Version(ctx)
		if !out.OK {
			return out.Err()
		}
		fmt.Fprintf(w, "%s %s\n", flagBinary, version)
		return nil
	}),
}

func init() {
	connectCmd.Flags().StringVar(&connectDevice, "device", "", "device to connect with (default: first station device)")
	connectCmd.Flags().BoolVar(&connectPasswordStdin, "password-stdin", false, "read the passphrase from the first line of stdin")
	statusCmd.Flags().BoolVar(&statusDetails, "details", false, "include live link details")
}

type serviceRunE func(ctx context.Context, svc *goiwd.Service, cmd *cobra.Command, args []string) error

// withService gives a subcommand a Service logging to stderr (or --log-file).
func withService(run serviceRunE) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		logger, closeLog, err := newLogger(flagLogFile, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeLog()
		if flagLogFile == "" && logger.GetLevel() == logrus.InfoLevel {
			// Keep stderr quiet unless asked for.
			logger.SetLevel(logrus.WarnLevel)
		}

		svc := newService(logger, nil)
		return run(cmd.Context(), svc, cmd, args)
	}
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, errors.Errorf("invalid power state %q (want on or off)", s)
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "could not read password from stdin")
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}

// report prints a successful outcome's message and turns a failed one into an error.
func report(w io.Writer, out goiwd.Outcome) error {
	if !out.OK {
		return out.Err()
	}
	if flagFormat == "json" {
		return writeJSON(w, out)
	}
	fmt.Fprintln(w, out.Message)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDevices(w io.Writer, devices []goiwd.Device) error {
	if flagFormat == "json" {
		return writeJSON(w, devices)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODE\tPOWERED\tSTATE\tNETWORK")
	for _, d := range devices {
		state := "disconnected"
		if d.Connected {
			state = "connected"
		}
		network, _ := d.NetworkName()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.Kind, onOff(d.Powered), state, dashIfEmpty(network))
	}
	return tw.Flush()
}

func printNetworks(w io.Writer, networks []goiwd.Network) error {
	if flagFormat == "json" {
		return writeJSON(w, networks)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SSID\tSECURITY\tSIGNAL\tCONNECTED\tKNOWN")
	for _, n := range networks {
		signal := "unknown"
		if !n.SignalUnknown {
			signal = fmt.Sprintf("-%d dBm", n.SignalStrength)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.SSID, n.Security, signal, yesNo(n.Connected), yesNo(n.Known))
	}
	return tw.Flush()
}

func printKnownNetworks(w io.Writer, known []goiwd.KnownNetwork) error {
	if flagFormat == "json" {
		return writeJSON(w, known)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSECURITY")
	for _, k := range known {
		fmt.Fprintf(tw, "%s\t%s\n", k.Name, k.Security)
	}
	return tw.Flush()
}

func printStatus(w io.Writer, status goiwd.ConnectionState, info *goiwd.LinkInfo) error {
	if flagFormat == "json" {
		return writeJSON(w, struct {
			State  string          `json:"state"`
			SSID   string          `json:"ssid,omitempty"`
			Device string          `json:"device,omitempty"`
			Link   *goiwd.LinkInfo `json:"link,omitempty"`
		}{status.Phase.String(), status.SSID, status.Device, info})
	}
	fmt.Fprintln(w, status)
	if info == nil {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  BSSID:\t%s\n", dashIfEmpty(info.BSSID))
	fmt.Fprintf(tw, "  Frequency:\t%d MHz\n", info.FrequencyMHz)
	fmt.Fprintf(tw, "  Signal:\t%d dBm\n", info.SignalDBm)
	fmt.Fprintf(tw, "  IPv4:\t%s\n", dashIfEmpty(info.NetV4))
	return tw.Flush()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
