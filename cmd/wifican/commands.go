package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wifican/internal/client"
	"github.com/muurk/wifican/internal/config"
	"github.com/muurk/wifican/internal/discovery"
	"github.com/muurk/wifican/internal/logging"
	"github.com/muurk/wifican/internal/protocol"
	"github.com/muurk/wifican/internal/ui"
)

// Session flags
var (
	host         string
	port         int
	readTimeout  time.Duration
	dialAttempts int
	useTUI       bool
	discover     bool
	failFast     bool
)

// connectTips are shown when the gateway cannot be reached.
var connectTips = []string{
	"Join the gateway's WiFi access point (default address 192.168.42.1)",
	"Check the gateway is powered and its TCP server listens on port 10001",
	"Use --discover to look for gateways advertised over mDNS",
	"Use --dial-attempts to retry while the gateway is booting",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to a gateway and transmit periodic frames",
	Long: `Connect to the gateway, start one periodic transmitter per configured
message, and print everything the gateway sends back.

The session ends on Ctrl-C, when the gateway sends nothing for the read
timeout, or when the gateway closes the connection. All transmitters are
stopped before the program exits. The connection is not re-established.`,
	Example: `  # Run with the defaults (192.168.42.1:10001, two test frames)
  wifican run

  # Gateway on another address, give up after 3s of silence
  wifican run --host 10.0.0.7 --read-timeout 3s

  # Find the gateway with mDNS and show a live monitor
  wifican run --discover --tui

  # Use a custom message list
  wifican run --config ./bench.yaml --log-level debug`,
	RunE: runSession,
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&host, "host", "", "Gateway host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Gateway TCP port (overrides config)")
	cmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "Stop after this long without received data (overrides config)")
	cmd.Flags().IntVar(&dialAttempts, "dial-attempts", 0, "Connection attempts before giving up (overrides config)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Show a live monitor instead of plain output")
	cmd.Flags().BoolVar(&discover, "discover", false, "Find the gateway with mDNS unless --host is given")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "End the session when any transmitter fails to write")
}

func init() {
	addSessionFlags(runCmd)
}

// applySessionFlags copies explicitly set flags over the file values.
func applySessionFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Gateway.Host = host
	}
	if flags.Changed("port") {
		cfg.Gateway.Port = port
	}
	if flags.Changed("read-timeout") {
		cfg.Gateway.ReadTimeout = config.Duration(readTimeout)
	}
	if flags.Changed("dial-attempts") {
		cfg.Gateway.DialAttempts = dialAttempts
	}
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applySessionFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if discover && !cmd.Flags().Changed("host") {
		gw, err := findGateway(ctx, cmd.ErrOrStderr(), cfg)
		if err != nil {
			return err
		}
		cfg.Gateway.Host = gw.IP
		if !cmd.Flags().Changed("port") {
			cfg.Gateway.Port = gw.Port
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	sessCfg := client.FromConfig(cfg)
	sessCfg.FailFast = failFast

	if useTUI {
		return runMonitor(ctx, sessCfg)
	}
	return runPlain(ctx, cmd.OutOrStdout(), sessCfg)
}

func findGateway(ctx context.Context, out io.Writer, cfg *config.Config) (*discovery.Gateway, error) {
	scanner := discovery.NewScanner()
	scanner.ServiceType = cfg.Discovery.ServiceType
	scanner.Timeout = cfg.Discovery.Timeout.D()
	scanner.InstancePrefix = cfg.Discovery.InstancePrefix

	fmt.Fprintf(out, "Looking for a gateway (%s, timeout %s)...\n", scanner.ServiceType, scanner.Timeout)
	gw, err := scanner.First(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w. Use --host to specify the gateway manually", err)
	}
	fmt.Fprintf(out, "Found gateway: %s\n\n", gw)
	return gw, nil
}

func runPlain(ctx context.Context, out io.Writer, cfg client.Config) error {
	printer := ui.NewPrinter(out)

	sess, err := client.New(cfg, client.WithFormatter(ui.FormatReceived))
	if err != nil {
		return err
	}
	printer.PrintHeader(ui.SessionHeader("wifican run", cfg, sess.Stats()))

	if err := sess.Dial(ctx); err != nil {
		printer.PrintResult(ui.NewFailureResult("Connection failed", err, connectTips))
		return err
	}
	defer sess.Close()

	err = sess.Run(ctx, printer.Writer())
	return reportSession(printer, sess.Stats(), err)
}

func runMonitor(ctx context.Context, cfg client.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var program *tea.Program
	sess, err := client.New(cfg, client.WithOnReceive(func(data []byte) {
		program.Send(ui.ReceivedMsg{Data: append([]byte(nil), data...), At: time.Now()})
	}))
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(os.Stdout)
	if err := sess.Dial(ctx); err != nil {
		printer.PrintResult(ui.NewFailureResult("Connection failed", err, connectTips))
		return err
	}
	defer sess.Close()

	program = tea.NewProgram(ui.NewMonitor(cfg.Address(), sess.Stats, cancel), tea.WithContext(ctx))

	runDone := make(chan error, 1)
	go func() {
		err := sess.Run(ctx, nil)
		runDone <- err
		program.Send(ui.SessionEndedMsg{Err: err})
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logging.Warn("Monitor exited with error", zap.Error(err))
	}

	cancel()
	runErr := <-runDone
	return reportSession(printer, sess.Stats(), runErr)
}

// reportSession prints the closing summary. A session stopped by the user
// is a success.
func reportSession(printer *ui.Printer, stats client.Stats, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		r := ui.NewSuccessResult("Session stopped").
			AddDetail("Frames sent", strconv.FormatUint(stats.FramesSent, 10)).
			AddDetail("Bytes sent", strconv.FormatUint(stats.BytesSent, 10)).
			AddDetail("Bytes received", strconv.FormatUint(stats.BytesReceived, 10))
		for _, tx := range stats.Transmitters {
			r.AddDetail(tx.Name, strconv.FormatUint(tx.Sent, 10)+" frames")
		}
		printer.Newline()
		printer.PrintResult(r)
		return nil
	}

	var tips []string
	switch {
	case errors.Is(err, client.ErrReadTimeout):
		tips = []string{
			"The gateway sent nothing back; check it is attached to a CAN bus with traffic",
			"Raise --read-timeout for quiet buses",
		}
	case errors.Is(err, client.ErrConnectionClosed):
		tips = []string{"The gateway may have rebooted or reached its limit of 4 clients"}
	}
	printer.Newline()
	printer.PrintResult(ui.NewFailureResult("Session ended", err, tips).
		AddDetail("Frames sent", strconv.FormatUint(stats.FramesSent, 10)).
		AddDetail("Bytes received", strconv.FormatUint(stats.BytesReceived, 10)))
	return err
}

// Encode command and flags
var (
	encodeID       string
	encodeData     string
	encodeExtended bool
	encodeCandump  string
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the wire frame for a CAN message",
	Long: `Encode a CAN message in the gateway's text format and print it.

The identifier and payload are hexadecimal. The payload may contain
spaces, colons, dashes or dots between bytes. A message may instead be
given in candump notation with --candump.`,
	Example: `  wifican encode --id 0x456 --data 0806040200
  # :S456N0806040200;

  wifican encode --id 56789A --data "05 03 07 09" --extended
  # :X56789AN05030709;

  wifican encode --candump 0056789A#05030709
  # :X56789AN05030709;`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			msg protocol.Message
			err error
		)
		if encodeCandump != "" {
			msg, err = protocol.ParseCandump(encodeCandump)
		} else {
			msg, err = protocol.ParseMessageFields(encodeID, encodeData, encodeExtended)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg.String())
		return nil
	},
}

func init() {
	encodeCmd.Flags().StringVar(&encodeID, "id", "", "CAN identifier in hex (e.g., 0x456)")
	encodeCmd.Flags().StringVar(&encodeData, "data", "", "Payload bytes in hex (e.g., 0806040200)")
	encodeCmd.Flags().BoolVar(&encodeExtended, "extended", false, "Use a 29-bit extended identifier")
	encodeCmd.Flags().StringVar(&encodeCandump, "candump", "", "Message in candump notation (e.g., 456#0806040200)")
	encodeCmd.MarkFlagsOneRequired("id", "candump")
	encodeCmd.MarkFlagsMutuallyExclusive("id", "candump")
	encodeCmd.MarkFlagsMutuallyExclusive("extended", "candump")
}

var decodeCmd = &cobra.Command{
	Use:   "decode FRAME...",
	Short: "Print wire frames in candump notation",
	Long: `Decode gateway frames and print each one in candump notation, with
the frame type and payload length. Frames are accepted in either case.`,
	Example: `  wifican decode ":X1FFFFF22N010000;"
  # :X1FFFFF22N010000;  1FFFFF22#010000  extended  3 bytes`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, arg := range args {
			msg, err := protocol.Decode([]byte(arg))
			if err != nil {
				return err
			}
			dump, err := protocol.Candump(msg)
			if err != nil {
				return err
			}
			kind := "standard"
			if msg.Extended {
				kind = "extended"
			}
			fmt.Fprintf(out, "%s  %s  %s  %d bytes\n", msg, dump, kind, msg.DLC())
		}
		return nil
	},
}

// Scan command and flags
var (
	scanTimeout  int
	scanInstance string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover gateways on the local network",
	Long:  `Scan for CAN gateways using mDNS/DNS-SD discovery.`,
	Example: `  # Scan with default timeout
  wifican scan

  # Longer scan for busy networks
  wifican scan --timeout 15

  # Only gateways whose instance name starts with "bench"
  wifican scan --instance bench`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 5, "Scan timeout in seconds")
	scanCmd.Flags().StringVar(&scanInstance, "instance", "", "Only list instances whose name starts with this (overrides config)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	scanner := discovery.NewScanner()
	scanner.ServiceType = cfg.Discovery.ServiceType
	scanner.Timeout = time.Duration(scanTimeout) * time.Second
	scanner.InstancePrefix = cfg.Discovery.InstancePrefix
	if cmd.Flags().Changed("instance") {
		scanner.InstancePrefix = scanInstance
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning for %s gateways (timeout: %ds)...\n\n", scanner.ServiceType, scanTimeout)

	gateways, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(gateways) == 0 {
		fmt.Fprintln(out, "No gateways found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - The gateway may not advertise itself; try 'wifican run --host 192.168.42.1'")
		fmt.Fprintln(out, "  - Verify your computer is connected to the gateway's WiFi")
		fmt.Fprintln(out, "  - Try increasing --timeout for slower networks")
		return nil
	}

	fmt.Fprintf(out, "Found %d gateway(s):\n\n", len(gateways))
	for i, gw := range gateways {
		fmt.Fprintf(out, "%d. %s\n", i+1, gw.Instance)
		fmt.Fprintf(out, "   Host:    %s\n", gw.Hostname)
		fmt.Fprintf(out, "   Address: %s\n", gw.Address())
		if fw := gw.GetMetadata("version"); fw != "" {
			fmt.Fprintf(out, "   Version: %s\n", fw)
		}
		if len(gw.Metadata) > 0 {
			fmt.Fprintf(out, "   Metadata: %v\n", gw.Metadata)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Use 'wifican run --host <ip>' to start a session")
	return nil
}

// Config commands
var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(out, "# %s does not exist; showing defaults\n", path)
		} else {
			fmt.Fprintf(out, "# %s\n", path)
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
