package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wifican/internal/config"
	"github.com/muurk/wifican/internal/emulator"
	"github.com/muurk/wifican/internal/logging"
	"github.com/muurk/wifican/internal/protocol"
)

// Emulate command flags
var (
	emulateHost       string
	emulatePort       int
	emulateEcho       bool
	emulateMaxClients int
	emulateHeartbeat  time.Duration
	emulateTraffic    bool
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a local gateway emulator",
	Long: `Start a TCP server that behaves like the gateway firmware.

Frames a client sends are relayed to every other connected client, and a
version heartbeat (:X1FFFFF22N010000;) is broadcast every 500ms. With
--echo a client also receives its own frames, which lets a single
'wifican run' session see its transmissions come back.`,
	Example: `  # Emulate on the default port, accessible from localhost
  wifican emulate --host 127.0.0.1

  # In another terminal
  wifican run --host 127.0.0.1

  # Echo frames back and replay the configured messages as bus traffic
  wifican emulate --echo --traffic --log-level info`,
	Args: cobra.NoArgs,
	RunE: runEmulate,
}

func init() {
	emulateCmd.Flags().StringVar(&emulateHost, "host", "", "Address to bind (empty = all interfaces)")
	emulateCmd.Flags().IntVar(&emulatePort, "port", config.DefaultPort, "TCP port to listen on")
	emulateCmd.Flags().BoolVar(&emulateEcho, "echo", false, "Send each client its own frames as well")
	emulateCmd.Flags().IntVar(&emulateMaxClients, "max-clients", emulator.DefaultMaxClients, "Simultaneous clients accepted")
	emulateCmd.Flags().DurationVar(&emulateHeartbeat, "heartbeat", emulator.DefaultHeartbeatPeriod, "Heartbeat period (0 disables)")
	emulateCmd.Flags().BoolVar(&emulateTraffic, "traffic", false, "Broadcast the configured messages as bus traffic")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	cfg := emulator.DefaultConfig()
	cfg.Host = emulateHost
	cfg.Port = emulatePort
	cfg.Echo = emulateEcho
	cfg.MaxClients = emulateMaxClients
	cfg.HeartbeatPeriod = emulateHeartbeat

	if emulateTraffic {
		fileCfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Traffic = fileCfg.Messages
	}

	out := cmd.OutOrStdout()
	srv, err := emulator.New(cfg, emulator.WithOnFrame(func(from string, frame []byte, msg protocol.Message, err error) {
		if err != nil {
			logging.Debug("Malformed frame", zap.String("from", from), zap.Error(err))
		}
	}))
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Gateway emulator listening on %s\n", srv.Addr())
	fmt.Fprintf(out, "Clients: %d  Echo: %v  Heartbeat: %s  Traffic frames: %d\n",
		cfg.MaxClients, cfg.Echo, cfg.HeartbeatPeriod, len(cfg.Traffic))
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	if err := srv.Serve(ctx); err != nil {
		return err
	}

	st := srv.Stats()
	fmt.Fprintf(out, "\nStopped. Relayed %d frames (%d malformed), broadcast %d, rejected %d clients\n",
		st.Frames, st.Malformed, st.Broadcast, st.Rejected)
	return nil
}
