package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wifi-bridge/internal/api"
	"wifi-bridge/internal/ble"
	"wifi-bridge/internal/bridge"
	"wifi-bridge/internal/config"
	"wifi-bridge/internal/logging"
	"wifi-bridge/internal/obfuscate"
	"wifi-bridge/internal/provision"
	"wifi-bridge/internal/store"
	"wifi-bridge/internal/system"
	"wifi-bridge/internal/wifi"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "wifi-bridge",
	Short: "BLE WiFi provisioning bridge",
	Long: `A device-side agent that receives WiFi credentials from a companion
app over Bluetooth LE, persists them, and maintains a connection to the
stronger of two configured access points, publishing the connection status
back to the app.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := logging.Initialize(cfg.LogLevel)
	if err := logging.SetupFileLogging(logger, cfg.LogFile); err != nil {
		return fmt.Errorf("failed to set up file logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	station, name, err := buildStation(cfg, logger)
	if err != nil {
		return err
	}
	logger.WithField("device_name", name).Info("Starting wifi-bridge")

	st, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	scanner := wifi.NewScanner(station, logger)
	handler := provision.NewHandler(
		provision.Config{
			StaleAfter:   cfg.ScanStaleness(),
			PollInterval: cfg.ListPollInterval(),
			PollAttempts: cfg.ListPollAttempts,
			ListLimit:    cfg.ListLimit,
		},
		st,
		scanner,
		station,
		system.NewLinuxRestarter(logger),
		name,
		logger,
	)

	peripheral, err := buildPeripheral(ctx, cfg, name, handler, logger)
	if err != nil {
		return err
	}

	ctrl := bridge.NewController(
		st, scanner, station, peripheral, logger,
		bridge.WithNotifyPeriod(cfg.NotifyPeriod()),
		bridge.WithConnectWait(cfg.ConnectWait()),
	)
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Stop()

	if err := peripheral.StartAdvertising(ctx); err != nil {
		return err
	}
	defer peripheral.StopAdvertising()

	if cfg.APIEnabled {
		srv := api.NewServer(cfg.APIAddr(), ctrl, scanner, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// buildStation constructs the configured station backend and derives the
// device name from its hardware address.
func buildStation(cfg *config.Config, logger *logrus.Logger) (wifi.Station, string, error) {
	switch cfg.Station {
	case "simulator":
		return wifi.NewSimulator(), obfuscate.DeviceName(cfg.DeviceNamePrefix, localHardwareAddr()), nil
	default:
		station, err := wifi.NewNMStation(logger, cfg.ScanTimeout())
		if err != nil {
			return nil, "", fmt.Errorf("failed to set up wifi station: %w", err)
		}
		mac, err := station.HardwareAddr()
		if err != nil {
			return nil, "", fmt.Errorf("failed to derive device name: %w", err)
		}
		return station, obfuscate.DeviceName(cfg.DeviceNamePrefix, mac), nil
	}
}

// buildPeripheral picks the radio implementation. The simulator backend
// runs headless with a fake peripheral for development machines.
func buildPeripheral(ctx context.Context, cfg *config.Config, name string, handler *provision.Handler, logger *logrus.Logger) (ble.Peripheral, error) {
	if cfg.Station == "simulator" {
		return ble.NewFakePeripheral(), nil
	}
	return ble.NewLinuxPeripheral(ctx, ble.Config{
		Name:              name,
		OnCredentialWrite: handler.HandleWrite,
		CredentialValue:   handler.HandleRead,
		ListValue:         handler.HandleListRead,
	}, logger)
}

// localHardwareAddr returns the MAC of the first non-loopback interface,
// falling back to a random address when none is available.
func localHardwareAddr() net.HardwareAddr {
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
				continue
			}
			return iface.HardwareAddr
		}
	}
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	mac, _ := net.ParseMAC(strings.Join([]string{
		raw[0:2], raw[2:4], raw[4:6], raw[6:8], raw[8:10], raw[10:12],
	}, ":"))
	return mac
}
