// smbtc CLI
//
// A Modbus TCP read client for the four read function codes. Performs
// one-shot reads or periodic polling with an optional HTTP status
// surface and MQTT publishing.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/api"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/client"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/config"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/logger"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/metrics"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/modbus"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/poller"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/sink/mqtt"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/transport"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/transport/tcp"
	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	buildTime = "dev"
	gitCommit = "unknown"
)

var (
	cfgFile    string
	verbose    bool
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "smbtc",
		Short: "smbtc - Simple Modbus TCP read client",
		Long: `smbtc is a Modbus TCP client for the four read function codes:
coils, discrete inputs, holding registers and input registers.

It performs one-shot reads from the command line or polls a register
block periodically, optionally exposing an HTTP status API and
publishing samples to MQTT.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(
		newReadCmd(),
		newPollCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging applies the global flags to the process logger.
func setupLogging(cfg logger.Config) {
	if verbose {
		cfg.Level = "debug"
	}
	if jsonOutput {
		cfg.Format = "json"
	}
	logger.SetGlobal(logger.New(cfg))
}

// parseFunction accepts a function code number (1-4) or name.
func parseFunction(s string) (modbus.FunctionCode, error) {
	switch strings.ToLower(s) {
	case "coils", "coil":
		return modbus.FuncReadCoils, nil
	case "discrete", "discrete-inputs":
		return modbus.FuncReadDiscreteInputs, nil
	case "holding", "holding-registers":
		return modbus.FuncReadHoldingRegisters, nil
	case "input", "input-registers":
		return modbus.FuncReadInputRegisters, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil || !modbus.FunctionCode(n).IsSupported() {
		return 0, fmt.Errorf("unknown function %q (use 1-4, coils, discrete, holding or input)", s)
	}
	return modbus.FunctionCode(n), nil
}

// newReadCmd creates the read command.
func newReadCmd() *cobra.Command {
	var (
		host     string
		port     int
		unit     uint8
		function string
		address  uint16
		quantity uint16
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Perform a one-shot read",
		Long:  "Connect to a Modbus TCP server, perform one read and print the values.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(logger.Config{Level: "warn", Format: "text"})

			fc, err := parseFunction(function)
			if err != nil {
				return err
			}

			trCfg := transport.DefaultConfig()
			trCfg.Address = fmt.Sprintf("%s:%d", host, port)
			trCfg.ConnectTimeout = timeout
			trCfg.ReadTimeout = timeout
			trCfg.WriteTimeout = timeout

			tr, err := tcp.NewClient(trCfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := tr.Connect(ctx); err != nil {
				return fmt.Errorf("connect to %s: %w", trCfg.Address, err)
			}
			defer tr.Close()

			c := client.New(tr, unit)
			res, err := c.Read(ctx, fc, address, quantity)
			if err != nil {
				return err
			}

			return printResult(fc, address, res)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "server host")
	cmd.Flags().IntVar(&port, "port", 502, "server port")
	cmd.Flags().Uint8Var(&unit, "unit", 1, "unit identifier")
	cmd.Flags().StringVarP(&function, "function", "f", "holding", "function code (1-4 or coils/discrete/holding/input)")
	cmd.Flags().Uint16VarP(&address, "address", "a", 0, "starting address")
	cmd.Flags().Uint16VarP(&quantity, "quantity", "q", 1, "number of coils/registers")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	return cmd
}

// printResult writes a decoded result to stdout in text or JSON form.
func printResult(fc modbus.FunctionCode, address uint16, res *modbus.Result) error {
	if res.Exception != nil {
		// The exit code does not depend on the output format: a server
		// exception is a failed read in both text and JSON mode.
		if jsonOutput {
			json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
				"function":  fc.String(),
				"exception": res.Exception.Code.String(),
				"code":      uint8(res.Exception.Code),
			})
		}
		return fmt.Errorf("server rejected the read: %s (code 0x%02X)",
			res.Exception.Code.String(), uint8(res.Exception.Code))
	}

	if jsonOutput {
		out := map[string]interface{}{
			"function": fc.String(),
			"address":  address,
		}
		if fc.IsBitFunction() {
			out["bits"] = res.Bits
		} else {
			out["words"] = res.Words
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if fc.IsBitFunction() {
		for i, b := range res.Bits {
			v := 0
			if b {
				v = 1
			}
			fmt.Printf("%5d: %d\n", address+uint16(i), v)
		}
		return nil
	}
	for i, w := range res.Words {
		fmt.Printf("%5d: %d (0x%04X)\n", address+uint16(i), w, w)
	}
	return nil
}

// pollFlags holds the poll command's config-file overrides.
type pollFlags struct {
	interval   time.Duration
	apiListen  string
	mqttBroker string
	mqttTopic  string
}

// newPollCmd creates the poll command.
func newPollCmd() *cobra.Command {
	var flags pollFlags

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll a register block periodically",
		Long: `Poll a register block at a fixed interval using the device and poll
sections of the config file. Enables the HTTP status API and the MQTT
sink when configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(flags)
		},
	}

	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "poll interval (overrides config)")
	cmd.Flags().StringVar(&flags.apiListen, "api-listen", "", "enable the status API on this address")
	cmd.Flags().StringVar(&flags.mqttBroker, "mqtt-broker", "", "enable the MQTT sink with this broker URL")
	cmd.Flags().StringVar(&flags.mqttTopic, "mqtt-topic", "", "MQTT topic for samples")

	return cmd
}

// runPoll runs the poll loop until interrupted.
func runPoll(flags pollFlags) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg.Logging)

	// Flag overrides
	if flags.interval > 0 {
		cfg.Poll.Interval = config.Duration(flags.interval)
	}
	if flags.apiListen != "" {
		cfg.API.Enabled = true
		cfg.API.Listen = flags.apiListen
	}
	if flags.mqttBroker != "" {
		cfg.MQTT.Enabled = true
		cfg.MQTT.Broker = flags.mqttBroker
	}
	if flags.mqttTopic != "" {
		cfg.MQTT.Topic = flags.mqttTopic
	}

	tr, err := tcp.NewClient(cfg.Device.TransportConfig())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Device.Address, err)
	}
	defer tr.Close()
	metrics.SetConnected(true)
	defer metrics.SetConnected(false)

	c := client.New(tr, cfg.Device.UnitID)
	p := poller.New(c, poller.Target{
		Function: modbus.FunctionCode(cfg.Poll.Function),
		Address:  cfg.Poll.Address,
		Quantity: cfg.Poll.Quantity,
	}, cfg.Poll.Interval.Std())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(p, api.ServerConfig{Listen: cfg.API.Listen})
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
	}

	var sink *mqtt.Sink
	if cfg.MQTT.Enabled {
		sink, err = mqtt.NewSink(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QOS:      byte(cfg.MQTT.QOS),
		})
		if err != nil {
			return err
		}
		if err := sink.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect MQTT sink: %w", err)
		}
		defer sink.Close()
		sub := p.Subscribe()
		go func() {
			sink.Run(ctx, sub)
			p.Unsubscribe(sub)
		}()
	}

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}

	fmt.Println("smbtc is polling. Press Ctrl+C to stop.")

	<-sigCh
	fmt.Println("\nShutting down...")

	if err := p.Stop(); err != nil && !errors.Is(err, poller.ErrNotRunning) {
		fmt.Printf("Error stopping poller: %v\n", err)
	}
	if apiServer != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		if err := apiServer.Stop(shutCtx); err != nil {
			fmt.Printf("Error stopping status server: %v\n", err)
		}
	}

	fmt.Println("smbtc stopped.")
	return nil
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smbtc %s\n", version)
			fmt.Printf("  commit: %s\n", gitCommit)
			fmt.Printf("  built:  %s\n", buildTime)
		},
	}
}
