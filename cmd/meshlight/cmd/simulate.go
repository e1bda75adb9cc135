package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/backkem/meshlight/pkg/capture"
	"github.com/backkem/meshlight/pkg/light"
	"github.com/backkem/meshlight/pkg/packet"
	"github.com/backkem/meshlight/pkg/simdevice"
	"github.com/backkem/meshlight/pkg/transport"
	"github.com/spf13/cobra"
)

// simulatedAddress is used when no lamp address is configured.
const simulatedAddress = "A4:C1:38:00:00:01"

// defaultScript runs when simulate is given no steps.
var defaultScript = []string{"power=on", "color=ff8000", "cbright=64", "white=7f", "temp=20", "query", "power=off"}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var (
		delay    time.Duration
		dropRate float64
	)

	cmd := &cobra.Command{
		Use:   "simulate [step...]",
		Short: "Pair with a simulated lamp and run commands against it",
		Long: `Pair with a simulated lamp over an in-memory link and run commands.

Steps:
  power=on|off      switch the lamp
  color=RRGGBB      set the RGB colour
  cbright=N         colour brightness (hex)
  white=N           white brightness (hex)
  temp=N            white temperature (hex)
  preset=N          start a built-in sequence (hex)
  mesh-id=N         assign a mesh id (decimal)
  query             request a status reply

Without steps a short demo script runs. Status notifications are printed as
they arrive; the capture setting records all traffic.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := args
			if len(steps) == 0 {
				steps = defaultScript
			}
			cmds := make([]light.Command, 0, len(steps))
			for _, s := range steps {
				c, err := parseStep(s)
				if err != nil {
					return err
				}
				cmds = append(cmds, c)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runSimulation(ctx, cmd.OutOrStdout(), opts, cmds, delay, dropRate)
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", 50*time.Millisecond, "Pause between steps")
	cmd.Flags().Float64Var(&dropRate, "drop-rate", 0, "Probability of losing a frame on the link (0.0 - 1.0)")
	return cmd
}

func runSimulation(ctx context.Context, out io.Writer, opts *rootOptions, cmds []light.Command, delay time.Duration, dropRate float64) error {
	cfg := opts.cfg
	factory := cfg.LoggerFactory()

	address := cfg.Device.Address
	if address == "" {
		address = simulatedAddress
	}

	var outMu sync.Mutex
	printf := func(format string, a ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format, a...)
	}

	dev, err := simdevice.New(simdevice.Config{
		Address:      address,
		MeshName:     cfg.Mesh.Name,
		MeshPassword: cfg.Mesh.Password,
		MeshID:       cfg.Device.MeshID,
		OnStateChange: func(s packet.Status) {
			printf("lamp:   %s\n", &s)
		},
		LoggerFactory: factory,
	})
	if err != nil {
		return err
	}

	pipe := transport.NewPipe()
	pipe.SetCondition(transport.NetworkCondition{DropRate: dropRate})
	central := transport.NewCentral(pipe.CentralConn(), transport.CentralConfig{LoggerFactory: factory})

	serveCtx, cancel := context.WithCancel(ctx)
	served := make(chan struct{})
	go func() {
		defer close(served)
		dev.Serve(serveCtx, pipe.PeripheralConn(), factory)
	}()
	defer func() {
		cancel()
		pipe.Close()
		<-served
		central.Close()
	}()

	connCfg := light.Config{
		Transport:     central,
		Address:       address,
		MeshName:      cfg.Mesh.Name,
		MeshPassword:  cfg.Mesh.Password,
		MeshID:        cfg.Device.MeshID,
		LoggerFactory: factory,
	}
	if cfg.Capture != "" {
		w, err := capture.NewFileWriter(cfg.Capture, address)
		if err != nil {
			return err
		}
		defer w.Close()
		connCfg.Recorder = w
		printf("capture: %s (session %s)\n", cfg.Capture, w.SessionID())
	}

	conn, err := light.NewConnection(connCfg)
	if err != nil {
		return err
	}

	stepCtx, stepCancel := context.WithTimeout(ctx, 5*time.Second)
	defer stepCancel()

	if err := conn.Pair(stepCtx); err != nil {
		return fmt.Errorf("pair: %w", err)
	}
	key, err := conn.SessionKey()
	if err != nil {
		return err
	}
	printf("paired: session key %s\n", hex.EncodeToString(key))

	var wg sync.WaitGroup
	watchCtx, stopWatch := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case pkt := <-central.Notifications():
				s, err := conn.HandleNotification(pkt)
				if err != nil {
					printf("notify: %v\n", err)
					continue
				}
				printf("notify: %s\n", s)
			case <-watchCtx.Done():
				return
			}
		}
	}()
	defer func() {
		stopWatch()
		wg.Wait()
	}()

	if err := conn.EnableNotifications(stepCtx); err != nil {
		return err
	}

	for _, c := range cmds {
		printf("send:   %s % x\n", c.Opcode, c.Data)
		if err := conn.Send(ctx, c); err != nil {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	readCtx, readCancel := context.WithTimeout(ctx, time.Second)
	defer readCancel()
	s, err := conn.ReadStatus(readCtx)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	printf("final:  %s\n", s)
	return nil
}

// parseStep turns a "name=value" step into a command.
func parseStep(step string) (light.Command, error) {
	name, value, _ := strings.Cut(step, "=")

	hexByte := func() (uint8, error) {
		v, err := strconv.ParseUint(value, 16, 8)
		if err != nil {
			return 0, fmt.Errorf("step %q: %w", step, err)
		}
		return uint8(v), nil
	}

	switch strings.ToLower(name) {
	case "power":
		switch value {
		case "on":
			return light.PowerOn(), nil
		case "off":
			return light.PowerOff(), nil
		}
		return light.Command{}, fmt.Errorf("step %q: want on or off", step)
	case "color":
		rgb, err := decodeHex("step "+step, value, 3)
		if err != nil {
			return light.Command{}, err
		}
		return light.Color(rgb[0], rgb[1], rgb[2]), nil
	case "cbright":
		v, err := hexByte()
		return light.ColorBrightness(v), err
	case "white":
		v, err := hexByte()
		return light.WhiteBrightness(v), err
	case "temp":
		v, err := hexByte()
		return light.WhiteTemperature(v), err
	case "preset":
		v, err := hexByte()
		return light.Preset(v), err
	case "mesh-id":
		v, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return light.Command{}, fmt.Errorf("step %q: %w", step, err)
		}
		return light.MeshAddress(uint16(v)), nil
	case "query":
		return light.StatusQuery(), nil
	default:
		return light.Command{}, fmt.Errorf("unknown step %q", step)
	}
}
