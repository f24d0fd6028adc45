// Command armctl wires a configured arm to a real serial-connected
// microcontroller and exposes a minimal line-oriented command shell for
// homing, jogging and moving the tool (a demo harness, not a production
// control surface).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"

	"github.com/itohio/armctl/pkg/config"
	"github.com/itohio/armctl/pkg/coordinator"
	"github.com/itohio/armctl/pkg/gateway"
	"github.com/itohio/armctl/pkg/joint"
	"github.com/itohio/armctl/pkg/kinematics"
	"github.com/itohio/armctl/pkg/logging"
)

var log = logging.Named("armctl")

func main() {
	configPath := flag.String("config", "arm.yaml", "path to the arm's YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Gateway.Port,
		Baud:        cfg.Gateway.BaudRate,
		ReadTimeout: time.Duration(cfg.Gateway.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Gateway.Port).Msg("opening serial port")
	}
	defer port.Close()

	gw := gateway.NewSerialGateway(port, gateway.NewSimpleCodec())

	jointCfgs, err := cfg.JointConfigs()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid joint configuration")
	}

	var joints [6]*joint.Controller
	for i, jc := range jointCfgs {
		ctrl, err := joint.NewController(jc, gw, nil)
		if err != nil {
			log.Fatal().Err(err).Str("joint", jc.Name).Msg("constructing joint controller")
		}
		joints[i] = ctrl
	}

	chain, geo := cfg.Chain()
	coord := coordinator.New(joints, chain, geo, cfg.Limits())

	go func() {
		if err := <-gw.Down(); err != nil {
			log.Error().Err(err).Msg("gateway reported a terminal failure")
		}
	}()

	log.Info().Msg("armctl ready; commands: home, movej a1 a2 a3 a4 a5 a6, movel x y z rx ry rz, pose, halt, quit")
	repl(coord)
}

func repl(coord *coordinator.Coordinator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if err := dispatch(ctx, coord, fields); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		cancel()
	}
}

func dispatch(ctx context.Context, coord *coordinator.Coordinator, fields []string) error {
	switch fields[0] {
	case "home":
		return coord.Home(ctx)
	case "halt":
		return coord.Halt(ctx)
	case "pose":
		p := coord.Pose()
		fmt.Printf("x=%.3f y=%.3f z=%.3f rx=%.3f ry=%.3f rz=%.3f\n", p.X, p.Y, p.Z, p.Rx, p.Ry, p.Rz)
		return nil
	case "movej":
		angles, err := parseFloats(fields[1:], 6)
		if err != nil {
			return err
		}
		return coord.MoveJ(ctx, angles)
	case "movel":
		vals, err := parseFloats(fields[1:], 6)
		if err != nil {
			return err
		}
		return coord.MoveL(ctx, kinematics.Pose{X: vals[0], Y: vals[1], Z: vals[2], Rx: vals[3], Ry: vals[4], Rz: vals[5]})
	case "quit":
		os.Exit(0)
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func parseFloats(fields []string, n int) ([6]float64, error) {
	var out [6]float64
	if len(fields) != n {
		return out, fmt.Errorf("expected %d numbers, got %d", n, len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return out, fmt.Errorf("parsing %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}
