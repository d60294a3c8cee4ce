package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"codeberg.org/mutker/amdfanctl/internal/config"
	"codeberg.org/mutker/amdfanctl/internal/controller"
	"codeberg.org/mutker/amdfanctl/internal/curve"
	"codeberg.org/mutker/amdfanctl/internal/hwmon"
	"codeberg.org/mutker/amdfanctl/internal/logger"
	"codeberg.org/mutker/amdfanctl/internal/pid"
	"github.com/spf13/afero"
)

const (
	monitorRefreshes = 40
	monitorInterval  = 400 * time.Millisecond
)

var (
	cfg *config.Config
	log logger.Logger
)

func init() {
	var err error
	cfg, err = config.Load(afero.NewOsFs(), os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	log = logger.Default()
	log.Debug().Msg("Config loaded")
}

func main() {
	if cfg.Daemon {
		runDaemon()
		return
	}

	runInteractive()
}

func scanCards() map[string]hwmon.Device {
	cards, err := hwmon.Scan(afero.NewOsFs(), cfg.Cards, log)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to scan for cards")
	}
	if len(cards) == 0 {
		logger.Fatal().Msg("no compatible cards found, exiting")
	}

	devices := make(map[string]hwmon.Device, len(cards))
	for name, card := range cards {
		devices[name] = card
	}

	return devices
}

func runDaemon() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer pid.Remove()

	fanCurve, err := curve.NewFromMatrix(cfg.SpeedMatrix)
	if err != nil {
		pid.Remove()
		logger.Fatal().Err(err).Msg("invalid fan curve")
	}

	devices := scanCards()

	interval := time.Duration(cfg.Interval) * time.Second
	ctrl, err := controller.New(devices, fanCurve, interval, log)
	if err != nil {
		pid.Remove()
		logger.Fatal().Err(err).Msg("failed to initialize controller")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	log.Info().Msg("Starting amdfanctl")
	if err := ctrl.Run(ctx); err != nil {
		pid.Remove()
		logger.Fatal().Err(err).Msg("error in control loop")
	}

	cleanup(ctrl)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup(ctrl *controller.Controller) {
	ctrl.RestoreAuto()
	log.Info().Msg("Exiting...")
}

func runInteractive() {
	devices := scanCards()

	fmt.Println("AMD GPU Fan Control")
	command := promptChoice("Please select get or set", []string{"get", "set"}, "get")

	switch command {
	case "get":
		watchReadings(devices)
		os.Exit(0)
	case "set":
		setOnce(devices)
		os.Exit(1)
	}
}

func watchReadings(devices map[string]hwmon.Device) {
	for i := 0; i < monitorRefreshes; i++ {
		time.Sleep(monitorInterval)
		printReadings(devices)
	}
}

func printReadings(devices map[string]hwmon.Device) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Card\tfan_speed (RPM)\tgpu_temp °C")
	for _, reading := range controller.Readings(devices) {
		fmt.Fprintf(w, "%s\t%d\t%.1f\n", reading.Name, reading.FanSpeed, reading.Temperature)
	}
	w.Flush()
}

func setOnce(devices map[string]hwmon.Device) {
	names := make([]string, 0, len(devices))
	for _, reading := range controller.Readings(devices) {
		names = append(names, reading.Name)
	}

	cardName := promptChoice("Which card?", names, names[0])
	device := devices[cardName]

	var speed string
	for {
		speed = prompt("Fan speed, [1..100]% or 'auto'", "auto")
		if speed == "auto" {
			break
		}
		if value, err := strconv.Atoi(speed); err == nil && value >= 1 && value <= 100 {
			break
		}
		fmt.Println("maybe try picking one of the options")
	}

	if speed == "auto" {
		log.Info().Str("card", cardName).Msg("Setting fan to auto control")
		if err := device.SetAutoMode(true); err != nil {
			logger.Fatal().Err(err).Msg("failed to enable auto fan control")
		}
		return
	}

	value, _ := strconv.Atoi(speed)
	log.Info().Str("card", cardName).Int("speed", value).Msg("Setting fan speed")
	if err := device.SetSpeed(value); err != nil {
		logger.Fatal().Err(err).Msg("failed to set fan speed")
	}
}

func prompt(question, fallback string) string {
	fmt.Printf("%s [%s]: ", question, fallback)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fallback
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		return fallback
	}

	return answer
}

func promptChoice(question string, choices []string, fallback string) string {
	question = fmt.Sprintf("%s (%s)", question, strings.Join(choices, "/"))
	for {
		answer := prompt(question, fallback)
		for _, choice := range choices {
			if answer == choice {
				return answer
			}
		}
		fmt.Println("maybe try picking one of the options")
	}
}
