// Command battery-controller debounces the user button, drives the power and
// charging outputs and publishes state changes to MQTT and Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/battery-controller/internal/adc"
	"github.com/sweeney/battery-controller/internal/button"
	"github.com/sweeney/battery-controller/internal/gpio"
	"github.com/sweeney/battery-controller/internal/logic"
	"github.com/sweeney/battery-controller/internal/mqtt"
	"github.com/sweeney/battery-controller/internal/redis"
	"github.com/sweeney/battery-controller/internal/softswitch"
	"github.com/sweeney/battery-controller/internal/status"
	"github.com/sweeney/battery-controller/internal/web"
)

// loopPeriod is how often the main loop refreshes status and checks the heartbeat.
const loopPeriod = time.Second

type config struct {
	backend      string
	chip         string
	scanPeriod   time.Duration
	pressScans   uint
	releaseScans uint
	maxButtons   int

	buttonPin    uint
	buttonActive string
	pwrPin       uint
	pwrActive    string
	chargePin    uint
	chargeActive string
	togglePower  bool

	broker     string
	redisAddr  string
	httpAddr   string
	heartbeat  time.Duration
	adcDevice  string
	adcChannel int
	logLevel   string
	printState bool
}

func parseFlags(args []string) (config, error) {
	var c config
	fs := flag.NewFlagSet("battery-controller", flag.ContinueOnError)

	fs.StringVar(&c.backend, "backend", "gpiocdev", "GPIO backend: gpiocdev, periph, rpio or fake")
	fs.StringVar(&c.chip, "chip", "gpiochip0", "GPIO chip for the gpiocdev backend")
	fs.DurationVar(&c.scanPeriod, "scan-period", button.DefaultPeriod, "Button scan interval")
	fs.UintVar(&c.pressScans, "press-scans", uint(logic.DefaultPressScans), "Consecutive scans to confirm a press")
	fs.UintVar(&c.releaseScans, "release-scans", uint(logic.DefaultReleaseScans), "Consecutive scans to confirm a release")
	fs.IntVar(&c.maxButtons, "max-buttons", button.MaxButtons, "Button table capacity")

	fs.UintVar(&c.buttonPin, "button-pin", uint(gpio.PinButton), "BCM pin of the user button")
	fs.StringVar(&c.buttonActive, "button-active", "low", "Button active level (low or high)")
	fs.UintVar(&c.pwrPin, "pwr-pin", uint(gpio.PinPower), "BCM pin of the power enable output")
	fs.StringVar(&c.pwrActive, "pwr-active", "high", "Power output active level (low or high)")
	fs.UintVar(&c.chargePin, "charge-pin", uint(gpio.PinCharge), "BCM pin of the charge enable output")
	fs.StringVar(&c.chargeActive, "charge-active", "high", "Charging output active level (low or high)")
	fs.BoolVar(&c.togglePower, "button-toggles-power", true, "Toggle the power output on each confirmed press")

	fs.StringVar(&c.broker, "broker", "tcp://127.0.0.1:1883", "MQTT broker address (empty to disable)")
	fs.StringVar(&c.redisAddr, "redis", "", "Redis address for the state mirror (empty to disable)")
	fs.StringVar(&c.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	fs.DurationVar(&c.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	fs.StringVar(&c.adcDevice, "adc-device", "", "IIO device for battery sampling, e.g. iio:device0 (empty to disable)")
	fs.IntVar(&c.adcChannel, "adc-channel", 0, "IIO voltage channel of the battery divider")
	fs.StringVar(&c.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.BoolVar(&c.printState, "print-state", false, "Print pin configuration and the button level, then exit; output pins are not read")

	if err := fs.Parse(args); err != nil {
		return c, err
	}
	if c.pressScans > 254 || c.releaseScans > 254 {
		return c, fmt.Errorf("%w: scans must be 1..254", logic.ErrInvalidThreshold)
	}
	for name, pin := range map[string]uint{"button-pin": c.buttonPin, "pwr-pin": c.pwrPin, "charge-pin": c.chargePin} {
		if pin >= uint(gpio.PinNone) {
			return c, fmt.Errorf("-%s: %d out of range", name, pin)
		}
	}
	return c, nil
}

func (c config) thresholds() logic.Thresholds {
	return logic.Thresholds{Press: uint8(c.pressScans), Release: uint8(c.releaseScans)}
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("fatal: %v", err)
	}

	level, err := log.ParseLevel(cfg.logLevel)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func openDriver(backend, chip string) (gpio.Driver, error) {
	switch backend {
	case "gpiocdev":
		return gpio.NewGpiocdevDriver(chip)
	case "periph":
		return gpio.NewPeriphDriver()
	case "rpio":
		return gpio.NewRpioDriver()
	case "fake":
		return gpio.NewFakeDriver(), nil
	}
	return nil, fmt.Errorf("unknown gpio backend %q", backend)
}

func run(cfg config) error {
	log.WithFields(log.Fields{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
		"cpus": runtime.NumCPU(),
		"go":   runtime.Version(),
	}).Info("battery-controller starting")

	buttonPol, err := gpio.ParsePolarity(cfg.buttonActive)
	if err != nil {
		return fmt.Errorf("-button-active: %w", err)
	}
	pwrPol, err := gpio.ParsePolarity(cfg.pwrActive)
	if err != nil {
		return fmt.Errorf("-pwr-active: %w", err)
	}
	chargePol, err := gpio.ParsePolarity(cfg.chargeActive)
	if err != nil {
		return fmt.Errorf("-charge-active: %w", err)
	}

	driver, err := openDriver(cfg.backend, cfg.chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer driver.Close()

	if cfg.printState {
		return printState(os.Stdout, driver, []pinSpec{
			{"power", gpio.Pin(cfg.pwrPin), pwrPol, true},
			{"charging", gpio.Pin(cfg.chargePin), chargePol, true},
			{"button", gpio.Pin(cfg.buttonPin), buttonPol, false},
		})
	}

	// SoftSwitcher first so the outputs are at their safe level before
	// anything else runs.
	sw, err := softswitch.New(driver,
		softswitch.OutputConfig{Pin: gpio.Pin(cfg.pwrPin), Polarity: pwrPol},
		softswitch.OutputConfig{Pin: gpio.Pin(cfg.chargePin), Polarity: chargePol},
	)
	if err != nil {
		return fmt.Errorf("init soft switcher: %w", err)
	}

	ctrl, err := button.NewController(driver, button.Config{
		Capacity:   cfg.maxButtons,
		Period:     cfg.scanPeriod,
		Thresholds: cfg.thresholds(),
	})
	if err != nil {
		return fmt.Errorf("init button controller: %w", err)
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Backend:      cfg.backend,
		ScanMs:       cfg.scanPeriod.Milliseconds(),
		PressScans:   int(cfg.pressScans),
		ReleaseScans: int(cfg.releaseScans),
		HeartbeatMs:  cfg.heartbeat.Milliseconds(),
		Broker:       cfg.broker,
		Redis:        cfg.redisAddr,
		HTTPPort:     cfg.httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var (
		publishers mqtt.Multi
		connStatus mqtt.ConnectionStatus
		current    appRef
	)
	if cfg.broker != "" {
		pub, err := mqtt.NewRealPublisher(cfg.broker, current.reconnected)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publishers = append(publishers, pub)
		connStatus = pub
	}
	var mirror *redis.Mirror
	if cfg.redisAddr != "" {
		mirror, err = redis.NewMirror(cfg.redisAddr)
		if err != nil {
			// Redis is optional; keep running without the mirror.
			log.Warnf("redis disabled: %v", err)
		} else {
			publishers = append(publishers, mirror)
		}
	}
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	if len(publishers) > 0 {
		publisher = publishers
	}
	defer publisher.Close()

	a := newApp(sw, ctrl, publisher, connStatus, tracker, time.Now)
	current.set(a)

	var onPressed button.Handler
	if cfg.togglePower {
		onPressed = a.togglePower()
	}
	if _, err := ctrl.AddButton(gpio.Pin(cfg.buttonPin), buttonPol, onPressed, nil); err != nil {
		return fmt.Errorf("register button: %w", err)
	}
	ctrl.SetObserver(a.onButton)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start scan task: %w", err)
	}

	if mirror != nil {
		mirror.Listen(a.Switch)
	}

	var sampler adc.Controller
	if cfg.adcDevice != "" {
		s := adc.NewSysfsController(cfg.adcDevice)
		if err := s.Init(); err != nil {
			log.Warnf("battery sampling disabled: %v", err)
		} else {
			sampler = s
		}
	}

	a.publishSystem("STARTUP", "", true)

	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker, a)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.httpAddr)
	}

	log.Printf("started: backend=%s scan=%v press=%d release=%d broker=%s heartbeat=%v outputs: %s",
		cfg.backend, cfg.scanPeriod, cfg.pressScans, cfg.releaseScans, cfg.broker, cfg.heartbeat,
		describeOutputs(sw.Outputs()))

	ticker := time.NewTicker(loopPeriod)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(a, sampler, cfg.adcChannel, cfg.heartbeat, ticker.C, sigCh)
}

// appRef hands the app to callbacks registered before it exists.
type appRef struct {
	p atomic.Pointer[app]
}

func (r *appRef) set(a *app) { r.p.Store(a) }

// reconnected announces a broker reconnect once the app is running.
func (r *appRef) reconnected() {
	if a := r.p.Load(); a != nil {
		a.publishSystem("RECONNECTED", "", false)
	}
}

// runLoop keeps the tracker current, publishes heartbeats and handles shutdown.
// Button scanning runs on the controller's own goroutine.
func runLoop(a *app, sampler adc.Controller, adcChannel int, heartbeat time.Duration, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			a.publishSystem("SHUTDOWN", signalName(s), true)
			return nil

		case <-tick:
			t := a.now()
			a.refresh()

			hb := a.checkHeartbeat(t, heartbeat)
			if hb == nil {
				continue
			}
			if sampler != nil {
				if raw, err := sampler.ReadRaw(adcChannel); err != nil {
					log.Printf("adc read error: %v", err)
				} else if a.tracker != nil {
					a.tracker.SetBattery(raw)
				}
			}
			if a.tracker != nil {
				if net := readNetworkInfo(); net != nil {
					a.tracker.SetNetwork(net)
				}
			}
			log.Printf("heartbeat: uptime=%v pressed=%d released=%d output_on=%d output_off=%d",
				hb.Uptime, hb.Counts.Pressed, hb.Counts.Released, hb.Counts.OutputOn, hb.Counts.OutputOff)
			a.publishSystem("HEARTBEAT", "", false)
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

type pinSpec struct {
	name     string
	pin      gpio.Pin
	polarity gpio.Polarity
	output   bool
}

// printState samples input pins only. Reading an unclaimed output line would
// request it as an input and let the enable line float.
func printState(w io.Writer, driver gpio.Driver, pins []pinSpec) error {
	for _, p := range pins {
		if p.output {
			fmt.Fprintf(w, "%s: GPIO%d output (%s, not sampled)\n", p.name, p.pin, p.polarity)
			continue
		}
		level, err := driver.GetLevel(p.pin)
		if err != nil {
			return fmt.Errorf("read %s pin %d: %w", p.name, p.pin, err)
		}
		fmt.Fprintf(w, "%s: GPIO%d=%s (%s, %s)\n", p.name, p.pin, level, p.polarity, status.OnOff(p.polarity.Engaged(level)))
	}
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
