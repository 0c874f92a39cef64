// Package button polls a fixed table of digital inputs, debounces each one and
// dispatches press/release handlers exactly once per confirmed transition.
package button

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/battery-controller/internal/gpio"
	"github.com/sweeney/battery-controller/internal/logic"
)

// MaxButtons is the default table capacity.
const MaxButtons = 8

// DefaultPeriod is the default scan interval.
const DefaultPeriod = 10 * time.Millisecond

var (
	ErrInvalidConfig   = errors.New("button: invalid config")
	ErrInvalidPolarity = errors.New("button: invalid active level")
	ErrInvalidPin      = errors.New("button: invalid pin")
	ErrTableFull       = errors.New("button: table full")
	ErrAlreadyRunning  = errors.New("button: scan task already running")
)

// Handler is invoked on a confirmed transition. It runs on the scan goroutine
// and must be short and non-blocking; it may call back into the Controller.
type Handler interface {
	Handle()
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func()

// Handle calls f.
func (f HandlerFunc) Handle() { f() }

// Config controls the table size, scan period and debounce thresholds.
type Config struct {
	Capacity   int
	Period     time.Duration
	Thresholds logic.Thresholds
}

// DefaultConfig returns 8 slots, a 10 ms period and 5/5 scan thresholds.
func DefaultConfig() Config {
	return Config{
		Capacity:   MaxButtons,
		Period:     DefaultPeriod,
		Thresholds: logic.DefaultThresholds(),
	}
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity %d", ErrInvalidConfig, c.Capacity)
	}
	if c.Period <= 0 {
		return fmt.Errorf("%w: period %v", ErrInvalidConfig, c.Period)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// slot is one table entry. pin == gpio.PinNone marks it free.
type slot struct {
	pin        gpio.Pin
	polarity   gpio.Polarity
	debounce   logic.Debouncer
	onPressed  Handler
	onReleased Handler
}

func (s *slot) free() bool {
	return s.pin == gpio.PinNone
}

// Status is a point-in-time view of one registered button.
type Status struct {
	Slot     int
	Pin      gpio.Pin
	Polarity gpio.Polarity
	State    logic.State
	Counter  uint8
	Latched  bool
}

// Notification is a fired transition, reported to the optional observer
// after the slot's own handler ran.
type Notification struct {
	Slot int
	Pin  gpio.Pin
	Type logic.EventType
}

// Controller owns the button table. Create it with NewController.
type Controller struct {
	driver gpio.Driver
	cfg    Config

	mu    sync.Mutex
	table []slot

	observer func(Notification)

	runMu   sync.Mutex
	running bool
}

// NewController clears a table of cfg.Capacity free slots. The scan task is
// not started; call Start or Run.
func NewController(driver gpio.Driver, cfg Config) (*Controller, error) {
	if driver == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	table := make([]slot, cfg.Capacity)
	for i := range table {
		table[i] = slot{pin: gpio.PinNone, debounce: logic.NewDebouncer()}
	}

	return &Controller{
		driver: driver,
		cfg:    cfg,
		table:  table,
	}, nil
}

// SetObserver registers fn to be told about every fired transition, e.g. for
// telemetry. It runs on the scan goroutine after the slot's handler.
func (c *Controller) SetObserver(fn func(Notification)) {
	c.mu.Lock()
	c.observer = fn
	c.mu.Unlock()
}

// AddButton registers a button in the lowest free slot and returns its index.
// Either handler may be nil. There is no removal; the slot stays occupied for
// the lifetime of the Controller.
func (c *Controller) AddButton(pin gpio.Pin, polarity gpio.Polarity, onPressed, onReleased Handler) (int, error) {
	if !polarity.Valid() {
		log.Printf("button: failed to add pin %d: invalid active level %d", pin, polarity)
		return -1, fmt.Errorf("%w: %v", ErrInvalidPolarity, polarity)
	}
	if pin == gpio.PinNone {
		return -1, fmt.Errorf("%w: %d is reserved", ErrInvalidPin, pin)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.table {
		if !c.table[i].free() {
			continue
		}
		c.table[i] = slot{
			pin:        pin,
			polarity:   polarity,
			debounce:   logic.NewDebouncer(),
			onPressed:  onPressed,
			onReleased: onReleased,
		}
		log.WithFields(log.Fields{"slot": i, "pin": pin, "polarity": polarity}).Info("button: registered")
		return i, nil
	}

	log.Printf("button: failed to add pin %d: table full (%d slots)", pin, len(c.table))
	return -1, ErrTableFull
}

// dispatch is a handler chosen under the lock and invoked after it is released.
type dispatch struct {
	handler Handler
	note    Notification
}

// Scan runs one polling cycle over every occupied slot. Handlers fire after
// the table lock is released, in slot order.
func (c *Controller) Scan() {
	c.mu.Lock()
	var fired []dispatch
	for i := range c.table {
		s := &c.table[i]
		if s.free() {
			continue
		}

		level, err := c.driver.GetLevel(s.pin)
		if err != nil {
			log.Printf("button: read pin %d: %v", s.pin, err)
			continue
		}

		ev := s.debounce.Process(logic.StateFor(s.polarity.Engaged(level)), c.cfg.Thresholds)
		if ev == "" {
			continue
		}

		h := s.onReleased
		if ev == logic.EventButtonPressed {
			h = s.onPressed
		}
		fired = append(fired, dispatch{
			handler: h,
			note:    Notification{Slot: i, Pin: s.pin, Type: ev},
		})
	}
	observer := c.observer
	c.mu.Unlock()

	for _, d := range fired {
		log.WithFields(log.Fields{"slot": d.note.Slot, "pin": d.note.Pin}).Debugf("button: %s", d.note.Type)
		if d.handler != nil {
			d.handler.Handle()
		}
		if observer != nil {
			observer(d.note)
		}
	}
}

// Run scans on every tick until ctx is done.
func (c *Controller) Run(ctx context.Context, tick <-chan time.Time) error {
	if !c.claim() {
		return ErrAlreadyRunning
	}
	defer c.release()
	return c.loop(ctx, tick)
}

// Start launches the scan task on its own goroutine with a ticker at the
// configured period. It stops when ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	if !c.claim() {
		return ErrAlreadyRunning
	}

	ticker := time.NewTicker(c.cfg.Period)
	go func() {
		defer c.release()
		defer ticker.Stop()
		c.loop(ctx, ticker.C)
	}()
	return nil
}

// Running reports whether a scan task is active.
func (c *Controller) Running() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.running
}

func (c *Controller) loop(ctx context.Context, tick <-chan time.Time) error {
	log.Printf("button: starting scan task (period=%v press=%d release=%d)",
		c.cfg.Period, c.cfg.Thresholds.Press, c.cfg.Thresholds.Release)

	for {
		select {
		case <-ctx.Done():
			log.Printf("button: scan task stopped")
			return ctx.Err()
		case <-tick:
			c.Scan()
		}
	}
}

func (c *Controller) claim() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	return true
}

func (c *Controller) release() {
	c.runMu.Lock()
	c.running = false
	c.runMu.Unlock()
}

// Buttons returns a snapshot of every occupied slot.
func (c *Controller) Buttons() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Status
	for i := range c.table {
		s := &c.table[i]
		if s.free() {
			continue
		}
		out = append(out, Status{
			Slot:     i,
			Pin:      s.pin,
			Polarity: s.polarity,
			State:    s.debounce.State,
			Counter:  s.debounce.Counter,
			Latched:  s.debounce.Latched(),
		})
	}
	return out
}

// Capacity returns the number of table slots.
func (c *Controller) Capacity() int {
	return len(c.table)
}
