package main

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/battery-controller/internal/button"
	"github.com/sweeney/battery-controller/internal/logic"
	"github.com/sweeney/battery-controller/internal/mqtt"
	"github.com/sweeney/battery-controller/internal/softswitch"
	"github.com/sweeney/battery-controller/internal/status"
)

// app ties the button controller and switcher to the publishers and the
// status tracker. Its methods are called from the scan goroutine, the HTTP
// handlers and the Redis listener.
type app struct {
	switcher   *softswitch.Switcher
	controller *button.Controller
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker
	now        func() time.Time

	mu        sync.Mutex
	heartbeat *logic.Heartbeat
}

func newApp(sw *softswitch.Switcher, ctrl *button.Controller, pub mqtt.Publisher, conn mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time) *app {
	return &app{
		switcher:   sw,
		controller: ctrl,
		publisher:  pub,
		mqttStatus: conn,
		tracker:    tracker,
		now:        now,
		heartbeat:  logic.NewHeartbeat(now()),
	}
}

func (a *app) emit(ev logic.Event) {
	a.mu.Lock()
	a.heartbeat.Record(ev.Type)
	a.mu.Unlock()

	log.WithFields(log.Fields{"source": ev.Source, "pin": ev.Pin}).Infof("event: %s", ev.Type)
	if err := a.publisher.Publish(ev); err != nil {
		log.Printf("publish error: %v", err)
	}
}

// Switch drives an output and publishes the change.
func (a *app) Switch(id softswitch.OutputID, on bool) error {
	var err error
	if on {
		err = a.switcher.SetOutput(id)
	} else {
		err = a.switcher.ClearOutput(id)
	}
	if err != nil {
		return err
	}
	a.emitOutput(id, on)
	a.refresh()
	return nil
}

// Toggle flips an output and publishes the change.
func (a *app) Toggle(id softswitch.OutputID) error {
	on, err := a.switcher.Toggle(id)
	if err != nil {
		return err
	}
	a.emitOutput(id, on)
	a.refresh()
	return nil
}

func (a *app) emitOutput(id softswitch.OutputID, on bool) {
	typ := logic.EventOutputOff
	if on {
		typ = logic.EventOutputOn
	}
	var pin uint8
	for _, o := range a.switcher.Outputs() {
		if o.ID == id {
			pin = uint8(o.Pin)
		}
	}
	a.emit(logic.Event{Timestamp: a.now(), Type: typ, Source: id.String(), Pin: pin})
}

// onButton is the controller observer; it runs after the slot's own handler.
func (a *app) onButton(n button.Notification) {
	a.emit(logic.Event{Timestamp: a.now(), Type: n.Type, Source: "button", Pin: uint8(n.Pin)})
	a.refresh()
}

// togglePower returns a press handler that flips the power output.
func (a *app) togglePower() button.Handler {
	return button.HandlerFunc(func() {
		if err := a.Toggle(softswitch.OutputPower); err != nil {
			log.Printf("toggle power: %v", err)
		}
	})
}

func (a *app) counts() logic.EventCounts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heartbeat.Counts()
}

func (a *app) checkHeartbeat(t time.Time, interval time.Duration) *logic.HeartbeatData {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heartbeat.CheckHeartbeat(t, interval)
}

// refresh copies controller and switcher state into the tracker.
func (a *app) refresh() {
	if a.tracker == nil {
		return
	}
	a.tracker.Update(buttonsView(a.controller.Buttons()), outputsView(a.switcher.Outputs()), a.counts())
	if a.mqttStatus != nil {
		a.tracker.SetMQTTConnected(a.mqttStatus.IsConnected())
	}
}

// systemEvent builds a lifecycle event carrying a full status snapshot.
func (a *app) systemEvent(name, reason string, retained bool) mqtt.SystemEvent {
	ev := mqtt.SystemEvent{
		Timestamp: a.now(),
		Event:     name,
		Reason:    reason,
		Retained:  retained,
	}
	if a.tracker != nil {
		a.refresh()
		ev.RawPayload = status.FormatStatusEvent(a.tracker.Snapshot(), name, reason)
	}
	return ev
}

func (a *app) publishSystem(name, reason string, retained bool) {
	if err := a.publisher.PublishSystem(a.systemEvent(name, reason, retained)); err != nil {
		log.Printf("failed to publish %s event: %v", name, err)
		return
	}
	log.Printf("published %s event", name)
}

func buttonsView(in []button.Status) []status.Button {
	out := make([]status.Button, 0, len(in))
	for _, b := range in {
		out = append(out, status.Button{
			Slot:     b.Slot,
			Pin:      uint8(b.Pin),
			Polarity: b.Polarity.String(),
			State:    b.State,
			Latched:  b.Latched,
		})
	}
	return out
}

func outputsView(in []softswitch.OutputStatus) []status.Output {
	out := make([]status.Output, 0, len(in))
	for _, o := range in {
		out = append(out, status.Output{
			Name:     o.ID.String(),
			Pin:      uint8(o.Pin),
			Polarity: o.Polarity.String(),
			On:       o.On,
		})
	}
	return out
}

func describeOutputs(in []softswitch.OutputStatus) string {
	s := ""
	for i, o := range in {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%s", o.ID, status.OnOff(o.On))
	}
	return s
}
