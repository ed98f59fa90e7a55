package bridge

import (
	"context"
	"fmt"

	"github.com/wippyai/wasm-bridge/errors"
)

// DefaultLabel is the name the driver gives its demo.
const DefaultLabel = "demo of cxx::bridge"

// Script holds the values the driver feeds through the bridge.
type Script struct {
	Label string
	R     uint64
	Z     int32
}

// DefaultScript returns the values used by Run.
func DefaultScript() Script {
	return Script{Label: DefaultLabel, Z: 222, R: 333}
}

// Step identifies a stage of the driver.
type Step int

const (
	StepMakeDemo Step = iota
	StepGetName
	StepDoThing
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepMakeDemo:
		return "make-demo"
	case StepGetName:
		return "get-name"
	case StepDoThing:
		return "do-thing"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// Session runs the driver one step at a time: construct the demo, print its
// name, then pass it to the guest in a SharedThing.
type Session struct {
	bridge *Bridge
	demo   *Demo
	name   string
	script Script
	step   Step
}

// NewSession starts a driver session for script.
func (b *Bridge) NewSession(script Script) *Session {
	return &Session{bridge: b, script: script}
}

// Step returns the step Next will run.
func (s *Session) Step() Step {
	return s.step
}

// Done reports whether every step has run.
func (s *Session) Done() bool {
	return s.step == StepDone
}

// Name returns the name read back from the guest, once StepGetName has run.
func (s *Session) Name() string {
	return s.name
}

// Next runs the current step and returns it. A failed step can be retried.
func (s *Session) Next(ctx context.Context) (Step, error) {
	if s == nil || s.bridge == nil {
		return StepDone, errors.New(errors.PhaseRuntime, errors.KindNotInitialized).
			Detail("session is nil").
			Build()
	}

	step := s.step
	switch step {
	case StepMakeDemo:
		d, err := s.bridge.MakeDemo(ctx, s.script.Label)
		if err != nil {
			return step, err
		}
		s.demo = d

	case StepGetName:
		name, err := s.bridge.GetName(ctx, s.demo)
		if err != nil {
			return step, err
		}
		s.name = name
		if _, err := fmt.Fprintf(s.bridge.cfg.Stdout, "this is a %s\n", name); err != nil {
			return step, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "write output")
		}

	case StepDoThing:
		err := s.bridge.DoThing(ctx, SharedThing{
			Z: s.script.Z,
			Y: &ThingR{Value: s.script.R},
			X: s.demo,
		})
		s.demo = nil
		if err != nil {
			s.step = StepDone
			return step, err
		}

	case StepDone:
		return step, nil
	}

	s.step++
	return step, nil
}

// Close drops the demo if the session stopped before handing it to the guest.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.demo == nil {
		return nil
	}
	err := s.demo.Close(ctx)
	s.demo = nil
	return err
}

// Run opens a bridge with cfg and runs the default script through it.
func Run(ctx context.Context, cfg Config) error {
	return RunScript(ctx, cfg, DefaultScript())
}

// RunScript opens a bridge with cfg and runs script through it.
func RunScript(ctx context.Context, cfg Config, script Script) (err error) {
	b, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	s := b.NewSession(script)
	defer func() {
		if cerr := s.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for !s.Done() {
		if _, err := s.Next(ctx); err != nil {
			return err
		}
	}
	return nil
}
