package jdwp

import (
	"fmt"
	"sync"

	"github.com/Zen8/java-language-server/pkg/jvm"
)

type requestManager struct {
	vm *vm
}

var _ jvm.EventRequestManager = requestManager{}

func (rm requestManager) CreateClassPrepareRequest() jvm.ClassPrepareRequest {
	return &classPrepareRequest{eventRequest: eventRequest{vm: rm.vm, kind: eventKindClassPrepare}}
}

func (rm requestManager) CreateBreakpointRequest(loc jvm.Location) jvm.BreakpointRequest {
	return &breakpointRequest{
		eventRequest: eventRequest{vm: rm.vm, kind: eventKindBreakpoint},
		loc:          loc,
	}
}

func (rm requestManager) CreateStepRequest(thread jvm.ThreadReference, size jvm.StepSize, depth jvm.StepDepth) jvm.StepRequest {
	return &stepRequest{
		eventRequest: eventRequest{vm: rm.vm, kind: eventKindSingleStep},
		thread:       thread,
		size:         size,
		depth:        depth,
	}
}

func (rm requestManager) DeleteRequest(req jvm.EventRequest) error {
	err := req.Disable()
	if err == jvm.ErrVMDisconnected {
		return nil
	}
	return err
}

// eventRequest carries the state shared by all request kinds. Enable
// sends the Set command; until then the request exists only locally.
type eventRequest struct {
	vm   *vm
	kind byte

	mu        sync.Mutex
	suspend   jvm.SuspendPolicy
	count     int32
	nExtra    int32
	enabled   bool
	requestID int32
}

func (r *eventRequest) SetSuspendPolicy(policy jvm.SuspendPolicy) {
	r.mu.Lock()
	r.suspend = policy
	r.mu.Unlock()
}

func (r *eventRequest) SuspendPolicy() jvm.SuspendPolicy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspend
}

func (r *eventRequest) AddCountFilter(count int) {
	r.mu.Lock()
	r.count = int32(count)
	r.mu.Unlock()
}

// enable sends the Set command. self is the full request value so the
// connection's request table maps incoming events back to the concrete
// type; extra appends the kind-specific modifiers.
func (r *eventRequest) enable(self jvm.EventRequest, extra func(e *encoder)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		return nil
	}
	e := newEncoder(&r.vm.c.sizes)
	e.writeByte(r.kind)
	e.writeByte(byte(r.suspend))

	mods := newEncoder(&r.vm.c.sizes)
	nmods := int32(0)
	if r.count > 0 {
		mods.writeByte(modKindCount)
		mods.writeInt(r.count)
		nmods++
	}
	if extra != nil {
		extra(mods)
		nmods += r.nExtra
	}
	e.writeInt(nmods)
	e.buf = append(e.buf, mods.bytes()...)

	d, err := r.vm.c.command(cmdSetEventRequest, cmdEventRequestSet, e.bytes())
	if err != nil {
		return err
	}
	r.requestID = d.readInt()
	if d.err != nil {
		return d.err
	}
	r.enabled = true
	r.vm.c.registerRequest(r.requestID, self)
	return nil
}

func (r *eventRequest) disable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return nil
	}
	e := newEncoder(&r.vm.c.sizes)
	e.writeByte(r.kind)
	e.writeInt(r.requestID)
	_, err := r.vm.c.command(cmdSetEventRequest, cmdEventRequestClear, e.bytes())
	if err != nil {
		return err
	}
	r.vm.c.unregisterRequest(r.requestID)
	r.enabled = false
	return nil
}

type classPrepareRequest struct {
	eventRequest
	patterns []string
}

func (r *classPrepareRequest) AddSourceNameFilter(pattern string) {
	r.mu.Lock()
	r.patterns = append(r.patterns, pattern)
	r.mu.Unlock()
}

func (r *classPrepareRequest) Enable() error {
	r.nExtra = int32(len(r.patterns))
	return r.enable(r, func(e *encoder) {
		for _, p := range r.patterns {
			e.writeByte(modKindSourceNameMatch)
			e.writeString(p)
		}
	})
}

func (r *classPrepareRequest) Disable() error { return r.disable() }

type breakpointRequest struct {
	eventRequest
	loc jvm.Location
}

func (r *breakpointRequest) Location() jvm.Location { return r.loc }

func (r *breakpointRequest) Enable() error {
	loc, ok := r.loc.(*location)
	if !ok {
		return fmt.Errorf("jdwp: location %s:%d does not belong to this VM", r.loc.Method(), r.loc.LineNumber())
	}
	r.nExtra = 1
	return r.enable(r, func(e *encoder) {
		e.writeByte(modKindLocationOnly)
		e.writeLocation(loc)
	})
}

func (r *breakpointRequest) Disable() error { return r.disable() }

type stepRequest struct {
	eventRequest
	thread jvm.ThreadReference
	size   jvm.StepSize
	depth  jvm.StepDepth
}

func (r *stepRequest) Thread() jvm.ThreadReference { return r.thread }

func (r *stepRequest) Enable() error {
	t, ok := r.thread.(*thread)
	if !ok {
		return fmt.Errorf("jdwp: thread %d does not belong to this VM", r.thread.UniqueID())
	}
	r.nExtra = 1
	return r.enable(r, func(e *encoder) {
		e.writeByte(modKindStep)
		e.writeObjectID(t.id)
		e.writeInt(int32(r.size))
		e.writeInt(int32(r.depth))
	})
}

func (r *stepRequest) Disable() error { return r.disable() }
