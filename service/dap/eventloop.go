package dap

import (
	"errors"

	"github.com/google/go-dap"

	"github.com/Zen8/java-language-server/pkg/jvm"
)

// eventLoop drains the target VM's event queue for the lifetime of the
// session. It is the only consumer of the queue, so notifications to
// the client are serialized among themselves; they are not ordered
// relative to request responses. The loop ends cleanly on disconnect;
// any other drain failure ends the session, there is no restart.
func (s *Server) eventLoop(vm jvm.VirtualMachine) {
	queue := vm.EventQueue()
	for {
		set, err := queue.Remove()
		if err != nil {
			if !errors.Is(err, jvm.ErrVMDisconnected) {
				s.log.Errorf("Error draining VM events: %v", err)
			}
			return
		}
		s.handleEventSet(vm, set)
		if hasDisconnect(set) {
			return
		}
	}
}

func hasDisconnect(set *jvm.EventSet) bool {
	for _, event := range set.Events {
		if _, ok := event.(jvm.VMDisconnectEvent); ok {
			return true
		}
	}
	return false
}

// handleEventSet dispatches the events of one atomic batch in delivery
// order. The VM is resumed only after the whole batch has been handled,
// and never when the batch stopped the target for the client (the
// client decides when to continue).
func (s *Server) handleEventSet(vm jvm.VirtualMachine, set *jvm.EventSet) {
	resume, stopped := false, false
	for _, event := range set.Events {
		switch event := event.(type) {
		case jvm.VMStartEvent:
			// The target was started suspended; let it run.
			resume = true
		case jvm.ClassPrepareEvent:
			// Class prepare always suspends. Bind pending breakpoints
			// against the fresh type, then resume below or the target
			// deadlocks. The manager is fetched through the guarded
			// accessor; the session may have been released while this
			// set was in flight.
			if bm := s.breakpointManager(); bm != nil {
				for _, bp := range bm.bindPrepared(event.Type) {
					s.send(&dap.BreakpointEvent{
						Event: *newEvent("breakpoint"),
						Body:  dap.BreakpointEventBody{Reason: "changed", Breakpoint: bp},
					})
				}
			}
			resume = true
		case jvm.BreakpointEvent:
			stopped = true
			body := dap.StoppedEventBody{
				Reason:            "breakpoint",
				ThreadId:          int(event.Thread.UniqueID()),
				AllThreadsStopped: event.Request.SuspendPolicy() == jvm.SuspendAll,
			}
			if bm := s.breakpointManager(); bm != nil {
				if id, ok := bm.idForRequest(event.Request); ok {
					body.HitBreakpointIds = []int{id}
				}
			}
			s.send(&dap.StoppedEvent{Event: *newEvent("stopped"), Body: body})
		case jvm.StepEvent:
			stopped = true
			s.send(&dap.StoppedEvent{
				Event: *newEvent("stopped"),
				Body: dap.StoppedEventBody{
					Reason:            "step",
					ThreadId:          int(event.Thread.UniqueID()),
					AllThreadsStopped: event.Request.SuspendPolicy() == jvm.SuspendAll,
				},
			})
			// The count filter already fired once; retire the one-shot
			// request so the next step command starts fresh.
			if err := vm.EventRequestManager().DeleteRequest(event.Request); err != nil {
				s.log.Errorf("Failed to delete completed step request: %v", err)
			}
		case jvm.VMDeathEvent:
			s.send(&dap.ExitedEvent{Event: *newEvent("exited"), Body: dap.ExitedEventBody{ExitCode: 0}})
		case jvm.VMDisconnectEvent:
			s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
			s.releaseVM()
		}
	}
	if stopped {
		return
	}
	// A set that suspended the target but stopped nothing for the client
	// must be released here. This includes sets whose every event was
	// dropped on the wire: a hit racing the retraction of its request
	// still suspends the target, with no handler left for it.
	if resume || set.SuspendPolicy != jvm.SuspendNone {
		if err := vm.Resume(); err != nil && !errors.Is(err, jvm.ErrVMDisconnected) {
			s.log.Errorf("Failed to resume target after event handling: %v", err)
		}
	}
}
