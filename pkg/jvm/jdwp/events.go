package jdwp

import (
	"fmt"

	"github.com/Zen8/java-language-server/pkg/jvm"
)

// parseEventSet decodes one Event.Composite command from the target
// into the boundary representation. Events whose originating request
// has already been deleted are dropped: they were in flight when the
// request was cleared and nothing can handle them anymore.
func (m *vm) parseEventSet(data []byte) (*jvm.EventSet, error) {
	d := newDecoder(&m.c.sizes, data)
	set := &jvm.EventSet{SuspendPolicy: jvm.SuspendPolicy(d.readByte())}
	n := int(d.readInt())
	for i := 0; i < n; i++ {
		kind := d.readByte()
		requestID := d.readInt()
		switch kind {
		case eventKindVMStart:
			threadID := d.readObjectID()
			set.Events = append(set.Events, jvm.VMStartEvent{Thread: &thread{vm: m, id: threadID}})
		case eventKindSingleStep:
			threadID := d.readObjectID()
			readLocation(m, d)
			req, ok := m.c.lookupRequest(requestID).(jvm.StepRequest)
			if !ok {
				m.c.log.Debugf("step event for deleted request %d", requestID)
				continue
			}
			set.Events = append(set.Events, jvm.StepEvent{Thread: &thread{vm: m, id: threadID}, Request: req})
		case eventKindBreakpoint:
			threadID := d.readObjectID()
			readLocation(m, d)
			req, ok := m.c.lookupRequest(requestID).(jvm.BreakpointRequest)
			if !ok {
				m.c.log.Debugf("breakpoint event for deleted request %d", requestID)
				continue
			}
			set.Events = append(set.Events, jvm.BreakpointEvent{Thread: &thread{vm: m, id: threadID}, Request: req})
		case eventKindClassPrepare:
			threadID := d.readObjectID()
			tag := d.readByte()
			typeID := d.readRefTypeID()
			sig := d.readString()
			d.readInt() // class status, unused
			set.Events = append(set.Events, jvm.ClassPrepareEvent{
				Thread: &thread{vm: m, id: threadID},
				Type:   &refType{vm: m, tag: tag, id: typeID, signature: sig},
			})
		case eventKindVMDeath:
			set.Events = append(set.Events, jvm.VMDeathEvent{})
		default:
			// Unknown kinds have unknown payloads; the rest of the
			// packet cannot be decoded.
			return nil, fmt.Errorf("unknown event kind %d", kind)
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return set, nil
}
