package dap

import (
	"fmt"

	"github.com/Zen8/java-language-server/pkg/jvm"
)

// The client treats frame ID 0 as "no frame", and scope references
// share the same integer space as frame IDs, so virtual frame IDs start
// at a fixed non-zero offset.
const frameIDOffset = 100

// Scope discriminants recovered from a scope reference.
const (
	scopeLocals    = 0
	scopeArguments = 1
)

// Virtual frame IDs are assigned by walking all live threads in the
// target's enumeration order and counting frames, each thread
// contributing frameCount consecutive IDs. The mapping is dense and
// order-stable but only valid for the current stop: threads and frames
// are not stable handles across a resume, so IDs are recomputed from
// the live thread list on every dereference instead of cached.

// threadFrames returns one thread's stack, innermost first, together
// with the virtual ID of its first frame.
func threadFrames(vm jvm.VirtualMachine, threadID int) ([]jvm.StackFrame, int, error) {
	threads, err := vm.AllThreads()
	if err != nil {
		return nil, 0, err
	}
	next := frameIDOffset
	for _, t := range threads {
		if t.UniqueID() == int64(threadID) {
			frames, err := t.Frames()
			if err != nil {
				return nil, 0, err
			}
			return frames, next, nil
		}
		n, err := t.FrameCount()
		if err != nil {
			return nil, 0, err
		}
		next += n
	}
	return nil, 0, fmt.Errorf("unknown thread id %d", threadID)
}

// frameForID is the inverse of the ID walk: it locates the owning
// thread and intra-thread offset of a virtual frame ID and fetches that
// frame. An out-of-range ID means the client referenced a frame from a
// stop that no longer exists.
func frameForID(vm jvm.VirtualMachine, id int) (jvm.StackFrame, error) {
	threads, err := vm.AllThreads()
	if err != nil {
		return nil, err
	}
	next := frameIDOffset
	for _, t := range threads {
		n, err := t.FrameCount()
		if err != nil {
			return nil, err
		}
		if id >= next && id < next+n {
			return t.Frame(id - next)
		}
		next += n
	}
	return nil, fmt.Errorf("unknown frame id %d", id)
}

// scopeReferences derives the two scope references of a frame. The
// factor of two must agree with decodeScopeReference.
func scopeReferences(frameID int) (locals, arguments int) {
	return 2 * frameID, 2*frameID + 1
}

// decodeScopeReference recovers the frame ID and scope discriminant
// from a variables reference handed out by scopeReferences.
func decodeScopeReference(ref int) (frameID, discriminant int) {
	return ref / 2, ref % 2
}
