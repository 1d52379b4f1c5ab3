package dap

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/Zen8/java-language-server/pkg/jvm"
)

// breakpointState is the binding state of a client breakpoint. Exactly
// one state applies at a time: a pending breakpoint owns no target-side
// requests, a bound one owns one request per executable location on its
// line, and a failed one can never bind (its line has no code).
type breakpointState int

const (
	statePending breakpointState = iota
	stateBound
	stateFailed
)

// clientBreakpoint tracks one breakpoint requested by the client. IDs
// are assigned from a monotonic counter and never reused.
type clientBreakpoint struct {
	id         int
	sourceName string
	sourcePath string
	line       int
	column     int
	state      breakpointState
	message    string
	requests   []jvm.BreakpointRequest
}

func (bp *clientBreakpoint) toDAP() dap.Breakpoint {
	return dap.Breakpoint{
		Id:       bp.id,
		Verified: bp.state == stateBound,
		Message:  bp.message,
		Source:   &dap.Source{Name: bp.sourceName, Path: bp.sourcePath},
		Line:     bp.line,
		Column:   bp.column,
	}
}

// breakpointManager owns all breakpoint state of a session. It is
// called from the request goroutine (setBreakpoints, configurationDone)
// and from the event loop goroutine (bindPrepared, idForRequest)
// concurrently, so every entry point takes the manager lock.
type breakpointManager struct {
	mu sync.Mutex

	vm      jvm.VirtualMachine
	log     *logrus.Entry
	console *logrus.Entry

	nextID int
	// configured is set once the client ends the configuration sequence.
	// Class prepare requests are only created from then on; before that
	// the target VM is still suspended from attach and cannot miss a
	// class load.
	configured bool

	// bySource holds all breakpoints keyed by their requested source
	// path. A new setBreakpoints call for a path replaces its entry
	// wholesale, retracting the old target-side requests first.
	bySource map[string][]*clientBreakpoint
	// byRequest maps an enabled target-side request back to its
	// breakpoint, for hit attribution in the event loop.
	byRequest map[jvm.BreakpointRequest]*clientBreakpoint
	// prepares holds the class prepare request created for each source
	// base name that still has pending breakpoints.
	prepares map[string]jvm.ClassPrepareRequest
}

func newBreakpointManager(vm jvm.VirtualMachine, log, console *logrus.Entry) *breakpointManager {
	return &breakpointManager{
		vm:        vm,
		log:       log,
		console:   console,
		nextID:    1,
		bySource:  make(map[string][]*clientBreakpoint),
		byRequest: make(map[jvm.BreakpointRequest]*clientBreakpoint),
		prepares:  make(map[string]jvm.ClassPrepareRequest),
	}
}

// setBreakpoints replaces the breakpoints of one source. The returned
// slice has one entry per requested breakpoint, in request order. An
// unreachable line is a normal verified=false result, never an error.
func (bm *breakpointManager) setBreakpoints(source dap.Source, want []dap.SourceBreakpoint) []dap.Breakpoint {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if err := bm.retractLocked(source.Path); err != nil {
		bm.log.Errorf("Failed to clear old breakpoint requests for %s: %v", source.Path, err)
	}

	name := sourceBaseName(source)
	typ := bm.loadedTypeForLocked(source.Path)
	breakpoints := make([]dap.Breakpoint, len(want))
	pending := false
	for i, w := range want {
		bp := &clientBreakpoint{
			id:         bm.nextID,
			sourceName: name,
			sourcePath: source.Path,
			line:       w.Line,
			column:     w.Column,
		}
		bm.nextID++
		if typ != nil {
			bm.bindLocked(bp, typ)
		} else {
			bp.state = statePending
			bp.message = fmt.Sprintf("%s is not yet loaded", name)
			pending = true
		}
		bm.bySource[source.Path] = append(bm.bySource[source.Path], bp)
		breakpoints[i] = bp.toDAP()
	}
	if pending && bm.configured {
		bm.ensurePrepareRequestLocked(name)
	}
	return breakpoints
}

// configurationDone arms deferred binding: one class prepare request
// per source base name that still has pending breakpoints.
func (bm *breakpointManager) configurationDone() {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.configured = true
	for _, bps := range bm.bySource {
		for _, bp := range bps {
			if bp.state == statePending {
				bm.ensurePrepareRequestLocked(bp.sourceName)
				break
			}
		}
	}
}

// bindPrepared reconciles pending breakpoints against a newly prepared
// type. It returns the breakpoints whose state changed, for "breakpoint"
// events to the client.
func (bm *breakpointManager) bindPrepared(typ jvm.ReferenceType) []dap.Breakpoint {
	path, err := typ.SourcePath()
	if err != nil {
		bm.log.Debugf("No source path for prepared type %s: %v", typ.Name(), err)
		return nil
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	var changed []dap.Breakpoint
	for requestedPath, bps := range bm.bySource {
		if !sourcePathMatches(requestedPath, path) {
			continue
		}
		for _, bp := range bps {
			if bp.state != statePending {
				continue
			}
			bm.bindLocked(bp, typ)
			changed = append(changed, bp.toDAP())
		}
	}
	return changed
}

// idForRequest attributes a breakpoint hit to a client breakpoint ID.
func (bm *breakpointManager) idForRequest(req jvm.BreakpointRequest) (int, bool) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bp, ok := bm.byRequest[req]
	if !ok {
		return 0, false
	}
	return bp.id, true
}

// clear drops all state without touching the target. Used when the VM
// is already gone.
func (bm *breakpointManager) clear() {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.bySource = make(map[string][]*clientBreakpoint)
	bm.byRequest = make(map[jvm.BreakpointRequest]*clientBreakpoint)
	bm.prepares = make(map[string]jvm.ClassPrepareRequest)
}

// bindLocked attempts to bind one breakpoint against a loaded type. The
// line may have several executable locations (overloads, lambdas); one
// target-side request is created per location, all suspending every
// thread on hit.
func (bm *breakpointManager) bindLocked(bp *clientBreakpoint, typ jvm.ReferenceType) {
	locations, err := typ.LocationsOfLine(bp.line)
	if err != nil && !errors.Is(err, jvm.ErrAbsentInformation) {
		bp.state = stateFailed
		bp.message = err.Error()
		bm.console.Warnf("Could not set breakpoint at %s:%d: %v", bp.sourceName, bp.line, err)
		return
	}
	if len(locations) == 0 {
		bp.state = stateFailed
		bp.message = fmt.Sprintf("%s:%d could not be found or had no code on it", bp.sourceName, bp.line)
		bm.console.Warn(bp.message)
		return
	}

	var enableErr error
	for _, loc := range locations {
		req := bm.vm.EventRequestManager().CreateBreakpointRequest(loc)
		req.SetSuspendPolicy(jvm.SuspendAll)
		if err := req.Enable(); err != nil {
			enableErr = multierr.Append(enableErr, err)
			continue
		}
		bp.requests = append(bp.requests, req)
		bm.byRequest[req] = bp
	}
	if len(bp.requests) == 0 {
		bp.state = stateFailed
		bp.message = enableErr.Error()
		bm.log.Errorf("Failed to enable breakpoint at %s:%d: %v", bp.sourceName, bp.line, enableErr)
		return
	}
	if enableErr != nil {
		bm.log.Errorf("Some breakpoint requests at %s:%d failed: %v", bp.sourceName, bp.line, enableErr)
	}
	bp.state = stateBound
	bp.message = ""
	bp.line = locations[0].LineNumber()
}

// retractLocked deletes all target-side requests previously created for
// a source, so a re-issued setBreakpoints never produces duplicate hits
// for the same line.
func (bm *breakpointManager) retractLocked(path string) error {
	var err error
	for _, bp := range bm.bySource[path] {
		for _, req := range bp.requests {
			err = multierr.Append(err, bm.vm.EventRequestManager().DeleteRequest(req))
			delete(bm.byRequest, req)
		}
	}
	delete(bm.bySource, path)
	return err
}

// loadedTypeForLocked scans the currently loaded types for one whose
// reported source path matches the requested path. First match wins;
// with several same-named files under different roots the association
// is ambiguous, a known limitation of suffix matching.
func (bm *breakpointManager) loadedTypeForLocked(path string) jvm.ReferenceType {
	classes, err := bm.vm.AllClasses()
	if err != nil {
		bm.log.Errorf("Failed to list loaded classes: %v", err)
		return nil
	}
	for _, typ := range classes {
		typePath, err := typ.SourcePath()
		if err != nil {
			continue
		}
		if sourcePathMatches(path, typePath) {
			return typ
		}
	}
	return nil
}

func (bm *breakpointManager) ensurePrepareRequestLocked(name string) {
	if _, ok := bm.prepares[name]; ok {
		return
	}
	req := bm.vm.EventRequestManager().CreateClassPrepareRequest()
	req.AddSourceNameFilter("*" + name)
	req.SetSuspendPolicy(jvm.SuspendAll)
	if err := req.Enable(); err != nil {
		bm.log.Errorf("Failed to enable class prepare request for %s: %v", name, err)
		return
	}
	bm.prepares[name] = req
}

// sourcePathMatches reports whether a type's root-relative source path
// identifies the client's requested file. The client reports a full
// local path while the target reports a path relative to its own source
// root, so association is by suffix rather than equality.
func sourcePathMatches(requestedPath, typePath string) bool {
	return strings.HasSuffix(filepath.ToSlash(requestedPath), filepath.ToSlash(typePath))
}

func sourceBaseName(source dap.Source) string {
	if source.Name != "" {
		return source.Name
	}
	return filepath.Base(source.Path)
}
