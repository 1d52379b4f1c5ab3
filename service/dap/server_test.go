package dap

import (
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-dap"
	"go.uber.org/goleak"

	"github.com/Zen8/java-language-server/pkg/jvm"
	"github.com/Zen8/java-language-server/pkg/jvm/jvmtest"
	"github.com/Zen8/java-language-server/pkg/logflags"
	"github.com/Zen8/java-language-server/service"
	"github.com/Zen8/java-language-server/service/dap/daptest"
)

func TestMain(m *testing.M) {
	var logOutput string
	flag.StringVar(&logOutput, "log-output", "", "configures log output")
	flag.Parse()
	logflags.Setup(logOutput != "", logOutput, "")
	goleak.VerifyTestMain(m)
}

// runTest starts a server against a scripted fake VM and connects a DAP
// client to it. The fake's connector is registered under a test-unique
// transport name, which the test passes in its attach request.
func runTest(t *testing.T, vm *jvmtest.VM, test func(client *daptest.Client, conn *jvmtest.Connector)) {
	runTestWithRefusals(t, vm, 0, test)
}

func runTestWithRefusals(t *testing.T, vm *jvmtest.VM, refuse int, test func(client *daptest.Client, conn *jvmtest.Connector)) {
	conn := &jvmtest.Connector{TransportName: "fake-" + t.Name(), RefuseFirst: refuse, VM: vm}
	jvm.RegisterConnector(conn)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	disconnectChan := make(chan struct{})
	server := NewServer(&service.Config{
		Listener:       listener,
		DisconnectChan: disconnectChan,
	})
	server.Run()
	// Give server time to start listening for clients
	time.Sleep(100 * time.Millisecond)

	var stopOnce sync.Once
	// Run a goroutine that stops the server when disconnectChan is signaled.
	// This helps us test that certain events cause the server to stop as
	// expected.
	go func() {
		<-disconnectChan
		stopOnce.Do(server.Stop)
	}()

	client := daptest.NewClient(listener.Addr().String())
	defer client.Close()

	defer func() {
		stopOnce.Do(server.Stop)
	}()

	test(client, conn)
}

// attach performs the initialize/attach handshake and consumes the
// resulting output event, initialized event and attach response.
func attach(t *testing.T, client *daptest.Client, conn *jvmtest.Connector, extra map[string]interface{}) {
	t.Helper()
	args := map[string]interface{}{"transport": conn.TransportName, "port": 5005}
	for k, v := range extra {
		args[k] = v
	}
	client.InitializeRequest()
	client.ExpectInitializeResponse(t)
	client.AttachRequest(args)
	oe := client.ExpectOutputEvent(t)
	if oe.Body.Category != "console" {
		t.Errorf("got %#v, want Category=console", oe)
	}
	client.ExpectInitializedEvent(t)
	client.ExpectAttachResponse(t)
}

// writeSourceFile creates rel under root so the source resolver can
// find it, and returns its absolute path.
func writeSourceFile(t *testing.T, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("class Stub {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAttachRetriesWhileConnectionRefused(t *testing.T) {
	vm := jvmtest.NewVM()
	runTestWithRefusals(t, vm, 2, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)
		if got := conn.Attempts(); got != 3 {
			t.Errorf("got %d attach attempts, want 3", got)
		}

		client.DisconnectRequest()
		client.ExpectDisconnectResponse(t)
		if !vm.Disposed() {
			t.Error("VM not disposed on disconnect")
		}
	})
}

func TestAttachFailsWithoutPort(t *testing.T) {
	runTest(t, jvmtest.NewVM(), func(client *daptest.Client, conn *jvmtest.Connector) {
		client.InitializeRequest()
		client.ExpectInitializeResponse(t)
		client.AttachRequest(map[string]interface{}{"transport": conn.TransportName})
		er := client.ExpectErrorResponse(t)
		if er.Body.Error == nil || er.Body.Error.Id != FailedToAttach {
			t.Errorf("got %#v, want Id=%d", er, FailedToAttach)
		}
	})
}

func TestAttachFailsForUnknownTransport(t *testing.T) {
	runTest(t, jvmtest.NewVM(), func(client *daptest.Client, conn *jvmtest.Connector) {
		client.InitializeRequest()
		client.ExpectInitializeResponse(t)
		client.AttachRequest(map[string]interface{}{"transport": "dt_shmem", "port": 5005})
		er := client.ExpectErrorResponse(t)
		if er.Body.Error == nil || er.Body.Error.Id != FailedToAttach {
			t.Errorf("got %#v, want Id=%d", er, FailedToAttach)
		}
	})
}

func TestLaunchNotSupported(t *testing.T) {
	runTest(t, jvmtest.NewVM(), func(client *daptest.Client, conn *jvmtest.Connector) {
		client.LaunchRequest("/tmp/prog", false)
		er := client.ExpectErrorResponse(t)
		if er.Body.Error == nil || er.Body.Error.Id != FailedToLaunch {
			t.Errorf("got %#v, want Id=%d", er, FailedToLaunch)
		}
	})
}

// TestDeferredBreakpointBinding covers the full deferred binding flow:
// a breakpoint set before its class loads is reported as pending, a
// class prepare request with a source name filter is armed at
// configurationDone, and the simulated class load rebinds the
// breakpoint and emits a change event.
func TestDeferredBreakpointBinding(t *testing.T) {
	vm := jvmtest.NewVM()
	thread := vm.AddThread(1, "main")
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.SetBreakpointsRequest("/work/src/com/example/Foo.java", []int{10})
		sbp := client.ExpectSetBreakpointsResponse(t)
		if len(sbp.Body.Breakpoints) != 1 {
			t.Fatalf("got %d breakpoints, want 1", len(sbp.Body.Breakpoints))
		}
		got := sbp.Body.Breakpoints[0]
		if got.Verified || got.Message != "Foo.java is not yet loaded" {
			t.Errorf("got %#v, want Verified=false, Message=\"Foo.java is not yet loaded\"", got)
		}

		client.ConfigurationDoneRequest()
		client.ExpectConfigurationDoneResponse(t)
		<-vm.Resumed()

		prepares := vm.Requests.ClassPrepares()
		if len(prepares) != 1 {
			t.Fatalf("got %d class prepare requests, want 1", len(prepares))
		}
		if patterns := prepares[0].Patterns(); len(patterns) != 1 || patterns[0] != "*Foo.java" {
			t.Errorf("got patterns %v, want [*Foo.java]", patterns)
		}
		if !prepares[0].Enabled() {
			t.Error("class prepare request not enabled")
		}

		// Simulate the class load.
		cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
		cls.AddLine(10, "run")
		vm.PushEventSet(jvm.SuspendAll, jvm.ClassPrepareEvent{Thread: thread, Type: cls})

		be := client.ExpectBreakpointEvent(t)
		if be.Body.Reason != "changed" {
			t.Errorf("got reason %q, want changed", be.Body.Reason)
		}
		if !be.Body.Breakpoint.Verified || be.Body.Breakpoint.Id != got.Id || be.Body.Breakpoint.Line != 10 {
			t.Errorf("got %#v, want Verified=true, Id=%d, Line=10", be.Body.Breakpoint, got.Id)
		}
		// The VM must be resumed after class prepare handling.
		<-vm.Resumed()

		bps := vm.Requests.EnabledBreakpoints()
		if len(bps) != 1 {
			t.Fatalf("got %d enabled breakpoint requests, want 1", len(bps))
		}
		if bps[0].SuspendPolicy() != jvm.SuspendAll {
			t.Errorf("got suspend policy %v, want SuspendAll", bps[0].SuspendPolicy())
		}
	})
}

func TestBreakpointOnLineWithoutCode(t *testing.T) {
	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	cls.AddLine(10, "run")
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.SetBreakpointsRequest("/work/src/com/example/Foo.java", []int{17})
		client.ExpectOutputEvent(t) // could not be found warning
		sbp := client.ExpectSetBreakpointsResponse(t)
		got := sbp.Body.Breakpoints[0]
		if got.Verified {
			t.Errorf("got %#v, want Verified=false", got)
		}
		want := "Foo.java:17 could not be found or had no code on it"
		if got.Message != want {
			t.Errorf("got message %q, want %q", got.Message, want)
		}
		if n := len(vm.Requests.Breakpoints()); n != 0 {
			t.Errorf("got %d breakpoint requests, want 0", n)
		}
	})
}

func TestSetBreakpointsRetractsOldRequests(t *testing.T) {
	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	cls.AddLine(10, "run")
	cls.AddLine(12, "run")
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.SetBreakpointsRequest("/work/src/com/example/Foo.java", []int{10})
		sbp := client.ExpectSetBreakpointsResponse(t)
		if !sbp.Body.Breakpoints[0].Verified {
			t.Fatalf("got %#v, want Verified=true", sbp.Body.Breakpoints[0])
		}
		first := vm.Requests.EnabledBreakpoints()
		if len(first) != 1 {
			t.Fatalf("got %d enabled requests, want 1", len(first))
		}

		client.SetBreakpointsRequest("/work/src/com/example/Foo.java", []int{12})
		sbp = client.ExpectSetBreakpointsResponse(t)
		if !sbp.Body.Breakpoints[0].Verified || sbp.Body.Breakpoints[0].Line != 12 {
			t.Errorf("got %#v, want Verified=true, Line=12", sbp.Body.Breakpoints[0])
		}

		enabled := vm.Requests.EnabledBreakpoints()
		if len(enabled) != 1 {
			t.Fatalf("got %d enabled requests after re-set, want 1", len(enabled))
		}
		if enabled[0] == first[0] {
			t.Error("old breakpoint request still enabled after re-set")
		}
		deleted := vm.Requests.Deleted()
		if len(deleted) != 1 || deleted[0] != first[0] {
			t.Errorf("got deleted %v, want the original request", deleted)
		}
	})
}

func TestBreakpointHitEmitsStopped(t *testing.T) {
	vm := jvmtest.NewVM()
	thread := vm.AddThread(7, "worker")
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	cls.AddLine(10, "run")
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.SetBreakpointsRequest("/work/src/com/example/Foo.java", []int{10})
		sbp := client.ExpectSetBreakpointsResponse(t)
		id := sbp.Body.Breakpoints[0].Id

		req := vm.Requests.EnabledBreakpoints()[0]
		vm.PushEventSet(jvm.SuspendAll, jvm.BreakpointEvent{Thread: thread, Request: req})

		se := client.ExpectStoppedEvent(t)
		if se.Body.Reason != "breakpoint" || se.Body.ThreadId != 7 || !se.Body.AllThreadsStopped {
			t.Errorf("got %#v, want Reason=breakpoint, ThreadId=7, AllThreadsStopped=true", se.Body)
		}
		if len(se.Body.HitBreakpointIds) != 1 || se.Body.HitBreakpointIds[0] != id {
			t.Errorf("got HitBreakpointIds %v, want [%d]", se.Body.HitBreakpointIds, id)
		}
		// The target stays stopped until the client continues.
		if vm.Resumes() != 0 {
			t.Errorf("got %d resumes, want 0", vm.Resumes())
		}

		client.ContinueRequest(7)
		cr := client.ExpectContinueResponse(t)
		if !cr.Body.AllThreadsContinued {
			t.Errorf("got %#v, want AllThreadsContinued=true", cr.Body)
		}
		if vm.Resumes() != 1 {
			t.Errorf("got %d resumes, want 1", vm.Resumes())
		}
	})
}

// TestStepLifecycle checks the one-shot step request flow: next creates
// a single count-limited line step for the thread, resumes the VM, and
// the completion event produces one stopped notification and retires
// the request.
func TestStepLifecycle(t *testing.T) {
	vm := jvmtest.NewVM()
	thread := vm.AddThread(7, "worker")
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.NextRequest(7)
		client.ExpectNextResponse(t)
		<-vm.Resumed()

		steps := vm.Requests.Steps()
		if len(steps) != 1 {
			t.Fatalf("got %d step requests, want 1", len(steps))
		}
		step := steps[0]
		if step.Thread() != thread {
			t.Error("step request created for wrong thread")
		}
		if step.Size() != jvm.StepLine || step.Depth() != jvm.StepOver {
			t.Errorf("got size=%v depth=%v, want StepLine/StepOver", step.Size(), step.Depth())
		}
		if step.CountFilter() != 1 {
			t.Errorf("got count filter %d, want 1", step.CountFilter())
		}
		if !step.Enabled() {
			t.Error("step request not enabled")
		}

		vm.PushEventSet(jvm.SuspendAll, jvm.StepEvent{Thread: thread, Request: step})
		se := client.ExpectStoppedEvent(t)
		if se.Body.Reason != "step" || se.Body.ThreadId != 7 {
			t.Errorf("got %#v, want Reason=step, ThreadId=7", se.Body)
		}

		// The request must be retired so the next step starts fresh.
		deadline := time.After(2 * time.Second)
		for step.Enabled() {
			select {
			case <-deadline:
				t.Fatal("step request still enabled after completion")
			case <-time.After(10 * time.Millisecond):
			}
		}
	})
}

func TestStepUnknownThreadIsNoOp(t *testing.T) {
	vm := jvmtest.NewVM()
	vm.AddThread(1, "main")
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.StepInRequest(99)
		client.ExpectStepInResponse(t)
		if n := len(vm.Requests.Steps()); n != 0 {
			t.Errorf("got %d step requests, want 0", n)
		}
		if vm.Resumes() != 0 {
			t.Errorf("got %d resumes, want 0", vm.Resumes())
		}
	})
}

func TestThreads(t *testing.T) {
	vm := jvmtest.NewVM()
	vm.AddThread(1, "main")
	vm.AddThread(7, "worker")
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.ThreadsRequest()
		tr := client.ExpectThreadsResponse(t)
		want := []dap.Thread{{Id: 1, Name: "main"}, {Id: 7, Name: "worker"}}
		if len(tr.Body.Threads) != len(want) {
			t.Fatalf("got %d threads, want %d", len(tr.Body.Threads), len(want))
		}
		for i, th := range want {
			if tr.Body.Threads[i] != th {
				t.Errorf("thread %d: got %#v, want %#v", i, tr.Body.Threads[i], th)
			}
		}
	})
}

// TestFrameIDAllocation checks that virtual frame IDs are dense and
// order-stable: with a 5-frame thread enumerated before a 3-frame
// thread, the second thread's frames get offset+5 through offset+7.
func TestFrameIDAllocation(t *testing.T) {
	root := t.TempDir()
	abs := writeSourceFile(t, root, "com/example/Foo.java")

	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	first := vm.AddThread(1, "main")
	for i := 0; i < 5; i++ {
		first.AddFrame(cls, "run", 10+i)
	}
	second := vm.AddThread(2, "worker")
	for i := 0; i < 3; i++ {
		second.AddFrame(cls, "work", 20+i)
	}

	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, map[string]interface{}{"sourceRoots": []string{root}})

		client.StackTraceRequest(2, 0, 0)
		st := client.ExpectStackTraceResponse(t)
		if len(st.Body.StackFrames) != 3 || st.Body.TotalFrames != 3 {
			t.Fatalf("got %d frames (total %d), want 3", len(st.Body.StackFrames), st.Body.TotalFrames)
		}
		for i, frame := range st.Body.StackFrames {
			wantID := frameIDOffset + 5 + i
			if frame.Id != wantID {
				t.Errorf("frame %d: got id %d, want %d", i, frame.Id, wantID)
			}
		}
		got := st.Body.StackFrames[0]
		if got.Name != "com.example.Foo.work" || got.Line != 20 {
			t.Errorf("got %#v, want Name=com.example.Foo.work, Line=20", got)
		}
		if got.Source == nil || got.Source.Path != abs {
			t.Errorf("got source %#v, want path %q", got.Source, abs)
		}
	})
}

func TestStackTracePaging(t *testing.T) {
	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	thread := vm.AddThread(1, "main")
	for i := 0; i < 10; i++ {
		thread.AddFrame(cls, "run", 10+i)
	}
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		// Source resolution fails once for the unmapped path.
		client.StackTraceRequest(1, 2, 3)
		client.ExpectOutputEvent(t)
		st := client.ExpectStackTraceResponse(t)
		if len(st.Body.StackFrames) != 3 || st.Body.TotalFrames != 10 {
			t.Fatalf("got %d frames (total %d), want 3 (total 10)", len(st.Body.StackFrames), st.Body.TotalFrames)
		}
		if st.Body.StackFrames[0].Id != frameIDOffset+2 {
			t.Errorf("got first id %d, want %d", st.Body.StackFrames[0].Id, frameIDOffset+2)
		}
		if st.Body.StackFrames[0].PresentationHint != "subtle" {
			t.Errorf("got hint %q, want subtle for unresolved source", st.Body.StackFrames[0].PresentationHint)
		}
	})
}

func TestScopesAndVariables(t *testing.T) {
	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	thread := vm.AddThread(1, "main")
	frame := thread.AddFrame(cls, "run", 10)
	frame.AddArgument("name", "java.lang.String", `"hi"`)
	frame.AddLocal("count", "int", "42")

	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.ScopesRequest(frameIDOffset)
		sr := client.ExpectScopesResponse(t)
		if len(sr.Body.Scopes) != 2 {
			t.Fatalf("got %d scopes, want 2", len(sr.Body.Scopes))
		}
		locals, args := sr.Body.Scopes[0], sr.Body.Scopes[1]
		if locals.Name != "Locals" || locals.VariablesReference != 2*frameIDOffset {
			t.Errorf("got %#v, want Locals with reference %d", locals, 2*frameIDOffset)
		}
		if args.Name != "Arguments" || args.VariablesReference != 2*frameIDOffset+1 {
			t.Errorf("got %#v, want Arguments with reference %d", args, 2*frameIDOffset+1)
		}

		client.VariablesRequest(locals.VariablesReference)
		vr := client.ExpectVariablesResponse(t)
		if len(vr.Body.Variables) != 1 {
			t.Fatalf("got %#v, want one local", vr.Body.Variables)
		}
		got := vr.Body.Variables[0]
		if got.Name != "count" || got.Value != "42" || got.Type != "int" {
			t.Errorf("got %#v, want count=42 int", got)
		}
		if got.VariablesReference != 0 {
			t.Errorf("got reference %d, want 0 for flat value", got.VariablesReference)
		}

		client.VariablesRequest(args.VariablesReference)
		vr = client.ExpectVariablesResponse(t)
		if len(vr.Body.Variables) != 1 || vr.Body.Variables[0].Name != "name" {
			t.Errorf("got %#v, want only the argument", vr.Body.Variables)
		}
	})
}

func TestVariablesWithoutDebugInformation(t *testing.T) {
	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	thread := vm.AddThread(1, "main")
	frame := thread.AddFrame(cls, "run", 10)
	frame.AbsentInfo = true

	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.VariablesRequest(2 * frameIDOffset)
		client.ExpectOutputEvent(t) // no variable information warning
		vr := client.ExpectVariablesResponse(t)
		if len(vr.Body.Variables) != 0 {
			t.Errorf("got %#v, want empty", vr.Body.Variables)
		}
	})
}

func TestVariablesUnknownFrame(t *testing.T) {
	vm := jvmtest.NewVM()
	vm.AddThread(1, "main")
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.VariablesRequest(2 * (frameIDOffset + 5))
		er := client.ExpectErrorResponse(t)
		if er.Body.Error == nil || er.Body.Error.Id != UnableToLookupVariable {
			t.Errorf("got %#v, want Id=%d", er, UnableToLookupVariable)
		}
	})
}

func TestTerminate(t *testing.T) {
	vm := jvmtest.NewVM()
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.TerminateRequest()
		client.ExpectTerminateResponse(t)
		exited, code := vm.Exited()
		if !exited || code != 1 {
			t.Errorf("got exited=%v code=%d, want exited with code 1", exited, code)
		}
	})
}

func TestVMDeathAndDisconnectEvents(t *testing.T) {
	vm := jvmtest.NewVM()
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		vm.PushEventSet(jvm.SuspendNone, jvm.VMDeathEvent{})
		client.ExpectExitedEvent(t)

		vm.Disconnect()
		client.ExpectTerminatedEvent(t)
	})
}

// A breakpoint hit can race the retraction of its request; the wire
// client then drops the event and delivers a suspending set with
// nothing left in it. The target must still be resumed or it stays
// suspended forever.
func TestSuspendingSetWithAllEventsDroppedResumes(t *testing.T) {
	vm := jvmtest.NewVM()
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		vm.PushEventSet(jvm.SuspendAll)
		select {
		case <-vm.Resumed():
		case <-time.After(2 * time.Second):
			t.Fatal("suspending event set with no handled events was never resumed")
		}
	})
}

// Events can still be draining after the session state is gone. The
// loop must not touch stale breakpoint state and must still release a
// suspended target.
func TestEventLoopSurvivesSessionRelease(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	server := NewServer(&service.Config{Listener: listener, DisconnectChan: make(chan struct{})})
	defer server.Stop()
	local, remote := net.Pipe()
	server.conn = local
	defer remote.Close()
	go io.Copy(io.Discard, remote)

	vm := jvmtest.NewVM()
	done := make(chan struct{})
	go func() {
		server.eventLoop(vm)
		close(done)
	}()

	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	vm.PushEventSet(jvm.SuspendAll, jvm.ClassPrepareEvent{Type: cls})
	select {
	case <-vm.Resumed():
	case <-time.After(2 * time.Second):
		t.Fatal("class prepare draining after session release was never resumed")
	}

	vm.Disconnect()
	<-done
}

func TestSetExceptionBreakpointsIsAcceptedNoOp(t *testing.T) {
	vm := jvmtest.NewVM()
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.SetExceptionBreakpointsRequest()
		client.ExpectSetExceptionBreakpointsResponse(t)
	})
}

func TestSecondAttachRejected(t *testing.T) {
	vm := jvmtest.NewVM()
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.AttachRequest(map[string]interface{}{"transport": conn.TransportName, "port": 5005})
		er := client.ExpectErrorResponse(t)
		if er.Body.Error == nil || er.Body.Error.Id != FailedToAttach {
			t.Errorf("got %#v, want Id=%d", er, FailedToAttach)
		}
	})
}

func TestEvaluateNotYetImplemented(t *testing.T) {
	vm := jvmtest.NewVM()
	runTest(t, vm, func(client *daptest.Client, conn *jvmtest.Connector) {
		attach(t, client, conn, nil)

		client.EvaluateRequest("1+1", frameIDOffset)
		er := client.ExpectErrorResponse(t)
		if er.Body.Error == nil || er.Body.Error.Id != NotYetImplemented {
			t.Errorf("got %#v, want Id=%d", er, NotYetImplemented)
		}
	})
}
