package dap

import (
	"io"
	"testing"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zen8/java-language-server/pkg/jvm"
	"github.com/Zen8/java-language-server/pkg/jvm/jvmtest"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

func newTestManager(vm *jvmtest.VM) *breakpointManager {
	return newBreakpointManager(vm, discardLogger(), discardLogger())
}

func TestSourcePathMatches(t *testing.T) {
	tests := []struct {
		requested string
		typePath  string
		want      bool
	}{
		{"/work/src/com/example/Foo.java", "com/example/Foo.java", true},
		{"/work/src/com/example/Foo.java", "com/example/Bar.java", false},
		{"/work/src/com/example/Foo.java", "example/Foo.java", true},
		{`C:\work\src\com\example\Foo.java`, "com/example/Foo.java", false},
		{"/other/Foo.java", "com/example/Foo.java", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, sourcePathMatches(tc.requested, tc.typePath),
			"requested=%s typePath=%s", tc.requested, tc.typePath)
	}
}

func TestImmediateBindingAdjustsLine(t *testing.T) {
	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	cls.AddLine(10, "run")
	bm := newTestManager(vm)

	got := bm.setBreakpoints(
		dap.Source{Name: "Foo.java", Path: "/work/src/com/example/Foo.java"},
		[]dap.SourceBreakpoint{{Line: 10}})
	require.Len(t, got, 1)
	assert.True(t, got[0].Verified)
	assert.Equal(t, 10, got[0].Line)
	assert.NotZero(t, got[0].Id)
	require.NotNil(t, got[0].Source)
	assert.Equal(t, "Foo.java", got[0].Source.Name)
	assert.Equal(t, "/work/src/com/example/Foo.java", got[0].Source.Path)
	require.Len(t, vm.Requests.EnabledBreakpoints(), 1)
}

func TestBindingCreatesOneRequestPerLocation(t *testing.T) {
	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	// Two executable locations on the same line, e.g. a lambda.
	cls.AddLine(10, "run")
	cls.AddLine(10, "lambda$run$0")
	bm := newTestManager(vm)

	got := bm.setBreakpoints(
		dap.Source{Name: "Foo.java", Path: "/work/src/com/example/Foo.java"},
		[]dap.SourceBreakpoint{{Line: 10}})
	require.Len(t, got, 1)
	assert.True(t, got[0].Verified)
	assert.Len(t, vm.Requests.EnabledBreakpoints(), 2)
}

func TestBreakpointIDsAreNeverReused(t *testing.T) {
	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	cls.AddLine(10, "run")
	bm := newTestManager(vm)
	source := dap.Source{Name: "Foo.java", Path: "/work/src/com/example/Foo.java"}

	first := bm.setBreakpoints(source, []dap.SourceBreakpoint{{Line: 10}})
	second := bm.setBreakpoints(source, []dap.SourceBreakpoint{{Line: 10}})
	assert.NotEqual(t, first[0].Id, second[0].Id)
	assert.Greater(t, second[0].Id, first[0].Id)
}

func TestPendingBreakpointHasNoRequests(t *testing.T) {
	vm := jvmtest.NewVM()
	bm := newTestManager(vm)

	got := bm.setBreakpoints(
		dap.Source{Name: "Foo.java", Path: "/work/src/com/example/Foo.java"},
		[]dap.SourceBreakpoint{{Line: 10}, {Line: 20}})
	require.Len(t, got, 2)
	for _, bp := range got {
		assert.False(t, bp.Verified)
		assert.Equal(t, "Foo.java is not yet loaded", bp.Message)
	}
	assert.Empty(t, vm.Requests.Breakpoints())
}

func TestPrepareRequestCreatedOnLateSetBreakpoints(t *testing.T) {
	vm := jvmtest.NewVM()
	bm := newTestManager(vm)
	bm.configurationDone()

	bm.setBreakpoints(
		dap.Source{Name: "Foo.java", Path: "/work/src/com/example/Foo.java"},
		[]dap.SourceBreakpoint{{Line: 10}})

	prepares := vm.Requests.ClassPrepares()
	require.Len(t, prepares, 1)
	assert.Equal(t, []string{"*Foo.java"}, prepares[0].Patterns())
	assert.Equal(t, jvm.SuspendAll, prepares[0].SuspendPolicy())
	assert.True(t, prepares[0].Enabled())

	// A second set for the same source reuses the prepare request.
	bm.setBreakpoints(
		dap.Source{Name: "Foo.java", Path: "/work/src/com/example/Foo.java"},
		[]dap.SourceBreakpoint{{Line: 12}})
	assert.Len(t, vm.Requests.ClassPrepares(), 1)
}

func TestBindPreparedRebindsOnlyMatchingPending(t *testing.T) {
	vm := jvmtest.NewVM()
	bm := newTestManager(vm)

	bm.setBreakpoints(
		dap.Source{Name: "Foo.java", Path: "/work/src/com/example/Foo.java"},
		[]dap.SourceBreakpoint{{Line: 10}, {Line: 17}})
	bm.setBreakpoints(
		dap.Source{Name: "Bar.java", Path: "/work/src/com/example/Bar.java"},
		[]dap.SourceBreakpoint{{Line: 5}})

	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	cls.AddLine(10, "run")

	changed := bm.bindPrepared(cls)
	require.Len(t, changed, 2)
	assert.True(t, changed[0].Verified)
	assert.False(t, changed[1].Verified, "line 17 has no code and must fail")
	assert.NotEmpty(t, changed[1].Message)

	// Bar.java stays pending; a second prepare for Foo changes nothing.
	assert.Empty(t, bm.bindPrepared(cls))
}

func TestIDForRequestAttribution(t *testing.T) {
	vm := jvmtest.NewVM()
	cls := vm.AddClass("com.example.Foo", "com/example/Foo.java")
	cls.AddLine(10, "run")
	bm := newTestManager(vm)

	got := bm.setBreakpoints(
		dap.Source{Name: "Foo.java", Path: "/work/src/com/example/Foo.java"},
		[]dap.SourceBreakpoint{{Line: 10}})
	req := vm.Requests.EnabledBreakpoints()[0]

	id, ok := bm.idForRequest(req)
	require.True(t, ok)
	assert.Equal(t, got[0].Id, id)

	bm.clear()
	_, ok = bm.idForRequest(req)
	assert.False(t, ok)
}
