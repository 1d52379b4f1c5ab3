package jdwp

import (
	"fmt"
	"math"
	"strings"

	"github.com/Zen8/java-language-server/pkg/jvm"
)

// vm mirrors the remote virtual machine. All mirrors (threads, types,
// frames) are thin handles over the connection; nothing is cached,
// because identifiers other than object IDs go stale whenever the
// target resumes.
type vm struct {
	c *conn
}

var _ jvm.VirtualMachine = (*vm)(nil)

func newVM(c *conn) *vm {
	m := &vm{c: c}
	c.vm = m
	go c.readLoop()
	return m
}

func (m *vm) AllThreads() ([]jvm.ThreadReference, error) {
	d, err := m.c.command(cmdSetVirtualMachine, cmdVMAllThreads, nil)
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	threads := make([]jvm.ThreadReference, 0, n)
	for i := 0; i < n; i++ {
		threads = append(threads, &thread{vm: m, id: d.readObjectID()})
	}
	return threads, d.err
}

func (m *vm) AllClasses() ([]jvm.ReferenceType, error) {
	d, err := m.c.command(cmdSetVirtualMachine, cmdVMAllClasses, nil)
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	types := make([]jvm.ReferenceType, 0, n)
	for i := 0; i < n; i++ {
		tag := d.readByte()
		id := d.readRefTypeID()
		sig := d.readString()
		d.readInt() // class status, unused
		types = append(types, &refType{vm: m, tag: tag, id: id, signature: sig})
	}
	return types, d.err
}

func (m *vm) EventQueue() jvm.EventQueue { return eventQueue{m.c} }

func (m *vm) EventRequestManager() jvm.EventRequestManager { return requestManager{m} }

func (m *vm) Resume() error {
	_, err := m.c.command(cmdSetVirtualMachine, cmdVMResume, nil)
	return err
}

func (m *vm) Dispose() error {
	_, err := m.c.command(cmdSetVirtualMachine, cmdVMDispose, nil)
	if err == jvm.ErrVMDisconnected {
		return nil
	}
	m.c.sock.Close()
	return err
}

func (m *vm) Exit(code int) error {
	e := newEncoder(&m.c.sizes)
	e.writeInt(int32(code))
	_, err := m.c.command(cmdSetVirtualMachine, cmdVMExit, e.bytes())
	return err
}

type eventQueue struct {
	c *conn
}

func (q eventQueue) Remove() (*jvm.EventSet, error) {
	set, ok := <-q.c.events
	if !ok {
		return nil, jvm.ErrVMDisconnected
	}
	return set, nil
}

// thread mirrors one target thread.
type thread struct {
	vm *vm
	id uint64
}

func (t *thread) UniqueID() int64 { return int64(t.id) }

func (t *thread) Name() (string, error) {
	e := newEncoder(&t.vm.c.sizes)
	e.writeObjectID(t.id)
	d, err := t.vm.c.command(cmdSetThreadReference, cmdThreadName, e.bytes())
	if err != nil {
		return "", err
	}
	return d.readString(), d.err
}

func (t *thread) FrameCount() (int, error) {
	e := newEncoder(&t.vm.c.sizes)
	e.writeObjectID(t.id)
	d, err := t.vm.c.command(cmdSetThreadReference, cmdThreadFrameCount, e.bytes())
	if err != nil {
		return 0, err
	}
	return int(d.readInt()), d.err
}

func (t *thread) Frames() ([]jvm.StackFrame, error) {
	return t.frameRange(0, -1)
}

func (t *thread) Frame(index int) (jvm.StackFrame, error) {
	frames, err := t.frameRange(index, 1)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("jdwp: no frame at depth %d", index)
	}
	return frames[0], nil
}

func (t *thread) frameRange(start, length int) ([]jvm.StackFrame, error) {
	e := newEncoder(&t.vm.c.sizes)
	e.writeObjectID(t.id)
	e.writeInt(int32(start))
	e.writeInt(int32(length))
	d, err := t.vm.c.command(cmdSetThreadReference, cmdThreadFrames, e.bytes())
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	frames := make([]jvm.StackFrame, 0, n)
	for i := 0; i < n; i++ {
		id := d.readFrameID()
		loc := readLocation(t.vm, d)
		frames = append(frames, &stackFrame{vm: t.vm, thread: t, id: id, loc: loc})
	}
	if d.err != nil {
		return nil, d.err
	}
	for _, f := range frames {
		f.(*stackFrame).loc.resolve(t.vm)
	}
	return frames, nil
}

// refType mirrors one loaded reference type.
type refType struct {
	vm        *vm
	tag       byte
	id        uint64
	signature string
}

func (r *refType) Name() string { return typeNameFromSignature(r.signature) }

// SourcePath derives the root-relative source path the way JDI does
// for the Java stratum: the package directory of the type name joined
// with the target-reported source file name.
func (r *refType) SourcePath() (string, error) {
	file, err := r.sourceFile()
	if err != nil {
		return "", err
	}
	name := r.Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		dir := strings.ReplaceAll(name[:i], ".", "/")
		return dir + "/" + file, nil
	}
	return file, nil
}

func (r *refType) sourceFile() (string, error) {
	e := newEncoder(&r.vm.c.sizes)
	e.writeRefTypeID(r.id)
	d, err := r.vm.c.command(cmdSetReferenceType, cmdRefTypeSourceFile, e.bytes())
	if err != nil {
		return "", err
	}
	return d.readString(), d.err
}

type methodInfo struct {
	id        uint64
	name      string
	signature string
}

func (r *refType) methods() ([]methodInfo, error) {
	e := newEncoder(&r.vm.c.sizes)
	e.writeRefTypeID(r.id)
	d, err := r.vm.c.command(cmdSetReferenceType, cmdRefTypeMethods, e.bytes())
	if err != nil {
		return nil, err
	}
	n := int(d.readInt())
	methods := make([]methodInfo, 0, n)
	for i := 0; i < n; i++ {
		m := methodInfo{id: d.readMethodID(), name: d.readString(), signature: d.readString()}
		d.readInt() // modifier bits, unused
		methods = append(methods, m)
	}
	return methods, d.err
}

// LocationsOfLine returns at most one location per method: the first
// line-table entry for the requested line. Several methods can carry
// code for the same line (lambdas, inner classes compiled into the
// same source).
func (r *refType) LocationsOfLine(line int) ([]jvm.Location, error) {
	methods, err := r.methods()
	if err != nil {
		return nil, err
	}
	var locs []jvm.Location
	for _, m := range methods {
		entry, ok, err := r.lineEntry(m, line)
		if err != nil {
			if err == jvm.ErrAbsentInformation {
				continue // native or synthetic method
			}
			return nil, err
		}
		if ok {
			locs = append(locs, &location{
				declaring:  r,
				typeTag:    r.tag,
				methodID:   m.id,
				methodName: m.name,
				codeIndex:  entry.codeIndex,
				line:       entry.line,
			})
		}
	}
	return locs, nil
}

type lineTableEntry struct {
	codeIndex int64
	line      int
}

func (r *refType) lineEntry(m methodInfo, line int) (lineTableEntry, bool, error) {
	e := newEncoder(&r.vm.c.sizes)
	e.writeRefTypeID(r.id)
	e.writeMethodID(m.id)
	d, err := r.vm.c.command(cmdSetMethod, cmdMethodLineTable, e.bytes())
	if err != nil {
		return lineTableEntry{}, false, err
	}
	d.readLong() // lowest code index, unused
	d.readLong() // highest code index, unused
	n := int(d.readInt())
	for i := 0; i < n; i++ {
		idx := d.readLong()
		ln := int(d.readInt())
		if ln == line {
			return lineTableEntry{codeIndex: idx, line: ln}, true, d.err
		}
	}
	return lineTableEntry{}, false, d.err
}

// location is an executable position within a method.
type location struct {
	declaring  *refType
	typeTag    byte
	methodID   uint64
	methodName string
	codeIndex  int64
	line       int
}

func (l *location) DeclaringType() jvm.ReferenceType { return l.declaring }
func (l *location) Method() string                   { return l.methodName }
func (l *location) LineNumber() int                  { return l.line }

func (l *location) SourceName() (string, error) {
	return l.declaring.sourceFile()
}

func (l *location) SourcePath() (string, error) {
	return l.declaring.SourcePath()
}

// readLocation decodes the wire form of a location. It issues no
// commands, so it is safe to call from the read loop; callers on the
// request side follow up with resolve to fill in names and lines.
func readLocation(m *vm, d *decoder) *location {
	tag := d.readByte()
	typeID := d.readRefTypeID()
	methodID := d.readMethodID()
	idx := d.readLong()
	return &location{
		declaring: &refType{vm: m, tag: tag, id: typeID},
		typeTag:   tag,
		methodID:  methodID,
		codeIndex: idx,
	}
}

// resolve fills in the signature, method name and line number of a
// wire-decoded location. Best effort: a location that cannot be
// resolved keeps zero values and the frame is presented without
// source.
func (l *location) resolve(m *vm) {
	e := newEncoder(&m.c.sizes)
	e.writeRefTypeID(l.declaring.id)
	if d, err := m.c.command(cmdSetReferenceType, cmdRefTypeSignature, e.bytes()); err == nil {
		l.declaring.signature = d.readString()
	}
	methods, err := l.declaring.methods()
	if err != nil {
		return
	}
	for _, mi := range methods {
		if mi.id == l.methodID {
			l.methodName = mi.name
			break
		}
	}
	l.line = l.lineAt(m)
}

// lineAt maps the location's code index to a source line using the
// method's line table.
func (l *location) lineAt(m *vm) int {
	e := newEncoder(&m.c.sizes)
	e.writeRefTypeID(l.declaring.id)
	e.writeMethodID(l.methodID)
	d, err := m.c.command(cmdSetMethod, cmdMethodLineTable, e.bytes())
	if err != nil {
		return 0
	}
	d.readLong()
	d.readLong()
	n := int(d.readInt())
	line := 0
	for i := 0; i < n; i++ {
		idx := d.readLong()
		ln := int(d.readInt())
		// The line of a code index is the entry with the highest
		// index not beyond it.
		if idx <= l.codeIndex {
			line = ln
		}
	}
	return line
}

// stackFrame mirrors one frame of a suspended thread.
type stackFrame struct {
	vm     *vm
	thread *thread
	id     uint64
	loc    *location
}

func (f *stackFrame) Thread() jvm.ThreadReference { return f.thread }
func (f *stackFrame) Location() jvm.Location      { return f.loc }

func (f *stackFrame) VisibleVariables() ([]jvm.LocalVariable, error) {
	e := newEncoder(&f.vm.c.sizes)
	e.writeRefTypeID(f.loc.declaring.id)
	e.writeMethodID(f.loc.methodID)
	d, err := f.vm.c.command(cmdSetMethod, cmdMethodVariableTable, e.bytes())
	if err != nil {
		return nil, err
	}
	d.readInt() // argument slot count, unused
	n := int(d.readInt())
	var vars []jvm.LocalVariable
	for i := 0; i < n; i++ {
		codeIndex := d.readLong()
		name := d.readString()
		sig := d.readString()
		length := int64(d.readInt())
		slot := int(d.readInt())
		// Only variables in scope at the frame's current position are
		// visible, and the receiver is not reported as a variable.
		if f.loc.codeIndex < codeIndex || f.loc.codeIndex >= codeIndex+length {
			continue
		}
		if name == "this" {
			continue
		}
		vars = append(vars, &localVariable{
			name:      name,
			signature: sig,
			slot:      slot,
			// Arguments are the variables whose scope opens at code
			// index zero.
			argument: codeIndex == 0,
		})
	}
	return vars, d.err
}

func (f *stackFrame) Value(v jvm.LocalVariable) (jvm.Value, error) {
	lv, ok := v.(*localVariable)
	if !ok {
		return nil, fmt.Errorf("jdwp: variable %q does not belong to this frame", v.Name())
	}
	// The slot's value tag comes from the signature; a malformed
	// variable table can report an empty one.
	if lv.signature == "" {
		return nil, fmt.Errorf("jdwp: variable %q has no type signature", lv.name)
	}
	e := newEncoder(&f.vm.c.sizes)
	e.writeObjectID(f.thread.id)
	e.writeFrameID(f.id)
	e.writeInt(1)
	e.writeInt(int32(lv.slot))
	e.writeByte(lv.signature[0])
	d, err := f.vm.c.command(cmdSetStackFrame, cmdStackFrameGetValues, e.bytes())
	if err != nil {
		return nil, err
	}
	if n := d.readInt(); n != 1 {
		return nil, fmt.Errorf("jdwp: expected 1 value, got %d", n)
	}
	s, err := f.vm.formatValue(d)
	if err != nil {
		return nil, err
	}
	return stringValue(s), nil
}

// localVariable is one visible slot of a method's variable table.
type localVariable struct {
	name      string
	signature string
	slot      int
	argument  bool
}

func (v *localVariable) Name() string     { return v.name }
func (v *localVariable) TypeName() string { return typeNameFromSignature(v.signature) }
func (v *localVariable) IsArgument() bool { return v.argument }

type stringValue string

func (v stringValue) String() string { return string(v) }

// formatValue renders a tagged wire value as a one-line string,
// following the JDI mirror toString conventions the original adapter
// exposed to clients.
func (m *vm) formatValue(d *decoder) (string, error) {
	tag := d.readByte()
	switch tag {
	case 'Z':
		if d.readByte() != 0 {
			return "true", nil
		}
		return "false", nil
	case 'B':
		return fmt.Sprintf("%d", int8(d.readByte())), nil
	case 'C':
		return fmt.Sprintf("%c", rune(d.readSized(2))), nil
	case 'S':
		return fmt.Sprintf("%d", int16(d.readSized(2))), nil
	case 'I':
		return fmt.Sprintf("%d", d.readInt()), nil
	case 'J':
		return fmt.Sprintf("%d", d.readLong()), nil
	case 'F':
		return fmt.Sprintf("%g", math.Float32frombits(uint32(d.readSized(4)))), nil
	case 'D':
		return fmt.Sprintf("%g", math.Float64frombits(uint64(d.readLong()))), nil
	case 'V':
		return "void", nil
	case 's':
		id := d.readObjectID()
		if id == 0 {
			return "null", nil
		}
		s, err := m.stringValue(id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%q", s), nil
	case 'L', '[', 't', 'g', 'l', 'c':
		id := d.readObjectID()
		if id == 0 {
			return "null", nil
		}
		name, err := m.objectTypeName(id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("instance of %s(id=%d)", name, id), nil
	default:
		return "", fmt.Errorf("jdwp: unknown value tag %q", tag)
	}
}

func (m *vm) stringValue(id uint64) (string, error) {
	e := newEncoder(&m.c.sizes)
	e.writeObjectID(id)
	d, err := m.c.command(cmdSetStringReference, cmdStringValue, e.bytes())
	if err != nil {
		return "", err
	}
	return d.readString(), d.err
}

func (m *vm) objectTypeName(id uint64) (string, error) {
	e := newEncoder(&m.c.sizes)
	e.writeObjectID(id)
	d, err := m.c.command(cmdSetObjectReference, cmdObjectReferenceType, e.bytes())
	if err != nil {
		return "", err
	}
	d.readByte() // ref type tag
	typeID := d.readRefTypeID()
	if d.err != nil {
		return "", d.err
	}
	e = newEncoder(&m.c.sizes)
	e.writeRefTypeID(typeID)
	d, err = m.c.command(cmdSetReferenceType, cmdRefTypeSignature, e.bytes())
	if err != nil {
		return "", err
	}
	return typeNameFromSignature(d.readString()), d.err
}

// typeNameFromSignature converts a JNI type signature to the Java
// source form, e.g. "Lcom/example/Foo;" -> "com.example.Foo" and
// "[I" -> "int[]".
func typeNameFromSignature(sig string) string {
	if sig == "" {
		return ""
	}
	dims := 0
	for dims < len(sig) && sig[dims] == '[' {
		dims++
	}
	var base string
	switch rest := sig[dims:]; {
	case rest == "":
		base = "?"
	case rest[0] == 'L':
		base = strings.ReplaceAll(strings.TrimSuffix(rest[1:], ";"), "/", ".")
	default:
		switch rest[0] {
		case 'Z':
			base = "boolean"
		case 'B':
			base = "byte"
		case 'C':
			base = "char"
		case 'S':
			base = "short"
		case 'I':
			base = "int"
		case 'J':
			base = "long"
		case 'F':
			base = "float"
		case 'D':
			base = "double"
		case 'V':
			base = "void"
		default:
			base = rest
		}
	}
	return base + strings.Repeat("[]", dims)
}
