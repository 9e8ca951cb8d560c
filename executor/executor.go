// Package executor runs submitted JavaScript snippets against a persistent
// environment and streams their echoed input and output into the history log.
package executor

import (
	"bytes"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grafana/sobek"
	"github.com/grafana/sobek/ast"
	"github.com/grafana/sobek/parser"
	"github.com/spf13/afero"

	"github.com/furisto/console/event"
)

// Appender is the write side of the history log.
type Appender interface {
	Append(chunk []byte)
	AppendEntry(chunk []byte)
}

// Environment owns the JavaScript runtime shared by all submissions, so later
// snippets see bindings created by earlier ones. Each submission runs as its
// own task: the echo append and the result append are separate log writes and
// may interleave with appends from concurrently completing tasks.
//
// The runtime itself is not safe for concurrent use, so snippet execution is
// serialized by a single mutex while log appends remain free to interleave.
type Environment struct {
	log Appender
	bus *event.Bus

	mu  sync.Mutex
	vm  *sobek.Runtime
	out bytes.Buffer
}

// New creates an Environment appending to log. The bus may be nil, in which
// case no lifecycle events are published.
func New(log Appender, bus *event.Bus) *Environment {
	e := &Environment{
		log: log,
		bus: bus,
		vm:  sobek.New(),
	}
	e.installBuiltins(afero.NewMemMapFs())
	return e
}

// Execute spawns a task for the snippet and returns its id immediately. The
// task echoes the snippet into the log, runs it, and appends any captured
// console output and result (or diagnostic trace). Tasks run to completion;
// there is no per-task cancellation.
func (e *Environment) Execute(code []byte) uuid.UUID {
	id := uuid.New()
	if e.bus != nil {
		event.Publish(e.bus, event.SnippetSubmitted{TaskID: id, Bytes: len(code)})
	}
	go e.run(id, code)
	return id
}

// Interrupt aborts the currently running snippet, if any. Used only during
// shutdown; queued tasks will observe an interrupted runtime error.
func (e *Environment) Interrupt(reason string) {
	e.vm.Interrupt(reason)
}

func (e *Environment) run(id uuid.UUID, code []byte) {
	echo := make([]byte, 0, len(code)+1)
	echo = append(echo, code...)
	echo = append(echo, '\n')
	e.log.AppendEntry(echo)

	started := time.Now()
	output, result, failed := e.eval(string(code))

	if len(output) > 0 {
		e.log.Append(output)
	}
	if result != "" {
		e.log.Append(append([]byte(result), '\n'))
	}

	if e.bus != nil {
		event.Publish(e.bus, event.ExecutionFinished{
			TaskID:   id,
			Failed:   failed,
			Duration: time.Since(started),
		})
	}
}

// eval runs the snippet under the runtime lock and returns the captured
// console output, the rendered result ("" for statement-only snippets) and
// whether the snippet failed. Failures never propagate; they are rendered as
// diagnostic traces in the result.
func (e *Environment) eval(src string) (output []byte, result string, failed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.out.Reset()
	defer func() {
		output = append([]byte(nil), e.out.Bytes()...)
		if r := recover(); r != nil {
			result = fmt.Sprintf("runtime panic: %v\n%s", r, debug.Stack())
			failed = true
		}
	}()

	prog, err := parser.ParseFile(nil, "<console>", src, 0)
	if err != nil {
		return nil, traceOf(err), true
	}
	tailed := expressionTailed(prog)

	value, err := e.vm.RunString(src)
	if err != nil {
		return nil, traceOf(err), true
	}

	if !tailed {
		return nil, "", false
	}
	return nil, render(value), false
}

// expressionTailed reports whether the snippet's final top-level unit is a
// bare expression, decided once at parse time. Only such snippets produce a
// result line; everything else executes as statements with input echo only.
func expressionTailed(prog *ast.Program) bool {
	if len(prog.Body) == 0 {
		return false
	}
	_, ok := prog.Body[len(prog.Body)-1].(*ast.ExpressionStatement)
	return ok
}

func render(v sobek.Value) string {
	if v == nil || sobek.IsUndefined(v) {
		return "undefined"
	}
	if s, ok := v.Export().(string); ok {
		return strconv.Quote(s)
	}
	return v.String()
}

func traceOf(err error) string {
	if ex, ok := err.(*sobek.Exception); ok {
		return ex.String()
	}
	return err.Error()
}
