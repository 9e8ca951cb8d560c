package executor

import (
	"strings"

	"github.com/grafana/sobek"
	"github.com/spf13/afero"
)

// installBuiltins wires the host facilities scripts can reach: a console
// whose output is captured per task and appended to the history, and a small
// in-memory filesystem that persists across submissions.
func (e *Environment) installBuiltins(fsys afero.Fs) {
	console := e.vm.NewObject()
	logFn := func(call sobek.FunctionCall) sobek.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		e.out.WriteString(strings.Join(parts, " "))
		e.out.WriteByte('\n')
		return sobek.Undefined()
	}
	console.Set("log", logFn)
	console.Set("error", logFn)
	e.vm.Set("console", console)

	files := &afero.Afero{Fs: fsys}
	fsObj := e.vm.NewObject()
	fsObj.Set("readFile", func(path string) (string, error) {
		data, err := files.ReadFile(path)
		return string(data), err
	})
	fsObj.Set("writeFile", func(path, data string) error {
		return files.WriteFile(path, []byte(data), 0o644)
	})
	fsObj.Set("remove", func(path string) error {
		return files.Remove(path)
	})
	fsObj.Set("list", func(dir string) ([]string, error) {
		infos, err := files.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(infos))
		for _, info := range infos {
			names = append(names, info.Name())
		}
		return names, nil
	})
	e.vm.Set("fs", fsObj)
}
