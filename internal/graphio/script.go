package graphio

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/vburojevic/pilot/internal/registry"
)

// Action is one scripted step in a process's body: a single blocking call
// plus the literal payload to send, or the object a read/select/gather is
// expected to produce. This gives `pilot run`/`pilot watch` something to
// execute for a graph descriptor that only declares structure — the original
// docs/code_examples/ex_*.c files always pair a process declaration with a
// handful of PI_Write/PI_Read calls in main(), and a script is the JSON
// analogue of that.
type Action struct {
	Op      string // "write", "read", "select", "broadcast", "gather"
	Channel string // channel name, for write/read
	Bundle  string // bundle name, for select/broadcast/gather
	Payload string // literal bytes to write/broadcast
}

// LoadScript reads the same file Load reads and additionally extracts each
// process's "actions" array, keyed by rank according to the registry just
// parsed from the same data.
func LoadScript(path string) (*registry.Registry, [][]Action, error) {
	reg, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	scripts, err := parseScripts(data, reg)
	if err != nil {
		return nil, nil, err
	}
	return reg, scripts, nil
}

func parseScripts(data []byte, reg *registry.Registry) ([][]Action, error) {
	root := gjson.ParseBytes(data)
	scripts := make([][]Action, reg.NumProcesses())
	for i, p := range root.Get("processes").Array() {
		if i >= len(scripts) {
			break
		}
		var actions []Action
		for _, a := range p.Get("actions").Array() {
			op := a.Get("op").String()
			switch op {
			case "write", "read", "select", "broadcast", "gather":
			default:
				return nil, fmt.Errorf("graphio: process %d action %d: unknown op %q", i, len(actions), op)
			}
			actions = append(actions, Action{
				Op:      op,
				Channel: a.Get("channel").String(),
				Bundle:  a.Get("bundle").String(),
				Payload: a.Get("payload").String(),
			})
		}
		scripts[i] = actions
	}
	return scripts, nil
}
