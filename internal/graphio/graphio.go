// Package graphio loads a process-graph descriptor (processes, channels,
// bundles) from a JSON file into an internal/registry.Registry, using
// tidwall/gjson to pull the fields ad hoc rather than a full struct decode —
// the same "reach straight into the JSON" style the teacher uses for its
// simulator discovery payloads. This is the concrete form of the
// "channel/bundle/process registry...at configuration time" spec.md §1
// places out of scope: SPEC_FULL gives it a file format so `pilot run` and
// friends are runnable end-to-end.
package graphio

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/vburojevic/pilot/internal/domain"
	"github.com/vburojevic/pilot/internal/registry"
)

// Load reads a graph descriptor from path and builds a frozen Registry.
//
// Expected shape:
//
//	{
//	  "processes": [{"name": "A", "argument": 0}, ...],
//	  "channels":  [{"name": "AB", "producer": "A", "consumer": "B"}, ...],
//	  "bundles":   [{"name": "sel", "usage": "select", "endpoint": "M",
//	                 "members": ["PM", "QM"]}, ...]
//	}
func Load(path string) (*registry.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphio: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a frozen Registry from raw graph descriptor JSON.
func Parse(data []byte) (*registry.Registry, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("graphio: invalid JSON graph descriptor")
	}
	root := gjson.ParseBytes(data)
	reg := registry.New()
	rankOf := make(map[string]int)

	for _, p := range root.Get("processes").Array() {
		name := p.Get("name").String()
		if name == "" {
			return nil, fmt.Errorf("graphio: process missing name")
		}
		rank, err := reg.AddProcess(name, int(p.Get("argument").Int()))
		if err != nil {
			return nil, err
		}
		rankOf[name] = rank
	}

	chanIDOf := make(map[string]int)
	for _, c := range root.Get("channels").Array() {
		name := c.Get("name").String()
		producer, ok := rankOf[c.Get("producer").String()]
		if !ok {
			return nil, fmt.Errorf("graphio: channel %q has unknown producer %q", name, c.Get("producer").String())
		}
		consumer, ok := rankOf[c.Get("consumer").String()]
		if !ok {
			return nil, fmt.Errorf("graphio: channel %q has unknown consumer %q", name, c.Get("consumer").String())
		}
		id, err := reg.AddChannel(name, producer, consumer)
		if err != nil {
			return nil, err
		}
		chanIDOf[name] = id
	}

	for _, bd := range root.Get("bundles").Array() {
		name := bd.Get("name").String()
		usage, err := parseUsage(bd.Get("usage").String())
		if err != nil {
			return nil, fmt.Errorf("graphio: bundle %q: %w", name, err)
		}
		endpoint, ok := rankOf[bd.Get("endpoint").String()]
		if !ok {
			return nil, fmt.Errorf("graphio: bundle %q has unknown endpoint %q", name, bd.Get("endpoint").String())
		}
		var members []int
		for _, m := range bd.Get("members").Array() {
			id, ok := chanIDOf[m.String()]
			if !ok {
				return nil, fmt.Errorf("graphio: bundle %q references unknown channel %q", name, m.String())
			}
			members = append(members, id)
		}
		if _, err := reg.AddBundle(name, usage, endpoint, members); err != nil {
			return nil, err
		}
	}

	reg.Freeze()
	return reg, nil
}

func parseUsage(s string) (domain.BundleUsage, error) {
	switch domain.BundleUsage(s) {
	case domain.UsageSelect, domain.UsageBroadcast, domain.UsageGather:
		return domain.BundleUsage(s), nil
	default:
		return "", fmt.Errorf("unknown bundle usage %q", s)
	}
}
