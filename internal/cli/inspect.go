package cli

import (
	"encoding/json"
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/vburojevic/pilot/internal/graphio"
	"github.com/vburojevic/pilot/internal/registry"
)

// InspectCmd prints a graph descriptor's process/channel/bundle registry.
type InspectCmd struct {
	Graph string `arg:"" help:"Path to a JSON process graph descriptor"`
}

// Run executes the inspect command.
func (c *InspectCmd) Run(globals *Globals) error {
	reg, err := graphio.Load(c.Graph)
	if err != nil {
		return outputErrorCommon(globals, "graph_load_failed", err.Error())
	}

	if globals.Format == "ndjson" {
		return c.writeNDJSON(globals, reg)
	}
	return c.writeTables(globals, reg)
}

func (c *InspectCmd) writeNDJSON(globals *Globals, reg *registry.Registry) error {
	enc := json.NewEncoder(globals.Stdout)
	enc.SetEscapeHTML(false)
	return enc.Encode(struct {
		Type      string `json:"type"`
		Processes int    `json:"processes"`
		Channels  int    `json:"channels"`
		Bundles   int    `json:"bundles"`
	}{Type: "registry", Processes: reg.NumProcesses(), Channels: reg.NumChannels(), Bundles: reg.NumBundles()})
}

func (c *InspectCmd) writeTables(globals *Globals, reg *registry.Registry) error {
	fmt.Fprintln(globals.Stdout, "Processes")
	pt := tablewriter.NewTable(globals.Stdout, tablewriter.WithHeader([]string{"RANK", "NAME", "ARGUMENT"}))
	for _, p := range reg.Processes() {
		pt.Append([]string{fmt.Sprint(p.Rank), p.Name, fmt.Sprint(p.Argument)})
	}
	if err := pt.Render(); err != nil {
		return err
	}

	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "Channels")
	ct := tablewriter.NewTable(globals.Stdout, tablewriter.WithHeader([]string{"ID", "NAME", "PRODUCER", "CONSUMER"}))
	for _, ch := range reg.Channels() {
		ct.Append([]string{fmt.Sprint(ch.ID), ch.Name, reg.Process(ch.Producer).Name, reg.Process(ch.Consumer).Name})
	}
	if err := ct.Render(); err != nil {
		return err
	}

	if reg.NumBundles() > 0 {
		fmt.Fprintln(globals.Stdout)
		fmt.Fprintln(globals.Stdout, "Bundles")
		bt := tablewriter.NewTable(globals.Stdout, tablewriter.WithHeader([]string{"ID", "NAME", "USAGE", "ENDPOINT", "MEMBERS"}))
		for _, b := range reg.Bundles() {
			members := ""
			for i, cid := range b.Members {
				if i > 0 {
					members += ", "
				}
				members += reg.Channel(cid).Name
			}
			bt.Append([]string{fmt.Sprint(b.ID), b.Name, string(b.Usage), reg.Process(b.Endpoint).Name, members})
		}
		if err := bt.Render(); err != nil {
			return err
		}
	}
	return nil
}
