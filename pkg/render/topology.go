package render

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/topology"
)

// TopologyTree draws the island → block → host tree followed by the orphan and unassigned
// sections.
func TopologyTree(w io.Writer, tree topology.Tree, opts Options) error {
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedRounded)

	l.AppendItem(opts.heading(fmt.Sprintf("Capacity topology %s", label(tree.Topology.DisplayName, tree.Topology.ID))))
	l.Indent()

	for _, island := range tree.Islands {
		l.AppendItem(fmt.Sprintf(
			"HPC island %s %s hosts=%d/%d",
			island.Island.ID,
			opts.State(island.Island.LifecycleState, island.Island.RawState),
			island.HostCount,
			island.Island.TotalHostCount,
		))

		if len(island.Blocks) > 0 {
			l.Indent()
			appendBlocks(l, island.Blocks, opts)
			l.UnIndent()
		}
	}

	if len(tree.Islands) == 0 {
		l.AppendItem(opts.dim("no HPC islands"))
	}

	l.UnIndent()

	if len(tree.OrphanBlocks) > 0 {
		l.AppendItem(opts.heading(fmt.Sprintf("Network blocks with unknown island (%d)", len(tree.OrphanBlocks))))
		l.Indent()
		appendBlocks(l, tree.OrphanBlocks, opts)
		l.UnIndent()
	}

	if len(tree.OrphanHosts) > 0 {
		l.AppendItem(opts.heading(fmt.Sprintf("Hosts with unknown network block (%d)", len(tree.OrphanHosts))))
		l.Indent()
		appendHosts(l, tree.OrphanHosts, opts)
		l.UnIndent()
	}

	l.AppendItem(opts.heading(fmt.Sprintf("Unassigned hosts (%d)", len(tree.Unassigned))))

	if len(tree.Unassigned) > 0 {
		l.Indent()
		appendHosts(l, tree.Unassigned, opts)
		l.UnIndent()
	}

	_, err := fmt.Fprintln(w, l.Render())
	if err != nil {
		return fmt.Errorf("write topology tree: %w", err)
	}

	return nil
}

func appendBlocks(l list.Writer, blocks []topology.BlockNode, opts Options) {
	for _, block := range blocks {
		l.AppendItem(fmt.Sprintf(
			"Network block %s %s hosts=%d/%d",
			block.Block.ID,
			opts.State(block.Block.LifecycleState, block.Block.RawState),
			block.HostCount,
			block.Block.TotalHostCount,
		))

		if len(block.Hosts) > 0 {
			l.Indent()
			appendHosts(l, block.Hosts, opts)
			l.UnIndent()
		}
	}
}

func appendHosts(l list.Writer, hosts []oci.BareMetalHost, opts Options) {
	for _, host := range hosts {
		line := fmt.Sprintf("%s %s %s", host.ID, opts.State(host.LifecycleState, host.RawState), host.InstanceShape)

		if host.InstanceID != nil {
			line += " instance=" + *host.InstanceID
		}

		if host.LifecycleDetails != nil && *host.LifecycleDetails != "" {
			line += " " + opts.dim("("+*host.LifecycleDetails+")")
		}

		l.AppendItem(line)
	}
}

// TopologySummary writes the per-level counts and the shape breakdown.
func TopologySummary(w io.Writer, summary topology.Summary, opts Options) {
	_, _ = fmt.Fprintln(w, opts.heading("Capacity topology "+label(summary.Topology.DisplayName, summary.Topology.ID)))

	t := newTable(w, opts)
	t.AppendHeader(table.Row{"Level", "Total", "Active", "Inactive", "Other", "Active %"})

	for _, level := range []struct {
		name   string
		counts topology.Counts
	}{
		{name: "HPC islands", counts: summary.Islands},
		{name: "Network blocks", counts: summary.Blocks},
		{name: "Bare metal hosts", counts: summary.Hosts},
	} {
		t.AppendRow(table.Row{
			level.name,
			level.counts.Total,
			level.counts.Active,
			level.counts.Inactive,
			level.counts.Other,
			strconv.Itoa(topology.Percent(level.counts.Active, level.counts.Total)) + "%",
		})
	}

	t.Style().Format.Footer = text.FormatDefault
	t.AppendFooter(table.Row{"Unassigned hosts", summary.UnassignedHosts, "", "", "", ""})
	t.AppendFooter(table.Row{"Hosts with instance", summary.HostsInUse, "", "", "", ""})
	t.AppendFooter(table.Row{"Orphan network blocks", summary.OrphanBlocks, "", "", "", ""})
	t.AppendFooter(table.Row{"Orphan hosts", summary.OrphanHosts, "", "", "", ""})
	t.Render()

	if len(summary.Shapes) == 0 {
		return
	}

	shapes := newTable(w, opts)
	shapes.AppendHeader(table.Row{"Shape", "Hosts", "Share"})

	for _, shape := range summary.Shapes {
		shapes.AppendRow(table.Row{
			shape.Shape,
			shape.Count,
			strconv.Itoa(topology.Percent(shape.Count, summary.Hosts.Total)) + "%",
		})
	}

	shapes.Render()
}

// Location writes where an instance sits.
func Location(w io.Writer, instanceID string, location topology.Location, opts Options) {
	rows := [][]string{
		{"Instance", instanceID},
		{"Capacity topology", orDash(location.TopologyID)},
		{"HPC island", orDash(location.IslandID)},
		{"Network block", orDash(location.BlockID)},
		{"Bare metal host", location.HostID},
		{"Host state", opts.State(location.Host.LifecycleState, location.Host.RawState)},
		{"Shape", location.Host.InstanceShape},
	}

	switch {
	case location.Unassigned:
		rows = append(rows, []string{"Note", "host is not assigned to a network block"})
	case location.Orphan:
		rows = append(rows, []string{"Note", "parent record missing from the listing"})
	}

	Table(w, []string{"Field", "Value"}, rows, opts)
}

// exportDocument is the layout written by ExportJSON.
type exportDocument struct {
	ExportedAt     string               `json:"exported_at"`
	Topology       oci.CapacityTopology `json:"topology"`
	HPCIslands     []oci.HPCIsland      `json:"hpc_islands"`
	NetworkBlocks  []oci.NetworkBlock   `json:"network_blocks"`
	BareMetalHosts []oci.BareMetalHost  `json:"bare_metal_hosts"`
}

// ExportJSON writes the snapshot with its export time. Empty collections are written as [].
func ExportJSON(w io.Writer, snapshot topology.Snapshot, now time.Time) error {
	return JSON(w, exportDocument{
		ExportedAt:     now.UTC().Format(time.RFC3339),
		Topology:       snapshot.Topology,
		HPCIslands:     nonNil(snapshot.Islands),
		NetworkBlocks:  nonNil(snapshot.Blocks),
		BareMetalHosts: nonNil(snapshot.Hosts),
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}

func label(name, id string) string {
	if name == "" {
		return id
	}

	return fmt.Sprintf("%s (%s)", name, id)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}

	return value
}
