package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"

	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/topology"
)

const (
	peerTypeNSG = "NETWORK_SECURITY_GROUP"
	nsgPrefix   = "ocid1.networksecuritygroup."
)

// NSGNames maps network security group OCIDs to display names. It is built once per run and
// shared by every renderer that prints rule sources or destinations.
type NSGNames map[string]string

// NewNSGNames indexes the given groups.
func NewNSGNames(groups []oci.NSG) NSGNames {
	names := make(NSGNames, len(groups))
	for _, group := range groups {
		names[group.ID] = group.DisplayName
	}

	return names
}

// Name returns the display name of id, or id itself when it is unknown.
func (n NSGNames) Name(id string) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}

	return id
}

// NSGRuleSet is the rules of one group.
type NSGRuleSet struct {
	NSG   oci.NSG
	Rules []oci.SecurityRule
}

// NSGRules writes one table per group. NSG references in sources and destinations are shown
// by name.
func NSGRules(w io.Writer, sets []NSGRuleSet, names NSGNames, opts Options) {
	for _, set := range sets {
		_, _ = fmt.Fprintln(w, opts.heading(fmt.Sprintf("%s (%s)", names.Name(set.NSG.ID), set.NSG.ID)))

		if len(set.Rules) == 0 {
			_, _ = fmt.Fprintln(w, opts.dim("  no rules"))

			continue
		}

		rows := make([][]string, 0, len(set.Rules))
		for _, rule := range set.Rules {
			rows = append(rows, []string{
				rule.Direction,
				rule.Protocol,
				peer(rule, names),
				ports(rule),
				statefulness(rule),
				rule.Description,
			})
		}

		Table(w, []string{"Direction", "Protocol", "Peer", "Ports", "Mode", "Description"}, rows, opts)
	}
}

// peer is the source of an ingress rule or the destination of an egress rule.
func peer(rule oci.SecurityRule, names NSGNames) string {
	value, kind := rule.Source, rule.SourceType
	if strings.EqualFold(rule.Direction, "EGRESS") {
		value, kind = rule.Destination, rule.DestinationType
	}

	if kind == peerTypeNSG || strings.HasPrefix(value, nsgPrefix) {
		return names.Name(value)
	}

	return value
}

func ports(rule oci.SecurityRule) string {
	switch {
	case rule.PortMin == 0 && rule.PortMax == 0:
		return "all"
	case rule.PortMin == rule.PortMax:
		return fmt.Sprintf("%d", rule.PortMin)
	default:
		return fmt.Sprintf("%d-%d", rule.PortMin, rule.PortMax)
	}
}

func statefulness(rule oci.SecurityRule) string {
	if rule.Stateless {
		return "stateless"
	}

	return "stateful"
}

// CompartmentTree draws the compartment hierarchy.
func CompartmentTree(w io.Writer, tree topology.CompartmentTree, opts Options) error {
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedRounded)

	depth := 0

	tree.Root.Walk(func(node *topology.CompartmentNode, level int) {
		for depth < level {
			l.Indent()
			depth++
		}

		for depth > level {
			l.UnIndent()
			depth--
		}

		l.AppendItem(fmt.Sprintf(
			"%s %s %s",
			node.Compartment.Name,
			opts.dim(node.Compartment.ID),
			opts.State(node.Compartment.LifecycleState, ""),
		))
	})

	for depth > 0 {
		l.UnIndent()
		depth--
	}

	if len(tree.Unreachable) > 0 {
		l.AppendItem(opts.heading(fmt.Sprintf("Unreachable compartments (%d)", len(tree.Unreachable))))
		l.Indent()

		for _, compartment := range tree.Unreachable {
			l.AppendItem(fmt.Sprintf("%s %s parent=%s", compartment.Name, opts.dim(compartment.ID), compartment.ParentID))
		}

		l.UnIndent()
	}

	_, err := fmt.Fprintln(w, l.Render())
	if err != nil {
		return fmt.Errorf("write compartment tree: %w", err)
	}

	return nil
}
