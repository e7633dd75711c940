package browser

import (
	"fmt"

	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// axNodesFromProto converts a protocol accessibility tree (already in
// document order) into compressor input.
func axNodesFromProto(nodes []*proto.AccessibilityAXNode) []AXNode {
	out := make([]AXNode, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		node := AXNode{
			Role:          axString(n.Role),
			Name:          axString(n.Name),
			Value:         axString(n.Value),
			BackendNodeID: int(n.BackendDOMNodeID),
			Ignored:       n.Ignored,
		}
		for _, p := range n.Properties {
			if p == nil || p.Value == nil {
				continue
			}
			switch string(p.Name) {
			case "focused":
				node.Focused = axBool(p.Value.Value)
			case "checked":
				node.Checked = axString(p.Value)
			case "disabled":
				node.Disabled = axBool(p.Value.Value)
			case "expanded":
				node.Expanded = axBool(p.Value.Value)
			case "required":
				node.Required = axBool(p.Value.Value)
			}
		}
		out = append(out, node)
	}
	return out
}

func axString(v *proto.AccessibilityAXValue) string {
	if v == nil || v.Value.Nil() {
		return ""
	}
	switch val := v.Value.Val().(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(val)
	}
}

// axBool accepts both JSON booleans and tristate strings.
func axBool(j gson.JSON) bool {
	switch val := j.Val().(type) {
	case bool:
		return val
	case string:
		return val == "true"
	}
	return false
}
