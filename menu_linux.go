//go:build linux

package traykit

import (
	"github.com/godbus/dbus/v5"
)

const (
	menuInterface = "com.canonical.dbusmenu"
	menuPath      = "/MenuBar"
)

// menuLayout is the wire form of one com.canonical.dbusmenu layout node,
// marshaled as (ia{sv}av).
type menuLayout struct {
	ID         int32
	Properties map[string]dbus.Variant
	Children   []dbus.Variant
}

// menuNode is one entry of the exported menu tree. Nodes carry the numeric
// ids the protocol requires; userID maps a node back to the application's
// [TrayMenuItem] ID when it is clicked.
type menuNode struct {
	id       int32
	userID   string
	props    map[string]dbus.Variant
	children []int32
}

// menuModel is the exported menu tree. It is rebuilt wholesale from the
// declared menu on every menu change; node 0 is the synthetic root.
type menuModel struct {
	nodes map[int32]*menuNode
}

func newMenuModel(items []TrayMenuItem) *menuModel {
	m := &menuModel{nodes: make(map[int32]*menuNode)}

	// Some hosts treat missing properties as false; be explicit on the root.
	m.nodes[0] = &menuNode{
		id: 0,
		props: map[string]dbus.Variant{
			"enabled": dbus.MakeVariant(true),
			"visible": dbus.MakeVariant(true),
		},
	}

	nextID := int32(1)
	for _, item := range items {
		nextID = m.add(0, item, nextID)
	}

	return m
}

// add inserts the item (and its children) under the parent node and returns
// the next free numeric id.
func (m *menuModel) add(parentID int32, item TrayMenuItem, nextID int32) int32 {
	node := &menuNode{
		id:    nextID,
		props: make(map[string]dbus.Variant),
	}
	nextID++

	if item.Kind == MenuItemSeparator {
		node.props["type"] = dbus.MakeVariant("separator")
		node.props["enabled"] = dbus.MakeVariant(true)
		node.props["visible"] = dbus.MakeVariant(true)
		if item.Label != "" {
			node.props["label"] = dbus.MakeVariant(item.Label)
		}
		m.insert(parentID, node)
		return nextID
	}

	node.userID = item.ID
	node.props["type"] = dbus.MakeVariant("standard")
	node.props["label"] = dbus.MakeVariant(item.Label)
	node.props["enabled"] = dbus.MakeVariant(item.Enabled)
	node.props["visible"] = dbus.MakeVariant(true)

	switch item.Kind {
	case MenuItemCheckbox:
		node.props["toggle-type"] = dbus.MakeVariant("checkmark")
		node.props["toggle-state"] = dbus.MakeVariant(toggleState(item.Checked))
	case MenuItemRadio:
		node.props["toggle-type"] = dbus.MakeVariant("radio")
		node.props["toggle-state"] = dbus.MakeVariant(toggleState(item.Checked))
	}

	m.insert(parentID, node)

	for _, child := range item.Children {
		nextID = m.add(node.id, child, nextID)
	}

	return nextID
}

func (m *menuModel) insert(parentID int32, node *menuNode) {
	m.nodes[node.id] = node

	if parent, ok := m.nodes[parentID]; ok {
		parent.children = append(parent.children, node.id)
	}
}

// userID returns the application-level ID of the node, if it has one.
// Separators and the root do not.
func (m *menuModel) userID(id int32) (string, bool) {
	node, ok := m.nodes[id]
	if !ok || node.userID == "" {
		return "", false
	}

	return node.userID, true
}

// layout serializes the subtree under parentID. recursionDepth follows the
// protocol: -1 means unlimited, 0 disables recursion. An empty propertyNames
// slice selects all properties.
func (m *menuModel) layout(parentID int32, recursionDepth int32, propertyNames []string) menuLayout {
	node, ok := m.nodes[parentID]
	if !ok {
		return menuLayout{ID: parentID, Properties: map[string]dbus.Variant{}}
	}

	layout := menuLayout{
		ID:         node.id,
		Properties: filterProps(node.props, propertyNames),
	}

	if len(node.children) > 0 && recursionDepth != 0 {
		layout.Properties["children-display"] = dbus.MakeVariant("submenu")

		for _, childID := range node.children {
			child := m.layout(childID, recursionDepth-1, propertyNames)
			layout.Children = append(layout.Children, dbus.MakeVariant(child))
		}
	}

	return layout
}

// properties returns the selected properties of the node, or an empty map
// for unknown ids: hosts treat missing properties as unset.
func (m *menuModel) properties(id int32, propertyNames []string) map[string]dbus.Variant {
	node, ok := m.nodes[id]
	if !ok {
		return map[string]dbus.Variant{}
	}

	return filterProps(node.props, propertyNames)
}

func filterProps(props map[string]dbus.Variant, names []string) map[string]dbus.Variant {
	selected := make(map[string]dbus.Variant, len(props))

	if len(names) == 0 {
		for key, value := range props {
			selected[key] = value
		}
		return selected
	}

	for _, name := range names {
		if value, ok := props[name]; ok {
			selected[name] = value
		}
	}

	return selected
}

func toggleState(checked bool) int32 {
	if checked {
		return 1
	}
	return 0
}
