package namespace

import (
	"errors"
	"strings"
	"sync"

	"acpisbus/services/sbus/internal/firmware"
)

var (
	ErrBadPath  = errors.New("namespace: bad path")
	ErrNoNode   = errors.New("namespace: no such node")
	ErrNoDevice = errors.New("namespace: no device bound to node")
	ErrExists   = errors.New("namespace: node exists")
)

// RootPath is the path of the root scope.
const RootPath = `\`

type treeNode struct {
	handle   firmware.Handle
	name     string
	path     string
	kind     Kind
	parent   *treeNode
	children []*treeNode
	detached bool // no device object bound
}

// Tree is an in-memory namespace. Paths use the `\_SB_.PCI0.SBUS` form.
type Tree struct {
	mu    sync.RWMutex
	nodes []*treeNode // index = handle-1
}

// NewTree returns a tree holding only the root scope.
func NewTree() *Tree {
	t := &Tree{}
	t.nodes = append(t.nodes, &treeNode{handle: 1, name: RootPath, path: RootPath, kind: KindScope})
	return t
}

// PadName pads a segment to 4 characters with '_' as firmware names are stored.
func PadName(seg string) string {
	for len(seg) < 4 {
		seg += "_"
	}
	return seg
}

func splitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, RootPath) {
		return nil, ErrBadPath
	}
	rest := strings.TrimPrefix(path, RootPath)
	if rest == "" {
		return nil, nil
	}
	segs := strings.Split(rest, ".")
	for i, s := range segs {
		if s == "" || len(s) > 4 {
			return nil, ErrBadPath
		}
		segs[i] = PadName(strings.ToUpper(s))
	}
	return segs, nil
}

// Add creates the node at path with the given kind. Missing intermediate
// segments become scope nodes.
func (t *Tree) Add(path string, kind Kind) (firmware.Handle, error) {
	segs, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	if len(segs) == 0 {
		return 0, ErrExists
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.nodes[0]
	for i, seg := range segs {
		child := n.child(seg)
		last := i == len(segs)-1
		if child != nil {
			if last {
				if child.kind != KindScope {
					return 0, ErrExists
				}
				child.kind = kind
			}
			n = child
			continue
		}
		k := KindScope
		if last {
			k = kind
		}
		child = &treeNode{
			handle: firmware.Handle(len(t.nodes) + 1),
			name:   seg,
			kind:   k,
			parent: n,
		}
		if n.parent == nil {
			child.path = RootPath + seg
		} else {
			child.path = n.path + "." + seg
		}
		t.nodes = append(t.nodes, child)
		n.children = append(n.children, child)
		n = child
	}
	return n.handle, nil
}

// Lookup returns the handle at path.
func (t *Tree) Lookup(path string) (firmware.Handle, error) {
	segs, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.nodes[0]
	for _, seg := range segs {
		if n = n.child(seg); n == nil {
			return 0, ErrNoNode
		}
	}
	return n.handle, nil
}

// Detach marks node as having no bound device object.
func (t *Tree) Detach(node firmware.Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.get(node)
	if n == nil {
		return ErrNoNode
	}
	n.detached = true
	return nil
}

func (n *treeNode) child(name string) *treeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (t *Tree) get(h firmware.Handle) *treeNode {
	if h == 0 || int(h) > len(t.nodes) {
		return nil
	}
	return t.nodes[h-1]
}

// ---- Walker ----

func (t *Tree) Root() firmware.Handle { return 1 }

func (t *Tree) Walk(kind Kind, root firmware.Handle, maxDepth int, visit Visitor) Status {
	t.mu.RLock()
	start := t.get(root)
	t.mu.RUnlock()
	if start == nil {
		return NotFound
	}
	return t.walk(start, 1, kind, maxDepth, visit)
}

// walk runs visitors without holding the lock so they may query the tree.
func (t *Tree) walk(n *treeNode, depth int, kind Kind, maxDepth int, visit Visitor) Status {
	if depth > maxDepth {
		return OK
	}
	t.mu.RLock()
	children := append([]*treeNode(nil), n.children...)
	t.mu.RUnlock()
	for _, c := range children {
		if kind == KindAny || c.kind == kind {
			if st := visit(c.handle, depth); st != OK {
				return st
			}
		}
		if st := t.walk(c, depth+1, kind, maxDepth, visit); st != OK {
			return st
		}
	}
	return OK
}

func (t *Tree) Name(node firmware.Handle) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.get(node)
	if n == nil {
		return "", ErrNoNode
	}
	return n.name, nil
}

// treeDevice is the device object of a tree node.
type treeDevice struct{ path string }

func (d treeDevice) Path() string { return d.path }

func (t *Tree) Device(node firmware.Handle) (Device, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.get(node)
	if n == nil {
		return nil, ErrNoNode
	}
	if n.detached || n.kind != KindDevice {
		return nil, ErrNoDevice
	}
	return treeDevice{path: n.path}, nil
}

// Path returns the absolute path of node.
func (t *Tree) Path(node firmware.Handle) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.get(node)
	if n == nil {
		return "", ErrNoNode
	}
	return n.path, nil
}

var _ Walker = (*Tree)(nil)
