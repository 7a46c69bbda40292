// SPDX-License-Identifier: MPL-2.0

package document

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/uidreg/uidreg/pkg/uid"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultVersion is used when a document declares no usable version.
	DefaultVersion = "0.0.0"

	// DefaultVersionField is the dotted path of the declared version.
	DefaultVersionField = "metadata.version"

	// maxAliasDepth bounds alias expansion so self-referencing anchors cannot
	// recurse without end.
	maxAliasDepth = 64

	// maxExpandedNodes bounds the logical size of a document once aliases are
	// expanded. Anchored subtrees are shared, but every alias still counts
	// the full size of its target.
	maxExpandedNodes = 1 << 20
)

var (
	// ErrParse is wrapped by every content decoding failure.
	ErrParse = errors.New("document parse failed")

	errAliasDepth  = errors.New("alias nesting too deep")
	errAliasBudget = fmt.Errorf("alias expansion exceeds %d nodes", maxExpandedNodes)
)

// Document is one corpus file.
type Document struct {
	// Location is the corpus-root-relative path, slash separated.
	Location string
	// Root is the parsed content. Empty files decode to an empty mapping.
	Root *Node
}

// Parse decodes data into a Document located at location. Only the first
// document of a multi-document stream is used. Anchored subtrees are converted
// once and shared by every alias, so the returned tree must not be mutated.
func Parse(location string, data []byte) (*Document, error) {
	var raw yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, location, err)
	}

	root := NewMapping()
	if raw.Kind == yaml.DocumentNode && len(raw.Content) > 0 {
		c := &converter{memo: make(map[*yaml.Node]converted)}
		top, err := c.convert(raw.Content[0], 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, location, err)
		}
		if top.Kind != KindNull {
			root = top
		}
	}

	return &Document{Location: path.Clean(filepath.ToSlash(location)), Root: root}, nil
}

// Load reads and parses the file at location below root.
func Load(root, location string) (*Document, []byte, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(location)))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", location, err)
	}
	doc, err := Parse(location, data)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// Version returns the declared version found at the dotted field path and
// whether DefaultVersion was substituted. Any non-empty scalar is taken in its
// text form, so "version: 1.0" yields "1.0". A missing field, a null, an empty
// scalar, a mapping/sequence, or a value containing a UID delimiter (":", "@"
// or "#") yields the default.
func (d *Document) Version(field string) (version string, defaulted bool) {
	if field == "" {
		field = DefaultVersionField
	}
	cur := d.Root
	for seg := range strings.SplitSeq(field, ".") {
		next, ok := cur.Field(seg)
		if !ok {
			return DefaultVersion, true
		}
		cur = next
	}
	if cur == nil || cur.Kind != KindScalar {
		return DefaultVersion, true
	}
	v := strings.TrimSpace(cur.Value)
	if v == "" || strings.ContainsAny(v, uid.Delimiter+uid.VersionMarker+uid.FragmentMarker) {
		return DefaultVersion, true
	}
	return v, false
}

// Stem returns the file name without its extension (the concept name).
func (d *Document) Stem() string {
	base := path.Base(d.Location)
	return strings.TrimSuffix(base, path.Ext(base))
}

type (
	// converter turns a yaml.Node tree into Nodes. count is the logical node
	// total with aliases expanded.
	converter struct {
		memo  map[*yaml.Node]converted
		count int
	}

	converted struct {
		node *Node
		size int
	}
)

func (c *converter) add(n int) error {
	c.count += n
	if c.count > maxExpandedNodes {
		return errAliasBudget
	}
	return nil
}

func (c *converter) convert(n *yaml.Node, depth int) (*Node, error) {
	if n.Kind == yaml.AliasNode {
		if depth >= maxAliasDepth {
			return nil, fmt.Errorf("line %d: %w", n.Line, errAliasDepth)
		}
		if n.Alias == nil {
			return &Node{Kind: KindNull, Tag: tagNull}, c.add(1)
		}
		if prev, ok := c.memo[n.Alias]; ok {
			if err := c.add(prev.size); err != nil {
				return nil, fmt.Errorf("line %d: %w", n.Line, err)
			}
			return prev.node, nil
		}
		return c.convert(n.Alias, depth+1)
	}

	start := c.count
	if err := c.add(1); err != nil {
		return nil, fmt.Errorf("line %d: %w", n.Line, err)
	}
	out, err := c.build(n, depth)
	if err != nil {
		return nil, err
	}
	if n.Anchor != "" {
		c.memo[n] = converted{node: out, size: c.count - start}
	}
	return out, nil
}

func (c *converter) build(n *yaml.Node, depth int) (*Node, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return &Node{Kind: KindNull, Tag: tagNull}, nil
		}
		return c.convert(n.Content[0], depth)
	case yaml.ScalarNode:
		tag := n.ShortTag()
		if tag == tagNull {
			return &Node{Kind: KindNull, Tag: tag}, nil
		}
		return &Node{Kind: KindScalar, Tag: tag, Value: n.Value}, nil
	case yaml.SequenceNode:
		out := &Node{Kind: KindSequence, Items: make([]*Node, 0, len(n.Content))}
		for _, item := range n.Content {
			child, err := c.convert(item, depth)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, child)
		}
		return out, nil
	case yaml.MappingNode:
		return c.convertMapping(n, depth)
	default:
		return &Node{Kind: KindNull, Tag: tagNull}, nil
	}
}

func (c *converter) convertMapping(n *yaml.Node, depth int) (*Node, error) {
	out := NewMapping()
	var merged []*Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.ShortTag() == tagMerge {
			src, err := c.convert(val, depth)
			if err != nil {
				return nil, err
			}
			merged = append(merged, src)
			continue
		}
		child, err := c.convert(val, depth)
		if err != nil {
			return nil, err
		}
		out.Set(keyText(key), child)
	}
	// Explicit keys win over merged ones, earlier merge sources over later.
	for _, src := range merged {
		applyMerge(out, src)
	}
	return out, nil
}

func applyMerge(dst, src *Node) {
	switch src.Kind {
	case KindMapping:
		for i, k := range src.Keys {
			if _, exists := dst.Field(k); !exists {
				dst.Set(k, src.Fields[i])
			}
		}
	case KindSequence:
		for _, item := range src.Items {
			applyMerge(dst, item)
		}
	case KindNull, KindScalar:
	}
}

func keyText(k *yaml.Node) string {
	if k.Kind == yaml.AliasNode && k.Alias != nil {
		return keyText(k.Alias)
	}
	return k.Value
}
