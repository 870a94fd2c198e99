// Package blueprint implements the declarative multi-file build pipeline:
// a JSON configuration describing how an entire graph derives from a set of
// tabular sources, and the phase scheduler that executes it in dependency
// order against a kglite graph session.
package blueprint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kkollsga/kglite/pkg/graph"
)

// ConfigError is a fatal, structural configuration error: a missing
// required key, an unknown kind or operator. It aborts the whole load.
type ConfigError struct {
	Node   string
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("blueprint: node %s: %s: %s", e.Node, e.Key, e.Reason)
	}
	return fmt.Sprintf("blueprint: %s: %s", e.Key, e.Reason)
}

// Config is one blueprint: build settings plus a node spec per NodeType.
type Config struct {
	Settings Settings             `json:"settings"`
	Nodes    map[string]*NodeSpec `json:"nodes"`

	validated bool
}

// Settings carries the source root and the output target. The aliases
// mirror accepted configuration spellings; the first non-empty one wins.
type Settings struct {
	Root       string `json:"root"`
	InputRoot  string `json:"input_root"`
	Output     string `json:"output"`
	OutputPath string `json:"output_path"`
	OutputFile string `json:"output_file"`
}

// SourceRoot returns the directory tabular references resolve against.
func (s Settings) SourceRoot() string {
	if s.Root != "" {
		return s.Root
	}
	return s.InputRoot
}

// OutputTarget returns the persistence artifact path, or "" for none.
func (s Settings) OutputTarget() string {
	for _, p := range []string{s.Output, s.OutputPath, s.OutputFile} {
		if p != "" {
			return p
		}
	}
	return ""
}

// NodeSpec declares how one NodeType derives from a tabular source.
type NodeSpec struct {
	CSV         string                     `json:"csv"`
	PK          string                     `json:"pk"`
	Title       string                     `json:"title"`
	Properties  map[string]string          `json:"properties"`
	Skipped     []string                   `json:"skipped"`
	Filter      map[string]json.RawMessage `json:"filter"`
	Connections *ConnectionSpec            `json:"connections"`
	SubNodes    map[string]*SubNodeSpec    `json:"sub_nodes"`
	Timeseries  *TimeseriesSpec            `json:"timeseries"`

	kinds   map[string]graph.Kind
	filters []FieldFilter
}

// ConnectionSpec groups a node spec's derived edges.
type ConnectionSpec struct {
	FKEdges       map[string]*FKEdgeSpec       `json:"fk_edges"`
	JunctionEdges map[string]*JunctionEdgeSpec `json:"junction_edges"`
}

// FKEdgeSpec derives edges from a foreign-key column in the owning source.
type FKEdgeSpec struct {
	Target string `json:"target"`
	FK     string `json:"fk"`
}

// JunctionEdgeSpec derives many-to-many edges from a separate lookup source.
type JunctionEdgeSpec struct {
	CSV           string            `json:"csv"`
	SourceFK      string            `json:"source_fk"`
	Target        string            `json:"target"`
	TargetFK      string            `json:"target_fk"`
	Properties    []string          `json:"properties"`
	PropertyTypes map[string]string `json:"property_types"`

	kinds map[string]graph.Kind
}

// SubNodeSpec declares a hierarchical child type. PK may be "auto" for
// sequential ids scoped to the sub-node type.
type SubNodeSpec struct {
	CSV         string            `json:"csv"`
	PK          string            `json:"pk"`
	Title       string            `json:"title"`
	ParentFK    string            `json:"parent_fk"`
	Properties  map[string]string `json:"properties"`
	Skipped     []string          `json:"skipped"`
	Connections *ConnectionSpec   `json:"connections"`

	kinds map[string]graph.Kind
}

// AutoPK reports whether child ids are generated sequentially.
func (s *SubNodeSpec) AutoPK() bool { return s.PK == "auto" }

// TimeseriesSpec attaches per-row channel samples to the owning nodes.
type TimeseriesSpec struct {
	TimeKey    TimeKey           `json:"time_key"`
	Resolution string            `json:"resolution"`
	Channels   map[string]string `json:"channels"`
	Units      map[string]string `json:"units"`

	resolution graph.Resolution
}

// TimeKey is either one column name or a composite of named
// year/month/day/hour columns.
type TimeKey struct {
	Column     string
	Components map[string]string
}

// UnmarshalJSON accepts a string or an object of component columns.
func (k *TimeKey) UnmarshalJSON(data []byte) error {
	var col string
	if err := json.Unmarshal(data, &col); err == nil {
		k.Column = col
		return nil
	}
	var components map[string]string
	if err := json.Unmarshal(data, &components); err != nil {
		return fmt.Errorf("time_key must be a column name or an object of component columns")
	}
	k.Components = components
	return nil
}

// IsZero reports an unset time key.
func (k TimeKey) IsZero() bool {
	return k.Column == "" && len(k.Components) == 0
}

// Load reads and validates a blueprint file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blueprint: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a blueprint.
func Parse(r io.Reader) (*Config, error) {
	dec := json.NewDecoder(r)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ConfigError{Key: "json", Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var timeComponents = map[string]bool{"year": true, "month": true, "day": true, "hour": true}

// Validate checks structural requirements once and compiles kind tags,
// filters, and resolutions into their typed forms. Dynamic per-row
// structures (filters, overrides) are never re-validated at row time.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return &ConfigError{Key: "nodes", Reason: "at least one node type is required"}
	}
	for name, spec := range c.Nodes {
		if spec == nil {
			return &ConfigError{Node: name, Key: "spec", Reason: "missing node spec"}
		}
		if spec.CSV != "" && spec.PK == "" {
			return &ConfigError{Node: name, Key: "pk", Reason: "required for a csv-backed node type"}
		}
		var err error
		if spec.kinds, err = parseKinds(name, spec.Properties); err != nil {
			return err
		}
		if spec.filters, err = parseFilters(name, spec.Filter); err != nil {
			return err
		}
		if err = validateConnections(name, spec.Connections); err != nil {
			return err
		}
		for subName, sub := range spec.SubNodes {
			if sub == nil {
				return &ConfigError{Node: subName, Key: "spec", Reason: "missing sub-node spec"}
			}
			if sub.CSV == "" {
				return &ConfigError{Node: subName, Key: "csv", Reason: "required for a sub-node type"}
			}
			if sub.PK == "" {
				return &ConfigError{Node: subName, Key: "pk", Reason: `required (use "auto" for sequential ids)`}
			}
			if sub.ParentFK == "" {
				return &ConfigError{Node: subName, Key: "parent_fk", Reason: "required for a sub-node type"}
			}
			if sub.kinds, err = parseKinds(subName, sub.Properties); err != nil {
				return err
			}
			if err = validateConnections(subName, sub.Connections); err != nil {
				return err
			}
		}
		if ts := spec.Timeseries; ts != nil {
			if ts.TimeKey.IsZero() {
				return &ConfigError{Node: name, Key: "time_key", Reason: "required for a timeseries spec"}
			}
			for comp := range ts.TimeKey.Components {
				if !timeComponents[comp] {
					return &ConfigError{Node: name, Key: "time_key", Reason: fmt.Sprintf("unknown component %q", comp)}
				}
			}
			if len(ts.Channels) == 0 {
				return &ConfigError{Node: name, Key: "channels", Reason: "at least one channel is required"}
			}
			if ts.resolution, err = graph.ParseResolution(ts.Resolution); err != nil {
				return &ConfigError{Node: name, Key: "resolution", Reason: err.Error()}
			}
		}
	}
	c.validated = true
	return nil
}

func validateConnections(node string, conns *ConnectionSpec) error {
	if conns == nil {
		return nil
	}
	for edgeName, fk := range conns.FKEdges {
		if fk == nil || fk.Target == "" {
			return &ConfigError{Node: node, Key: edgeName + ".target", Reason: "required for an fk edge"}
		}
		if fk.FK == "" {
			return &ConfigError{Node: node, Key: edgeName + ".fk", Reason: "required for an fk edge"}
		}
	}
	for edgeName, j := range conns.JunctionEdges {
		if j == nil || j.CSV == "" {
			return &ConfigError{Node: node, Key: edgeName + ".csv", Reason: "required for a junction edge"}
		}
		if j.SourceFK == "" || j.TargetFK == "" {
			return &ConfigError{Node: node, Key: edgeName, Reason: "source_fk and target_fk are required"}
		}
		if j.Target == "" {
			return &ConfigError{Node: node, Key: edgeName + ".target", Reason: "required for a junction edge"}
		}
		var err error
		if j.kinds, err = parseKinds(node, j.PropertyTypes); err != nil {
			return err
		}
	}
	return nil
}

func parseKinds(node string, tags map[string]string) (map[string]graph.Kind, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	kinds := make(map[string]graph.Kind, len(tags))
	for col, tag := range tags {
		k, err := graph.ParseKind(tag)
		if err != nil {
			return nil, &ConfigError{Node: node, Key: col, Reason: err.Error()}
		}
		kinds[col] = k
	}
	return kinds, nil
}
