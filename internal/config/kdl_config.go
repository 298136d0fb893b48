package config

import (
	"fmt"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// mergeKDL parses a KDL document and overlays the values it sets onto cfg,
// leaving any field it doesn't mention untouched. Two documents applied in
// sequence (global then project) therefore compose as "project overrides
// global", the same merge LoadWithRoot performs today.
func mergeKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "include":
					cfg.Index.Include = collectStringArgs(cn)
				case "ignore":
					cfg.Index.Ignore = collectStringArgs(cn)
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.FollowSymlink = b
					}
				case "max_file_size", "max-file-size":
					if s, ok := firstStringArg(cn); ok {
						if size, err := parseSize(s); err == nil {
							cfg.Index.MaxFileSize = size
						}
					}
				}
			}
		case "store":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "graph-store":
					assignSimpleString(cn, "graph-store", func(v string) { cfg.Store.GraphPath = v })
					for _, gn := range cn.Children {
						assignSimpleString(gn, "path", func(v string) { cfg.Store.GraphPath = v })
						assignSimpleString(gn, "cli", func(v string) { cfg.Store.GraphCLI = v })
					}
				case "metrics-store":
					assignSimpleString(cn, "metrics-store", func(v string) { cfg.Store.MetricsPath = v })
					for _, mn := range cn.Children {
						assignSimpleString(mn, "path", func(v string) { cfg.Store.MetricsPath = v })
						assignSimpleString(mn, "cli", func(v string) { cfg.Store.MetricsCLI = v })
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "debounce_ms", "debounce-ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.DebounceMS = v
					}
				case "hash_workers", "hash-workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.HashWorkers = v
					}
				}
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "ttl_ms", "ttl-ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.TTLMS = v
					}
				case "max_entries", "max-entries":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.MaxEntries = v
					}
				}
			}
		case "log":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "level":
					if s, ok := firstStringArg(cn); ok {
						cfg.Logging.Level = strings.ToUpper(s)
					}
				case "json":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Logging.JSONMode = b
					}
				}
			}
		case "watch":
			cfg.Index.Include = append(cfg.Index.Include, collectStringArgs(n)...)
		}
	}

	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// collectStringArgs reads string values either from a node's inline
// arguments ("include \"a\" \"b\"") or from its block-form children
// ("exclude { \"a\" }"), matching the two authoring styles KDL allows.
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// parseSize handles size strings like "10MB", "500KB", "1GB", backing the
// index.max_file_size knob that bounds which files the orchestrator reads.
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}
