package registry

import (
	"sort"
	"strings"

	"github.com/addonlens/addonlens/pkg/parser"
)

// Models returns every descriptor registered under name, in scan order.
//
// When the project store configures a preferred root that contributed a
// matching descriptor, the result is filtered to that root's contributions;
// an empty filtered subset silently falls back to the full bucket. That
// fallback mirrors the established behavior and is flagged for product
// review rather than changed here.
func (r *Registry) Models(name string) []*parser.ModelDescriptor {
	r.mu.RLock()
	bucket := append([]*parser.ModelDescriptor(nil), r.models[name]...)
	r.mu.RUnlock()

	preferred := r.store.PreferredRootPath()
	if preferred == "" {
		return bucket
	}

	filtered := make([]*parser.ModelDescriptor, 0, len(bucket))
	for _, desc := range bucket {
		if underRoot(desc.FilePath, preferred) {
			filtered = append(filtered, desc)
		}
	}
	if len(filtered) == 0 {
		return bucket
	}
	return filtered
}

// BaseModel returns the descriptor that declares name (is-extension false).
// A name known only through extensions reports not found.
func (r *Registry) BaseModel(name string) (*parser.ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, desc := range r.models[name] {
		if !desc.IsExtension {
			return desc, true
		}
	}
	return nil, false
}

// InheritingModels returns every extension descriptor whose extension target
// is name, ordered by file path then line for deterministic output.
func (r *Registry) InheritingModels(name string) []*parser.ModelDescriptor {
	r.mu.RLock()
	var result []*parser.ModelDescriptor
	for _, bucket := range r.models {
		for _, desc := range bucket {
			if desc.IsExtension && desc.Inherit == name {
				result = append(result, desc)
			}
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].FilePath != result[j].FilePath {
			return result[i].FilePath < result[j].FilePath
		}
		return result[i].Line < result[j].Line
	})
	return result
}

// AllFieldsForModel merges field declarations from the base descriptor(s)
// of name and from every direct extension (one inheritance level; callers
// recurse for deeper closures). Per field name, occurrences keep first-seen
// order and every declaration is retained — a consumer wanting the effective
// definition takes the last element.
func (r *Registry) AllFieldsForModel(name string) map[string][]*parser.FieldDescriptor {
	fields := make(map[string][]*parser.FieldDescriptor)
	for _, desc := range r.contributors(name) {
		for _, field := range desc.Fields {
			fields[field.Name] = append(fields[field.Name], field)
		}
	}
	return fields
}

// AllMethodsForModel is the method counterpart of AllFieldsForModel.
func (r *Registry) AllMethodsForModel(name string) map[string][]*parser.MethodDescriptor {
	methods := make(map[string][]*parser.MethodDescriptor)
	for _, desc := range r.contributors(name) {
		for _, method := range desc.Methods {
			methods[method.Name] = append(methods[method.Name], method)
		}
	}
	return methods
}

// contributors returns base descriptors for name followed by its direct
// extensions, the traversal order behind the merged field/method queries.
func (r *Registry) contributors(name string) []*parser.ModelDescriptor {
	r.mu.RLock()
	var bases []*parser.ModelDescriptor
	for _, desc := range r.models[name] {
		if !desc.IsExtension {
			bases = append(bases, desc)
		}
	}
	r.mu.RUnlock()

	return append(bases, r.InheritingModels(name)...)
}

// Components returns every component descriptor registered under name.
func (r *Registry) Components(name string) []*parser.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*parser.ModelDescriptor(nil), r.components[name]...)
}

// AllModelNames returns the sorted identity names of the model partition.
func (r *Registry) AllModelNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// AllComponentNames returns the sorted names of the component partition.
func (r *Registry) AllComponentNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// IsReady reports whether the registry is initialized and not mid-refresh.
func (r *Registry) IsReady() bool {
	return r.initialized.Load() && !r.refreshing.Load()
}

// CacheStats is a read-only snapshot of registry state.
type CacheStats struct {
	ModelDescriptors     int
	UniqueModels         int
	ComponentDescriptors int
	UniqueComponents     int
	TrackedFiles         int
	Initialized          bool
	Refreshing           bool
	ParseMemoHits        int64
	ParseMemoMisses      int64
}

// CacheStats returns aggregate counts and flags. No side effects.
func (r *Registry) CacheStats() CacheStats {
	r.mu.RLock()
	stats := CacheStats{
		UniqueModels:     len(r.models),
		UniqueComponents: len(r.components),
		TrackedFiles:     len(r.fileMtimes),
	}
	for _, bucket := range r.models {
		stats.ModelDescriptors += len(bucket)
	}
	for _, bucket := range r.components {
		stats.ComponentDescriptors += len(bucket)
	}
	r.mu.RUnlock()

	stats.Initialized = r.initialized.Load()
	stats.Refreshing = r.refreshing.Load()
	stats.ParseMemoHits = r.memoHits.Load()
	stats.ParseMemoMisses = r.memoMisses.Load()
	return stats
}

// underRoot reports whether path lives under root, respecting path
// separator boundaries.
func underRoot(path, root string) bool {
	if path == root {
		return true
	}
	root = strings.TrimRight(root, "/\\")
	return strings.HasPrefix(path, root+"/") || strings.HasPrefix(path, root+`\`)
}
