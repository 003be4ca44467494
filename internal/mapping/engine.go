package mapping

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MappingTable is the terminal artifact of one mapping run: an ordered
// collection of resources and tools with a globally unique name index. It
// is immutable after Build returns and is all-or-nothing — a failed run
// yields no table.
type MappingTable struct {
	// RunID correlates diagnostics from one run. It is derived from the
	// input document, so unchanged input yields the same id and the whole
	// table compares equal across runs.
	RunID string

	Entries []MappingEntry

	byName map[string]MappingEntry
}

// Lookup returns the entry with the given final name.
func (t *MappingTable) Lookup(name string) (MappingEntry, bool) {
	e, ok := t.byName[name]
	return e, ok
}

// Resources returns the resource entries in table order.
func (t *MappingTable) Resources() []*Resource {
	var out []*Resource
	for _, e := range t.Entries {
		if r, ok := e.(*Resource); ok {
			out = append(out, r)
		}
	}
	return out
}

// Tools returns the tool entries in table order.
func (t *MappingTable) Tools() []*Tool {
	var out []*Tool
	for _, e := range t.Entries {
		if tool, ok := e.(*Tool); ok {
			out = append(out, tool)
		}
	}
	return out
}

// Build runs the mapping engine over the document: each operation is
// resolved, bound and classified in the document's stable order, candidate
// names pass through conflict resolution, and the completed table is
// returned only if every operation processed without error.
func Build(doc *Document) (*MappingTable, error) {
	resolver := NewResolver(doc.Schemas)
	binder := NewBinder(resolver)
	names := newNameIndex()

	table := &MappingTable{
		RunID:  runID(doc),
		byName: make(map[string]MappingEntry),
	}

	for _, op := range doc.Operations {
		params, err := binder.Bind(op)
		if err != nil {
			return nil, err
		}

		var returns *TypeDescriptor
		if op.Response != nil {
			returns, err = resolver.Resolve(op.Response, op.Key()+".response")
			if err != nil {
				return nil, fmt.Errorf("operation %s: %w", op.Key(), err)
			}
		}

		entry, err := classify(op, params, returns)
		if err != nil {
			return nil, err
		}

		final, err := names.assign(entry.EntryName(), op)
		if err != nil {
			return nil, err
		}
		entry.rename(final)

		table.Entries = append(table.Entries, entry)
		table.byName[final] = entry
	}

	return table, nil
}

var runIDNamespace = uuid.MustParse("7c7f3a44-9a1e-5cf2-8d5b-3e6f0a2b91d4")

// runID is a v5 UUID over the document's identity and operation list, in
// the engine's processing order.
func runID(doc *Document) string {
	var sb strings.Builder
	sb.WriteString(doc.Title)
	sb.WriteByte('\n')
	sb.WriteString(doc.Version)
	sb.WriteByte('\n')
	for _, op := range doc.Operations {
		sb.WriteString(op.Method)
		sb.WriteByte(' ')
		sb.WriteString(op.Path)
		sb.WriteByte(' ')
		sb.WriteString(op.ID)
		sb.WriteByte('\n')
	}
	return uuid.NewSHA1(runIDNamespace, []byte(sb.String())).String()
}

// nameIndex is the conflict resolver's running name -> operation index,
// scoped to one engine run.
type nameIndex struct {
	taken map[string]*Operation
}

func newNameIndex() *nameIndex {
	return &nameIndex{taken: make(map[string]*Operation)}
}

// assign claims a final name for op. On a collision it appends suffixes
// derived from the operation's verb and path depth, in that order, so the
// outcome depends only on the input and the fixed processing order. A name
// that still collides after both suffixes is an authoring defect.
func (n *nameIndex) assign(candidate string, op *Operation) (string, error) {
	prev, ok := n.taken[candidate]
	if !ok {
		n.taken[candidate] = op
		return candidate, nil
	}

	suffixed := candidate + "_" + strings.ToLower(op.Method)
	if _, ok := n.taken[suffixed]; !ok {
		n.taken[suffixed] = op
		return suffixed, nil
	}

	deep := suffixed + "_" + strconv.Itoa(pathDepth(op.Path))
	if _, ok := n.taken[deep]; !ok {
		n.taken[deep] = op
		return deep, nil
	}

	return "", &NamingConflictError{Name: candidate, First: prev.Key(), Second: op.Key()}
}
