package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	schema:n:<type>        node type schema (sans nodes)
//	schema:e:<name>        edge type schema (sans edges)
//	node:<type>:<id>       one node
//	edge:<name>:<seq>      one edge, zero-padded sequence
const (
	nodeSchemaPrefix = "schema:n:"
	edgeSchemaPrefix = "schema:e:"
	nodePrefix       = "node:"
	edgePrefix       = "edge:"
)

// BadgerStore persists graph snapshots into a BadgerDB directory. It is
// the artifact backend used when the blueprint output target is a
// directory rather than a single file.
type BadgerStore struct {
	db  *badger.DB
	ser Serializer
}

// OpenBadger opens (or creates) a Badger-backed artifact directory.
func OpenBadger(dir string, ser Serializer) (*BadgerStore, error) {
	if _, err := serializerID(ser); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, ser: ser}, nil
}

// Close releases the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func nodeKey(typeName, id string) []byte {
	return []byte(nodePrefix + typeName + ":" + id)
}

func edgeKey(edgeName string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", edgePrefix, edgeName, seq))
}

// SaveSnapshot writes a whole snapshot. All writes go through one
// WriteBatch to keep write amplification down on large graphs.
func (b *BadgerStore) SaveSnapshot(sn *Snapshot) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	set := func(key []byte, value any) error {
		data, err := encodeFramed(value, b.ser)
		if err != nil {
			return err
		}
		return wb.Set(key, data)
	}

	for _, nts := range sn.NodeTypes {
		schema := nts
		schema.Nodes = nil
		if err := set([]byte(nodeSchemaPrefix+nts.Name), schema); err != nil {
			return err
		}
		for _, ns := range nts.Nodes {
			if err := set(nodeKey(nts.Name, ns.ID), ns); err != nil {
				return err
			}
		}
	}
	for _, ets := range sn.EdgeTypes {
		schema := ets
		schema.Edges = nil
		if err := set([]byte(edgeSchemaPrefix+ets.Name), schema); err != nil {
			return err
		}
		for i, es := range ets.Edges {
			if err := set(edgeKey(ets.Name, i), es); err != nil {
				return err
			}
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reassembles the stored snapshot.
func (b *BadgerStore) LoadSnapshot() (*Snapshot, error) {
	sn := &Snapshot{Version: snapshotVersion}
	nodeTypes := make(map[string]*NodeTypeSnapshot)
	edgeTypes := make(map[string]*EdgeTypeSnapshot)
	var nodeOrder, edgeOrder []string

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		scan := func(prefix string, fn func(key string, data []byte) error) error {
			p := []byte(prefix)
			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				item := it.Item()
				key := string(item.Key())[len(prefix):]
				if err := item.Value(func(data []byte) error {
					return fn(key, data)
				}); err != nil {
					return err
				}
			}
			return nil
		}

		if err := scan(nodeSchemaPrefix, func(key string, data []byte) error {
			var nts NodeTypeSnapshot
			if err := decodeFramed(data, &nts); err != nil {
				return err
			}
			nodeTypes[nts.Name] = &nts
			nodeOrder = append(nodeOrder, nts.Name)
			return nil
		}); err != nil {
			return err
		}
		if err := scan(edgeSchemaPrefix, func(key string, data []byte) error {
			var ets EdgeTypeSnapshot
			if err := decodeFramed(data, &ets); err != nil {
				return err
			}
			edgeTypes[ets.Name] = &ets
			edgeOrder = append(edgeOrder, ets.Name)
			return nil
		}); err != nil {
			return err
		}
		if err := scan(nodePrefix, func(key string, data []byte) error {
			typeName, ok := splitTypedKey(key)
			if !ok {
				return fmt.Errorf("malformed node key %q", key)
			}
			nts, ok := nodeTypes[typeName]
			if !ok {
				return fmt.Errorf("node for unknown type %q", typeName)
			}
			var ns NodeSnapshot
			if err := decodeFramed(data, &ns); err != nil {
				return err
			}
			nts.Nodes = append(nts.Nodes, ns)
			return nil
		}); err != nil {
			return err
		}
		return scan(edgePrefix, func(key string, data []byte) error {
			edgeName, ok := splitTypedKey(key)
			if !ok {
				return fmt.Errorf("malformed edge key %q", key)
			}
			ets, ok := edgeTypes[edgeName]
			if !ok {
				return fmt.Errorf("edge for unknown type %q", edgeName)
			}
			var es EdgeSnapshot
			if err := decodeFramed(data, &es); err != nil {
				return err
			}
			ets.Edges = append(ets.Edges, es)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	for _, name := range nodeOrder {
		sn.NodeTypes = append(sn.NodeTypes, *nodeTypes[name])
	}
	for _, name := range edgeOrder {
		sn.EdgeTypes = append(sn.EdgeTypes, *edgeTypes[name])
	}
	return sn, nil
}

// splitTypedKey splits "<type>:<rest>" and returns the type part.
func splitTypedKey(key string) (string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], true
		}
	}
	return "", false
}
