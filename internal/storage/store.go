// internal/storage/store.go
package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"grove/internal/entry"
	"grove/internal/rbtree"
	"grove/internal/version"
	"grove/shared/utils"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
)

const recordCacheSize = 512

// State is the durable repository head: branch map, staging set, working
// version and remote descriptor. Versions and tree nodes are stored
// separately, content-addressed.
type State struct {
	Branch           string            `json:"branch"`
	Working          string            `json:"working"`
	Author           string            `json:"author"`
	Staged           []string          `json:"staged"`
	Branches         map[string]string `json:"branches"`
	RemoteURL        string            `json:"remote_url,omitempty"`
	RemoteConfigured bool              `json:"remote_configured,omitempty"`
	RemoteID         string            `json:"remote_id,omitempty"`
}

// Version pairs a published version with its materialized root.
type Version struct {
	Info version.Info
	Root *rbtree.Node
}

// nodeRec is the durable form of one tree node. Child pointers become child
// hashes, the value becomes a record hash; the node's own hash is the sha256
// of this encoding, so identical subtrees land on identical keys and
// structural sharing survives a restart.
type nodeRec struct {
	Key     string `json:"key"`
	Record  string `json:"record"`
	Red     bool   `json:"red"`
	Size    int    `json:"size"`
	Version string `json:"version"`
	Left    string `json:"left,omitempty"`
	Right   string `json:"right,omitempty"`
}

// Store persists repository state in badger. Tree nodes and value records
// are content-addressed and immutable, so writes are create-only and a
// version save only touches the O(log n) nodes the version actually added.
type Store struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder

	mu     sync.Mutex
	hashes map[*rbtree.Node]string // in-memory node → hash memo
	loaded map[string]*rbtree.Node // hash → node memo for loads
	blobs  *lru.Cache[string, *entry.Record]
}

// Open opens (or creates) a store rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory opens an ephemeral store, used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	blobs, err := lru.New[string, *entry.Record](recordCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating record cache: %w", err)
	}

	return &Store{
		db:     db,
		enc:    enc,
		dec:    dec,
		hashes: make(map[*rbtree.Node]string),
		loaded: make(map[string]*rbtree.Node),
		blobs:  blobs,
	}, nil
}

func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

// SaveVersion persists info and every node of its tree that is not already
// stored. Nodes reached through the memo or already present in the database
// are skipped, which keeps incremental saves proportional to the path the
// version copied.
func (s *Store) SaveVersion(info version.Info, root *rbtree.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		rootHash, err := s.saveNode(txn, root)
		if err != nil {
			return err
		}

		stored := struct {
			Info version.Info `json:"info"`
			Root string       `json:"root,omitempty"`
		}{info, rootHash}

		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshaling version %s: %w", info.ID, err)
		}
		return txn.Set(versionKey(info.Seq), data)
	})
}

func (s *Store) saveNode(txn *badger.Txn, n *rbtree.Node) (string, error) {
	if n == nil {
		return "", nil
	}
	if hash, ok := s.hashes[n]; ok {
		return hash, nil
	}

	left, err := s.saveNode(txn, n.Left)
	if err != nil {
		return "", err
	}
	right, err := s.saveNode(txn, n.Right)
	if err != nil {
		return "", err
	}

	rec, ok := n.Value.(*entry.Record)
	if !ok {
		return "", fmt.Errorf("node %q holds %T, want *entry.Record", n.Key, n.Value)
	}
	recHash, err := s.saveRecord(txn, rec)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(nodeRec{
		Key:     n.Key,
		Record:  recHash,
		Red:     n.Color == rbtree.Red,
		Size:    n.Size,
		Version: n.Version,
		Left:    left,
		Right:   right,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling node %q: %w", n.Key, err)
	}

	hash := utils.HashContent(data)
	key := nodeKey(hash)
	if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
		if err := txn.Set(key, data); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	s.hashes[n] = hash
	s.loaded[hash] = n
	return hash, nil
}

func (s *Store) saveRecord(txn *badger.Txn, rec *entry.Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshaling record %q: %w", rec.Name, err)
	}

	hash := utils.HashContent(data)
	key := recordKey(hash)
	if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
		if err := txn.Set(key, s.enc.EncodeAll(data, nil)); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return hash, nil
}

// LoadVersions returns every stored version in publish order, materializing
// tree roots. Node loads are memoized by hash, so subtrees shared on disk
// come back as shared pointers in memory.
func (s *Store) LoadVersions() ([]Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Version
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("ver:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored struct {
				Info version.Info `json:"info"`
				Root string       `json:"root,omitempty"`
			}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}

			root, err := s.loadNode(txn, stored.Root)
			if err != nil {
				return fmt.Errorf("loading version %s: %w", stored.Info.ID, err)
			}
			out = append(out, Version{Info: stored.Info, Root: root})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading versions: %w", err)
	}
	return out, nil
}

func (s *Store) loadNode(txn *badger.Txn, hash string) (*rbtree.Node, error) {
	if hash == "" {
		return nil, nil
	}
	if n, ok := s.loaded[hash]; ok {
		return n, nil
	}

	item, err := txn.Get(nodeKey(hash))
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("node %s missing", hash)
	}
	if err != nil {
		return nil, err
	}

	var nr nodeRec
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &nr)
	}); err != nil {
		return nil, err
	}

	rec, err := s.loadRecord(txn, nr.Record)
	if err != nil {
		return nil, err
	}
	left, err := s.loadNode(txn, nr.Left)
	if err != nil {
		return nil, err
	}
	right, err := s.loadNode(txn, nr.Right)
	if err != nil {
		return nil, err
	}

	color := rbtree.Black
	if nr.Red {
		color = rbtree.Red
	}
	n := &rbtree.Node{
		Key:     nr.Key,
		Value:   rec,
		Color:   color,
		Left:    left,
		Right:   right,
		Size:    nr.Size,
		Version: nr.Version,
	}

	s.loaded[hash] = n
	s.hashes[n] = hash
	return n, nil
}

func (s *Store) loadRecord(txn *badger.Txn, hash string) (*entry.Record, error) {
	if rec, ok := s.blobs.Get(hash); ok {
		return rec, nil
	}

	item, err := txn.Get(recordKey(hash))
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("record %s missing", hash)
	}
	if err != nil {
		return nil, err
	}

	var rec entry.Record
	if err := item.Value(func(val []byte) error {
		data, err := s.dec.DecodeAll(val, nil)
		if err != nil {
			return fmt.Errorf("decompressing record %s: %w", hash, err)
		}
		return json.Unmarshal(data, &rec)
	}); err != nil {
		return nil, err
	}

	s.blobs.Add(hash, &rec)
	return &rec, nil
}

// SaveState persists the repository head.
func (s *Store) SaveState(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("state"), data)
	})
}

// LoadState returns the stored head, reporting false when the store is new.
func (s *Store) LoadState() (State, bool, error) {
	var st State
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("state"))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	if err != nil {
		return State{}, false, fmt.Errorf("loading state: %w", err)
	}
	return st, found, nil
}

func nodeKey(hash string) []byte {
	return []byte("node:" + hash)
}

func recordKey(hash string) []byte {
	return []byte("rec:" + hash)
}

func versionKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("ver:%012d", seq))
}
