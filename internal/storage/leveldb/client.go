// internal/storage/leveldb/client.go
package leveldb

import (
	"fmt"

	"github.com/fawad-mazhar/taskflow/internal/config"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// Client owns the LevelDB handle shared by the task store and the cache
type Client struct {
	db    *leveldb.DB
	codec storage.Codec
}

// NewClient opens (or creates) the database at cfg.Path
func NewClient(cfg config.LevelDBConfig) (*Client, error) {
	opts := &opt.Options{
		CompactionTableSize: 2 * 1024 * 1024, // 2MB
		WriteBuffer:         1 * 1024 * 1024, // 1MB
	}

	db, err := leveldb.OpenFile(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}

	return &Client{db: db, codec: storage.JSONCodec{}}, nil
}

// NewMemClient opens a database that lives only in memory
func NewMemClient() (*Client, error) {
	db, err := leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory leveldb: %w", err)
	}
	return &Client{db: db, codec: storage.JSONCodec{}}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}
