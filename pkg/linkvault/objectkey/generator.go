package objectkey

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tendant/linkvault/pkg/linkvault"
)

// Generator names accepted by New.
const (
	Flat    = "flat"
	Sharded = "sharded"
	Hashed  = "hashed"
)

// New returns the generator registered under name. An empty name selects
// the sharded layout.
func New(name string) (linkvault.KeyGenerator, error) {
	switch name {
	case "", Sharded:
		return NewShardedGenerator(), nil
	case Flat:
		return NewFlatGenerator(), nil
	case Hashed:
		return NewHashedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key generator: %s", name)
	}
}

// FlatGenerator stores every blob at the top level as {handle}{ext}.
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(handle string, meta linkvault.BlobMeta) string {
	return handle + sanitizeExt(meta.FileName)
}

// ShardedGenerator provides Git-style sharding keyed by the handle
// blobs/ab/cd1234ef5678_filename
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(handle string, meta linkvault.BlobMeta) string {
	id := strings.ReplaceAll(handle, "-", "")
	return shardedKey(id, g.ShardLength, meta.FileName)
}

// HashedGenerator shards by a hash of the handle, which spreads handles that
// are not uniformly random.
type HashedGenerator struct {
	ShardLength int
}

func NewHashedGenerator() *HashedGenerator {
	return &HashedGenerator{
		ShardLength: 2,
	}
}

func (g *HashedGenerator) GenerateKey(handle string, meta linkvault.BlobMeta) string {
	sum := sha256.Sum256([]byte(handle))
	hash := fmt.Sprintf("%x", sum)
	return shardedKey(hash[:32], g.ShardLength, meta.FileName)
}

func shardedKey(id string, shardLength int, fileName string) string {
	if shardLength <= 0 {
		shardLength = 2
	}
	if len(id) <= shardLength {
		shardLength = len(id) / 2
	}

	shardDir := id[:shardLength]
	name := id[shardLength:]
	if fileName != "" {
		name = fmt.Sprintf("%s_%s", name, sanitizeFilename(fileName))
	}

	return fmt.Sprintf("blobs/%s/%s", shardDir, name)
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	// only the base name is kept so a client cannot inject directories
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	name := replacer.Replace(filename)
	if name == "." || name == ".." {
		return "_"
	}
	return name
}

func sanitizeExt(filename string) string {
	ext := filepath.Ext(sanitizeFilename(filename))
	if len(ext) > 16 {
		return ""
	}
	return ext
}
