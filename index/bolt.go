// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/cdep/cdep/gps"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

var cacheMetaKey = []byte("msgpack")

// Cache is a PackageIndex that answers from a persistent BoltDB file when it
// can, and from an upstream index otherwise, storing what upstream returns.
// Stored values are timestamped, and the epoch limits the age of values it will
// return. Negative answers are never stored.
//
// Layout:
//
//	Bucket: "pkg:<name>"
//	Sub-Bucket: "versions:<timestamp>"
//	Keys: "<sequence_number>"
//	Values: "<version>"
//
//	Sub-Bucket: "meta:<version>:<timestamp>"
//	Key: "msgpack"
//	Value: the package recipe, msgpack encoded
//
// Methods are safe for concurrent use with each other, excluding Close.
type Cache struct {
	upstream gps.PackageIndex
	db       *bolt.DB
	epoch    int64       // values older than this unix timestamp are ignored
	logger   *log.Logger // cache failures are logged, never returned
}

// NewCache opens (creating if necessary) the BoltDB file at path and
// returns a Cache in front of upstream.
func NewCache(path string, upstream gps.PackageIndex, epoch int64, logger *log.Logger) (*Cache, error) {
	dir := filepath.Dir(path)
	if fi, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, os.ModeDir|os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "failed to create index cache directory: %s", dir)
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to check index cache directory: %s", dir)
	} else if !fi.IsDir() {
		return nil, errors.Errorf("index cache path is not a directory: %s", dir)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open index cache %s", path)
	}
	return &Cache{
		upstream: upstream,
		db:       db,
		epoch:    epoch,
		logger:   logger,
	}, nil
}

// Close releases all database resources.
func (c *Cache) Close() error {
	return errors.Wrapf(c.db.Close(), "error closing Bolt database %q", c.db.String())
}

// ListVersions implements gps.PackageIndex.
func (c *Cache) ListVersions(ctx context.Context, name gps.PackageName) ([]gps.Version, error) {
	if vl, ok := c.getVersions(name); ok {
		return vl, nil
	}

	vl, err := c.upstream.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	c.setVersions(name, vl)
	return vl, nil
}

// Fetch implements gps.PackageIndex.
func (c *Cache) Fetch(ctx context.Context, name gps.PackageName, v gps.Version) (gps.PackageMetadata, error) {
	if m, ok := c.getMetadata(name, v); ok {
		return m, nil
	}

	m, err := c.upstream.Fetch(ctx, name, v)
	if err != nil {
		return gps.PackageMetadata{}, err
	}
	c.setMetadata(name, v, m)
	return m, nil
}

func (c *Cache) setVersions(name gps.PackageName, vl []gps.Version) {
	err := c.updateBucket("pkg:"+string(name), func(b *bolt.Bucket) error {
		if err := cachePrefixDelete(b, "versions:"); err != nil {
			return err
		}
		versions, err := b.CreateBucket(cacheTimestampedKey("versions:", time.Now()))
		if err != nil {
			return err
		}

		for _, v := range vl {
			i, err := versions.NextSequence()
			if err != nil {
				return errors.Wrapf(err, "failed to generate sequence number for %s", name)
			}
			k := [8]byte{}
			binary.BigEndian.PutUint64(k[:], i)
			if err := versions.Put(k[:], []byte(v.String())); err != nil {
				return errors.Wrap(err, "failed to put version")
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Println(errors.Wrapf(err, "failed to cache versions of %s", name))
	}
}

func (c *Cache) getVersions(name gps.PackageName) (vl []gps.Version, ok bool) {
	err := c.viewBucket("pkg:"+string(name), func(b *bolt.Bucket) error {
		versions := cacheFindLatestValid(b, "versions:", c.epoch)
		if versions == nil {
			return nil
		}

		ok = true
		return versions.ForEach(func(_, v []byte) error {
			vl = append(vl, gps.NewVersion(string(v)))
			return nil
		})
	})
	if err != nil {
		c.logger.Println(errors.Wrapf(err, "failed to get cached versions of %s", name))
		return nil, false
	}
	return vl, ok
}

func (c *Cache) setMetadata(name gps.PackageName, v gps.Version, m gps.PackageMetadata) {
	err := c.updateBucket("pkg:"+string(name), func(b *bolt.Bucket) error {
		pre := "meta:" + v.String() + ":"
		if err := cachePrefixDelete(b, pre); err != nil {
			return err
		}
		meta, err := b.CreateBucket(cacheTimestampedKey(pre, time.Now()))
		if err != nil {
			return err
		}

		enc, err := msgpack.Marshal(toRaw(m))
		if err != nil {
			return errors.Wrap(err, "failed to encode metadata")
		}
		return errors.Wrap(meta.Put(cacheMetaKey, enc), "failed to put metadata")
	})
	if err != nil {
		c.logger.Println(errors.Wrapf(err, "failed to cache metadata of %s at %s", name, v))
	}
}

func (c *Cache) getMetadata(name gps.PackageName, v gps.Version) (m gps.PackageMetadata, ok bool) {
	err := c.viewBucket("pkg:"+string(name), func(b *bolt.Bucket) error {
		meta := cacheFindLatestValid(b, "meta:"+v.String()+":", c.epoch)
		if meta == nil {
			return nil
		}
		enc := meta.Get(cacheMetaKey)
		if len(enc) == 0 {
			return nil
		}

		var raw rawPackage
		if err := msgpack.Unmarshal(enc, &raw); err != nil {
			return errors.Wrap(err, "failed to decode metadata")
		}
		var err error
		m, err = raw.toMetadata()
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		c.logger.Println(errors.Wrapf(err, "failed to get cached metadata of %s at %s", name, v))
		return gps.PackageMetadata{}, false
	}
	return m, ok
}

// viewBucket executes view with the named bucket, if it exists.
func (c *Cache) viewBucket(name string, view func(b *bolt.Bucket) error) error {
	return c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		return view(b)
	})
}

// updateBucket executes update with the named bucket, creating it first if necessary.
func (c *Cache) updateBucket(name string, update func(b *bolt.Bucket) error) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return errors.Wrapf(err, "failed to create bucket: %s", name)
		}
		return update(b)
	})
}

// cacheTimestampedKey returns a prefixed key with a trailing timestamp of t.
func cacheTimestampedKey(pre string, t time.Time) []byte {
	b := make([]byte, len(pre)+8)
	copy(b, pre)
	binary.BigEndian.PutUint64(b[len(pre):], uint64(t.Unix()))
	return b
}

// cachePrefixDelete prefix scans and deletes each sub-bucket.
func cachePrefixDelete(b *bolt.Bucket, pre string) error {
	var del [][]byte
	c := b.Cursor()
	p := []byte(pre)
	for k, _ := c.Seek(p); bytes.HasPrefix(k, p); k, _ = c.Next() {
		del = append(del, append([]byte(nil), k...))
	}
	for _, k := range del {
		if err := b.DeleteBucket(k); err != nil {
			return errors.Wrapf(err, "failed to delete bucket: %s", k)
		}
	}
	return nil
}

// cacheFindLatestValid prefix scans for the latest sub-bucket which is
// timestamped >= epoch, or returns nil if none exists.
func cacheFindLatestValid(b *bolt.Bucket, pre string, epoch int64) *bolt.Bucket {
	c := b.Cursor()
	p := []byte(pre)
	var latest []byte
	for k, _ := c.Seek(p); bytes.HasPrefix(k, p); k, _ = c.Next() {
		latest = k
	}
	if latest == nil {
		return nil
	}
	ts := bytes.TrimPrefix(latest, p)
	if len(ts) != 8 {
		return nil
	}
	if int64(binary.BigEndian.Uint64(ts)) < epoch {
		return nil
	}
	return b.Bucket(latest)
}
