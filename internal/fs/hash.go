// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fs

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

const skipModes = os.ModeDevice | os.ModeNamedPipe | os.ModeSocket | os.ModeCharDevice

// HashTree returns a deterministic hash of the file system tree rooted at
// root, performing a breadth-first traversal. Pathnames are hashed relative
// to root, so two copies of a tree at different places hash the same.
//
// The hash covers the name of every node, including empty directories and
// symbolic links; the referent of each symbolic link; and the size and
// contents of each regular file. VCS metadata directories are skipped.
func HashTree(root string) (string, error) {
	h := sha256.New()
	root = filepath.Clean(root)
	scratch := make([]byte, godirwalk.MinimumScratchBufferSize)

	queue := []string{"."}
	for len(queue) > 0 {
		var rel string
		rel, queue = queue[0], queue[1:]
		pathname := filepath.Join(root, rel)

		fi, err := os.Lstat(pathname)
		if err != nil {
			return "", errors.Wrap(err, "cannot Lstat")
		}

		mode := fi.Mode()
		if mode&skipModes != 0 {
			continue
		}

		// Names matter as much as contents, so empty directories and
		// symlinks still change the hash.
		_, _ = h.Write([]byte(filepath.ToSlash(rel)))

		switch {
		case mode&os.ModeSymlink != 0:
			referent, err := os.Readlink(pathname)
			if err != nil {
				return "", errors.Wrap(err, "cannot Readlink")
			}
			_, _ = h.Write([]byte(referent))

		case fi.IsDir():
			names, err := godirwalk.ReadDirnames(pathname, scratch)
			if err != nil {
				return "", errors.Wrapf(err, "cannot read directory %s", pathname)
			}
			// The OS doesn't promise an order.
			sort.Strings(names)
			for _, name := range names {
				switch name {
				case ".", "..", ".bzr", ".git", ".hg", ".svn":
				default:
					queue = append(queue, filepath.Join(rel, name))
				}
			}

		default:
			_, _ = h.Write([]byte(strconv.FormatInt(fi.Size(), 10)))
			if err := hashFile(h, pathname); err != nil {
				return "", err
			}
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func hashFile(w io.Writer, pathname string) error {
	fh, err := os.Open(pathname)
	if err != nil {
		return errors.Wrap(err, "cannot Open")
	}
	defer fh.Close()

	_, err = io.Copy(w, fh)
	return errors.Wrap(err, "cannot Copy")
}
