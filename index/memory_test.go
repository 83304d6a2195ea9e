// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"context"
	"testing"

	"github.com/cdep/cdep/gps"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(
		gps.PackageMetadata{Name: "fmt", Version: gps.NewVersion("9.1.0")},
		gps.PackageMetadata{Name: "fmt", Version: gps.NewVersion("10.2.1")},
		gps.PackageMetadata{Name: "fmt", Version: gps.NewVersion("trunk")},
	)

	vl, err := m.ListVersions(ctx, "fmt")
	if err != nil {
		t.Fatal(err)
	}
	if len(vl) != 3 || vl[0].String() != "10.2.1" || vl[2].String() != "trunk" {
		t.Errorf("expected semver versions highest first, then plain ones, got %v", vl)
	}

	m.Add(gps.PackageMetadata{Name: "fmt", Version: gps.NewVersion("9.1.0"), RootPath: "/replaced"})
	pm, err := m.Fetch(ctx, "fmt", gps.NewVersion("9.1.0"))
	if err != nil {
		t.Fatal(err)
	}
	if pm.RootPath != "/replaced" {
		t.Errorf("expected Add to replace the existing entry, got root %q", pm.RootPath)
	}

	if _, err := m.Fetch(ctx, "fmt", gps.NewVersion("1.0.0")); !gps.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.ListVersions(canceled, "fmt"); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
