// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package generate

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cdep/cdep/gps"
)

// MakeDepsFile is the file name of the MakeDeps generator.
const MakeDepsFile = "cdep-deps.mk"

// makeDeps writes Makefile variables per package, plus aggregates ready to
// use as CPPFLAGS, LDFLAGS and LDLIBS.
type makeDeps struct{}

func (makeDeps) Name() string { return "MakeDeps" }

func (makeDeps) Render(g *gps.Graph) ([]File, error) {
	pkgs := collect(g)

	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n# Profile: %s\n", header, g.Profile())

	for _, p := range pkgs {
		id := p.id
		fmt.Fprintf(&b, "\n# %s %s\n", p.name, p.version)
		makeVar(&b, "CDEP_ROOT_"+id, p.root)
		makeVar(&b, "CDEP_INCLUDE_DIRS_"+id, p.includeDirs...)
		makeVar(&b, "CDEP_LIB_DIRS_"+id, p.libDirs...)
		makeVar(&b, "CDEP_BIN_DIRS_"+id, p.binDirs...)
		makeVar(&b, "CDEP_LIBS_"+id, p.libs...)
		makeVar(&b, "CDEP_SYSTEM_LIBS_"+id, p.systemLibs...)
		makeVar(&b, "CDEP_DEFINES_"+id, p.defines...)
		makeVar(&b, "CDEP_CFLAGS_"+id, p.cflags...)
		makeVar(&b, "CDEP_CXXFLAGS_"+id, p.cxxflags...)
	}

	// Static linking needs a library before the ones it uses, so the
	// aggregates run from dependents down to their requirements.
	agg := func(kind string) string {
		refs := make([]string, 0, len(pkgs))
		for i := len(pkgs) - 1; i >= 0; i-- {
			refs = append(refs, "$(CDEP_"+kind+"_"+pkgs[i].id+")")
		}
		return strings.Join(refs, " ")
	}

	b.WriteString("\n")
	for _, kind := range []string{"INCLUDE_DIRS", "LIB_DIRS", "BIN_DIRS", "LIBS", "SYSTEM_LIBS", "DEFINES", "CFLAGS", "CXXFLAGS"} {
		fmt.Fprintf(&b, "CDEP_%s = %s\n", kind, agg(kind))
	}
	b.WriteString("\n")
	b.WriteString("CDEP_CPPFLAGS = $(addprefix -I,$(CDEP_INCLUDE_DIRS)) $(addprefix -D,$(CDEP_DEFINES))\n")
	b.WriteString("CDEP_LDFLAGS = $(addprefix -L,$(CDEP_LIB_DIRS))\n")
	b.WriteString("CDEP_LDLIBS = $(addprefix -l,$(CDEP_LIBS) $(CDEP_SYSTEM_LIBS))\n")

	return []File{{Path: MakeDepsFile, Content: b.Bytes()}}, nil
}

func makeVar(b *bytes.Buffer, name string, values ...string) {
	b.WriteString(name + " =")
	for _, v := range values {
		b.WriteString(" " + strings.Replace(v, " ", `\ `, -1))
	}
	b.WriteString("\n")
}
