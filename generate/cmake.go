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

// File names of the CMake generators.
const (
	CMakeDepsFile      = "cdep-deps.cmake"
	CMakeToolchainFile = "cdep_toolchain.cmake"
)

// cmakeDeps declares, for every package, result variables and an
// INTERFACE IMPORTED target named <name>::<name> that carries the package's
// usage requirements and links its dependencies' targets.
type cmakeDeps struct{}

func (cmakeDeps) Name() string { return "CMakeDeps" }

func (cmakeDeps) Render(g *gps.Graph) ([]File, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n# Profile: %s\n", header, g.Profile())

	for _, p := range collect(g) {
		id := p.id
		target := p.name + "::" + p.name

		fmt.Fprintf(&b, "\n# %s %s\n", p.name, p.version)
		cmakeSet(&b, id+"_VERSION", p.version)
		cmakeSet(&b, id+"_ROOT", p.root)
		cmakeSet(&b, id+"_INCLUDE_DIRS", p.includeDirs...)
		cmakeSet(&b, id+"_LIB_DIRS", p.libDirs...)
		cmakeSet(&b, id+"_BIN_DIRS", p.binDirs...)
		cmakeSet(&b, id+"_LIBS", p.libs...)
		cmakeSet(&b, id+"_SYSTEM_LIBS", p.systemLibs...)
		cmakeSet(&b, id+"_DEFINITIONS", p.defines...)
		cmakeSet(&b, id+"_C_FLAGS", p.cflags...)
		cmakeSet(&b, id+"_CXX_FLAGS", p.cxxflags...)
		fmt.Fprintf(&b, "set(%s_FOUND TRUE)\n", id)

		link := []string{
			fmt.Sprintf("${%s_LIBS}", id),
			fmt.Sprintf("${%s_SYSTEM_LIBS}", id),
		}
		for _, dep := range p.requires {
			link = append(link, dep+"::"+dep)
		}

		fmt.Fprintf(&b, "if(NOT TARGET %s)\n", target)
		fmt.Fprintf(&b, "  add_library(%s INTERFACE IMPORTED)\n", target)
		fmt.Fprintf(&b, "  set_target_properties(%s PROPERTIES\n", target)
		fmt.Fprintf(&b, "    INTERFACE_INCLUDE_DIRECTORIES \"${%s_INCLUDE_DIRS}\"\n", id)
		fmt.Fprintf(&b, "    INTERFACE_LINK_DIRECTORIES \"${%s_LIB_DIRS}\"\n", id)
		fmt.Fprintf(&b, "    INTERFACE_LINK_LIBRARIES \"%s\"\n", strings.Join(link, ";"))
		fmt.Fprintf(&b, "    INTERFACE_COMPILE_DEFINITIONS \"${%s_DEFINITIONS}\"\n", id)
		fmt.Fprintf(&b, "    INTERFACE_COMPILE_OPTIONS \"$<$<COMPILE_LANGUAGE:C>:${%[1]s_C_FLAGS}>;$<$<COMPILE_LANGUAGE:CXX>:${%[1]s_CXX_FLAGS}>\")\n", id)
		b.WriteString("endif()\n")
	}

	return []File{{Path: CMakeDepsFile, Content: b.Bytes()}}, nil
}

// cmakeToolchain records the profile and puts every package's directories
// on CMake's search paths, so find_package, find_path and find_library see
// them.
type cmakeToolchain struct{}

func (cmakeToolchain) Name() string { return "CMakeToolchain" }

func (cmakeToolchain) Render(g *gps.Graph) ([]File, error) {
	prof := g.Profile()
	pkgs := collect(g)

	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", header)
	cmakeSet(&b, "CDEP_OS", prof.OS)
	cmakeSet(&b, "CDEP_COMPILER", prof.Compiler)
	cmakeSet(&b, "CDEP_COMPILER_VERSION", prof.CompilerVersion)
	cmakeSet(&b, "CDEP_ARCH", prof.Arch)
	fmt.Fprintf(&b, "set(CMAKE_BUILD_TYPE %s CACHE STRING \"Build type\" FORCE)\n", cmakeQuote(prof.BuildType))

	// Dependents before their requirements, so a package's own copy of a
	// header or library wins over anything further down.
	var roots, incs, libs, bins []string
	for i := len(pkgs) - 1; i >= 0; i-- {
		p := pkgs[i]
		roots = append(roots, p.root)
		incs = append(incs, p.includeDirs...)
		libs = append(libs, p.libDirs...)
		bins = append(bins, p.binDirs...)
	}

	b.WriteString("\n")
	cmakePrepend(&b, "CMAKE_PREFIX_PATH", roots)
	cmakePrepend(&b, "CMAKE_INCLUDE_PATH", incs)
	cmakePrepend(&b, "CMAKE_LIBRARY_PATH", libs)
	cmakePrepend(&b, "CMAKE_PROGRAM_PATH", bins)

	return []File{{Path: CMakeToolchainFile, Content: b.Bytes()}}, nil
}

func cmakeSet(b *bytes.Buffer, name string, values ...string) {
	b.WriteString("set(" + name)
	for _, v := range values {
		b.WriteString(" " + cmakeQuote(v))
	}
	b.WriteString(")\n")
}

func cmakePrepend(b *bytes.Buffer, list string, values []string) {
	if len(values) == 0 {
		return
	}
	b.WriteString("list(PREPEND " + list)
	for _, v := range values {
		b.WriteString("\n  " + cmakeQuote(v))
	}
	b.WriteString(")\n")
}

var cmakeEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)

func cmakeQuote(s string) string {
	return `"` + cmakeEscaper.Replace(s) + `"`
}
