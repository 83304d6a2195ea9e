// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cdep/cdep/gps"
)

var testProfile = gps.Profile{
	OS:              "Linux",
	Compiler:        "gcc",
	CompilerVersion: "13",
	BuildType:       "Release",
	Arch:            "x86_64",
}

func mkReq(t *testing.T, ref string) gps.Requirement {
	t.Helper()
	r, err := gps.ParseRequirement(ref)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func antlrMetas(t *testing.T) []gps.PackageMetadata {
	return []gps.PackageMetadata{
		{
			Name:     "antlr4",
			Version:  gps.NewVersion("4.13.1"),
			Requires: []gps.Requirement{mkReq(t, "antlr4-cppruntime/4.13.1")},
			RootPath: "/idx/antlr4/4.13.1",
			CppInfo:  gps.CppInfo{BinDirs: []string{"bin"}},
		},
		{
			Name:     "antlr4-cppruntime",
			Version:  gps.NewVersion("4.13.1"),
			RootPath: "/idx/antlr4-cppruntime/4.13.1",
			CppInfo: gps.CppInfo{
				IncludeDirs: []string{"include/antlr4-runtime"},
				LibDirs:     []string{"lib"},
				Libs:        []string{"antlr4-runtime"},
				Defines:     []string{"ANTLR4CPP_STATIC"},
			},
		},
	}
}

func antlrGraph(t *testing.T, metas []gps.PackageMetadata) *gps.Graph {
	t.Helper()
	g, err := gps.NewGraph(testProfile, metas, map[gps.PackageName]bool{
		"antlr4":            true,
		"antlr4-cppruntime": true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGenerateCMake(t *testing.T) {
	g := antlrGraph(t, antlrMetas(t))
	e := &Engine{}

	outs, err := e.Generate(context.Background(), g, []string{"CMakeToolchain", "CMakeDeps"})
	if err != nil {
		t.Fatal(err)
	}

	var files []File
	for _, o := range outs {
		files = append(files, o.Files...)
	}
	if len(files) != 2 {
		t.Fatalf("expected exactly two files, got %d", len(files))
	}
	if outs[0].Generator != "CMakeDeps" || files[0].Path != CMakeDepsFile || files[1].Path != CMakeToolchainFile {
		t.Errorf("unexpected output layout: %s %s, %s", outs[0].Generator, files[0].Path, files[1].Path)
	}

	for _, f := range files {
		content := string(f.Content)
		for _, want := range []string{
			"/idx/antlr4/4.13.1/include",
			"/idx/antlr4/4.13.1/lib",
			"/idx/antlr4-cppruntime/4.13.1/include/antlr4-runtime",
			"/idx/antlr4-cppruntime/4.13.1/lib",
		} {
			if !strings.Contains(content, want) {
				t.Errorf("%s does not reference %s:\n%s", f.Path, want, content)
			}
		}
	}

	deps := string(files[0].Content)
	for _, want := range []string{
		"add_library(antlr4::antlr4 INTERFACE IMPORTED)",
		`set(ANTLR4_CPPRUNTIME_LIBS "antlr4-runtime")`,
		`set(ANTLR4_CPPRUNTIME_DEFINITIONS "ANTLR4CPP_STATIC")`,
		"antlr4-cppruntime::antlr4-cppruntime",
	} {
		if !strings.Contains(deps, want) {
			t.Errorf("expected %s to contain %q:\n%s", CMakeDepsFile, want, deps)
		}
	}
	// Requirements are declared before the packages that use them.
	if strings.Index(deps, "# antlr4-cppruntime") > strings.Index(deps, "# antlr4 4.13.1") {
		t.Errorf("expected antlr4-cppruntime to be declared first:\n%s", deps)
	}

	tc := string(files[1].Content)
	if !strings.Contains(tc, `set(CMAKE_BUILD_TYPE "Release"`) {
		t.Errorf("expected toolchain to set the build type:\n%s", tc)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	names := Names()
	render := func(metas []gps.PackageMetadata) []Output {
		outs, err := (&Engine{Workers: 2}).Generate(context.Background(), antlrGraph(t, metas), names)
		if err != nil {
			t.Fatal(err)
		}
		return outs
	}

	metas := antlrMetas(t)
	first := render(metas)
	second := render([]gps.PackageMetadata{metas[1], metas[0]})

	if len(first) != len(second) || len(first) != len(names) {
		t.Fatalf("expected %d outputs, got %d and %d", len(names), len(first), len(second))
	}
	for i := range first {
		for j := range first[i].Files {
			a, b := first[i].Files[j], second[i].Files[j]
			if a.Path != b.Path || !bytes.Equal(a.Content, b.Content) {
				t.Errorf("%s rendered differently across runs:\n%s\n---\n%s", first[i].Generator, a.Content, b.Content)
			}
		}
	}
}

func TestGenerateUnknownGenerator(t *testing.T) {
	g := antlrGraph(t, antlrMetas(t))
	outs, err := (&Engine{}).Generate(context.Background(), g, []string{"CMakeDeps", "BogusGen"})
	if outs != nil {
		t.Error("expected no output when a generator is unknown")
	}
	ue, ok := err.(*UnknownGeneratorError)
	if !ok {
		t.Fatalf("expected *UnknownGeneratorError, got %T: %v", err, err)
	}
	if ue.Name != "BogusGen" {
		t.Errorf("expected the error to name BogusGen, got %q", ue.Name)
	}
	if !strings.Contains(ue.Error(), "CMakeDeps") {
		t.Errorf("expected the error to list known generators, got %q", ue.Error())
	}
}

func TestGenerateDeduplicatesNames(t *testing.T) {
	g := antlrGraph(t, antlrMetas(t))
	outs, err := (&Engine{}).Generate(context.Background(), g, []string{"MakeDeps", "MakeDeps"})
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != 1 {
		t.Errorf("expected a repeated generator to render once, got %d outputs", len(outs))
	}
}

func TestGenerateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (&Engine{}).Generate(ctx, antlrGraph(t, antlrMetas(t)), []string{"CMakeDeps"}); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMakeDepsLinkOrder(t *testing.T) {
	files, err := makeDeps{}.Render(antlrGraph(t, antlrMetas(t)))
	if err != nil {
		t.Fatal(err)
	}
	content := string(files[0].Content)
	want := "CDEP_LIBS = $(CDEP_LIBS_ANTLR4) $(CDEP_LIBS_ANTLR4_CPPRUNTIME)\n"
	if !strings.Contains(content, want) {
		t.Errorf("expected dependents to link before their requirements, want %q in:\n%s", want, content)
	}
	if !strings.Contains(content, "CDEP_DEFINES_ANTLR4_CPPRUNTIME = ANTLR4CPP_STATIC\n") {
		t.Errorf("expected per-package defines in:\n%s", content)
	}
}

func TestJSONDeps(t *testing.T) {
	files, err := jsonDeps{}.Render(antlrGraph(t, antlrMetas(t)))
	if err != nil {
		t.Fatal(err)
	}

	var got jsonGraph
	if err := json.Unmarshal(files[0].Content, &got); err != nil {
		t.Fatal(err)
	}
	if got.Profile.Compiler != "gcc" || len(got.Packages) != 2 {
		t.Fatalf("unexpected graph: %+v", got)
	}
	if got.Packages[0].Name != "antlr4-cppruntime" || got.Packages[1].Name != "antlr4" {
		t.Errorf("expected packages in dependency order, got %s, %s", got.Packages[0].Name, got.Packages[1].Name)
	}
	if len(got.Packages[1].Requires) != 1 || got.Packages[1].Requires[0] != "antlr4-cppruntime" {
		t.Errorf("unexpected requires for antlr4: %v", got.Packages[1].Requires)
	}
	if got.Packages[0].Libs[0] != "antlr4-runtime" {
		t.Errorf("unexpected libs: %v", got.Packages[0].Libs)
	}
}

func TestIdentifier(t *testing.T) {
	cases := map[string]string{
		"zlib":              "ZLIB",
		"antlr4-cppruntime": "ANTLR4_CPPRUNTIME",
		"boost.asio":        "BOOST_ASIO",
	}
	for in, want := range cases {
		if got := identifier(in); got != want {
			t.Errorf("identifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCollidingIdentifiers(t *testing.T) {
	metas := []gps.PackageMetadata{
		{
			Name:     "foo-bar",
			Version:  gps.NewVersion("1.0.0"),
			RootPath: "/idx/foo-bar/1.0.0",
			CppInfo:  gps.CppInfo{Libs: []string{"dashlib"}},
		},
		{
			Name:     "foo_bar",
			Version:  gps.NewVersion("1.0.0"),
			RootPath: "/idx/foo_bar/1.0.0",
			CppInfo:  gps.CppInfo{Libs: []string{"underlib"}},
		},
	}
	g, err := gps.NewGraph(testProfile, metas, map[gps.PackageName]bool{"foo-bar": true, "foo_bar": true})
	if err != nil {
		t.Fatal(err)
	}

	ids := make(map[string]string)
	for _, p := range collect(g) {
		ids[p.name] = p.id
	}
	if ids["foo-bar"] != "FOO_BAR" || ids["foo_bar"] != "FOO_BAR_2" {
		t.Fatalf("unexpected identifiers %v", ids)
	}

	outs, err := (&Engine{}).Generate(context.Background(), g, []string{"CMakeDeps", "MakeDeps"})
	if err != nil {
		t.Fatal(err)
	}
	content := make(map[string]string)
	for _, o := range outs {
		for _, f := range o.Files {
			content[f.Path] = string(f.Content)
		}
	}

	cases := map[string][]string{
		CMakeDepsFile: {
			`set(FOO_BAR_LIBS "dashlib")`,
			`set(FOO_BAR_2_LIBS "underlib")`,
		},
		MakeDepsFile: {
			"CDEP_LIBS_FOO_BAR = dashlib\n",
			"CDEP_LIBS_FOO_BAR_2 = underlib\n",
			"$(CDEP_LIBS_FOO_BAR)",
			"$(CDEP_LIBS_FOO_BAR_2)",
		},
	}
	for file, wants := range cases {
		for _, want := range wants {
			if !strings.Contains(content[file], want) {
				t.Errorf("%s does not contain %q:\n%s", file, want, content[file])
			}
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate([]string{"CMakeDeps", "JSONDeps"}); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if err := Validate([]string{"BogusGen"}); err == nil {
		t.Error("expected BogusGen to be rejected")
	}
}
