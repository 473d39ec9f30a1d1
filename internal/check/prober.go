package check

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jward/bindery/internal/db"
)

// CompilerProber checks a wrapper by declaring its signature in a stub
// translation unit and syntax-checking it with the environment's compiler.
// The environment's target descriptor is passed through as a --target
// triple, so cross-environment checks work with any clang-style driver.
type CompilerProber struct {
	// Compiler is the driver binary, "c++" when empty.
	Compiler string
	// IncludeDirs are passed as -I flags so the wrapped library's headers
	// resolve.
	IncludeDirs []string
	// ExtraArgs are appended verbatim.
	ExtraArgs []string
}

// Probe implements Prober.
func (p *CompilerProber) Probe(ctx context.Context, env db.Environment, item *db.FfiItem) error {
	dir, err := os.MkdirTemp("", "bindery-probe-")
	if err != nil {
		return fmt.Errorf("probe setup: %w", err)
	}
	defer os.RemoveAll(dir)

	stub := filepath.Join(dir, "probe.cpp")
	if err := os.WriteFile(stub, []byte(stubSource(item)), 0o644); err != nil {
		return fmt.Errorf("probe setup: %w", err)
	}

	compiler := p.Compiler
	if compiler == "" {
		compiler = "c++"
	}
	args := []string{"-fsyntax-only"}
	if env.Target != "" {
		args = append(args, "--target="+env.Target)
	}
	if env.LibraryVersion != "" {
		args = append(args, "-DBINDERY_LIBRARY_VERSION="+quoteDefine(env.LibraryVersion))
	}
	for _, inc := range p.IncludeDirs {
		args = append(args, "-I"+inc)
	}
	args = append(args, p.ExtraArgs...)
	args = append(args, stub)

	cmd := exec.CommandContext(ctx, compiler, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// stubSource declares the wrapper's C signature so the compiler validates
// every referenced type under the probed configuration.
func stubSource(item *db.FfiItem) string {
	var b strings.Builder
	b.WriteString("// generated probe, discarded after checking\n")
	switch payload := item.Payload.(type) {
	case db.WrapperFunction:
		ret := payload.ReturnType
		if ret == "" {
			ret = "void"
		}
		params := make([]string, len(payload.Params))
		for i, p := range payload.Params {
			params[i] = p.Type + " " + p.Name
		}
		fmt.Fprintf(&b, "extern \"C\" %s %s(%s);\n", ret, payload.CName, strings.Join(params, ", "))
	case db.SlotWrapper:
		params := make([]string, len(payload.ArgTypes))
		for i, t := range payload.ArgTypes {
			params[i] = fmt.Sprintf("%s arg%d", t, i+1)
		}
		fmt.Fprintf(&b, "extern \"C\" void %s(void* receiver%s);\n",
			payload.CName, prefixEach(params))
	}
	return b.String()
}

func prefixEach(params []string) string {
	if len(params) == 0 {
		return ""
	}
	return ", " + strings.Join(params, ", ")
}

func quoteDefine(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
