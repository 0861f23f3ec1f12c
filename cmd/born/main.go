// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package main provides the Born runtime CLI.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/runtime/backend/cpu"
	"github.com/born-ml/runtime/engine"
	"github.com/born-ml/runtime/ops"
	"github.com/born-ml/runtime/tensor"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

var (
	flagBackend       = flag.String("backend", "", "Backend tried first, overrides $"+engine.EnvBackend+".")
	flagCheckNumerics = flag.Bool("check-numerics", false, "Check every float kernel output for NaN, as $"+engine.EnvCheckNumerics+".")
)

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() { usage(flag.CommandLine.Output()) }
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" || cmd == "help" {
		usage(os.Stdout)
		return
	}
	if cmd == "version" {
		fmt.Printf("Born runtime %s\n", version)
		return
	}

	e := newEngine()
	defer e.Reset()
	var err error
	switch cmd {
	case "backends":
		err = runBackends(os.Stdout, e)
	case "profile":
		err = runProfile(os.Stdout, e)
	case "memory":
		err = runMemory(os.Stdout, e)
	default:
		usage(os.Stderr)
		klog.Exitf("unknown command %q", cmd)
	}
	if err != nil {
		klog.Exitf("%s: %+v", cmd, err)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Born runtime %s\n\n", version)
	fmt.Fprintln(w, "Usage: born [flags] <command>")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  backends   List registered backends")
	fmt.Fprintln(w, "  profile    Profile a few kernels")
	fmt.Fprintln(w, "  memory     Show memory before and after a tidy scope")
	fmt.Fprintln(w, "\nFlags:")
	flag.CommandLine.SetOutput(w)
	flag.PrintDefaults()
}

// newEngine builds an engine from the environment, with flags taking precedence, and
// registers the CPU backend.
func newEngine() *engine.Engine {
	cfg := engine.ConfigFromEnv()
	cfg.Name = "born"
	if *flagBackend != "" {
		cfg.DefaultBackend = *flagBackend
	}
	if *flagCheckNumerics {
		cfg.CheckNumerics = true
	}
	e := engine.New(cfg)
	must.M(cpu.Register(e, 1))
	return e
}

var (
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
)

func newTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// runBackends initializes the best backend and lists the registry.
func runBackends(w io.Writer, e *engine.Engine) error {
	if _, err := e.Backend(); err != nil {
		return err
	}
	table := newTable("Name", "Priority", "Async", "State", "Active")
	for _, b := range e.Backends() {
		state := string(b.State)
		if b.Err != nil {
			state += ": " + b.Err.Error()
		}
		active := ""
		if b.Active {
			active = "*"
		}
		table.Row(b.Name, fmt.Sprint(b.Priority), fmt.Sprint(b.Async), state, active)
	}
	fmt.Fprintln(w, table.Render())
	return nil
}

// runProfile profiles a square, a sum and a matmul, and prints one row per kernel.
func runProfile(w io.Writer, e *engine.Engine) error {
	var x *engine.Tensor
	if err := ops.Try(func() { x = ops.FromSlice(e, []float32{1, 2, 3, 4}, 2, 2) }); err != nil {
		return err
	}
	defer x.Dispose()

	result, info, err := engine.Profile(e, func() *engine.Tensor {
		return engine.Tidy(e, func() *engine.Tensor {
			y := ops.Square(x)
			z := ops.MatMul(y, x)
			return ops.Sum(z)
		})
	})
	if err != nil {
		return err
	}
	defer result.Dispose()

	table := newTable("Kernel", "Inputs", "Outputs", "Bytes added", "Total bytes", "Elapsed")
	for _, k := range info.Kernels {
		table.Row(k.Name,
			fmt.Sprint(k.InputShapes),
			fmt.Sprint(k.OutputShapes),
			humanize.IBytes(uint64(max(k.BytesAdded, 0))),
			humanize.IBytes(uint64(k.TotalBytesSnapshot)),
			k.Elapsed.String())
	}
	fmt.Fprintln(w, table.Render())
	fmt.Fprintln(w, info)
	return nil
}

// runMemory shows that a tidy scope only leaves its result behind.
func runMemory(w io.Writer, e *engine.Engine) error {
	fmt.Fprintf(w, "before: %s\n", e.Memory())
	var inside engine.MemoryInfo
	var y *engine.Tensor
	err := ops.Try(func() {
		y = engine.TidyNamed(e, "memory-demo", func() *engine.Tensor {
			a := ops.Ones(e, []int{256, 256}, tensor.Float32)
			b := ops.Add(a, a)
			c := ops.MatMul(b, a)
			inside = e.Memory()
			return ops.Mean(c)
		})
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "inside: %s\n", inside)
	fmt.Fprintf(w, "after:  %s\n", e.Memory())
	y.Dispose()
	fmt.Fprintf(w, "end:    %s\n", e.Memory())
	return nil
}
