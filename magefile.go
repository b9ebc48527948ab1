//go:build mage

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binaryName = "raporta"

// Build compiles the raporta binary into ./bin.
func Build() error {
	mg.Deps(Tidy)

	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}

	name := binaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	fmt.Println("Building", name, version)
	return sh.RunV("go", "build",
		"-ldflags", "-s -w -X main.version="+version,
		"-o", "bin/"+name,
		"./cmd/raporta")
}

// Test runs the full test suite with race detection.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint vets the module.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Tidy syncs go.mod and go.sum.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll("bin")
}
