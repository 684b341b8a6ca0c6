// +build tools

package tools

// Package tools pins the linter and the ginkgo test runner used in CI to the
// versions in go.mod.
// https://github.com/golang/go/wiki/Modules#how-can-i-track-tool-dependencies-for-a-module
import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "github.com/onsi/ginkgo/ginkgo"
)
