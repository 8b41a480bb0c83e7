package main

import (
	"bytes"
	"encoding/json"
	"testing"
)

// runCLI executes heapctl with args, capturing stdout. Global flags are
// reset first so tests do not leak settings into each other.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	verbose, quiet, jsonOut = false, false, false
	strategyName, limitFlag, incrementStr, sourceName, reserveStr = "first", "0", "64K", "brk", "64M"
	runBump, runShowStats = false, false
	simSeed, simOps, simMaxSize, simFreeP = 1, 500, 512, 0.4
	simVerifyN, simEmit, simWithBump = 0, "", true

	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	defer func() { stdout = orig }()

	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// assertJSON checks that output is valid JSON and decodes it into v.
func assertJSON(t *testing.T, output string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Fatalf("output is not valid JSON: %v\nOutput: %s", err, output)
	}
}
