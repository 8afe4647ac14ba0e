// Package output provides styled terminal output for the hatch CLI.
//
// # Usage
//
//	output.Success("Validated test-repo")
//	output.Info("Instance: sample/ab12cd/test-repo")
//	output.Step("lint     passed")
//	output.Warn("cleanup failed: permission denied")
//	output.Error("install failed (exit 2)")
//
// # Verbose Mode
//
//	output.SetVerbose(true)
//	output.Verbose("This only prints in verbose mode")
//
// # Styling
//
//   - Success: 🐣 green bold
//   - Error: ❌ red bold
//   - Warn: ⚠️ yellow
//   - Info: ℹ️ cyan
//   - Step: indented gray
//   - Verbose: 🔍 gray (when enabled)
package output
