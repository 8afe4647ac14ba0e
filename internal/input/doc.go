// Package input provides interactive terminal input for the hatch CLI.
//
//	template := input.Prompt("Template", ".")
//	if input.Confirm("Remove 3 orphaned artifacts?", false) {
//	    // User said yes
//	}
//
// Commands that prompt also accept --yes so they can run unattended.
//
// Prompts are displayed in cyan and bold; hints (defaults, [Y/n]) in gray.
package input
