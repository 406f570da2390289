package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sceneguard/internal/ledger"
	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/profile"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and diagnose issues",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	checks := doctorChecks()

	hasFailures := false
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Println(line)
	}

	if hasFailures {
		fmt.Println()
		fmt.Println("Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}

func doctorChecks() []checkResult {
	var checks []checkResult

	execPath, _ := os.Executable()
	if execPath != "" {
		checks = append(checks, checkResult{label: "sceneguard binary", ok: true, detail: fmt.Sprintf("%s (v%s)", execPath, version)})
	} else {
		checks = append(checks, checkResult{label: "sceneguard binary", ok: false, detail: "cannot determine executable path"})
	}

	policyPath := policy.DefaultPath()
	switch {
	case policyPath == "":
		checks = append(checks, checkResult{label: "config directory", ok: false, detail: "cannot determine home directory"})
	default:
		configDir := filepath.Dir(policyPath)
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			checks = append(checks, checkResult{label: "config directory", ok: true, detail: configDir})
		} else {
			checks = append(checks, checkResult{label: "config directory", ok: false, detail: "missing", fix: "sceneguard init"})
		}

		if _, err := os.Stat(policyPath); err != nil {
			checks = append(checks, checkResult{label: "policy.yaml", ok: false, detail: "missing", fix: "sceneguard init"})
		} else if _, err := policy.LoadConfig(policyPath); err != nil {
			checks = append(checks, checkResult{label: "policy.yaml", ok: false, detail: err.Error(), fix: "edit " + policyPath})
		} else {
			checks = append(checks, checkResult{label: "policy.yaml", ok: true, detail: "valid"})
		}
	}

	var broken []string
	names := profile.List()
	for _, name := range names {
		if _, err := profile.Load(name); err != nil {
			broken = append(broken, name)
		}
	}
	if len(broken) == 0 {
		checks = append(checks, checkResult{label: "profiles", ok: true, detail: fmt.Sprintf("%d available", len(names))})
	} else {
		checks = append(checks, checkResult{
			label:  "profiles",
			ok:     false,
			detail: fmt.Sprintf("%d of %d fail to load: %v", len(broken), len(names), broken),
			fix:    "sceneguard profile check <name>",
		})
	}

	if path := ledger.DefaultPath(); path != "" {
		if l, err := ledger.Open(path); err != nil {
			checks = append(checks, checkResult{label: "ledger", ok: false, detail: err.Error()})
		} else {
			l.Close()
			checks = append(checks, checkResult{label: "ledger", ok: true, detail: path})
		}
	}

	return checks
}
