package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/profile"
)

var (
	initProfile string
	initMode    string
	initForce   bool
)

func init() {
	initCmd.Flags().StringVar(&initProfile, "profile", "", "Write a profile template with this name")
	initCmd.Flags().StringVar(&initMode, "mode", "user", "Config location: user (~/.sceneguard) or system (/etc/sceneguard)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap sceneguard configuration",
	Long: `Creates the config directory, default policy, profile directory and an
example scene file.

User mode (default):  writes to ~/.sceneguard/
System mode:          writes to /etc/sceneguard/ (requires root)`,
	RunE: runInit,
}

// exampleScene is written to scenes/example.yaml by init.
const exampleScene = `# Scene file: one scene's constraints, as written by a planning tool.
id: ep01-s03
title: 복도에서의 이별
# Target length in characters. The guard stops at 80% of it.
target_length: 2000
# The beat the scene ends on. Matched exactly or by keyword overlap.
end_condition: 문을 닫고 돌아섰다.
# dialogue, action or narration
end_condition_type: action
# Characters allowed to appear in this scene.
characters:
  - 서연
  - 민준
# Every known character of the project; anyone here but not above is flagged.
roster:
  - 서연
  - 민준
  - 지호
  - 하은
# Override the policy mode for this scene only.
# strict: true
`

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := initConfigDir()
	if err != nil {
		return err
	}

	var created []string

	profilesDir := filepath.Join(configDir, "profiles")
	if err := os.MkdirAll(profilesDir, 0o755); err != nil {
		return fmt.Errorf("create profiles directory: %w", err)
	}

	policyPath := filepath.Join(configDir, "policy.yaml")
	if wrote, err := writeIfMissing(policyPath, policy.DefaultConfigYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, policyPath)
	}

	scenePath := filepath.Join(configDir, "scenes", "example.yaml")
	if wrote, err := writeIfMissing(scenePath, exampleScene); err != nil {
		return err
	} else if wrote {
		created = append(created, scenePath)
	}

	if initProfile != "" {
		profPath := filepath.Join(profilesDir, initProfile+".yaml")
		if wrote, err := writeIfMissing(profPath, profile.InitProfile(initProfile)); err != nil {
			return err
		} else if wrote {
			created = append(created, profPath)
		}
	}

	fmt.Println("sceneguard init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	fmt.Println("Verify:")
	fmt.Println("  sceneguard doctor")
	fmt.Println()
	fmt.Println("Check a draft against the example scene:")
	fmt.Printf("  sceneguard check --scene %s draft.txt\n", scenePath)
	return nil
}

// initConfigDir returns the configuration directory based on mode.
func initConfigDir() (string, error) {
	switch initMode {
	case "system":
		return "/etc/sceneguard", nil
	case "user", "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".sceneguard"), nil
	default:
		return "", fmt.Errorf("unknown mode %q: use 'user' or 'system'", initMode)
	}
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
