package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/sceneguard/internal/audit"
	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/ledger"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/policy"
	"github.com/ppiankov/sceneguard/internal/profile"
	"github.com/ppiankov/sceneguard/internal/scene"
)

// runFlags are shared by the commands that run a guard session locally.
type runFlags struct {
	scene      string
	policy     string
	profile    string
	strict     bool
	auditLog   string
	ledgerPath string
	noLedger   bool
	format     string
}

// session is everything one local guard run needs.
type session struct {
	scene      *scene.Scene
	policyCfg  *policy.PolicyConfig
	policyHash string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.scene, "scene", "s", "", "Path to scene YAML (required)")
	cmd.Flags().StringVar(&f.policy, "policy", "", "Path to policy YAML (default: ~/.sceneguard/policy.yaml)")
	cmd.Flags().StringVar(&f.profile, "profile", "", "Guard profile to apply (e.g., strict)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Stop on every violation")
	cmd.Flags().StringVar(&f.auditLog, "audit-log", "", "Path to audit log JSONL file")
	cmd.Flags().StringVar(&f.ledgerPath, "ledger", "", "Path to verdict ledger (default: ~/.sceneguard/ledger.db)")
	cmd.Flags().BoolVar(&f.noLedger, "no-ledger", false, "Do not record the verdict")
	cmd.Flags().StringVarP(&f.format, "format", "f", "text", "Report format (text|json)")
	cmd.MarkFlagRequired("scene")
}

func loadPolicy(path, profileName string) (*policy.PolicyConfig, string, error) {
	cfg, hash, err := policy.LoadConfigWithHash(path)
	if err != nil {
		return nil, "", fmt.Errorf("load policy: %w", err)
	}
	if profileName == "" {
		return cfg, hash, nil
	}
	prof, err := profile.Load(profileName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load profile %q: %w", profileName, err)
	}
	cfg, err = profile.ApplyToPolicy(prof, cfg)
	if err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

func (f *runFlags) load() (*session, error) {
	sc, err := scene.Load(f.scene)
	if err != nil {
		return nil, err
	}
	cfg, hash, err := loadPolicy(f.policy, f.profile)
	if err != nil {
		return nil, err
	}
	return &session{scene: sc, policyCfg: cfg, policyHash: hash}, nil
}

func (f *runFlags) options(s *session) []guard.Option {
	opts := append([]guard.Option{guard.WithConfig(s.policyCfg)}, s.scene.Options()...)
	if f.strict {
		opts = append(opts, guard.WithStrict(true))
	}
	return opts
}

// record writes the finished session to the audit log and the ledger.
// Failures are logged; the verdict itself already stands.
func (f *runFlags) record(ctx context.Context, s *session, sessionID, source string, r model.GuardResult) {
	label := s.scene.Label()
	if f.auditLog != "" {
		if err := appendAudit(f.auditLog, sessionID, label, s.policyHash, r); err != nil {
			logger.Error("audit write failed", zap.Error(err))
		}
	}
	if f.noLedger {
		return
	}
	path := f.ledgerPath
	if path == "" {
		path = ledger.DefaultPath()
	}
	if path == "" {
		return
	}
	l, err := ledger.Open(path)
	if err != nil {
		logger.Warn("ledger unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	defer l.Close()
	if _, err := l.RecordResult(ctx, sessionID, label, source, s.policyHash, r); err != nil {
		logger.Warn("ledger write failed", zap.Error(err))
	}
}

func appendAudit(path, sessionID, label, policyHash string, r model.GuardResult) error {
	log, err := audit.Open(path)
	if err != nil {
		return err
	}
	defer log.Close()
	return log.RecordResult(sessionID, label, policyHash, r)
}

// readInput reads the named file, or stdin for "" or "-".
func readInput(name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

// writeReport prints the verdict of a session.
func writeReport(w io.Writer, format, sessionID string, r model.GuardResult) error {
	if format == "json" {
		out, err := json.MarshalIndent(map[string]any{"session_id": sessionID, "result": r}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}

	status := "complete"
	switch {
	case r.EndConditionReached:
		status = "end condition reached"
	case r.WasTerminated:
		status = "stopped"
	}
	fmt.Fprintf(w, "Session:    %s\n", sessionID)
	fmt.Fprintf(w, "Status:     %s\n", status)
	if r.TerminationReason != "" {
		fmt.Fprintf(w, "Reason:     %s\n", r.TerminationReason)
	}
	fmt.Fprintf(w, "Length:     %d\n", utf8.RuneCountInString(r.Content))
	fmt.Fprintf(w, "Violations: %d\n", len(r.Violations))
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  [%s] %-24s @%-6d %s\n", v.Severity, v.Kind, v.Position, v.Description)
	}
	return nil
}

func printJSON(w io.Writer, v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(out))
}
