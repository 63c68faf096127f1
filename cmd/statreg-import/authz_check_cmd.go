package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/statreg/pkg/authz"
)

// authzCase is one expected decision. Exactly one of User or Role names the
// subject; Field narrows the object to a single unit field.
type authzCase struct {
	User   string `yaml:"user"`
	Role   string `yaml:"role"`
	Kind   string `yaml:"kind"`
	Field  string `yaml:"field"`
	Action string `yaml:"action"`
	Allow  bool   `yaml:"allow"`
	Note   string `yaml:"note,omitempty"`
}

func (c authzCase) request() authz.Request {
	subject := authz.SubjectForUser(c.User)
	if c.Role != "" {
		subject = authz.SubjectForRole(c.Role)
	}
	action := c.Action
	if action == "" {
		action = authz.ActionWrite
	}
	return authz.NewRequest(subject, authz.UnitObject(c.Kind, c.Field), action)
}

type authzMismatch struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
	Want    bool   `json:"want"`
	Got     bool   `json:"got"`
	Note    string `json:"note,omitempty"`
}

type decisionChecker interface {
	Check(ctx context.Context, req authz.Request) (bool, error)
}

func loadAuthzCases(path string) ([]authzCase, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Cases []authzCase `yaml:"cases"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Cases) == 0 {
		return nil, fmt.Errorf("%s: no cases", path)
	}
	for i, c := range doc.Cases {
		if (c.User == "") == (c.Role == "") {
			return nil, fmt.Errorf("%s: case %d needs exactly one of user or role", path, i+1)
		}
		if strings.TrimSpace(c.Kind) == "" {
			return nil, fmt.Errorf("%s: case %d has no kind", path, i+1)
		}
	}
	return doc.Cases, nil
}

// checkAuthzCases evaluates the raw policy decision for every case, ignoring
// the shadow/enforce mode.
func checkAuthzCases(ctx context.Context, checker decisionChecker, cases []authzCase) ([]authzMismatch, error) {
	var out []authzMismatch
	for _, c := range cases {
		req := c.request()
		got, err := checker.Check(ctx, req)
		if err != nil {
			return nil, err
		}
		if got != c.Allow {
			out = append(out, authzMismatch{
				Subject: req.Subject,
				Object:  req.Object,
				Action:  req.Action,
				Want:    c.Allow,
				Got:     got,
				Note:    c.Note,
			})
		}
	}
	return out, nil
}

func reportAuthzMismatches(out io.Writer, total int, mismatches []authzMismatch) error {
	enc := json.NewEncoder(out)
	for _, m := range mismatches {
		if err := enc.Encode(m); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "%d case(s), %d mismatch(es)\n", total, len(mismatches))
	if len(mismatches) > 0 {
		return withCode(exitValidation, fmt.Errorf("authz policy disagrees with %d case(s)", len(mismatches)))
	}
	return nil
}

func newAuthzCheckCmd(root *rootOptions) *cobra.Command {
	var fixtures string

	cmd := &cobra.Command{
		Use:   "authz-check",
		Short: "Verify the write policy against expected decisions",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cases, err := loadAuthzCases(fixtures)
			if err != nil {
				return withCode(exitValidation, err)
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}
			defer cfg.Unload()

			svc, err := authz.NewService(authz.ConfigFrom(cfg))
			if err != nil {
				return withCode(exitValidation, err)
			}
			mismatches, err := checkAuthzCases(cmd.Context(), svc, cases)
			if err != nil {
				return err
			}
			return reportAuthzMismatches(cmd.OutOrStdout(), len(cases), mismatches)
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "config/access/fixtures.yaml", "YAML file of expected decisions")
	return cmd
}
