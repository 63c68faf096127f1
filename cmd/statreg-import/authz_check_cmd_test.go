package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/statreg/pkg/authz"
)

func shippedPolicy(t *testing.T) *authz.Service {
	t.Helper()
	svc, err := authz.NewService(authz.Config{
		ModelPath:  filepath.Join("..", "..", "config", "access", "model.conf"),
		PolicyPath: filepath.Join("..", "..", "config", "access", "policy.csv"),
		Modes:      authz.StaticMode(authz.ModeEnforce),
	})
	require.NoError(t, err)
	return svc
}

func TestShippedPolicyMatchesFixtures(t *testing.T) {
	cases, err := loadAuthzCases(filepath.Join("..", "..", "config", "access", "fixtures.yaml"))
	require.NoError(t, err)

	mismatches, err := checkAuthzCases(context.Background(), shippedPolicy(t), cases)
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestCheckAuthzCases_ReportsMismatch(t *testing.T) {
	cases := []authzCase{
		{Role: "data-supplier", Kind: "LegalUnit", Field: "Activities", Allow: true, Note: "expected wrong"},
		{Role: "registrar", Kind: "LocalUnit", Allow: true},
	}
	mismatches, err := checkAuthzCases(context.Background(), shippedPolicy(t), cases)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Equal(t, "role:data-supplier", mismatches[0].Subject)
	require.Equal(t, "statunit.legalunit.activities", mismatches[0].Object)
	require.False(t, mismatches[0].Got)

	var out bytes.Buffer
	err = reportAuthzMismatches(&out, len(cases), mismatches)
	require.Equal(t, exitValidation, exitCode(err))
	require.Contains(t, out.String(), `"note":"expected wrong"`)
	require.Contains(t, out.String(), "2 case(s), 1 mismatch(es)")
}

func TestLoadAuthzCases_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"empty":      "cases: []\n",
		"no subject": "cases:\n  - {kind: LegalUnit, allow: true}\n",
		"both":       "cases:\n  - {user: a, role: b, kind: LegalUnit}\n",
		"no kind":    "cases:\n  - {user: a, allow: true}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := loadAuthzCases(writeSource(t, body))
			require.Error(t, err)
		})
	}
}
