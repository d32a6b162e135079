package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/provably-fair-dice/internal/fairness"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const serverSeed = "5f2b1c9e0d8a7f6e5d4c3b2a19081726354453627180a9b8c7d6e5f4a3b2c1d0"

func TestHash(t *testing.T) {
	out, err := execute(t, "hash", serverSeed)
	require.NoError(t, err)
	assert.Equal(t, fairness.HashServerSeed(serverSeed)+"\n", out)
}

func TestRollMatchesDeriver(t *testing.T) {
	out, err := execute(t, "roll", "--server-seed", serverSeed, "--client-seed", "lucky", "--nonce", "7", "--count", "3")
	require.NoError(t, err)

	d := fairness.Deriver{Algorithm: fairness.SHA256}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		n := uint64(7 + i)
		o := d.Derive(serverSeed, "lucky", n)
		assert.Equal(t, fmt.Sprintf("nonce=%d outcome=%d roll=%s", n, uint32(o), o.Percent()), line)
	}
}

func TestRollUsesSelectedHMAC(t *testing.T) {
	out, err := execute(t, "roll", "--hmac", "sha512", "--server-seed", serverSeed, "--client-seed", "c", "--nonce", "1")
	require.NoError(t, err)
	o := fairness.Deriver{Algorithm: fairness.SHA512}.Derive(serverSeed, "c", 1)
	assert.Contains(t, out, fmt.Sprintf("outcome=%d ", uint32(o)))

	_, err = execute(t, "roll", "--hmac", "md5", "--server-seed", serverSeed)
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	hash := fairness.HashServerSeed(serverSeed)
	o := fairness.Deriver{Algorithm: fairness.SHA256}.Derive(serverSeed, "c", 3)

	out, err := execute(t, "verify", "--server-seed", serverSeed, "--server-seed-hash", hash,
		"--client-seed", "c", "--nonce", "3", "--outcome", fmt.Sprint(uint32(o)))
	require.NoError(t, err)
	assert.Contains(t, out, "hash matches:  true")
	assert.Contains(t, out, "outcome match: true")
	assert.True(t, strings.HasSuffix(out, "valid\n"))

	// resultado gravado diferente do derivado
	wrong := (uint32(o) + 1) % fairness.OutcomeRange
	_, err = execute(t, "verify", "--server-seed", serverSeed, "--server-seed-hash", hash,
		"--client-seed", "c", "--nonce", "3", "--outcome", fmt.Sprint(wrong))
	assert.ErrorIs(t, err, errInvalid)

	_, err = execute(t, "verify", "--server-seed", serverSeed, "--server-seed-hash", strings.Repeat("0", 64),
		"--client-seed", "c", "--nonce", "3")
	assert.ErrorIs(t, err, errInvalid)
}

func TestVerifyRejectsOutOfRangeOutcome(t *testing.T) {
	_, err := execute(t, "verify", "--server-seed", serverSeed, "--server-seed-hash", "x",
		"--nonce", "1", "--outcome", "10000")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errInvalid)
}

func TestVerifyRequiresFlags(t *testing.T) {
	_, err := execute(t, "verify", "--server-seed", serverSeed)
	assert.Error(t, err)
}
