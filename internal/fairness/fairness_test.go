package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	tests := []struct {
		name       string
		alg        Algorithm
		serverSeed string
		clientSeed string
		nonce      uint64
	}{
		{"sha256 first nonce", SHA256, "c8544bd4cf552d647175c000184329ad23af31099163601f", "bcd4wlgbdp4871fxbtzq", 1},
		{"sha256 large nonce", SHA256, "c8544bd4cf552d647175c000184329ad23af31099163601f", "bcd4wlgbdp4871fxbtzq", 1 << 40},
		{"sha512", SHA512, "server", "client", 7},
		{"empty client seed", SHA256, "server", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Deriver{Algorithm: tt.alg}
			first := d.Derive(tt.serverSeed, tt.clientSeed, tt.nonce)
			for i := 0; i < 10; i++ {
				assert.Equal(t, first, d.Derive(tt.serverSeed, tt.clientSeed, tt.nonce))
			}
			assert.Less(t, uint32(first), uint32(OutcomeRange))
		})
	}
}

func TestDeriveDependsOnEveryInput(t *testing.T) {
	d := Deriver{Algorithm: SHA256}
	seen := map[Outcome]int{}
	for nonce := uint64(1); nonce <= 200; nonce++ {
		seen[d.Derive("server", "client", nonce)]++
	}
	// 200 sorteios em 10000 posições quase não colidem
	assert.Greater(t, len(seen), 190)

	differ := 0
	for nonce := uint64(1); nonce <= 20; nonce++ {
		if d.Derive("server", "client", nonce) != d.Derive("server", "client-2", nonce) {
			differ++
		}
		if d.Derive("server", "client", nonce) != d.Derive("server-2", "client", nonce) {
			differ++
		}
	}
	assert.Greater(t, differ, 35)
}

func TestDeriveDistribution(t *testing.T) {
	d := Deriver{Algorithm: SHA256}
	const rounds = 50_000
	buckets := make([]int, 10)
	for nonce := uint64(0); nonce < rounds; nonce++ {
		out := d.Derive("distribution-seed", "client", nonce)
		buckets[out/1000]++
	}
	for i, n := range buckets {
		p := float64(n) / rounds
		if p < 0.09 || p > 0.11 {
			t.Errorf("bucket %d proportion %.4f want ~0.10", i, p)
		}
	}
}

func TestMessageLayout(t *testing.T) {
	assert.Equal(t, "abc:42:0", string(message("abc", 42, 0)))
	assert.Equal(t, ":0:3", string(message("", 0, 3)))
}

func TestOutcomePercent(t *testing.T) {
	assert.Equal(t, "42.17", Outcome(4217).Percent())
	assert.Equal(t, "0.05", Outcome(5).Percent())
	assert.Equal(t, "99.99", Outcome(9999).Percent())
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, SHA256, a)

	a, err = ParseAlgorithm("sha512")
	require.NoError(t, err)
	assert.Equal(t, SHA512, a)

	_, err = ParseAlgorithm("md5")
	assert.Error(t, err)
}

func TestGeneratedSeeds(t *testing.T) {
	s1, err := GenerateServerSeed()
	require.NoError(t, err)
	s2, err := GenerateServerSeed()
	require.NoError(t, err)
	assert.Len(t, s1, ServerSeedBytes*2)
	assert.NotEqual(t, s1, s2)

	c, err := GenerateClientSeed()
	require.NoError(t, err)
	assert.Len(t, c, ClientSeedBytes*2)
}

func TestHashServerSeed(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashServerSeed("abc"))
}

func TestVerify(t *testing.T) {
	d := Deriver{Algorithm: SHA256}
	seed, err := GenerateServerSeed()
	require.NoError(t, err)
	hash := HashServerSeed(seed)
	out := d.Derive(seed, "player", 9)

	v := d.Verify(Proof{ServerSeed: seed, ServerSeedHash: hash, ClientSeed: "player", Nonce: 9, ExpectedOutcome: &out})
	assert.True(t, v.Valid())
	assert.Equal(t, out, v.Outcome)

	wrong := out + 1
	v = d.Verify(Proof{ServerSeed: seed, ServerSeedHash: hash, ClientSeed: "player", Nonce: 9, ExpectedOutcome: &wrong})
	assert.True(t, v.HashMatches)
	assert.False(t, v.OutcomeMatch)

	v = d.Verify(Proof{ServerSeed: "tampered", ServerSeedHash: hash, ClientSeed: "player", Nonce: 9})
	assert.False(t, v.HashMatches)
	assert.False(t, v.Valid())
}
