package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radieske/provably-fair-dice/internal/fairness"
)

var errInvalid = errors.New("verification failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd monta o dicectl: conferência offline de apostas, sem rede nem banco
func newRootCmd() *cobra.Command {
	var hmacAlg string
	root := &cobra.Command{
		Use:          "dicectl",
		Short:        "Offline verification for provably fair dice bets",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&hmacAlg, "hmac", string(fairness.SHA256), "outcome HMAC: sha256 | sha512")

	deriver := func() (fairness.Deriver, error) {
		alg, err := fairness.ParseAlgorithm(hmacAlg)
		if err != nil {
			return fairness.Deriver{}, err
		}
		return fairness.Deriver{Algorithm: alg}, nil
	}

	root.AddCommand(newHashCmd(), newRollCmd(deriver), newVerifyCmd(deriver))
	return root
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <server-seed>",
		Short: "Print the SHA-256 commitment of a server seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), fairness.HashServerSeed(args[0]))
			return nil
		},
	}
}

func newRollCmd(deriver func() (fairness.Deriver, error)) *cobra.Command {
	var (
		serverSeed string
		clientSeed string
		nonce      uint64
		count      int
	)
	cmd := &cobra.Command{
		Use:   "roll",
		Short: "Derive outcomes for a seed pair starting at a nonce",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := deriver()
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("count must be at least 1")
			}
			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				n := nonce + uint64(i)
				o := d.Derive(serverSeed, clientSeed, n)
				fmt.Fprintf(out, "nonce=%d outcome=%d roll=%s\n", n, uint32(o), o.Percent())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverSeed, "server-seed", "", "revealed server seed")
	cmd.Flags().StringVar(&clientSeed, "client-seed", "", "client seed")
	cmd.Flags().Uint64Var(&nonce, "nonce", 1, "first nonce")
	cmd.Flags().IntVar(&count, "count", 1, "number of consecutive nonces")
	_ = cmd.MarkFlagRequired("server-seed")
	return cmd
}

func newVerifyCmd(deriver func() (fairness.Deriver, error)) *cobra.Command {
	var (
		p       fairness.Proof
		outcome int64
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a revealed server seed against its commitment and recompute the outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := deriver()
			if err != nil {
				return err
			}
			if outcome >= 0 {
				if outcome >= fairness.OutcomeRange {
					return fmt.Errorf("outcome must be below %d", fairness.OutcomeRange)
				}
				o := fairness.Outcome(outcome)
				p.ExpectedOutcome = &o
			}
			v := d.Verify(p)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "computed hash: %s\n", v.ComputedHash)
			fmt.Fprintf(out, "hash matches:  %t\n", v.HashMatches)
			fmt.Fprintf(out, "outcome:       %d (%s)\n", uint32(v.Outcome), v.Outcome.Percent())
			if p.ExpectedOutcome != nil {
				fmt.Fprintf(out, "outcome match: %t\n", v.OutcomeMatch)
			}
			if !v.Valid() {
				return errInvalid
			}
			fmt.Fprintln(out, "valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&p.ServerSeed, "server-seed", "", "revealed server seed")
	cmd.Flags().StringVar(&p.ServerSeedHash, "server-seed-hash", "", "commitment published before the bets")
	cmd.Flags().StringVar(&p.ClientSeed, "client-seed", "", "client seed")
	cmd.Flags().Uint64Var(&p.Nonce, "nonce", 0, "bet nonce")
	cmd.Flags().Int64Var(&outcome, "outcome", -1, "recorded outcome in [0, 10000), optional")
	_ = cmd.MarkFlagRequired("server-seed")
	_ = cmd.MarkFlagRequired("server-seed-hash")
	_ = cmd.MarkFlagRequired("nonce")
	return cmd
}
